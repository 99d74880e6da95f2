package api_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediaferry/internal/api"
	"mediaferry/internal/media"
	"mediaferry/internal/queue"
	"mediaferry/internal/registry"
	"mediaferry/internal/testsupport"
)

const (
	entityA = "6f1c2d0e-7a45-4b1e-9c39-0d5c6b1f4a11"
	entityB = "2b8e7f6a-3c14-4d2f-8a77-51e9c0d3b622"
	mediaID = "9d3a1b2c-4e5f-4a6b-8c7d-0e1f2a3b4c5d"
	srcID   = "0a1b2c3d-4e5f-4a6b-9c7d-8e9f0a1b2c3d"
)

type fixture struct {
	store    *queue.Store
	registry *registry.Registry
	peer     *testsupport.Peer
	client   *api.AdminClient
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	f := &fixture{
		store:    testsupport.MustOpenStore(t, cfg),
		registry: registry.New(),
		peer:     testsupport.NewPeer(),
	}
	manager := api.NewTaskManager(f.store, f.registry, nil)

	router := chi.NewRouter()
	api.NewHandlers(manager, nil).Mount(router)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	client, err := api.NewAdminClient(srv.URL, "")
	require.NoError(t, err)
	f.client = client
	return f
}

func (f *fixture) connect(t *testing.T, id string) *registry.Connection {
	t.Helper()
	conn := registry.NewConnection(id, "127.0.0.1:5000", f.peer, f.peer)
	f.registry.Add(conn)
	return conn
}

func TestTaskManagerReturnsAllSections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	testsupport.Enqueue(t, f.store, queue.KindImage, queue.Payload{Data: "a", Dest: "c/a.webp"}, 3)

	downloader := f.connect(t, "down")
	epoch, err := downloader.Begin(registry.StateDownloading)
	require.NoError(t, err)
	require.True(t, downloader.LockDownloads(epoch, []string{entityA}))

	uploader := f.connect(t, "up")
	_, err = uploader.Begin(registry.StateUploading)
	require.NoError(t, err)
	require.NoError(t, f.registry.ReserveUpload(uploader, media.SourceRef{MainID: entityB, MediaID: mediaID, SourceID: srcID}, "hash", "a.png"))

	view, err := f.client.TaskManager(ctx, nil)
	require.NoError(t, err)
	require.NotNil(t, view.Tasks)
	require.NotNil(t, view.Clients)
	require.NotNil(t, view.Uploading)
	require.NotNil(t, view.Downloading)

	require.Len(t, *view.Tasks, 1)
	assert.Equal(t, "image", (*view.Tasks)[0].Kind)
	assert.Equal(t, "inactive", (*view.Tasks)[0].Status)
	assert.Len(t, *view.Clients, 2)
	assert.Equal(t, []string{entityB}, *view.Uploading)
	assert.Equal(t, []string{entityA}, *view.Downloading)
}

func TestTaskManagerFieldsAndStatusFilter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	testsupport.Enqueue(t, f.store, queue.KindImage, queue.Payload{Data: "a", Dest: "c/a.webp"}, 3)
	testsupport.Enqueue(t, f.store, queue.KindUpload, queue.Payload{Data: "a", Dest: "c/a.png"}, 3)
	claimed, err := f.store.ClaimNext(ctx, queue.KindUpload)
	require.NoError(t, err)
	require.NotNil(t, claimed)

	view, err := f.client.TaskManager(ctx, []string{"tasks", "uploading"}, queue.StatusActive)
	require.NoError(t, err)
	assert.Nil(t, view.Clients)
	assert.Nil(t, view.Downloading)
	require.NotNil(t, view.Uploading)
	assert.Empty(t, *view.Uploading)
	require.NotNil(t, view.Tasks)
	require.Len(t, *view.Tasks, 1)
	assert.Equal(t, claimed.ID, (*view.Tasks)[0].ID)
}

func TestTaskManagerRejectsUnknownFilters(t *testing.T) {
	f := newFixture(t)
	_, err := f.client.TaskManager(context.Background(), []string{"bogus"})
	assert.True(t, api.IsStatus(err, http.StatusBadRequest), "got %v", err)

	_, err = f.client.TaskManager(context.Background(), nil, queue.Status("paused"))
	assert.True(t, api.IsStatus(err, http.StatusBadRequest), "got %v", err)
}

func TestCancelTask(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task := testsupport.Enqueue(t, f.store, queue.KindImage, queue.Payload{Data: "a", Dest: "c/a.webp"}, 3)

	require.NoError(t, f.client.CancelTask(ctx, task.ID))
	got, err := f.store.GetByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	err = f.client.CancelTask(ctx, task.ID)
	assert.True(t, api.IsStatus(err, http.StatusNotFound), "got %v", err)
}

func TestStartTaskRestartsFailedAndRejectsActive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task := testsupport.Enqueue(t, f.store, queue.KindVideo, queue.Payload{Data: "a", Dest: "p/a.mp4", FallbackDest: "p/a.webp"}, 1)
	claimed, err := f.store.ClaimNext(ctx, queue.KindVideo)
	require.NoError(t, err)
	require.Equal(t, task.ID, claimed.ID)

	_, err = f.client.StartTask(ctx, task.ID)
	assert.True(t, api.IsStatus(err, http.StatusConflict), "got %v", err)

	status, err := f.store.Fail(ctx, task.ID, errors.New("boom"), true, 0)
	require.NoError(t, err)
	require.Equal(t, queue.StatusFailed, status)

	restarted, err := f.client.StartTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "inactive", restarted.Status)
	assert.Zero(t, restarted.Attempts)
	assert.Empty(t, restarted.ErrorMessage)

	_, err = f.client.StartTask(ctx, 9999)
	assert.True(t, api.IsStatus(err, http.StatusNotFound), "got %v", err)
}

func TestClearCompleted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	done := testsupport.Enqueue(t, f.store, queue.KindUpload, queue.Payload{Data: "a", Dest: "c/a.png"}, 1)
	waiting := testsupport.Enqueue(t, f.store, queue.KindImage, queue.Payload{Data: "a", Dest: "c/a.webp"}, 1)
	testsupport.Claim(t, f.store, queue.KindUpload)
	require.NoError(t, f.store.Complete(ctx, done.ID))

	removed, err := f.client.ClearCompleted(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, removed)

	view, err := f.client.TaskManager(ctx, []string{"tasks"})
	require.NoError(t, err)
	require.NotNil(t, view.Tasks)
	require.Len(t, *view.Tasks, 1)
	assert.Equal(t, waiting.ID, (*view.Tasks)[0].ID)

	removed, err = f.client.ClearCompleted(ctx)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestKickSocket(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.connect(t, "victim")

	require.NoError(t, f.client.KickSocket(ctx, "victim"))
	assert.Equal(t, 0, f.registry.Len())
	assert.Len(t, f.peer.Closed(), 1)

	err := f.client.KickSocket(ctx, "victim")
	assert.True(t, api.IsStatus(err, http.StatusNotFound), "got %v", err)
}

func TestInvalidTaskID(t *testing.T) {
	f := newFixture(t)
	err := f.client.CancelTask(context.Background(), -1)
	assert.True(t, api.IsStatus(err, http.StatusBadRequest), "got %v", err)
}

func TestParseFields(t *testing.T) {
	fields, err := api.ParseFields("")
	require.NoError(t, err)
	assert.Equal(t, api.AllFields(), fields)

	fields, err = api.ParseFields(" Clients , downloading,")
	require.NoError(t, err)
	assert.Equal(t, api.Fields{Clients: true, Downloading: true}, fields)
}

func TestNilAdminClient(t *testing.T) {
	client, err := api.NewAdminClient("  ", "")
	require.NoError(t, err)
	assert.Nil(t, client)
	_, err = client.Status(context.Background())
	assert.True(t, api.IsAPIUnavailable(err))
}

func TestAdminClientSendsBearerToken(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		api.WriteJSON(w, nil, http.StatusOK, api.DaemonStatus{Running: true, PID: 42})
	}))
	t.Cleanup(srv.Close)

	client, err := api.NewAdminClient(srv.URL, "secret")
	require.NoError(t, err)
	status, err := client.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret", got)
	assert.Equal(t, 42, status.PID)
}
