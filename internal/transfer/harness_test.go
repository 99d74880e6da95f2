package transfer_test

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"mediaferry/internal/auth"
	"mediaferry/internal/blobstore"
	"mediaferry/internal/catalog"
	"mediaferry/internal/logging"
	"mediaferry/internal/media"
	"mediaferry/internal/naming"
	"mediaferry/internal/queue"
	"mediaferry/internal/registry"
	"mediaferry/internal/testsupport"
	"mediaferry/internal/transfer"
)

const waitTimeout = 2 * time.Second

type harness struct {
	t        *testing.T
	manager  *transfer.Manager
	registry *registry.Registry
	catalog  *catalog.Catalog
	store    *countingStore
	staging  *blobstore.FSStore
	tasks    *queue.Store
	issuer   *auth.Issuer
	auth     *slowAuth
}

type harnessOption func(*transfer.Options)

func withOverwrite() harnessOption {
	return func(o *transfer.Options) { o.Overwrite = true }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t)

	cat, err := catalog.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = cat.Close() })

	fs, err := blobstore.NewFS(cfg.Storage.Root)
	require.NoError(t, err)
	staging, err := blobstore.NewFS(cfg.Paths.StagingDir)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, cat.Users.Put(ctx, &media.User{ID: "admin", Role: media.RoleAdmin}))

	reg := registry.New()
	store := &countingStore{Store: fs}
	slow := &slowAuth{next: auth.NewAuthenticator(testsupport.TestSessionSecret, cat.Users)}
	options := transfer.Options{
		ChunkSize:      4,
		MaxUploadBytes: 1 << 20,
		Formats:        naming.Formats{Image: "webp", Video: "mp4"},
		Attempts:       3,
	}
	for _, opt := range opts {
		opt(&options)
	}
	tasks := testsupport.MustOpenStore(t, cfg)
	manager := transfer.NewManager(transfer.Dependencies{
		Registry: reg,
		Auth:     slow,
		Entities: cat.Entities,
		Store:    store,
		Staging:  staging,
		Tasks:    tasks,
	}, options, logging.NewNop())
	t.Cleanup(manager.Wait)

	return &harness{
		t:        t,
		manager:  manager,
		registry: reg,
		catalog:  cat,
		store:    store,
		staging:  staging,
		tasks:    tasks,
		issuer:   auth.NewIssuer(testsupport.TestSessionSecret),
		auth:     slow,
	}
}

func (h *harness) connect() (*registry.Connection, *testsupport.Peer) {
	peer := testsupport.NewPeer()
	conn := registry.NewConnection(uuid.NewString(), "127.0.0.1:1", peer, peer)
	h.registry.Add(conn)
	return conn, peer
}

func (h *harness) token(userID string) string {
	h.t.Helper()
	token, err := h.issuer.Issue(userID, time.Hour)
	require.NoError(h.t, err)
	return token
}

func (h *harness) addUser(id string, role media.Role, entityIDs ...string) {
	h.t.Helper()
	require.NoError(h.t, h.catalog.Users.Put(context.Background(), &media.User{ID: id, Role: role, EntityIDs: entityIDs}))
}

// addEntity stores an entity holding one media item with one source and
// returns the reference to that source.
func (h *harness) addEntity(kind media.Kind, name string, mediaType media.Type, src string, public bool) media.SourceRef {
	h.t.Helper()
	ref := media.SourceRef{MainID: uuid.NewString(), MediaID: uuid.NewString(), SourceID: uuid.NewString()}
	entity := &media.Entity{
		ID:     ref.MainID,
		Kind:   kind,
		Name:   name,
		Public: public,
		Media: []media.Media{{
			ID:      ref.MediaID,
			Type:    mediaType,
			Sources: []media.Source{{ID: ref.SourceID, Src: src}},
		}},
	}
	require.NoError(h.t, h.catalog.Entities.Put(context.Background(), entity))
	return ref
}

func (h *harness) putBlob(key string, data []byte) {
	h.t.Helper()
	require.NoError(h.t, h.store.Upload(context.Background(), key, data))
}

func (h *harness) source(ref media.SourceRef) media.Source {
	h.t.Helper()
	entity, err := h.catalog.Entities.GetByID(context.Background(), ref.MainID)
	require.NoError(h.t, err)
	_, source, err := media.Resolve(entity, ref)
	require.NoError(h.t, err)
	return *source
}

func (h *harness) listTasks() []*queue.Task {
	h.t.Helper()
	tasks, err := h.tasks.List(context.Background())
	require.NoError(h.t, err)
	return tasks
}

func md5Hex(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

func message(t *testing.T, ev testsupport.Event) string {
	t.Helper()
	var msg transfer.Message
	require.NoError(t, json.Unmarshal(ev.Payload, &msg))
	return msg.Message
}

// countingStore records downloads and can hold them until released.
type countingStore struct {
	blobstore.Store
	downloads atomic.Int32
	gate      chan struct{}
}

func (s *countingStore) Download(ctx context.Context, key string) ([]byte, error) {
	s.downloads.Add(1)
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.Store.Download(ctx, key)
}

// slowAuth delays authentication to widen race windows.
type slowAuth struct {
	next  transfer.Authenticator
	mu    sync.Mutex
	delay time.Duration
}

func (a *slowAuth) setDelay(d time.Duration) {
	a.mu.Lock()
	a.delay = d
	a.mu.Unlock()
}

func (a *slowAuth) Authenticate(ctx context.Context, cookie string) (*media.User, error) {
	a.mu.Lock()
	delay := a.delay
	a.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}
	return a.next.Authenticate(ctx, cookie)
}
