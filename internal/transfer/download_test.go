package transfer_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediaferry/internal/media"
	"mediaferry/internal/registry"
	"mediaferry/internal/transfer"
)

func TestDownloadStreamsChunks(t *testing.T) {
	h := newHarness(t)
	data := []byte("0123456789")
	ref := h.addEntity(media.KindCategory, "Cat", media.TypeImage, "categories/cat/a.bin", false)
	h.putBlob("categories/cat/a.bin", data)
	conn, peer := h.connect()

	h.manager.DownloadInit(context.Background(), conn, &transfer.DownloadInitRequest{
		Cookie:  h.token("admin"),
		Targets: []media.SourceRef{ref},
	})
	peer.WaitFor(t, transfer.EventDownloadEnd, waitTimeout)
	h.manager.Wait()

	events := peer.Events()
	require.Equal(t, []string{
		transfer.EventDownloadInit,
		transfer.EventDownload,
		transfer.EventDownload,
		transfer.EventDownload,
		transfer.EventDownloadEnd,
	}, peer.Names())

	var header transfer.DownloadHeader
	require.NoError(t, json.Unmarshal(events[0].Payload, &header))
	assert.Equal(t, "a.bin", header.File)
	assert.Equal(t, 10, header.FileSize)
	assert.Equal(t, 3, header.TotalSize)
	assert.Equal(t, md5Hex(data), header.Hash)

	var got []byte
	for _, ev := range events[1:4] {
		got = append(got, ev.Chunk...)
	}
	assert.Equal(t, data, got)
	assert.Equal(t, registry.StateIdle, conn.State())
	assert.Empty(t, h.registry.Locked())
}

func TestDownloadInitRejectsBeforeStateChange(t *testing.T) {
	h := newHarness(t)
	ref := h.addEntity(media.KindCategory, "Cat", media.TypeImage, "x", false)

	cases := map[string]*transfer.DownloadInitRequest{
		"missing payload": nil,
		"empty cookie":    {Cookie: "  ", Targets: []media.SourceRef{ref}},
		"no targets":      {Cookie: "c"},
		"bad target":      {Cookie: "c", Targets: []media.SourceRef{{MainID: "nope", MediaID: ref.MediaID, SourceID: ref.SourceID}}},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			conn, peer := h.connect()
			h.manager.DownloadInit(context.Background(), conn, req)
			assert.Equal(t, []string{transfer.EventBadRequest}, peer.Names())
			assert.Equal(t, registry.StateIdle, conn.State())
			assert.Zero(t, h.store.downloads.Load())
		})
	}
}

func TestDownloadRejectsInvalidSession(t *testing.T) {
	h := newHarness(t)
	ref := h.addEntity(media.KindCategory, "Cat", media.TypeImage, "x", false)
	conn, peer := h.connect()

	h.manager.DownloadInit(context.Background(), conn, &transfer.DownloadInitRequest{
		Cookie:  "forged",
		Targets: []media.SourceRef{ref},
	})
	ev := peer.WaitFor(t, transfer.EventBadRequest, waitTimeout)
	h.manager.Wait()
	assert.Equal(t, "invalid session", message(t, ev))
	assert.Equal(t, registry.StateIdle, conn.State())
}

func TestDownloadAuthorization(t *testing.T) {
	h := newHarness(t)
	private := h.addEntity(media.KindProduction, "Private", media.TypeImage, "p.bin", false)
	public := h.addEntity(media.KindProduction, "Public", media.TypeImage, "pub.bin", true)
	owned := h.addEntity(media.KindProduction, "Owned", media.TypeImage, "own.bin", false)
	h.putBlob("pub.bin", []byte("pub"))
	h.putBlob("own.bin", []byte("own"))
	h.addUser("viewer", media.RoleUser, owned.MainID)

	conn, peer := h.connect()
	h.manager.DownloadInit(context.Background(), conn, &transfer.DownloadInitRequest{
		Cookie:  h.token("viewer"),
		Targets: []media.SourceRef{owned, private},
	})
	peer.WaitFor(t, transfer.EventBadRequest, waitTimeout)
	h.manager.Wait()
	assert.Zero(t, h.store.downloads.Load(), "blob store must not be read for a forbidden entity")
	assert.Empty(t, h.registry.Locked())
	assert.Equal(t, registry.StateIdle, conn.State())

	conn, peer = h.connect()
	h.manager.DownloadInit(context.Background(), conn, &transfer.DownloadInitRequest{
		Cookie:  h.token("viewer"),
		Targets: []media.SourceRef{owned, public},
	})
	peer.WaitFor(t, transfer.EventDownloadEnd, waitTimeout)
	h.manager.Wait()
	assert.NotContains(t, peer.Names(), transfer.EventBadRequest)
	assert.EqualValues(t, 2, h.store.downloads.Load())
}

func TestDownloadDropsUnresolvableTargets(t *testing.T) {
	h := newHarness(t)
	ref := h.addEntity(media.KindCategory, "Cat", media.TypeImage, "a.bin", false)
	h.putBlob("a.bin", []byte("abc"))
	missing := ref
	missing.SourceID = "5b0c1b9e-41bb-4a45-9f0b-1f4a4d2c0c11"

	conn, peer := h.connect()
	h.manager.DownloadInit(context.Background(), conn, &transfer.DownloadInitRequest{
		Cookie:  h.token("admin"),
		Targets: []media.SourceRef{missing, ref},
	})
	peer.WaitFor(t, transfer.EventDownloadEnd, waitTimeout)
	h.manager.Wait()
	assert.Equal(t, []string{transfer.EventDownloadInit, transfer.EventDownload, transfer.EventDownloadEnd}, peer.Names())

	conn, peer = h.connect()
	h.manager.DownloadInit(context.Background(), conn, &transfer.DownloadInitRequest{
		Cookie:  h.token("admin"),
		Targets: []media.SourceRef{missing},
	})
	ev := peer.WaitFor(t, transfer.EventBadRequest, waitTimeout)
	h.manager.Wait()
	assert.Equal(t, "no downloadable sources", message(t, ev))
	assert.Equal(t, registry.StateIdle, conn.State())
}

func TestDownloadSecondInitIsBusy(t *testing.T) {
	h := newHarness(t)
	ref := h.addEntity(media.KindCategory, "Cat", media.TypeImage, "a.bin", false)
	h.putBlob("a.bin", []byte("abcdef"))
	h.auth.setDelay(100 * time.Millisecond)
	conn, peer := h.connect()

	req := &transfer.DownloadInitRequest{Cookie: h.token("admin"), Targets: []media.SourceRef{ref}}
	h.manager.DownloadInit(context.Background(), conn, req)
	h.manager.DownloadInit(context.Background(), conn, req)

	ev := peer.WaitFor(t, transfer.EventBadRequest, waitTimeout)
	assert.Equal(t, "connection is busy with another transfer", message(t, ev))

	peer.WaitFor(t, transfer.EventDownloadEnd, waitTimeout)
	h.manager.Wait()
	assert.Equal(t, []string{
		transfer.EventBadRequest,
		transfer.EventDownloadInit,
		transfer.EventDownload,
		transfer.EventDownload,
		transfer.EventDownloadEnd,
	}, peer.Names())
	assert.EqualValues(t, 1, h.store.downloads.Load())
}

func TestDownloadStopsWhenStateFlips(t *testing.T) {
	h := newHarness(t)
	ref := h.addEntity(media.KindCategory, "Cat", media.TypeImage, "a.bin", false)
	h.putBlob("a.bin", []byte("abcdefgh"))
	h.store.gate = make(chan struct{})
	conn, peer := h.connect()

	h.manager.DownloadInit(context.Background(), conn, &transfer.DownloadInitRequest{
		Cookie:  h.token("admin"),
		Targets: []media.SourceRef{ref},
	})
	require.Eventually(t, func() bool { return h.store.downloads.Load() == 1 }, waitTimeout, 5*time.Millisecond)
	assert.Equal(t, []string{ref.MainID}, h.registry.Downloading())

	h.manager.CancelDownload(conn)
	assert.Empty(t, h.registry.Locked())
	close(h.store.gate)

	peer.WaitFor(t, transfer.EventDownloadEnd, waitTimeout)
	h.manager.Wait()
	assert.Equal(t, []string{transfer.EventDownloadEnd}, peer.Names(), "no chunks after the state flipped")
	assert.Equal(t, registry.StateIdle, conn.State())
}

func TestCancelledStreamYieldsToNextDownload(t *testing.T) {
	h := newHarness(t)
	first := h.addEntity(media.KindCategory, "First", media.TypeImage, "a.bin", false)
	second := h.addEntity(media.KindCategory, "Second", media.TypeImage, "b.bin", false)
	h.putBlob("a.bin", []byte("abcdefgh"))
	h.putBlob("b.bin", []byte("xy"))
	h.store.gate = make(chan struct{})
	conn, peer := h.connect()

	h.manager.DownloadInit(context.Background(), conn, &transfer.DownloadInitRequest{
		Cookie:  h.token("admin"),
		Targets: []media.SourceRef{first},
	})
	require.Eventually(t, func() bool { return h.store.downloads.Load() == 1 }, waitTimeout, 5*time.Millisecond)
	h.manager.CancelDownload(conn)

	h.manager.DownloadInit(context.Background(), conn, &transfer.DownloadInitRequest{
		Cookie:  h.token("admin"),
		Targets: []media.SourceRef{second},
	})
	require.Eventually(t, func() bool { return h.store.downloads.Load() == 2 }, waitTimeout, 5*time.Millisecond)
	assert.Equal(t, []string{second.MainID}, h.registry.Downloading())
	close(h.store.gate)

	peer.WaitFor(t, transfer.EventDownloadEnd, waitTimeout)
	h.manager.Wait()

	events := peer.Events()
	require.Equal(t, []string{
		transfer.EventDownloadInit,
		transfer.EventDownload,
		transfer.EventDownloadEnd,
	}, peer.Names())
	var header transfer.DownloadHeader
	require.NoError(t, json.Unmarshal(events[0].Payload, &header))
	assert.Equal(t, "b.bin", header.File)
	assert.Equal(t, []byte("xy"), events[1].Chunk)
	assert.Equal(t, registry.StateIdle, conn.State())
	assert.Empty(t, h.registry.Locked())
}

func TestDisconnectReleasesDownloadLocks(t *testing.T) {
	h := newHarness(t)
	ref := h.addEntity(media.KindCategory, "Cat", media.TypeImage, "a.bin", false)
	h.putBlob("a.bin", []byte("abcdefgh"))
	h.store.gate = make(chan struct{})
	conn, peer := h.connect()

	h.manager.DownloadInit(context.Background(), conn, &transfer.DownloadInitRequest{
		Cookie:  h.token("admin"),
		Targets: []media.SourceRef{ref},
	})
	require.Eventually(t, func() bool { return len(h.registry.Downloading()) == 1 }, waitTimeout, 5*time.Millisecond)

	peer.FailSends(assert.AnError)
	h.manager.Disconnect(conn)
	close(h.store.gate)
	h.manager.Wait()

	assert.Empty(t, h.registry.Locked())
	_, ok := h.registry.Get(conn.ID())
	assert.False(t, ok)
	assert.Empty(t, peer.Names())
}

func TestCancelWithoutDownload(t *testing.T) {
	h := newHarness(t)
	conn, peer := h.connect()
	h.manager.CancelDownload(conn)
	assert.Equal(t, []string{transfer.EventBadRequest}, peer.Names())
}
