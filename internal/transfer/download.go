package transfer

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"path"
	"strings"

	"mediaferry/internal/logging"
	"mediaferry/internal/media"
	"mediaferry/internal/metrics"
	"mediaferry/internal/registry"
)

type resolvedSource struct {
	ref    media.SourceRef
	source media.Source
}

// DownloadInit validates a download request and, once the connection is
// marked Downloading, streams the requested files on a separate goroutine.
// Requests rejected before that point leave the connection untouched.
func (m *Manager) DownloadInit(ctx context.Context, conn *registry.Connection, req *DownloadInitRequest) {
	if req == nil {
		m.Reject(conn, badRequest(msgMissingPayload))
		return
	}
	if strings.TrimSpace(req.Cookie) == "" {
		m.Reject(conn, badRequest(msgMissingCookie))
		return
	}
	if len(req.Targets) == 0 {
		m.Reject(conn, badRequest("targets are required"))
		return
	}
	for i := range req.Targets {
		if err := m.validate.Struct(req.Targets[i]); err != nil {
			m.Reject(conn, badRequest("target %d is not a valid source reference", i))
			return
		}
	}
	epoch, err := conn.Begin(registry.StateDownloading)
	if err != nil {
		m.Reject(conn, badRequest(msgBusy))
		return
	}

	targets := append([]media.SourceRef(nil), req.Targets...)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.runDownload(ctx, conn, epoch, req.Cookie, targets)
	}()
}

// CancelDownload stops an in-flight download. The stream notices before its
// next chunk and emits download_end, unless the client has already started
// another transfer on the connection.
func (m *Manager) CancelDownload(conn *registry.Connection) {
	if conn.State() != registry.StateDownloading {
		m.Reject(conn, badRequest("no download in progress"))
		return
	}
	conn.Reset()
}

// runDownload serves the download of epoch. Every state change it makes is
// scoped to that epoch, so a stream that outlives a cancel stays silent once
// the client has begun a newer transfer.
func (m *Manager) runDownload(ctx context.Context, conn *registry.Connection, epoch uint64, cookie string, targets []media.SourceRef) {
	sources, entityIDs, err := m.prepareDownload(ctx, conn, cookie, targets)
	if err != nil {
		m.failDownload(conn, epoch, err)
		return
	}
	if !conn.LockDownloads(epoch, entityIDs) {
		m.deps.Metrics.RecordFinish(metrics.DirectionDownload, metrics.OutcomeAborted)
		if conn.FinishDownload(epoch, nil) {
			m.send(conn, EventDownloadEnd, nil)
		}
		return
	}
	m.deps.Metrics.RecordStart(metrics.DirectionDownload)
	logger := m.connLogger(conn)
	logger.Info("download started",
		logging.Int("files", len(sources)),
		logging.Any("entities", entityIDs),
	)

	outcome := metrics.OutcomeComplete
	for _, src := range sources {
		complete, err := m.streamSource(ctx, conn, epoch, src)
		if err != nil {
			m.failDownload(conn, epoch, err)
			return
		}
		if !complete {
			outcome = metrics.OutcomeAborted
			break
		}
	}

	m.deps.Metrics.RecordFinish(metrics.DirectionDownload, outcome)
	if !conn.FinishDownload(epoch, entityIDs) {
		logger.Info("download superseded", logging.String("outcome", outcome))
		return
	}
	m.send(conn, EventDownloadEnd, nil)
	logger.Info("download finished", logging.String("outcome", outcome))
}

// failDownload is fail for a download stream. A stream whose epoch has been
// superseded only records the outcome.
func (m *Manager) failDownload(conn *registry.Connection, epoch uint64, err error) {
	if !conn.ResetIf(epoch) {
		m.deps.Metrics.RecordFinish(metrics.DirectionDownload, metrics.OutcomeAborted)
		m.connLogger(conn).Debug("superseded download failed", logging.Error(err))
		return
	}
	m.report(conn, metrics.DirectionDownload, err)
}

func (m *Manager) prepareDownload(ctx context.Context, conn *registry.Connection, cookie string, targets []media.SourceRef) ([]resolvedSource, []string, error) {
	user, err := m.deps.Auth.Authenticate(ctx, cookie)
	if err != nil {
		m.connLogger(conn).Info("download authentication failed", logging.Error(err))
		return nil, nil, badRequest(msgUnauthenticated)
	}
	conn.SetUser(user.ID)

	ids := media.DistinctEntityIDs(targets)
	entities, err := m.deps.Entities.GetByIDs(ctx, ids)
	if err != nil {
		m.connLogger(conn).Info("download entity lookup failed", logging.Error(err))
		return nil, nil, badRequest("unknown entity")
	}
	byID := make(map[string]*media.Entity, len(entities))
	for _, entity := range entities {
		if !user.CanDownload(entity) {
			return nil, nil, badRequest(msgForbidden, entity.ID)
		}
		byID[entity.ID] = entity
	}

	var (
		sources []resolvedSource
		locked  []string
		seen    = make(map[string]struct{})
	)
	for _, ref := range targets {
		_, source, err := media.Resolve(byID[ref.MainID], ref)
		if err != nil || source.Src == "" {
			continue
		}
		sources = append(sources, resolvedSource{ref: ref, source: *source})
		if _, ok := seen[ref.MainID]; !ok {
			seen[ref.MainID] = struct{}{}
			locked = append(locked, ref.MainID)
		}
	}
	if len(sources) == 0 {
		return nil, nil, badRequest(msgNothingToSend)
	}
	return sources, locked, nil
}

// streamSource sends one file. It returns false when the connection left
// the downloading state before the file was fully sent.
func (m *Manager) streamSource(ctx context.Context, conn *registry.Connection, epoch uint64, src resolvedSource) (bool, error) {
	if !conn.StillDownloading(epoch) {
		return false, nil
	}
	data, err := m.deps.Store.Download(ctx, src.source.Src)
	if err != nil {
		if errors.Is(err, context.Canceled) && !conn.StillDownloading(epoch) {
			return false, nil
		}
		return false, exception(msgServerFault, err)
	}
	if !conn.StillDownloading(epoch) {
		return false, nil
	}

	sum := md5.Sum(data)
	chunkSize := m.opts.ChunkSize
	chunks := (len(data) + chunkSize - 1) / chunkSize
	header := DownloadHeader{
		File:      path.Base(src.source.Src),
		FileSize:  len(data),
		TotalSize: chunks,
		Hash:      hex.EncodeToString(sum[:]),
	}
	if !m.send(conn, EventDownloadInit, header) {
		return false, nil
	}

	sender := conn.Sender()
	for offset := 0; offset < len(data); offset += chunkSize {
		if !conn.StillDownloading(epoch) {
			return false, nil
		}
		end := min(offset+chunkSize, len(data))
		if err := sender.SendChunk(data[offset:end]); err != nil {
			return false, nil
		}
		m.deps.Metrics.AddBytes(metrics.DirectionDownload, end-offset)
	}
	return true, nil
}
