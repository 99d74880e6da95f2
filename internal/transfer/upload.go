package transfer

import (
	"context"
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"net/http"
	"path"
	"strings"

	"mediaferry/internal/logging"
	"mediaferry/internal/media"
	"mediaferry/internal/metrics"
	"mediaferry/internal/naming"
	"mediaferry/internal/queue"
	"mediaferry/internal/registry"
)

// UploadInit authorizes an upload into one source and reserves its entity.
// The upload_init ack tells the client to start streaming.
func (m *Manager) UploadInit(ctx context.Context, conn *registry.Connection, req *UploadInitRequest) {
	if req == nil {
		m.Reject(conn, badRequest(msgMissingPayload))
		return
	}
	if strings.TrimSpace(req.Cookie) == "" {
		m.Reject(conn, badRequest(msgMissingCookie))
		return
	}
	if _, err := conn.Begin(registry.StateUploading); err != nil {
		m.Reject(conn, badRequest(msgBusy))
		return
	}
	if err := m.prepareUpload(ctx, conn, req); err != nil {
		m.fail(conn, metrics.DirectionUpload, err)
		return
	}
	m.deps.Metrics.RecordStart(metrics.DirectionUpload)
	m.connLogger(conn).Info("upload started",
		logging.EntityID(req.Target.MainID),
		logging.String("source_id", req.Target.SourceID),
		logging.String("filename", req.Filename),
	)
	m.send(conn, EventUploadInit, nil)
}

func (m *Manager) prepareUpload(ctx context.Context, conn *registry.Connection, req *UploadInitRequest) error {
	user, err := m.deps.Auth.Authenticate(ctx, req.Cookie)
	if err != nil {
		m.connLogger(conn).Info("upload authentication failed", logging.Error(err))
		return badRequest(msgUnauthenticated)
	}
	conn.SetUser(user.ID)
	if !user.IsAdmin() {
		return badRequest(msgNotAdmin)
	}

	if req.Target == nil || m.validate.Struct(*req.Target) != nil {
		return badRequest("target is not a valid source reference")
	}
	if m.validate.Var(req.Hash, "required,md5") != nil {
		return badRequest("hash must be an md5 hex digest")
	}

	entity, err := m.deps.Entities.GetByID(ctx, req.Target.MainID)
	if err != nil {
		return badRequest("unknown entity")
	}
	if _, _, err := media.Resolve(entity, *req.Target); err != nil {
		return badRequest("%s", err.Error())
	}

	err = m.deps.Registry.ReserveUpload(conn, *req.Target, strings.ToLower(req.Hash), req.Filename)
	switch {
	case errors.Is(err, registry.ErrTargetHeld):
		return badRequest(msgTargetLocked, req.Target.MainID)
	case err != nil:
		return badRequest(msgNotUploading)
	}
	return nil
}

// Upload appends a chunk to the connection's upload buffer.
func (m *Manager) Upload(conn *registry.Connection, chunk []byte) {
	err := conn.Append(chunk, m.opts.MaxUploadBytes)
	switch {
	case err == nil:
		m.deps.Metrics.AddBytes(metrics.DirectionUpload, len(chunk))
	case errors.Is(err, registry.ErrUploadTooLarge):
		m.fail(conn, metrics.DirectionUpload, badRequest(msgUploadTooLarge))
	default:
		m.Reject(conn, badRequest(msgNotUploading))
	}
}

// UploadEnd releases the upload lock, verifies the bytes, records the new
// paths on the source and queues the processing tasks.
func (m *Manager) UploadEnd(ctx context.Context, conn *registry.Connection) {
	up, err := conn.TakeUpload()
	if err != nil {
		m.Reject(conn, badRequest(msgNotUploading))
		return
	}
	if err := m.finishUpload(ctx, conn, up); err != nil {
		m.fail(conn, metrics.DirectionUpload, err)
		return
	}
	m.deps.Metrics.RecordFinish(metrics.DirectionUpload, metrics.OutcomeComplete)
	m.send(conn, EventUploadEnd, nil)
}

func (m *Manager) finishUpload(ctx context.Context, conn *registry.Connection, up registry.Upload) error {
	logger := m.connLogger(conn).With(logging.EntityID(up.Target.MainID))

	sum := md5.Sum(up.Data)
	actual := hex.EncodeToString(sum[:])
	if subtle.ConstantTimeCompare([]byte(actual), []byte(up.ExpectedHash)) != 1 {
		logging.WarnWithContext(logger, "upload checksum mismatch", "upload_checksum_mismatch",
			logging.String("expected", up.ExpectedHash),
			logging.String("actual", actual),
			logging.Int("bytes", len(up.Data)),
			logging.String(logging.FieldErrorHint, "client should retry the upload"),
			logging.String(logging.FieldImpact, "upload discarded"),
		)
		return exception(msgReceiveProblem, nil)
	}

	entity, err := m.deps.Entities.GetByID(ctx, up.Target.MainID)
	if err != nil {
		return exception(msgServerFault, err)
	}
	item, source, err := media.Resolve(entity, up.Target)
	if err != nil {
		return exception(msgServerFault, err)
	}

	// Overwrite keeps the stored paths of a populated source and names only
	// the fields it lacks.
	reuse := m.opts.Overwrite && source.Src != ""
	if !reuse || source.Preview == "" || (item.Type == media.TypeVideo && source.Fallback == "") {
		planned := naming.Plan(entity, item.Type, source.ID, up.Filename, m.opts.Formats)
		paths, err := naming.Allocate(ctx, m.deps.Store, planned)
		if err != nil {
			return exception(msgServerFault, err)
		}
		if !reuse {
			source.Src = paths.Src
		}
		if !reuse || source.Preview == "" {
			source.Preview = paths.Preview
		}
		if !reuse || source.Fallback == "" {
			source.Fallback = paths.Fallback
		}
	}
	if item.Type != media.TypeVideo {
		source.Fallback = ""
	}
	source.Geometry.Size = int64(len(up.Data))
	source.Geometry.Mime = http.DetectContentType(up.Data)

	mediaType := item.Type
	dest := *source
	if err := m.deps.Entities.Update(ctx, entity); err != nil {
		return exception(msgServerFault, err)
	}

	var encode queue.Kind
	switch mediaType {
	case media.TypeVideo:
		encode = queue.KindVideo
	case media.TypeImage, media.TypeSlideshow:
		encode = queue.KindImage
	default:
		// text and unknown types have no derived format
		return exception(msgUnknownMediaType, nil)
	}

	key := m.newKey() + strings.ToLower(path.Ext(dest.Src))
	if err := m.deps.Staging.Upload(ctx, key, up.Data); err != nil {
		return exception(msgServerFault, err)
	}

	base := queue.Payload{
		Data:     key,
		EntityID: up.Target.MainID,
		MediaID:  up.Target.MediaID,
		SourceID: up.Target.SourceID,
	}
	encodePayload := base
	encodePayload.Dest = dest.Preview
	if encode == queue.KindVideo {
		encodePayload.FallbackDest = dest.Fallback
	}
	encodeTask, err := m.deps.Tasks.Enqueue(ctx, encode, encodePayload, m.opts.Attempts)
	if err != nil {
		return exception(msgServerFault, err)
	}

	uploadPayload := base
	uploadPayload.Dest = dest.Src
	uploadTask, err := m.deps.Tasks.Enqueue(ctx, queue.KindUpload, uploadPayload, m.opts.Attempts)
	if err != nil {
		return exception(msgServerFault, err)
	}

	logger.Info("upload accepted",
		logging.Int("bytes", len(up.Data)),
		logging.String("src", dest.Src),
		logging.String("staged", key),
		logging.Int64("encode_task", encodeTask.ID),
		logging.Int64("upload_task", uploadTask.ID),
	)
	return nil
}
