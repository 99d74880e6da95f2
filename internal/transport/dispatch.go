package transport

import (
	"context"
	"encoding/base64"
	"encoding/json"

	"github.com/coder/websocket"
	"github.com/tidwall/gjson"

	"mediaferry/internal/logging"
	"mediaferry/internal/registry"
	"mediaferry/internal/transfer"
)

func reject(message string) error {
	return &transfer.BadRequestError{Message: message}
}

// dispatch routes one inbound frame. Every handler except the download
// stream completes before the next frame is read.
func (s *Server) dispatch(ctx context.Context, conn *registry.Connection, typ websocket.MessageType, data []byte) {
	if typ == websocket.MessageBinary {
		s.dispatchBinary(conn, data)
		return
	}
	if !gjson.ValidBytes(data) {
		s.transfers.Reject(conn, reject("malformed message"))
		return
	}

	event := gjson.GetBytes(data, "event").String()
	payload := gjson.GetBytes(data, "payload")
	switch event {
	case transfer.EventDownloadInit:
		var req *transfer.DownloadInitRequest
		if !decodePayload(payload, &req) {
			s.transfers.Reject(conn, reject("malformed payload"))
			return
		}
		s.transfers.DownloadInit(ctx, conn, req)
	case transfer.EventDownloadEnd:
		s.transfers.CancelDownload(conn)
	case transfer.EventUploadInit:
		var req *transfer.UploadInitRequest
		if !decodePayload(payload, &req) {
			s.transfers.Reject(conn, reject("malformed payload"))
			return
		}
		s.transfers.UploadInit(ctx, conn, req)
	case transfer.EventUpload:
		if payload.Type != gjson.String {
			s.transfers.Reject(conn, reject("upload payload must be base64 text"))
			return
		}
		chunk, err := base64.StdEncoding.DecodeString(payload.Str)
		if err != nil {
			s.transfers.Reject(conn, reject("upload payload must be base64 text"))
			return
		}
		s.transfers.Upload(conn, chunk)
	case transfer.EventUploadEnd:
		s.transfers.UploadEnd(ctx, conn)
	default:
		s.logger.Debug("unknown event",
			logging.ConnectionID(conn.ID()),
			logging.String("event", event),
		)
		s.transfers.Reject(conn, reject("unknown event"))
	}
}

func (s *Server) dispatchBinary(conn *registry.Connection, data []byte) {
	if len(data) == 0 || data[0] != OpUpload {
		s.transfers.Reject(conn, reject("unsupported binary frame"))
		return
	}
	s.transfers.Upload(conn, data[1:])
}

// decodePayload leaves target nil when the payload is absent or null.
func decodePayload(payload gjson.Result, target any) bool {
	if !payload.Exists() || payload.Type == gjson.Null {
		return true
	}
	return json.Unmarshal([]byte(payload.Raw), target) == nil
}
