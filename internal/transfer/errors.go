package transfer

import (
	"errors"
	"fmt"
)

// BadRequestError is a client-caused failure reported on the bad_request
// channel. Any other error is reported as an exception.
type BadRequestError struct {
	Message string
}

func (e *BadRequestError) Error() string {
	return e.Message
}

func badRequest(format string, args ...any) error {
	return &BadRequestError{Message: fmt.Sprintf(format, args...)}
}

// IsBadRequest reports whether err belongs on the bad_request channel.
func IsBadRequest(err error) bool {
	var br *BadRequestError
	return errors.As(err, &br)
}

// Client-facing messages.
const (
	msgMissingPayload   = "missing payload"
	msgMissingCookie    = "missing session cookie"
	msgBusy             = "connection is busy with another transfer"
	msgUnauthenticated  = "invalid session"
	msgNotAdmin         = "only administrators may upload"
	msgForbidden        = "not allowed to download entity %s"
	msgNothingToSend    = "no downloadable sources"
	msgNotUploading     = "must initiate upload first"
	msgUploadTooLarge   = "upload exceeds size limit"
	msgTargetLocked     = "entity %s is being uploaded by another connection"
	msgReceiveProblem   = "problem occurred while receiving data"
	msgUnknownMediaType = "unknown media type"
	msgServerFault      = "internal server error"
)
