package services

import (
	"errors"
	"strings"
)

// Markers classify failures. Wrap attaches one so callers can branch with
// errors.Is without parsing messages.
var (
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
	// ErrPermanent marks a task failure that no later attempt can fix.
	ErrPermanent     = errors.New("permanent failure")
)

// Error is a classified failure raised by a component operation.
type Error struct {
	Marker    error
	Component string
	Operation string
	Message   string
	Cause     error
}

func (e *Error) Error() string {
	marker := ErrTransient
	if e.Marker != nil {
		marker = e.Marker
	}
	var b strings.Builder
	b.WriteString(marker.Error())
	b.WriteString(": ")
	wrote := false
	for _, part := range []string{e.Component, e.Operation, e.Message} {
		if part == "" {
			continue
		}
		if wrote {
			b.WriteString(": ")
		}
		b.WriteString(part)
		wrote = true
	}
	if !wrote {
		b.WriteString("service failure")
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap exposes both the marker and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Marker != nil {
		errs = append(errs, e.Marker)
	}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

// Wrap tags err with marker and the component and operation that failed.
// A nil marker is treated as ErrTransient. err may be nil.
func Wrap(marker error, component, operation, message string, err error) error {
	if marker == nil {
		marker = ErrTransient
	}
	return &Error{
		Marker:    marker,
		Component: strings.TrimSpace(component),
		Operation: strings.TrimSpace(operation),
		Message:   strings.TrimSpace(message),
		Cause:     err,
	}
}

// Retryable reports whether a task failure may succeed on a later attempt.
// Every failure is retried until the attempt budget runs out unless it
// carries ErrPermanent.
func Retryable(err error) bool {
	return err != nil && !errors.Is(err, ErrPermanent)
}
