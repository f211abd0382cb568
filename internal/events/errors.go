package events

import (
	"errors"

	"github.com/calendint/backend/internal/access"
)

// ErrNotFound is returned when an event, or an entity it references, does not exist.
var ErrNotFound = errors.New("not found")

// DeniedError is an authorization denial carrying the user-facing reason.
type DeniedError struct {
	Reason access.DenialReason
}

func (e *DeniedError) Error() string { return string(e.Reason) }

// ValidationError reports malformed input.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func denied(r access.DenialReason) error { return &DeniedError{Reason: r} }

func invalidf(msg string) error { return &ValidationError{Msg: msg} }
