package model

import (
	"context"
	"errors"
	"strings"
)

// Store and service errors. Callers match them with errors.Is.
var (
	ErrNotFound           = errors.New("trip not found")
	ErrExists             = errors.New("trip already exists")
	ErrPreconditionFailed = errors.New("precondition failed") // stale expected version
	ErrInvalidTrip        = errors.New("invalid trip")
	ErrCanceled           = errors.New("operation canceled")
)

// Driver messages that mean the caller's context ended, for drivers that
// report cancellation as plain text instead of wrapping the context error.
var canceledMessages = []string{
	"context canceled",
	"context deadline exceeded",
	"canceling statement due to user request",
}

// WrapError maps cancellation of any flavor to ErrCanceled and returns
// other errors unchanged.
func WrapError(err error) error {
	if IsCanceled(err) {
		return ErrCanceled
	}
	return err
}

// IsCanceled reports whether err stems from a canceled or expired context.
func IsCanceled(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrCanceled),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return true
	}
	msg := err.Error()
	for _, m := range canceledMessages {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
