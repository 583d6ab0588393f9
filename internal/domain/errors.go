package domain

import (
	"errors"
	"fmt"
)

var (
	ErrAccountNotFound         = errors.New("account not found")
	ErrAccountNotConnected     = errors.New("account is not connected")
	ErrNoAccountSelected       = errors.New("no account selected")
	ErrValidation              = errors.New("validation failed")
	ErrRequestInFlight         = errors.New("request already in flight")
	ErrInvalidTransition       = errors.New("action not allowed in current state")
	ErrControllerClosed        = errors.New("controller closed")
	ErrRunAlreadyActive        = errors.New("manual run already active")
	ErrRunNotActive            = errors.New("manual run not active")
	ErrScheduleAlreadyEnabled  = errors.New("auto schedule already enabled")
	ErrScheduleAlreadyDisabled = errors.New("auto schedule already disabled")
	ErrEmptySelection          = errors.New("chat selection is empty")
)

// ValidationError reports a missing or malformed local input. It is raised
// before any remote call is issued.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s is required", e.Field)
	}
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// RemoteError is a failed call against the remote service. Kind carries the
// failure class when the remote reports one.
type RemoteError struct {
	Op     string
	Status int
	Detail string
	Kind   string
}

func (e *RemoteError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s: %s", e.Op, e.Detail)
	}
	return fmt.Sprintf("%s: %s (status %d)", e.Op, e.Detail, e.Status)
}

// RemoteDetail returns the operator-facing text of a remote failure: the
// structured detail when err carries one, otherwise fallback.
func RemoteDetail(err error, fallback string) string {
	var verifyErr *VerificationError
	if errors.As(err, &verifyErr) && verifyErr.Message != "" {
		return verifyErr.Message
	}
	var remoteErr *RemoteError
	if errors.As(err, &remoteErr) && remoteErr.Detail != "" {
		return remoteErr.Detail
	}
	return fallback
}
