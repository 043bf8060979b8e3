package domain

import (
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrUnknownPlan     = errors.New("unknown plan")
	ErrRateLimited     = errors.New("too many checkout requests")

	// Payment / activation flow
	ErrUnauthenticated      = errors.New("unauthenticated")
	ErrProvider             = errors.New("payment provider error")
	ErrActivation           = errors.New("premium activation failed")
	ErrVerificationMismatch = errors.New("verification mismatch: account is not premium after activation")
	ErrActivationPending    = errors.New("an activation is already pending for this account")
	ErrTransitionBusy       = errors.New("another transition is in flight for this account")
	ErrNoActivationOwed     = errors.New("no activation is owed for this account")
	ErrNoCheckoutSession    = errors.New("no checkout session to open")
	ErrAccountRejected      = errors.New("account service rejected the request")
	ErrLockHeld             = errors.New("lock is held by another owner")
)

// ProviderError is returned when a checkout session could not be created.
type ProviderError struct {
	Status  int // HTTP status, 0 when the request never got a response
	Message string
}

func (e *ProviderError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("payment provider: %s (http %d)", e.Message, e.Status)
	}
	return "payment provider: " + e.Message
}

func (e *ProviderError) Is(target error) bool { return target == ErrProvider }

// ActivationError wraps a failure after the payment already succeeded externally.
// Stage is one of "set", "read" or "verify".
type ActivationError struct {
	Stage string
	Err   error
}

func (e *ActivationError) Error() string {
	return fmt.Sprintf("activation %s: %v", e.Stage, e.Err)
}

func (e *ActivationError) Unwrap() error { return e.Err }

func (e *ActivationError) Is(target error) bool { return target == ErrActivation }

// RejectionError is a non-2xx answer of the Account Service with its machine-readable reason.
type RejectionError struct {
	Status int
	Reason string
}

func (e *RejectionError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("account service: http %d", e.Status)
	}
	return fmt.Sprintf("account service: %s (http %d)", e.Reason, e.Status)
}

func (e *RejectionError) Is(target error) bool { return target == ErrAccountRejected }
