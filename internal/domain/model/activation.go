package model

import (
	"time"

	"premium-activation/internal/domain"
)

type AttemptOutcome string

const (
	AttemptPending   AttemptOutcome = "pending"
	AttemptSucceeded AttemptOutcome = "succeeded"
	AttemptFailed    AttemptOutcome = "failed"
)

// ActivationAttempt records one run of the activation sequence for an account.
// SessionID is nil when the return arrived without a known payment session.
type ActivationAttempt struct {
	ID          string
	UserID      string
	SessionID   *string
	StartedAt   time.Time
	FinishedAt  *time.Time
	Outcome     AttemptOutcome
	ErrorDetail *string
}

func NewActivationAttempt(id, userID string, sessionID *string, now time.Time) (*ActivationAttempt, error) {
	if id == "" || userID == "" {
		return nil, domain.ErrInvalidArgument
	}
	return &ActivationAttempt{
		ID:        id,
		UserID:    userID,
		SessionID: sessionID,
		StartedAt: now,
		Outcome:   AttemptPending,
	}, nil
}

func (a *ActivationAttempt) IsPending() bool { return a != nil && a.Outcome == AttemptPending }

// Succeed closes the attempt. Closing an already closed attempt is a no-op.
func (a *ActivationAttempt) Succeed(now time.Time) {
	if !a.IsPending() {
		return
	}
	a.Outcome = AttemptSucceeded
	a.FinishedAt = &now
}

func (a *ActivationAttempt) Fail(now time.Time, detail string) {
	if !a.IsPending() {
		return
	}
	a.Outcome = AttemptFailed
	a.FinishedAt = &now
	a.ErrorDetail = &detail
}

// AccountPremiumState mirrors the premium flag owned by the Account Service.
type AccountPremiumState struct {
	UserID         string    `json:"userId"`
	IsPremium      bool      `json:"isPremium"`
	LastVerifiedAt time.Time `json:"lastVerifiedAt"`
}
