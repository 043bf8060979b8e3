package repository

import (
	"context"
	"time"

	"premium-activation/internal/domain/model"
)

// ActivationAttemptRepository is the durable ledger of activation attempts.
// Support staff use it to find accounts where money may have moved without activation.
type ActivationAttemptRepository interface {
	Save(ctx context.Context, tx Tx, a *model.ActivationAttempt) error
	// Finish persists the outcome of a pending attempt. Finishing a closed attempt is a no-op.
	Finish(ctx context.Context, tx Tx, a *model.ActivationAttempt) error
	FindPendingByUser(ctx context.Context, tx Tx, userID string) (*model.ActivationAttempt, error)
	// FailPendingByUser closes any pending attempt of the user; returns how many were closed.
	FailPendingByUser(ctx context.Context, tx Tx, userID, detail string, now time.Time) (int, error)
	FailPendingOlderThan(ctx context.Context, tx Tx, cutoff time.Time, detail string, now time.Time) (int, error)
	ListByUser(ctx context.Context, tx Tx, userID string, limit int) ([]*model.ActivationAttempt, error)
}
