// File: internal/usecase/ledger_uc.go
package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"premium-activation/internal/domain"
	"premium-activation/internal/domain/model"
	"premium-activation/internal/domain/ports/repository"
	"premium-activation/internal/infra/metrics"
)

// Compile-time check
var _ LedgerUseCase = (*ledgerUC)(nil)

// LedgerUseCase exposes the activation attempt ledger to support tooling and the sweeper.
type LedgerUseCase interface {
	ListAttempts(ctx context.Context, userID string, limit int) ([]*model.ActivationAttempt, error)
	// SweepStale fails pending attempts older than staleAfter and returns how many were closed.
	SweepStale(ctx context.Context, staleAfter time.Duration) (int, error)
}

type ledgerUC struct {
	attempts repository.ActivationAttemptRepository
	now      func() time.Time
	log      *zerolog.Logger
}

func NewLedgerUseCase(attempts repository.ActivationAttemptRepository, logger *zerolog.Logger) *ledgerUC {
	l := logger.With().Str("component", "ledger").Logger()
	return &ledgerUC{attempts: attempts, now: time.Now, log: &l}
}

func (u *ledgerUC) ListAttempts(ctx context.Context, userID string, limit int) ([]*model.ActivationAttempt, error) {
	if userID == "" {
		return nil, domain.ErrInvalidArgument
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return u.attempts.ListByUser(ctx, repository.NoTX, userID, limit)
}

func (u *ledgerUC) SweepStale(ctx context.Context, staleAfter time.Duration) (int, error) {
	if staleAfter <= 0 {
		return 0, domain.ErrInvalidArgument
	}
	now := u.now()
	n, err := u.attempts.FailPendingOlderThan(ctx, repository.NoTX, now.Add(-staleAfter), "stale: no outcome recorded", now)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		metrics.AddStaleAttemptsSwept(n)
		u.log.Warn().Int("count", n).Dur("stale_after", staleAfter).Msg("closed stale activation attempts; money may have moved without activation")
	}
	return n, nil
}
