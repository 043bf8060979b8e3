// File: internal/usecase/activation_uc.go
package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"premium-activation/internal/domain"
	"premium-activation/internal/domain/model"
	"premium-activation/internal/domain/ports/adapter"
	"premium-activation/internal/domain/ports/repository"
	"premium-activation/internal/infra/logging"
	"premium-activation/internal/infra/metrics"
)

const (
	StageSet    = "set"
	StageRead   = "read"
	StageVerify = "verify"
)

// Activator grants premium and proves it took effect.
// Success is only reported after a fresh read shows isPremium=true; the write response alone is never trusted.
type Activator struct {
	accounts adapter.AccountService
	cache    repository.PremiumCacheRepository // optional
	now      func() time.Time
	log      *zerolog.Logger
}

func NewActivator(accounts adapter.AccountService, cache repository.PremiumCacheRepository, logger *zerolog.Logger) *Activator {
	l := logger.With().Str("component", "activator").Logger()
	return &Activator{accounts: accounts, cache: cache, now: time.Now, log: &l}
}

// Activate runs set, read and verify in order. Any failure is an *domain.ActivationError naming the stage.
func (a *Activator) Activate(ctx context.Context, userID, credential string) (*model.AccountPremiumState, error) {
	defer logging.TraceDuration(a.log, "Activator.Activate")()

	if err := a.accounts.SetPremium(ctx, credential, userID, true); err != nil {
		return nil, &domain.ActivationError{Stage: StageSet, Err: err}
	}
	acc, err := a.accounts.GetAccount(ctx, credential, userID)
	if err != nil {
		return nil, &domain.ActivationError{Stage: StageRead, Err: err}
	}
	if acc == nil || !acc.IsPremium || (acc.UserID != "" && acc.UserID != userID) {
		return nil, &domain.ActivationError{Stage: StageVerify, Err: domain.ErrVerificationMismatch}
	}

	st := &model.AccountPremiumState{UserID: userID, IsPremium: true, LastVerifiedAt: a.now()}
	if a.cache != nil {
		// cache is advisory; a write failure does not undo a verified activation
		if err := a.cache.SavePremium(ctx, st); err != nil {
			metrics.IncPremiumCacheWrite(false)
			a.log.Warn().Err(err).Str("user_id", userID).Msg("premium cache write failed")
		} else {
			metrics.IncPremiumCacheWrite(true)
		}
	}
	return st, nil
}
