package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"premium-activation/internal/usecase"
)

// AttemptSweeper periodically closes ledger attempts that never recorded an outcome,
// so support can spot accounts where money may have moved without activation.
type AttemptSweeper struct {
	interval   time.Duration
	staleAfter time.Duration
	ledger     usecase.LedgerUseCase
	log        *zerolog.Logger
}

func NewAttemptSweeper(interval, staleAfter time.Duration, ledger usecase.LedgerUseCase, logger *zerolog.Logger) *AttemptSweeper {
	l := logger.With().Str("component", "AttemptSweeper").Logger()
	return &AttemptSweeper{
		interval:   interval,
		staleAfter: staleAfter,
		ledger:     ledger,
		log:        &l,
	}
}

func (w *AttemptSweeper) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Dur("stale_after", w.staleAfter).Msg("Starting attempt sweeper")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping attempt sweeper")
			return ctx.Err()
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *AttemptSweeper) sweep(ctx context.Context) {
	n, err := w.ledger.SweepStale(ctx, w.staleAfter)
	if err != nil {
		w.log.Error().Err(err).Msg("attempt sweep failed")
		return
	}
	if n > 0 {
		w.log.Warn().Int("count", n).Msg("stale activation attempts closed")
	}
}
