// File: internal/usecase/return_listener.go
package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"premium-activation/internal/domain/model"
	"premium-activation/internal/domain/ports/repository"
	"premium-activation/internal/infra/metrics"
)

// ReturnListener turns return notifications into classified events for the account's engine.
// Parameters are kept in the navigation state until consumed, so a notification that
// arrives while nobody looks is picked up on the next focus.
type ReturnListener struct {
	params  repository.ReturnParamsRepository
	engines *EngineRegistry
	now     func() time.Time
	log     *zerolog.Logger
}

func NewReturnListener(params repository.ReturnParamsRepository, engines *EngineRegistry, logger *zerolog.Logger) *ReturnListener {
	l := logger.With().Str("component", "return_listener").Logger()
	return &ReturnListener{params: params, engines: engines, now: time.Now, log: &l}
}

// Deliver attaches a return notification to the account and processes it.
func (l *ReturnListener) Deliver(ctx context.Context, userID string, raw map[string]string) (Outcome, error) {
	params := FilterReturnParams(raw)
	if err := l.params.PutParams(ctx, userID, params); err != nil {
		l.log.Warn().Err(err).Str("user_id", userID).Msg("failed to store return params; dispatching directly")
		return l.dispatch(ctx, userID, params)
	}
	return l.OnFocus(ctx, userID)
}

// OnFocus processes whatever return parameters are attached to the account.
func (l *ReturnListener) OnFocus(ctx context.Context, userID string) (Outcome, error) {
	params, err := l.params.GetParams(ctx, userID)
	if err != nil {
		return Outcome{}, err
	}
	return l.dispatch(ctx, userID, params)
}

func (l *ReturnListener) dispatch(ctx context.Context, userID string, params map[string]string) (Outcome, error) {
	engine, err := l.engines.Get(ctx, userID)
	if err != nil {
		return Outcome{}, err
	}
	ev := model.NewReturnEvent(params, l.now())
	if ev.IsEmpty() {
		return Outcome{State: engine.State(), Classification: model.ClassificationUnknown}, nil
	}
	cls := model.Classify(ev)
	metrics.IncReturnEvent(string(cls))
	if cls == model.ClassificationUnknown {
		l.log.Debug().Str("user_id", userID).Str("status", ev.RawStatus).Str("code", ev.RawStatusCode).Msg("unrecognised return params")
		return engine.HandleReturn(ctx, cls, ev), nil
	}

	// consume before dispatch so a re-render cannot re-read the same params
	if err := l.params.ClearParams(ctx, userID); err != nil {
		l.log.Warn().Err(err).Str("user_id", userID).Msg("failed to clear return params")
	}
	return engine.HandleReturn(ctx, cls, ev), nil
}

// FilterReturnParams keeps only the parameters relevant to classification.
func FilterReturnParams(raw map[string]string) map[string]string {
	out := make(map[string]string, len(model.ReturnParamNames))
	for _, k := range model.ReturnParamNames {
		if v, ok := raw[k]; ok && v != "" {
			out[k] = v
		}
	}
	return out
}
