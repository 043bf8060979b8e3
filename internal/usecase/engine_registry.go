// File: internal/usecase/engine_registry.go
package usecase

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"premium-activation/internal/domain"
)

// EngineRegistry owns exactly one engine per account. Engines are restored from the
// snapshot repository on first use.
type EngineRegistry struct {
	deps EngineDeps
	log  *zerolog.Logger

	mu      sync.Mutex
	engines map[string]*ReconciliationEngine
}

func NewEngineRegistry(deps EngineDeps, logger *zerolog.Logger) *EngineRegistry {
	return &EngineRegistry{
		deps:    deps,
		log:     logger,
		engines: make(map[string]*ReconciliationEngine),
	}
}

func (r *EngineRegistry) Get(ctx context.Context, userID string) (*ReconciliationEngine, error) {
	if userID == "" {
		return nil, domain.ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.engines[userID]; ok {
		return e, nil
	}

	e := NewReconciliationEngine(userID, r.deps, r.log)
	if r.deps.Snapshots != nil {
		snap, err := r.deps.Snapshots.GetSnapshot(ctx, userID)
		switch {
		case err == nil:
			e.restore(ctx, snap)
		case errors.Is(err, domain.ErrNotFound):
		default:
			return nil, err
		}
	}
	r.engines[userID] = e
	return e, nil
}

// Lookup returns the engine only if it is already loaded.
func (r *EngineRegistry) Lookup(userID string) (*ReconciliationEngine, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.engines[userID]
	return e, ok
}

// Loaded lists the user ids of loaded engines in sorted order.
func (r *EngineRegistry) Loaded() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.engines))
	for id := range r.engines {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
