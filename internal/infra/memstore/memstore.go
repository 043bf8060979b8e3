// Package memstore holds process-local stand-ins for the Redis repositories.
// State does not survive a restart.
package memstore

import (
	"context"
	"sync"
	"time"

	"premium-activation/internal/domain"
	"premium-activation/internal/domain/model"
	"premium-activation/internal/domain/ports/repository"
	"premium-activation/internal/infra/metrics"
)

var (
	_ repository.EngineSnapshotRepository = (*Store)(nil)
	_ repository.ReturnParamsRepository   = (*Store)(nil)
	_ repository.PremiumCacheRepository   = (*Store)(nil)
)

type Store struct {
	mu        sync.Mutex
	snapshots map[string]model.EngineSnapshot
	params    map[string]map[string]string
	premium   map[string]model.AccountPremiumState
}

func New() *Store {
	return &Store{
		snapshots: make(map[string]model.EngineSnapshot),
		params:    make(map[string]map[string]string),
		premium:   make(map[string]model.AccountPremiumState),
	}
}

func (s *Store) SaveSnapshot(ctx context.Context, snap *model.EngineSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *snap
	cp.ConsumedRefs = append([]string(nil), snap.ConsumedRefs...)
	cp.PendingRefs = append([]string(nil), snap.PendingRefs...)
	s.snapshots[snap.UserID] = cp
	return nil
}

func (s *Store) GetSnapshot(ctx context.Context, userID string) (*model.EngineSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.snapshots[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &snap, nil
}

func (s *Store) DeleteSnapshot(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snapshots, userID)
	return nil
}

func (s *Store) PutParams(ctx context.Context, userID string, params map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make(map[string]string, len(params))
	for k, v := range params {
		cp[k] = v
	}
	s.params[userID] = cp
	return nil
}

func (s *Store) GetParams(ctx context.Context, userID string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.params[userID]))
	for k, v := range s.params[userID] {
		out[k] = v
	}
	return out, nil
}

func (s *Store) ClearParams(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.params, userID)
	return nil
}

func (s *Store) SavePremium(ctx context.Context, st *model.AccountPremiumState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.premium[st.UserID] = *st
	return nil
}

func (s *Store) GetPremium(ctx context.Context, userID string) (*model.AccountPremiumState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.premium[userID]
	if !ok {
		metrics.IncCacheRequest("premium", "miss")
		return nil, domain.ErrNotFound
	}
	metrics.IncCacheRequest("premium", "hit")
	return &st, nil
}

// RateLimiter is a fixed-window counter per key.
type RateLimiter struct {
	mu      sync.Mutex
	now     func() time.Time
	windows map[string]window
}

type window struct {
	start time.Time
	count int
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{now: time.Now, windows: make(map[string]window)}
}

func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, d time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	w := r.windows[key]
	if w.start.IsZero() || now.Sub(w.start) >= d {
		w = window{start: now}
	}
	w.count++
	r.windows[key] = w
	return w.count <= limit, nil
}
