package redis

import (
	"context"
	"encoding/json"
	"time"

	"premium-activation/internal/domain"
	"premium-activation/internal/domain/model"
	"premium-activation/internal/domain/ports/repository"
)

var _ repository.EngineSnapshotRepository = (*SnapshotRepo)(nil)

// SnapshotRepo keeps the last snapshot of every reconciliation engine.
type SnapshotRepo struct {
	client RedisClient
	ttl    time.Duration
}

func NewSnapshotRepo(client RedisClient, ttl time.Duration) *SnapshotRepo {
	return &SnapshotRepo{client: client, ttl: ttl}
}

func snapshotKey(userID string) string { return "premium:engine:" + userID }

func (s *SnapshotRepo) SaveSnapshot(ctx context.Context, snap *model.EngineSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	ttl := s.ttl
	if snap.State.HoldsAttempt() {
		// an owed activation must outlive the cache ttl
		ttl = 0
	}
	return s.client.Set(ctx, snapshotKey(snap.UserID), data, ttl)
}

func (s *SnapshotRepo) GetSnapshot(ctx context.Context, userID string) (*model.EngineSnapshot, error) {
	data, err := s.client.Get(ctx, snapshotKey(userID))
	if err != nil {
		if IsNil(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	var snap model.EngineSnapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (s *SnapshotRepo) DeleteSnapshot(ctx context.Context, userID string) error {
	return s.client.Del(ctx, snapshotKey(userID))
}
