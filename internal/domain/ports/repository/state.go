package repository

import (
	"context"

	"premium-activation/internal/domain/model"
)

// EngineSnapshotRepository persists reconciliation engine state across restarts.
type EngineSnapshotRepository interface {
	SaveSnapshot(ctx context.Context, snap *model.EngineSnapshot) error
	// GetSnapshot returns domain.ErrNotFound when nothing was saved.
	GetSnapshot(ctx context.Context, userID string) (*model.EngineSnapshot, error)
	DeleteSnapshot(ctx context.Context, userID string) error
}

// ReturnParamsRepository is the durable navigation state carrying return
// notification parameters until they are consumed.
type ReturnParamsRepository interface {
	PutParams(ctx context.Context, userID string, params map[string]string) error
	// GetParams returns an empty map when nothing is attached.
	GetParams(ctx context.Context, userID string) (map[string]string, error)
	ClearParams(ctx context.Context, userID string) error
}

// PremiumCacheRepository is the local cache of the verified premium state.
type PremiumCacheRepository interface {
	SavePremium(ctx context.Context, st *model.AccountPremiumState) error
	GetPremium(ctx context.Context, userID string) (*model.AccountPremiumState, error)
}
