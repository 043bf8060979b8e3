package redis

import (
	"context"
	"encoding/json"
	"time"

	"premium-activation/internal/domain"
	"premium-activation/internal/domain/model"
	"premium-activation/internal/domain/ports/repository"
	"premium-activation/internal/infra/metrics"
)

var _ repository.PremiumCacheRepository = (*PremiumCache)(nil)

// PremiumCache is the local copy of the last verified premium state.
type PremiumCache struct {
	client RedisClient
	ttl    time.Duration
}

func NewPremiumCache(client RedisClient, ttl time.Duration) *PremiumCache {
	return &PremiumCache{client: client, ttl: ttl}
}

func premiumKey(userID string) string { return "premium:account:" + userID }

func (c *PremiumCache) SavePremium(ctx context.Context, st *model.AccountPremiumState) error {
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, premiumKey(st.UserID), data, c.ttl)
}

func (c *PremiumCache) GetPremium(ctx context.Context, userID string) (*model.AccountPremiumState, error) {
	data, err := c.client.Get(ctx, premiumKey(userID))
	if err != nil {
		if IsNil(err) {
			metrics.IncCacheRequest("premium", "miss")
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	metrics.IncCacheRequest("premium", "hit")

	var st model.AccountPremiumState
	if err := json.Unmarshal([]byte(data), &st); err != nil {
		return nil, err
	}
	return &st, nil
}
