package redis

import (
	"context"
	"time"

	"premium-activation/internal/domain/ports/repository"
)

// Ensure the adapter implements the port interface.
var _ repository.ReturnParamsRepository = (*ReturnParamsRepo)(nil)

// ReturnParamsRepo is the durable navigation state: a hash of return parameters per account.
type ReturnParamsRepo struct {
	client RedisClient
	ttl    time.Duration
}

func NewReturnParamsRepo(client RedisClient, ttl time.Duration) *ReturnParamsRepo {
	return &ReturnParamsRepo{client: client, ttl: ttl}
}

func returnParamsKey(userID string) string { return "premium:return:" + userID }

// PutParams replaces whatever was attached before.
func (r *ReturnParamsRepo) PutParams(ctx context.Context, userID string, params map[string]string) error {
	key := returnParamsKey(userID)
	if err := r.client.Del(ctx, key); err != nil {
		return err
	}
	if len(params) == 0 {
		return nil
	}
	if err := r.client.HSet(ctx, key, params); err != nil {
		return err
	}
	return r.client.Expire(ctx, key, r.ttl)
}

func (r *ReturnParamsRepo) GetParams(ctx context.Context, userID string) (map[string]string, error) {
	m, err := r.client.HGetAll(ctx, returnParamsKey(userID))
	if err != nil {
		return nil, err
	}
	if m == nil {
		m = map[string]string{}
	}
	return m, nil
}

func (r *ReturnParamsRepo) ClearParams(ctx context.Context, userID string) error {
	return r.client.Del(ctx, returnParamsKey(userID))
}
