package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/booklib/internal/model"
)

const stateKeyPrefix = "oauth_state:"

// ErrStateCollision は生成したstateが既に保存済みだったことを示す。
var ErrStateCollision = errors.New("oauth state already exists")

// RedisStateStore はOAuthのstateをRedisに保存する。
// stateはTTL付きで保存され、Redeemで一度だけ取り出せる。
type RedisStateStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisStateStore はRedisStateStoreを生成する。
func NewRedisStateStore(rdb *redis.Client, ttl time.Duration) *RedisStateStore {
	return &RedisStateStore{rdb: rdb, ttl: ttl}
}

// Save はstateを保存する。同じstateが既に存在する場合はErrStateCollisionを返す。
func (s *RedisStateStore) Save(ctx context.Context, state string) error {
	ok, err := s.rdb.SetNX(ctx, stateKeyPrefix+state, "1", s.ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to store oauth state: %w: %w", model.ErrStoreUnavailable, err)
	}
	if !ok {
		return ErrStateCollision
	}
	return nil
}

// Redeem はstateを取り出して削除する。存在しない・期限切れの場合はfalseを返す。
func (s *RedisStateStore) Redeem(ctx context.Context, state string) (bool, error) {
	if state == "" {
		return false, nil
	}
	_, err := s.rdb.GetDel(ctx, stateKeyPrefix+state).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to redeem oauth state: %w: %w", model.ErrStoreUnavailable, err)
	}
	return true, nil
}

// compile-time interface check
var _ StateStore = (*RedisStateStore)(nil)
