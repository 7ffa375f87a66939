package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/qatech/internal/cart/domain"
)

const redisKeyPrefix = "cart:"

type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Load(ctx context.Context, key string) (domain.Cart, error) {
	cart := domain.Cart{SessionKey: key}
	raw, err := s.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return cart, nil
		}
		return cart, err
	}
	if err := json.Unmarshal(raw, &cart); err != nil {
		return domain.Cart{SessionKey: key}, err
	}
	cart.SessionKey = key
	return cart, nil
}

func (s *RedisStore) Save(ctx context.Context, cart domain.Cart, ttl time.Duration) error {
	raw, err := json.Marshal(cart)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, redisKeyPrefix+cart.SessionKey, raw, ttl).Err()
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, redisKeyPrefix+key).Err()
}
