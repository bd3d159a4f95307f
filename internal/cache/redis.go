package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/MarketMasterPlus/mm-shopping-cart/internal/domain"
	"github.com/redis/go-redis/v9"
)

// invalidated is stored in place of a deleted cart. Set never overwrites it,
// so a reader that loaded the cart before a mutation cannot cache the old
// state after that mutation's Delete.
const invalidated = "invalidated"

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{
		client:        client,
		baseTTL:       15 * time.Minute,
		invalidateTTL: 10 * time.Second,
	}
}

type RedisCache struct {
	client        *redis.Client
	baseTTL       time.Duration
	invalidateTTL time.Duration
}

func (r *RedisCache) Get(ctx context.Context, cartID int64) (*domain.Cart, error) {
	data, err := r.client.Get(ctx, cacheKey(cartID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	if string(data) == invalidated {
		return nil, ErrCacheMiss
	}

	var cart domain.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err)
	}

	return &cart, nil
}

func (r *RedisCache) Set(ctx context.Context, cart *domain.Cart) error {
	data, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}

	// jitter spreads expiry so cached carts do not all reload together
	jitter := time.Duration(rand.Intn(5)) * time.Minute
	if err := r.client.SetNX(ctx, cacheKey(cart.ID), data, r.baseTTL+jitter).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisCache) Delete(ctx context.Context, cartID int64) error {
	if err := r.client.Set(ctx, cacheKey(cartID), invalidated, r.invalidateTTL).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}

	return nil
}

func cacheKey(cartID int64) string {
	return fmt.Sprintf("cart:%d", cartID)
}
