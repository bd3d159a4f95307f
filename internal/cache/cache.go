package cache

import (
	"context"
	"errors"

	"github.com/MarketMasterPlus/mm-shopping-cart/internal/domain"
)

// CartCache holds persisted cart state only. Prices and totals are never
// stored here.
//
// Delete invalidates an entry; a Set arriving shortly after it is dropped.
type CartCache interface {
	Get(ctx context.Context, cartID int64) (*domain.Cart, error)
	Set(ctx context.Context, cart *domain.Cart) error
	Delete(ctx context.Context, cartID int64) error
}

var ErrCacheMiss = errors.New("cache miss")

// NoopCache is used when caching is disabled; every Get misses.
type NoopCache struct{}

func (NoopCache) Get(context.Context, int64) (*domain.Cart, error) { return nil, ErrCacheMiss }
func (NoopCache) Set(context.Context, *domain.Cart) error          { return nil }
func (NoopCache) Delete(context.Context, int64) error              { return nil }
