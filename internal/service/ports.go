package service

import (
	"context"

	"github.com/MarketMasterPlus/mm-shopping-cart/internal/domain"
	"github.com/shopspring/decimal"
)

type InventoryClient interface {
	GetItem(ctx context.Context, productItemID int64) (*domain.InventoryItem, error)
	UpdateItem(ctx context.Context, item domain.InventoryItem) error
}

type PriceSource interface {
	GetPrice(ctx context.Context, productItemID int64) (decimal.Decimal, error)
}

type CustomerClient interface {
	GetCustomer(ctx context.Context, cpf string) (*domain.Customer, error)
}

type EventPublisher interface {
	PublishCartPurchased(ctx context.Context, event domain.CartPurchasedEvent) error
}
