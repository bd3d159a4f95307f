package service

import (
	"context"
	"log/slog"

	"github.com/MarketMasterPlus/mm-shopping-cart/internal/domain"
	"github.com/MarketMasterPlus/mm-shopping-cart/internal/metrics"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// PricingCalculator derives subtotals and totals from current remote prices.
// Every call re-fetches; a failed lookup counts as a zero price.
type PricingCalculator struct {
	prices  PriceSource
	limit   int
	metrics *metrics.Metrics
}

func NewPricingCalculator(prices PriceSource, concurrency int, m *metrics.Metrics) *PricingCalculator {
	if concurrency <= 0 {
		concurrency = 1
	}
	if m == nil {
		m = metrics.NewNop()
	}
	return &PricingCalculator{prices: prices, limit: concurrency, metrics: m}
}

func (p *PricingCalculator) Price(ctx context.Context, items []domain.CartItem) ([]domain.PricedItem, decimal.Decimal) {
	priced := make([]domain.PricedItem, len(items))

	var g errgroup.Group
	g.SetLimit(p.limit)
	for i, item := range items {
		g.Go(func() error {
			price := p.lookup(ctx, item.ProductItemID)
			priced[i] = domain.PricedItem{
				CartItem: item,
				Subtotal: price.Mul(decimal.NewFromInt(int64(item.Quantity))),
			}
			return nil
		})
	}
	_ = g.Wait()

	total := decimal.Zero
	for _, pi := range priced {
		total = total.Add(pi.Subtotal)
	}
	return priced, total
}

func (p *PricingCalculator) Total(ctx context.Context, items []domain.CartItem) decimal.Decimal {
	_, total := p.Price(ctx, items)
	return total
}

func (p *PricingCalculator) PriceItem(ctx context.Context, item domain.CartItem) domain.PricedItem {
	priced, _ := p.Price(ctx, []domain.CartItem{item})
	return priced[0]
}

func (p *PricingCalculator) PriceCart(ctx context.Context, cart *domain.Cart) *domain.PricedCart {
	items, total := p.Price(ctx, cart.Items)
	return &domain.PricedCart{Cart: cart, Items: items, Total: total}
}

func (p *PricingCalculator) lookup(ctx context.Context, productItemID int64) decimal.Decimal {
	price, err := p.prices.GetPrice(ctx, productItemID)
	if err != nil {
		p.metrics.PriceFallbacks.Inc()
		slog.WarnContext(ctx, "price lookup failed, counting item as zero",
			"product_item_id", productItemID, "error", err)
		return decimal.Zero
	}
	return price
}
