package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MarketMasterPlus/mm-shopping-cart/internal/cache"
	"github.com/MarketMasterPlus/mm-shopping-cart/internal/domain"
	"github.com/MarketMasterPlus/mm-shopping-cart/internal/metrics"
	"github.com/MarketMasterPlus/mm-shopping-cart/internal/repository"
	"github.com/google/uuid"
)

const commitTimeout = 5 * time.Second

// CheckoutEngine moves a cart from OPEN to PURCHASED while decrementing the
// remote stock of every item.
//
// Items are processed one at a time in store order and the first failure
// aborts the checkout. Stock already decremented for earlier items is handed
// to the StockLedger; the default ledger does not restore it. Two checkouts
// of different carts sharing a product item can both pass the stock check
// before either writes.
type CheckoutEngine struct {
	repo      repository.CartRepository
	cache     cache.CartCache
	inventory InventoryClient
	ledgers   LedgerFactory
	events    EventPublisher
	metrics   *metrics.Metrics
	now       func() time.Time
}

type CheckoutOption func(*CheckoutEngine)

func WithLedgerFactory(f LedgerFactory) CheckoutOption {
	return func(e *CheckoutEngine) { e.ledgers = f }
}

func WithEventPublisher(p EventPublisher) CheckoutOption {
	return func(e *CheckoutEngine) { e.events = p }
}

func WithCheckoutMetrics(m *metrics.Metrics) CheckoutOption {
	return func(e *CheckoutEngine) { e.metrics = m }
}

func NewCheckoutEngine(repo repository.CartRepository, c cache.CartCache, inventory InventoryClient, opts ...CheckoutOption) *CheckoutEngine {
	e := &CheckoutEngine{
		repo:      repo,
		cache:     c,
		inventory: inventory,
		ledgers:   NoCompensation(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.cache == nil {
		e.cache = cache.NoopCache{}
	}
	if e.metrics == nil {
		e.metrics = metrics.NewNop()
	}
	return e
}

func (e *CheckoutEngine) Checkout(ctx context.Context, cartID int64) (_ *domain.Cart, err error) {
	start := e.now()
	defer func() {
		e.metrics.CheckoutDuration.Observe(e.now().Sub(start).Seconds())
		e.metrics.Checkouts.WithLabelValues(outcome(err)).Inc()
	}()

	cart, err := e.repo.GetCart(ctx, cartID)
	if err != nil {
		return nil, translateRepoErr(err)
	}
	if !domain.CanTransitionTo(cart.State(), domain.CartStatePurchased) {
		return nil, ErrAlreadyPurchased
	}

	ledger := e.ledgers(cart.ID)
	for _, item := range cart.Items {
		if err := e.decrement(ctx, ledger, item); err != nil {
			slog.WarnContext(ctx, "checkout aborted",
				"cart_id", cart.ID, "product_item_id", item.ProductItemID, "error", err)
			ledger.Abort(ctx, err)
			return nil, err
		}
	}

	// conditional on the cart still being open, so only one concurrent
	// checkout of the same cart can win. Stock is already decremented, so
	// the commit does not follow the caller's cancellation.
	commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), commitTimeout)
	purchased, err := e.repo.MarkPurchased(commitCtx, cart.ID)
	cancel()
	if err != nil {
		err = translateRepoErr(err)
		ledger.Abort(ctx, err)
		return nil, err
	}
	ledger.Commit(ctx)

	e.invalidate(ctx, cart.ID)
	e.publish(ctx, purchased)

	slog.InfoContext(ctx, "cart purchased", "cart_id", purchased.ID, "items", len(purchased.Items))
	return purchased, nil
}

func (e *CheckoutEngine) decrement(ctx context.Context, ledger StockLedger, item domain.CartItem) error {
	stock, err := e.inventory.GetItem(ctx, item.ProductItemID)
	if err != nil {
		return fmt.Errorf("%w: item %d: %w", ErrInventoryUnavailable, item.ProductItemID, err)
	}

	if stock.Stock < item.Quantity {
		return &InsufficientStockError{
			ProductItemID: item.ProductItemID,
			Requested:     item.Quantity,
			Available:     stock.Stock,
		}
	}

	updated := stock.WithStock(stock.Stock - item.Quantity)
	updated.ID = item.ProductItemID
	if err := e.inventory.UpdateItem(ctx, updated); err != nil {
		return &InventoryUpdateFailedError{ProductItemID: item.ProductItemID, Err: err}
	}

	ledger.Record(Decrement{
		ProductItemID: item.ProductItemID,
		Quantity:      item.Quantity,
		Previous:      *stock,
	})
	return nil
}

func (e *CheckoutEngine) invalidate(ctx context.Context, cartID int64) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	if err := e.cache.Delete(ctx, cartID); err != nil {
		slog.WarnContext(ctx, "cache invalidate error", "cart_id", cartID, "error", err)
	}
}

// publish is best effort: the purchase is already persisted.
func (e *CheckoutEngine) publish(ctx context.Context, cart *domain.Cart) {
	if e.events == nil {
		return
	}

	event := domain.CartPurchasedEvent{
		EventID:     uuid.NewString(),
		CartID:      cart.ID,
		CustomerCPF: cart.CustomerCPF,
		Items:       cart.Items,
		PurchasedAt: e.now().UTC(),
	}
	if err := e.events.PublishCartPurchased(context.WithoutCancel(ctx), event); err != nil {
		slog.ErrorContext(ctx, "failed to publish cart purchased event", "cart_id", cart.ID, "error", err)
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrCartNotFound):
		return "not_found"
	case errors.Is(err, ErrAlreadyPurchased):
		return "already_purchased"
	case errors.Is(err, ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, ErrInventoryUnavailable):
		return "inventory_unavailable"
	case errors.Is(err, ErrInventoryUpdateFailed):
		return "inventory_update_failed"
	default:
		return "error"
	}
}
