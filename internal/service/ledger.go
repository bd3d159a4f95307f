package service

import (
	"context"
	"log/slog"

	"github.com/MarketMasterPlus/mm-shopping-cart/internal/domain"
)

// Decrement is one stock write applied by a checkout.
type Decrement struct {
	ProductItemID int64
	Quantity      int
	Previous      domain.InventoryItem
}

// StockLedger observes the decrements of a single checkout. The engine calls
// Record after every successful stock write, then exactly one of Commit or
// Abort.
type StockLedger interface {
	Record(d Decrement)
	Commit(ctx context.Context)
	Abort(ctx context.Context, cause error)
}

type LedgerFactory func(cartID int64) StockLedger

// NoCompensation leaves decrements from an aborted checkout in place and
// only reports them.
func NoCompensation() LedgerFactory {
	return func(cartID int64) StockLedger {
		return &noCompensation{cartID: cartID}
	}
}

type noCompensation struct {
	cartID  int64
	applied []Decrement
}

func (l *noCompensation) Record(d Decrement) {
	l.applied = append(l.applied, d)
}

func (l *noCompensation) Commit(context.Context) {}

func (l *noCompensation) Abort(ctx context.Context, cause error) {
	if len(l.applied) == 0 {
		return
	}
	slog.WarnContext(ctx, "checkout aborted after stock was decremented; decrements left in place",
		"cart_id", l.cartID,
		"product_item_ids", productItemIDs(l.applied),
		"cause", cause)
}

// Compensating re-credits recorded decrements, newest first, when a
// checkout aborts. Each credit re-reads the item and adds the quantity back,
// so concurrent stock changes are kept. Failures are logged and skipped.
func Compensating(inventory InventoryClient) LedgerFactory {
	return func(cartID int64) StockLedger {
		return &compensatingLedger{cartID: cartID, inventory: inventory}
	}
}

type compensatingLedger struct {
	cartID    int64
	inventory InventoryClient
	applied   []Decrement
}

func (l *compensatingLedger) Record(d Decrement) {
	l.applied = append(l.applied, d)
}

func (l *compensatingLedger) Commit(context.Context) {
	l.applied = nil
}

func (l *compensatingLedger) Abort(ctx context.Context, cause error) {
	// the request may already be cancelled; credits must still go out
	ctx = context.WithoutCancel(ctx)

	for i := len(l.applied) - 1; i >= 0; i-- {
		d := l.applied[i]

		current, err := l.inventory.GetItem(ctx, d.ProductItemID)
		if err != nil {
			slog.ErrorContext(ctx, "compensation read failed, stock not restored",
				"cart_id", l.cartID, "product_item_id", d.ProductItemID, "quantity", d.Quantity, "error", err)
			continue
		}

		restored := current.WithStock(current.Stock + d.Quantity)
		restored.ID = d.ProductItemID
		if err := l.inventory.UpdateItem(ctx, restored); err != nil {
			slog.ErrorContext(ctx, "compensation write failed, stock not restored",
				"cart_id", l.cartID, "product_item_id", d.ProductItemID, "quantity", d.Quantity, "error", err)
			continue
		}

		slog.InfoContext(ctx, "stock restored after aborted checkout",
			"cart_id", l.cartID, "product_item_id", d.ProductItemID, "quantity", d.Quantity, "cause", cause)
	}
	l.applied = nil
}

func productItemIDs(ds []Decrement) []int64 {
	ids := make([]int64, len(ds))
	for i, d := range ds {
		ids[i] = d.ProductItemID
	}
	return ids
}
