package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Cart struct {
	ID          int64      `json:"id" bson:"_id"`
	CustomerCPF string     `json:"customercpf" bson:"customercpf"`
	Purchased   bool       `json:"status" bson:"status"`
	DateCreated time.Time  `json:"datecreated" bson:"datecreated"`
	Items       []CartItem `json:"items" bson:"items"`
}

type CartItem struct {
	ID            int64 `json:"id" bson:"id"`
	CartID        int64 `json:"cartid" bson:"cartid"`
	ProductItemID int64 `json:"productitemid" bson:"productitemid"`
	Quantity      int   `json:"quantity" bson:"quantity"`
}

// State reports the checkout state derived from the purchased flag.
func (c *Cart) State() CartState {
	if c.Purchased {
		return CartStatePurchased
	}
	return CartStateOpen
}

// FindItem returns the line for productItemID, or nil.
func (c *Cart) FindItem(productItemID int64) *CartItem {
	for i := range c.Items {
		if c.Items[i].ProductItemID == productItemID {
			return &c.Items[i]
		}
	}
	return nil
}

// PricedItem is a cart line with its subtotal at current remote prices.
type PricedItem struct {
	CartItem
	Subtotal decimal.Decimal
}

// PricedCart carries derived totals. Nothing in it is persisted.
type PricedCart struct {
	Cart  *Cart
	Items []PricedItem
	Total decimal.Decimal
}

// CartUpdate lists the cart fields a client may change.
type CartUpdate struct {
	CustomerCPF *string
}

func (u CartUpdate) IsEmpty() bool {
	return u.CustomerCPF == nil
}

// CartItemUpdate lists the item fields a client may change.
type CartItemUpdate struct {
	Quantity *int
}

func (u CartItemUpdate) IsEmpty() bool {
	return u.Quantity == nil
}

type CartPurchasedEvent struct {
	EventID     string     `json:"event_id"`
	CartID      int64      `json:"cart_id"`
	CustomerCPF string     `json:"customer_cpf"`
	Items       []CartItem `json:"items"`
	PurchasedAt time.Time  `json:"purchased_at"`
}
