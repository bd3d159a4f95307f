package repository

import (
	"context"
	"errors"

	"github.com/MarketMasterPlus/mm-shopping-cart/internal/domain"
)

var (
	ErrCartNotFound  = errors.New("cart not found")
	ErrItemNotFound  = errors.New("item not found in cart")
	ErrItemExists    = errors.New("item already exists in cart")
	ErrCartPurchased = errors.New("cart already purchased")
)

// CartRepository defines the interface for cart data operations.
// Consumers define this interface, not the storage implementations.
//
// GetCart and ListCarts return carts with Items loaded in item id order.
type CartRepository interface {
	ListCarts(ctx context.Context, customerCPF string) ([]*domain.Cart, error)
	CreateCart(ctx context.Context, customerCPF string) (*domain.Cart, error)
	GetCart(ctx context.Context, id int64) (*domain.Cart, error)
	UpdateCart(ctx context.Context, id int64, upd domain.CartUpdate) (*domain.Cart, error)
	DeleteCart(ctx context.Context, id int64) error
	// MarkPurchased flips the cart to purchased only if it is still open and
	// returns ErrCartPurchased otherwise.
	MarkPurchased(ctx context.Context, id int64) (*domain.Cart, error)

	GetItem(ctx context.Context, cartID, productItemID int64) (*domain.CartItem, error)
	// Item writes apply only while the cart is open. They return
	// ErrCartNotFound for a missing cart and ErrCartPurchased once it has
	// been purchased.
	CreateItem(ctx context.Context, cartID, productItemID int64, quantity int) (*domain.CartItem, error)
	UpdateItemQuantity(ctx context.Context, cartID, productItemID int64, quantity int) (*domain.CartItem, error)
	DeleteItem(ctx context.Context, cartID, productItemID int64) error

	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}
