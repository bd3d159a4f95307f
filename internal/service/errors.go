package service

import (
	"errors"
	"fmt"

	"github.com/MarketMasterPlus/mm-shopping-cart/internal/repository"
)

var (
	ErrCartNotFound          = errors.New("cart not found")
	ErrItemNotFound          = errors.New("item not found in cart")
	ErrAlreadyPurchased      = errors.New("cart already purchased")
	ErrInsufficientStock     = errors.New("insufficient stock available")
	ErrInventoryUnavailable  = errors.New("failed to check inventory")
	ErrInventoryUpdateFailed = errors.New("failed to update inventory")
	ErrCustomerInvalid       = errors.New("invalid or non-existent customer")
	ErrCustomerUnavailable   = errors.New("failed to fetch customer details")
	ErrInvalidQuantity       = errors.New("quantity must be a positive integer")
)

// InsufficientStockError names the product item whose stock could not cover
// the requested quantity.
type InsufficientStockError struct {
	ProductItemID int64
	Requested     int
	Available     int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for item ID %d", e.ProductItemID)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// InventoryUpdateFailedError is a failed stock write for one product item.
type InventoryUpdateFailedError struct {
	ProductItemID int64
	Err           error
}

func (e *InventoryUpdateFailedError) Error() string {
	return fmt.Sprintf("failed to update inventory for item ID %d: %v", e.ProductItemID, e.Err)
}

func (e *InventoryUpdateFailedError) Is(target error) bool {
	return target == ErrInventoryUpdateFailed
}

func (e *InventoryUpdateFailedError) Unwrap() error {
	return e.Err
}

// translateRepoErr maps storage sentinels onto the service taxonomy.
func translateRepoErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrCartNotFound):
		return ErrCartNotFound
	case errors.Is(err, repository.ErrItemNotFound):
		return ErrItemNotFound
	case errors.Is(err, repository.ErrCartPurchased):
		return ErrAlreadyPurchased
	default:
		return err
	}
}
