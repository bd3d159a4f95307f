package domain

import "github.com/shopspring/decimal"

// InventoryItem is the stock record kept by the inventory service for one
// sellable product item.
type InventoryItem struct {
	ID        int64
	ProductID int64
	StoreID   int64
	Price     decimal.Decimal
	Stock     int
}

// WithStock returns a copy of the record with only the stock changed.
func (i InventoryItem) WithStock(stock int) InventoryItem {
	i.Stock = stock
	return i
}

type Customer struct {
	CPF       string
	FullName  string
	Email     string
	AddressID int64
}
