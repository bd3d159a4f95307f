package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/MarketMasterPlus/mm-shopping-cart/internal/domain"
	"github.com/shopspring/decimal"
)

type InventoryConfig struct {
	Config
	// PathPrefix is prepended to /{productItemID}, e.g. "/mm-inventory".
	PathPrefix string
}

// InventoryClient talks to the inventory service's per-item stock endpoints.
type InventoryClient struct {
	rest   *restClient
	prefix string
}

func NewInventoryClient(cfg InventoryConfig) *InventoryClient {
	prefix := "/" + strings.Trim(cfg.PathPrefix, "/")
	if prefix == "/" {
		prefix = ""
	}
	return &InventoryClient{
		rest:   newRESTClient("inventory", cfg.Config),
		prefix: prefix,
	}
}

type inventoryRecord struct {
	ID        int64           `json:"id,omitempty"`
	ProductID int64           `json:"productid"`
	StoreID   int64           `json:"storeid"`
	Price     decimal.Decimal `json:"price"`
	Stock     int             `json:"stock"`
}

// inventoryUpdate is the PUT body. Price goes out as a bare JSON number.
type inventoryUpdate struct {
	Stock     int         `json:"stock"`
	Price     json.Number `json:"price"`
	ProductID int64       `json:"productid"`
	StoreID   int64       `json:"storeid"`
}

func (c *InventoryClient) itemPath(productItemID int64) string {
	return fmt.Sprintf("%s/%d", c.prefix, productItemID)
}

func (c *InventoryClient) GetItem(ctx context.Context, productItemID int64) (*domain.InventoryItem, error) {
	data, err := c.rest.do(ctx, http.MethodGet, c.itemPath(productItemID), nil)
	if err != nil {
		return nil, err
	}

	var rec inventoryRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode inventory item %d: %w", productItemID, err)
	}

	id := rec.ID
	if id == 0 {
		id = productItemID
	}
	return &domain.InventoryItem{
		ID:        id,
		ProductID: rec.ProductID,
		StoreID:   rec.StoreID,
		Price:     rec.Price,
		Stock:     rec.Stock,
	}, nil
}

// UpdateItem writes the full record back. Callers change only Stock.
func (c *InventoryClient) UpdateItem(ctx context.Context, item domain.InventoryItem) error {
	body := inventoryUpdate{
		Stock:     item.Stock,
		Price:     json.Number(item.Price.String()),
		ProductID: item.ProductID,
		StoreID:   item.StoreID,
	}
	_, err := c.rest.do(ctx, http.MethodPut, c.itemPath(item.ID), body)
	return err
}

// GetPrice is the lookup used by the pricing calculator.
func (c *InventoryClient) GetPrice(ctx context.Context, productItemID int64) (decimal.Decimal, error) {
	item, err := c.GetItem(ctx, productItemID)
	if err != nil {
		return decimal.Zero, err
	}
	return item.Price, nil
}
