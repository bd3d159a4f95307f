package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/MarketMasterPlus/mm-shopping-cart/internal/domain"
	"github.com/MarketMasterPlus/mm-shopping-cart/internal/service"
	"github.com/go-chi/chi/v5"
)

const maxRequestBodySize = 1 << 20 // 1MB

var (
	errInvalidBody = errors.New("invalid request body")
	errInvalidID   = errors.New("invalid id")
)

type ErrorResponse struct {
	Message       string `json:"message"`
	ProductItemID *int64 `json:"productitemid,omitempty"`
}

type CartResponse struct {
	ID          int64          `json:"id"`
	CustomerCPF string         `json:"customercpf"`
	Status      bool           `json:"status"`
	DateCreated time.Time      `json:"datecreated"`
	Total       *float64       `json:"total,omitempty"`
	Items       []ItemResponse `json:"items,omitempty"`
}

type ItemResponse struct {
	ID            int64    `json:"id"`
	CartID        int64    `json:"cartid"`
	ProductItemID int64    `json:"productitemid"`
	Quantity      int      `json:"quantity"`
	Subtotal      *float64 `json:"subtotal,omitempty"`
}

func newCartResponse(c *domain.Cart) CartResponse {
	return CartResponse{
		ID:          c.ID,
		CustomerCPF: c.CustomerCPF,
		Status:      c.Purchased,
		DateCreated: c.DateCreated,
	}
}

func newPricedCartResponse(pc *domain.PricedCart) CartResponse {
	resp := newCartResponse(pc.Cart)
	total := pc.Total.InexactFloat64()
	resp.Total = &total
	resp.Items = newPricedItemResponses(pc.Items)
	return resp
}

func newItemResponse(it domain.CartItem) ItemResponse {
	return ItemResponse{
		ID:            it.ID,
		CartID:        it.CartID,
		ProductItemID: it.ProductItemID,
		Quantity:      it.Quantity,
	}
}

func newPricedItemResponse(pi domain.PricedItem) ItemResponse {
	resp := newItemResponse(pi.CartItem)
	subtotal := pi.Subtotal.InexactFloat64()
	resp.Subtotal = &subtotal
	return resp
}

func newPricedItemResponses(items []domain.PricedItem) []ItemResponse {
	out := make([]ItemResponse, 0, len(items))
	for _, pi := range items {
		out = append(out, newPricedItemResponse(pi))
	}
	return out
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, ErrorResponse{Message: message})
}

func respondItemError(w http.ResponseWriter, status int, message string, productItemID int64) {
	respondJSON(w, status, ErrorResponse{Message: message, ProductItemID: &productItemID})
}

// writeServiceError maps the service error taxonomy onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		stockErr  *service.InsufficientStockError
		updateErr *service.InventoryUpdateFailedError
	)

	switch {
	case errors.Is(err, errInvalidBody), errors.Is(err, errInvalidID), errors.Is(err, service.ErrInvalidQuantity):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrCartNotFound):
		respondError(w, http.StatusNotFound, "Shopping cart not found")
	case errors.Is(err, service.ErrItemNotFound):
		respondError(w, http.StatusNotFound, "Cart item not found")
	case errors.Is(err, service.ErrAlreadyPurchased):
		respondError(w, http.StatusBadRequest, "Cart already purchased")
	case errors.As(err, &stockErr):
		respondItemError(w, http.StatusBadRequest,
			fmt.Sprintf("Insufficient stock for item ID %d", stockErr.ProductItemID), stockErr.ProductItemID)
	case errors.As(err, &updateErr):
		respondItemError(w, http.StatusBadRequest, "Failed to update inventory", updateErr.ProductItemID)
	case errors.Is(err, service.ErrInventoryUnavailable):
		respondError(w, http.StatusServiceUnavailable, "Failed to check inventory")
	case errors.Is(err, service.ErrCustomerInvalid):
		respondError(w, http.StatusNotFound, "No customer found with provided CPF")
	case errors.Is(err, service.ErrCustomerUnavailable):
		respondError(w, http.StatusServiceUnavailable, "Failed to fetch customer details")
	default:
		slog.ErrorContext(r.Context(), "unexpected error", "method", r.Method, "path", r.URL.Path, "error", err)
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}

// decodeJSON rejects unknown fields so only allow-listed keys reach the
// service.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %w", errInvalidBody, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: trailing data", errInvalidBody)
	}
	return nil
}

func idParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, errInvalidID
	}
	return id, nil
}
