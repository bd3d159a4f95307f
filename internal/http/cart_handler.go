package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/MarketMasterPlus/mm-shopping-cart/internal/domain"
	"github.com/MarketMasterPlus/mm-shopping-cart/internal/service"
)

// CartService is the cart and item surface the handlers drive.
type CartService interface {
	ListCarts(ctx context.Context, customerCPF string) ([]*domain.PricedCart, error)
	CreateCart(ctx context.Context, customerCPF string) (*domain.Cart, error)
	GetCart(ctx context.Context, id int64) (*domain.PricedCart, error)
	UpdateCart(ctx context.Context, id int64, upd domain.CartUpdate) (*domain.Cart, error)
	DeleteCart(ctx context.Context, id int64) error
	ListItems(ctx context.Context, cartID int64) ([]domain.PricedItem, error)
	GetItem(ctx context.Context, cartID, productItemID int64) (*domain.PricedItem, error)
	AddItem(ctx context.Context, cartID, productItemID int64, quantity int) (*domain.CartItem, error)
	UpdateItem(ctx context.Context, cartID, productItemID int64, upd domain.CartItemUpdate) (*domain.PricedItem, error)
	DeleteItem(ctx context.Context, cartID, productItemID int64) error
}

type CartHandler struct {
	carts CartService
}

func NewCartHandler(carts CartService) *CartHandler {
	return &CartHandler{carts: carts}
}

type CreateCartRequestDTO struct {
	CustomerCPF string `json:"customercpf"`
}

type UpdateCartRequestDTO struct {
	CustomerCPF *string `json:"customercpf"`
}

func (h *CartHandler) ListCarts(w http.ResponseWriter, r *http.Request) {
	carts, err := h.carts.ListCarts(r.Context(), r.URL.Query().Get("customercpf"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	resp := make([]CartResponse, 0, len(carts))
	for _, c := range carts {
		resp = append(resp, newPricedCartResponse(c))
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *CartHandler) CreateCart(w http.ResponseWriter, r *http.Request) {
	var req CreateCartRequestDTO
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	cart, err := h.carts.CreateCart(r.Context(), req.CustomerCPF)
	if errors.Is(err, service.ErrCustomerUnavailable) {
		respondError(w, http.StatusServiceUnavailable, "Failed to validate CPF with customer service")
		return
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, newCartResponse(cart))
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	cart, err := h.carts.GetCart(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newPricedCartResponse(cart))
}

// UpdateCart returns the persisted cart without a total.
func (h *CartHandler) UpdateCart(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	var req UpdateCartRequestDTO
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	cart, err := h.carts.UpdateCart(r.Context(), id, domain.CartUpdate{CustomerCPF: req.CustomerCPF})
	if errors.Is(err, service.ErrCustomerInvalid) || errors.Is(err, service.ErrCustomerUnavailable) {
		respondError(w, http.StatusBadRequest, "Invalid or non-existent CPF provided")
		return
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newCartResponse(cart))
}

func (h *CartHandler) DeleteCart(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	if err := h.carts.DeleteCart(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
