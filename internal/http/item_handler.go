package http

import (
	"errors"
	"net/http"

	"github.com/MarketMasterPlus/mm-shopping-cart/internal/domain"
	"github.com/MarketMasterPlus/mm-shopping-cart/internal/service"
)

type AddItemRequestDTO struct {
	ProductItemID int64 `json:"productitemid"`
	Quantity      int   `json:"quantity"`
}

type UpdateItemRequestDTO struct {
	Quantity *int `json:"quantity"`
}

func (h *CartHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	cartID, err := idParam(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	items, err := h.carts.ListItems(r.Context(), cartID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newPricedItemResponses(items))
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	cartID, err := idParam(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	var req AddItemRequestDTO
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	if req.ProductItemID <= 0 {
		respondError(w, http.StatusBadRequest, "productitemid must be a positive integer")
		return
	}

	item, err := h.carts.AddItem(r.Context(), cartID, req.ProductItemID, req.Quantity)
	if errors.Is(err, service.ErrInsufficientStock) {
		respondItemError(w, http.StatusBadRequest, "Insufficient stock available", req.ProductItemID)
		return
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, newItemResponse(*item))
}

func (h *CartHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	cartID, productItemID, err := itemParams(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	item, err := h.carts.GetItem(r.Context(), cartID, productItemID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newPricedItemResponse(*item))
}

func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	cartID, productItemID, err := itemParams(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	var req UpdateItemRequestDTO
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	item, err := h.carts.UpdateItem(r.Context(), cartID, productItemID, domain.CartItemUpdate{Quantity: req.Quantity})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newPricedItemResponse(*item))
}

func (h *CartHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	cartID, productItemID, err := itemParams(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	if err := h.carts.DeleteItem(r.Context(), cartID, productItemID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func itemParams(r *http.Request) (cartID, productItemID int64, err error) {
	if cartID, err = idParam(r, "id"); err != nil {
		return 0, 0, err
	}
	if productItemID, err = idParam(r, "productItemID"); err != nil {
		return 0, 0, err
	}
	return cartID, productItemID, nil
}
