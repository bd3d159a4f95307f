package http

import (
	"context"
	"net/http"

	"github.com/MarketMasterPlus/mm-shopping-cart/internal/domain"
)

type Checkouter interface {
	Checkout(ctx context.Context, cartID int64) (*domain.Cart, error)
}

type CheckoutHandler struct {
	engine Checkouter
}

func NewCheckoutHandler(engine Checkouter) *CheckoutHandler {
	return &CheckoutHandler{engine: engine}
}

// Pay finalizes the cart: stock is decremented item by item and the cart is
// marked purchased. The response carries no total.
func (h *CheckoutHandler) Pay(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	cart, err := h.engine.Checkout(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newCartResponse(cart))
}
