package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/MarketMasterPlus/mm-shopping-cart/internal/domain"
)

// CustomerClient validates customer identifiers against the customer service.
type CustomerClient struct {
	rest *restClient
}

func NewCustomerClient(cfg Config) *CustomerClient {
	return &CustomerClient{rest: newRESTClient("customer", cfg)}
}

type customerRecord struct {
	AddressID int64  `json:"addressid"`
	CPF       string `json:"cpf"`
	Email     string `json:"email"`
	FullName  string `json:"fullname"`
}

// GetCustomer returns ErrNotFound when the service does not know cpf, and an
// error wrapping ErrUnavailable for any other failure.
func (c *CustomerClient) GetCustomer(ctx context.Context, cpf string) (*domain.Customer, error) {
	data, err := c.rest.do(ctx, http.MethodGet, "/customers/"+url.PathEscape(cpf), nil)
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	var rec customerRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: decode customer: %w", ErrUnavailable, err)
	}
	if rec.CPF == "" {
		return nil, fmt.Errorf("customer %q: %w", cpf, ErrNotFound)
	}

	return &domain.Customer{
		CPF:       rec.CPF,
		FullName:  rec.FullName,
		Email:     rec.Email,
		AddressID: rec.AddressID,
	}, nil
}
