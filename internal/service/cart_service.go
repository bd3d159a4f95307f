package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/MarketMasterPlus/mm-shopping-cart/internal/cache"
	"github.com/MarketMasterPlus/mm-shopping-cart/internal/client"
	"github.com/MarketMasterPlus/mm-shopping-cart/internal/domain"
	"github.com/MarketMasterPlus/mm-shopping-cart/internal/repository"
	"golang.org/x/sync/singleflight"
)

// addItemAttempts bounds the create/merge retry when two add-item calls race
// to create the same line.
const addItemAttempts = 2

type CartService struct {
	repo      repository.CartRepository
	cache     cache.CartCache
	inventory InventoryClient
	customers CustomerClient
	pricing   *PricingCalculator
	sfg       singleflight.Group // Prevents cache stampede
}

func NewCartService(
	repo repository.CartRepository,
	c cache.CartCache,
	inventory InventoryClient,
	customers CustomerClient,
	pricing *PricingCalculator,
) *CartService {
	if c == nil {
		c = cache.NoopCache{}
	}
	return &CartService{
		repo:      repo,
		cache:     c,
		inventory: inventory,
		customers: customers,
		pricing:   pricing,
	}
}

// ListCarts returns every cart, or only those of customerCPF once the
// customer service confirms it.
func (s *CartService) ListCarts(ctx context.Context, customerCPF string) ([]*domain.PricedCart, error) {
	customerCPF = strings.TrimSpace(customerCPF)
	if customerCPF != "" {
		customer, err := s.validateCustomer(ctx, customerCPF)
		if err != nil {
			return nil, err
		}
		customerCPF = customer.CPF
	}

	carts, err := s.repo.ListCarts(ctx, customerCPF)
	if err != nil {
		return nil, fmt.Errorf("list carts: %w", err)
	}

	priced := make([]*domain.PricedCart, 0, len(carts))
	for _, cart := range carts {
		priced = append(priced, s.pricing.PriceCart(ctx, cart))
	}
	return priced, nil
}

func (s *CartService) CreateCart(ctx context.Context, customerCPF string) (*domain.Cart, error) {
	customer, err := s.validateCustomer(ctx, customerCPF)
	if err != nil {
		return nil, err
	}

	cart, err := s.repo.CreateCart(ctx, customer.CPF)
	if err != nil {
		return nil, fmt.Errorf("create cart: %w", err)
	}
	slog.InfoContext(ctx, "cart created", "cart_id", cart.ID)
	return cart, nil
}

func (s *CartService) GetCart(ctx context.Context, id int64) (*domain.PricedCart, error) {
	cart, err := s.loadCart(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.pricing.PriceCart(ctx, cart), nil
}

// UpdateCart applies the allow-listed fields of upd. The result carries no
// total.
func (s *CartService) UpdateCart(ctx context.Context, id int64, upd domain.CartUpdate) (*domain.Cart, error) {
	if upd.CustomerCPF != nil {
		customer, err := s.validateCustomer(ctx, *upd.CustomerCPF)
		if err != nil {
			return nil, err
		}
		upd.CustomerCPF = &customer.CPF
	}

	cart, err := s.repo.UpdateCart(ctx, id, upd)
	if err != nil {
		return nil, translateRepoErr(err)
	}

	s.invalidateCache(ctx, id)
	return cart, nil
}

func (s *CartService) DeleteCart(ctx context.Context, id int64) error {
	if err := s.repo.DeleteCart(ctx, id); err != nil {
		return translateRepoErr(err)
	}

	s.invalidateCache(ctx, id)
	return nil
}

func (s *CartService) ListItems(ctx context.Context, cartID int64) ([]domain.PricedItem, error) {
	cart, err := s.loadCart(ctx, cartID)
	if err != nil {
		return nil, err
	}
	items, _ := s.pricing.Price(ctx, cart.Items)
	return items, nil
}

func (s *CartService) GetItem(ctx context.Context, cartID, productItemID int64) (*domain.PricedItem, error) {
	cart, err := s.loadCart(ctx, cartID)
	if err != nil {
		return nil, err
	}

	item := cart.FindItem(productItemID)
	if item == nil {
		return nil, ErrItemNotFound
	}
	priced := s.pricing.PriceItem(ctx, *item)
	return &priced, nil
}

// AddItem adds quantity of productItemID to the cart. An existing line is
// merged and the merged quantity must fit current stock; on rejection the
// existing line is left as it was.
func (s *CartService) AddItem(ctx context.Context, cartID, productItemID int64, quantity int) (*domain.CartItem, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	if err := s.requireOpen(ctx, cartID); err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt < addItemAttempts; attempt++ {
		item, err := s.addOrMerge(ctx, cartID, productItemID, quantity)
		if errors.Is(err, repository.ErrItemExists) {
			lastErr = err
			continue
		}
		if err != nil {
			return nil, err
		}

		s.invalidateCache(ctx, cartID)
		return item, nil
	}
	return nil, fmt.Errorf("add item %d to cart %d: %w", productItemID, cartID, lastErr)
}

func (s *CartService) addOrMerge(ctx context.Context, cartID, productItemID int64, quantity int) (*domain.CartItem, error) {
	existing, err := s.repo.GetItem(ctx, cartID, productItemID)
	if err != nil && !errors.Is(err, repository.ErrItemNotFound) {
		return nil, fmt.Errorf("load cart item: %w", err)
	}

	required := quantity
	if existing != nil {
		required += existing.Quantity
	}

	stock, err := s.inventory.GetItem(ctx, productItemID)
	if err != nil {
		return nil, fmt.Errorf("%w: item %d: %w", ErrInventoryUnavailable, productItemID, err)
	}
	if stock.Stock < required {
		return nil, &InsufficientStockError{
			ProductItemID: productItemID,
			Requested:     required,
			Available:     stock.Stock,
		}
	}

	if existing != nil {
		item, err := s.repo.UpdateItemQuantity(ctx, cartID, productItemID, required)
		if err != nil {
			return nil, translateRepoErr(err)
		}
		return item, nil
	}

	item, err := s.repo.CreateItem(ctx, cartID, productItemID, quantity)
	if err != nil {
		if errors.Is(err, repository.ErrItemExists) {
			return nil, err
		}
		return nil, translateRepoErr(err)
	}
	return item, nil
}

// UpdateItem applies the allow-listed fields of upd to one line.
func (s *CartService) UpdateItem(ctx context.Context, cartID, productItemID int64, upd domain.CartItemUpdate) (*domain.PricedItem, error) {
	if upd.Quantity != nil && *upd.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	if err := s.requireOpen(ctx, cartID); err != nil {
		return nil, err
	}

	var (
		item *domain.CartItem
		err  error
	)
	if upd.IsEmpty() {
		item, err = s.repo.GetItem(ctx, cartID, productItemID)
	} else {
		item, err = s.repo.UpdateItemQuantity(ctx, cartID, productItemID, *upd.Quantity)
	}
	if err != nil {
		return nil, translateRepoErr(err)
	}

	s.invalidateCache(ctx, cartID)
	priced := s.pricing.PriceItem(ctx, *item)
	return &priced, nil
}

func (s *CartService) DeleteItem(ctx context.Context, cartID, productItemID int64) error {
	if err := s.requireOpen(ctx, cartID); err != nil {
		return err
	}
	if err := s.repo.DeleteItem(ctx, cartID, productItemID); err != nil {
		return translateRepoErr(err)
	}

	s.invalidateCache(ctx, cartID)
	return nil
}

// requireOpen reads the cart from the store, not the cache, so a purchase is
// never missed by a mutation.
func (s *CartService) requireOpen(ctx context.Context, cartID int64) error {
	cart, err := s.repo.GetCart(ctx, cartID)
	if err != nil {
		return translateRepoErr(err)
	}
	if cart.State().IsTerminal() {
		return ErrAlreadyPurchased
	}
	return nil
}

func (s *CartService) validateCustomer(ctx context.Context, cpf string) (*domain.Customer, error) {
	cpf = strings.TrimSpace(cpf)
	if cpf == "" {
		return nil, ErrCustomerInvalid
	}

	customer, err := s.customers.GetCustomer(ctx, cpf)
	if err != nil {
		if errors.Is(err, client.ErrNotFound) {
			return nil, ErrCustomerInvalid
		}
		return nil, fmt.Errorf("%w: %w", ErrCustomerUnavailable, err)
	}
	return customer, nil
}

// loadCart serves reads from the cache and fills it on a miss.
func (s *CartService) loadCart(ctx context.Context, id int64) (*domain.Cart, error) {
	// Use singleflight to prevent multiple concurrent cache misses for same key
	v, err, _ := s.sfg.Do(strconv.FormatInt(id, 10), func() (interface{}, error) {
		cart, err := s.cache.Get(ctx, id)
		if err == nil {
			return cart, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			slog.WarnContext(ctx, "cache get error", "cart_id", id, "error", err) // log cache error but continue
		}

		cart, err = s.repo.GetCart(ctx, id)
		if err != nil {
			return nil, translateRepoErr(err)
		}

		setCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		if err := s.cache.Set(setCtx, cart); err != nil {
			slog.WarnContext(ctx, "cache set error", "cart_id", id, "error", err)
		}
		return cart, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*domain.Cart), nil
}

func (s *CartService) invalidateCache(ctx context.Context, cartID int64) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, cartID); err != nil {
		slog.WarnContext(ctx, "cache invalidate error", "cart_id", cartID, "error", err)
	}
}
