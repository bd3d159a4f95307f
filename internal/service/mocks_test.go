package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/MarketMasterPlus/mm-shopping-cart/internal/cache"
	"github.com/MarketMasterPlus/mm-shopping-cart/internal/client"
	"github.com/MarketMasterPlus/mm-shopping-cart/internal/domain"
	"github.com/MarketMasterPlus/mm-shopping-cart/internal/repository"
	"github.com/shopspring/decimal"
)

// mockRepository is an in-memory CartRepository.
type mockRepository struct {
	m      sync.Mutex
	carts  map[int64]*domain.Cart
	nextID int64
	err    error

	beforeCreate     func(*domain.Cart) // runs once inside CreateItem
	markPurchasedErr error
	getCartCalls     int
}

func newMockRepository() *mockRepository {
	return &mockRepository{carts: make(map[int64]*domain.Cart)}
}

func (m *mockRepository) seed(cpf string, purchased bool, items ...domain.CartItem) *domain.Cart {
	m.m.Lock()
	defer m.m.Unlock()
	m.nextID++
	cart := &domain.Cart{ID: m.nextID, CustomerCPF: cpf, Purchased: purchased, DateCreated: time.Now(), Items: []domain.CartItem{}}
	for _, it := range items {
		m.nextID++
		it.ID = m.nextID
		it.CartID = cart.ID
		cart.Items = append(cart.Items, it)
	}
	m.carts[cart.ID] = cart
	return copyCart(cart)
}

func (m *mockRepository) snapshot(id int64) *domain.Cart {
	m.m.Lock()
	defer m.m.Unlock()
	if c, ok := m.carts[id]; ok {
		return copyCart(c)
	}
	return nil
}

func copyCart(c *domain.Cart) *domain.Cart {
	cp := *c
	cp.Items = append([]domain.CartItem{}, c.Items...)
	return &cp
}

func (m *mockRepository) ListCarts(_ context.Context, cpf string) ([]*domain.Cart, error) {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []*domain.Cart
	for _, c := range m.carts {
		if cpf == "" || c.CustomerCPF == cpf {
			out = append(out, copyCart(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockRepository) CreateCart(_ context.Context, cpf string) (*domain.Cart, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.seed(cpf, false), nil
}

func (m *mockRepository) GetCart(_ context.Context, id int64) (*domain.Cart, error) {
	m.m.Lock()
	defer m.m.Unlock()
	m.getCartCalls++
	if m.err != nil {
		return nil, m.err
	}
	c, ok := m.carts[id]
	if !ok {
		return nil, repository.ErrCartNotFound
	}
	return copyCart(c), nil
}

func (m *mockRepository) UpdateCart(_ context.Context, id int64, upd domain.CartUpdate) (*domain.Cart, error) {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	c, ok := m.carts[id]
	if !ok {
		return nil, repository.ErrCartNotFound
	}
	if upd.CustomerCPF != nil {
		c.CustomerCPF = *upd.CustomerCPF
	}
	return copyCart(c), nil
}

func (m *mockRepository) DeleteCart(_ context.Context, id int64) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	if _, ok := m.carts[id]; !ok {
		return repository.ErrCartNotFound
	}
	delete(m.carts, id)
	return nil
}

func (m *mockRepository) MarkPurchased(ctx context.Context, id int64) (*domain.Cart, error) {
	m.m.Lock()
	defer m.m.Unlock()
	if m.markPurchasedErr != nil {
		return nil, m.markPurchasedErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c, ok := m.carts[id]
	if !ok {
		return nil, repository.ErrCartNotFound
	}
	if c.Purchased {
		return nil, repository.ErrCartPurchased
	}
	c.Purchased = true
	return copyCart(c), nil
}

func (m *mockRepository) GetItem(_ context.Context, cartID, productItemID int64) (*domain.CartItem, error) {
	m.m.Lock()
	defer m.m.Unlock()
	c, ok := m.carts[cartID]
	if !ok {
		return nil, repository.ErrItemNotFound
	}
	it := c.FindItem(productItemID)
	if it == nil {
		return nil, repository.ErrItemNotFound
	}
	cp := *it
	return &cp, nil
}

func (m *mockRepository) CreateItem(_ context.Context, cartID, productItemID int64, quantity int) (*domain.CartItem, error) {
	m.m.Lock()
	defer m.m.Unlock()
	c, ok := m.carts[cartID]
	if !ok {
		return nil, repository.ErrCartNotFound
	}
	if hook := m.beforeCreate; hook != nil {
		m.beforeCreate = nil
		hook(c)
	}
	if c.Purchased {
		return nil, repository.ErrCartPurchased
	}
	if c.FindItem(productItemID) != nil {
		return nil, repository.ErrItemExists
	}
	m.nextID++
	it := domain.CartItem{ID: m.nextID, CartID: cartID, ProductItemID: productItemID, Quantity: quantity}
	c.Items = append(c.Items, it)
	return &it, nil
}

func (m *mockRepository) UpdateItemQuantity(_ context.Context, cartID, productItemID int64, quantity int) (*domain.CartItem, error) {
	m.m.Lock()
	defer m.m.Unlock()
	c, ok := m.carts[cartID]
	if !ok {
		return nil, repository.ErrCartNotFound
	}
	if c.Purchased {
		return nil, repository.ErrCartPurchased
	}
	it := c.FindItem(productItemID)
	if it == nil {
		return nil, repository.ErrItemNotFound
	}
	it.Quantity = quantity
	cp := *it
	return &cp, nil
}

func (m *mockRepository) DeleteItem(_ context.Context, cartID, productItemID int64) error {
	m.m.Lock()
	defer m.m.Unlock()
	c, ok := m.carts[cartID]
	if !ok {
		return repository.ErrCartNotFound
	}
	if c.Purchased {
		return repository.ErrCartPurchased
	}
	for i, it := range c.Items {
		if it.ProductItemID == productItemID {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			return nil
		}
	}
	return repository.ErrItemNotFound
}

func (m *mockRepository) Ping(context.Context) error  { return m.err }
func (m *mockRepository) Close(context.Context) error { return nil }

type mockCache struct {
	m       sync.RWMutex
	carts   map[int64]*domain.Cart
	err     error
	deletes int
}

func newMockCache() *mockCache {
	return &mockCache{carts: make(map[int64]*domain.Cart)}
}

func (m *mockCache) Get(_ context.Context, id int64) (*domain.Cart, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	c, ok := m.carts[id]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return c, nil
}

func (m *mockCache) Set(_ context.Context, cart *domain.Cart) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.carts[cart.ID] = cart
	return m.err
}

func (m *mockCache) Delete(_ context.Context, id int64) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.deletes++
	delete(m.carts, id)
	return m.err
}

func (m *mockCache) has(id int64) bool {
	m.m.RLock()
	defer m.m.RUnlock()
	_, ok := m.carts[id]
	return ok
}

// fakeInventory is an in-memory inventory service that records every call.
type fakeInventory struct {
	m       sync.Mutex
	items   map[int64]domain.InventoryItem
	getErr  map[int64]error
	putErr  map[int64]error
	calls   []string
	updates []domain.InventoryItem

	beforeGet func() // runs once, outside the lock, on the next GetItem
}

func newFakeInventory(items ...domain.InventoryItem) *fakeInventory {
	f := &fakeInventory{
		items:  make(map[int64]domain.InventoryItem),
		getErr: make(map[int64]error),
		putErr: make(map[int64]error),
	}
	for _, it := range items {
		f.items[it.ID] = it
	}
	return f
}

func stockItem(id int64, stock int, price string) domain.InventoryItem {
	return domain.InventoryItem{
		ID:        id,
		ProductID: id * 100,
		StoreID:   7,
		Price:     decimal.RequireFromString(price),
		Stock:     stock,
	}
}

func (f *fakeInventory) GetItem(_ context.Context, id int64) (*domain.InventoryItem, error) {
	f.m.Lock()
	hook := f.beforeGet
	f.beforeGet = nil
	f.m.Unlock()
	if hook != nil {
		hook()
	}

	f.m.Lock()
	defer f.m.Unlock()
	f.calls = append(f.calls, fmt.Sprintf("GET %d", id))
	if err := f.getErr[id]; err != nil {
		return nil, err
	}
	it, ok := f.items[id]
	if !ok {
		return nil, &client.StatusError{Service: "inventory", Method: "GET", StatusCode: 404}
	}
	return &it, nil
}

func (f *fakeInventory) UpdateItem(_ context.Context, item domain.InventoryItem) error {
	f.m.Lock()
	defer f.m.Unlock()
	f.calls = append(f.calls, fmt.Sprintf("PUT %d", item.ID))
	if err := f.putErr[item.ID]; err != nil {
		return err
	}
	f.items[item.ID] = item
	f.updates = append(f.updates, item)
	return nil
}

func (f *fakeInventory) GetPrice(ctx context.Context, id int64) (decimal.Decimal, error) {
	it, err := f.GetItem(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	return it.Price, nil
}

func (f *fakeInventory) stock(id int64) int {
	f.m.Lock()
	defer f.m.Unlock()
	return f.items[id].Stock
}

func (f *fakeInventory) item(id int64) domain.InventoryItem {
	f.m.Lock()
	defer f.m.Unlock()
	return f.items[id]
}

func (f *fakeInventory) callLog() []string {
	f.m.Lock()
	defer f.m.Unlock()
	return append([]string{}, f.calls...)
}

func (f *fakeInventory) resetCalls() {
	f.m.Lock()
	defer f.m.Unlock()
	f.calls = nil
}

type mockCustomers struct {
	known map[string]bool
	err   error
}

func (m *mockCustomers) GetCustomer(_ context.Context, cpf string) (*domain.Customer, error) {
	if m.err != nil {
		return nil, m.err
	}
	if !m.known[cpf] {
		return nil, fmt.Errorf("customer %q: %w", cpf, client.ErrNotFound)
	}
	return &domain.Customer{CPF: cpf, FullName: "Test Customer"}, nil
}

type recordingPublisher struct {
	m      sync.Mutex
	events []domain.CartPurchasedEvent
	err    error
}

func (p *recordingPublisher) PublishCartPurchased(_ context.Context, e domain.CartPurchasedEvent) error {
	p.m.Lock()
	defer p.m.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	return nil
}

var errTransport = errors.New("connection refused")
