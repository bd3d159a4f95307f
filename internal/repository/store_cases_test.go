package repository

import (
	"context"
	"testing"
	"time"

	"github.com/MarketMasterPlus/mm-shopping-cart/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// storeCases holds behaviour every CartRepository implementation must share.
var storeCases = []struct {
	name string
	run  func(t *testing.T, repo CartRepository)
}{
	{"CreateAndGetCart", caseCreateAndGetCart},
	{"GetCart_NotFound", caseGetCartNotFound},
	{"ListCarts_FilterByCPF", caseListCartsFilter},
	{"UpdateCart_CustomerCPF", caseUpdateCart},
	{"DeleteCart_CascadesItems", caseDeleteCartCascades},
	{"Items_CRUD", caseItemsCRUD},
	{"CreateItem_DuplicatePair", caseCreateItemDuplicate},
	{"CreateItem_UnknownCart", caseCreateItemUnknownCart},
	{"MarkPurchased_OnlyOnce", caseMarkPurchasedOnce},
	{"MarkPurchased_NotFound", caseMarkPurchasedNotFound},
	{"ItemWrites_RejectedOncePurchased", caseItemWritesRejectedOncePurchased},
	{"ItemWrites_UnknownCart", caseItemWritesUnknownCart},
	{"ContextCancellation", caseContextCancellation},
	{"Ping", casePing},
}

func caseCreateAndGetCart(t *testing.T, repo CartRepository) {
	ctx := context.Background()

	created, err := repo.CreateCart(ctx, "11122233344")
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.False(t, created.Purchased)
	assert.False(t, created.DateCreated.IsZero())

	got, err := repo.GetCart(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "11122233344", got.CustomerCPF)
	assert.Equal(t, domain.CartStateOpen, got.State())
	assert.Empty(t, got.Items)
}

func caseGetCartNotFound(t *testing.T, repo CartRepository) {
	cart, err := repo.GetCart(context.Background(), 987654)
	assert.ErrorIs(t, err, ErrCartNotFound)
	assert.Nil(t, cart)
}

func caseListCartsFilter(t *testing.T, repo CartRepository) {
	ctx := context.Background()

	a, err := repo.CreateCart(ctx, "cpf-a")
	require.NoError(t, err)
	_, err = repo.CreateCart(ctx, "cpf-b")
	require.NoError(t, err)
	_, err = repo.CreateItem(ctx, a.ID, 5, 2)
	require.NoError(t, err)

	all, err := repo.ListCarts(ctx, "")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(all), 2)

	filtered, err := repo.ListCarts(ctx, "cpf-a")
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, a.ID, filtered[0].ID)
	require.Len(t, filtered[0].Items, 1)
	assert.Equal(t, int64(5), filtered[0].Items[0].ProductItemID)

	none, err := repo.ListCarts(ctx, "cpf-unknown")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func caseUpdateCart(t *testing.T, repo CartRepository) {
	ctx := context.Background()
	cart, err := repo.CreateCart(ctx, "old")
	require.NoError(t, err)

	cpf := "new"
	updated, err := repo.UpdateCart(ctx, cart.ID, domain.CartUpdate{CustomerCPF: &cpf})
	require.NoError(t, err)
	assert.Equal(t, "new", updated.CustomerCPF)
	assert.False(t, updated.Purchased)

	unchanged, err := repo.UpdateCart(ctx, cart.ID, domain.CartUpdate{})
	require.NoError(t, err)
	assert.Equal(t, "new", unchanged.CustomerCPF)

	_, err = repo.UpdateCart(ctx, 987654, domain.CartUpdate{CustomerCPF: &cpf})
	assert.ErrorIs(t, err, ErrCartNotFound)
}

func caseDeleteCartCascades(t *testing.T, repo CartRepository) {
	ctx := context.Background()
	cart, err := repo.CreateCart(ctx, "cpf")
	require.NoError(t, err)
	_, err = repo.CreateItem(ctx, cart.ID, 1, 1)
	require.NoError(t, err)

	require.NoError(t, repo.DeleteCart(ctx, cart.ID))

	_, err = repo.GetCart(ctx, cart.ID)
	assert.ErrorIs(t, err, ErrCartNotFound)
	_, err = repo.GetItem(ctx, cart.ID, 1)
	assert.ErrorIs(t, err, ErrItemNotFound)

	assert.ErrorIs(t, repo.DeleteCart(ctx, cart.ID), ErrCartNotFound)
}

func caseItemsCRUD(t *testing.T, repo CartRepository) {
	ctx := context.Background()
	cart, err := repo.CreateCart(ctx, "cpf")
	require.NoError(t, err)

	first, err := repo.CreateItem(ctx, cart.ID, 10, 2)
	require.NoError(t, err)
	second, err := repo.CreateItem(ctx, cart.ID, 20, 3)
	require.NoError(t, err)
	assert.Greater(t, second.ID, first.ID)

	item, err := repo.GetItem(ctx, cart.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, item.Quantity)
	assert.Equal(t, cart.ID, item.CartID)

	updated, err := repo.UpdateItemQuantity(ctx, cart.ID, 10, 7)
	require.NoError(t, err)
	assert.Equal(t, 7, updated.Quantity)
	assert.Equal(t, first.ID, updated.ID)

	got, err := repo.GetCart(ctx, cart.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 2)
	assert.Equal(t, int64(10), got.Items[0].ProductItemID)
	assert.Equal(t, int64(20), got.Items[1].ProductItemID)

	require.NoError(t, repo.DeleteItem(ctx, cart.ID, 10))
	_, err = repo.GetItem(ctx, cart.ID, 10)
	assert.ErrorIs(t, err, ErrItemNotFound)
	assert.ErrorIs(t, repo.DeleteItem(ctx, cart.ID, 10), ErrItemNotFound)

	_, err = repo.UpdateItemQuantity(ctx, cart.ID, 99, 1)
	assert.ErrorIs(t, err, ErrItemNotFound)
}

func caseCreateItemDuplicate(t *testing.T, repo CartRepository) {
	ctx := context.Background()
	cart, err := repo.CreateCart(ctx, "cpf")
	require.NoError(t, err)

	_, err = repo.CreateItem(ctx, cart.ID, 10, 2)
	require.NoError(t, err)

	_, err = repo.CreateItem(ctx, cart.ID, 10, 4)
	assert.ErrorIs(t, err, ErrItemExists)

	item, err := repo.GetItem(ctx, cart.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, item.Quantity)
}

func caseCreateItemUnknownCart(t *testing.T, repo CartRepository) {
	_, err := repo.CreateItem(context.Background(), 987654, 10, 2)
	assert.ErrorIs(t, err, ErrCartNotFound)
}

func caseMarkPurchasedOnce(t *testing.T, repo CartRepository) {
	ctx := context.Background()
	cart, err := repo.CreateCart(ctx, "cpf")
	require.NoError(t, err)
	_, err = repo.CreateItem(ctx, cart.ID, 10, 2)
	require.NoError(t, err)

	purchased, err := repo.MarkPurchased(ctx, cart.ID)
	require.NoError(t, err)
	assert.True(t, purchased.Purchased)
	assert.Len(t, purchased.Items, 1)

	_, err = repo.MarkPurchased(ctx, cart.ID)
	assert.ErrorIs(t, err, ErrCartPurchased)

	got, err := repo.GetCart(ctx, cart.ID)
	require.NoError(t, err)
	assert.True(t, got.Purchased)
}

func caseMarkPurchasedNotFound(t *testing.T, repo CartRepository) {
	_, err := repo.MarkPurchased(context.Background(), 987654)
	assert.ErrorIs(t, err, ErrCartNotFound)
}

func caseItemWritesRejectedOncePurchased(t *testing.T, repo CartRepository) {
	ctx := context.Background()
	cart, err := repo.CreateCart(ctx, "cpf")
	require.NoError(t, err)
	_, err = repo.CreateItem(ctx, cart.ID, 10, 2)
	require.NoError(t, err)
	_, err = repo.MarkPurchased(ctx, cart.ID)
	require.NoError(t, err)

	_, err = repo.CreateItem(ctx, cart.ID, 20, 1)
	assert.ErrorIs(t, err, ErrCartPurchased)
	_, err = repo.UpdateItemQuantity(ctx, cart.ID, 10, 5)
	assert.ErrorIs(t, err, ErrCartPurchased)
	assert.ErrorIs(t, repo.DeleteItem(ctx, cart.ID, 10), ErrCartPurchased)

	got, err := repo.GetCart(ctx, cart.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, int64(10), got.Items[0].ProductItemID)
	assert.Equal(t, 2, got.Items[0].Quantity)
}

func caseItemWritesUnknownCart(t *testing.T, repo CartRepository) {
	ctx := context.Background()

	_, err := repo.UpdateItemQuantity(ctx, 987654, 10, 1)
	assert.ErrorIs(t, err, ErrCartNotFound)
	assert.ErrorIs(t, repo.DeleteItem(ctx, 987654, 10), ErrCartNotFound)
}

func caseContextCancellation(t *testing.T, repo CartRepository) {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Nanosecond)
	defer cancel()

	time.Sleep(10 * time.Millisecond) // Ensure context is cancelled

	_, err := repo.GetCart(ctx, 1)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "context")
}

func casePing(t *testing.T, repo CartRepository) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	assert.NoError(t, repo.Ping(ctx))
}
