package memory

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wyfcoding/storefront/internal/cart/domain"
)

func TestRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewCartRepository()

	_, err := repo.Load(ctx, "s1")
	assert.ErrorIs(t, err, domain.ErrCartNotFound)

	state, _ := domain.EmptyCart().AddItem(domain.LineItem{ID: 1, Name: "a", Price: decimal.NewFromInt(3), Quantity: 2})
	require.NoError(t, repo.Save(ctx, "s1", state))

	loaded, err := repo.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.ItemCount())

	loaded.Items[0].Quantity = 9
	again, err := repo.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, again.Items[0].Quantity)

	require.NoError(t, repo.Delete(ctx, "s1"))
	_, err = repo.Load(ctx, "s1")
	assert.ErrorIs(t, err, domain.ErrCartNotFound)
	assert.True(t, repo.Ping(ctx))
}
