package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wyfcoding/storefront/internal/cart/domain"
)

func setup(t *testing.T) (*miniredis.Miniredis, *CartRedisRepository) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewCartRedisRepository(client, "test:cart:", time.Hour)
}

func TestSaveAndLoad(t *testing.T) {
	ctx := context.Background()
	mr, repo := setup(t)

	state, _ := domain.EmptyCart().AddItem(domain.LineItem{ID: 3, Name: "Lamp", Price: decimal.RequireFromString("19.90"), Quantity: 2, ImageURL: "lamp.png"})
	require.NoError(t, repo.Save(ctx, "abc", state))

	raw, err := mr.Get("test:cart:abc")
	require.NoError(t, err)
	assert.JSONEq(t, `{"items":[{"id":3,"name":"Lamp","price":19.9,"quantity":2,"imageUrl":"lamp.png"}],"totalAmount":39.8}`, raw)
	assert.Equal(t, time.Hour, mr.TTL("test:cart:abc"))

	loaded, err := repo.Load(ctx, "abc")
	require.NoError(t, err)
	require.Len(t, loaded.Items, 1)
	assert.Equal(t, "Lamp", loaded.Items[0].Name)
	assert.True(t, loaded.TotalAmount.Equal(decimal.RequireFromString("39.8")))
}

func TestLoadMissing(t *testing.T) {
	_, repo := setup(t)

	_, err := repo.Load(context.Background(), "nobody")
	assert.ErrorIs(t, err, domain.ErrCartNotFound)
}

func TestLoadCorrupted(t *testing.T) {
	mr, repo := setup(t)
	require.NoError(t, mr.Set("test:cart:bad", "{not json"))

	_, err := repo.Load(context.Background(), "bad")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrCartNotFound)
}

func TestDeleteAndExpire(t *testing.T) {
	ctx := context.Background()
	mr, repo := setup(t)

	state, _ := domain.EmptyCart().AddItem(domain.LineItem{ID: 1, Price: decimal.NewFromInt(1), Quantity: 1})
	require.NoError(t, repo.Save(ctx, "a", state))
	require.NoError(t, repo.Save(ctx, "b", state))

	require.NoError(t, repo.Delete(ctx, "a"))
	assert.False(t, mr.Exists("test:cart:a"))

	mr.FastForward(2 * time.Hour)
	_, err := repo.Load(ctx, "b")
	assert.ErrorIs(t, err, domain.ErrCartNotFound)
}

func TestPing(t *testing.T) {
	mr, repo := setup(t)
	assert.True(t, repo.Ping(context.Background()))

	mr.Close()
	assert.False(t, repo.Ping(context.Background()))
}
