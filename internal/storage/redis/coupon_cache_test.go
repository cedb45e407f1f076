package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookproof/bookproof/internal/domain/coupon"
)

// --- Mock implementations ---

type mockFinder struct {
	byCode map[string]*coupon.Coupon
	calls  int
}

func (m *mockFinder) FindByCode(_ context.Context, code string) (*coupon.Coupon, error) {
	m.calls++
	c, ok := m.byCode[code]
	if !ok {
		return nil, coupon.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

// --- Tests ---

func newCacheFixture(t *testing.T) (*CouponCache, *miniredis.Miniredis, *mockFinder) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	finder := &mockFinder{byCode: map[string]*coupon.Coupon{
		"SAVE20": {
			ID:           "c1",
			Code:         "SAVE20",
			DiscountType: coupon.DiscountPercentage,
			Percent:      decimal.NewFromInt(20),
			Scope:        coupon.ScopeCredits,
			Active:       true,
		},
	}}
	return NewCouponCacheWithClient(client, finder, time.Minute), srv, finder
}

func TestMissLoadsAndCaches(t *testing.T) {
	cache, srv, finder := newCacheFixture(t)
	ctx := context.Background()

	c, err := cache.FindByCode(ctx, "SAVE20")
	require.NoError(t, err)
	assert.Equal(t, "c1", c.ID)
	assert.Equal(t, 1, finder.calls)

	// The entry landed in Redis with the configured TTL.
	assert.True(t, srv.Exists("bookproof:coupon:SAVE20"))
	assert.Equal(t, time.Minute, srv.TTL("bookproof:coupon:SAVE20"))

	// Second lookup is served from the cache.
	c, err = cache.FindByCode(ctx, "SAVE20")
	require.NoError(t, err)
	assert.Equal(t, "c1", c.ID)
	assert.Equal(t, 1, finder.calls)
}

func TestKeyIsCaseInsensitive(t *testing.T) {
	cache, _, finder := newCacheFixture(t)
	ctx := context.Background()

	_, err := cache.FindByCode(ctx, "SAVE20")
	require.NoError(t, err)

	// Redemption paths may pass the code in any case.
	_, err = cache.FindByCode(ctx, "save20")
	require.NoError(t, err)
	assert.Equal(t, 1, finder.calls)
}

func TestUnknownCodeNotNegativelyCached(t *testing.T) {
	cache, srv, finder := newCacheFixture(t)
	ctx := context.Background()

	_, err := cache.FindByCode(ctx, "NOPE")
	assert.ErrorIs(t, err, coupon.ErrNotFound)
	assert.False(t, srv.Exists("bookproof:coupon:NOPE"))

	_, err = cache.FindByCode(ctx, "NOPE")
	assert.ErrorIs(t, err, coupon.ErrNotFound)
	assert.Equal(t, 2, finder.calls)
}

func TestInvalidateEvicts(t *testing.T) {
	cache, srv, finder := newCacheFixture(t)
	ctx := context.Background()

	_, err := cache.FindByCode(ctx, "SAVE20")
	require.NoError(t, err)
	require.True(t, srv.Exists("bookproof:coupon:SAVE20"))

	require.NoError(t, cache.Invalidate(ctx, "SAVE20"))
	assert.False(t, srv.Exists("bookproof:coupon:SAVE20"))

	// Next lookup goes back to the repository.
	_, err = cache.FindByCode(ctx, "SAVE20")
	require.NoError(t, err)
	assert.Equal(t, 2, finder.calls)
}

func TestCorruptEntryReloaded(t *testing.T) {
	cache, srv, finder := newCacheFixture(t)
	ctx := context.Background()

	require.NoError(t, srv.Set("bookproof:coupon:SAVE20", "{not json"))

	c, err := cache.FindByCode(ctx, "SAVE20")
	require.NoError(t, err)
	assert.Equal(t, "c1", c.ID)
	assert.Equal(t, 1, finder.calls)
}

func TestRedisDownFallsThrough(t *testing.T) {
	cache, srv, finder := newCacheFixture(t)
	ctx := context.Background()

	srv.Close()

	c, err := cache.FindByCode(ctx, "SAVE20")
	require.NoError(t, err)
	assert.Equal(t, "c1", c.ID)
	assert.Equal(t, 1, finder.calls)
}
