package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingLoanStore struct {
	*mockStore
	loanCalls int
}

func (s *countingLoanStore) LoanBalance(ctx context.Context, customerCode string) (float64, error) {
	s.loanCalls++
	return s.mockStore.LoanBalance(ctx, customerCode)
}

func newLoanCacheFixture(t *testing.T) (*countingLoanStore, *LoanCache, *miniredis.Miniredis) {
	t.Helper()
	store := &countingLoanStore{mockStore: newMockStore()}
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return store, NewLoanCache(store, client, time.Minute), mr
}

func TestLoanCacheReadThrough(t *testing.T) {
	store, cache, _ := newLoanCacheFixture(t)
	store.loans["ABC"] = 250
	ctx := context.Background()

	v, err := cache.LoanBalance(ctx, "ABC")
	require.NoError(t, err)
	assert.InDelta(t, 250.0, v, 1e-9)
	assert.Equal(t, 1, store.loanCalls)

	// Second read comes from the cache.
	v, err = cache.LoanBalance(ctx, "ABC")
	require.NoError(t, err)
	assert.InDelta(t, 250.0, v, 1e-9)
	assert.Equal(t, 1, store.loanCalls)
}

func TestLoanCacheInvalidate(t *testing.T) {
	store, cache, _ := newLoanCacheFixture(t)
	store.loans["ABC"] = 250
	ctx := context.Background()

	_, err := cache.LoanBalance(ctx, "ABC")
	require.NoError(t, err)

	store.loans["ABC"] = 400
	cache.Invalidate(ctx, "ABC")

	v, err := cache.LoanBalance(ctx, "ABC")
	require.NoError(t, err)
	assert.InDelta(t, 400.0, v, 1e-9)
	assert.Equal(t, 2, store.loanCalls)
}

func TestLoanCacheTTLExpiry(t *testing.T) {
	store, cache, mr := newLoanCacheFixture(t)
	store.loans["ABC"] = 250
	ctx := context.Background()

	_, err := cache.LoanBalance(ctx, "ABC")
	require.NoError(t, err)

	store.loans["ABC"] = 300
	mr.FastForward(2 * time.Minute)

	v, err := cache.LoanBalance(ctx, "ABC")
	require.NoError(t, err)
	assert.InDelta(t, 300.0, v, 1e-9)
	assert.Equal(t, 2, store.loanCalls)
}

func TestLoanCacheCorruptValueFallsBack(t *testing.T) {
	store, cache, mr := newLoanCacheFixture(t)
	store.loans["ABC"] = 250
	require.NoError(t, mr.Set("billing:loan:ABC", "not-a-number"))

	v, err := cache.LoanBalance(context.Background(), "ABC")
	require.NoError(t, err)
	assert.InDelta(t, 250.0, v, 1e-9)
	assert.Equal(t, 1, store.loanCalls)
}

func TestLoanCacheNilClientPassthrough(t *testing.T) {
	store := &countingLoanStore{mockStore: newMockStore()}
	store.loans["ABC"] = 99
	cache := NewLoanCache(store, nil, time.Minute)

	v, err := cache.LoanBalance(context.Background(), "ABC")
	require.NoError(t, err)
	assert.InDelta(t, 99.0, v, 1e-9)
	assert.Equal(t, 1, store.loanCalls)
	cache.Invalidate(context.Background(), "ABC")
}

func TestLoanCacheStoreErrorPropagates(t *testing.T) {
	store, cache, _ := newLoanCacheFixture(t)
	store.loanErr = errors.New("query timeout")

	_, err := cache.LoanBalance(context.Background(), "ABC")
	assert.Error(t, err)
}

func TestWarmLoanBalances(t *testing.T) {
	store, cache, mr := newLoanCacheFixture(t)
	store.loans["ABC"] = 100
	store.loans["XYZ"] = 200
	ctx := context.Background()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	require.NoError(t, WarmLoanBalances(ctx, store, client, time.Minute, []string{"ABC", "XYZ"}))
	assert.Equal(t, 2, store.loanCalls)

	// Warmed entries satisfy later reads without another store round trip.
	v, err := cache.LoanBalance(ctx, "XYZ")
	require.NoError(t, err)
	assert.InDelta(t, 200.0, v, 1e-9)
	assert.Equal(t, 2, store.loanCalls)
}
