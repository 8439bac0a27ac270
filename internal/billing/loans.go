package billing

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const loanKeyPrefix = "billing:loan:"

// LoanCache decorates a Store with a Redis read-through cache for loan
// balances. Balances change rarely during a trading day and the lookup sits
// on the print path, so stale-by-TTL is acceptable. A nil client degrades
// to the underlying store.
type LoanCache struct {
	Store
	client *redis.Client
	ttl    time.Duration
}

// NewLoanCache wraps store with balance caching.
func NewLoanCache(store Store, client *redis.Client, ttl time.Duration) *LoanCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &LoanCache{Store: store, client: client, ttl: ttl}
}

// LoanBalance serves from cache when possible, falling back to the store
// and populating the cache on a miss. Cache errors are treated as misses.
func (c *LoanCache) LoanBalance(ctx context.Context, customerCode string) (float64, error) {
	if c.client == nil {
		return c.Store.LoanBalance(ctx, customerCode)
	}
	key := loanKeyPrefix + customerCode
	if raw, err := c.client.Get(ctx, key).Result(); err == nil {
		if v, perr := strconv.ParseFloat(raw, 64); perr == nil {
			return v, nil
		}
	} else if err != redis.Nil {
		return c.Store.LoanBalance(ctx, customerCode)
	}

	v, err := c.Store.LoanBalance(ctx, customerCode)
	if err != nil {
		return 0, err
	}
	_ = c.client.Set(ctx, key, strconv.FormatFloat(v, 'f', -1, 64), c.ttl).Err()
	return v, nil
}

// Invalidate drops one customer's cached balance.
func (c *LoanCache) Invalidate(ctx context.Context, customerCode string) {
	if c.client == nil {
		return
	}
	_ = c.client.Del(ctx, loanKeyPrefix+customerCode).Err()
}

// WarmLoanBalances precomputes balances for the given customers, typically
// from the background worker ahead of the trading day.
func WarmLoanBalances(ctx context.Context, store Store, client *redis.Client, ttl time.Duration, customerCodes []string) error {
	if client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	for _, code := range customerCodes {
		v, err := store.LoanBalance(ctx, code)
		if err != nil {
			return err
		}
		if err := client.Set(ctx, loanKeyPrefix+code, strconv.FormatFloat(v, 'f', -1, 64), ttl).Err(); err != nil {
			return err
		}
	}
	return nil
}
