// Package rediswarm is the warm tier of the code inventory: one Redis list
// per game, keyed keys:<game>, TTL-bounded so staleness cannot outlive a
// few hours. Losing it never loses codes; the durable tier is the source
// of truth.
package rediswarm

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"

	"github.com/fairyhunter13/promo-harvester/internal/domain"
)

// Connect builds a client and pings it with exponential backoff so process
// start tolerates Redis coming up slightly later.
func Connect(ctx context.Context, addr string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 30 * time.Second
	op := func() error { return rdb.Ping(ctx).Err() }
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return rdb, nil
}

// Warm implements domain.WarmTier over Redis list operations.
type Warm struct {
	rdb *redis.Client
	ttl time.Duration
}

// New constructs the warm tier with the given key TTL.
func New(rdb *redis.Client, ttl time.Duration) *Warm {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &Warm{rdb: rdb, ttl: ttl}
}

func key(game string) string { return "keys:" + game }

// Push appends codes to the tail of the game's list and refreshes the TTL.
func (w *Warm) Push(ctx domain.Context, game string, codes []string) error {
	if len(codes) == 0 {
		return nil
	}
	args := make([]any, len(codes))
	for i, c := range codes {
		args[i] = c
	}
	pipe := w.rdb.TxPipeline()
	pipe.RPush(ctx, key(game), args...)
	pipe.Expire(ctx, key(game), w.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("op=warm.push: %w", err)
	}
	return nil
}

// Restore prepends codes at the head, preserving their order, so a failed
// issuance makes them visible to the next peek first.
func (w *Warm) Restore(ctx domain.Context, game string, codes []string) error {
	if len(codes) == 0 {
		return nil
	}
	// LPUSH reverses argument order, so feed it back-to-front.
	args := make([]any, len(codes))
	for i := len(codes) - 1; i >= 0; i-- {
		args[len(codes)-1-i] = codes[i]
	}
	if err := w.rdb.LPush(ctx, key(game), args...).Err(); err != nil {
		return fmt.Errorf("op=warm.restore: %w", err)
	}
	return nil
}

// Range returns up to n codes from the head without removing them.
func (w *Warm) Range(ctx domain.Context, game string, n int) ([]string, error) {
	out, err := w.rdb.LRange(ctx, key(game), 0, int64(n)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("op=warm.range: %w", err)
	}
	return out, nil
}

// Remove deletes codes by value.
func (w *Warm) Remove(ctx domain.Context, game string, codes []string) error {
	pipe := w.rdb.Pipeline()
	for _, c := range codes {
		pipe.LRem(ctx, key(game), 0, c)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("op=warm.remove: %w", err)
	}
	return nil
}

// Len reports the list length.
func (w *Warm) Len(ctx domain.Context, game string) (int64, error) {
	n, err := w.rdb.LLen(ctx, key(game)).Result()
	if err != nil {
		return 0, fmt.Errorf("op=warm.len: %w", err)
	}
	return n, nil
}
