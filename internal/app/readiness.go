package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

// Pinger is the minimal interface for a database pool capable of Ping.
type Pinger interface{ Ping(ctx context.Context) error }

// RedisPingResult is the minimal return type of a Redis client's Ping.
type RedisPingResult interface{ Err() error }

// RedisPinger is the minimal interface for a Redis client needed for readiness.
type RedisPinger interface{ Ping(ctx context.Context) RedisPingResult }

// GoRedisPinger adapts *redis.Client to RedisPinger (interface methods
// cannot return the concrete *redis.StatusCmd).
type GoRedisPinger struct{ C *redis.Client }

// Ping forwards to the wrapped client.
func (g GoRedisPinger) Ping(ctx context.Context) RedisPingResult { return g.C.Ping(ctx) }

// ReadyChecks groups the per-dependency readiness probes.
type ReadyChecks struct {
	DB    func(ctx context.Context) error
	Redis func(ctx context.Context) error
}

// BuildReadinessChecks returns readiness probes for the db and the warm tier.
func BuildReadinessChecks(pool Pinger, rdb RedisPinger) ReadyChecks {
	return ReadyChecks{
		DB: func(ctx context.Context) error {
			if pool == nil {
				return fmt.Errorf("db not configured")
			}
			return pool.Ping(ctx)
		},
		Redis: func(ctx context.Context) error {
			if rdb == nil {
				return fmt.Errorf("redis not configured")
			}
			return rdb.Ping(ctx).Err()
		},
	}
}

// ReadyzHandler probes every dependency with a short deadline and reports
// 503 with the failing component on any miss.
func ReadyzHandler(checks ReadyChecks) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		for name, check := range map[string]func(context.Context) error{
			"db":    checks.DB,
			"redis": checks.Redis,
		} {
			if check == nil {
				continue
			}
			if err := check(ctx); err != nil {
				http.Error(w, fmt.Sprintf("%s not ready: %v", name, err), http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	}
}
