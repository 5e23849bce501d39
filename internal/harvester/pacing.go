package harvester

import (
	"context"
	"math/rand/v2"
	"time"
)

// SleepFunc suspends for d or until ctx is done. Workers take it injected
// so tests can run the state machine without wall-clock delays.
type SleepFunc func(ctx context.Context, d time.Duration) error

// CtxSleep is the production SleepFunc.
func CtxSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			return nil
		}
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// uniform returns a random duration in [min, max). The jitter keeps the
// fleet from phase-locking against the shared upstream.
func uniform(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int64N(int64(max-min)))
}

// Pacing windows of the worker state machine. The base delay of the game
// is added on top where noted.
func loginRetryDelay(base time.Duration) time.Duration {
	return base + uniform(100*time.Millisecond, 3*time.Second) + 6*time.Second
}

func rateSignalDelay(base time.Duration) time.Duration {
	return base + uniform(5*time.Second, 25*time.Second) + uniform(1*time.Second, 3*time.Second)
}

func registerRetryDelay() time.Duration {
	return uniform(3*time.Second, 6*time.Second)
}

func mintRetryDelay() time.Duration {
	return uniform(1*time.Second, 3500*time.Millisecond)
}

func idleDelay() time.Duration {
	return uniform(100*time.Millisecond, 3*time.Second) + time.Second
}
