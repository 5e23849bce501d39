package harvester

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fairyhunter13/promo-harvester/internal/adapter/observability"
	"github.com/fairyhunter13/promo-harvester/internal/domain"
)

// Assignment pairs one worker slot with its statically bound proxy.
type Assignment struct {
	Game  domain.GameSpec
	Proxy domain.ProxySpec
}

// Bind flattens the catalog into (game, copy) slots and assigns proxies by
// sequential index. Fails fast when the proxy list cannot cover the fleet.
func Bind(catalog []domain.GameSpec, proxies []domain.ProxySpec) ([]Assignment, error) {
	need := 0
	for _, g := range catalog {
		need += g.Copies
	}
	if need > len(proxies) {
		return nil, fmt.Errorf("op=harvester.Bind: %w: %d proxies provided, %d needed", domain.ErrInvalidArgument, len(proxies), need)
	}
	out := make([]Assignment, 0, need)
	i := 0
	for _, g := range catalog {
		for c := 0; c < g.Copies; c++ {
			out = append(out, Assignment{Game: g, Proxy: proxies[i]})
			i++
		}
	}
	return out, nil
}

// WorkerFactory builds a worker for one assignment. It exists so the
// supervisor stays ignorant of HTTP client construction.
type WorkerFactory func(a Assignment) (*Worker, error)

// Supervisor spawns one worker per assignment, restarts workers that
// terminate with an error, and joins all of them on shutdown.
type Supervisor struct {
	Catalog    []domain.GameSpec
	Proxies    []domain.ProxySpec
	NewWorker  WorkerFactory
	Log        *slog.Logger
	RestartTTL time.Duration // cooldown before restarting a crashed worker
}

// Run blocks until ctx is canceled and every worker has stopped.
func (s *Supervisor) Run(ctx context.Context) error {
	assignments, err := Bind(s.Catalog, s.Proxies)
	if err != nil {
		return err
	}
	cooldown := s.RestartTTL
	if cooldown <= 0 {
		cooldown = time.Second
	}
	s.Log.Info("starting worker fleet", slog.Int("workers", len(assignments)))

	var wg sync.WaitGroup
	for _, a := range assignments {
		wg.Add(1)
		go func(a Assignment) {
			defer wg.Done()
			s.supervise(ctx, a, cooldown)
		}(a)
	}
	wg.Wait()
	s.Log.Info("worker fleet stopped")
	return nil
}

// supervise keeps one slot alive: the restarted worker reuses the same
// (game, proxy) binding and begins at LoggingIn.
func (s *Supervisor) supervise(ctx context.Context, a Assignment, cooldown time.Duration) {
	for {
		w, err := s.NewWorker(a)
		if err != nil {
			s.Log.Error("worker construction failed",
				slog.String("game", a.Game.Name), slog.Any("error", err))
			return
		}
		err = w.Run(ctx)
		if ctx.Err() != nil {
			return
		}
		s.Log.Error("worker terminated, restarting",
			slog.String("game", a.Game.Name),
			slog.String("proxy", a.Proxy.URL),
			slog.Any("error", err))
		observability.WorkerRestarts.WithLabelValues(a.Game.Name).Inc()
		if serr := CtxSleep(ctx, cooldown); serr != nil {
			return
		}
	}
}
