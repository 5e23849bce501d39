// Package inventory is the producer/consumer seam between the harvester
// and the issuance engine: a durable Postgres tier fronted by a Redis warm
// tier, FIFO by creation time, at-most-once delivery.
package inventory

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/fairyhunter13/promo-harvester/internal/adapter/observability"
	"github.com/fairyhunter13/promo-harvester/internal/domain"
)

// Service implements domain.Inventory over the two tiers. Append writes
// through to the durable tier only; the warm tier is materialized lazily
// on the first peek that finds it empty.
type Service struct {
	Store domain.InventoryStore
	Warm  domain.WarmTier
	Bulk  int
	Log   *slog.Logger

	// guards the refill so two racing peeks cannot double-load a game
	mu sync.Mutex
}

// New constructs the inventory service. bulk is the refill batch size.
func New(store domain.InventoryStore, warm domain.WarmTier, bulk int, log *slog.Logger) *Service {
	if bulk <= 0 {
		bulk = 2000
	}
	return &Service{Store: store, Warm: warm, Bulk: bulk, Log: log}
}

// Append persists one minted code durably. The warm tier picks it up on a
// later refill.
func (s *Service) Append(ctx domain.Context, game, code string) error {
	return s.Store.InsertCode(ctx, game, code)
}

// PeekOldest returns up to n codes in creation order without removing
// them. An empty warm tier is refilled from the durable tier first.
func (s *Service) PeekOldest(ctx domain.Context, game string, n int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	length, err := s.Warm.Len(ctx, game)
	if err != nil {
		return nil, err
	}
	if length <= 0 {
		if err := s.refill(ctx, game); err != nil {
			return nil, err
		}
	}
	return s.Warm.Range(ctx, game, n)
}

func (s *Service) refill(ctx domain.Context, game string) error {
	codes, err := s.Store.OldestCodes(ctx, game, s.Bulk)
	if err != nil {
		return fmt.Errorf("op=inventory.refill: %w", err)
	}
	if len(codes) == 0 {
		s.Log.Debug("no codes in durable tier", slog.String("game", game))
		return nil
	}
	if err := s.Warm.Push(ctx, game, codes); err != nil {
		return fmt.Errorf("op=inventory.refill: %w", err)
	}
	observability.WarmReloads.WithLabelValues(game).Inc()
	s.Log.Info("warm tier reloaded", slog.String("game", game), slog.Int("codes", len(codes)))
	return nil
}

// Remove deletes codes from both tiers; afterwards no peek returns them.
// Idempotent.
func (s *Service) Remove(ctx domain.Context, game string, codes []string) error {
	if len(codes) == 0 {
		return nil
	}
	if err := s.Warm.Remove(ctx, game, codes); err != nil {
		return err
	}
	return s.Store.DeleteCodes(ctx, game, codes)
}

// DropWarm removes codes from the warm tier only. The issuance engine
// calls it before the durable commit so a racing peek cannot observe the
// drawn codes.
func (s *Service) DropWarm(ctx domain.Context, game string, codes []string) error {
	return s.Warm.Remove(ctx, game, codes)
}

// RestoreWarm puts codes back at the head of the warm tier after a failed
// issuance commit.
func (s *Service) RestoreWarm(ctx domain.Context, game string, codes []string) error {
	return s.Warm.Restore(ctx, game, codes)
}

// Count reports the durable partition size (dashboards only).
func (s *Service) Count(ctx domain.Context, game string) (int64, error) {
	return s.Store.CountCodes(ctx, game)
}

// DurableSink exposes only the append path over the durable tier. The
// harvester process uses it so it never needs the warm tier at all.
type DurableSink struct{ Store domain.InventoryStore }

// Append persists one minted code.
func (d DurableSink) Append(ctx domain.Context, game, code string) error {
	return d.Store.InsertCode(ctx, game, code)
}
