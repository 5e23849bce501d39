// Package usecase contains the application services: the issuance engine,
// user management, operator stats, and the admin forward map.
package usecase

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fairyhunter13/promo-harvester/internal/adapter/observability"
	"github.com/fairyhunter13/promo-harvester/internal/domain"
)

// InventoryPort is the slice of the inventory the engine needs: a
// non-destructive peek plus the warm-tier half of the two-phase remove.
type InventoryPort interface {
	PeekOldest(ctx domain.Context, game string, n int) ([]string, error)
	DropWarm(ctx domain.Context, game string, codes []string) error
	RestoreWarm(ctx domain.Context, game string, codes []string) error
}

// DrawSizer returns the per-game draw size (k).
type DrawSizer func(game string) int

// IssueService is the issuance engine: quota, interval, and atomic draw.
type IssueService struct {
	Users     domain.UserStore
	Committer domain.IssueCommitter
	Inv       InventoryPort
	Games     []string
	Limits    domain.TierLimits
	Draw      DrawSizer
	Log       *slog.Logger
	Now       func() time.Time

	locks *userLocks
	// drawMu serializes the peek+drop phase across users so two
	// concurrent issuances never return the same code.
	drawMu sync.Mutex
}

// NewIssueService wires the engine.
func NewIssueService(users domain.UserStore, committer domain.IssueCommitter, inv InventoryPort,
	games []string, limits domain.TierLimits, draw DrawSizer, log *slog.Logger) *IssueService {
	return &IssueService{
		Users:     users,
		Committer: committer,
		Inv:       inv,
		Games:     games,
		Limits:    limits,
		Draw:      draw,
		Log:       log,
		Now:       func() time.Time { return time.Now().UTC() },
		locks:     newUserLocks(),
	}
}

// Issue runs the decision procedure for one user request: ban gate, daily
// reset, quota check, interval check, draw, commit. The commit groups the
// durable remove with the counter update in one transaction; on commit
// failure the drawn codes go back to the warm tier and the error is
// surfaced.
func (s *IssueService) Issue(ctx domain.Context, userID int64) (domain.IssueResult, error) {
	unlock := s.locks.lock(userID)
	defer unlock()

	u, err := s.Users.Get(ctx, userID)
	if err != nil {
		return domain.IssueResult{}, err
	}

	if u.IsBanned {
		s.count(domain.OutcomeBanned)
		return domain.IssueResult{Outcome: domain.OutcomeBanned}, nil
	}

	now := s.Now()
	today := now.Truncate(24 * time.Hour)
	if !u.LastResetDate.UTC().Truncate(24 * time.Hour).Equal(today) {
		if err := s.Users.ResetDailyIfNeeded(ctx, userID, today); err != nil {
			return domain.IssueResult{}, err
		}
		u.DailyRequests = 0
	}

	lim := s.Limits.For(u.Status)
	if u.DailyRequests >= lim.DailyLimit {
		s.count(domain.OutcomeLimitReached)
		return domain.IssueResult{Outcome: domain.OutcomeLimitReached}, nil
	}

	// A request at exactly last_request_time + interval is allowed.
	if !u.LastRequestTime.IsZero() && lim.Interval > 0 {
		elapsed := now.Sub(u.LastRequestTime)
		if elapsed < lim.Interval {
			s.count(domain.OutcomeWait)
			return domain.IssueResult{
				Outcome:   domain.OutcomeWait,
				Remaining: lim.Interval - elapsed,
			}, nil
		}
	}

	draws, drawn, err := s.draw(ctx)
	if err != nil {
		return domain.IssueResult{}, err
	}

	if err := s.Committer.CommitIssue(ctx, userID, drawn, now); err != nil {
		// put the codes back where the next peek sees them first
		for game, codes := range drawn {
			if rerr := s.Inv.RestoreWarm(ctx, game, codes); rerr != nil {
				s.Log.Error("warm restore failed after aborted commit",
					slog.String("game", game), slog.Any("error", rerr))
			}
		}
		return domain.IssueResult{}, fmt.Errorf("op=issue.commit: %w", err)
	}

	res := domain.IssueResult{Outcome: domain.OutcomeGranted, Draws: draws}
	s.count(domain.OutcomeGranted)
	for _, d := range draws {
		observability.CodesIssued.WithLabelValues(d.Game).Add(float64(len(d.Codes)))
	}
	if err := s.Users.LogAction(ctx, userID, "issue"); err != nil {
		s.Log.Warn("action log failed", slog.Any("error", err))
	}
	return res, nil
}

// draw peeks k codes per game and drops them from the warm tier under the
// engine-wide draw lock. Empty partitions still appear in the result so
// the front-end can render the "no codes available" marker.
func (s *IssueService) draw(ctx domain.Context) ([]domain.GameDraw, map[string][]string, error) {
	s.drawMu.Lock()
	defer s.drawMu.Unlock()

	draws := make([]domain.GameDraw, 0, len(s.Games))
	drawn := make(map[string][]string, len(s.Games))
	restore := func() {
		for game, codes := range drawn {
			if rerr := s.Inv.RestoreWarm(ctx, game, codes); rerr != nil {
				s.Log.Error("warm restore failed after aborted draw",
					slog.String("game", game), slog.Any("error", rerr))
			}
		}
	}
	for _, game := range s.Games {
		k := s.Draw(game)
		codes, err := s.Inv.PeekOldest(ctx, game, k)
		if err != nil {
			restore()
			return nil, nil, err
		}
		if len(codes) > 0 {
			if err := s.Inv.DropWarm(ctx, game, codes); err != nil {
				restore()
				return nil, nil, err
			}
			drawn[game] = codes
		}
		draws = append(draws, domain.GameDraw{Game: game, Codes: codes})
	}
	return draws, drawn, nil
}

func (s *IssueService) count(o domain.IssueOutcome) {
	observability.IssueOutcomes.WithLabelValues(o.String()).Inc()
}
