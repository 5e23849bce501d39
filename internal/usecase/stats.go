package usecase

import (
	"time"

	"github.com/fairyhunter13/promo-harvester/internal/domain"
)

// Achievement names awarded by lifetime activity, lowest first.
var achievements = []string{
	"newcomer", "key_seeker",
	"bonus_hunter", "code_expert",
	"key_master", "elite_player",
	"game_legend", "absolute_leader",
}

// Achievement picks the user's achievement name from lifetime keys and
// days since registration.
func Achievement(totalKeys int64, daysInBot int) string {
	switch {
	case totalKeys > 1500:
		return achievements[7]
	case totalKeys > 1000 && daysInBot > 25:
		return achievements[6]
	case totalKeys > 500 && daysInBot > 15:
		return achievements[3+min(daysInBot/10, 2)]
	case totalKeys > 300 && daysInBot > 11:
		return achievements[2]
	case totalKeys > 150 && daysInBot > 5:
		return achievements[1]
	default:
		return achievements[0]
	}
}

// UserStats is the profile card shown to a user.
type UserStats struct {
	Achievement string
	KeysToday   int
	KeysTotal   int64
	Status      string
	DaysInBot   int
}

// BuildStats derives the profile card from a user record.
func BuildStats(u domain.UserRecord, now time.Time) UserStats {
	days := int(now.Sub(u.RegisteredAt).Hours() / 24)
	if days < 0 {
		days = 0
	}
	return UserStats{
		Achievement: Achievement(u.TotalKeysGenerated, days),
		KeysToday:   u.DailyRequests,
		KeysTotal:   u.TotalKeysGenerated,
		Status:      u.Status,
		DaysInBot:   days,
	}
}

// GameCount is one row of the operator inventory dashboard.
type GameCount struct {
	Game  string `json:"game"`
	Count int64  `json:"count"`
}

// StatsService produces operator dashboard numbers.
type StatsService struct {
	Inv   domain.Inventory
	Users domain.UserStore
	Games []string
	// Coeff inflates displayed counts for popularity; never applied to
	// the real inventory.
	Coeff int
}

// NewStatsService constructs a StatsService.
func NewStatsService(inv domain.Inventory, users domain.UserStore, games []string, coeff int) *StatsService {
	if coeff <= 0 {
		coeff = 1
	}
	return &StatsService{Inv: inv, Users: users, Games: games, Coeff: coeff}
}

// InventoryCounts reports per-game display counts in catalog order.
func (s *StatsService) InventoryCounts(ctx domain.Context) ([]GameCount, error) {
	out := make([]GameCount, 0, len(s.Games))
	for _, g := range s.Games {
		n, err := s.Inv.Count(ctx, g)
		if err != nil {
			return nil, err
		}
		out = append(out, GameCount{Game: g, Count: n * int64(s.Coeff)})
	}
	return out, nil
}

// FleetSummary is the operator overview card.
type FleetSummary struct {
	Users         int64 `json:"users"`
	RequestsToday int64 `json:"requests_today"`
}

// Summary reports user totals and today's request count.
func (s *StatsService) Summary(ctx domain.Context) (FleetSummary, error) {
	users, err := s.Users.CountUsers(ctx)
	if err != nil {
		return FleetSummary{}, err
	}
	reqs, err := s.Users.DailyRequests(ctx)
	if err != nil {
		return FleetSummary{}, err
	}
	return FleetSummary{Users: users, RequestsToday: reqs}, nil
}
