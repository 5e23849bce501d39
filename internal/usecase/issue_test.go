package usecase

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/promo-harvester/internal/domain"
)

// fakeUsers is an in-memory UserStore covering the engine's read path.
type fakeUsers struct {
	records map[int64]domain.UserRecord
	actions []string
	resets  int
}

func newFakeUsers(records ...domain.UserRecord) *fakeUsers {
	f := &fakeUsers{records: map[int64]domain.UserRecord{}}
	for _, r := range records {
		f.records[r.UserID] = r
	}
	return f
}

func (f *fakeUsers) Get(_ domain.Context, userID int64) (domain.UserRecord, error) {
	u, ok := f.records[userID]
	if !ok {
		return domain.UserRecord{}, domain.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsers) Upsert(_ domain.Context, id domain.UserIdentity) (domain.UserRecord, error) {
	u, ok := f.records[id.UserID]
	if !ok {
		u = domain.UserRecord{UserID: id.UserID, ChatID: id.ChatID, Status: domain.StatusFree, Role: domain.RoleUser}
		f.records[id.UserID] = u
	}
	return u, nil
}

func (f *fakeUsers) SetLanguage(_ domain.Context, userID int64, lang string) error {
	u := f.records[userID]
	u.Language = lang
	f.records[userID] = u
	return nil
}

func (f *fakeUsers) SetFlag(_ domain.Context, userID int64, field string, value any) error {
	u, ok := f.records[userID]
	if !ok {
		return domain.ErrNotFound
	}
	switch field {
	case "is_banned":
		u.IsBanned = value.(bool)
	case "user_status":
		u.Status = value.(string)
	case "user_role":
		u.Role = value.(string)
	case "notes":
		u.Notes = value.(string)
	default:
		return domain.ErrInvalidArgument
	}
	f.records[userID] = u
	return nil
}

func (f *fakeUsers) ResetDailyIfNeeded(_ domain.Context, userID int64, today time.Time) error {
	f.resets++
	u := f.records[userID]
	u.DailyRequests = 0
	u.LastResetDate = today
	f.records[userID] = u
	return nil
}

func (f *fakeUsers) AdminChatIDs(domain.Context) ([]int64, error) { return nil, nil }

func (f *fakeUsers) LogAction(_ domain.Context, _ int64, action string) error {
	f.actions = append(f.actions, action)
	return nil
}

func (f *fakeUsers) CountUsers(domain.Context) (int64, error) {
	return int64(len(f.records)), nil
}

func (f *fakeUsers) DailyRequests(domain.Context) (int64, error) {
	var n int64
	for _, u := range f.records {
		n += int64(u.DailyRequests)
	}
	return n, nil
}

// fakeCommitter records commits and mirrors the counter update.
type fakeCommitter struct {
	users   *fakeUsers
	err     error
	commits []map[string][]string
}

func (c *fakeCommitter) CommitIssue(_ domain.Context, userID int64, drawn map[string][]string, now time.Time) error {
	if c.err != nil {
		return c.err
	}
	c.commits = append(c.commits, drawn)
	u := c.users.records[userID]
	u.DailyRequests++
	for _, codes := range drawn {
		u.TotalKeysGenerated += int64(len(codes))
	}
	u.LastRequestTime = now
	c.users.records[userID] = u
	return nil
}

// fakeInv is an ordered in-memory warm tier per game.
type fakeInv struct {
	warm     map[string][]string
	peekErr  error
	dropErr  error
	restored map[string][]string
}

func newFakeInv(warm map[string][]string) *fakeInv {
	return &fakeInv{warm: warm, restored: map[string][]string{}}
}

func (f *fakeInv) PeekOldest(_ domain.Context, game string, n int) ([]string, error) {
	if f.peekErr != nil {
		return nil, f.peekErr
	}
	codes := f.warm[game]
	if len(codes) > n {
		codes = codes[:n]
	}
	out := make([]string, len(codes))
	copy(out, codes)
	return out, nil
}

func (f *fakeInv) DropWarm(_ domain.Context, game string, codes []string) error {
	if f.dropErr != nil {
		return f.dropErr
	}
	f.warm[game] = f.warm[game][len(codes):]
	return nil
}

func (f *fakeInv) RestoreWarm(_ domain.Context, game string, codes []string) error {
	f.warm[game] = append(append([]string{}, codes...), f.warm[game]...)
	f.restored[game] = append(f.restored[game], codes...)
	return nil
}

var testLimits = domain.TierLimits{
	domain.StatusFree:    {DailyLimit: 2, Interval: 60 * time.Minute},
	domain.StatusFriend:  {DailyLimit: 5, Interval: 10 * time.Minute},
	domain.StatusPremium: {DailyLimit: 25},
}

func fixedDraw(string) int { return 4 }

var engineNow = time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)

func freeUser() domain.UserRecord {
	return domain.UserRecord{
		UserID:        42,
		ChatID:        42,
		Status:        domain.StatusFree,
		Role:          domain.RoleUser,
		LastResetDate: engineNow.Truncate(24 * time.Hour),
	}
}

func newEngine(users *fakeUsers, inv *fakeInv, games []string, draw DrawSizer) (*IssueService, *fakeCommitter) {
	committer := &fakeCommitter{users: users}
	s := NewIssueService(users, committer, inv, games, testLimits, draw, slog.Default())
	s.Now = func() time.Time { return engineNow }
	return s, committer
}

func TestIssue_Granted(t *testing.T) {
	users := newFakeUsers(freeUser())
	inv := newFakeInv(map[string][]string{
		"Alpha": {"A1", "A2", "A3", "A4", "A5"},
		"Beta":  {"B1", "B2"},
	})
	s, committer := newEngine(users, inv, []string{"Alpha", "Beta"}, fixedDraw)

	res, err := s.Issue(t.Context(), 42)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeGranted, res.Outcome)
	require.Len(t, res.Draws, 2)
	assert.Equal(t, []string{"A1", "A2", "A3", "A4"}, res.Draws[0].Codes)
	assert.Equal(t, []string{"B1", "B2"}, res.Draws[1].Codes)
	assert.Equal(t, 6, res.TotalCodes())

	// drawn codes are gone from the warm tier
	assert.Equal(t, []string{"A5"}, inv.warm["Alpha"])
	assert.Empty(t, inv.warm["Beta"])

	require.Len(t, committer.commits, 1)
	u := users.records[42]
	assert.Equal(t, 1, u.DailyRequests)
	assert.EqualValues(t, 6, u.TotalKeysGenerated)
	assert.Equal(t, engineNow, u.LastRequestTime)
	assert.Equal(t, []string{"issue"}, users.actions)
}

func TestIssue_BoostedDrawSize(t *testing.T) {
	users := newFakeUsers(freeUser())
	inv := newFakeInv(map[string][]string{
		"Alpha": {"A1", "A2", "A3", "A4", "A5", "A6", "A7", "A8", "A9"},
	})
	draw := func(game string) int {
		if game == "Alpha" {
			return 8
		}
		return 4
	}
	s, _ := newEngine(users, inv, []string{"Alpha"}, draw)

	res, err := s.Issue(t.Context(), 42)
	require.NoError(t, err)
	assert.Len(t, res.Draws[0].Codes, 8)
}

func TestIssue_Banned(t *testing.T) {
	u := freeUser()
	u.IsBanned = true
	users := newFakeUsers(u)
	inv := newFakeInv(map[string][]string{"Alpha": {"A1"}})
	s, committer := newEngine(users, inv, []string{"Alpha"}, fixedDraw)

	res, err := s.Issue(t.Context(), 42)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeBanned, res.Outcome)
	assert.Empty(t, committer.commits)
	assert.Equal(t, []string{"A1"}, inv.warm["Alpha"])
}

func TestIssue_LimitReached(t *testing.T) {
	u := freeUser()
	u.DailyRequests = 2
	users := newFakeUsers(u)
	s, committer := newEngine(users, newFakeInv(map[string][]string{}), []string{"Alpha"}, fixedDraw)

	res, err := s.Issue(t.Context(), 42)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeLimitReached, res.Outcome)
	assert.Empty(t, committer.commits)
}

func TestIssue_WaitRemaining(t *testing.T) {
	u := freeUser()
	u.DailyRequests = 1
	u.LastRequestTime = engineNow.Add(-25 * time.Minute)
	users := newFakeUsers(u)
	s, committer := newEngine(users, newFakeInv(map[string][]string{}), []string{"Alpha"}, fixedDraw)

	res, err := s.Issue(t.Context(), 42)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeWait, res.Outcome)
	assert.Equal(t, 35*time.Minute, res.Remaining)
	assert.Empty(t, committer.commits)

	// waiting does not move the clock: the same request a second later
	// still computes against the original last_request_time
	assert.Equal(t, engineNow.Add(-25*time.Minute), users.records[42].LastRequestTime)
}

func TestIssue_ExactlyAtIntervalAllowed(t *testing.T) {
	u := freeUser()
	u.DailyRequests = 1
	u.LastRequestTime = engineNow.Add(-60 * time.Minute)
	users := newFakeUsers(u)
	inv := newFakeInv(map[string][]string{"Alpha": {"A1"}})
	s, _ := newEngine(users, inv, []string{"Alpha"}, fixedDraw)

	res, err := s.Issue(t.Context(), 42)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeGranted, res.Outcome)
}

func TestIssue_PremiumSkipsInterval(t *testing.T) {
	u := freeUser()
	u.Status = domain.StatusPremium
	u.DailyRequests = 10
	u.LastRequestTime = engineNow.Add(-time.Second)
	users := newFakeUsers(u)
	inv := newFakeInv(map[string][]string{"Alpha": {"A1"}})
	s, _ := newEngine(users, inv, []string{"Alpha"}, fixedDraw)

	res, err := s.Issue(t.Context(), 42)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeGranted, res.Outcome)
}

func TestIssue_DailyReset(t *testing.T) {
	u := freeUser()
	u.DailyRequests = 2
	u.LastResetDate = engineNow.AddDate(0, 0, -1).Truncate(24 * time.Hour)
	users := newFakeUsers(u)
	inv := newFakeInv(map[string][]string{"Alpha": {"A1"}})
	s, _ := newEngine(users, inv, []string{"Alpha"}, fixedDraw)

	res, err := s.Issue(t.Context(), 42)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeGranted, res.Outcome)
	assert.Equal(t, 1, users.resets)
	assert.Equal(t, engineNow.Truncate(24*time.Hour), users.records[42].LastResetDate)
}

func TestIssue_EmptyPartitionStillCharges(t *testing.T) {
	users := newFakeUsers(freeUser())
	inv := newFakeInv(map[string][]string{"Alpha": {}, "Beta": {"B1"}})
	s, committer := newEngine(users, inv, []string{"Alpha", "Beta"}, fixedDraw)

	res, err := s.Issue(t.Context(), 42)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeGranted, res.Outcome)

	// the dry partition still shows up, with no codes
	require.Len(t, res.Draws, 2)
	assert.Equal(t, "Alpha", res.Draws[0].Game)
	assert.Empty(t, res.Draws[0].Codes)
	assert.Equal(t, []string{"B1"}, res.Draws[1].Codes)

	// the attempt is consumed regardless
	require.Len(t, committer.commits, 1)
	assert.Equal(t, 1, users.records[42].DailyRequests)
}

func TestIssue_CommitFailureRestoresWarm(t *testing.T) {
	users := newFakeUsers(freeUser())
	inv := newFakeInv(map[string][]string{"Alpha": {"A1", "A2"}})
	s, committer := newEngine(users, inv, []string{"Alpha"}, fixedDraw)
	committer.err = errors.New("db down")

	_, err := s.Issue(t.Context(), 42)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "op=issue.commit")

	// drawn codes are back at the head and counters never moved
	assert.Equal(t, []string{"A1", "A2"}, inv.warm["Alpha"])
	assert.Equal(t, []string{"A1", "A2"}, inv.restored["Alpha"])
	assert.Equal(t, 0, users.records[42].DailyRequests)
}

func TestIssue_DrawFaultRestoresEarlierGames(t *testing.T) {
	users := newFakeUsers(freeUser())
	inv := newFakeInv(map[string][]string{"Alpha": {"A1"}, "Beta": {"B1"}})
	s, _ := newEngine(users, inv, []string{"Alpha", "Beta"}, fixedDraw)

	// Alpha draws fine, then the Beta drop fails
	boom := errors.New("redis down")
	calls := 0
	inner := inv
	s.Inv = invFunc{
		peek: inner.PeekOldest,
		drop: func(ctx domain.Context, game string, codes []string) error {
			calls++
			if game == "Beta" {
				return boom
			}
			return inner.DropWarm(ctx, game, codes)
		},
		restore: inner.RestoreWarm,
	}

	_, err := s.Issue(t.Context(), 42)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 2, calls)
	assert.Equal(t, []string{"A1"}, inv.warm["Alpha"])
}

func TestIssue_UnknownUser(t *testing.T) {
	users := newFakeUsers()
	s, _ := newEngine(users, newFakeInv(map[string][]string{}), nil, fixedDraw)

	_, err := s.Issue(t.Context(), 99)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

// invFunc adapts closures to InventoryPort for fault injection.
type invFunc struct {
	peek    func(domain.Context, string, int) ([]string, error)
	drop    func(domain.Context, string, []string) error
	restore func(domain.Context, string, []string) error
}

func (f invFunc) PeekOldest(ctx domain.Context, game string, n int) ([]string, error) {
	return f.peek(ctx, game, n)
}

func (f invFunc) DropWarm(ctx domain.Context, game string, codes []string) error {
	return f.drop(ctx, game, codes)
}

func (f invFunc) RestoreWarm(ctx domain.Context, game string, codes []string) error {
	return f.restore(ctx, game, codes)
}
