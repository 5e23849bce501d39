package app_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/promo-harvester/internal/app"
	"github.com/fairyhunter13/promo-harvester/internal/bot"
	"github.com/fairyhunter13/promo-harvester/internal/config"
	"github.com/fairyhunter13/promo-harvester/internal/domain"
	"github.com/fairyhunter13/promo-harvester/internal/usecase"
)

type memUsers struct {
	records map[int64]domain.UserRecord
	admins  []int64
}

func (m *memUsers) Get(_ domain.Context, userID int64) (domain.UserRecord, error) {
	u, ok := m.records[userID]
	if !ok {
		return domain.UserRecord{}, domain.ErrNotFound
	}
	return u, nil
}

func (m *memUsers) Upsert(_ domain.Context, id domain.UserIdentity) (domain.UserRecord, error) {
	u, ok := m.records[id.UserID]
	if !ok {
		u = domain.UserRecord{UserID: id.UserID, ChatID: id.ChatID, Status: domain.StatusFree}
		m.records[id.UserID] = u
	}
	return u, nil
}

func (m *memUsers) SetLanguage(domain.Context, int64, string) error { return nil }

func (m *memUsers) SetFlag(_ domain.Context, userID int64, field string, value any) error {
	u, ok := m.records[userID]
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
	}
	m.records[userID] = u
	return nil
}

func (m *memUsers) ResetDailyIfNeeded(domain.Context, int64, time.Time) error { return nil }

func (m *memUsers) AdminChatIDs(domain.Context) ([]int64, error) { return m.admins, nil }

func (m *memUsers) LogAction(domain.Context, int64, string) error { return nil }

func (m *memUsers) CountUsers(domain.Context) (int64, error) {
	return int64(len(m.records)), nil
}

func (m *memUsers) DailyRequests(domain.Context) (int64, error) {
	var n int64
	for _, u := range m.records {
		n += int64(u.DailyRequests)
	}
	return n, nil
}

type memInv struct {
	counts map[string]int64
}

func (m memInv) Append(domain.Context, string, string) error               { return nil }
func (m memInv) PeekOldest(domain.Context, string, int) ([]string, error)  { return nil, nil }
func (m memInv) Remove(domain.Context, string, []string) error             { return nil }
func (m memInv) Count(_ domain.Context, game string) (int64, error)        { return m.counts[game], nil }

type chanMessenger struct {
	sent []int64
}

func (m *chanMessenger) SendMessage(_ domain.Context, chatID int64, _ string) error {
	m.sent = append(m.sent, chatID)
	return nil
}

func testHandler(t *testing.T, users *memUsers, inv memInv) (http.Handler, *chanMessenger) {
	t.Helper()
	cfg := config.Config{RateLimitPerMin: 100, CORSAllowOrigins: "*"}
	log := slog.Default()
	msg := &chanMessenger{}
	fwd, err := usecase.NewForwardMap(16)
	require.NoError(t, err)
	usvc := usecase.NewUserService(users, log)
	srv := &app.Server{
		Cfg:   cfg,
		Stats: usecase.NewStatsService(inv, users, []string{"Alpha", "Beta"}, 2),
		Users: usvc,
		Front: &bot.Front{
			Users:    usvc,
			Msg:      msg,
			Tr:       bot.EnglishTranslator{},
			Forwards: fwd,
			Log:      log,
		},
		Log: log,
	}
	ready := app.ReadyChecks{
		DB:    func(domain.Context) error { return nil },
		Redis: func(domain.Context) error { return nil },
	}
	return app.BuildRouter(cfg, srv, ready), msg
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func post(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestInventoryEndpoint(t *testing.T) {
	h, _ := testHandler(t, &memUsers{records: map[int64]domain.UserRecord{}},
		memInv{counts: map[string]int64{"Alpha": 10, "Beta": 5}})

	rec := get(t, h, "/v1/inventory")
	require.Equal(t, http.StatusOK, rec.Code)

	var counts []usecase.GameCount
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &counts))
	// display counts carry the popularity coefficient
	assert.Equal(t, []usecase.GameCount{{Game: "Alpha", Count: 20}, {Game: "Beta", Count: 10}}, counts)
}

func TestSummaryEndpoint(t *testing.T) {
	users := &memUsers{records: map[int64]domain.UserRecord{
		1: {UserID: 1, DailyRequests: 2},
		2: {UserID: 2, DailyRequests: 1},
	}}
	h, _ := testHandler(t, users, memInv{})

	rec := get(t, h, "/v1/summary")
	require.Equal(t, http.StatusOK, rec.Code)

	var sum usecase.FleetSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sum))
	assert.EqualValues(t, 2, sum.Users)
	assert.EqualValues(t, 3, sum.RequestsToday)
}

func TestUserEndpoint(t *testing.T) {
	users := &memUsers{records: map[int64]domain.UserRecord{
		42: {UserID: 42, Username: "ada", Status: domain.StatusFriend},
	}}
	h, _ := testHandler(t, users, memInv{})

	rec := get(t, h, "/v1/users/42")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ada"`)

	assert.Equal(t, http.StatusNotFound, get(t, h, "/v1/users/99").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, h, "/v1/users/abc").Code)
}

func TestFlagEndpoint(t *testing.T) {
	users := &memUsers{records: map[int64]domain.UserRecord{42: {UserID: 42}}}
	h, _ := testHandler(t, users, memInv{})

	rec := post(t, h, "/v1/users/42/flags", map[string]any{"field": "is_banned", "value": true})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, users.records[42].IsBanned)

	rec = post(t, h, "/v1/users/42/flags", map[string]any{"field": "user_status", "value": "premium"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.StatusPremium, users.records[42].Status)

	// type and value validation
	assert.Equal(t, http.StatusBadRequest,
		post(t, h, "/v1/users/42/flags", map[string]any{"field": "is_banned", "value": "yes"}).Code)
	assert.Equal(t, http.StatusBadRequest,
		post(t, h, "/v1/users/42/flags", map[string]any{"field": "user_status", "value": "vip"}).Code)
	assert.Equal(t, http.StatusBadRequest,
		post(t, h, "/v1/users/42/flags", map[string]any{"field": "shoe_size", "value": 9}).Code)
	assert.Equal(t, http.StatusNotFound,
		post(t, h, "/v1/users/99/flags", map[string]any{"field": "is_banned", "value": true}).Code)
}

func TestNotifyEndpoint(t *testing.T) {
	users := &memUsers{
		records: map[int64]domain.UserRecord{},
		admins:  []int64{7, 8},
	}
	h, msg := testHandler(t, users, memInv{})

	rec := post(t, h, "/v1/notify", map[string]any{
		"chat_ids": []int64{1, 2},
		"admins":   true,
		"text":     "maintenance tonight",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"sent":4`)
	assert.Equal(t, []int64{1, 2, 7, 8}, msg.sent)

	assert.Equal(t, http.StatusBadRequest,
		post(t, h, "/v1/notify", map[string]any{"chat_ids": []int64{1}}).Code)
}

func TestHealthAndReady(t *testing.T) {
	h, _ := testHandler(t, &memUsers{records: map[int64]domain.UserRecord{}}, memInv{})

	assert.Equal(t, http.StatusOK, get(t, h, "/healthz").Code)
	assert.Equal(t, http.StatusOK, get(t, h, "/readyz").Code)
	assert.Equal(t, http.StatusOK, get(t, h, "/metrics").Code)
}

func TestReadyz_FailingDependency(t *testing.T) {
	checks := app.ReadyChecks{
		DB:    func(domain.Context) error { return nil },
		Redis: func(domain.Context) error { return errors.New("refused") },
	}
	rec := httptest.NewRecorder()
	app.ReadyzHandler(checks)(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "redis not ready")
}
