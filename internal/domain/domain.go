// Package domain holds the core types and ports of the promo-code
// harvesting and distribution service. Adapters implement the ports;
// usecases depend only on this package.
package domain

import (
	"context"
	"errors"
	"time"
)

// Context aliases context.Context to keep port signatures compact.
type Context = context.Context

// Error taxonomy (sentinels)
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrBanned          = errors.New("user banned")
	// ErrTooManyRegister is the upstream rate signal: HTTP 400 with the
	// TooManyRegister token in the body.
	ErrTooManyRegister = errors.New("too many register")
	// ErrHTMLResponse marks an HTML body from an intermediate proxy;
	// always treated as a transient failure.
	ErrHTMLResponse = errors.New("unexpected html response")
	ErrNoCode       = errors.New("no code granted")
	ErrInternal     = errors.New("internal error")
)

// GameSpec is the static configuration for one game in the catalog.
// Name doubles as the inventory partition key.
type GameSpec struct {
	Name      string
	AppToken  string
	PromoID   string
	BaseDelay time.Duration
	Attempts  int
	Copies    int
}

// ProxySpec is one outbound egress, bound to at most one worker at a time.
// URL carries optional basic-auth credentials (user:pass@host:port).
type ProxySpec struct {
	URL string
}

// Code is an unissued promo code held in an inventory partition.
type Code struct {
	Game      string
	PromoCode string
	CreatedAt time.Time
}

// Status tiers for users.
const (
	StatusFree    = "free"
	StatusFriend  = "friend"
	StatusPremium = "premium"
)

// Roles for users.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// TierLimit is the quota knobs for one status tier.
type TierLimit struct {
	DailyLimit int
	Interval   time.Duration
}

// TierLimits maps status tier to its quota knobs. Unknown tiers resolve to
// a zero limit, which always rejects.
type TierLimits map[string]TierLimit

// For returns the limit for a status, zero-valued when unknown.
func (t TierLimits) For(status string) TierLimit { return t[status] }

// UserRecord is one row of the user state store.
type UserRecord struct {
	ID                 int64
	UserID             int64
	ChatID             int64
	FirstName          string
	LastName           string
	Username           string
	Language           string
	Status             string
	Role               string
	IsBanned           bool
	DailyRequests      int
	LastResetDate      time.Time // date component only, UTC
	LastRequestTime    time.Time // zero when the user never requested
	TotalKeysGenerated int64
	RegisteredAt       time.Time
	Notes              string
}

// UserIdentity is the create-if-absent projection of a chat user.
type UserIdentity struct {
	UserID    int64
	ChatID    int64
	FirstName string
	LastName  string
	Username  string
	Language  string
}

// Inventory is the two-tier code buffer between workers and issuance.
// Append is durable; PeekOldest is non-destructive and FIFO by creation
// time; Remove is idempotent and hides removed codes from later peeks.
type Inventory interface {
	Append(ctx Context, game, code string) error
	PeekOldest(ctx Context, game string, n int) ([]string, error)
	Remove(ctx Context, game string, codes []string) error
	Count(ctx Context, game string) (int64, error)
}

// InventoryStore is the durable tier underneath the Inventory service.
type InventoryStore interface {
	InsertCode(ctx Context, game, code string) error
	OldestCodes(ctx Context, game string, limit int) ([]string, error)
	DeleteCodes(ctx Context, game string, codes []string) error
	CountCodes(ctx Context, game string) (int64, error)
}

// WarmTier is the ordered in-memory list in front of the durable tier.
// Implemented over Redis lists keyed keys:<game>.
type WarmTier interface {
	Push(ctx Context, game string, codes []string) error
	// Restore prepends codes so a failed issuance puts them back at the
	// head in their original order.
	Restore(ctx Context, game string, codes []string) error
	Range(ctx Context, game string, n int) ([]string, error)
	Remove(ctx Context, game string, codes []string) error
	Len(ctx Context, game string) (int64, error)
}

// UserStore persists user records. Request-path writes go through
// ResetDailyIfNeeded and the issuance commit; operator writes may use
// SetFlag directly.
type UserStore interface {
	Get(ctx Context, userID int64) (UserRecord, error)
	Upsert(ctx Context, id UserIdentity) (UserRecord, error)
	SetLanguage(ctx Context, userID int64, lang string) error
	SetFlag(ctx Context, userID int64, field string, value any) error
	ResetDailyIfNeeded(ctx Context, userID int64, today time.Time) error
	AdminChatIDs(ctx Context) ([]int64, error)
	LogAction(ctx Context, userID int64, action string) error
	CountUsers(ctx Context) (int64, error)
	DailyRequests(ctx Context) (int64, error)
}

// IssueCommitter executes the issuance commit: delete the drawn codes from
// the durable tier and advance the user's counters in one transaction.
type IssueCommitter interface {
	CommitIssue(ctx Context, userID int64, drawn map[string][]string, now time.Time) error
}

// PromoClient drives the upstream promo API through one bound proxy.
type PromoClient interface {
	LoginClient(ctx Context, appToken, clientID string) (token string, err error)
	RegisterEvent(ctx Context, token, promoID, eventID string) (hasCode bool, err error)
	CreateCode(ctx Context, token, promoID string) (promoCode string, err error)
}

// Messenger is the out-of-scope chat transport: the core only needs to
// push text at a chat id.
type Messenger interface {
	SendMessage(ctx Context, chatID int64, text string) error
}

// Translator resolves a message key for a user's language. The shipped
// implementation is English-only; real translation lives outside the core.
type Translator interface {
	Lookup(lang, key string) string
}

// IssueOutcome is the categorical result of an issuance request.
type IssueOutcome int

// The four outcomes surfaced by the issuance engine.
const (
	OutcomeGranted IssueOutcome = iota
	OutcomeWait
	OutcomeLimitReached
	OutcomeBanned
)

// String names the outcome for logs and metrics labels.
func (o IssueOutcome) String() string {
	switch o {
	case OutcomeGranted:
		return "granted"
	case OutcomeWait:
		return "wait"
	case OutcomeLimitReached:
		return "limit_reached"
	case OutcomeBanned:
		return "banned"
	}
	return "unknown"
}

// GameDraw is the per-game slice of an issuance grant. Codes may be
// shorter than requested (or empty) when the partition ran dry.
type GameDraw struct {
	Game  string
	Codes []string
}

// IssueResult carries the outcome plus per-outcome payloads.
type IssueResult struct {
	Outcome IssueOutcome
	// Draws is populated for OutcomeGranted, in catalog order.
	Draws []GameDraw
	// Remaining is populated for OutcomeWait.
	Remaining time.Duration
}

// TotalCodes sums the drawn codes across games.
func (r IssueResult) TotalCodes() int {
	n := 0
	for _, d := range r.Draws {
		n += len(d.Codes)
	}
	return n
}
