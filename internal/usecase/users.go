package usecase

import (
	"log/slog"

	"github.com/fairyhunter13/promo-harvester/internal/domain"
)

// UserService wraps the user store for the front-end and the operator
// console. Request-path quota writes stay inside the issuance engine;
// everything here is identity, preferences, and operator flags.
type UserService struct {
	Store domain.UserStore
	Log   *slog.Logger
}

// NewUserService constructs a UserService.
func NewUserService(store domain.UserStore, log *slog.Logger) *UserService {
	return &UserService{Store: store, Log: log}
}

// Register creates the user on first contact and logs the event. Identity
// of an existing user is never overwritten.
func (s *UserService) Register(ctx domain.Context, id domain.UserIdentity) (domain.UserRecord, error) {
	u, err := s.Store.Upsert(ctx, id)
	if err != nil {
		return domain.UserRecord{}, err
	}
	if err := s.Store.LogAction(ctx, id.UserID, "start"); err != nil {
		s.Log.Warn("action log failed", slog.Any("error", err))
	}
	return u, nil
}

// Get loads one user.
func (s *UserService) Get(ctx domain.Context, userID int64) (domain.UserRecord, error) {
	return s.Store.Get(ctx, userID)
}

// SetLanguage stores the user's preferred language.
func (s *UserService) SetLanguage(ctx domain.Context, userID int64, lang string) error {
	return s.Store.SetLanguage(ctx, userID, lang)
}

// SetBanned toggles the ban flag (operator path).
func (s *UserService) SetBanned(ctx domain.Context, userID int64, banned bool) error {
	return s.Store.SetFlag(ctx, userID, "is_banned", banned)
}

// SetStatus moves the user between tiers (operator path).
func (s *UserService) SetStatus(ctx domain.Context, userID int64, status string) error {
	switch status {
	case domain.StatusFree, domain.StatusFriend, domain.StatusPremium:
	default:
		return domain.ErrInvalidArgument
	}
	return s.Store.SetFlag(ctx, userID, "user_status", status)
}

// SetRole grants or revokes the admin role (operator path).
func (s *UserService) SetRole(ctx domain.Context, userID int64, role string) error {
	switch role {
	case domain.RoleUser, domain.RoleAdmin:
	default:
		return domain.ErrInvalidArgument
	}
	return s.Store.SetFlag(ctx, userID, "user_role", role)
}

// SetNotes attaches operator notes to a user.
func (s *UserService) SetNotes(ctx domain.Context, userID int64, notes string) error {
	return s.Store.SetFlag(ctx, userID, "notes", notes)
}

// AdminChatIDs lists admin chat ids for targeted notifications.
func (s *UserService) AdminChatIDs(ctx domain.Context) ([]int64, error) {
	return s.Store.AdminChatIDs(ctx)
}
