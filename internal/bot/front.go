package bot

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/fairyhunter13/promo-harvester/internal/domain"
	"github.com/fairyhunter13/promo-harvester/internal/usecase"
)

// Issuer is the slice of the issuance engine the front-end calls.
type Issuer interface {
	Issue(ctx domain.Context, userID int64) (domain.IssueResult, error)
}

// Front handles distributor-side chat events. The transport feeding it is
// external; Front only depends on the Messenger port.
type Front struct {
	Users    *usecase.UserService
	Issuer   Issuer
	Msg      domain.Messenger
	Tr       domain.Translator
	Forwards *usecase.ForwardMap
	// AdminGroupID receives forwarded user messages; zero disables
	// forwarding.
	AdminGroupID int64
	Log          *slog.Logger
}

// HandleStart registers the user on first contact and sends the welcome.
func (f *Front) HandleStart(ctx domain.Context, id domain.UserIdentity) error {
	u, err := f.Users.Register(ctx, id)
	if err != nil {
		return fmt.Errorf("op=front.start: %w", err)
	}
	return f.Msg.SendMessage(ctx, u.ChatID, f.Tr.Lookup(u.Language, "welcome"))
}

// HandleGetKeys runs the issuance engine for the user and renders the
// outcome. Engine errors become the generic issue_error message; the
// categorical outcomes render their own text.
func (f *Front) HandleGetKeys(ctx domain.Context, userID, chatID int64) error {
	u, err := f.Users.Get(ctx, userID)
	if err != nil {
		return fmt.Errorf("op=front.get_keys: %w", err)
	}
	res, err := f.Issuer.Issue(ctx, userID)
	if err != nil {
		f.Log.Error("issuance failed", slog.Int64("user_id", userID), slog.Any("error", err))
		return f.Msg.SendMessage(ctx, chatID, f.Tr.Lookup(u.Language, "issue_error"))
	}
	return f.Msg.SendMessage(ctx, chatID, FormatIssue(f.Tr, u.Language, res))
}

// HandleStats sends the user's profile card.
func (f *Front) HandleStats(ctx domain.Context, userID, chatID int64) error {
	u, err := f.Users.Get(ctx, userID)
	if err != nil {
		return fmt.Errorf("op=front.stats: %w", err)
	}
	st := usecase.BuildStats(u, time.Now().UTC())
	text := fmt.Sprintf(f.Tr.Lookup(u.Language, "stats"),
		st.Status, st.Achievement, st.KeysToday, st.KeysTotal, st.DaysInBot)
	return f.Msg.SendMessage(ctx, chatID, text)
}

// TrackForward records that a user message was forwarded into the admin
// group under forwardedID, so a later admin reply can be routed back.
func (f *Front) TrackForward(forwardedID, userChatID, userMessageID int64) {
	if f.AdminGroupID == 0 {
		return
	}
	f.Forwards.Track(forwardedID, usecase.ForwardRef{ChatID: userChatID, MessageID: userMessageID})
}

// HandleAdminReply routes an admin-group reply back to the origin user.
// Replies to untracked (evicted) forwards are dropped with a log.
func (f *Front) HandleAdminReply(ctx domain.Context, repliedToID int64, text string) error {
	ref, ok := f.Forwards.Resolve(repliedToID)
	if !ok {
		f.Log.Warn("reply to untracked forward", slog.Int64("message_id", repliedToID))
		return nil
	}
	return f.Msg.SendMessage(ctx, ref.ChatID, text)
}

// Notify sends text to every listed chat; failures are logged per chat and
// do not stop the fan-out.
func (f *Front) Notify(ctx domain.Context, chatIDs []int64, text string) {
	for _, id := range chatIDs {
		if err := f.Msg.SendMessage(ctx, id, text); err != nil {
			f.Log.Error("notify failed", slog.Int64("chat_id", id), slog.Any("error", err))
		}
	}
}
