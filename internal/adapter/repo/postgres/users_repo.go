package postgres

import (
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/fairyhunter13/promo-harvester/internal/domain"
)

// UsersRepo persists user records and the per-user quota state.
type UsersRepo struct{ Pool PgxPool }

// NewUsersRepo constructs a UsersRepo with the given pool.
func NewUsersRepo(p PgxPool) *UsersRepo { return &UsersRepo{Pool: p} }

const userColumns = `id, user_id, chat_id, COALESCE(first_name,''), COALESCE(last_name,''),
	COALESCE(username,''), COALESCE(language_code,''), user_status, user_role, is_banned,
	daily_requests_count, last_reset_date, last_request_time, total_keys_generated,
	registration_date, COALESCE(notes,'')`

func scanUser(row pgx.Row) (domain.UserRecord, error) {
	var u domain.UserRecord
	var lastReq *time.Time
	err := row.Scan(&u.ID, &u.UserID, &u.ChatID, &u.FirstName, &u.LastName,
		&u.Username, &u.Language, &u.Status, &u.Role, &u.IsBanned,
		&u.DailyRequests, &u.LastResetDate, &lastReq, &u.TotalKeysGenerated,
		&u.RegisteredAt, &u.Notes)
	if err != nil {
		return domain.UserRecord{}, err
	}
	if lastReq != nil {
		u.LastRequestTime = *lastReq
	}
	return u, nil
}

// Get loads a user by user id.
func (r *UsersRepo) Get(ctx domain.Context, userID int64) (domain.UserRecord, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE user_id=$1`
	u, err := scanUser(r.Pool.QueryRow(ctx, q, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.UserRecord{}, fmt.Errorf("op=users.get: %w", domain.ErrNotFound)
		}
		return domain.UserRecord{}, fmt.Errorf("op=users.get: %w", err)
	}
	return u, nil
}

// Upsert creates the user if absent and returns the stored record. An
// existing identity is never overwritten.
func (r *UsersRepo) Upsert(ctx domain.Context, id domain.UserIdentity) (domain.UserRecord, error) {
	q := `INSERT INTO users (user_id, chat_id, first_name, last_name, username, language_code)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (user_id) DO NOTHING`
	if _, err := r.Pool.Exec(ctx, q, id.UserID, id.ChatID, id.FirstName, id.LastName, id.Username, id.Language); err != nil {
		return domain.UserRecord{}, fmt.Errorf("op=users.upsert: %w", err)
	}
	return r.Get(ctx, id.UserID)
}

// SetLanguage updates the user's preferred language.
func (r *UsersRepo) SetLanguage(ctx domain.Context, userID int64, lang string) error {
	q := `UPDATE users SET language_code=$2 WHERE user_id=$1`
	if _, err := r.Pool.Exec(ctx, q, userID, lang); err != nil {
		return fmt.Errorf("op=users.set_language: %w", err)
	}
	return nil
}

// flagColumns whitelists the operator-writable fields.
var flagColumns = map[string]string{
	"is_banned":   "is_banned",
	"user_status": "user_status",
	"user_role":   "user_role",
	"notes":       "notes",
}

// SetFlag sets one operator-controlled field (ban, status, role, notes).
func (r *UsersRepo) SetFlag(ctx domain.Context, userID int64, field string, value any) error {
	col, ok := flagColumns[field]
	if !ok {
		return fmt.Errorf("op=users.set_flag: %w: field %q", domain.ErrInvalidArgument, field)
	}
	q := fmt.Sprintf(`UPDATE users SET %s=$2 WHERE user_id=$1`, col)
	tag, err := r.Pool.Exec(ctx, q, userID, value)
	if err != nil {
		return fmt.Errorf("op=users.set_flag: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("op=users.set_flag: %w", domain.ErrNotFound)
	}
	return nil
}

// ResetDailyIfNeeded zeroes the daily counter once per UTC day. The WHERE
// clause makes the reset idempotent: a second call on the same day matches
// no row.
func (r *UsersRepo) ResetDailyIfNeeded(ctx domain.Context, userID int64, today time.Time) error {
	q := `UPDATE users SET daily_requests_count=0, last_reset_date=$2
		WHERE user_id=$1 AND last_reset_date <> $2`
	if _, err := r.Pool.Exec(ctx, q, userID, today.UTC().Truncate(24*time.Hour)); err != nil {
		return fmt.Errorf("op=users.reset_daily: %w", err)
	}
	return nil
}

// AdminChatIDs lists chat ids of users with the admin role.
func (r *UsersRepo) AdminChatIDs(ctx domain.Context) ([]int64, error) {
	q := `SELECT chat_id FROM users WHERE user_role=$1`
	rows, err := r.Pool.Query(ctx, q, domain.RoleAdmin)
	if err != nil {
		return nil, fmt.Errorf("op=users.admin_chats: %w", err)
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("op=users.admin_chats: %w", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=users.admin_chats: %w", err)
	}
	return out, nil
}

// LogAction appends one row to the user action log.
func (r *UsersRepo) LogAction(ctx domain.Context, userID int64, action string) error {
	q := `INSERT INTO user_logs (user_id, action) VALUES ($1,$2)`
	if _, err := r.Pool.Exec(ctx, q, userID, action); err != nil {
		return fmt.Errorf("op=users.log_action: %w", err)
	}
	return nil
}

// CountUsers reports the total number of registered users.
func (r *UsersRepo) CountUsers(ctx domain.Context) (int64, error) {
	var n int64
	if err := r.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("op=users.count: %w", err)
	}
	return n, nil
}

// DailyRequests sums today's request counters across users (dashboards).
func (r *UsersRepo) DailyRequests(ctx domain.Context) (int64, error) {
	var n int64
	q := `SELECT COALESCE(SUM(daily_requests_count),0) FROM users WHERE last_reset_date = CURRENT_DATE`
	if err := r.Pool.QueryRow(ctx, q).Scan(&n); err != nil {
		return 0, fmt.Errorf("op=users.daily_requests: %w", err)
	}
	return n, nil
}

// CommitIssue is the issuance commit: in one transaction, delete the drawn
// codes from the durable tier and advance the user's counters. A crash
// between the two cannot leave the user over quota on retry.
func (r *UsersRepo) CommitIssue(ctx domain.Context, userID int64, drawn map[string][]string, now time.Time) error {
	tx, err := r.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("op=users.commit_issue: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	total := 0
	for game, codes := range drawn {
		if len(codes) == 0 {
			continue
		}
		total += len(codes)
		q := `DELETE FROM promo_codes WHERE game=$1 AND promo_code = ANY($2)`
		if _, err := tx.Exec(ctx, q, game, codes); err != nil {
			return fmt.Errorf("op=users.commit_issue: %w", err)
		}
	}

	now = now.UTC()
	q := `UPDATE users SET
		daily_requests_count = daily_requests_count + 1,
		total_keys_generated = total_keys_generated + $2,
		last_request_time = $3,
		last_reset_date = $4
		WHERE user_id=$1`
	if _, err := tx.Exec(ctx, q, userID, total, now, now.Truncate(24*time.Hour)); err != nil {
		return fmt.Errorf("op=users.commit_issue: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("op=users.commit_issue: %w", err)
	}
	return nil
}
