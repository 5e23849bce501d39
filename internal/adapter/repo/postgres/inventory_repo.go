package postgres

import (
	"fmt"
	"time"

	"github.com/fairyhunter13/promo-harvester/internal/domain"
)

// InventoryRepo is the durable tier of the code inventory: a single
// partition table keyed (game, promo_code), FIFO by created_at.
type InventoryRepo struct{ Pool PgxPool }

// NewInventoryRepo constructs an InventoryRepo with the given pool.
func NewInventoryRepo(p PgxPool) *InventoryRepo { return &InventoryRepo{Pool: p} }

// InsertCode appends one minted code to the game's partition.
func (r *InventoryRepo) InsertCode(ctx domain.Context, game, code string) error {
	q := `INSERT INTO promo_codes (game, promo_code, created_at) VALUES ($1,$2,$3)`
	if _, err := r.Pool.Exec(ctx, q, game, code, time.Now().UTC()); err != nil {
		return fmt.Errorf("op=inventory.insert: %w", err)
	}
	return nil
}

// OldestCodes returns up to limit codes in creation order. Ties on
// created_at break by row id so the order stays consistent.
func (r *InventoryRepo) OldestCodes(ctx domain.Context, game string, limit int) ([]string, error) {
	q := `SELECT promo_code FROM promo_codes WHERE game=$1 ORDER BY created_at ASC, id ASC LIMIT $2`
	rows, err := r.Pool.Query(ctx, q, game, limit)
	if err != nil {
		return nil, fmt.Errorf("op=inventory.oldest: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("op=inventory.oldest: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=inventory.oldest: %w", err)
	}
	return out, nil
}

// DeleteCodes removes codes by value. Idempotent: deleting an absent code
// is not an error.
func (r *InventoryRepo) DeleteCodes(ctx domain.Context, game string, codes []string) error {
	if len(codes) == 0 {
		return nil
	}
	q := `DELETE FROM promo_codes WHERE game=$1 AND promo_code = ANY($2)`
	if _, err := r.Pool.Exec(ctx, q, game, codes); err != nil {
		return fmt.Errorf("op=inventory.delete: %w", err)
	}
	return nil
}

// CountCodes reports the partition size; used for operator dashboards only.
func (r *InventoryRepo) CountCodes(ctx domain.Context, game string) (int64, error) {
	var n int64
	q := `SELECT COUNT(*) FROM promo_codes WHERE game=$1`
	if err := r.Pool.QueryRow(ctx, q, game).Scan(&n); err != nil {
		return 0, fmt.Errorf("op=inventory.count: %w", err)
	}
	return n, nil
}
