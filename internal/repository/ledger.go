package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/promo-engine/internal/domain/coupon"
)

const (
	recordUsageSQL = `INSERT INTO coupon_usage (code, user_id, uses)
		VALUES ($1, $2, 1)
		ON CONFLICT (code, user_id) DO UPDATE SET uses = coupon_usage.uses + 1`

	usageCountSQL = `SELECT uses FROM coupon_usage WHERE code = $1 AND user_id = $2`
)

var _ coupon.Ledger = (*UsageLedger)(nil)

// UsageLedger implements coupon.Ledger backed by PostgreSQL. The upsert
// increment is atomic per row, so concurrent redemptions of the same
// (code, user) pair never lose counts.
type UsageLedger struct {
	pool *pgxpool.Pool
}

// NewUsageLedger returns a UsageLedger that uses the given pool.
func NewUsageLedger(pool *pgxpool.Pool) *UsageLedger {
	return &UsageLedger{pool: pool}
}

// RecordUsage increments the counter for (code, userID), creating the row on
// first redemption.
func (l *UsageLedger) RecordUsage(ctx context.Context, code, userID string) error {
	if _, err := l.pool.Exec(ctx, recordUsageSQL, code, userID); err != nil {
		return fmt.Errorf("recording usage of %q by %q: %w", code, userID, err)
	}
	return nil
}

// UsageCount returns the recorded redemption count, zero when no row exists.
func (l *UsageLedger) UsageCount(ctx context.Context, code, userID string) (int64, error) {
	var uses int64
	err := l.pool.QueryRow(ctx, usageCountSQL, code, userID).Scan(&uses)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("counting usage of %q by %q: %w", code, userID, err)
	}
	return uses, nil
}
