package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/promo-engine/internal/domain/coupon"
)

const (
	createCouponSQL = `INSERT INTO coupons
		(code, description, discount_type, discount_value, max_discount,
		 valid_from, valid_until, usage_limit_per_user, eligibility, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	updateCouponSQL = `UPDATE coupons SET description = $2, discount_type = $3,
		discount_value = $4, max_discount = $5, valid_from = $6, valid_until = $7,
		usage_limit_per_user = $8, eligibility = $9, active = $10
		WHERE code = $1`

	deleteCouponSQL = `DELETE FROM coupons WHERE code = $1`

	getCouponSQL = `SELECT code, description, discount_type, discount_value,
		max_discount, valid_from, valid_until, usage_limit_per_user, eligibility, active
		FROM coupons WHERE code = $1`

	listCouponsSQL = `SELECT code, description, discount_type, discount_value,
		max_discount, valid_from, valid_until, usage_limit_per_user, eligibility, active
		FROM coupons ORDER BY position`
)

// uniqueViolation is the PostgreSQL error code for unique constraint breaches.
const uniqueViolation = "23505"

var _ coupon.Store = (*CouponStore)(nil)

// CouponStore implements coupon.Store backed by PostgreSQL. The eligibility
// bundle is stored as JSONB.
type CouponStore struct {
	pool *pgxpool.Pool
}

// NewCouponStore returns a CouponStore that uses the given pool.
func NewCouponStore(pool *pgxpool.Pool) *CouponStore {
	return &CouponStore{pool: pool}
}

// Create inserts a new coupon definition. Returns coupon.ErrDuplicateCode
// when the code is already taken.
func (s *CouponStore) Create(ctx context.Context, c *coupon.Coupon) error {
	args, err := couponArgs(c)
	if err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, createCouponSQL, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return coupon.ErrDuplicateCode
		}
		return fmt.Errorf("creating coupon %q: %w", c.Code, err)
	}
	return nil
}

// Update replaces the record at code wholesale, keeping its list position.
func (s *CouponStore) Update(ctx context.Context, code string, c *coupon.Coupon) error {
	replacement := *c
	replacement.Code = code
	args, err := couponArgs(&replacement)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, updateCouponSQL, args...)
	if err != nil {
		return fmt.Errorf("updating coupon %q: %w", code, err)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrNotFound
	}
	return nil
}

// Delete removes the record. Usage counters survive deletion.
func (s *CouponStore) Delete(ctx context.Context, code string) error {
	tag, err := s.pool.Exec(ctx, deleteCouponSQL, code)
	if err != nil {
		return fmt.Errorf("deleting coupon %q: %w", code, err)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrNotFound
	}
	return nil
}

// Get returns a single coupon by code.
func (s *CouponStore) Get(ctx context.Context, code string) (*coupon.Coupon, error) {
	rows, err := s.pool.Query(ctx, getCouponSQL, code)
	if err != nil {
		return nil, fmt.Errorf("getting coupon %q: %w", code, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, fmt.Errorf("getting coupon %q: %w", code, err)
	}
	return &c, nil
}

// List returns every coupon in insertion order.
func (s *CouponStore) List(ctx context.Context) ([]coupon.Coupon, error) {
	rows, err := s.pool.Query(ctx, listCouponsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing coupons: %w", err)
	}
	return pgx.CollectRows(rows, scanCoupon)
}

// couponArgs flattens a coupon into the positional arguments shared by the
// insert and update statements.
func couponArgs(c *coupon.Coupon) ([]any, error) {
	var eligibilityJSON []byte
	if c.Eligibility != nil {
		b, err := json.Marshal(c.Eligibility)
		if err != nil {
			return nil, fmt.Errorf("marshaling eligibility for %q: %w", c.Code, err)
		}
		eligibilityJSON = b
	}
	return []any{
		c.Code, c.Description, string(c.DiscountType), c.DiscountValue,
		c.MaxDiscountAmount, c.ValidFrom, c.ValidUntil,
		c.UsageLimitPerUser, eligibilityJSON, c.IsActive,
	}, nil
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var (
		c               coupon.Coupon
		discountType    string
		discountValue   decimal.Decimal
		maxDiscount     *decimal.Decimal
		validFrom       time.Time
		validUntil      time.Time
		usageLimit      *int
		eligibilityJSON []byte
	)
	err := row.Scan(
		&c.Code, &c.Description, &discountType, &discountValue,
		&maxDiscount, &validFrom, &validUntil, &usageLimit,
		&eligibilityJSON, &c.IsActive,
	)
	if err != nil {
		return coupon.Coupon{}, err
	}
	c.DiscountType = coupon.DiscountType(discountType)
	c.DiscountValue = discountValue
	c.MaxDiscountAmount = maxDiscount
	c.ValidFrom = validFrom
	c.ValidUntil = validUntil
	c.UsageLimitPerUser = usageLimit
	if len(eligibilityJSON) > 0 {
		var e coupon.Eligibility
		if err := json.Unmarshal(eligibilityJSON, &e); err != nil {
			return coupon.Coupon{}, fmt.Errorf("unmarshaling eligibility for %q: %w", c.Code, err)
		}
		c.Eligibility = &e
	}
	return c, nil
}
