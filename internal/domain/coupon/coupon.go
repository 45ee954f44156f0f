// Package coupon implements the best-offer selection engine: coupon
// definitions, per-user usage accounting, eligibility evaluation, discount
// calculation, and deterministic ranking of concurrent offers.
package coupon

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DiscountType enumerates the supported coupon discount strategies.
type DiscountType string

const (
	// DiscountFlat subtracts a fixed monetary amount from the order.
	DiscountFlat DiscountType = "FLAT"
	// DiscountPercent subtracts a percentage of the eligible cart subtotal.
	DiscountPercent DiscountType = "PERCENT"
)

var (
	// ErrNotFound is returned when no coupon exists for the given code.
	ErrNotFound = errors.New("coupon not found")
	// ErrDuplicateCode is returned when creating a coupon whose code is
	// already present in the store.
	ErrDuplicateCode = errors.New("coupon code already exists")
)

// Coupon is a named, time-bounded discount offer. Codes are upper-cased and
// act as the primary key; a coupon is replaced wholesale on update, never
// mutated in place.
type Coupon struct {
	Code              string           `json:"code" validate:"required"`
	Description       string           `json:"description"`
	DiscountType      DiscountType     `json:"discountType" validate:"oneof=FLAT PERCENT"`
	DiscountValue     decimal.Decimal  `json:"discountValue" validate:"gte=0"`
	MaxDiscountAmount *decimal.Decimal `json:"maxDiscountAmount,omitempty" validate:"omitempty,gte=0"`
	ValidFrom         time.Time        `json:"validFrom" validate:"required"`
	ValidUntil        time.Time        `json:"validUntil" validate:"required"`
	UsageLimitPerUser *int             `json:"usageLimitPerUser,omitempty" validate:"omitempty,gte=0"`
	Eligibility       *Eligibility     `json:"eligibility,omitempty"`
	// IsActive withdraws the coupon from selection when false. The coupon
	// stays readable and editable.
	IsActive bool `json:"isActive"`
}

// Eligibility is a conjunctive rule bundle: every present field must pass for
// the coupon to apply. A nil bundle means no restriction beyond the validity
// window and usage limit.
type Eligibility struct {
	AllowedUserTiers     []string         `json:"allowedUserTiers,omitempty"`
	MinLifetimeSpend     *decimal.Decimal `json:"minLifetimeSpend,omitempty" validate:"omitempty,gte=0"`
	MinOrdersPlaced      *int             `json:"minOrdersPlaced,omitempty" validate:"omitempty,gte=0"`
	FirstOrderOnly       bool             `json:"firstOrderOnly,omitempty"`
	AllowedCountries     []string         `json:"allowedCountries,omitempty"`
	MinCartValue         *decimal.Decimal `json:"minCartValue,omitempty" validate:"omitempty,gte=0"`
	MinItemsCount        *int             `json:"minItemsCount,omitempty" validate:"omitempty,gte=0"`
	ApplicableCategories []string         `json:"applicableCategories,omitempty"`
	ExcludedCategories   []string         `json:"excludedCategories,omitempty"`
}

// CartLine is a single cart position used for eligibility checks and
// discount calculation.
type CartLine struct {
	ProductID string          `json:"productId" validate:"required"`
	Category  string          `json:"category"`
	UnitPrice decimal.Decimal `json:"unitPrice" validate:"gte=0"`
	Quantity  int             `json:"quantity" validate:"gt=0"`
}

// UserContext carries the shopper attributes eligibility rules read. Missing
// numeric fields evaluate as zero; missing strings fail membership checks
// rather than acting as wildcards.
type UserContext struct {
	UserID        string          `json:"userId" validate:"required"`
	UserTier      string          `json:"userTier,omitempty"`
	Country       string          `json:"country,omitempty"`
	LifetimeSpend decimal.Decimal `json:"lifetimeSpend"`
	OrdersPlaced  int             `json:"ordersPlaced"`
}

// Selection is the outcome of best-offer ranking: the winning coupon and the
// discount it produces for the evaluated cart.
type Selection struct {
	Coupon         Coupon
	DiscountAmount decimal.Decimal
}

// NormalizeCode canonicalizes a coupon code for storage and lookup.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Store is a keyed collection of coupon definitions. Implementations must
// return records that readers can hold without observing concurrent updates,
// and List must preserve insertion order.
type Store interface {
	Create(ctx context.Context, c *Coupon) error
	Update(ctx context.Context, code string, c *Coupon) error
	Delete(ctx context.Context, code string) error
	Get(ctx context.Context, code string) (*Coupon, error)
	List(ctx context.Context) ([]Coupon, error)
}

// Ledger tracks per-(coupon, user) redemption counts. Counts start at zero,
// only ever grow, and increments for the same key must not be lost under
// concurrent redemptions.
type Ledger interface {
	RecordUsage(ctx context.Context, code, userID string) error
	UsageCount(ctx context.Context, code, userID string) (int64, error)
}
