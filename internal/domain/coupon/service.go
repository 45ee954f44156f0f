package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Service is the engine's single entry point for collaborators. It owns a
// Store and a Ledger and exposes coupon administration, redemption
// accounting, and best-offer selection. It holds no other state, so it is
// safe for concurrent use whenever its Store and Ledger are.
type Service struct {
	store  Store
	ledger Ledger
	now    func() time.Time
}

// NewService constructs a Service over the given store and ledger.
func NewService(store Store, ledger Ledger) *Service {
	return &Service{
		store:  store,
		ledger: ledger,
		now:    time.Now,
	}
}

// CreateCoupon validates the definition, normalizes its code, and inserts it.
// Returns ErrDuplicateCode when the code is already taken and
// InvalidFieldError when a field is out of range.
func (s *Service) CreateCoupon(ctx context.Context, c Coupon) error {
	c.Code = NormalizeCode(c.Code)
	if err := c.Validate(); err != nil {
		return err
	}
	return s.store.Create(ctx, &c)
}

// UpdateCoupon replaces the coupon stored at code wholesale. The code itself
// is immutable: the payload's code field is overwritten with the addressed
// one. Returns ErrNotFound when no such coupon exists.
func (s *Service) UpdateCoupon(ctx context.Context, code string, c Coupon) error {
	code = NormalizeCode(code)
	c.Code = code
	if err := c.Validate(); err != nil {
		return err
	}
	return s.store.Update(ctx, code, &c)
}

// DeleteCoupon removes the coupon. The ledger is left untouched, so a later
// coupon under the same code inherits the recorded usage counts.
func (s *Service) DeleteCoupon(ctx context.Context, code string) error {
	return s.store.Delete(ctx, NormalizeCode(code))
}

// GetCoupon returns a single coupon by code.
func (s *Service) GetCoupon(ctx context.Context, code string) (*Coupon, error) {
	return s.store.Get(ctx, NormalizeCode(code))
}

// ListCoupons returns all coupons, active or not, in insertion order.
func (s *Service) ListCoupons(ctx context.Context) ([]Coupon, error) {
	return s.store.List(ctx)
}

// RecordUsage increments the redemption counter for (code, userID). The
// coupon must exist in the store; unknown codes return ErrNotFound without
// touching the ledger.
func (s *Service) RecordUsage(ctx context.Context, code, userID string) error {
	code = NormalizeCode(code)
	if _, err := s.store.Get(ctx, code); err != nil {
		return err
	}
	return s.ledger.RecordUsage(ctx, code, userID)
}

// SelectBest evaluates every stored coupon against the user and cart and
// returns the single best applicable one with its computed discount, or nil
// when no coupon qualifies. It mutates nothing: given unchanged store and
// ledger contents, repeated calls return identical results.
//
// Ranking is a strict total order: higher discount first, then earlier
// expiry, then lexicographically smaller code.
func (s *Service) SelectBest(ctx context.Context, user UserContext, cart []CartLine) (*Selection, error) {
	if err := ValidateUser(user); err != nil {
		return nil, err
	}
	if err := ValidateCart(cart); err != nil {
		return nil, err
	}

	coupons, err := s.store.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list coupons")
	}

	now := s.now()
	var best *Selection
	for i := range coupons {
		c := &coupons[i]

		usage, err := s.ledger.UsageCount(ctx, c.Code, user.UserID)
		if err != nil {
			return nil, errors.Wrapf(err, "usage count for %s", c.Code)
		}
		if !Eligible(c, user, cart, usage, now) {
			continue
		}

		candidate := &Selection{Coupon: *c, DiscountAmount: Compute(c, cart)}
		if best == nil || betterOffer(candidate, best) {
			best = candidate
		}
	}
	return best, nil
}

// betterOffer reports whether a ranks strictly above b.
func betterOffer(a, b *Selection) bool {
	if cmp := a.DiscountAmount.Cmp(b.DiscountAmount); cmp != 0 {
		return cmp > 0
	}
	if !a.Coupon.ValidUntil.Equal(b.Coupon.ValidUntil) {
		return a.Coupon.ValidUntil.Before(b.Coupon.ValidUntil)
	}
	return a.Coupon.Code < b.Coupon.Code
}

// FinalPrice is a convenience for collaborators presenting a selection:
// cart total minus discount, floored at zero.
func FinalPrice(cart []CartLine, discount decimal.Decimal) decimal.Decimal {
	total := cartTotal(cart).Sub(discount)
	if total.IsNegative() {
		total = decimal.Zero
	}
	return total.Round(2)
}
