// Package memstore provides in-memory implementations of the coupon Store
// and Ledger, suitable for the simulator and for tests. All operations are
// safe for concurrent use.
package memstore

import (
	"context"
	"slices"
	"sync"

	"github.com/xenking/promo-engine/internal/domain/coupon"
)

var _ coupon.Store = (*Store)(nil)

// Store keeps coupon definitions in a map guarded by a RWMutex. List order
// is insertion order. Reads return deep copies, so a caller never observes a
// concurrent update through a record it already holds.
type Store struct {
	mu     sync.RWMutex
	byCode map[string]coupon.Coupon
	order  []string
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{byCode: make(map[string]coupon.Coupon)}
}

// Create inserts a new coupon. Returns coupon.ErrDuplicateCode when the code
// is already present.
func (s *Store) Create(_ context.Context, c *coupon.Coupon) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byCode[c.Code]; ok {
		return coupon.ErrDuplicateCode
	}
	s.byCode[c.Code] = clone(c)
	s.order = append(s.order, c.Code)
	return nil
}

// Update replaces the record at code wholesale, keeping its list position.
func (s *Store) Update(_ context.Context, code string, c *coupon.Coupon) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byCode[code]; !ok {
		return coupon.ErrNotFound
	}
	replacement := clone(c)
	replacement.Code = code
	s.byCode[code] = replacement
	return nil
}

// Delete removes the record. The usage ledger is a separate component and is
// deliberately not touched.
func (s *Store) Delete(_ context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byCode[code]; !ok {
		return coupon.ErrNotFound
	}
	delete(s.byCode, code)
	if i := slices.Index(s.order, code); i >= 0 {
		s.order = slices.Delete(s.order, i, i+1)
	}
	return nil
}

// Get returns a copy of the coupon stored at code.
func (s *Store) Get(_ context.Context, code string) (*coupon.Coupon, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.byCode[code]
	if !ok {
		return nil, coupon.ErrNotFound
	}
	out := clone(&c)
	return &out, nil
}

// List returns copies of all coupons in insertion order.
func (s *Store) List(_ context.Context) ([]coupon.Coupon, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]coupon.Coupon, 0, len(s.order))
	for _, code := range s.order {
		c := s.byCode[code]
		out = append(out, clone(&c))
	}
	return out, nil
}

// clone deep-copies a coupon so stored state and returned values never share
// pointers or slice backing arrays.
func clone(c *coupon.Coupon) coupon.Coupon {
	out := *c
	if c.MaxDiscountAmount != nil {
		v := *c.MaxDiscountAmount
		out.MaxDiscountAmount = &v
	}
	if c.UsageLimitPerUser != nil {
		v := *c.UsageLimitPerUser
		out.UsageLimitPerUser = &v
	}
	if c.Eligibility != nil {
		e := *c.Eligibility
		e.AllowedUserTiers = slices.Clone(e.AllowedUserTiers)
		e.AllowedCountries = slices.Clone(e.AllowedCountries)
		e.ApplicableCategories = slices.Clone(e.ApplicableCategories)
		e.ExcludedCategories = slices.Clone(e.ExcludedCategories)
		if e.MinLifetimeSpend != nil {
			v := *e.MinLifetimeSpend
			e.MinLifetimeSpend = &v
		}
		if e.MinOrdersPlaced != nil {
			v := *e.MinOrdersPlaced
			e.MinOrdersPlaced = &v
		}
		if e.MinCartValue != nil {
			v := *e.MinCartValue
			e.MinCartValue = &v
		}
		if e.MinItemsCount != nil {
			v := *e.MinItemsCount
			e.MinItemsCount = &v
		}
		out.Eligibility = &e
	}
	return out
}
