package coupon

import (
	"slices"
	"time"
)

// Eligible reports whether the coupon applies to the given user and cart at
// the given instant, with priorUsage redemptions already on record for this
// user. All conditions are conjunctive; evaluation short-circuits on the
// first failure.
func Eligible(c *Coupon, user UserContext, cart []CartLine, priorUsage int64, now time.Time) bool {
	// Validity window is inclusive on both ends.
	if now.Before(c.ValidFrom) || now.After(c.ValidUntil) {
		return false
	}
	if !c.IsActive {
		return false
	}
	if c.UsageLimitPerUser != nil && priorUsage >= int64(*c.UsageLimitPerUser) {
		return false
	}

	e := c.Eligibility
	if e == nil {
		return true
	}

	if len(e.AllowedUserTiers) > 0 && !slices.Contains(e.AllowedUserTiers, user.UserTier) {
		return false
	}
	if e.MinLifetimeSpend != nil && user.LifetimeSpend.LessThan(*e.MinLifetimeSpend) {
		return false
	}
	if e.MinOrdersPlaced != nil && user.OrdersPlaced < *e.MinOrdersPlaced {
		return false
	}
	if e.FirstOrderOnly && user.OrdersPlaced > 0 {
		return false
	}
	if len(e.AllowedCountries) > 0 && !slices.Contains(e.AllowedCountries, user.Country) {
		return false
	}
	if e.MinCartValue != nil && cartTotal(cart).LessThan(*e.MinCartValue) {
		return false
	}
	if e.MinItemsCount != nil && cartQuantity(cart) < *e.MinItemsCount {
		return false
	}
	if len(e.ApplicableCategories) > 0 && !anyLineInCategories(cart, e.ApplicableCategories) {
		return false
	}

	return true
}

// anyLineInCategories reports whether at least one cart line belongs to one
// of the given categories.
func anyLineInCategories(cart []CartLine, categories []string) bool {
	for _, line := range cart {
		if slices.Contains(categories, line.Category) {
			return true
		}
	}
	return false
}

// cartQuantity returns the total unit quantity across the cart.
func cartQuantity(cart []CartLine) int {
	total := 0
	for _, line := range cart {
		total += line.Quantity
	}
	return total
}
