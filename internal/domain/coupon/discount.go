package coupon

import (
	"slices"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Compute calculates the monetary discount an eligible coupon produces for
// the cart. The result is always within [0, cart total] and rounded to two
// decimal places.
//
// Flat discounts apply to the whole order; percentage discounts apply to the
// eligible subset of lines only (applicable categories minus excluded ones)
// and respect the optional maximum discount cap.
func Compute(c *Coupon, cart []CartLine) decimal.Decimal {
	total := cartTotal(cart)

	var amount decimal.Decimal
	switch c.DiscountType {
	case DiscountPercent:
		amount = eligibleTotal(c, cart).Mul(c.DiscountValue).Div(hundred)
		if c.MaxDiscountAmount != nil {
			amount = decimal.Min(amount, *c.MaxDiscountAmount)
		}
	default:
		// Flat. Unknown types never reach here: the store validates
		// DiscountType on create and update.
		amount = c.DiscountValue
	}

	amount = decimal.Min(amount, total)
	if amount.IsNegative() {
		amount = decimal.Zero
	}
	return amount.Round(2)
}

// lineEligible reports whether a cart line participates in percentage
// discount calculation. Excluded categories always lose; when applicable
// categories are set, membership there is additionally required.
func lineEligible(e *Eligibility, line CartLine) bool {
	if e == nil {
		return true
	}
	if slices.Contains(e.ExcludedCategories, line.Category) {
		return false
	}
	if len(e.ApplicableCategories) > 0 {
		return slices.Contains(e.ApplicableCategories, line.Category)
	}
	return true
}

// eligibleTotal sums unitPrice*quantity over the lines that participate in
// discount calculation.
func eligibleTotal(c *Coupon, cart []CartLine) decimal.Decimal {
	sum := decimal.Zero
	for _, line := range cart {
		if lineEligible(c.Eligibility, line) {
			sum = sum.Add(lineTotal(line))
		}
	}
	return sum
}

// cartTotal sums unitPrice*quantity over all lines.
func cartTotal(cart []CartLine) decimal.Decimal {
	sum := decimal.Zero
	for _, line := range cart {
		sum = sum.Add(lineTotal(line))
	}
	return sum
}

func lineTotal(line CartLine) decimal.Decimal {
	return line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))
}
