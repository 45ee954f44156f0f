package handler

import (
	"strings"
	"time"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/promo-engine/internal/domain/coupon"
)

// Hand-written jx codec for the API wire format. Field names follow the
// domain model; optional fields are omitted from responses rather than
// emitted as null.

func encodeCoupon(e *jx.Encoder, c *coupon.Coupon) {
	e.ObjStart()
	e.FieldStart("code")
	e.Str(c.Code)
	e.FieldStart("description")
	e.Str(c.Description)
	e.FieldStart("discountType")
	e.Str(string(c.DiscountType))
	e.FieldStart("discountValue")
	encodeDecimal(e, c.DiscountValue)
	if c.MaxDiscountAmount != nil {
		e.FieldStart("maxDiscountAmount")
		encodeDecimal(e, *c.MaxDiscountAmount)
	}
	e.FieldStart("validFrom")
	e.Str(c.ValidFrom.Format(time.RFC3339))
	e.FieldStart("validUntil")
	e.Str(c.ValidUntil.Format(time.RFC3339))
	if c.UsageLimitPerUser != nil {
		e.FieldStart("usageLimitPerUser")
		e.Int(*c.UsageLimitPerUser)
	}
	if c.Eligibility != nil {
		e.FieldStart("eligibility")
		encodeEligibility(e, c.Eligibility)
	}
	e.FieldStart("isActive")
	e.Bool(c.IsActive)
	e.ObjEnd()
}

func encodeEligibility(e *jx.Encoder, el *coupon.Eligibility) {
	e.ObjStart()
	if len(el.AllowedUserTiers) > 0 {
		e.FieldStart("allowedUserTiers")
		encodeStrings(e, el.AllowedUserTiers)
	}
	if el.MinLifetimeSpend != nil {
		e.FieldStart("minLifetimeSpend")
		encodeDecimal(e, *el.MinLifetimeSpend)
	}
	if el.MinOrdersPlaced != nil {
		e.FieldStart("minOrdersPlaced")
		e.Int(*el.MinOrdersPlaced)
	}
	if el.FirstOrderOnly {
		e.FieldStart("firstOrderOnly")
		e.Bool(true)
	}
	if len(el.AllowedCountries) > 0 {
		e.FieldStart("allowedCountries")
		encodeStrings(e, el.AllowedCountries)
	}
	if el.MinCartValue != nil {
		e.FieldStart("minCartValue")
		encodeDecimal(e, *el.MinCartValue)
	}
	if el.MinItemsCount != nil {
		e.FieldStart("minItemsCount")
		e.Int(*el.MinItemsCount)
	}
	if len(el.ApplicableCategories) > 0 {
		e.FieldStart("applicableCategories")
		encodeStrings(e, el.ApplicableCategories)
	}
	if len(el.ExcludedCategories) > 0 {
		e.FieldStart("excludedCategories")
		encodeStrings(e, el.ExcludedCategories)
	}
	e.ObjEnd()
}

func encodeSelection(e *jx.Encoder, sel *coupon.Selection, cart []coupon.CartLine) {
	e.ObjStart()
	e.FieldStart("coupon")
	encodeCoupon(e, &sel.Coupon)
	e.FieldStart("discountAmount")
	encodeDecimal(e, sel.DiscountAmount)
	e.FieldStart("finalPrice")
	encodeDecimal(e, coupon.FinalPrice(cart, sel.DiscountAmount))
	e.ObjEnd()
}

func encodeStrings(e *jx.Encoder, values []string) {
	e.ArrStart()
	for _, v := range values {
		e.Str(v)
	}
	e.ArrEnd()
}

func encodeDecimal(e *jx.Encoder, d decimal.Decimal) {
	e.Num(jx.Num(d.String()))
}

func decodeCoupon(d *jx.Decoder) (coupon.Coupon, error) {
	c := coupon.Coupon{IsActive: true}
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "code":
			c.Code, err = d.Str()
		case "description":
			c.Description, err = d.Str()
		case "discountType":
			var s string
			s, err = d.Str()
			c.DiscountType = coupon.DiscountType(s)
		case "discountValue":
			c.DiscountValue, err = decodeDecimal(d)
		case "maxDiscountAmount":
			c.MaxDiscountAmount, err = decodeOptDecimal(d)
		case "validFrom":
			c.ValidFrom, err = decodeTime(d)
		case "validUntil":
			c.ValidUntil, err = decodeTime(d)
		case "usageLimitPerUser":
			c.UsageLimitPerUser, err = decodeOptInt(d)
		case "eligibility":
			c.Eligibility, err = decodeEligibility(d)
		case "isActive":
			c.IsActive, err = d.Bool()
		default:
			err = d.Skip()
		}
		return err
	})
	return c, err
}

func decodeEligibility(d *jx.Decoder) (*coupon.Eligibility, error) {
	if d.Next() == jx.Null {
		return nil, d.Null()
	}
	var el coupon.Eligibility
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "allowedUserTiers":
			el.AllowedUserTiers, err = decodeStrings(d)
		case "minLifetimeSpend":
			el.MinLifetimeSpend, err = decodeOptDecimal(d)
		case "minOrdersPlaced":
			el.MinOrdersPlaced, err = decodeOptInt(d)
		case "firstOrderOnly":
			el.FirstOrderOnly, err = d.Bool()
		case "allowedCountries":
			el.AllowedCountries, err = decodeStrings(d)
		case "minCartValue":
			el.MinCartValue, err = decodeOptDecimal(d)
		case "minItemsCount":
			el.MinItemsCount, err = decodeOptInt(d)
		case "applicableCategories":
			el.ApplicableCategories, err = decodeStrings(d)
		case "excludedCategories":
			el.ExcludedCategories, err = decodeStrings(d)
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return &el, nil
}

func decodeUser(d *jx.Decoder) (coupon.UserContext, error) {
	var u coupon.UserContext
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "userId":
			u.UserID, err = d.Str()
		case "userTier":
			u.UserTier, err = d.Str()
		case "country":
			u.Country, err = d.Str()
		case "lifetimeSpend":
			u.LifetimeSpend, err = decodeDecimal(d)
		case "ordersPlaced":
			u.OrdersPlaced, err = d.Int()
		default:
			err = d.Skip()
		}
		return err
	})
	return u, err
}

func decodeCart(d *jx.Decoder) ([]coupon.CartLine, error) {
	var cart []coupon.CartLine
	err := d.Arr(func(d *jx.Decoder) error {
		var line coupon.CartLine
		err := d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "productId":
				line.ProductID, err = d.Str()
			case "category":
				line.Category, err = d.Str()
			case "unitPrice":
				line.UnitPrice, err = decodeDecimal(d)
			case "quantity":
				line.Quantity, err = d.Int()
			default:
				err = d.Skip()
			}
			return err
		})
		if err != nil {
			return err
		}
		cart = append(cart, line)
		return nil
	})
	return cart, err
}

func decodeStrings(d *jx.Decoder) ([]string, error) {
	var out []string
	err := d.Arr(func(d *jx.Decoder) error {
		s, err := d.Str()
		if err != nil {
			return err
		}
		out = append(out, s)
		return nil
	})
	return out, err
}

func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	n, err := d.Num()
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(strings.Trim(string(n), `"`))
}

func decodeOptDecimal(d *jx.Decoder) (*decimal.Decimal, error) {
	if d.Next() == jx.Null {
		return nil, d.Null()
	}
	v, err := decodeDecimal(d)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func decodeOptInt(d *jx.Decoder) (*int, error) {
	if d.Next() == jx.Null {
		return nil, d.Null()
	}
	v, err := d.Int()
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func decodeTime(d *jx.Decoder) (time.Time, error) {
	s, err := d.Str()
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339, s)
}
