package coupon

import (
	"fmt"
	"reflect"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// InvalidFieldError reports a caller-supplied field that is out of range or
// otherwise malformed. Callers map it to a 422 at the transport boundary.
type InvalidFieldError struct {
	Field  string
	Reason string
}

func (e *InvalidFieldError) Error() string {
	return fmt.Sprintf("invalid field %s: %s", e.Field, e.Reason)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Teach the validator to treat decimal.Decimal as a plain number so the
	// standard numeric tags (gte, gt) apply.
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	return v
}

// Validate checks field ranges on a coupon definition. It rejects negative
// monetary values, unknown discount types, and a validity window whose end
// precedes its start.
func (c *Coupon) Validate() error {
	if err := validate.Struct(c); err != nil {
		return asInvalidField(err)
	}
	if c.ValidUntil.Before(c.ValidFrom) {
		return &InvalidFieldError{Field: "validUntil", Reason: "must not precede validFrom"}
	}
	return nil
}

// ValidateCart checks that every cart line has a non-negative unit price and
// a positive quantity.
func ValidateCart(cart []CartLine) error {
	for i := range cart {
		if err := validate.Struct(&cart[i]); err != nil {
			return asInvalidField(err)
		}
	}
	return nil
}

// ValidateUser checks that the user context carries an identity.
func ValidateUser(user UserContext) error {
	if err := validate.Struct(&user); err != nil {
		return asInvalidField(err)
	}
	return nil
}

// asInvalidField converts the first validator violation into an
// InvalidFieldError keyed by the struct field name.
func asInvalidField(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &InvalidFieldError{
			Field:  fe.Field(),
			Reason: fmt.Sprintf("failed %q constraint", fe.Tag()),
		}
	}
	return err
}
