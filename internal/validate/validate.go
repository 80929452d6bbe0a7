// Package validate wraps go-playground/validator/v10 for inbound admin
// surface request payloads, grounded on the pack's validator.Validator
// wrapper pattern (struct-tag validation plus a decimal.Decimal custom
// type func so amount fields can carry gt/gte tags).
package validate

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/paynet/nexus-clearing/internal/corerr"
)

// Validator validates admin request structs via field tags.
type Validator struct {
	v *validator.Validate
}

// New constructs a Validator with decimal.Decimal registered as a
// validatable numeric type.
func New() *Validator {
	v := validator.New()
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	return &Validator{v: v}
}

// Struct validates i against its `validate:"..."` tags, returning a
// single corerr.KindValidation error describing every failed field.
func (vd *Validator) Struct(i any) error {
	if err := vd.v.Struct(i); err != nil {
		var fieldErrs validator.ValidationErrors
		if ok := errorsAs(err, &fieldErrs); ok {
			msgs := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				msgs = append(msgs, fmt.Sprintf("%s failed '%s'", fe.Field(), fe.Tag()))
			}
			return corerr.New(corerr.KindValidation, strings.Join(msgs, "; "))
		}
		return corerr.Wrap(corerr.KindValidation, "request validation", err)
	}
	return nil
}

func errorsAs(err error, target *validator.ValidationErrors) bool {
	ve, ok := err.(validator.ValidationErrors)
	if ok {
		*target = ve
	}
	return ok
}
