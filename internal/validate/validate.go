// Package validate wraps go-playground/validator with the rules the API
// needs and turns failures into messages fit for a JSON error body.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

type Validator struct {
	v *validator.Validate
}

func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	// report json names, not Go field names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})

	v.RegisterCustomTypeFunc(func(f reflect.Value) any {
		if d, ok := f.Interface().(decimal.Decimal); ok {
			return d.InexactFloat64()
		}
		return nil
	}, decimal.Decimal{})

	if err := v.RegisterValidation("in_mobile", func(fl validator.FieldLevel) bool {
		return IndianMobile(fl.Field().String())
	}); err != nil {
		panic(fmt.Sprintf("register in_mobile validation: %v", err))
	}

	return &Validator{v: v}
}

// Struct validates s and returns an *Error describing the first failing field.
func (val *Validator) Struct(s any) error {
	err := val.v.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	return &Error{Field: fieldPath(verrs[0]), Message: message(verrs[0])}
}

// Error is a single failed validation rule.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func message(fe validator.FieldError) string {
	field := fieldPath(fe)
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("Missing required field: %s", field)
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "in_mobile":
		return fmt.Sprintf("%s must be a valid Indian mobile number (+91 followed by 10 digits starting with 6-9)", field)
	case "len", "hexadecimal":
		return fmt.Sprintf("%s must be a 64 character hex sha256", field)
	default:
		return fmt.Sprintf("%s is invalid (%s)", field, fe.Tag())
	}
}

// IndianMobile reports whether s, stripped to its digits, is 91 followed by
// a ten digit number starting with 6, 7, 8 or 9.
func IndianMobile(s string) bool {
	digits := Digits(s)
	return len(digits) == 12 &&
		strings.HasPrefix(digits, "91") &&
		strings.ContainsRune("6789", rune(digits[2]))
}

// Digits drops every non-digit rune from s.
func Digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// FormatIndianMobile renders a valid number as +91 XXXXX XXXXX and returns
// other input unchanged.
func FormatIndianMobile(s string) string {
	if !IndianMobile(s) {
		return s
	}
	d := Digits(s)
	return "+91 " + d[2:7] + " " + d[7:]
}
