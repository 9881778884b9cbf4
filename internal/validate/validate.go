// Package validate checks request payloads before any store call.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/hackgods/clinic-admin/internal/timefmt"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid input")

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

var (
	once     sync.Once
	instance *validator.Validate
)

func engine() *validator.Validate {
	once.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return f.Name
			}
			return name
		})
		_ = v.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
			_, err := timefmt.ParseClock(fl.Field().String())
			return err == nil
		})
		_ = v.RegisterValidation("datekey", func(fl validator.FieldLevel) bool {
			_, err := timefmt.ParseDateKey(fl.Field().String())
			return err == nil
		})
		_ = v.RegisterValidation("clinic_email", func(fl validator.FieldLevel) bool {
			return Email(fl.Field().String())
		})
		instance = v
	})
	return instance
}

// Struct validates s against its `validate` tags. The returned error wraps
// ErrInvalid and names the first failing field.
func Struct(s any) error {
	err := engine().Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return Errorf("%s", describe(verrs[0]))
	}
	return fmt.Errorf("%w: %v", ErrInvalid, err)
}

// Errorf builds an ErrInvalid-wrapped error with a field message.
func Errorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// Email reports whether s looks like an address.
func Email(s string) bool {
	return emailPattern.MatchString(strings.TrimSpace(s))
}

// Password checks the admin password rules: at least six characters and a
// matching confirmation.
func Password(password, confirm string) error {
	if len(password) < 6 {
		return Errorf("password must be at least 6 characters")
	}
	if password != confirm {
		return Errorf("passwords do not match")
	}
	return nil
}

func describe(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "clinic_email", "email":
		return field + " must be a valid email address"
	case "clock":
		return field + " must be a time in HH:MM format"
	case "datekey":
		return field + " must be a date in YYYY-MM-DD format"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "uuid", "uuid4":
		return field + " must be a valid UUID"
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
