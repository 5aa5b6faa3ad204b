package validator

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	// ErrEmptyBookingNumber indicates the booking number is empty
	ErrEmptyBookingNumber = errors.New("booking number cannot be empty")

	// ErrInvalidBookingNumber indicates the booking number is not PREFIX-XXXXXXXX
	ErrInvalidBookingNumber = errors.New("booking number must look like UPT-7K2M9QXA")
)

// bookingNumberRegex matches PREFIX-XXXXXXXX with an uppercase alphanumeric suffix
var bookingNumberRegex = regexp.MustCompile(`^[A-Z]{2,10}-[A-Z0-9]{8}$`)

var restaurantBookingTypes = map[string]bool{
	"cover":   true,
	"reserve": true,
}

// ValidateBookingNumber normalizes a booking number and checks its shape.
// Lookups are case-insensitive, so the input is upper-cased first.
func ValidateBookingNumber(number string) (string, error) {
	normalized := strings.ToUpper(strings.TrimSpace(number))
	if normalized == "" {
		return "", ErrEmptyBookingNumber
	}
	if !bookingNumberRegex.MatchString(normalized) {
		return "", ErrInvalidBookingNumber
	}
	return normalized, nil
}

// Register adds the booking_type and booking_number tags to v
func Register(v *validator.Validate) error {
	if err := v.RegisterValidation("booking_type", func(fl validator.FieldLevel) bool {
		return restaurantBookingTypes[fl.Field().String()]
	}); err != nil {
		return fmt.Errorf("failed to register booking_type: %w", err)
	}
	if err := v.RegisterValidation("booking_number", func(fl validator.FieldLevel) bool {
		_, err := ValidateBookingNumber(fl.Field().String())
		return err == nil
	}); err != nil {
		return fmt.Errorf("failed to register booking_number: %w", err)
	}
	return nil
}

// RegisterWithGin adds the custom tags to gin's binding validator
func RegisterWithGin() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("gin binding engine is not go-playground/validator")
	}
	return Register(v)
}
