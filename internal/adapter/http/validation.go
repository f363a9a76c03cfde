package http

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/kefkio/bloc-sacco/internal/domain/loan"
	"github.com/kefkio/bloc-sacco/internal/domain/member"
	"github.com/kefkio/bloc-sacco/pkg/id"
)

// Reusable error payload
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}
type ErrorResponse struct {
	Error     string       `json:"error"`
	Kind      string       `json:"kind,omitempty"`
	Retryable bool         `json:"retryable,omitempty"`
	Details   []FieldError `json:"details,omitempty"`
}

type CustomValidator struct{ v *validator.Validate }

func NewValidator() *CustomValidator {
	v := validator.New()

	// report fields by their json names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	// 0x + 40 hex
	_ = v.RegisterValidation("address", func(fl validator.FieldLevel) bool {
		return id.ValidAddress(fl.Field().String())
	})
	_ = v.RegisterValidation("rail", func(fl validator.FieldLevel) bool {
		return loan.Rail(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("verification", func(fl validator.FieldLevel) bool {
		return member.VerificationStatus(fl.Field().String()).Valid()
	})

	return &CustomValidator{v: v}
}

func (cv *CustomValidator) Validate(i any) error { return cv.v.Struct(i) }

// Map validator.ValidationErrors → []FieldError with readable messages.
func ToFieldErrors(err error) []FieldError {
	ve, ok := err.(validator.ValidationErrors)
	if !ok {
		return []FieldError{{Field: "_", Message: err.Error()}}
	}
	out := make([]FieldError, 0, len(ve))
	for _, e := range ve {
		field := e.Field()
		switch e.Tag() {
		case "required":
			out = append(out, FieldError{Field: field, Message: "is required"})
		case "address":
			out = append(out, FieldError{Field: field, Message: "must be a 0x-prefixed 40-hex address"})
		case "rail":
			out = append(out, FieldError{Field: field, Message: "must be one of native, token, fiat"})
		case "verification":
			out = append(out, FieldError{Field: field, Message: "must be one of not_verified, pending, verified, rejected"})
		case "gt":
			out = append(out, FieldError{Field: field, Message: "must be greater than " + e.Param()})
		case "gte":
			out = append(out, FieldError{Field: field, Message: "must be greater than or equal to " + e.Param()})
		case "lte":
			out = append(out, FieldError{Field: field, Message: "must be less than or equal to " + e.Param()})
		case "unique":
			out = append(out, FieldError{Field: field, Message: "must not contain duplicates"})
		default:
			out = append(out, FieldError{Field: field, Message: e.Tag() + " validation failed"})
		}
	}
	return out
}
