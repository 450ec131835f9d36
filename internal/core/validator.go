package core

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"planswitch/internal/types"
)

// ValidationError describes one failed field.
type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Validator wraps go-playground/validator with the domain tags:
//
//	iana_tz    - resolvable with time.LoadLocation (empty is rejected)
//	plan_code  - string form of a positive integer
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewValidator creates a Validator and registers the custom tags.
func NewValidator(logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("iana_tz", func(fl validator.FieldLevel) bool {
		name := fl.Field().String()
		if name == "" {
			return false
		}
		_, err := time.LoadLocation(name)
		return err == nil
	})
	_ = v.RegisterValidation("plan_code", func(fl validator.FieldLevel) bool {
		return types.ValidatePlanCode(fl.Field().String()) == nil
	})
	return &Validator{validate: v, logger: logger}
}

// ValidateStruct validates s and returns an AppError whose code is that of
// the first failure. Details["validation_errors"] lists every failure.
func (v *Validator) ValidateStruct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		v.logger.Error("validator misuse", "error", err)
		return types.NewAppError(types.ErrCodeInternalUnexpected, "request could not be validated", err)
	}

	out := make([]ValidationError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, ValidationError{
			Field:   fe.Field(),
			Code:    string(codeForTag(fe.Tag())),
			Message: messageFor(fe),
		})
	}
	return types.NewAppErrorWithDetails(
		types.ErrorCode(out[0].Code),
		out[0].Message,
		err,
		map[string]any{"validation_errors": out},
	)
}

func codeForTag(tag string) types.ErrorCode {
	switch tag {
	case "required", "required_without":
		return types.ErrCodeValidationMissingField
	case "iana_tz":
		return types.ErrCodeValidationTimezone
	case "plan_code":
		return types.ErrCodeValidationPlanCode
	case "url", "http_url":
		return types.ErrCodeValidationInvalidURL
	default:
		return types.ErrCodeValidationInvalidValue
	}
}

func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "required_without":
		return fmt.Sprintf("%s is required when %s is empty", fe.Field(), fe.Param())
	case "iana_tz":
		return fmt.Sprintf("%s must be an IANA timezone name", fe.Field())
	case "plan_code":
		return fmt.Sprintf("%s must be a positive integer", fe.Field())
	default:
		return fmt.Sprintf("%s failed %q validation", fe.Field(), fe.Tag())
	}
}
