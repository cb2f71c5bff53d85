package core

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"

	"postroom/internal/types"
)

// Validator wraps go-playground/validator and translates its field errors
// into the structured validation AppErrors the API returns.
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a Validator with the domain-specific tags registered.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	// plan_tier: the value must be one of the known tiers.
	_ = v.RegisterValidation("plan_tier", func(fl validator.FieldLevel) bool {
		return types.PlanTier(fl.Field().String()).Valid()
	})

	// member_role: editor or client; owner is implicit and never assignable.
	_ = v.RegisterValidation("member_role", func(fl validator.FieldLevel) bool {
		switch types.MemberRole(fl.Field().String()) {
		case types.RoleEditor, types.RoleClient:
			return true
		}
		return false
	})

	return &Validator{validate: v}
}

// ValidateStruct validates the struct and returns a 400 validation AppError
// with per-field details, or nil when valid.
func (v *Validator) ValidateStruct(s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "invalid value passed to validator", err)
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		details := make(map[string]any, len(fieldErrs))
		for _, fe := range fieldErrs {
			details[strings.ToLower(fe.Field())] = validationMessage(fe)
		}
		return types.NewAppErrorWithDetails(
			types.ErrCodeValidationInvalidInput,
			"request validation failed",
			nil,
			details,
		)
	}

	return types.NewAppError(types.ErrCodeInternalUnexpected, "validation failed", err)
}

// validationMessage renders one field error as a client-safe message.
func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "email":
		return "must be a valid email address"
	case "url":
		return "must be a valid URL"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	case "plan_tier":
		return "must be a valid plan tier (basic, pro, custom)"
	case "member_role":
		return "must be a valid member role (editor, client)"
	default:
		return "failed validation rule: " + fe.Tag()
	}
}
