package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postroom/internal/types"
)

type inviteRequest struct {
	Email string `validate:"required,email"`
	Role  string `validate:"required,member_role"`
}

type planRequest struct {
	Tier string `validate:"required,plan_tier"`
}

func TestValidator_Valid(t *testing.T) {
	v := NewValidator()

	err := v.ValidateStruct(inviteRequest{Email: "client@example.com", Role: "client"})
	require.NoError(t, err)
}

func TestValidator_FieldErrors(t *testing.T) {
	v := NewValidator()

	err := v.ValidateStruct(inviteRequest{Email: "not-an-email", Role: "superuser"})
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeValidationInvalidInput, appErr.Code)
	assert.Equal(t, "must be a valid email address", appErr.Details["email"])
	assert.Equal(t, "must be a valid member role (editor, client)", appErr.Details["role"])
}

func TestValidator_RequiredMissing(t *testing.T) {
	v := NewValidator()

	err := v.ValidateStruct(inviteRequest{})
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "this field is required", appErr.Details["email"])
}

func TestValidator_PlanTierTag(t *testing.T) {
	v := NewValidator()

	require.NoError(t, v.ValidateStruct(planRequest{Tier: "pro"}))
	require.NoError(t, v.ValidateStruct(planRequest{Tier: "custom"}))

	err := v.ValidateStruct(planRequest{Tier: "enterprise"})
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "must be a valid plan tier (basic, pro, custom)", appErr.Details["tier"])
}

func TestValidator_OwnerRoleNotAssignable(t *testing.T) {
	v := NewValidator()

	err := v.ValidateStruct(inviteRequest{Email: "boss@example.com", Role: "owner"})
	require.Error(t, err)
}
