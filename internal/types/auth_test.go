//nolint:revive // types is a standard Go package name pattern
package types

import (
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateUserRequest_Validation(t *testing.T) {
	tests := []struct {
		name    string
		request CreateUserRequest
		wantErr bool
		errMsg  string
	}{
		{
			name: "valid request",
			request: CreateUserRequest{
				Name:     "John Doe",
				Email:    "john@example.com",
				Password: "password123",
			},
		},
		{
			name: "missing name",
			request: CreateUserRequest{
				Email:    "john@example.com",
				Password: "password123",
			},
			wantErr: true,
			errMsg:  "required",
		},
		{
			name: "invalid email",
			request: CreateUserRequest{
				Name:     "John Doe",
				Email:    "not-an-email",
				Password: "password123",
			},
			wantErr: true,
			errMsg:  "email",
		},
		{
			name: "password too short",
			request: CreateUserRequest{
				Name:     "John Doe",
				Email:    "john@example.com",
				Password: "short",
			},
			wantErr: true,
			errMsg:  "min",
		},
		{
			name: "password over bcrypt limit",
			request: CreateUserRequest{
				Name:     "John Doe",
				Email:    "john@example.com",
				Password: strings.Repeat("a1", 40),
			},
			wantErr: true,
			errMsg:  "max",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.request.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoginRequest_Validation(t *testing.T) {
	assert.NoError(t, (&LoginRequest{Email: "a@example.com", Password: "x"}).Validate())
	assert.Error(t, (&LoginRequest{Email: "a@example.com"}).Validate())
	assert.Error(t, (&LoginRequest{Email: "nope", Password: "x"}).Validate())
}

func TestUpdatePasswordRequest_Validation(t *testing.T) {
	assert.NoError(t, (&UpdatePasswordRequest{CurrentPassword: "old", NewPassword: "newpass123"}).Validate())
	assert.Error(t, (&UpdatePasswordRequest{CurrentPassword: "old", NewPassword: "short"}).Validate())
	assert.Error(t, (&UpdatePasswordRequest{NewPassword: "newpass123"}).Validate())
}

func TestUpdateProfileRequest_Validation(t *testing.T) {
	assert.NoError(t, Validator().Struct(UpdateProfileRequest{Name: "Ada"}))
	assert.NoError(t, Validator().Struct(UpdateProfileRequest{Name: "Ada", AvatarURL: "https://cdn.example.com/a.png"}))
	assert.Error(t, Validator().Struct(UpdateProfileRequest{Name: "Ada", AvatarURL: "javascript:alert(1)"}))
	assert.Error(t, Validator().Struct(UpdateProfileRequest{}))
}

func fieldErrors(t *testing.T, err error) []string {
	t.Helper()
	var verrs validator.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, fe.Field()+":"+fe.Tag())
	}
	return out
}
