package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestNewPasswordConfig(t *testing.T) {
	tests := []struct {
		name       string
		bcryptCost string
		pepper     string
		wantCost   int
		wantErr    bool
	}{
		{name: "default cost", bcryptCost: "", wantCost: 12},
		{name: "valid cost", bcryptCost: "11", wantCost: 11},
		{name: "cost too low", bcryptCost: "9", wantErr: true},
		{name: "cost too high", bcryptCost: "15", wantErr: true},
		{name: "invalid cost", bcryptCost: "invalid", wantErr: true},
		{name: "with pepper", bcryptCost: "12", pepper: "test-pepper", wantCost: 12},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("BCRYPT_COST", tt.bcryptCost)
			t.Setenv("PASSWORD_PEPPER", tt.pepper)

			cfg, err := NewPasswordConfig()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantCost, cfg.BcryptCost)
			assert.Equal(t, tt.pepper, cfg.Pepper)
		})
	}
}

func fastPasswordConfig(pepper string) *PasswordConfig {
	return &PasswordConfig{BcryptCost: bcrypt.MinCost, Pepper: pepper}
}

func TestPasswordConfig_HashAndVerify(t *testing.T) {
	cfg := fastPasswordConfig("")

	hash, err := cfg.HashPassword("correct horse 1")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse 1", hash)

	assert.True(t, cfg.VerifyPassword("correct horse 1", hash))
	assert.False(t, cfg.VerifyPassword("wrong horse 1", hash))
}

func TestPasswordConfig_PepperIsRequiredToVerify(t *testing.T) {
	peppered := fastPasswordConfig("pepper")
	plain := fastPasswordConfig("")

	hash, err := peppered.HashPassword("password1")
	require.NoError(t, err)

	assert.True(t, peppered.VerifyPassword("password1", hash))
	assert.False(t, plain.VerifyPassword("password1", hash))
}

func TestPasswordConfig_EmptyHashNeverVerifies(t *testing.T) {
	cfg := fastPasswordConfig("")
	assert.False(t, cfg.VerifyPassword("", ""))
	assert.False(t, cfg.VerifyPassword("password1", ""))
}

func TestPasswordConfig_CheckStrength(t *testing.T) {
	cfg := fastPasswordConfig("")

	tests := []struct {
		name     string
		password string
		wantErr  string
	}{
		{"valid", "password1", ""},
		{"unicode letters", "pässwörd9", ""},
		{"too short", "pass1", "at least 8"},
		{"no digits", "passwordonly", "letters and digits"},
		{"no letters", "1234567890", "letters and digits"},
		{"too long", strings.Repeat("a1", 40), "at most 72"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := cfg.CheckStrength(tt.password)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestPasswordConfig_CheckStrength_CountsPepper(t *testing.T) {
	cfg := fastPasswordConfig(strings.Repeat("p", 10))
	err := cfg.CheckStrength(strings.Repeat("a1", 32))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at most 62")
}
