package server

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jonathan/content-repurposer/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testFingerprintHash = "3f2c8b0e5a1d4c7e9b6a2f1e0d9c8b7a6f5e4d3c2b1a0f9e8d7c6b5a4f3e2d1c"

func testTokenConfig() *config.TokenConfig {
	return &config.TokenConfig{
		AccessSecret:  "test-access-secret-key-minimum-32-bytes!",
		RefreshSecret: "test-refresh-secret-key-minimum-32-bytes",
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
		Issuer:        "content-repurposer-test",
	}
}

func setupTestJWTService(_ *testing.T) *JWTService {
	return NewJWTService(testTokenConfig())
}

func TestJWTService_IssuePair(t *testing.T) {
	service := setupTestJWTService(t)
	userID := uuid.New()

	pair, err := service.IssuePair(userID, testFingerprintHash)
	require.NoError(t, err)

	assert.Len(t, strings.Split(pair.Access.Token, "."), 3, "JWT should have 3 parts separated by dots")
	assert.NotEqual(t, pair.Access.Token, pair.Refresh.Token)
	assert.NotEqual(t, pair.Access.ID, pair.Refresh.ID)
	assert.True(t, pair.Refresh.ExpiresAt.After(pair.Access.ExpiresAt))

	access, err := service.ValidateAccessToken(pair.Access.Token)
	require.NoError(t, err)
	assert.Equal(t, userID, access.UserID)
	assert.Equal(t, TokenTypeAccess, access.Type)
	assert.Equal(t, testFingerprintHash, access.Fingerprint)
	assert.Equal(t, userID.String(), access.Subject)
	assert.Equal(t, "content-repurposer-test", access.Issuer)
	assert.Equal(t, pair.Access.ID, access.ID)

	refresh, err := service.ValidateRefreshToken(pair.Refresh.Token)
	require.NoError(t, err)
	assert.Equal(t, TokenTypeRefresh, refresh.Type)
	assert.Equal(t, pair.Refresh.ID, refresh.ID)
}

func TestJWTService_TokenTypesNotInterchangeable(t *testing.T) {
	service := setupTestJWTService(t)
	pair, err := service.IssuePair(uuid.New(), testFingerprintHash)
	require.NoError(t, err)

	_, err = service.ValidateRefreshToken(pair.Access.Token)
	assert.ErrorIs(t, err, ErrInvalidToken, "access token must not refresh")

	_, err = service.ValidateAccessToken(pair.Refresh.Token)
	assert.ErrorIs(t, err, ErrInvalidToken, "refresh token must not authenticate")
}

func TestJWTService_SameSecretStillChecksType(t *testing.T) {
	cfg := testTokenConfig()
	cfg.RefreshSecret = cfg.AccessSecret
	service := NewJWTService(cfg)

	pair, err := service.IssuePair(uuid.New(), testFingerprintHash)
	require.NoError(t, err)

	_, err = service.ValidateAccessToken(pair.Refresh.Token)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected access token")
}

func TestJWTService_Expired(t *testing.T) {
	service := setupTestJWTService(t)
	issuedAt := time.Now().Add(-time.Hour)
	service.now = func() time.Time { return issuedAt }

	token, err := service.IssuePair(uuid.New(), testFingerprintHash)
	require.NoError(t, err)

	service.now = time.Now
	_, err = service.ValidateAccessToken(token.Access.Token)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.Contains(t, err.Error(), "expired")
}

func TestJWTService_WrongIssuer(t *testing.T) {
	other := testTokenConfig()
	other.Issuer = "someone-else"
	token, err := NewJWTService(other).IssuePair(uuid.New(), testFingerprintHash)
	require.NoError(t, err)

	_, err = setupTestJWTService(t).ValidateAccessToken(token.Access.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTService_WrongSecret(t *testing.T) {
	other := testTokenConfig()
	other.AccessSecret = "a-completely-different-secret-of-32-bytes"
	token, err := NewJWTService(other).IssuePair(uuid.New(), testFingerprintHash)
	require.NoError(t, err)

	_, err = setupTestJWTService(t).ValidateAccessToken(token.Access.Token)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid signature")
}

func TestJWTService_RejectsOtherAlgorithms(t *testing.T) {
	service := setupTestJWTService(t)
	now := time.Now()
	claims := &Claims{
		UserID:      uuid.New(),
		Type:        TokenTypeAccess,
		Fingerprint: testFingerprintHash,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    "content-repurposer-test",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = service.ValidateAccessToken(none)
	assert.ErrorIs(t, err, ErrInvalidToken)

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testTokenConfig().AccessSecret))
	require.NoError(t, err)
	_, err = service.ValidateAccessToken(hs512)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTService_MissingClaims(t *testing.T) {
	service := setupTestJWTService(t)
	now := time.Now()
	claims := &Claims{
		UserID: uuid.New(),
		Type:   TokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    "content-repurposer-test",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testTokenConfig().AccessSecret))
	require.NoError(t, err)

	_, err = service.ValidateAccessToken(token)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required claims")
}

func TestJWTService_RequiresFingerprint(t *testing.T) {
	_, err := setupTestJWTService(t).IssuePair(uuid.New(), "")
	assert.Error(t, err)
}

func TestJWTService_InvalidInputs(t *testing.T) {
	service := setupTestJWTService(t)
	for _, token := range []string{"", "not.a.valid.jwt.token", "eyJhbGciOiJIUzI1NiJ9.e30.invalid"} {
		_, err := service.ValidateAccessToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken, token)
	}
}

func TestJWTService_AsTokenValidator(t *testing.T) {
	service := setupTestJWTService(t)
	userID := uuid.New()
	pair, err := service.IssuePair(userID, testFingerprintHash)
	require.NoError(t, err)

	validator := service.AsTokenValidator()
	claims, err := validator.ValidateToken(pair.Access.Token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.GetUserID())
	assert.Equal(t, testFingerprintHash, claims.GetFingerprint())

	_, err = validator.ValidateToken(pair.Refresh.Token)
	assert.Error(t, err)
}
