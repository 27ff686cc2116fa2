// Package server provides the HTTP REST API for the content repurposer.
package server

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jonathan/content-repurposer/internal/config"
	"github.com/jonathan/content-repurposer/internal/server/middleware"
)

// TokenType distinguishes access from refresh tokens inside the claims.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// ErrInvalidToken is returned for any token that fails validation.
var ErrInvalidToken = errors.New("invalid token")

// Claims represents JWT claims bound to a user and a device fingerprint.
type Claims struct {
	UserID      uuid.UUID `json:"user_id"`
	Type        TokenType `json:"typ"`
	Fingerprint string    `json:"fgp"`
	jwt.RegisteredClaims
}

// GetUserID returns the user ID from the claims.
// This implements the middleware.AccessClaims interface.
func (c *Claims) GetUserID() uuid.UUID {
	return c.UserID
}

// GetFingerprint returns the fingerprint hash the token is bound to.
func (c *Claims) GetFingerprint() string {
	return c.Fingerprint
}

// IssuedToken is a signed token with its identifier and expiry.
type IssuedToken struct {
	Token     string
	ID        string
	ExpiresAt time.Time
}

// TokenPair is the result of a login or refresh.
type TokenPair struct {
	Access  IssuedToken
	Refresh IssuedToken
}

// AsTokenValidator returns a TokenValidator adapter that accepts access tokens only.
// This allows the JWTService to be used with middleware without creating import cycles.
func (s *JWTService) AsTokenValidator() middleware.TokenValidator {
	return &jwtServiceValidator{service: s}
}

// jwtServiceValidator adapts JWTService to middleware.TokenValidator interface.
type jwtServiceValidator struct {
	service *JWTService
}

func (v *jwtServiceValidator) ValidateToken(tokenString string) (middleware.AccessClaims, error) {
	claims, err := v.service.ValidateAccessToken(tokenString)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// JWTService issues and validates access and refresh tokens.
type JWTService struct {
	config *config.TokenConfig
	now    func() time.Time
}

// NewJWTService creates a new JWT service with the given configuration.
func NewJWTService(cfg *config.TokenConfig) *JWTService {
	return &JWTService{
		config: cfg,
		now:    time.Now,
	}
}

// RefreshTTL returns the refresh token lifetime, which is also the session
// and cookie lifetime.
func (s *JWTService) RefreshTTL() time.Duration {
	return s.config.RefreshTTL
}

// IssuePair issues an access and a refresh token bound to fingerprintHash.
func (s *JWTService) IssuePair(userID uuid.UUID, fingerprintHash string) (*TokenPair, error) {
	access, err := s.issue(userID, fingerprintHash, TokenTypeAccess)
	if err != nil {
		return nil, err
	}
	refresh, err := s.issue(userID, fingerprintHash, TokenTypeRefresh)
	if err != nil {
		return nil, err
	}
	return &TokenPair{Access: access, Refresh: refresh}, nil
}

func (s *JWTService) issue(userID uuid.UUID, fingerprintHash string, typ TokenType) (IssuedToken, error) {
	if fingerprintHash == "" {
		return IssuedToken{}, fmt.Errorf("fingerprint hash is required")
	}

	ttl, secret := s.settings(typ)
	now := s.now()
	expiresAt := now.Add(ttl)
	jti := uuid.NewString()

	claims := &Claims{
		UserID:      userID,
		Type:        typ,
		Fingerprint: fingerprintHash,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   userID.String(),
			Issuer:    s.config.Issuer,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(secret)
	if err != nil {
		return IssuedToken{}, fmt.Errorf("failed to sign %s token: %w", typ, err)
	}

	// Expiry is second-granular on the wire.
	return IssuedToken{Token: tokenString, ID: jti, ExpiresAt: expiresAt.Truncate(time.Second)}, nil
}

func (s *JWTService) settings(typ TokenType) (time.Duration, []byte) {
	if typ == TokenTypeRefresh {
		return s.config.RefreshTTL, []byte(s.config.RefreshSecret)
	}
	return s.config.AccessTTL, []byte(s.config.AccessSecret)
}

// ValidateAccessToken validates an access token and returns the claims.
func (s *JWTService) ValidateAccessToken(tokenString string) (*Claims, error) {
	return s.validate(tokenString, TokenTypeAccess)
}

// ValidateRefreshToken validates a refresh token and returns the claims.
func (s *JWTService) ValidateRefreshToken(tokenString string) (*Claims, error) {
	return s.validate(tokenString, TokenTypeRefresh)
}

func (s *JWTService) validate(tokenString string, want TokenType) (*Claims, error) {
	if tokenString == "" {
		return nil, fmt.Errorf("%w: token string is empty", ErrInvalidToken)
	}

	_, secret := s.settings(want)
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(_ *jwt.Token) (interface{}, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.config.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, fmt.Errorf("%w: token expired", ErrInvalidToken)
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, fmt.Errorf("%w: invalid signature", ErrInvalidToken)
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, fmt.Errorf("%w: malformed token", ErrInvalidToken)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if !token.Valid {
		return nil, fmt.Errorf("%w: token is not valid", ErrInvalidToken)
	}
	if claims.Type != want {
		return nil, fmt.Errorf("%w: expected %s token, got %q", ErrInvalidToken, want, claims.Type)
	}
	if claims.UserID == uuid.Nil || claims.ID == "" || claims.Fingerprint == "" {
		return nil, fmt.Errorf("%w: missing required claims", ErrInvalidToken)
	}

	return claims, nil
}
