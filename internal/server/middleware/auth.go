// Package middleware provides HTTP middleware for authentication and authorization.
package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// ContextKey is a typed key for context values to avoid collisions.
type ContextKey string

const (
	userIDKey          ContextKey = "userID"
	fingerprintHashKey ContextKey = "fingerprintHash"
)

// TokenValidator is an interface for validating access tokens.
// This allows the middleware to work with any JWT service implementation.
type TokenValidator interface {
	ValidateToken(tokenString string) (AccessClaims, error)
}

// AccessClaims exposes the parts of an access token the middleware needs.
type AccessClaims interface {
	GetUserID() uuid.UUID
	GetFingerprint() string
}

// FingerprintVerifier checks the request's raw fingerprint against a hash
// carried in a token.
type FingerprintVerifier interface {
	VerifyRequest(r *http.Request, hash string) bool
}

// AuthMiddleware validates the Bearer access token, requires the request
// fingerprint to match the one the token was issued to, and adds the user ID
// to the request context.
func AuthMiddleware(tokens TokenValidator, fingerprints FingerprintVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := bearerToken(r)
			if !ok {
				unauthorized(w)
				return
			}

			claims, err := tokens.ValidateToken(tokenString)
			if err != nil {
				unauthorized(w)
				return
			}

			// A stolen token is useless without the device it was issued to.
			if !fingerprints.VerifyRequest(r, claims.GetFingerprint()) {
				unauthorized(w)
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, claims.GetUserID())
			ctx = context.WithValue(ctx, fingerprintHashKey, claims.GetFingerprint())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken extracts the token from a case-insensitive "Bearer" header.
func bearerToken(r *http.Request) (string, bool) {
	parts := strings.Fields(r.Header.Get("Authorization"))
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], parts[1] != ""
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "Unauthorized"})
}

// GetUserID extracts the authenticated user ID from the request context.
func GetUserID(r *http.Request) (uuid.UUID, error) {
	userID, ok := r.Context().Value(userIDKey).(uuid.UUID)
	if !ok {
		return uuid.Nil, fmt.Errorf("user ID not found in request context")
	}
	return userID, nil
}

// GetFingerprintHash returns the fingerprint hash of the authenticated token.
func GetFingerprintHash(r *http.Request) string {
	hash, _ := r.Context().Value(fingerprintHashKey).(string)
	return hash
}

// WithUserID returns a copy of ctx carrying an authenticated user, for tests
// and internal callers that bypass the middleware.
func WithUserID(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}
