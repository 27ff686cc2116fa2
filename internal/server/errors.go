package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/jonathan/content-repurposer/internal/generation"
	"github.com/jonathan/content-repurposer/internal/ingestion"
	"github.com/jonathan/content-repurposer/internal/store"
)

// ErrEmailAlreadyExists indicates email is already registered
type ErrEmailAlreadyExists struct {
	Email string
}

func (e *ErrEmailAlreadyExists) Error() string {
	return fmt.Sprintf("email already registered: %s", e.Email)
}

// ErrInvalidCredentials indicates invalid login credentials
type ErrInvalidCredentials struct{}

func (e *ErrInvalidCredentials) Error() string {
	return "invalid email or password"
}

// ErrUserNotFound indicates user was not found
type ErrUserNotFound struct {
	UserID uuid.UUID
}

func (e *ErrUserNotFound) Error() string {
	return fmt.Sprintf("user not found: %s", e.UserID)
}

// ErrPasswordMismatch indicates current password is incorrect
type ErrPasswordMismatch struct{}

func (e *ErrPasswordMismatch) Error() string {
	return "current password is incorrect"
}

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// ErrSessionInvalid indicates a refresh token that is missing, expired,
// revoked or already used.
type ErrSessionInvalid struct {
	Reason string
}

func (e *ErrSessionInvalid) Error() string {
	return "session invalid: " + e.Reason
}

// ErrFingerprintMismatch indicates a token presented from a device other than
// the one it was issued to.
type ErrFingerprintMismatch struct{}

func (e *ErrFingerprintMismatch) Error() string {
	return "fingerprint mismatch"
}

// ErrSessionUnavailable indicates the session store could not record a new
// session. AccountCreated is set when registration succeeded before that, so
// the client knows to sign in instead of registering again.
type ErrSessionUnavailable struct {
	AccountCreated bool
	Cause          error
}

func (e *ErrSessionUnavailable) Error() string {
	if e.Cause == nil {
		return "session store unavailable"
	}
	return "session store unavailable: " + e.Cause.Error()
}

func (e *ErrSessionUnavailable) Unwrap() error {
	return e.Cause
}

// PublicMessage is the client-facing text for the error.
func (e *ErrSessionUnavailable) PublicMessage() string {
	if e.AccountCreated {
		return "account created but sign-in is temporarily unavailable; please log in"
	}
	return "sign-in is temporarily unavailable, please try again"
}

// ErrNotFound indicates a missing or foreign resource. Other users' resources
// are reported as missing rather than forbidden.
type ErrNotFound struct {
	Resource string
	ID       uuid.UUID
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var (
		emailExists *ErrEmailAlreadyExists
		invalidCred *ErrInvalidCredentials
		mismatch    *ErrPasswordMismatch
		session     *ErrSessionInvalid
		fingerprint *ErrFingerprintMismatch
		userMissing *ErrUserNotFound
		notFound    *ErrNotFound
		validation  *ErrValidation
		unavailable *ErrSessionUnavailable
	)
	switch {
	case errors.As(err, &unavailable):
		return http.StatusServiceUnavailable
	case errors.As(err, &emailExists):
		return http.StatusConflict
	case errors.As(err, &invalidCred), errors.As(err, &mismatch),
		errors.As(err, &session), errors.As(err, &fingerprint):
		return http.StatusUnauthorized
	case errors.As(err, &userMissing), errors.As(err, &notFound), errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.Is(err, ingestion.ErrUnsupportedURL):
		return http.StatusBadRequest
	case errors.Is(err, ingestion.ErrTranscriptUnavailable), errors.Is(err, ingestion.ErrEmptyContent):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ingestion.ErrUpstream), errors.Is(err, generation.ErrInvalidOutput),
		errors.Is(err, generation.ErrModelFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
