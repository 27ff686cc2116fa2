package server

import (
	"errors"
	"fmt"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jonathan/content-repurposer/internal/config"
	"github.com/jonathan/content-repurposer/internal/fingerprint"
	"github.com/jonathan/content-repurposer/internal/server/middleware"
	"github.com/jonathan/content-repurposer/internal/session"
	"github.com/jonathan/content-repurposer/internal/store"
	"github.com/jonathan/content-repurposer/internal/types"
)

// Refresh cookie attributes.
const (
	RefreshCookieName = "refresh_token"
	RefreshCookiePath = "/auth"
)

// cookieSettings controls the refresh cookie.
type cookieSettings struct {
	domain string
	secure bool
	maxAge time.Duration
}

func newCookieSettings(cfg *config.ServerConfig, refreshTTL time.Duration) cookieSettings {
	return cookieSettings{
		domain: cfg.CookieDomain,
		secure: !cfg.IsDevelopment(),
		maxAge: refreshTTL,
	}
}

func (c cookieSettings) refresh(value string) *http.Cookie {
	return &http.Cookie{
		Name:     RefreshCookieName,
		Value:    value,
		Path:     RefreshCookiePath,
		Domain:   c.domain,
		MaxAge:   int(c.maxAge.Seconds()),
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (c cookieSettings) clearRefresh() *http.Cookie {
	cookie := c.refresh("")
	cookie.MaxAge = -1
	return cookie
}

// AuthHandler handles authentication-related HTTP requests.
type AuthHandler struct {
	userService  *UserService
	jwtService   *JWTService
	sessions     *session.Store
	fingerprints *fingerprint.Hasher
	cookies      cookieSettings
	validator    *validator.Validate
	logger       *logrus.Logger
}

// NewAuthHandler creates a new AuthHandler with the given dependencies.
func NewAuthHandler(
	userService *UserService,
	jwtService *JWTService,
	sessions *session.Store,
	fingerprints *fingerprint.Hasher,
	cookies cookieSettings,
	logger *logrus.Logger,
) *AuthHandler {
	return &AuthHandler{
		userService:  userService,
		jwtService:   jwtService,
		sessions:     sessions,
		fingerprints: fingerprints,
		cookies:      cookies,
		validator:    types.Validator(),
		logger:       logger,
	}
}

// Register handles user registration requests.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req types.CreateUserRequest
	if err := decodeAndValidate(h.validator, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	fph, err := h.requestFingerprint(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	user, err := h.userService.Register(r.Context(), &req)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	// The account stays if the session cannot be stored; the client is told
	// to log in rather than retry registration.
	pair, err := h.createSession(r, user.ID, fph)
	if err != nil {
		var unavailable *ErrSessionUnavailable
		if errors.As(err, &unavailable) {
			unavailable.AccountCreated = true
		}
		h.fail(w, r, err)
		return
	}
	h.writeSession(w, user, pair, http.StatusCreated)
}

// Login handles user login requests.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req types.LoginRequest
	if err := decodeAndValidate(h.validator, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	fph, err := h.requestFingerprint(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	user, err := h.userService.Login(r.Context(), &req)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.startSession(w, r, user, fph, http.StatusOK)
}

// Refresh rotates the refresh token from the cookie and issues a new access
// token. A refresh token is single-use: presenting a consumed one revokes
// every session of its user.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	cookie, err := r.Cookie(RefreshCookieName)
	if err != nil || cookie.Value == "" {
		h.fail(w, r, &ErrSessionInvalid{Reason: "missing refresh token"})
		return
	}

	claims, err := h.jwtService.ValidateRefreshToken(cookie.Value)
	if err != nil {
		http.SetCookie(w, h.cookies.clearRefresh())
		h.fail(w, r, &ErrSessionInvalid{Reason: "invalid refresh token"})
		return
	}
	log := h.logger.WithFields(logrus.Fields{"user_id": claims.UserID, "session_id": claims.ID})

	if !h.fingerprints.VerifyRequest(r, claims.Fingerprint) {
		log.Warn("refresh fingerprint mismatch, revoking session")
		if err := h.sessions.Revoke(ctx, claims.UserID, claims.ID); err != nil {
			log.WithError(err).Error("failed to revoke session")
		}
		http.SetCookie(w, h.cookies.clearRefresh())
		h.fail(w, r, &ErrFingerprintMismatch{})
		return
	}

	sess, err := h.sessions.Consume(ctx, claims.ID)
	if err != nil {
		h.fail(w, r, fmt.Errorf("consume session: %w", err))
		return
	}
	if sess == nil {
		log.Warn("refresh token reuse detected, revoking all sessions")
		h.revokeAll(w, r, claims.UserID, "refresh token reuse")
		return
	}
	if sess.UserID != claims.UserID || sess.FingerprintHash != claims.Fingerprint {
		log.Warn("session does not match refresh token, revoking all sessions")
		h.revokeAll(w, r, claims.UserID, "session mismatch")
		return
	}

	user, err := h.userService.GetUser(ctx, claims.UserID)
	if err != nil {
		var notFound *ErrUserNotFound
		if errors.As(err, &notFound) {
			http.SetCookie(w, h.cookies.clearRefresh())
			h.fail(w, r, &ErrSessionInvalid{Reason: "user no longer exists"})
			return
		}
		h.fail(w, r, err)
		return
	}

	h.startSession(w, r, user, claims.Fingerprint, http.StatusOK)
}

func (h *AuthHandler) revokeAll(w http.ResponseWriter, r *http.Request, userID uuid.UUID, reason string) {
	if _, err := h.sessions.RevokeAll(r.Context(), userID); err != nil {
		h.logger.WithError(err).WithField("user_id", userID).Error("failed to revoke sessions")
	}
	http.SetCookie(w, h.cookies.clearRefresh())
	h.fail(w, r, &ErrSessionInvalid{Reason: reason})
}

// Logout revokes the cookie's session, if any, and clears the cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(RefreshCookieName); err == nil && cookie.Value != "" {
		if claims, err := h.jwtService.ValidateRefreshToken(cookie.Value); err == nil {
			if err := h.sessions.Revoke(r.Context(), claims.UserID, claims.ID); err != nil {
				h.logger.WithError(err).WithField("session_id", claims.ID).Warn("failed to revoke session on logout")
			}
		}
	}

	http.SetCookie(w, h.cookies.clearRefresh())
	jsonResponse(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

// LogoutAll revokes every session of the authenticated user.
func (h *AuthHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	n, err := h.sessions.RevokeAll(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	http.SetCookie(w, h.cookies.clearRefresh())
	jsonResponse(w, http.StatusOK, map[string]any{"message": "Logged out of all sessions", "revoked": n})
}

// Me returns the authenticated user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	user, err := h.userService.GetUser(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, user)
}

// UpdateMe updates the authenticated user's profile.
func (h *AuthHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req types.UpdateProfileRequest
	if err := decodeAndValidate(h.validator, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	user, err := h.userService.UpdateProfile(r.Context(), userID, &req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, user)
}

// UpdatePassword changes the password and signs out every device.
func (h *AuthHandler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req types.UpdatePasswordRequest
	if err := decodeAndValidate(h.validator, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	if err := h.userService.UpdatePassword(r.Context(), userID, req.CurrentPassword, req.NewPassword); err != nil {
		h.fail(w, r, err)
		return
	}

	if _, err := h.sessions.RevokeAll(r.Context(), userID); err != nil {
		h.logger.WithError(err).WithField("user_id", userID).Error("failed to revoke sessions after password change")
	}
	http.SetCookie(w, h.cookies.clearRefresh())

	jsonResponse(w, http.StatusOK, map[string]string{"message": "Password updated successfully"})
}

// Sessions lists the authenticated user's active sessions.
func (h *AuthHandler) Sessions(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	sessions, err := h.sessions.List(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	current := middleware.GetFingerprintHash(r)
	infos := make([]types.SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		infos = append(infos, types.SessionInfo{
			ID:        sess.ID,
			UserAgent: sess.UserAgent,
			IP:        sess.IP,
			CreatedAt: sess.CreatedAt,
			ExpiresAt: sess.ExpiresAt,
			Current:   current != "" && sess.FingerprintHash == current,
		})
	}
	jsonResponse(w, http.StatusOK, map[string]any{"sessions": infos})
}

// startSession issues a token pair bound to fph, stores the refresh session,
// sets the refresh cookie and writes the access token.
func (h *AuthHandler) startSession(w http.ResponseWriter, r *http.Request, user *store.User, fph string, status int) {
	pair, err := h.createSession(r, user.ID, fph)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeSession(w, user, pair, status)
}

func (h *AuthHandler) writeSession(w http.ResponseWriter, user *store.User, pair *TokenPair, status int) {
	http.SetCookie(w, h.cookies.refresh(pair.Refresh.Token))
	jsonResponse(w, status, types.AuthResponse{
		User:        user,
		AccessToken: pair.Access.Token,
		TokenType:   "Bearer",
		ExpiresAt:   pair.Access.ExpiresAt,
	})
}

func (h *AuthHandler) createSession(r *http.Request, userID uuid.UUID, fph string) (*TokenPair, error) {
	pair, err := h.jwtService.IssuePair(userID, fph)
	if err != nil {
		return nil, fmt.Errorf("failed to issue tokens: %w", err)
	}

	sess := &session.Session{
		ID:              pair.Refresh.ID,
		UserID:          userID,
		FingerprintHash: fph,
		UserAgent:       truncateString(r.UserAgent(), 256),
		IP:              clientIP(r),
		ExpiresAt:       pair.Refresh.ExpiresAt,
	}
	if err := h.sessions.Create(r.Context(), sess); err != nil {
		return nil, &ErrSessionUnavailable{Cause: fmt.Errorf("failed to create session: %w", err)}
	}
	return pair, nil
}

func (h *AuthHandler) requestFingerprint(r *http.Request) (string, error) {
	fph, err := h.fingerprints.HashRequest(r)
	if err != nil {
		return "", &ErrValidation{Field: "fingerprint", Message: err.Error()}
	}
	return fph, nil
}

func (h *AuthHandler) userID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, err := middleware.GetUserID(r)
	if err != nil {
		errorResponse(w, http.StatusUnauthorized, "Unauthorized")
		return uuid.Nil, false
	}
	return userID, true
}

func (h *AuthHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	writeError(h.logger, w, r, err)
}

// validationError converts validator errors into an ErrValidation naming the
// first failing field.
func validationError(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
		ve := validationErrors[0]
		return &ErrValidation{Field: ve.Field(), Message: fmt.Sprintf("failed on '%s'", ve.Tag())}
	}
	return &ErrValidation{Field: "body", Message: "invalid request"}
}

// truncateString cuts s to at most limit bytes without splitting a rune.
func truncateString(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
