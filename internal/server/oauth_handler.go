package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/jonathan/content-repurposer/internal/config"
	"github.com/jonathan/content-repurposer/internal/fingerprint"
	"github.com/jonathan/content-repurposer/internal/store"
)

// OAuth state cookie attributes.
const (
	OAuthStateCookieName = "oauth_state"
	oauthStateCookiePath = "/auth/oauth"
	oauthStateTTL        = 10 * time.Minute
)

// Error codes passed to the front end callback page.
const (
	oauthErrInvalidState  = "invalid_state"
	oauthErrDenied        = "access_denied"
	oauthErrExchange      = "exchange_failed"
	oauthErrUserInfo      = "userinfo_failed"
	oauthErrAccount       = "account_error"
	oauthErrSession       = "session_error"
	oauthCallbackPagePath = "/auth/callback"
)

// googleUserInfo is the subset of the OpenID Connect userinfo response we use.
type googleUserInfo struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// OAuthHandler runs the Google authorization code flow and links the
// resulting identity to a local account.
type OAuthHandler struct {
	oauth       *oauth2.Config
	userInfoURL string
	auth        *AuthHandler
	frontendURL string
	httpClient  *http.Client
}

// NewOAuthHandler creates an OAuth handler. auth supplies the user service,
// session store and cookie settings.
func NewOAuthHandler(cfg *config.OAuthConfig, auth *AuthHandler, frontendURL string, httpClient *http.Client) *OAuthHandler {
	return &OAuthHandler{
		oauth:       cfg.OAuth2(),
		userInfoURL: cfg.UserInfoURL,
		auth:        auth,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		httpClient:  httpClient,
	}
}

// Start redirects the browser to the provider. The raw fingerprint arrives as
// a query parameter because this is a top-level navigation.
func (h *OAuthHandler) Start(w http.ResponseWriter, r *http.Request) {
	raw, err := fingerprint.Normalize(r.URL.Query().Get("fingerprint"))
	if err != nil {
		h.auth.fail(w, r, &ErrValidation{Field: "fingerprint", Message: err.Error()})
		return
	}

	state := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     OAuthStateCookieName,
		Value:    state + "." + h.auth.fingerprints.Hash(raw),
		Path:     oauthStateCookiePath,
		Domain:   h.auth.cookies.domain,
		MaxAge:   int(oauthStateTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.auth.cookies.secure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.oauth.AuthCodeURL(state, oauth2.AccessTypeOnline), http.StatusTemporaryRedirect)
}

// Callback validates state, exchanges the code, resolves the local user and
// starts a refresh session bound to the fingerprint captured in Start.
func (h *OAuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	log := h.auth.logger.WithField("provider", store.ProviderGoogle)
	query := r.URL.Query()

	state, fph, ok := h.readState(r)
	h.clearState(w)
	if !ok || subtle.ConstantTimeCompare([]byte(state), []byte(query.Get("state"))) != 1 {
		log.Warn("oauth state mismatch")
		h.redirectError(w, r, oauthErrInvalidState)
		return
	}

	code := query.Get("code")
	if code == "" {
		log.WithField("error", query.Get("error")).Warn("oauth authorization denied")
		h.redirectError(w, r, oauthErrDenied)
		return
	}

	ctx := context.WithValue(r.Context(), oauth2.HTTPClient, h.httpClient)
	token, err := h.oauth.Exchange(ctx, code)
	if err != nil {
		log.WithError(err).Warn("oauth token exchange failed")
		h.redirectError(w, r, oauthErrExchange)
		return
	}

	info, err := h.fetchUserInfo(ctx, token)
	if err != nil {
		log.WithError(err).Warn("oauth userinfo failed")
		h.redirectError(w, r, oauthErrUserInfo)
		return
	}

	user, err := h.auth.userService.ResolveOAuth(r.Context(), ExternalIdentity{
		Provider:      store.ProviderGoogle,
		Subject:       info.Sub,
		Email:         info.Email,
		EmailVerified: info.EmailVerified,
		Name:          info.Name,
		Picture:       info.Picture,
	})
	if err != nil {
		log.WithError(err).Warn("oauth account resolution failed")
		h.redirectError(w, r, oauthErrAccount)
		return
	}

	pair, err := h.auth.createSession(r, user.ID, fph)
	if err != nil {
		log.WithError(err).WithField("user_id", user.ID).Error("oauth session creation failed")
		h.redirectError(w, r, oauthErrSession)
		return
	}

	http.SetCookie(w, h.auth.cookies.refresh(pair.Refresh.Token))
	http.Redirect(w, r, h.frontendURL+oauthCallbackPagePath, http.StatusFound)
}

func (h *OAuthHandler) fetchUserInfo(ctx context.Context, token *oauth2.Token) (*googleUserInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.userInfoURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := h.oauth.Client(ctx, token).Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo returned status %d", resp.StatusCode)
	}

	var info googleUserInfo
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode userinfo: %w", err)
	}
	if info.Sub == "" {
		return nil, fmt.Errorf("userinfo has no subject")
	}
	return &info, nil
}

// readState splits the state cookie into the state value and fingerprint hash.
func (h *OAuthHandler) readState(r *http.Request) (state, fph string, ok bool) {
	cookie, err := r.Cookie(OAuthStateCookieName)
	if err != nil {
		return "", "", false
	}
	state, fph, found := strings.Cut(cookie.Value, ".")
	if !found || state == "" || fph == "" {
		return "", "", false
	}
	return state, fph, true
}

func (h *OAuthHandler) clearState(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     OAuthStateCookieName,
		Path:     oauthStateCookiePath,
		Domain:   h.auth.cookies.domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.auth.cookies.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *OAuthHandler) redirectError(w http.ResponseWriter, r *http.Request, code string) {
	target := h.frontendURL + oauthCallbackPagePath + "?error=" + url.QueryEscape(code)
	http.Redirect(w, r, target, http.StatusFound)
}
