package config

import (
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// GoogleUserInfoURL is the OpenID Connect userinfo endpoint for Google accounts.
const GoogleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

// OAuthConfig holds configuration for the Google account-linking flow.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Endpoint     oauth2.Endpoint
	UserInfoURL  string
	Scopes       []string
}

// NewOAuthConfig reads GOOGLE_CLIENT_ID, GOOGLE_CLIENT_SECRET and
// GOOGLE_REDIRECT_URL. Missing values leave the flow disabled rather than
// failing startup.
func NewOAuthConfig() *OAuthConfig {
	return &OAuthConfig{
		ClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		ClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		RedirectURL:  os.Getenv("GOOGLE_REDIRECT_URL"),
		Endpoint:     google.Endpoint,
		UserInfoURL:  GoogleUserInfoURL,
		Scopes:       []string{"openid", "email", "profile"},
	}
}

// Enabled reports whether every credential needed for the flow is present.
func (c *OAuthConfig) Enabled() bool {
	return c != nil && c.ClientID != "" && c.ClientSecret != "" && c.RedirectURL != ""
}

// OAuth2 returns the golang.org/x/oauth2 configuration for the provider.
func (c *OAuthConfig) OAuth2() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURL:  c.RedirectURL,
		Endpoint:     c.Endpoint,
		Scopes:       c.Scopes,
	}
}
