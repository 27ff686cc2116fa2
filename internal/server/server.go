// Package server provides the HTTP REST API for the content repurposer.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/jonathan/content-repurposer/internal/config"
	"github.com/jonathan/content-repurposer/internal/fingerprint"
	"github.com/jonathan/content-repurposer/internal/generation"
	"github.com/jonathan/content-repurposer/internal/ingestion"
	"github.com/jonathan/content-repurposer/internal/server/middleware"
	"github.com/jonathan/content-repurposer/internal/server/ratelimit"
	"github.com/jonathan/content-repurposer/internal/session"
	"github.com/jonathan/content-repurposer/internal/store"
	"github.com/jonathan/content-repurposer/internal/types"
)

// MaxRequestBodyBytes caps every request body.
const MaxRequestBodyBytes = 1 << 20

// Ingester turns a URL into extracted content.
type Ingester interface {
	FromWebPage(ctx context.Context, rawURL string) (*ingestion.Content, error)
	FromYouTube(ctx context.Context, rawURL string) (*ingestion.Content, error)
}

// ContentGenerator produces ideas and post drafts with an LLM.
type ContentGenerator interface {
	GenerateIdeas(ctx context.Context, source *store.ContentSource, count int) ([]store.Idea, error)
	GeneratePosts(ctx context.Context, in generation.PostInput) ([]store.Post, error)
}

// Deps are the collaborators a Server is built from. The caller owns the
// store and Redis connections and closes them after Start returns.
type Deps struct {
	Store        store.Store
	Sessions     *session.Store
	Tokens       *JWTService
	Passwords    *config.PasswordConfig
	Fingerprints *fingerprint.Hasher
	OAuth        *config.OAuthConfig
	Ingester     Ingester
	Generator    ContentGenerator
	Config       *config.ServerConfig
	RateLimit    *ratelimit.Config
	Logger       *logrus.Logger
	// HTTPClient is used for OAuth token exchange and userinfo. Defaults to
	// http.DefaultClient.
	HTTPClient *http.Client
}

// Server represents the HTTP server
type Server struct {
	httpServer   *http.Server
	handler      http.Handler
	store        store.Store
	sessions     *session.Store
	fingerprints *fingerprint.Hasher
	ingester     Ingester
	generator    ContentGenerator
	config       *config.ServerConfig
	logger       *logrus.Logger
	metrics      *Metrics
	rateLimiter  *ratelimit.Limiter
	userService  *UserService
	authHandler  *AuthHandler
	oauthHandler *OAuthHandler
	validate     *validator.Validate
	now          func() time.Time
}

// New creates a new server instance listening on port.
func New(port int, deps Deps) (*Server, error) {
	if err := deps.check(); err != nil {
		return nil, err
	}
	if deps.Logger == nil {
		deps.Logger = logrus.StandardLogger()
	}
	if deps.RateLimit == nil {
		deps.RateLimit = ratelimit.LoadConfig()
	}
	if deps.HTTPClient == nil {
		deps.HTTPClient = http.DefaultClient
	}

	s := &Server{
		store:        deps.Store,
		sessions:     deps.Sessions,
		fingerprints: deps.Fingerprints,
		ingester:     deps.Ingester,
		generator:    deps.Generator,
		config:       deps.Config,
		logger:       deps.Logger,
		metrics:      NewMetrics(),
		rateLimiter:  ratelimit.NewLimiter(deps.RateLimit),
		validate:     types.Validator(),
		now:          time.Now,
	}

	cookies := newCookieSettings(deps.Config, deps.Tokens.RefreshTTL())
	s.userService = NewUserService(deps.Store, deps.Passwords)
	s.authHandler = NewAuthHandler(s.userService, deps.Tokens, deps.Sessions, deps.Fingerprints, cookies, deps.Logger)
	if deps.OAuth.Enabled() {
		s.oauthHandler = NewOAuthHandler(deps.OAuth, s.authHandler, deps.Config.FrontendURL, deps.HTTPClient)
	}

	auth := middleware.AuthMiddleware(deps.Tokens.AsTokenValidator(), deps.Fingerprints)
	protected := func(h http.HandlerFunc) http.Handler { return auth(h) }

	mux := http.NewServeMux()

	// Probes
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)
	mux.Handle("GET /metrics", s.metrics.Handler())

	// Authentication
	mux.HandleFunc("POST /auth/register", s.authHandler.Register)
	mux.HandleFunc("POST /auth/login", s.authHandler.Login)
	mux.HandleFunc("POST /auth/refresh", s.authHandler.Refresh)
	mux.HandleFunc("POST /auth/logout", s.authHandler.Logout)
	mux.Handle("POST /auth/logout-all", protected(s.authHandler.LogoutAll))
	mux.Handle("GET /auth/me", protected(s.authHandler.Me))
	mux.Handle("PUT /auth/me", protected(s.authHandler.UpdateMe))
	mux.Handle("PUT /auth/password", protected(s.authHandler.UpdatePassword))
	mux.Handle("GET /auth/sessions", protected(s.authHandler.Sessions))

	// OAuth account linking
	mux.HandleFunc("GET /auth/oauth/google", s.handleOAuthStart)
	mux.HandleFunc("GET /auth/oauth/google/callback", s.handleOAuthCallback)

	// Content sources
	mux.Handle("POST /sources/web", protected(s.handleCreateWebSource))
	mux.Handle("POST /sources/youtube", protected(s.handleCreateYouTubeSource))
	mux.Handle("GET /sources", protected(s.handleListSources))
	mux.Handle("GET /sources/{id}", protected(s.handleGetSource))
	mux.Handle("DELETE /sources/{id}", protected(s.handleDeleteSource))

	// Ideas
	mux.Handle("POST /sources/{id}/ideas", protected(s.handleGenerateIdeas))
	mux.Handle("GET /sources/{id}/ideas", protected(s.handleListIdeas))
	mux.Handle("GET /ideas/{id}", protected(s.handleGetIdea))
	mux.Handle("PUT /ideas/{id}", protected(s.handleUpdateIdea))
	mux.Handle("DELETE /ideas/{id}", protected(s.handleDeleteIdea))

	// Posts
	mux.Handle("POST /sources/{id}/posts", protected(s.handleGenerateSourcePosts))
	mux.Handle("POST /ideas/{id}/posts", protected(s.handleGenerateIdeaPosts))
	mux.Handle("GET /posts", protected(s.handleListPosts))
	mux.Handle("GET /posts/{id}", protected(s.handleGetPost))
	mux.Handle("PUT /posts/{id}", protected(s.handleUpdatePost))
	mux.Handle("DELETE /posts/{id}", protected(s.handleDeletePost))

	// Schedules
	mux.Handle("POST /schedules", protected(s.handleCreateSchedule))
	mux.Handle("GET /schedules", protected(s.handleListSchedules))
	mux.Handle("GET /schedules/{id}", protected(s.handleGetSchedule))
	mux.Handle("PUT /schedules/{id}", protected(s.handleUpdateSchedule))
	mux.Handle("DELETE /schedules/{id}", protected(s.handleDeleteSchedule))

	s.handler = s.withRateLimit(s.withLogging(s.withCORS(s.withBodyLimit(mux))))
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 180 * time.Second, // Generation can take a while
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

func (d *Deps) check() error {
	switch {
	case d.Store == nil:
		return errors.New("server: store is required")
	case d.Sessions == nil:
		return errors.New("server: session store is required")
	case d.Tokens == nil:
		return errors.New("server: token service is required")
	case d.Passwords == nil:
		return errors.New("server: password config is required")
	case d.Fingerprints == nil:
		return errors.New("server: fingerprint hasher is required")
	case d.Ingester == nil:
		return errors.New("server: ingester is required")
	case d.Generator == nil:
		return errors.New("server: generator is required")
	case d.Config == nil:
		return errors.New("server: server config is required")
	}
	return nil
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start listens for requests until ctx is done or the process receives
// SIGINT/SIGTERM, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", s.httpServer.Addr).Info("Server starting")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}
	s.logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	// Stop rate limiter cleanup goroutine
	s.rateLimiter.Stop()

	s.logger.Info("Server stopped")
	return nil
}

// withCORS allows the front end origin to call the API with credentials.
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" && origin == s.config.FrontendURL {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+fingerprint.Header)
			w.Header().Set("Access-Control-Max-Age", "600")
		}
		w.Header().Add("Vary", "Origin")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withBodyLimit caps request bodies.
func (s *Server) withBodyLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodyBytes)
		}
		next.ServeHTTP(w, r)
	})
}

// withRateLimit adds rate limiting middleware
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientID := s.extractClientID(r)

		allowed, info := s.rateLimiter.Allow(clientID, r.URL.Path, r.Method)
		s.setRateLimitHeaders(w, info)
		if !allowed {
			s.rateLimitResponse(w, r, info)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// withLogging logs each request once it completes and records its metrics.
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		elapsed := time.Since(start)

		// The mux stores the matched pattern on the request it was given.
		s.metrics.ObserveRequest(r.Method, r.Pattern, rec.status, elapsed)

		entry := s.logger.WithFields(logrus.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      rec.status,
			"duration_ms": elapsed.Milliseconds(),
			"remote_addr": r.RemoteAddr,
		})
		if rec.status >= http.StatusInternalServerError {
			entry.Warn("request completed")
			return
		}
		entry.Info("request completed")
	})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady reports whether the store and Redis are reachable.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := map[string]string{"store": "ok", "redis": "ok"}
	ready := true
	if err := s.store.Ping(ctx); err != nil {
		s.logger.WithError(err).Warn("store not ready")
		checks["store"] = "unavailable"
		ready = false
	}
	if err := s.sessions.Ping(ctx); err != nil {
		s.logger.WithError(err).Warn("redis not ready")
		checks["redis"] = "unavailable"
		ready = false
	}

	status := http.StatusOK
	checks["status"] = "ready"
	if !ready {
		status = http.StatusServiceUnavailable
		checks["status"] = "not_ready"
	}
	jsonResponse(w, status, checks)
}

// handleOAuthStart redirects to the provider, or 404s when OAuth is not configured.
func (s *Server) handleOAuthStart(w http.ResponseWriter, r *http.Request) {
	if s.oauthHandler == nil {
		errorResponse(w, http.StatusNotFound, "oauth is not configured")
		return
	}
	s.oauthHandler.Start(w, r)
}

func (s *Server) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	if s.oauthHandler == nil {
		errorResponse(w, http.StatusNotFound, "oauth is not configured")
		return
	}
	s.oauthHandler.Callback(w, r)
}

// jsonResponse writes a JSON response
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// The status line is already out; an encoding failure leaves a
	// truncated body the client will reject.
	_ = json.NewEncoder(w).Encode(data)
}

// errorResponse writes an error JSON response
func errorResponse(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

// fail maps err to a status and writes it. Server-side failures are logged
// and reported without internal detail.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	writeError(s.logger, w, r, err)
}

func writeError(logger *logrus.Logger, w http.ResponseWriter, r *http.Request, err error) {
	status := HTTPStatus(err)
	var unavailable *ErrSessionUnavailable
	switch {
	case errors.As(err, &unavailable):
		logger.WithError(err).WithField("path", r.URL.Path).Error("session store unavailable")
		errorResponse(w, status, unavailable.PublicMessage())
	case status == http.StatusBadGateway:
		logger.WithError(err).WithField("path", r.URL.Path).Warn("upstream failure")
		errorResponse(w, status, "upstream service failed, please try again")
	case status >= http.StatusInternalServerError:
		logger.WithError(err).WithField("path", r.URL.Path).Error("request failed")
		errorResponse(w, status, "internal server error")
	default:
		errorResponse(w, status, err.Error())
	}
}

// decodeJSON reads a JSON body into dst and validates it.
func (s *Server) decodeJSON(r *http.Request, dst any) error {
	return decodeAndValidate(s.validate, r, dst)
}

func decodeAndValidate(v *validator.Validate, r *http.Request, dst any) error {
	// An empty body decodes as {} so that the validator reports missing fields.
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return &ErrValidation{Field: "body", Message: "request body too large"}
		}
		return &ErrValidation{Field: "body", Message: "invalid request body"}
	}
	if err := v.Struct(dst); err != nil {
		return validationError(err)
	}
	return nil
}

// extractClientID extracts the client identifier from the request.
// This uses the IP address from RemoteAddr; X-Forwarded-For is not trusted
// because the service is not deployed behind a known proxy list.
func (s *Server) extractClientID(r *http.Request) string {
	return clientIP(r)
}

func clientIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// setRateLimitHeaders sets standard rate limit headers on the response.
func (s *Server) setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", info.Limit))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", info.Remaining))
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", info.ResetTime.Unix()))
	}
}

// rateLimitResponse writes a 429 Too Many Requests response with rate limit information.
func (s *Server) rateLimitResponse(w http.ResponseWriter, r *http.Request, info ratelimit.Info) {
	response := map[string]any{
		"error":     "rate_limit_exceeded",
		"message":   "Rate limit exceeded. Please try again later.",
		"limit":     info.Limit,
		"remaining": info.Remaining,
		"reset_at":  info.ResetTime.Format(time.RFC3339),
	}

	if info.RetryAfter > 0 {
		response["retry_after"] = int(info.RetryAfter.Seconds())
		w.Header().Set("Retry-After", fmt.Sprintf("%d", int(info.RetryAfter.Seconds())))
	}

	s.logger.WithFields(logrus.Fields{
		"client":   s.extractClientID(r),
		"path":     r.URL.Path,
		"limit":    info.Limit,
		"reset_at": info.ResetTime.Format(time.RFC3339),
	}).Warn("rate limit exceeded")

	jsonResponse(w, http.StatusTooManyRequests, response)
}
