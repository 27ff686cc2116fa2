package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jonathan/content-repurposer/internal/config"
	"github.com/jonathan/content-repurposer/internal/fetch"
	"github.com/jonathan/content-repurposer/internal/fingerprint"
	"github.com/jonathan/content-repurposer/internal/generation"
	"github.com/jonathan/content-repurposer/internal/ingestion"
	"github.com/jonathan/content-repurposer/internal/llm"
	"github.com/jonathan/content-repurposer/internal/logging"
	"github.com/jonathan/content-repurposer/internal/server"
	"github.com/jonathan/content-repurposer/internal/server/ratelimit"
	"github.com/jonathan/content-repurposer/internal/session"
)

var (
	servePort    int
	serveMigrate bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long:  `Start an HTTP server that exposes the auth, source, idea, post and schedule endpoints.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 8080, "Port to listen on")
	serveCmd.Flags().BoolVar(&serveMigrate, "migrate", false, "Apply migrations before serving")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	logger := logging.NewFromEnv()

	cfg, err := config.LoadServerConfig()
	if err != nil {
		return err
	}
	if cfg.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY environment variable is required")
	}

	tokenConfig, err := config.NewTokenConfig()
	if err != nil {
		return fmt.Errorf("failed to load JWT config: %w", err)
	}
	passwordConfig, err := config.NewPasswordConfig()
	if err != nil {
		return fmt.Errorf("failed to load password config: %w", err)
	}
	fingerprintConfig, err := config.NewFingerprintConfig()
	if err != nil {
		return fmt.Errorf("failed to load fingerprint config: %w", err)
	}
	llmConfig, err := llm.ConfigFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load LLM config: %w", err)
	}
	oauthConfig := config.NewOAuthConfig()
	if !oauthConfig.Enabled() {
		logger.Warn("GOOGLE_CLIENT_ID or GOOGLE_CLIENT_SECRET not set, Google sign-in disabled")
	}

	ctx := cmd.Context()
	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	st, err := openStore(connectCtx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close(context.Background()) }()

	if serveMigrate {
		if err := st.Migrate(connectCtx); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	redisClient, err := session.Connect(connectCtx, cfg.RedisURL)
	if err != nil {
		return err
	}
	defer func() { _ = redisClient.Close() }()

	llmClient, err := llm.NewClient(ctx, llmConfig, cfg.GeminiAPIKey)
	if err != nil {
		return fmt.Errorf("failed to create LLM client: %w", err)
	}
	defer func() { _ = llmClient.Close() }()

	generator, err := generation.New(llmClient, logger)
	if err != nil {
		return fmt.Errorf("failed to create generator: %w", err)
	}

	srv, err := server.New(servePort, server.Deps{
		Store:        st,
		Sessions:     session.NewStore(redisClient),
		Tokens:       server.NewJWTService(tokenConfig),
		Passwords:    passwordConfig,
		Fingerprints: fingerprint.NewHasher(fingerprintConfig.Secret),
		OAuth:        oauthConfig,
		Ingester:     newIngester(cfg, redisClient, logger),
		Generator:    generator,
		Config:       cfg,
		RateLimit:    ratelimit.LoadConfig(),
		Logger:       logger,
		HTTPClient:   &http.Client{Timeout: 15 * time.Second},
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	return srv.Start(ctx)
}

// newIngester builds the page fetcher chain: retrying HTTP client, Redis page
// cache, and the headless browser fallback when USE_BROWSER is set.
func newIngester(cfg *config.ServerConfig, redisClient goredis.UniversalClient, logger *logrus.Logger) *ingestion.Ingester {
	opts := fetch.DefaultOptions()
	opts.AllowPrivateNetworks = cfg.AllowPrivateFetch
	if opts.AllowPrivateNetworks {
		logger.Warn("web sources may fetch private network addresses")
	}
	pages := fetch.NewCachedFetcher(fetch.NewClient(opts), redisClient, 0, 0)
	if !cfg.UseBrowser {
		return ingestion.New(pages, nil, logger)
	}
	logger.Info("headless browser fallback enabled")
	return ingestion.New(pages, fetch.NewBrowserRenderer(logger), logger)
}
