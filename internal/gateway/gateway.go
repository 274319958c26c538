// ABOUTME: Gateway orchestrator that serves the medical chat HTTP API
// ABOUTME: Manages the model client, agent catalog, store, and server lifecycle

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/carebridge/mediline/internal/agents"
	"github.com/carebridge/mediline/internal/auth"
	"github.com/carebridge/mediline/internal/config"
	"github.com/carebridge/mediline/internal/genai"
	"github.com/carebridge/mediline/internal/store"
)

// GenerativeModel is the slice of the model client the gateway needs.
// Tests substitute a mock.
type GenerativeModel interface {
	Generate(ctx context.Context, prompt string, image *genai.ImagePart) (string, error)
	Model() string
}

// Gateway coordinates the HTTP API, the generative model, the agent
// catalog, and the exchange ledger.
type Gateway struct {
	config     *config.Config
	model      GenerativeModel
	catalog    *agents.Catalog
	store      store.Store
	verifier   auth.TokenVerifier
	httpServer *http.Server
	logger     *slog.Logger
}

// initStore creates the exchange ledger based on config and environment.
func initStore(cfg *config.Config) (store.Store, error) {
	dbPath := cfg.Database.Path
	if envPath := os.Getenv("MEDILINE_DB_PATH"); envPath != "" {
		dbPath = envPath
	}

	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}
	return s, nil
}

// initCatalog loads the agent catalog, applying the configured TOML
// overrides when present.
func initCatalog(cfg *config.Config) (*agents.Catalog, error) {
	if cfg.Agents.Catalog == "" {
		return agents.Builtin(), nil
	}

	catalog, err := agents.LoadCatalog(cfg.Agents.Catalog)
	if err != nil {
		return nil, fmt.Errorf("loading agent catalog: %w", err)
	}
	return catalog, nil
}

// New creates a Gateway from configuration. The store and model client
// are built here; Run starts the HTTP server.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	if err := cfg.ValidateServer(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	s, err := initStore(cfg)
	if err != nil {
		return nil, err
	}

	catalog, err := initCatalog(cfg)
	if err != nil {
		s.Close()
		return nil, err
	}

	model := genai.New(genai.Config{
		APIKey: cfg.Gemini.APIKey,
		Model:  cfg.Gemini.Model,
		Logger: logger,
	})

	g := &Gateway{
		config:  cfg,
		model:   model,
		catalog: catalog,
		store:   s,
		logger:  logger.With("component", "gateway"),
	}

	if cfg.Auth.JWTSecret != "" {
		g.verifier = auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	}

	g.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           g.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return g, nil
}

// routes builds the HTTP handler with middleware applied.
func (g *Gateway) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", g.handleRoot)
	mux.HandleFunc("/api/health", g.handleHealth)
	mux.Handle("/api/chat", g.protect(http.HandlerFunc(g.handleChat)))
	mux.Handle("/api/prescription/parse", g.protect(http.HandlerFunc(g.handlePrescriptionParse)))
	mux.Handle("/api/voice/command", g.protect(http.HandlerFunc(g.handleVoiceCommand)))

	return g.requestLogging(corsMiddleware(mux))
}

// protect wraps API handlers with bearer auth when a JWT secret is
// configured. Health and the root document stay open either way.
func (g *Gateway) protect(next http.Handler) http.Handler {
	if g.verifier == nil {
		return next
	}
	return auth.Middleware(g.verifier)(next)
}

// Run starts the HTTP server and blocks until the context is cancelled
// or the server fails. Shutdown is graceful with a timeout.
func (g *Gateway) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		g.logger.Info("HTTP server listening", "addr", g.httpServer.Addr, "model", g.model.Model())
		if err := g.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		g.logger.Info("Shutdown signal received")
	case serverErr = <-errCh:
		g.logger.Error("Server error", "error", serverErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := g.httpServer.Shutdown(shutdownCtx); err != nil {
		g.logger.Error("HTTP shutdown error", "error", err)
	}

	if err := g.store.Close(); err != nil {
		g.logger.Error("Store close error", "error", err)
	}

	return serverErr
}
