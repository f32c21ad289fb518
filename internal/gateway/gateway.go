// ABOUTME: Gateway orchestrator that owns the HTTP server and component lifecycle
// ABOUTME: Wires store, conversation service, relay client, and webhook dedupe together

package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/tether-ops/tether/internal/config"
	"github.com/tether-ops/tether/internal/conversation"
	"github.com/tether-ops/tether/internal/dedupe"
	"github.com/tether-ops/tether/internal/relay"
	"github.com/tether-ops/tether/internal/store"
)

// Gateway orchestrates the tether server components.
// It manages the SQLite store, the conversation service, the relay
// client, and the HTTP server exposing the dashboard API and webhook.
type Gateway struct {
	config       *config.Config
	store        store.Store
	conversation *conversation.Service
	httpServer   *http.Server
	logger       *slog.Logger

	// dedupe suppresses webhook redeliveries
	dedupe *dedupe.Cache
}

// New creates a new Gateway instance with the given configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}

	rl := relay.NewHTTPRelay(cfg.Relay.URL, cfg.Relay.Timeout, logger)
	convService := conversation.New(s, rl, logger)

	dedupeTTL := cfg.Webhook.DedupeTTL
	if dedupeTTL <= 0 {
		dedupeTTL = 5 * time.Minute
	}

	gw := &Gateway{
		config:       cfg,
		store:        s,
		conversation: convService,
		logger:       logger.With("component", "gateway"),
		dedupe:       dedupe.New(dedupeTTL, 100_000),
	}

	mux := http.NewServeMux()
	gw.registerRoutes(mux)

	gw.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return gw, nil
}

// registerRoutes attaches all HTTP routes to the mux.
// Each API route maps to exactly one conversation service operation.
func (g *Gateway) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", g.handleHealth)
	mux.HandleFunc("/api/conversations", g.handleListConversations)
	mux.HandleFunc("/api/conversations/", g.handleConversationRoutes)
	mux.HandleFunc("/api/send", g.handleSendMessage)
	mux.HandleFunc("/webhook", g.handleWebhook)
}

// Run starts the HTTP server and blocks until the context is canceled.
// Returns nil on graceful shutdown, or an error if the server fails.
func (g *Gateway) Run(ctx context.Context) error {
	// Repair summaries a previous run may have left behind the log
	// before accepting traffic that sorts by them.
	if err := g.conversation.ReconcileSummaries(ctx); err != nil {
		g.logger.Warn("summary reconciliation failed", "error", err)
	}

	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on HTTP address: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := g.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		g.logger.Error("server error", "error", serverErr)
	}

	shutdownErr := g.gracefulShutdown()
	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// Uses context.Background() intentionally since the original context is already canceled.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.Shutdown(ctx)
}

// Shutdown gracefully stops the HTTP server and releases resources.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	var errs []error
	if err := g.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("HTTP shutdown: %w", err))
	}
	if err := g.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("store close: %w", err))
	}
	g.dedupe.Close()

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}

// handleHealth returns 200 OK if the server is alive.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
