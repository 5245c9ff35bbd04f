// ABOUTME: Gateway orchestrator that wires store, task service, agent and conversation service
// ABOUTME: Serves the JSON API and health endpoints and manages their lifecycle

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/2389/todo-gateway/internal/agent"
	"github.com/2389/todo-gateway/internal/auth"
	"github.com/2389/todo-gateway/internal/config"
	"github.com/2389/todo-gateway/internal/conversation"
	"github.com/2389/todo-gateway/internal/store"
	"github.com/2389/todo-gateway/internal/tasks"
)

// maxRequestBody bounds JSON request bodies.
const maxRequestBody = 1 << 20

// Gateway orchestrates the todo-gateway server components.
type Gateway struct {
	config       *config.Config
	store        store.Store
	tasks        *tasks.Service
	conversation *conversation.Service
	verifier     *auth.JWTVerifier
	httpServer   *http.Server
	logger       *slog.Logger
}

// Options overrides collaborators that New would otherwise build from config.
type Options struct {
	Store store.Store
	Agent agent.Agent
}

// initStore opens the configured database.
func initStore(cfg *config.Config) (store.Store, error) {
	source := cfg.Database.Source()
	if envPath := os.Getenv("TODO_GATEWAY_DB_PATH"); envPath != "" && cfg.Database.Driver != config.DriverPostgres {
		source = envPath
	}

	s, err := store.Open(cfg.Database.Driver, source)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}
	return s, nil
}

// buildAgent creates the configured agent over the task toolkit.
func buildAgent(cfg *config.Config, toolkit agent.Toolkit, logger *slog.Logger) (agent.Agent, error) {
	switch cfg.Agent.Provider {
	case config.ProviderRules:
		return agent.NewRuleAgent(toolkit, logger), nil
	case config.ProviderOpenAI, "":
		a, err := agent.NewOpenAIAgent(agent.OpenAIConfig{
			BaseURL:      cfg.Agent.BaseURL,
			APIKey:       cfg.Agent.APIKey,
			Model:        cfg.Agent.Model,
			MaxRounds:    cfg.Agent.MaxRounds,
			SystemPrompt: cfg.Agent.SystemPrompt,
			HTTPClient:   &http.Client{Timeout: cfg.Agent.RequestTimeout},
		}, toolkit, logger)
		if err != nil {
			return nil, fmt.Errorf("creating openai agent: %w", err)
		}
		return a, nil
	default:
		return nil, fmt.Errorf("unknown agent provider %q", cfg.Agent.Provider)
	}
}

// New creates a new Gateway instance with the given configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	return NewWithOptions(cfg, Options{}, logger)
}

// NewWithOptions creates a Gateway, using any collaborators supplied in opts.
func NewWithOptions(cfg *config.Config, opts Options, logger *slog.Logger) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s := opts.Store
	if s == nil {
		var err error
		if s, err = initStore(cfg); err != nil {
			return nil, err
		}
	}

	taskService := tasks.New(s, logger)

	a := opts.Agent
	if a == nil {
		var err error
		if a, err = buildAgent(cfg, tasks.Toolkit(taskService), logger); err != nil {
			_ = s.Close()
			return nil, err
		}
	}

	convService := conversation.New(s, a, logger)
	convService.SetAgentTimeout(cfg.Conversation.AgentTimeout)

	gw := &Gateway{
		config:       cfg,
		store:        s,
		tasks:        taskService,
		conversation: convService,
		logger:       logger.With("component", "gateway"),
	}

	authMiddleware, err := gw.authMiddleware(logger)
	if err != nil {
		_ = s.Close()
		return nil, err
	}

	mux := http.NewServeMux()

	// Health endpoints - no auth required
	mux.HandleFunc("/health", gw.handleHealth)
	mux.HandleFunc("/health/ready", gw.handleReady)

	mux.Handle("/api/chat", authMiddleware(http.HandlerFunc(gw.handleChat)))
	mux.Handle("/api/conversations", authMiddleware(http.HandlerFunc(gw.handleListConversations)))
	mux.Handle("/api/conversations/", authMiddleware(http.HandlerFunc(gw.handleConversationRoutes)))
	mux.Handle("/api/tasks", authMiddleware(http.HandlerFunc(gw.handleTasks)))
	mux.Handle("/api/tasks/", authMiddleware(http.HandlerFunc(gw.handleTaskRoutes)))

	gw.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return gw, nil
}

// authMiddleware picks JWT auth when a secret is configured, the dev header otherwise.
func (g *Gateway) authMiddleware(logger *slog.Logger) (func(http.Handler) http.Handler, error) {
	if g.config.Auth.JWTSecret == "" {
		g.logger.Warn("auth disabled - no jwt_secret configured, trusting " + auth.UserIDHeader + " header")
		return auth.HeaderAuthMiddleware(logger), nil
	}

	verifier, err := auth.NewJWTVerifier([]byte(g.config.Auth.JWTSecret))
	if err != nil {
		return nil, fmt.Errorf("creating JWT verifier: %w", err)
	}
	g.verifier = verifier
	g.logger.Info("JWT auth enabled")
	return auth.HTTPAuthMiddleware(verifier, logger), nil
}

// Handler returns the HTTP handler serving all routes.
func (g *Gateway) Handler() http.Handler {
	return g.httpServer.Handler
}

// Run starts the HTTP server and blocks until the context is canceled or the server fails.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", g.config.Server.HTTPAddr, err)
	}
	return g.Serve(ctx, ln)
}

// Serve runs the HTTP server on ln until ctx is canceled, then shuts down.
func (g *Gateway) Serve(ctx context.Context, ln net.Listener) error {
	g.logger.Info("starting gateway", "http_addr", ln.Addr().String(), "driver", g.config.Database.Driver, "agent", g.config.Agent.Provider)

	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		if err := g.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egCtx.Done()
		return g.gracefulShutdown()
	})

	return eg.Wait()
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// Uses context.Background() since the run context is already canceled.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.Shutdown(ctx)
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// Shutdown gracefully stops the HTTP server and closes the store.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", g.httpServer.Shutdown(ctx))
	errs = appendCloseError(errs, "store close", g.store.Close())

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}
	return nil
}

// handleHealth returns 200 OK if the server is alive.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady returns 200 if the store answers a ping.
func (g *Gateway) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := g.store.Ping(ctx); err != nil {
		g.logger.Warn("readiness check failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("store unavailable"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
