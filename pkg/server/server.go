package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"xroute/config"
	"xroute/pkg/adapter"
	"xroute/pkg/aggregator"
	"xroute/pkg/store"
)

const shutdownTimeout = 5 * time.Second

// Deps are the components the HTTP surface reads from
type Deps struct {
	Finder   aggregator.RouteFinder
	Adapters *adapter.Registry
	Tokens   adapter.Adapter       // token search provider
	Balances adapter.BalanceReader // may be nil
	Chains   *config.ChainTable
	State    *store.State
	Debounce time.Duration
}

// Server exposes quotes, status, tokens, balances and a live feed
type Server struct {
	deps     Deps
	logger   *zap.Logger
	session  *aggregator.Session
	upgrader websocket.Upgrader
	router   chi.Router
}

// New builds the router. Debounced quote passes submitted over the live
// feed run under ctx.
func New(ctx context.Context, deps Deps, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Chains == nil {
		deps.Chains = config.Chains()
	}
	s := &Server{
		deps:   deps,
		logger: logger.Named("server"),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	s.session = aggregator.NewSession(ctx, deps.Finder, deps.State, deps.Debounce, logger)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Options("/*", corsHeaders)
	r.Get("/quote", s.handleQuote)
	r.Get("/status", s.handleStatus)
	r.Get("/tokens", s.handleTokens)
	r.Get("/balances", s.handleBalances)
	r.Get("/chains", s.handleChains)
	r.Get("/routes", s.handleRoutes)
	r.Get("/transactions", s.handleTransactions)
	r.Get("/transactions/{id}", s.handleTransaction)
	r.Get("/ws", s.handleWS)

	s.router = r
	return s
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is done, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	s.logger.Info("HTTP service started", zap.String("addr", addr))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.session.Close()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info("HTTP service stopped")
	return nil
}

// Close stops the quote session
func (s *Server) Close() {
	s.session.Close()
}

func corsHeaders(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization, Origin, X-Requested-With")
}
