// Package adapter integrates third-party bridge and DEX aggregation APIs
// behind one contract.
package adapter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"xroute/config"
	"xroute/pkg/types"
)

const (
	DefaultQuoteTimeout  = 30 * time.Second
	DefaultTokenTimeout  = 10 * time.Second
	DefaultStatusTimeout = 15 * time.Second

	// MaxTokenResults caps token search results
	MaxTokenResults = 20
)

// ErrUnknownProvider is returned when no adapter is registered for a provider
var ErrUnknownProvider = errors.New("unknown provider")

// Adapter is implemented once per provider. GetQuote, GetStatus and
// SearchTokens never fail: provider trouble yields no routes, a pending
// status or no tokens. BuildTransaction does return errors.
type Adapter interface {
	Provider() types.Provider
	GetQuote(ctx context.Context, req types.QuoteRequest) []types.Route
	// BuildTransaction may record build-time details into route.Data.
	BuildTransaction(ctx context.Context, route *types.Route) (*types.TransactionData, error)
	GetStatus(ctx context.Context, txHash string, route types.Route) types.StatusResponse
	SearchTokens(ctx context.Context, chainID int64, query string) []types.Token
}

// BalanceReader lists wallet balances. chainID 0 means every chain.
type BalanceReader interface {
	Balances(ctx context.Context, address string, chainID int64) ([]types.TokenWithBalance, error)
}

// Options configures an adapter
type Options struct {
	BaseURL      string
	APIKey       string
	Fee          config.FeeConfig
	QuoteTimeout time.Duration
	TokenTimeout time.Duration
	// StatusTimeout bounds status checks and transaction builds
	StatusTimeout time.Duration
	HTTPClient    *http.Client
	Logger        *zap.Logger
}

func (o Options) withDefaults(baseURL string) Options {
	if o.BaseURL == "" {
		o.BaseURL = baseURL
	}
	if o.QuoteTimeout <= 0 {
		o.QuoteTimeout = DefaultQuoteTimeout
	}
	if o.TokenTimeout <= 0 {
		o.TokenTimeout = DefaultTokenTimeout
	}
	if o.StatusTimeout <= 0 {
		o.StatusTimeout = DefaultStatusTimeout
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{}
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// Registry holds the adapters in registration order. That order is the
// provider call order used for tie-breaking.
type Registry struct {
	mu       sync.RWMutex
	adapters map[types.Provider]Adapter
	order    []types.Provider
	logger   *zap.Logger
}

// NewRegistry creates an empty registry
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		adapters: make(map[types.Provider]Adapter),
		logger:   logger.Named("adapter_registry"),
	}
}

// Register adds an adapter
func (r *Registry) Register(a Adapter) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := a.Provider()
	if _, exists := r.adapters[p]; exists {
		return fmt.Errorf("provider %s already registered", p)
	}
	r.adapters[p] = a
	r.order = append(r.order, p)

	r.logger.Info("Provider registered", zap.String("provider", string(p)))
	return nil
}

// Get returns the adapter for p
func (r *Registry) Get(p types.Provider) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.adapters[p]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, p)
	}
	return a, nil
}

// Lookup resolves an adapter from a provider name
func (r *Registry) Lookup(name string) (Adapter, error) {
	p, err := types.ParseProvider(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	return r.Get(p)
}

// All returns the adapters in registration order
func (r *Registry) All() []Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Adapter, 0, len(r.order))
	for _, p := range r.order {
		out = append(out, r.adapters[p])
	}
	return out
}

// Providers returns the registered provider names in order
func (r *Registry) Providers() []types.Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]types.Provider, len(r.order))
	copy(out, r.order)
	return out
}
