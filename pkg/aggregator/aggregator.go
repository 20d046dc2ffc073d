// Package aggregator fans quote requests out to every provider adapter,
// merges and ranks the results, and drives debounced quote sessions.
package aggregator

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"xroute/pkg/adapter"
	"xroute/pkg/types"
)

// Aggregator queries all registered adapters concurrently
type Aggregator struct {
	registry *adapter.Registry
	logger   *zap.Logger
}

// New creates an aggregator over the adapters in registry
func New(registry *adapter.Registry, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{
		registry: registry,
		logger:   logger.Named("aggregator"),
	}
}

// FindBestRoutes returns the ranked routes of every provider that answered.
// A missing or zero amount yields no routes without contacting any provider.
// Provider failures only reduce the result set and are never returned.
func (a *Aggregator) FindBestRoutes(ctx context.Context, req types.QuoteRequest) ([]types.Route, error) {
	if !req.HasAmount() {
		return []types.Route{}, nil
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	adapters := a.registry.All()
	results := make([][]types.Route, len(adapters))

	var g errgroup.Group
	for i, ad := range adapters {
		i, ad := i, ad
		g.Go(func() error {
			results[i] = a.quote(ctx, ad, req)
			return nil
		})
	}
	_ = g.Wait()

	merged := make([]types.Route, 0)
	for _, routes := range results {
		for _, r := range routes {
			if !hasOutput(r) {
				continue
			}
			merged = append(merged, r)
		}
	}

	a.logger.Debug("Aggregation finished",
		zap.Int("providers", len(adapters)),
		zap.Int("routes", len(merged)),
		zap.Duration("elapsed", time.Since(start)))

	if len(merged) == 0 {
		return []types.Route{}, nil
	}
	return Rank(merged, req.Objective()), nil
}

// quote calls one adapter, turning a panic into no contribution
func (a *Aggregator) quote(ctx context.Context, ad adapter.Adapter, req types.QuoteRequest) (routes []types.Route) {
	provider := ad.Provider()
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("Provider panicked",
				zap.String("provider", string(provider)),
				zap.Error(fmt.Errorf("%v", r)))
			routes = nil
		}
	}()

	routes = ad.GetQuote(ctx, req)
	a.logger.Debug("Provider answered",
		zap.String("provider", string(provider)),
		zap.Int("routes", len(routes)))
	return routes
}

func hasOutput(r types.Route) bool {
	amount, ok := new(big.Int).SetString(r.DstAmount, 10)
	return ok && amount.Sign() > 0
}
