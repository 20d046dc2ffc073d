package cmd

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"xroute/config"
	"xroute/pkg/adapter"
	"xroute/pkg/aggregator"
	"xroute/pkg/execution"
	"xroute/pkg/store"
	"xroute/pkg/tracker"
)

// app wires the components every command shares
type app struct {
	chains     *config.ChainTable
	registry   *adapter.Registry
	lifi       *adapter.LiFi
	aggregator *aggregator.Aggregator
	state      *store.State
	tracker    *tracker.Tracker
	pipeline   *execution.Pipeline
}

func adapterOptions(p config.ProviderConfig, client *http.Client) adapter.Options {
	return adapter.Options{
		BaseURL:      p.BaseURL,
		APIKey:       p.APIKey,
		Fee:          cfg.Fee,
		QuoteTimeout: cfg.Timeouts.Quote,
		TokenTimeout: cfg.Timeouts.Tokens,
		HTTPClient:   client,
		Logger:       logger,
	}
}

// newApp registers the providers and opens the store. With resume set,
// in-flight transactions from the store resume tracking.
func newApp(ctx context.Context, resume bool) (*app, error) {
	chains := config.Chains()
	client := &http.Client{}

	registry := adapter.NewRegistry(logger)
	lifi := adapter.NewLiFi(adapterOptions(cfg.LiFi, client))
	if err := registry.Register(lifi); err != nil {
		return nil, err
	}
	if err := registry.Register(adapter.NewSocket(adapterOptions(cfg.Socket, client))); err != nil {
		return nil, err
	}
	if cfg.OneClick.APIKey != "" {
		if err := registry.Register(adapter.NewOneClick(adapterOptions(cfg.OneClick, client), chains)); err != nil {
			return nil, err
		}
	} else {
		logger.Debug("1Click disabled, no jwt token configured")
	}

	persister, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Store.Driver, err)
	}
	state := store.New(persister, logger)

	tr := tracker.New(ctx, registry, state, tracker.Options{
		InitialDelay: cfg.Tracker.InitialDelay,
		Interval:     cfg.Tracker.Interval,
		MaxAttempts:  cfg.Tracker.MaxAttempts,
	}, logger)

	active, err := state.Load(ctx)
	if err != nil {
		logger.Warn("Could not restore transactions", zap.Error(err))
	}
	if resume {
		tr.Resume(active)
	}

	return &app{
		chains:     chains,
		registry:   registry,
		lifi:       lifi,
		aggregator: aggregator.New(registry, logger),
		state:      state,
		tracker:    tr,
		pipeline:   execution.New(registry, state, tr, logger),
	}, nil
}

// Close stops tracking and releases the store
func (a *app) Close() {
	a.tracker.Stop()
	if err := a.state.Close(); err != nil {
		logger.Warn("Failed to close store", zap.Error(err))
	}
}
