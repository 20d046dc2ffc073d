package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"xroute/pkg/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and live feed",
	Long: `Serve quotes, transfer status, tokens, balances and tracked transactions
over HTTP, plus a websocket feed at /ws.

Examples:
  xroute serve
  xroute serve --addr :9090 --log-level info`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "Listen address (default server.addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()

	addr, _ := cmd.Flags().GetString("addr")
	if addr == "" {
		addr = cfg.Server.Addr
	}

	srv := server.New(ctx, server.Deps{
		Finder:   a.aggregator,
		Adapters: a.registry,
		Tokens:   a.lifi,
		Balances: a.lifi,
		Chains:   a.chains,
		State:    a.state,
		Debounce: cfg.Debounce,
	}, logger)

	logger.Info("Starting xroute",
		zap.String("addr", addr),
		zap.Any("providers", a.registry.Providers()),
		zap.String("store", cfg.Store.Driver),
		zap.Bool("integrator_fee", cfg.Fee.Enabled()))

	return srv.ListenAndServe(ctx, addr)
}
