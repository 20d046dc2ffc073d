package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"xroute/pkg/types"
)

var (
	statusAdapter   string
	statusRouteData string
	watchStatus     bool
	watchInterval   int
)

var statusCmd = &cobra.Command{
	Use:   "status <tx-hash>",
	Short: "Check the status of a cross-chain transfer",
	Long: `Check the bridge status of a submitted transaction through the provider
that routed it.

Examples:
  xroute status 0x1234...abcd --adapter lifi
  xroute status 0x1234...abcd --adapter socket --watch
  xroute status 0x1234...abcd --adapter lifi --route-data '{"provider":"lifi","lifi":{"tool":"stargate","fromChainId":1,"toChainId":10}}'`,
	Args: cobra.ExactArgs(1),
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringVar(&statusAdapter, "adapter", "lifi", "Provider that routed the transaction (lifi, socket, oneclick)")
	statusCmd.Flags().StringVar(&statusRouteData, "route-data", "", "Route or route payload JSON returned with the quote")
	statusCmd.Flags().BoolVarP(&watchStatus, "watch", "w", false, "Watch status updates until a final status")
	statusCmd.Flags().IntVar(&watchInterval, "interval", 15, "Polling interval in seconds (when watching)")
}

func runStatus(cmd *cobra.Command, args []string) error {
	txHash := args[0]
	jsonOutput, _ := cmd.Flags().GetBool("json")

	a, err := newApp(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer a.Close()

	ad, err := a.registry.Lookup(statusAdapter)
	if err != nil {
		return err
	}

	var route types.Route
	if statusRouteData != "" {
		if err := json.Unmarshal([]byte(statusRouteData), &route); err != nil || route.Data.Provider == "" {
			var data types.RouteData
			if err := json.Unmarshal([]byte(statusRouteData), &data); err != nil {
				return fmt.Errorf("invalid route data: %w", err)
			}
			route.Data = data
		}
	}

	if !watchStatus {
		s := newSpinner("Checking transfer status...")
		if !jsonOutput {
			s.Start()
		}
		resp := ad.GetStatus(cmd.Context(), txHash, route)
		if !jsonOutput {
			s.Stop()
		}

		if jsonOutput {
			printJSON(resp)
		} else {
			displayStatus(txHash, resp)
		}
		return nil
	}

	if jsonOutput {
		return fmt.Errorf("watch mode not supported with JSON output")
	}

	fmt.Printf("\nWatching transfer %s\n", color.CyanString(txHash))
	fmt.Printf("Checking every %d seconds. Press Ctrl+C to stop.\n", watchInterval)

	ticker := time.NewTicker(time.Duration(watchInterval) * time.Second)
	defer ticker.Stop()

	for {
		resp := ad.GetStatus(cmd.Context(), txHash, route)
		displayStatus(txHash, resp)
		if resp.Status.IsTerminal() {
			return nil
		}

		select {
		case <-cmd.Context().Done():
			return nil
		case <-ticker.C:
		}
	}
}
