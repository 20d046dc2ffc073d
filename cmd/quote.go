package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"xroute/pkg/parser"
	"xroute/pkg/types"
)

const zeroAddress = "0x0000000000000000000000000000000000000000"

var (
	quoteAddress  string
	quoteSlippage float64
	quoteSort     string
)

var quoteCmd = &cobra.Command{
	Use:   "quote <amount> <token> [on <chain>] to <token> [on <chain>]",
	Short: "Compare routes across providers",
	Long: `Fetch quotes from every configured provider and print them ranked.

Examples:
  xroute quote 1 ETH to USDC
  xroute quote 1.5 ETH on arbitrum to USDC on base --sort speed
  xroute quote 250 USDC on polygon to ETH on optimism --address 0x123...`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuote,
}

func init() {
	rootCmd.AddCommand(quoteCmd)

	quoteCmd.Flags().StringVar(&quoteAddress, "address", "", "Wallet address the quote is for")
	quoteCmd.Flags().Float64Var(&quoteSlippage, "slippage", 0.005, "Max slippage as a fraction (0.005 = 0.5%)")
	quoteCmd.Flags().StringVar(&quoteSort, "sort", "output", "Ranking objective: output, speed or fee")
}

// resolveArgs parses a swap phrase into a quote request
func resolveArgs(a *app, args []string, address string, slippage float64, sort string) (*parser.Resolved, error) {
	intent, err := parser.ParseSwapCommand(strings.Join(args, " "))
	if err != nil {
		return nil, err
	}
	if address == "" {
		address = zeroAddress
	}
	resolved, err := intent.Resolve(a.chains, address, slippage)
	if err != nil {
		return nil, err
	}
	resolved.Request.SortBy = types.ParseObjective(sort)
	return resolved, nil
}

func runQuote(cmd *cobra.Command, args []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	a, err := newApp(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer a.Close()

	resolved, err := resolveArgs(a, args, quoteAddress, quoteSlippage, quoteSort)
	if err != nil {
		return err
	}

	s := newSpinner("Fetching routes...")
	if !jsonOutput {
		s.Start()
	}
	routes, err := a.aggregator.FindBestRoutes(cmd.Context(), resolved.Request)
	if !jsonOutput {
		s.Stop()
	}
	if err != nil {
		return err
	}

	if jsonOutput {
		printJSON(map[string]interface{}{"routes": routes})
		return nil
	}
	displayRoutes(resolved, routes)
	return nil
}
