package cmd

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"xroute/config"
	"xroute/pkg/types"
	"xroute/pkg/units"
)

var (
	tokensChain    string
	tokensProvider string
	balancesChain  string
)

var tokensCmd = &cobra.Command{
	Use:     "tokens [query]",
	Aliases: []string{"list-tokens"},
	Short:   "Search tokens on a chain",
	Long: `Search a provider's token list by symbol, name or address. Without a
query the curated tokens of the chain are listed.

Examples:
  xroute tokens usdc --chain base
  xroute tokens 0xaf88d065e77c8cC2239327C5EDb3A432268e5831 --chain arbitrum
  xroute tokens --chain solana`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTokens,
}

var balancesCmd = &cobra.Command{
	Use:   "balances <address>",
	Short: "List token balances of a wallet",
	Long: `List the token holdings of an address with USD values, largest first.

Examples:
  xroute balances 0x1234...abcd
  xroute balances 0x1234...abcd --chain optimism`,
	Args: cobra.ExactArgs(1),
	RunE: runBalances,
}

var chainsCmd = &cobra.Command{
	Use:   "chains",
	Short: "List supported chains",
	RunE:  runChains,
}

func init() {
	rootCmd.AddCommand(tokensCmd)
	rootCmd.AddCommand(balancesCmd)
	rootCmd.AddCommand(chainsCmd)

	tokensCmd.Flags().StringVar(&tokensChain, "chain", "ethereum", "Chain name or id")
	tokensCmd.Flags().StringVar(&tokensProvider, "provider", "lifi", "Provider whose token list is searched")
	balancesCmd.Flags().StringVar(&balancesChain, "chain", "", "Limit to one chain (name or id)")
}

func runTokens(cmd *cobra.Command, args []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	a, err := newApp(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer a.Close()

	chain, err := a.chains.Lookup(tokensChain)
	if err != nil {
		return err
	}

	var tokens []types.Token
	if len(args) == 0 {
		tokens = a.chains.PopularTokens(chain.ID)
	} else {
		ad, err := a.registry.Lookup(tokensProvider)
		if err != nil {
			return err
		}
		s := newSpinner("Searching tokens...")
		if !jsonOutput {
			s.Start()
		}
		tokens = ad.SearchTokens(cmd.Context(), chain.ID, args[0])
		if !jsonOutput {
			s.Stop()
		}
	}

	if jsonOutput {
		printJSON(map[string]interface{}{"tokens": tokens})
		return nil
	}
	displayTokens(chain, tokens)
	return nil
}

func displayTokens(chain types.Chain, tokens []types.Token) {
	fmt.Println("\n" + strings.Repeat("=", 80))
	color.Green("                                TOKENS")
	fmt.Println(strings.Repeat("=", 80))

	color.Cyan("\n%s", strings.ToUpper(chain.Name))
	if len(tokens) == 0 {
		fmt.Println("  No tokens found.")
	}
	for _, token := range tokens {
		price := ""
		if token.PriceUSD > 0 {
			price = units.FormatUSD(token.PriceUSD)
		}
		fmt.Printf("  %-10s %-28s %-10s %s\n",
			color.YellowString(token.Symbol),
			token.Name,
			price,
			color.HiBlackString(token.Address))
	}

	fmt.Println("\n" + strings.Repeat("=", 80) + "\n")
}

func runBalances(cmd *cobra.Command, args []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	a, err := newApp(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer a.Close()

	var chainID int64
	if balancesChain != "" {
		chain, err := a.chains.Lookup(balancesChain)
		if err != nil {
			return err
		}
		chainID = chain.ID
	}

	s := newSpinner("Fetching balances...")
	if !jsonOutput {
		s.Start()
	}
	balances, err := a.lifi.Balances(cmd.Context(), args[0], chainID)
	if !jsonOutput {
		s.Stop()
	}
	if err != nil {
		return err
	}

	if jsonOutput {
		printJSON(map[string]interface{}{"tokens": balances})
		return nil
	}

	fmt.Println("\n" + strings.Repeat("=", 70))
	color.Green("                           BALANCES")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("\n  Wallet: %s\n\n", color.CyanString(args[0]))

	var total float64
	for _, b := range balances {
		total += b.BalanceUSD
		chainName := fmt.Sprintf("%d", b.ChainID)
		if chain, ok := a.chains.Get(b.ChainID); ok {
			chainName = chain.Name
		}
		fmt.Printf("  %-10s %-14s %16.6f  %s\n",
			color.YellowString(b.Symbol), chainName, b.Balance, units.FormatUSD(b.BalanceUSD))
	}
	fmt.Printf("\n  Total: %s\n", color.GreenString(units.FormatUSD(total)))
	fmt.Println("\n" + strings.Repeat("=", 70) + "\n")
	return nil
}

func runChains(cmd *cobra.Command, args []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	chains := config.Chains().List()
	if jsonOutput {
		printJSON(map[string]interface{}{"chains": chains})
		return nil
	}

	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("                      SUPPORTED CHAINS")
	fmt.Println(strings.Repeat("=", 60) + "\n")
	for _, chain := range chains {
		fmt.Printf("  %-18d %-12s %-8s %s\n", chain.ID, chain.Name, chain.ShortName, color.HiBlackString(string(chain.Type)))
	}
	fmt.Println("\n" + strings.Repeat("=", 60) + "\n")
	return nil
}
