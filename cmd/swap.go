package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"xroute/pkg/execution"
	"xroute/pkg/store"
	"xroute/pkg/types"
	"xroute/pkg/wallet"
)

var (
	swapSlippage float64
	swapSort     string
	swapRoute    int
	noConfirm    bool
	noFollow     bool
)

var swapCmd = &cobra.Command{
	Use:   "swap <amount> <token> [on <chain>] to <token> [on <chain>]",
	Short: "Execute the best route with the configured wallet",
	Long: `Quote, pick a route and execute it with the configured key.
The transfer is tracked until the provider reports a final status.

IMPORTANT:
  - Set wallet.private_key (or XROUTE_WALLET_PRIVATE_KEY) for EVM chains
  - Set wallet.solana_private_key for swaps starting on Solana
  - Configure an RPC endpoint per chain with wallet.rpc if the defaults are rate limited

Examples:
  xroute swap 1 ETH on arbitrum to USDC on base
  xroute swap 100 USDC on polygon to ETH on optimism --route 2
  xroute swap 0.1 ETH to USDC --sort fee --yes`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSwap,
}

func init() {
	rootCmd.AddCommand(swapCmd)

	swapCmd.Flags().Float64Var(&swapSlippage, "slippage", 0.005, "Max slippage as a fraction (0.005 = 0.5%)")
	swapCmd.Flags().StringVar(&swapSort, "sort", "output", "Ranking objective: output, speed or fee")
	swapCmd.Flags().IntVar(&swapRoute, "route", 1, "Route number from the ranked list")
	swapCmd.Flags().BoolVarP(&noConfirm, "yes", "y", false, "Skip confirmation prompts")
	swapCmd.Flags().BoolVar(&noFollow, "no-follow", false, "Return after submission instead of following the transfer")
}

// closingSigner is a wallet.Signer holding RPC connections
type closingSigner interface {
	wallet.Signer
	Close()
}

// newSigner picks the key signer for the source chain. EVM signers start on
// chain 0 and switch to the route's source chain.
func newSigner(chain types.Chain, confirmFn wallet.ConfirmFunc) (closingSigner, error) {
	if !chain.IsEVM() {
		if cfg.Wallet.SolanaPrivateKey == "" {
			return nil, fmt.Errorf("wallet.solana_private_key is not configured")
		}
		signer, err := wallet.NewSolanaSigner(cfg.Wallet.SolanaPrivateKey, cfg.RPCURL(chain.ID), chain.ID, confirmFn, logger)
		if err != nil {
			return nil, err
		}
		return signer, nil
	}

	if cfg.Wallet.PrivateKey == "" {
		return nil, fmt.Errorf("wallet.private_key is not configured")
	}
	signer, err := wallet.NewKeySigner(cfg.Wallet.PrivateKey, 0, cfg.RPCURL, confirmFn, logger)
	if err != nil {
		return nil, err
	}
	return signer, nil
}

func runSwap(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	var confirmFn wallet.ConfirmFunc
	if !noConfirm {
		confirmFn = func(action string) bool { return confirm(action + "?") }
	}

	resolved, err := resolveArgs(a, args, "", swapSlippage, swapSort)
	if err != nil {
		return err
	}
	signer, err := newSigner(resolved.SrcChain, confirmFn)
	if err != nil {
		return err
	}
	defer signer.Close()
	resolved.Request.UserAddress = signer.Address()

	s := newSpinner("Fetching routes...")
	s.Start()
	routes, err := a.aggregator.FindBestRoutes(ctx, resolved.Request)
	s.Stop()
	if err != nil {
		return err
	}

	displayRoutes(resolved, routes)
	if len(routes) == 0 {
		return execution.ErrNoRoute
	}
	if swapRoute < 1 || swapRoute > len(routes) {
		return fmt.Errorf("route %d does not exist, pick 1-%d", swapRoute, len(routes))
	}
	a.state.ReplaceRoutes(resolved.Request, routes)
	if err := a.state.SelectRoute(routes[swapRoute-1].ID); err != nil {
		return err
	}
	route, _ := a.state.SelectedRoute()

	if !noConfirm && !confirm(fmt.Sprintf("Execute route %d via %s", swapRoute, route.Provider)) {
		printSuccess("Swap cancelled.")
		return nil
	}

	a.pipeline.OnStep = func(step execution.Step) {
		if step != execution.StepRegistered {
			fmt.Printf("  %s %s\n", color.HiBlackString("->"), step)
		}
	}
	result, err := a.pipeline.Execute(ctx, signer, &route)
	if err != nil {
		return err
	}
	if result.Rejected {
		color.Yellow("\n%s\n", result.Message)
		return nil
	}

	tx := result.Transaction
	color.Green("\nTransaction submitted!")
	fmt.Printf("  Tx Hash:  %s\n", color.CyanString(tx.SrcTxHash))
	if result.ApprovalHash != "" {
		fmt.Printf("  Approval: %s\n", color.HiBlackString(result.ApprovalHash))
	}

	if noFollow {
		fmt.Println("\nYou can monitor the transfer using:")
		color.Cyan("  xroute status %s --adapter %s --watch\n", tx.SrcTxHash, tx.Provider)
		return nil
	}

	final, err := followTransaction(ctx, a.state, tx.ID)
	if err != nil {
		return err
	}
	displayStatus(final.SrcTxHash, types.StatusResponse{
		Status:      final.Status,
		SrcTxHash:   final.SrcTxHash,
		DstTxHash:   final.DstTxHash,
		Substatus:   final.Substatus,
		ExplorerURL: final.ExplorerURL,
	})
	if final.Error != "" {
		return errors.New(final.Error)
	}
	return nil
}

// followTransaction prints status changes until the transaction is terminal
func followTransaction(ctx context.Context, state *store.State, id string) (types.TrackedTransaction, error) {
	events, cancel := state.Subscribe(16)
	defer cancel()

	tx, _ := state.Transaction(id)
	last := tx.Status
	fmt.Printf("\n[%s] %s\n", time.Now().Format("15:04:05"), statusColor(last))

	for !tx.Status.IsTerminal() {
		select {
		case <-ctx.Done():
			return tx, ctx.Err()
		case ev := <-events:
			if ev.Kind != store.EventTransaction || ev.Transaction == nil || ev.Transaction.ID != id {
				continue
			}
			tx = *ev.Transaction
			if tx.Status != last {
				last = tx.Status
				fmt.Printf("[%s] %s\n", time.Now().Format("15:04:05"), statusColor(last))
			}
		}
	}
	return tx, nil
}
