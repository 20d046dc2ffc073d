package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"

	"xroute/pkg/parser"
	"xroute/pkg/types"
	"xroute/pkg/units"
)

func newSpinner(suffix string) *spinner.Spinner {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " " + suffix
	return s
}

func printJSON(v interface{}) {
	data, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(data))
}

func confirm(prompt string) bool {
	reader := bufio.NewReader(os.Stdin)
	fmt.Printf("\n%s (y/N): ", prompt)

	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}

	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}

func tagLabel(tag types.RouteTag) string {
	switch tag {
	case types.TagBestReturn:
		return color.GreenString("[best return]")
	case types.TagFastest:
		return color.CyanString("[fastest]")
	case types.TagCheapest:
		return color.YellowString("[cheapest]")
	case types.TagRecommended:
		return color.MagentaString("[recommended]")
	default:
		return "[" + string(tag) + "]"
	}
}

func routeProtocols(route types.Route) string {
	names := make([]string, 0, len(route.Steps))
	for _, step := range route.Steps {
		names = append(names, step.Protocol)
	}
	return strings.Join(names, " > ")
}

func displayRoutes(resolved *parser.Resolved, routes []types.Route) {
	fmt.Println("\n" + strings.Repeat("=", 70))
	color.Green("                           ROUTES")
	fmt.Println(strings.Repeat("=", 70))

	fmt.Printf("\n  From: %s %s on %s\n",
		units.FormatAmount(resolved.Request.Amount, resolved.SrcToken.Decimals),
		color.YellowString(resolved.SrcToken.Symbol), resolved.SrcChain.Name)
	fmt.Printf("  To:   %s on %s\n", color.YellowString(resolved.DstToken.Symbol), resolved.DstChain.Name)

	if len(routes) == 0 {
		color.Red("\n  No routes found for this pair.")
		fmt.Println("\n" + strings.Repeat("=", 70) + "\n")
		return
	}

	for i, route := range routes {
		tags := make([]string, 0, len(route.Tags))
		for _, tag := range route.Tags {
			tags = append(tags, tagLabel(tag))
		}

		fmt.Printf("\n  %d. %s via %s %s\n", i+1, strings.ToUpper(string(route.Provider)), routeProtocols(route), strings.Join(tags, " "))
		fmt.Printf("     Receive:  ~%s %s (%s)\n",
			units.FormatAmount(route.DstAmount, route.DstToken.Decimals),
			route.DstToken.Symbol, units.FormatUSD(route.DstAmountUSD))
		fmt.Printf("     Fees:     %s + %s gas\n", units.FormatUSD(route.TotalFeeUSD), units.FormatUSD(route.GasCostUSD))
		fmt.Printf("     Time:     %s\n", units.FormatDuration(route.EstimatedTime))
		if route.IntegratorFeeUSD > 0 {
			fmt.Printf("     Platform: %s (%.2f%%)\n", units.FormatUSD(route.IntegratorFeeUSD), route.IntegratorFeePercent)
		}
	}

	fmt.Println("\n" + strings.Repeat("=", 70) + "\n")
}

func statusColor(status types.TransactionStatus) string {
	switch status {
	case types.StatusCompleted:
		return color.GreenString(string(status))
	case types.StatusFailed:
		return color.RedString(string(status))
	case types.StatusRefunded:
		return color.MagentaString(string(status))
	case types.StatusBridging, types.StatusSrcConfirmed, types.StatusDstConfirmed:
		return color.CyanString(string(status))
	default:
		return color.YellowString(string(status))
	}
}

func displayStatus(txHash string, resp types.StatusResponse) {
	fmt.Println("\n" + strings.Repeat("=", 70))
	color.Green("                        TRANSFER STATUS")
	fmt.Println(strings.Repeat("=", 70))

	fmt.Printf("\n  Source Tx:       %s\n", color.CyanString(txHash))
	fmt.Printf("  Status:          %s\n", statusColor(resp.Status))
	if resp.Substatus != "" {
		fmt.Printf("  Detail:          %s\n", resp.Substatus)
	}
	if resp.DstTxHash != "" {
		fmt.Printf("  Destination Tx:  %s\n", color.HiBlackString(resp.DstTxHash))
	}
	if resp.ExplorerURL != "" {
		fmt.Printf("  Explorer:        %s\n", resp.ExplorerURL)
	}

	fmt.Println("\n" + strings.Repeat("=", 70) + "\n")
}
