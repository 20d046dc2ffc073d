package parser

import (
	"fmt"
	"regexp"
	"strings"

	"xroute/config"
	"xroute/pkg/types"
	"xroute/pkg/units"
)

// DefaultChain is used when a command names no source chain
const DefaultChain = "ethereum"

// Pattern: <amount> <token> [on <chain>] to <token> [on <chain>]
var swapPattern = regexp.MustCompile(`^(\d+\.?\d*)\s+([A-Z0-9.]+)(?:\s+(?:ON|FROM)\s+([A-Z0-9 ]+?))?\s+TO\s+([A-Z0-9.]+)(?:\s+ON\s+([A-Z0-9 ]+))?$`)

// SwapIntent is a parsed swap command with symbols and chain names as typed
type SwapIntent struct {
	Amount    string
	SrcSymbol string
	DstSymbol string
	SrcChain  string
	DstChain  string
}

// Resolved is a SwapIntent mapped onto known chains and tokens
type Resolved struct {
	SrcChain types.Chain
	DstChain types.Chain
	SrcToken types.Token
	DstToken types.Token
	Request  types.QuoteRequest
}

// ParseSwapCommand parses a natural language swap command
// Examples:
//   - "swap 1 ETH to USDC"
//   - "1.5 ETH on arbitrum to USDC on base"
//   - "100 USDC from polygon to SOL on solana"
func ParseSwapCommand(command string) (*SwapIntent, error) {
	command = strings.Join(strings.Fields(strings.ToUpper(command)), " ")
	command = strings.TrimPrefix(command, "SWAP ")

	matches := swapPattern.FindStringSubmatch(command)
	if matches == nil {
		return nil, fmt.Errorf("invalid swap command format. Expected: 'swap <amount> <token> [on <chain>] to <token> [on <chain>]' (e.g., 'swap 1 ETH on arbitrum to USDC on base')")
	}

	return &SwapIntent{
		Amount:    matches[1],
		SrcSymbol: matches[2],
		SrcChain:  strings.TrimSpace(matches[3]),
		DstSymbol: matches[4],
		DstChain:  strings.TrimSpace(matches[5]),
	}, nil
}

// Resolve looks up chains and tokens in the chain table and builds a quote
// request with the amount in raw units. A missing source chain defaults to
// DefaultChain and a missing destination chain to the source chain.
func (i *SwapIntent) Resolve(chains *config.ChainTable, userAddress string, slippage float64) (*Resolved, error) {
	srcName := i.SrcChain
	if srcName == "" {
		srcName = DefaultChain
	}
	srcChain, err := chains.Lookup(srcName)
	if err != nil {
		return nil, err
	}

	dstChain := srcChain
	if i.DstChain != "" {
		if dstChain, err = chains.Lookup(i.DstChain); err != nil {
			return nil, err
		}
	}

	srcToken, err := chains.FindToken(srcChain.ID, i.SrcSymbol)
	if err != nil {
		return nil, err
	}
	dstToken, err := chains.FindToken(dstChain.ID, i.DstSymbol)
	if err != nil {
		return nil, err
	}
	if srcToken.Same(dstToken) {
		return nil, fmt.Errorf("source and destination are the same token")
	}

	raw := units.ToRaw(i.Amount, srcToken.Decimals)
	if raw == "0" {
		return nil, fmt.Errorf("amount %s is too small for %s", i.Amount, srcToken.Symbol)
	}

	return &Resolved{
		SrcChain: srcChain,
		DstChain: dstChain,
		SrcToken: srcToken,
		DstToken: dstToken,
		Request: types.QuoteRequest{
			SrcChainID:  srcChain.ID,
			DstChainID:  dstChain.ID,
			SrcToken:    srcToken.Address,
			DstToken:    dstToken.Address,
			Amount:      raw,
			UserAddress: userAddress,
			Slippage:    slippage,
		},
	}, nil
}
