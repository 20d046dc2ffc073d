package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xroute/config"
)

func TestParseSwapCommand(t *testing.T) {
	tests := []struct {
		input string
		want  SwapIntent
	}{
		{"swap 1 ETH to USDC", SwapIntent{Amount: "1", SrcSymbol: "ETH", DstSymbol: "USDC"}},
		{"1.5 eth on arbitrum to usdc on base", SwapIntent{Amount: "1.5", SrcSymbol: "ETH", SrcChain: "ARBITRUM", DstSymbol: "USDC", DstChain: "BASE"}},
		{"100  USDC from bnb chain to SOL on solana", SwapIntent{Amount: "100", SrcSymbol: "USDC", SrcChain: "BNB CHAIN", DstSymbol: "SOL", DstChain: "SOLANA"}},
		{"0.25 USDC to ETH on 42161", SwapIntent{Amount: "0.25", SrcSymbol: "USDC", DstSymbol: "ETH", DstChain: "42161"}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseSwapCommand(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, *got)
		})
	}

	for _, bad := range []string{"", "ETH to USDC", "swap 1 ETH", "1 ETH into USDC", "-1 ETH to USDC"} {
		_, err := ParseSwapCommand(bad)
		assert.Error(t, err, bad)
	}
}

func TestResolve(t *testing.T) {
	chains := config.Chains()

	intent, err := ParseSwapCommand("1.5 USDC on arbitrum to ETH on base")
	require.NoError(t, err)
	resolved, err := intent.Resolve(chains, "0x52908400098527886E0F7030069857D2E4169EE7", 0.005)
	require.NoError(t, err)

	assert.Equal(t, int64(42161), resolved.Request.SrcChainID)
	assert.Equal(t, int64(8453), resolved.Request.DstChainID)
	assert.Equal(t, "0xaf88d065e77c8cC2239327C5EDb3A432268e5831", resolved.Request.SrcToken)
	assert.Equal(t, "0x0000000000000000000000000000000000000000", resolved.Request.DstToken)
	assert.Equal(t, "1500000", resolved.Request.Amount)
	assert.Equal(t, 0.005, resolved.Request.Slippage)
	require.NoError(t, resolved.Request.Validate())

	intent, _ = ParseSwapCommand("1 ETH to USDC")
	resolved, err = intent.Resolve(chains, "", 0.01)
	require.NoError(t, err)
	assert.Equal(t, int64(1), resolved.Request.SrcChainID)
	assert.Equal(t, int64(1), resolved.Request.DstChainID)
	assert.Equal(t, "1000000000000000000", resolved.Request.Amount)
}

func TestResolveErrors(t *testing.T) {
	chains := config.Chains()

	for _, command := range []string{
		"1 ETH on fantom to USDC",
		"1 DOGE to USDC",
		"1 ETH to ETH",
		"0.0000001 USDC to ETH",
	} {
		intent, err := ParseSwapCommand(command)
		require.NoError(t, err, command)
		_, err = intent.Resolve(chains, "", 0.01)
		assert.Error(t, err, command)
	}
}
