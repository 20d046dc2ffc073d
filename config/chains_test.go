package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xroute/pkg/types"
)

func TestEmbeddedChains(t *testing.T) {
	table := Chains()

	eth, ok := table.Get(1)
	require.True(t, ok)
	assert.Equal(t, "Ethereum", eth.Name)
	assert.True(t, eth.IsEVM())

	sol, err := table.Lookup("sol")
	require.NoError(t, err)
	assert.Equal(t, int64(1151111081099710), sol.ID)
	assert.Equal(t, types.ChainTypeNonEVM, sol.Type)

	arb, err := table.Lookup("42161")
	require.NoError(t, err)
	assert.Equal(t, "Arbitrum", arb.Name)

	_, err = table.Lookup("fantom")
	assert.Error(t, err)

	usdc, err := table.FindToken(42161, "usdc")
	require.NoError(t, err)
	assert.Equal(t, "0xaf88d065e77c8cC2239327C5EDb3A432268e5831", usdc.Address)
	assert.Equal(t, int64(42161), usdc.ChainID)
	assert.Equal(t, 6, usdc.Decimals)

	assert.Len(t, table.IDs(), 8)
	assert.Equal(t, int64(8453), table.ByCode()["base"].ID)
}

func TestParseChainsRejectsDuplicates(t *testing.T) {
	_, err := ParseChains([]byte("chains:\n  - id: 1\n    name: A\n  - id: 1\n    name: B\n"))
	assert.Error(t, err)
}
