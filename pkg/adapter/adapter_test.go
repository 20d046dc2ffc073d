package adapter

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xroute/pkg/types"
)

type stubAdapter struct {
	provider types.Provider
}

func (s stubAdapter) Provider() types.Provider { return s.provider }

func (s stubAdapter) GetQuote(context.Context, types.QuoteRequest) []types.Route { return nil }

func (s stubAdapter) BuildTransaction(context.Context, *types.Route) (*types.TransactionData, error) {
	return nil, nil
}

func (s stubAdapter) GetStatus(context.Context, string, types.Route) types.StatusResponse {
	return types.StatusResponse{Status: types.StatusPending}
}

func (s stubAdapter) SearchTokens(context.Context, int64, string) []types.Token { return nil }

func TestRegistry(t *testing.T) {
	registry := NewRegistry(nil)
	require.NoError(t, registry.Register(stubAdapter{types.ProviderSocket}))
	require.NoError(t, registry.Register(stubAdapter{types.ProviderLiFi}))

	err := registry.Register(stubAdapter{types.ProviderLiFi})
	assert.Error(t, err)

	assert.Equal(t, []types.Provider{types.ProviderSocket, types.ProviderLiFi}, registry.Providers())
	all := registry.All()
	require.Len(t, all, 2)
	assert.Equal(t, types.ProviderSocket, all[0].Provider())

	a, err := registry.Lookup("LIFI")
	require.NoError(t, err)
	assert.Equal(t, types.ProviderLiFi, a.Provider())

	_, err = registry.Get(types.ProviderOneClick)
	assert.ErrorIs(t, err, ErrUnknownProvider)

	_, err = registry.Lookup("uniswap")
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestFlexNumbers(t *testing.T) {
	var v struct {
		A flexFloat `json:"a"`
		B flexFloat `json:"b"`
		C flexInt   `json:"c"`
		D flexFloat `json:"d"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"1.25","b":2.5,"c":"42161","d":null}`), &v))
	assert.InDelta(t, 1.25, float64(v.A), 1e-12)
	assert.InDelta(t, 2.5, float64(v.B), 1e-12)
	assert.Equal(t, flexInt(42161), v.C)
	assert.Zero(t, float64(v.D))
}

func TestFilterTokens(t *testing.T) {
	tokens := []types.Token{
		{Address: usdcEth, Symbol: "USDC", Name: "USD Coin"},
		{Address: "0xdAC17F958D2ee523a2206206994597C13D831ec7", Symbol: "USDT", Name: "Tether USD"},
		{Address: types.NativeTokenAddress, Symbol: "ETH", Name: "Ether"},
	}

	assert.Len(t, filterTokens(tokens, "usd"), 2)
	assert.Len(t, filterTokens(tokens, "TETHER"), 1)
	assert.Len(t, filterTokens(tokens, usdcEth), 1)
	assert.Empty(t, filterTokens(tokens, "0xA0b8"))
	assert.Empty(t, filterTokens(tokens, ""))
}
