package aggregator

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xroute/pkg/adapter"
	"xroute/pkg/types"
)

const (
	ethNative = types.NativeTokenAddress
	usdcArb   = "0xaf88d065e77c8cC2239327C5EDb3A432268e5831"
	user      = "0x52908400098527886E0F7030069857D2E4169EE7"
)

type fakeAdapter struct {
	provider types.Provider
	routes   []types.Route
	panics   bool
	calls    int32

	mu      sync.Mutex
	lastReq types.QuoteRequest
}

func (f *fakeAdapter) Provider() types.Provider { return f.provider }

func (f *fakeAdapter) GetQuote(ctx context.Context, req types.QuoteRequest) []types.Route {
	atomic.AddInt32(&f.calls, 1)
	f.mu.Lock()
	f.lastReq = req
	f.mu.Unlock()
	if f.panics {
		panic("provider exploded")
	}
	return f.routes
}

func (f *fakeAdapter) BuildTransaction(context.Context, *types.Route) (*types.TransactionData, error) {
	return nil, nil
}

func (f *fakeAdapter) GetStatus(context.Context, string, types.Route) types.StatusResponse {
	return types.StatusResponse{Status: types.StatusPending}
}

func (f *fakeAdapter) SearchTokens(context.Context, int64, string) []types.Token { return nil }

func scenarioRequest() types.QuoteRequest {
	return types.QuoteRequest{
		SrcChainID:  1,
		DstChainID:  42161,
		SrcToken:    ethNative,
		DstToken:    usdcArb,
		Amount:      "1000000000000000000",
		UserAddress: user,
		Slippage:    0.03,
	}
}

func makeRoute(id string, provider types.Provider, usd float64, seconds int, fee float64) types.Route {
	src := types.Token{Address: ethNative, ChainID: 1, Symbol: "ETH", Decimals: 18}
	dst := types.Token{Address: usdcArb, ChainID: 42161, Symbol: "USDC", Decimals: 6}
	return types.Route{
		ID:       id,
		Provider: provider,
		Steps: []types.RouteStep{{
			Kind:          types.StepCross,
			Protocol:      "bridge",
			SrcChainID:    1,
			DstChainID:    42161,
			SrcToken:      src,
			DstToken:      dst,
			SrcAmount:     "1000000000000000000",
			DstAmount:     "3000000000",
			EstimatedTime: seconds,
		}},
		SrcToken:      src,
		DstToken:      dst,
		SrcAmount:     "1000000000000000000",
		DstAmount:     "3000000000",
		DstAmountUSD:  usd,
		TotalFeeUSD:   fee,
		EstimatedTime: seconds,
		Slippage:      0.03,
		Tags:          []types.RouteTag{types.TagRecommended},
	}
}

func newAggregator(t *testing.T, adapters ...adapter.Adapter) *Aggregator {
	t.Helper()
	registry := adapter.NewRegistry(nil)
	for _, a := range adapters {
		require.NoError(t, registry.Register(a))
	}
	return New(registry, nil)
}

func TestFindBestRoutesScenarioA(t *testing.T) {
	lifi := &fakeAdapter{provider: types.ProviderLiFi, routes: []types.Route{
		makeRoute("lifi-1", types.ProviderLiFi, 3000, 60, 2),
	}}
	socket := &fakeAdapter{provider: types.ProviderSocket, routes: []types.Route{
		makeRoute("socket-1", types.ProviderSocket, 2995, 600, 0.5),
	}}

	routes, err := newAggregator(t, lifi, socket).FindBestRoutes(context.Background(), scenarioRequest())
	require.NoError(t, err)
	require.Len(t, routes, 2)

	assert.Equal(t, "lifi-1", routes[0].ID)
	assert.Equal(t, []types.RouteTag{types.TagBestReturn}, routes[0].Tags)

	assert.Equal(t, "socket-1", routes[1].ID)
	assert.True(t, routes[1].HasTag(types.TagFastest))
	assert.True(t, routes[1].HasTag(types.TagCheapest))
	assert.False(t, routes[1].HasTag(types.TagRecommended))
}

func TestFindBestRoutesSendsNormalizedAmount(t *testing.T) {
	lifi := &fakeAdapter{provider: types.ProviderLiFi}

	req := scenarioRequest()
	req.Amount = " 01000000000000000000 "
	_, err := newAggregator(t, lifi).FindBestRoutes(context.Background(), req)
	require.NoError(t, err)

	lifi.mu.Lock()
	defer lifi.mu.Unlock()
	assert.Equal(t, "1000000000000000000", lifi.lastReq.Amount)
}

func TestFindBestRoutesTieBreakUsesProviderOrder(t *testing.T) {
	socket := &fakeAdapter{provider: types.ProviderSocket, routes: []types.Route{
		makeRoute("socket-1", types.ProviderSocket, 3000, 60, 2),
	}}
	lifi := &fakeAdapter{provider: types.ProviderLiFi, routes: []types.Route{
		makeRoute("lifi-1", types.ProviderLiFi, 3000, 60, 2),
	}}

	routes, err := newAggregator(t, socket, lifi).FindBestRoutes(context.Background(), scenarioRequest())
	require.NoError(t, err)
	require.Len(t, routes, 2)

	assert.Equal(t, "socket-1", routes[0].ID)
	assert.True(t, routes[0].HasTag(types.TagBestReturn))
	assert.False(t, routes[1].HasTag(types.TagBestReturn))
}

func TestFindBestRoutesPartialFailure(t *testing.T) {
	good := &fakeAdapter{provider: types.ProviderLiFi, routes: []types.Route{
		makeRoute("a", types.ProviderLiFi, 3000, 60, 2),
		makeRoute("b", types.ProviderLiFi, 2990, 120, 1),
		makeRoute("c", types.ProviderLiFi, 2980, 30, 3),
	}}
	broken := &fakeAdapter{provider: types.ProviderSocket, panics: true}
	silent := &fakeAdapter{provider: types.ProviderOneClick}

	routes, err := newAggregator(t, good, broken, silent).FindBestRoutes(context.Background(), scenarioRequest())
	require.NoError(t, err)
	require.Len(t, routes, 3)

	ids := map[string]bool{}
	for _, r := range routes {
		ids[r.ID] = true
		assert.Equal(t, types.ProviderLiFi, r.Provider)
	}
	assert.Equal(t, map[string]bool{"a": true, "b": true, "c": true}, ids)
	assert.Equal(t, int32(1), atomic.LoadInt32(&broken.calls))
}

func TestFindBestRoutesDropsZeroOutput(t *testing.T) {
	zero := makeRoute("zero", types.ProviderLiFi, 0, 10, 0)
	zero.DstAmount = "0"
	lifi := &fakeAdapter{provider: types.ProviderLiFi, routes: []types.Route{
		zero,
		makeRoute("ok", types.ProviderLiFi, 3000, 60, 2),
	}}

	routes, err := newAggregator(t, lifi).FindBestRoutes(context.Background(), scenarioRequest())
	require.NoError(t, err)
	require.Len(t, routes, 1)
	assert.Equal(t, "ok", routes[0].ID)
}

func TestFindBestRoutesNoRoutes(t *testing.T) {
	routes, err := newAggregator(t, &fakeAdapter{provider: types.ProviderLiFi}).
		FindBestRoutes(context.Background(), scenarioRequest())
	require.NoError(t, err)
	assert.NotNil(t, routes)
	assert.Empty(t, routes)
}

func TestFindBestRoutesScenarioD(t *testing.T) {
	lifi := &fakeAdapter{provider: types.ProviderLiFi}
	agg := newAggregator(t, lifi)

	for _, amount := range []string{"", "0", "000"} {
		req := scenarioRequest()
		req.Amount = amount

		routes, err := agg.FindBestRoutes(context.Background(), req)
		require.NoError(t, err)
		assert.Empty(t, routes)
	}
	assert.Zero(t, atomic.LoadInt32(&lifi.calls))
}

func TestFindBestRoutesInvalidRequest(t *testing.T) {
	lifi := &fakeAdapter{provider: types.ProviderLiFi}

	req := scenarioRequest()
	req.Slippage = 0.9

	_, err := newAggregator(t, lifi).FindBestRoutes(context.Background(), req)
	assert.ErrorIs(t, err, types.ErrInvalidRequest)
	assert.Zero(t, atomic.LoadInt32(&lifi.calls))
}
