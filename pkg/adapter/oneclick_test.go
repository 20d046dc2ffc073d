package adapter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xroute/config"
	"xroute/pkg/types"
)

var oneClickTokens = []oneClickToken{
	{AssetID: "nep141:eth.omft.near", Decimals: 18, Blockchain: "eth", Symbol: "ETH", Price: 3000},
	{AssetID: "nep141:eth-0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48.omft.near", Decimals: 6, Blockchain: "eth", Symbol: "USDC", Price: 1, ContractAddress: strings.ToLower(usdcEth)},
	{AssetID: "nep141:arb-0xaf88d065e77c8cc2239327c5edb3a432268e5831.omft.near", Decimals: 6, Blockchain: "arb", Symbol: "USDC", Price: 1, ContractAddress: strings.ToLower(usdcArb)},
	{AssetID: "nep141:sol.omft.near", Decimals: 9, Blockchain: "sol", Symbol: "SOL", Price: 150},
}

func newTestOneClick(t *testing.T, opts Options) *OneClick {
	t.Helper()
	o := NewOneClick(opts, config.Chains())
	fixed := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	o.now = func() time.Time { return fixed }
	o.tokens = oneClickTokens
	o.fetchedAt = fixed
	return o
}

func TestResolveAsset(t *testing.T) {
	asset, ok := resolveAsset(oneClickTokens, "eth", usdcEth)
	require.True(t, ok)
	assert.Equal(t, "USDC", asset.Symbol)

	asset, ok = resolveAsset(oneClickTokens, "eth", types.NativeTokenAddress)
	require.True(t, ok)
	assert.Equal(t, "nep141:eth.omft.near", asset.AssetID)

	asset, ok = resolveAsset(oneClickTokens, "sol", types.SolanaNativeMint)
	require.True(t, ok)
	assert.Equal(t, "SOL", asset.Symbol)

	_, ok = resolveAsset(oneClickTokens, "arb", usdcEth)
	assert.False(t, ok)
}

func TestOneClickStatusMapping(t *testing.T) {
	tests := map[string]types.TransactionStatus{
		"SUCCESS":            types.StatusCompleted,
		"REFUNDED":           types.StatusRefunded,
		"FAILED":             types.StatusFailed,
		"PROCESSING":         types.StatusBridging,
		"KNOWN_DEPOSIT_TX":   types.StatusSrcConfirmed,
		"PENDING_DEPOSIT":    types.StatusPending,
		"INCOMPLETE_DEPOSIT": types.StatusPending,
		"":                   types.StatusPending,
	}
	for status, want := range tests {
		assert.Equal(t, want, oneClickStatus(status), status)
	}
}

func TestOneClickStatusResponse(t *testing.T) {
	var resp oneClickStatusResponse
	resp.Status = "SUCCESS"
	resp.SwapDetails.OriginChainTxHashes = []oneClickTxHash{{Hash: "0xorigin"}}
	resp.SwapDetails.DestinationChainTxHashes = []oneClickTxHash{
		{Hash: "0xfirst"},
		{Hash: "0xlast", ExplorerURL: "https://arbiscan.io/tx/0xlast"},
	}

	out := resp.response("")
	assert.Equal(t, types.StatusCompleted, out.Status)
	assert.Equal(t, "0xorigin", out.SrcTxHash)
	assert.Equal(t, "0xlast", out.DstTxHash)
	assert.Equal(t, "https://arbiscan.io/tx/0xlast", out.ExplorerURL)
	assert.Equal(t, "SUCCESS", out.Substatus)

	out = resp.response("0xmine")
	assert.Equal(t, "0xmine", out.SrcTxHash)
}

func TestDepositTransaction(t *testing.T) {
	deposit := "0x2222222222222222222222222222222222222222"
	eth, _ := config.Chains().Get(1)

	tx, err := depositTransaction(types.Token{Address: types.NativeTokenAddress}, eth, deposit, "1000")
	require.NoError(t, err)
	assert.Equal(t, deposit, tx.To)
	assert.Equal(t, "1000", tx.Value)
	assert.True(t, tx.DirectTransfer)

	tx, err = depositTransaction(types.Token{Address: usdcEth}, eth, deposit, "1000000")
	require.NoError(t, err)
	assert.Equal(t, usdcEth, tx.To)
	assert.Equal(t, "0", tx.Value)
	assert.True(t, tx.DirectTransfer)
	assert.True(t, strings.HasPrefix(tx.Data, "0xa9059cbb"))
	assert.Len(t, tx.Data, 2+8+64+64)
	assert.True(t, strings.HasSuffix(tx.Data, "f4240"))

	_, err = depositTransaction(types.Token{Address: usdcEth}, eth, "not-an-address", "1")
	assert.Error(t, err)
}

func TestDepositTransactionSolana(t *testing.T) {
	sol, _ := config.Chains().Get(1151111081099710)
	deposit := "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"
	usdcMint := "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"

	tx, err := depositTransaction(types.Token{Address: types.SolanaNativeMint}, sol, deposit, "5000000")
	require.NoError(t, err)
	assert.Equal(t, deposit, tx.To)
	assert.Equal(t, "5000000", tx.Value)
	assert.Empty(t, tx.Mint)
	assert.Empty(t, tx.Data)
	assert.Equal(t, sol.ID, tx.ChainID)
	assert.True(t, tx.DirectTransfer)

	tx, err = depositTransaction(types.Token{Address: usdcMint}, sol, deposit, "1000000")
	require.NoError(t, err)
	assert.Equal(t, deposit, tx.To)
	assert.Equal(t, usdcMint, tx.Mint)
	assert.Equal(t, "1000000", tx.Value)
}

func TestRecipientFor(t *testing.T) {
	chains := config.Chains()
	eth, _ := chains.Get(1)
	arb, _ := chains.Get(42161)
	sol, _ := chains.Get(1151111081099710)

	recipient, ok := recipientFor(eth, arb, userAddr)
	assert.True(t, ok)
	assert.Equal(t, userAddr, recipient)

	_, ok = recipientFor(eth, sol, userAddr)
	assert.False(t, ok)
}

func TestOneClickMapQuote(t *testing.T) {
	o := newTestOneClick(t, Options{Fee: config.FeeConfig{Collector: collector, Percent: 0.05}})

	q := oneClickQuote{
		AmountIn:     "1000000000",
		AmountInUSD:  1000,
		AmountOut:    "996000000",
		AmountOutUSD: 996,
		TimeEstimate: 45,
	}
	src := types.Token{Address: strings.ToLower(usdcEth), ChainID: 1, Symbol: "USDC", Decimals: 6}
	dst := types.Token{Address: strings.ToLower(usdcArb), ChainID: 42161, Symbol: "USDC", Decimals: 6}

	route := o.mapQuote(q, quoteRequest(), src, dst)
	require.NoError(t, route.Validate())
	assert.Equal(t, types.ProviderOneClick, route.Provider)
	assert.Equal(t, usdcEth, route.SrcToken.Address)
	assert.InDelta(t, 4.0, route.TotalFeeUSD, 1e-9)
	assert.InDelta(t, 996.0, route.DstAmountUSD, 1e-9)
	assert.Equal(t, 45, route.EstimatedTime)
	assert.InDelta(t, 0.498, route.IntegratorFeeUSD, 1e-9)
	require.Len(t, route.Steps, 1)
	assert.Equal(t, types.StepCross, route.Steps[0].Kind)
	assert.Equal(t, oneClickProtocol, route.Steps[0].Protocol)
}

func TestOneClickSearchTokensUsesCache(t *testing.T) {
	o := newTestOneClick(t, Options{BaseURL: "http://127.0.0.1:1"})

	tokens := o.SearchTokens(context.Background(), 1, "eth")
	require.Len(t, tokens, 1)
	assert.Equal(t, types.NativeTokenAddress, tokens[0].Address)
	assert.Equal(t, 18, tokens[0].Decimals)

	tokens = o.SearchTokens(context.Background(), 1151111081099710, "sol")
	require.Len(t, tokens, 1)
	assert.Equal(t, types.SolanaNativeMint, tokens[0].Address)

	assert.Empty(t, o.SearchTokens(context.Background(), 999, "usdc"))
}

func TestOneClickGetQuoteUnsupportedPair(t *testing.T) {
	o := newTestOneClick(t, Options{BaseURL: "http://127.0.0.1:1"})

	req := quoteRequest()
	req.DstChainID = 1151111081099710
	req.DstToken = types.SolanaNativeMint
	assert.Empty(t, o.GetQuote(context.Background(), req))

	req = quoteRequest()
	req.SrcChainID = 999
	assert.Empty(t, o.GetQuote(context.Background(), req))
}

func TestOneClickStatusWithoutDeposit(t *testing.T) {
	o := newTestOneClick(t, Options{BaseURL: "http://127.0.0.1:1"})

	status := o.GetStatus(context.Background(), "0xsrc", types.Route{})
	assert.Equal(t, types.StatusPending, status.Status)
	assert.Equal(t, "0xsrc", status.SrcTxHash)
}

func TestOneClickBuildQuoteRequest(t *testing.T) {
	deadline := time.Date(2025, 1, 1, 1, 0, 0, 0, time.UTC)
	params := quoteParams{
		dry:         true,
		origin:      "nep141:eth.omft.near",
		destination: "nep141:sol.omft.near",
		amount:      "1000",
		slippageBps: 50,
		recipient:   userAddr,
		refundTo:    userAddr,
		deadline:    deadline,
	}

	req := newTestOneClick(t, Options{}).buildQuoteRequest(params)
	assert.True(t, req.Dry)
	assert.Equal(t, "EXACT_INPUT", req.SwapType)
	assert.Equal(t, float32(50), req.SlippageTolerance)
	assert.Equal(t, "nep141:eth.omft.near", req.OriginAsset)
	assert.Equal(t, "nep141:sol.omft.near", req.DestinationAsset)
	assert.Equal(t, "1000", req.Amount)
	assert.Equal(t, userAddr, req.Recipient)
	assert.Equal(t, "DESTINATION_CHAIN", req.RecipientType)
	assert.True(t, deadline.Equal(req.Deadline))
	assert.Empty(t, req.AppFees)

	withFee := newTestOneClick(t, Options{Fee: config.FeeConfig{Collector: collector, Percent: 0.05}})
	req = withFee.buildQuoteRequest(params)
	require.Len(t, req.AppFees, 1)
	assert.Equal(t, collector, req.AppFees[0].Recipient)
	assert.Equal(t, float32(5), req.AppFees[0].Fee)
}

func TestRecordDepositCopiesPayload(t *testing.T) {
	shared := &types.OneClickData{OriginAsset: "nep141:eth.omft.near", SlippageBps: 50}
	listed := types.Route{ID: "r1", Data: types.RouteData{Provider: types.ProviderOneClick, OneClick: shared}}

	selected := listed
	recordDeposit(&selected, "0xdeposit")

	assert.Equal(t, "0xdeposit", selected.Data.OneClick.DepositAddress)
	assert.Equal(t, "nep141:eth.omft.near", selected.Data.OneClick.OriginAsset)
	assert.Equal(t, 50, selected.Data.OneClick.SlippageBps)
	assert.Empty(t, listed.Data.OneClick.DepositAddress)
	assert.Empty(t, shared.DepositAddress)
}

func TestOneClickRetriesFailedDepositSubmission(t *testing.T) {
	var submits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v0/deposit/submit" {
			submits.Add(1)
		}
		http.Error(w, `{"message":"unavailable"}`, http.StatusServiceUnavailable)
	}))
	defer server.Close()

	o := newTestOneClick(t, Options{BaseURL: server.URL, StatusTimeout: time.Second})
	route := types.Route{Data: types.RouteData{
		Provider: types.ProviderOneClick,
		OneClick: &types.OneClickData{DepositAddress: "0xdeposit"},
	}}

	for i := 0; i < 2; i++ {
		status := o.GetStatus(context.Background(), "0xsrc", route)
		assert.Equal(t, types.StatusPending, status.Status)
	}
	assert.Equal(t, int32(2), submits.Load())

	_, marked := o.submitted.Load("0xdeposit")
	assert.False(t, marked)
}
