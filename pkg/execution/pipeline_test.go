package execution

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xroute/pkg/adapter"
	"xroute/pkg/store"
	"xroute/pkg/types"
	"xroute/pkg/wallet"
)

const (
	user    = "0x52908400098527886E0F7030069857D2E4169EE7"
	usdcEth = "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"
	router  = "0x1231DEB6f5749EF6cE6943a275A1D3E7486F4EaE"
)

type fakeSigner struct {
	chainID       int64
	allowance     *big.Int
	allowanceErr  error
	rejectSwitch  bool
	rejectApprove bool
	rejectSend    bool
	sendErr       error

	calls    []string
	approved *big.Int
	sent     *types.TransactionData
}

func (f *fakeSigner) Address() string { return user }

func (f *fakeSigner) ChainID(context.Context) (int64, error) { return f.chainID, nil }

func (f *fakeSigner) SwitchChain(_ context.Context, chainID int64) error {
	f.calls = append(f.calls, "switch")
	if f.rejectSwitch {
		return wallet.ErrRejected
	}
	f.chainID = chainID
	return nil
}

func (f *fakeSigner) Allowance(context.Context, string, string) (*big.Int, error) {
	f.calls = append(f.calls, "allowance")
	if f.allowanceErr != nil {
		return nil, f.allowanceErr
	}
	return f.allowance, nil
}

func (f *fakeSigner) Approve(_ context.Context, _, _ string, amount *big.Int) (string, error) {
	f.calls = append(f.calls, "approve")
	if f.rejectApprove {
		return "", wallet.ErrRejected
	}
	f.approved = amount
	return "0xapprove", nil
}

func (f *fakeSigner) WaitForReceipt(context.Context, string) error {
	f.calls = append(f.calls, "wait")
	return nil
}

func (f *fakeSigner) SendTransaction(_ context.Context, tx types.TransactionData) (string, error) {
	f.calls = append(f.calls, "send")
	if f.rejectSend {
		return "", wallet.ErrRejected
	}
	if f.sendErr != nil {
		return "", f.sendErr
	}
	f.sent = &tx
	return "0xswap", nil
}

type buildAdapter struct {
	provider types.Provider
	tx       *types.TransactionData
	err      error
}

func (b buildAdapter) Provider() types.Provider { return b.provider }

func (b buildAdapter) GetQuote(context.Context, types.QuoteRequest) []types.Route { return nil }

func (b buildAdapter) BuildTransaction(_ context.Context, route *types.Route) (*types.TransactionData, error) {
	if b.err != nil {
		return nil, b.err
	}
	if route.Data.OneClick != nil {
		data := *route.Data.OneClick
		data.DepositAddress = "0xdeposit"
		route.Data.OneClick = &data
	}
	tx := *b.tx
	return &tx, nil
}

func (b buildAdapter) GetStatus(context.Context, string, types.Route) types.StatusResponse {
	return types.StatusResponse{Status: types.StatusPending}
}

func (b buildAdapter) SearchTokens(context.Context, int64, string) []types.Token { return nil }

type recordingTracker struct {
	tracked []types.TrackedTransaction
}

func (r *recordingTracker) Track(tx types.TrackedTransaction) error {
	r.tracked = append(r.tracked, tx)
	return nil
}

func erc20Route() *types.Route {
	return &types.Route{
		ID:        "lifi-1",
		Provider:  types.ProviderLiFi,
		SrcToken:  types.Token{Address: usdcEth, ChainID: 1, Symbol: "USDC", Decimals: 6},
		DstToken:  types.Token{Address: "0xaf88d065e77c8cC2239327C5EDb3A432268e5831", ChainID: 42161},
		SrcAmount: "1000000",
		DstAmount: "999000",
		Steps:     []types.RouteStep{{Kind: types.StepBridge, SrcChainID: 1, DstChainID: 42161}},
	}
}

func setup(t *testing.T, a adapter.Adapter) (*Pipeline, *store.State, *recordingTracker) {
	t.Helper()
	registry := adapter.NewRegistry(nil)
	require.NoError(t, registry.Register(a))
	state := store.New(nil, nil)
	tracker := &recordingTracker{}
	return New(registry, state, tracker, nil), state, tracker
}

func lifiAdapter() buildAdapter {
	return buildAdapter{
		provider: types.ProviderLiFi,
		tx:       &types.TransactionData{To: router, Data: "0xabcdef", Value: "0", ChainID: 1},
	}
}

func TestExecuteApprovesAndSubmits(t *testing.T) {
	p, state, tracker := setup(t, lifiAdapter())
	var steps []Step
	p.OnStep = func(s Step) { steps = append(steps, s) }

	signer := &fakeSigner{chainID: 137, allowance: big.NewInt(10)}
	result, err := p.Execute(context.Background(), signer, erc20Route())
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.False(t, result.Rejected)
	assert.Equal(t, "0xapprove", result.ApprovalHash)
	assert.Equal(t, []string{"switch", "allowance", "approve", "wait", "send"}, signer.calls)
	assert.Equal(t, []Step{StepSwitchChain, StepBuild, StepApprove, StepSubmit, StepRegistered}, steps)
	assert.Equal(t, 0, signer.approved.Cmp(wallet.MaxAllowance))
	assert.Equal(t, router, signer.sent.To)

	tx := result.Transaction
	assert.NotEmpty(t, tx.ID)
	assert.Equal(t, "0xswap", tx.SrcTxHash)
	assert.Equal(t, types.StatusPending, tx.Status)
	assert.Equal(t, user, tx.UserAddress)
	assert.False(t, tx.StartedAt.IsZero())

	stored, ok := state.Transaction(tx.ID)
	require.True(t, ok)
	assert.Equal(t, "0xswap", stored.SrcTxHash)
	require.Len(t, tracker.tracked, 1)
	assert.Equal(t, tx.ID, tracker.tracked[0].ID)
}

func TestExecuteSufficientAllowance(t *testing.T) {
	p, _, _ := setup(t, lifiAdapter())
	signer := &fakeSigner{chainID: 1, allowance: big.NewInt(1000000)}

	result, err := p.Execute(context.Background(), signer, erc20Route())
	require.NoError(t, err)
	assert.Empty(t, result.ApprovalHash)
	assert.Equal(t, []string{"allowance", "send"}, signer.calls)
}

func TestExecuteAllowanceErrorProceeds(t *testing.T) {
	p, _, tracker := setup(t, lifiAdapter())
	signer := &fakeSigner{chainID: 1, allowanceErr: errors.New("execution reverted")}

	result, err := p.Execute(context.Background(), signer, erc20Route())
	require.NoError(t, err)
	assert.Equal(t, []string{"allowance", "send"}, signer.calls)
	assert.Equal(t, "0xswap", result.Transaction.SrcTxHash)
	assert.Len(t, tracker.tracked, 1)
}

func TestExecuteNativeSkipsAllowance(t *testing.T) {
	p, _, _ := setup(t, lifiAdapter())
	signer := &fakeSigner{chainID: 1}

	route := erc20Route()
	route.SrcToken.Address = "0x0000000000000000000000000000000000000000"
	_, err := p.Execute(context.Background(), signer, route)
	require.NoError(t, err)
	assert.Equal(t, []string{"send"}, signer.calls)
}

func TestExecuteDirectTransferKeepsBuiltRoute(t *testing.T) {
	oneclick := buildAdapter{
		provider: types.ProviderOneClick,
		tx:       &types.TransactionData{To: usdcEth, Data: "0xa9059cbb", Value: "0", DirectTransfer: true},
	}
	p, state, _ := setup(t, oneclick)
	signer := &fakeSigner{chainID: 1}

	route := erc20Route()
	route.Provider = types.ProviderOneClick
	route.Data = types.RouteData{Provider: types.ProviderOneClick, OneClick: &types.OneClickData{OriginAsset: "nep141:usdc"}}

	result, err := p.Execute(context.Background(), signer, route)
	require.NoError(t, err)
	assert.Equal(t, []string{"send"}, signer.calls)
	assert.Equal(t, int64(1), signer.sent.ChainID)

	stored, _ := state.Transaction(result.Transaction.ID)
	require.NotNil(t, stored.Route.Data.OneClick)
	assert.Equal(t, "0xdeposit", stored.Route.Data.OneClick.DepositAddress)
	assert.Empty(t, route.Data.OneClick.DepositAddress)
}

func TestExecuteRejections(t *testing.T) {
	tests := []struct {
		name    string
		signer  *fakeSigner
		message string
	}{
		{"switch", &fakeSigner{chainID: 10, rejectSwitch: true}, "Switch to chain 1 was rejected"},
		{"approve", &fakeSigner{chainID: 1, allowance: big.NewInt(0), rejectApprove: true}, "Token approval was rejected"},
		{"send", &fakeSigner{chainID: 1, allowance: big.NewInt(1000000), rejectSend: true}, "Transaction was rejected"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, state, tracker := setup(t, lifiAdapter())
			result, err := p.Execute(context.Background(), tt.signer, erc20Route())
			require.NoError(t, err)
			assert.True(t, result.Rejected)
			assert.Equal(t, tt.message, result.Message)
			assert.Empty(t, state.Transactions())
			assert.Empty(t, tracker.tracked)
		})
	}
}

func TestExecuteErrors(t *testing.T) {
	p, state, _ := setup(t, lifiAdapter())

	_, err := p.Execute(context.Background(), nil, erc20Route())
	assert.ErrorIs(t, err, ErrNoSigner)

	_, err = p.Execute(context.Background(), &fakeSigner{chainID: 1}, nil)
	assert.ErrorIs(t, err, ErrNoRoute)

	route := erc20Route()
	route.Provider = types.ProviderSocket
	_, err = p.Execute(context.Background(), &fakeSigner{chainID: 1}, route)
	assert.ErrorIs(t, err, adapter.ErrUnknownProvider)

	signer := &fakeSigner{chainID: 1, allowance: big.NewInt(1000000), sendErr: errors.New("insufficient funds")}
	_, err = p.Execute(context.Background(), signer, erc20Route())
	assert.EqualError(t, err, "insufficient funds")
	assert.Empty(t, state.Transactions())

	failing, _, _ := setup(t, buildAdapter{provider: types.ProviderLiFi, err: errors.New("route expired")})
	signer = &fakeSigner{chainID: 1}
	_, err = failing.Execute(context.Background(), signer, erc20Route())
	assert.ErrorContains(t, err, "route expired")
	assert.Empty(t, signer.calls)
}
