package tracker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xroute/pkg/adapter"
	"xroute/pkg/store"
	"xroute/pkg/types"
)

// scriptedAdapter returns statuses in order and repeats the last one
type scriptedAdapter struct {
	mu       sync.Mutex
	provider types.Provider
	statuses []types.StatusResponse
	calls    map[string]int
}

func newScripted(p types.Provider, statuses ...types.StatusResponse) *scriptedAdapter {
	return &scriptedAdapter{provider: p, statuses: statuses, calls: make(map[string]int)}
}

func (s *scriptedAdapter) Provider() types.Provider { return s.provider }

func (s *scriptedAdapter) GetQuote(context.Context, types.QuoteRequest) []types.Route { return nil }

func (s *scriptedAdapter) BuildTransaction(context.Context, *types.Route) (*types.TransactionData, error) {
	return nil, nil
}

func (s *scriptedAdapter) GetStatus(_ context.Context, txHash string, _ types.Route) types.StatusResponse {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.calls[txHash]
	s.calls[txHash] = n + 1
	if n >= len(s.statuses) {
		n = len(s.statuses) - 1
	}
	resp := s.statuses[n]
	resp.SrcTxHash = txHash
	return resp
}

func (s *scriptedAdapter) SearchTokens(context.Context, int64, string) []types.Token { return nil }

func (s *scriptedAdapter) callCount(txHash string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[txHash]
}

var fastOptions = Options{
	InitialDelay: time.Millisecond,
	Interval:     2 * time.Millisecond,
	MaxAttempts:  120,
}

func setup(t *testing.T, adapters ...adapter.Adapter) (*Tracker, *store.State) {
	t.Helper()
	registry := adapter.NewRegistry(nil)
	for _, a := range adapters {
		require.NoError(t, registry.Register(a))
	}
	state := store.New(nil, nil)
	tr := New(context.Background(), registry, state, fastOptions, nil)
	t.Cleanup(tr.Stop)
	return tr, state
}

func pendingTx(id string, p types.Provider) types.TrackedTransaction {
	return types.TrackedTransaction{
		ID:        id,
		Provider:  p,
		SrcTxHash: "0x" + id,
		Status:    types.StatusPending,
		StartedAt: time.Now(),
	}
}

func waitForStatus(t *testing.T, state *store.State, id string, status types.TransactionStatus) types.TrackedTransaction {
	t.Helper()
	require.Eventually(t, func() bool {
		tx, ok := state.Transaction(id)
		return ok && tx.Status == status
	}, 5*time.Second, 5*time.Millisecond)
	tx, _ := state.Transaction(id)
	return tx
}

func TestTrackUntilCompleted(t *testing.T) {
	lifi := newScripted(types.ProviderLiFi,
		types.StatusResponse{Status: types.StatusPending},
		types.StatusResponse{Status: types.StatusBridging, Substatus: "WAIT_DESTINATION_TRANSACTION"},
		types.StatusResponse{Status: types.StatusCompleted, DstTxHash: "0xdst"})
	tr, state := setup(t, lifi)

	tx := pendingTx("a", types.ProviderLiFi)
	require.NoError(t, state.AddTransaction(tx))
	require.NoError(t, tr.Track(tx))

	done := waitForStatus(t, state, "a", types.StatusCompleted)
	assert.Equal(t, "0xdst", done.DstTxHash)
	assert.Equal(t, "WAIT_DESTINATION_TRANSACTION", done.Substatus)
	require.NotNil(t, done.CompletedAt)
	assert.Empty(t, done.Error)

	require.Eventually(t, func() bool { return !tr.IsTracking("a") }, time.Second, 5*time.Millisecond)
	calls := lifi.callCount("0xa")
	assert.Equal(t, 3, calls)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, calls, lifi.callCount("0xa"))
}

func TestTrackTimesOut(t *testing.T) {
	socket := newScripted(types.ProviderSocket, types.StatusResponse{Status: types.StatusBridging})
	tr, state := setup(t, socket)

	tx := pendingTx("slow", types.ProviderSocket)
	require.NoError(t, state.AddTransaction(tx))
	require.NoError(t, tr.Track(tx))

	failed := waitForStatus(t, state, "slow", types.StatusFailed)
	assert.Equal(t, TimeoutError, failed.Error)
	require.NotNil(t, failed.CompletedAt)

	require.Eventually(t, func() bool { return !tr.IsTracking("slow") }, time.Second, 5*time.Millisecond)
	assert.Equal(t, fastOptions.MaxAttempts, socket.callCount("0xslow"))
}

func TestTrackUnknownStatusStaysPending(t *testing.T) {
	lifi := newScripted(types.ProviderLiFi, types.StatusResponse{Status: types.StatusPending})
	registry := adapter.NewRegistry(nil)
	require.NoError(t, registry.Register(lifi))
	state := store.New(nil, nil)
	tr := New(context.Background(), registry, state, Options{
		InitialDelay: time.Millisecond,
		Interval:     time.Hour,
	}, nil)

	tx := pendingTx("p", types.ProviderLiFi)
	require.NoError(t, state.AddTransaction(tx))
	require.NoError(t, tr.Track(tx))

	require.Eventually(t, func() bool { return lifi.callCount("0xp") == 1 }, time.Second, 5*time.Millisecond)
	stored, _ := state.Transaction("p")
	assert.Equal(t, types.StatusPending, stored.Status)
	assert.Nil(t, stored.CompletedAt)
	assert.True(t, tr.IsTracking("p"))

	tr.Stop()
	assert.Empty(t, tr.Active())
	stored, _ = state.Transaction("p")
	assert.Equal(t, types.StatusPending, stored.Status)
	assert.Error(t, tr.Track(pendingTx("late", types.ProviderLiFi)))
}

func TestTrackIndependentTransactions(t *testing.T) {
	lifi := newScripted(types.ProviderLiFi, types.StatusResponse{Status: types.StatusRefunded})
	socket := newScripted(types.ProviderSocket, types.StatusResponse{Status: types.StatusFailed, Substatus: "reverted"})
	tr, state := setup(t, lifi, socket)

	for _, tx := range []types.TrackedTransaction{pendingTx("l", types.ProviderLiFi), pendingTx("s", types.ProviderSocket)} {
		require.NoError(t, state.AddTransaction(tx))
	}
	tr.Resume([]types.TrackedTransaction{pendingTx("l", types.ProviderLiFi), pendingTx("s", types.ProviderSocket)})

	waitForStatus(t, state, "l", types.StatusRefunded)
	failed := waitForStatus(t, state, "s", types.StatusFailed)
	assert.Equal(t, "reverted", failed.Substatus)
	assert.Empty(t, failed.Error)
}

func TestTrackIgnoresTerminalAndDuplicates(t *testing.T) {
	lifi := newScripted(types.ProviderLiFi, types.StatusResponse{Status: types.StatusPending})
	registry := adapter.NewRegistry(nil)
	require.NoError(t, registry.Register(lifi))
	state := store.New(nil, nil)
	tr := New(context.Background(), registry, state, Options{InitialDelay: time.Hour}, nil)
	defer tr.Stop()

	done := pendingTx("done", types.ProviderLiFi)
	done.Status = types.StatusCompleted
	require.NoError(t, tr.Track(done))
	assert.False(t, tr.IsTracking("done"))

	tx := pendingTx("dup", types.ProviderLiFi)
	require.NoError(t, tr.Track(tx))
	require.NoError(t, tr.Track(tx))
	assert.Equal(t, []string{"dup"}, tr.Active())

	assert.Error(t, tr.Track(types.TrackedTransaction{ID: "nohash"}))
}

func TestTrackUnknownAdapter(t *testing.T) {
	tr, state := setup(t)

	tx := pendingTx("x", types.ProviderOneClick)
	require.NoError(t, state.AddTransaction(tx))
	require.NoError(t, tr.Track(tx))

	failed := waitForStatus(t, state, "x", types.StatusFailed)
	assert.Contains(t, failed.Error, "oneclick")
}
