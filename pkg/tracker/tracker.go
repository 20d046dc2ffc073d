package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"xroute/pkg/adapter"
	"xroute/pkg/types"
)

const (
	DefaultInitialDelay = 10 * time.Second // First poll after submission
	DefaultInterval     = 15 * time.Second // Between polls
	DefaultMaxAttempts  = 120              // About 30 minutes of polling
)

// TimeoutError is recorded on transactions that never reached a terminal status
const TimeoutError = "Timeout"

var errNotTerminal = errors.New("transaction not terminal yet")

// AdapterSource resolves the adapter that owns a transaction
type AdapterSource interface {
	Get(p types.Provider) (adapter.Adapter, error)
}

// Updater applies status changes to stored transactions
type Updater interface {
	UpdateTransaction(id string, fn func(tx *types.TrackedTransaction)) (types.TrackedTransaction, error)
}

// Options tunes the polling schedule
type Options struct {
	InitialDelay time.Duration
	Interval     time.Duration
	MaxAttempts  int
}

func (o Options) withDefaults() Options {
	if o.InitialDelay <= 0 {
		o.InitialDelay = DefaultInitialDelay
	}
	if o.Interval <= 0 {
		o.Interval = DefaultInterval
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	return o
}

// Tracker polls provider status for submitted transactions. Each transaction
// gets its own goroutine that stops at a terminal status, at the attempt
// limit or when the tracker is stopped.
type Tracker struct {
	adapters AdapterSource
	store    Updater
	opts     Options
	logger   *zap.Logger
	now      func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	active map[string]struct{}
}

// New creates a tracker whose pollers run until ctx is done or Stop is called
func New(ctx context.Context, adapters AdapterSource, store Updater, opts Options, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(ctx)
	return &Tracker{
		adapters: adapters,
		store:    store,
		opts:     opts.withDefaults(),
		logger:   logger.Named("tracker"),
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
		active:   make(map[string]struct{}),
	}
}

// Track starts polling tx. Terminal or already tracked transactions are ignored.
func (t *Tracker) Track(tx types.TrackedTransaction) error {
	if tx.ID == "" || tx.SrcTxHash == "" {
		return fmt.Errorf("transaction id and source hash are required")
	}
	if tx.Status.IsTerminal() {
		return nil
	}
	if t.ctx.Err() != nil {
		return fmt.Errorf("tracker stopped")
	}

	t.mu.Lock()
	if _, exists := t.active[tx.ID]; exists {
		t.mu.Unlock()
		return nil
	}
	t.active[tx.ID] = struct{}{}
	t.wg.Add(1)
	t.mu.Unlock()

	go t.poll(tx)
	return nil
}

// Resume starts polling every transaction in txs
func (t *Tracker) Resume(txs []types.TrackedTransaction) {
	for _, tx := range txs {
		if err := t.Track(tx); err != nil {
			t.logger.Warn("Cannot resume tracking", zap.String("id", tx.ID), zap.Error(err))
		}
	}
}

// Active returns the ids currently being polled
func (t *Tracker) Active() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	ids := make([]string, 0, len(t.active))
	for id := range t.active {
		ids = append(ids, id)
	}
	return ids
}

// IsTracking reports whether id is being polled
func (t *Tracker) IsTracking(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.active[id]
	return ok
}

// Stop cancels every poller and waits for them to exit
func (t *Tracker) Stop() {
	t.cancel()
	t.wg.Wait()
}

func (t *Tracker) poll(tx types.TrackedTransaction) {
	defer t.wg.Done()
	defer func() {
		t.mu.Lock()
		delete(t.active, tx.ID)
		t.mu.Unlock()
	}()

	log := t.logger.With(
		zap.String("id", tx.ID),
		zap.String("adapter", string(tx.Provider)),
		zap.String("tx_hash", tx.SrcTxHash))

	a, err := t.adapters.Get(tx.Provider)
	if err != nil {
		log.Error("No adapter for transaction", zap.Error(err))
		t.update(tx.ID, func(stored *types.TrackedTransaction) {
			stored.Status = types.StatusFailed
			stored.Error = err.Error()
			completed := t.now()
			stored.CompletedAt = &completed
		})
		return
	}

	delay := time.NewTimer(t.opts.InitialDelay)
	select {
	case <-t.ctx.Done():
		delay.Stop()
		return
	case <-delay.C:
	}

	log.Info("Tracking transaction")
	attempt := 0
	check := func() (types.StatusResponse, error) {
		attempt++
		resp := a.GetStatus(t.ctx, tx.SrcTxHash, tx.Route)
		t.update(tx.ID, func(stored *types.TrackedTransaction) {
			stored.Apply(resp, t.now())
		})
		if !resp.Status.IsTerminal() {
			return resp, errNotTerminal
		}
		return resp, nil
	}

	resp, err := backoff.Retry(t.ctx, check,
		backoff.WithBackOff(backoff.NewConstantBackOff(t.opts.Interval)),
		backoff.WithMaxTries(uint(t.opts.MaxAttempts)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(_ error, next time.Duration) {
			log.Debug("Transaction still in flight", zap.Int("attempt", attempt), zap.Duration("next", next))
		}))

	switch {
	case err == nil:
		log.Info("Transaction finished", zap.String("status", string(resp.Status)))
	case t.ctx.Err() != nil:
		log.Debug("Tracking stopped")
	default:
		log.Warn("Transaction timed out", zap.Int("attempts", attempt))
		t.update(tx.ID, func(stored *types.TrackedTransaction) {
			stored.Status = types.StatusFailed
			stored.Error = TimeoutError
			completed := t.now()
			stored.CompletedAt = &completed
		})
	}
}

func (t *Tracker) update(id string, fn func(tx *types.TrackedTransaction)) {
	if _, err := t.store.UpdateTransaction(id, fn); err != nil {
		t.logger.Error("Failed to update transaction", zap.String("id", id), zap.Error(err))
	}
}
