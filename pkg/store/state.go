// Package store is the single state container for the ranked route list
// and the tracked-transaction registry.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"xroute/pkg/types"
)

// ErrNotFound is returned for unknown route or transaction ids
var ErrNotFound = errors.New("not found")

const persistTimeout = 5 * time.Second

// Persister stores tracked transactions outside the process
type Persister interface {
	SaveTransaction(ctx context.Context, tx types.TrackedTransaction) error
	LoadTransactions(ctx context.Context) ([]types.TrackedTransaction, error)
	Close() error
}

// EventKind names what changed in the state
type EventKind string

const (
	EventRoutes      EventKind = "routes"
	EventTransaction EventKind = "transaction"
)

// Event is delivered to subscribers after every mutation
type Event struct {
	Kind        EventKind                 `json:"type"`
	Routes      *RouteSnapshot            `json:"routes,omitempty"`
	Transaction *types.TrackedTransaction `json:"transaction,omitempty"`
}

// RouteSnapshot is the route list of the latest committed pass
type RouteSnapshot struct {
	Generation uint64             `json:"generation"`
	Request    types.QuoteRequest `json:"request"`
	Routes     []types.Route      `json:"routes"`
	Selected   string             `json:"selectedRouteId,omitempty"`
	UpdatedAt  time.Time          `json:"timestamp"`
}

// State owns the routes and the transactions. Routes are replaced
// wholesale; a transaction update touches only its own record.
type State struct {
	persister Persister
	logger    *zap.Logger
	now       func() time.Time

	mu     sync.RWMutex
	routes RouteSnapshot
	txs    map[string]*types.TrackedTransaction

	subMu   sync.Mutex
	subs    map[int]chan Event
	nextSub int
}

// New creates a state container. persister may be nil.
func New(persister Persister, logger *zap.Logger) *State {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &State{
		persister: persister,
		logger:    logger.Named("store"),
		now:       time.Now,
		routes:    RouteSnapshot{Routes: []types.Route{}},
		txs:       make(map[string]*types.TrackedTransaction),
		subs:      make(map[int]chan Event),
	}
}

// Load restores persisted transactions and returns the ones still in flight
func (s *State) Load(ctx context.Context) ([]types.TrackedTransaction, error) {
	if s.persister == nil {
		return nil, nil
	}

	txs, err := s.persister.LoadTransactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var active []types.TrackedTransaction
	for i := range txs {
		tx := txs[i]
		s.txs[tx.ID] = &tx
		if !tx.Status.IsTerminal() {
			active = append(active, tx)
		}
	}

	s.logger.Info("Transactions restored",
		zap.Int("total", len(txs)),
		zap.Int("active", len(active)))
	return active, nil
}

// ReplaceRoutes commits a new route list. The first route becomes the
// selected one.
func (s *State) ReplaceRoutes(req types.QuoteRequest, routes []types.Route) {
	if routes == nil {
		routes = []types.Route{}
	}

	s.mu.Lock()
	snapshot := RouteSnapshot{
		Generation: s.routes.Generation + 1,
		Request:    req,
		Routes:     routes,
		UpdatedAt:  s.now(),
	}
	if len(routes) > 0 {
		snapshot.Selected = routes[0].ID
	}
	s.routes = snapshot
	s.mu.Unlock()

	s.publish(Event{Kind: EventRoutes, Routes: &snapshot})
}

// Routes returns the current route list
func (s *State) Routes() RouteSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.routes
}

// SelectRoute marks a route of the current list as selected
func (s *State) SelectRoute(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.routes.Routes {
		if r.ID == id {
			s.routes.Selected = id
			return nil
		}
	}
	return fmt.Errorf("route %s: %w", id, ErrNotFound)
}

// SelectedRoute returns the selected route of the current list
func (s *State) SelectedRoute() (types.Route, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.routes.Routes {
		if r.ID == s.routes.Selected {
			return r, true
		}
	}
	return types.Route{}, false
}

// AddTransaction registers a new tracked transaction
func (s *State) AddTransaction(tx types.TrackedTransaction) error {
	if tx.ID == "" {
		return fmt.Errorf("transaction id is required")
	}

	s.mu.Lock()
	if _, exists := s.txs[tx.ID]; exists {
		s.mu.Unlock()
		return fmt.Errorf("transaction %s already registered", tx.ID)
	}
	stored := tx
	s.txs[tx.ID] = &stored
	s.mu.Unlock()

	s.persist(tx)
	s.publish(Event{Kind: EventTransaction, Transaction: &tx})
	return nil
}

// UpdateTransaction applies fn to one record and returns the result
func (s *State) UpdateTransaction(id string, fn func(tx *types.TrackedTransaction)) (types.TrackedTransaction, error) {
	s.mu.Lock()
	stored, ok := s.txs[id]
	if !ok {
		s.mu.Unlock()
		return types.TrackedTransaction{}, fmt.Errorf("transaction %s: %w", id, ErrNotFound)
	}
	fn(stored)
	updated := *stored
	s.mu.Unlock()

	s.persist(updated)
	s.publish(Event{Kind: EventTransaction, Transaction: &updated})
	return updated, nil
}

// Transaction returns one tracked transaction
func (s *State) Transaction(id string) (types.TrackedTransaction, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.txs[id]
	if !ok {
		return types.TrackedTransaction{}, false
	}
	return *tx, true
}

// Transactions lists tracked transactions, newest first
func (s *State) Transactions() []types.TrackedTransaction {
	s.mu.RLock()
	out := make([]types.TrackedTransaction, 0, len(s.txs))
	for _, tx := range s.txs {
		out = append(out, *tx)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return out
}

// Subscribe returns a channel of state events and a cancel function.
// Events are dropped for subscribers whose buffer is full.
func (s *State) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)

	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
			close(ch)
		})
	}
}

func (s *State) publish(ev Event) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	for id, ch := range s.subs {
		select {
		case ch <- ev:
		default:
			s.logger.Warn("Subscriber too slow, dropping event", zap.Int("subscriber", id))
		}
	}
}

func (s *State) persist(tx types.TrackedTransaction) {
	if s.persister == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if err := s.persister.SaveTransaction(ctx, tx); err != nil {
		s.logger.Error("Failed to persist transaction", zap.String("id", tx.ID), zap.Error(err))
	}
}

// Close releases the persister
func (s *State) Close() error {
	if s.persister == nil {
		return nil
	}
	return s.persister.Close()
}
