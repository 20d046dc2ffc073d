package aggregator

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"xroute/pkg/types"
)

// DefaultDebounce is the quiet period before a quote pass starts
const DefaultDebounce = 800 * time.Millisecond

// RouteFinder runs one aggregation pass
type RouteFinder interface {
	FindBestRoutes(ctx context.Context, req types.QuoteRequest) ([]types.Route, error)
}

// RouteSink receives the route list of the current pass
type RouteSink interface {
	ReplaceRoutes(req types.QuoteRequest, routes []types.Route)
}

// Session debounces quote requests. Bursts of Submit calls collapse into a
// single pass once the input has been quiet for the debounce period. Every
// pass takes the next generation number and only the newest generation may
// commit, so a slow stale pass never overwrites a newer result.
type Session struct {
	ctx      context.Context
	finder   RouteFinder
	sink     RouteSink
	debounce time.Duration
	logger   *zap.Logger

	mu         sync.Mutex
	timer      *time.Timer
	pending    types.QuoteRequest
	generation uint64
	closed     bool
	wg         sync.WaitGroup
}

// NewSession creates a session whose passes run under ctx
func NewSession(ctx context.Context, finder RouteFinder, sink RouteSink, debounce time.Duration, logger *zap.Logger) *Session {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		ctx:      ctx,
		finder:   finder,
		sink:     sink,
		debounce: debounce,
		logger:   logger.Named("quote_session"),
	}
}

// Submit records req as the latest input and restarts the quiet period
func (s *Session) Submit(req types.QuoteRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.pending = req
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.debounce, s.fire)
}

// Generation returns the number of the latest pass started
func (s *Session) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

func (s *Session) fire() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.generation++
	gen := s.generation
	req := s.pending
	s.wg.Add(1)
	s.mu.Unlock()

	defer s.wg.Done()

	routes, err := s.finder.FindBestRoutes(s.ctx, req)
	if err != nil {
		s.logger.Info("Quote request rejected", zap.Uint64("generation", gen), zap.Error(err))
		routes = []types.Route{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		s.logger.Debug("Discarding stale pass",
			zap.Uint64("generation", gen),
			zap.Uint64("current", s.generation))
		return
	}
	s.sink.ReplaceRoutes(req, routes)
}

// Close stops the pending timer and waits for a running pass to finish
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
	}
	s.mu.Unlock()

	s.wg.Wait()
}
