// Package engine owns one book.Book per symbol and the serialising
// boundary external collaborators must call through (§5): a single-consumer
// command queue per symbol, so that submits and cancels on one symbol are
// always totally ordered even though many callers race to send them.
//
// This is the multi-symbol layer the teacher's internal/engine/engine.go
// sketched (map[AssetType]OrderBook) and internal/worker.go's WorkerPool
// supervised with a tomb.Tomb; here it is generalised from a fixed asset
// enum to arbitrary string symbols and wired to the decimal-exact
// internal/book core.
package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"ember/internal/book"
	"ember/internal/common"
)

const defaultCommandQueueDepth = 256

// Engine manages one serialised Dispatcher per supported symbol. It is safe
// for concurrent use: callers on different goroutines may call Submit or
// Cancel for the same symbol simultaneously and the dispatcher behind it
// totally orders their effects.
type Engine struct {
	dispatchers map[string]*Dispatcher
	metrics     *Metrics
	queueDepth  int
}

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithQueueDepth overrides the default per-symbol command queue depth.
func WithQueueDepth(depth int) Option {
	return func(e *Engine) {
		if depth > 0 {
			e.queueDepth = depth
		}
	}
}

// WithMetrics attaches a Metrics collector; if omitted a fresh one backed
// by its own registry is created.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// New constructs an Engine with one Dispatcher per symbol in symbols. The
// returned Engine must be started with Run before Submit/Cancel are called.
func New(symbols []string, opts ...Option) *Engine {
	e := &Engine{
		dispatchers: make(map[string]*Dispatcher, len(symbols)),
		queueDepth:  defaultCommandQueueDepth,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.metrics == nil {
		e.metrics = NewMetrics()
	}
	for _, symbol := range symbols {
		e.dispatchers[symbol] = newDispatcher(symbol, e.queueDepth, e.metrics)
	}
	return e
}

// Run starts every symbol's dispatcher goroutine under a shared tomb so a
// single ctx cancellation (or the first dispatcher failure) tears all of
// them down together.
func (e *Engine) Run(ctx context.Context) error {
	t, ctx := tomb.WithContext(ctx)
	for symbol, d := range e.dispatchers {
		d := d
		symbol := symbol
		t.Go(func() error {
			log.Info().Str("symbol", symbol).Msg("dispatcher starting")
			err := d.run(t)
			log.Info().Str("symbol", symbol).Err(err).Msg("dispatcher stopped")
			return err
		})
	}
	<-t.Dying()
	return t.Err()
}

// ErrUnknownSymbol is returned when a symbol has no configured dispatcher.
type ErrUnknownSymbol struct{ Symbol string }

func (e ErrUnknownSymbol) Error() string {
	return fmt.Sprintf("engine: unknown symbol %q", e.Symbol)
}

// Submit hands order to its symbol's dispatcher and blocks for the result.
// It is the engine-layer equivalent of book.Book.Submit, safe to call from
// many goroutines concurrently.
func (e *Engine) Submit(ctx context.Context, o common.Order) ([]common.Trade, common.Order, error) {
	d, ok := e.dispatchers[o.Symbol]
	if !ok {
		return nil, o, ErrUnknownSymbol{Symbol: o.Symbol}
	}
	return d.submit(ctx, o)
}

// Cancel hands a cancel request to symbol's dispatcher and blocks for the
// result.
func (e *Engine) Cancel(ctx context.Context, symbol, orderID string) (common.Order, bool, error) {
	d, ok := e.dispatchers[symbol]
	if !ok {
		return common.Order{}, false, ErrUnknownSymbol{Symbol: symbol}
	}
	return d.cancel(ctx, orderID)
}

// Snapshot returns a depth-limited projection of symbol's book.
func (e *Engine) Snapshot(ctx context.Context, symbol string, depth int) (book.Snapshot, error) {
	d, ok := e.dispatchers[symbol]
	if !ok {
		return book.Snapshot{}, ErrUnknownSymbol{Symbol: symbol}
	}
	return d.snapshot(ctx, depth)
}

// Symbols returns the set of symbols this Engine dispatches for.
func (e *Engine) Symbols() []string {
	symbols := make([]string, 0, len(e.dispatchers))
	for s := range e.dispatchers {
		symbols = append(symbols, s)
	}
	return symbols
}

func newTradeID() string {
	return uuid.New().String()
}
