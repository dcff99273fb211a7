// Package book implements the per-symbol CLOB matching core: the
// price-level indexed book, the LIMIT/MARKET/IOC/FOK state machines, the
// matching loop with price-time priority, cancellation, and snapshot
// derivation. It is deliberately I/O-free and single-threaded (§5): callers
// needing concurrent access must serialise through an external boundary
// such as internal/engine.Dispatcher.
package book

import (
	"errors"

	"github.com/shopspring/decimal"

	"ember/internal/common"
)

// Error taxonomy visible at the core boundary (§7). These are programming
// or protocol errors, reported to the caller and never retried: matching is
// a pure in-memory state transition with no transient failure mode.
var (
	ErrInvalidQuantity = errors.New("book: quantity must be positive")
	ErrMissingPrice    = errors.New("book: limit/ioc/fok order requires a price")
	ErrSymbolMismatch  = errors.New("book: order symbol does not match book symbol")
)

// Book owns both sides, the order index, and the admission sequence counter
// for one trading symbol. Zero value is not usable; construct with New.
type Book struct {
	Symbol string

	bids *side
	asks *side

	index orderIndex

	sequence   uint64
	tradeSeq   uint64
	newTradeID func() string
}

// New constructs an empty book for symbol. newTradeID generates opaque trade
// identifiers (callers typically pass a uuid.New().String() closure from
// internal/engine; a nil func falls back to a sequence-derived id so the
// book remains usable standalone, e.g. in tests).
func New(symbol string, newTradeID func() string) *Book {
	return &Book{
		Symbol:     symbol,
		bids:       newBidSide(),
		asks:       newAskSide(),
		index:      make(orderIndex),
		newTradeID: newTradeID,
	}
}

func (b *Book) nextTradeID() string {
	b.tradeSeq++
	if b.newTradeID != nil {
		return b.newTradeID()
	}
	return b.Symbol + "-trade-" + itoa(b.tradeSeq)
}

// itoa avoids pulling in strconv solely for this fallback path's tests.
func itoa(n uint64) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

// sideOf returns the internal side structure an order of the given side
// rests on (its OWN side, not the side it matches against).
func (b *Book) sideOf(s common.Side) *side {
	if s == common.Buy {
		return b.bids
	}
	return b.asks
}

// opposite returns the side a taker of s matches against.
func (b *Book) opposite(s common.Side) *side {
	if s == common.Buy {
		return b.asks
	}
	return b.bids
}

// validate enforces the admission checks of §7: invalid orders leave the
// book completely untouched.
func (b *Book) validate(o *common.Order) error {
	if o.Symbol != b.Symbol {
		return ErrSymbolMismatch
	}
	if !o.Quantity.IsPositive() {
		return ErrInvalidQuantity
	}
	if o.Type.HasPrice() && !o.HasPrice {
		return ErrMissingPrice
	}
	return nil
}

// Submit admits order into the book, dispatching on its type (§4.2) and
// returning the trades produced plus the mutated order. Submit is atomic
// from the caller's perspective: validation failures return before any
// mutation, and once matching starts it runs to completion.
func (b *Book) Submit(o common.Order) ([]common.Trade, common.Order, error) {
	if err := b.validate(&o); err != nil {
		return nil, o, err
	}

	b.sequence++
	o.Sequence = b.sequence

	switch o.Type {
	case common.Market:
		trades := b.matchMarket(&o)
		return trades, o, nil
	case common.IOC:
		trades := b.sweep(&o)
		b.finalizeNonResting(&o)
		return trades, o, nil
	case common.FOK:
		if !b.preflightFOK(&o) {
			o.Status = common.Cancelled
			return nil, o, nil
		}
		// Preflight guarantees the sweep fully consumes the taker.
		trades := b.sweep(&o)
		b.finalizeNonResting(&o)
		return trades, o, nil
	default: // Limit
		trades := b.sweep(&o)
		if o.Remaining.IsPositive() {
			b.rest(&o)
		} else {
			o.Status = common.Filled
		}
		return trades, o, nil
	}
}

// matchStep executes one pairing between taker and the resting order at the
// head of lvl's queue: it trades min(taker.Remaining, maker.Remaining) at
// the maker's price (§4.2, §4.8 maker pricing), updates both orders, and
// keeps the level's aggregate and queue coherent. It returns the trade;
// callers check lvl.isEmpty() to learn whether the level was exhausted.
func (b *Book) matchStep(taker *common.Order, lvl *PriceLevel) common.Trade {
	maker := lvl.peekHead()
	qty := decimal.Min(taker.Remaining, maker.Remaining)

	maker.Fill(qty)
	taker.Fill(qty)
	lvl.adjustAggregate(qty)
	lvl.dropHeadIfFilled()
	if maker.Terminal() {
		b.index.delete(maker.OrderID)
	}

	trade := common.Trade{
		TradeID:       b.nextTradeID(),
		Symbol:        b.Symbol,
		Price:         lvl.Price,
		Quantity:      qty,
		Timestamp:     taker.Sequence,
		AggressorSide: taker.Side,
		MakerOrderID:  maker.OrderID,
		TakerOrderID:  taker.OrderID,
	}
	return trade
}

// sweep walks the opposite side best-first while it crosses taker's limit,
// running match steps to exhaustion of either the taker or each level in
// turn. It is the shared walk used by LIMIT, IOC, and (after preflight)
// FOK. Each match step updates taker.Status through Order.Fill; the final
// status is settled by the caller since LIMIT, IOC, and FOK each resolve a
// partially-filled residual differently.
// MARKET uses matchMarket instead, since it crosses unconditionally and
// must reject outright on an empty opposite side.
func (b *Book) sweep(taker *common.Order) []common.Trade {
	opp := b.opposite(taker.Side)
	var trades []common.Trade

	for taker.Remaining.IsPositive() {
		lvl := opp.best()
		if lvl == nil || !opp.crosses(taker.Price, lvl.Price) {
			break
		}
		for taker.Remaining.IsPositive() && !lvl.isEmpty() {
			trades = append(trades, b.matchStep(taker, lvl))
		}
		opp.dropIfEmpty(lvl)
	}

	return trades
}

// matchMarket implements §4.2's MARKET state machine: reject outright on an
// empty opposite side, otherwise sweep ignoring price until filled or the
// side empties.
func (b *Book) matchMarket(taker *common.Order) []common.Trade {
	opp := b.opposite(taker.Side)
	if opp.depth() == 0 {
		taker.Status = common.Cancelled
		return nil
	}

	var trades []common.Trade
	for taker.Remaining.IsPositive() {
		lvl := opp.best()
		if lvl == nil {
			break
		}
		for taker.Remaining.IsPositive() && !lvl.isEmpty() {
			trades = append(trades, b.matchStep(taker, lvl))
		}
		opp.dropIfEmpty(lvl)
	}

	b.finalizeNonResting(taker)
	return trades
}

// finalizeNonResting sets the terminal status of an order that never rests
// (MARKET, IOC, and FOK after preflight): FILLED if fully consumed, PARTIAL
// if some fill happened but residual remains (MARKET/IOC only — FOK's
// preflight guarantees full fill so this arm is unreachable for FOK),
// CANCELLED if nothing filled at all.
func (b *Book) finalizeNonResting(o *common.Order) {
	switch {
	case o.Remaining.IsZero():
		o.Status = common.Filled
	case o.Filled.IsPositive():
		o.Status = common.Partial
	default:
		o.Status = common.Cancelled
	}
}

// preflightFOK implements §4.2's two-phase FOK contract: a read-only walk of
// the opposite side, summing each crossed level's cached Aggregate until it
// reaches taker.Quantity. It must not mutate the book, and it must use the
// cached aggregate rather than iterating individual orders, so the
// all-or-nothing guarantee holds even though the later execution phase is
// iterative.
func (b *Book) preflightFOK(taker *common.Order) bool {
	opp := b.opposite(taker.Side)
	need := taker.Quantity
	acc := decimal.Zero

	ok := false
	opp.forEach(func(lvl *PriceLevel) bool {
		if !opp.crosses(taker.Price, lvl.Price) {
			return false
		}
		acc = acc.Add(lvl.Aggregate)
		if acc.GreaterThanOrEqual(need) {
			ok = true
			return false
		}
		return true
	})
	return ok
}

// rest places a LIMIT order's residual on its own side, creating the price
// level if absent, and records it in the order index (§4.2 step 3, §4.5).
func (b *Book) rest(o *common.Order) {
	own := b.sideOf(o.Side)
	own.insert(o.Price, o)
	b.index.put(o.OrderID, locator{side: o.Side, price: o.Price})
	if o.Filled.IsPositive() {
		o.Status = common.Partial
	} else {
		o.Status = common.New
	}
}

// Cancel implements §4.7: looks up orderID in the index, and if it names a
// resting, non-terminal order, removes it from its queue, adjusts the
// level's aggregate, drops the level if empty, removes the index entry, and
// marks the order cancelled. Returns false for unknown or already-terminal
// orders without mutating anything.
func (b *Book) Cancel(orderID string) (common.Order, bool) {
	loc, ok := b.index.get(orderID)
	if !ok {
		return common.Order{}, false
	}

	own := b.sideOf(loc.side)
	o, ok := own.removeOrder(loc.price, orderID)
	if !ok {
		// Index and side disagree; treat as not-found rather than panic,
		// since this is a caller-visible boolean contract, not a fatal error.
		b.index.delete(orderID)
		return common.Order{}, false
	}

	b.index.delete(orderID)
	o.Cancel()
	return *o, true
}

// BestBid returns the best (highest) resting bid price, if any.
func (b *Book) BestBid() (decimal.Decimal, bool) {
	return b.bids.bestPrice()
}

// BestAsk returns the best (lowest) resting ask price, if any.
func (b *Book) BestAsk() (decimal.Decimal, bool) {
	return b.asks.bestPrice()
}

// Level is one [price, aggregate quantity] entry of a Snapshot or an
// IterateBids/IterateAsks callback (§4.6, §6).
type Level struct {
	Price     decimal.Decimal
	Aggregate decimal.Decimal
}

// Snapshot is a point-in-time, depth-limited, aggregate projection of both
// sides (§4.6). No order-level information is exposed.
type Snapshot struct {
	Symbol    string
	Timestamp uint64 // the book's admission sequence counter at assembly time
	Bids      []Level
	Asks      []Level
}

func collectLevels(s *side, depth int) []Level {
	levels := make([]Level, 0, depth)
	s.forEach(func(lvl *PriceLevel) bool {
		levels = append(levels, Level{Price: lvl.Price, Aggregate: lvl.Aggregate})
		return len(levels) < depth
	})
	return levels
}

// Snapshot returns up to depth price levels from each side, best-first
// (§4.6). depth must be positive.
func (b *Book) Snapshot(depth int) Snapshot {
	if depth <= 0 {
		depth = 1
	}
	return Snapshot{
		Symbol:    b.Symbol,
		Timestamp: b.sequence,
		Bids:      collectLevels(b.bids, depth),
		Asks:      collectLevels(b.asks, depth),
	}
}

// IterateBids yields (price, aggregate) best-first across the whole bid
// side, stopping early if fn returns false.
func (b *Book) IterateBids(fn func(price, aggregate decimal.Decimal) bool) {
	b.bids.forEach(func(lvl *PriceLevel) bool {
		return fn(lvl.Price, lvl.Aggregate)
	})
}

// IterateAsks yields (price, aggregate) best-first across the whole ask
// side, stopping early if fn returns false.
func (b *Book) IterateAsks(fn func(price, aggregate decimal.Decimal) bool) {
	b.asks.forEach(func(lvl *PriceLevel) bool {
		return fn(lvl.Price, lvl.Aggregate)
	})
}
