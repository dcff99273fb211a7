package book

import (
	"github.com/shopspring/decimal"
	"github.com/tidwall/btree"

	"ember/internal/common"
)

// side is an ordered map price -> PriceLevel, generalised over a single
// comparator per §9 ("parameterise the Side over a comparator rather than
// duplicating code"): the bid and ask sides of a Book are both instances of
// this type, differing only in `less` (price ordering) and `crosses`
// (the crossing predicate of §4.2). Ported from the teacher's
// internal/engine/orderbook.go, which embedded one btree.BTreeG[*PriceLevel]
// per side directly in OrderBook; here the comparator and the crossing
// predicate travel together so Book never special-cases bid vs ask.
type side struct {
	dir    common.Side
	levels *btree.BTreeG[*PriceLevel]
	// crosses reports whether a level at levelPrice trades against a taker
	// limited at takerPrice, from this side's perspective as the taker's
	// opposite side.
	crosses func(takerPrice, levelPrice decimal.Decimal) bool
}

func newBidSide() *side {
	return &side{
		dir: common.Buy,
		levels: btree.NewBTreeG(func(a, b *PriceLevel) bool {
			return a.Price.GreaterThan(b.Price) // best bid (highest) sorts first
		}),
		// A SELL taker crosses a BID level iff the taker's limit is at or
		// below the resting bid.
		crosses: func(takerPrice, levelPrice decimal.Decimal) bool {
			return takerPrice.LessThanOrEqual(levelPrice)
		},
	}
}

func newAskSide() *side {
	return &side{
		dir: common.Sell,
		levels: btree.NewBTreeG(func(a, b *PriceLevel) bool {
			return a.Price.LessThan(b.Price) // best ask (lowest) sorts first
		}),
		// A BUY taker crosses an ASK level iff the taker's limit is at or
		// above the resting ask.
		crosses: func(takerPrice, levelPrice decimal.Decimal) bool {
			return takerPrice.GreaterThanOrEqual(levelPrice)
		},
	}
}

// best returns the best (first-to-match) level on this side, or nil.
func (s *side) best() *PriceLevel {
	lvl, ok := s.levels.MinMut()
	if !ok {
		return nil
	}
	return lvl
}

// bestPrice returns the best price on this side, if any resting level exists.
func (s *side) bestPrice() (decimal.Decimal, bool) {
	lvl, ok := s.levels.Min()
	if !ok {
		return decimal.Zero, false
	}
	return lvl.Price, true
}

// levelAt returns the existing level at price, or nil.
func (s *side) levelAt(price decimal.Decimal) *PriceLevel {
	lvl, ok := s.levels.GetMut(&PriceLevel{Price: price})
	if !ok {
		return nil
	}
	return lvl
}

// insert places order on the level at price, creating the level if absent.
func (s *side) insert(price decimal.Decimal, o *common.Order) {
	lvl := s.levelAt(price)
	if lvl == nil {
		lvl = newPriceLevel(price)
		s.levels.Set(lvl)
	}
	lvl.pushBack(o)
}

// dropIfEmpty removes lvl from the side if its queue has been fully consumed.
// A level MUST NOT exist with Aggregate == 0 (§4.3).
func (s *side) dropIfEmpty(lvl *PriceLevel) {
	if lvl.isEmpty() {
		s.levels.Delete(lvl)
	}
}

// removeOrder locates and removes order by id from the level at price,
// dropping the level if it empties as a result.
func (s *side) removeOrder(price decimal.Decimal, orderID string) (*common.Order, bool) {
	lvl := s.levelAt(price)
	if lvl == nil {
		return nil, false
	}
	o, ok := lvl.remove(orderID)
	if !ok {
		return nil, false
	}
	s.dropIfEmpty(lvl)
	return o, true
}

// forEach walks the side best-first, stopping when fn returns false.
func (s *side) forEach(fn func(lvl *PriceLevel) bool) {
	s.levels.Scan(fn)
}

// depth returns the number of distinct price levels currently resting.
func (s *side) depth() int {
	return s.levels.Len()
}
