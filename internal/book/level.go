package book

import (
	"github.com/shopspring/decimal"

	"ember/internal/common"
)

// PriceLevel owns an insertion-ordered (FIFO) queue of resting orders at one
// exact price on one side, plus a cached aggregate of their remaining
// quantity. The cache is redundant with the queue but necessary for O(levels)
// FOK preflight and O(1) snapshot projection (§4.3, §9): every mutation
// adjusts it by the exact delta, it is never recomputed from scratch.
type PriceLevel struct {
	Price     decimal.Decimal
	Orders    []*common.Order
	Aggregate decimal.Decimal
}

func newPriceLevel(price decimal.Decimal) *PriceLevel {
	return &PriceLevel{
		Price:     price,
		Aggregate: decimal.Zero,
	}
}

// pushBack appends a resting order to the tail of the queue.
func (pl *PriceLevel) pushBack(o *common.Order) {
	pl.Orders = append(pl.Orders, o)
	pl.Aggregate = pl.Aggregate.Add(o.Remaining)
}

// peekHead returns the order at the front of the queue without removing it.
func (pl *PriceLevel) peekHead() *common.Order {
	if len(pl.Orders) == 0 {
		return nil
	}
	return pl.Orders[0]
}

// dropHeadIfFilled removes the head order once it has reached zero remaining
// quantity. It must be called after every match step against the head.
func (pl *PriceLevel) dropHeadIfFilled() {
	if len(pl.Orders) == 0 {
		return
	}
	if pl.Orders[0].Remaining.IsZero() {
		pl.Orders[0] = nil
		pl.Orders = pl.Orders[1:]
	}
}

// remove removes the order with the given id from anywhere in the queue
// (used by cancel; O(queue length), acceptable per §4.3 since cancel is
// amortised by the order index locating the level directly). It returns the
// removed order and whether it was found.
func (pl *PriceLevel) remove(orderID string) (*common.Order, bool) {
	for i, o := range pl.Orders {
		if o.OrderID == orderID {
			pl.Aggregate = pl.Aggregate.Sub(o.Remaining)
			pl.Orders = append(pl.Orders[:i], pl.Orders[i+1:]...)
			return o, true
		}
	}
	return nil, false
}

// adjustAggregate applies the exact delta a match step produced against the
// head order, keeping the cache coherent without a full recompute.
func (pl *PriceLevel) adjustAggregate(delta decimal.Decimal) {
	pl.Aggregate = pl.Aggregate.Sub(delta)
}

func (pl *PriceLevel) isEmpty() bool {
	return len(pl.Orders) == 0
}
