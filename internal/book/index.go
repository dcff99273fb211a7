package book

import (
	"github.com/shopspring/decimal"

	"ember/internal/common"
)

// locator is a non-owning pointer into a side's structures: enough to find
// the queue entry a resting order lives in without owning it (§4.5, §9).
// The queue entry itself is owned exclusively by the PriceLevel.
type locator struct {
	side  common.Side
	price decimal.Decimal
}

// orderIndex maps OrderId -> locator, giving cancel O(log P) access to the
// owning price level (P = distinct prices) instead of a full book scan.
type orderIndex map[string]locator

func (idx orderIndex) put(orderID string, loc locator) {
	idx[orderID] = loc
}

func (idx orderIndex) get(orderID string) (locator, bool) {
	loc, ok := idx[orderID]
	return loc, ok
}

func (idx orderIndex) delete(orderID string) {
	delete(idx, orderID)
}
