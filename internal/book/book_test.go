package book_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ember/internal/book"
	"ember/internal/common"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func limit(id string, side common.Side, qty, price string) common.Order {
	return common.NewOrder(id, "BTC-USD", side, common.Limit, d(qty), d(price), true)
}

func market(id string, side common.Side, qty string) common.Order {
	return common.NewOrder(id, "BTC-USD", side, common.Market, d(qty), decimal.Zero, false)
}

func ioc(id string, side common.Side, qty, price string) common.Order {
	return common.NewOrder(id, "BTC-USD", side, common.IOC, d(qty), d(price), true)
}

func fok(id string, side common.Side, qty, price string) common.Order {
	return common.NewOrder(id, "BTC-USD", side, common.FOK, d(qty), d(price), true)
}

func newTestBook() *book.Book {
	return book.New("BTC-USD", nil)
}

// S1 — Rest and cross.
func TestRestAndCross(t *testing.T) {
	b := newTestBook()

	trades, buy, err := b.Submit(limit("b1", common.Buy, "1.0", "50000"))
	require.NoError(t, err)
	assert.Empty(t, trades)
	bid, ok := b.BestBid()
	require.True(t, ok)
	assert.True(t, d("50000").Equal(bid))

	trades, sell, err := b.Submit(limit("s1", common.Sell, "0.5", "50000"))
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.True(t, d("50000").Equal(trades[0].Price))
	assert.True(t, d("0.5").Equal(trades[0].Quantity))
	assert.Equal(t, common.Sell, trades[0].AggressorSide)
	assert.Equal(t, common.Filled, sell.Status)
	assert.Equal(t, common.New, buy.Status) // buy is b1's state as returned at admission, before it rested and later matched

	bid, ok = b.BestBid()
	require.True(t, ok)
	assert.True(t, d("50000").Equal(bid))
}

// S2 — Price-time priority.
func TestPriceTimePriority(t *testing.T) {
	b := newTestBook()

	_, _, err := b.Submit(limit("b1", common.Buy, "1.0", "50000"))
	require.NoError(t, err)
	_, _, err = b.Submit(limit("b2", common.Buy, "1.0", "50000"))
	require.NoError(t, err)

	trades, _, err := b.Submit(limit("s1", common.Sell, "1.0", "50000"))
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, "b1", trades[0].MakerOrderID)
}

// S3 — Market with empty book.
func TestMarketEmptyBook(t *testing.T) {
	b := newTestBook()

	trades, o, err := b.Submit(market("m1", common.Buy, "1.0"))
	require.NoError(t, err)
	assert.Empty(t, trades)
	assert.Equal(t, common.Cancelled, o.Status)
}

// S4 — IOC partial.
func TestIOCPartial(t *testing.T) {
	b := newTestBook()

	_, _, err := b.Submit(limit("s1", common.Sell, "1.0", "50000"))
	require.NoError(t, err)

	trades, o, err := b.Submit(ioc("i1", common.Buy, "2.0", "50000"))
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.True(t, d("1.0").Equal(trades[0].Quantity))
	assert.Equal(t, common.Partial, o.Status)
	assert.True(t, d("1.0").Equal(o.Remaining))

	_, ok := b.BestAsk()
	assert.False(t, ok)
}

// S5 — FOK reject.
func TestFOKReject(t *testing.T) {
	b := newTestBook()

	_, _, err := b.Submit(limit("s1", common.Sell, "1.0", "50000"))
	require.NoError(t, err)

	trades, o, err := b.Submit(fok("f1", common.Buy, "2.0", "50000"))
	require.NoError(t, err)
	assert.Empty(t, trades)
	assert.Equal(t, common.Cancelled, o.Status)

	ask, ok := b.BestAsk()
	require.True(t, ok)
	assert.True(t, d("50000").Equal(ask))
}

// S6 — Maker pricing.
func TestMakerPricing(t *testing.T) {
	b := newTestBook()

	_, _, err := b.Submit(limit("s1", common.Sell, "1.0", "50000"))
	require.NoError(t, err)

	trades, buy, err := b.Submit(limit("b1", common.Buy, "1.0", "50500"))
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.True(t, d("50000").Equal(trades[0].Price))
	assert.Equal(t, common.Filled, buy.Status)
}

// S7 — Walk multiple levels.
func TestWalkMultipleLevels(t *testing.T) {
	b := newTestBook()

	_, _, err := b.Submit(limit("s1", common.Sell, "1.0", "50000"))
	require.NoError(t, err)
	_, _, err = b.Submit(limit("s2", common.Sell, "1.0", "50100"))
	require.NoError(t, err)

	trades, _, err := b.Submit(market("m1", common.Buy, "1.5"))
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.True(t, d("50000").Equal(trades[0].Price))
	assert.True(t, d("1.0").Equal(trades[0].Quantity))
	assert.True(t, d("50100").Equal(trades[1].Price))
	assert.True(t, d("0.5").Equal(trades[1].Quantity))

	snap := b.Snapshot(10)
	require.Len(t, snap.Asks, 1)
	assert.True(t, d("50100").Equal(snap.Asks[0].Price))
	assert.True(t, d("0.5").Equal(snap.Asks[0].Aggregate))
}

// S8 — FOK exact boundary.
func TestFOKExactBoundary(t *testing.T) {
	b := newTestBook()

	_, _, err := b.Submit(limit("s1", common.Sell, "1.0", "50000"))
	require.NoError(t, err)
	_, _, err = b.Submit(limit("s2", common.Sell, "0.5", "50100"))
	require.NoError(t, err)

	trades, o, err := b.Submit(fok("f1", common.Buy, "1.5", "50100"))
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, common.Filled, o.Status)
	assert.True(t, o.Remaining.IsZero())

	_, ok := b.BestAsk()
	assert.False(t, ok)
}

// Round-trip property: a non-crossing LIMIT, once cancelled, leaves the book
// exactly as it was.
func TestCancelRoundTrip(t *testing.T) {
	b := newTestBook()

	before := b.Snapshot(10)

	_, placed, err := b.Submit(limit("b1", common.Buy, "1.0", "40000"))
	require.NoError(t, err)
	assert.Equal(t, common.New, placed.Status)

	cancelled, ok := b.Cancel("b1")
	require.True(t, ok)
	assert.Equal(t, common.Cancelled, cancelled.Status)
	assert.True(t, cancelled.Remaining.Equal(d("1.0")))

	after := b.Snapshot(10)
	assert.Equal(t, before.Bids, after.Bids)
	assert.Equal(t, before.Asks, after.Asks)
}

// Cancel idempotence: an unknown id, and a filled order's id, both report false.
func TestCancelIdempotence(t *testing.T) {
	b := newTestBook()

	_, ok := b.Cancel("does-not-exist")
	assert.False(t, ok)

	_, _, err := b.Submit(limit("s1", common.Sell, "1.0", "50000"))
	require.NoError(t, err)
	_, _, err = b.Submit(limit("b1", common.Buy, "1.0", "50000"))
	require.NoError(t, err)

	// b1 fully filled and not retained; cancel must fail both sides.
	_, ok = b.Cancel("b1")
	assert.False(t, ok)
	_, ok = b.Cancel("s1")
	assert.False(t, ok)
}

// Validation rejects before any mutation.
func TestSubmitValidation(t *testing.T) {
	b := newTestBook()

	_, _, err := b.Submit(limit("x", common.Buy, "-1.0", "50000"))
	assert.ErrorIs(t, err, book.ErrInvalidQuantity)

	bad := common.NewOrder("y", "BTC-USD", common.Buy, common.Limit, d("1.0"), decimal.Zero, false)
	_, _, err = b.Submit(bad)
	assert.ErrorIs(t, err, book.ErrMissingPrice)

	mismatched := common.NewOrder("z", "ETH-USD", common.Buy, common.Market, d("1.0"), decimal.Zero, false)
	_, _, err = b.Submit(mismatched)
	assert.ErrorIs(t, err, book.ErrSymbolMismatch)

	snap := b.Snapshot(10)
	assert.Empty(t, snap.Bids)
	assert.Empty(t, snap.Asks)
}

// Universal invariant: aggregate == sum of resting remaining quantities, and
// every present level has a positive aggregate.
func TestAggregateInvariant(t *testing.T) {
	b := newTestBook()

	require.NoError(t, submitAll(t, b,
		limit("b1", common.Buy, "1.0", "99"),
		limit("b2", common.Buy, "0.5", "99"),
		limit("b3", common.Buy, "2.0", "98"),
	))

	snap := b.Snapshot(10)
	require.Len(t, snap.Bids, 2)
	assert.True(t, d("1.5").Equal(snap.Bids[0].Aggregate))
	assert.True(t, d("2.0").Equal(snap.Bids[1].Aggregate))
	for _, lvl := range snap.Bids {
		assert.True(t, lvl.Aggregate.IsPositive())
	}
}

// Universal invariant: best bid <= best ask whenever both sides are
// non-empty after an operation completes.
func TestBestBidNeverAboveBestAsk(t *testing.T) {
	b := newTestBook()

	require.NoError(t, submitAll(t, b,
		limit("b1", common.Buy, "1.0", "99"),
		limit("s1", common.Sell, "1.0", "101"),
	))

	bid, bidOk := b.BestBid()
	ask, askOk := b.BestAsk()
	require.True(t, bidOk)
	require.True(t, askOk)
	assert.True(t, bid.LessThanOrEqual(ask))
}

func submitAll(t *testing.T, b *book.Book, orders ...common.Order) error {
	t.Helper()
	for _, o := range orders {
		if _, _, err := b.Submit(o); err != nil {
			return err
		}
	}
	return nil
}
