package engine_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ember/internal/common"
	"ember/internal/engine"
)

func startEngine(t *testing.T, symbols ...string) (*engine.Engine, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	eng := engine.New(symbols)
	go func() {
		_ = eng.Run(ctx)
	}()
	return eng, cancel
}

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

// S9 — submit-then-cancel round trip through the dispatcher: the engine's
// bid and ask levels return to their pre-submit state just as the bare
// book's do.
func TestEngineSubmitCancelRoundTrip(t *testing.T) {
	eng, cancel := startEngine(t, "BTC-USD")
	defer cancel()

	ctx, done := context.WithTimeout(context.Background(), time.Second)
	defer done()

	before, err := eng.Snapshot(ctx, "BTC-USD", 10)
	require.NoError(t, err)

	order := common.NewOrder("b1", "BTC-USD", common.Buy, common.Limit, d("1.0"), d("40000"), true)
	_, placed, err := eng.Submit(ctx, order)
	require.NoError(t, err)
	assert.Equal(t, common.New, placed.Status)

	cancelled, ok, err := eng.Cancel(ctx, "BTC-USD", "b1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, common.Cancelled, cancelled.Status)

	after, err := eng.Snapshot(ctx, "BTC-USD", 10)
	require.NoError(t, err)
	assert.Equal(t, before.Bids, after.Bids)
	assert.Equal(t, before.Asks, after.Asks)
}

// The dispatcher serialises concurrent submits on one symbol: racing
// fills against one resting order are resolved by arrival order, each with
// its own admission sequence, never a torn state.
func TestEngineSerialisesConcurrentSubmits(t *testing.T) {
	eng, cancel := startEngine(t, "BTC-USD")
	defer cancel()

	ctx, done := context.WithTimeout(context.Background(), 2*time.Second)
	defer done()

	_, _, err := eng.Submit(ctx, common.NewOrder("s1", "BTC-USD", common.Sell, common.Limit, d("100"), d("50000"), true))
	require.NoError(t, err)

	const n = 50
	var wg sync.WaitGroup
	results := make([]common.Order, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, o, err := eng.Submit(ctx, common.NewOrder(
				"b"+itoa(i), "BTC-USD", common.Buy, common.Limit, d("1"), d("50000"), true,
			))
			require.NoError(t, err)
			results[i] = o
		}(i)
	}
	wg.Wait()

	snap, err := eng.Snapshot(ctx, "BTC-USD", 10)
	require.NoError(t, err)
	require.Len(t, snap.Asks, 1)
	assert.True(t, d("50").Equal(snap.Asks[0].Aggregate))

	seen := make(map[uint64]bool, n)
	for _, o := range results {
		assert.Equal(t, common.Filled, o.Status)
		assert.False(t, seen[o.Sequence], "duplicate admission sequence: total order violated")
		seen[o.Sequence] = true
	}
}

func TestUnknownSymbolRejected(t *testing.T) {
	eng, cancel := startEngine(t, "BTC-USD")
	defer cancel()

	ctx, done := context.WithTimeout(context.Background(), time.Second)
	defer done()

	_, _, err := eng.Submit(ctx, common.NewOrder("x", "ETH-USD", common.Buy, common.Market, d("1"), decimal.Zero, false))
	assert.Error(t, err)
	assert.IsType(t, engine.ErrUnknownSymbol{}, err)
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var buf [20]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}
