package engine

import (
	"context"

	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"ember/internal/book"
	"ember/internal/common"
)

// commandKind discriminates the variants of a Dispatcher's single command
// channel. Ported from the teacher's ClientMessage/message-type dispatch in
// internal/net/server.go, generalised to an in-process call instead of a
// decoded wire message.
type commandKind uint8

const (
	cmdSubmit commandKind = iota
	cmdCancel
	cmdSnapshot
)

type command struct {
	kind commandKind

	order   common.Order
	orderID string
	depth   int

	result chan commandResult
}

type commandResult struct {
	trades   []common.Trade
	order    common.Order
	cancelOK bool
	snapshot book.Snapshot
	err      error
}

// Dispatcher is the serialising boundary of §5: exactly one goroutine
// (run) drains commands and calls into its book.Book to completion before
// reading the next one, giving every submit/cancel on this symbol a total
// order regardless of how many goroutines are calling Engine concurrently.
type Dispatcher struct {
	symbol  string
	book    *book.Book
	metrics *Metrics
	queue   chan command
}

func newDispatcher(symbol string, queueDepth int, metrics *Metrics) *Dispatcher {
	return &Dispatcher{
		symbol:  symbol,
		book:    book.New(symbol, newTradeID),
		metrics: metrics,
		queue:   make(chan command, queueDepth),
	}
}

// run drains the command queue until t is dying. Each command runs to
// completion before the next is read — there are no suspension points
// inside book.Book itself (§5), so this loop is the entirety of the
// dispatcher's concurrency story.
func (d *Dispatcher) run(t *tomb.Tomb) error {
	for {
		select {
		case <-t.Dying():
			return nil
		case cmd := <-d.queue:
			d.handle(cmd)
		}
	}
}

func (d *Dispatcher) handle(cmd command) {
	var res commandResult
	switch cmd.kind {
	case cmdSubmit:
		trades, order, err := d.book.Submit(cmd.order)
		res = commandResult{trades: trades, order: order, err: err}
		if err == nil {
			d.metrics.ordersProcessed.WithLabelValues(d.symbol).Inc()
			d.metrics.tradesExecuted.WithLabelValues(d.symbol).Add(float64(len(trades)))
			log.Debug().
				Str("symbol", d.symbol).
				Str("order_id", order.OrderID).
				Str("status", order.Status.String()).
				Int("trades", len(trades)).
				Msg("order submitted")
		} else {
			log.Warn().Str("symbol", d.symbol).Err(err).Msg("order rejected")
		}
	case cmdCancel:
		order, ok := d.book.Cancel(cmd.orderID)
		res = commandResult{order: order, cancelOK: ok}
		log.Debug().Str("symbol", d.symbol).Str("order_id", cmd.orderID).Bool("cancelled", ok).Msg("cancel request")
	case cmdSnapshot:
		res = commandResult{snapshot: d.book.Snapshot(cmd.depth)}
	}
	cmd.result <- res
}

func (d *Dispatcher) submit(ctx context.Context, o common.Order) ([]common.Trade, common.Order, error) {
	cmd := command{kind: cmdSubmit, order: o, result: make(chan commandResult, 1)}
	res, err := d.send(ctx, cmd)
	if err != nil {
		return nil, o, err
	}
	return res.trades, res.order, res.err
}

func (d *Dispatcher) cancel(ctx context.Context, orderID string) (common.Order, bool, error) {
	cmd := command{kind: cmdCancel, orderID: orderID, result: make(chan commandResult, 1)}
	res, err := d.send(ctx, cmd)
	if err != nil {
		return common.Order{}, false, err
	}
	return res.order, res.cancelOK, nil
}

func (d *Dispatcher) snapshot(ctx context.Context, depth int) (book.Snapshot, error) {
	cmd := command{kind: cmdSnapshot, depth: depth, result: make(chan commandResult, 1)}
	res, err := d.send(ctx, cmd)
	if err != nil {
		return book.Snapshot{}, err
	}
	return res.snapshot, nil
}

func (d *Dispatcher) send(ctx context.Context, cmd command) (commandResult, error) {
	select {
	case d.queue <- cmd:
	case <-ctx.Done():
		return commandResult{}, ctx.Err()
	}

	select {
	case res := <-cmd.result:
		return res, nil
	case <-ctx.Done():
		return commandResult{}, ctx.Err()
	}
}
