package common

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Side is which direction of the book an order or trade sits on.
type Side uint8

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Sell {
		return "sell"
	}
	return "buy"
}

// OrderType selects which state machine Submit runs for an order.
type OrderType uint8

const (
	Limit OrderType = iota
	Market
	IOC
	FOK
)

func (t OrderType) String() string {
	switch t {
	case Market:
		return "market"
	case IOC:
		return "ioc"
	case FOK:
		return "fok"
	default:
		return "limit"
	}
}

// HasPrice reports whether orders of this type carry a limit price.
func (t OrderType) HasPrice() bool {
	return t != Market
}

// Status is the lifecycle stage of an Order.
type Status uint8

const (
	New Status = iota
	Partial
	Filled
	Cancelled
)

func (s Status) String() string {
	switch s {
	case Partial:
		return "partial"
	case Filled:
		return "filled"
	case Cancelled:
		return "cancelled"
	default:
		return "new"
	}
}

// Order carries immutable identity plus mutable execution state. Price and
// Quantity are decimal.Decimal rather than float64: §4.8 of the matching
// specification forbids binary-float arithmetic on book state, and the
// resting queue is exactly that state.
type Order struct {
	OrderID  string
	Symbol   string
	Side     Side
	Type     OrderType
	Quantity decimal.Decimal // originally requested size, never changes
	Price    decimal.Decimal // valid only when HasPrice is true
	HasPrice bool

	Sequence uint64 // monotonic admission sequence, assigned by Book.Submit

	Filled    decimal.Decimal
	Remaining decimal.Decimal
	Status    Status
}

// NewOrder builds an order in its NEW state with Remaining == Quantity and
// Filled == zero. Sequence is left at zero; Book.Submit assigns it on
// admission.
func NewOrder(orderID, symbol string, side Side, typ OrderType, quantity, price decimal.Decimal, hasPrice bool) Order {
	return Order{
		OrderID:   orderID,
		Symbol:    symbol,
		Side:      side,
		Type:      typ,
		Quantity:  quantity,
		Price:     price,
		HasPrice:  hasPrice,
		Filled:    decimal.Zero,
		Remaining: quantity,
		Status:    New,
	}
}

// Fill records a match of qty against this order, advancing Filled and
// Remaining and recomputing Status. qty must not exceed Remaining.
func (o *Order) Fill(qty decimal.Decimal) {
	o.Filled = o.Filled.Add(qty)
	o.Remaining = o.Remaining.Sub(qty)
	switch {
	case o.Remaining.IsZero():
		o.Status = Filled
	case o.Filled.IsPositive():
		o.Status = Partial
	}
}

// Cancel marks the order terminal, preserving whatever Filled/Remaining it
// carried at the moment of cancellation.
func (o *Order) Cancel() {
	o.Status = Cancelled
}

// Terminal reports whether the order can no longer participate in matching.
func (o Order) Terminal() bool {
	return o.Status == Filled || o.Status == Cancelled
}

func (o Order) String() string {
	price := "-"
	if o.HasPrice {
		price = o.Price.String()
	}
	return fmt.Sprintf(
		"Order{id=%s symbol=%s side=%s type=%s price=%s qty=%s filled=%s remaining=%s status=%s seq=%d}",
		o.OrderID, o.Symbol, o.Side, o.Type, price, o.Quantity, o.Filled, o.Remaining, o.Status, o.Sequence,
	)
}
