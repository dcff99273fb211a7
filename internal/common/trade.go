package common

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Trade is derived output of a match step: it is never stored by the book,
// only returned to the caller and (optionally) reported onward by a
// collaborator such as internal/net.
type Trade struct {
	TradeID       string
	Symbol        string
	Price         decimal.Decimal // always the maker's price, never the taker's
	Quantity      decimal.Decimal
	Timestamp     uint64 // admission sequence number of the taker at match time
	AggressorSide Side   // the taker's side
	MakerOrderID  string
	TakerOrderID  string
}

func (t Trade) String() string {
	return fmt.Sprintf(
		"Trade{id=%s symbol=%s price=%s qty=%s aggressor=%s maker=%s taker=%s ts=%d}",
		t.TradeID, t.Symbol, t.Price, t.Quantity, t.AggressorSide, t.MakerOrderID, t.TakerOrderID, t.Timestamp,
	)
}
