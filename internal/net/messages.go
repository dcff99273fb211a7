// Package net adapts the teacher's binary wire protocol
// (internal/net/messages.go in the teacher repo) to the decimal-exact
// order/trade model of internal/common and internal/engine. The framing
// style — a one-byte message type followed by a fixed body — is kept; the
// teacher encoded LimitPrice/Quantity as IEEE754 bit patterns
// (binary.BigEndian.Uint64 + math.Float64bits), which §4.8 of the matching
// specification forbids for book state. Since the wire is a read/write
// boundary rather than book state, decimal values here are carried as
// length-prefixed decimal strings instead — the one place a textual
// encoding is appropriate.
package net

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"ember/internal/common"
)

var (
	ErrInvalidMessageType = errors.New("net: invalid message type")
	ErrMessageTooShort    = errors.New("net: message too short")
)

// MessageType tags the body that follows the one-byte header.
type MessageType uint8

const (
	Heartbeat MessageType = iota
	NewOrder
	CancelOrder
	SnapshotRequest
)

// ReportType tags the body of a Report sent back to a client.
type ReportType uint8

const (
	ExecutionReport ReportType = iota
	ErrorReport
	SnapshotReport
)

// Message is anything parseMessage can produce.
type Message interface {
	GetType() MessageType
}

func writeString(buf *bytes.Buffer, s string) {
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(s)))
	buf.Write(lenBuf[:])
	buf.WriteString(s)
}

func readString(r *bytes.Reader) (string, error) {
	var lenBuf [2]byte
	if _, err := r.Read(lenBuf[:]); err != nil {
		return "", ErrMessageTooShort
	}
	n := int(binary.BigEndian.Uint16(lenBuf[:]))
	strBuf := make([]byte, n)
	if n > 0 {
		if _, err := r.Read(strBuf); err != nil {
			return "", ErrMessageTooShort
		}
	}
	return string(strBuf), nil
}

func writeDecimal(buf *bytes.Buffer, d decimal.Decimal) {
	writeString(buf, d.String())
}

func readDecimal(r *bytes.Reader) (decimal.Decimal, error) {
	s, err := readString(r)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

// NewOrderMessage carries everything internal/common.Order needs, per the
// "order input schema" of §6.
type NewOrderMessage struct {
	OrderID  string
	Symbol   string
	Side     common.Side
	Type     common.OrderType
	Quantity decimal.Decimal
	HasPrice bool
	Price    decimal.Decimal
}

func (m NewOrderMessage) GetType() MessageType { return NewOrder }

// Order converts the wire message into the common.Order the engine expects.
func (m NewOrderMessage) Order() common.Order {
	return common.NewOrder(m.OrderID, m.Symbol, m.Side, m.Type, m.Quantity, m.Price, m.HasPrice)
}

func (m NewOrderMessage) serialize() []byte {
	var buf bytes.Buffer
	buf.WriteByte(byte(NewOrder))
	writeString(&buf, m.OrderID)
	writeString(&buf, m.Symbol)
	buf.WriteByte(byte(m.Side))
	buf.WriteByte(byte(m.Type))
	writeDecimal(&buf, m.Quantity)
	if m.HasPrice {
		buf.WriteByte(1)
		writeDecimal(&buf, m.Price)
	} else {
		buf.WriteByte(0)
	}
	return buf.Bytes()
}

func parseNewOrder(r *bytes.Reader) (NewOrderMessage, error) {
	var m NewOrderMessage
	var err error
	if m.OrderID, err = readString(r); err != nil {
		return m, err
	}
	if m.Symbol, err = readString(r); err != nil {
		return m, err
	}
	sideByte, err := r.ReadByte()
	if err != nil {
		return m, ErrMessageTooShort
	}
	m.Side = common.Side(sideByte)
	typeByte, err := r.ReadByte()
	if err != nil {
		return m, ErrMessageTooShort
	}
	m.Type = common.OrderType(typeByte)
	if m.Quantity, err = readDecimal(r); err != nil {
		return m, err
	}
	hasPriceByte, err := r.ReadByte()
	if err != nil {
		return m, ErrMessageTooShort
	}
	m.HasPrice = hasPriceByte == 1
	if m.HasPrice {
		if m.Price, err = readDecimal(r); err != nil {
			return m, err
		}
	}
	return m, nil
}

// CancelOrderMessage requests cancellation of a resting order.
type CancelOrderMessage struct {
	Symbol  string
	OrderID string
}

func (m CancelOrderMessage) GetType() MessageType { return CancelOrder }

func (m CancelOrderMessage) serialize() []byte {
	var buf bytes.Buffer
	buf.WriteByte(byte(CancelOrder))
	writeString(&buf, m.Symbol)
	writeString(&buf, m.OrderID)
	return buf.Bytes()
}

func parseCancelOrder(r *bytes.Reader) (CancelOrderMessage, error) {
	var m CancelOrderMessage
	var err error
	if m.Symbol, err = readString(r); err != nil {
		return m, err
	}
	if m.OrderID, err = readString(r); err != nil {
		return m, err
	}
	return m, nil
}

// SnapshotRequestMessage asks for the current book snapshot of Symbol.
type SnapshotRequestMessage struct {
	Symbol string
	Depth  uint16
}

func (m SnapshotRequestMessage) GetType() MessageType { return SnapshotRequest }

func (m SnapshotRequestMessage) serialize() []byte {
	var buf bytes.Buffer
	buf.WriteByte(byte(SnapshotRequest))
	writeString(&buf, m.Symbol)
	var depthBuf [2]byte
	binary.BigEndian.PutUint16(depthBuf[:], m.Depth)
	buf.Write(depthBuf[:])
	return buf.Bytes()
}

func parseSnapshotRequest(r *bytes.Reader) (SnapshotRequestMessage, error) {
	var m SnapshotRequestMessage
	var err error
	if m.Symbol, err = readString(r); err != nil {
		return m, err
	}
	var depthBuf [2]byte
	if _, err := r.Read(depthBuf[:]); err != nil {
		return m, ErrMessageTooShort
	}
	m.Depth = binary.BigEndian.Uint16(depthBuf[:])
	return m, nil
}

func parseMessage(msg []byte) (Message, error) {
	if len(msg) < 1 {
		return nil, ErrMessageTooShort
	}
	r := bytes.NewReader(msg[1:])
	switch MessageType(msg[0]) {
	case NewOrder:
		return parseNewOrder(r)
	case CancelOrder:
		return parseCancelOrder(r)
	case SnapshotRequest:
		return parseSnapshotRequest(r)
	default:
		return nil, ErrInvalidMessageType
	}
}

func writeTrade(buf *bytes.Buffer, t common.Trade) {
	writeString(buf, t.TradeID)
	writeDecimal(buf, t.Price)
	writeDecimal(buf, t.Quantity)
	buf.WriteByte(byte(t.AggressorSide))
	writeString(buf, t.MakerOrderID)
	writeString(buf, t.TakerOrderID)
	var tsBuf [8]byte
	binary.BigEndian.PutUint64(tsBuf[:], t.Timestamp)
	buf.Write(tsBuf[:])
}

// Report is what the gateway sends back for an execution or an error.
type Report struct {
	Kind     ReportType
	OrderID  string
	Status   common.Status
	Filled   decimal.Decimal
	Remain   decimal.Decimal
	Trades   []common.Trade
	Snapshot *SnapshotPayload
	Err      string
}

// SnapshotPayload is the wire form of book.Snapshot.
type SnapshotPayload struct {
	Symbol    string
	Timestamp uint64
	Bids      []LevelPayload
	Asks      []LevelPayload
}

// LevelPayload is the wire form of a book.Level.
type LevelPayload struct {
	Price     decimal.Decimal
	Aggregate decimal.Decimal
}

// Serialize encodes a Report for the wire.
func (r Report) Serialize() []byte {
	var buf bytes.Buffer
	buf.WriteByte(byte(r.Kind))
	switch r.Kind {
	case ErrorReport:
		writeString(&buf, r.Err)
	case SnapshotReport:
		writeString(&buf, r.Snapshot.Symbol)
		var tsBuf [8]byte
		binary.BigEndian.PutUint64(tsBuf[:], r.Snapshot.Timestamp)
		buf.Write(tsBuf[:])
		writeLevels(&buf, r.Snapshot.Bids)
		writeLevels(&buf, r.Snapshot.Asks)
	default: // ExecutionReport
		writeString(&buf, r.OrderID)
		buf.WriteByte(byte(r.Status))
		writeDecimal(&buf, r.Filled)
		writeDecimal(&buf, r.Remain)
		var nBuf [2]byte
		binary.BigEndian.PutUint16(nBuf[:], uint16(len(r.Trades)))
		buf.Write(nBuf[:])
		for _, t := range r.Trades {
			writeTrade(&buf, t)
		}
	}
	return buf.Bytes()
}

func writeLevels(buf *bytes.Buffer, levels []LevelPayload) {
	var nBuf [2]byte
	binary.BigEndian.PutUint16(nBuf[:], uint16(len(levels)))
	buf.Write(nBuf[:])
	for _, lvl := range levels {
		writeDecimal(buf, lvl.Price)
		writeDecimal(buf, lvl.Aggregate)
	}
}

func errorReport(err error) Report {
	return Report{Kind: ErrorReport, Err: fmt.Sprintf("%v", err)}
}
