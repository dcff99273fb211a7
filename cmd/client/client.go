package main

import (
	"bytes"
	"encoding/binary"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"strings"

	"github.com/shopspring/decimal"

	"ember/internal/common"
	embernet "ember/internal/net"
)

func main() {
	serverAddr := flag.String("server", "127.0.0.1:9001", "address of the matching engine gateway")
	action := flag.String("action", "place", "action to perform: ['place', 'cancel', 'snapshot']")

	symbol := flag.String("symbol", "BTC-USD", "trading symbol")
	sideStr := flag.String("side", "buy", "order side: 'buy' or 'sell'")
	typeStr := flag.String("type", "limit", "order type: 'limit', 'market', 'ioc', or 'fok'")
	priceStr := flag.String("price", "", "limit price, required for 'limit', 'ioc', and 'fok'")
	qtyStr := flag.String("qty", "1", "order quantity")
	orderID := flag.String("order-id", "", "client-assigned order id, required for 'place' and 'cancel'")

	depth := flag.Int("depth", 10, "number of price levels to request for 'snapshot'")

	flag.Parse()

	if *orderID == "" && *action != "snapshot" {
		fmt.Println("Error: -order-id is required.")
		flag.Usage()
		os.Exit(1)
	}

	conn, err := net.Dial("tcp", *serverAddr)
	if err != nil {
		log.Fatalf("failed to connect to gateway at %s: %v", *serverAddr, err)
	}
	defer conn.Close()
	fmt.Printf("connected to %s\n", *serverAddr)

	go readReports(conn)

	switch strings.ToLower(*action) {
	case "place":
		msg, err := buildNewOrder(*orderID, *symbol, *sideStr, *typeStr, *qtyStr, *priceStr)
		if err != nil {
			log.Fatalf("invalid order: %v", err)
		}
		if err := send(conn, msg.serialize()); err != nil {
			log.Fatalf("failed to send order: %v", err)
		}
		fmt.Printf("-> sent %s %s order for %s %s @ %s\n", strings.ToUpper(*sideStr), strings.ToUpper(*typeStr), *qtyStr, *symbol, *priceStr)

	case "cancel":
		if err := send(conn, cancelBytes(*symbol, *orderID)); err != nil {
			log.Fatalf("failed to send cancel: %v", err)
		}
		fmt.Printf("-> sent cancel for order %s\n", *orderID)

	case "snapshot":
		if err := send(conn, snapshotBytes(*symbol, uint16(*depth))); err != nil {
			log.Fatalf("failed to send snapshot request: %v", err)
		}
		fmt.Printf("-> requested snapshot of %s (depth %d)\n", *symbol, *depth)

	default:
		log.Fatalf("unknown action: %s", *action)
	}

	fmt.Println("\nlistening for reports... (press Ctrl+C to exit)")
	select {}
}

func send(conn net.Conn, buf []byte) error {
	_, err := conn.Write(buf)
	return err
}

// newOrderWire mirrors embernet.NewOrderMessage's wire layout. internal/net
// keeps serialize() unexported since only the gateway's own parseMessage
// needs to round-trip it; the client frames the same bytes independently,
// the way the teacher's cmd/client.go built its own header buffers rather
// than reaching into internal/net for private helpers.
type newOrderWire struct {
	orderID  string
	symbol   string
	side     common.Side
	typ      common.OrderType
	quantity decimal.Decimal
	hasPrice bool
	price    decimal.Decimal
}

func (m newOrderWire) serialize() []byte {
	var buf bytes.Buffer
	buf.WriteByte(byte(embernet.NewOrder))
	writeString(&buf, m.orderID)
	writeString(&buf, m.symbol)
	buf.WriteByte(byte(m.side))
	buf.WriteByte(byte(m.typ))
	writeString(&buf, m.quantity.String())
	if m.hasPrice {
		buf.WriteByte(1)
		writeString(&buf, m.price.String())
	} else {
		buf.WriteByte(0)
	}
	return buf.Bytes()
}

func cancelBytes(symbol, orderID string) []byte {
	var buf bytes.Buffer
	buf.WriteByte(byte(embernet.CancelOrder))
	writeString(&buf, symbol)
	writeString(&buf, orderID)
	return buf.Bytes()
}

func snapshotBytes(symbol string, depth uint16) []byte {
	var buf bytes.Buffer
	buf.WriteByte(byte(embernet.SnapshotRequest))
	writeString(&buf, symbol)
	var depthBuf [2]byte
	binary.BigEndian.PutUint16(depthBuf[:], depth)
	buf.Write(depthBuf[:])
	return buf.Bytes()
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
		return "", io.ErrUnexpectedEOF
	}
	n := int(binary.BigEndian.Uint16(lenBuf[:]))
	strBuf := make([]byte, n)
	if n > 0 {
		if _, err := r.Read(strBuf); err != nil {
			return "", io.ErrUnexpectedEOF
		}
	}
	return string(strBuf), nil
}

func buildNewOrder(orderID, symbol, sideStr, typeStr, qtyStr, priceStr string) (newOrderWire, error) {
	side := common.Buy
	if strings.ToLower(sideStr) == "sell" {
		side = common.Sell
	}

	var typ common.OrderType
	switch strings.ToLower(typeStr) {
	case "market":
		typ = common.Market
	case "ioc":
		typ = common.IOC
	case "fok":
		typ = common.FOK
	default:
		typ = common.Limit
	}

	qty, err := decimal.NewFromString(qtyStr)
	if err != nil {
		return newOrderWire{}, fmt.Errorf("invalid quantity %q: %w", qtyStr, err)
	}

	m := newOrderWire{orderID: orderID, symbol: symbol, side: side, typ: typ, quantity: qty}
	if typ.HasPrice() {
		if priceStr == "" {
			return newOrderWire{}, fmt.Errorf("order type %s requires -price", typ)
		}
		price, err := decimal.NewFromString(priceStr)
		if err != nil {
			return newOrderWire{}, fmt.Errorf("invalid price %q: %w", priceStr, err)
		}
		m.hasPrice = true
		m.price = price
	}
	return m, nil
}

// readReports drains Report frames from the gateway and prints a summary of
// each. Framing matches embernet.Report.Serialize: a one-byte Kind followed
// by a kind-specific body with no outer length prefix, so a single Read()
// may return one or several frames back to back; this client only handles
// the common case of one frame per Read(), matching the teacher's client.
func readReports(conn net.Conn) {
	buf := make([]byte, 8192)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			if err != io.EOF {
				log.Printf("connection lost: %v", err)
			}
			os.Exit(0)
		}
		printReport(buf[:n])
	}
}

func printReport(frame []byte) {
	if len(frame) < 1 {
		return
	}
	r := bytes.NewReader(frame[1:])
	switch embernet.ReportType(frame[0]) {
	case embernet.ErrorReport:
		errStr, _ := readString(r)
		fmt.Printf("\n[ERROR] %s\n", errStr)
	case embernet.SnapshotReport:
		symbol, _ := readString(r)
		var tsBuf [8]byte
		r.Read(tsBuf[:])
		fmt.Printf("\n[SNAPSHOT] %s\n", symbol)
	default:
		orderID, _ := readString(r)
		statusByte, _ := r.ReadByte()
		fmt.Printf("\n[EXECUTION] order %s status=%s\n", orderID, common.Status(statusByte))
	}
}
