package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"net"
	"os"
	"strings"

	"github.com/holiman/uint256"
	"github.com/spf13/pflag"

	"fenrir/internal/accounts"
	"fenrir/internal/engine"
	fenrirNet "fenrir/internal/net"
)

func main() {
	serverAddr := pflag.String("server", "127.0.0.1:9001", "Address of the fenrir server")
	owner := pflag.String("owner", "", "Owner actor id, as 64 hex characters (compulsory)")
	action := pflag.String("action", "submit", "Action: submit, cancel, deposit, withdraw, orders")

	sideStr := pflag.String("side", "buy", "Order side: buy or sell")
	kindStr := pflag.String("kind", "limit", "Order kind: limit, market, ioc, fok")
	price := pflag.String("price", "0", "Limit price, as a decimal string (ignored for market orders)")
	amountBase := pflag.String("amount_base", "0", "Base amount, as a decimal string")
	maxQuote := pflag.String("max_quote", "0", "Max quote spend, required only for a market buy")

	orderID := pflag.Uint64("order_id", 0, "Order id, required for cancel")

	assetStr := pflag.String("asset", "base", "Asset for deposit/withdraw: base or quote")
	amount := pflag.String("amount", "0", "Amount, as a decimal string, for deposit/withdraw")

	ordersCursor := pflag.Uint64("cursor", 0, "Resume enumeration after this order id, for the orders action")
	ordersLimit := pflag.Uint32("limit", 100, "Page size, for the orders action")
	ordersReverse := pflag.Bool("reverse", false, "Walk worst price to best, newest first, for the orders action")

	pflag.Parse()

	if *owner == "" {
		fmt.Fprintln(os.Stderr, "fenrir-client: -owner is required")
		os.Exit(1)
	}
	ownerID, err := parseActorID(*owner)
	if err != nil {
		fmt.Fprintln(os.Stderr, "fenrir-client: invalid owner:", err)
		os.Exit(1)
	}

	conn, err := net.Dial("tcp", *serverAddr)
	if err != nil {
		fmt.Fprintln(os.Stderr, "fenrir-client: failed to connect:", err)
		os.Exit(1)
	}
	defer conn.Close()

	go readReports(conn)

	switch strings.ToLower(*action) {
	case "submit":
		side := engine.Buy
		if strings.ToLower(*sideStr) == "sell" {
			side = engine.Sell
		}
		kind, err := parseKind(*kindStr)
		if err != nil {
			fmt.Fprintln(os.Stderr, "fenrir-client:", err)
			os.Exit(1)
		}
		msg := fenrirNet.SubmitOrderMessage{
			Owner:      ownerID,
			Side:       side,
			Kind:       kind,
			LimitPrice: parseDecimal(*price),
			AmountBase: parseDecimal(*amountBase),
			MaxQuote:   parseDecimal(*maxQuote),
		}
		if err := submitOrder(conn, msg); err != nil {
			fmt.Fprintln(os.Stderr, "fenrir-client: submit failed:", err)
			os.Exit(1)
		}
		fmt.Printf("-> submitted %s %s order, amount_base=%s\n", sideName(side), *kindStr, *amountBase)

	case "cancel":
		if *orderID == 0 {
			fmt.Fprintln(os.Stderr, "fenrir-client: -order_id is required for cancel")
			os.Exit(1)
		}
		if err := cancelOrder(conn, ownerID, *orderID); err != nil {
			fmt.Fprintln(os.Stderr, "fenrir-client: cancel failed:", err)
			os.Exit(1)
		}
		fmt.Printf("-> cancel requested for order %d\n", *orderID)

	case "deposit", "withdraw":
		asset := accounts.Base
		if strings.ToLower(*assetStr) == "quote" {
			asset = accounts.Quote
		}
		typ := fenrirNet.DepositMsg
		if strings.ToLower(*action) == "withdraw" {
			typ = fenrirNet.WithdrawMsg
		}
		if err := depositOrWithdraw(conn, typ, ownerID, asset, parseDecimal(*amount)); err != nil {
			fmt.Fprintln(os.Stderr, "fenrir-client:", *action, "failed:", err)
			os.Exit(1)
		}
		fmt.Printf("-> %s sent for %s %s\n", *action, *amount, asset)

	case "orders":
		side := engine.Buy
		if strings.ToLower(*sideStr) == "sell" {
			side = engine.Sell
		}
		if err := getOrders(conn, side, *ordersCursor, *ordersLimit, !*ordersReverse); err != nil {
			fmt.Fprintln(os.Stderr, "fenrir-client: orders query failed:", err)
			os.Exit(1)
		}
		fmt.Printf("-> orders query sent for %s side\n", sideName(side))

	default:
		fmt.Fprintln(os.Stderr, "fenrir-client: unknown action", *action)
		os.Exit(1)
	}

	fmt.Println("listening for reports, press ctrl+c to exit")
	select {}
}

func parseKind(s string) (engine.OrderKind, error) {
	switch strings.ToLower(s) {
	case "limit":
		return engine.Limit, nil
	case "market":
		return engine.Market, nil
	case "ioc":
		return engine.ImmediateOrCancel, nil
	case "fok":
		return engine.FillOrKill, nil
	default:
		return 0, fmt.Errorf("unknown order kind %q", s)
	}
}

func sideName(s engine.Side) string {
	if s == engine.Sell {
		return "sell"
	}
	return "buy"
}

// parseActorID accepts a 64-character hex string (with or without a
// 0x prefix) naming the full 32-byte actor id.
func parseActorID(s string) (engine.ActorID, error) {
	var id engine.ActorID
	s = strings.TrimPrefix(s, "0x")
	raw, err := hex.DecodeString(s)
	if err != nil {
		return id, err
	}
	if len(raw) > len(id) {
		return id, fmt.Errorf("actor id too long: %d bytes", len(raw))
	}
	copy(id[len(id)-len(raw):], raw)
	return id, nil
}

// parseDecimal parses a base-10 integer string as a raw wire value;
// callers are responsible for already having it in fixed-point units
// (multiplied by fixedpoint.Precision). A malformed string parses to
// zero, which the server's validation layer rejects rather than this
// client crashing on it.
func parseDecimal(s string) *uint256.Int {
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return new(uint256.Int)
	}
	return v
}

func submitOrder(conn net.Conn, msg fenrirNet.SubmitOrderMessage) error {
	_, err := conn.Write(msg.Encode())
	return err
}

func cancelOrder(conn net.Conn, owner engine.ActorID, orderID engine.OrderID) error {
	msg := fenrirNet.CancelOrderMessage{Owner: owner, OrderID: orderID}
	_, err := conn.Write(msg.Encode())
	return err
}

func depositOrWithdraw(conn net.Conn, typ fenrirNet.MessageType, owner engine.ActorID, asset accounts.Asset, amount *uint256.Int) error {
	msg := fenrirNet.DepositWithdrawMessage{Owner: owner, Asset: asset, Amount: amount}
	_, err := conn.Write(msg.Encode(typ))
	return err
}

func getOrders(conn net.Conn, side engine.Side, cursor uint64, limit uint32, forward bool) error {
	msg := fenrirNet.GetOrdersMessage{Side: side, Cursor: cursor, Limit: limit, Forward: forward}
	_, err := conn.Write(msg.Encode())
	return err
}

func readReports(conn net.Conn) {
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			if err != io.EOF {
				fmt.Fprintln(os.Stderr, "fenrir-client: connection lost:", err)
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
	switch fenrirNet.ReportType(frame[0]) {
	case fenrirNet.TradeReportType:
		fmt.Println("[trade]", hex.EncodeToString(frame[1:]))
	case fenrirNet.PlacementReportType:
		fmt.Println("[placement]", hex.EncodeToString(frame[1:]))
	case fenrirNet.ErrorReportType:
		if len(frame) >= 3 {
			fmt.Println("[error]", string(frame[3:]))
		}
	case fenrirNet.OrdersReportType:
		fmt.Println("[orders]", hex.EncodeToString(frame[1:]))
	}
}
