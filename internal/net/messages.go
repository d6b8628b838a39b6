// Package net implements the wire protocol and TCP server fenrir
// exposes to order-submitting clients: fixed-width big-endian frames
// carrying the five request kinds (plus a heartbeat) and four report
// kinds, read off a
// tomb.v2-supervised accept loop and handed to a worker pool.
package net

import (
	"encoding/binary"
	"errors"

	"github.com/holiman/uint256"

	"fenrir/internal/accounts"
	"fenrir/internal/engine"
)

var (
	ErrInvalidMessageType = errors.New("net: invalid message type")
	ErrMessageTooShort     = errors.New("net: message too short for its type")
)

// MessageType tags the first byte of every client-to-server frame.
type MessageType uint8

const (
	Heartbeat MessageType = iota
	SubmitOrderMsg
	CancelOrderMsg
	DepositMsg
	WithdrawMsg
	GetOrdersMsg
)

// ReportType tags the first byte of every server-to-client frame.
type ReportType uint8

const (
	PlacementReportType ReportType = iota
	TradeReportType
	ErrorReportType
	OrdersReportType
)

const (
	u256Len = 32

	// SubmitOrderMessageLen is the frame length after the 1-byte type tag:
	// owner(32) + side(1) + kind(1) + limit_price(32) + amount_base(32) + max_quote(32).
	SubmitOrderMessageLen = 32 + 1 + 1 + u256Len + u256Len + u256Len
	// CancelOrderMessageLen: owner(32) + order_id(8).
	CancelOrderMessageLen = 32 + 8
	// DepositWithdrawMessageLen: owner(32) + asset(1) + amount(32).
	DepositWithdrawMessageLen = 32 + 1 + u256Len
	// GetOrdersMessageLen: side(1) + cursor_order_id(8) + limit(4) + forward(1).
	GetOrdersMessageLen = 1 + 8 + 4 + 1
)

func putU256(dst []byte, v *uint256.Int) {
	b := v.Bytes32()
	copy(dst, b[:])
}

func getU256(src []byte) *uint256.Int {
	var b [32]byte
	copy(b[:], src)
	return new(uint256.Int).SetBytes32(b[:])
}

// SubmitOrderMessage is the wire form of a submit_order request.
type SubmitOrderMessage struct {
	Owner      engine.ActorID
	Side       engine.Side
	Kind       engine.OrderKind
	LimitPrice *uint256.Int
	AmountBase *uint256.Int
	MaxQuote   *uint256.Int
}

// ToIncomingOrder projects the wire message onto the engine's request
// type. The order id is assigned by the boundary, not carried on the
// wire.
func (m *SubmitOrderMessage) ToIncomingOrder() *engine.IncomingOrder {
	return &engine.IncomingOrder{
		Owner:      m.Owner,
		Side:       m.Side,
		Kind:       m.Kind,
		LimitPrice: m.LimitPrice,
		AmountBase: m.AmountBase,
		MaxQuote:   m.MaxQuote,
	}
}

// Encode serializes the request, big-endian, fixed width, for a
// client to write directly to the wire.
func (m *SubmitOrderMessage) Encode() []byte {
	buf := make([]byte, 1+SubmitOrderMessageLen)
	buf[0] = byte(SubmitOrderMsg)
	copy(buf[1:33], m.Owner[:])
	buf[33] = byte(m.Side)
	buf[34] = byte(m.Kind)
	putU256(buf[35:67], m.LimitPrice)
	putU256(buf[67:99], m.AmountBase)
	putU256(buf[99:131], m.MaxQuote)
	return buf
}

func parseSubmitOrder(body []byte) (*SubmitOrderMessage, error) {
	if len(body) < SubmitOrderMessageLen {
		return nil, ErrMessageTooShort
	}
	m := &SubmitOrderMessage{
		Side:       engine.Side(body[32]),
		Kind:       engine.OrderKind(body[33]),
		LimitPrice: getU256(body[34:66]),
		AmountBase: getU256(body[66:98]),
		MaxQuote:   getU256(body[98:130]),
	}
	copy(m.Owner[:], body[0:32])
	return m, nil
}

// CancelOrderMessage is the wire form of a cancel_order request.
type CancelOrderMessage struct {
	Owner   engine.ActorID
	OrderID engine.OrderID
}

// Encode serializes the request, big-endian, fixed width.
func (m *CancelOrderMessage) Encode() []byte {
	buf := make([]byte, 1+CancelOrderMessageLen)
	buf[0] = byte(CancelOrderMsg)
	copy(buf[1:33], m.Owner[:])
	binary.BigEndian.PutUint64(buf[33:41], m.OrderID)
	return buf
}

func parseCancelOrder(body []byte) (*CancelOrderMessage, error) {
	if len(body) < CancelOrderMessageLen {
		return nil, ErrMessageTooShort
	}
	m := &CancelOrderMessage{OrderID: binary.BigEndian.Uint64(body[32:40])}
	copy(m.Owner[:], body[0:32])
	return m, nil
}

// DepositWithdrawMessage is the wire form of a deposit or withdraw
// request; which one is determined by the enclosing message type.
type DepositWithdrawMessage struct {
	Owner  engine.ActorID
	Asset  accounts.Asset
	Amount *uint256.Int
}

// Encode serializes the request, big-endian, fixed width, tagged with
// typ (DepositMsg or WithdrawMsg — the two share a wire shape).
func (m *DepositWithdrawMessage) Encode(typ MessageType) []byte {
	buf := make([]byte, 1+DepositWithdrawMessageLen)
	buf[0] = byte(typ)
	copy(buf[1:33], m.Owner[:])
	buf[33] = byte(m.Asset)
	putU256(buf[34:66], m.Amount)
	return buf
}

func parseDepositWithdraw(body []byte) (*DepositWithdrawMessage, error) {
	if len(body) < DepositWithdrawMessageLen {
		return nil, ErrMessageTooShort
	}
	m := &DepositWithdrawMessage{
		Asset:  accounts.Asset(body[32]),
		Amount: getU256(body[33:65]),
	}
	copy(m.Owner[:], body[0:32])
	return m, nil
}

// GetOrdersMessage is the wire form of a paginated order-enumeration
// query (§6 Reads): it asks for up to Limit resting orders on Side,
// walking forward (best price, oldest first) or reverse (worst price,
// newest first) from just after Cursor. A zero Cursor starts from the
// appropriate end.
type GetOrdersMessage struct {
	Side    engine.Side
	Cursor  engine.OrderID
	Limit   uint32
	Forward bool
}

// Encode serializes the request, big-endian, fixed width.
func (m *GetOrdersMessage) Encode() []byte {
	buf := make([]byte, 1+GetOrdersMessageLen)
	buf[0] = byte(GetOrdersMsg)
	buf[1] = byte(m.Side)
	binary.BigEndian.PutUint64(buf[2:10], m.Cursor)
	binary.BigEndian.PutUint32(buf[10:14], m.Limit)
	if m.Forward {
		buf[14] = 1
	}
	return buf
}

func parseGetOrders(body []byte) (*GetOrdersMessage, error) {
	if len(body) < GetOrdersMessageLen {
		return nil, ErrMessageTooShort
	}
	return &GetOrdersMessage{
		Side:    engine.Side(body[0]),
		Cursor:  binary.BigEndian.Uint64(body[1:9]),
		Limit:   binary.BigEndian.Uint32(body[9:13]),
		Forward: body[13] != 0,
	}, nil
}

// ParseMessage dissects a received frame into its typed form.
func ParseMessage(frame []byte) (MessageType, any, error) {
	if len(frame) < 1 {
		return 0, nil, ErrMessageTooShort
	}
	typ := MessageType(frame[0])
	body := frame[1:]
	switch typ {
	case Heartbeat:
		return typ, nil, nil
	case SubmitOrderMsg:
		m, err := parseSubmitOrder(body)
		return typ, m, err
	case CancelOrderMsg:
		m, err := parseCancelOrder(body)
		return typ, m, err
	case DepositMsg, WithdrawMsg:
		m, err := parseDepositWithdraw(body)
		return typ, m, err
	case GetOrdersMsg:
		m, err := parseGetOrders(body)
		return typ, m, err
	default:
		return typ, nil, ErrInvalidMessageType
	}
}

// TradeReport is the wire form of one fill, addressed to both sides of
// the trade independently by the caller.
type TradeReport struct {
	MakerOrderID engine.OrderID
	TakerOrderID engine.OrderID
	Maker        engine.ActorID
	Taker        engine.ActorID
	Price        *uint256.Int
	AmountBase   *uint256.Int
	AmountQuote  *uint256.Int
}

// Encode serializes the report, big-endian, fixed width.
func (r *TradeReport) Encode() []byte {
	buf := make([]byte, 1+8+8+32+32+u256Len+u256Len+u256Len)
	buf[0] = byte(TradeReportType)
	binary.BigEndian.PutUint64(buf[1:9], r.MakerOrderID)
	binary.BigEndian.PutUint64(buf[9:17], r.TakerOrderID)
	copy(buf[17:49], r.Maker[:])
	copy(buf[49:81], r.Taker[:])
	putU256(buf[81:113], r.Price)
	putU256(buf[113:145], r.AmountBase)
	putU256(buf[145:177], r.AmountQuote)
	return buf
}

// PlacementReport is the wire form of a completed order's final state.
type PlacementReport struct {
	OrderID        engine.OrderID
	Kind           engine.CompletionKind
	RemainingBase  *uint256.Int
	RemainingQuote *uint256.Int
}

// Encode serializes the report, big-endian, fixed width.
func (r *PlacementReport) Encode() []byte {
	remBase := r.RemainingBase
	if remBase == nil {
		remBase = new(uint256.Int)
	}
	remQuote := r.RemainingQuote
	if remQuote == nil {
		remQuote = new(uint256.Int)
	}

	buf := make([]byte, 1+8+1+u256Len+u256Len)
	buf[0] = byte(PlacementReportType)
	binary.BigEndian.PutUint64(buf[1:9], r.OrderID)
	buf[9] = byte(r.Kind)
	putU256(buf[10:42], remBase)
	putU256(buf[42:74], remQuote)
	return buf
}

// ordersReportEntryLen is one resting order's wire footprint within an
// OrdersReport: order_id(8) + owner(32) + side(1) + price(32) +
// remaining_base(32) + reserved_quote(32).
const ordersReportEntryLen = 8 + 32 + 1 + u256Len + u256Len + u256Len

// OrdersReport is the wire form of a GetOrdersMessage response: a page
// of resting orders plus the cursor to request the next page with.
type OrdersReport struct {
	Orders  []engine.MakerView
	Next    engine.OrderID
	HasMore bool
}

// Encode serializes the report: a 2-byte entry count, that many
// fixed-width entries, then the next cursor and the has-more flag.
// Pages beyond 65535 entries are truncated; GetOrdersMsg limits are
// capped well under that by the server.
func (r *OrdersReport) Encode() []byte {
	n := len(r.Orders)
	if n > 1<<16-1 {
		n = 1<<16 - 1
	}

	buf := make([]byte, 1+2+n*ordersReportEntryLen+8+1)
	buf[0] = byte(OrdersReportType)
	binary.BigEndian.PutUint16(buf[1:3], uint16(n))

	off := 3
	for _, o := range r.Orders[:n] {
		binary.BigEndian.PutUint64(buf[off:off+8], o.ID)
		copy(buf[off+8:off+40], o.Owner[:])
		buf[off+40] = byte(o.Side)
		putU256(buf[off+41:off+73], o.Price)
		putU256(buf[off+73:off+105], o.RemainingBase)
		putU256(buf[off+105:off+137], o.ReservedQuote)
		off += ordersReportEntryLen
	}

	binary.BigEndian.PutUint64(buf[off:off+8], r.Next)
	off += 8
	if r.HasMore {
		buf[off] = 1
	}
	return buf
}

// ErrorReport carries a failed request's message back to its sender.
type ErrorReport struct {
	Message string
}

// Encode serializes the report: a 1-byte type tag, a 2-byte length
// prefix, then the raw message bytes.
func (r *ErrorReport) Encode() []byte {
	msg := []byte(r.Message)
	if len(msg) > 1<<16-1 {
		msg = msg[:1<<16-1]
	}
	buf := make([]byte, 1+2+len(msg))
	buf[0] = byte(ErrorReportType)
	binary.BigEndian.PutUint16(buf[1:3], uint16(len(msg)))
	copy(buf[3:], msg)
	return buf
}

// LowU128 projects a 256-bit value onto its lowest 128 bits, big-endian,
// for ABI boundaries that cannot carry a full uint256. Callers adopting
// this projection are responsible for ensuring the value never exceeds
// 2^128-1; fenrir itself never truncates internally (§6).
func LowU128(v *uint256.Int) [16]byte {
	full := v.Bytes32()
	var low [16]byte
	copy(low[:], full[16:32])
	return low
}
