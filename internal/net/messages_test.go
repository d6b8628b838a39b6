package net

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fenrir/internal/accounts"
	"fenrir/internal/engine"
)

func owner(b byte) engine.ActorID {
	var a engine.ActorID
	a[31] = b
	return a
}

func TestSubmitOrderMessageRoundTrip(t *testing.T) {
	want := &SubmitOrderMessage{
		Owner:      owner(7),
		Side:       engine.Sell,
		Kind:       engine.ImmediateOrCancel,
		LimitPrice: uint256.NewInt(42),
		AmountBase: uint256.NewInt(100),
		MaxQuote:   uint256.NewInt(0),
	}

	typ, body, err := ParseMessage(want.Encode())
	require.NoError(t, err)
	assert.Equal(t, SubmitOrderMsg, typ)

	got := body.(*SubmitOrderMessage)
	assert.Equal(t, want.Owner, got.Owner)
	assert.Equal(t, want.Side, got.Side)
	assert.Equal(t, want.Kind, got.Kind)
	assert.True(t, got.LimitPrice.Eq(want.LimitPrice))
	assert.True(t, got.AmountBase.Eq(want.AmountBase))
	assert.True(t, got.MaxQuote.Eq(want.MaxQuote))
}

func TestCancelOrderMessageRoundTrip(t *testing.T) {
	want := &CancelOrderMessage{Owner: owner(3), OrderID: 9001}

	typ, body, err := ParseMessage(want.Encode())
	require.NoError(t, err)
	assert.Equal(t, CancelOrderMsg, typ)

	got := body.(*CancelOrderMessage)
	assert.Equal(t, want.Owner, got.Owner)
	assert.Equal(t, want.OrderID, got.OrderID)
}

func TestDepositWithdrawMessageRoundTrip(t *testing.T) {
	want := &DepositWithdrawMessage{Owner: owner(5), Asset: accounts.Quote, Amount: uint256.NewInt(777)}

	typ, body, err := ParseMessage(want.Encode(WithdrawMsg))
	require.NoError(t, err)
	assert.Equal(t, WithdrawMsg, typ)

	got := body.(*DepositWithdrawMessage)
	assert.Equal(t, want.Owner, got.Owner)
	assert.Equal(t, want.Asset, got.Asset)
	assert.True(t, got.Amount.Eq(want.Amount))
}

func TestParseMessageRejectsEmptyFrame(t *testing.T) {
	_, _, err := ParseMessage(nil)
	assert.ErrorIs(t, err, ErrMessageTooShort)
}

func TestParseMessageRejectsUnknownType(t *testing.T) {
	_, _, err := ParseMessage([]byte{0xFF})
	assert.ErrorIs(t, err, ErrInvalidMessageType)
}

func TestParseMessageRejectsTruncatedSubmitOrder(t *testing.T) {
	frame := (&SubmitOrderMessage{
		Owner:      owner(1),
		LimitPrice: uint256.NewInt(1),
		AmountBase: uint256.NewInt(1),
		MaxQuote:   uint256.NewInt(1),
	}).Encode()

	_, _, err := ParseMessage(frame[:len(frame)-1])
	assert.ErrorIs(t, err, ErrMessageTooShort)
}

func TestHeartbeatParsesWithNoBody(t *testing.T) {
	typ, body, err := ParseMessage([]byte{byte(Heartbeat)})
	require.NoError(t, err)
	assert.Equal(t, Heartbeat, typ)
	assert.Nil(t, body)
}

func TestLowU128TakesTheLowestSixteenBytes(t *testing.T) {
	v := new(uint256.Int).Lsh(uint256.NewInt(1), 20)
	low := LowU128(v)
	// 1<<20 fits well within the low 128 bits, so it is preserved exactly.
	got := new(uint256.Int).SetBytes(low[:])
	assert.True(t, got.Eq(v))
}

func TestGetOrdersMessageRoundTrip(t *testing.T) {
	want := &GetOrdersMessage{Side: engine.Sell, Cursor: 42, Limit: 50, Forward: true}

	typ, body, err := ParseMessage(want.Encode())
	require.NoError(t, err)
	assert.Equal(t, GetOrdersMsg, typ)

	got := body.(*GetOrdersMessage)
	assert.Equal(t, want.Side, got.Side)
	assert.Equal(t, want.Cursor, got.Cursor)
	assert.Equal(t, want.Limit, got.Limit)
	assert.Equal(t, want.Forward, got.Forward)
}

func TestOrdersReportEncodesEntriesThenCursorThenHasMore(t *testing.T) {
	r := OrdersReport{
		Orders: []engine.MakerView{
			{ID: 1, Owner: owner(1), Side: engine.Sell, Price: uint256.NewInt(10), RemainingBase: uint256.NewInt(5), ReservedQuote: uint256.NewInt(0)},
			{ID: 2, Owner: owner(2), Side: engine.Sell, Price: uint256.NewInt(12), RemainingBase: uint256.NewInt(3), ReservedQuote: uint256.NewInt(0)},
		},
		Next:    2,
		HasMore: true,
	}

	frame := r.Encode()
	require.Equal(t, byte(OrdersReportType), frame[0])

	count := uint16(frame[1])<<8 | uint16(frame[2])
	assert.Equal(t, uint16(2), count)
	assert.Equal(t, 1+2+2*ordersReportEntryLen+8+1, len(frame))

	firstID := frame[3 : 3+8]
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0, 1}, firstID)
	assert.Equal(t, byte(1), frame[len(frame)-1], "has_more flag is the final byte")
}

func TestTradeReportEncodeHasTheExpectedTag(t *testing.T) {
	r := TradeReport{
		MakerOrderID: 1,
		TakerOrderID: 2,
		Maker:        owner(1),
		Taker:        owner(2),
		Price:        uint256.NewInt(5),
		AmountBase:   uint256.NewInt(10),
		AmountQuote:  uint256.NewInt(50),
	}
	frame := r.Encode()
	require.NotEmpty(t, frame)
	assert.Equal(t, byte(TradeReportType), frame[0])
}
