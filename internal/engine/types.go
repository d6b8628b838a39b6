// Package engine implements the pure, book-polymorphic matching
// algorithm: Execute consumes a Book contract and an IncomingOrder and
// produces a deterministic ExecutionReport, without ever holding a
// reference to book storage itself.
package engine

import (
	"github.com/holiman/uint256"

	"fenrir/internal/arena"
)

// OrderID is allocated monotonically by the boundary and never reused.
type OrderID = uint64

// ActorID is an opaque 32-byte account identifier.
type ActorID [32]byte

// Side is one of Buy or Sell.
type Side uint8

const (
	Buy Side = iota
	Sell
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

func (s Side) String() string {
	if s == Buy {
		return "buy"
	}
	return "sell"
}

// OrderKind distinguishes the taker's execution semantics.
type OrderKind uint8

const (
	Limit OrderKind = iota
	Market
	ImmediateOrCancel
	FillOrKill
)

func (k OrderKind) String() string {
	switch k {
	case Limit:
		return "limit"
	case Market:
		return "market"
	case ImmediateOrCancel:
		return "ioc"
	case FillOrKill:
		return "fok"
	default:
		return "unknown"
	}
}

// IncomingOrder is the taker's request. It is immutable during Execute.
type IncomingOrder struct {
	ID         OrderID
	Owner      ActorID
	Side       Side
	Kind       OrderKind
	LimitPrice *uint256.Int
	AmountBase *uint256.Int
	// MaxQuote is the strict budget for a Market Buy; zero otherwise.
	MaxQuote *uint256.Int
}

// Handle identifies a maker's slot within whichever Book implementation
// is in use. It is opaque to the engine: it is only ever obtained from,
// and passed back to, the Book it was issued by.
type Handle = arena.Index

// MakerView is a read-only snapshot of a resting order, as surfaced by
// the Book contract.
type MakerView struct {
	ID            OrderID
	Owner         ActorID
	Side          Side
	Price         *uint256.Int
	RemainingBase *uint256.Int
	// ReservedQuote is nonzero iff Side == Buy.
	ReservedQuote *uint256.Int
}

// RestingOrder is the remainder of a Limit order that the engine asks
// the Book to insert.
type RestingOrder struct {
	ID             OrderID
	Owner          ActorID
	Side           Side
	Price          *uint256.Int
	RemainingBase  *uint256.Int
	RemainingQuote *uint256.Int
}

// Trade is one fill produced by matching.
type Trade struct {
	MakerOrderID OrderID
	TakerOrderID OrderID
	Maker        ActorID
	Taker        ActorID
	Price        *uint256.Int
	AmountBase   *uint256.Int
	AmountQuote  *uint256.Int
}

// Limits bounds the work Execute and the previews may perform.
type Limits struct {
	MaxTrades       uint32
	MaxPreviewScans uint32
}

// CompletionKind tags how an order finished.
type CompletionKind uint8

const (
	// Filled means remaining_base reached zero.
	Filled CompletionKind = iota
	// Rejected means a FOK precheck failed; no book mutation occurred.
	Rejected
	// Cancelled means a Market or IOC remainder was discarded.
	Cancelled
	// Placed means a Limit remainder was promoted to a resting maker.
	Placed
)

func (c CompletionKind) String() string {
	switch c {
	case Filled:
		return "filled"
	case Rejected:
		return "rejected"
	case Cancelled:
		return "cancelled"
	case Placed:
		return "placed"
	default:
		return "unknown"
	}
}

// Completion is a tagged variant: only the fields relevant to Kind are
// populated.
type Completion struct {
	Kind CompletionKind
	// RemainingBase is set for Cancelled and Placed.
	RemainingBase *uint256.Int
	// RemainingQuote is set for Placed (zero for a Placed Sell).
	RemainingQuote *uint256.Int
}

// ExecutionReport is the output of Execute.
type ExecutionReport struct {
	Trades     []Trade
	Completion Completion
}
