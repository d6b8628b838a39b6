package engine

import "github.com/holiman/uint256"

// Book is the capability set the matching engine consumes. The engine
// holds no references of its own; every mutation it performs goes
// through this contract. Two implementations exist: internal/book's
// arena-backed production OrderBook, and an in-package naiveBook used
// only by tests — Execute's code path is identical against both.
type Book interface {
	// BestPrice returns the best price on makerSide: the minimum for
	// asks (Sell), the maximum for bids (Buy).
	BestPrice(makerSide Side) (*uint256.Int, bool)

	// NextPrice returns the next worse price after price on makerSide:
	// ascending for asks, descending for bids. It must strictly advance.
	NextPrice(makerSide Side, price *uint256.Int) (*uint256.Int, bool)

	// LevelHead returns the oldest maker handle at price on makerSide.
	LevelHead(makerSide Side, price *uint256.Int) (Handle, bool)

	// NextInLevel returns the next maker handle within the same price
	// level (FIFO order). It must never return h itself.
	NextInLevel(h Handle) (Handle, bool)

	// GetMaker reads a maker's current fields.
	GetMaker(h Handle) (MakerView, bool)

	// SetMakerRemaining updates remaining_base after a partial fill.
	SetMakerRemaining(h Handle, newRemainingBase *uint256.Int)

	// SetMakerReservedQuote updates reserved_quote for a Buy maker.
	SetMakerReservedQuote(h Handle, newReservedQuote *uint256.Int)

	// RemoveMaker deletes a fully-filled maker from the book.
	RemoveMaker(h Handle)

	// InsertResting promotes a Limit remainder to a resting maker.
	InsertResting(o RestingOrder)
}
