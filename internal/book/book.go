// Package book is the production, arena-backed implementation of the
// Book contract internal/engine consumes: two btree-ordered price
// ladders (asks ascending, bids descending), each price level an
// intrusive FIFO list of makers, plus an id→handle index for O(1)
// cancel.
package book

import (
	"errors"

	"github.com/holiman/uint256"
	"github.com/tidwall/btree"

	"fenrir/internal/arena"
	"fenrir/internal/engine"
	"fenrir/internal/list"
)

// ErrUnknownOrder is returned by Cancel and PeekOrder when the id is
// not resting in the book.
var ErrUnknownOrder = errors.New("book: order not resting")

// node is the arena-stored element: a maker snapshot threaded into its
// level's intrusive list.
type node = list.Node[engine.MakerView]

// level is one price's FIFO queue. Levels are heap-allocated and
// referenced by pointer from both btrees' comparator and the handle
// index, so mutating orders in place never invalidates a btree entry.
type level struct {
	price  *uint256.Int
	orders list.List[engine.MakerView]
}

// OrderBook is the concrete, mutable order book. It is not safe for
// concurrent use; callers serialize access (see the boundary package).
type OrderBook struct {
	arena *arena.Arena[node]
	bids  *btree.BTreeG[*level] // ordered descending: best = largest
	asks  *btree.BTreeG[*level] // ordered ascending: best = smallest

	// byHandle locates the level owning a given maker handle, so
	// RemoveMaker can detach it from the right intrusive list.
	byHandle map[arena.Index]*level
	// byOrderID is the cancel index: order id to its resting handle.
	byOrderID map[engine.OrderID]arena.Index
}

// New returns an empty order book.
func New() *OrderBook {
	return &OrderBook{
		arena: arena.New[node](),
		bids: btree.NewBTreeG(func(a, b *level) bool {
			return a.price.Gt(b.price)
		}),
		asks: btree.NewBTreeG(func(a, b *level) bool {
			return a.price.Lt(b.price)
		}),
		byHandle:  make(map[arena.Index]*level),
		byOrderID: make(map[engine.OrderID]arena.Index),
	}
}

func (b *OrderBook) ladder(side engine.Side) *btree.BTreeG[*level] {
	if side == engine.Buy {
		return b.bids
	}
	return b.asks
}

func (b *OrderBook) levelAt(side engine.Side, price *uint256.Int) (*level, bool) {
	return b.ladder(side).Get(&level{price: price})
}

// BestPrice implements engine.Book.
func (b *OrderBook) BestPrice(makerSide engine.Side) (*uint256.Int, bool) {
	lvl, ok := b.ladder(makerSide).Min()
	if !ok {
		return nil, false
	}
	return lvl.price, true
}

// NextPrice implements engine.Book: it scans past the pivot in the
// ladder's own ordering (which is already "best to worst" for that
// side) and returns the first strictly-different price after it.
func (b *OrderBook) NextPrice(makerSide engine.Side, price *uint256.Int) (*uint256.Int, bool) {
	tree := b.ladder(makerSide)
	var next *uint256.Int
	tree.Ascend(&level{price: price}, func(item *level) bool {
		if item.price.Eq(price) {
			return true
		}
		next = item.price
		return false
	})
	return next, next != nil
}

// LevelHead implements engine.Book.
func (b *OrderBook) LevelHead(makerSide engine.Side, price *uint256.Int) (engine.Handle, bool) {
	lvl, ok := b.levelAt(makerSide, price)
	if !ok || lvl.orders.Empty() {
		return 0, false
	}
	return lvl.orders.Head, true
}

// NextInLevel implements engine.Book. The intrusive list lets this be
// a direct arena lookup, no level context needed.
func (b *OrderBook) NextInLevel(h engine.Handle) (engine.Handle, bool) {
	n, ok := b.arena.Get(h)
	if !ok {
		return 0, false
	}
	if n.Next == list.None {
		return 0, false
	}
	return n.Next, true
}

// GetMaker implements engine.Book.
func (b *OrderBook) GetMaker(h engine.Handle) (engine.MakerView, bool) {
	n, ok := b.arena.Get(h)
	if !ok {
		return engine.MakerView{}, false
	}
	return n.Value, true
}

// SetMakerRemaining implements engine.Book.
func (b *OrderBook) SetMakerRemaining(h engine.Handle, newRemainingBase *uint256.Int) {
	if n := b.arena.GetPtr(h); n != nil {
		n.Value.RemainingBase = newRemainingBase
	}
}

// SetMakerReservedQuote implements engine.Book.
func (b *OrderBook) SetMakerReservedQuote(h engine.Handle, newReservedQuote *uint256.Int) {
	if n := b.arena.GetPtr(h); n != nil {
		n.Value.ReservedQuote = newReservedQuote
	}
}

// RemoveMaker implements engine.Book: detaches h from its level's
// intrusive list, dropping the level from its ladder once empty, and
// clears both indexes.
func (b *OrderBook) RemoveMaker(h engine.Handle) {
	lvl, ok := b.byHandle[h]
	if !ok {
		return
	}
	maker, _ := b.arena.Get(h)
	lvl.orders.Remove(b.arena, h)
	delete(b.byHandle, h)
	delete(b.byOrderID, maker.Value.ID)

	if lvl.orders.Empty() {
		b.ladder(maker.Value.Side).Delete(lvl)
	}
}

// InsertResting implements engine.Book: promotes a Limit remainder to
// a resting maker, creating its price level on demand.
func (b *OrderBook) InsertResting(o engine.RestingOrder) {
	lvl, ok := b.levelAt(o.Side, o.Price)
	if !ok {
		lvl = &level{price: o.Price, orders: list.New[engine.MakerView]()}
		b.ladder(o.Side).Set(lvl)
	}

	h := lvl.orders.PushBack(b.arena, engine.MakerView{
		ID:            o.ID,
		Owner:         o.Owner,
		Side:          o.Side,
		Price:         o.Price,
		RemainingBase: o.RemainingBase,
		ReservedQuote: o.RemainingQuote,
	})
	b.byHandle[h] = lvl
	b.byOrderID[o.ID] = h
}

// Cancel removes a resting order by id, returning its last-known view
// for refund accounting. It reports ErrUnknownOrder if id is not
// resting.
func (b *OrderBook) Cancel(id engine.OrderID) (engine.MakerView, error) {
	h, ok := b.byOrderID[id]
	if !ok {
		return engine.MakerView{}, ErrUnknownOrder
	}
	maker, _ := b.GetMaker(h)
	b.RemoveMaker(h)
	return maker, nil
}

// PeekOrder reads a resting order by id without mutating the book.
func (b *OrderBook) PeekOrder(id engine.OrderID) (engine.MakerView, error) {
	h, ok := b.byOrderID[id]
	if !ok {
		return engine.MakerView{}, ErrUnknownOrder
	}
	maker, ok := b.GetMaker(h)
	if !ok {
		return engine.MakerView{}, ErrUnknownOrder
	}
	return maker, nil
}

// Depth returns the number of resting price levels on side.
func (b *OrderBook) Depth(side engine.Side) int {
	return b.ladder(side).Len()
}

// firstLevel returns the starting level for a fresh enumeration: the
// best level when forward, the worst level when reverse.
func (b *OrderBook) firstLevel(side engine.Side, forward bool) *level {
	tree := b.ladder(side)
	if forward {
		lvl, ok := tree.Min()
		if !ok {
			return nil
		}
		return lvl
	}
	lvl, ok := tree.Max()
	if !ok {
		return nil
	}
	return lvl
}

// adjacentLevel returns the level one step away from price in side's
// ladder: the next worse level when forward, the next better level
// otherwise. It mirrors NextPrice but walks in either direction and
// returns the level itself rather than just its price.
func (b *OrderBook) adjacentLevel(side engine.Side, price *uint256.Int, forward bool) *level {
	tree := b.ladder(side)
	var found *level
	visit := func(item *level) bool {
		if item.price.Eq(price) {
			return true
		}
		found = item
		return false
	}
	if forward {
		tree.Ascend(&level{price: price}, visit)
	} else {
		tree.Descend(&level{price: price}, visit)
	}
	return found
}

// Orders enumerates resting orders on side in price-time order:
// forward walks best price to worst, oldest order to newest within
// each level; reverse walks the opposite way on both axes. A zero
// cursor starts enumeration from the appropriate end; any other cursor
// resumes immediately after that order id, in whichever direction is
// requested. If the cursor order has since left the book, enumeration
// restarts from the beginning rather than erroring, since the caller
// can no longer be given a position that still exists.
//
// It returns up to limit orders, the id to pass as the next page's
// cursor, and whether further orders remain beyond this page.
func (b *OrderBook) Orders(side engine.Side, cursor engine.OrderID, limit int, forward bool) (page []engine.MakerView, next engine.OrderID, hasMore bool) {
	if limit <= 0 {
		return nil, 0, false
	}

	lvl, handle := b.cursorStart(side, cursor, forward)
	if lvl == nil {
		return nil, 0, false
	}

	for len(page) < limit {
		if handle == list.None {
			adj := b.adjacentLevel(side, lvl.price, forward)
			if adj == nil {
				lvl = nil
				break
			}
			lvl = adj
			if forward {
				handle = lvl.orders.Head
			} else {
				handle = lvl.orders.Tail
			}
			continue
		}

		n, ok := b.arena.Get(handle)
		if !ok {
			handle = list.None
			continue
		}
		page = append(page, n.Value)
		if forward {
			handle = n.Next
		} else {
			handle = n.Prev
		}
	}

	if len(page) == 0 {
		return nil, 0, false
	}

	hasMore = handle != list.None
	if !hasMore && lvl != nil {
		hasMore = b.adjacentLevel(side, lvl.price, forward) != nil
	}
	return page, page[len(page)-1].ID, hasMore
}

// cursorStart resolves the (level, handle) pair enumeration should
// begin at: right after cursor if it still resolves to a resting
// order, otherwise the side's first level in the requested direction.
func (b *OrderBook) cursorStart(side engine.Side, cursor engine.OrderID, forward bool) (*level, engine.Handle) {
	if cursor != 0 {
		if h, ok := b.byOrderID[cursor]; ok {
			if lvl, ok := b.byHandle[h]; ok {
				if n, ok := b.arena.Get(h); ok {
					if forward {
						return lvl, n.Next
					}
					return lvl, n.Prev
				}
			}
		}
	}

	lvl := b.firstLevel(side, forward)
	if lvl == nil {
		return nil, list.None
	}
	if forward {
		return lvl, lvl.orders.Head
	}
	return lvl, lvl.orders.Tail
}

var _ engine.Book = (*OrderBook)(nil)
