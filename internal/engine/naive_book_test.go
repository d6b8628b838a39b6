package engine

import (
	"github.com/holiman/uint256"

	"fenrir/internal/arena"
)

// naiveBook is a minimal, deliberately non-arena Book implementation
// used only to prove that Execute is book-polymorphic (Design Notes,
// §9): the engine's behavior must be identical whether it runs against
// this naive map+slice book or the production arena-backed one in
// internal/book.
type naiveBook struct {
	// bids/asks map a price (by hex key) to its FIFO queue of handles.
	bids map[string][]arena.Index
	asks map[string][]arena.Index

	// ptrs is the source of truth for maker data, keyed by handle.
	ptrs map[arena.Index]*MakerView
	// loc remembers which (side, price) a handle currently sits in.
	loc map[arena.Index]naiveLoc

	next arena.Index
}

type naiveLoc struct {
	side  Side
	price *uint256.Int
}

func newNaiveBook() *naiveBook {
	return &naiveBook{
		bids: make(map[string][]arena.Index),
		asks: make(map[string][]arena.Index),
		ptrs: make(map[arena.Index]*MakerView),
		loc:  make(map[arena.Index]naiveLoc),
	}
}

func (b *naiveBook) levels(side Side) map[string][]arena.Index {
	if side == Buy {
		return b.bids
	}
	return b.asks
}

// sortedPrices returns the distinct non-empty price levels on side,
// ascending.
func (b *naiveBook) sortedPrices(side Side) []*uint256.Int {
	levels := b.levels(side)
	var prices []*uint256.Int
	for _, q := range levels {
		if len(q) == 0 {
			continue
		}
		prices = append(prices, b.ptrs[q[0]].Price)
	}
	for i := 1; i < len(prices); i++ {
		for j := i; j > 0 && prices[j].Lt(prices[j-1]); j-- {
			prices[j], prices[j-1] = prices[j-1], prices[j]
		}
	}
	return prices
}

func (b *naiveBook) pushMaker(m MakerView) arena.Index {
	h := b.next
	b.next++
	mv := m
	b.ptrs[h] = &mv
	b.loc[h] = naiveLoc{side: m.Side, price: m.Price}
	key := m.Price.Hex()
	levels := b.levels(m.Side)
	levels[key] = append(levels[key], h)
	return h
}

func (b *naiveBook) BestPrice(makerSide Side) (*uint256.Int, bool) {
	prices := b.sortedPrices(makerSide)
	if len(prices) == 0 {
		return nil, false
	}
	if makerSide == Buy {
		return prices[len(prices)-1], true
	}
	return prices[0], true
}

func (b *naiveBook) NextPrice(makerSide Side, price *uint256.Int) (*uint256.Int, bool) {
	prices := b.sortedPrices(makerSide)
	if makerSide == Buy {
		var best *uint256.Int
		for _, p := range prices {
			if p.Lt(price) && (best == nil || p.Gt(best)) {
				best = p
			}
		}
		return best, best != nil
	}
	var best *uint256.Int
	for _, p := range prices {
		if p.Gt(price) && (best == nil || p.Lt(best)) {
			best = p
		}
	}
	return best, best != nil
}

func (b *naiveBook) LevelHead(makerSide Side, price *uint256.Int) (Handle, bool) {
	q := b.levels(makerSide)[price.Hex()]
	if len(q) == 0 {
		return 0, false
	}
	return q[0], true
}

func (b *naiveBook) NextInLevel(h Handle) (Handle, bool) {
	loc, ok := b.loc[h]
	if !ok {
		return 0, false
	}
	q := b.levels(loc.side)[loc.price.Hex()]
	for i, cur := range q {
		if cur == h {
			if i+1 < len(q) {
				return q[i+1], true
			}
			return 0, false
		}
	}
	return 0, false
}

func (b *naiveBook) GetMaker(h Handle) (MakerView, bool) {
	m, ok := b.ptrs[h]
	if !ok {
		return MakerView{}, false
	}
	return *m, true
}

func (b *naiveBook) SetMakerRemaining(h Handle, newRemainingBase *uint256.Int) {
	if m, ok := b.ptrs[h]; ok {
		m.RemainingBase = newRemainingBase
	}
}

func (b *naiveBook) SetMakerReservedQuote(h Handle, newReservedQuote *uint256.Int) {
	if m, ok := b.ptrs[h]; ok {
		m.ReservedQuote = newReservedQuote
	}
}

func (b *naiveBook) RemoveMaker(h Handle) {
	loc, ok := b.loc[h]
	if !ok {
		return
	}
	key := loc.price.Hex()
	levels := b.levels(loc.side)
	q := levels[key]
	for i, cur := range q {
		if cur == h {
			q = append(q[:i], q[i+1:]...)
			break
		}
	}
	if len(q) == 0 {
		delete(levels, key)
	} else {
		levels[key] = q
	}
	delete(b.ptrs, h)
	delete(b.loc, h)
}

func (b *naiveBook) InsertResting(o RestingOrder) {
	b.pushMaker(MakerView{
		ID:            o.ID,
		Owner:         o.Owner,
		Side:          o.Side,
		Price:         o.Price,
		RemainingBase: o.RemainingBase,
		ReservedQuote: o.RemainingQuote,
	})
}

var _ Book = (*naiveBook)(nil)
