// Package accounts is the free/locked balance ledger the boundary
// drives around every matching call: it locks taker funds before
// internal/engine.Execute runs, and settles credits/refunds from the
// resulting report afterwards.
package accounts

import (
	"errors"
	"fmt"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"fenrir/internal/engine"
	"fenrir/internal/fixedpoint"
)

// Asset distinguishes the two legs of a market.
type Asset uint8

const (
	Base Asset = iota
	Quote
)

func (a Asset) String() string {
	if a == Base {
		return "base"
	}
	return "quote"
}

// ErrInsufficientBalance is returned by Withdraw/Lock when free balance
// cannot cover the requested amount.
var ErrInsufficientBalance = errors.New("accounts: insufficient free balance")

// ErrUnknownCompletion guards the settlement switch against a
// CompletionKind the ledger was never taught to refund.
var ErrUnknownCompletion = errors.New("accounts: unknown completion kind")

type balance struct {
	free   *uint256.Int
	locked *uint256.Int
}

func newBalance() *balance {
	return &balance{free: new(uint256.Int), locked: new(uint256.Int)}
}

// Ledger is the dual free/locked balance ledger, keyed by (account,
// asset). It is not safe for concurrent use; the boundary serializes
// all access per the single-owner concurrency model.
type Ledger struct {
	balances map[engine.ActorID]map[Asset]*balance
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{
		balances: make(map[engine.ActorID]map[Asset]*balance),
	}
}

func (l *Ledger) entry(who engine.ActorID, asset Asset) *balance {
	assets, ok := l.balances[who]
	if !ok {
		assets = make(map[Asset]*balance)
		l.balances[who] = assets
	}
	b, ok := assets[asset]
	if !ok {
		b = newBalance()
		assets[asset] = b
	}
	return b
}

// BalanceOf reports who's free and locked balance for asset.
func (l *Ledger) BalanceOf(who engine.ActorID, asset Asset) (free, locked *uint256.Int) {
	b := l.entry(who, asset)
	return new(uint256.Int).Set(b.free), new(uint256.Int).Set(b.locked)
}

// Address projects an ActorID onto its low 20 bytes as an Ethereum-style
// address, for logging and wire-level display only; the ledger itself
// keys exclusively by the full 32-byte ActorID.
func Address(who engine.ActorID) ethcommon.Address {
	var addr ethcommon.Address
	copy(addr[:], who[12:])
	return addr
}

// Deposit credits free balance. Amounts of zero are a no-op.
func (l *Ledger) Deposit(who engine.ActorID, asset Asset, amount *uint256.Int) {
	if amount.IsZero() {
		return
	}
	b := l.entry(who, asset)
	b.free = new(uint256.Int).Add(b.free, amount)
}

// Withdraw debits free balance, failing if it would go negative.
func (l *Ledger) Withdraw(who engine.ActorID, asset Asset, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	b := l.entry(who, asset)
	if b.free.Lt(amount) {
		return fmt.Errorf("%w: %s wants %s, has %s", ErrInsufficientBalance, asset, amount, b.free)
	}
	b.free = new(uint256.Int).Sub(b.free, amount)
	return nil
}

// lock moves amount from free to locked.
func (l *Ledger) lock(who engine.ActorID, asset Asset, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	b := l.entry(who, asset)
	if b.free.Lt(amount) {
		return fmt.Errorf("%w: %s wants %s, has %s", ErrInsufficientBalance, asset, amount, b.free)
	}
	b.free = new(uint256.Int).Sub(b.free, amount)
	b.locked = new(uint256.Int).Add(b.locked, amount)
	return nil
}

// Unlock moves amount from locked back to free. Settlement uses it
// internally for every refund; the boundary
// also calls it directly for cancel-path refunds of a resting maker's
// remaining reservation.
func (l *Ledger) Unlock(who engine.ActorID, asset Asset, amount *uint256.Int) {
	l.unlock(who, asset, amount)
}

func (l *Ledger) unlock(who engine.ActorID, asset Asset, amount *uint256.Int) {
	if amount.IsZero() {
		return
	}
	b := l.entry(who, asset)
	b.locked = new(uint256.Int).Sub(b.locked, amount)
	b.free = new(uint256.Int).Add(b.free, amount)
}

// credit adds directly to free, for counterparties whose funds were
// never locked by this call (makers, and the asset the taker receives).
func (l *Ledger) credit(who engine.ActorID, asset Asset, amount *uint256.Int) {
	if amount.IsZero() {
		return
	}
	b := l.entry(who, asset)
	b.free = new(uint256.Int).Add(b.free, amount)
}

// LockTakerFunds reserves the taker's side of order's funds ahead of
// Execute, per §4.7.1: a Sell locks amount_base of Base; a Buy locks
// its ceil-rounded (or, for a Market order, its max_quote) cost of
// Quote. The returned tuple is threaded back into SettleExecution
// unchanged.
func (l *Ledger) LockTakerFunds(order *engine.IncomingOrder) (lockedBase, lockedQuote *uint256.Int, err error) {
	if order.Side == engine.Sell {
		if err := l.lock(order.Owner, Base, order.AmountBase); err != nil {
			return nil, nil, err
		}
		return new(uint256.Int).Set(order.AmountBase), new(uint256.Int), nil
	}

	quote := order.MaxQuote
	if order.Kind != engine.Market {
		quote, err = fixedpoint.QuoteCeil(order.AmountBase, order.LimitPrice)
		if err != nil {
			return nil, nil, err
		}
	}
	if err := l.lock(order.Owner, Quote, quote); err != nil {
		return nil, nil, err
	}
	return new(uint256.Int), new(uint256.Int).Set(quote), nil
}

// SettleExecution applies the credits and refunds a completed Execute
// call implies, per §4.7.2. It must be invoked exactly once per order,
// with the same lock tuple LockTakerFunds produced.
func (l *Ledger) SettleExecution(order *engine.IncomingOrder, report *engine.ExecutionReport, lockedBase, lockedQuote *uint256.Int) error {
	takerSide := order.Side

	takerSpentQuote := new(uint256.Int)

	for _, tr := range report.Trades {
		switch takerSide {
		case engine.Buy:
			takerSpentQuote = new(uint256.Int).Add(takerSpentQuote, tr.AmountQuote)
			l.credit(tr.Taker, Base, tr.AmountBase)
			tb := l.entry(tr.Taker, Quote)
			tb.locked = new(uint256.Int).Sub(tb.locked, tr.AmountQuote)
		case engine.Sell:
			l.credit(tr.Taker, Quote, tr.AmountQuote)
			tb := l.entry(tr.Taker, Base)
			tb.locked = new(uint256.Int).Sub(tb.locked, tr.AmountBase)
		}

		makerSide := takerSide.Opposite()
		switch makerSide {
		case engine.Sell:
			l.credit(tr.Maker, Quote, tr.AmountQuote)
		case engine.Buy:
			l.credit(tr.Maker, Base, tr.AmountBase)
		}
	}

	switch report.Completion.Kind {
	case engine.Rejected:
		l.unlock(order.Owner, Base, lockedBase)
		l.unlock(order.Owner, Quote, lockedQuote)
		return nil

	case engine.Cancelled:
		if takerSide == engine.Sell {
			l.unlock(order.Owner, Base, report.Completion.RemainingBase)
			return nil
		}
		if lockedQuote.Lt(takerSpentQuote) {
			return fmt.Errorf("accounts: cancelled buy refund underflow")
		}
		refund := new(uint256.Int).Sub(lockedQuote, takerSpentQuote)
		l.unlock(order.Owner, Quote, refund)
		return nil

	case engine.Filled:
		if takerSide == engine.Buy {
			if lockedQuote.Lt(takerSpentQuote) {
				return fmt.Errorf("accounts: filled buy refund underflow")
			}
			extra := new(uint256.Int).Sub(lockedQuote, takerSpentQuote)
			l.unlock(order.Owner, Quote, extra)
		}
		return nil

	case engine.Placed:
		if takerSide == engine.Sell {
			return nil
		}
		used := new(uint256.Int).Add(takerSpentQuote, report.Completion.RemainingQuote)
		if lockedQuote.Lt(used) {
			return fmt.Errorf("accounts: placed buy refund underflow")
		}
		extra := new(uint256.Int).Sub(lockedQuote, used)
		l.unlock(order.Owner, Quote, extra)
		return nil

	default:
		return ErrUnknownCompletion
	}
}
