// Package boundary is the single-owner façade the net layer drives:
// it owns the book, the ledger, and order-id allocation, and
// translates the public request surface (submit/cancel/deposit/
// withdraw) into the lock → execute → settle call sequence, logging
// every step.
package boundary

import (
	"context"
	"errors"

	"github.com/holiman/uint256"
	"github.com/rs/zerolog/log"

	"fenrir/internal/accounts"
	"fenrir/internal/book"
	"fenrir/internal/engine"
	"fenrir/internal/metrics"
)

// ErrNotOwner is returned by CancelOrder when the caller does not own
// the order it is acting on.
var ErrNotOwner = errors.New("boundary: caller is not the owner")

// VaultClient models the asynchronous pre-lock/post-commit/compensate
// pattern an on-chain deployment would drive against a paired vault
// program: withdraw debits the local ledger first, then awaits the
// vault's confirmation; on failure the debit is reverted.
type VaultClient interface {
	// Release asks the vault to pay amount of asset out to who. It may
	// block on a cross-program round trip; context governs that wait.
	Release(ctx context.Context, who engine.ActorID, asset accounts.Asset, amount *uint256.Int) error
}

// NoopVaultClient always succeeds without doing anything, for tests
// and for deployments that settle balances purely internally.
type NoopVaultClient struct{}

func (NoopVaultClient) Release(context.Context, engine.ActorID, accounts.Asset, *uint256.Int) error {
	return nil
}

// Boundary is the process-wide owner of the book and the ledger. It is
// not safe for concurrent use: callers serialize requests per the
// single-owner concurrency model.
type Boundary struct {
	Book    *book.OrderBook
	Ledger  *accounts.Ledger
	Limits  engine.Limits
	Vault   VaultClient
	Metrics *metrics.Collectors
	nextID  engine.OrderID
}

// New returns a Boundary with an empty book and ledger. collectors may
// be nil, in which case the boundary runs unobserved.
func New(limits engine.Limits, vault VaultClient, collectors *metrics.Collectors) *Boundary {
	if vault == nil {
		vault = NoopVaultClient{}
	}
	return &Boundary{
		Book:    book.New(),
		Ledger:  accounts.New(),
		Limits:  limits,
		Vault:   vault,
		Metrics: collectors,
		nextID:  1,
	}
}

// depthGauge refreshes the orderbook depth gauge for both sides. It is
// cheap enough to call after every mutating request.
func (b *Boundary) depthGauge() {
	if b.Metrics == nil {
		return
	}
	b.Metrics.OrderbookDepth.WithLabelValues("bid").Set(float64(b.Book.Depth(engine.Buy)))
	b.Metrics.OrderbookDepth.WithLabelValues("ask").Set(float64(b.Book.Depth(engine.Sell)))
}

// allocOrderID allocates the next order id lazily, only once a
// request is known to be worth assigning one to.
func (b *Boundary) allocOrderID() engine.OrderID {
	id := b.nextID
	b.nextID++
	return id
}

// SubmitOrder runs the full lock → execute → settle sequence for a
// new order and returns its id and the engine's report.
func (b *Boundary) SubmitOrder(owner engine.ActorID, side engine.Side, kind engine.OrderKind, limitPrice, amountBase, maxQuote *uint256.Int) (engine.OrderID, engine.ExecutionReport, error) {
	order := &engine.IncomingOrder{
		Owner:      owner,
		Side:       side,
		Kind:       kind,
		LimitPrice: limitPrice,
		AmountBase: amountBase,
		MaxQuote:   maxQuote,
	}

	if b.Metrics != nil {
		b.Metrics.OrdersTotal.WithLabelValues(side.String(), kind.String()).Inc()
	}

	lockedBase, lockedQuote, err := b.Ledger.LockTakerFunds(order)
	if err != nil {
		log.Error().Err(err).Str("owner", accounts.Address(owner).Hex()).Msg("order rejected at lock step")
		if b.Metrics != nil {
			b.Metrics.RejectionsTotal.WithLabelValues("insufficient_balance").Inc()
		}
		return 0, engine.ExecutionReport{}, err
	}

	id := b.allocOrderID()
	order.ID = id

	report, err := engine.Execute(b.Book, order, b.Limits)
	if err != nil {
		var me *engine.MatchError
		rejectionKind := "execute_error"
		if errors.As(err, &me) {
			rejectionKind = me.Kind.String()
			switch me.Kind {
			case engine.KindBrokenBook, engine.KindFokCheckInconsistent,
				engine.KindMarketBuyBudgetCheckInconsistent, engine.KindMarketBuyLiquidityCheckInconsistent:
				log.Error().Err(err).Uint64("orderID", id).Msg("book invariant or consistency check violated, not swallowing")
			}
		}
		if b.Metrics != nil {
			b.Metrics.RejectionsTotal.WithLabelValues(rejectionKind).Inc()
		}
		b.Ledger.SettleExecution(order, &engine.ExecutionReport{Completion: engine.Completion{Kind: engine.Rejected}}, lockedBase, lockedQuote)
		return 0, engine.ExecutionReport{}, err
	}

	if err := b.Ledger.SettleExecution(order, &report, lockedBase, lockedQuote); err != nil {
		log.Error().Err(err).Uint64("orderID", id).Msg("settlement failed after a successful execute")
		if b.Metrics != nil {
			b.Metrics.SettlementErrors.Inc()
		}
		return 0, engine.ExecutionReport{}, err
	}

	if b.Metrics != nil {
		b.Metrics.TradesTotal.Add(float64(len(report.Trades)))
		if report.Completion.Kind == engine.Rejected {
			b.Metrics.RejectionsTotal.WithLabelValues("engine_rejected").Inc()
		}
	}
	b.depthGauge()

	log.Info().
		Uint64("orderID", id).
		Str("owner", accounts.Address(owner).Hex()).
		Str("side", side.String()).
		Str("kind", kind.String()).
		Str("completion", report.Completion.Kind.String()).
		Int("trades", len(report.Trades)).
		Msg("order settled")

	return id, report, nil
}

// CancelOrder removes a resting order and unlocks whatever it still
// reserved, after checking ownership.
func (b *Boundary) CancelOrder(caller engine.ActorID, id engine.OrderID) error {
	maker, err := b.Book.PeekOrder(id)
	if err != nil {
		return err
	}
	if maker.Owner != caller {
		return ErrNotOwner
	}

	maker, err = b.Book.Cancel(id)
	if err != nil {
		return err
	}

	switch maker.Side {
	case engine.Sell:
		b.Ledger.Unlock(caller, accounts.Base, maker.RemainingBase)
	case engine.Buy:
		b.Ledger.Unlock(caller, accounts.Quote, maker.ReservedQuote)
	}

	if b.Metrics != nil {
		b.Metrics.CancelsTotal.Inc()
	}
	b.depthGauge()

	log.Info().Uint64("orderID", id).Msg("order cancelled")
	return nil
}

// Deposit credits an account's free balance. Authority is restricted
// to the paired vault in a real deployment; this boundary trusts its
// caller to have already checked that.
func (b *Boundary) Deposit(who engine.ActorID, asset accounts.Asset, amount *uint256.Int) {
	b.Ledger.Deposit(who, asset, amount)
	log.Info().Str("asset", asset.String()).Str("amount", amount.String()).Msg("deposit")
}

// Withdraw debits the caller's free balance immediately, then asks the
// vault to release funds; on vault failure the local debit is
// reverted (the deposit/withdraw round-trip semantics of §5).
func (b *Boundary) Withdraw(ctx context.Context, who engine.ActorID, asset accounts.Asset, amount *uint256.Int) error {
	if err := b.Ledger.Withdraw(who, asset, amount); err != nil {
		return err
	}
	if err := b.Vault.Release(ctx, who, asset, amount); err != nil {
		log.Error().Err(err).Msg("vault release failed, reverting local debit")
		b.Ledger.Deposit(who, asset, amount)
		return err
	}
	log.Info().Str("asset", asset.String()).Str("amount", amount.String()).Msg("withdraw")
	return nil
}

// BestBidPrice and BestAskPrice read the top of either side of the
// book without mutating it.
func (b *Boundary) BestBidPrice() (*uint256.Int, bool) { return b.Book.BestPrice(engine.Buy) }
func (b *Boundary) BestAskPrice() (*uint256.Int, bool) { return b.Book.BestPrice(engine.Sell) }

// OrderByID reads a resting order's current view.
func (b *Boundary) OrderByID(id engine.OrderID) (engine.MakerView, error) {
	return b.Book.PeekOrder(id)
}

// Orders enumerates resting orders on side for query endpoints (§6
// Reads), paginated by cursor; see book.OrderBook.Orders for the
// cursor and direction semantics.
func (b *Boundary) Orders(side engine.Side, cursor engine.OrderID, limit int, forward bool) (page []engine.MakerView, next engine.OrderID, hasMore bool) {
	return b.Book.Orders(side, cursor, limit, forward)
}

// BalanceOf reads free and locked balance for an account and asset.
func (b *Boundary) BalanceOf(who engine.ActorID, asset accounts.Asset) (free, locked *uint256.Int) {
	return b.Ledger.BalanceOf(who, asset)
}
