package engine

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fenrir/internal/fixedpoint"
)

func actor(b byte) ActorID {
	var a ActorID
	a[31] = b
	return a
}

func u(v uint64) *uint256.Int {
	return uint256.NewInt(v)
}

// price expresses a human price as an integer times the system's
// fixed-point precision, so callers can write price(2) for "2.0"
// without hand-multiplying by 10^30.
func price(v uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(v), fixedpoint.Precision)
}

func defaultLimits() Limits {
	return Limits{MaxTrades: 1000, MaxPreviewScans: 1000}
}

// --- S1: limit order, no cross, rests entirely -----------------------

func TestScenarioLimitNoCrossPlacesRemainder(t *testing.T) {
	book := newNaiveBook()

	order := &IncomingOrder{
		ID:         1,
		Owner:      actor(1),
		Side:       Buy,
		Kind:       Limit,
		LimitPrice: price(10),
		AmountBase: u(5),
		MaxQuote:   u(0),
	}

	report, err := Execute(book, order, defaultLimits())
	require.NoError(t, err)
	assert.Empty(t, report.Trades)
	assert.Equal(t, Placed, report.Completion.Kind)
	assert.True(t, report.Completion.RemainingBase.Eq(u(5)))

	bp, ok := book.BestPrice(Buy)
	require.True(t, ok)
	assert.True(t, bp.Eq(price(10)))
}

// --- S2: limit order crosses, partial fill, remainder rests -----------

func TestScenarioLimitCrossPartialFillPlacesRemainder(t *testing.T) {
	book := newNaiveBook()
	book.InsertResting(RestingOrder{
		ID:            100,
		Owner:         actor(2),
		Side:          Sell,
		Price:         price(10),
		RemainingBase: u(3),
	})

	order := &IncomingOrder{
		ID:         2,
		Owner:      actor(1),
		Side:       Buy,
		Kind:       Limit,
		LimitPrice: price(10),
		AmountBase: u(5),
		MaxQuote:   u(0),
	}

	report, err := Execute(book, order, defaultLimits())
	require.NoError(t, err)
	require.Len(t, report.Trades, 1)
	assert.True(t, report.Trades[0].AmountBase.Eq(u(3)))
	assert.True(t, report.Trades[0].Price.Eq(price(10)))
	assert.Equal(t, Placed, report.Completion.Kind)
	assert.True(t, report.Completion.RemainingBase.Eq(u(2)))

	_, asksLeft := book.BestPrice(Sell)
	assert.False(t, asksLeft)
}

// --- S3: IOC partial fill cancels the remainder ------------------------

func TestScenarioIOCPartialFillCancelsRemainder(t *testing.T) {
	book := newNaiveBook()
	book.InsertResting(RestingOrder{
		ID:            100,
		Owner:         actor(2),
		Side:          Sell,
		Price:         price(10),
		RemainingBase: u(3),
	})

	order := &IncomingOrder{
		ID:         3,
		Owner:      actor(1),
		Side:       Buy,
		Kind:       ImmediateOrCancel,
		LimitPrice: price(10),
		AmountBase: u(5),
		MaxQuote:   u(0),
	}

	report, err := Execute(book, order, defaultLimits())
	require.NoError(t, err)
	require.Len(t, report.Trades, 1)
	assert.Equal(t, Cancelled, report.Completion.Kind)
	assert.True(t, report.Completion.RemainingBase.Eq(u(2)))
}

// --- S4: market sell sweeps multiple bid levels ------------------------

func TestScenarioMarketSellSweepsBids(t *testing.T) {
	book := newNaiveBook()
	book.InsertResting(RestingOrder{ID: 100, Owner: actor(2), Side: Buy, Price: price(10), RemainingBase: u(2), RemainingQuote: u(20)})
	book.InsertResting(RestingOrder{ID: 101, Owner: actor(3), Side: Buy, Price: price(9), RemainingBase: u(10), RemainingQuote: u(90)})

	order := &IncomingOrder{
		ID:         4,
		Owner:      actor(1),
		Side:       Sell,
		Kind:       Market,
		LimitPrice: u(0),
		AmountBase: u(5),
		MaxQuote:   u(0),
	}

	report, err := Execute(book, order, defaultLimits())
	require.NoError(t, err)
	require.Len(t, report.Trades, 2)
	assert.True(t, report.Trades[0].Price.Eq(price(10)))
	assert.True(t, report.Trades[0].AmountBase.Eq(u(2)))
	assert.True(t, report.Trades[1].Price.Eq(price(9)))
	assert.True(t, report.Trades[1].AmountBase.Eq(u(3)))
	assert.Equal(t, Filled, report.Completion.Kind)
}

// --- S5: FOK with insufficient liquidity rejects with zero mutation ----

func TestScenarioFillOrKillInsufficientLiquidityRejectsWithoutMutation(t *testing.T) {
	book := newNaiveBook()
	book.InsertResting(RestingOrder{ID: 100, Owner: actor(2), Side: Sell, Price: price(10), RemainingBase: u(3)})

	order := &IncomingOrder{
		ID:         5,
		Owner:      actor(1),
		Side:       Buy,
		Kind:       FillOrKill,
		LimitPrice: price(10),
		AmountBase: u(5),
		MaxQuote:   u(0),
	}

	report, err := Execute(book, order, defaultLimits())
	require.NoError(t, err)
	assert.Empty(t, report.Trades)
	assert.Equal(t, Rejected, report.Completion.Kind)

	h, ok := book.LevelHead(Sell, price(10))
	require.True(t, ok)
	maker, ok := book.GetMaker(h)
	require.True(t, ok)
	assert.True(t, maker.RemainingBase.Eq(u(3)), "FOK rejection must leave the book untouched")
}

// --- S6: strict market buy spends exactly the floor-rounded cost ------

func TestScenarioStrictMarketBuySpendsExactBudget(t *testing.T) {
	book := newNaiveBook()
	book.InsertResting(RestingOrder{ID: 100, Owner: actor(2), Side: Sell, Price: price(10), RemainingBase: u(5)})

	order := &IncomingOrder{
		ID:         6,
		Owner:      actor(1),
		Side:       Buy,
		Kind:       Market,
		LimitPrice: u(0),
		AmountBase: u(5),
		MaxQuote:   u(50),
	}

	report, err := Execute(book, order, defaultLimits())
	require.NoError(t, err)
	require.Len(t, report.Trades, 1)
	assert.True(t, report.Trades[0].AmountQuote.Eq(u(50)))
	assert.Equal(t, Filled, report.Completion.Kind)
}

func TestStrictMarketBuyExceedingBudgetIsRejectedBeforeMutation(t *testing.T) {
	book := newNaiveBook()
	book.InsertResting(RestingOrder{ID: 100, Owner: actor(2), Side: Sell, Price: price(10), RemainingBase: u(5)})

	order := &IncomingOrder{
		ID:         7,
		Owner:      actor(1),
		Side:       Buy,
		Kind:       Market,
		LimitPrice: u(0),
		AmountBase: u(5),
		MaxQuote:   u(49),
	}

	_, err := Execute(book, order, defaultLimits())
	require.Error(t, err)
	me, ok := err.(*MatchError)
	require.True(t, ok)
	assert.Equal(t, KindMarketBuyMaxQuoteExceeded, me.Kind)

	h, ok := book.LevelHead(Sell, price(10))
	require.True(t, ok)
	maker, ok := book.GetMaker(h)
	require.True(t, ok)
	assert.True(t, maker.RemainingBase.Eq(u(5)))
}

func TestStrictMarketBuyInsufficientLiquidityIsRejected(t *testing.T) {
	book := newNaiveBook()
	book.InsertResting(RestingOrder{ID: 100, Owner: actor(2), Side: Sell, Price: price(10), RemainingBase: u(2)})

	order := &IncomingOrder{
		ID:         8,
		Owner:      actor(1),
		Side:       Buy,
		Kind:       Market,
		LimitPrice: u(0),
		AmountBase: u(5),
		MaxQuote:   price(1000),
	}

	_, err := Execute(book, order, defaultLimits())
	require.Error(t, err)
	me, ok := err.(*MatchError)
	require.True(t, ok)
	assert.Equal(t, KindMarketBuyInsufficientLiquidity, me.Kind)
}

// --- Pre-validation (§4.6.1) --------------------------------------------

func TestValidationRejectsZeroAmountBase(t *testing.T) {
	book := newNaiveBook()
	order := &IncomingOrder{ID: 9, Owner: actor(1), Side: Buy, Kind: Limit, LimitPrice: price(10), AmountBase: u(0), MaxQuote: u(0)}
	_, err := Execute(book, order, defaultLimits())
	require.Error(t, err)
	me := err.(*MatchError)
	assert.Equal(t, KindInvalidOrder, me.Kind)
	assert.Equal(t, ReasonZeroAmountBase, me.Reason)
}

func TestValidationRejectsZeroLimitPriceForNonMarket(t *testing.T) {
	book := newNaiveBook()
	order := &IncomingOrder{ID: 10, Owner: actor(1), Side: Buy, Kind: Limit, LimitPrice: u(0), AmountBase: u(5), MaxQuote: u(0)}
	_, err := Execute(book, order, defaultLimits())
	require.Error(t, err)
	me := err.(*MatchError)
	assert.Equal(t, ReasonZeroLimitPriceForNonMarket, me.Reason)
}

func TestValidationRejectsZeroMaxQuoteForMarketBuy(t *testing.T) {
	book := newNaiveBook()
	order := &IncomingOrder{ID: 11, Owner: actor(1), Side: Buy, Kind: Market, LimitPrice: u(0), AmountBase: u(5), MaxQuote: u(0)}
	_, err := Execute(book, order, defaultLimits())
	require.Error(t, err)
	me := err.(*MatchError)
	assert.Equal(t, ReasonZeroMaxQuoteForMarketBuy, me.Reason)
}

func TestValidationRejectsMaxQuoteOutsideMarketBuy(t *testing.T) {
	book := newNaiveBook()
	order := &IncomingOrder{ID: 12, Owner: actor(1), Side: Sell, Kind: Market, LimitPrice: u(0), AmountBase: u(5), MaxQuote: price(1)}
	_, err := Execute(book, order, defaultLimits())
	require.Error(t, err)
	me := err.(*MatchError)
	assert.Equal(t, ReasonMaxQuoteOnlyForMarketBuy, me.Reason)
}

// --- Limits ---------------------------------------------------------------

func TestTradeLimitReachedStopsExecution(t *testing.T) {
	book := newNaiveBook()
	book.InsertResting(RestingOrder{ID: 100, Owner: actor(2), Side: Sell, Price: price(10), RemainingBase: u(1)})
	book.InsertResting(RestingOrder{ID: 101, Owner: actor(3), Side: Sell, Price: price(11), RemainingBase: u(1)})

	order := &IncomingOrder{ID: 13, Owner: actor(1), Side: Buy, Kind: Limit, LimitPrice: price(11), AmountBase: u(5), MaxQuote: u(0)}
	_, err := Execute(book, order, Limits{MaxTrades: 1, MaxPreviewScans: 1000})
	require.Error(t, err)
	me := err.(*MatchError)
	assert.Equal(t, KindTradeLimitReached, me.Kind)
}

func TestScanLimitReachedDuringFOKPrecheck(t *testing.T) {
	book := newNaiveBook()
	book.InsertResting(RestingOrder{ID: 100, Owner: actor(2), Side: Sell, Price: price(10), RemainingBase: u(1)})
	book.InsertResting(RestingOrder{ID: 101, Owner: actor(2), Side: Sell, Price: price(10), RemainingBase: u(1)})

	order := &IncomingOrder{ID: 14, Owner: actor(1), Side: Buy, Kind: FillOrKill, LimitPrice: price(10), AmountBase: u(5), MaxQuote: u(0)}
	_, err := Execute(book, order, Limits{MaxTrades: 1000, MaxPreviewScans: 1})
	require.Error(t, err)
	me := err.(*MatchError)
	assert.Equal(t, KindScanLimitReached, me.Kind)
}

// --- Book invariants (corruption detection) -------------------------------

// corruptedBook wraps naiveBook but lies about BestPrice having a head,
// simulating a structurally broken production book.
type corruptedBook struct {
	*naiveBook
}

func (c *corruptedBook) LevelHead(makerSide Side, price *uint256.Int) (Handle, bool) {
	return 0, false
}

func TestBrokenBookBestPriceHasNoHeadIsDetected(t *testing.T) {
	inner := newNaiveBook()
	inner.InsertResting(RestingOrder{ID: 100, Owner: actor(2), Side: Sell, Price: price(10), RemainingBase: u(3)})
	book := &corruptedBook{naiveBook: inner}

	order := &IncomingOrder{ID: 15, Owner: actor(1), Side: Buy, Kind: Limit, LimitPrice: price(10), AmountBase: u(1), MaxQuote: u(0)}
	_, err := Execute(book, order, defaultLimits())
	require.Error(t, err)
	me := err.(*MatchError)
	assert.Equal(t, KindBrokenBook, me.Kind)
	assert.Equal(t, InvariantBestPriceHasNoHead, me.BookInvariant)
}

// sideMismatchBook reports a maker on the wrong side, simulating a
// cross-wired ladder.
type sideMismatchBook struct {
	*naiveBook
}

func (c *sideMismatchBook) GetMaker(h Handle) (MakerView, bool) {
	m, ok := c.naiveBook.GetMaker(h)
	if ok {
		m.Side = Buy
	}
	return m, ok
}

func TestBrokenBookMakerSideMismatchIsDetected(t *testing.T) {
	inner := newNaiveBook()
	inner.InsertResting(RestingOrder{ID: 100, Owner: actor(2), Side: Sell, Price: price(10), RemainingBase: u(3)})
	book := &sideMismatchBook{naiveBook: inner}

	order := &IncomingOrder{ID: 16, Owner: actor(1), Side: Buy, Kind: Limit, LimitPrice: price(10), AmountBase: u(1), MaxQuote: u(0)}
	_, err := Execute(book, order, defaultLimits())
	require.Error(t, err)
	me := err.(*MatchError)
	assert.Equal(t, KindBrokenBook, me.Kind)
	assert.Equal(t, InvariantMakerSideMismatch, me.BookInvariant)
}

// --- PreviewFillable as a standalone operation ----------------------------

func TestPreviewFillableReportsFalseWithoutMutation(t *testing.T) {
	book := newNaiveBook()
	book.InsertResting(RestingOrder{ID: 100, Owner: actor(2), Side: Sell, Price: price(10), RemainingBase: u(2)})

	order := &IncomingOrder{ID: 17, Owner: actor(1), Side: Buy, Kind: FillOrKill, LimitPrice: price(10), AmountBase: u(5), MaxQuote: u(0)}
	ok, err := PreviewFillable(book, order, 1000)
	require.NoError(t, err)
	assert.False(t, ok)

	h, found := book.LevelHead(Sell, price(10))
	require.True(t, found)
	maker, found := book.GetMaker(h)
	require.True(t, found)
	assert.True(t, maker.RemainingBase.Eq(u(2)))
}
