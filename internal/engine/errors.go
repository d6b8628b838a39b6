package engine

import "fmt"

// ErrorKind tags the taxonomy of §7: validation, market-buy budget,
// limit breaches, arithmetic, book corruption, and consistency errors.
type ErrorKind uint8

const (
	KindInvalidOrder ErrorKind = iota
	KindMarketBuyMaxQuoteExceeded
	KindMarketBuyInsufficientLiquidity
	KindTradeLimitReached
	KindScanLimitReached
	KindMulOverflow
	KindAddOverflow
	KindSubUnderflow
	KindBrokenBook
	KindFokCheckInconsistent
	KindMarketBuyBudgetCheckInconsistent
	KindMarketBuyLiquidityCheckInconsistent
)

// String names the error kind, for metrics labels and logging.
func (k ErrorKind) String() string {
	switch k {
	case KindInvalidOrder:
		return "invalid_order"
	case KindMarketBuyMaxQuoteExceeded:
		return "market_buy_max_quote_exceeded"
	case KindMarketBuyInsufficientLiquidity:
		return "market_buy_insufficient_liquidity"
	case KindTradeLimitReached:
		return "trade_limit_reached"
	case KindScanLimitReached:
		return "scan_limit_reached"
	case KindMulOverflow:
		return "mul_overflow"
	case KindAddOverflow:
		return "add_overflow"
	case KindSubUnderflow:
		return "sub_underflow"
	case KindBrokenBook:
		return "broken_book"
	case KindFokCheckInconsistent:
		return "fok_check_inconsistent"
	case KindMarketBuyBudgetCheckInconsistent:
		return "market_buy_budget_check_inconsistent"
	case KindMarketBuyLiquidityCheckInconsistent:
		return "market_buy_liquidity_check_inconsistent"
	default:
		return "unknown"
	}
}

// InvalidOrderReason enumerates the §4.6.1 pre-validation failures.
type InvalidOrderReason uint8

const (
	ReasonZeroAmountBase InvalidOrderReason = iota
	ReasonZeroLimitPriceForNonMarket
	ReasonZeroMaxQuoteForMarketBuy
	ReasonMaxQuoteOnlyForMarketBuy
)

func (r InvalidOrderReason) String() string {
	switch r {
	case ReasonZeroAmountBase:
		return "amount_base is zero"
	case ReasonZeroLimitPriceForNonMarket:
		return "limit_price is zero for a non-market order"
	case ReasonZeroMaxQuoteForMarketBuy:
		return "max_quote is zero for a market buy"
	case ReasonMaxQuoteOnlyForMarketBuy:
		return "max_quote must be zero outside market buy"
	default:
		return "unknown"
	}
}

// BookInvariantKind enumerates the §4.4 book-invariant violations the
// engine can detect mid-loop. Any of these signals data-structure
// corruption, not a user error.
type BookInvariantKind uint8

const (
	InvariantBestPriceHasNoHead BookInvariantKind = iota
	InvariantLevelHeadMissingMaker
	InvariantMakerSideMismatch
	InvariantMakerPriceMismatch
	InvariantMakerZeroRemaining
	InvariantNextPriceDidNotAdvance
	InvariantNextInLevelSelfLoop
)

func (k BookInvariantKind) String() string {
	switch k {
	case InvariantBestPriceHasNoHead:
		return "best price has no head"
	case InvariantLevelHeadMissingMaker:
		return "level head missing maker"
	case InvariantMakerSideMismatch:
		return "maker side mismatch"
	case InvariantMakerPriceMismatch:
		return "maker price mismatch"
	case InvariantMakerZeroRemaining:
		return "maker has zero remaining"
	case InvariantNextPriceDidNotAdvance:
		return "next price did not advance"
	case InvariantNextInLevelSelfLoop:
		return "next in level self-loop"
	default:
		return "unknown"
	}
}

// MatchError is the tagged error variant returned by Execute and the
// previews. On any MatchError, per §4.6, the book is observationally
// unchanged.
type MatchError struct {
	Kind ErrorKind

	Reason        InvalidOrderReason
	BookInvariant BookInvariantKind
	MaxTrades     uint32
	MaxScanned    uint32
}

func (e *MatchError) Error() string {
	switch e.Kind {
	case KindInvalidOrder:
		return fmt.Sprintf("invalid order: %s", e.Reason)
	case KindMarketBuyMaxQuoteExceeded:
		return "market buy would exceed max_quote"
	case KindMarketBuyInsufficientLiquidity:
		return "market buy: insufficient liquidity"
	case KindTradeLimitReached:
		return fmt.Sprintf("trade limit reached: %d", e.MaxTrades)
	case KindScanLimitReached:
		return fmt.Sprintf("scan limit reached: %d", e.MaxScanned)
	case KindMulOverflow:
		return "multiplication overflow"
	case KindAddOverflow:
		return "addition overflow"
	case KindSubUnderflow:
		return "subtraction underflow"
	case KindBrokenBook:
		return fmt.Sprintf("broken book: %s", e.BookInvariant)
	case KindFokCheckInconsistent:
		return "fok check inconsistent: reached finalize after a would-be-fillable precheck"
	case KindMarketBuyBudgetCheckInconsistent:
		return "market buy budget check inconsistent: execution loop exceeded a passed preview"
	case KindMarketBuyLiquidityCheckInconsistent:
		return "market buy liquidity check inconsistent: execution loop ran dry after a passed preview"
	default:
		return "unknown match error"
	}
}

func errInvalidOrder(reason InvalidOrderReason) *MatchError {
	return &MatchError{Kind: KindInvalidOrder, Reason: reason}
}

func errBrokenBook(kind BookInvariantKind) *MatchError {
	return &MatchError{Kind: KindBrokenBook, BookInvariant: kind}
}

func errTradeLimitReached(max uint32) *MatchError {
	return &MatchError{Kind: KindTradeLimitReached, MaxTrades: max}
}

func errScanLimitReached(max uint32) *MatchError {
	return &MatchError{Kind: KindScanLimitReached, MaxScanned: max}
}

var (
	errMulOverflow = &MatchError{Kind: KindMulOverflow}
	errAddOverflow = &MatchError{Kind: KindAddOverflow}
	errSubUnderflow = &MatchError{Kind: KindSubUnderflow}
	errMarketBuyMaxQuoteExceeded            = &MatchError{Kind: KindMarketBuyMaxQuoteExceeded}
	errMarketBuyInsufficientLiquidity       = &MatchError{Kind: KindMarketBuyInsufficientLiquidity}
	errFokCheckInconsistent                 = &MatchError{Kind: KindFokCheckInconsistent}
	errMarketBuyBudgetCheckInconsistent     = &MatchError{Kind: KindMarketBuyBudgetCheckInconsistent}
	errMarketBuyLiquidityCheckInconsistent  = &MatchError{Kind: KindMarketBuyLiquidityCheckInconsistent}
)
