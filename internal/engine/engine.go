package engine

import (
	"github.com/holiman/uint256"

	"fenrir/internal/fixedpoint"
)

// crosses reports whether makerPrice crosses takerSide's takerLimit: a
// Buy at limit L crosses an ask price A iff A <= L; a Sell at limit L
// crosses a bid price B iff B >= L.
func crosses(takerSide Side, takerLimit, makerPrice *uint256.Int) bool {
	if takerSide == Buy {
		return makerPrice.Cmp(takerLimit) <= 0
	}
	return makerPrice.Cmp(takerLimit) >= 0
}

func validate(order *IncomingOrder) error {
	if order.AmountBase.IsZero() {
		return errInvalidOrder(ReasonZeroAmountBase)
	}
	if order.Kind != Market && order.LimitPrice.IsZero() {
		return errInvalidOrder(ReasonZeroLimitPriceForNonMarket)
	}
	if order.Kind == Market {
		if order.Side == Buy {
			if order.MaxQuote.IsZero() {
				return errInvalidOrder(ReasonZeroMaxQuoteForMarketBuy)
			}
		} else if !order.MaxQuote.IsZero() {
			return errInvalidOrder(ReasonMaxQuoteOnlyForMarketBuy)
		}
	} else if !order.MaxQuote.IsZero() {
		return errInvalidOrder(ReasonMaxQuoteOnlyForMarketBuy)
	}
	return nil
}

func validateMakerView(maker *MakerView, expectedSide Side, expectedPrice *uint256.Int) error {
	if maker.Side != expectedSide {
		return errBrokenBook(InvariantMakerSideMismatch)
	}
	if maker.Price.Cmp(expectedPrice) != 0 {
		return errBrokenBook(InvariantMakerPriceMismatch)
	}
	if maker.RemainingBase.IsZero() {
		return errBrokenBook(InvariantMakerZeroRemaining)
	}
	return nil
}

// PreviewMarketBuyBudgetStrict walks the ask ladder best-to-worse,
// summing floor-rounded fill cost, and fails fast if the sum would
// exceed order.MaxQuote before liquidity runs out. It mutates nothing.
func PreviewMarketBuyBudgetStrict(book Book, order *IncomingOrder, limits Limits) error {
	makerSide := Sell
	remaining := new(uint256.Int).Set(order.AmountBase)
	requiredQuote := new(uint256.Int)

	var scanned uint32
	price, ok := book.BestPrice(makerSide)

	for ok {
		h, found := book.LevelHead(makerSide, price)
		if !found {
			return errBrokenBook(InvariantBestPriceHasNoHead)
		}

		for {
			scanned++
			if scanned > limits.MaxPreviewScans {
				return errScanLimitReached(limits.MaxPreviewScans)
			}

			maker, found := book.GetMaker(h)
			if !found {
				return errBrokenBook(InvariantLevelHeadMissingMaker)
			}
			if err := validateMakerView(&maker, makerSide, price); err != nil {
				return err
			}

			fill := uint256.NewInt(0).Set(remaining)
			if maker.RemainingBase.Lt(fill) {
				fill.Set(maker.RemainingBase)
			}

			q, err := fixedpoint.QuoteFloor(fill, price)
			if err != nil {
				return errMulOverflow
			}
			sum, overflow := new(uint256.Int).AddOverflow(requiredQuote, q)
			if overflow {
				return errAddOverflow
			}
			requiredQuote = sum

			if requiredQuote.Gt(order.MaxQuote) {
				return errMarketBuyMaxQuoteExceeded
			}

			remaining = new(uint256.Int).Sub(remaining, fill)
			if remaining.IsZero() {
				return nil
			}

			next, hasNext := book.NextInLevel(h)
			if !hasNext {
				break
			}
			if next == h {
				return errBrokenBook(InvariantNextInLevelSelfLoop)
			}
			h = next
		}

		nextPrice, hasNext := book.NextPrice(makerSide, price)
		if hasNext && nextPrice.Cmp(price) == 0 {
			return errBrokenBook(InvariantNextPriceDidNotAdvance)
		}
		price, ok = nextPrice, hasNext
	}

	return errMarketBuyInsufficientLiquidity
}

// PreviewFillable walks only price levels that cross order's limit
// price, reporting whether the reachable liquidity covers amount_base.
// It mutates nothing.
func PreviewFillable(book Book, order *IncomingOrder, maxScanned uint32) (bool, error) {
	makerSide := order.Side.Opposite()
	remaining := new(uint256.Int).Set(order.AmountBase)

	var scanned uint32
	price, ok := book.BestPrice(makerSide)

	for ok {
		if !crosses(order.Side, order.LimitPrice, price) {
			return false, nil
		}

		h, found := book.LevelHead(makerSide, price)
		if !found {
			return false, errBrokenBook(InvariantBestPriceHasNoHead)
		}

		for {
			scanned++
			if scanned > maxScanned {
				return false, errScanLimitReached(maxScanned)
			}

			maker, found := book.GetMaker(h)
			if !found {
				return false, errBrokenBook(InvariantLevelHeadMissingMaker)
			}
			if err := validateMakerView(&maker, makerSide, price); err != nil {
				return false, err
			}

			fill := uint256.NewInt(0).Set(remaining)
			if maker.RemainingBase.Lt(fill) {
				fill.Set(maker.RemainingBase)
			}
			remaining = new(uint256.Int).Sub(remaining, fill)
			if remaining.IsZero() {
				return true, nil
			}

			next, hasNext := book.NextInLevel(h)
			if !hasNext {
				break
			}
			if next == h {
				return false, errBrokenBook(InvariantNextInLevelSelfLoop)
			}
			h = next
		}

		nextPrice, hasNext := book.NextPrice(makerSide, price)
		if hasNext && nextPrice.Cmp(price) == 0 {
			return false, errBrokenBook(InvariantNextPriceDidNotAdvance)
		}
		price, ok = nextPrice, hasNext
	}

	return false, nil
}

// Execute is the pure matching algorithm: price-time priority, FIFO
// within a level, no randomness. On any error the book is
// observationally unchanged.
func Execute(book Book, order *IncomingOrder, limits Limits) (ExecutionReport, error) {
	if err := validate(order); err != nil {
		return ExecutionReport{}, err
	}

	isStrictMarketBuy := order.Kind == Market && order.Side == Buy
	if isStrictMarketBuy {
		if err := PreviewMarketBuyBudgetStrict(book, order, limits); err != nil {
			return ExecutionReport{}, err
		}
	}

	if order.Kind == FillOrKill {
		ok, err := PreviewFillable(book, order, limits.MaxPreviewScans)
		if err != nil {
			return ExecutionReport{}, err
		}
		if !ok {
			return ExecutionReport{
				Trades:     nil,
				Completion: Completion{Kind: Rejected},
			}, nil
		}
	}

	makerSide := order.Side.Opposite()
	remaining := new(uint256.Int).Set(order.AmountBase)
	var trades []Trade
	spentQuote := new(uint256.Int)

	trackLimitBuyQuote := order.Kind == Limit && order.Side == Buy
	remainingQuote := new(uint256.Int)
	if trackLimitBuyQuote {
		rq, err := fixedpoint.QuoteCeil(order.AmountBase, order.LimitPrice)
		if err != nil {
			return ExecutionReport{}, errMulOverflow
		}
		remainingQuote = rq
	}

	for !remaining.IsZero() {
		if uint32(len(trades)) >= limits.MaxTrades {
			return ExecutionReport{}, errTradeLimitReached(limits.MaxTrades)
		}

		price, ok := book.BestPrice(makerSide)
		if !ok {
			break
		}

		if order.Kind != Market && !crosses(order.Side, order.LimitPrice, price) {
			break
		}

		h, found := book.LevelHead(makerSide, price)
		if !found {
			return ExecutionReport{}, errBrokenBook(InvariantBestPriceHasNoHead)
		}

		maker, found := book.GetMaker(h)
		if !found {
			return ExecutionReport{}, errBrokenBook(InvariantLevelHeadMissingMaker)
		}
		if err := validateMakerView(&maker, makerSide, price); err != nil {
			return ExecutionReport{}, err
		}

		fill := uint256.NewInt(0).Set(remaining)
		if maker.RemainingBase.Lt(fill) {
			fill.Set(maker.RemainingBase)
		}

		quote, err := fixedpoint.QuoteFloor(fill, price)
		if err != nil {
			return ExecutionReport{}, errMulOverflow
		}

		if isStrictMarketBuy {
			sum, overflow := new(uint256.Int).AddOverflow(spentQuote, quote)
			if overflow {
				return ExecutionReport{}, errAddOverflow
			}
			spentQuote = sum
			if spentQuote.Gt(order.MaxQuote) {
				return ExecutionReport{}, errMarketBuyBudgetCheckInconsistent
			}
		}

		if trackLimitBuyQuote {
			if remainingQuote.Lt(quote) {
				return ExecutionReport{}, errSubUnderflow
			}
			remainingQuote = new(uint256.Int).Sub(remainingQuote, quote)
		}

		trades = append(trades, Trade{
			MakerOrderID: maker.ID,
			TakerOrderID: order.ID,
			Maker:        maker.Owner,
			Taker:        order.Owner,
			Price:        price,
			AmountBase:   fill,
			AmountQuote:  quote,
		})

		if maker.RemainingBase.Lt(fill) {
			return ExecutionReport{}, errSubUnderflow
		}
		makerNewRemaining := new(uint256.Int).Sub(maker.RemainingBase, fill)

		if maker.Side == Buy {
			if maker.ReservedQuote.Lt(quote) {
				return ExecutionReport{}, errSubUnderflow
			}
			newReservedQuote := new(uint256.Int).Sub(maker.ReservedQuote, quote)
			book.SetMakerReservedQuote(h, newReservedQuote)
		}

		if makerNewRemaining.IsZero() {
			book.RemoveMaker(h)
		} else {
			book.SetMakerRemaining(h, makerNewRemaining)
		}

		remaining = new(uint256.Int).Sub(remaining, fill)
	}

	if isStrictMarketBuy && !remaining.IsZero() {
		return ExecutionReport{}, errMarketBuyLiquidityCheckInconsistent
	}

	if remaining.IsZero() {
		return ExecutionReport{Trades: trades, Completion: Completion{Kind: Filled}}, nil
	}

	switch order.Kind {
	case Limit:
		rq := new(uint256.Int)
		if trackLimitBuyQuote {
			rq = remainingQuote
		}
		book.InsertResting(RestingOrder{
			ID:             order.ID,
			Owner:          order.Owner,
			Side:           order.Side,
			Price:          order.LimitPrice,
			RemainingBase:  remaining,
			RemainingQuote: rq,
		})
		return ExecutionReport{
			Trades: trades,
			Completion: Completion{
				Kind:           Placed,
				RemainingBase:  remaining,
				RemainingQuote: rq,
			},
		}, nil

	case Market, ImmediateOrCancel:
		return ExecutionReport{
			Trades: trades,
			Completion: Completion{
				Kind:          Cancelled,
				RemainingBase: remaining,
			},
		}, nil

	default: // FillOrKill must never reach here.
		return ExecutionReport{}, errFokCheckInconsistent
	}
}
