package engine

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/regard-engine/internal/models"
)

// Matcher runs FIFO inventory matching per ticker. Long and short queues are
// independent; an OPEN verb covers the opposite queue before opening residual
// quantity, a CLOSE verb only consumes and drops any unmatched remainder as
// an anomaly.
type Matcher struct {
	logger *zap.Logger
}

// NewMatcher creates a new Matcher
func NewMatcher(logger *zap.Logger) *Matcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Matcher{logger: logger}
}

// MatchResult carries the two outputs of a matching pass plus the count of
// unmatched-close anomalies (logged, dropped, never fatal).
type MatchResult struct {
	Closed    []models.ClosedTrade
	Open      []models.OpenPosition
	Anomalies int
}

// Match consumes the canonical action sequence and produces closed trades
// and residual open positions. Actions are stable-sorted by timestamp first,
// so queue order equals (entry time, original input order) and popping the
// front implements the FIFO tie-break.
func (m *Matcher) Match(actions []models.TradeAction) *MatchResult {
	ordered := make([]models.TradeAction, len(actions))
	copy(ordered, actions)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp.Before(ordered[j].Timestamp)
	})

	books := make(map[string]*tickerBook)
	tickers := make([]string, 0)

	result := &MatchResult{}

	for _, action := range ordered {
		book, ok := books[action.Ticker]
		if !ok {
			book = &tickerBook{}
			books[action.Ticker] = book
			tickers = append(tickers, action.Ticker)
		}

		switch action.Verb {
		case models.ActionOpenLong:
			// Cover open shorts first; leftover quantity opens a long lot.
			remaining := m.drain(&book.short, action, models.TradeSideShort, result)
			if remaining.IsPositive() {
				book.long = append(book.long, newLot(action, remaining))
			}
		case models.ActionOpenShort:
			remaining := m.drain(&book.long, action, models.TradeSideLong, result)
			if remaining.IsPositive() {
				book.short = append(book.short, newLot(action, remaining))
			}
		case models.ActionCloseLong:
			remaining := m.drain(&book.long, action, models.TradeSideLong, result)
			m.noteUnmatched(action, remaining, result)
		case models.ActionCloseShort:
			remaining := m.drain(&book.short, action, models.TradeSideShort, result)
			m.noteUnmatched(action, remaining, result)
		}
	}

	// Residual lots become open positions, one row per lot, in first-seen
	// ticker order for deterministic output.
	for _, ticker := range tickers {
		book := books[ticker]
		for _, l := range book.long {
			result.Open = append(result.Open, openPositionFromLot(ticker, models.TradeSideLong, l))
		}
		for _, l := range book.short {
			result.Open = append(result.Open, openPositionFromLot(ticker, models.TradeSideShort, l))
		}
	}

	return result
}

type tickerBook struct {
	long  []openLot
	short []openLot
}

type openLot struct {
	quantity decimal.Decimal
	price    decimal.Decimal
	fees     decimal.Decimal
	openedAt time.Time
}

func newLot(action models.TradeAction, quantity decimal.Decimal) openLot {
	// An open that partially covered the opposite queue only carries the
	// fee share of the quantity that actually opened.
	fees := action.Fees
	if !quantity.Equal(action.Quantity) && action.Quantity.IsPositive() {
		fees = action.Fees.Mul(quantity).Div(action.Quantity)
	}
	return openLot{
		quantity: quantity,
		price:    action.Price,
		fees:     fees,
		openedAt: action.Timestamp,
	}
}

// drain consumes lots from the front of a queue against a closing action,
// emitting one ClosedTrade per fully or partially consumed lot. Returns the
// unmatched quantity of the action.
func (m *Matcher) drain(queue *[]openLot, action models.TradeAction, side models.TradeSide, result *MatchResult) decimal.Decimal {
	remaining := action.Quantity

	for remaining.IsPositive() && len(*queue) > 0 {
		front := &(*queue)[0]
		matched := decimal.Min(remaining, front.quantity)

		entryFees := front.fees
		if !matched.Equal(front.quantity) {
			entryFees = front.fees.Mul(matched).Div(front.quantity)
		}
		exitFees := action.Fees
		if !matched.Equal(action.Quantity) && action.Quantity.IsPositive() {
			exitFees = action.Fees.Mul(matched).Div(action.Quantity)
		}
		feesTotal := entryFees.Add(exitFees)

		var gross decimal.Decimal
		if side == models.TradeSideLong {
			gross = action.Price.Sub(front.price).Mul(matched)
		} else {
			gross = front.price.Sub(action.Price).Mul(matched)
		}

		result.Closed = append(result.Closed, models.ClosedTrade{
			Ticker:      action.Ticker,
			Side:        side,
			Quantity:    matched,
			EntryTime:   front.openedAt,
			ExitTime:    action.Timestamp,
			EntryPrice:  front.price,
			ExitPrice:   action.Price,
			RealizedPnL: gross.Sub(feesTotal),
			FeesTotal:   feesTotal,
		})

		front.quantity = front.quantity.Sub(matched)
		front.fees = front.fees.Sub(entryFees)
		remaining = remaining.Sub(matched)

		if !front.quantity.IsPositive() {
			*queue = (*queue)[1:]
		}
	}

	return remaining
}

// noteUnmatched logs the unmatched remainder of an explicit close. The
// quantity cannot be matched to a lot that never existed, so it is dropped
// rather than fabricating an opposite-side position.
func (m *Matcher) noteUnmatched(action models.TradeAction, remaining decimal.Decimal, result *MatchResult) {
	if !remaining.IsPositive() {
		return
	}
	result.Anomalies++
	m.logger.Warn("unmatched close dropped",
		zap.String("ticker", action.Ticker),
		zap.String("verb", string(action.Verb)),
		zap.String("quantity", remaining.String()),
		zap.Time("timestamp", action.Timestamp),
	)
}

func openPositionFromLot(ticker string, side models.TradeSide, l openLot) models.OpenPosition {
	return models.OpenPosition{
		Ticker:      ticker,
		Side:        side,
		Quantity:    l.quantity,
		EntryPrice:  l.price,
		EntryTime:   l.openedAt,
		FeesEntered: l.fees,
	}
}
