package engine

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/regard-engine/internal/models"
)

func decimalFromString(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	return decimal.RequireFromString(s)
}

func action(ticker string, verb models.ActionVerb, qty, price string, ts time.Time) models.TradeAction {
	return models.TradeAction{
		Ticker:    ticker,
		Verb:      verb,
		Quantity:  decimal.RequireFromString(qty),
		Price:     decimal.RequireFromString(price),
		Timestamp: ts,
		Fees:      decimal.Zero,
	}
}

func actionWithFees(ticker string, verb models.ActionVerb, qty, price, fees string, ts time.Time) models.TradeAction {
	a := action(ticker, verb, qty, price, ts)
	a.Fees = decimal.RequireFromString(fees)
	return a
}

func at(hour, minute int) time.Time {
	return time.Date(2025, 3, 3, hour, minute, 0, 0, time.UTC)
}
