package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeSide represents the directional side of a position or closed trade
type TradeSide string

const (
	TradeSideLong  TradeSide = "LONG"
	TradeSideShort TradeSide = "SHORT"
)

// ActionVerb is the canonical verb of a normalized trade action.
// OPEN verbs cover the opposite queue before opening residual quantity;
// CLOSE verbs only ever consume existing lots.
type ActionVerb string

const (
	ActionOpenLong   ActionVerb = "OPEN_LONG"
	ActionCloseLong  ActionVerb = "CLOSE_LONG"
	ActionOpenShort  ActionVerb = "OPEN_SHORT"
	ActionCloseShort ActionVerb = "CLOSE_SHORT"
)

// IsClose returns true for the explicit closing verbs
func (v ActionVerb) IsClose() bool {
	return v == ActionCloseLong || v == ActionCloseShort
}

// TradeAction is one normalized row of a user's execution history.
// It is the only shape the matching engine accepts; the normalizer
// guarantees Quantity > 0 and a parseable timestamp.
type TradeAction struct {
	Ticker      string            `json:"ticker"`
	Verb        ActionVerb        `json:"verb"`
	Quantity    decimal.Decimal   `json:"quantity"`
	Price       decimal.Decimal   `json:"price"`
	Timestamp   time.Time         `json:"timestamp"`
	Fees        decimal.Decimal   `json:"fees"`
	RawMetadata map[string]string `json:"raw_metadata,omitempty"`
}
