package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ClosedTrade represents a fully matched entry/exit pair produced by the
// FIFO matching engine. Immutable once created; a new upload replaces the
// whole set for a user.
type ClosedTrade struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	UserID      uint            `gorm:"index;not null" json:"user_id"`
	UploadID    string          `gorm:"size:36;index" json:"upload_id"`
	Ticker      string          `gorm:"size:64;not null;index" json:"ticker"`
	Side        TradeSide       `gorm:"size:10;not null" json:"side"`
	Quantity    decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"quantity"`
	EntryTime   time.Time       `gorm:"not null" json:"entry_time"`
	ExitTime    time.Time       `gorm:"not null;index" json:"exit_time"`
	EntryPrice  decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"entry_price"`
	ExitPrice   decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"exit_price"`
	RealizedPnL decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"realized_pnl"`
	FeesTotal   decimal.Decimal `gorm:"type:decimal(20,8)" json:"fees_total"`
	CreatedAt   time.Time       `json:"created_at"`
}

// TableName specifies the table name for ClosedTrade model
func (ClosedTrade) TableName() string {
	return "closed_trades"
}

// HoldingPeriod returns the holding duration, derived from the entry/exit
// pair so a stored row never carries a stale value.
func (t *ClosedTrade) HoldingPeriod() time.Duration {
	return t.ExitTime.Sub(t.EntryTime)
}
