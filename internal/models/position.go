package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OpenPosition is a residual lot left unmatched at the end of an upload's
// action stream. One row per residual lot; partial lots of the same ticker
// are never merged. The whole set is replaced on every new upload.
type OpenPosition struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	UserID      uint            `gorm:"index;not null" json:"user_id"`
	UploadID    string          `gorm:"size:36;index" json:"upload_id"`
	Ticker      string          `gorm:"size:64;not null;index" json:"ticker"`
	Side        TradeSide       `gorm:"size:10;not null" json:"side"`
	Quantity    decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"quantity"`
	EntryPrice  decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"entry_price"`
	EntryTime   time.Time       `gorm:"not null" json:"entry_time"`
	FeesEntered decimal.Decimal `gorm:"type:decimal(20,8)" json:"fees_entered"`

	// Populated by the price refresh worker, null until the first refresh.
	CurrentPrice    *decimal.Decimal `gorm:"type:decimal(20,8)" json:"current_price,omitempty"`
	UnrealizedPnL   *decimal.Decimal `gorm:"type:decimal(20,8)" json:"unrealized_pnl,omitempty"`
	LastPriceUpdate *time.Time       `json:"last_price_update,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for OpenPosition model
func (OpenPosition) TableName() string {
	return "open_positions"
}

// CalculateUnrealizedPnL calculates the unrealized PnL at a given mark price
func (p *OpenPosition) CalculateUnrealizedPnL(markPrice decimal.Decimal) decimal.Decimal {
	if p.Side == TradeSideLong {
		return markPrice.Sub(p.EntryPrice).Mul(p.Quantity)
	}
	return p.EntryPrice.Sub(markPrice).Mul(p.Quantity)
}
