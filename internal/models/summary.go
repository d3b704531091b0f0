package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RegardSummary is the scored output for one user, upserted on every upload.
// Nullable fields stay null when sample_size is zero or market-relative data
// is unavailable; they are never backfilled with placeholder numbers.
type RegardSummary struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	UserID           uint            `gorm:"uniqueIndex;not null" json:"user_id"`
	UploadID         string          `gorm:"size:36" json:"upload_id"`
	RegardScore      *float64        `json:"regard_score"`
	Wins             int             `gorm:"not null" json:"wins"`
	Losses           int             `gorm:"not null" json:"losses"`
	SampleSize       int             `gorm:"not null" json:"sample_size"`
	WinRate          *float64        `json:"win_rate"`
	TotalPnL         decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"total_pnl"`
	ReferenceCapital decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"reference_capital"`
	UserReturn       *float64        `json:"user_return"`
	BenchmarkReturn  *float64        `json:"benchmark_return"`
	RelativeAlpha    *float64        `json:"relative_alpha"`
	PeriodStart      *time.Time      `json:"period_start"`
	PeriodEnd        *time.Time      `json:"period_end"`
	AISummary        *string         `gorm:"type:text" json:"ai_summary"`
	SkippedRows      int             `json:"skipped_rows"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// TableName specifies the table name for RegardSummary model
func (RegardSummary) TableName() string {
	return "regard_summaries"
}
