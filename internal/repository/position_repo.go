package repository

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/regard-engine/internal/models"
)

// OpenPositionRepository handles open position data access
type OpenPositionRepository struct {
	db *gorm.DB
}

// NewOpenPositionRepository creates a new OpenPositionRepository
func NewOpenPositionRepository(db *gorm.DB) *OpenPositionRepository {
	return &OpenPositionRepository{db: db}
}

// ReplaceForUser deletes the user's stored positions and inserts the new set
// inside the caller's transaction.
func (r *OpenPositionRepository) ReplaceForUser(tx *gorm.DB, userID uint, positions []models.OpenPosition) error {
	if err := tx.Where("user_id = ?", userID).Delete(&models.OpenPosition{}).Error; err != nil {
		return err
	}
	if len(positions) == 0 {
		return nil
	}
	return tx.CreateInBatches(positions, 500).Error
}

// GetByUserID retrieves all open positions for a user
func (r *OpenPositionRepository) GetByUserID(userID uint) ([]models.OpenPosition, error) {
	var positions []models.OpenPosition
	result := r.db.Where("user_id = ?", userID).
		Order("entry_time ASC").
		Find(&positions)
	return positions, result.Error
}

// GetStale retrieves positions whose mark is missing or older than the cutoff
func (r *OpenPositionRepository) GetStale(cutoff time.Time, limit int) ([]models.OpenPosition, error) {
	var positions []models.OpenPosition
	result := r.db.Where("last_price_update IS NULL OR last_price_update < ?", cutoff).
		Order("last_price_update ASC NULLS FIRST").
		Limit(limit).
		Find(&positions)
	return positions, result.Error
}

// UpdateMark stores a refreshed current price and unrealized PnL
func (r *OpenPositionRepository) UpdateMark(id uint, price, unrealizedPnL decimal.Decimal, at time.Time) error {
	return r.db.Model(&models.OpenPosition{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"current_price":     price,
			"unrealized_pnl":    unrealizedPnL,
			"last_price_update": at,
		}).Error
}
