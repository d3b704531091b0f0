package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/regard-engine/internal/models"
)

// ClosedTradeRepository handles closed trade data access
type ClosedTradeRepository struct {
	db *gorm.DB
}

// NewClosedTradeRepository creates a new ClosedTradeRepository
func NewClosedTradeRepository(db *gorm.DB) *ClosedTradeRepository {
	return &ClosedTradeRepository{db: db}
}

// ReplaceForUser deletes the user's stored trades and inserts the new set
// inside the caller's transaction. Uploads fully replace prior state.
func (r *ClosedTradeRepository) ReplaceForUser(tx *gorm.DB, userID uint, trades []models.ClosedTrade) error {
	if err := tx.Where("user_id = ?", userID).Delete(&models.ClosedTrade{}).Error; err != nil {
		return err
	}
	if len(trades) == 0 {
		return nil
	}
	return tx.CreateInBatches(trades, 500).Error
}

// GetByUserIDPaginated retrieves closed trades with pagination, newest exit first
func (r *ClosedTradeRepository) GetByUserIDPaginated(userID uint, page, pageSize int) ([]models.ClosedTrade, int64, error) {
	var trades []models.ClosedTrade
	var total int64

	if err := r.db.Model(&models.ClosedTrade{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	result := r.db.Where("user_id = ?", userID).
		Order("exit_time DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&trades)

	return trades, total, result.Error
}

// GetByTicker retrieves a user's closed trades for one ticker
func (r *ClosedTradeRepository) GetByTicker(userID uint, ticker string) ([]models.ClosedTrade, error) {
	var trades []models.ClosedTrade
	result := r.db.Where("user_id = ? AND ticker = ?", userID, ticker).
		Order("exit_time DESC").
		Find(&trades)
	return trades, result.Error
}

// GetByDateRange retrieves closed trades whose exit falls within a range
func (r *ClosedTradeRepository) GetByDateRange(userID uint, start, end time.Time) ([]models.ClosedTrade, error) {
	var trades []models.ClosedTrade
	result := r.db.Where("user_id = ? AND exit_time >= ? AND exit_time <= ?", userID, start, end).
		Order("exit_time DESC").
		Find(&trades)
	return trades, result.Error
}
