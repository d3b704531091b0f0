package repository

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/regard-engine/internal/models"
)

// SummaryRepository handles regard summary data access
type SummaryRepository struct {
	db *gorm.DB
}

// NewSummaryRepository creates a new SummaryRepository
func NewSummaryRepository(db *gorm.DB) *SummaryRepository {
	return &SummaryRepository{db: db}
}

// Upsert writes the summary with last-writer-wins semantics keyed by user,
// inside the caller's transaction.
func (r *SummaryRepository) Upsert(tx *gorm.DB, summary *models.RegardSummary) error {
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		UpdateAll: true,
	}).Create(summary).Error
}

// GetByUserID retrieves the latest summary for a user
func (r *SummaryRepository) GetByUserID(userID uint) (*models.RegardSummary, error) {
	var summary models.RegardSummary
	result := r.db.Where("user_id = ?", userID).First(&summary)
	if result.Error != nil {
		return nil, result.Error
	}
	return &summary, nil
}
