package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/regard-engine/internal/engine"
	"github.com/regard-engine/internal/models"
	"github.com/regard-engine/internal/repository"
)

var (
	ErrEmptyUpload     = errors.New("upload contains no rows")
	ErrSummaryNotFound = errors.New("no summary computed for user")
)

// ScoreService runs the scoring engine over an upload and persists the
// result with full-replace semantics. Concurrent re-uploads by the same user
// must be serialized by the caller; the last writer wins.
type ScoreService struct {
	db           *gorm.DB
	engine       *engine.Engine
	tradeRepo    *repository.ClosedTradeRepository
	positionRepo *repository.OpenPositionRepository
	summaryRepo  *repository.SummaryRepository
	logger       *zap.Logger
}

// NewScoreService creates a new ScoreService
func NewScoreService(
	db *gorm.DB,
	eng *engine.Engine,
	tradeRepo *repository.ClosedTradeRepository,
	positionRepo *repository.OpenPositionRepository,
	summaryRepo *repository.SummaryRepository,
	logger *zap.Logger,
) *ScoreService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScoreService{
		db:           db,
		engine:       eng,
		tradeRepo:    tradeRepo,
		positionRepo: positionRepo,
		summaryRepo:  summaryRepo,
		logger:       logger,
	}
}

// ProcessUpload runs the engine over one upload's rows and replaces the
// user's stored trades, positions and summary in a single transaction.
// A zero-trade upload is not an error; it persists an insufficient-data
// summary.
func (s *ScoreService) ProcessUpload(ctx context.Context, userID uint, rows []engine.RawRow) (*engine.Result, error) {
	if len(rows) == 0 {
		return nil, ErrEmptyUpload
	}

	uploadID := uuid.New().String()
	logger := s.logger.With(zap.Uint("user_id", userID), zap.String("upload_id", uploadID))

	result := s.engine.Run(ctx, rows)

	for i := range result.Closed {
		result.Closed[i].UserID = userID
		result.Closed[i].UploadID = uploadID
	}
	for i := range result.Open {
		result.Open[i].UserID = userID
		result.Open[i].UploadID = uploadID
	}
	result.Summary.UserID = userID
	result.Summary.UploadID = uploadID

	// Persistence happens only after the full summary is composed, so an
	// aborted request leaves no partial state behind.
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.tradeRepo.ReplaceForUser(tx, userID, result.Closed); err != nil {
			return fmt.Errorf("replace closed trades: %w", err)
		}
		if err := s.positionRepo.ReplaceForUser(tx, userID, result.Open); err != nil {
			return fmt.Errorf("replace open positions: %w", err)
		}
		if err := s.summaryRepo.Upsert(tx, &result.Summary); err != nil {
			return fmt.Errorf("upsert summary: %w", err)
		}
		return nil
	})
	if err != nil {
		logger.Error("failed to persist upload result", zap.Error(err))
		return nil, err
	}

	logger.Info("upload processed",
		zap.Int("closed_trades", len(result.Closed)),
		zap.Int("open_positions", len(result.Open)),
		zap.Int("skipped_rows", result.Skipped),
		zap.Int("anomalies", result.Anomalies),
	)

	return result, nil
}

// GetSummary returns the stored summary for a user
func (s *ScoreService) GetSummary(userID uint) (*models.RegardSummary, error) {
	summary, err := s.summaryRepo.GetByUserID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSummaryNotFound
		}
		return nil, err
	}
	return summary, nil
}

// GetTrades returns the stored closed trades for a user, paginated
func (s *ScoreService) GetTrades(userID uint, page, pageSize int) ([]models.ClosedTrade, int64, error) {
	return s.tradeRepo.GetByUserIDPaginated(userID, page, pageSize)
}

// GetTradesByTicker returns the stored closed trades for one of the user's
// tickers, newest exit first
func (s *ScoreService) GetTradesByTicker(userID uint, ticker string) ([]models.ClosedTrade, error) {
	return s.tradeRepo.GetByTicker(userID, ticker)
}

// GetTradesByDateRange returns the stored closed trades whose exit falls
// within the range
func (s *ScoreService) GetTradesByDateRange(userID uint, start, end time.Time) ([]models.ClosedTrade, error) {
	return s.tradeRepo.GetByDateRange(userID, start, end)
}

// GetPositions returns the stored open positions for a user
func (s *ScoreService) GetPositions(userID uint) ([]models.OpenPosition, error) {
	return s.positionRepo.GetByUserID(userID)
}
