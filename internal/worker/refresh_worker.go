package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/regard-engine/internal/repository"
	"github.com/regard-engine/internal/service"
)

const defaultBatchSize = 100

// RefreshWorker periodically re-marks open positions whose price is missing
// or older than the staleness threshold. Positions the price service cannot
// quote simply keep a null mark; their unrealized PnL stays excluded from
// rollups.
type RefreshWorker struct {
	positionRepo *repository.OpenPositionRepository
	prices       *service.PriceService
	interval     time.Duration
	staleness    time.Duration
	logger       *zap.Logger
	stopChan     chan struct{}
}

// NewRefreshWorker creates a new open-position price refresh worker
func NewRefreshWorker(
	positionRepo *repository.OpenPositionRepository,
	prices *service.PriceService,
	interval, staleness time.Duration,
	logger *zap.Logger,
) *RefreshWorker {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if staleness <= 0 {
		staleness = time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RefreshWorker{
		positionRepo: positionRepo,
		prices:       prices,
		interval:     interval,
		staleness:    staleness,
		logger:       logger,
		stopChan:     make(chan struct{}),
	}
}

// Start begins the refresh loop
func (w *RefreshWorker) Start() {
	w.logger.Info("refresh worker started",
		zap.Duration("interval", w.interval),
		zap.Duration("staleness", w.staleness),
	)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.refreshStale()
		case <-w.stopChan:
			w.logger.Info("refresh worker stopped")
			return
		}
	}
}

// Stop stops the refresh loop
func (w *RefreshWorker) Stop() {
	close(w.stopChan)
}

func (w *RefreshWorker) refreshStale() {
	ctx, cancel := context.WithTimeout(context.Background(), w.interval)
	defer cancel()

	cutoff := time.Now().Add(-w.staleness)
	positions, err := w.positionRepo.GetStale(cutoff, defaultBatchSize)
	if err != nil {
		w.logger.Error("failed to load stale positions", zap.Error(err))
		return
	}
	if len(positions) == 0 {
		return
	}

	refreshed := 0
	for i := range positions {
		p := &positions[i]
		price, err := w.prices.CurrentPrice(ctx, p.Ticker)
		if err != nil {
			w.logger.Warn("quote unavailable",
				zap.String("ticker", p.Ticker), zap.Error(err))
			continue
		}
		unrealized := p.CalculateUnrealizedPnL(price)
		if err := w.positionRepo.UpdateMark(p.ID, price, unrealized, time.Now().UTC()); err != nil {
			w.logger.Error("failed to update mark",
				zap.Uint("position_id", p.ID), zap.Error(err))
			continue
		}
		refreshed++
	}

	w.logger.Info("refreshed open positions",
		zap.Int("stale", len(positions)),
		zap.Int("refreshed", refreshed),
	)
}
