package engine

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PriceLookup is the injected market-data capability. Implementations are
// expected to resolve the last available close at or before the instant.
type PriceLookup interface {
	PriceAt(ctx context.Context, symbol string, at time.Time) (decimal.Decimal, error)
}

// AlphaResult is the market-relative triple. The three fields are populated
// together or not at all; a partial triple would let a caller compute a
// misleading alpha.
type AlphaResult struct {
	UserReturn      *float64 `json:"user_return"`
	BenchmarkReturn *float64 `json:"benchmark_return"`
	RelativeAlpha   *float64 `json:"relative_alpha"`
}

// AlphaCalculator derives the user's period return against a benchmark
// instrument over the same period.
type AlphaCalculator struct {
	benchmark        string
	referenceCapital decimal.Decimal
	lookup           PriceLookup
	timeout          time.Duration
	logger           *zap.Logger
}

// NewAlphaCalculator creates a new AlphaCalculator
func NewAlphaCalculator(benchmark string, referenceCapital decimal.Decimal, lookup PriceLookup, timeout time.Duration, logger *zap.Logger) *AlphaCalculator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &AlphaCalculator{
		benchmark:        benchmark,
		referenceCapital: referenceCapital,
		lookup:           lookup,
		timeout:          timeout,
		logger:           logger,
	}
}

// Compute returns the alpha triple for the trading period, or the empty
// triple when period bounds are missing or the benchmark lookup fails.
func (c *AlphaCalculator) Compute(ctx context.Context, periodStart, periodEnd *time.Time, totalPnL decimal.Decimal) AlphaResult {
	if periodStart == nil || periodEnd == nil || c.lookup == nil {
		return AlphaResult{}
	}
	if !c.referenceCapital.IsPositive() {
		c.logger.Warn("non-positive reference capital, skipping alpha",
			zap.String("reference_capital", c.referenceCapital.String()))
		return AlphaResult{}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	startPrice, err := c.lookup.PriceAt(ctx, c.benchmark, *periodStart)
	if err != nil {
		c.logger.Warn("benchmark unavailable",
			zap.String("symbol", c.benchmark), zap.Error(err))
		return AlphaResult{}
	}
	endPrice, err := c.lookup.PriceAt(ctx, c.benchmark, *periodEnd)
	if err != nil {
		c.logger.Warn("benchmark unavailable",
			zap.String("symbol", c.benchmark), zap.Error(err))
		return AlphaResult{}
	}
	if !startPrice.IsPositive() {
		c.logger.Warn("benchmark start price not positive",
			zap.String("symbol", c.benchmark),
			zap.String("price", startPrice.String()))
		return AlphaResult{}
	}

	userReturn := totalPnL.Div(c.referenceCapital).InexactFloat64()
	benchmarkReturn := endPrice.Sub(startPrice).Div(startPrice).InexactFloat64()
	relativeAlpha := userReturn - benchmarkReturn

	return AlphaResult{
		UserReturn:      &userReturn,
		BenchmarkReturn: &benchmarkReturn,
		RelativeAlpha:   &relativeAlpha,
	}
}
