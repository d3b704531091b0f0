// Package engine implements the trade-matching and scoring pipeline: raw
// export rows are normalized into canonical actions, matched FIFO into
// closed trades and open positions, aggregated into base statistics, and
// composed with a market-relative alpha adjustment into a Regard summary.
//
// The pipeline is a pure transformation over one user's upload. The only
// blocking calls are the injected benchmark lookup and the optional AI
// scorer, both bounded by timeouts; each invocation owns its own queues and
// accumulators, so concurrent runs for different users need no coordination.
package engine

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/regard-engine/internal/models"
)

// Defaults for the scoring configuration.
const (
	DefaultBenchmarkSymbol  = "SPY"
	DefaultReferenceCapital = 10000
)

// Config carries the scoring knobs of the engine.
type Config struct {
	BenchmarkSymbol  string
	ReferenceCapital decimal.Decimal
	LookupTimeout    time.Duration
	AITimeout        time.Duration
}

// Result is everything one computation produces. The caller persists it with
// full-replace semantics; the engine holds no state between runs.
type Result struct {
	Closed    []models.ClosedTrade
	Open      []models.OpenPosition
	Summary   models.RegardSummary
	Skipped   int
	Anomalies int
}

// Engine ties the pipeline stages together.
type Engine struct {
	normalizer *Normalizer
	matcher    *Matcher
	aggregator *Aggregator
	alpha      *AlphaCalculator
	composer   *Composer
	logger     *zap.Logger
	cfg        Config
}

// New creates an Engine. lookup and scorer may be nil; alpha then collapses
// to null and scoring falls back to the deterministic formula.
func New(cfg Config, lookup PriceLookup, scorer StatScorer, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BenchmarkSymbol == "" {
		cfg.BenchmarkSymbol = DefaultBenchmarkSymbol
	}
	if !cfg.ReferenceCapital.IsPositive() {
		cfg.ReferenceCapital = decimal.NewFromInt(DefaultReferenceCapital)
	}

	return &Engine{
		normalizer: NewNormalizer(logger),
		matcher:    NewMatcher(logger),
		aggregator: NewAggregator(logger),
		alpha:      NewAlphaCalculator(cfg.BenchmarkSymbol, cfg.ReferenceCapital, lookup, cfg.LookupTimeout, logger),
		composer:   NewComposer(scorer, cfg.AITimeout, logger),
		logger:     logger,
		cfg:        cfg,
	}
}

// Run executes the full pipeline over one upload's rows. Per-row failures
// are counted, not raised; an empty or fully skipped batch yields an
// insufficient-data summary rather than an error.
func (e *Engine) Run(ctx context.Context, rows []RawRow) *Result {
	actions, skipped := e.normalizer.Normalize(rows)
	matched := e.matcher.Match(actions)
	stats := e.aggregator.Aggregate(matched.Closed, matched.Open)
	alpha := e.alpha.Compute(ctx, stats.PeriodStart, stats.PeriodEnd, stats.TotalPnL)
	summary := e.composer.Compose(ctx, stats, alpha, e.cfg.ReferenceCapital)
	summary.SkippedRows = skipped

	e.logger.Info("engine run complete",
		zap.Int("rows", len(rows)),
		zap.Int("skipped", skipped),
		zap.Int("closed_trades", len(matched.Closed)),
		zap.Int("open_positions", len(matched.Open)),
		zap.Int("anomalies", matched.Anomalies),
		zap.Int("sample_size", summary.SampleSize),
	)

	return &Result{
		Closed:    matched.Closed,
		Open:      matched.Open,
		Summary:   summary,
		Skipped:   skipped,
		Anomalies: matched.Anomalies,
	}
}
