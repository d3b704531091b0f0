package engine

import (
	"context"
	"math"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/regard-engine/internal/models"
)

const (
	// Below this sample size the deterministic fallback refuses to read
	// anything into the win rate.
	minScoredSample = 10

	// Damping constant of the fallback curve: weight = n / (n + k). Pulls
	// extreme win rates toward 50 for small samples and approaches the raw
	// linear mapping as the sample grows.
	dampingK = 20

	maxAlphaAdjustment = 10.0
)

// AIScore is the result of the external qualitative scorer: a 0-100 score
// plus an opaque narrative summary.
type AIScore struct {
	Score   float64
	Summary string
}

// StatScorer is the optional AI collaborator. A nil scorer or any error from
// it selects the deterministic fallback; it never fails a composition.
type StatScorer interface {
	ScoreFromStats(ctx context.Context, stats BaseStats) (*AIScore, error)
}

// Composer combines base statistics and the alpha triple into the final
// bounded summary.
type Composer struct {
	scorer  StatScorer
	timeout time.Duration
	logger  *zap.Logger
}

// NewComposer creates a new Composer. scorer may be nil when no AI
// collaborator is configured.
func NewComposer(scorer StatScorer, timeout time.Duration, logger *zap.Logger) *Composer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Composer{scorer: scorer, timeout: timeout, logger: logger}
}

// Compose builds the RegardSummary for one computation. User identity and
// upload bookkeeping are filled in by the caller.
func (c *Composer) Compose(ctx context.Context, stats BaseStats, alpha AlphaResult, referenceCapital decimal.Decimal) models.RegardSummary {
	stats = c.enforceInvariants(stats)

	summary := models.RegardSummary{
		Wins:             stats.Wins,
		Losses:           stats.Losses,
		SampleSize:       stats.SampleSize,
		WinRate:          stats.WinRate,
		TotalPnL:         stats.TotalPnL,
		ReferenceCapital: referenceCapital,
		UserReturn:       alpha.UserReturn,
		BenchmarkReturn:  alpha.BenchmarkReturn,
		RelativeAlpha:    alpha.RelativeAlpha,
		PeriodStart:      stats.PeriodStart,
		PeriodEnd:        stats.PeriodEnd,
	}

	// Insufficient data: the score and its dependents stay null, never a
	// placeholder number.
	if stats.SampleSize == 0 {
		return summary
	}

	baseScore, aiSummary := c.baseScore(ctx, stats)
	summary.AISummary = aiSummary

	score := clamp(baseScore+alphaAdjustment(alpha), 0, 100)
	score = math.Round(score*10) / 10
	summary.RegardScore = &score

	return summary
}

// baseScore asks the AI collaborator when one is configured and degrades to
// the deterministic fallback on any failure. Missing configuration is
// expected (warn); a configured scorer erroring is not (error).
func (c *Composer) baseScore(ctx context.Context, stats BaseStats) (float64, *string) {
	if c.scorer == nil {
		c.logger.Warn("ai scorer not configured, using fallback score")
		return c.fallbackScore(stats), nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	ai, err := c.scorer.ScoreFromStats(ctx, stats)
	if err != nil || ai == nil {
		c.logger.Error("ai scoring unavailable, using fallback score", zap.Error(err))
		return c.fallbackScore(stats), nil
	}

	score := clamp(ai.Score, 0, 100)
	var aiSummary *string
	if ai.Summary != "" {
		s := ai.Summary
		aiSummary = &s
	}
	return score, aiSummary
}

// fallbackScore maps the win rate linearly onto 0-100, damped toward 50 by
// sample size. Small samples score a flat 50.
func (c *Composer) fallbackScore(stats BaseStats) float64 {
	if stats.SampleSize < minScoredSample || stats.WinRate == nil {
		return 50
	}
	raw := *stats.WinRate * 100
	weight := float64(stats.SampleSize) / float64(stats.SampleSize+dampingK)
	return 50 + (raw-50)*weight
}

// alphaAdjustment inverts the sign of alpha: beating the benchmark lowers
// the score, trailing it raises it. Bounded to +/-10 points.
func alphaAdjustment(alpha AlphaResult) float64 {
	if alpha.RelativeAlpha == nil {
		return 0
	}
	return clamp(-*alpha.RelativeAlpha*100, -maxAlphaAdjustment, maxAlphaAdjustment)
}

// enforceInvariants re-derives sample size and clamps the win rate if a bug
// upstream ever let them drift. Corrected values are logged, invalid ones
// are never returned.
func (c *Composer) enforceInvariants(stats BaseStats) BaseStats {
	if derived := stats.Wins + stats.Losses; stats.SampleSize != derived {
		c.logger.Warn("sample size inconsistent, recomputing",
			zap.Int("sample_size", stats.SampleSize),
			zap.Int("wins", stats.Wins),
			zap.Int("losses", stats.Losses),
		)
		stats.SampleSize = derived
	}

	if stats.SampleSize == 0 {
		stats.WinRate = nil
		return stats
	}

	if stats.WinRate == nil {
		rate := float64(stats.Wins) / float64(stats.SampleSize)
		stats.WinRate = &rate
		return stats
	}
	if *stats.WinRate < 0 || *stats.WinRate > 1 {
		c.logger.Warn("win rate out of range, recomputing",
			zap.Float64("win_rate", *stats.WinRate))
		rate := float64(stats.Wins) / float64(stats.SampleSize)
		stats.WinRate = &rate
	}
	return stats
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
