package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubScorer struct {
	score   *AIScore
	err     error
	lastRun BaseStats
}

func (s *stubScorer) ScoreFromStats(ctx context.Context, stats BaseStats) (*AIScore, error) {
	s.lastRun = stats
	return s.score, s.err
}

func statsWithSample(wins, losses int) BaseStats {
	rate := float64(wins) / float64(wins+losses)
	return BaseStats{
		Wins:       wins,
		Losses:     losses,
		SampleSize: wins + losses,
		WinRate:    &rate,
	}
}

func alphaOf(user, bench float64) AlphaResult {
	rel := user - bench
	return AlphaResult{UserReturn: &user, BenchmarkReturn: &bench, RelativeAlpha: &rel}
}

func TestComposeNoClosedTradesYieldsNullScore(t *testing.T) {
	c := NewComposer(nil, 0, nil)

	summary := c.Compose(context.Background(), BaseStats{}, AlphaResult{}, decimal.NewFromInt(10000))

	assert.Nil(t, summary.RegardScore)
	assert.Nil(t, summary.WinRate)
	assert.Equal(t, 0, summary.SampleSize)
}

func TestComposeSmallSampleScoresFifty(t *testing.T) {
	c := NewComposer(nil, 0, nil)

	// 3 wins out of 3 would score 100 raw, but the sample is too small to
	// mean anything.
	summary := c.Compose(context.Background(), statsWithSample(3, 0), AlphaResult{}, decimal.NewFromInt(10000))

	require.NotNil(t, summary.RegardScore)
	assert.Equal(t, 50.0, *summary.RegardScore)
}

func TestComposeAlphaAdjustmentLowersScoreWhenBeatingBenchmark(t *testing.T) {
	c := NewComposer(nil, 0, nil)

	// +2% over the benchmark docks 2 points from the base 50.
	summary := c.Compose(context.Background(), statsWithSample(2, 1), alphaOf(0.05, 0.03), decimal.NewFromInt(10000))

	require.NotNil(t, summary.RegardScore)
	assert.InDelta(t, 48.0, *summary.RegardScore, 1e-9)
}

func TestComposeAlphaAdjustmentRaisesScoreWhenTrailingBenchmark(t *testing.T) {
	c := NewComposer(nil, 0, nil)

	summary := c.Compose(context.Background(), statsWithSample(2, 1), alphaOf(-0.01, 0.02), decimal.NewFromInt(10000))

	require.NotNil(t, summary.RegardScore)
	assert.InDelta(t, 53.0, *summary.RegardScore, 1e-9)
}

func TestComposeAlphaAdjustmentIsBounded(t *testing.T) {
	c := NewComposer(nil, 0, nil)

	// 50% over the benchmark would be -50 points unbounded.
	summary := c.Compose(context.Background(), statsWithSample(2, 1), alphaOf(0.60, 0.10), decimal.NewFromInt(10000))

	require.NotNil(t, summary.RegardScore)
	assert.InDelta(t, 40.0, *summary.RegardScore, 1e-9)
}

func TestComposeFallbackDampsTowardSampleSize(t *testing.T) {
	c := NewComposer(nil, 0, nil)

	// Same 70% win rate; the larger sample moves the score further from 50.
	small := c.Compose(context.Background(), statsWithSample(7, 3), AlphaResult{}, decimal.NewFromInt(10000))
	large := c.Compose(context.Background(), statsWithSample(70, 30), AlphaResult{}, decimal.NewFromInt(10000))

	require.NotNil(t, small.RegardScore)
	require.NotNil(t, large.RegardScore)
	assert.Greater(t, *small.RegardScore, 50.0)
	assert.Greater(t, *large.RegardScore, *small.RegardScore)
	assert.Less(t, *large.RegardScore, 70.0)
}

func TestComposeFallbackCurveValues(t *testing.T) {
	c := NewComposer(nil, 0, nil)

	// n=20, win rate 0.7: 50 + (70-50) * 20/40 = 60.
	summary := c.Compose(context.Background(), statsWithSample(14, 6), AlphaResult{}, decimal.NewFromInt(10000))

	require.NotNil(t, summary.RegardScore)
	assert.InDelta(t, 60.0, *summary.RegardScore, 1e-9)
}

func TestComposeUsesAIScorerWhenAvailable(t *testing.T) {
	scorer := &stubScorer{score: &AIScore{Score: 80, Summary: "revenge-trades NVDA after losses"}}
	c := NewComposer(scorer, 0, nil)

	summary := c.Compose(context.Background(), statsWithSample(2, 1), AlphaResult{}, decimal.NewFromInt(10000))

	require.NotNil(t, summary.RegardScore)
	assert.Equal(t, 80.0, *summary.RegardScore)
	require.NotNil(t, summary.AISummary)
	assert.Equal(t, "revenge-trades NVDA after losses", *summary.AISummary)
	assert.Equal(t, 3, scorer.lastRun.SampleSize)
}

func TestComposeAIScorerOutOfRangeIsClamped(t *testing.T) {
	scorer := &stubScorer{score: &AIScore{Score: 140}}
	c := NewComposer(scorer, 0, nil)

	summary := c.Compose(context.Background(), statsWithSample(2, 1), AlphaResult{}, decimal.NewFromInt(10000))

	require.NotNil(t, summary.RegardScore)
	assert.Equal(t, 100.0, *summary.RegardScore)
}

func TestComposeAIScorerErrorFallsBack(t *testing.T) {
	scorer := &stubScorer{err: errors.New("rate limited")}
	c := NewComposer(scorer, 0, nil)

	summary := c.Compose(context.Background(), statsWithSample(2, 1), AlphaResult{}, decimal.NewFromInt(10000))

	require.NotNil(t, summary.RegardScore)
	assert.Equal(t, 50.0, *summary.RegardScore)
	assert.Nil(t, summary.AISummary)
}

func TestComposeScoreRoundedToOneDecimal(t *testing.T) {
	c := NewComposer(nil, 0, nil)

	// n=10, win rate 0.6: 50 + 10 * 10/30 = 53.333... -> 53.3.
	summary := c.Compose(context.Background(), statsWithSample(6, 4), AlphaResult{}, decimal.NewFromInt(10000))

	require.NotNil(t, summary.RegardScore)
	assert.Equal(t, 53.3, *summary.RegardScore)
}

func TestComposeRepairsInconsistentSampleSize(t *testing.T) {
	c := NewComposer(nil, 0, nil)

	bad := statsWithSample(2, 1)
	bad.SampleSize = 99

	summary := c.Compose(context.Background(), bad, AlphaResult{}, decimal.NewFromInt(10000))

	assert.Equal(t, 3, summary.SampleSize)
}

func TestComposeRepairsOutOfRangeWinRate(t *testing.T) {
	c := NewComposer(nil, 0, nil)

	rate := 1.4
	stats := BaseStats{Wins: 2, Losses: 2, SampleSize: 4, WinRate: &rate}

	summary := c.Compose(context.Background(), stats, AlphaResult{}, decimal.NewFromInt(10000))

	require.NotNil(t, summary.WinRate)
	assert.InDelta(t, 0.5, *summary.WinRate, 1e-9)
}

func TestComposeCarriesPeriodAndAlphaThrough(t *testing.T) {
	c := NewComposer(nil, 0, nil)

	start := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	stats := statsWithSample(2, 1)
	stats.PeriodStart = &start
	stats.PeriodEnd = &end
	stats.TotalPnL = decimal.RequireFromString("123.45")

	summary := c.Compose(context.Background(), stats, alphaOf(0.01, 0.005), decimal.NewFromInt(10000))

	assert.Equal(t, &start, summary.PeriodStart)
	assert.Equal(t, &end, summary.PeriodEnd)
	assert.True(t, summary.TotalPnL.Equal(decimal.RequireFromString("123.45")))
	require.NotNil(t, summary.RelativeAlpha)
	assert.InDelta(t, 0.005, *summary.RelativeAlpha, 1e-9)
	assert.True(t, summary.ReferenceCapital.Equal(decimal.NewFromInt(10000)))
}
