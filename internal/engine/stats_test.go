package engine

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/regard-engine/internal/models"
)

func closedTrade(ticker string, pnl string, entry, exit time.Time) models.ClosedTrade {
	return models.ClosedTrade{
		Ticker:      ticker,
		Side:        models.TradeSideLong,
		Quantity:    decimal.NewFromInt(1),
		EntryTime:   entry,
		ExitTime:    exit,
		RealizedPnL: decimal.RequireFromString(pnl),
	}
}

func TestAggregateZeroPnLTradesCountNeither(t *testing.T) {
	a := NewAggregator(nil)

	stats := a.Aggregate([]models.ClosedTrade{
		closedTrade("AAPL", "10", at(9, 30), at(10, 0)),
		closedTrade("AAPL", "-5", at(9, 30), at(10, 0)),
		closedTrade("AAPL", "0", at(9, 30), at(10, 0)),
	}, nil)

	assert.Equal(t, 1, stats.Wins)
	assert.Equal(t, 1, stats.Losses)
	assert.Equal(t, 2, stats.SampleSize)
	require.NotNil(t, stats.WinRate)
	assert.InDelta(t, 0.5, *stats.WinRate, 1e-9)
	assert.True(t, stats.TotalPnL.Equal(decimalFromString(t, "5")))
}

func TestAggregateEmptyInput(t *testing.T) {
	a := NewAggregator(nil)

	stats := a.Aggregate(nil, nil)

	assert.Equal(t, 0, stats.SampleSize)
	assert.Nil(t, stats.WinRate)
	assert.Nil(t, stats.PeriodStart)
	assert.Nil(t, stats.PeriodEnd)
	assert.True(t, stats.TotalPnL.IsZero())
	assert.Empty(t, stats.TopTickers)
}

func TestAggregatePeriodBounds(t *testing.T) {
	a := NewAggregator(nil)

	stats := a.Aggregate([]models.ClosedTrade{
		closedTrade("AAPL", "1", at(10, 0), at(11, 0)),
		closedTrade("TSLA", "1", at(9, 0), at(9, 30)),
		closedTrade("NVDA", "1", at(12, 0), at(16, 0)),
	}, nil)

	require.NotNil(t, stats.PeriodStart)
	require.NotNil(t, stats.PeriodEnd)
	assert.Equal(t, at(9, 0), *stats.PeriodStart)
	assert.Equal(t, at(16, 0), *stats.PeriodEnd)
}

func TestAggregateTopTickersOrdering(t *testing.T) {
	a := NewAggregator(nil)

	var closed []models.ClosedTrade
	counts := map[string]int{"AAPL": 3, "TSLA": 3, "NVDA": 5, "GME": 1, "AMC": 2, "PLTR": 2}
	for ticker, n := range counts {
		for i := 0; i < n; i++ {
			closed = append(closed, closedTrade(ticker, "1", at(9, 30), at(10, 0)))
		}
	}

	stats := a.Aggregate(closed, nil)

	require.Len(t, stats.TopTickers, 5)
	// Count descending, ties broken by ticker ascending.
	assert.Equal(t, "NVDA", stats.TopTickers[0].Ticker)
	assert.Equal(t, "AAPL", stats.TopTickers[1].Ticker)
	assert.Equal(t, "TSLA", stats.TopTickers[2].Ticker)
	assert.Equal(t, "AMC", stats.TopTickers[3].Ticker)
	assert.Equal(t, "PLTR", stats.TopTickers[4].Ticker)
}

func TestAggregatePerTickerStats(t *testing.T) {
	a := NewAggregator(nil)

	stats := a.Aggregate([]models.ClosedTrade{
		closedTrade("AAPL", "10", at(9, 30), at(10, 0)),
		closedTrade("AAPL", "-4", at(10, 0), at(11, 0)),
	}, nil)

	require.Len(t, stats.TopTickers, 1)
	ts := stats.TopTickers[0]
	assert.Equal(t, 2, ts.Trades)
	require.NotNil(t, ts.WinRate)
	assert.InDelta(t, 0.5, *ts.WinRate, 1e-9)
	assert.True(t, ts.NetPnL.Equal(decimalFromString(t, "6")))
	assert.True(t, ts.AvgPnL.Equal(decimalFromString(t, "3")))
}

func TestAggregateHoldingBuckets(t *testing.T) {
	a := NewAggregator(nil)

	base := time.Date(2025, 3, 3, 9, 30, 0, 0, time.UTC)
	stats := a.Aggregate([]models.ClosedTrade{
		closedTrade("A", "1", base, base.Add(5*time.Minute)),     // scalper
		closedTrade("B", "1", base, base.Add(6*time.Hour)),       // intraday
		closedTrade("C", "1", base, base.Add(3*24*time.Hour)),    // swing
		closedTrade("D", "1", base, base.Add(12*24*time.Hour)),   // position
		closedTrade("E", "1", base, base.Add(14*time.Minute+59*time.Second)), // scalper
	}, nil)

	assert.Equal(t, 2, stats.Buckets.Scalper)
	assert.Equal(t, 1, stats.Buckets.Intraday)
	assert.Equal(t, 1, stats.Buckets.Swing)
	assert.Equal(t, 1, stats.Buckets.Position)
}

func TestAggregateOpenRollups(t *testing.T) {
	a := NewAggregator(nil)

	pnl := decimal.RequireFromString("12.5")
	open := []models.OpenPosition{
		{Ticker: "AAPL", Side: models.TradeSideLong, Quantity: decimal.NewFromInt(5), UnrealizedPnL: &pnl},
		{Ticker: "TSLA", Side: models.TradeSideShort, Quantity: decimal.NewFromInt(2)}, // no mark yet
	}

	stats := a.Aggregate(nil, open)

	assert.Equal(t, 2, stats.OpenCount)
	require.NotNil(t, stats.OpenUnrealizedPnL)
	// The unmarked position is excluded, not counted as zero.
	assert.True(t, stats.OpenUnrealizedPnL.Equal(decimalFromString(t, "12.5")))
}

func TestAggregateOpenRollupAbsentWithoutMarks(t *testing.T) {
	a := NewAggregator(nil)

	stats := a.Aggregate(nil, []models.OpenPosition{
		{Ticker: "AAPL", Side: models.TradeSideLong, Quantity: decimal.NewFromInt(5)},
	})

	assert.Equal(t, 1, stats.OpenCount)
	assert.Nil(t, stats.OpenUnrealizedPnL)
}
