package engine

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uploadRows() []RawRow {
	return []RawRow{
		{"ticker": "AAPL", "side": "BUY", "quantity": "10", "price": "150", "timestamp": "2025-03-03 09:30:00"},
		{"ticker": "AAPL", "side": "SELL TO CLOSE", "quantity": "10", "price": "152.5", "timestamp": "2025-03-03 16:00:00"},
		{"ticker": "TSLA", "side": "SELL TO OPEN", "quantity": "5", "price": "200", "timestamp": "2025-03-03 10:00:00"},
		{"ticker": "TSLA", "side": "BUY TO CLOSE", "quantity": "5", "price": "195", "timestamp": "2025-03-04 15:00:00"},
	}
}

func TestEngineRunEndToEnd(t *testing.T) {
	lookup := &stubLookup{prices: map[string]string{
		"2025-03-03": "100",
		"2025-03-04": "102",
	}}
	e := New(Config{ReferenceCapital: decimal.NewFromInt(10000)}, lookup, nil, nil)

	result := e.Run(context.Background(), uploadRows())

	require.Len(t, result.Closed, 2)
	require.Empty(t, result.Open)
	assert.Equal(t, 0, result.Skipped)
	assert.Equal(t, 0, result.Anomalies)

	summary := result.Summary
	assert.Equal(t, 2, summary.Wins)
	assert.Equal(t, 0, summary.Losses)
	assert.True(t, summary.TotalPnL.Equal(decimalFromString(t, "50")))

	require.NotNil(t, summary.UserReturn)
	require.NotNil(t, summary.BenchmarkReturn)
	require.NotNil(t, summary.RelativeAlpha)
	assert.InDelta(t, 0.005, *summary.UserReturn, 1e-9)
	assert.InDelta(t, 0.02, *summary.BenchmarkReturn, 1e-9)
	assert.InDelta(t, -0.015, *summary.RelativeAlpha, 1e-9)

	// Base 50 (small sample), trailing the benchmark adds 1.5 points.
	require.NotNil(t, summary.RegardScore)
	assert.InDelta(t, 51.5, *summary.RegardScore, 1e-9)
}

func TestEngineRunCountsSkippedRows(t *testing.T) {
	e := New(Config{}, nil, nil, nil)

	rows := append(uploadRows(), RawRow{"ticker": "AAPL", "side": "HODL", "quantity": "1", "price": "10", "timestamp": "2025-03-03 10:00:00"})
	result := e.Run(context.Background(), rows)

	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 1, result.Summary.SkippedRows)
	require.Len(t, result.Closed, 2)
}

func TestEngineRunEmptyBatchYieldsNullScore(t *testing.T) {
	e := New(Config{}, nil, nil, nil)

	result := e.Run(context.Background(), nil)

	assert.Empty(t, result.Closed)
	assert.Empty(t, result.Open)
	assert.Nil(t, result.Summary.RegardScore)
	assert.Nil(t, result.Summary.WinRate)
}

func TestEngineRunWithoutLookupStillScores(t *testing.T) {
	e := New(Config{}, nil, nil, nil)

	result := e.Run(context.Background(), uploadRows())

	require.NotNil(t, result.Summary.RegardScore)
	assert.Equal(t, 50.0, *result.Summary.RegardScore)
	assert.Nil(t, result.Summary.RelativeAlpha)
}

func TestEngineRunIsDeterministic(t *testing.T) {
	lookup := &stubLookup{prices: map[string]string{
		"2025-03-03": "100",
		"2025-03-04": "102",
	}}
	e := New(Config{}, lookup, nil, nil)

	first := e.Run(context.Background(), uploadRows())
	second := e.Run(context.Background(), uploadRows())

	assert.Equal(t, first.Closed, second.Closed)
	assert.Equal(t, first.Open, second.Open)
	assert.Equal(t, first.Summary, second.Summary)
}
