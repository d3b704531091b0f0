package engine

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/regard-engine/internal/models"
)

// Holding-period bucket bounds
const (
	scalperMax  = 15 * time.Minute
	intradayMax = 24 * time.Hour
	swingMax    = 5 * 24 * time.Hour
)

const topTickerCount = 5

// TickerStats is the per-ticker breakdown of closed trades.
type TickerStats struct {
	Ticker  string          `json:"ticker"`
	Trades  int             `json:"trades"`
	Wins    int             `json:"wins"`
	Losses  int             `json:"losses"`
	WinRate *float64        `json:"win_rate"`
	NetPnL  decimal.Decimal `json:"net_pnl"`
	AvgPnL  decimal.Decimal `json:"avg_pnl"`
}

// HoldingBuckets classifies closed trades by holding period. The counts feed
// the narrative collaborator as a qualitative signal.
type HoldingBuckets struct {
	Scalper  int `json:"scalper"`  // < 15 minutes
	Intraday int `json:"intraday"` // < 1 day
	Swing    int `json:"swing"`    // 1-5 days
	Position int `json:"position"` // > 5 days
}

// BaseStats is the aggregate of one matching pass. Wins and losses count
// decisive trades only; zero-PnL trades belong to neither.
type BaseStats struct {
	Wins       int      `json:"wins"`
	Losses     int      `json:"losses"`
	SampleSize int      `json:"sample_size"`
	WinRate    *float64 `json:"win_rate"`

	TotalPnL    decimal.Decimal `json:"total_pnl"`
	PeriodStart *time.Time      `json:"period_start"`
	PeriodEnd   *time.Time      `json:"period_end"`

	TopTickers []TickerStats  `json:"top_tickers"`
	Buckets    HoldingBuckets `json:"buckets"`

	OpenCount         int              `json:"open_count"`
	OpenUnrealizedPnL *decimal.Decimal `json:"open_unrealized_pnl"`
}

// Aggregator derives base performance statistics from matched output.
type Aggregator struct {
	logger *zap.Logger
}

// NewAggregator creates a new Aggregator
func NewAggregator(logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{logger: logger}
}

// Aggregate computes BaseStats from closed trades and open positions.
func (a *Aggregator) Aggregate(closed []models.ClosedTrade, open []models.OpenPosition) BaseStats {
	stats := BaseStats{TotalPnL: decimal.Zero}

	perTicker := make(map[string]*TickerStats)
	tickers := make([]string, 0)

	for i := range closed {
		t := &closed[i]

		ts, ok := perTicker[t.Ticker]
		if !ok {
			ts = &TickerStats{Ticker: t.Ticker, NetPnL: decimal.Zero}
			perTicker[t.Ticker] = ts
			tickers = append(tickers, t.Ticker)
		}
		ts.Trades++
		ts.NetPnL = ts.NetPnL.Add(t.RealizedPnL)

		switch t.RealizedPnL.Sign() {
		case 1:
			stats.Wins++
			ts.Wins++
		case -1:
			stats.Losses++
			ts.Losses++
		}

		stats.TotalPnL = stats.TotalPnL.Add(t.RealizedPnL)

		if stats.PeriodStart == nil || t.EntryTime.Before(*stats.PeriodStart) {
			entry := t.EntryTime
			stats.PeriodStart = &entry
		}
		if stats.PeriodEnd == nil || t.ExitTime.After(*stats.PeriodEnd) {
			exit := t.ExitTime
			stats.PeriodEnd = &exit
		}

		switch holding := t.HoldingPeriod(); {
		case holding < scalperMax:
			stats.Buckets.Scalper++
		case holding < intradayMax:
			stats.Buckets.Intraday++
		case holding <= swingMax:
			stats.Buckets.Swing++
		default:
			stats.Buckets.Position++
		}
	}

	// Sample size is always re-derived from the counts, never cached.
	stats.SampleSize = stats.Wins + stats.Losses
	stats.WinRate = a.safeWinRate(stats.Wins, stats.SampleSize)

	for _, ts := range perTicker {
		if decisive := ts.Wins + ts.Losses; decisive > 0 {
			rate := float64(ts.Wins) / float64(decisive)
			ts.WinRate = &rate
		}
		ts.AvgPnL = ts.NetPnL.Div(decimal.NewFromInt(int64(ts.Trades)))
	}
	stats.TopTickers = topTickers(perTicker, tickers)

	stats.OpenCount = len(open)
	stats.OpenUnrealizedPnL = openUnrealizedTotal(open)

	return stats
}

// safeWinRate computes wins/sampleSize, clamping into [0,1] defensively. A
// clamp firing means an upstream bug, so it logs rather than propagating an
// invalid rate.
func (a *Aggregator) safeWinRate(wins, sampleSize int) *float64 {
	if sampleSize == 0 {
		return nil
	}
	rate := float64(wins) / float64(sampleSize)
	if rate < 0 || rate > 1 {
		a.logger.Warn("win rate out of range, clamping",
			zap.Float64("win_rate", rate),
			zap.Int("wins", wins),
			zap.Int("sample_size", sampleSize),
		)
		if rate < 0 {
			rate = 0
		} else {
			rate = 1
		}
	}
	return &rate
}

// topTickers keeps the five most-traded tickers, sorted by trade count
// descending then ticker ascending so the order is deterministic.
func topTickers(perTicker map[string]*TickerStats, tickers []string) []TickerStats {
	ranked := make([]TickerStats, 0, len(tickers))
	for _, ticker := range tickers {
		ranked = append(ranked, *perTicker[ticker])
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Trades != ranked[j].Trades {
			return ranked[i].Trades > ranked[j].Trades
		}
		return ranked[i].Ticker < ranked[j].Ticker
	})
	if len(ranked) > topTickerCount {
		ranked = ranked[:topTickerCount]
	}
	return ranked
}

// openUnrealizedTotal sums unrealized PnL over positions that carry a mark.
// Positions without a current price are excluded, not treated as zero; with
// no priced positions at all the total is absent.
func openUnrealizedTotal(open []models.OpenPosition) *decimal.Decimal {
	var total decimal.Decimal
	priced := false
	for i := range open {
		if open[i].UnrealizedPnL == nil {
			continue
		}
		total = total.Add(*open[i].UnrealizedPnL)
		priced = true
	}
	if !priced {
		return nil
	}
	return &total
}
