// Package marketdata provides the historical close and live quote lookups
// backing benchmark alpha and open-position marks. Stooq serves both as
// plain CSV over HTTP, no API key required.
package marketdata

import (
	"context"
	"encoding/csv"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	defaultBaseURL = "https://stooq.com"
	requestTimeout = 10 * time.Second

	// How far back to look for the last trading day before a requested
	// date (covers weekends and holiday runs).
	closeLookback = 14 * 24 * time.Hour
)

// ErrNoData is returned when Stooq has no rows for the requested range.
var ErrNoData = fmt.Errorf("marketdata: no data")

// Client is a Stooq HTTP client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a new Stooq client
func NewClient(baseURL string, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: requestTimeout},
		logger:     logger,
	}
}

// DailyClose returns the daily close at or before the given instant.
func (c *Client) DailyClose(ctx context.Context, symbol string, at time.Time) (decimal.Decimal, error) {
	from := at.Add(-closeLookback)
	url := fmt.Sprintf("%s/q/d/l/?s=%s&d1=%s&d2=%s&i=d",
		c.baseURL, stooqSymbol(symbol),
		from.Format("20060102"), at.Format("20060102"))

	records, err := c.fetchCSV(ctx, url)
	if err != nil {
		return decimal.Zero, err
	}
	// Header row plus at least one data row; rows are date-ascending, the
	// last one is the close we want.
	if len(records) < 2 {
		return decimal.Zero, fmt.Errorf("%w for %s at %s", ErrNoData, symbol, at.Format("2006-01-02"))
	}
	last := records[len(records)-1]
	if len(last) < 5 {
		return decimal.Zero, fmt.Errorf("marketdata: malformed daily row for %s", symbol)
	}
	close, err := decimal.NewFromString(last[4])
	if err != nil {
		return decimal.Zero, fmt.Errorf("marketdata: parse close for %s: %w", symbol, err)
	}
	return close, nil
}

// Quote returns the latest close for a symbol.
func (c *Client) Quote(ctx context.Context, symbol string) (decimal.Decimal, error) {
	url := fmt.Sprintf("%s/q/l/?s=%s&f=sd2t2ohlcv&h&e=csv", c.baseURL, stooqSymbol(symbol))

	records, err := c.fetchCSV(ctx, url)
	if err != nil {
		return decimal.Zero, err
	}
	if len(records) < 2 || len(records[1]) < 7 {
		return decimal.Zero, fmt.Errorf("%w for %s", ErrNoData, symbol)
	}
	// Columns: Symbol,Date,Time,Open,High,Low,Close,Volume. "N/D" marks an
	// unknown instrument.
	raw := records[1][6]
	if raw == "N/D" {
		return decimal.Zero, fmt.Errorf("%w for %s", ErrNoData, symbol)
	}
	price, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("marketdata: parse quote for %s: %w", symbol, err)
	}
	return price, nil
}

func (c *Client) fetchCSV(ctx context.Context, url string) ([][]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("marketdata: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("marketdata: unexpected status %d", resp.StatusCode)
	}

	reader := csv.NewReader(resp.Body)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("marketdata: read csv: %w", err)
	}
	return records, nil
}

// stooqSymbol maps a plain US ticker to Stooq's naming (lowercase, ".us"
// suffix). Symbols already carrying an exchange suffix pass through.
func stooqSymbol(symbol string) string {
	s := strings.ToLower(strings.TrimSpace(symbol))
	if strings.Contains(s, ".") {
		return s
	}
	return s + ".us"
}
