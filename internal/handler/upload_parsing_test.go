package handler

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestReadCSVRows(t *testing.T) {
	body := "Ticker,Side,Qty,Price,Timestamp\n" +
		"AAPL,BUY,10,150.25,2025-03-03 09:30:00\n" +
		"TSLA,SELL,5,200,2025-03-03 10:00:00\n"

	rows, err := readCSVRows(strings.NewReader(body))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "AAPL", rows[0]["Ticker"])
	assert.Equal(t, "150.25", rows[0]["Price"])
	assert.Equal(t, "SELL", rows[1]["Side"])
}

func TestReadCSVRowsRaggedRecordKeepsKnownColumns(t *testing.T) {
	body := "ticker,side,quantity\n" +
		"AAPL,BUY,10,extra-field\n"

	rows, err := readCSVRows(strings.NewReader(body))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "10", rows[0]["quantity"])
	assert.Len(t, rows[0], 3)
}

func TestReadCSVRowsEmptyBody(t *testing.T) {
	_, err := readCSVRows(strings.NewReader(""))
	assert.Error(t, err)
}

func TestReadRowsRejectsUnparseableJSON(t *testing.T) {
	h := NewRegardHandler(nil, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("POST", "/regard/uploads", strings.NewReader("not json"))
	c.Request.Header.Set("Content-Type", "application/json")

	_, err := h.readRows(c)
	assert.EqualError(t, err, "could not parse upload as tabular data")
}

func TestReadRowsJSONBody(t *testing.T) {
	h := NewRegardHandler(nil, nil)

	body := `{"rows":[{"ticker":"AAPL","side":"BUY","quantity":"1","price":"10","timestamp":"2025-03-03 09:30:00"}]}`
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("POST", "/regard/uploads", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	rows, err := h.readRows(c)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "AAPL", rows[0]["ticker"])
}

func TestReadRowsCSVContentType(t *testing.T) {
	h := NewRegardHandler(nil, nil)

	body := "ticker,side,quantity,price,timestamp\nAAPL,BUY,1,10,2025-03-03 09:30:00\n"
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("POST", "/regard/uploads", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "text/csv")

	rows, err := h.readRows(c)
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestParseDateRange(t *testing.T) {
	from, to, err := parseDateRange("2025-01-02", "2025-02-03")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC), from)
	// The upper bound covers the whole named day.
	assert.Equal(t, time.Date(2025, 2, 3, 23, 59, 59, 999999999, time.UTC), to)
}

func TestParseDateRangeOpenLowerBound(t *testing.T) {
	from, to, err := parseDateRange("", "2025-02-03")
	require.NoError(t, err)
	assert.True(t, from.IsZero())
	assert.Equal(t, 2025, to.Year())
}

func TestParseDateRangeRejectsBadDates(t *testing.T) {
	_, _, err := parseDateRange("01/02/2025", "")
	assert.Error(t, err)
	_, _, err = parseDateRange("", "not-a-date")
	assert.Error(t, err)
}

func TestGetTradesBadDateRangeIsBadRequest(t *testing.T) {
	h := NewRegardHandler(nil, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET", "/regard/trades?from=01/02/2025", nil)

	h.GetTrades(c)
	assert.Equal(t, 400, w.Code)
}

func TestPaginationDefaultsAndCaps(t *testing.T) {
	tests := []struct {
		query    string
		page     int
		pageSize int
	}{
		{"", 1, 50},
		{"page=3&page_size=20", 3, 20},
		{"page=0&page_size=0", 1, 50},
		{"page=-1&page_size=9999", 1, 500},
		{"page=abc&page_size=abc", 1, 50},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest("GET", "/regard/trades?"+tt.query, nil)

			page, pageSize := pagination(c)
			assert.Equal(t, tt.page, page)
			assert.Equal(t, tt.pageSize, pageSize)
		})
	}
}
