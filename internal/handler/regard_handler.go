package handler

import (
	"encoding/csv"
	"errors"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/regard-engine/internal/engine"
	"github.com/regard-engine/internal/middleware"
	"github.com/regard-engine/internal/models"
	"github.com/regard-engine/internal/service"
	"github.com/regard-engine/pkg/response"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// RegardHandler exposes the scoring engine over HTTP: upload an execution
// history, read back the summary, closed trades and open positions.
type RegardHandler struct {
	scoreService *service.ScoreService
	logger       *zap.Logger
}

// NewRegardHandler creates a new RegardHandler
func NewRegardHandler(scoreService *service.ScoreService, logger *zap.Logger) *RegardHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RegardHandler{scoreService: scoreService, logger: logger}
}

// RegisterRoutes registers regard routes
func (h *RegardHandler) RegisterRoutes(rg *gin.RouterGroup, authMiddleware gin.HandlerFunc) {
	regard := rg.Group("/regard")
	regard.Use(authMiddleware)
	{
		regard.POST("/uploads", h.Upload)
		regard.GET("/summary", h.GetSummary)
		regard.GET("/trades", h.GetTrades)
		regard.GET("/positions", h.GetPositions)
	}
}

// UploadRequest is the JSON upload body
type UploadRequest struct {
	Rows []map[string]string `json:"rows" binding:"required"`
}

// UploadResult is the response body of a processed upload
type UploadResult struct {
	Summary       models.RegardSummary `json:"summary"`
	ClosedTrades  int                  `json:"closed_trades"`
	OpenPositions int                  `json:"open_positions"`
	SkippedRows   int                  `json:"skipped_rows"`
	Anomalies     int                  `json:"anomalies"`
}

// Upload accepts a raw execution history as JSON rows or a CSV body,
// recomputes the user's score and replaces all stored results.
func (h *RegardHandler) Upload(c *gin.Context) {
	userID := middleware.GetUserID(c)

	rows, err := h.readRows(c)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.scoreService.ProcessUpload(c.Request.Context(), userID, rows)
	if err != nil {
		if errors.Is(err, service.ErrEmptyUpload) {
			response.BadRequest(c, "upload contains no rows")
			return
		}
		h.logger.Error("upload processing failed", zap.Uint("user_id", userID), zap.Error(err))
		response.InternalError(c, "failed to process upload")
		return
	}

	response.Success(c, UploadResult{
		Summary:       result.Summary,
		ClosedTrades:  len(result.Closed),
		OpenPositions: len(result.Open),
		SkippedRows:   result.Skipped,
		Anomalies:     result.Anomalies,
	})
}

// readRows converts the request body into raw row maps. The engine never
// reads a file directly; failing to parse the body as tabular data at all is
// the one batch-level error.
func (h *RegardHandler) readRows(c *gin.Context) ([]engine.RawRow, error) {
	contentType := c.ContentType()

	if strings.Contains(contentType, "text/csv") {
		return readCSVRows(c.Request.Body)
	}

	var req UploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, errors.New("could not parse upload as tabular data")
	}
	rows := make([]engine.RawRow, len(req.Rows))
	for i, row := range req.Rows {
		rows[i] = engine.RawRow(row)
	}
	return rows, nil
}

func readCSVRows(r io.Reader) ([]engine.RawRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, errors.New("could not parse upload as tabular data")
	}

	var rows []engine.RawRow
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.New("could not parse upload as tabular data")
		}
		row := make(engine.RawRow, len(header))
		for i, value := range record {
			if i < len(header) {
				row[header[i]] = value
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// GetSummary returns the user's latest regard summary. A user with no
// decisive trades gets a summary with null score, not an error.
func (h *RegardHandler) GetSummary(c *gin.Context) {
	userID := middleware.GetUserID(c)

	summary, err := h.scoreService.GetSummary(userID)
	if err != nil {
		if errors.Is(err, service.ErrSummaryNotFound) {
			response.NotFound(c, "no summary computed yet")
			return
		}
		response.InternalError(c, "failed to load summary")
		return
	}

	response.Success(c, summary)
}

// GetTrades returns the user's closed trades: paginated by default, or the
// full match set when filtered by ticker or exit-date range (drill-down from
// the summary's top-tickers breakdown).
func (h *RegardHandler) GetTrades(c *gin.Context) {
	userID := middleware.GetUserID(c)

	if ticker := c.Query("ticker"); ticker != "" {
		trades, err := h.scoreService.GetTradesByTicker(userID, strings.ToUpper(ticker))
		if err != nil {
			response.InternalError(c, "failed to load trades")
			return
		}
		response.Success(c, trades)
		return
	}

	if fromRaw, toRaw := c.Query("from"), c.Query("to"); fromRaw != "" || toRaw != "" {
		from, to, err := parseDateRange(fromRaw, toRaw)
		if err != nil {
			response.BadRequest(c, "from/to must be YYYY-MM-DD dates")
			return
		}
		trades, err := h.scoreService.GetTradesByDateRange(userID, from, to)
		if err != nil {
			response.InternalError(c, "failed to load trades")
			return
		}
		response.Success(c, trades)
		return
	}

	page, pageSize := pagination(c)
	trades, total, err := h.scoreService.GetTrades(userID, page, pageSize)
	if err != nil {
		response.InternalError(c, "failed to load trades")
		return
	}

	response.SuccessPaginated(c, trades, total, page, pageSize)
}

// parseDateRange parses optional YYYY-MM-DD bounds. A missing lower bound is
// open-ended; the upper bound covers the whole named day.
func parseDateRange(fromRaw, toRaw string) (time.Time, time.Time, error) {
	from := time.Time{}
	to := time.Now().UTC()

	if fromRaw != "" {
		parsed, err := time.Parse("2006-01-02", fromRaw)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		from = parsed
	}
	if toRaw != "" {
		parsed, err := time.Parse("2006-01-02", toRaw)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		to = parsed.Add(24*time.Hour - time.Nanosecond)
	}
	return from, to, nil
}

// GetPositions returns the user's open positions
func (h *RegardHandler) GetPositions(c *gin.Context) {
	userID := middleware.GetUserID(c)

	positions, err := h.scoreService.GetPositions(userID)
	if err != nil {
		response.InternalError(c, "failed to load positions")
		return
	}

	response.Success(c, positions)
}

func pagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(defaultPageSize)))
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}
