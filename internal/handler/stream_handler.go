package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/regard-engine/internal/middleware"
	"github.com/regard-engine/internal/service"
)

const streamInterval = 5 * time.Second

// StreamHandler pushes the user's open positions (with their latest marks)
// over a websocket so a dashboard can follow the refresh worker's updates
// without polling.
type StreamHandler struct {
	scoreService *service.ScoreService
	upgrader     websocket.Upgrader
	logger       *zap.Logger
}

// NewStreamHandler creates a new StreamHandler
func NewStreamHandler(scoreService *service.ScoreService, logger *zap.Logger) *StreamHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StreamHandler{
		scoreService: scoreService,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// RegisterRoutes registers stream routes
func (h *StreamHandler) RegisterRoutes(rg *gin.RouterGroup, authMiddleware gin.HandlerFunc) {
	rg.GET("/regard/positions/stream", authMiddleware, h.StreamPositions)
}

// StreamPositions upgrades to a websocket and sends the open position set
// every few seconds until the client disconnects.
func (h *StreamHandler) StreamPositions(c *gin.Context) {
	userID := middleware.GetUserID(c)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(streamInterval)
	defer ticker.Stop()

	// Send an initial snapshot, then push on every tick.
	if !h.push(conn, userID) {
		return
	}
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if !h.push(conn, userID) {
				return
			}
		}
	}
}

func (h *StreamHandler) push(conn *websocket.Conn, userID uint) bool {
	positions, err := h.scoreService.GetPositions(userID)
	if err != nil {
		h.logger.Error("failed to load positions for stream",
			zap.Uint("user_id", userID), zap.Error(err))
		return false
	}
	if err := conn.SetWriteDeadline(time.Now().Add(10 * time.Second)); err != nil {
		return false
	}
	if err := conn.WriteJSON(positions); err != nil {
		return false
	}
	return true
}
