package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Jackyzaz/motegao/internal/domain"
	"github.com/Jackyzaz/motegao/internal/usecase"
)

const streamPollInterval = 500 * time.Millisecond

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in development; restrict in production
	},
}

// WebSocketHandler handles WebSocket connections for real-time job status updates.
type WebSocketHandler struct {
	getJobUC *usecase.GetJobUsecase
	interval time.Duration
	logger   *zap.Logger
}

// NewWebSocketHandler creates a new WebSocketHandler.
func NewWebSocketHandler(getJobUC *usecase.GetJobUsecase, logger *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		getJobUC: getJobUC,
		interval: streamPollInterval,
		logger:   logger,
	}
}

// Stream handles GET /api/v1/commands/:id/stream (WebSocket upgrade). Every
// change in status, progress or result is pushed until the job is terminal.
func (h *WebSocketHandler) Stream(c *gin.Context) {
	id, ok := parseJobID(c)
	if !ok {
		return
	}

	// Reject unknown jobs before upgrading so the client gets a plain 404.
	if _, err := h.getJobUC.Execute(c.Request.Context(), id); err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	log := h.logger.With(zap.String("job_id", id.String()))
	log.Debug("WebSocket connection opened")

	err = h.getJobUC.Watch(c.Request.Context(), id, h.interval, func(st *domain.JobState) error {
		return conn.WriteJSON(st)
	})
	if err != nil {
		log.Debug("WebSocket stream ended early", zap.Error(err))
		_ = conn.WriteJSON(gin.H{"error": "stream interrupted"})
		return
	}

	log.Debug("Job reached terminal state, closing WebSocket")
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "job finished"))
}
