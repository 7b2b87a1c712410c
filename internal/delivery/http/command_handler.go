package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Jackyzaz/motegao/internal/domain"
	"github.com/Jackyzaz/motegao/internal/usecase"
)

// CommandHandler handles HTTP requests for recon commands.
type CommandHandler struct {
	submitUC *usecase.SubmitJobUsecase
	getJobUC *usecase.GetJobUsecase
	cancelUC *usecase.CancelJobUsecase
	logger   *zap.Logger
}

// NewCommandHandler creates a new CommandHandler.
func NewCommandHandler(
	submitUC *usecase.SubmitJobUsecase,
	getJobUC *usecase.GetJobUsecase,
	cancelUC *usecase.CancelJobUsecase,
	logger *zap.Logger,
) *CommandHandler {
	return &CommandHandler{
		submitUC: submitUC,
		getJobUC: getJobUC,
		cancelUC: cancelUC,
		logger:   logger,
	}
}

// Ping handles POST /api/v1/commands/ping
func (h *CommandHandler) Ping(c *gin.Context) {
	var req domain.PingRequest
	if !bindJSON(c, &req) {
		return
	}
	h.submit(c, &domain.SubmitRequest{Kind: domain.KindPing, Ping: &req})
}

// PortScan handles POST /api/v1/commands/nmap
func (h *CommandHandler) PortScan(c *gin.Context) {
	var req domain.PortScanRequest
	if !bindJSON(c, &req) {
		return
	}
	h.submit(c, &domain.SubmitRequest{Kind: domain.KindPortScan, PortScan: &req})
}

// SubdomainEnum handles POST /api/v1/commands/subdomain_enum
func (h *CommandHandler) SubdomainEnum(c *gin.Context) {
	var req domain.SubdomainEnumRequest
	if !bindJSON(c, &req) {
		return
	}
	h.submit(c, &domain.SubmitRequest{Kind: domain.KindSubdomainEnum, SubdomainEnum: &req})
}

// PathEnum handles POST /api/v1/commands/path_enum
func (h *CommandHandler) PathEnum(c *gin.Context) {
	var req domain.PathEnumRequest
	if !bindJSON(c, &req) {
		return
	}
	h.submit(c, &domain.SubmitRequest{Kind: domain.KindPathEnum, PathEnum: &req})
}

func (h *CommandHandler) submit(c *gin.Context, req *domain.SubmitRequest) {
	resp, err := h.submitUC.Execute(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidSpec):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, domain.ErrPublishFailed):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Service temporarily unavailable"})
		default:
			h.logger.Error("Submit job failed", zap.Error(err), zap.String("kind", string(req.Kind)))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		}
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetByID handles GET /api/v1/commands/:id
func (h *CommandHandler) GetByID(c *gin.Context) {
	id, ok := parseJobID(c)
	if !ok {
		return
	}

	job, err := h.getJobUC.Execute(c.Request.Context(), id)
	if err != nil {
		h.writeLookupError(c, "Get job failed", id, err)
		return
	}

	c.JSON(http.StatusOK, job)
}

// Cancel handles POST /api/v1/commands/:id/cancel
func (h *CommandHandler) Cancel(c *gin.Context) {
	id, ok := parseJobID(c)
	if !ok {
		return
	}

	job, err := h.cancelUC.Execute(c.Request.Context(), id)
	if err != nil {
		h.writeLookupError(c, "Cancel job failed", id, err)
		return
	}

	c.JSON(http.StatusOK, job)
}

func (h *CommandHandler) writeLookupError(c *gin.Context, msg string, id uuid.UUID, err error) {
	if errors.Is(err, domain.ErrJobNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		return
	}
	h.logger.Error(msg, zap.Error(err), zap.String("job_id", id.String()))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body: " + err.Error(),
		})
		return false
	}
	return true
}

func parseJobID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid job ID format"})
		return uuid.Nil, false
	}
	return id, true
}
