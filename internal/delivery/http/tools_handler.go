package http

import (
	"net/http"
	"path/filepath"
	"sort"

	"github.com/gin-gonic/gin"

	"github.com/Jackyzaz/motegao/internal/domain"
	"github.com/Jackyzaz/motegao/internal/executor"
)

// ToolsHandler lists the job kinds this deployment can run.
type ToolsHandler struct {
	tools []domain.ToolInfo
}

// NewToolsHandler creates a new ToolsHandler from the worker tool configuration.
func NewToolsHandler(t executor.Tools) *ToolsHandler {
	return &ToolsHandler{tools: []domain.ToolInfo{
		{Kind: domain.KindPing, Tool: filepath.Base(t.PingPath)},
		{Kind: domain.KindPortScan, Tool: filepath.Base(t.NmapPath), Options: domain.AllowedScanOptions},
		{Kind: domain.KindSubdomainEnum, Tool: filepath.Base(t.GobusterPath), Wordlists: selectors(t.SubdomainWordlists)},
		{Kind: domain.KindPathEnum, Tool: filepath.Base(t.GobusterPath), Wordlists: selectors(t.PathWordlists)},
	}}
}

// List handles GET /api/v1/tools
func (h *ToolsHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"tools": h.tools,
	})
}

func selectors(m map[int]string) []int {
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}
