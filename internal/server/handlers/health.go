package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/samadriaz9/ZeroTraceGPT-Image-Creator/internal/runner"
	"github.com/samadriaz9/ZeroTraceGPT-Image-Creator/pkg/api"
)

// Health handles GET /health.
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, api.HealthResponse{Status: "ok"})
}

// WebUIHandler reports whether the local web UI answers.
type WebUIHandler struct {
	URL        string // base URL of the web UI
	HealthPath string
	Client     *http.Client
}

// Status handles GET /api/webui/status.
func (h *WebUIHandler) Status(c *gin.Context) {
	client := h.Client
	if client == nil {
		client = &http.Client{Timeout: 3 * time.Second}
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	status := api.WebUIStatus{URL: h.URL}
	if h.URL == "" {
		status.Error = "webui.port is 0 (auto-allocated); set a fixed port to report status"
		c.JSON(http.StatusOK, status)
		return
	}
	if err := runner.Ping(ctx, client, h.URL+h.HealthPath); err != nil {
		status.Error = err.Error()
	} else {
		status.Reachable = true
	}
	c.JSON(http.StatusOK, status)
}
