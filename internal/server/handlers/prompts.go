package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/samadriaz9/ZeroTraceGPT-Image-Creator/internal/prompts"
	"github.com/samadriaz9/ZeroTraceGPT-Image-Creator/pkg/api"
)

// RequestIDKey is the gin context key holding the request ID.
const RequestIDKey = "request_id"

// Assistant is the prompt assistant the handlers call. *prompts.Assistant
// implements it.
type Assistant interface {
	Enhance(ctx context.Context, prompt, style string, percent int) (string, error)
	Improve(ctx context.Context, prompt, imageDescription string, percent int) (string, error)
	Alternatives(ctx context.Context, prompt, variation string) (string, error)
}

// PromptHandler serves the /v1/prompts endpoints.
type PromptHandler struct {
	// Assistant is nil when no API key is configured.
	Assistant Assistant
	// Unavailable is why Assistant is nil, if known.
	Unavailable error
}

func (h *PromptHandler) ready(c *gin.Context) bool {
	if h.Assistant == nil {
		cause := h.Unavailable
		if cause == nil {
			cause = prompts.ErrAPIKeyMissing
		}
		writeError(c, http.StatusServiceUnavailable, "server_error", "assistant_unavailable",
			"prompt assistant is not configured: "+cause.Error())
		return false
	}
	return true
}

// Enhance handles POST /v1/prompts/enhance.
func (h *PromptHandler) Enhance(c *gin.Context) {
	if !h.ready(c) {
		return
	}
	var req api.EnhanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request_error", "invalid_json", err.Error())
		return
	}

	out, err := h.Assistant.Enhance(c.Request.Context(), req.Prompt, req.Style, req.Percentage)
	if err != nil {
		mapAssistantError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.PromptResponse{
		Result:    out,
		Level:     prompts.IntensityFor(percentOrDefault(req.Percentage)).Level,
		RequestID: c.GetString(RequestIDKey),
	})
}

// Improve handles POST /v1/prompts/improve.
func (h *PromptHandler) Improve(c *gin.Context) {
	if !h.ready(c) {
		return
	}
	var req api.ImproveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request_error", "invalid_json", err.Error())
		return
	}

	out, err := h.Assistant.Improve(c.Request.Context(), req.Prompt, req.ImageDescription, req.Percentage)
	if err != nil {
		mapAssistantError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.PromptResponse{
		Result:    out,
		Level:     prompts.IntensityFor(percentOrDefault(req.Percentage)).Level,
		RequestID: c.GetString(RequestIDKey),
	})
}

// Alternatives handles POST /v1/prompts/alternatives.
func (h *PromptHandler) Alternatives(c *gin.Context) {
	if !h.ready(c) {
		return
	}
	var req api.AlternativesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request_error", "invalid_json", err.Error())
		return
	}

	out, err := h.Assistant.Alternatives(c.Request.Context(), req.Prompt, req.Variation)
	if err != nil {
		mapAssistantError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.PromptResponse{
		Result:    out,
		RequestID: c.GetString(RequestIDKey),
	})
}

func percentOrDefault(p int) int {
	if p == 0 {
		return prompts.DefaultPercent
	}
	return p
}
