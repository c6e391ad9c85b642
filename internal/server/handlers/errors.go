package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/samadriaz9/ZeroTraceGPT-Image-Creator/internal/logging"
	"github.com/samadriaz9/ZeroTraceGPT-Image-Creator/internal/prompts"
	"github.com/samadriaz9/ZeroTraceGPT-Image-Creator/pkg/api"
)

func writeError(c *gin.Context, status int, errType, code, message string) {
	c.AbortWithStatusJSON(status, api.ErrorResponse{
		Error: api.ErrorDetail{
			Message: message,
			Type:    errType,
			Code:    code,
		},
	})
}

// mapAssistantError translates prompt assistant failures into HTTP errors.
func mapAssistantError(c *gin.Context, err error) {
	var rle *prompts.RateLimitError
	switch {
	case errors.Is(err, prompts.ErrEmptyPrompt):
		writeError(c, http.StatusBadRequest, "invalid_request_error", "empty_prompt", err.Error())

	case errors.As(err, &rle):
		c.Header("Retry-After", strconv.Itoa(int(rle.Wait.Seconds())))
		writeError(c, http.StatusTooManyRequests, "rate_limit_error", "rate_limited", err.Error())

	default:
		logging.Component("server").WithError(err).
			WithField("request_id", c.GetString(RequestIDKey)).
			Warn("prompt assistant failed")
		writeError(c, http.StatusBadGateway, "upstream_error", "upstream_failed", err.Error())
	}
}
