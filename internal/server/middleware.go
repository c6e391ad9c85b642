package server

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/samadriaz9/ZeroTraceGPT-Image-Creator/internal/logging"
	"github.com/samadriaz9/ZeroTraceGPT-Image-Creator/internal/server/handlers"
)

const headerRequestID = "X-Request-ID"

// requestID tags every request with the incoming X-Request-ID or a new UUID.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(headerRequestID)
		if id == "" {
			id = uuid.New().String()
		}
		c.Set(handlers.RequestIDKey, id)
		c.Header(headerRequestID, id)
		c.Next()
	}
}

func accessLog() gin.HandlerFunc {
	logger := logging.Component("server")
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		logger.WithFields(log.Fields{
			"status":     c.Writer.Status(),
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"latency_ms": time.Since(start).Milliseconds(),
			"client_ip":  c.ClientIP(),
			"request_id": c.GetString(handlers.RequestIDKey),
		}).Info("request completed")
	}
}
