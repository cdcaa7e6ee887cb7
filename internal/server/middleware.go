package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	ragerr "github.com/Aman-CERP/archrag/internal/errors"
)

// requestIDHeader carries the per-request identifier on both request
// and response.
const requestIDHeader = "X-Request-ID"

// requestID assigns each request an identifier, reusing the client's
// header when present.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Writer.Header().Set(requestIDHeader, id)
		c.Next()
	}
}

// requestLogger logs one line per request. Sensitive attribute values
// are scrubbed by the redacting slog handler, not here.
func requestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Info("http_request",
			slog.String("request_id", c.GetString("request_id")),
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("duration", time.Since(start)),
		)
	}
}

// recovery converts panics into structured 500 responses. The stack
// trace goes to the log, never to the client.
func recovery(log *slog.Logger) gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(nil, func(c *gin.Context, recovered any) {
		log.Error("panic_recovered",
			slog.String("request_id", c.GetString("request_id")),
			slog.String("path", c.Request.URL.Path),
			slog.Any("panic", recovered),
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody{
			Status:  "error",
			Code:    ragerr.ErrCodeInternal,
			Message: "internal server error",
		})
	})
}
