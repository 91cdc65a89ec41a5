package middleware

import (
	"log/slog"
	"time"

	"paperboard/internal/apperr"

	"github.com/gin-gonic/gin"
)

// RequestLogger logs one line per request, replacing gin's default logger.
// Errors attached with c.Error are included so the underlying cause of a
// 5xx is visible even though clients only get a fixed detail.
func RequestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
		}
		if user := CurrentUser(c); user != nil {
			attrs = append(attrs, "user_id", user.ID)
		}
		if err := c.Errors.Last(); err != nil {
			attrs = append(attrs, "error", err.Err, "code", apperr.Code(err.Err))
		}

		switch {
		case status >= 500:
			log.Error("request failed", attrs...)
		case status >= 400:
			log.Warn("request rejected", attrs...)
		default:
			log.Info("request", attrs...)
		}
	}
}
