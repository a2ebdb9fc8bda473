package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"ChainAcademy/pkg/logger"
)

func LoggingMiddleware(log logger.Log) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path += "?" + raw
		}
		status := c.Writer.Status()
		args := []interface{}{
			"status", status,
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
		}
		if id, ok := c.Get(ClientIDCtx); ok {
			args = append(args, "user_id", id)
		}

		msg := c.Request.Method + " " + path
		switch {
		case status >= 500:
			log.Error(msg, args...)
		case status >= 400:
			log.Warn(msg, args...)
		default:
			log.Info(msg, args...)
		}

		for _, ginErr := range c.Errors {
			log.ErrorErr("HTTP request error", ginErr.Err,
				"status", status,
				"method", c.Request.Method,
				"path", path,
			)
		}
	}
}
