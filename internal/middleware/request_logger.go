package middleware

import (
	"bytes"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"
)

// maxLoggedBody caps the request body echoed at trace level.
const maxLoggedBody = 2048

// RequestLogger logs every request and its outcome. Paths in skip are not
// logged. Request bodies are only read at trace level.
func RequestLogger(logger hclog.Logger, skip ...string) gin.HandlerFunc {
	logger = logger.Named("http")
	skipped := make(map[string]bool, len(skip))
	for _, p := range skip {
		skipped[p] = true
	}

	return func(c *gin.Context) {
		if skipped[c.Request.URL.Path] {
			c.Next()
			return
		}

		start := time.Now()

		if logger.IsTrace() && c.Request.Body != nil {
			bodyBytes, _ := io.ReadAll(c.Request.Body)
			// Restore the body for further processing
			c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
			if len(bodyBytes) > maxLoggedBody {
				bodyBytes = bodyBytes[:maxLoggedBody]
			}
			logger.Trace("http request",
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"query", c.Request.URL.RawQuery,
				"body", string(bodyBytes),
				"ip", c.ClientIP(),
			)
		}

		c.Next()

		status := c.Writer.Status()
		args := []interface{}{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"duration", time.Since(start).String(),
			"size", c.Writer.Size(),
		}
		switch {
		case status >= 500:
			logger.Warn("http response", args...)
		default:
			logger.Debug("http response", args...)
		}
	}
}

// ErrorLogger logs errors attached to the gin context
func ErrorLogger(logger hclog.Logger) gin.HandlerFunc {
	logger = logger.Named("http")
	return func(c *gin.Context) {
		c.Next()

		for _, err := range c.Errors {
			logger.Error("request error",
				"path", c.Request.URL.Path,
				"method", c.Request.Method,
				"error", err.Error(),
				"type", err.Type,
			)
		}
	}
}
