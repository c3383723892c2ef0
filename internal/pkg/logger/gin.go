package logger

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	ginKey          = "logger"
	RequestIDHeader = "X-Request-Id"
)

// Middleware attaches a request id and the logger to every request and logs its completion.
func Middleware(l *Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader(RequestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Header(RequestIDHeader, reqID)

		ctx := l.WithRequestID(c.Request.Context(), reqID)
		ctx = l.WithFields(ctx, map[string]any{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
		})
		c.Request = c.Request.WithContext(ctx)
		c.Set(ginKey, l)

		start := time.Now()
		l.Debug(ctx, "request.start")

		c.Next()

		ctx = l.WithFields(c.Request.Context(), map[string]any{
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
		})
		l.Info(ctx, "request.complete")
	}
}

// FromGin returns the logger installed by Middleware, or nil.
func FromGin(c *gin.Context) *Logger {
	if v, ok := c.Get(ginKey); ok {
		if l, ok := v.(*Logger); ok {
			return l
		}
	}
	return nil
}
