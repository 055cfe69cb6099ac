package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	RequestIDHeader = "X-Request-ID"

	loggerKey    = "logger"
	requestIDKey = "requestId"
)

// RequestLogger assigns every request an id, reusing a valid incoming
// X-Request-ID, and stores a logger tagged with it in the context. One line is
// logged per request once the handlers return.
func RequestLogger(lg *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		id := c.GetHeader(RequestIDHeader)
		if !isValidRequestID(id) {
			id = uuid.New().String()
		}
		c.Header(RequestIDHeader, id)

		reqLg := lg.With(zap.String("request_id", id))
		c.Set(requestIDKey, id)
		c.Set(loggerKey, reqLg)

		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch status := c.Writer.Status(); {
		case status >= 500:
			reqLg.Error("Request", fields...)
		case status >= 400:
			reqLg.Warn("Request", fields...)
		default:
			reqLg.Info("Request", fields...)
		}
	}
}

// Logger returns the request-scoped logger, or a no-op logger outside
// RequestLogger.
func Logger(c *gin.Context) *zap.Logger {
	if value, ok := c.Get(loggerKey); ok {
		if lg, ok := value.(*zap.Logger); ok {
			return lg
		}
	}
	return zap.NewNop()
}

func RequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// isValidRequestID accepts up to 128 bytes of printable ASCII.
func isValidRequestID(id string) bool {
	if len(id) == 0 || len(id) > 128 {
		return false
	}
	for i := range len(id) {
		if id[i] < 0x20 || id[i] > 0x7E {
			return false
		}
	}
	return true
}
