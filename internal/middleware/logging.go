package middleware

import (
	"context"
	"time"

	"github.com/dimitrije/passkeep/internal/logger"
	"github.com/google/uuid"
	"github.com/m1z23r/drift/pkg/drift"
	"go.uber.org/zap"
)

// RequestLogger logs method, path, duration and the signed-in user, if any.
// Query strings are left out because they can carry search terms.
func RequestLogger() drift.HandlerFunc {
	return func(c *drift.Context) {
		start := time.Now()

		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Duration("duration", time.Since(start).Round(time.Microsecond)),
		}
		if userID := GetUserID(c); userID != uuid.Nil {
			fields = append(fields, zap.String("user_id", userID.String()))
		}
		logger.Log.Info("http request", fields...)
	}
}

// Timeout bounds the request context so store calls cannot hang a handler.
func Timeout(d time.Duration) drift.HandlerFunc {
	return func(c *drift.Context) {
		if d <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
