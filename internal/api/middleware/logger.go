package middleware

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
)

// LocalRequestID is where the requestid middleware stores the request ID
const LocalRequestID = "requestid"

// RequestID returns the request ID assigned by the requestid middleware,
// falling back to the inbound header
func RequestID(c *fiber.Ctx) string {
	if id, ok := c.Locals(LocalRequestID).(string); ok && id != "" {
		return id
	}
	return c.Get(fiber.HeaderXRequestID)
}

func Logger(logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		latency := time.Since(start)
		status := c.Response().StatusCode()

		logLevel := slog.LevelInfo
		if status >= 500 {
			logLevel = slog.LevelError
		} else if status >= 400 {
			logLevel = slog.LevelWarn
		}

		logger.Log(c.Context(), logLevel, "http request",
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.Int("status", status),
			slog.Duration("latency", latency),
			slog.String("ip", c.IP()),
			slog.String("request_id", RequestID(c)),
			slog.Int("request_bytes", len(c.Request().Body())),
			slog.String("user_agent", c.Get(fiber.HeaderUserAgent)),
		)

		return err
	}
}
