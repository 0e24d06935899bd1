package middleware

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// RequestID assigns a correlation id to every request. The embedding
// host's own X-Request-ID is honored when present, so its logs and
// this service's logs can be joined on the same id; otherwise a fresh
// uuid is minted here.
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		requestID := c.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Locals("requestID", requestID)
		c.Set("X-Request-ID", requestID)

		slog.Debug("request received", "request_id", requestID, "method", c.Method(), "path", c.Path())
		return c.Next()
	}
}
