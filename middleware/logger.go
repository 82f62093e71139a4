package middleware

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// StructuredLogger tags every request with an ID and emits one log line
// when it finishes. Researcher requests carry user_id once AuthRequired
// has resolved the session; participation requests carry the study
// share token and the respondent's session cookie instead.
func StructuredLogger(logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		requestID := uuid.New().String()

		c.Locals("requestID", requestID)
		c.Set("X-Request-ID", requestID)

		err := c.Next()

		status := c.Response().StatusCode()

		attrs := []slog.Attr{
			slog.String("request_id", requestID),
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.Int("status", status),
			slog.Duration("latency", time.Since(start)),
			slog.String("ip", c.IP()),
		}

		if userID, ok := c.Locals("userID").(string); ok && userID != "" {
			attrs = append(attrs, slog.String("user_id", userID))
		}

		// Route params are resolved after Next, so the share token is
		// only present on matched /s/:token routes.
		if token := c.Params("token"); token != "" {
			attrs = append(attrs, slog.String("share_token", token))
			if sid := c.Cookies("study_session"); sid != "" {
				attrs = append(attrs, slog.String("respondent_session", sid))
			}
		}

		switch {
		case err != nil:
			attrs = append(attrs, slog.String("error", err.Error()))
			logger.LogAttrs(c.Context(), slog.LevelError, "request error", attrs...)
		case status >= 500:
			logger.LogAttrs(c.Context(), slog.LevelError, "server error", attrs...)
		case status >= 400:
			logger.LogAttrs(c.Context(), slog.LevelWarn, "client error", attrs...)
		default:
			logger.LogAttrs(c.Context(), slog.LevelInfo, "request completed", attrs...)
		}

		return err
	}
}
