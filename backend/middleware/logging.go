package middleware

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/ellavondegurechaff/retaildash/backend/utils"
	"github.com/ellavondegurechaff/retaildash/dashboard/logger"
)

const RequestIDHeader = "X-Request-ID"

// LoggingMiddleware tags every request with an id and logs it once served
func LoggingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		id := c.Get(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Locals("request_id", id)
		c.Set(RequestIDHeader, id)

		// Process request
		err := c.Next()
		if err != nil {
			// let the error handler write the response so the status is final
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		attrs := []any{
			slog.String("request_id", id),
			slog.String("ip", c.IP()),
			slog.Int("size", len(c.Response().Body())),
		}
		if q := c.Request().URI().QueryArgs().String(); q != "" {
			attrs = append(attrs, slog.String("query", q))
		}
		if err != nil {
			attrs = append(attrs, slog.String("error", err.Error()))
		}
		logger.LogRequest(c.Method(), c.Path(), c.Response().StatusCode(), time.Since(start), attrs...)

		return nil
	}
}

// AuditLogMiddleware logs important administrative actions
func AuditLogMiddleware(action string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		// Process request
		err := c.Next()

		statusCode := c.Response().StatusCode()
		success := err == nil && statusCode >= 200 && statusCode < 300

		slog.Info("Admin action completed",
			slog.String("type", "http"),
			slog.String("action", action),
			slog.String("request_id", utils.GetRequestID(c)),
			slog.Bool("success", success),
			slog.Int("code", statusCode),
			slog.Duration("duration", time.Since(start)),
			slog.String("ip", c.IP()),
			slog.String("user_agent", utils.GetUserAgent(c)),
		)

		return err
	}
}
