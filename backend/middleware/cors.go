package middleware

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/ellavondegurechaff/retaildash/backend/utils"
)

// CustomErrorHandler handles application errors
func CustomErrorHandler(c *fiber.Ctx, err error) error {
	// Default to 500 server error
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	// Try to extract Fiber error
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
		message = e.Message
	}

	if wantsJSON(c) {
		apiCode := "INTERNAL_SERVER_ERROR"
		switch code {
		case fiber.StatusNotFound:
			apiCode = "NOT_FOUND"
		case fiber.StatusMethodNotAllowed:
			apiCode = "METHOD_NOT_ALLOWED"
		case fiber.StatusTooManyRequests:
			apiCode = "RATE_LIMIT_EXCEEDED"
		}
		return utils.SendError(c, code, apiCode, message, nil)
	}

	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	return c.Status(code).SendString(fmt.Sprintf("Error %d: %s", code, message))
}

func wantsJSON(c *fiber.Ctx) bool {
	return strings.HasPrefix(c.Path(), "/api/") ||
		strings.HasPrefix(c.Path(), "/admin/") ||
		strings.Contains(c.Get("Accept"), "application/json")
}

// SecurityHeaders adds security headers to responses
func SecurityHeaders() fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Security headers
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("X-XSS-Protection", "1; mode=block")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=()")

		// The shell draws charts with plotly from its CDN
		c.Set("Content-Security-Policy",
			"default-src 'self'; "+
				"script-src 'self' 'unsafe-inline' 'unsafe-eval' https://cdn.plot.ly; "+
				"style-src 'self' 'unsafe-inline'; "+
				"img-src 'self' data: blob:; "+
				"connect-src 'self' https://cdn.plot.ly;")

		return c.Next()
	}
}
