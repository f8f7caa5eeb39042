package middleware

import (
	"crypto/subtle"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/ellavondegurechaff/retaildash/backend/handlers"
	"github.com/ellavondegurechaff/retaildash/backend/utils"
)

// AdminRequired accepts requests carrying the configured admin token as a
// bearer credential. With no token configured admin routes are closed.
func AdminRequired(webApp *handlers.WebApp) fiber.Handler {
	return func(c *fiber.Ctx) error {
		want := webApp.Config.GetWebConfig().AdminToken
		if want == "" {
			slog.Warn("Admin route called but no admin token is configured",
				slog.String("type", "http"),
				slog.String("path", c.Path()))
			return utils.SendForbidden(c, "Admin endpoints are disabled")
		}

		token, ok := bearerToken(c.Get(fiber.HeaderAuthorization))
		if !ok {
			return utils.SendUnauthorized(c, "Bearer token required")
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(want)) != 1 {
			slog.Warn("Admin required: invalid token",
				slog.String("type", "http"),
				slog.String("ip", c.IP()),
				slog.String("request_id", utils.GetRequestID(c)))
			return utils.SendForbidden(c, "Access denied")
		}

		return c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
