package handlers

import (
	"bytes"
	"embed"
	"errors"
	"html/template"
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v2"

	webmodels "github.com/ellavondegurechaff/retaildash/backend/models"
	"github.com/ellavondegurechaff/retaildash/backend/utils"
	"github.com/ellavondegurechaff/retaildash/dashboard/logger"
	"github.com/ellavondegurechaff/retaildash/dashboard/store"
	"github.com/ellavondegurechaff/retaildash/dashboard/views"
	"github.com/ellavondegurechaff/retaildash/internal/domain/cohort"
)

//go:embed templates/*.html
var templateFS embed.FS

var shellTemplate = template.Must(
	template.New("shell.html").Funcs(utils.TemplateFuncs()).ParseFS(templateFS, "templates/shell.html"),
)

type shellData struct {
	Nav     []views.NavItem
	Current views.View
	Page    *webmodels.PageResponse
	Version string
	Error   *shellError
}

type shellError struct {
	Code    int
	Message string
}

func itoa(n int) string { return strconv.Itoa(n) }

// ViewShell renders the dashboard page for /:view, or the default view at /.
// Domain errors are shown inside the shell so navigation stays usable.
func ViewShell(webApp *WebApp) fiber.Handler {
	return func(c *fiber.Ctx) error {
		data := shellData{Nav: views.Navigation, Version: webApp.Version}

		resp, err := viewPage(c, webApp, c.Params("view"))
		status := fiber.StatusOK
		if err != nil {
			var pe *paramError
			switch {
			case errors.As(err, &pe):
				status = fiber.StatusBadRequest
			case errors.Is(err, views.ErrUnknownView):
				status = fiber.StatusNotFound
			default:
				return sendShellError(c, data, err)
			}
			data.Error = &shellError{Code: status, Message: err.Error()}
		} else {
			data.Current = resp.View
			data.Page = resp
		}

		return renderShell(c, status, data)
	}
}

func sendShellError(c *fiber.Ctx, data shellData, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, cohort.ErrIntegrity):
		status = fiber.StatusUnprocessableEntity
	case errors.Is(err, store.ErrNotLoaded):
		status = fiber.StatusServiceUnavailable
	default:
		logger.LogError("Failed to render view", err, slog.String("path", c.Path()))
	}
	data.Error = &shellError{Code: status, Message: err.Error()}
	return renderShell(c, status, data)
}

func renderShell(c *fiber.Ctx, status int, data shellData) error {
	var buf bytes.Buffer
	if err := shellTemplate.Execute(&buf, data); err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.Status(status).Send(buf.Bytes())
}
