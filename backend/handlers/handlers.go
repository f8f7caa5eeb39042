package handlers

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ellavondegurechaff/retaildash/backend/config"
	webmodels "github.com/ellavondegurechaff/retaildash/backend/models"
	"github.com/ellavondegurechaff/retaildash/backend/utils"
	dashcfg "github.com/ellavondegurechaff/retaildash/dashboard/config"
	"github.com/ellavondegurechaff/retaildash/dashboard/loader"
	"github.com/ellavondegurechaff/retaildash/dashboard/logger"
	"github.com/ellavondegurechaff/retaildash/dashboard/store"
	"github.com/ellavondegurechaff/retaildash/dashboard/views"
	"github.com/ellavondegurechaff/retaildash/internal/domain/cohort"
)

// Pinger is the part of the database handle the health check needs.
type Pinger interface {
	Ping(ctx context.Context) error
}

// WebApp represents the web application with all dependencies
type WebApp struct {
	Config   *config.WebAppConfig
	Store    *store.Store
	Taxonomy *loader.Taxonomy
	// DB is nil unless transactions are served from Postgres.
	DB      Pinger
	Version string
	Commit  string
}

// sendDomainError maps data context errors onto the API envelope.
func sendDomainError(c *fiber.Ctx, err error) error {
	var integrity *cohort.IntegrityError
	var loadErr *loader.LoadError

	switch {
	case errors.As(err, &integrity):
		slog.Error("Retention data rejected",
			slog.String("type", "error"),
			slog.Any("error", err),
			slog.String("request_id", utils.GetRequestID(c)))
		details := map[string]string{
			"cohort": integrity.Cohort.String(),
			"offset": itoa(integrity.Offset),
			"reason": integrity.Reason,
		}
		if integrity.CustomerID != "" {
			details["customer_id"] = integrity.CustomerID
		}
		return utils.SendUnprocessableEntity(c, "DATA_INTEGRITY", "Retention data failed integrity checks", details)
	case errors.Is(err, cohort.ErrIntegrity):
		return utils.SendUnprocessableEntity(c, "DATA_INTEGRITY", err.Error(), nil)
	case errors.Is(err, views.ErrUnknownView):
		return utils.SendNotFound(c, "VIEW_NOT_FOUND", err.Error(), nil)
	case errors.Is(err, store.ErrNotLoaded):
		return utils.SendError(c, fiber.StatusServiceUnavailable, "NOT_READY", "Dataset is not loaded yet", nil)
	case errors.As(err, &loadErr):
		return utils.SendError(c, fiber.StatusInternalServerError, "LOAD_FAILURE", "Failed to load data",
			map[string]string{"file": loadErr.File, "error": loadErr.Err.Error()})
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return utils.SendError(c, fiber.StatusGatewayTimeout, "TIMEOUT", "Request timed out", nil)
	default:
		logger.LogError("Request failed", err, slog.String("path", c.Path()))
		return utils.SendInternalServerError(c, "Internal Server Error")
	}
}

func HealthCheck(webApp *WebApp) fiber.Handler {
	return func(c *fiber.Ctx) error {
		health := webmodels.NewHealthCheck(webApp.Version, webApp.Commit)
		health.Environment = webApp.Config.Environment

		if ds, gen, err := webApp.Store.Dataset(); err != nil {
			health.AddComponent("dataset", "unhealthy", err.Error(), nil)
		} else {
			health.AddComponent("dataset", "healthy", "", map[string]interface{}{
				"source":       webApp.Config.GetDataConfig().Source,
				"generation":   gen,
				"loaded_at":    ds.LoadedAt,
				"rows":         ds.Summary(),
				"cached_pages": webApp.Store.CachedPages(),
			})
		}

		if webApp.DB != nil {
			if err := webApp.DB.Ping(c.UserContext()); err != nil {
				health.AddComponent("database", "unhealthy", err.Error(), nil)
			} else {
				health.AddComponent("database", "healthy", "", nil)
			}
		}

		if health.Status != "healthy" {
			return utils.SendJSON(c, fiber.StatusServiceUnavailable, &webmodels.APIResponse{
				Success:   false,
				Message:   "Health check failed",
				Data:      health,
				Timestamp: health.Timestamp,
			})
		}
		return utils.SendSuccess(c, health, "Health check successful")
	}
}

func NavigationAPI(webApp *WebApp) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return utils.SendSuccess(c, views.Navigation, "")
	}
}

// viewPage resolves the view and params of a request and renders it.
func viewPage(c *fiber.Ctx, webApp *WebApp, slug string) (*webmodels.PageResponse, error) {
	v, err := views.Parse(slug)
	if err != nil {
		return nil, err
	}
	params, details := utils.ParseViewParams(c)
	if details != nil {
		return nil, &paramError{details: details}
	}

	gen := webApp.Store.Generation()
	page, err := webApp.Store.Page(c.UserContext(), v, params)
	if err != nil {
		return nil, err
	}
	return &webmodels.PageResponse{
		Generation: gen,
		Params:     webApp.Store.Renderer().Normalize(v, params),
		Page:       page,
	}, nil
}

type paramError struct {
	details map[string]string
}

func (e *paramError) Error() string { return "invalid parameters" }

func ViewAPI(webApp *WebApp) fiber.Handler {
	return func(c *fiber.Ctx) error {
		resp, err := viewPage(c, webApp, c.Params("view"))
		if err != nil {
			var pe *paramError
			if errors.As(err, &pe) {
				return utils.SendBadRequest(c, "Invalid view parameters", pe.details)
			}
			return sendDomainError(c, err)
		}
		return utils.SendSuccess(c, resp, "")
	}
}

func RetentionMatrixAPI(webApp *WebApp) fiber.Handler {
	return func(c *fiber.Ctx) error {
		gen := webApp.Store.Generation()
		mx, err := webApp.Store.Matrix()
		if err != nil {
			return sendDomainError(c, err)
		}
		return utils.SendSuccess(c, webmodels.NewRetentionMatrix(mx, gen), "")
	}
}

func RetentionValueAPI(webApp *WebApp) fiber.Handler {
	return func(c *fiber.Ctx) error {
		m, msg := utils.ParseCohort(c.Params("cohort"))
		details := map[string]string{}
		if msg != "" {
			details["cohort"] = msg
		}
		offset, msg := utils.ParseOffset(c.Params("offset"))
		if msg != "" {
			details["offset"] = msg
		}
		if len(details) > 0 {
			return utils.SendBadRequest(c, "Invalid retention lookup", details)
		}

		mx, err := webApp.Store.Matrix()
		if err != nil {
			return sendDomainError(c, err)
		}
		value, ok := mx.At(m, offset)
		if !ok {
			return utils.SendNotFound(c, "NOT_AVAILABLE", "No retention value for this cohort and offset",
				map[string]string{"cohort": m.String(), "offset": itoa(offset)})
		}
		count, _ := mx.Count(m, offset)
		return utils.SendSuccess(c, webmodels.RetentionValue{
			Cohort:    m,
			Offset:    offset,
			Retention: value,
			Customers: count,
			Size:      mx.Size(m),
		}, "")
	}
}

func RetentionMeanAPI(webApp *WebApp) fiber.Handler {
	return func(c *fiber.Ctx) error {
		offset, msg := utils.ParseOffset(c.Params("offset"))
		if msg != "" {
			return utils.SendBadRequest(c, "Invalid retention lookup", map[string]string{"offset": msg})
		}

		mx, err := webApp.Store.Matrix()
		if err != nil {
			return sendDomainError(c, err)
		}
		mean, ok := mx.MeanAt(offset)
		if !ok {
			return utils.SendNotFound(c, "NOT_AVAILABLE", "No cohort has observations at this offset",
				map[string]string{"offset": itoa(offset)})
		}
		return utils.SendSuccess(c, webmodels.MeanRetention{
			Offset:    offset,
			Retention: mean,
			Cohorts:   len(mx.Column(offset)),
		}, "")
	}
}

func SegmentDefinitionsAPI(webApp *WebApp) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ds, _, err := webApp.Store.Dataset()
		if err != nil {
			return sendDomainError(c, err)
		}
		return utils.SendSuccess(c, ds.SegmentDefinitions, "")
	}
}

// UnmappedLossesAPI lists write-off descriptions that fell through to the
// fallback category, with the closest known descriptions as hints for
// extending the taxonomy.
func UnmappedLossesAPI(webApp *WebApp) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ds, _, err := webApp.Store.Dataset()
		if err != nil {
			return sendDomainError(c, err)
		}
		return utils.SendSuccess(c, fiber.Map{
			"fallback":     webApp.Taxonomy.Fallback(),
			"descriptions": webApp.Taxonomy.Unmapped(ds.Losses),
		}, "")
	}
}

func Reload(webApp *WebApp) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		ctx, cancel := context.WithTimeout(c.UserContext(), dashcfg.DefaultLoadTimeout)
		defer cancel()

		if err := webApp.Store.Reload(ctx); err != nil {
			logger.LogError("Reload failed", err, slog.String("request_id", utils.GetRequestID(c)))
			return sendDomainError(c, err)
		}

		ds, gen, err := webApp.Store.Dataset()
		if err != nil {
			return sendDomainError(c, err)
		}
		return utils.SendSuccess(c, webmodels.ReloadResult{
			Generation: gen,
			Rows:       ds.Summary(),
			LoadedAt:   ds.LoadedAt,
			Took:       time.Since(start).Round(time.Millisecond).String(),
		}, "Dataset reloaded")
	}
}
