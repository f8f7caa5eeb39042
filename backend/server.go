package backend

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/ellavondegurechaff/retaildash/backend/handlers"
	"github.com/ellavondegurechaff/retaildash/backend/middleware"
	"github.com/ellavondegurechaff/retaildash/backend/utils"
	"github.com/ellavondegurechaff/retaildash/dashboard/config"
)

// Server is the HTTP front of the dashboard.
type Server struct {
	App     *fiber.App
	webApp  *handlers.WebApp
	limiter *middleware.RateLimiter
}

func NewServer(webApp *handlers.WebApp) *Server {
	web := webApp.Config.GetWebConfig()
	app := fiber.New(fiber.Config{
		AppName:      "RetailDash",
		ServerHeader: "RetailDash",
		ErrorHandler: middleware.CustomErrorHandler,
		// c.IP reads ProxyHeader only from TrustedProxies.
		ProxyHeader:             web.ProxyHeader,
		EnableTrustedProxyCheck: true,
		TrustedProxies:          web.TrustedProxies,
		EnableIPValidation:      true,
		DisableStartupMessage:   !webApp.Config.Debug,
		EnablePrintRoutes:       webApp.Config.Debug,
	})

	app.Use(recover.New())
	app.Use(middleware.SecurityHeaders())
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	if len(web.AllowedOrigins) > 0 {
		app.Use(cors.New(cors.Config{
			AllowOrigins: strings.Join(web.AllowedOrigins, ","),
			AllowMethods: "GET,POST,OPTIONS",
			AllowHeaders: "Origin,Content-Type,Accept,Authorization,X-Request-ID",
		}))
	}
	app.Use(middleware.LoggingMiddleware())

	s := &Server{
		App:     app,
		webApp:  webApp,
		limiter: middleware.NewRateLimiter(web.ReloadRateLimit, time.Minute),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	app, webApp := s.App, s.webApp

	app.Get("/health", handlers.HealthCheck(webApp))

	app.Get("/", handlers.ViewShell(webApp))
	app.Get("/views/:view", handlers.ViewShell(webApp))

	api := app.Group("/api")
	api.Get("/views", handlers.NavigationAPI(webApp))
	api.Get("/views/:view", handlers.ViewAPI(webApp))

	retention := api.Group("/cohort")
	retention.Get("/retention", handlers.RetentionMatrixAPI(webApp))
	retention.Get("/retention/:cohort/:offset", handlers.RetentionValueAPI(webApp))
	retention.Get("/mean/:offset", handlers.RetentionMeanAPI(webApp))

	api.Get("/segments/definitions", handlers.SegmentDefinitionsAPI(webApp))
	api.Get("/losses/unmapped", handlers.UnmappedLossesAPI(webApp))

	// Token guesses count against the limit.
	admin := app.Group("/admin")
	admin.Use(middleware.RateLimit(s.limiter))
	admin.Use(middleware.AdminRequired(webApp))
	admin.Post("/reload",
		middleware.AuditLogMiddleware("reload"),
		handlers.Reload(webApp))

	app.Use(func(c *fiber.Ctx) error {
		slog.Warn("No route matched for request",
			slog.String("type", "http"),
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.String("ip", c.IP()),
		)
		return utils.SendNotFound(c, "NOT_FOUND", "The requested endpoint does not exist", nil)
	})
}

// Run serves on addr until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	defer s.limiter.Stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting web server",
			slog.String("type", "sys"),
			slog.String("address", addr))
		errCh <- s.App.Listen(addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down web server...", slog.String("type", "sys"))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.DefaultShutdownTimeout)
	defer cancel()

	if err := s.App.ShutdownWithContext(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	slog.Info("Web server shutdown complete", slog.String("type", "sys"))
	return nil
}

// Close stops background work without serving.
func (s *Server) Close() {
	s.limiter.Stop()
}
