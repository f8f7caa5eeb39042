package cmd

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ellavondegurechaff/retaildash/backend"
	"github.com/ellavondegurechaff/retaildash/backend/config"
	"github.com/ellavondegurechaff/retaildash/backend/handlers"
	"github.com/ellavondegurechaff/retaildash/dashboard"
)

var serveDebug bool

var serveCMD = &cobra.Command{
	Use:   "serve",
	Short: "load the dataset and serve the dashboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		app, err := setup(ctx, "RetailDash")
		if err != nil {
			return err
		}
		defer app.Close()
		if serveDebug {
			app.Config.Log.Level = "debug"
			dashboard.SetupLogger("RetailDash", app.Config.Log)
		}

		slog.Info("Starting RetailDash",
			slog.String("type", "sys"),
			slog.String("version", version),
			slog.String("commit", commit))

		if err := loadData(ctx, app); err != nil {
			return err
		}

		webApp := &handlers.WebApp{
			Config:   config.NewWebAppConfig(app.Config, serveDebug),
			Store:    app.Store,
			Taxonomy: app.Loader.Taxonomy(),
			Version:  version,
			Commit:   commit,
		}
		if app.DB != nil {
			webApp.DB = app.DB
		}

		return backend.NewServer(webApp).Run(ctx, app.Config.Web.Addr())
	},
}

func init() {
	serveCMD.Flags().BoolVar(&serveDebug, "debug", false, "debug logging and route listing at startup")
	rootCmd.AddCommand(serveCMD)
}
