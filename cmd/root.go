package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ellavondegurechaff/retaildash/dashboard"
	"github.com/ellavondegurechaff/retaildash/dashboard/config"
	"github.com/ellavondegurechaff/retaildash/dashboard/loader"
	"github.com/ellavondegurechaff/retaildash/internal/domain/cohort"
)

var (
	configPath string
	version    = "dev"
	commit     = "unknown"
)

// Exit codes for failures a scheduler may want to tell apart.
const (
	exitError     = 1
	exitLoad      = 2
	exitIntegrity = 3
)

var rootCmd = &cobra.Command{
	Use:           "retaildash",
	Short:         "Online Retail analytics dashboard",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.toml", "path to config")
}

// Execute runs the command line and returns the process exit code.
func Execute(v, c string) int {
	version, commit = v, c
	rootCmd.Version = fmt.Sprintf("%s (%s)", version, commit)

	if err := rootCmd.Execute(); err != nil {
		slog.Error("Command failed", slog.String("type", "error"), slog.Any("error", err))
		return exitCode(err)
	}
	return 0
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, loader.ErrLoad):
		return exitLoad
	case errors.Is(err, cohort.ErrIntegrity):
		return exitIntegrity
	default:
		return exitError
	}
}

// setup loads the config, installs the logger and wires the data context.
// The dataset itself is not read yet.
func setup(ctx context.Context, name string) (*dashboard.App, error) {
	cfg, err := dashboard.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	dashboard.SetupLogger(name, cfg.Log)
	slog.Info("Configuration loaded",
		slog.String("type", "sys"),
		slog.String("path", configPath),
		slog.String("version", version))

	return dashboard.New(ctx, cfg)
}

// loadData runs the initial load under the configured timeout.
func loadData(ctx context.Context, app *dashboard.App) error {
	ctx, cancel := context.WithTimeout(ctx, config.DefaultLoadTimeout)
	defer cancel()
	return app.Store.Load(ctx)
}
