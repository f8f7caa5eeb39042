package dashboard

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ellavondegurechaff/retaildash/dashboard/database"
	"github.com/ellavondegurechaff/retaildash/dashboard/database/repositories"
	"github.com/ellavondegurechaff/retaildash/dashboard/loader"
	"github.com/ellavondegurechaff/retaildash/dashboard/logger"
	"github.com/ellavondegurechaff/retaildash/dashboard/services"
	"github.com/ellavondegurechaff/retaildash/dashboard/store"
	"github.com/ellavondegurechaff/retaildash/dashboard/views"
)

// SetupLogger installs the coloured handler as the default slog logger.
func SetupLogger(name string, cfg LogConfig) {
	slog.SetDefault(slog.New(logger.NewHandler(logger.Options{
		Name:    name,
		Level:   logger.ParseLevel(cfg.Level),
		NoColor: cfg.NoColor,
	})))
}

// App wires the configured data source, loader and store. Nothing is read
// until Store.Load is called.
type App struct {
	Config   *Config
	Source   loader.Source
	Loader   *loader.Loader
	Store    *store.Store
	Renderer *views.Renderer
	// DB is set only when transactions come from Postgres.
	DB *database.DB
}

func New(ctx context.Context, cfg *Config) (*App, error) {
	highlight, err := cfg.Cohort.Month()
	if err != nil {
		return nil, fmt.Errorf("invalid highlight cohort: %w", err)
	}
	renderer := views.NewRenderer(views.Params{Cohort: highlight, Offset: cfg.Cohort.HighlightOffset})

	src, err := newSource(ctx, cfg)
	if err != nil {
		return nil, err
	}

	app := &App{Config: cfg, Source: src, Renderer: renderer}
	opts := []loader.Option{loader.WithTaxonomy(cfg.Data.Taxonomy.Build())}
	if cfg.Data.Transactions == TransactionsPostgres {
		app.DB, err = database.New(ctx, cfg.DB)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		repo := repositories.NewTransactionRepository(app.DB.BunDB())
		opts = append(opts, loader.WithTransactionSource(&loader.RepositoryTransactions{Repo: repo}))
	}

	app.Loader = loader.New(src, cfg.Data.Files, opts...)
	app.Store, err = store.New(app.Loader, renderer, cfg.Cache.Size)
	if err != nil {
		app.Close()
		return nil, err
	}

	logger.LogSystem("Data context configured",
		slog.String("source", fmt.Sprint(src)),
		slog.String("transactions", cfg.Data.Transactions),
		slog.Int("cache_size", cfg.Cache.Size))
	return app, nil
}

func newSource(ctx context.Context, cfg *Config) (loader.Source, error) {
	switch cfg.Data.Source {
	case SourceSpaces:
		s := cfg.Spaces
		return services.NewSpacesService(ctx, s.Key, s.Secret, s.Region, s.Bucket, s.Prefix)
	default:
		return loader.NewLocalSource(cfg.Data.Dir), nil
	}
}

func (a *App) Close() {
	if a.DB != nil {
		a.DB.Close()
	}
}
