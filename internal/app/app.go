// Package app builds the service components from a Config. Both binaries
// share it so the API and the CLI always run the same pipeline.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-reconciler/internal/config"
	"github.com/dvloznov/finance-reconciler/internal/extraction"
	"github.com/dvloznov/finance-reconciler/internal/gcsuploader"
	infraBQ "github.com/dvloznov/finance-reconciler/internal/infra/bigquery"
	"github.com/dvloznov/finance-reconciler/internal/pipeline"
	"github.com/dvloznov/finance-reconciler/internal/reconcile"
	"github.com/dvloznov/finance-reconciler/internal/store"
	"github.com/dvloznov/finance-reconciler/internal/store/memory"
	"github.com/dvloznov/finance-reconciler/internal/store/postgres"
)

// App holds the wired components. Uploader is nil when no bucket is configured.
type App struct {
	Config   *config.Config
	Repo     store.Repository
	Ingester *pipeline.Ingester
	Engine   *reconcile.Engine
	Uploader *gcsuploader.Uploader

	closers []func() error
}

// OpenStore connects the configured repository. For postgres, pending
// migrations are applied first.
func OpenStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (store.Repository, error) {
	switch cfg.Store.Driver {
	case "memory":
		log.Warn().Msg("Using in-memory store, data is lost on exit")
		return memory.NewStore(), nil
	case "postgres":
		pool, err := postgres.Connect(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, err
		}
		applied, err := postgres.Migrate(ctx, pool, "finance-reconciler", log)
		if err != nil {
			pool.Close()
			return nil, err
		}
		log.Info().Int("applied", applied).Msg("Database migrations up to date")
		return postgres.New(pool), nil
	default:
		return nil, fmt.Errorf("OpenStore: unknown store driver %q", cfg.Store.Driver)
	}
}

// Open wires the repository, the oracle, the optional archives and the
// reconciliation engine.
func Open(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	a := &App{Config: cfg}

	repo, err := OpenStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	a.Repo = repo
	a.closers = append(a.closers, repo.Close)

	gemini, err := extraction.NewGeminiOracle(ctx, cfg.Gemini.Model, cfg.Gemini.APIKey)
	if err != nil {
		a.Close()
		return nil, err
	}
	oracle := extraction.WithTimeout(gemini, cfg.Extraction.Timeout)

	opts := []pipeline.Option{pipeline.WithLogger(log)}
	if cfg.BigQuery.Project != "" {
		sink, err := infraBQ.NewOutputSink(ctx, cfg.BigQuery.Project, cfg.BigQuery.Dataset, cfg.Google.CredentialsFile)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, sink.Close)
		opts = append(opts, pipeline.WithOutputSink(sink))
	} else {
		log.Info().Msg("No BigQuery project configured, model output is not archived")
	}
	a.Ingester = pipeline.NewIngester(repo, oracle, opts...)

	if cfg.GCS.Bucket != "" {
		uploader, err := gcsuploader.NewUploader(ctx, cfg.GCS.Bucket, cfg.Google.CredentialsFile)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Uploader = uploader
		a.closers = append(a.closers, uploader.Close)
	} else {
		log.Info().Msg("No GCS bucket configured, uploads are not archived")
	}

	tol, err := cfg.MatchTolerance()
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Engine = reconcile.NewEngine(repo, reconcile.WithTolerance(tol), reconcile.WithLogger(log))
	return a, nil
}

// Close releases every client in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
