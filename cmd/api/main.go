package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/finance-reconciler/internal/api"
	"github.com/dvloznov/finance-reconciler/internal/api/handlers"
	"github.com/dvloznov/finance-reconciler/internal/app"
	"github.com/dvloznov/finance-reconciler/internal/config"
	"github.com/dvloznov/finance-reconciler/internal/jobs"
	"github.com/dvloznov/finance-reconciler/internal/jobs/inmemory"
	"github.com/dvloznov/finance-reconciler/internal/logger"
	"github.com/dvloznov/finance-reconciler/internal/scheduler"
)

func main() {
	var (
		configPath = flag.String("config", os.Getenv("CONFIG_FILE"), "path to a YAML config file (or set CONFIG_FILE env)")
		port       = flag.String("port", "", "HTTP server port, overrides the config")
		storeFlag  = flag.String("store", "", "store driver (postgres or memory), overrides the config")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath, func(c *config.Config) {
		if *port != "" {
			c.HTTP.Port = *port
		}
		if *storeFlag != "" {
			c.Store.Driver = *storeFlag
		}
	})
	if err != nil {
		bootLog := logger.New(logger.Config{})
		bootLog.Fatal().Err(err).Msg("Failed to load config")
	}
	log := logger.New(cfg.Log)

	ctx := context.Background()

	svc, err := app.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}
	defer svc.Close()

	// Initialize job infrastructure
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(cfg.Queue.Buffer, jobStore,
		inmemory.WithWorkers(cfg.Queue.Workers),
		inmemory.WithLogger(log),
	)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	jobHandler := func(ctx context.Context, job *jobs.IngestDocumentJob) error {
		result, err := svc.Ingester.Ingest(ctx, job.DocumentID, job.Kind, job.Text)
		if err != nil {
			return err
		}
		jobLog := logger.FromContext(ctx)
		jobLog.Info().
			Int("items", result.ItemCount).
			Int("transactions", result.TransactionCount).
			Msg("Document ingested")
		return nil
	}
	if err := jobQueue.Start(workerCtx, jobHandler); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job queue")
	}

	sched, err := scheduler.New(svc.Repo, scheduler.Config{
		Overdue:    cfg.Schedule.Overdue,
		Stale:      cfg.Schedule.Stale,
		StaleAfter: cfg.Schedule.StaleAfter,
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create scheduler")
	}
	sched.Start()

	deps := api.Dependencies{
		Repo:          svc.Repo,
		Publisher:     jobQueue,
		Jobs:          jobStore,
		Reconciler:    svc.Engine,
		MaxUploadSize: cfg.HTTP.MaxUploadSize,
		Log:           log,
	}
	// A nil *Uploader must not become a non-nil interface.
	if svc.Uploader != nil {
		var archiver handlers.Archiver = svc.Uploader
		deps.Archiver = archiver
	}

	server := &http.Server{
		Addr:         ":" + cfg.HTTP.Port,
		Handler:      api.NewHandler(deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.HTTP.Port).Str("store", cfg.Store.Driver).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	if err := sched.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping scheduler")
	}

	// In-flight extractions get the shutdown window to finish; the stale
	// sweep picks up anything interrupted.
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	cancelWorker()

	if err := jobQueue.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close job queue")
	}

	log.Info().Msg("Server exited")
}
