// Package commands implements the finance-reconciler command line.
package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dvloznov/finance-reconciler/internal/app"
	"github.com/dvloznov/finance-reconciler/internal/config"
	"github.com/dvloznov/finance-reconciler/internal/domain"
	"github.com/dvloznov/finance-reconciler/internal/logger"
	"github.com/dvloznov/finance-reconciler/internal/pipeline"
	"github.com/dvloznov/finance-reconciler/internal/reconcile"
	"github.com/dvloznov/finance-reconciler/internal/store"
)

// Ingester runs the ingestion pipeline for one document.
type Ingester interface {
	Ingest(ctx context.Context, documentID int64, kind domain.DocumentKind, text string) (*pipeline.Result, error)
}

// Reconciler lists, suggests and commits matches.
type Reconciler interface {
	ListUnreconciled(ctx context.Context) ([]*domain.BankTransaction, error)
	Suggestions(ctx context.Context, txnID int64) (*reconcile.Suggestions, error)
	Reconcile(ctx context.Context, txnID, invoiceID int64) (*domain.BankTransaction, error)
}

// Fetcher downloads an archived object by gs:// URI.
type Fetcher interface {
	Fetch(ctx context.Context, uri string) ([]byte, error)
}

// Services are what the commands operate on. Fetcher may be nil.
type Services struct {
	Repo       store.Repository
	Ingester   Ingester
	Reconciler Reconciler
	Fetcher    Fetcher
	Close      func() error
}

// Opener builds Services from the loaded config.
type Opener func(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Services, error)

// OpenServices is the production Opener.
func OpenServices(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Services, error) {
	a, err := app.Open(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	svc := &Services{
		Repo:       a.Repo,
		Ingester:   a.Ingester,
		Reconciler: a.Engine,
		Close:      a.Close,
	}
	if a.Uploader != nil {
		svc.Fetcher = a.Uploader
	}
	return svc, nil
}

type rootOptions struct {
	configPath string
	store      string
	logLevel   string

	open Opener
	cfg  *config.Config
	log  zerolog.Logger
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand(open Opener) *cobra.Command {
	opts := &rootOptions{open: open}

	rootCmd := &cobra.Command{
		Use:   "finance-reconciler",
		Short: "Ingest invoices and bank statements and reconcile payments",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "path to a YAML config file")
	flags.StringVar(&opts.store, "store", "", "store driver override (postgres or memory)")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level override")

	rootCmd.AddCommand(
		newMigrateCommand(opts),
		newIngestCommand(opts),
		newUnreconciledCommand(opts),
		newSuggestCommand(opts),
		newReconcileCommand(opts),
		newStatsCommand(opts),
		newSweepCommand(opts),
	)

	return rootCmd
}

// load applies the flag layer on top of config.Load.
func (o *rootOptions) load() error {
	cfg, err := config.Load(o.configPath, func(c *config.Config) {
		if o.store != "" {
			c.Store.Driver = o.store
		}
		if o.logLevel != "" {
			c.Log.Level = o.logLevel
		}
	})
	if err != nil {
		return err
	}
	o.cfg = cfg
	o.log = logger.New(cfg.Log)
	return nil
}

// withServices opens the services for the duration of fn.
func (o *rootOptions) withServices(cmd *cobra.Command, fn func(ctx context.Context, svc *Services) error) error {
	ctx := logger.WithContext(cmd.Context(), o.log)
	svc, err := o.open(ctx, o.cfg, o.log)
	if err != nil {
		return fmt.Errorf("opening services: %w", err)
	}
	defer func() {
		if svc.Close != nil {
			if err := svc.Close(); err != nil {
				o.log.Warn().Err(err).Msg("Failed to close services")
			}
		}
	}()
	return fn(ctx, svc)
}
