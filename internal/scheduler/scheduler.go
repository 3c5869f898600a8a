// Package scheduler runs the periodic maintenance sweeps over the repository.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-reconciler/internal/store"
)

// StaleMessage is recorded on documents abandoned before extraction finished.
const StaleMessage = "processing timed out"

// sweepTimeout bounds one run of a sweep.
const sweepTimeout = time.Minute

// Config holds the cron specs of the sweeps. An empty spec disables that sweep.
type Config struct {
	Overdue    string
	Stale      string
	StaleAfter time.Duration
	Location   *time.Location
}

// Scheduler owns the cron runner.
type Scheduler struct {
	repo store.Repository
	cfg  Config
	cron *cron.Cron
	log  zerolog.Logger
	now  func() time.Time
}

// New creates a Scheduler. Specs are validated here so a bad config fails at
// startup rather than silently never firing.
func New(repo store.Repository, cfg Config, log zerolog.Logger) (*Scheduler, error) {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Stale != "" && cfg.StaleAfter <= 0 {
		return nil, fmt.Errorf("scheduler: stale_after must be positive")
	}

	s := &Scheduler{
		repo: repo,
		cfg:  cfg,
		cron: cron.New(cron.WithLocation(cfg.Location)),
		log:  log.With().Str("component", "scheduler").Logger(),
		now:  time.Now,
	}
	if err := s.add(cfg.Overdue, "overdue", s.MarkOverdue); err != nil {
		return nil, err
	}
	if err := s.add(cfg.Stale, "stale", s.FailStale); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Scheduler) add(spec, name string, sweep func(context.Context) (int, error)) error {
	if spec == "" {
		return nil
	}
	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
		defer cancel()
		n, err := sweep(ctx)
		if err != nil {
			s.log.Error().Err(err).Str("sweep", name).Msg("Sweep failed")
			return
		}
		if n > 0 {
			s.log.Info().Str("sweep", name).Int("updated", n).Msg("Sweep finished")
		}
	})
	if err != nil {
		return fmt.Errorf("scheduler: unable to schedule %s sweep %q: %w", name, spec, err)
	}
	return nil
}

// Start runs the cron runner in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Int("jobs", len(s.cron.Entries())).Msg("Scheduler started")
}

// Stop stops scheduling and waits for running sweeps or ctx, whichever ends first.
func (s *Scheduler) Stop(ctx context.Context) error {
	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// MarkOverdue flags unpaid invoices due before today in the scheduler's location.
func (s *Scheduler) MarkOverdue(ctx context.Context) (int, error) {
	today := civil.DateOf(s.now().In(s.cfg.Location))
	return s.repo.MarkOverdueInvoices(ctx, today)
}

// FailStale moves documents untouched in pending or processing for longer
// than StaleAfter to error.
func (s *Scheduler) FailStale(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.cfg.StaleAfter)
	return s.repo.FailStaleDocuments(ctx, cutoff, StaleMessage)
}
