package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dvloznov/finance-reconciler/internal/scheduler"
)

func newSweepCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run the overdue and stale-processing sweeps once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withServices(cmd, func(ctx context.Context, svc *Services) error {
				// Cron specs are irrelevant for a one-off run.
				sched, err := scheduler.New(svc.Repo, scheduler.Config{
					StaleAfter: opts.cfg.Schedule.StaleAfter,
				}, opts.log)
				if err != nil {
					return err
				}
				overdue, err := sched.MarkOverdue(ctx)
				if err != nil {
					return err
				}
				stale, err := sched.FailStale(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Marked %d invoice(s) overdue, failed %d stale document(s)\n", overdue, stale)
				return nil
			})
		},
	}
}
