package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dvloznov/finance-reconciler/internal/store/postgres"
)

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	var appliedBy string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.cfg.Store.Driver != "postgres" {
				return fmt.Errorf("migrate requires the postgres store, got %q", opts.cfg.Store.Driver)
			}
			ctx := cmd.Context()

			pool, err := postgres.Connect(ctx, opts.cfg.Store.DatabaseURL)
			if err != nil {
				return err
			}
			defer pool.Close()

			applied, err := postgres.Migrate(ctx, pool, appliedBy, opts.log)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s)\n", applied)
			return nil
		},
	}

	cmd.Flags().StringVar(&appliedBy, "applied-by", defaultAppliedBy(), "name recorded with each applied migration")

	return cmd
}

func defaultAppliedBy() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "cli"
}
