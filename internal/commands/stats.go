package commands

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newStatsCommand(opts *rootOptions) *cobra.Command {
	var top int

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print revenue and reconciliation totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withServices(cmd, func(ctx context.Context, svc *Services) error {
				stats, err := svc.Repo.Stats(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Total revenue:       %s\n", stats.TotalRevenue.StringFixed(2))
				fmt.Fprintf(out, "Unpaid total:        %s\n", stats.UnpaidTotal.StringFixed(2))
				fmt.Fprintf(out, "Clients:             %d\n", stats.ClientCount)
				fmt.Fprintf(out, "Transactions:        %d (%d reconciled)\n", stats.TransactionCount, stats.ReconciledCount)
				fmt.Fprintf(out, "Reconciliation rate: %s%%\n", stats.ReconciliationRate.StringFixed(2))

				if top <= 0 {
					return nil
				}
				clients, err := svc.Repo.TopClients(ctx, top)
				if err != nil {
					return err
				}
				if len(clients) == 0 {
					return nil
				}
				fmt.Fprintln(out, "\nTop clients:")
				tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "NAME\tINVOICES\tTOTAL")
				for _, c := range clients {
					fmt.Fprintf(tw, "%s\t%d\t%s\n", c.Name, c.InvoiceCount, c.TotalAmount.StringFixed(2))
				}
				return tw.Flush()
			})
		},
	}

	cmd.Flags().IntVar(&top, "top", 5, "number of top clients to list (0 disables)")

	return cmd
}
