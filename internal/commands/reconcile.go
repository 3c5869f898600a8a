package commands

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"cloud.google.com/go/civil"
	"github.com/spf13/cobra"

	"github.com/dvloznov/finance-reconciler/internal/domain"
)

func newUnreconciledCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "unreconciled",
		Short: "List bank transactions not yet matched to an invoice",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withServices(cmd, func(ctx context.Context, svc *Services) error {
				txns, err := svc.Reconciler.ListUnreconciled(ctx)
				if err != nil {
					return err
				}
				if len(txns) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No unreconciled transactions")
					return nil
				}
				return writeTransactions(cmd.OutOrStdout(), txns)
			})
		},
	}
}

func newSuggestCommand(opts *rootOptions) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "suggest <transaction-id>",
		Short: "Show the invoices a transaction could be reconciled with",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			txnID, err := parseID("transaction-id", args[0])
			if err != nil {
				return err
			}
			return opts.withServices(cmd, func(ctx context.Context, svc *Services) error {
				s, err := svc.Reconciler.Suggestions(ctx, txnID)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				t := s.Transaction
				fmt.Fprintf(out, "Transaction %d: %s %s %s\n", t.ID, formatDate(t.Date), t.Amount.StringFixed(2), t.Description)

				if len(s.Suggested) == 0 {
					fmt.Fprintln(out, "No invoice within tolerance")
				} else {
					fmt.Fprintln(out, "Suggested:")
					if err := writeInvoices(out, s.Suggested); err != nil {
						return err
					}
				}
				if all && len(s.Others) > 0 {
					fmt.Fprintln(out, "Other unpaid invoices:")
					return writeInvoices(out, s.Others)
				}
				if len(s.Others) > 0 {
					fmt.Fprintf(out, "%d other unpaid invoice(s), use --all to list them\n", len(s.Others))
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "also list unpaid invoices outside the tolerance")

	return cmd
}

func newReconcileCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile <transaction-id> <invoice-id>",
		Short: "Match a bank transaction to an invoice and mark the invoice paid",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			txnID, err := parseID("transaction-id", args[0])
			if err != nil {
				return err
			}
			invoiceID, err := parseID("invoice-id", args[1])
			if err != nil {
				return err
			}
			return opts.withServices(cmd, func(ctx context.Context, svc *Services) error {
				if _, err := svc.Reconciler.Reconcile(ctx, txnID, invoiceID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Transaction %d reconciled with invoice %d\n", txnID, invoiceID)
				return nil
			})
		},
	}
}

func parseID(name, s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, &domain.ValidationError{Field: name, Message: "must be a positive integer"}
	}
	return id, nil
}

func formatDate(d *civil.Date) string {
	if d == nil {
		return "-"
	}
	return d.String()
}

func writeTransactions(w io.Writer, txns []*domain.BankTransaction) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tAMOUNT\tTYPE\tDESCRIPTION")
	for _, t := range txns {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", t.ID, formatDate(t.Date), t.Amount.StringFixed(2), t.Type, t.Description)
	}
	return tw.Flush()
}

func writeInvoices(w io.Writer, invoices []*domain.Invoice) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNUMBER\tDUE\tTOTAL\tSTATUS")
	for _, inv := range invoices {
		total := "-"
		if inv.TotalAmount.Valid {
			total = inv.TotalAmount.Decimal.StringFixed(2)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", inv.ID, inv.InvoiceNumber, formatDate(inv.DueDate), total, inv.Status)
	}
	return tw.Flush()
}
