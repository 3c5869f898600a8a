package postgres

import (
	"context"

	"github.com/dvloznov/finance-reconciler/internal/domain"
)

func (r *Repository) Stats(ctx context.Context) (*domain.Stats, error) {
	var (
		stats          domain.Stats
		revenue, owing string
	)
	err := r.pool.QueryRow(ctx, `
		SELECT
			COALESCE((SELECT SUM(total_amount) FROM invoices), 0)::text,
			COALESCE((SELECT SUM(total_amount) FROM invoices WHERE status <> 'paid'), 0)::text,
			(SELECT COUNT(*) FROM clients),
			(SELECT COUNT(*) FROM bank_transactions),
			(SELECT COUNT(*) FROM bank_transactions WHERE reconciled)
	`).Scan(&revenue, &owing, &stats.ClientCount, &stats.TransactionCount, &stats.ReconciledCount)
	if err != nil {
		return nil, persistenceErr("stats", err)
	}
	if stats.TotalRevenue, err = parseDecimal(revenue); err != nil {
		return nil, persistenceErr("stats", err)
	}
	if stats.UnpaidTotal, err = parseDecimal(owing); err != nil {
		return nil, persistenceErr("stats", err)
	}
	stats.ReconciliationRate = domain.ReconciliationRate(stats.ReconciledCount, stats.TransactionCount)
	return &stats, nil
}

func (r *Repository) TopClients(ctx context.Context, limit int) ([]*domain.ClientRevenue, error) {
	var lim *int
	if limit > 0 {
		lim = &limit
	}
	rows, err := r.pool.Query(ctx, `
		SELECT c.id, c.name, COUNT(i.id), COALESCE(SUM(i.total_amount), 0)::text
		FROM clients c
		LEFT JOIN invoices i ON i.client_id = c.id
		GROUP BY c.id, c.name
		ORDER BY COALESCE(SUM(i.total_amount), 0) DESC, c.id
		LIMIT $1
	`, lim)
	if err != nil {
		return nil, persistenceErr("top clients", err)
	}
	defer rows.Close()

	out := make([]*domain.ClientRevenue, 0)
	for rows.Next() {
		var (
			row   domain.ClientRevenue
			total string
		)
		if err := rows.Scan(&row.ClientID, &row.Name, &row.InvoiceCount, &total); err != nil {
			return nil, persistenceErr("scan top client", err)
		}
		if row.TotalAmount, err = parseDecimal(total); err != nil {
			return nil, persistenceErr("scan top client", err)
		}
		out = append(out, &row)
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceErr("top clients", err)
	}
	return out, nil
}
