package postgres

import (
	"context"

	"github.com/dvloznov/finance-reconciler/internal/domain"
)

const statementColumns = `id, document_id, to_char(statement_date, 'YYYY-MM-DD'), account_number, bank_name,
	starting_balance::text, ending_balance::text, currency, metadata, created_at, updated_at`

const transactionColumns = `id, bank_statement_id, to_char(date, 'YYYY-MM-DD'), description, amount::text, type,
	reference, sender_receiver, reconciled, reconciled_with_invoice_id, metadata, created_at`

func scanStatement(row scanner) (*domain.BankStatement, error) {
	var (
		s                domain.BankStatement
		stmtDate         *string
		starting, ending string
	)
	if err := row.Scan(&s.ID, &s.DocumentID, &stmtDate, &s.AccountNumber, &s.BankName,
		&starting, &ending, &s.Currency, &s.Metadata, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	var err error
	if s.StatementDate, err = parseDate(stmtDate); err != nil {
		return nil, err
	}
	if s.StartingBalance, err = parseDecimal(starting); err != nil {
		return nil, err
	}
	if s.EndingBalance, err = parseDecimal(ending); err != nil {
		return nil, err
	}
	return &s, nil
}

func scanTransaction(row scanner) (*domain.BankTransaction, error) {
	var (
		t       domain.BankTransaction
		txnDate *string
		amount  string
		txnType string
	)
	if err := row.Scan(&t.ID, &t.BankStatementID, &txnDate, &t.Description, &amount, &txnType,
		&t.Reference, &t.SenderReceiver, &t.Reconciled, &t.ReconciledWithInvoiceID, &t.Metadata, &t.CreatedAt); err != nil {
		return nil, err
	}
	t.Type = domain.TransactionType(txnType)
	var err error
	if t.Date, err = parseDate(txnDate); err != nil {
		return nil, err
	}
	if t.Amount, err = parseDecimal(amount); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *Repository) GetBankStatement(ctx context.Context, id int64) (*domain.BankStatement, error) {
	s, err := scanStatement(r.pool.QueryRow(ctx, `SELECT `+statementColumns+` FROM bank_statements WHERE id = $1`, id))
	if err != nil {
		return nil, notFoundOr("get bank statement", "bank statement", id, err)
	}
	return s, nil
}

func (r *Repository) ListBankStatements(ctx context.Context) ([]*domain.BankStatement, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+statementColumns+`
		FROM bank_statements
		ORDER BY statement_date DESC NULLS LAST, id DESC
	`)
	if err != nil {
		return nil, persistenceErr("list bank statements", err)
	}
	defer rows.Close()

	out := make([]*domain.BankStatement, 0)
	for rows.Next() {
		s, err := scanStatement(rows)
		if err != nil {
			return nil, persistenceErr("scan bank statement", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceErr("list bank statements", err)
	}
	return out, nil
}

func (r *Repository) ListBankTransactions(ctx context.Context, statementID int64) ([]*domain.BankTransaction, error) {
	return r.listTransactions(ctx, `WHERE bank_statement_id = $1`, statementID)
}

func (r *Repository) ListUnreconciledTransactions(ctx context.Context) ([]*domain.BankTransaction, error) {
	return r.listTransactions(ctx, `WHERE NOT reconciled`)
}

func (r *Repository) listTransactions(ctx context.Context, where string, args ...any) ([]*domain.BankTransaction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+transactionColumns+`
		FROM bank_transactions
		`+where+`
		ORDER BY date DESC NULLS LAST, id DESC
	`, args...)
	if err != nil {
		return nil, persistenceErr("list bank transactions", err)
	}
	defer rows.Close()

	out := make([]*domain.BankTransaction, 0)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, persistenceErr("scan bank transaction", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceErr("list bank transactions", err)
	}
	return out, nil
}

func (r *Repository) GetBankTransaction(ctx context.Context, id int64) (*domain.BankTransaction, error) {
	t, err := scanTransaction(r.pool.QueryRow(ctx, `SELECT `+transactionColumns+` FROM bank_transactions WHERE id = $1`, id))
	if err != nil {
		return nil, notFoundOr("get bank transaction", "bank transaction", id, err)
	}
	return t, nil
}

func insertStatement(ctx context.Context, q querier, s *domain.BankStatement) error {
	if s.Currency == "" {
		s.Currency = domain.DefaultCurrency
	}
	s.Metadata = metadataArg(s.Metadata)
	err := q.QueryRow(ctx, `
		INSERT INTO bank_statements (
			document_id, statement_date, account_number, bank_name,
			starting_balance, ending_balance, currency, metadata
		)
		VALUES ($1, $2::text::date, $3, $4, $5::text::numeric, $6::text::numeric, $7, $8)
		RETURNING id, created_at, updated_at
	`, s.DocumentID, dateArg(s.StatementDate), s.AccountNumber, s.BankName,
		decimalArg(s.StartingBalance), decimalArg(s.EndingBalance), s.Currency, s.Metadata,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return persistenceErr("insert bank statement", err)
	}
	return nil
}

func insertTransactions(ctx context.Context, q querier, statementID int64, txns []*domain.BankTransaction) error {
	for _, t := range txns {
		t.BankStatementID = statementID
		t.Reconciled = false
		t.ReconciledWithInvoiceID = nil
		if err := t.Validate(); err != nil {
			return err
		}
		t.Metadata = metadataArg(t.Metadata)
		err := q.QueryRow(ctx, `
			INSERT INTO bank_transactions (
				bank_statement_id, date, description, amount, type, reference, sender_receiver, metadata
			)
			VALUES ($1, $2::text::date, $3, $4::text::numeric, $5, $6, $7, $8)
			RETURNING id, created_at
		`, statementID, dateArg(t.Date), t.Description, decimalArg(t.Amount), string(t.Type),
			t.Reference, t.SenderReceiver, t.Metadata,
		).Scan(&t.ID, &t.CreatedAt)
		if err != nil {
			return persistenceErr("insert bank transaction", err)
		}
	}
	return nil
}
