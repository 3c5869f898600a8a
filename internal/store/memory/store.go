// Package memory is an in-process implementation of store.Repository.
// Data is lost on restart; it backs tests and local runs without a database.
package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/finance-reconciler/internal/domain"
	"github.com/dvloznov/finance-reconciler/internal/store"
)

// Store is safe for concurrent use. Transactions are serialized.
type Store struct {
	mu  sync.RWMutex
	st  *state
	now func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates an empty in-memory repository.
func NewStore(opts ...Option) *Store {
	s := &Store{st: newState(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WithTx runs fn against a private copy of the data and publishes the copy
// only when fn succeeds.
func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	if err := fn(&txn{st: work, now: s.now}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.st = work
	return nil
}

func (s *Store) update(ctx context.Context, fn func(st *state) error) error {
	return s.WithTx(ctx, func(tx store.Tx) error {
		return fn(tx.(*txn).st)
	})
}

func (s *Store) read() *state {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st
}

// Close implements store.Repository.
func (s *Store) Close() error { return nil }

// --- documents ---

func (s *Store) CreateDocument(ctx context.Context, doc *domain.Document) error {
	if _, err := domain.ParseDocumentKind(string(doc.Kind)); err != nil {
		return err
	}
	return s.update(ctx, func(st *state) error {
		now := s.now()
		doc.ID = st.nextID("documents")
		doc.Status = domain.StatusPending
		doc.ProcessingError = ""
		doc.CreatedAt = now
		doc.UpdatedAt = now
		st.documents[doc.ID] = *doc
		return nil
	})
}

func (s *Store) GetDocument(ctx context.Context, id int64) (*domain.Document, error) {
	doc, ok := s.read().documents[id]
	if !ok {
		return nil, domain.NewNotFound("document", id)
	}
	return &doc, nil
}

func (s *Store) ListDocuments(ctx context.Context, limit int) ([]*domain.Document, error) {
	st := s.read()
	out := make([]*domain.Document, 0, len(st.documents))
	for _, d := range st.documents {
		out = append(out, &d)
	}
	slices.SortFunc(out, func(a, b *domain.Document) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return compareIDDesc(a.ID, b.ID)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) TransitionDocument(ctx context.Context, id int64, from, to domain.ProcessingStatus, errMsg string) error {
	return s.update(ctx, func(st *state) error {
		return st.transitionDocument(id, from, to, errMsg, s.now())
	})
}

func (s *Store) FailStaleDocuments(ctx context.Context, cutoff time.Time, errMsg string) (int, error) {
	var n int
	err := s.update(ctx, func(st *state) error {
		now := s.now()
		for id, d := range st.documents {
			if !d.UpdatedAt.Before(cutoff) {
				continue
			}
			switch d.Status {
			case domain.StatusPending:
				// Never picked up; walk it through processing so the status
				// still only moves forward.
				if err := st.transitionDocument(id, domain.StatusPending, domain.StatusProcessing, "", now); err != nil {
					return err
				}
			case domain.StatusProcessing:
			default:
				continue
			}
			if err := st.transitionDocument(id, domain.StatusProcessing, domain.StatusError, errMsg, now); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// --- clients ---

func (s *Store) CreateClient(ctx context.Context, c *domain.Client) error {
	return s.update(ctx, func(st *state) error {
		return st.insertClient(c, s.now())
	})
}

func (s *Store) GetClient(ctx context.Context, id int64) (*domain.Client, error) {
	c, ok := s.read().clients[id]
	if !ok {
		return nil, domain.NewNotFound("client", id)
	}
	return &c, nil
}

func (s *Store) GetClientByName(ctx context.Context, name string) (*domain.Client, error) {
	c, ok := s.read().clientByName(name)
	if !ok {
		return nil, domain.NewNotFound("client", name)
	}
	return &c, nil
}

func (s *Store) ListClients(ctx context.Context) ([]*domain.Client, error) {
	st := s.read()
	out := make([]*domain.Client, 0, len(st.clients))
	for _, c := range st.clients {
		out = append(out, &c)
	}
	slices.SortFunc(out, func(a, b *domain.Client) int {
		if c := cmp.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (s *Store) UpdateClient(ctx context.Context, id int64, patch domain.ClientPatch) (*domain.Client, error) {
	var out domain.Client
	err := s.update(ctx, func(st *state) error {
		c, ok := st.clients[id]
		if !ok {
			return domain.NewNotFound("client", id)
		}
		patch.Apply(&c)
		if err := c.Validate(); err != nil {
			return err
		}
		if other, taken := st.clientByName(c.Name); taken && other.ID != id {
			return domain.NewConflict("client %q already exists", c.Name)
		}
		st.clients[id] = c
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// --- invoices ---

func (s *Store) GetInvoice(ctx context.Context, id int64) (*domain.Invoice, error) {
	inv, ok := s.read().invoices[id]
	if !ok {
		return nil, domain.NewNotFound("invoice", id)
	}
	return &inv, nil
}

func (s *Store) ListInvoices(ctx context.Context, f domain.InvoiceFilter) ([]*domain.Invoice, error) {
	st := s.read()
	out := make([]*domain.Invoice, 0)
	for _, inv := range st.invoices {
		if !matchesFilter(&inv, f) {
			continue
		}
		out = append(out, &inv)
	}
	slices.SortFunc(out, func(a, b *domain.Invoice) int {
		if c := compareDateDesc(a.IssueDate, b.IssueDate); c != 0 {
			return c
		}
		return compareIDDesc(a.ID, b.ID)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func matchesFilter(inv *domain.Invoice, f domain.InvoiceFilter) bool {
	if f.ClientID != nil && (inv.ClientID == nil || *inv.ClientID != *f.ClientID) {
		return false
	}
	if f.Status != "" && inv.Status != f.Status {
		return false
	}
	if f.Unpaid && !inv.Unpaid() {
		return false
	}
	if f.StartDate != nil && (inv.IssueDate == nil || inv.IssueDate.Before(*f.StartDate)) {
		return false
	}
	if f.EndDate != nil && (inv.IssueDate == nil || inv.IssueDate.After(*f.EndDate)) {
		return false
	}
	return true
}

func (s *Store) ListInvoiceItems(ctx context.Context, invoiceID int64) ([]*domain.InvoiceItem, error) {
	st := s.read()
	out := make([]*domain.InvoiceItem, 0)
	for _, it := range st.items {
		if it.InvoiceID == invoiceID {
			out = append(out, &it)
		}
	}
	slices.SortFunc(out, func(a, b *domain.InvoiceItem) int {
		if c := cmp.Compare(a.Position, b.Position); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (s *Store) UpdateInvoice(ctx context.Context, id int64, patch domain.InvoicePatch) (*domain.Invoice, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	var out domain.Invoice
	err := s.update(ctx, func(st *state) error {
		inv, ok := st.invoices[id]
		if !ok {
			return domain.NewNotFound("invoice", id)
		}
		patch.Apply(&inv)
		inv.UpdatedAt = s.now()
		st.invoices[id] = inv
		out = inv
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Store) MarkOverdueInvoices(ctx context.Context, asOf civil.Date) (int, error) {
	var n int
	err := s.update(ctx, func(st *state) error {
		now := s.now()
		for id, inv := range st.invoices {
			if inv.Status != domain.InvoiceUnpaid || inv.DueDate == nil || !inv.DueDate.Before(asOf) {
				continue
			}
			inv.Status = domain.InvoiceOverdue
			inv.UpdatedAt = now
			st.invoices[id] = inv
			n++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// --- bank statements ---

func (s *Store) GetBankStatement(ctx context.Context, id int64) (*domain.BankStatement, error) {
	stmt, ok := s.read().statements[id]
	if !ok {
		return nil, domain.NewNotFound("bank statement", id)
	}
	return &stmt, nil
}

func (s *Store) ListBankStatements(ctx context.Context) ([]*domain.BankStatement, error) {
	st := s.read()
	out := make([]*domain.BankStatement, 0, len(st.statements))
	for _, stmt := range st.statements {
		out = append(out, &stmt)
	}
	slices.SortFunc(out, func(a, b *domain.BankStatement) int {
		if c := compareDateDesc(a.StatementDate, b.StatementDate); c != 0 {
			return c
		}
		return compareIDDesc(a.ID, b.ID)
	})
	return out, nil
}

func (s *Store) ListBankTransactions(ctx context.Context, statementID int64) ([]*domain.BankTransaction, error) {
	return s.listTransactions(func(t *domain.BankTransaction) bool {
		return t.BankStatementID == statementID
	}), nil
}

func (s *Store) GetBankTransaction(ctx context.Context, id int64) (*domain.BankTransaction, error) {
	t, ok := s.read().transactions[id]
	if !ok {
		return nil, domain.NewNotFound("bank transaction", id)
	}
	return &t, nil
}

func (s *Store) ListUnreconciledTransactions(ctx context.Context) ([]*domain.BankTransaction, error) {
	return s.listTransactions(func(t *domain.BankTransaction) bool {
		return !t.Reconciled
	}), nil
}

func (s *Store) listTransactions(keep func(*domain.BankTransaction) bool) []*domain.BankTransaction {
	st := s.read()
	out := make([]*domain.BankTransaction, 0)
	for _, t := range st.transactions {
		if keep(&t) {
			out = append(out, &t)
		}
	}
	slices.SortFunc(out, func(a, b *domain.BankTransaction) int {
		if c := compareDateDesc(a.Date, b.Date); c != 0 {
			return c
		}
		return compareIDDesc(a.ID, b.ID)
	})
	return out
}

// --- reports ---

func (s *Store) Stats(ctx context.Context) (*domain.Stats, error) {
	st := s.read()
	stats := &domain.Stats{
		TotalRevenue: decimal.Zero,
		UnpaidTotal:  decimal.Zero,
		ClientCount:  len(st.clients),
	}
	for _, inv := range st.invoices {
		if !inv.TotalAmount.Valid {
			continue
		}
		stats.TotalRevenue = stats.TotalRevenue.Add(inv.TotalAmount.Decimal)
		if inv.Status != domain.InvoicePaid {
			stats.UnpaidTotal = stats.UnpaidTotal.Add(inv.TotalAmount.Decimal)
		}
	}
	for _, t := range st.transactions {
		stats.TransactionCount++
		if t.Reconciled {
			stats.ReconciledCount++
		}
	}
	stats.ReconciliationRate = domain.ReconciliationRate(stats.ReconciledCount, stats.TransactionCount)
	return stats, nil
}

func (s *Store) TopClients(ctx context.Context, limit int) ([]*domain.ClientRevenue, error) {
	st := s.read()
	byClient := make(map[int64]*domain.ClientRevenue, len(st.clients))
	for id, c := range st.clients {
		byClient[id] = &domain.ClientRevenue{ClientID: id, Name: c.Name, TotalAmount: decimal.Zero}
	}
	for _, inv := range st.invoices {
		if inv.ClientID == nil {
			continue
		}
		row, ok := byClient[*inv.ClientID]
		if !ok {
			continue
		}
		row.InvoiceCount++
		if inv.TotalAmount.Valid {
			row.TotalAmount = row.TotalAmount.Add(inv.TotalAmount.Decimal)
		}
	}
	out := make([]*domain.ClientRevenue, 0, len(byClient))
	for _, row := range byClient {
		out = append(out, row)
	}
	slices.SortFunc(out, func(a, b *domain.ClientRevenue) int {
		if c := b.TotalAmount.Cmp(a.TotalAmount); c != 0 {
			return c
		}
		return cmp.Compare(a.ClientID, b.ClientID)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

var _ store.Repository = (*Store)(nil)
