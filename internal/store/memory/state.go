package memory

import (
	"cmp"
	"maps"
	"time"

	"cloud.google.com/go/civil"

	"github.com/dvloznov/finance-reconciler/internal/domain"
)

// state is one consistent snapshot of every table. Rows are stored by value so
// that a shallow map copy is enough to isolate a transaction.
type state struct {
	documents    map[int64]domain.Document
	clients      map[int64]domain.Client
	invoices     map[int64]domain.Invoice
	items        map[int64]domain.InvoiceItem
	statements   map[int64]domain.BankStatement
	transactions map[int64]domain.BankTransaction
	seq          map[string]int64
}

func newState() *state {
	return &state{
		documents:    make(map[int64]domain.Document),
		clients:      make(map[int64]domain.Client),
		invoices:     make(map[int64]domain.Invoice),
		items:        make(map[int64]domain.InvoiceItem),
		statements:   make(map[int64]domain.BankStatement),
		transactions: make(map[int64]domain.BankTransaction),
		seq:          make(map[string]int64),
	}
}

func (s *state) clone() *state {
	return &state{
		documents:    maps.Clone(s.documents),
		clients:      maps.Clone(s.clients),
		invoices:     maps.Clone(s.invoices),
		items:        maps.Clone(s.items),
		statements:   maps.Clone(s.statements),
		transactions: maps.Clone(s.transactions),
		seq:          maps.Clone(s.seq),
	}
}

func (s *state) nextID(table string) int64 {
	s.seq[table]++
	return s.seq[table]
}

func (s *state) transitionDocument(id int64, from, to domain.ProcessingStatus, errMsg string, now time.Time) error {
	doc, ok := s.documents[id]
	if !ok {
		return domain.NewNotFound("document", id)
	}
	if doc.Status != from {
		return domain.NewConflict("document %d is %s, not %s", id, doc.Status, from)
	}
	if !domain.CanTransition(from, to) {
		return domain.NewConflict("document %d cannot move from %s to %s", id, from, to)
	}
	doc.Status = to
	if to == domain.StatusError {
		doc.ProcessingError = domain.TruncateError(errMsg)
	}
	doc.UpdatedAt = now
	s.documents[id] = doc
	return nil
}

func (s *state) clientByName(name string) (domain.Client, bool) {
	for _, c := range s.clients {
		if c.Name == name {
			return c, true
		}
	}
	return domain.Client{}, false
}

func (s *state) insertClient(c *domain.Client, now time.Time) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if _, taken := s.clientByName(c.Name); taken {
		return domain.NewConflict("client %q already exists", c.Name)
	}
	c.ID = s.nextID("clients")
	c.CreatedAt = now
	s.clients[c.ID] = *c
	return nil
}

func emptyIfNil(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

// compareDateDesc orders newer dates first and missing dates last.
func compareDateDesc(a, b *civil.Date) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	case a.After(*b):
		return -1
	case a.Before(*b):
		return 1
	default:
		return 0
	}
}

func compareIDDesc(a, b int64) int {
	return cmp.Compare(b, a)
}
