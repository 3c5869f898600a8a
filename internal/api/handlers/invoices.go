package handlers

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-reconciler/internal/api/middleware"
	"github.com/dvloznov/finance-reconciler/internal/domain"
	"github.com/dvloznov/finance-reconciler/internal/store"
)

// InvoicesHandler handles invoice-related endpoints.
type InvoicesHandler struct {
	repo store.Repository
	log  zerolog.Logger
}

// NewInvoicesHandler creates a new invoices handler.
func NewInvoicesHandler(repo store.Repository, log zerolog.Logger) *InvoicesHandler {
	return &InvoicesHandler{repo: repo, log: log}
}

func invoiceFilter(r *http.Request) (domain.InvoiceFilter, error) {
	var (
		f   domain.InvoiceFilter
		err error
	)
	if f.ClientID, err = queryInt64(r, "clientId"); err != nil {
		return f, err
	}
	if status := r.URL.Query().Get("status"); status != "" {
		s := domain.InvoiceStatus(status)
		if err := (domain.InvoicePatch{Status: &s}).Validate(); err != nil {
			return f, err
		}
		f.Status = s
	}
	if f.StartDate, err = queryDate(r, "startDate"); err != nil {
		return f, err
	}
	if f.EndDate, err = queryDate(r, "endDate"); err != nil {
		return f, err
	}
	return f, nil
}

// List handles GET /api/invoices
func (h *InvoicesHandler) List(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(r, h.log)
	f, err := invoiceFilter(r)
	if err != nil {
		middleware.WriteDomainError(w, log, err, "Invalid filter")
		return
	}
	invoices, err := h.repo.ListInvoices(r.Context(), f)
	if err != nil {
		middleware.WriteDomainError(w, log, err, "Failed to list invoices")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"invoices": invoices,
		"count":    len(invoices),
	})
}

// Get handles GET /api/invoices/{id}
func (h *InvoicesHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := requestLogger(r, h.log)

	id, err := pathID(r, "id")
	if err != nil {
		middleware.WriteDomainError(w, log, err, "Invalid invoice id")
		return
	}
	inv, err := h.repo.GetInvoice(ctx, id)
	if err != nil {
		middleware.WriteDomainError(w, log, err, "Failed to get invoice")
		return
	}
	detail := &domain.InvoiceDetail{Invoice: *inv}
	if inv.ClientID != nil {
		if detail.Client, err = h.repo.GetClient(ctx, *inv.ClientID); err != nil {
			middleware.WriteDomainError(w, log, err, "Failed to get invoice client")
			return
		}
	}
	if detail.Items, err = h.repo.ListInvoiceItems(ctx, id); err != nil {
		middleware.WriteDomainError(w, log, err, "Failed to list invoice items")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, detail)
}

// Update handles PATCH /api/invoices/{id}
func (h *InvoicesHandler) Update(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(r, h.log)
	id, err := pathID(r, "id")
	if err != nil {
		middleware.WriteDomainError(w, log, err, "Invalid invoice id")
		return
	}
	var patch domain.InvoicePatch
	if err := decodeJSON(w, r, &patch); err != nil {
		middleware.WriteDomainError(w, log, err, "Invalid request body")
		return
	}
	inv, err := h.repo.UpdateInvoice(r.Context(), id, patch)
	if err != nil {
		middleware.WriteDomainError(w, log, err, "Failed to update invoice")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, inv)
}
