package handlers

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-reconciler/internal/api/middleware"
	"github.com/dvloznov/finance-reconciler/internal/domain"
	"github.com/dvloznov/finance-reconciler/internal/reconcile"
)

// Reconciler is the reconciliation workflow behind the API.
type Reconciler interface {
	ListUnreconciled(ctx context.Context) ([]*domain.BankTransaction, error)
	Suggestions(ctx context.Context, txnID int64) (*reconcile.Suggestions, error)
	Reconcile(ctx context.Context, txnID, invoiceID int64) (*domain.BankTransaction, error)
}

// ReconciliationHandler handles reconciliation endpoints.
type ReconciliationHandler struct {
	reconciler Reconciler
	log        zerolog.Logger
}

// NewReconciliationHandler creates a new reconciliation handler.
func NewReconciliationHandler(reconciler Reconciler, log zerolog.Logger) *ReconciliationHandler {
	return &ReconciliationHandler{reconciler: reconciler, log: log}
}

// Unreconciled handles GET /api/reconciliation/unreconciled
func (h *ReconciliationHandler) Unreconciled(w http.ResponseWriter, r *http.Request) {
	txns, err := h.reconciler.ListUnreconciled(r.Context())
	if err != nil {
		middleware.WriteDomainError(w, requestLogger(r, h.log), err, "Failed to list unreconciled transactions")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"transactions": txns,
		"count":        len(txns),
	})
}

// Suggestions handles GET /api/reconciliation/suggestions/{transactionId}
func (h *ReconciliationHandler) Suggestions(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(r, h.log)
	id, err := pathID(r, "transactionId")
	if err != nil {
		middleware.WriteDomainError(w, log, err, "Invalid transaction id")
		return
	}
	s, err := h.reconciler.Suggestions(r.Context(), id)
	if err != nil {
		middleware.WriteDomainError(w, log, err, "Failed to load suggestions")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, s)
}

type matchRequest struct {
	TransactionID int64 `json:"transactionId"`
	InvoiceID     int64 `json:"invoiceId"`
}

// Match handles POST /api/reconciliation/match
func (h *ReconciliationHandler) Match(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(r, h.log)

	var req matchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		middleware.WriteDomainError(w, log, err, "Invalid request body")
		return
	}
	if req.TransactionID <= 0 || req.InvoiceID <= 0 {
		middleware.WriteError(w, http.StatusBadRequest, "transactionId and invoiceId are required")
		return
	}

	txn, err := h.reconciler.Reconcile(r.Context(), req.TransactionID, req.InvoiceID)
	if err != nil {
		middleware.WriteDomainError(w, log, err, "Failed to reconcile transaction")
		return
	}
	log.Info().
		Int64("transaction_id", req.TransactionID).
		Int64("invoice_id", req.InvoiceID).
		Msg("Transaction reconciled")

	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"message":     "Transaction reconciled",
		"transaction": txn,
	})
}
