package handlers

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-reconciler/internal/api/middleware"
	"github.com/dvloznov/finance-reconciler/internal/domain"
	"github.com/dvloznov/finance-reconciler/internal/store"
)

// StatementsHandler handles bank statement endpoints.
type StatementsHandler struct {
	statements store.StatementStore
	log        zerolog.Logger
}

// NewStatementsHandler creates a new bank statements handler.
func NewStatementsHandler(statements store.StatementStore, log zerolog.Logger) *StatementsHandler {
	return &StatementsHandler{statements: statements, log: log}
}

// List handles GET /api/bank-statements
func (h *StatementsHandler) List(w http.ResponseWriter, r *http.Request) {
	stmts, err := h.statements.ListBankStatements(r.Context())
	if err != nil {
		middleware.WriteDomainError(w, requestLogger(r, h.log), err, "Failed to list bank statements")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"bankStatements": stmts,
		"count":          len(stmts),
	})
}

// Get handles GET /api/bank-statements/{id}
func (h *StatementsHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := requestLogger(r, h.log)

	id, err := pathID(r, "id")
	if err != nil {
		middleware.WriteDomainError(w, log, err, "Invalid bank statement id")
		return
	}
	stmt, err := h.statements.GetBankStatement(ctx, id)
	if err != nil {
		middleware.WriteDomainError(w, log, err, "Failed to get bank statement")
		return
	}
	txns, err := h.statements.ListBankTransactions(ctx, id)
	if err != nil {
		middleware.WriteDomainError(w, log, err, "Failed to list bank transactions")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, &domain.StatementDetail{BankStatement: *stmt, Transactions: txns})
}
