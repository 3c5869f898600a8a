// Package api wires the HTTP handlers into a router.
package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-reconciler/internal/api/handlers"
	"github.com/dvloznov/finance-reconciler/internal/api/middleware"
	"github.com/dvloznov/finance-reconciler/internal/jobs"
	"github.com/dvloznov/finance-reconciler/internal/store"
)

// Dependencies are the collaborators the handlers need. Archiver may be nil.
type Dependencies struct {
	Repo          store.Repository
	Publisher     jobs.Publisher
	Jobs          jobs.JobStore
	Reconciler    handlers.Reconciler
	Archiver      handlers.Archiver
	MaxUploadSize int64
	Log           zerolog.Logger
}

// NewRouter registers every API route.
func NewRouter(d Dependencies) *mux.Router {
	documents := handlers.NewDocumentsHandler(d.Repo, d.Publisher, d.Archiver, d.MaxUploadSize, d.Log)
	invoices := handlers.NewInvoicesHandler(d.Repo, d.Log)
	statements := handlers.NewStatementsHandler(d.Repo, d.Log)
	reconciliation := handlers.NewReconciliationHandler(d.Reconciler, d.Log)
	clients := handlers.NewClientsHandler(d.Repo, d.Log)
	stats := handlers.NewStatsHandler(d.Repo, d.Log)
	jobsHandler := handlers.NewJobsHandler(d.Jobs, d.Log)

	router := mux.NewRouter()
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusNotFound, "Not found")
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	api := router.PathPrefix("/api").Subrouter()

	// Documents endpoints
	api.HandleFunc("/documents/upload", documents.Upload).Methods(http.MethodPost)
	api.HandleFunc("/documents/recent", documents.Recent).Methods(http.MethodGet)
	api.HandleFunc("/documents/{id:[0-9]+}", documents.Get).Methods(http.MethodGet)

	// Invoices endpoints
	api.HandleFunc("/invoices", invoices.List).Methods(http.MethodGet)
	api.HandleFunc("/invoices/{id:[0-9]+}", invoices.Get).Methods(http.MethodGet)
	api.HandleFunc("/invoices/{id:[0-9]+}", invoices.Update).Methods(http.MethodPatch)

	// Bank statements endpoints
	api.HandleFunc("/bank-statements", statements.List).Methods(http.MethodGet)
	api.HandleFunc("/bank-statements/{id:[0-9]+}", statements.Get).Methods(http.MethodGet)

	// Reconciliation endpoints
	api.HandleFunc("/reconciliation/unreconciled", reconciliation.Unreconciled).Methods(http.MethodGet)
	api.HandleFunc("/reconciliation/suggestions/{transactionId:[0-9]+}", reconciliation.Suggestions).Methods(http.MethodGet)
	api.HandleFunc("/reconciliation/match", reconciliation.Match).Methods(http.MethodPost)

	// Clients endpoints
	api.HandleFunc("/clients", clients.List).Methods(http.MethodGet)
	api.HandleFunc("/clients", clients.Create).Methods(http.MethodPost)
	api.HandleFunc("/clients/top", clients.Top).Methods(http.MethodGet)
	api.HandleFunc("/clients/{id:[0-9]+}", clients.Get).Methods(http.MethodGet)
	api.HandleFunc("/clients/{id:[0-9]+}", clients.Update).Methods(http.MethodPatch)

	api.HandleFunc("/stats", stats.Get).Methods(http.MethodGet)

	// Jobs endpoints
	api.HandleFunc("/jobs", jobsHandler.List).Methods(http.MethodGet)
	api.HandleFunc("/jobs/{id}", jobsHandler.Get).Methods(http.MethodGet)

	// Health check endpoint
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	}).Methods(http.MethodGet)

	return router
}

// NewHandler is NewRouter wrapped in the middleware chain.
func NewHandler(d Dependencies) http.Handler {
	return middleware.Recovery(d.Log)(
		middleware.RequestID(
			middleware.Logger(d.Log)(
				middleware.CORS(NewRouter(d)),
			),
		),
	)
}
