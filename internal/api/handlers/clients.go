package handlers

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-reconciler/internal/api/middleware"
	"github.com/dvloznov/finance-reconciler/internal/domain"
	"github.com/dvloznov/finance-reconciler/internal/store"
)

const defaultTopClients = 5

// ClientsHandler handles client endpoints.
type ClientsHandler struct {
	repo store.Repository
	log  zerolog.Logger
}

// NewClientsHandler creates a new clients handler.
func NewClientsHandler(repo store.Repository, log zerolog.Logger) *ClientsHandler {
	return &ClientsHandler{repo: repo, log: log}
}

// List handles GET /api/clients
func (h *ClientsHandler) List(w http.ResponseWriter, r *http.Request) {
	clients, err := h.repo.ListClients(r.Context())
	if err != nil {
		middleware.WriteDomainError(w, requestLogger(r, h.log), err, "Failed to list clients")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"clients": clients,
		"count":   len(clients),
	})
}

type createClientRequest struct {
	Name    string  `json:"name"`
	Email   *string `json:"email"`
	Phone   *string `json:"phone"`
	Address *string `json:"address"`
}

// Create handles POST /api/clients
func (h *ClientsHandler) Create(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(r, h.log)

	var req createClientRequest
	if err := decodeJSON(w, r, &req); err != nil {
		middleware.WriteDomainError(w, log, err, "Invalid request body")
		return
	}
	c := &domain.Client{Name: req.Name, Email: req.Email, Phone: req.Phone, Address: req.Address}
	if err := h.repo.CreateClient(r.Context(), c); err != nil {
		middleware.WriteDomainError(w, log, err, "Failed to create client")
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, c)
}

// Get handles GET /api/clients/{id}
func (h *ClientsHandler) Get(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(r, h.log)
	id, err := pathID(r, "id")
	if err != nil {
		middleware.WriteDomainError(w, log, err, "Invalid client id")
		return
	}
	c, err := h.repo.GetClient(r.Context(), id)
	if err != nil {
		middleware.WriteDomainError(w, log, err, "Failed to get client")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, c)
}

// Update handles PATCH /api/clients/{id}
func (h *ClientsHandler) Update(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(r, h.log)
	id, err := pathID(r, "id")
	if err != nil {
		middleware.WriteDomainError(w, log, err, "Invalid client id")
		return
	}
	var patch domain.ClientPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		middleware.WriteDomainError(w, log, err, "Invalid request body")
		return
	}
	c, err := h.repo.UpdateClient(r.Context(), id, patch)
	if err != nil {
		middleware.WriteDomainError(w, log, err, "Failed to update client")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, c)
}

// Top handles GET /api/clients/top
func (h *ClientsHandler) Top(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(r, h.log)
	limit, err := queryInt(r, "limit", defaultTopClients)
	if err != nil {
		middleware.WriteDomainError(w, log, err, "Invalid limit")
		return
	}
	rows, err := h.repo.TopClients(r.Context(), limit)
	if err != nil {
		middleware.WriteDomainError(w, log, err, "Failed to load top clients")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"clients": rows,
		"count":   len(rows),
	})
}
