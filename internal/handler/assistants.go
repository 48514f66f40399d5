// Package handler provides HTTP handlers for the API.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/assistly/assistant-platform/internal/middleware"
	"github.com/assistly/assistant-platform/internal/model"
	"github.com/assistly/assistant-platform/internal/service"
	"github.com/assistly/assistant-platform/internal/store"
	"github.com/assistly/assistant-platform/pkg/logger"
)

// AssistantHandler handles assistant registry endpoints.
type AssistantHandler struct {
	registry *service.RegistryService
	logger   *logger.Logger
}

// NewAssistantHandler creates a new assistant handler.
func NewAssistantHandler(registry *service.RegistryService, log *logger.Logger) *AssistantHandler {
	return &AssistantHandler{
		registry: registry,
		logger:   log,
	}
}

// Create handles POST /api/v1/assistants
func (h *AssistantHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req model.CreateAssistantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := middleware.ValidateAssistantName(req.Name); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	a, err := h.registry.Create(ctx, &req)
	if err != nil {
		h.logger.Error("failed to create assistant", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create assistant")
		return
	}

	writeJSON(w, http.StatusCreated, a)
}

// List handles GET /api/v1/assistants?q=
func (h *AssistantHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	resp, err := h.registry.List(ctx, r.URL.Query().Get("q"))
	if err != nil {
		h.logger.Error("failed to list assistants", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list assistants")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /api/v1/assistants/:id
func (h *AssistantHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	a, err := h.registry.Get(ctx, id)
	if err != nil {
		writeError(w, http.StatusNotFound, "assistant not found")
		return
	}

	writeJSON(w, http.StatusOK, a)
}

// Update handles PUT /api/v1/assistants/:id
func (h *AssistantHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	var req model.UpdateAssistantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name != nil {
		if err := middleware.ValidateAssistantName(*req.Name); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	a, err := h.registry.Update(ctx, id, &req)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "assistant not found")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, a)
}

// Delete handles DELETE /api/v1/assistants/:id
// The assistant's configuration record is removed together with it.
func (h *AssistantHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	if err := h.registry.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "assistant not found")
			return
		}
		h.logger.Error("failed to delete assistant", "assistant_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete assistant")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetState handles GET /api/v1/assistants/state
func (h *AssistantHandler) GetState(w http.ResponseWriter, r *http.Request) {
	state, err := h.registry.State(r.Context())
	if err != nil {
		h.logger.Error("failed to load registry state", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load registry state")
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// SetActive handles PUT /api/v1/assistants/active
func (h *AssistantHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req model.SetActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.registry.SetActive(ctx, req.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "assistant not found")
			return
		}
		h.logger.Error("failed to set active assistant", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to set active assistant")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SetSearch handles PUT /api/v1/assistants/search
func (h *AssistantHandler) SetSearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req struct {
		Query string `json:"query"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.registry.SetSearchQuery(ctx, req.Query); err != nil {
		h.logger.Error("failed to set search query", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to set search query")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
