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

// ConfigHandler handles assistant configuration endpoints. Field bounds are
// enforced here, before anything reaches the store.
type ConfigHandler struct {
	registry *service.RegistryService
	configs  *service.ConfigService
	logger   *logger.Logger
}

// NewConfigHandler creates a new configuration handler.
func NewConfigHandler(registry *service.RegistryService, configs *service.ConfigService, log *logger.Logger) *ConfigHandler {
	return &ConfigHandler{
		registry: registry,
		configs:  configs,
		logger:   log,
	}
}

// Get handles GET /api/v1/assistants/:id/config
// Creates the configuration from the default template on first access.
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	a, err := h.registry.Get(ctx, id)
	if err != nil {
		writeError(w, http.StatusNotFound, "assistant not found")
		return
	}

	cfg, err := h.configs.LoadOrCreate(ctx, a.ID, a.Name)
	if err != nil {
		h.logger.Error("failed to load config", "assistant_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load config")
		return
	}

	writeJSON(w, http.StatusOK, cfg)
}

// Update handles PATCH /api/v1/assistants/:id/config
func (h *ConfigHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	var req model.UpdateConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := validateConfigUpdate(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	cfg, err := h.configs.Update(ctx, id, &req)
	if err != nil {
		h.logger.Error("failed to update config", "assistant_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update config")
		return
	}

	writeJSON(w, http.StatusOK, cfg)
}

// AddFile handles POST /api/v1/assistants/:id/config/files
// Only metadata is recorded; file bytes are never uploaded.
func (h *ConfigHandler) AddFile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	var req model.AddFileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	existing := 0
	if cfg, err := h.configs.Get(ctx, id); err == nil {
		existing = len(cfg.Files)
	}
	if err := middleware.ValidateFile(req.Name, req.Size, existing); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	file, err := h.configs.AddFile(ctx, id, &req)
	if err != nil {
		h.logger.Error("failed to add file", "assistant_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to add file")
		return
	}

	writeJSON(w, http.StatusCreated, file)
}

// RemoveFile handles DELETE /api/v1/assistants/:id/config/files/:fileID
func (h *ConfigHandler) RemoveFile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	fileID := chi.URLParam(r, "fileID")

	if err := h.configs.RemoveFile(ctx, id, fileID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "file not found")
			return
		}
		h.logger.Error("failed to remove file", "assistant_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to remove file")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func validateConfigUpdate(req *model.UpdateConfigRequest) error {
	if req.SystemPrompt != nil {
		if err := middleware.ValidateSystemPrompt(*req.SystemPrompt); err != nil {
			return err
		}
	}
	if req.MaxTokens != nil {
		if err := middleware.ValidateMaxTokens(*req.MaxTokens); err != nil {
			return err
		}
	}
	if req.Temperature != nil {
		if err := middleware.ValidateTemperature(*req.Temperature); err != nil {
			return err
		}
	}
	return nil
}
