package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/assistly/assistant-platform/internal/middleware"
	"github.com/assistly/assistant-platform/internal/model"
	"github.com/assistly/assistant-platform/internal/service"
	"github.com/assistly/assistant-platform/internal/store"
	"github.com/assistly/assistant-platform/pkg/logger"
	"github.com/assistly/assistant-platform/pkg/metrics"
)

// TestChatHandler handles test dialog endpoints, including the SSE event
// stream that mirrors the dialog's live updates.
type TestChatHandler struct {
	testChat *service.TestChatService
	sessions *service.SessionService
	logger   *logger.Logger
}

// NewTestChatHandler creates a new test chat handler.
func NewTestChatHandler(testChat *service.TestChatService, sessions *service.SessionService, log *logger.Logger) *TestChatHandler {
	return &TestChatHandler{
		testChat: testChat,
		sessions: sessions,
		logger:   log,
	}
}

// Open handles POST /api/v1/test-dialogs
func (h *TestChatHandler) Open(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req model.OpenDialogRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	snap, err := h.testChat.OpenDialog(ctx, req.AssistantID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "assistant not found")
			return
		}
		h.logger.Error("failed to open dialog", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to open dialog")
		return
	}

	writeJSON(w, http.StatusCreated, snap)
}

// Get handles GET /api/v1/test-dialogs/:id
func (h *TestChatHandler) Get(w http.ResponseWriter, r *http.Request) {
	snap, err := h.testChat.Snapshot(chi.URLParam(r, "id"))
	if err != nil {
		writeWorkflowError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// Close handles DELETE /api/v1/test-dialogs/:id
func (h *TestChatHandler) Close(w http.ResponseWriter, r *http.Request) {
	if err := h.testChat.CloseDialog(chi.URLParam(r, "id")); err != nil {
		writeWorkflowError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetPermission handles POST /api/v1/test-dialogs/:id/permission
func (h *TestChatHandler) SetPermission(w http.ResponseWriter, r *http.Request) {
	var req model.SetPermissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	snap, err := h.testChat.SetPermission(chi.URLParam(r, "id"), req.Granted)
	if err != nil {
		writeWorkflowError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// StartRecording handles POST /api/v1/test-dialogs/:id/recording/start
func (h *TestChatHandler) StartRecording(w http.ResponseWriter, r *http.Request) {
	snap, err := h.testChat.StartRecording(chi.URLParam(r, "id"))
	if err != nil {
		writeWorkflowError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// StopRecording handles POST /api/v1/test-dialogs/:id/recording/stop
func (h *TestChatHandler) StopRecording(w http.ResponseWriter, r *http.Request) {
	var req model.StopRecordingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	snap, err := h.testChat.StopRecording(r.Context(), chi.URLParam(r, "id"), req.AudioDataURI)
	if err != nil {
		writeWorkflowError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// Send handles POST /api/v1/test-dialogs/:id/messages
func (h *TestChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req model.SendTurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateTurnContent(req.Content); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	snap, err := h.testChat.SendText(r.Context(), chi.URLParam(r, "id"), req.Content)
	if err != nil {
		writeWorkflowError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// FinishPlayback handles POST /api/v1/test-dialogs/:id/playback/done
func (h *TestChatHandler) FinishPlayback(w http.ResponseWriter, r *http.Request) {
	snap, err := h.testChat.FinishPlayback(chi.URLParam(r, "id"))
	if err != nil {
		writeWorkflowError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// SaveTranscript handles POST /api/v1/test-dialogs/:id/save
// Snapshots the dialog transcript into a persisted chat session.
func (h *TestChatHandler) SaveTranscript(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sess, err := h.testChat.SaveTranscript(ctx, h.sessions, chi.URLParam(r, "id"), middleware.GetUserID(ctx))
	if err != nil {
		writeWorkflowError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

// Events handles GET /api/v1/test-dialogs/:id/events
// Streams dialog events over SSE until the client disconnects or the
// dialog closes.
func (h *TestChatHandler) Events(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	dialogID := chi.URLParam(r, "id")

	events, cancel, err := h.testChat.Subscribe(dialogID)
	if err != nil {
		writeWorkflowError(w, err)
		return
	}
	defer cancel()

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	metrics.IncrementSSEConnections()
	defer metrics.DecrementSSEConnections()

	// Send the current snapshot first so late subscribers catch up.
	snap, err := h.testChat.Snapshot(dialogID)
	if err != nil {
		writeWorkflowError(w, err)
		return
	}
	sendSSEEvent(w, flusher, "snapshot", snap)

	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			sendSSEEvent(w, flusher, "heartbeat", map[string]string{
				"timestamp": time.Now().Format(time.RFC3339),
			})
		case event, open := <-events:
			if !open {
				return
			}
			sendSSEEvent(w, flusher, string(event.Type), event)
			if event.Type == model.EventDialogClosed {
				return
			}
		}
	}
}

// sendSSEEvent writes one SSE event and flushes it.
func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, data interface{}) {
	payload, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
	flusher.Flush()
}

// writeWorkflowError maps workflow sentinel errors onto HTTP statuses.
func writeWorkflowError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrDialogNotFound), errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrDialogBusy), errors.Is(err, service.ErrNotRecording):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrMicrophoneDenied), errors.Is(err, service.ErrPermissionRequired):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrDialogClosed):
		writeError(w, http.StatusGone, err.Error())
	case errors.Is(err, service.ErrRecordingUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusBadRequest, err.Error())
	}
}
