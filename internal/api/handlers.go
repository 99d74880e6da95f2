package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"mediaferry/internal/logging"
	"mediaferry/internal/services"
)

// Handlers serves the task manager endpoints.
type Handlers struct {
	manager *TaskManager
	logger  *slog.Logger
}

// NewHandlers wraps a TaskManager for HTTP.
func NewHandlers(manager *TaskManager, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handlers{manager: manager, logger: logging.NewComponentLogger(logger, "api-server")}
}

// Mount registers the task manager routes on r.
func (h *Handlers) Mount(r chi.Router) {
	r.Get("/taskmanager", h.handleView)
	r.Get("/taskmanager/task/{id}", h.handleGetTask)
	r.Delete("/taskmanager/task/{id}", h.handleCancelTask)
	r.Post("/taskmanager/task/{id}", h.handleStartTask)
	r.Delete("/taskmanager/completed", h.handleClearCompleted)
	r.Delete("/taskmanager/socket/{id}", h.handleKickSocket)
}

func (h *Handlers) handleView(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	fields, err := ParseFields(query.Get("fields"))
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	statuses, err := ParseStatuses(query["status"])
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	view, err := h.manager.View(r.Context(), fields, statuses...)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	WriteJSON(w, h.logger, http.StatusOK, view)
}

func (h *Handlers) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id, ok := h.taskID(w, r)
	if !ok {
		return
	}
	task, err := h.manager.GetTask(r.Context(), id)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	WriteJSON(w, h.logger, http.StatusOK, TaskResponse{Task: task})
}

func (h *Handlers) handleCancelTask(w http.ResponseWriter, r *http.Request) {
	id, ok := h.taskID(w, r)
	if !ok {
		return
	}
	if err := h.manager.CancelTask(r.Context(), id); err != nil {
		h.writeFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) handleStartTask(w http.ResponseWriter, r *http.Request) {
	id, ok := h.taskID(w, r)
	if !ok {
		return
	}
	task, err := h.manager.StartTask(r.Context(), id)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	WriteJSON(w, h.logger, http.StatusOK, TaskResponse{Task: task})
}

func (h *Handlers) handleClearCompleted(w http.ResponseWriter, r *http.Request) {
	removed, err := h.manager.ClearCompleted(r.Context())
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	WriteJSON(w, h.logger, http.StatusOK, ClearResponse{Removed: removed})
}

func (h *Handlers) handleKickSocket(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.KickSocket(chi.URLParam(r, "id")); err != nil {
		h.writeFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) taskID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		WriteError(w, h.logger, http.StatusBadRequest, "invalid task id")
		return 0, false
	}
	return id, true
}

func (h *Handlers) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusCode(err)
	if status >= http.StatusInternalServerError {
		logging.ErrorWithContext(logging.WithContext(r.Context(), h.logger), "admin request failed", "api_request_failed",
			logging.String("path", r.URL.Path),
			logging.Error(err),
		)
	}
	WriteError(w, h.logger, status, err.Error())
}

// StatusCode maps an error to its HTTP status.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, services.ErrTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// WriteJSON encodes payload as the response body.
func WriteJSON(w http.ResponseWriter, logger *slog.Logger, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil && logger != nil {
		logger.Error("failed to encode response", logging.Error(err))
	}
}

// WriteError replies with an ErrorResponse.
func WriteError(w http.ResponseWriter, logger *slog.Logger, status int, message string) {
	WriteJSON(w, logger, status, ErrorResponse{Error: message})
}
