package handler

import (
	"net/http"

	"github.com/julienschmidt/httprouter"

	"confdesk/internal/sessions/service"
	apperrors "confdesk/pkg/errors"
	httputil "confdesk/pkg/http"
	"confdesk/pkg/logger"
	"confdesk/pkg/model"
)

type SessionHandler struct {
	service service.SessionService
	log     *logger.Logger
}

func NewSessionHandler(service service.SessionService, log *logger.Logger) *SessionHandler {
	return &SessionHandler{
		service: service,
		log:     log,
	}
}

func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var sess model.Session
	if err := httputil.DecodeStrict(r, &sess); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Create", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := h.service.Create(r.Context(), &sess); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Create", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteCreated(w, sess); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *SessionHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	sess, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetByID", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, sess); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *SessionHandler) GetAll(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetAll", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	sessions, total, err := h.service.GetAll(r.Context(), limit, offset)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetAll", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WritePaginated(w, sessions, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "GetAll", "operation", "WritePaginated", "error", err)
	}
}

func (h *SessionHandler) GetByHall(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	hallID := ps.ByName("hallId")

	sessions, err := h.service.GetByHall(r.Context(), hallID)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetByHall", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, sessions); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByHall", "operation", "WriteSuccess", "error", err)
	}
}

func (h *SessionHandler) Update(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	var updates model.SessionUpdate
	if err := httputil.DecodeStrict(r, &updates); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Update", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	updated, err := h.service.Update(r.Context(), id, &updates)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Update", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, updated); err != nil {
		h.log.Error("failed to write success response", "handler", "Update", "operation", "WriteSuccess", "error", err)
	}
}

// bulkUpdateResponse mirrors the request order: each entry carries either the
// updated session or that item's failure, never both.
type bulkUpdateResponse struct {
	SessionID string           `json:"session_id"`
	Session   *model.Session   `json:"session,omitempty"`
	Error     *bulkUpdateError `json:"error,omitempty"`
}

type bulkUpdateError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (h *SessionHandler) BulkUpdate(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var items []model.SessionBulkUpdate
	if err := httputil.DecodeStrict(r, &items); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "BulkUpdate", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	results := h.service.BulkUpdate(r.Context(), items)

	response := make([]bulkUpdateResponse, 0, len(results))
	for _, res := range results {
		entry := bulkUpdateResponse{SessionID: res.SessionID, Session: res.Session}
		if res.Err != nil {
			appErr := apperrors.AsAppError(res.Err)
			entry.Session = nil
			entry.Error = &bulkUpdateError{
				Code:    appErr.Code,
				Message: appErr.Message,
				Details: appErr.Details,
			}
		}
		response = append(response, entry)
	}

	if err := httputil.WriteSuccess(w, response); err != nil {
		h.log.Error("failed to write success response", "handler", "BulkUpdate", "operation", "WriteSuccess", "error", err)
	}
}

type bulkDeleteRequest struct {
	SessionIDs []string `json:"session_ids"`
}

type bulkDeleteResponse struct {
	SessionID string           `json:"session_id"`
	Deleted   bool             `json:"deleted"`
	Error     *bulkUpdateError `json:"error,omitempty"`
}

func (h *SessionHandler) BulkDelete(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req bulkDeleteRequest
	if err := httputil.DecodeStrict(r, &req); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "BulkDelete", "operation", "WriteError", "error", writeErr)
		}
		return
	}
	if len(req.SessionIDs) == 0 {
		if writeErr := httputil.WriteError(w, apperrors.InvalidInput("session_ids cannot be empty")); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "BulkDelete", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	results := h.service.BulkDelete(r.Context(), req.SessionIDs)

	response := make([]bulkDeleteResponse, 0, len(results))
	for _, res := range results {
		entry := bulkDeleteResponse{SessionID: res.SessionID, Deleted: res.Err == nil}
		if res.Err != nil {
			appErr := apperrors.AsAppError(res.Err)
			entry.Error = &bulkUpdateError{
				Code:    appErr.Code,
				Message: appErr.Message,
				Details: appErr.Details,
			}
		}
		response = append(response, entry)
	}

	if err := httputil.WriteSuccess(w, response); err != nil {
		h.log.Error("failed to write success response", "handler", "BulkDelete", "operation", "WriteSuccess", "error", err)
	}
}

func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	if err := h.service.Delete(r.Context(), id); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Delete", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	httputil.WriteNoContent(w)
}

func (h *SessionHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/sessions", h.Create)
	router.GET("/api/v1/sessions", h.GetAll)
	router.GET("/api/v1/sessions/id/:id", h.GetByID)
	router.PATCH("/api/v1/sessions/id/:id", h.Update)
	router.DELETE("/api/v1/sessions/id/:id", h.Delete)
	router.GET("/api/v1/sessions/hall/:hallId", h.GetByHall)
	router.POST("/api/v1/sessions/bulk", h.BulkUpdate)
	router.POST("/api/v1/sessions/bulk-delete", h.BulkDelete)
}
