package handler

import (
	"net/http"

	"github.com/julienschmidt/httprouter"

	"confdesk/internal/attendance/service"
	apperrors "confdesk/pkg/errors"
	httputil "confdesk/pkg/http"
	"confdesk/pkg/logger"
	"confdesk/pkg/model"
)

type AttendanceHandler struct {
	issuer   service.CredentialIssuer
	verifier service.CredentialVerifier
	log      *logger.Logger
}

func NewAttendanceHandler(issuer service.CredentialIssuer, verifier service.CredentialVerifier, log *logger.Logger) *AttendanceHandler {
	return &AttendanceHandler{
		issuer:   issuer,
		verifier: verifier,
		log:      log,
	}
}

type issueRequest struct {
	SessionID  string `json:"session_id"`
	TTLMinutes int    `json:"ttl_minutes,omitempty"`
}

type issueBulkRequest struct {
	SessionIDs []string `json:"session_ids"`
	TTLMinutes int      `json:"ttl_minutes,omitempty"`
}

func (h *AttendanceHandler) Issue(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req issueRequest
	if err := httputil.DecodeStrict(r, &req); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Issue", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	cred, err := h.issuer.Issue(r.Context(), req.SessionID, req.TTLMinutes)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Issue", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteCreated(w, cred); err != nil {
		h.log.Error("failed to write created response", "handler", "Issue", "operation", "WriteCreated", "error", err)
	}
}

type bulkCredentialResponse struct {
	SessionID  string                  `json:"session_id"`
	Credential *model.IssuedCredential `json:"credential,omitempty"`
	Error      *bulkCredentialError    `json:"error,omitempty"`
}

type bulkCredentialError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (h *AttendanceHandler) IssueBulk(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req issueBulkRequest
	if err := httputil.DecodeStrict(r, &req); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "IssueBulk", "operation", "WriteError", "error", writeErr)
		}
		return
	}
	if len(req.SessionIDs) == 0 {
		if writeErr := httputil.WriteError(w, apperrors.InvalidInput("session_ids cannot be empty")); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "IssueBulk", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	results := h.issuer.IssueBulk(r.Context(), req.SessionIDs, req.TTLMinutes)

	response := make([]bulkCredentialResponse, 0, len(results))
	for _, res := range results {
		entry := bulkCredentialResponse{SessionID: res.SessionID, Credential: res.Credential}
		if res.Err != nil {
			appErr := apperrors.AsAppError(res.Err)
			entry.Credential = nil
			entry.Error = &bulkCredentialError{
				Code:    appErr.Code,
				Message: appErr.Message,
				Details: appErr.Details,
			}
		}
		response = append(response, entry)
	}

	if err := httputil.WriteSuccess(w, response); err != nil {
		h.log.Error("failed to write success response", "handler", "IssueBulk", "operation", "WriteSuccess", "error", err)
	}
}

func (h *AttendanceHandler) Verify(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req service.CheckInRequest
	if err := httputil.DecodeStrict(r, &req); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Verify", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	result, err := h.verifier.VerifyAndCheckIn(r.Context(), &req)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Verify", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, result); err != nil {
		h.log.Error("failed to write success response", "handler", "Verify", "operation", "WriteSuccess", "error", err)
	}
}

func (h *AttendanceHandler) ManualCheckIn(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req service.ManualCheckInRequest
	if err := httputil.DecodeStrict(r, &req); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "ManualCheckIn", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	result, err := h.verifier.ManualCheckIn(r.Context(), &req)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "ManualCheckIn", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, result); err != nil {
		h.log.Error("failed to write success response", "handler", "ManualCheckIn", "operation", "WriteSuccess", "error", err)
	}
}

func (h *AttendanceHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/credentials", h.Issue)
	router.POST("/api/v1/credentials/bulk", h.IssueBulk)
	router.POST("/api/v1/credentials/verify", h.Verify)
	router.POST("/api/v1/checkins/manual", h.ManualCheckIn)
}
