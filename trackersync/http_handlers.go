// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package trackersync

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"
)

// ClientAuthenticator extracts the client identity from HTTP requests.
// Implementations should validate auth (e.g., JWT) and provide the identifier.
type ClientAuthenticator interface {
	GetClientID(r *http.Request) (string, error)
}

// HTTPSyncHandlers provides HTTP handlers for the journal sync API
type HTTPSyncHandlers struct {
	service       *SyncService
	authenticator ClientAuthenticator
	logger        *slog.Logger
}

// NewHTTPSyncHandlers creates a new instance of sync handlers
func NewHTTPSyncHandlers(service *SyncService, authenticator ClientAuthenticator, logger *slog.Logger) *HTTPSyncHandlers {
	return &HTTPSyncHandlers{
		service:       service,
		authenticator: authenticator,
		logger:        logger,
	}
}

// HandlePush processes batch updates with per-record conflict detection
func (h *HTTPSyncHandlers) HandlePush(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Only POST method is allowed")
		return
	}

	clientID, err := h.authenticator.GetClientID(r)
	if err != nil {
		h.writeError(w, http.StatusUnauthorized, "authentication_failed", err.Error())
		return
	}

	var pushReq PushRequest
	if err := json.NewDecoder(r.Body).Decode(&pushReq); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Failed to parse push request")
		return
	}

	response, err := h.service.ProcessPush(r.Context(), clientID, &pushReq)
	if err != nil {
		if errors.Is(err, ErrBadPayload) || errors.Is(err, ErrBatchTooLarge) {
			h.writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
		h.logger.Error("Failed to process push", "error", err, "client_id", clientID)
		h.writeError(w, http.StatusInternalServerError, "push_failed", "Failed to process push")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err = json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("Failed to encode push response", "error", err, "client_id", clientID)
	}
}

// HandleFullSnapshot serves a complete dump for client bootstrap or recovery
func (h *HTTPSyncHandlers) HandleFullSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Only GET method is allowed")
		return
	}

	clientID, err := h.authenticator.GetClientID(r)
	if err != nil {
		h.writeError(w, http.StatusUnauthorized, "authentication_failed", err.Error())
		return
	}

	response, err := h.service.FullSnapshot(r.Context(), clientID)
	if err != nil {
		h.logger.Error("Failed to build full snapshot", "error", err, "client_id", clientID)
		h.writeError(w, http.StatusInternalServerError, "snapshot_failed", "Failed to build snapshot")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err = json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("Failed to encode snapshot response", "error", err, "client_id", clientID)
	}
}

// HandleDeltaSnapshot serves records changed after the client's since cutoff
func (h *HTTPSyncHandlers) HandleDeltaSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Only GET method is allowed")
		return
	}

	clientID, err := h.authenticator.GetClientID(r)
	if err != nil {
		h.writeError(w, http.StatusUnauthorized, "authentication_failed", err.Error())
		return
	}

	var since *time.Time
	if sinceStr := r.URL.Query().Get("since"); sinceStr != "" {
		parsed, err := time.Parse(time.RFC3339, sinceStr)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid_request", "since must be an RFC 3339 timestamp")
			return
		}
		since = &parsed
	}

	response, err := h.service.DeltaSnapshot(r.Context(), clientID, since)
	if err != nil {
		h.logger.Error("Failed to build delta snapshot", "error", err, "client_id", clientID)
		h.writeError(w, http.StatusInternalServerError, "snapshot_failed", "Failed to build snapshot")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err = json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("Failed to encode delta response", "error", err, "client_id", clientID)
	}
}

// HandleStatus returns the global sync watermark
func (h *HTTPSyncHandlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Only GET method is allowed")
		return
	}

	response, err := h.service.GetSyncStatus(r.Context())
	if err != nil {
		h.logger.Error("Failed to read sync status", "error", err)
		h.writeError(w, http.StatusInternalServerError, "status_failed", "Failed to read sync status")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// HandleRegister registers or renames the authenticated client
func (h *HTTPSyncHandlers) HandleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Only POST method is allowed")
		return
	}

	clientID, err := h.authenticator.GetClientID(r)
	if err != nil {
		h.writeError(w, http.StatusUnauthorized, "authentication_failed", err.Error())
		return
	}

	var req RegisterRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid_request", "Failed to parse register request")
			return
		}
	}

	if err := h.service.RegisterClient(r.Context(), clientID, req.ClientName); err != nil {
		h.logger.Error("Failed to register client", "error", err, "client_id", clientID)
		h.writeError(w, http.StatusInternalServerError, "register_failed", "Failed to register client")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"clientId": clientID})
}

// HandleListConflicts lists the authenticated client's open conflicts
func (h *HTTPSyncHandlers) HandleListConflicts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Only GET method is allowed")
		return
	}

	clientID, err := h.authenticator.GetClientID(r)
	if err != nil {
		h.writeError(w, http.StatusUnauthorized, "authentication_failed", err.Error())
		return
	}

	conflicts, err := h.service.ListUnresolvedConflicts(r.Context(), clientID)
	if err != nil {
		h.logger.Error("Failed to list conflicts", "error", err, "client_id", clientID)
		h.writeError(w, http.StatusInternalServerError, "list_conflicts_failed", "Failed to list conflicts")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(conflicts)
}

// HandleResolveConflict closes one conflict ledger entry
func (h *HTTPSyncHandlers) HandleResolveConflict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Only POST method is allowed")
		return
	}

	clientID, err := h.authenticator.GetClientID(r)
	if err != nil {
		h.writeError(w, http.StatusUnauthorized, "authentication_failed", err.Error())
		return
	}

	var req ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Failed to parse resolve request")
		return
	}

	err = h.service.ResolveConflict(r.Context(), req.EntityType, req.EntityID, clientID, req.Resolution, req.ClientData)
	if err != nil {
		switch {
		case errors.Is(err, ErrConflictNotFound):
			h.writeError(w, http.StatusNotFound, "conflict_not_found", "No conflict found for this entity")
		case errors.Is(err, ErrConflictResolved):
			h.writeError(w, http.StatusConflict, "conflict_already_resolved", "Conflict has already been resolved")
		case errors.Is(err, ErrUnknownEntityType), errors.Is(err, ErrBadResolution), errors.Is(err, ErrBadPayload):
			h.writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		default:
			h.logger.Error("Failed to resolve conflict", "error", err,
				"client_id", clientID, "entity_type", req.EntityType, "entity_id", req.EntityID)
			h.writeError(w, http.StatusInternalServerError, "resolve_failed", "Failed to resolve conflict")
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"resolved": true})
}

// writeError writes a standardized error response
func (h *HTTPSyncHandlers) writeError(w http.ResponseWriter, statusCode int, errorCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	errorResponse := ErrorResponse{
		Error:   errorCode,
		Message: message,
	}
	json.NewEncoder(w).Encode(errorResponse)

	h.logger.Debug("HTTP error response",
		"status_code", statusCode,
		"error_code", errorCode,
		"message", message)
}
