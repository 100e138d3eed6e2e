package handlers

import (
	"encoding/json"
	"errors"
	"hacker-kid/internal/app"
	"hacker-kid/internal/auth"
	"hacker-kid/internal/logger"
	"hacker-kid/internal/metrics"
	"hacker-kid/internal/repository/db"
	"hacker-kid/pkg/validation"
	"net/http"

	"github.com/sirupsen/logrus"
)

// FetchResponse is the GET /api/session body
type FetchResponse struct {
	Found bool   `json:"found"`
	Data  string `json:"data,omitempty"`
}

// SaveRequest is the POST /api/session body. Data is the serialized session.
type SaveRequest struct {
	Username string `json:"username"`
	Data     string `json:"data"`
}

type SaveResponse struct {
	Success bool `json:"success"`
}

// SessionHandlers serves the remote session store
type SessionHandlers struct {
	config        *app.Config
	validator     *validation.AuthRequestValidator
	chatValidator *validation.ChatRequestValidator
}

// NewSessionHandlers creates SessionHandlers
func NewSessionHandlers(config *app.Config) *SessionHandlers {
	return &SessionHandlers{
		config:        config,
		validator:     validation.NewAuthRequestValidator(),
		chatValidator: validation.NewChatRequestValidator(),
	}
}

// GetSessionHandler returns the stored session of ?username=
func (h *SessionHandlers) GetSessionHandler(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	if err := h.validator.ValidateUsername(username); err != nil {
		metrics.ObserveRequest(metrics.OperationFetch, metrics.ResultBadRequest)
		sendError(w, http.StatusBadRequest, "Invalid username", err)
		return
	}
	if !h.authorized(w, r, username, metrics.OperationFetch) {
		return
	}

	stored, err := h.config.DB.GetSession(r.Context(), username)
	if errors.Is(err, db.ErrNotFound) {
		metrics.ObserveRequest(metrics.OperationFetch, metrics.ResultNotFound)
		sendJSON(w, http.StatusOK, FetchResponse{Found: false})
		return
	}
	if err != nil {
		logger.Log.WithError(err).WithField("username", username).Error("Failed to read session")
		metrics.ObserveRequest(metrics.OperationFetch, metrics.ResultError)
		sendError(w, http.StatusInternalServerError, "Failed to read session", nil)
		return
	}

	metrics.ObserveRequest(metrics.OperationFetch, metrics.ResultOK)
	sendJSON(w, http.StatusOK, FetchResponse{Found: true, Data: stored.SessionData})
}

// SaveSessionHandler replaces the stored session of the posted username
func (h *SessionHandlers) SaveSessionHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, validation.MaxSessionBytes+4096)

	var req SaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		metrics.ObserveRequest(metrics.OperationSave, metrics.ResultBadRequest)
		sendError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if req.Username == "" || req.Data == "" {
		metrics.ObserveRequest(metrics.OperationSave, metrics.ResultBadRequest)
		http.Error(w, "Missing username or data", http.StatusBadRequest)
		return
	}
	if err := h.validator.ValidateUsername(req.Username); err != nil {
		metrics.ObserveRequest(metrics.OperationSave, metrics.ResultBadRequest)
		sendError(w, http.StatusBadRequest, "Invalid username", err)
		return
	}
	if err := h.chatValidator.ValidateSessionPayload(req.Data); err != nil {
		metrics.ObserveRequest(metrics.OperationSave, metrics.ResultBadRequest)
		sendError(w, http.StatusBadRequest, "Invalid session data", err)
		return
	}
	if !h.authorized(w, r, req.Username, metrics.OperationSave) {
		return
	}

	stored, err := h.config.DB.UpsertSession(r.Context(), req.Username, req.Data)
	if err != nil {
		logger.Log.WithError(err).WithField("username", req.Username).Error("Failed to save session")
		metrics.ObserveRequest(metrics.OperationSave, metrics.ResultError)
		sendError(w, http.StatusInternalServerError, "Failed to save session", nil)
		return
	}

	metrics.ObserveRequest(metrics.OperationSave, metrics.ResultOK)
	metrics.ObservePayload(len(req.Data))
	logger.Log.WithFields(logrus.Fields{
		"username":   req.Username,
		"bytes":      len(req.Data),
		"updated_at": stored.UpdatedAt,
	}).Info("Session saved")

	sendJSON(w, http.StatusOK, SaveResponse{Success: true})
}

// authorized checks that the token owner matches username when
// authentication is enabled
func (h *SessionHandlers) authorized(w http.ResponseWriter, r *http.Request, username, operation string) bool {
	if !h.config.Tokens.Enabled() {
		return true
	}

	tokenUser, ok := auth.UsernameFromContext(r.Context())
	if !ok {
		metrics.ObserveRequest(operation, metrics.ResultUnauthorized)
		sendError(w, http.StatusUnauthorized, "Authentication required", nil)
		return false
	}
	if tokenUser != username {
		logger.Log.WithFields(logrus.Fields{
			"token_user": tokenUser,
			"username":   username,
		}).Warn("Rejected access to another user's session")
		metrics.ObserveRequest(operation, metrics.ResultForbidden)
		sendError(w, http.StatusForbidden, "Access denied", nil)
		return false
	}
	return true
}
