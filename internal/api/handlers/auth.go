package handlers

import (
	"encoding/json"
	"errors"
	"hacker-kid/internal/app"
	"hacker-kid/internal/logger"
	"hacker-kid/internal/metrics"
	"hacker-kid/internal/repository/db"
	"hacker-kid/internal/repository/postgres"
	"hacker-kid/pkg/validation"
	"net/http"
)

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse carries the bearer token. Token is empty when the server
// runs without authentication.
type LoginResponse struct {
	Token string `json:"token"`
}

// AuthHandlers serves credential checks
type AuthHandlers struct {
	config    *app.Config
	validator *validation.AuthRequestValidator
}

// NewAuthHandlers creates AuthHandlers
func NewAuthHandlers(config *app.Config) *AuthHandlers {
	return &AuthHandlers{
		config:    config,
		validator: validation.NewAuthRequestValidator(),
	}
}

// LoginHandler checks credentials against the seeded users and returns a token
func (h *AuthHandlers) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		metrics.ObserveRequest(metrics.OperationLogin, metrics.ResultBadRequest)
		sendError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.validator.ValidateLoginRequest(req.Username, req.Password); err != nil {
		metrics.ObserveRequest(metrics.OperationLogin, metrics.ResultBadRequest)
		sendError(w, http.StatusBadRequest, "Username and password are required", err)
		return
	}

	user, err := h.config.DB.GetUserByUsername(r.Context(), req.Username)
	if err != nil {
		if !errors.Is(err, db.ErrNotFound) {
			logger.Log.WithError(err).Error("Failed to look up user")
			metrics.ObserveRequest(metrics.OperationLogin, metrics.ResultError)
			sendError(w, http.StatusInternalServerError, "Failed to look up user", nil)
			return
		}
		logger.Log.WithField("username", req.Username).Warn("Login failed: user not found")
		metrics.ObserveRequest(metrics.OperationLogin, metrics.ResultUnauthorized)
		sendError(w, http.StatusUnauthorized, "Invalid credentials", nil)
		return
	}

	if !postgres.VerifyPassword(user, req.Password) {
		logger.Log.WithField("username", req.Username).Warn("Login failed: invalid password")
		metrics.ObserveRequest(metrics.OperationLogin, metrics.ResultUnauthorized)
		sendError(w, http.StatusUnauthorized, "Invalid credentials", nil)
		return
	}

	var token string
	if h.config.Tokens.Enabled() {
		token, err = h.config.Tokens.GenerateToken(user.Username)
		if err != nil {
			logger.Log.WithError(err).Error("Failed to generate token")
			metrics.ObserveRequest(metrics.OperationLogin, metrics.ResultError)
			sendError(w, http.StatusInternalServerError, "Error generating token", nil)
			return
		}
	}

	metrics.ObserveRequest(metrics.OperationLogin, metrics.ResultOK)
	logger.Log.WithField("username", user.Username).Info("User logged in successfully")
	sendJSON(w, http.StatusOK, LoginResponse{Token: token})
}
