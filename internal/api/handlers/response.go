package handlers

import (
	"encoding/json"
	"hacker-kid/internal/logger"
	"net/http"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// sendJSON writes v with the given status
func sendJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.WithError(err).Warn("Failed to write response")
	}
}

// sendError sends a standardized JSON error response. The error field
// carries err for client errors and message otherwise.
func sendError(w http.ResponseWriter, status int, message string, err error) {
	errResp := ErrorResponse{
		Error:   message,
		Code:    status,
		Message: message,
	}
	if err != nil && status < http.StatusInternalServerError {
		errResp.Error = err.Error()
	}
	sendJSON(w, status, errResp)
}
