package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hacker-kid/internal/config"
	"hacker-kid/internal/logger"
	"hacker-kid/internal/repository/db"
	"hacker-kid/pkg/validation"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

// UserContextKey holds the authenticated username in the request context
const UserContextKey contextKey = "user"

// ErrAuthDisabled is returned by GenerateToken when no secret is configured
var ErrAuthDisabled = errors.New("token authentication is disabled")

type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// sendError sends a standardized JSON error response
func sendError(w http.ResponseWriter, status int, message string, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	errResp := ErrorResponse{
		Code:    status,
		Message: message,
	}
	if err != nil {
		errResp.Error = err.Error()
	} else {
		errResp.Error = message
	}
	json.NewEncoder(w).Encode(errResp)
}

// TokenIssuer signs and verifies HS256 session tokens
type TokenIssuer struct {
	secret     []byte
	expiration time.Duration
	nowFunc    func() time.Time
}

// NewTokenIssuer creates a TokenIssuer from the auth configuration
func NewTokenIssuer(cfg config.AuthConfig) *TokenIssuer {
	return &TokenIssuer{
		secret:     cfg.JWTSecret,
		expiration: cfg.TokenExpiration,
		nowFunc:    time.Now,
	}
}

// Enabled reports whether tokens are issued and required
func (t *TokenIssuer) Enabled() bool {
	return len(t.secret) > 0
}

// GenerateToken signs a token for username
func (t *TokenIssuer) GenerateToken(username string) (string, error) {
	if !t.Enabled() {
		return "", ErrAuthDisabled
	}

	now := t.nowFunc()
	claims := Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			ExpiresAt: jwt.NewNumericDate(now.Add(t.expiration)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// ValidateToken parses tokenString and returns its claims
func (t *TokenIssuer) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(t.nowFunc))
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, jwt.ErrSignatureInvalid
}

// Middleware rejects requests without a valid bearer token and stores the
// token's username in the request context. It passes everything through
// when the issuer is disabled.
func (t *TokenIssuer) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !t.Enabled() {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			sendError(w, http.StatusUnauthorized, "Authorization header required", nil)
			return
		}

		tokenString, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || tokenString == "" {
			sendError(w, http.StatusUnauthorized, "Invalid authorization header format", nil)
			return
		}

		claims, err := t.ValidateToken(tokenString)
		if err != nil {
			logger.Log.WithError(err).Warn("Rejected session request with invalid token")
			sendError(w, http.StatusUnauthorized, "Invalid or expired token", nil)
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, claims.Username)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UsernameFromContext returns the username set by Middleware
func UsernameFromContext(ctx context.Context) (string, bool) {
	username, ok := ctx.Value(UserContextKey).(string)
	return username, ok && username != ""
}

// ParseUsers parses the AUTH_USERS format "user:pass,user2:pass2".
// Blank entries are skipped; the password may itself contain colons.
func ParseUsers(raw string) ([]db.Credential, error) {
	validator := validation.NewAuthRequestValidator()
	seen := make(map[string]bool)
	var credentials []db.Credential

	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		username, password, ok := strings.Cut(entry, ":")
		if !ok {
			return nil, fmt.Errorf("invalid AUTH_USERS entry %q: expected user:password", entry)
		}
		if err := validator.ValidateUsername(username); err != nil {
			return nil, fmt.Errorf("invalid AUTH_USERS entry %q: %w", username, err)
		}
		if err := validator.ValidatePassword(password); err != nil {
			return nil, fmt.Errorf("invalid AUTH_USERS password for %q: %w", username, err)
		}
		if seen[username] {
			return nil, fmt.Errorf("duplicate AUTH_USERS entry %q", username)
		}
		seen[username] = true

		credentials = append(credentials, db.Credential{Username: username, Password: password})
	}

	if len(credentials) == 0 {
		return nil, errors.New("AUTH_USERS defines no users")
	}
	return credentials, nil
}
