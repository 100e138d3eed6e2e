package api

import (
	"hacker-kid/internal/api/handlers"
	"hacker-kid/internal/app"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires the session store routes
func NewRouter(config *app.Config) http.Handler {
	sessionHandlers := handlers.NewSessionHandlers(config)
	authHandlers := handlers.NewAuthHandlers(config)
	healthHandler := handlers.NewHealthHandler(config)

	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(cors(config.AppConfig.Server.AllowedOrigin))

	r.Get("/api/health", healthHandler.Health)
	r.Post("/api/login", authHandlers.LoginHandler)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(config.Tokens.Middleware)
		r.Get("/api/session", sessionHandlers.GetSessionHandler)
		r.Post("/api/session", sessionHandlers.SaveSessionHandler)
	})

	return r
}

func cors(allowedOrigin string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
