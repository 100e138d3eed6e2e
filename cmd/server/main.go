package main

import (
	"context"
	"errors"
	"hacker-kid/internal/api"
	"hacker-kid/internal/app"
	"hacker-kid/internal/auth"
	"hacker-kid/internal/config"
	"hacker-kid/internal/logger"
	"hacker-kid/internal/repository/postgres"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logger.Log.Debug("No .env file loaded")
	}

	appConfig, err := config.LoadConfig()
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to load configuration")
	}

	credentials, err := auth.ParseUsers(appConfig.Auth.Users)
	if err != nil {
		logger.Log.WithError(err).Fatal("Invalid AUTH_USERS")
	}

	database, err := postgres.NewPostgresDB(appConfig.Database)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to initialize database")
	}
	defer database.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := postgres.SeedUsers(ctx, database, credentials); err != nil {
		logger.Log.WithError(err).Fatal("Failed to seed users")
	}

	cfg := app.NewConfig(database, appConfig)

	srv := &http.Server{
		Addr:              ":" + appConfig.Server.Port,
		Handler:           api.NewRouter(cfg),
		ReadHeaderTimeout: appConfig.Server.ReadHeaderTimeout,
	}

	go func() {
		logger.Log.WithFields(logrus.Fields{
			"addr":         srv.Addr,
			"auth_enabled": cfg.Tokens.Enabled(),
		}).Info("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.WithError(err).Fatal("Server failed")
		}
	}()

	<-ctx.Done()
	stop()

	logger.Log.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), appConfig.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Error("Server forced to shutdown")
		return
	}

	logger.Log.Info("Server stopped successfully")
}
