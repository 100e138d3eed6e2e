package app

import (
	"hacker-kid/internal/auth"
	"hacker-kid/internal/config"
	"hacker-kid/internal/repository/db"
)

// Config holds all server dependencies and configuration
type Config struct {
	// Database interface for session persistence
	DB db.Database
	// Centralized server configuration
	AppConfig *config.AppConfig
	// Tokens issues and verifies bearer tokens
	Tokens *auth.TokenIssuer
}

// NewConfig creates a new server configuration
func NewConfig(database db.Database, appConfig *config.AppConfig) *Config {
	return &Config{
		DB:        database,
		AppConfig: appConfig,
		Tokens:    auth.NewTokenIssuer(appConfig.Auth),
	}
}
