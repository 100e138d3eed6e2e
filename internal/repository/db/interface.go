package db

import (
	"context"
	"errors"
)

// ErrNotFound is returned when the requested row does not exist
var ErrNotFound = errors.New("not found")

// ErrUserExists is returned by CreateUser for a taken username
var ErrUserExists = errors.New("username already exists")

// Database is the persistence contract of the session server
type Database interface {
	CreateUser(ctx context.Context, username, password string) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// GetSession returns ErrNotFound when username has never saved
	GetSession(ctx context.Context, username string) (*UserSession, error)
	// UpsertSession replaces the stored document and stamps updated_at
	UpsertSession(ctx context.Context, username, data string) (*UserSession, error)

	Ping(ctx context.Context) error
	Close() error
}
