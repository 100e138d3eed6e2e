package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hacker-kid/internal/logger"
	"hacker-kid/internal/repository/db"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// CreateUser creates a new user with hashed password
func (p *PostgresDB) CreateUser(ctx context.Context, username, password string) (*db.User, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	userID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("error generating user id: %w", err)
	}

	user := &db.User{
		ID:           userID.String(),
		Username:     username,
		PasswordHash: string(hashedPassword),
	}

	query := `
	INSERT INTO users (id, username, password_hash)
	VALUES ($1, $2, $3)
	RETURNING created_at
	`
	err = p.conn.QueryRowContext(ctx, query, user.ID, username, user.PasswordHash).Scan(&user.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, db.ErrUserExists
		}
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	logger.Log.WithFields(logrus.Fields{"username": username, "user_id": user.ID}).Info("Created new user")
	return user, nil
}

// GetUserByUsername retrieves a user by username
func (p *PostgresDB) GetUserByUsername(ctx context.Context, username string) (*db.User, error) {
	var user db.User
	query := `SELECT id, username, password_hash, created_at FROM users WHERE username = $1`

	err := p.conn.QueryRowContext(ctx, query, username).Scan(&user.ID, &user.Username, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, db.ErrNotFound
		}
		return nil, fmt.Errorf("error retrieving user: %w", err)
	}

	return &user, nil
}

// VerifyPassword checks if the provided password matches the user's hashed password
func VerifyPassword(user *db.User, password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password))
	return err == nil
}

// SeedUsers creates every listed user that does not exist yet. Existing
// users keep their stored password.
func SeedUsers(ctx context.Context, database db.Database, credentials []db.Credential) error {
	for _, cred := range credentials {
		_, err := database.GetUserByUsername(ctx, cred.Username)
		if err == nil {
			logger.Log.WithField("username", cred.Username).Debug("User already exists, skipping seed")
			continue
		}
		if !errors.Is(err, db.ErrNotFound) {
			return fmt.Errorf("error checking user %s: %w", cred.Username, err)
		}

		_, err = database.CreateUser(ctx, cred.Username, cred.Password)
		if err != nil && !errors.Is(err, db.ErrUserExists) {
			return fmt.Errorf("error seeding user %s: %w", cred.Username, err)
		}
	}

	logger.Log.WithField("count", len(credentials)).Info("Users seeded successfully")
	return nil
}
