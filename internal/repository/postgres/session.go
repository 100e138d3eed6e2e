package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hacker-kid/internal/logger"
	"hacker-kid/internal/repository/db"
	"time"

	"github.com/sirupsen/logrus"
)

// GetSession retrieves the stored session document of username
func (p *PostgresDB) GetSession(ctx context.Context, username string) (*db.UserSession, error) {
	var s db.UserSession
	query := `SELECT username, session_data, updated_at FROM user_sessions WHERE username = $1`

	err := p.conn.QueryRowContext(ctx, query, username).Scan(&s.Username, &s.SessionData, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, db.ErrNotFound
		}
		return nil, fmt.Errorf("error retrieving session: %w", err)
	}

	return &s, nil
}

// UpsertSession stores data as the session of username, replacing any
// previous document
func (p *PostgresDB) UpsertSession(ctx context.Context, username, data string) (*db.UserSession, error) {
	s := &db.UserSession{
		Username:    username,
		SessionData: data,
		UpdatedAt:   time.Now().UnixMilli(),
	}

	query := `
	INSERT INTO user_sessions (username, session_data, updated_at)
	VALUES ($1, $2, $3)
	ON CONFLICT (username) DO UPDATE SET
		session_data = EXCLUDED.session_data,
		updated_at = EXCLUDED.updated_at
	`
	if _, err := p.conn.ExecContext(ctx, query, s.Username, s.SessionData, s.UpdatedAt); err != nil {
		return nil, fmt.Errorf("error saving session: %w", err)
	}

	logger.Log.WithFields(logrus.Fields{
		"username": username,
		"bytes":    len(data),
	}).Debug("Session upserted")
	return s, nil
}
