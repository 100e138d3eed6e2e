package testutil

import (
	"context"
	"errors"
	"hacker-kid/internal/app"
	"hacker-kid/internal/config"
	"hacker-kid/internal/repository/db"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// TestJWTSecret is a secret long enough for config validation
const TestJWTSecret = "test-secret-0123456789abcdef-0123456789"

// MockDatabase is a mock implementation of db.Database for testing.
// Methods without a configured func fall back to an in-memory store.
type MockDatabase struct {
	// User mocks
	GetUserByUsernameFunc func(ctx context.Context, username string) (*db.User, error)
	CreateUserFunc        func(ctx context.Context, username, password string) (*db.User, error)

	// Session mocks
	GetSessionFunc    func(ctx context.Context, username string) (*db.UserSession, error)
	UpsertSessionFunc func(ctx context.Context, username, data string) (*db.UserSession, error)

	PingFunc func(ctx context.Context) error

	mu       sync.Mutex
	users    map[string]*db.User
	sessions map[string]*db.UserSession
}

// NewMockDatabase creates a MockDatabase backed by empty in-memory maps
func NewMockDatabase() *MockDatabase {
	return &MockDatabase{
		users:    make(map[string]*db.User),
		sessions: make(map[string]*db.UserSession),
	}
}

// User methods
func (m *MockDatabase) GetUserByUsername(ctx context.Context, username string) (*db.User, error) {
	if m.GetUserByUsernameFunc != nil {
		return m.GetUserByUsernameFunc(ctx, username)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[username]
	if !ok {
		return nil, db.ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (m *MockDatabase) CreateUser(ctx context.Context, username, password string) (*db.User, error) {
	if m.CreateUserFunc != nil {
		return m.CreateUserFunc(ctx, username, password)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.users == nil {
		m.users = make(map[string]*db.User)
	}
	if _, exists := m.users[username]; exists {
		return nil, db.ErrUserExists
	}
	user := &db.User{
		ID:           "user-" + username,
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    time.Now(),
	}
	m.users[username] = user
	copied := *user
	return &copied, nil
}

// Session methods
func (m *MockDatabase) GetSession(ctx context.Context, username string) (*db.UserSession, error) {
	if m.GetSessionFunc != nil {
		return m.GetSessionFunc(ctx, username)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[username]
	if !ok {
		return nil, db.ErrNotFound
	}
	copied := *s
	return &copied, nil
}

func (m *MockDatabase) UpsertSession(ctx context.Context, username, data string) (*db.UserSession, error) {
	if m.UpsertSessionFunc != nil {
		return m.UpsertSessionFunc(ctx, username, data)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sessions == nil {
		m.sessions = make(map[string]*db.UserSession)
	}
	s := &db.UserSession{Username: username, SessionData: data, UpdatedAt: time.Now().UnixMilli()}
	m.sessions[username] = s
	copied := *s
	return &copied, nil
}

func (m *MockDatabase) Ping(ctx context.Context) error {
	if m.PingFunc != nil {
		return m.PingFunc(ctx)
	}
	return nil
}

func (m *MockDatabase) Close() error {
	return nil
}

// StoredSession returns the raw stored document of username
func (m *MockDatabase) StoredSession(username string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[username]
	if !ok {
		return "", false
	}
	return s.SessionData, true
}

var errDatabaseDown = errors.New("database unavailable")

// FailingDatabase returns a MockDatabase whose session calls fail
func FailingDatabase() *MockDatabase {
	database := NewMockDatabase()
	database.GetSessionFunc = func(ctx context.Context, username string) (*db.UserSession, error) {
		return nil, errDatabaseDown
	}
	database.UpsertSessionFunc = func(ctx context.Context, username, data string) (*db.UserSession, error) {
		return nil, errDatabaseDown
	}
	database.PingFunc = func(ctx context.Context) error {
		return errDatabaseDown
	}
	return database
}

// NewMockConfig creates an app.Config for testing. An empty secret
// disables token authentication.
func NewMockConfig(database db.Database, jwtSecret string) *app.Config {
	appConfig := &config.AppConfig{
		Server: config.ServerConfig{
			Port:          "8080",
			AllowedOrigin: "*",
		},
		Auth: config.AuthConfig{
			Users:           "admin:hacker",
			TokenExpiration: time.Hour,
		},
	}
	if jwtSecret != "" {
		appConfig.Auth.JWTSecret = []byte(jwtSecret)
	}
	return app.NewConfig(database, appConfig)
}
