package db

import "time"

// User is an account allowed to read and write its own session
type User struct {
	ID           string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// UserSession is the stored session document of one user. SessionData is
// the serialized session exactly as the client sent it; UpdatedAt is epoch
// milliseconds.
type UserSession struct {
	Username    string
	SessionData string
	UpdatedAt   int64
}

// Credential is one configured username/password pair
type Credential struct {
	Username string
	Password string
}
