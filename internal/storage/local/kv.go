// Package local persists sessions to on-device key-value storage under
// per-user keys, bounding the stored size by pruning old media payloads.
package local

import (
	"context"
	"errors"
)

// ErrQuotaExceeded is returned by a KV backend that refuses a write because
// the stored bytes would exceed its quota.
var ErrQuotaExceeded = errors.New("local storage quota exceeded")

// KV is the on-device key-value store
type KV interface {
	// Get returns the value for key and whether it exists
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value under key, replacing any previous value
	Set(ctx context.Context, key string, value []byte) error
	// Delete removes key. Missing keys are not an error.
	Delete(ctx context.Context, key string) error
}

const currentUserKey = "current_user"

func sessionKey(username string) string      { return "session:" + username }
func achievementsKey(username string) string { return "achievements:" + username }
func tokenKey(username string) string        { return "token:" + username }
func unsyncedKey(username string) string     { return "unsynced:" + username }
