package local

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hacker-kid/internal/logger"
	"hacker-kid/internal/session"

	"github.com/sirupsen/logrus"
)

// QuotaError reports that a session could not be written locally even with
// every media payload stripped. Earlier local data for the user is intact.
type QuotaError struct {
	Username string
	Err      error
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("local storage full for %s: %v", e.Username, e.Err)
}

func (e *QuotaError) Unwrap() error {
	return e.Err
}

// Adapter maps sessions and achievement records to a KV
type Adapter struct {
	kv     KV
	policy Policy
}

// NewAdapter creates an Adapter over kv
func NewAdapter(kv KV, policy Policy) *Adapter {
	return &Adapter{kv: kv, policy: policy}
}

// Save prunes s and writes it together with the achievement record.
// A write refused for quota is retried once with all media stripped; if that
// fails too a *QuotaError is returned. Other write errors are returned wrapped.
func (a *Adapter) Save(ctx context.Context, username string, s session.Session, achievements []session.Achievement) error {
	pruned := Prune(s, a.policy)

	data, err := session.Encode(pruned)
	if err != nil {
		return err
	}

	if err := a.kv.Set(ctx, sessionKey(username), data); err != nil {
		if !errors.Is(err, ErrQuotaExceeded) {
			return fmt.Errorf("failed to write local session: %w", err)
		}
		logger.Log.WithError(err).WithFields(logrus.Fields{
			"username": username,
			"bytes":    len(data),
		}).Warn("Local session write failed, retrying without media")

		stripped, encErr := session.Encode(StripMedia(pruned))
		if encErr != nil {
			return encErr
		}
		if retryErr := a.kv.Set(ctx, sessionKey(username), stripped); retryErr != nil {
			logger.Log.WithError(retryErr).WithField("username", username).Error("Local session write failed after stripping media")
			if !errors.Is(retryErr, ErrQuotaExceeded) {
				return fmt.Errorf("failed to write local session: %w", retryErr)
			}
			return &QuotaError{Username: username, Err: retryErr}
		}
	}

	if achievements == nil {
		return nil
	}
	achData, err := json.Marshal(achievements)
	if err != nil {
		return fmt.Errorf("error encoding achievements: %w", err)
	}
	if err := a.kv.Set(ctx, achievementsKey(username), achData); err != nil {
		logger.Log.WithError(err).WithField("username", username).Error("Local achievements write failed")
		if errors.Is(err, ErrQuotaExceeded) {
			return &QuotaError{Username: username, Err: err}
		}
		return fmt.Errorf("failed to write local achievements: %w", err)
	}
	return nil
}

// Load returns the stored session for username. Missing, unreadable or
// malformed data is reported as absent.
func (a *Adapter) Load(ctx context.Context, username string) (session.Session, bool) {
	data, ok := a.read(ctx, sessionKey(username))
	if !ok {
		return session.Session{}, false
	}

	s, version, err := session.Decode(data)
	if err != nil {
		logger.Log.WithError(err).WithField("username", username).Warn("Ignoring malformed local session")
		return session.Session{}, false
	}
	if version < session.CurrentSchemaVersion {
		logger.Log.WithFields(logrus.Fields{
			"username":     username,
			"from_version": version,
		}).Info("Migrated local session to current schema")
	}
	return s, true
}

// LoadAchievements returns the stored achievement record for username
func (a *Adapter) LoadAchievements(ctx context.Context, username string) ([]session.Achievement, bool) {
	data, ok := a.read(ctx, achievementsKey(username))
	if !ok {
		return nil, false
	}

	var records []session.Achievement
	if err := json.Unmarshal(data, &records); err != nil {
		logger.Log.WithError(err).WithField("username", username).Warn("Ignoring malformed local achievements")
		return nil, false
	}
	return records, true
}

func (a *Adapter) read(ctx context.Context, key string) ([]byte, bool) {
	data, ok, err := a.kv.Get(ctx, key)
	if err != nil {
		logger.Log.WithError(err).WithField("key", key).Warn("Local read failed")
		return nil, false
	}
	return data, ok
}

// SetCurrentUser records which user is logged in on this device
func (a *Adapter) SetCurrentUser(ctx context.Context, username string) error {
	return a.kv.Set(ctx, currentUserKey, []byte(username))
}

// CurrentUser returns the logged-in user, if any
func (a *Adapter) CurrentUser(ctx context.Context) (string, bool) {
	data, ok := a.read(ctx, currentUserKey)
	if !ok || len(data) == 0 {
		return "", false
	}
	return string(data), true
}

// ClearCurrentUser forgets the logged-in user without touching their data
func (a *Adapter) ClearCurrentUser(ctx context.Context) error {
	return a.kv.Delete(ctx, currentUserKey)
}

// SaveToken stores the bearer token issued to username
func (a *Adapter) SaveToken(ctx context.Context, username, token string) error {
	return a.kv.Set(ctx, tokenKey(username), []byte(token))
}

// Token returns the stored bearer token for username
func (a *Adapter) Token(ctx context.Context, username string) (string, bool) {
	data, ok := a.read(ctx, tokenKey(username))
	if !ok {
		return "", false
	}
	return string(data), true
}

// MarkUnsynced records whether username's local session holds changes the
// remote store has not acknowledged
func (a *Adapter) MarkUnsynced(ctx context.Context, username string, unsynced bool) error {
	if !unsynced {
		return a.kv.Delete(ctx, unsyncedKey(username))
	}
	return a.kv.Set(ctx, unsyncedKey(username), []byte("1"))
}

// Unsynced reports whether username's local session has unpushed changes
func (a *Adapter) Unsynced(ctx context.Context, username string) bool {
	_, ok := a.read(ctx, unsyncedKey(username))
	return ok
}

// Clear removes the local copy of username's session and achievements.
// The remote copy is untouched and restores them on the next login.
func (a *Adapter) Clear(ctx context.Context, username string) error {
	var errs []error
	for _, key := range []string{sessionKey(username), achievementsKey(username), unsyncedKey(username)} {
		if err := a.kv.Delete(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
