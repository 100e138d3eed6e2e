// Package syncer owns every persistence side effect of a logged-in session.
// Mutations are written locally at once and pushed to the remote store
// after a quiet period, with at most one remote save in flight.
package syncer

import (
	"context"
	"errors"
	"hacker-kid/internal/logger"
	"hacker-kid/internal/session"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Status is the sync indicator shown to the user
type Status string

const (
	StatusLocal   Status = "local"
	StatusSyncing Status = "syncing"
	StatusSynced  Status = "synced"
	StatusError   Status = "error"
)

const (
	DefaultDebounce = 2 * time.Second
	DefaultTimeout  = 15 * time.Second
)

var (
	ErrNotLoggedIn     = errors.New("not logged in")
	ErrSyncInProgress  = errors.New("sync already in progress")
	ErrNoRemoteRecord  = errors.New("no remote record")
	ErrRemoteSave      = errors.New("cloud save failed")
	ErrUsernameMissing = errors.New("username is required")
)

// LocalStore is the on-device persistence the controller writes through
type LocalStore interface {
	Save(ctx context.Context, username string, s session.Session, achievements []session.Achievement) error
	Load(ctx context.Context, username string) (session.Session, bool)
	LoadAchievements(ctx context.Context, username string) ([]session.Achievement, bool)
	SetCurrentUser(ctx context.Context, username string) error
	ClearCurrentUser(ctx context.Context) error
	MarkUnsynced(ctx context.Context, username string, unsynced bool) error
	Unsynced(ctx context.Context, username string) bool
}

// RemoteStore is the remote backup. Fetch returns nil, nil when there is no record.
type RemoteStore interface {
	Fetch(ctx context.Context, username string) (*session.Session, error)
	Save(ctx context.Context, username string, s session.Session) bool
}

// Snapshot is a consistent copy of the controller state
type Snapshot struct {
	Username     string
	Session      session.Session
	Achievements []session.Achievement
	Status       Status
	// Error is the message of the last failed sync operation
	Error string
	// LocalError is set while the last local write failed
	LocalError error
	// Pending reports a debounced save waiting for its timer
	Pending bool
}

// Controller is the session sync state machine for one device
type Controller struct {
	local    LocalStore
	remote   RemoteStore
	debounce time.Duration
	timeout  time.Duration
	clock    func() time.Time
	after    TimerFunc
	deb      *debouncer
	inflight sync.WaitGroup

	mu           sync.Mutex
	username     string
	epoch        uint64
	loaded       bool
	session      session.Session
	achievements []session.Achievement
	status       Status
	lastErr      string
	localErr     error
	busy         bool
	skipped      bool
	// rev counts mutations so a finished save knows whether it was the latest
	rev uint64
}

// Option configures a Controller
type Option func(*Controller)

// WithDebounce sets the quiet period before a remote save
func WithDebounce(d time.Duration) Option {
	return func(c *Controller) {
		c.debounce = d
	}
}

// WithTimeout bounds each remote call
func WithTimeout(d time.Duration) Option {
	return func(c *Controller) {
		c.timeout = d
	}
}

// WithClock sets the clock used to stamp achievement unlocks
func WithClock(clock func() time.Time) Option {
	return func(c *Controller) {
		c.clock = clock
	}
}

// WithTimerFunc replaces time.AfterFunc for the debounce timer
func WithTimerFunc(after TimerFunc) Option {
	return func(c *Controller) {
		c.after = after
	}
}

// New creates a Controller with no user bound
func New(local LocalStore, remote RemoteStore, opts ...Option) *Controller {
	c := &Controller{
		local:    local,
		remote:   remote,
		debounce: DefaultDebounce,
		timeout:  DefaultTimeout,
		clock:    time.Now,
		after:    afterFunc,
		status:   StatusLocal,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.deb = newDebouncer(c.debounce, c.after)
	return c
}

// Login binds username and loads its session. A local copy with changes the
// remote never acknowledged is adopted and pushed. Otherwise the remote copy
// wins, else the local copy is adopted and backfilled to the remote, else a
// fresh session starts. Sync failures only show in the status.
func (c *Controller) Login(ctx context.Context, username string) error {
	if username == "" {
		return ErrUsernameMissing
	}

	c.mu.Lock()
	bound := c.username
	c.mu.Unlock()
	if bound != "" {
		c.Logout(ctx)
	}

	c.mu.Lock()
	c.epoch++
	epoch := c.epoch
	c.username = username
	c.loaded = false
	c.session = session.New()
	c.achievements = nil
	c.lastErr = ""
	c.localErr = nil
	c.busy = true
	c.setStatus(StatusSyncing, "")
	c.mu.Unlock()

	if err := c.local.SetCurrentUser(ctx, username); err != nil {
		logger.Log.WithError(err).WithField("username", username).Warn("Failed to record current user")
	}

	localSession, hasLocal := c.local.Load(ctx, username)
	unsynced := hasLocal && c.local.Unsynced(ctx, username)

	var (
		remoteSession *session.Session
		fetchErr      error
	)
	if !unsynced {
		fetchCtx, cancel := c.remoteContext(ctx)
		remoteSession, fetchErr = c.remote.Fetch(fetchCtx, username)
		cancel()
	}

	var (
		adopted  session.Session
		status   Status
		errMsg   string
		backfill bool
		pushed   bool
	)

	switch {
	case unsynced:
		adopted = session.EnsureActive(localSession)
		backfill = true
		logger.Log.WithField("username", username).Info("Local session has unsynced changes, pushing before fetch")
	case fetchErr != nil:
		status, errMsg = StatusError, fetchErr.Error()
		adopted = session.New()
		if hasLocal {
			adopted = session.EnsureActive(localSession)
		}
	case remoteSession != nil:
		status = StatusSynced
		adopted = session.EnsureActive(*remoteSession)
	case hasLocal:
		adopted = session.EnsureActive(localSession)
		backfill = true
	default:
		status = StatusLocal
		adopted = session.New()
	}

	if backfill {
		saveCtx, cancel := c.remoteContext(ctx)
		pushed = c.remote.Save(saveCtx, username, adopted)
		cancel()
		switch {
		case pushed:
			status = StatusSynced
			logger.Log.WithField("username", username).Info("Backfilled remote store from local session")
		case unsynced:
			status, errMsg = StatusError, ErrRemoteSave.Error()
			logger.Log.WithField("username", username).Warn("Unsynced local changes could not be pushed, continuing locally")
		default:
			status = StatusLocal
			logger.Log.WithField("username", username).Warn("Remote backfill failed, continuing locally")
		}
	}

	records, ok := c.local.LoadAchievements(ctx, username)
	if !ok {
		records = session.NewAchievements()
	}
	records = session.MarkUnlocked(records, adopted.UnlockedAchievements, c.clock().UnixMilli())

	c.mu.Lock()
	defer c.mu.Unlock()

	if epoch != c.epoch {
		return nil
	}
	c.session = adopted
	c.achievements = records
	c.loaded = true
	c.busy = false
	c.lastErr = errMsg
	c.setStatus(status, errMsg)

	if remoteSession != nil || backfill {
		c.persistLocked(ctx, backfill && !pushed)
	}
	c.rearmIfSkippedLocked()
	return nil
}

// Mutate applies fn to the current session, writes the result locally and
// schedules a debounced remote save.
func (c *Controller) Mutate(ctx context.Context, fn func(session.Session) session.Session) (session.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.username == "" {
		return session.Session{}, ErrNotLoggedIn
	}
	if !c.loaded {
		return session.Session{}, ErrSyncInProgress
	}

	before := c.session
	next := fn(before)

	if newly := newUnlocks(before, next); len(newly) > 0 {
		c.achievements = session.MarkUnlocked(c.achievements, newly, c.clock().UnixMilli())
	}
	c.session = next
	c.rev++

	c.persistLocked(ctx, true)
	c.deb.Arm(c.debouncedSave)
	return next, nil
}

// ForcePull replaces the in-memory session with the remote copy. Without a
// remote record the state is left as it is and ErrNoRemoteRecord returned.
func (c *Controller) ForcePull(ctx context.Context) error {
	c.mu.Lock()
	if c.username == "" {
		c.mu.Unlock()
		return ErrNotLoggedIn
	}
	if c.busy || !c.loaded {
		c.mu.Unlock()
		return ErrSyncInProgress
	}
	username, epoch, prevStatus := c.username, c.epoch, c.status
	c.busy = true
	c.setStatus(StatusSyncing, "")
	c.mu.Unlock()

	fetchCtx, cancel := c.remoteContext(ctx)
	remoteSession, err := c.remote.Fetch(fetchCtx, username)
	cancel()

	c.mu.Lock()
	defer c.mu.Unlock()

	if epoch != c.epoch {
		return nil
	}
	c.busy = false
	defer c.rearmIfSkippedLocked()

	if err != nil {
		c.lastErr = err.Error()
		c.setStatus(StatusError, c.lastErr)
		return err
	}
	if remoteSession == nil {
		c.setStatus(prevStatus, c.lastErr)
		return ErrNoRemoteRecord
	}

	c.deb.Stop()
	c.skipped = false
	adopted := session.EnsureActive(*remoteSession)
	c.achievements = session.MarkUnlocked(c.achievements, adopted.UnlockedAchievements, c.clock().UnixMilli())
	c.session = adopted
	c.lastErr = ""
	c.setStatus(StatusSynced, "")
	c.persistLocked(ctx, false)
	return nil
}

// ForcePush saves the current session to the remote store now, cancelling
// any pending debounced save.
func (c *Controller) ForcePush(ctx context.Context) error {
	c.mu.Lock()
	if c.username == "" {
		c.mu.Unlock()
		return ErrNotLoggedIn
	}
	if c.busy || !c.loaded {
		c.mu.Unlock()
		return ErrSyncInProgress
	}
	c.deb.Stop()
	c.skipped = false
	username, s, epoch, rev := c.beginSaveLocked()
	c.mu.Unlock()

	if !c.save(ctx, username, s, epoch, rev) {
		return ErrRemoteSave
	}
	return nil
}

// Flush runs a pending debounced save immediately and waits for any save in
// flight. It is a no-op when nothing is pending.
func (c *Controller) Flush(ctx context.Context) error {
	pending := c.deb.Stop()
	c.inflight.Wait()

	c.mu.Lock()
	if c.skipped {
		c.skipped = false
		pending = true
	}
	c.mu.Unlock()

	if c.deb.Stop() {
		pending = true
	}
	if !pending {
		return nil
	}
	return c.ForcePush(ctx)
}

// Logout flushes pending work and unbinds the user. Local and remote data
// are kept so a later login restores them.
func (c *Controller) Logout(ctx context.Context) {
	c.mu.Lock()
	username := c.username
	c.mu.Unlock()
	if username == "" {
		return
	}

	if err := c.Flush(ctx); err != nil && !errors.Is(err, ErrNotLoggedIn) {
		logger.Log.WithError(err).WithField("username", username).Warn("Pending save failed during logout")
	}

	c.mu.Lock()
	c.epoch++
	c.username = ""
	c.loaded = false
	c.busy = false
	c.skipped = false
	c.session = session.Session{}
	c.achievements = nil
	c.lastErr = ""
	c.localErr = nil
	c.setStatus(StatusLocal, "")
	c.mu.Unlock()

	if err := c.local.ClearCurrentUser(ctx); err != nil {
		logger.Log.WithError(err).Warn("Failed to clear current user")
	}
	logger.Log.WithField("username", username).Info("User logged out")
}

// Current returns a copy of the in-memory session
func (c *Controller) Current() session.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.Clone()
}

// Snapshot returns a copy of the current state
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		Username:     c.username,
		Session:      c.session.Clone(),
		Achievements: append([]session.Achievement(nil), c.achievements...),
		Status:       c.status,
		Error:        c.lastErr,
		LocalError:   c.localErr,
		Pending:      c.deb.Pending(),
	}
}

func (c *Controller) debouncedSave() {
	c.mu.Lock()
	if c.username == "" || !c.loaded {
		c.mu.Unlock()
		return
	}
	if c.busy {
		c.skipped = true
		username := c.username
		c.mu.Unlock()
		logger.Log.WithField("username", username).Debug("Remote save skipped, another sync is in flight")
		return
	}
	username, s, epoch, rev := c.beginSaveLocked()
	c.mu.Unlock()

	c.save(context.Background(), username, s, epoch, rev)
}

func (c *Controller) beginSaveLocked() (string, session.Session, uint64, uint64) {
	c.busy = true
	c.inflight.Add(1)
	c.setStatus(StatusSyncing, "")
	return c.username, c.session, c.epoch, c.rev
}

func (c *Controller) save(ctx context.Context, username string, s session.Session, epoch, rev uint64) bool {
	defer c.inflight.Done()

	saveCtx, cancel := c.remoteContext(ctx)
	ok := c.remote.Save(saveCtx, username, s)
	cancel()

	c.mu.Lock()
	defer c.mu.Unlock()

	if epoch != c.epoch {
		return ok
	}
	c.busy = false
	if ok {
		c.lastErr = ""
		c.setStatus(StatusSynced, "")
		if rev == c.rev {
			if err := c.local.MarkUnsynced(ctx, username, false); err != nil {
				logger.Log.WithError(err).WithField("username", username).Warn("Failed to clear unsynced flag")
			}
		}
	} else {
		c.lastErr = ErrRemoteSave.Error()
		c.setStatus(StatusError, c.lastErr)
	}
	c.rearmIfSkippedLocked()
	return ok
}

func (c *Controller) rearmIfSkippedLocked() {
	if c.skipped {
		c.skipped = false
		c.deb.Arm(c.debouncedSave)
	}
}

// persistLocked writes the session locally. unsynced marks it as holding
// changes the remote store has not acknowledged yet.
func (c *Controller) persistLocked(ctx context.Context, unsynced bool) {
	err := c.local.Save(ctx, c.username, c.session, c.achievements)
	if err != nil {
		logger.Log.WithError(err).WithField("username", c.username).Error("Local save failed")
	} else if flagErr := c.local.MarkUnsynced(ctx, c.username, unsynced); flagErr != nil {
		logger.Log.WithError(flagErr).WithField("username", c.username).Warn("Failed to record unsynced flag")
	}
	c.localErr = err
}

func (c *Controller) setStatus(status Status, errMsg string) {
	if c.status == status {
		return
	}
	entry := logger.Log.WithFields(logrus.Fields{
		"username": c.username,
		"from":     c.status,
		"status":   status,
	})
	if errMsg != "" {
		entry = entry.WithField("error", errMsg)
	}
	entry.Info("Sync status changed")
	c.status = status
}

func (c *Controller) remoteContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

func newUnlocks(before, after session.Session) []string {
	var ids []string
	for _, id := range after.UnlockedAchievements {
		if !before.HasAchievement(id) {
			ids = append(ids, id)
		}
	}
	return ids
}
