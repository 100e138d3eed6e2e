package syncer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"hacker-kid/internal/session"
	"hacker-kid/internal/storage/local"
	"hacker-kid/internal/testutil"
)

type harness struct {
	kv      *local.MemoryKV
	local   *local.Adapter
	remote  *testutil.MockRemoteStore
	timers  *testutil.FakeTimers
	ctrl    *Controller
	unlocks time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	kv := local.NewMemoryKV(0)
	h := &harness{
		kv:      kv,
		local:   local.NewAdapter(kv, local.DefaultPolicy),
		remote:  &testutil.MockRemoteStore{},
		timers:  &testutil.FakeTimers{},
		unlocks: time.UnixMilli(1_700_000_000_000),
	}
	h.ctrl = New(h.local, h.remote,
		WithDebounce(2*time.Second),
		WithClock(func() time.Time { return h.unlocks }),
		WithTimerFunc(func(d time.Duration, f func()) Timer { return h.timers.AfterFunc(d, f) }),
	)
	return h
}

func appendText(text string) func(session.Session) session.Session {
	return func(s session.Session) session.Session {
		return session.AppendMessage(s, s.ActiveConversationID, session.NewMessage(session.RoleUser, text))
	}
}

func TestLogin_RemoteWins(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	localSession := session.New()
	localSession = session.AppendMessage(localSession, localSession.ActiveConversationID, session.NewMessage(session.RoleUser, "local only"))
	localSession.XP = 999
	if err := h.local.Save(ctx, "alice", localSession, nil); err != nil {
		t.Fatalf("seed local: %v", err)
	}

	remoteSession := session.New()
	remoteSession.XP = 70
	remoteSession.Level = 1
	h.remote.FetchFunc = func(ctx context.Context, username string) (*session.Session, error) {
		s := remoteSession.Clone()
		return &s, nil
	}

	if err := h.ctrl.Login(ctx, "alice"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	snap := h.ctrl.Snapshot()
	if snap.Status != StatusSynced {
		t.Errorf("Status = %s, want synced", snap.Status)
	}
	if snap.Session.XP != 70 || snap.Session.ActiveConversationID != remoteSession.ActiveConversationID {
		t.Errorf("adopted session = %+v, want remote %+v", snap.Session, remoteSession)
	}
	if len(snap.Session.Conversations[0].Messages) != 0 {
		t.Error("local messages leaked into adopted remote session")
	}
	if len(h.remote.Saves()) != 0 {
		t.Errorf("remote saves = %d, want 0", len(h.remote.Saves()))
	}

	stored, _ := h.local.Load(ctx, "alice")
	if stored.XP != 70 {
		t.Errorf("local copy XP = %d, want adopted 70", stored.XP)
	}
}

func TestLogin_LegacyLocalBackfill(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	legacy := `{"messages":[{"id":"1","role":"user","text":"hallo","timestamp":1000}],"xp":10,"level":1,"germanLevel":"A1","unlockedAchievements":[]}`
	if err := h.kv.Set(ctx, "session:alice", []byte(legacy)); err != nil {
		t.Fatalf("seed legacy: %v", err)
	}

	if err := h.ctrl.Login(ctx, "alice"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	snap := h.ctrl.Snapshot()
	if len(snap.Session.Conversations) != 1 {
		t.Fatalf("conversations = %d, want 1", len(snap.Session.Conversations))
	}
	messages := snap.Session.Conversations[0].Messages
	if len(messages) != 1 || messages[0].Text != "hallo" {
		t.Errorf("messages = %+v, want one 'hallo'", messages)
	}
	if snap.Session.XP != 10 {
		t.Errorf("XP = %d, want 10", snap.Session.XP)
	}

	saves := h.remote.Saves()
	if len(saves) != 1 {
		t.Fatalf("remote saves = %d, want 1 backfill", len(saves))
	}
	backfilled := saves[0].Session
	if backfilled.SchemaVersion != session.CurrentSchemaVersion || len(backfilled.Conversations) != 1 {
		t.Errorf("backfill sent %+v, want migrated shape", backfilled)
	}
	if snap.Status != StatusSynced {
		t.Errorf("Status = %s, want synced", snap.Status)
	}
}

func TestLogin_FailedBackfillStaysLocal(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	_ = h.local.Save(ctx, "alice", session.New(), nil)
	h.remote.SaveFunc = func(context.Context, string, session.Session) bool { return false }

	_ = h.ctrl.Login(ctx, "alice")

	snap := h.ctrl.Snapshot()
	if snap.Status != StatusLocal {
		t.Errorf("Status = %s, want local", snap.Status)
	}
	if snap.Error != "" {
		t.Errorf("Error = %q, want empty", snap.Error)
	}
}

func TestLogin_NothingAnywhere(t *testing.T) {
	h := newHarness(t)

	_ = h.ctrl.Login(context.Background(), "bob")

	snap := h.ctrl.Snapshot()
	if snap.Status != StatusLocal {
		t.Errorf("Status = %s, want local", snap.Status)
	}
	if len(snap.Session.Conversations) != 1 || snap.Session.Conversations[0].Title != session.PlaceholderTitle {
		t.Errorf("session = %+v, want fresh", snap.Session)
	}
	if len(h.remote.Saves()) != 0 {
		t.Error("fresh session was pushed to remote")
	}
	if len(snap.Achievements) != len(session.Catalog) {
		t.Errorf("achievements = %d, want catalog of %d", len(snap.Achievements), len(session.Catalog))
	}
}

func TestLogin_FetchErrorKeepsMessage(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.remote.FetchFunc = func(context.Context, string) (*session.Session, error) {
		return nil, errors.New("Cloud fetch failed: 503")
	}

	if err := h.ctrl.Login(ctx, "alice"); err != nil {
		t.Fatalf("Login() error = %v, want nil", err)
	}

	snap := h.ctrl.Snapshot()
	if snap.Status != StatusError {
		t.Errorf("Status = %s, want error", snap.Status)
	}
	if snap.Error != "Cloud fetch failed: 503" {
		t.Errorf("Error = %q", snap.Error)
	}
	if len(h.remote.Saves()) != 0 {
		t.Error("backfill attempted after fetch error")
	}

	if _, err := h.ctrl.Mutate(ctx, appendText("offline")); err != nil {
		t.Errorf("Mutate() after fetch error = %v, want nil", err)
	}
}

func TestLogin_RecordsCurrentUser(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	_ = h.ctrl.Login(ctx, "alice")

	if user, ok := h.local.CurrentUser(ctx); !ok || user != "alice" {
		t.Errorf("CurrentUser() = %q, %v, want alice", user, ok)
	}
}

func TestLogin_EmptyUsername(t *testing.T) {
	h := newHarness(t)
	if err := h.ctrl.Login(context.Background(), ""); !errors.Is(err, ErrUsernameMissing) {
		t.Errorf("Login(\"\") error = %v, want ErrUsernameMissing", err)
	}
}

func TestMutate_NotLoggedIn(t *testing.T) {
	h := newHarness(t)
	if _, err := h.ctrl.Mutate(context.Background(), appendText("x")); !errors.Is(err, ErrNotLoggedIn) {
		t.Errorf("Mutate() error = %v, want ErrNotLoggedIn", err)
	}
}

func TestMutate_PersistsLocallyAtOnce(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	_ = h.ctrl.Login(ctx, "alice")

	if _, err := h.ctrl.Mutate(ctx, appendText("hallo")); err != nil {
		t.Fatalf("Mutate() error = %v", err)
	}

	stored, ok := h.local.Load(ctx, "alice")
	if !ok {
		t.Fatal("nothing stored locally")
	}
	if got := len(stored.Conversations[0].Messages); got != 1 {
		t.Errorf("stored messages = %d, want 1", got)
	}
	if len(h.remote.Saves()) != 0 {
		t.Error("remote save happened before debounce fired")
	}
}

func TestMutate_DebounceCoalesces(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	_ = h.ctrl.Login(ctx, "alice")

	for i := 0; i < 5; i++ {
		if _, err := h.ctrl.Mutate(ctx, appendText("burst")); err != nil {
			t.Fatalf("Mutate() error = %v", err)
		}
	}

	if got := h.timers.Active(); got != 1 {
		t.Fatalf("active timers = %d, want 1", got)
	}
	if !h.ctrl.Snapshot().Pending {
		t.Error("Pending = false with an armed timer")
	}

	h.timers.FireAll()

	saves := h.remote.Saves()
	if len(saves) != 1 {
		t.Fatalf("remote saves = %d, want 1", len(saves))
	}
	if got := len(saves[0].Session.Conversations[0].Messages); got != 5 {
		t.Errorf("saved messages = %d, want the last state with 5", got)
	}
	if h.ctrl.Snapshot().Status != StatusSynced {
		t.Errorf("Status = %s, want synced", h.ctrl.Snapshot().Status)
	}
}

func TestMutate_SaveFailureSetsError(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	_ = h.ctrl.Login(ctx, "alice")
	h.remote.SaveFunc = func(context.Context, string, session.Session) bool { return false }

	_, _ = h.ctrl.Mutate(ctx, appendText("x"))
	h.timers.FireAll()

	snap := h.ctrl.Snapshot()
	if snap.Status != StatusError {
		t.Errorf("Status = %s, want error", snap.Status)
	}
	if snap.Error == "" {
		t.Error("Error message not retained")
	}
}

func TestLogin_UnsyncedLocalChangesArePushed(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	_ = h.ctrl.Login(ctx, "alice")
	h.remote.SaveFunc = func(context.Context, string, session.Session) bool { return false }

	_, _ = h.ctrl.Mutate(ctx, appendText("written offline"))
	h.timers.FireAll()
	if !h.local.Unsynced(ctx, "alice") {
		t.Fatal("Expected local session to be flagged unsynced after a failed save")
	}

	stale := session.New()
	stale.XP = 5
	fetches := h.remote.Fetches()
	h.remote.FetchFunc = func(context.Context, string) (*session.Session, error) {
		s := stale.Clone()
		return &s, nil
	}
	h.remote.SaveFunc = nil

	if err := h.ctrl.Login(ctx, "alice"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	snap := h.ctrl.Snapshot()
	if snap.Status != StatusSynced {
		t.Errorf("Expected status synced, got %s", snap.Status)
	}
	if got := len(snap.Session.Conversations[0].Messages); got != 1 {
		t.Fatalf("Expected the offline message to survive login, got %d messages", got)
	}
	if got := h.remote.Fetches(); got != fetches {
		t.Errorf("Expected no fetch while local changes are unsynced, got %d new fetches", got-fetches)
	}
	saves := h.remote.Saves()
	last := saves[len(saves)-1].Session
	if got := last.Conversations[0].Messages[0].Text; got != "written offline" {
		t.Errorf("Expected offline message pushed to remote, got %q", got)
	}
	if h.local.Unsynced(ctx, "alice") {
		t.Error("Expected unsynced flag cleared after the push")
	}
}

func TestLogin_UnsyncedPushFailureKeepsLocal(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	_ = h.ctrl.Login(ctx, "alice")
	h.remote.SaveFunc = func(context.Context, string, session.Session) bool { return false }
	_, _ = h.ctrl.Mutate(ctx, appendText("still offline"))
	h.timers.FireAll()

	_ = h.ctrl.Login(ctx, "alice")

	snap := h.ctrl.Snapshot()
	if snap.Status != StatusError {
		t.Errorf("Expected status error, got %s", snap.Status)
	}
	if got := len(snap.Session.Conversations[0].Messages); got != 1 {
		t.Errorf("Expected 1 local message, got %d", got)
	}
	if !h.local.Unsynced(ctx, "alice") {
		t.Error("Expected unsynced flag kept after a failed push")
	}
}

func TestMutate_SuccessfulSaveClearsUnsynced(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	_ = h.ctrl.Login(ctx, "alice")

	_, _ = h.ctrl.Mutate(ctx, appendText("hello"))
	if !h.local.Unsynced(ctx, "alice") {
		t.Fatal("Expected unsynced flag before the debounced save")
	}

	h.timers.FireAll()
	if h.local.Unsynced(ctx, "alice") {
		t.Error("Expected unsynced flag cleared after the remote save")
	}
}

func TestMutate_SingleSaveInFlight(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	_ = h.ctrl.Login(ctx, "alice")

	started := make(chan struct{}, 4)
	release := make(chan struct{})
	var mu sync.Mutex
	inFlight, maxInFlight := 0, 0
	h.remote.SaveFunc = func(context.Context, string, session.Session) bool {
		mu.Lock()
		inFlight++
		if inFlight > maxInFlight {
			maxInFlight = inFlight
		}
		mu.Unlock()

		started <- struct{}{}
		<-release

		mu.Lock()
		inFlight--
		mu.Unlock()
		return true
	}

	_, _ = h.ctrl.Mutate(ctx, appendText("first"))
	done := make(chan struct{})
	go func() {
		h.timers.FireAll()
		close(done)
	}()
	<-started

	if h.ctrl.Snapshot().Status != StatusSyncing {
		t.Errorf("Status = %s, want syncing", h.ctrl.Snapshot().Status)
	}

	_, _ = h.ctrl.Mutate(ctx, appendText("second"))
	h.timers.FireAll()

	if got := len(h.remote.Saves()); got != 1 {
		t.Fatalf("remote saves while one is in flight = %d, want 1", got)
	}

	close(release)
	<-done

	if got := h.timers.Active(); got != 1 {
		t.Fatalf("active timers after completion = %d, want the skipped save re-armed", got)
	}
	h.timers.FireAll()

	saves := h.remote.Saves()
	if len(saves) != 2 {
		t.Fatalf("remote saves = %d, want 2", len(saves))
	}
	if got := len(saves[1].Session.Conversations[0].Messages); got != 2 {
		t.Errorf("second save has %d messages, want 2", got)
	}
	if maxInFlight != 1 {
		t.Errorf("max concurrent saves = %d, want 1", maxInFlight)
	}
}

func TestMutate_UpdatesAchievementRecord(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	_ = h.ctrl.Login(ctx, "alice")

	_, err := h.ctrl.Mutate(ctx, func(s session.Session) session.Session {
		s, _ = session.UnlockAchievement(s, session.AchievementFirstHack)
		return s
	})
	if err != nil {
		t.Fatalf("Mutate() error = %v", err)
	}

	records, ok := h.local.LoadAchievements(ctx, "alice")
	if !ok {
		t.Fatal("achievements not stored")
	}
	for _, r := range records {
		if r.ID == session.AchievementFirstHack {
			if r.UnlockedAt == nil || *r.UnlockedAt != h.unlocks.UnixMilli() {
				t.Errorf("UnlockedAt = %v, want %d", r.UnlockedAt, h.unlocks.UnixMilli())
			}
			return
		}
	}
	t.Error("first_hack record missing")
}

func TestMutate_LocalFailureIsWarning(t *testing.T) {
	ctx := context.Background()
	kv := local.NewMemoryKV(200)
	adapter := local.NewAdapter(kv, local.DefaultPolicy)
	timers := &testutil.FakeTimers{}
	ctrl := New(adapter, &testutil.MockRemoteStore{},
		WithTimerFunc(func(d time.Duration, f func()) Timer { return timers.AfterFunc(d, f) }))
	_ = ctrl.Login(ctx, "alice")

	big := make([]byte, 500)
	for i := range big {
		big[i] = 'a'
	}
	if _, err := ctrl.Mutate(ctx, appendText(string(big))); err != nil {
		t.Fatalf("Mutate() error = %v, want nil", err)
	}

	var quotaErr *local.QuotaError
	if !errors.As(ctrl.Snapshot().LocalError, &quotaErr) {
		t.Errorf("LocalError = %v, want *local.QuotaError", ctrl.Snapshot().LocalError)
	}
	if timers.Active() != 1 {
		t.Error("remote save not scheduled after local failure")
	}
}

func TestForcePull(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	_ = h.ctrl.Login(ctx, "alice")
	_, _ = h.ctrl.Mutate(ctx, appendText("mine"))
	before := h.ctrl.Snapshot()

	err := h.ctrl.ForcePull(ctx)
	if !errors.Is(err, ErrNoRemoteRecord) {
		t.Fatalf("ForcePull() error = %v, want ErrNoRemoteRecord", err)
	}
	after := h.ctrl.Snapshot()
	if len(after.Session.Conversations[0].Messages) != 1 {
		t.Error("ForcePull without remote record changed the session")
	}
	if after.Status != before.Status {
		t.Errorf("Status = %s, want unchanged %s", after.Status, before.Status)
	}

	remoteSession := session.New()
	remoteSession.XP = 300
	remoteSession.Level = 4
	h.remote.FetchFunc = func(context.Context, string) (*session.Session, error) {
		s := remoteSession.Clone()
		return &s, nil
	}

	if err := h.ctrl.ForcePull(ctx); err != nil {
		t.Fatalf("ForcePull() error = %v", err)
	}
	snap := h.ctrl.Snapshot()
	if snap.Session.XP != 300 || snap.Status != StatusSynced {
		t.Errorf("after pull XP = %d status = %s, want 300 synced", snap.Session.XP, snap.Status)
	}
	if snap.Pending {
		t.Error("pending save survived a pull")
	}
}

func TestForcePush(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	_ = h.ctrl.Login(ctx, "alice")
	_, _ = h.ctrl.Mutate(ctx, appendText("now"))

	if err := h.ctrl.ForcePush(ctx); err != nil {
		t.Fatalf("ForcePush() error = %v", err)
	}
	if got := len(h.remote.Saves()); got != 1 {
		t.Errorf("remote saves = %d, want 1", got)
	}
	if h.timers.Active() != 0 {
		t.Error("debounce timer still armed after ForcePush")
	}

	h.remote.SaveFunc = func(context.Context, string, session.Session) bool { return false }
	if err := h.ctrl.ForcePush(ctx); !errors.Is(err, ErrRemoteSave) {
		t.Errorf("ForcePush() error = %v, want ErrRemoteSave", err)
	}
}

func TestFlush(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	_ = h.ctrl.Login(ctx, "alice")

	if err := h.ctrl.Flush(ctx); err != nil {
		t.Fatalf("Flush() with nothing pending error = %v", err)
	}
	if len(h.remote.Saves()) != 0 {
		t.Fatal("Flush() saved with nothing pending")
	}

	_, _ = h.ctrl.Mutate(ctx, appendText("bye"))
	if err := h.ctrl.Flush(ctx); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if got := len(h.remote.Saves()); got != 1 {
		t.Errorf("remote saves = %d, want 1", got)
	}
}

func TestLogout_KeepsData(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	_ = h.ctrl.Login(ctx, "alice")
	_, _ = h.ctrl.Mutate(ctx, appendText("remember me"))

	h.ctrl.Logout(ctx)

	snap := h.ctrl.Snapshot()
	if snap.Username != "" {
		t.Errorf("Username = %q after logout", snap.Username)
	}
	if _, ok := h.local.CurrentUser(ctx); ok {
		t.Error("current user survived logout")
	}
	if got := len(h.remote.Saves()); got != 1 {
		t.Errorf("pending save not flushed on logout, saves = %d", got)
	}
	if _, ok := h.local.Load(ctx, "alice"); !ok {
		t.Fatal("local data removed by logout")
	}

	saved := h.remote.Saves()[0].Session
	h.remote.FetchFunc = func(context.Context, string) (*session.Session, error) {
		s := saved.Clone()
		return &s, nil
	}
	_ = h.ctrl.Login(ctx, "alice")
	if got := h.ctrl.Snapshot().Session.Conversations[0].Messages[0].Text; got != "remember me" {
		t.Errorf("restored message = %q", got)
	}
}

func TestLogin_SwitchUserUnbindsPrevious(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	_ = h.ctrl.Login(ctx, "alice")
	_, _ = h.ctrl.Mutate(ctx, appendText("alice's"))

	_ = h.ctrl.Login(ctx, "bob")

	snap := h.ctrl.Snapshot()
	if snap.Username != "bob" {
		t.Errorf("Username = %q, want bob", snap.Username)
	}
	if len(snap.Session.Conversations[0].Messages) != 0 {
		t.Error("bob sees alice's messages")
	}
	saves := h.remote.Saves()
	if len(saves) != 1 || saves[0].Username != "alice" {
		t.Errorf("saves = %+v, want alice's pending save flushed", saves)
	}
}
