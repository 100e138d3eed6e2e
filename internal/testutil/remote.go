package testutil

import (
	"context"
	"hacker-kid/internal/session"
	"sync"
	"time"
)

// SavedSession records one call to MockRemoteStore.Save
type SavedSession struct {
	Username string
	Session  session.Session
}

// MockRemoteStore is a function-field mock of the remote session store.
// Unset functions report no record and successful saves.
type MockRemoteStore struct {
	FetchFunc func(ctx context.Context, username string) (*session.Session, error)
	SaveFunc  func(ctx context.Context, username string, s session.Session) bool

	mu      sync.Mutex
	fetches int
	saves   []SavedSession
}

func (m *MockRemoteStore) Fetch(ctx context.Context, username string) (*session.Session, error) {
	m.mu.Lock()
	m.fetches++
	m.mu.Unlock()

	if m.FetchFunc != nil {
		return m.FetchFunc(ctx, username)
	}
	return nil, nil
}

func (m *MockRemoteStore) Save(ctx context.Context, username string, s session.Session) bool {
	m.mu.Lock()
	m.saves = append(m.saves, SavedSession{Username: username, Session: s.Clone()})
	m.mu.Unlock()

	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, username, s)
	}
	return true
}

// Fetches returns how many times Fetch was called
func (m *MockRemoteStore) Fetches() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fetches
}

// Saves returns every recorded Save call in order
func (m *MockRemoteStore) Saves() []SavedSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SavedSession(nil), m.saves...)
}

// FakeTimers hands out timers that only fire when told to
type FakeTimers struct {
	mu     sync.Mutex
	timers []*FakeTimer
}

// FakeTimer is one scheduled callback
type FakeTimer struct {
	Delay   time.Duration
	fn      func()
	owner   *FakeTimers
	stopped bool
	fired   bool
}

// AfterFunc schedules fn; it runs on FireAll
func (f *FakeTimers) AfterFunc(d time.Duration, fn func()) *FakeTimer {
	f.mu.Lock()
	defer f.mu.Unlock()

	t := &FakeTimer{Delay: d, fn: fn, owner: f}
	f.timers = append(f.timers, t)
	return t
}

// Stop cancels the timer and reports whether it was still pending
func (t *FakeTimer) Stop() bool {
	t.owner.mu.Lock()
	defer t.owner.mu.Unlock()

	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Active returns the number of timers neither stopped nor fired
func (f *FakeTimers) Active() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for _, t := range f.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// Created returns how many timers were ever scheduled
func (f *FakeTimers) Created() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.timers)
}

// FireAll runs every active timer on the calling goroutine
func (f *FakeTimers) FireAll() {
	f.mu.Lock()
	var due []*FakeTimer
	for _, t := range f.timers {
		if !t.stopped && !t.fired {
			t.fired = true
			due = append(due, t)
		}
	}
	f.mu.Unlock()

	for _, t := range due {
		t.fn()
	}
}
