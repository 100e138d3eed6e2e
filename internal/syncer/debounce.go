package syncer

import (
	"sync"
	"time"
)

// Timer is a scheduled callback that can be cancelled
type Timer interface {
	Stop() bool
}

// TimerFunc schedules f to run once after d
type TimerFunc func(d time.Duration, f func()) Timer

func afterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// debouncer is a single-slot timer: arming it cancels whatever was pending.
type debouncer struct {
	mu    sync.Mutex
	delay time.Duration
	after TimerFunc
	timer Timer
	task  func()
	gen   uint64
}

func newDebouncer(delay time.Duration, after TimerFunc) *debouncer {
	return &debouncer{delay: delay, after: after}
}

// Arm replaces any pending task with task, restarting the delay
func (d *debouncer) Arm(task func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.task = task
	d.timer = d.after(d.delay, func() { d.fire(gen) })
}

func (d *debouncer) fire(gen uint64) {
	d.mu.Lock()
	if gen != d.gen || d.task == nil {
		d.mu.Unlock()
		return
	}
	task := d.task
	d.task = nil
	d.timer = nil
	d.mu.Unlock()

	task()
}

// Stop cancels the pending task and reports whether there was one
func (d *debouncer) Stop() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.task == nil {
		return false
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	d.task = nil
	d.timer = nil
	return true
}

// Pending reports whether a task is waiting for its timer
func (d *debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.task != nil
}
