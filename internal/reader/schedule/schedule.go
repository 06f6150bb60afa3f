// Package schedule owns deferred work: debounces, long-press timers and
// frame retries are all cancellable tasks created through a Scheduler.
package schedule

import (
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// FrameDelay stands in for one animation frame
const FrameDelay = 16 * time.Millisecond

// Timer is a cancellable scheduled task
type Timer interface {
	// Stop cancels the task and reports whether it was still pending
	Stop() bool
}

// Scheduler runs functions after a delay
type Scheduler interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

var wallClock = clockwork.NewRealClock()

// Real is backed by the wall clock
type Real struct{}

func (Real) Now() time.Time { return wallClock.Now() }

func (Real) AfterFunc(d time.Duration, f func()) Timer {
	return wallClock.AfterFunc(d, f)
}

// fakeClock is the part of clockwork's fake clock Manual drives
type fakeClock interface {
	Now() time.Time
	Advance(d time.Duration)
	AfterFunc(d time.Duration, f func()) clockwork.Timer
}

// Manual is a scheduler on a clockwork fake clock. The fake clock decides
// when tasks expire; Advance then runs them synchronously on the caller's
// goroutine, in due order, so a task can still cancel a sibling due at the
// same instant.
type Manual struct {
	clock  fakeClock
	notify chan struct{}

	mu   sync.Mutex
	seq  int
	live map[*manualTask]struct{}
}

type manualTask struct {
	m       *Manual
	seq     int
	due     time.Time
	f       func()
	timer   clockwork.Timer
	expired bool
	done    bool
}

// NewManual returns a manual scheduler starting at a fixed instant
func NewManual() *Manual {
	return &Manual{
		clock:  clockwork.NewFakeClockAt(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
		notify: make(chan struct{}, 1),
		live:   make(map[*manualTask]struct{}),
	}
}

func (m *Manual) Now() time.Time {
	return m.clock.Now()
}

func (m *Manual) AfterFunc(d time.Duration, f func()) Timer {
	m.mu.Lock()
	m.seq++
	t := &manualTask{m: m, seq: m.seq, due: m.clock.Now().Add(d), f: f}
	m.live[t] = struct{}{}
	m.mu.Unlock()

	t.timer = m.clock.AfterFunc(d, t.expire)
	return t
}

// expire runs on clockwork's goroutine and only marks the task
func (t *manualTask) expire() {
	t.m.mu.Lock()
	t.expired = true
	t.m.mu.Unlock()
	select {
	case t.m.notify <- struct{}{}:
	default:
	}
}

func (t *manualTask) Stop() bool {
	t.m.mu.Lock()
	if t.done {
		t.m.mu.Unlock()
		return false
	}
	t.done = true
	delete(t.m.live, t)
	t.m.mu.Unlock()

	if t.timer != nil {
		t.timer.Stop()
	}
	return true
}

// Advance moves the clock forward by d, running every task that falls due,
// including tasks scheduled by other tasks within the window.
func (m *Manual) Advance(d time.Duration) {
	end := m.clock.Now().Add(d)
	for {
		due := m.nextDue(end)
		if len(due) == 0 {
			break
		}
		m.clock.Advance(max(0, due[0].due.Sub(m.clock.Now())))
		m.awaitExpired(due)
		for _, t := range due {
			if m.claim(t) {
				t.f()
			}
		}
	}
	if rest := end.Sub(m.clock.Now()); rest > 0 {
		m.clock.Advance(rest)
	}
}

// Pending returns the number of tasks neither fired nor stopped
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.live)
}

// nextDue returns the live tasks sharing the earliest due time not after
// end, in scheduling order
func (m *Manual) nextDue(end time.Time) []*manualTask {
	m.mu.Lock()
	defer m.mu.Unlock()

	var due []*manualTask
	for t := range m.live {
		switch {
		case t.due.After(end):
		case len(due) == 0 || t.due.Before(due[0].due):
			due = append(due[:0], t)
		case t.due.Equal(due[0].due):
			due = append(due, t)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].seq < due[j].seq })
	return due
}

// awaitExpired blocks until clockwork has fired every task in due that is
// still live
func (m *Manual) awaitExpired(due []*manualTask) {
	for {
		m.mu.Lock()
		ready := true
		for _, t := range due {
			if !t.done && !t.expired {
				ready = false
				break
			}
		}
		m.mu.Unlock()
		if ready {
			return
		}
		<-m.notify
	}
}

func (m *Manual) claim(t *manualTask) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.done {
		return false
	}
	t.done = true
	delete(m.live, t)
	return true
}
