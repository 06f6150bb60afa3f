// Package progress persists the reading position of the open book.
package progress

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/justyntemme/readium-t/internal/logging"
	"github.com/justyntemme/readium-t/internal/reader/schedule"
)

const (
	SaveDebounce = 1500 * time.Millisecond
	saveTimeout  = 10 * time.Second
)

// Saver is the progress endpoint
type Saver interface {
	UpdateProgress(ctx context.Context, bookID, page int, keepalive bool) error
}

// Tracker debounces page changes into progress writes
type Tracker struct {
	saver   Saver
	sched   schedule.Scheduler
	onSaved func(bookID, page int)
	logger  *log.Logger

	mu        sync.Mutex
	bookID    int
	page      int
	lastSaved int
	timer     schedule.Timer

	inflight sync.WaitGroup
}

// New returns a tracker. onSaved runs after every successful write and may be nil.
func New(saver Saver, sched schedule.Scheduler, onSaved func(bookID, page int)) *Tracker {
	return &Tracker{
		saver:   saver,
		sched:   sched,
		onSaved: onSaved,
		logger:  logging.For("reader"),
	}
}

// SetBook switches the tracked book and forgets the last saved page
func (t *Tracker) SetBook(bookID int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
	t.bookID = bookID
	t.page = 0
	t.lastSaved = 0
}

// PageChanged restarts the debounce for page. Pages <= 0 are ignored.
func (t *Tracker) PageChanged(page int) {
	if page <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
	t.page = page
	bookID := t.bookID
	t.timer = t.sched.AfterFunc(SaveDebounce, func() {
		t.fire(bookID, page)
	})
}

func (t *Tracker) fire(bookID, page int) {
	t.mu.Lock()
	if t.bookID != bookID || t.page != page {
		t.mu.Unlock()
		return
	}
	t.timer = nil
	if t.lastSaved == page {
		t.mu.Unlock()
		return
	}
	t.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err := t.persist(ctx, bookID, page, false); err != nil {
		t.logger.Error("failed to save progress", "book", bookID, "page", page, "err", err)
	}
}

// Flush writes the current page right away in keepalive mode, ignoring the
// last saved page. It does not block; errors are only logged.
func (t *Tracker) Flush() {
	t.mu.Lock()
	t.stopLocked()
	bookID, page := t.bookID, t.page
	t.mu.Unlock()

	if page <= 0 {
		return
	}
	t.inflight.Add(1)
	go func() {
		defer t.inflight.Done()
		if err := t.persist(context.Background(), bookID, page, true); err != nil {
			t.logger.Error("failed to flush progress", "book", bookID, "page", page, "err", err)
		}
	}()
}

// Wait blocks until in-flight flushes finish or ctx is done
func (t *Tracker) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		t.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Page returns the last page reported to the tracker
func (t *Tracker) Page() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.page
}

func (t *Tracker) persist(ctx context.Context, bookID, page int, keepalive bool) error {
	if err := t.saver.UpdateProgress(ctx, bookID, page, keepalive); err != nil {
		return err
	}
	t.mu.Lock()
	if t.bookID == bookID {
		t.lastSaved = page
	}
	t.mu.Unlock()

	t.logger.Debug("progress saved", "book", bookID, "page", page, "keepalive", keepalive)
	if t.onSaved != nil {
		t.onSaved(bookID, page)
	}
	return nil
}

func (t *Tracker) stopLocked() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}
