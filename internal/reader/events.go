package reader

import (
	"context"
	"sync"

	"github.com/justyntemme/readium-t/internal/reader/session"
	"github.com/justyntemme/readium-t/pkg/models"
)

// Event is one of the event types below
type Event interface{}

// ViewportChanged reports a new page, page count or zoom level
type ViewportChanged struct {
	State models.ViewportState
}

// SessionChanged reports a new interaction state
type SessionChanged struct {
	State session.State
}

// NoticeRaised carries a transient notice
type NoticeRaised struct {
	Notice session.Notice
}

// AnnotationsChanged carries the annotations and translation overlays of
// the current page. Err is set when part of the window failed to load.
type AnnotationsChanged struct {
	Page        int
	Annotations []models.Annotation
	Overlays    []models.TranslationOverlay
	Err         error
}

// ChromeToggled asks the host to show or hide the reader chrome
type ChromeToggled struct{}

// mailbox is an unbounded event queue. Producers never block, so engine
// callbacks can publish while the UI goroutine is busy.
type mailbox struct {
	mu     sync.Mutex
	queue  []Event
	signal chan struct{}
	done   chan struct{}
	closed bool
}

func newMailbox() *mailbox {
	return &mailbox{signal: make(chan struct{}, 1), done: make(chan struct{})}
}

func (m *mailbox) push(e Event) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.queue = append(m.queue, e)
	m.mu.Unlock()

	select {
	case m.signal <- struct{}{}:
	default:
	}
}

// next blocks until an event is queued. ok is false once the mailbox is
// closed and drained, or ctx is done.
func (m *mailbox) next(ctx context.Context) (Event, bool) {
	for {
		m.mu.Lock()
		if len(m.queue) > 0 {
			e := m.queue[0]
			m.queue[0] = nil
			m.queue = m.queue[1:]
			m.mu.Unlock()
			return e, true
		}
		closed := m.closed
		m.mu.Unlock()
		if closed {
			return nil, false
		}

		select {
		case <-m.signal:
		case <-m.done:
		case <-ctx.Done():
			return nil, false
		}
	}
}

func (m *mailbox) close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	m.queue = nil
	close(m.done)
}
