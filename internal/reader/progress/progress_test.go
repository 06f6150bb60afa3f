package progress

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/justyntemme/readium-t/internal/reader/schedule"
)

type call struct {
	bookID, page int
	keepalive    bool
}

type fakeSaver struct {
	mu    sync.Mutex
	calls []call
	err   error
}

func (f *fakeSaver) UpdateProgress(ctx context.Context, bookID, page int, keepalive bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{bookID, page, keepalive})
	return f.err
}

func (f *fakeSaver) snapshot() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.calls...)
}

func TestDebounceLastPageWins(t *testing.T) {
	saver := &fakeSaver{}
	sched := schedule.NewManual()
	var saved []int
	tr := New(saver, sched, func(_, page int) { saved = append(saved, page) })
	tr.SetBook(4)

	tr.PageChanged(2)
	sched.Advance(time.Second)
	tr.PageChanged(3)
	sched.Advance(time.Second)
	tr.PageChanged(5)
	if n := len(saver.snapshot()); n != 0 {
		t.Fatalf("saved before debounce: %d calls", n)
	}

	sched.Advance(SaveDebounce)
	got := saver.snapshot()
	if len(got) != 1 || got[0] != (call{4, 5, false}) {
		t.Fatalf("calls = %+v", got)
	}
	if len(saved) != 1 || saved[0] != 5 {
		t.Errorf("onSaved = %v", saved)
	}
}

func TestGuardSkipsSamePage(t *testing.T) {
	saver := &fakeSaver{}
	sched := schedule.NewManual()
	tr := New(saver, sched, nil)
	tr.SetBook(1)

	tr.PageChanged(7)
	sched.Advance(SaveDebounce)
	tr.PageChanged(7)
	sched.Advance(SaveDebounce)
	if n := len(saver.snapshot()); n != 1 {
		t.Fatalf("calls = %d, want 1", n)
	}

	// A new book resets the marker.
	tr.SetBook(2)
	tr.PageChanged(7)
	sched.Advance(SaveDebounce)
	got := saver.snapshot()
	if len(got) != 2 || got[1] != (call{2, 7, false}) {
		t.Errorf("calls = %+v", got)
	}
}

func TestFailedSaveIsRetriedOnNextChange(t *testing.T) {
	saver := &fakeSaver{err: errors.New("offline")}
	sched := schedule.NewManual()
	tr := New(saver, sched, nil)
	tr.SetBook(1)

	tr.PageChanged(3)
	sched.Advance(SaveDebounce)

	saver.mu.Lock()
	saver.err = nil
	saver.mu.Unlock()

	tr.PageChanged(3)
	sched.Advance(SaveDebounce)
	if n := len(saver.snapshot()); n != 2 {
		t.Errorf("calls = %d, want 2", n)
	}
}

func TestNonPositivePagesIgnored(t *testing.T) {
	saver := &fakeSaver{}
	sched := schedule.NewManual()
	tr := New(saver, sched, nil)
	tr.SetBook(1)

	tr.PageChanged(0)
	tr.PageChanged(-1)
	sched.Advance(time.Minute)
	tr.Flush()
	if err := tr.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}
	if n := len(saver.snapshot()); n != 0 {
		t.Errorf("calls = %d, want 0", n)
	}
}

func TestFlushIgnoresGuardAndCancelsDebounce(t *testing.T) {
	saver := &fakeSaver{}
	sched := schedule.NewManual()
	tr := New(saver, sched, nil)
	tr.SetBook(9)

	tr.PageChanged(4)
	sched.Advance(SaveDebounce)
	tr.PageChanged(4)
	tr.Flush()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := tr.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	sched.Advance(time.Minute)

	got := saver.snapshot()
	if len(got) != 2 {
		t.Fatalf("calls = %+v, want debounce save plus flush", got)
	}
	if got[1] != (call{9, 4, true}) {
		t.Errorf("flush call = %+v", got[1])
	}
	if sched.Pending() != 0 {
		t.Errorf("pending tasks = %d", sched.Pending())
	}
}

func TestFlushErrorsAreSwallowed(t *testing.T) {
	saver := &fakeSaver{err: errors.New("gone")}
	tr := New(saver, schedule.NewManual(), nil)
	tr.SetBook(1)
	tr.PageChanged(2)
	tr.Flush()
	if err := tr.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if tr.Page() != 2 {
		t.Errorf("Page = %d", tr.Page())
	}
}
