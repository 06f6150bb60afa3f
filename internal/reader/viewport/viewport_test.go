package viewport

import (
	"testing"
	"time"

	"github.com/justyntemme/readium-t/internal/reader/engine"
	"github.com/justyntemme/readium-t/internal/reader/engine/enginetest"
	"github.com/justyntemme/readium-t/internal/reader/geometry"
	"github.com/justyntemme/readium-t/internal/reader/schedule"
	"github.com/justyntemme/readium-t/pkg/models"
)

func TestClampPage(t *testing.T) {
	tests := []struct {
		page, total, want int
	}{
		{page: 5, total: 10, want: 5},
		{page: 0, total: 10, want: 1},
		{page: -3, total: 0, want: 1},
		{page: 12, total: 10, want: 10},
		{page: 12, total: 0, want: 12},
	}
	for _, tt := range tests {
		if got := ClampPage(tt.page, tt.total); got != tt.want {
			t.Errorf("ClampPage(%d, %d) = %d, want %d", tt.page, tt.total, got, tt.want)
		}
	}
}

func TestLinkPage(t *testing.T) {
	tests := []struct {
		index, total, want int
	}{
		{index: 0, total: 10, want: 1},
		{index: 4, total: 10, want: 5},
		{index: 9, total: 10, want: 10},
		{index: 20, total: 10, want: 10},
		{index: 6, total: 0, want: 7},
		{index: -2, total: 0, want: 1},
	}
	for _, tt := range tests {
		if got := LinkPage(tt.index, tt.total); got != tt.want {
			t.Errorf("LinkPage(%d, %d) = %d, want %d", tt.index, tt.total, got, tt.want)
		}
	}
}

type recorder struct {
	states []models.ViewportState
}

func (r *recorder) last() models.ViewportState {
	if len(r.states) == 0 {
		return models.ViewportState{}
	}
	return r.states[len(r.states)-1]
}

func setup(t *testing.T, narrow bool) (*Bridge, *enginetest.Document, *schedule.Manual, *recorder) {
	t.Helper()
	sched := schedule.NewManual()
	rec := &recorder{}
	b := New(sched, Options{
		Narrow:   func() bool { return narrow },
		OnChange: func(s models.ViewportState) { rec.states = append(rec.states, s) },
	})
	doc := enginetest.New("doc-a", 10, geometry.Size{Width: 600, Height: 800})
	t.Cleanup(b.Close)
	return b, doc, sched, rec
}

func TestStateMirroring(t *testing.T) {
	b, doc, _, rec := setup(t, false)
	b.Attach(doc, 1)

	doc.EmitScroll(engine.ScrollState{CurrentPage: 0, TotalPages: 10})
	if got := rec.last(); got.CurrentPage != 1 || got.TotalPages != 10 {
		t.Errorf("state = %+v, want page floored at 1", got)
	}

	doc.EmitZoom(0)
	if got := rec.last(); got.ZoomLevel != DefaultZoom {
		t.Errorf("zero zoom reported as %v, want %v", got.ZoomLevel, DefaultZoom)
	}

	doc.EmitZoom(2.5)
	doc.EmitScroll(engine.ScrollState{CurrentPage: 4, TotalPages: 10})
	if got := rec.last(); got != (models.ViewportState{CurrentPage: 4, TotalPages: 10, ZoomLevel: 2.5}) {
		t.Errorf("state = %+v", got)
	}

	b.Detach()
	if got := rec.last(); got != ResetState {
		t.Errorf("after detach state = %+v, want %+v", got, ResetState)
	}
	if doc.Listeners() != 0 {
		t.Errorf("listeners after detach = %d", doc.Listeners())
	}
}

func TestGoToPageClamps(t *testing.T) {
	b, doc, _, _ := setup(t, false)
	b.GoToPage(3)
	if len(doc.ScrollCalls()) != 0 {
		t.Fatal("detached bridge scrolled")
	}

	b.Attach(doc, 1)
	b.GoToPage(0)
	b.GoToPage(99)
	b.GoToPage(4)

	want := []int{1, 10, 4}
	got := doc.ScrollCalls()
	if len(got) != len(want) {
		t.Fatalf("scroll calls = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("scroll calls = %v, want %v", got, want)
		}
	}
}

func TestResetZoomPreference(t *testing.T) {
	tests := []struct {
		name   string
		narrow bool
		want   engine.ZoomRequest
	}{
		{name: "desktop", want: engine.ZoomRequest{Mode: engine.ZoomLevel, Level: DefaultZoom}},
		{name: "narrow", narrow: true, want: engine.ZoomRequest{Mode: engine.ZoomFitWidth}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, doc, _, _ := setup(t, tt.narrow)
			b.Attach(doc, 1)
			b.ZoomIn()
			b.ZoomOut()
			b.ResetZoom()

			if in, out := doc.ZoomSteps(); in != 1 || out != 1 {
				t.Errorf("zoom steps = %d/%d, want 1/1", in, out)
			}
			reqs := doc.ZoomRequests()
			if len(reqs) != 1 || reqs[0] != tt.want {
				t.Errorf("zoom requests = %+v, want [%+v]", reqs, tt.want)
			}
		})
	}
}

func TestInitialViewAppliedOncePerDocument(t *testing.T) {
	b, doc, sched, _ := setup(t, false)
	b.Attach(doc, 25)

	doc.EmitLayoutReady(engine.LayoutReady{DocumentID: "other", TotalPages: 3})
	doc.EmitLayoutReady(engine.LayoutReady{DocumentID: "doc-a", TotalPages: 12, IsInitial: true})
	doc.EmitLayoutReady(engine.LayoutReady{DocumentID: "doc-a", TotalPages: 12})

	if len(doc.ScrollCalls()) != 0 {
		t.Fatal("initial view applied synchronously")
	}

	sched.Advance(schedule.FrameDelay)
	if got := doc.ScrollCalls(); len(got) != 1 || got[0] != 12 {
		t.Fatalf("after frame scroll calls = %v, want [12]", got)
	}

	sched.Advance(time.Second)
	got := doc.ScrollCalls()
	if len(got) != 2 {
		t.Fatalf("scroll calls = %v, want frame attempt plus one retry", got)
	}
	if reqs := doc.ZoomRequests(); len(reqs) != 2 || reqs[0].Level != DefaultZoom {
		t.Errorf("zoom requests = %+v", reqs)
	}

	// Reattaching the same document does not reapply the initial view.
	b.Attach(doc, 2)
	doc.EmitLayoutReady(engine.LayoutReady{DocumentID: "doc-a", TotalPages: 12})
	sched.Advance(time.Second)
	if n := len(doc.ScrollCalls()); n != 2 {
		t.Errorf("scroll calls after reattach = %d, want 2", n)
	}
}

func TestDetachCancelsInitialView(t *testing.T) {
	b, doc, sched, _ := setup(t, false)
	b.Attach(doc, 3)
	doc.EmitLayoutReady(engine.LayoutReady{DocumentID: "doc-a", TotalPages: 10})
	b.Detach()

	sched.Advance(time.Second)
	if n := len(doc.ScrollCalls()); n != 0 {
		t.Errorf("scroll calls after detach = %d", n)
	}
}

func TestInvalidZoomIsForcedToDefault(t *testing.T) {
	b, doc, sched, _ := setup(t, false)
	b.Attach(doc, 1)

	doc.EmitZoom(0.005)
	sched.Advance(schedule.FrameDelay)
	if n := len(doc.ZoomRequests()); n != 1 {
		t.Fatalf("zoom requests after frame = %d, want 1", n)
	}

	// A valid level before the retry cancels it.
	doc.EmitZoom(1.2)
	sched.Advance(time.Second)
	reqs := doc.ZoomRequests()
	if len(reqs) != 1 {
		t.Fatalf("zoom requests = %d, want 1", len(reqs))
	}
	if reqs[0] != (engine.ZoomRequest{Mode: engine.ZoomLevel, Level: DefaultZoom}) {
		t.Errorf("request = %+v", reqs[0])
	}

	doc.EmitZoom(0)
	sched.Advance(time.Second)
	if n := len(doc.ZoomRequests()); n != 3 {
		t.Errorf("zoom requests = %d, want 3 (frame and retry)", n)
	}
}
