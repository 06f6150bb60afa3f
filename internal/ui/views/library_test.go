package views

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/justyntemme/readium-t/internal/api"
	"github.com/justyntemme/readium-t/pkg/models"
)

const libraryPage = `{"content":[
	{"id":1,"title":"Dune","author":"Frank Herbert","pages":412,"format":"PDF","status":"READING","coverUrl":null,"lastReadPage":7},
	{"id":2,"title":"Emma","author":null,"pages":null,"format":"EPUB","status":"TO_READ","coverUrl":null}
],"totalPages":3,"totalElements":26,"size":12,"number":0,"first":true,"last":false,"empty":false}`

type recorder struct {
	mu      sync.Mutex
	queries []string
}

func (r *recorder) last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.queries) == 0 {
		return ""
	}
	return r.queries[len(r.queries)-1]
}

func newLibrary(t *testing.T) (*LibraryView, *recorder) {
	t.Helper()
	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.mu.Lock()
		rec.queries = append(rec.queries, r.URL.RawQuery)
		rec.mu.Unlock()
		io.WriteString(w, libraryPage)
	}))
	t.Cleanup(srv.Close)
	return NewLibraryView(api.NewClient(srv.URL), nil), rec
}

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestLibraryLoadsAndPaginates(t *testing.T) {
	v, rec := newLibrary(t)

	v.Update(v.Init()())
	if v.loading || len(v.books) != 2 || v.total != 26 || v.totalPages != 3 {
		t.Fatalf("state after load: loading=%v books=%d total=%d pages=%d", v.loading, len(v.books), v.total, v.totalPages)
	}
	if rec.last() != "page=0&size=12" {
		t.Errorf("query = %q", rec.last())
	}

	_, cmd := v.Update(key("n"))
	v.Update(cmd())
	if v.page != 1 || rec.last() != "page=1&size=12" {
		t.Errorf("page = %d, query = %q", v.page, rec.last())
	}

	_, cmd = v.Update(key("f"))
	v.Update(cmd())
	if v.page != 0 || rec.last() != "page=0&size=12&status=TO_READ" {
		t.Errorf("after filter: page = %d, query = %q", v.page, rec.last())
	}
}

func TestLibraryOpensOnlyPDF(t *testing.T) {
	v, _ := newLibrary(t)
	v.Update(v.Init()())

	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if msg, ok := cmd().(OpenBookMsg); !ok || msg.Book.ID != 1 {
		t.Errorf("enter on a PDF = %#v", cmd())
	}

	v.Update(key("j"))
	_, cmd = v.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if _, ok := cmd().(ErrorMsg); !ok {
		t.Errorf("enter on an EPUB should report an error")
	}
}

func TestLibrarySearchCapturesKeys(t *testing.T) {
	v, rec := newLibrary(t)
	v.Update(v.Init()())

	v.Update(key("/"))
	if !v.Capturing() {
		t.Fatal("search mode should capture keys")
	}
	v.Update(key("q"))
	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyEnter})
	v.Update(cmd())
	if v.Capturing() || rec.last() != "page=0&query=q&size=12" {
		t.Errorf("capturing=%v query=%q", v.Capturing(), rec.last())
	}
}

func TestBookChangedUpdatesRow(t *testing.T) {
	v, _ := newLibrary(t)
	v.Update(v.Init()())

	book := v.books[0]
	book.Status = models.StatusRead
	v.Update(BookChangedMsg{Book: book})
	if v.books[0].Status != models.StatusRead {
		t.Errorf("status = %s", v.books[0].Status)
	}
}

func TestDetailsCyclesStatus(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPatch && r.URL.Path == "/books/status" {
			json.NewDecoder(r.Body).Decode(&got)
			w.WriteHeader(http.StatusNoContent)
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	v := NewBookDetailsView(api.NewClient(srv.URL))
	v.SetBook(models.Book{ID: 4, Title: "Dune", Format: models.FormatPDF, Status: models.StatusToRead})

	_, cmd := v.Update(key("s"))
	if v.busy == "" {
		t.Error("expected busy state while updating")
	}
	_, cmd = v.Update(cmd())
	if v.book.Status != models.StatusReading || v.busy != "" || v.err != nil {
		t.Fatalf("book = %+v busy=%q err=%v", v.book, v.busy, v.err)
	}
	if got["status"] != "READING" || got["bookId"] != float64(4) {
		t.Errorf("request body = %v", got)
	}
	if msg, ok := cmd().(BookChangedMsg); !ok || msg.Book.Status != models.StatusReading {
		t.Errorf("expected BookChangedMsg, got %#v", cmd())
	}
}

func TestDetailsPollsRunningOcr(t *testing.T) {
	v := NewBookDetailsView(nil)
	v.SetBook(models.Book{ID: 4, Title: "Dune", Format: models.FormatPDF})

	_, cmd := v.Update(ocrStatusLoadedMsg{bookID: 4, status: &models.OcrStatusResponse{BookID: 4, Status: models.OcrRunning}})
	if cmd == nil {
		t.Fatal("running OCR should schedule a poll")
	}
	_, cmd = v.Update(ocrStatusLoadedMsg{bookID: 9, status: &models.OcrStatusResponse{BookID: 9, Status: models.OcrRunning}})
	if cmd != nil {
		t.Error("status of another book should be ignored")
	}
	if v.describeOcr() != "running" {
		t.Errorf("describeOcr = %q", v.describeOcr())
	}
}
