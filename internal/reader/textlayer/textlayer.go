// Package textlayer estimates whether a document carries a usable text layer.
package textlayer

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/charmbracelet/log"

	"github.com/justyntemme/readium-t/internal/logging"
	"github.com/justyntemme/readium-t/internal/reader/engine"
)

const (
	SampleSize    = 3
	MinCharacters = 80
)

// SamplePages returns up to SampleSize evenly spaced 0-based page indexes
func SamplePages(pageCount int) []int {
	n := min(pageCount, SampleSize)
	if n <= 0 {
		return nil
	}
	if n == 1 {
		return []int{0}
	}
	pages := make([]int, n)
	for i := range pages {
		pages[i] = int(math.Round(float64(i*(pageCount-1)) / float64(n-1)))
	}
	return pages
}

// CountVisible counts non-whitespace characters
func CountVisible(text string) int {
	return utf8.RuneCountInString(strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, text))
}

// Analyzer evaluates each document id once
type Analyzer struct {
	mu       sync.Mutex
	analyzed map[string]bool
	logger   *log.Logger
}

// NewAnalyzer returns an empty analyzer
func NewAnalyzer() *Analyzer {
	return &Analyzer{analyzed: make(map[string]bool), logger: logging.For("reader-viewport")}
}

// Evaluate samples the text of doc. ok is false when the document was
// already evaluated or extraction failed.
func (a *Analyzer) Evaluate(ctx context.Context, documentID string, pageCount int, text engine.TextLayer) (low, ok bool, err error) {
	a.mu.Lock()
	if documentID == "" || a.analyzed[documentID] {
		a.mu.Unlock()
		return false, false, nil
	}
	a.analyzed[documentID] = true
	a.mu.Unlock()

	var b strings.Builder
	for _, page := range SamplePages(pageCount) {
		s, err := text.PageText(ctx, page)
		if err != nil {
			a.logger.Warn("text-layer analysis failed", "document", documentID, "err", err)
			return false, false, fmt.Errorf("extract page %d: %w", page+1, err)
		}
		b.WriteString(s)
	}
	return CountVisible(b.String()) < MinCharacters, true, nil
}

// Hint decides when to suggest OCR: once per file while it stays open
type Hint struct {
	mu    sync.Mutex
	shown map[string]bool
}

// NewHint returns a hint tracker
func NewHint() *Hint {
	return &Hint{shown: make(map[string]bool)}
}

// Opened re-arms the hint for fileURL
func (h *Hint) Opened(fileURL string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.shown, fileURL)
}

// ShouldShow reports whether a low-quality result for fileURL needs a hint
func (h *Hint) ShouldShow(fileURL string, low bool) bool {
	if !low {
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.shown[fileURL] {
		return false
	}
	h.shown[fileURL] = true
	return true
}
