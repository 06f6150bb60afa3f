// Package pdfengine is a headless document engine for the terminal reader.
// It extracts positioned text lines from PDF files and keeps the selection,
// overlay, paging and zoom state the reader drives.
package pdfengine

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"

	"github.com/justyntemme/readium-t/internal/logging"
	"github.com/justyntemme/readium-t/internal/reader/engine"
	"github.com/justyntemme/readium-t/internal/reader/geometry"
)

// ErrEmptyDocument is returned for files with no pages
var ErrEmptyDocument = errors.New("document has no pages")

// Engine opens PDF documents
type Engine struct {
	logger *log.Logger
}

// New returns an engine
func New() *Engine {
	return &Engine{logger: logging.For("pdf-engine")}
}

// Open parses data and extracts the text lines of every page
func (e *Engine) Open(ctx context.Context, name string, data []byte) (engine.Document, error) {
	doc, err := e.OpenDocument(ctx, name, data)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// OpenDocument is Open returning the concrete document
func (e *Engine) OpenDocument(ctx context.Context, name string, data []byte) (doc *Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			doc, err = nil, fmt.Errorf("open %s: malformed pdf: %v", name, r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}

	n := r.NumPage()
	if n == 0 {
		return nil, fmt.Errorf("open %s: %w", name, ErrEmptyDocument)
	}

	raw := make([]pdf.Page, n)
	for i := range raw {
		raw[i] = r.Page(i + 1)
	}
	refs := newPageRefs(r, raw)

	pages := make([]Page, n)
	for i := range pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pages[i] = e.extractPage(raw[i], i, refs)
	}

	id := uuid.NewString()
	e.logger.Debug("opened document", "name", name, "id", id, "pages", n)
	return NewDocument(id, pages), nil
}

// extractPage never fails: pages without a text layer come back empty
func (e *Engine) extractPage(p pdf.Page, index int, refs *pageRefs) (page Page) {
	page.Size = LetterSize
	if p.V.IsNull() {
		return page
	}
	if size, ok := mediaBox(p.V); ok {
		page.Size = size
	}
	page.Links = e.extractLinks(p, index, page.Size, refs)

	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("text extraction panicked", "page", index+1, "panic", r)
			page.Lines = nil
		}
	}()

	rows, err := p.GetTextByRow()
	if err != nil {
		e.logger.Warn("text extraction failed", "page", index+1, "err", err)
		return page
	}
	page.Lines = BuildLines(fragments(rows), page.Size)
	return page
}

func (e *Engine) extractLinks(p pdf.Page, index int, size geometry.Size, refs *pageRefs) (links []engine.Link) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("link extraction panicked", "page", index+1, "panic", r)
			links = nil
		}
	}()
	return pageLinks(p.V, index, size, refs)
}
