package pdfengine

import (
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/justyntemme/readium-t/internal/reader/engine"
	"github.com/justyntemme/readium-t/internal/reader/geometry"
)

// pageRefs maps page dictionaries back to their 0-based index. The reader
// resolves references eagerly, so pages are told apart by their printed
// dictionary, which keeps the unresolved Contents and Parent references.
type pageRefs struct {
	index map[string]int
	dests pdf.Value
}

func newPageRefs(r *pdf.Reader, pages []pdf.Page) *pageRefs {
	refs := &pageRefs{
		index: make(map[string]int, len(pages)),
		dests: r.Trailer().Key("Root").Key("Dests"),
	}
	for i, p := range pages {
		if p.V.IsNull() {
			continue
		}
		key := p.V.String()
		if _, dup := refs.index[key]; !dup {
			refs.index[key] = i
		}
	}
	return refs
}

// pageLinks reads the Link annotations of a page. Links whose target
// cannot be resolved are skipped.
func pageLinks(page pdf.Value, index int, size geometry.Size, refs *pageRefs) []engine.Link {
	annots := page.Key("Annots")
	var links []engine.Link
	for i := 0; i < annots.Len(); i++ {
		annot := annots.Index(i)
		if annot.Key("Subtype").Name() != "Link" {
			continue
		}
		rect, ok := annotRect(annot.Key("Rect"), size)
		if !ok {
			continue
		}
		dest, uri := linkTarget(annot, refs)
		if dest < 0 && uri == "" {
			continue
		}
		links = append(links, engine.Link{PageIndex: index, Rect: rect, DestPage: dest, URI: uri})
	}
	return links
}

// annotRect converts an annotation rect to page points, origin top left
func annotRect(v pdf.Value, size geometry.Size) (geometry.Rect, bool) {
	if v.Len() != 4 {
		return geometry.Rect{}, false
	}
	x1, y1 := v.Index(0).Float64(), v.Index(1).Float64()
	x2, y2 := v.Index(2).Float64(), v.Index(3).Float64()
	rect := clampRect(geometry.Rect{
		X:      min(x1, x2),
		Y:      size.Height - max(y1, y2),
		Width:  max(x1, x2) - min(x1, x2),
		Height: max(y1, y2) - min(y1, y2),
	}, size)
	return rect, !rect.Empty()
}

func linkTarget(annot pdf.Value, refs *pageRefs) (dest int, uri string) {
	d := annot.Key("Dest")
	if action := annot.Key("A"); !action.IsNull() {
		switch action.Key("S").Name() {
		case "GoTo", "GoToR":
			d = action.Key("D")
		case "URI":
			return -1, strings.TrimSpace(action.Key("URI").RawString())
		default:
			return -1, ""
		}
	}
	return refs.destPage(d), ""
}

// destPage resolves an explicit or named destination to a page index, or -1
func (refs *pageRefs) destPage(d pdf.Value) int {
	if d.Kind() == pdf.Name {
		d = refs.dests.Key(d.Name())
	}
	if d.Kind() == pdf.Dict {
		d = d.Key("D")
	}
	if d.Len() == 0 {
		return -1
	}
	target := d.Index(0)
	switch target.Kind() {
	case pdf.Integer:
		// remote destinations name the page by number
		return max(0, int(target.Int64()))
	case pdf.Dict:
		if i, ok := refs.index[target.String()]; ok {
			return i
		}
	}
	return -1
}
