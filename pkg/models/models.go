package models

import (
	"encoding/json"
	"fmt"
)

// BookStatus is the reading status of a book
type BookStatus string

const (
	StatusToRead  BookStatus = "TO_READ"
	StatusReading BookStatus = "READING"
	StatusRead    BookStatus = "READ"
)

// StatusFilter narrows the library listing. StatusAll sends no filter.
type StatusFilter string

const StatusAll StatusFilter = "ALL"

// Next cycles TO_READ -> READING -> READ -> TO_READ
func (s BookStatus) Next() BookStatus {
	switch s {
	case StatusToRead:
		return StatusReading
	case StatusReading:
		return StatusRead
	default:
		return StatusToRead
	}
}

// Book format constants
const (
	FormatPDF  = "PDF"
	FormatEPUB = "EPUB"
)

// Book represents a book in the library
type Book struct {
	ID           int        `json:"id" validate:"required"`
	Title        string     `json:"title" validate:"required"`
	Author       *string    `json:"author"`
	Pages        *int       `json:"pages"`
	Format       string     `json:"format" validate:"oneof=PDF EPUB"`
	Status       BookStatus `json:"status" validate:"oneof=TO_READ READING READ"`
	CoverURL     *string    `json:"coverUrl"`
	LastReadPage *int       `json:"lastReadPage,omitempty"`
}

// AuthorName returns the author or a placeholder
func (b *Book) AuthorName() string {
	if b.Author == nil || *b.Author == "" {
		return "Unknown author"
	}
	return *b.Author
}

// IsPDF returns true if the reader can open the book
func (b *Book) IsPDF() bool {
	return b.Format == FormatPDF
}

// ResumePage returns the last read page or 1
func (b *Book) ResumePage() int {
	if b.LastReadPage == nil || *b.LastReadPage < 1 {
		return 1
	}
	return *b.LastReadPage
}

// BookPage is the paginated listing envelope returned by the server
type BookPage struct {
	Content       []Book `json:"content" validate:"dive"`
	TotalPages    int    `json:"totalPages" validate:"gte=0"`
	TotalElements int    `json:"totalElements" validate:"gte=0"`
	Size          int    `json:"size"`
	Number        int    `json:"number" validate:"gte=0"`
	First         bool   `json:"first"`
	Last          bool   `json:"last"`
	Empty         bool   `json:"empty"`
}

// OcrStatus is the server-side OCR pipeline state
type OcrStatus string

const (
	OcrPending OcrStatus = "PENDING"
	OcrRunning OcrStatus = "RUNNING"
	OcrDone    OcrStatus = "DONE"
	OcrFailed  OcrStatus = "FAILED"
)

// OcrStatusResponse is returned by both the OCR status and the text-layer
// quality endpoints.
type OcrStatusResponse struct {
	BookID    int       `json:"bookId" validate:"required"`
	Status    OcrStatus `json:"status" validate:"oneof=PENDING RUNNING DONE FAILED"`
	Score     *float64  `json:"score,omitempty"`
	UpdatedAt *string   `json:"updatedAt,omitempty"`
}

// ReaderRect is a rectangle in page-relative coordinates, every field in [0,1]
type ReaderRect struct {
	X      float64 `json:"x" validate:"gte=0"`
	Y      float64 `json:"y" validate:"gte=0"`
	Width  float64 `json:"width" validate:"gte=0"`
	Height float64 `json:"height" validate:"gte=0"`
}

// RectList accepts either a JSON array of rects or a string holding one
type RectList []ReaderRect

// UnmarshalJSON implements json.Unmarshaler
func (l *RectList) UnmarshalJSON(data []byte) error {
	var encoded string
	if err := json.Unmarshal(data, &encoded); err == nil {
		data = []byte(encoded)
	}
	var rects []ReaderRect
	if err := json.Unmarshal(data, &rects); err != nil {
		return fmt.Errorf("rects: %w", err)
	}
	*l = rects
	return nil
}

// Annotation is a highlight stored by the server. Page is 1-based.
type Annotation struct {
	ID           int      `json:"id" validate:"required"`
	BookID       int      `json:"bookId"`
	Page         int      `json:"page" validate:"gte=0"`
	Rects        RectList `json:"rects" validate:"dive"`
	Color        string   `json:"color"`
	SelectedText string   `json:"selectedText"`
	Note         *string  `json:"note,omitempty"`
}

// NoteText returns the note or an empty string
func (a *Annotation) NoteText() string {
	if a.Note == nil {
		return ""
	}
	return *a.Note
}

// UnmarshalJSON accepts rows carrying either bookId or a nested book object.
// Rows with neither get BookID -1.
func (a *Annotation) UnmarshalJSON(data []byte) error {
	type plain Annotation
	var wire struct {
		plain
		BookID *int `json:"bookId"`
		Book   *struct {
			ID int `json:"id"`
		} `json:"book"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*a = Annotation(wire.plain)
	switch {
	case wire.Book != nil:
		a.BookID = wire.Book.ID
	case wire.BookID != nil:
		a.BookID = *wire.BookID
	default:
		a.BookID = -1
	}
	return nil
}

// Translation is a saved translation, joined to annotations by normalized text
type Translation struct {
	ID              int     `json:"id" validate:"required"`
	BookID          *int    `json:"bookId"`
	OriginalText    string  `json:"originalText"`
	TranslatedText  string  `json:"translatedText"`
	ContextSentence *string `json:"contextSentence,omitempty"`
}

// AutoTranslation is the result of a translation provider call
type AutoTranslation struct {
	TranslatedText   string `json:"translatedText"`
	DetectedLanguage string `json:"detectedLanguage" validate:"required"`
}

// CreateAnnotation is the payload for POST /annotations
type CreateAnnotation struct {
	BookID       int          `json:"bookId"`
	Page         int          `json:"page"`
	Rects        []ReaderRect `json:"rects"`
	Color        string       `json:"color"`
	SelectedText string       `json:"selectedText"`
	Note         *string      `json:"note,omitempty"`
}

// UpdateAnnotation is the payload for PUT /annotations/{id}
type UpdateAnnotation struct {
	ID    int     `json:"-"`
	Color *string `json:"color,omitempty"`
	Note  *string `json:"note,omitempty"`
}

// CreateTranslation is the payload for POST /translations
type CreateTranslation struct {
	BookID          int     `json:"bookId"`
	OriginalText    string  `json:"originalText"`
	TranslatedText  string  `json:"translatedText"`
	ContextSentence *string `json:"contextSentence,omitempty"`
}

// ErrorResponse represents an API error body
type ErrorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}
