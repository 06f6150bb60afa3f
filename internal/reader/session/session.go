// Package session is the reader's interaction state machine. Exactly one of
// Idle, PendingSelection, TranslationInput, ActiveTranslation or
// AnnotationNote is current at any time.
package session

import (
	"context"
	"errors"
	"net/url"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/justyntemme/readium-t/internal/logging"
	"github.com/justyntemme/readium-t/internal/reader/overlay"
	"github.com/justyntemme/readium-t/pkg/models"
)

const (
	DefaultTargetLanguage = "pt"
	TranslationNoteColor  = "#FDE68A"
	UnknownLanguage       = "unknown"
)

// ErrWrongState is returned when an action does not apply to the current state
var ErrWrongState = errors.New("action not available in current state")

// State is one of the session states below
type State interface {
	isState()
}

// Idle means nothing is pending
type Idle struct{}

// PendingSelection waits for a highlight color, translate or dismiss
type PendingSelection struct {
	Selection models.PendingSelection
}

// TranslationInput edits a translation draft for a selection
type TranslationInput struct {
	Position         models.Point
	OriginalText     string
	TranslatedText   string
	DetectedLanguage string
	// FallbackURL is set when the provider could not translate
	FallbackURL string
	Page        int
	Rects       []models.ReaderRect
}

// ActiveTranslation shows a saved translation
type ActiveTranslation struct {
	Overlay  models.TranslationOverlay
	Position models.Point
}

// AnnotationNote edits the note of an existing highlight
type AnnotationNote struct {
	Annotation models.Annotation
	Position   models.Point
	Saving     bool
	Deleting   bool
}

func (Idle) isState()              {}
func (PendingSelection) isState()  {}
func (TranslationInput) isState()  {}
func (ActiveTranslation) isState() {}
func (AnnotationNote) isState()    {}

// Level grades a notice
type Level int

const (
	LevelInfo Level = iota
	LevelWarn
	LevelError
)

// Notice is a transient message for the user
type Notice struct {
	Level   Level
	Message string
	URL     string
}

// Annotations is the annotation command side
type Annotations interface {
	Create(ctx context.Context, cmd models.CreateAnnotation) (*models.Annotation, error)
	Update(ctx context.Context, bookID int, cmd models.UpdateAnnotation) (*models.Annotation, error)
	Delete(ctx context.Context, bookID, id int) error
}

// Translator produces a translation draft
type Translator interface {
	Translate(ctx context.Context, text, targetLanguage string) (*models.AutoTranslation, error)
}

// Translations persists translations
type Translations interface {
	CreateTranslation(ctx context.Context, cmd models.CreateTranslation) (*models.Translation, error)
}

// Config wires a Session
type Config struct {
	BookID         int
	TargetLanguage string
	Annotations    Annotations
	Translator     Translator
	Translations   Translations
	// Clipboard writes text to the system clipboard; nil disables copying
	Clipboard func(string) error
	// Notify receives transient notices; may be nil
	Notify func(Notice)
	// OnChange receives every new state; may be nil
	OnChange func(State)
}

// Session holds the current state of one open book
type Session struct {
	cfg    Config
	logger *log.Logger

	mu      sync.Mutex
	state   State
	version uint64
}

// New returns an idle session
func New(cfg Config) *Session {
	if cfg.TargetLanguage == "" {
		cfg.TargetLanguage = DefaultTargetLanguage
	}
	return &Session{cfg: cfg, logger: logging.For("reader"), state: Idle{}}
}

// FallbackURL links to a manual translation of text
func FallbackURL(text, targetLanguage string) string {
	return "https://translate.google.com/?sl=auto&tl=" + targetLanguage +
		"&text=" + url.QueryEscape(text) + "&op=translate"
}

// State returns the current state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) snapshot() (State, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.version
}

// transition moves to next only if no other transition happened since from
func (s *Session) transition(from uint64, next State) (uint64, bool) {
	s.mu.Lock()
	if s.version != from {
		s.mu.Unlock()
		return 0, false
	}
	s.version++
	s.state = next
	v := s.version
	s.mu.Unlock()

	if s.cfg.OnChange != nil {
		s.cfg.OnChange(next)
	}
	return v, true
}

func (s *Session) set(next State) {
	_, v := s.snapshot()
	for {
		if _, ok := s.transition(v, next); ok {
			return
		}
		_, v = s.snapshot()
	}
}

func (s *Session) notify(level Level, msg, link string) {
	if s.cfg.Notify != nil {
		s.cfg.Notify(Notice{Level: level, Message: msg, URL: link})
	}
}

// SelectionResolved enters PendingSelection, or leaves it when sel is nil
func (s *Session) SelectionResolved(sel *models.PendingSelection) {
	if sel != nil {
		s.set(PendingSelection{Selection: *sel})
		return
	}
	st, v := s.snapshot()
	if _, ok := st.(PendingSelection); ok {
		s.transition(v, Idle{})
	}
}

// CreateHighlight stores the pending selection with color
func (s *Session) CreateHighlight(ctx context.Context, color string) error {
	st, v := s.snapshot()
	pending, ok := st.(PendingSelection)
	if !ok {
		return ErrWrongState
	}
	sel := pending.Selection

	_, err := s.cfg.Annotations.Create(ctx, models.CreateAnnotation{
		BookID:       s.cfg.BookID,
		Page:         sel.Page,
		Rects:        sel.Rects,
		Color:        color,
		SelectedText: sel.Text,
	})
	if err != nil {
		s.logger.Error("failed to create highlight", "err", err)
		s.notify(LevelError, "Failed to save highlight.", "")
		return err
	}
	s.transition(v, Idle{})
	return nil
}

// StartTranslation asks the provider for a draft and opens the input.
// Provider failures still open the input with an empty draft.
func (s *Session) StartTranslation(ctx context.Context) {
	st, v := s.snapshot()
	pending, ok := st.(PendingSelection)
	if !ok {
		return
	}
	sel := pending.Selection
	fallback := FallbackURL(sel.Text, s.cfg.TargetLanguage)

	input := TranslationInput{
		Position:     sel.PopupPosition,
		OriginalText: sel.Text,
		Page:         sel.Page,
		Rects:        sel.Rects,
	}

	result, err := s.cfg.Translator.Translate(ctx, sel.Text, s.cfg.TargetLanguage)
	switch {
	case err != nil:
		s.logger.Error("automatic translation failed", "err", err)
		s.notify(LevelError, "Automatic translation failed. You can fill it in manually.", fallback)
		input.DetectedLanguage = UnknownLanguage
		input.FallbackURL = fallback
	default:
		original := overlay.NormalizeText(sel.Text)
		didNotTranslate := original != "" && overlay.NormalizeText(result.TranslatedText) == original
		input.DetectedLanguage = result.DetectedLanguage
		if didNotTranslate {
			s.notify(LevelWarn, "Could not translate this passage automatically. You can fill it in manually.", fallback)
			input.FallbackURL = fallback
		} else {
			input.TranslatedText = result.TranslatedText
		}
	}

	s.transition(v, input)
}

// SaveTranslation persists the translation and its anchor highlight. The
// input stays open if either call fails.
func (s *Session) SaveTranslation(ctx context.Context, translated string) error {
	st, v := s.snapshot()
	input, ok := st.(TranslationInput)
	if !ok {
		return ErrWrongState
	}

	_, err := s.cfg.Translations.CreateTranslation(ctx, models.CreateTranslation{
		BookID:         s.cfg.BookID,
		OriginalText:   overlay.NormalizeText(input.OriginalText),
		TranslatedText: translated,
	})
	if err != nil {
		s.logger.Error("failed to save translation", "err", err)
		s.notify(LevelError, "Failed to save translation.", "")
		return err
	}

	note := translated
	_, err = s.cfg.Annotations.Create(ctx, models.CreateAnnotation{
		BookID:       s.cfg.BookID,
		Page:         input.Page,
		Rects:        input.Rects,
		Color:        TranslationNoteColor,
		SelectedText: input.OriginalText,
		Note:         &note,
	})
	if err != nil {
		s.logger.Error("failed to save translation highlight", "err", err)
		s.notify(LevelError, "Failed to save translation highlight.", "")
		return err
	}

	s.transition(v, Idle{})
	return nil
}

// OpenTranslation shows a saved translation overlay
func (s *Session) OpenTranslation(o models.TranslationOverlay, at models.Point) {
	s.set(ActiveTranslation{Overlay: o, Position: at})
}

// OpenAnnotationNote opens the note editor of a highlight
func (s *Session) OpenAnnotationNote(a models.Annotation, at models.Point) {
	s.set(AnnotationNote{Annotation: a, Position: at})
}

// SaveNote updates the note of the open highlight
func (s *Session) SaveNote(ctx context.Context, note string) error {
	return s.noteMutation(ctx, false, func(a models.Annotation) error {
		_, err := s.cfg.Annotations.Update(ctx, s.cfg.BookID, models.UpdateAnnotation{ID: a.ID, Note: &note})
		return err
	}, "Failed to save note.")
}

// DeleteAnnotation removes the open highlight
func (s *Session) DeleteAnnotation(ctx context.Context) error {
	return s.noteMutation(ctx, true, func(a models.Annotation) error {
		return s.cfg.Annotations.Delete(ctx, s.cfg.BookID, a.ID)
	}, "Failed to remove highlight.")
}

func (s *Session) noteMutation(ctx context.Context, deleting bool, run func(models.Annotation) error, failure string) error {
	st, v := s.snapshot()
	note, ok := st.(AnnotationNote)
	if !ok || note.Saving || note.Deleting {
		return ErrWrongState
	}

	busy := note
	busy.Saving = !deleting
	busy.Deleting = deleting
	v, ok = s.transition(v, busy)
	if !ok {
		return ErrWrongState
	}

	if err := run(note.Annotation); err != nil {
		s.logger.Error("annotation note mutation failed", "annotation", note.Annotation.ID, "err", err)
		s.notify(LevelError, failure, "")
		s.transition(v, note)
		return err
	}
	s.transition(v, Idle{})
	return nil
}

// CopySelection copies the pending selection text to the clipboard
func (s *Session) CopySelection() error {
	pending, ok := s.State().(PendingSelection)
	if !ok {
		return ErrWrongState
	}
	if s.cfg.Clipboard == nil {
		return errors.New("clipboard unavailable")
	}
	if err := s.cfg.Clipboard(pending.Selection.Text); err != nil {
		s.logger.Warn("copy failed", "err", err)
		s.notify(LevelError, "Could not copy the selection.", "")
		return err
	}
	s.notify(LevelInfo, "Selection copied.", "")
	return nil
}

// Dismiss returns to Idle
func (s *Session) Dismiss() {
	s.set(Idle{})
}
