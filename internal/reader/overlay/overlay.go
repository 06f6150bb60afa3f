// Package overlay derives translation overlays from annotations and saved
// translations.
package overlay

import (
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/justyntemme/readium-t/pkg/models"
)

// NormalizeText is the join key between annotations and translations
func NormalizeText(s string) string {
	return cases.Lower(language.Und).String(strings.TrimSpace(s))
}

// byText indexes translations by normalized original text. Later entries win.
func byText(translations []models.Translation) map[string]models.Translation {
	index := make(map[string]models.Translation, len(translations))
	for _, t := range translations {
		index[NormalizeText(t.OriginalText)] = t
	}
	return index
}

// Build returns one overlay per rect of every annotation whose selected text
// has a saved translation, in annotation order.
func Build(annotations []models.Annotation, translations []models.Translation) []models.TranslationOverlay {
	if len(annotations) == 0 || len(translations) == 0 {
		return nil
	}
	index := byText(translations)

	var overlays []models.TranslationOverlay
	for _, a := range annotations {
		t, ok := index[NormalizeText(a.SelectedText)]
		if !ok {
			continue
		}
		for i, rect := range a.Rects {
			overlays = append(overlays, models.TranslationOverlay{
				AnnotationID: a.ID,
				Key:          strconv.Itoa(a.ID) + "-" + strconv.Itoa(i),
				Page:         a.Page,
				Rect:         rect,
				Translation:  t.TranslatedText,
			})
		}
	}
	return overlays
}

// AnnotationIDs returns the set of annotations that carry an overlay
func AnnotationIDs(overlays []models.TranslationOverlay) map[int]bool {
	ids := make(map[int]bool, len(overlays))
	for _, o := range overlays {
		ids[o.AnnotationID] = true
	}
	return ids
}

// Dictionary maps normalized original text to translated text
func Dictionary(translations []models.Translation) map[string]string {
	dict := make(map[string]string, len(translations))
	for key, t := range byText(translations) {
		dict[key] = t.TranslatedText
	}
	return dict
}

// ForPage filters overlays to one 1-based page
func ForPage(overlays []models.TranslationOverlay, page int) []models.TranslationOverlay {
	var out []models.TranslationOverlay
	for _, o := range overlays {
		if o.Page == page {
			out = append(out, o)
		}
	}
	return out
}
