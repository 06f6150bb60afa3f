package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/justyntemme/readium-t/pkg/models"
)

// ListTranslations returns the saved translations of a book
func (c *Client) ListTranslations(ctx context.Context, bookID int) ([]models.Translation, error) {
	return read[[]models.Translation](ctx, c, "list translations", fmt.Sprintf("/books/%d/translations", bookID))
}

// CreateTranslation saves a translation
func (c *Client) CreateTranslation(ctx context.Context, cmd models.CreateTranslation) (*models.Translation, error) {
	return mutate[*models.Translation](ctx, c, "create translation", http.MethodPost, "/translations", cmd)
}

// AutoTranslate asks the server to translate text. Blank text short-circuits
// to an empty result with language "unknown". The call has no side effects on
// the server, so it is retried like a read.
func (c *Client) AutoTranslate(ctx context.Context, text, targetLanguage string) (*models.AutoTranslation, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return &models.AutoTranslation{DetectedLanguage: "unknown"}, nil
	}
	return retry[*models.AutoTranslation](ctx, c, "auto translate", http.MethodPost, "/translations/auto", map[string]string{
		"text":           text,
		"targetLanguage": targetLanguage,
	})
}
