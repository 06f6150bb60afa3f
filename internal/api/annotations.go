package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/justyntemme/readium-t/pkg/models"
)

// Whole-book listing window
const (
	annotationResultPage = 0
	annotationPageSize   = 500
)

// ListAnnotations returns every annotation of a book
func (c *Client) ListAnnotations(ctx context.Context, bookID int) ([]models.Annotation, error) {
	path := fmt.Sprintf("/books/%d/annotations?resultPage=%d&size=%d", bookID, annotationResultPage, annotationPageSize)
	return read[[]models.Annotation](ctx, c, "list annotations", path)
}

// ListPageAnnotations returns the annotations of one 1-based page
func (c *Client) ListPageAnnotations(ctx context.Context, bookID, page int) ([]models.Annotation, error) {
	path := fmt.Sprintf("/annotations/book/%d/page/%d?resultPage=%d&size=%d", bookID, page, annotationResultPage, annotationPageSize)
	return read[[]models.Annotation](ctx, c, "list page annotations", path)
}

// CreateAnnotation stores a new highlight
func (c *Client) CreateAnnotation(ctx context.Context, cmd models.CreateAnnotation) (*models.Annotation, error) {
	return mutate[*models.Annotation](ctx, c, "create annotation", http.MethodPost, "/annotations", cmd)
}

// UpdateAnnotation changes the color or note of a highlight
func (c *Client) UpdateAnnotation(ctx context.Context, cmd models.UpdateAnnotation) (*models.Annotation, error) {
	return mutate[*models.Annotation](ctx, c, "update annotation", http.MethodPut, fmt.Sprintf("/annotations/%d", cmd.ID), cmd)
}

// DeleteAnnotation removes a highlight
func (c *Client) DeleteAnnotation(ctx context.Context, id int) error {
	return c.exec(ctx, "delete annotation", http.MethodDelete, fmt.Sprintf("/annotations/%d", id), nil)
}
