package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/justyntemme/readium-t/pkg/models"
)

// DefaultPageSize is the library page size
const DefaultPageSize = 12

// ListBooksParams filters the library listing
type ListBooksParams struct {
	Status models.StatusFilter
	Page   int
	Size   int
	Query  string
}

// ListBooks returns one page of the library
func (c *Client) ListBooks(ctx context.Context, p ListBooksParams) (*models.BookPage, error) {
	if p.Size <= 0 {
		p.Size = DefaultPageSize
	}
	params := url.Values{}
	params.Set("page", strconv.Itoa(p.Page))
	params.Set("size", strconv.Itoa(p.Size))
	if p.Status != "" && p.Status != models.StatusAll {
		params.Set("status", string(p.Status))
	}
	if q := strings.TrimSpace(p.Query); q != "" {
		params.Set("query", q)
	}

	return read[*models.BookPage](ctx, c, "list books", "/books?"+params.Encode())
}

// GetBook returns a single book by ID
func (c *Client) GetBook(ctx context.Context, id int) (*models.Book, error) {
	return read[*models.Book](ctx, c, "get book", fmt.Sprintf("/books/%d", id))
}

// UpdateBookStatus changes the reading status of a book
func (c *Client) UpdateBookStatus(ctx context.Context, bookID int, status models.BookStatus) error {
	return c.exec(ctx, "update status", http.MethodPatch, "/books/status", map[string]interface{}{
		"bookId": bookID,
		"status": status,
	})
}

// UpdateProgress saves the last read page. In keepalive mode the request is
// detached from ctx cancellation so it survives the caller tearing down.
func (c *Client) UpdateProgress(ctx context.Context, bookID, page int, keepalive bool) error {
	if keepalive {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.WithoutCancel(ctx), keepaliveTimeout)
		defer cancel()
	}
	err := c.exec(ctx, "update progress", http.MethodPatch, fmt.Sprintf("/books/%d/progress", bookID), map[string]int{
		"page": page,
	})
	if err != nil && keepalive {
		c.logger.Warn("keepalive progress request failed", "book", bookID, "page", page, "err", err)
	}
	return err
}

// TriggerOcr asks the server to run OCR on a book
func (c *Client) TriggerOcr(ctx context.Context, bookID int) error {
	return c.exec(ctx, "trigger ocr", http.MethodPost, fmt.Sprintf("/books/%d/ocr", bookID), nil)
}

// GetOcrStatus returns the OCR pipeline state of a book
func (c *Client) GetOcrStatus(ctx context.Context, bookID int) (*models.OcrStatusResponse, error) {
	return read[*models.OcrStatusResponse](ctx, c, "ocr status", fmt.Sprintf("/books/%d/ocr-status", bookID))
}

// GetTextLayerQuality returns the server's text-layer assessment of a book
func (c *Client) GetTextLayerQuality(ctx context.Context, bookID int) (*models.OcrStatusResponse, error) {
	return read[*models.OcrStatusResponse](ctx, c, "text layer quality", fmt.Sprintf("/books/%d/text-layer-quality", bookID))
}

// BookFileURL returns the document URL. version only busts caches.
func (c *Client) BookFileURL(bookID int, version string) string {
	base := fmt.Sprintf("%s/books/%d/file", c.baseURL, bookID)
	if version == "" {
		return base
	}
	return base + "?v=" + url.QueryEscape(version)
}

// DownloadBookFile fetches the document bytes
func (c *Client) DownloadBookFile(ctx context.Context, bookID int, version string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BookFileURL(bookID, version), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download book: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("download book: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, newAPIError("download book", resp.StatusCode, data)
	}
	return data, nil
}

// UploadBook uploads a document. onProgress receives percentages in [0,100].
func (c *Client) UploadBook(ctx context.Context, filePath string, onProgress func(percent int)) (*models.Book, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", filepath.Base(filePath))
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("failed to copy file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close writer: %w", err)
	}

	body := &progressReader{r: &buf, total: int64(buf.Len()), onProgress: onProgress}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/books", body)
	if err != nil {
		return nil, err
	}
	req.ContentLength = body.total
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload book: %w", err)
	}
	return parseResponse[*models.Book](c, "upload book", resp)
}

type progressReader struct {
	r          io.Reader
	total      int64
	read       int64
	last       int
	onProgress func(int)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.read += int64(n)
	if p.onProgress != nil && p.total > 0 {
		percent := int(p.read * 100 / p.total)
		if percent != p.last {
			p.last = percent
			p.onProgress(percent)
		}
	}
	return n, err
}
