package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-playground/validator/v10"

	"github.com/justyntemme/readium-t/internal/logging"
	"github.com/justyntemme/readium-t/pkg/models"
)

// keepaliveTimeout bounds requests that must outlive their caller
const keepaliveTimeout = 5 * time.Second

// Client is the HTTP client for the readium API
type Client struct {
	baseURL    string
	httpClient *http.Client
	validate   *validator.Validate
	logger     *log.Logger
}

// NewClient creates a new API client
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logging.For("http-client"),
	}
}

// BaseURL returns the server URL the client talks to
func (c *Client) BaseURL() string {
	return c.baseURL
}

// APIError is returned for responses with status >= 400
type APIError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: HTTP %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: HTTP %d: %s", e.Op, e.StatusCode, e.Message)
}

// Temporary reports whether a read may be retried
func (e *APIError) Temporary() bool {
	return e.StatusCode >= 500
}

// ParseError is returned when a response body does not match its schema
type ParseError struct {
	Op  string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: invalid response: %v", e.Op, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// request makes an HTTP request to the API
func (c *Client) request(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	return c.httpClient.Do(req)
}

// read performs a GET and retries once on transport errors and 5xx responses
func read[T any](ctx context.Context, c *Client, op, path string) (T, error) {
	return retry[T](ctx, c, op, http.MethodGet, path, nil)
}

// retry sends a request that is safe to repeat, retrying once on transport
// errors and 5xx responses
func retry[T any](ctx context.Context, c *Client, op, method, path string, body interface{}) (T, error) {
	var zero T
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			c.logger.Debug("retrying request", "op", op, "err", lastErr)
		}
		resp, err := c.request(ctx, method, path, body)
		if err != nil {
			if ctx.Err() != nil {
				return zero, fmt.Errorf("%s: %w", op, err)
			}
			lastErr = fmt.Errorf("%s: %w", op, err)
			continue
		}
		result, err := parseResponse[T](c, op, resp)
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Temporary() {
			lastErr = err
			continue
		}
		return result, err
	}
	return zero, lastErr
}

// mutate sends a write request once and decodes the response
func mutate[T any](ctx context.Context, c *Client, op, method, path string, body interface{}) (T, error) {
	var zero T
	resp, err := c.request(ctx, method, path, body)
	if err != nil {
		return zero, fmt.Errorf("%s: %w", op, err)
	}
	return parseResponse[T](c, op, resp)
}

// exec sends a write request whose response body is ignored
func (c *Client) exec(ctx context.Context, op, method, path string, body interface{}) error {
	resp, err := c.request(ctx, method, path, body)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(resp.Body)
		return newAPIError(op, resp.StatusCode, data)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// parseResponse reads, unmarshals and validates the response body
func parseResponse[T any](c *Client, op string, resp *http.Response) (T, error) {
	var result T
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return result, fmt.Errorf("%s: %w", op, err)
	}

	if resp.StatusCode >= 400 {
		return result, newAPIError(op, resp.StatusCode, body)
	}

	if err := json.Unmarshal(body, &result); err != nil {
		return result, &ParseError{Op: op, Err: err}
	}
	if err := c.check(result); err != nil {
		c.logger.Error("schema validation failed", "op", op, "err", err)
		return result, &ParseError{Op: op, Err: err}
	}

	return result, nil
}

// check validates structs and slices of structs against their tags
func (c *Client) check(v interface{}) error {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return errors.New("empty body")
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Struct:
		return c.validate.Struct(rv.Interface())
	case reflect.Slice:
		if rv.IsNil() {
			return errors.New("expected array, got null")
		}
		for i := 0; i < rv.Len(); i++ {
			if err := c.check(rv.Index(i).Interface()); err != nil {
				return fmt.Errorf("[%d]: %w", i, err)
			}
		}
		return nil
	default:
		return nil
	}
}

func newAPIError(op string, status int, body []byte) *APIError {
	var errResp models.ErrorResponse
	msg := strings.TrimSpace(string(body))
	if err := json.Unmarshal(body, &errResp); err == nil {
		switch {
		case errResp.Message != "":
			msg = errResp.Message
		case errResp.Error != "":
			msg = errResp.Error
		}
	}
	return &APIError{Op: op, StatusCode: status, Message: msg}
}

// Health checks if the server is available
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.request(ctx, http.MethodGet, "/books?page=0&size=1", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server unhealthy: status %d", resp.StatusCode)
	}
	return nil
}
