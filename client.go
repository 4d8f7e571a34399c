// Package docsage provides a small HTTP client for the docsage API.
//
// The client covers the full surface: asking questions, ingesting PDF
// documents and inspecting the vector store.
package docsage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/docsage/docsage/internal/domain"
)

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrNotFound        = domain.ErrNotFound
	ErrValidation      = domain.ErrValidation
	ErrExternalService = domain.ErrExternalService
)

const defaultTimeout = 120 * time.Second

// Client calls a running docsage API server.
type Client struct {
	baseURL string
	prefix  string
	httpc   *http.Client
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(httpc *http.Client) Option {
	return func(c *Client) { c.httpc = httpc }
}

// WithTimeout sets the request timeout on the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpc.Timeout = d }
}

// WithPrefix overrides the API path prefix (default /api/v1).
func WithPrefix(prefix string) Option {
	return func(c *Client) { c.prefix = strings.TrimRight(prefix, "/") }
}

// New creates a client for the docsage API at baseURL,
// e.g. http://localhost:8000.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		prefix:  "/api/v1",
		httpc:   &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Answer is the response to a question.
type Answer struct {
	Text    string   `json:"answer"`
	Sources []string `json:"sources"`
}

// IngestReport describes the outcome of a document upload.
type IngestReport struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

// ObjectPage is a listing of stored objects.
type ObjectPage struct {
	Count int                   `json:"count"`
	Items []domain.StoredObject `json:"items"`
}

// Query asks a question and returns the synthesized answer with its sources.
func (c *Client) Query(ctx context.Context, query string) (Answer, error) {
	body, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		return Answer{}, fmt.Errorf("docsage: encode query: %w", err)
	}

	var out Answer
	if err := c.do(ctx, http.MethodPost, c.prefix+"/query", "application/json", bytes.NewReader(body), &out); err != nil {
		return Answer{}, err
	}
	return out, nil
}

// IngestPDF uploads a PDF document for chunking and indexing. filename is
// recorded as the source of every produced chunk and must end in .pdf.
func (c *Client) IngestPDF(ctx context.Context, filename string, content io.Reader) (IngestReport, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return IngestReport{}, fmt.Errorf("docsage: build upload: %w", err)
	}
	if _, err := io.Copy(fw, content); err != nil {
		return IngestReport{}, fmt.Errorf("docsage: read document: %w", err)
	}
	if err := mw.Close(); err != nil {
		return IngestReport{}, fmt.Errorf("docsage: build upload: %w", err)
	}

	var out IngestReport
	if err := c.do(ctx, http.MethodPost, c.prefix+"/ingest/pdf", mw.FormDataContentType(), &buf, &out); err != nil {
		return IngestReport{}, err
	}
	return out, nil
}

// Status reports vector store connectivity, schema and object count.
func (c *Client) Status(ctx context.Context) (domain.StoreStatus, error) {
	var out domain.StoreStatus
	if err := c.do(ctx, http.MethodGet, c.prefix+"/weaviate/status", "", nil, &out); err != nil {
		return domain.StoreStatus{}, err
	}
	return out, nil
}

// Objects lists up to limit recently stored objects (1..200).
func (c *Client) Objects(ctx context.Context, limit int) (ObjectPage, error) {
	path := c.prefix + "/weaviate/objects"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out ObjectPage
	if err := c.do(ctx, http.MethodGet, path, "", nil, &out); err != nil {
		return ObjectPage{}, err
	}
	return out, nil
}

// Health checks that the API server is up.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", "", nil, nil)
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("docsage: build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("docsage: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("docsage: decode response: %w", err)
	}
	return nil
}

// decodeError maps API error responses back onto the sentinel errors so
// callers can use errors.Is just like server-side code.
func decodeError(resp *http.Response) error {
	var apiErr apiError
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err := json.Unmarshal(raw, &apiErr); err != nil || apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(raw))
	}

	var sentinel error
	switch resp.StatusCode {
	case http.StatusBadRequest:
		sentinel = domain.ErrValidation
	case http.StatusNotFound:
		sentinel = domain.ErrNotFound
	case http.StatusBadGateway:
		sentinel = domain.ErrExternalService
	}
	if sentinel != nil {
		return fmt.Errorf("docsage: %w: %s", sentinel, apiErr.Message)
	}
	return fmt.Errorf("docsage: unexpected status %d: %s", resp.StatusCode, apiErr.Message)
}
