package chi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/docsage/docsage/internal/chunker"
	"github.com/docsage/docsage/internal/domain"
	"github.com/docsage/docsage/internal/logger"
	indexuc "github.com/docsage/docsage/internal/usecase/index"
	ingestuc "github.com/docsage/docsage/internal/usecase/ingest"
	queryuc "github.com/docsage/docsage/internal/usecase/query"
)

// --- Mocks ---

type mockRetriever struct {
	results []domain.SearchResult
	err     error
}

func (m *mockRetriever) Search(_ context.Context, _ string, _ int) ([]domain.SearchResult, error) {
	return m.results, m.err
}

type mockGenerator struct {
	answer string
	err    error
}

func (m *mockGenerator) Generate(_ context.Context, _ string, _ []string) (string, error) {
	return m.answer, m.err
}

type mockParser struct {
	pages []domain.Page
	err   error
}

func (m *mockParser) Extract(_ io.ReaderAt, _ int64) ([]domain.Page, error) {
	return m.pages, m.err
}

type mockWriter struct {
	err error
}

func (m *mockWriter) AddDocuments(_ context.Context, _ []domain.Document) error {
	return m.err
}

type mockInspector struct {
	status  domain.StoreStatus
	objects []domain.StoredObject
}

func (m *mockInspector) Status(_ context.Context) domain.StoreStatus { return m.status }

func (m *mockInspector) ListObjects(_ context.Context, limit int) []domain.StoredObject {
	if limit < len(m.objects) {
		return m.objects[:limit]
	}
	return m.objects
}

func newTestRouter(t *testing.T, srv *Server) chi.Router {
	t.Helper()
	r := chi.NewRouter()
	srv.Register(r, "/api/v1")
	return r
}

func defaultServer(t *testing.T, retr *mockRetriever, gen *mockGenerator, parser *mockParser, writer *mockWriter, insp *mockInspector) *Server {
	t.Helper()
	c, err := chunker.New(1000, 200)
	if err != nil {
		t.Fatalf("chunker.New: %v", err)
	}
	return NewServer(
		queryuc.New(retr, nil, gen, nil),
		ingestuc.New(parser, c, writer, nil),
		indexuc.New(insp),
	)
}

// --- Tests ---

func TestHandleQuery(t *testing.T) {
	retr := &mockRetriever{results: []domain.SearchResult{{
		Text:     "Refunds within 30 days",
		Metadata: map[string]string{"source": "policy.pdf"},
	}}}
	gen := &mockGenerator{answer: "Refunds are accepted within 30 days."}
	srv := defaultServer(t, retr, gen, &mockParser{}, &mockWriter{}, &mockInspector{})
	r := newTestRouter(t, srv)

	body := strings.NewReader(`{"query": "What is our refund policy?"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/query", body)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}

	var resp queryResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Answer != "Refunds are accepted within 30 days." {
		t.Errorf("answer = %q", resp.Answer)
	}
	if len(resp.Sources) != 1 || resp.Sources[0] != "policy.pdf" {
		t.Errorf("sources = %v", resp.Sources)
	}
}

func TestHandleQuery_EmptyQuery(t *testing.T) {
	srv := defaultServer(t, &mockRetriever{}, &mockGenerator{}, &mockParser{}, &mockWriter{}, &mockInspector{})
	r := newTestRouter(t, srv)

	for _, body := range []string{`{"query": ""}`, `{}`} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/query", strings.NewReader(body))
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("body %s: status = %d, want 400", body, rr.Code)
		}
	}
}

func TestHandleQuery_WhitespaceQueryAccepted(t *testing.T) {
	gen := &mockGenerator{answer: "I need more context to answer that."}
	srv := defaultServer(t, &mockRetriever{}, gen, &mockParser{}, &mockWriter{}, &mockInspector{})
	r := newTestRouter(t, srv)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/query", strings.NewReader(`{"query": "   "}`))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; only zero-length queries are rejected", rr.Code)
	}
}

func TestHandleQuery_GenerationFailure(t *testing.T) {
	gen := &mockGenerator{err: domain.ErrExternalService}
	srv := defaultServer(t, &mockRetriever{}, gen, &mockParser{}, &mockWriter{}, &mockInspector{})
	r := newTestRouter(t, srv)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/query", strings.NewReader(`{"query": "plain question"}`))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rr.Code)
	}
}

func multipartUpload(t *testing.T, field, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write(content); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func TestHandleIngestPDF(t *testing.T) {
	parser := &mockParser{pages: []domain.Page{{Number: 1, Text: "refund policy text"}}}
	srv := defaultServer(t, &mockRetriever{}, &mockGenerator{}, parser, &mockWriter{}, &mockInspector{})
	r := newTestRouter(t, srv)

	body, contentType := multipartUpload(t, "file", "policy.pdf", []byte("%PDF-1.4 fake"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ingest/pdf", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}

	var resp ingestResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "success" || resp.Count != 1 {
		t.Errorf("response = %+v", resp)
	}
}

func TestHandleIngestPDF_NoExtractableText(t *testing.T) {
	parser := &mockParser{pages: nil}
	srv := defaultServer(t, &mockRetriever{}, &mockGenerator{}, parser, &mockWriter{}, &mockInspector{})
	r := newTestRouter(t, srv)

	body, contentType := multipartUpload(t, "file", "scanned.pdf", []byte("%PDF-1.4 image-only"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ingest/pdf", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}

	var resp ingestResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "error" || resp.Count != 0 {
		t.Errorf("response = %+v, want status=error count=0 for a text-free document", resp)
	}
}

func TestHandleIngestPDF_RejectsNonPDF(t *testing.T) {
	srv := defaultServer(t, &mockRetriever{}, &mockGenerator{}, &mockParser{}, &mockWriter{}, &mockInspector{})
	r := newTestRouter(t, srv)

	body, contentType := multipartUpload(t, "file", "notes.txt", []byte("plain text"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ingest/pdf", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestHandleIngestPDF_ParseFailure(t *testing.T) {
	parser := &mockParser{err: errors.New("corrupt file")}
	srv := defaultServer(t, &mockRetriever{}, &mockGenerator{}, parser, &mockWriter{}, &mockInspector{})
	r := newTestRouter(t, srv)

	body, contentType := multipartUpload(t, "file", "broken.pdf", []byte("not really a pdf"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ingest/pdf", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rr.Code)
	}

	var resp ingestResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "error" || resp.Count != 0 {
		t.Errorf("response = %+v", resp)
	}
}

func TestHandleStatus(t *testing.T) {
	count := 42
	insp := &mockInspector{status: domain.StoreStatus{
		Collection:  "Documents",
		Online:      true,
		SchemaError: "schema probe timed out",
		ObjectCount: &count,
	}}
	srv := defaultServer(t, &mockRetriever{}, &mockGenerator{}, &mockParser{}, &mockWriter{}, insp)
	r := newTestRouter(t, srv)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/weaviate/status", http.NoBody)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}

	var got domain.StoreStatus
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !got.Online || got.SchemaError == "" || got.ObjectCount == nil || *got.ObjectCount != 42 {
		t.Errorf("status = %+v", got)
	}
}

func TestHandleObjects(t *testing.T) {
	insp := &mockInspector{objects: []domain.StoredObject{
		{ID: "a", Text: "alpha", Metadata: map[string]string{}},
		{ID: "b", Text: "beta", Metadata: map[string]string{}},
	}}
	srv := defaultServer(t, &mockRetriever{}, &mockGenerator{}, &mockParser{}, &mockWriter{}, insp)
	r := newTestRouter(t, srv)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/weaviate/objects?limit=1", http.NoBody)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}

	var resp objectsResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Count != 1 || len(resp.Items) != 1 || resp.Items[0].ID != "a" {
		t.Errorf("response = %+v", resp)
	}
}

func TestHandleObjects_LimitValidation(t *testing.T) {
	srv := defaultServer(t, &mockRetriever{}, &mockGenerator{}, &mockParser{}, &mockWriter{}, &mockInspector{})
	r := newTestRouter(t, srv)

	for _, limit := range []string{"0", "201", "-1", "abc"} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/weaviate/objects?limit="+limit, http.NoBody)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("limit %s: status = %d, want 400", limit, rr.Code)
		}
	}
}

func TestHandlersLogThroughRequestLogger(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	reqLogger := zap.New(core)

	parser := &mockParser{err: errors.New("corrupt file")}
	srv := defaultServer(t, &mockRetriever{}, &mockGenerator{}, parser, &mockWriter{}, &mockInspector{})

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(logger.ContextWith(req.Context(), reqLogger)))
		})
	})
	srv.Register(r, "/api/v1")

	body, contentType := multipartUpload(t, "file", "broken.pdf", []byte("not really a pdf"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ingest/pdf", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rr.Code)
	}
	if got := logs.FilterMessage("pdf ingestion failed").Len(); got != 1 {
		t.Errorf("failure logged %d times through the request logger, want 1", got)
	}
}

func TestHandleHealth(t *testing.T) {
	srv := defaultServer(t, &mockRetriever{}, &mockGenerator{}, &mockParser{}, &mockWriter{}, &mockInspector{})
	r := newTestRouter(t, srv)

	req := httptest.NewRequest(http.MethodGet, "/health", http.NoBody)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"status":"ok"`) {
		t.Errorf("body = %s", rr.Body.String())
	}
}
