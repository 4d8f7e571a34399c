// Package chi implements the HTTP API surface on the chi router.
package chi

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/docsage/docsage/internal/domain"
	"github.com/docsage/docsage/internal/logger"
	indexuc "github.com/docsage/docsage/internal/usecase/index"
	ingestuc "github.com/docsage/docsage/internal/usecase/ingest"
	queryuc "github.com/docsage/docsage/internal/usecase/query"
)

const (
	maxUploadBytes     = 32 << 20
	defaultObjectLimit = 20
	maxObjectLimit     = 200
)

// Server exposes the query, ingestion, and store introspection endpoints.
// Handlers log through the request-scoped logger stored in the request context
// by the wide-event middleware.
type Server struct {
	query  *queryuc.Service
	ingest *ingestuc.Service
	index  *indexuc.Service
}

// NewServer creates an HTTP API server.
func NewServer(query *queryuc.Service, ingest *ingestuc.Service, index *indexuc.Service) *Server {
	return &Server{query: query, ingest: ingest, index: index}
}

// Register mounts all routes: the API surface under prefix, health and
// metrics at the root.
func (s *Server) Register(r chi.Router, prefix string) {
	r.Route(prefix, func(r chi.Router) {
		r.Post("/query", s.handleQuery)
		r.Post("/ingest/pdf", s.handleIngestPDF)
		r.Get("/weaviate/status", s.handleStatus)
		r.Get("/weaviate/objects", s.handleObjects)
	})
	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
}

type queryRequest struct {
	Query string `json:"query"`
}

type queryResponse struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "Query must not be empty")
		return
	}

	st, err := s.query.Run(r.Context(), req.Query)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	sources := st.Sources
	if sources == nil {
		sources = []string{}
	}
	writeJSON(w, http.StatusOK, queryResponse{Answer: st.Response, Sources: sources})
}

type ingestResponse struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

func (s *Server) handleIngestPDF(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid multipart upload: "+err.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "Missing file upload")
		return
	}
	defer func() { _ = file.Close() }()

	if !strings.HasSuffix(strings.ToLower(header.Filename), ".pdf") {
		writeError(w, http.StatusBadRequest, "validation_failed", "Only PDF files are supported")
		return
	}

	// The PDF reader needs random access; buffer the upload.
	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to read upload")
		return
	}

	count, err := s.ingest.FromPDF(r.Context(), header.Filename, bytes.NewReader(data), int64(len(data)))
	if err != nil {
		logger.FromContext(r.Context()).Error("pdf ingestion failed",
			zap.String("filename", header.Filename),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, ingestResponse{Status: "error", Count: 0})
		return
	}

	if count == 0 {
		writeJSON(w, http.StatusOK, ingestResponse{Status: "error", Count: 0})
		return
	}
	writeJSON(w, http.StatusOK, ingestResponse{Status: "success", Count: count})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.index.Status(r.Context()))
}

type objectsResponse struct {
	Count int                   `json:"count"`
	Items []domain.StoredObject `json:"items"`
}

func (s *Server) handleObjects(w http.ResponseWriter, r *http.Request) {
	limit := defaultObjectLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxObjectLimit {
			writeError(w, http.StatusBadRequest, "validation_failed",
				"limit must be between 1 and "+strconv.Itoa(maxObjectLimit))
			return
		}
		limit = n
	}

	items := s.index.Objects(r.Context(), limit)
	if items == nil {
		items = []domain.StoredObject{}
	}
	writeJSON(w, http.StatusOK, objectsResponse{Count: len(items), Items: items})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// handleDomainError maps sentinel errors to status codes without exposing
// internals for unexpected failures.
func handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrExternalService):
		logger.FromContext(r.Context()).Error("external service error", zap.Error(err))
		writeError(w, http.StatusBadGateway, "external_service_error", "upstream service failed")
	default:
		logger.FromContext(r.Context()).Error("internal error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}
