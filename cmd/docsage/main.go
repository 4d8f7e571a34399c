package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/docsage/docsage/internal/chunker"
	"github.com/docsage/docsage/internal/config"
	logpkg "github.com/docsage/docsage/internal/logger"
	"github.com/docsage/docsage/internal/metrics"
	pdfparser "github.com/docsage/docsage/internal/pdf"
	"github.com/docsage/docsage/internal/store"
	chiTransport "github.com/docsage/docsage/internal/transport/chi"
	openaiGen "github.com/docsage/docsage/internal/transport/openai"
	"github.com/docsage/docsage/internal/transport/tavily"
	indexuc "github.com/docsage/docsage/internal/usecase/index"
	ingestuc "github.com/docsage/docsage/internal/usecase/ingest"
	queryuc "github.com/docsage/docsage/internal/usecase/query"
	"github.com/docsage/docsage/internal/version"
)

func main() {
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting docsage API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("weaviate_url", cfg.Weaviate.URL),
		zap.String("collection", cfg.Weaviate.Collection),
	)

	// Connect to the vector store. With fallback enabled an unreachable
	// store yields an offline handle and the API degrades gracefully.
	ctx := context.Background()
	conn, err := store.Connect(ctx, store.ConnConfig{
		URL:           cfg.Weaviate.URL,
		APIKey:        cfg.Weaviate.APIKey,
		GRPCPort:      cfg.Weaviate.GRPCPort,
		EmbeddingKey:  cfg.Weaviate.EmbeddingKey,
		AllowFallback: cfg.Weaviate.AllowFallback(),
		Logger:        logger,
	})
	if err != nil {
		logger.Fatal("Failed to connect to vector store", zap.Error(err))
	}

	repo := store.NewRepository(conn, cfg.Weaviate.Collection, cfg.Weaviate.EmbeddingKey, logger)
	if conn.Online() {
		if err := repo.EnsureCollection(ctx); err != nil {
			logger.Fatal("Failed to ensure collection", zap.Error(err))
		}
		logger.Info("Connected to vector store", zap.String("collection", repo.Collection()))
	}

	// Register query metrics explicitly (no init())
	metrics.RegisterQueryMetrics()

	generator := openaiGen.NewGenerator(openaiGen.Config{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		Logger:      logger,
	})

	// Pass nil interface (not typed nil pointer!) when web search is not
	// configured so the nil check in the query service holds.
	var web queryuc.WebSearcher
	if cfg.Search.APIKey != "" {
		web = tavily.NewClient(tavily.Config{
			APIKey:  cfg.Search.APIKey,
			BaseURL: cfg.Search.BaseURL,
			Logger:  logger,
		})
	} else {
		logger.Warn("Web search key not set, web queries will be answered without search context")
	}

	chk, err := chunker.New(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap)
	if err != nil {
		logger.Fatal("Invalid chunking configuration", zap.Error(err))
	}

	// Create use case services
	querySvc := queryuc.New(repo, web, generator, logger)
	ingestSvc := ingestuc.New(pdfparser.NewParser(), chk, repo, logger)
	indexSvc := indexuc.New(repo)

	server := chiTransport.NewServer(querySvc, ingestSvc, indexSvc)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(metrics.Middleware())
	server.Register(r, cfg.API.Prefix)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWith(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
