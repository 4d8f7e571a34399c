// Package store provides the Weaviate-backed retrieval layer: a dual-port
// connection manager with a degraded offline mode, hybrid search, idempotent
// document insertion, and status reporting.
package store

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/weaviate/weaviate-go-client/v4/weaviate"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/auth"
	wvgrpc "github.com/weaviate/weaviate-go-client/v4/weaviate/grpc"
	"go.uber.org/zap"

	"github.com/docsage/docsage/internal/domain"
)

const (
	initTimeout   = 30 * time.Second
	queryTimeout  = 60 * time.Second
	insertTimeout = 60 * time.Second
)

// ConnConfig holds the store connection settings.
type ConnConfig struct {
	// URL of the store instance, e.g. http://localhost:8080.
	URL string
	// APIKey authenticates against the store when set.
	APIKey string
	// GRPCPort overrides the derived streaming port when non-zero.
	GRPCPort int
	// EmbeddingKey is forwarded to the store so its vectorizer module can
	// call the embedding provider.
	EmbeddingKey string
	// AllowFallback degrades to offline mode instead of failing when the
	// store is unreachable.
	AllowFallback bool

	Logger *zap.Logger
}

// Conn owns the live store session. A nil client means the handle is offline;
// offline is terminal for the life of the handle, no reconnection is attempted.
type Conn struct {
	client *weaviate.Client
	logger *zap.Logger
}

// Connect resolves the dual-port endpoints from the URL and establishes a
// session, verifying readiness within the init timeout. On failure it either
// returns an offline handle (AllowFallback) or ErrStoreUnavailable.
func Connect(ctx context.Context, cfg ConnConfig) (*Conn, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	ep := resolveEndpoints(cfg.URL, cfg.GRPCPort)

	scheme := "http"
	if ep.secure {
		scheme = "https"
	}
	wcfg := weaviate.Config{
		Host:             ep.httpAddr(),
		Scheme:           scheme,
		ConnectionClient: &http.Client{Timeout: queryTimeout},
		GrpcConfig:       &wvgrpc.Config{Host: ep.grpcAddr(), Secured: ep.secure},
	}
	if cfg.APIKey != "" {
		wcfg.AuthConfig = auth.ApiKey{Value: cfg.APIKey}
	}
	if cfg.EmbeddingKey != "" {
		wcfg.Headers = map[string]string{"X-OpenAI-Api-Key": cfg.EmbeddingKey}
	}

	client, err := weaviate.NewClient(wcfg)
	if err == nil {
		readyCtx, cancel := context.WithTimeout(ctx, initTimeout)
		defer cancel()

		var ready bool
		ready, err = client.Misc().ReadyChecker().Do(readyCtx)
		if err == nil && !ready {
			err = fmt.Errorf("store at %s reported not ready", cfg.URL)
		}
	}
	if err != nil {
		if cfg.AllowFallback {
			logger.Warn("unable to connect to store, continuing in offline mode",
				zap.String("url", cfg.URL),
				zap.Error(err),
			)
			return &Conn{logger: logger}, nil
		}
		return nil, fmt.Errorf("%w: connect to %s: %v", domain.ErrStoreUnavailable, cfg.URL, err)
	}

	logger.Info("connected to store",
		zap.String("http_addr", ep.httpAddr()),
		zap.String("grpc_addr", ep.grpcAddr()),
		zap.Bool("secure", ep.secure),
	)
	return &Conn{client: client, logger: logger}, nil
}

// Online reports whether the handle holds a live session.
func (c *Conn) Online() bool { return c.client != nil }

// endpoints is the resolved dual-port address of a store instance: a primary
// request port plus a streaming port for high-throughput queries.
type endpoints struct {
	host     string
	httpPort string
	grpcPort string
	secure   bool
}

func (e endpoints) httpAddr() string { return e.host + ":" + e.httpPort }
func (e endpoints) grpcAddr() string { return e.host + ":" + e.grpcPort }

// resolveEndpoints maps a store URL and an optional streaming-port override to
// concrete addresses. Secure iff https; a missing port defaults to 443
// (secure) or 8080 (insecure). An insecure loopback host without an explicit
// override always resolves to 8080/50051, the store's standard local setup.
// Otherwise the streaming port is the override, or primary+1 when insecure and
// numeric, or 50051.
func resolveEndpoints(rawURL string, grpcPortOverride int) endpoints {
	secure := strings.HasPrefix(rawURL, "https://")
	trimmed := strings.TrimPrefix(strings.TrimPrefix(rawURL, "https://"), "http://")
	trimmed = strings.TrimSuffix(trimmed, "/")

	host, port, hasPort := strings.Cut(trimmed, ":")
	if !hasPort {
		if secure {
			port = "443"
		} else {
			port = "8080"
		}
	}

	if (host == "localhost" || host == "127.0.0.1") && !secure && grpcPortOverride == 0 {
		return endpoints{host: host, httpPort: "8080", grpcPort: "50051"}
	}

	grpcPort := "50051"
	switch {
	case grpcPortOverride > 0:
		grpcPort = strconv.Itoa(grpcPortOverride)
	case !secure:
		if n, err := strconv.Atoi(port); err == nil {
			grpcPort = strconv.Itoa(n + 1)
		}
	}

	return endpoints{host: host, httpPort: port, grpcPort: grpcPort, secure: secure}
}
