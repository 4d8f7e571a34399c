package config

import (
	"errors"
	"testing"

	"github.com/docsage/docsage/internal/domain"
)

func validConfig() Config {
	cfg := Config{
		HTTP: HTTPConfig{Port: 8000},
		LLM:  LLMConfig{APIKey: "test-key"},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestValidate_MissingModelKey(t *testing.T) {
	cfg := validConfig()
	cfg.LLM.APIKey = ""

	err := cfg.Validate()
	if !errors.Is(err, domain.ErrMissingCredential) {
		t.Fatalf("expected ErrMissingCredential, got %v", err)
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := validConfig()
	cfg.HTTP.Port = 0

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidate_OverlapNotSmallerThanSize(t *testing.T) {
	cfg := validConfig()
	cfg.Ingest.ChunkSize = 100
	cfg.Ingest.ChunkOverlap = 100

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for overlap >= chunk size")
	}
}

func TestValidate_PrefixMustBeRooted(t *testing.T) {
	cfg := validConfig()
	cfg.API.Prefix = "api/v1"

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for relative prefix")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.API.Prefix != "/api/v1" {
		t.Errorf("expected prefix /api/v1, got %q", cfg.API.Prefix)
	}
	if cfg.Weaviate.URL != "http://localhost:8080" {
		t.Errorf("expected default store url, got %q", cfg.Weaviate.URL)
	}
	if cfg.Weaviate.Collection != "Documents" {
		t.Errorf("expected collection Documents, got %q", cfg.Weaviate.Collection)
	}
	if !cfg.Weaviate.AllowFallback() {
		t.Error("fallback should default to allowed")
	}
	if cfg.Ingest.ChunkSize != 1000 || cfg.Ingest.ChunkOverlap != 200 {
		t.Errorf("expected chunking defaults 1000/200, got %d/%d",
			cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap)
	}
	if cfg.LLM.Model == "" {
		t.Error("expected default model")
	}
}

func TestAllowFallback_ExplicitFalse(t *testing.T) {
	f := false
	cfg := WeaviateConfig{Fallback: &f}
	if cfg.AllowFallback() {
		t.Error("explicit false must disable fallback")
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("DOCSAGE_TEST_KEY", "secret")

	in := []byte("api_key: ${DOCSAGE_TEST_KEY}\nurl: ${DOCSAGE_TEST_URL:-http://localhost:8080}\n")
	out := string(expandEnvVars(in))

	if out != "api_key: secret\nurl: http://localhost:8080\n" {
		t.Errorf("unexpected expansion:\n%s", out)
	}
}
