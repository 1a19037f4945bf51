package config

import "testing"

func TestValidate_InvalidPort(t *testing.T) {
	cfg := Config{HTTP: HTTPConfig{Port: 0}}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidate_InvalidLambda(t *testing.T) {
	cfg := Config{
		HTTP:      HTTPConfig{Port: 8080},
		Retrieval: RetrievalConfig{MMRLambda: 1.5},
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for lambda out of range")
	}
}

func TestValidate_NegativeCacheTTL(t *testing.T) {
	cfg := Config{
		HTTP:  HTTPConfig{Port: 8080},
		Cache: CacheConfig{Enabled: true, TTLHours: -1},
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for negative cache ttl")
	}
}

func TestValidate_DisabledCacheIgnoresTTL(t *testing.T) {
	cfg := Config{
		HTTP:  HTTPConfig{Port: 8080},
		Cache: CacheConfig{Enabled: false, TTLHours: -1},
	}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 10 {
		t.Errorf("expected ReadTimeoutSec=10, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.HTTP.WriteTimeoutSec != 30 {
		t.Errorf("expected WriteTimeoutSec=30, got %d", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.HTTP.ShutdownSec != 10 {
		t.Errorf("expected ShutdownSec=10, got %d", cfg.HTTP.ShutdownSec)
	}
	if cfg.Store.Collection != "properties" {
		t.Errorf("expected Collection='properties', got %q", cfg.Store.Collection)
	}
	if cfg.Store.EmbedConcurrency != 4 {
		t.Errorf("expected EmbedConcurrency=4, got %d", cfg.Store.EmbedConcurrency)
	}
	if cfg.Embedding.Provider != "openai" {
		t.Errorf("expected Provider='openai', got %q", cfg.Embedding.Provider)
	}
	if cfg.Embedding.Model != "text-embedding-3-small" {
		t.Errorf("expected Model='text-embedding-3-small', got %q", cfg.Embedding.Model)
	}
	if cfg.Retrieval.DefaultK != 5 {
		t.Errorf("expected DefaultK=5, got %d", cfg.Retrieval.DefaultK)
	}
	if cfg.Retrieval.FetchMultiplier != 4 {
		t.Errorf("expected FetchMultiplier=4, got %d", cfg.Retrieval.FetchMultiplier)
	}
	if cfg.Retrieval.MMRLambda != 0.5 {
		t.Errorf("expected MMRLambda=0.5, got %f", cfg.Retrieval.MMRLambda)
	}
}

func TestApplyDefaults_NoOverride(t *testing.T) {
	cfg := Config{
		HTTP:      HTTPConfig{ReadTimeoutSec: 30, WriteTimeoutSec: 60, ShutdownSec: 5},
		Store:     StoreConfig{Collection: "listings", EmbedConcurrency: 16},
		Retrieval: RetrievalConfig{DefaultK: 10, FetchMultiplier: 8, MMRLambda: 0.3},
	}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 30 {
		t.Errorf("expected ReadTimeoutSec=30, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.Store.Collection != "listings" {
		t.Errorf("expected Collection='listings', got %q", cfg.Store.Collection)
	}
	if cfg.Retrieval.DefaultK != 10 {
		t.Errorf("expected DefaultK=10, got %d", cfg.Retrieval.DefaultK)
	}
	if cfg.Retrieval.MMRLambda != 0.3 {
		t.Errorf("expected MMRLambda=0.3, got %f", cfg.Retrieval.MMRLambda)
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("PROPDEX_TEST_PORT", "9090")

	in := []byte("port: ${PROPDEX_TEST_PORT}\npath: ${PROPDEX_TEST_UNSET:-/tmp/data}\nkey: ${PROPDEX_TEST_UNSET}")
	out := string(expandEnvVars(in))

	want := "port: 9090\npath: /tmp/data\nkey: "
	if out != want {
		t.Errorf("unexpected expansion:\ngot:  %q\nwant: %q", out, want)
	}
}
