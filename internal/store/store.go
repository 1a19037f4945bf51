// Package store owns the persistent collection of search documents and their
// embedding vectors. It exposes upsert, similarity search, MMR search,
// delete-by-source, clear, and stats over two backends: an embedded
// persistent vector database (chromem-go) and an in-memory linear scan.
// When no embedding function is available the same public contract is served
// by a deterministic token-overlap fallback.
package store

import (
	"context"

	"go.uber.org/zap"

	"github.com/kailas-cloud/propdex/internal/domain"
)

// Store is the embedding store contract consumed by the retriever and engine.
type Store interface {
	// Upsert embeds and inserts documents, skipping ids already present in
	// the collection (idempotent by id). A single embedding failure skips
	// that document only. Returns the count of documents actually inserted.
	Upsert(ctx context.Context, docs []domain.SearchDocument) (int, error)

	// SimilaritySearch returns up to k documents ranked by vector
	// similarity. A non-nil where map restricts eligibility to documents
	// whose flattened metadata matches every key/value exactly.
	SimilaritySearch(ctx context.Context, query string, k int, where map[string]string) ([]domain.ScoredDocument, error)

	// MMRSearch fetches fetchK relevance-ranked candidates and greedily
	// selects k maximizing lambda*relevance - (1-lambda)*max-similarity to
	// the already selected set. lambda=1 is pure relevance, lambda=0 pure
	// diversity. No scores are exposed; candidate order is the selection
	// order.
	MMRSearch(ctx context.Context, query string, k, fetchK int, lambda float64, where map[string]string) ([]domain.SearchDocument, error)

	// DeleteBySource removes all documents whose source_url matches.
	// Returns the number of documents removed.
	DeleteBySource(ctx context.Context, sourceURL string) (int, error)

	// Clear irreversibly empties the collection.
	Clear(ctx context.Context) error

	// Stats reports collection size and backend identity.
	Stats(ctx context.Context) (Stats, error)
}

// Stats describes the observable state of a store.
type Stats struct {
	TotalDocuments    int    `json:"total_documents"`
	Collection        string `json:"collection_name"`
	EmbeddingProvider string `json:"embedding_provider"`
	Backend           string `json:"backend"`
}

// Config holds store construction settings.
type Config struct {
	// Path is the persistence directory. Empty means in-memory only.
	Path string
	// Collection is the collection name. Default: "properties".
	Collection string
	// Compress enables gzip for persisted data (chromem backend).
	Compress bool
	// Provider names the embedding provider for stats.
	Provider string
	// EmbedConcurrency bounds parallel document embedding during upsert.
	// Default: 4.
	EmbedConcurrency int
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.Collection == "" {
		c.Collection = "properties"
	}
	if c.EmbedConcurrency <= 0 {
		c.EmbedConcurrency = 4
	}
	if c.Provider == "" {
		c.Provider = "none"
	}
}

// Open constructs a store, branching explicitly on what is available rather
// than recovering from failures downstream:
//
//   - no embedder:        in-memory store on the token-overlap fallback
//   - path + embedder:    persistent chromem backend
//   - chromem init fails: in-memory store with the embedder (logged, non-fatal)
//   - no path:            in-memory store with the embedder
//
// Open itself fails only on catastrophic conditions.
func Open(cfg Config, embedder domain.Embedder, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.ApplyDefaults()

	if embedder == nil {
		logger.Info("No embedding provider configured, store runs in degraded lexical mode",
			zap.String("collection", cfg.Collection))
		return NewMemoryStore(cfg, nil, logger), nil
	}

	if cfg.Path != "" {
		st, err := NewChromemStore(cfg, embedder, logger)
		if err == nil {
			return st, nil
		}
		logger.Warn("Persistent vector backend unavailable, falling back to in-memory store",
			zap.String("path", cfg.Path), zap.Error(err))
	}

	return NewMemoryStore(cfg, embedder, logger), nil
}
