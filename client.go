// Package propdex is the embeddable entry point for the property retrieval
// and reranking engine. It wires an embedding provider, a document store, and
// the strategic reranker behind a small client with functional options and a
// fluent search builder, so callers can index listings and search them
// without touching the internal packages.
package propdex

import (
	"context"

	"go.uber.org/zap"

	"github.com/kailas-cloud/propdex/internal/domain"
	"github.com/kailas-cloud/propdex/internal/domain/filter"
	"github.com/kailas-cloud/propdex/internal/engine"
	"github.com/kailas-cloud/propdex/internal/metrics"
	"github.com/kailas-cloud/propdex/internal/rerank"
	"github.com/kailas-cloud/propdex/internal/retriever"
	"github.com/kailas-cloud/propdex/internal/store"
	openaiEmb "github.com/kailas-cloud/propdex/internal/transport/openai"
)

// Re-exported domain types so callers never import internal packages.
type (
	// Property is a real-estate listing as accepted by Index.
	Property = domain.Property
	// SearchDocument is the indexed form of a listing.
	SearchDocument = domain.SearchDocument
	// ScoredDocument is a search hit with its final score.
	ScoredDocument = domain.ScoredDocument
	// Embedder converts text into an embedding vector.
	Embedder = domain.Embedder
	// EmbeddingResult carries a vector and its token usage.
	EmbeddingResult = domain.EmbeddingResult
	// Criteria is the structured constraint bag for a search.
	Criteria = filter.Criteria
	// GeoRadius constrains hits to a radius around a point.
	GeoRadius = filter.GeoRadius
	// SortSpec orders results by a metadata field instead of reranking.
	SortSpec = filter.SortSpec
	// SortField is a metadata field supported by explicit ordering.
	SortField = filter.SortField
	// Strategy names a reranking strategy.
	Strategy = rerank.Strategy
	// Mode selects the candidate-fetch strategy.
	Mode = retriever.Mode
	// IndexResult summarizes one indexing run.
	IndexResult = engine.IndexResult
	// Stats describes the observable state of the collection.
	Stats = store.Stats
)

// Reranking strategies.
const (
	StrategyBalanced = rerank.StrategyBalanced
	StrategyInvestor = rerank.StrategyInvestor
	StrategyFamily   = rerank.StrategyFamily
	StrategyBargain  = rerank.StrategyBargain
)

// Candidate-fetch modes.
const (
	ModeSimilarity = retriever.ModeSimilarity
	ModeMMR        = retriever.ModeMMR
)

// Sortable fields.
const (
	SortByPrice       = filter.SortByPrice
	SortByPricePerSqm = filter.SortByPricePerSqm
	SortByRooms       = filter.SortByRooms
)

// Option configures the Client.
type Option func(*clientConfig)

type clientConfig struct {
	path       string
	collection string

	apiKey      string
	baseURL     string
	model       string
	dimensions  int
	instruction string
	embedder    domain.Embedder

	logger *zap.Logger
}

// WithStorePath enables the persistent vector backend at the given directory.
// Without it documents live in process memory only.
func WithStorePath(path string) Option {
	return func(c *clientConfig) {
		c.path = path
	}
}

// WithCollection sets the collection name. Default: "properties".
func WithCollection(name string) Option {
	return func(c *clientConfig) {
		c.collection = name
	}
}

// WithOpenAI configures an OpenAI-compatible embedding provider. Without an
// embedding provider the client runs in degraded lexical mode: searches use
// deterministic token overlap instead of vector similarity.
func WithOpenAI(apiKey, model string) Option {
	return func(c *clientConfig) {
		c.apiKey = apiKey
		c.model = model
	}
}

// WithBaseURL points the embedding provider at a non-default endpoint
// (self-hosted or proxy deployments).
func WithBaseURL(url string) Option {
	return func(c *clientConfig) {
		c.baseURL = url
	}
}

// WithDimensions requests reduced-dimension embeddings from providers that
// support it.
func WithDimensions(dim int) Option {
	return func(c *clientConfig) {
		c.dimensions = dim
	}
}

// WithInstruction prepends an instruction prefix to every embedded text, for
// instruction-tuned embedding models.
func WithInstruction(instruction string) Option {
	return func(c *clientConfig) {
		c.instruction = instruction
	}
}

// WithEmbedder sets a custom embedding provider, replacing WithOpenAI.
func WithEmbedder(e Embedder) Option {
	return func(c *clientConfig) {
		c.embedder = e
	}
}

// WithLogger enables structured logging for client operations.
// Pass nil to disable (default).
func WithLogger(l *zap.Logger) Option {
	return func(c *clientConfig) {
		c.logger = l
	}
}

// Client is the propdex entry point.
type Client struct {
	engine *engine.Engine
}

// New creates a Client. With no embedding provider configured the client
// still works, serving searches from the lexical fallback.
func New(opts ...Option) (*Client, error) {
	cfg := &clientConfig{}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}

	emb := buildEmbedder(cfg)

	provider := "none"
	if emb != nil {
		provider = "openai"
		if cfg.embedder != nil {
			provider = "custom"
		}
	}

	st, err := store.Open(store.Config{
		Path:       cfg.path,
		Collection: cfg.collection,
		Provider:   provider,
	}, emb, cfg.logger)
	if err != nil {
		return nil, err
	}

	reranker := rerank.NewStrategic(rerank.DefaultWeights(), cfg.logger)
	return &Client{engine: engine.New(st, reranker, cfg.logger)}, nil
}

func buildEmbedder(cfg *clientConfig) domain.Embedder {
	var emb domain.Embedder
	switch {
	case cfg.embedder != nil:
		emb = cfg.embedder
	case cfg.apiKey != "":
		metrics.RegisterEmbeddingMetrics()
		emb = openaiEmb.NewEmbedder(&openaiEmb.Config{
			APIKey:     cfg.apiKey,
			BaseURL:    cfg.baseURL,
			Model:      cfg.model,
			Dimensions: cfg.dimensions,
			Provider:   "openai",
			Logger:     cfg.logger,
		})
	default:
		return nil
	}

	if cfg.instruction != "" {
		emb = domain.NewInstructionEmbedder(emb, cfg.instruction)
	}
	return emb
}

// Index maps properties to search documents and stores them. Already-indexed
// ids are skipped, so repeated runs over the same listings are idempotent.
func (c *Client) Index(ctx context.Context, properties []Property) (IndexResult, error) {
	return c.engine.Index(ctx, properties)
}

// IndexAsync starts an indexing run in the background. At most one run may be
// in flight per client.
func (c *Client) IndexAsync(ctx context.Context, properties []Property) error {
	return c.engine.IndexAsync(ctx, properties)
}

// Indexing reports whether a background indexing run is in flight.
func (c *Client) Indexing() bool {
	return c.engine.Indexing()
}

// DeleteBySource removes every document originating from the source URL and
// returns how many were removed.
func (c *Client) DeleteBySource(ctx context.Context, sourceURL string) (int, error) {
	return c.engine.DeleteBySource(ctx, sourceURL)
}

// Clear drops every document in the collection.
func (c *Client) Clear(ctx context.Context) error {
	return c.engine.Clear(ctx)
}

// Stats reports collection size and backend identity.
func (c *Client) Stats(ctx context.Context) (Stats, error) {
	return c.engine.Stats(ctx)
}

// Search starts a fluent search for the query.
func (c *Client) Search(query string) *SearchBuilder {
	return &SearchBuilder{client: c, query: query}
}
