// Package engine wires the store, mapper, and rerankers into the single
// facade the transport layer talks to.
package engine

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/propdex/internal/domain"
	"github.com/kailas-cloud/propdex/internal/domain/filter"
	"github.com/kailas-cloud/propdex/internal/mapper"
	"github.com/kailas-cloud/propdex/internal/rerank"
	"github.com/kailas-cloud/propdex/internal/retriever"
	"github.com/kailas-cloud/propdex/internal/store"
)

// fetchMultiplier widens the candidate pool ahead of filtering and reranking.
const fetchMultiplier = 4

// Engine owns one property collection: indexing properties into the store and
// answering search requests over it.
type Engine struct {
	store    store.Store
	reranker *rerank.StrategicReranker
	logger   *zap.Logger

	indexing atomic.Bool
}

// New creates an engine over an opened store.
func New(s store.Store, reranker *rerank.StrategicReranker, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{store: s, reranker: reranker, logger: logger}
}

// IndexResult summarizes one indexing run.
type IndexResult struct {
	Received int           `json:"received"`
	Indexed  int           `json:"indexed"`
	Skipped  int           `json:"skipped"`
	Took     time.Duration `json:"took"`
}

// Index maps properties to search documents and upserts them. Documents whose
// id is already present are skipped, so repeated runs over the same listings
// are idempotent.
func (e *Engine) Index(ctx context.Context, properties []domain.Property) (IndexResult, error) {
	start := time.Now()

	docs := mapper.ToDocuments(properties)
	inserted, err := e.store.Upsert(ctx, docs)
	if err != nil {
		return IndexResult{}, fmt.Errorf("index: %w", err)
	}

	result := IndexResult{
		Received: len(properties),
		Indexed:  inserted,
		Skipped:  len(docs) - inserted,
		Took:     time.Since(start),
	}
	e.logger.Info("Indexing finished",
		zap.Int("received", result.Received),
		zap.Int("indexed", result.Indexed),
		zap.Int("skipped", result.Skipped),
		zap.Duration("took", result.Took),
	)
	return result, nil
}

// IndexAsync starts an indexing run in the background. Only one run may be in
// flight at a time; a second call returns ErrIndexInProgress immediately.
func (e *Engine) IndexAsync(ctx context.Context, properties []domain.Property) error {
	if !e.indexing.CompareAndSwap(false, true) {
		return domain.ErrIndexInProgress
	}

	go func() {
		defer e.indexing.Store(false)
		if _, err := e.Index(ctx, properties); err != nil {
			e.logger.Error("Background indexing failed", zap.Error(err))
		}
	}()
	return nil
}

// Indexing reports whether a background indexing run is in flight.
func (e *Engine) Indexing() bool {
	return e.indexing.Load()
}

// Search runs one retrieval pass: k results for the query, constrained by the
// forced criteria and ordered by the named strategy.
func (e *Engine) Search(
	ctx context.Context,
	query string,
	k int,
	criteria filter.Criteria,
	strategy rerank.Strategy,
) ([]domain.ScoredDocument, error) {
	if k <= 0 {
		return nil, fmt.Errorf("search: %w: got %d", domain.ErrInvalidK, k)
	}

	r, err := e.AsRetriever(retriever.Options{
		K:        k,
		FetchK:   k * fetchMultiplier,
		Criteria: criteria,
		Strategy: strategy,
	})
	if err != nil {
		return nil, err
	}
	return r.Retrieve(ctx, query)
}

// AsRetriever builds a retriever over the engine's store with the given
// options, for callers that need mode, sort, or lambda control.
func (e *Engine) AsRetriever(opts retriever.Options) (*retriever.Retriever, error) {
	return retriever.New(e.store, e.reranker, opts, e.logger)
}

// DeleteBySource removes every indexed document originating from the source
// URL and returns how many were removed.
func (e *Engine) DeleteBySource(ctx context.Context, sourceURL string) (int, error) {
	if sourceURL == "" {
		return 0, fmt.Errorf("delete by source: empty source url")
	}
	removed, err := e.store.DeleteBySource(ctx, sourceURL)
	if err != nil {
		return 0, err
	}
	e.logger.Info("Documents removed by source",
		zap.String("source_url", sourceURL), zap.Int("removed", removed))
	return removed, nil
}

// Clear drops every document in the collection.
func (e *Engine) Clear(ctx context.Context) error {
	return e.store.Clear(ctx)
}

// Stats reports collection size and backend identity.
func (e *Engine) Stats(ctx context.Context) (store.Stats, error) {
	return e.store.Stats(ctx)
}
