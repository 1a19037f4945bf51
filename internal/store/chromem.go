package store

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"

	chromem "github.com/philippgille/chromem-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/propdex/internal/domain"
)

// ChromemStore is the persistent backend built on chromem-go, an embedded
// pure-Go vector database persisting to a directory. Duplicate-id detection
// is seeded lazily from disk, so re-indexing after a restart stays
// idempotent. A lexical cache of documents added in this process serves the
// token-overlap fallback when the embedding call fails mid-flight.
type ChromemStore struct {
	db       *chromem.DB
	embedder domain.Embedder
	logger   *zap.Logger
	cfg      Config

	mu    sync.RWMutex
	coll  *chromem.Collection
	seen  map[string]struct{}
	cache []memEntry
}

var _ Store = (*ChromemStore)(nil)

// NewChromemStore opens (or creates) the persistent collection under
// cfg.Path.
func NewChromemStore(cfg Config, embedder domain.Embedder, logger *zap.Logger) (*ChromemStore, error) {
	if embedder == nil {
		return nil, fmt.Errorf("chromem store: embedder is required")
	}
	cfg.ApplyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create store directory %s: %w", cfg.Path, err)
	}

	db, err := chromem.NewPersistentDB(cfg.Path, cfg.Compress)
	if err != nil {
		return nil, fmt.Errorf("open chromem db: %w", err)
	}

	s := &ChromemStore{
		db:       db,
		embedder: embedder,
		logger:   logger,
		cfg:      cfg,
		seen:     make(map[string]struct{}),
	}

	coll, err := db.GetOrCreateCollection(cfg.Collection, nil, s.embeddingFunc())
	if err != nil {
		return nil, fmt.Errorf("open collection %s: %w", cfg.Collection, err)
	}
	s.coll = coll

	logger.Info("Persistent vector store opened",
		zap.String("path", cfg.Path),
		zap.String("collection", cfg.Collection),
		zap.Int("documents", coll.Count()),
	)
	return s, nil
}

func (s *ChromemStore) embeddingFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		result, err := s.embedder.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		return result.Embedding, nil
	}
}

// Upsert embeds and inserts documents concurrently, bounded by
// cfg.EmbedConcurrency. Ids already present (in this process or on disk) are
// skipped; a failed embedding skips that document only.
func (s *ChromemStore) Upsert(ctx context.Context, docs []domain.SearchDocument) (int, error) {
	fresh := make([]domain.SearchDocument, 0, len(docs))
	pending := make(map[string]struct{}, len(docs))
	for _, doc := range docs {
		if err := doc.Validate(); err != nil {
			return 0, fmt.Errorf("upsert: %w", err)
		}
		if _, dup := pending[doc.ID]; dup {
			continue
		}
		if s.isSeen(ctx, doc.ID) {
			continue
		}
		pending[doc.ID] = struct{}{}
		fresh = append(fresh, doc)
	}

	var (
		countMu  sync.Mutex
		inserted int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.EmbedConcurrency)
	for _, doc := range fresh {
		doc := doc
		g.Go(func() error {
			result, err := s.embedder.Embed(gctx, doc.Text)
			if err != nil {
				s.logger.Warn("Skipping document, embedding failed",
					zap.String("id", doc.ID), zap.Error(err))
				return nil
			}

			s.mu.RLock()
			coll := s.coll
			s.mu.RUnlock()

			err = coll.AddDocument(gctx, chromem.Document{
				ID:        doc.ID,
				Content:   doc.Text,
				Metadata:  doc.Meta.ToMap(),
				Embedding: result.Embedding,
			})
			if err != nil {
				s.logger.Warn("Skipping document, store rejected it",
					zap.String("id", doc.ID), zap.Error(err))
				return nil
			}

			s.commit(doc)
			countMu.Lock()
			inserted++
			countMu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return inserted, nil
}

// isSeen checks the in-process set first, then the persisted collection.
func (s *ChromemStore) isSeen(ctx context.Context, id string) bool {
	s.mu.RLock()
	_, ok := s.seen[id]
	coll := s.coll
	s.mu.RUnlock()
	if ok {
		return true
	}

	if _, err := coll.GetByID(ctx, id); err == nil {
		s.mu.Lock()
		s.seen[id] = struct{}{}
		s.mu.Unlock()
		return true
	}
	return false
}

// commit records a successfully inserted document for dedup and fallback.
func (s *ChromemStore) commit(doc domain.SearchDocument) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen[doc.ID] = struct{}{}
	s.cache = append(s.cache, memEntry{
		doc:    doc,
		flat:   doc.Meta.ToMap(),
		tokens: tokenSet(doc.Text),
	})
}

// SimilaritySearch ranks documents by vector similarity with the where
// filter pushed down to the backend. A failed embedding degrades to the
// lexical fallback over documents cached in this process.
func (s *ChromemStore) SimilaritySearch(
	ctx context.Context, query string, k int, where map[string]string,
) ([]domain.ScoredDocument, error) {
	if k <= 0 {
		return nil, fmt.Errorf("similarity search: %w: got %d", domain.ErrInvalidK, k)
	}

	s.mu.RLock()
	coll := s.coll
	s.mu.RUnlock()

	count := coll.Count()
	if count == 0 {
		return nil, nil
	}
	n := k
	if n > count {
		n = count
	}

	results, err := coll.Query(ctx, query, n, where, nil)
	if err != nil {
		s.logger.Warn("Vector query failed, using token-overlap fallback", zap.Error(err))
		return s.lexicalSearch(query, k, where), nil
	}

	out := make([]domain.ScoredDocument, len(results))
	for i, r := range results {
		out[i] = domain.ScoredDocument{
			Document: domain.SearchDocument{
				ID:   r.ID,
				Text: r.Content,
				Meta: domain.MetadataFromMap(r.Metadata),
			},
			Score: float64(r.Similarity),
		}
	}
	return out, nil
}

// MMRSearch fetches fetchK nearest candidates with their vectors, then
// greedily selects a diverse k-subset.
func (s *ChromemStore) MMRSearch(
	ctx context.Context, query string, k, fetchK int, lambda float64, where map[string]string,
) ([]domain.SearchDocument, error) {
	if k <= 0 {
		return nil, fmt.Errorf("mmr search: %w: got %d", domain.ErrInvalidK, k)
	}
	if lambda < 0 || lambda > 1 {
		return nil, fmt.Errorf("mmr search: %w: got %f", domain.ErrInvalidLambda, lambda)
	}
	if fetchK < k {
		fetchK = k
	}

	s.mu.RLock()
	coll := s.coll
	s.mu.RUnlock()

	count := coll.Count()
	if count == 0 {
		return nil, nil
	}

	queryResult, err := s.embedder.Embed(ctx, query)
	if err != nil {
		s.logger.Warn("Query embedding failed, using token-overlap fallback", zap.Error(err))
		return s.lexicalMMR(query, k, fetchK, lambda, where), nil
	}

	n := fetchK
	if n > count {
		n = count
	}

	results, err := coll.QueryEmbedding(ctx, queryResult.Embedding, n, where, nil)
	if err != nil {
		s.logger.Warn("Vector query failed, using token-overlap fallback", zap.Error(err))
		return s.lexicalMMR(query, k, fetchK, lambda, where), nil
	}

	rel := make([]float64, len(results))
	for i, r := range results {
		rel[i] = float64(r.Similarity)
	}
	sim := func(i, j int) float64 {
		return cosine(results[i].Embedding, results[j].Embedding)
	}

	picked := selectMMR(rel, sim, k, lambda)
	out := make([]domain.SearchDocument, 0, len(picked))
	for _, idx := range picked {
		r := results[idx]
		out = append(out, domain.SearchDocument{
			ID:   r.ID,
			Text: r.Content,
			Meta: domain.MetadataFromMap(r.Metadata),
		})
	}
	return out, nil
}

// DeleteBySource removes all documents whose source_url matches.
func (s *ChromemStore) DeleteBySource(ctx context.Context, sourceURL string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := s.coll.Count()
	err := s.coll.Delete(ctx, map[string]string{domain.MetaSourceURL: sourceURL}, nil)
	if err != nil {
		return 0, fmt.Errorf("delete by source: %w", err)
	}
	removed := before - s.coll.Count()

	kept := s.cache[:0]
	for _, e := range s.cache {
		if e.doc.Meta.SourceURL == sourceURL {
			delete(s.seen, e.doc.ID)
			continue
		}
		kept = append(kept, e)
	}
	s.cache = kept

	return removed, nil
}

// Clear drops and recreates the collection.
func (s *ChromemStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.DeleteCollection(s.cfg.Collection); err != nil {
		return fmt.Errorf("clear: delete collection: %w", err)
	}
	coll, err := s.db.GetOrCreateCollection(s.cfg.Collection, nil, s.embeddingFunc())
	if err != nil {
		return fmt.Errorf("clear: recreate collection: %w", err)
	}
	s.coll = coll
	s.seen = make(map[string]struct{})
	s.cache = nil
	return nil
}

// Stats reports collection size and backend identity.
func (s *ChromemStore) Stats(_ context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{
		TotalDocuments:    s.coll.Count(),
		Collection:        s.cfg.Collection,
		EmbeddingProvider: s.cfg.Provider,
		Backend:           "chromem",
	}, nil
}

// lexicalSearch ranks the in-process document cache by token overlap.
func (s *ChromemStore) lexicalSearch(query string, k int, where map[string]string) []domain.ScoredDocument {
	ranked := s.rankLexical(query, where)
	if len(ranked) > k {
		ranked = ranked[:k]
	}
	out := make([]domain.ScoredDocument, len(ranked))
	for i, r := range ranked {
		out[i] = domain.ScoredDocument{Document: r.entry.doc, Score: r.score}
	}
	return out
}

// lexicalMMR runs the MMR selection over the token-overlap ranking with
// Jaccard redundancy.
func (s *ChromemStore) lexicalMMR(query string, k, fetchK int, lambda float64, where map[string]string) []domain.SearchDocument {
	ranked := s.rankLexical(query, where)
	if len(ranked) > fetchK {
		ranked = ranked[:fetchK]
	}

	rel := make([]float64, len(ranked))
	for i, r := range ranked {
		rel[i] = r.score
	}
	sim := func(i, j int) float64 {
		return jaccard(ranked[i].entry.tokens, ranked[j].entry.tokens)
	}

	picked := selectMMR(rel, sim, k, lambda)
	out := make([]domain.SearchDocument, 0, len(picked))
	for _, idx := range picked {
		out = append(out, ranked[idx].entry.doc)
	}
	return out
}

func (s *ChromemStore) rankLexical(query string, where map[string]string) []rankedEntry {
	queryTokens := tokenSet(query)

	s.mu.RLock()
	defer s.mu.RUnlock()

	ranked := make([]rankedEntry, 0, len(s.cache))
	for _, e := range s.cache {
		if len(where) > 0 && !matchesWhere(e.flat, where) {
			continue
		}
		ranked = append(ranked, rankedEntry{entry: e, score: overlapScore(queryTokens, e.tokens)})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})
	return ranked
}
