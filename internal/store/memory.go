package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/kailas-cloud/propdex/internal/domain"
)

// memEntry is one stored document with everything both search paths need.
type memEntry struct {
	doc    domain.SearchDocument
	flat   map[string]string
	vector []float32
	tokens map[string]struct{}
}

// MemoryStore is the in-memory linear-scan backend. With an embedder it ranks
// by cosine similarity; without one it serves the deterministic token-overlap
// fallback through the same contract. Safe for concurrent use.
type MemoryStore struct {
	embedder domain.Embedder // nil in degraded mode
	logger   *zap.Logger
	cfg      Config

	mu      sync.RWMutex
	entries []memEntry
	seen    map[string]struct{}
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an in-memory store. A nil embedder selects the
// lexical fallback ranking.
func NewMemoryStore(cfg Config, embedder domain.Embedder, logger *zap.Logger) *MemoryStore {
	cfg.ApplyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryStore{
		embedder: embedder,
		logger:   logger,
		cfg:      cfg,
		seen:     make(map[string]struct{}),
	}
}

// Upsert inserts documents whose id has not been seen in this collection's
// lifetime. Embedding failures skip the affected document only.
func (s *MemoryStore) Upsert(ctx context.Context, docs []domain.SearchDocument) (int, error) {
	inserted := 0
	for _, doc := range docs {
		if err := doc.Validate(); err != nil {
			return inserted, fmt.Errorf("upsert: %w", err)
		}

		s.mu.RLock()
		_, dup := s.seen[doc.ID]
		s.mu.RUnlock()
		if dup {
			continue
		}

		var vector []float32
		if s.embedder != nil {
			result, err := s.embedder.Embed(ctx, doc.Text)
			if err != nil {
				s.logger.Warn("Skipping document, embedding failed",
					zap.String("id", doc.ID), zap.Error(err))
				continue
			}
			vector = result.Embedding
		}

		entry := memEntry{
			doc:    doc,
			flat:   doc.Meta.ToMap(),
			vector: vector,
			tokens: tokenSet(doc.Text),
		}

		s.mu.Lock()
		if _, dup := s.seen[doc.ID]; !dup {
			s.seen[doc.ID] = struct{}{}
			s.entries = append(s.entries, entry)
			inserted++
		}
		s.mu.Unlock()
	}
	return inserted, nil
}

// SimilaritySearch ranks documents by cosine similarity, or by token overlap
// when no embedder is configured or the query embedding fails.
func (s *MemoryStore) SimilaritySearch(
	ctx context.Context, query string, k int, where map[string]string,
) ([]domain.ScoredDocument, error) {
	if k <= 0 {
		return nil, fmt.Errorf("similarity search: %w: got %d", domain.ErrInvalidK, k)
	}

	ranked := s.rank(ctx, query, s.eligible(where))
	if len(ranked) > k {
		ranked = ranked[:k]
	}
	out := make([]domain.ScoredDocument, len(ranked))
	for i, r := range ranked {
		out[i] = domain.ScoredDocument{Document: r.entry.doc, Score: r.score}
	}
	return out, nil
}

// MMRSearch fetches fetchK relevance-ranked candidates and greedily selects a
// diverse k-subset. Pairwise similarity uses vectors when available, token
// Jaccard otherwise.
func (s *MemoryStore) MMRSearch(
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

	ranked := s.rank(ctx, query, s.eligible(where))
	if len(ranked) > fetchK {
		ranked = ranked[:fetchK]
	}

	rel := make([]float64, len(ranked))
	for i, r := range ranked {
		rel[i] = r.score
	}

	sim := func(i, j int) float64 {
		a, b := ranked[i].entry, ranked[j].entry
		if a.vector != nil && b.vector != nil {
			return cosine(a.vector, b.vector)
		}
		return jaccard(a.tokens, b.tokens)
	}

	picked := selectMMR(rel, sim, k, lambda)
	out := make([]domain.SearchDocument, 0, len(picked))
	for _, idx := range picked {
		out = append(out, ranked[idx].entry.doc)
	}
	return out, nil
}

// DeleteBySource removes all documents with a matching source_url.
func (s *MemoryStore) DeleteBySource(_ context.Context, sourceURL string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.entries[:0]
	removed := 0
	for _, e := range s.entries {
		if e.doc.Meta.SourceURL == sourceURL {
			delete(s.seen, e.doc.ID)
			removed++
			continue
		}
		kept = append(kept, e)
	}
	s.entries = kept
	return removed, nil
}

// Clear empties the collection and forgets all seen ids.
func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	s.seen = make(map[string]struct{})
	return nil
}

// Stats reports collection size and backend identity.
func (s *MemoryStore) Stats(_ context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	provider := s.cfg.Provider
	if s.embedder == nil {
		provider = "none"
	}
	return Stats{
		TotalDocuments:    len(s.entries),
		Collection:        s.cfg.Collection,
		EmbeddingProvider: provider,
		Backend:           "memory",
	}, nil
}

// eligible snapshots entries passing the exact-match where filter, in
// insertion order.
func (s *MemoryStore) eligible(where map[string]string) []memEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]memEntry, 0, len(s.entries))
	for _, e := range s.entries {
		if len(where) > 0 && !matchesWhere(e.flat, where) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// rankedEntry pairs a candidate with its query relevance.
type rankedEntry struct {
	entry memEntry
	score float64
}

// rank orders candidates descending by relevance to the query, ties keeping
// insertion order. Falls back to token overlap when embedding is unavailable.
func (s *MemoryStore) rank(ctx context.Context, query string, candidates []memEntry) []rankedEntry {
	var queryVec []float32
	if s.embedder != nil {
		result, err := s.embedder.Embed(ctx, query)
		if err != nil {
			s.logger.Warn("Query embedding failed, using token-overlap fallback", zap.Error(err))
		} else {
			queryVec = result.Embedding
		}
	}

	var queryTokens map[string]struct{}
	if queryVec == nil {
		queryTokens = tokenSet(query)
	}

	ranked := make([]rankedEntry, len(candidates))
	for i, e := range candidates {
		var score float64
		if queryVec != nil && e.vector != nil {
			score = cosine(queryVec, e.vector)
		} else {
			score = overlapScore(queryTokens, e.tokens)
		}
		ranked[i] = rankedEntry{entry: e, score: score}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})
	return ranked
}
