// Package retriever orchestrates one retrieval pass: implicit filter
// extraction, candidate fetch (similarity or MMR), metadata/geo/price
// filtering, and reranking or explicit sorting. There is a single Retriever
// type; the "advanced" behaviors are optional fields on Options rather than
// a subclass.
package retriever

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/kailas-cloud/propdex/internal/domain"
	"github.com/kailas-cloud/propdex/internal/domain/filter"
	"github.com/kailas-cloud/propdex/internal/extract"
	"github.com/kailas-cloud/propdex/internal/rerank"
)

// Mode selects the candidate-fetch strategy.
type Mode string

// Fetch modes.
const (
	ModeSimilarity Mode = "similarity"
	ModeMMR        Mode = "mmr"
)

// Candidate fetch defaults.
const (
	DefaultK      = 5
	DefaultFetchK = 20
	DefaultLambda = 0.5

	// mmrScoreDecay synthesizes a relevance-decay proxy score for MMR
	// results, which carry no real similarity score.
	mmrScoreDecay = 0.01
)

// Searcher is the store contract the retriever consumes.
type Searcher interface {
	SimilaritySearch(ctx context.Context, query string, k int, where map[string]string) ([]domain.ScoredDocument, error)
	MMRSearch(ctx context.Context, query string, k, fetchK int, lambda float64, where map[string]string) ([]domain.SearchDocument, error)
}

// Reranker is the reranking contract the retriever consumes.
type Reranker interface {
	RerankWithStrategy(
		query string,
		docs []domain.SearchDocument,
		strategy rerank.Strategy,
		initial []float64,
		prefs *rerank.Preferences,
		k int,
	) []domain.ScoredDocument
}

// Options configures a retrieval pass.
type Options struct {
	Mode   Mode
	K      int
	FetchK int

	// Lambda is the MMR relevance/diversity trade-off: 1 is pure relevance,
	// 0 pure diversity. nil selects DefaultLambda; an explicit 0 is honored.
	Lambda *float64

	// Criteria holds forced filters; they override extracted ones on key
	// collision and carry the numeric/geo/set constraints.
	Criteria filter.Criteria

	// Sort, when set, replaces reranking with a stable metadata-field sort.
	Sort *filter.SortSpec

	// Strategy selects the rerank ordering. Empty means balanced.
	Strategy rerank.Strategy

	// DisableRerank skips the rerank step entirely.
	DisableRerank bool
}

// applyDefaults normalizes unset options.
func (o *Options) applyDefaults() {
	if o.Mode == "" {
		o.Mode = ModeSimilarity
	}
	if o.K <= 0 {
		o.K = DefaultK
	}
	if o.FetchK <= 0 {
		o.FetchK = DefaultFetchK
	}
	if o.Lambda == nil {
		lambda := DefaultLambda
		o.Lambda = &lambda
	}
	if o.Strategy == "" {
		o.Strategy = rerank.StrategyBalanced
	}
}

// validate rejects truly invalid input; everything else degrades silently
// later in the pipeline.
func (o *Options) validate() error {
	switch o.Mode {
	case ModeSimilarity, ModeMMR:
	default:
		return fmt.Errorf("unsupported retrieval mode: %q", o.Mode)
	}
	if *o.Lambda < 0 || *o.Lambda > 1 {
		return fmt.Errorf("retriever: %w: got %f", domain.ErrInvalidLambda, *o.Lambda)
	}
	if !o.Strategy.IsValid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidStrategy, o.Strategy)
	}
	if o.Sort != nil {
		if err := o.Sort.Validate(); err != nil {
			return err
		}
	}
	return o.Criteria.Validate()
}

// Retriever executes the retrieval pipeline. Stateless across calls; safe
// for concurrent use.
type Retriever struct {
	store     Searcher
	extractor *extract.Extractor
	reranker  Reranker
	opts      Options
	logger    *zap.Logger
}

// New creates a retriever. A nil reranker disables the rerank step.
func New(store Searcher, reranker Reranker, opts Options, logger *zap.Logger) (*Retriever, error) {
	opts.applyDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{
		store:     store,
		extractor: extract.New(),
		reranker:  reranker,
		opts:      opts,
		logger:    logger,
	}, nil
}

// Retrieve runs one pass and returns at most K scored documents, descending
// by score.
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]domain.ScoredDocument, error) {
	crit := filter.Merge(r.extractor.Extract(query), r.opts.Criteria)
	where := crit.ExactMatch()

	candidateK := r.opts.FetchK
	if r.opts.K > candidateK {
		candidateK = r.opts.K
	}

	candidates, err := r.fetch(ctx, query, candidateK, where)
	if err != nil {
		return nil, err
	}

	// Exact-match filtering is re-applied over the results: the fallback
	// search path cannot push the where clause down.
	filtered := candidates[:0]
	for _, sd := range candidates {
		if !crit.MatchesExact(sd.Document) {
			continue
		}
		filtered = append(filtered, sd)
	}

	// Explicit filters, fixed order: price -> geo -> year built -> energy
	// certificate. Each drops documents with missing or unparseable fields.
	filtered = keep(filtered, crit.MatchesPrice)
	filtered = keep(filtered, crit.MatchesGeo)
	filtered = keep(filtered, crit.MatchesYearBuilt)
	filtered = keep(filtered, crit.MatchesEnergyCert)

	if r.opts.Sort != nil {
		sortByField(filtered, *r.opts.Sort)
	} else if r.reranker != nil && !r.opts.DisableRerank {
		filtered = r.rerankSafe(query, filtered, &crit)
	}

	if len(filtered) > r.opts.K {
		filtered = filtered[:r.opts.K]
	}
	return filtered, nil
}

// fetch pulls candidates in the configured mode. MMR results carry a
// deterministic relevance-decay proxy score of 1 - 0.01*rank.
func (r *Retriever) fetch(ctx context.Context, query string, candidateK int, where map[string]string) ([]domain.ScoredDocument, error) {
	if r.opts.Mode == ModeMMR {
		docs, err := r.store.MMRSearch(ctx, query, candidateK, r.opts.FetchK, *r.opts.Lambda, where)
		if err != nil {
			return nil, fmt.Errorf("mmr search: %w", err)
		}
		out := make([]domain.ScoredDocument, len(docs))
		for i, doc := range docs {
			out[i] = domain.ScoredDocument{Document: doc, Score: 1.0 - mmrScoreDecay*float64(i)}
		}
		return out, nil
	}

	out, err := r.store.SimilaritySearch(ctx, query, candidateK, where)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	return out, nil
}

// rerankSafe applies the reranker; any failure falls back to the filtered
// order for this call only and is never surfaced to the caller.
func (r *Retriever) rerankSafe(query string, filtered []domain.ScoredDocument, crit *filter.Criteria) (out []domain.ScoredDocument) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Warn("Reranker failed, keeping filtered order",
				zap.Any("panic", rec), zap.String("query", query))
			out = filtered
		}
	}()

	docs := make([]domain.SearchDocument, len(filtered))
	scores := make([]float64, len(filtered))
	for i, sd := range filtered {
		docs[i] = sd.Document
		scores[i] = sd.Score
	}

	reranked := r.reranker.RerankWithStrategy(
		query, docs, r.opts.Strategy, scores, preferencesFrom(crit), r.opts.K,
	)
	if reranked == nil && len(filtered) > 0 {
		return filtered
	}
	return reranked
}

// preferencesFrom projects the merged criteria into reranker preferences.
func preferencesFrom(crit *filter.Criteria) *rerank.Preferences {
	if crit.IsEmpty() {
		return nil
	}
	return &rerank.Preferences{
		MinPrice:  crit.MinPrice,
		MaxPrice:  crit.MaxPrice,
		City:      crit.City,
		MinRooms:  crit.MinRooms,
		Amenities: crit.Amenities,
	}
}

// keep filters scored documents in place, preserving order and paired scores.
func keep(in []domain.ScoredDocument, pred func(domain.SearchDocument) bool) []domain.ScoredDocument {
	out := in[:0]
	for _, sd := range in {
		if pred(sd.Document) {
			out = append(out, sd)
		}
	}
	return out
}

// sortByField stably sorts by a metadata field; documents missing the field
// go to the end regardless of direction.
func sortByField(docs []domain.ScoredDocument, spec filter.SortSpec) {
	key := string(spec.Field)
	sort.SliceStable(docs, func(i, j int) bool {
		vi, oki := docs[i].Document.Meta.Number(key)
		vj, okj := docs[j].Document.Meta.Number(key)
		if oki != okj {
			return oki // present sorts before missing
		}
		if !oki {
			return false
		}
		if spec.Descending {
			return vi > vj
		}
		return vi < vj
	})
}
