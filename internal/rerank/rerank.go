// Package rerank rescales retrieval candidate scores with lexical,
// preference-alignment, and intrinsic quality signals, plus a diversity
// penalty across near-duplicate results. A strategic variant replaces the
// final ordering with one of several named metric-driven strategies.
package rerank

import (
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/propdex/internal/domain"
)

// Weights are the boost multipliers applied to the initial score.
type Weights struct {
	ExactMatch float64 // W1
	Metadata   float64 // W2
	Quality    float64 // W3
}

// DefaultWeights returns the standard boost weights.
func DefaultWeights() Weights {
	return Weights{ExactMatch: 1.5, Metadata: 1.3, Quality: 1.2}
}

// Preferences are optional user constraints that feed the metadata boost.
type Preferences struct {
	MinPrice  *float64
	MaxPrice  *float64
	City      string
	MinRooms  *float64
	Amenities map[string]bool
}

// Reranker rescales candidate scores:
//
//	score = initial * (1 + exact*W1) * (1 + meta*W2) * (1 + quality*W3)
//
// then applies a diversity penalty when more than diversityThreshold
// candidates remain.
type Reranker struct {
	weights Weights
	logger  *zap.Logger
}

// Quality boost constituents. The raw sum is normalized to [0,1].
const (
	amenityQualityWeight  = 0.1
	ppsqmPresentWeight    = 0.1
	ppsqmReasonableWeight = 0.2
	descriptionWeight     = 0.2
	qualityMax            = 4*amenityQualityWeight + ppsqmReasonableWeight + descriptionWeight

	// reasonable price-per-sqm band
	ppsqmBandLow  = 500.0
	ppsqmBandHigh = 20000.0

	minDescriptionLen = 200

	diversityThreshold = 5
	diversityPenalty   = 0.9
	priceBucketWidth   = 500.0
	maxBucketRepeats   = 2
)

// stopwords excluded from exact-match token counting.
var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "near": true,
	"from": true, "that": true, "this": true, "have": true, "has": true,
	"are": true, "was": true,
}

// New creates a reranker. Zero-valued weights fall back to the defaults.
func New(weights Weights, logger *zap.Logger) *Reranker {
	if weights == (Weights{}) {
		weights = DefaultWeights()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reranker{weights: weights, logger: logger}
}

// Rerank rescales and reorders candidates. A missing or length-mismatched
// initial score slice defaults every document to 1.0. k <= 0 returns all.
func (r *Reranker) Rerank(
	query string,
	docs []domain.SearchDocument,
	initial []float64,
	prefs *Preferences,
	k int,
) []domain.ScoredDocument {
	if len(docs) == 0 {
		return nil
	}
	if len(initial) != len(docs) {
		initial = make([]float64, len(docs))
		for i := range initial {
			initial[i] = 1.0
		}
	}

	queryTokens := queryTokens(query)

	scored := make([]domain.ScoredDocument, len(docs))
	for i, doc := range docs {
		score := initial[i]
		score *= 1 + exactMatchBoost(queryTokens, doc)*r.weights.ExactMatch
		score *= 1 + metadataBoost(prefs, doc)*r.weights.Metadata
		score *= 1 + qualityBoost(doc)*r.weights.Quality
		scored[i] = domain.ScoredDocument{Document: doc, Score: score}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if len(scored) > diversityThreshold {
		applyDiversityPenalty(scored)
		sort.SliceStable(scored, func(i, j int) bool {
			return scored[i].Score > scored[j].Score
		})
	}

	if k > 0 && len(scored) > k {
		scored = scored[:k]
	}
	return scored
}

// queryTokens returns lower-cased query tokens longer than two characters,
// excluding stopwords.
func queryTokens(query string) []string {
	words := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		isAlpha := r >= 'a' && r <= 'z'
		isDigit := r >= '0' && r <= '9'
		return !isAlpha && !isDigit
	})
	out := make([]string, 0, len(words))
	for _, w := range words {
		if len(w) > 2 && !stopwords[w] {
			out = append(out, w)
		}
	}
	return out
}

// exactMatchBoost is the fraction of query tokens found as substrings in the
// document text or flattened metadata, capped at 1.
func exactMatchBoost(tokens []string, doc domain.SearchDocument) float64 {
	if len(tokens) == 0 {
		return 0
	}
	haystack := strings.ToLower(doc.Text) + " " + doc.Meta.FlatString()
	matched := 0
	for _, tok := range tokens {
		if strings.Contains(haystack, tok) {
			matched++
		}
	}
	boost := float64(matched) / float64(len(tokens))
	if boost > 1 {
		boost = 1
	}
	return boost
}

// metadataBoost is the fraction of supplied preferences the document
// satisfies; 0 without preferences.
func metadataBoost(prefs *Preferences, doc domain.SearchDocument) float64 {
	if prefs == nil {
		return 0
	}

	total, satisfied := 0, 0
	check := func(ok bool) {
		total++
		if ok {
			satisfied++
		}
	}

	price, hasPrice := doc.Meta.Number(domain.MetaPrice)
	if prefs.MaxPrice != nil {
		check(hasPrice && price <= *prefs.MaxPrice)
	}
	if prefs.MinPrice != nil {
		check(hasPrice && price >= *prefs.MinPrice)
	}
	if prefs.City != "" {
		check(doc.Meta.City == prefs.City)
	}
	if prefs.MinRooms != nil {
		rooms, hasRooms := doc.Meta.Number(domain.MetaRooms)
		check(hasRooms && rooms >= *prefs.MinRooms)
	}
	for key, want := range prefs.Amenities {
		got, ok := doc.Meta.Flag(key)
		check(ok && got == want)
	}

	if total == 0 {
		return 0
	}
	return float64(satisfied) / float64(total)
}

// qualityBoost scores intrinsic completeness: key amenities, a reasonable
// price-per-sqm, and a substantial description, normalized to [0,1].
func qualityBoost(doc domain.SearchDocument) float64 {
	sum := 0.0
	if doc.Meta.HasParking {
		sum += amenityQualityWeight
	}
	if doc.Meta.HasGarden {
		sum += amenityQualityWeight
	}
	if doc.Meta.HasBalcony {
		sum += amenityQualityWeight
	}
	if doc.Meta.HasElevator {
		sum += amenityQualityWeight
	}

	if ppsqm, ok := doc.Meta.Number(domain.MetaPricePerSqm); ok {
		if ppsqm >= ppsqmBandLow && ppsqm <= ppsqmBandHigh {
			sum += ppsqmReasonableWeight
		} else {
			sum += ppsqmPresentWeight
		}
	}

	if len(doc.Text) > minDescriptionLen {
		sum += descriptionWeight
	}

	return sum / qualityMax
}

// applyDiversityPenalty multiplies the score by 0.9 for each document whose
// city already appeared among higher-ranked results, and again when its
// $500-wide price bucket is already represented more than twice above it.
func applyDiversityPenalty(scored []domain.ScoredDocument) {
	seenCities := make(map[string]bool)
	bucketCounts := make(map[int64]int)

	for i := range scored {
		meta := scored[i].Document.Meta

		if city := meta.City; city != "" {
			if seenCities[city] {
				scored[i].Score *= diversityPenalty
			}
			seenCities[city] = true
		}

		if price, ok := meta.Number(domain.MetaPrice); ok {
			bucket := int64(price / priceBucketWidth)
			if bucketCounts[bucket] > maxBucketRepeats {
				scored[i].Score *= diversityPenalty
			}
			bucketCounts[bucket]++
		}
	}
}
