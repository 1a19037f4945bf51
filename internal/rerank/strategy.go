package rerank

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/kailas-cloud/propdex/internal/domain"
)

// Strategy names a final-ordering scoring strategy.
type Strategy string

// Supported strategies.
const (
	// StrategyBalanced delegates to the standard boost-based reranking.
	StrategyBalanced Strategy = "balanced"
	// StrategyInvestor ranks by price per square meter, lower first.
	StrategyInvestor Strategy = "investor"
	// StrategyFamily ranks by room count plus family amenities, higher first.
	StrategyFamily Strategy = "family"
	// StrategyBargain ranks by absolute price, lower first.
	StrategyBargain Strategy = "bargain"
)

// IsValid checks the strategy name.
func (s Strategy) IsValid() bool {
	switch s {
	case StrategyBalanced, StrategyInvestor, StrategyFamily, StrategyBargain:
		return true
	}
	return false
}

// ParseStrategy validates a strategy name, defaulting empty to balanced.
func ParseStrategy(name string) (Strategy, error) {
	if name == "" {
		return StrategyBalanced, nil
	}
	s := Strategy(name)
	if !s.IsValid() {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidStrategy, name)
	}
	return s, nil
}

// Family strategy weights: room count plus presence of family amenities.
const (
	familyRoomWeight     = 1.0
	familyGardenWeight   = 2.0
	familyElevatorWeight = 1.0
)

// StrategicReranker extends the boost-based reranker with named
// metric-driven strategies. The three metric strategies ignore initial
// scores on purpose: their ordering is a property of the documents, not of
// query relevance.
type StrategicReranker struct {
	*Reranker
}

// NewStrategic creates a strategic reranker.
func NewStrategic(weights Weights, logger *zap.Logger) *StrategicReranker {
	return &StrategicReranker{Reranker: New(weights, logger)}
}

// RerankWithStrategy orders candidates by the named strategy. balanced
// delegates to Rerank unchanged; the metric strategies min-max normalize
// their metric across the candidate set (ties share a score, documents
// missing the metric score worst) and sort descending.
func (s *StrategicReranker) RerankWithStrategy(
	query string,
	docs []domain.SearchDocument,
	strategy Strategy,
	initial []float64,
	prefs *Preferences,
	k int,
) []domain.ScoredDocument {
	switch strategy {
	case StrategyInvestor:
		return rankByMetric(docs, k, investorMetric, false)
	case StrategyFamily:
		return rankByMetric(docs, k, familyMetric, true)
	case StrategyBargain:
		return rankByMetric(docs, k, bargainMetric, false)
	default:
		return s.Rerank(query, docs, initial, prefs, k)
	}
}

// investorMetric is price per square meter; lower is better. Documents
// without a derivable value score worst.
func investorMetric(doc domain.SearchDocument) (float64, bool) {
	if ppsqm, ok := doc.Meta.Number(domain.MetaPricePerSqm); ok && ppsqm > 0 {
		return ppsqm, true
	}
	price, okPrice := doc.Meta.Number(domain.MetaPrice)
	area, okArea := doc.Meta.Number(domain.MetaAreaSqm)
	if !okPrice || !okArea || area <= 0 {
		return 0, false
	}
	return price / area, true
}

// familyMetric is a weighted sum of room count and family amenities; higher
// is better.
func familyMetric(doc domain.SearchDocument) (float64, bool) {
	metric := 0.0
	if rooms, ok := doc.Meta.Number(domain.MetaRooms); ok {
		metric += familyRoomWeight * rooms
	}
	if doc.Meta.HasGarden {
		metric += familyGardenWeight
	}
	if doc.Meta.HasElevator {
		metric += familyElevatorWeight
	}
	return metric, true
}

// bargainMetric is absolute price; lower is better.
func bargainMetric(doc domain.SearchDocument) (float64, bool) {
	price, ok := doc.Meta.Number(domain.MetaPrice)
	return price, ok
}

// rankByMetric converts a raw metric into a [0,1] score via min-max
// normalization over the candidates carrying the metric and sorts
// descending, stably. Candidates missing the metric score 0.
func rankByMetric(
	docs []domain.SearchDocument,
	k int,
	metric func(domain.SearchDocument) (float64, bool),
	higherIsBetter bool,
) []domain.ScoredDocument {
	if len(docs) == 0 {
		return nil
	}

	values := make([]float64, len(docs))
	valid := make([]bool, len(docs))
	minV, maxV := 0.0, 0.0
	first := true
	for i, doc := range docs {
		v, ok := metric(doc)
		values[i], valid[i] = v, ok
		if !ok {
			continue
		}
		if first {
			minV, maxV = v, v
			first = false
			continue
		}
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
	}

	scored := make([]domain.ScoredDocument, len(docs))
	for i, doc := range docs {
		score := 0.0
		if valid[i] {
			score = normalize(values[i], minV, maxV, higherIsBetter)
		}
		scored[i] = domain.ScoredDocument{Document: doc, Score: score}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if k > 0 && len(scored) > k {
		scored = scored[:k]
	}
	return scored
}

// normalize maps v into [0,1]. When all valid metrics are equal they share
// the top score.
func normalize(v, minV, maxV float64, higherIsBetter bool) float64 {
	if maxV == minV {
		return 1.0
	}
	norm := (v - minV) / (maxV - minV)
	if higherIsBetter {
		return norm
	}
	return 1.0 - norm
}
