package rerank

import (
	"errors"
	"testing"

	"github.com/kailas-cloud/propdex/internal/domain"
)

func investorDoc(id string, ppsqm *float64, price, area *float64) domain.SearchDocument {
	return domain.SearchDocument{
		ID:   id,
		Text: "listing",
		Meta: domain.Metadata{PricePerSqm: ppsqm, Price: price, AreaSqm: area},
	}
}

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy("")
	if err != nil || s != StrategyBalanced {
		t.Fatalf("expected empty to default to balanced, got %q %v", s, err)
	}
	if _, err := ParseStrategy("investor"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := ParseStrategy("yolo"); !errors.Is(err, domain.ErrInvalidStrategy) {
		t.Fatalf("expected ErrInvalidStrategy, got %v", err)
	}
}

func TestRerankWithStrategy_BargainOrdersByPrice(t *testing.T) {
	r := NewStrategic(Weights{}, nil)

	docs := []domain.SearchDocument{
		listing("mid", "Warsaw", 400000),
		listing("cheap", "Warsaw", 200000),
		listing("pricey", "Warsaw", 800000),
	}
	// Initial scores favor the priciest: metric strategies must ignore them.
	scored := r.RerankWithStrategy("query", docs, StrategyBargain, []float64{0.1, 0.2, 0.9}, nil, 0)

	prices := make([]float64, len(scored))
	for i, sd := range scored {
		p, _ := sd.Document.Meta.Number(domain.MetaPrice)
		prices[i] = p
	}
	for i := 1; i < len(prices); i++ {
		if prices[i] < prices[i-1] {
			t.Fatalf("expected non-decreasing prices, got %v", prices)
		}
	}
	if scored[0].Document.ID != "cheap" {
		t.Fatalf("expected cheapest first, got %q", scored[0].Document.ID)
	}
}

func TestRerankWithStrategy_InvestorDerivesPpsqm(t *testing.T) {
	r := NewStrategic(Weights{}, nil)

	docs := []domain.SearchDocument{
		investorDoc("direct", f64(9000), nil, nil),
		// 300000 / 60 = 5000 per sqm, derived.
		investorDoc("derived", nil, f64(300000), f64(60)),
		// No metric derivable: ranks last.
		investorDoc("opaque", nil, f64(500000), nil),
	}

	scored := r.RerankWithStrategy("query", docs, StrategyInvestor, nil, nil, 0)

	if scored[0].Document.ID != "derived" {
		t.Fatalf("expected lowest ppsqm first, got %q", scored[0].Document.ID)
	}
	if scored[len(scored)-1].Document.ID != "opaque" {
		t.Fatalf("expected metric-less doc last, got %q", scored[len(scored)-1].Document.ID)
	}
	if scored[len(scored)-1].Score != 0 {
		t.Fatalf("expected metric-less doc to score 0, got %f", scored[len(scored)-1].Score)
	}
}

func TestRerankWithStrategy_FamilyWeighting(t *testing.T) {
	r := NewStrategic(Weights{}, nil)

	big := domain.SearchDocument{ID: "big", Text: "listing",
		Meta: domain.Metadata{Rooms: f64(5)}}
	greenSmall := domain.SearchDocument{ID: "green", Text: "listing",
		Meta: domain.Metadata{Rooms: f64(2), HasGarden: true, HasElevator: true}}

	scored := r.RerankWithStrategy("query", []domain.SearchDocument{greenSmall, big}, StrategyFamily, nil, nil, 0)

	// 5 rooms and 2 rooms + garden + elevator both compute to 5.0: equal
	// metrics share the normalized score and input order is kept.
	if scored[0].Document.ID != "green" {
		t.Fatalf("expected stable order on metric tie, got %q first", scored[0].Document.ID)
	}
	if scored[0].Score != scored[1].Score {
		t.Fatalf("expected tied scores, got %f vs %f", scored[0].Score, scored[1].Score)
	}
}

func TestRerankWithStrategy_BalancedDelegates(t *testing.T) {
	r := NewStrategic(Weights{}, nil)

	docs := []domain.SearchDocument{
		{ID: "match", Text: "apartment with parking"},
		{ID: "other", Text: "rural barn"},
	}
	scored := r.RerankWithStrategy("apartment parking", docs, StrategyBalanced, []float64{1, 1}, nil, 0)
	if scored[0].Document.ID != "match" {
		t.Fatalf("expected balanced strategy to use lexical boost, got %q", scored[0].Document.ID)
	}
}

func TestRerankWithStrategy_AllEqualMetric(t *testing.T) {
	r := NewStrategic(Weights{}, nil)

	docs := []domain.SearchDocument{
		listing("a", "Warsaw", 300000),
		listing("b", "Krakow", 300000),
	}
	scored := r.RerankWithStrategy("query", docs, StrategyBargain, nil, nil, 0)
	if scored[0].Score != 1.0 || scored[1].Score != 1.0 {
		t.Fatalf("expected equal metrics to share top score, got %f %f", scored[0].Score, scored[1].Score)
	}
	if scored[0].Document.ID != "a" {
		t.Fatal("expected stable input order on ties")
	}
}

func TestRerankWithStrategy_TruncatesToK(t *testing.T) {
	r := NewStrategic(Weights{}, nil)

	docs := []domain.SearchDocument{
		listing("a", "Warsaw", 100),
		listing("b", "Warsaw", 200),
		listing("c", "Warsaw", 300),
	}
	scored := r.RerankWithStrategy("query", docs, StrategyBargain, nil, nil, 2)
	if len(scored) != 2 {
		t.Fatalf("expected 2 results, got %d", len(scored))
	}
}
