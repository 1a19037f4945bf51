package propdex

import (
	"context"
	"errors"
	"testing"
)

func listings() []Property {
	ppsqm := func(v float64) *float64 { return &v }
	return []Property{
		{
			ID:          "warsaw-1",
			City:        "Warsaw",
			ListingType: "rent",
			Price:       5000,
			Rooms:       3,
			HasParking:  true,
			Description: "Bright apartment with parking near the center of Warsaw.",
			SourceURL:   "https://example.com/listings",
		},
		{
			ID:          "krakow-cheap",
			City:        "Krakow",
			ListingType: "rent",
			Price:       4400,
			Rooms:       2,
			Description: "Cozy apartment in Krakow, no parking spot.",
			SourceURL:   "https://example.com/listings",
		},
		{
			ID:          "krakow-parking",
			City:        "Krakow",
			ListingType: "rent",
			Price:       4600,
			PricePerSqm: ppsqm(92),
			Rooms:       2,
			HasParking:  true,
			Description: "Apartment in Krakow with a dedicated parking space.",
			SourceURL:   "https://example.com/listings",
		},
	}
}

func newTestClient(t *testing.T) *Client {
	t.Helper()
	c, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestNew_DegradedModeWorks(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	res, err := c.Index(ctx, listings())
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	if res.Indexed != 3 {
		t.Fatalf("indexed = %d, want 3", res.Indexed)
	}

	stats, err := c.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Backend != "memory" {
		t.Errorf("backend = %q, want memory", stats.Backend)
	}
	if stats.EmbeddingProvider != "none" {
		t.Errorf("provider = %q, want none", stats.EmbeddingProvider)
	}
	if stats.TotalDocuments != 3 {
		t.Errorf("total documents = %d, want 3", stats.TotalDocuments)
	}
}

func TestSearchBuilder_CityAndAmenity(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	if _, err := c.Index(ctx, listings()); err != nil {
		t.Fatalf("Index: %v", err)
	}

	hits, err := c.Search("apartment in Krakow with parking").K(2).Do(ctx)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("hits = %d, want 1", len(hits))
	}
	if hits[0].Document.ID != "krakow-parking" {
		t.Errorf("top hit = %q, want krakow-parking", hits[0].Document.ID)
	}
}

func TestSearchBuilder_ForcedCriteriaOverrideQuery(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	if _, err := c.Index(ctx, listings()); err != nil {
		t.Fatalf("Index: %v", err)
	}

	// The query names Krakow but the forced city wins.
	hits, err := c.Search("apartment in Krakow").City("Warsaw").K(5).Do(ctx)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	for _, h := range hits {
		if h.Document.Meta.City != "Warsaw" {
			t.Errorf("hit %q city = %q, want Warsaw", h.Document.ID, h.Document.Meta.City)
		}
	}
	if len(hits) != 1 {
		t.Errorf("hits = %d, want 1", len(hits))
	}
}

func TestSearchBuilder_MaxPrice(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	if _, err := c.Index(ctx, listings()); err != nil {
		t.Fatalf("Index: %v", err)
	}

	hits, err := c.Search("apartment").MaxPrice(4500).K(5).Do(ctx)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if len(hits) != 1 || hits[0].Document.ID != "krakow-cheap" {
		t.Fatalf("expected only krakow-cheap under 4500, got %d hits", len(hits))
	}
}

func TestSearchBuilder_SortByPrice(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	if _, err := c.Index(ctx, listings()); err != nil {
		t.Fatalf("Index: %v", err)
	}

	hits, err := c.Search("apartment").SortBy(string(SortByPrice), false).K(5).Do(ctx)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if len(hits) != 3 {
		t.Fatalf("hits = %d, want 3", len(hits))
	}
	for i := 1; i < len(hits); i++ {
		prev, _ := hits[i-1].Document.Meta.Number(string(SortByPrice))
		cur, _ := hits[i].Document.Meta.Number(string(SortByPrice))
		if prev > cur {
			t.Errorf("prices not ascending at %d: %f > %f", i, prev, cur)
		}
	}
}

// Lambda(0) asks for pure diversity; it must be accepted, not silently
// replaced by the default trade-off.
func TestSearchBuilder_PureDiversityLambda(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	if _, err := c.Index(ctx, listings()); err != nil {
		t.Fatalf("Index: %v", err)
	}

	hits, err := c.Search("apartment").Mode(ModeMMR).Lambda(0).K(3).Do(ctx)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if len(hits) != 3 {
		t.Fatalf("hits = %d, want 3", len(hits))
	}
}

func TestSearchBuilder_InvalidStrategy(t *testing.T) {
	c := newTestClient(t)

	_, err := c.Search("apartment").Strategy("yolo").Do(context.Background())
	if err == nil {
		t.Fatal("expected error for unknown strategy")
	}
}

func TestClient_DeleteBySource(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	if _, err := c.Index(ctx, listings()); err != nil {
		t.Fatalf("Index: %v", err)
	}

	removed, err := c.DeleteBySource(ctx, "https://example.com/listings")
	if err != nil {
		t.Fatalf("DeleteBySource: %v", err)
	}
	if removed != 3 {
		t.Errorf("removed = %d, want 3", removed)
	}

	stats, _ := c.Stats(ctx)
	if stats.TotalDocuments != 0 {
		t.Errorf("total documents = %d, want 0", stats.TotalDocuments)
	}
}

func TestClientOptions(t *testing.T) {
	cfg := &clientConfig{}

	WithStorePath("/tmp/propdex")(cfg)
	if cfg.path != "/tmp/propdex" {
		t.Errorf("path = %q, want /tmp/propdex", cfg.path)
	}

	WithCollection("flats")(cfg)
	if cfg.collection != "flats" {
		t.Errorf("collection = %q, want flats", cfg.collection)
	}

	WithOpenAI("sk-test", "text-embedding-3-small")(cfg)
	if cfg.apiKey != "sk-test" || cfg.model != "text-embedding-3-small" {
		t.Errorf("openai = (%q, %q)", cfg.apiKey, cfg.model)
	}

	WithBaseURL("http://localhost:8080/v1")(cfg)
	if cfg.baseURL != "http://localhost:8080/v1" {
		t.Errorf("baseURL = %q", cfg.baseURL)
	}

	WithDimensions(768)(cfg)
	if cfg.dimensions != 768 {
		t.Errorf("dimensions = %d, want 768", cfg.dimensions)
	}

	WithInstruction("Represent the listing: ")(cfg)
	if cfg.instruction != "Represent the listing: " {
		t.Errorf("instruction = %q", cfg.instruction)
	}
}

type failingEmbedder struct{}

func (failingEmbedder) Embed(_ context.Context, _ string) (EmbeddingResult, error) {
	return EmbeddingResult{}, errors.New("provider down")
}

func TestWithEmbedder_FailuresSkipDocuments(t *testing.T) {
	c, err := New(WithEmbedder(failingEmbedder{}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	res, err := c.Index(context.Background(), listings())
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	if res.Indexed != 0 || res.Skipped != 3 {
		t.Errorf("indexed/skipped = %d/%d, want 0/3", res.Indexed, res.Skipped)
	}
}

func TestBuildEmbedder_None(t *testing.T) {
	if emb := buildEmbedder(&clientConfig{}); emb != nil {
		t.Fatal("expected nil embedder without a provider")
	}
}
