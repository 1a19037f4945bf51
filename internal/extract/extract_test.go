package extract

import (
	"testing"

	"github.com/kailas-cloud/propdex/internal/domain"
)

func TestExtract_City(t *testing.T) {
	crit := New().Extract("cozy apartment in Krakow near the river")
	if crit.City != "Krakow" {
		t.Fatalf("expected Krakow, got %q", crit.City)
	}
}

func TestExtract_FirstCityWins(t *testing.T) {
	// Warsaw precedes Krakow in the gazetteer regardless of word order.
	crit := New().Extract("moving from Krakow to Warsaw")
	if crit.City != "Warsaw" {
		t.Fatalf("expected gazetteer order to win, got %q", crit.City)
	}
}

func TestExtract_CaseInsensitiveWholeWords(t *testing.T) {
	if crit := New().Extract("APARTMENT IN WARSAW"); crit.City != "Warsaw" {
		t.Fatalf("expected case-insensitive match, got %q", crit.City)
	}
	// Substrings never match.
	if crit := New().Extract("warsawesque vibes"); crit.City != "" {
		t.Fatalf("expected no substring match, got %q", crit.City)
	}
}

func TestExtract_Amenities(t *testing.T) {
	crit := New().Extract("house with garage and garden")
	if !crit.Amenities[domain.MetaHasParking] {
		t.Error("expected garage to imply has_parking")
	}
	if !crit.Amenities[domain.MetaHasGarden] {
		t.Error("expected garden amenity")
	}
	if len(crit.Amenities) != 2 {
		t.Errorf("expected 2 amenities, got %v", crit.Amenities)
	}
}

func TestExtract_ListingType(t *testing.T) {
	if crit := New().Extract("apartment to buy"); crit.ListingType != "sale" {
		t.Fatalf("expected sale, got %q", crit.ListingType)
	}
	if crit := New().Extract("flat for rent"); crit.ListingType != "rent" {
		t.Fatalf("expected rent, got %q", crit.ListingType)
	}
	// Rent keywords win when both appear.
	if crit := New().Extract("buy or rent in Gdansk"); crit.ListingType != "rent" {
		t.Fatalf("expected rent priority, got %q", crit.ListingType)
	}
}

func TestExtract_EmptyAndUnmatched(t *testing.T) {
	if crit := New().Extract(""); !crit.IsEmpty() {
		t.Fatalf("expected empty criteria, got %+v", crit)
	}
	if crit := New().Extract("spacious bright modern"); !crit.IsEmpty() {
		t.Fatalf("expected empty criteria for unmatched query, got %+v", crit)
	}
}

func TestExtract_WithCities(t *testing.T) {
	crit := New().WithCities([]string{"Lisbon", "Porto"}).Extract("flat in porto")
	if crit.City != "Porto" {
		t.Fatalf("expected custom gazetteer hit, got %q", crit.City)
	}
}
