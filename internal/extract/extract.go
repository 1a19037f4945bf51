// Package extract derives implicit structured filters from free-text query
// tokens: known city names, amenity requirements, and listing type.
// Extraction is best-effort and never fails; an unmatched query yields an
// empty criteria set.
package extract

import (
	"strings"

	"github.com/kailas-cloud/propdex/internal/domain"
	"github.com/kailas-cloud/propdex/internal/domain/filter"
)

// defaultCities is the built-in gazetteer, matched as whole words in fixed
// order: the first hit wins.
var defaultCities = []string{
	"Warsaw", "Krakow", "Gdansk", "Wroclaw", "Poznan", "Lodz",
	"Szczecin", "Katowice", "Lublin", "Bydgoszcz", "Gdynia", "Bialystok",
}

var (
	rentKeywords = []string{"rent", "rental", "renting", "lease"}
	saleKeywords = []string{"buy", "buying", "sale", "purchase"}
)

// amenityKeywords maps trigger words to the amenity flag they require.
var amenityKeywords = []struct {
	words []string
	key   string
}{
	{words: []string{"parking", "garage"}, key: domain.MetaHasParking},
	{words: []string{"garden"}, key: domain.MetaHasGarden},
	{words: []string{"pool"}, key: domain.MetaHasPool},
}

// Extractor matches query tokens against a fixed gazetteer and keyword sets.
type Extractor struct {
	cities []string
}

// New creates an extractor with the default gazetteer.
func New() *Extractor {
	return &Extractor{cities: defaultCities}
}

// WithCities replaces the gazetteer, preserving match order.
func (e *Extractor) WithCities(cities []string) *Extractor {
	e.cities = cities
	return e
}

// Extract derives the exact-match criteria subset from a raw query.
func (e *Extractor) Extract(query string) filter.Criteria {
	tokens := tokenSet(query)
	if len(tokens) == 0 {
		return filter.Criteria{}
	}

	var crit filter.Criteria

	for _, city := range e.cities {
		if tokens[strings.ToLower(city)] {
			crit.City = city
			break
		}
	}

	for _, am := range amenityKeywords {
		for _, word := range am.words {
			if tokens[word] {
				if crit.Amenities == nil {
					crit.Amenities = make(map[string]bool, 2)
				}
				crit.Amenities[am.key] = true
				break
			}
		}
	}

	// Rent keywords take priority over sale keywords when both appear.
	if anyToken(tokens, rentKeywords) {
		crit.ListingType = "rent"
	} else if anyToken(tokens, saleKeywords) {
		crit.ListingType = "sale"
	}

	return crit
}

func anyToken(tokens map[string]bool, words []string) bool {
	for _, w := range words {
		if tokens[w] {
			return true
		}
	}
	return false
}

// tokenSet lower-cases the query and splits it into alphanumeric words.
func tokenSet(query string) map[string]bool {
	words := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		isAlpha := r >= 'a' && r <= 'z'
		isDigit := r >= '0' && r <= '9'
		return !isAlpha && !isDigit
	})
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}
