package propdex

import (
	"context"

	"github.com/kailas-cloud/propdex/internal/retriever"
)

// SearchBuilder is a fluent builder for search queries. Constraints set here
// are forced: they override anything extracted from the query text.
type SearchBuilder struct {
	client *Client
	query  string

	k        int
	fetchK   int
	mode     Mode
	lambda   *float64
	strategy Strategy
	criteria Criteria
	sort     *SortSpec
}

// K sets the number of results to return.
func (b *SearchBuilder) K(k int) *SearchBuilder {
	b.k = k
	return b
}

// FetchK sets the candidate pool size fetched ahead of filtering.
func (b *SearchBuilder) FetchK(fetchK int) *SearchBuilder {
	b.fetchK = fetchK
	return b
}

// Mode selects the candidate-fetch strategy (similarity or mmr).
func (b *SearchBuilder) Mode(m Mode) *SearchBuilder {
	b.mode = m
	return b
}

// Lambda sets the MMR relevance/diversity trade-off; 1 is pure relevance,
// 0 pure diversity.
func (b *SearchBuilder) Lambda(lambda float64) *SearchBuilder {
	b.lambda = &lambda
	return b
}

// Strategy selects the reranking strategy.
func (b *SearchBuilder) Strategy(s Strategy) *SearchBuilder {
	b.strategy = s
	return b
}

// City restricts results to an exact city match.
func (b *SearchBuilder) City(city string) *SearchBuilder {
	b.criteria.City = city
	return b
}

// ListingType restricts results to "rent" or "sale".
func (b *SearchBuilder) ListingType(lt string) *SearchBuilder {
	b.criteria.ListingType = lt
	return b
}

// Amenity requires an amenity flag to hold the given value.
func (b *SearchBuilder) Amenity(key string, want bool) *SearchBuilder {
	if b.criteria.Amenities == nil {
		b.criteria.Amenities = make(map[string]bool)
	}
	b.criteria.Amenities[key] = want
	return b
}

// MinPrice drops results priced below the bound.
func (b *SearchBuilder) MinPrice(price float64) *SearchBuilder {
	b.criteria.MinPrice = &price
	return b
}

// MaxPrice drops results priced above the bound.
func (b *SearchBuilder) MaxPrice(price float64) *SearchBuilder {
	b.criteria.MaxPrice = &price
	return b
}

// Near restricts results to a great-circle radius around a point.
func (b *SearchBuilder) Near(lat, lon, radiusKm float64) *SearchBuilder {
	b.criteria.Geo = &GeoRadius{Lat: lat, Lon: lon, RadiusKm: radiusKm}
	return b
}

// Criteria replaces the accumulated constraints wholesale.
func (b *SearchBuilder) Criteria(c Criteria) *SearchBuilder {
	b.criteria = c
	return b
}

// SortBy orders the filtered results by a metadata field instead of
// reranking them.
func (b *SearchBuilder) SortBy(field string, descending bool) *SearchBuilder {
	b.sort = &SortSpec{Field: SortField(field), Descending: descending}
	return b
}

// Do executes the search.
func (b *SearchBuilder) Do(ctx context.Context) ([]ScoredDocument, error) {
	r, err := b.client.engine.AsRetriever(retriever.Options{
		Mode:     b.mode,
		K:        b.k,
		FetchK:   b.fetchK,
		Lambda:   b.lambda,
		Criteria: b.criteria,
		Sort:     b.sort,
		Strategy: b.strategy,
	})
	if err != nil {
		return nil, err
	}
	return r.Retrieve(ctx, b.query)
}
