// Package filter defines the structured constraints applied to retrieval
// candidates: exact-match tags, numeric ranges, set membership, and a geo
// radius. A single Criteria value configures the whole retriever pipeline.
package filter

import (
	"fmt"
	"strconv"

	"github.com/kailas-cloud/propdex/internal/domain"
	"github.com/kailas-cloud/propdex/internal/domain/geo"
)

// GeoRadius constrains documents to a great-circle radius around a center.
type GeoRadius struct {
	Lat      float64
	Lon      float64
	RadiusKm float64
}

// Validate checks the geo constraint for well-formedness.
func (g GeoRadius) Validate() error {
	if g.RadiusKm < 0 {
		return fmt.Errorf("%w: got %f km", domain.ErrInvalidRadius, g.RadiusKm)
	}
	if !geo.ValidateCoordinates(g.Lat, g.Lon) {
		return fmt.Errorf("%w: lat=%f lon=%f", domain.ErrInvalidCoordinates, g.Lat, g.Lon)
	}
	return nil
}

// Criteria is the optional bag of retrieval constraints. The zero value
// matches everything.
type Criteria struct {
	// Exact-match subset; also derivable from free-text by the extractor.
	City        string
	ListingType string
	Amenities   map[string]bool // amenity key -> required value

	// Numeric ranges. Documents missing the field are dropped by the
	// corresponding range filter.
	MinPrice       *float64
	MaxPrice       *float64
	MinPricePerSqm *float64
	MaxPricePerSqm *float64
	MinRooms       *float64
	MaxRooms       *float64
	MinYearBuilt   *float64
	MaxYearBuilt   *float64

	// Set membership.
	EnergyCerts []string

	// Geo radius.
	Geo *GeoRadius
}

// Validate checks the criteria for truly invalid input; malformed document
// metadata is handled later by silent exclusion, not here.
func (c Criteria) Validate() error {
	if c.Geo != nil {
		if err := c.Geo.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// IsEmpty reports whether no constraint is set.
func (c Criteria) IsEmpty() bool {
	return c.City == "" && c.ListingType == "" && len(c.Amenities) == 0 &&
		c.MinPrice == nil && c.MaxPrice == nil &&
		c.MinPricePerSqm == nil && c.MaxPricePerSqm == nil &&
		c.MinRooms == nil && c.MaxRooms == nil &&
		c.MinYearBuilt == nil && c.MaxYearBuilt == nil &&
		len(c.EnergyCerts) == 0 && c.Geo == nil
}

// ExactMatch returns the exact-match subset as a flat map in the store's
// metadata string form, suitable for pushdown at the store boundary.
func (c Criteria) ExactMatch() map[string]string {
	out := make(map[string]string, 2+len(c.Amenities))
	if c.City != "" {
		out[domain.MetaCity] = c.City
	}
	if c.ListingType != "" {
		out[domain.MetaListingType] = c.ListingType
	}
	for key, want := range c.Amenities {
		out[key] = strconv.FormatBool(want)
	}
	return out
}

// Merge overlays forced on top of extracted: on key collision the forced
// value wins.
func Merge(extracted, forced Criteria) Criteria {
	merged := forced

	if merged.City == "" {
		merged.City = extracted.City
	}
	if merged.ListingType == "" {
		merged.ListingType = extracted.ListingType
	}
	if len(extracted.Amenities) > 0 {
		combined := make(map[string]bool, len(extracted.Amenities)+len(merged.Amenities))
		for k, v := range extracted.Amenities {
			combined[k] = v
		}
		for k, v := range merged.Amenities {
			combined[k] = v
		}
		merged.Amenities = combined
	}

	return merged
}

// MatchesExact reports whether the document satisfies the exact-match subset
// (city, listing type, amenity flags).
func (c Criteria) MatchesExact(doc domain.SearchDocument) bool {
	if c.City != "" && doc.Meta.City != c.City {
		return false
	}
	if c.ListingType != "" && doc.Meta.ListingType != c.ListingType {
		return false
	}
	for key, want := range c.Amenities {
		got, ok := doc.Meta.Flag(key)
		if !ok || got != want {
			return false
		}
	}
	return true
}

// MatchesPrice applies the price, price-per-sqm, and rooms range filters.
// A document missing a constrained field is excluded.
func (c Criteria) MatchesPrice(doc domain.SearchDocument) bool {
	if !inRange(doc.Meta, domain.MetaPrice, c.MinPrice, c.MaxPrice) {
		return false
	}
	if !inRange(doc.Meta, domain.MetaPricePerSqm, c.MinPricePerSqm, c.MaxPricePerSqm) {
		return false
	}
	return inRange(doc.Meta, domain.MetaRooms, c.MinRooms, c.MaxRooms)
}

// MatchesGeo applies the radius filter (boundary inclusive). Documents
// missing coordinates are excluded when a geo constraint is set.
func (c Criteria) MatchesGeo(doc domain.SearchDocument) bool {
	if c.Geo == nil {
		return true
	}
	lat, okLat := doc.Meta.Number(domain.MetaLat)
	lon, okLon := doc.Meta.Number(domain.MetaLon)
	if !okLat || !okLon {
		return false
	}
	return geo.Haversine(c.Geo.Lat, c.Geo.Lon, lat, lon) <= c.Geo.RadiusKm
}

// MatchesYearBuilt applies the year-built range filter.
func (c Criteria) MatchesYearBuilt(doc domain.SearchDocument) bool {
	return inRange(doc.Meta, domain.MetaYearBuilt, c.MinYearBuilt, c.MaxYearBuilt)
}

// MatchesEnergyCert applies the energy-certificate allow-list.
func (c Criteria) MatchesEnergyCert(doc domain.SearchDocument) bool {
	if len(c.EnergyCerts) == 0 {
		return true
	}
	cert := doc.Meta.EnergyCert
	if cert == nil {
		return false
	}
	for _, allowed := range c.EnergyCerts {
		if *cert == allowed {
			return true
		}
	}
	return false
}

func inRange(m domain.Metadata, key string, min, max *float64) bool {
	if min == nil && max == nil {
		return true
	}
	v, ok := m.Number(key)
	if !ok {
		return false
	}
	if min != nil && v < *min {
		return false
	}
	if max != nil && v > *max {
		return false
	}
	return true
}
