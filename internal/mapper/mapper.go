// Package mapper converts Property entities into search documents: a dense
// text paragraph for embedding plus a sanitized, primitives-only metadata
// record. All sanitization lives here, in one place.
package mapper

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/kailas-cloud/propdex/internal/domain"
)

// ToDocument flattens a property into a SearchDocument.
func ToDocument(p domain.Property) domain.SearchDocument {
	return domain.SearchDocument{
		ID:   p.ID,
		Text: buildText(p),
		Meta: sanitize(p),
	}
}

// ToDocuments maps a batch of properties.
func ToDocuments(props []domain.Property) []domain.SearchDocument {
	docs := make([]domain.SearchDocument, len(props))
	for i, p := range props {
		docs[i] = ToDocument(p)
	}
	return docs
}

// buildText concatenates all human-readable fields into a paragraph suitable
// for embedding. Field order is fixed for determinism.
func buildText(p domain.Property) string {
	var b strings.Builder

	propertyType := canonicalLower(p.PropertyType)
	if propertyType == "" {
		propertyType = "property"
	}
	if p.Rooms > 0 {
		fmt.Fprintf(&b, "%s-room %s", trimFloat(p.Rooms), propertyType)
	} else {
		b.WriteString(capitalizeFirst(propertyType))
	}
	if lt := canonicalLower(p.ListingType); lt != "" {
		fmt.Fprintf(&b, " for %s", lt)
	}
	if city := canonicalCity(p.City); city != "" {
		fmt.Fprintf(&b, " in %s", city)
		if p.Neighborhood != "" {
			fmt.Fprintf(&b, ", %s", p.Neighborhood)
		}
	}
	b.WriteString(".")

	if isFinite(p.Price) && p.Price > 0 {
		fmt.Fprintf(&b, " Price %s", trimFloat(p.Price))
		if p.PricePerSqm != nil && isFinite(*p.PricePerSqm) {
			fmt.Fprintf(&b, " (%s per sqm)", trimFloat(*p.PricePerSqm))
		}
		b.WriteString(".")
	}
	if p.AreaSqm != nil && isFinite(*p.AreaSqm) {
		fmt.Fprintf(&b, " Area %s sqm.", trimFloat(*p.AreaSqm))
	}
	if p.Bathrooms > 0 {
		fmt.Fprintf(&b, " %s bathrooms.", trimFloat(p.Bathrooms))
	}
	if p.YearBuilt != nil {
		fmt.Fprintf(&b, " Built in %d.", *p.YearBuilt)
	}
	if cert := strings.ToUpper(strings.TrimSpace(p.EnergyCert)); cert != "" {
		fmt.Fprintf(&b, " Energy certificate %s.", cert)
	}

	if features := featureList(p); len(features) > 0 {
		fmt.Fprintf(&b, " Features: %s.", strings.Join(features, ", "))
	}

	if desc := strings.TrimSpace(p.Description); desc != "" {
		b.WriteString(" ")
		b.WriteString(desc)
	}

	return b.String()
}

func featureList(p domain.Property) []string {
	var features []string
	if p.HasParking {
		features = append(features, "parking")
	}
	if p.HasGarage {
		features = append(features, "garage")
	}
	if p.HasGarden {
		features = append(features, "garden")
	}
	if p.HasPool {
		features = append(features, "pool")
	}
	if p.HasElevator {
		features = append(features, "elevator")
	}
	if p.HasBalcony {
		features = append(features, "balcony")
	}
	if p.IsFurnished {
		features = append(features, "furnished")
	}
	return features
}

// sanitize builds the metadata record. Numerics that are not finite are
// dropped, enum-like fields are folded to canonical case, composite values
// (timestamps) become ISO-8601 strings.
func sanitize(p domain.Property) domain.Metadata {
	m := domain.Metadata{
		City:            canonicalCity(p.City),
		Neighborhood:    strings.TrimSpace(p.Neighborhood),
		PropertyType:    canonicalLower(p.PropertyType),
		ListingType:     canonicalLower(p.ListingType),
		NegotiationTier: canonicalLower(p.NegotiationTier),
		HasParking:      p.HasParking,
		HasGarden:       p.HasGarden,
		HasPool:         p.HasPool,
		HasGarage:       p.HasGarage,
		HasElevator:     p.HasElevator,
		HasBalcony:      p.HasBalcony,
		IsFurnished:     p.IsFurnished,
		SourceURL:       strings.TrimSpace(p.SourceURL),
	}

	m.Price = finiteOrNil(p.Price)
	m.Rooms = finiteOrNil(p.Rooms)
	m.Bathrooms = finiteOrNil(p.Bathrooms)
	if p.PricePerSqm != nil {
		m.PricePerSqm = finiteOrNil(*p.PricePerSqm)
	}
	if p.AreaSqm != nil {
		m.AreaSqm = finiteOrNil(*p.AreaSqm)
	}

	// Nullable fields: lat/lon, year_built and energy_cert stay nil when
	// absent but always keep their keys in the flattened form.
	if p.Latitude != nil && p.Longitude != nil &&
		isFinite(*p.Latitude) && isFinite(*p.Longitude) {
		lat, lon := *p.Latitude, *p.Longitude
		m.Lat = &lat
		m.Lon = &lon
	}
	if p.YearBuilt != nil {
		year := float64(*p.YearBuilt)
		m.YearBuilt = &year
	}
	if cert := strings.ToUpper(strings.TrimSpace(p.EnergyCert)); cert != "" {
		m.EnergyCert = &cert
	}

	if !p.ListedAt.IsZero() {
		m.ListedAt = p.ListedAt.UTC().Format(time.RFC3339)
	}

	return m
}

// canonicalCity folds a city name to canonical capitalization:
// first letter upper, rest lower.
func canonicalCity(city string) string {
	return capitalizeFirst(strings.ToLower(strings.TrimSpace(city)))
}

func canonicalLower(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func capitalizeFirst(s string) string {
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func finiteOrNil(v float64) *float64 {
	if !isFinite(v) {
		return nil
	}
	return &v
}

// trimFloat renders a float without a trailing ".0" for whole values.
func trimFloat(v float64) string {
	if v == math.Trunc(v) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%g", v)
}
