package domain

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Metadata field keys shared between the mapper, filters, and the store.
const (
	MetaCity            = "city"
	MetaNeighborhood    = "neighborhood"
	MetaPropertyType    = "property_type"
	MetaListingType     = "listing_type"
	MetaPrice           = "price"
	MetaPricePerSqm     = "price_per_sqm"
	MetaRooms           = "rooms"
	MetaBathrooms       = "bathrooms"
	MetaAreaSqm         = "area_sqm"
	MetaLat             = "lat"
	MetaLon             = "lon"
	MetaYearBuilt       = "year_built"
	MetaEnergyCert      = "energy_cert"
	MetaNegotiationTier = "negotiation_tier"
	MetaHasParking      = "has_parking"
	MetaHasGarden       = "has_garden"
	MetaHasPool         = "has_pool"
	MetaHasGarage       = "has_garage"
	MetaHasElevator     = "has_elevator"
	MetaHasBalcony      = "has_balcony"
	MetaIsFurnished     = "is_furnished"
	MetaSourceURL       = "source_url"
	MetaListedAt        = "listed_at"
)

// Metadata is the sanitized, primitives-only record attached to a SearchDocument.
// Optional fields are omitted entirely when absent; lat/lon, year_built and
// energy_cert are explicitly nullable and always serialize their key.
// Once attached to a stored document the record is never mutated in place.
type Metadata struct {
	City            string
	Neighborhood    string // optional
	PropertyType    string
	ListingType     string
	NegotiationTier string // optional

	Price       *float64
	PricePerSqm *float64 // optional
	Rooms       *float64
	Bathrooms   *float64
	AreaSqm     *float64 // optional

	Lat        *float64 // nullable, key always present
	Lon        *float64 // nullable, key always present
	YearBuilt  *float64 // nullable, key always present
	EnergyCert *string  // nullable, key always present

	HasParking  bool
	HasGarden   bool
	HasPool     bool
	HasGarage   bool
	HasElevator bool
	HasBalcony  bool
	IsFurnished bool

	SourceURL string
	ListedAt  string // ISO-8601, optional
}

// Number returns the numeric value for a metadata key.
// The second return is false when the field is absent or not numeric.
func (m Metadata) Number(key string) (float64, bool) {
	var p *float64
	switch key {
	case MetaPrice:
		p = m.Price
	case MetaPricePerSqm:
		p = m.PricePerSqm
	case MetaRooms:
		p = m.Rooms
	case MetaBathrooms:
		p = m.Bathrooms
	case MetaAreaSqm:
		p = m.AreaSqm
	case MetaLat:
		p = m.Lat
	case MetaLon:
		p = m.Lon
	case MetaYearBuilt:
		p = m.YearBuilt
	default:
		return 0, false
	}
	if p == nil {
		return 0, false
	}
	return *p, true
}

// Flag returns the boolean value for an amenity key.
// The second return is false for non-boolean keys.
func (m Metadata) Flag(key string) (bool, bool) {
	switch key {
	case MetaHasParking:
		return m.HasParking, true
	case MetaHasGarden:
		return m.HasGarden, true
	case MetaHasPool:
		return m.HasPool, true
	case MetaHasGarage:
		return m.HasGarage, true
	case MetaHasElevator:
		return m.HasElevator, true
	case MetaHasBalcony:
		return m.HasBalcony, true
	case MetaIsFurnished:
		return m.IsFurnished, true
	default:
		return false, false
	}
}

// ToMap flattens the record to the string form used at the store boundary.
// Numbers use the shortest exact decimal form, booleans are "true"/"false",
// nullable fields serialize an empty value.
func (m Metadata) ToMap() map[string]string {
	out := make(map[string]string, 24)

	putStr(out, MetaCity, m.City)
	putStr(out, MetaNeighborhood, m.Neighborhood)
	putStr(out, MetaPropertyType, m.PropertyType)
	putStr(out, MetaListingType, m.ListingType)
	putStr(out, MetaNegotiationTier, m.NegotiationTier)
	putStr(out, MetaSourceURL, m.SourceURL)
	putStr(out, MetaListedAt, m.ListedAt)

	putNum(out, MetaPrice, m.Price)
	putNum(out, MetaPricePerSqm, m.PricePerSqm)
	putNum(out, MetaRooms, m.Rooms)
	putNum(out, MetaBathrooms, m.Bathrooms)
	putNum(out, MetaAreaSqm, m.AreaSqm)

	// Nullable fields keep their key even when unset.
	out[MetaLat] = formatNullableNum(m.Lat)
	out[MetaLon] = formatNullableNum(m.Lon)
	out[MetaYearBuilt] = formatNullableNum(m.YearBuilt)
	if m.EnergyCert != nil {
		out[MetaEnergyCert] = *m.EnergyCert
	} else {
		out[MetaEnergyCert] = ""
	}

	out[MetaHasParking] = strconv.FormatBool(m.HasParking)
	out[MetaHasGarden] = strconv.FormatBool(m.HasGarden)
	out[MetaHasPool] = strconv.FormatBool(m.HasPool)
	out[MetaHasGarage] = strconv.FormatBool(m.HasGarage)
	out[MetaHasElevator] = strconv.FormatBool(m.HasElevator)
	out[MetaHasBalcony] = strconv.FormatBool(m.HasBalcony)
	out[MetaIsFurnished] = strconv.FormatBool(m.IsFurnished)

	return out
}

// MetadataFromMap rebuilds a Metadata record from its flattened form
// (storage hydration). Unparseable numeric values are dropped.
func MetadataFromMap(flat map[string]string) Metadata {
	m := Metadata{
		City:            flat[MetaCity],
		Neighborhood:    flat[MetaNeighborhood],
		PropertyType:    flat[MetaPropertyType],
		ListingType:     flat[MetaListingType],
		NegotiationTier: flat[MetaNegotiationTier],
		SourceURL:       flat[MetaSourceURL],
		ListedAt:        flat[MetaListedAt],
	}

	m.Price = parseNum(flat[MetaPrice])
	m.PricePerSqm = parseNum(flat[MetaPricePerSqm])
	m.Rooms = parseNum(flat[MetaRooms])
	m.Bathrooms = parseNum(flat[MetaBathrooms])
	m.AreaSqm = parseNum(flat[MetaAreaSqm])
	m.Lat = parseNum(flat[MetaLat])
	m.Lon = parseNum(flat[MetaLon])
	m.YearBuilt = parseNum(flat[MetaYearBuilt])
	if v, ok := flat[MetaEnergyCert]; ok && v != "" {
		m.EnergyCert = &v
	}

	m.HasParking = flat[MetaHasParking] == "true"
	m.HasGarden = flat[MetaHasGarden] == "true"
	m.HasPool = flat[MetaHasPool] == "true"
	m.HasGarage = flat[MetaHasGarage] == "true"
	m.HasElevator = flat[MetaHasElevator] == "true"
	m.HasBalcony = flat[MetaHasBalcony] == "true"
	m.IsFurnished = flat[MetaIsFurnished] == "true"

	return m
}

// FlatString returns a lower-cased "key=value" dump of all set fields,
// used by the reranker for substring matching. Keys are sorted for determinism.
func (m Metadata) FlatString() string {
	flat := m.ToMap()
	keys := make([]string, 0, len(flat))
	for k, v := range flat {
		if v != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(strings.ToLower(flat[k]))
	}
	return b.String()
}

// SearchDocument is the stored unit of retrieval: a flattened text blob plus
// a sanitized metadata record keyed by a stable unique id.
type SearchDocument struct {
	ID   string
	Text string
	Meta Metadata
}

// Validate checks the store-boundary invariant.
func (d SearchDocument) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidDocument)
	}
	if d.Text == "" {
		return fmt.Errorf("%w: empty text for id %q", ErrInvalidDocument, d.ID)
	}
	return nil
}

// ScoredDocument pairs a document with its relevance score.
// Result slices are always ordered descending by score, ties keeping the
// original candidate order.
type ScoredDocument struct {
	Document SearchDocument
	Score    float64
}

func putStr(out map[string]string, key, val string) {
	if val != "" {
		out[key] = val
	}
}

func putNum(out map[string]string, key string, val *float64) {
	if val != nil {
		out[key] = strconv.FormatFloat(*val, 'f', -1, 64)
	}
}

func formatNullableNum(val *float64) string {
	if val == nil {
		return ""
	}
	return strconv.FormatFloat(*val, 'f', -1, 64)
}

func parseNum(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}
