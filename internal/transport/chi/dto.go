package chi

import (
	"fmt"
	"time"

	"github.com/kailas-cloud/propdex/internal/domain"
	"github.com/kailas-cloud/propdex/internal/domain/filter"
	"github.com/kailas-cloud/propdex/internal/engine"
	"github.com/kailas-cloud/propdex/internal/store"
)

// indexRequest is the body of POST /v1/index.
type indexRequest struct {
	Properties []propertyPayload `json:"properties"`
}

// propertyPayload is one listing as supplied by the ingestion side.
type propertyPayload struct {
	ID              string   `json:"id"`
	City            string   `json:"city"`
	Neighborhood    string   `json:"neighborhood,omitempty"`
	PropertyType    string   `json:"property_type"`
	ListingType     string   `json:"listing_type"`
	Price           float64  `json:"price"`
	PricePerSqm     *float64 `json:"price_per_sqm,omitempty"`
	Rooms           float64  `json:"rooms"`
	Bathrooms       float64  `json:"bathrooms,omitempty"`
	AreaSqm         *float64 `json:"area_sqm,omitempty"`
	Latitude        *float64 `json:"latitude,omitempty"`
	Longitude       *float64 `json:"longitude,omitempty"`
	YearBuilt       *int     `json:"year_built,omitempty"`
	EnergyCert      string   `json:"energy_cert,omitempty"`
	NegotiationTier string   `json:"negotiation_tier,omitempty"`
	HasParking      bool     `json:"has_parking,omitempty"`
	HasGarden       bool     `json:"has_garden,omitempty"`
	HasPool         bool     `json:"has_pool,omitempty"`
	HasGarage       bool     `json:"has_garage,omitempty"`
	HasElevator     bool     `json:"has_elevator,omitempty"`
	HasBalcony      bool     `json:"has_balcony,omitempty"`
	IsFurnished     bool     `json:"is_furnished,omitempty"`
	Description     string   `json:"description,omitempty"`
	SourceURL       string   `json:"source_url,omitempty"`
	ListedAt        string   `json:"listed_at,omitempty"` // RFC3339
}

func propertiesFromRequest(payloads []propertyPayload) []domain.Property {
	props := make([]domain.Property, len(payloads))
	for i, p := range payloads {
		listedAt, _ := time.Parse(time.RFC3339, p.ListedAt)
		props[i] = domain.Property{
			ID:              p.ID,
			City:            p.City,
			Neighborhood:    p.Neighborhood,
			PropertyType:    p.PropertyType,
			ListingType:     p.ListingType,
			Price:           p.Price,
			PricePerSqm:     p.PricePerSqm,
			Rooms:           p.Rooms,
			Bathrooms:       p.Bathrooms,
			AreaSqm:         p.AreaSqm,
			Latitude:        p.Latitude,
			Longitude:       p.Longitude,
			YearBuilt:       p.YearBuilt,
			EnergyCert:      p.EnergyCert,
			NegotiationTier: p.NegotiationTier,
			HasParking:      p.HasParking,
			HasGarden:       p.HasGarden,
			HasPool:         p.HasPool,
			HasGarage:       p.HasGarage,
			HasElevator:     p.HasElevator,
			HasBalcony:      p.HasBalcony,
			IsFurnished:     p.IsFurnished,
			Description:     p.Description,
			SourceURL:       p.SourceURL,
			ListedAt:        listedAt,
		}
	}
	return props
}

// indexResponse is the body of a synchronous indexing reply.
type indexResponse struct {
	Received int    `json:"received"`
	Indexed  int    `json:"indexed"`
	Skipped  int    `json:"skipped"`
	Took     string `json:"took"`
}

func indexResponseFrom(result engine.IndexResult) indexResponse {
	return indexResponse{
		Received: result.Received,
		Indexed:  result.Indexed,
		Skipped:  result.Skipped,
		Took:     result.Took.Round(time.Millisecond).String(),
	}
}

// searchRequest is the body of POST /v1/search.
type searchRequest struct {
	Query    string          `json:"query"`
	K        int             `json:"k,omitempty"`
	Strategy string          `json:"strategy,omitempty"`
	Mode     string          `json:"mode,omitempty"`   // "" | "similarity" | "mmr"
	Lambda   *float64        `json:"lambda,omitempty"` // MMR only; 0 is pure diversity
	Sort     *sortPayload    `json:"sort,omitempty"`
	Filters  *filtersPayload `json:"filters,omitempty"`
}

func (r searchRequest) k(def int) int {
	if r.K <= 0 {
		return def
	}
	return r.K
}

// sortPayload requests an explicit metadata-field ordering.
type sortPayload struct {
	Field      string `json:"field"`
	Descending bool   `json:"descending,omitempty"`
}

func (p sortPayload) spec() (filter.SortSpec, error) {
	spec := filter.SortSpec{Field: filter.SortField(p.Field), Descending: p.Descending}
	if err := spec.Validate(); err != nil {
		return filter.SortSpec{}, err
	}
	return spec, nil
}

// filtersPayload carries forced filters; they override anything extracted
// from the query text.
type filtersPayload struct {
	City           string          `json:"city,omitempty"`
	ListingType    string          `json:"listing_type,omitempty"`
	Amenities      map[string]bool `json:"amenities,omitempty"`
	MinPrice       *float64        `json:"min_price,omitempty"`
	MaxPrice       *float64        `json:"max_price,omitempty"`
	MinPricePerSqm *float64        `json:"min_price_per_sqm,omitempty"`
	MaxPricePerSqm *float64        `json:"max_price_per_sqm,omitempty"`
	MinRooms       *float64        `json:"min_rooms,omitempty"`
	MaxRooms       *float64        `json:"max_rooms,omitempty"`
	MinYearBuilt   *float64        `json:"min_year_built,omitempty"`
	MaxYearBuilt   *float64        `json:"max_year_built,omitempty"`
	EnergyCerts    []string        `json:"energy_certs,omitempty"`
	Geo            *geoPayload     `json:"geo,omitempty"`
}

// geoPayload is a radius constraint around a point.
type geoPayload struct {
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	RadiusKm float64 `json:"radius_km"`
}

func (r searchRequest) criteria() (filter.Criteria, error) {
	if r.Filters == nil {
		return filter.Criteria{}, nil
	}
	f := r.Filters

	crit := filter.Criteria{
		City:           f.City,
		ListingType:    f.ListingType,
		Amenities:      f.Amenities,
		MinPrice:       f.MinPrice,
		MaxPrice:       f.MaxPrice,
		MinPricePerSqm: f.MinPricePerSqm,
		MaxPricePerSqm: f.MaxPricePerSqm,
		MinRooms:       f.MinRooms,
		MaxRooms:       f.MaxRooms,
		MinYearBuilt:   f.MinYearBuilt,
		MaxYearBuilt:   f.MaxYearBuilt,
		EnergyCerts:    f.EnergyCerts,
	}
	if f.Geo != nil {
		crit.Geo = &filter.GeoRadius{Lat: f.Geo.Lat, Lon: f.Geo.Lon, RadiusKm: f.Geo.RadiusKm}
	}
	if err := crit.Validate(); err != nil {
		return filter.Criteria{}, fmt.Errorf("filters: %w", err)
	}
	return crit, nil
}

// searchResponse is the body of a search reply.
type searchResponse struct {
	Items []searchResultItem `json:"items"`
	Total int                `json:"total"`
}

// searchResultItem is one scored document.
type searchResultItem struct {
	ID       string            `json:"id"`
	Score    float64           `json:"score"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func searchResultFrom(sd *domain.ScoredDocument) searchResultItem {
	return searchResultItem{
		ID:       sd.Document.ID,
		Score:    sd.Score,
		Text:     sd.Document.Text,
		Metadata: sd.Document.Meta.ToMap(),
	}
}

// statsResponse is the body of GET /v1/stats.
type statsResponse struct {
	store.Stats
	Indexing bool `json:"indexing"`
}

// errorResponse is the uniform error body.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
