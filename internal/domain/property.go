package domain

import "time"

// Property is the listing entity supplied by the data-ingestion layer.
// The engine never stores a Property directly; the mapper flattens it into a
// SearchDocument with sanitized metadata first.
type Property struct {
	ID              string
	City            string
	Neighborhood    string
	PropertyType    string // apartment, house, studio, ...
	ListingType     string // sale, rent
	Price           float64
	PricePerSqm     *float64
	Rooms           float64
	Bathrooms       float64
	AreaSqm         *float64
	Latitude        *float64
	Longitude       *float64
	YearBuilt       *int
	EnergyCert      string
	NegotiationTier string
	HasParking      bool
	HasGarden       bool
	HasPool         bool
	HasGarage       bool
	HasElevator     bool
	HasBalcony      bool
	IsFurnished     bool
	Description     string
	SourceURL       string
	ListedAt        time.Time
}
