package filter

import (
	"fmt"

	"github.com/kailas-cloud/propdex/internal/domain"
)

// SortField is a metadata field supported by explicit result ordering.
type SortField string

// Sortable fields.
const (
	SortByPrice       SortField = domain.MetaPrice
	SortByPricePerSqm SortField = domain.MetaPricePerSqm
	SortByRooms       SortField = domain.MetaRooms
)

// SortSpec orders the filtered candidate set by a metadata field instead of
// reranking. Documents missing the field sort to the end regardless of
// direction.
type SortSpec struct {
	Field      SortField
	Descending bool
}

// Validate checks the sort field.
func (s SortSpec) Validate() error {
	switch s.Field {
	case SortByPrice, SortByPricePerSqm, SortByRooms:
		return nil
	default:
		return fmt.Errorf("%w: %q", domain.ErrInvalidSortField, s.Field)
	}
}
