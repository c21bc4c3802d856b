package planet

import (
	"time"

	"github.com/kdbartholomew/flowzero-orders-cli/pkg/api"

	"github.com/paulmach/orb/geojson"
)

// SearchQuery describes one scene search.
type SearchQuery struct {
	Geometry *geojson.Geometry
	Start    time.Time
	End      time.Time
	PageSize int
}

// SearchResult wraps one page of search results. Truncated is set when the
// page came back full, meaning more matching scenes may exist.
type SearchResult struct {
	Items     []api.SearchFeature
	Truncated bool
}

// IsSuccess reports whether an order state is a terminal success.
func IsSuccess(state string) bool {
	return state == api.OrderStateSuccess || state == api.OrderStatePartial
}

// IsFailure reports whether an order state is a terminal failure.
func IsFailure(state string) bool {
	return state == api.OrderStateFailed || state == api.OrderStateCancelled
}
