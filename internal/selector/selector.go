// Package selector picks the best cloud-free scene per cadence interval for an AOI.
package selector

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/kdbartholomew/flowzero-orders-cli/internal/daterange"
	"github.com/kdbartholomew/flowzero-orders-cli/internal/geo"
	"github.com/kdbartholomew/flowzero-orders-cli/internal/planet"
)

// Quality bar every selected scene must meet.
const (
	MaxCloudCover = 0.0
	MinCoverage   = 0.99
)

// Cadence is the target frequency at which one representative scene is chosen.
type Cadence string

const (
	Daily   Cadence = "daily"
	Weekly  Cadence = "weekly"
	Monthly Cadence = "monthly"
)

// ParseCadence validates a cadence name.
func ParseCadence(s string) (Cadence, error) {
	switch c := Cadence(s); c {
	case Daily, Weekly, Monthly:
		return c, nil
	}
	return "", fmt.Errorf("unknown cadence %q (want daily, weekly or monthly)", s)
}

// IntervalStart returns the first day of the cadence interval containing t.
// Weeks start on Sunday.
func IntervalStart(t time.Time, c Cadence) time.Time {
	y, m, d := t.UTC().Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	switch c {
	case Weekly:
		return day.AddDate(0, 0, -int(day.Weekday()))
	case Monthly:
		return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
	default:
		return day
	}
}

// Searcher runs a scene search against the imagery provider.
type Searcher interface {
	Search(ctx context.Context, q planet.SearchQuery) (*planet.SearchResult, error)
}

// Candidate is one provider scene scored against an AOI.
type Candidate struct {
	ID         string
	Acquired   time.Time
	CloudCover float64
	Coverage   float64
	Thumbnail  string
}

// Selection is the outcome of one selection pass.
type Selection struct {
	Scenes []Candidate
	// Found is the number of scenes the provider returned before filtering.
	Found int
	// Eligible is the number of scenes that passed the quality bar.
	Eligible int
	// PaginationLimitHit is set when the search came back with a full page, so
	// the candidate set is known to be incomplete.
	PaginationLimitHit bool
}

// IDs returns the selected scene IDs in acquisition order.
func (s *Selection) IDs() []string {
	ids := make([]string, len(s.Scenes))
	for i, c := range s.Scenes {
		ids[i] = c.ID
	}
	return ids
}

// Selector chooses scenes using a provider search.
type Selector struct {
	searcher Searcher
	pageSize int
}

// New creates a selector. pageSize <= 0 uses the provider maximum.
func New(s Searcher, pageSize int) *Selector {
	if pageSize <= 0 || pageSize > planet.MaxPageSize {
		pageSize = planet.MaxPageSize
	}
	return &Selector{searcher: s, pageSize: pageSize}
}

// Select searches for scenes over aoi within r and keeps the best scene per
// cadence interval. An empty selection is not an error.
func (s *Selector) Select(ctx context.Context, aoi *geo.AOI, r daterange.Range, cadence Cadence) (*Selection, error) {
	result, err := s.searcher.Search(ctx, planet.SearchQuery{
		Geometry: aoi.GeoJSON(),
		Start:    r.Start,
		End:      r.End,
		PageSize: s.pageSize,
	})
	if err != nil {
		return nil, fmt.Errorf("scene search: %w", err)
	}

	candidates := make([]Candidate, 0, len(result.Items))
	for _, f := range result.Items {
		c := Candidate{
			ID:         f.ID,
			Acquired:   f.Properties.Acquired,
			CloudCover: f.Properties.CloudCover,
			Thumbnail:  f.Links.Thumbnail,
		}
		if f.Geometry != nil {
			c.Coverage = geo.Coverage(aoi.Geometry, f.Geometry.Geometry())
		}
		candidates = append(candidates, c)
	}

	eligible := Filter(candidates)
	return &Selection{
		Scenes:             Best(eligible, cadence),
		Found:              len(result.Items),
		Eligible:           len(eligible),
		PaginationLimitHit: result.Truncated,
	}, nil
}

// Filter keeps candidates that are cloud-free and cover the AOI.
func Filter(candidates []Candidate) []Candidate {
	var out []Candidate
	for _, c := range candidates {
		if c.CloudCover <= MaxCloudCover && c.Coverage >= MinCoverage {
			out = append(out, c)
		}
	}
	return out
}

// Best keeps one candidate per cadence interval, ordered by acquisition time.
// Within an interval the winner has the highest coverage, then the lowest
// cloud cover, then the earliest acquisition; the scene ID settles exact ties.
func Best(candidates []Candidate, cadence Cadence) []Candidate {
	best := make(map[time.Time]Candidate)
	for _, c := range candidates {
		key := IntervalStart(c.Acquired, cadence)
		if cur, ok := best[key]; !ok || better(c, cur) {
			best[key] = c
		}
	}

	out := make([]Candidate, 0, len(best))
	for _, c := range best {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Acquired.Equal(out[j].Acquired) {
			return out[i].Acquired.Before(out[j].Acquired)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func better(a, b Candidate) bool {
	if a.Coverage != b.Coverage {
		return a.Coverage > b.Coverage
	}
	if a.CloudCover != b.CloudCover {
		return a.CloudCover < b.CloudCover
	}
	if !a.Acquired.Equal(b.Acquired) {
		return a.Acquired.Before(b.Acquired)
	}
	return a.ID < b.ID
}
