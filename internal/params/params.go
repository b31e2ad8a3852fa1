// Package params encodes a filter, sort and pagination selection into the
// query parameters of the upstream games API. It is the only place that knows
// the shape of that contract.
package params

import (
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/meur/gamedex/internal/models"
)

// Default bounds used to fill an open side of a date range
const (
	DefaultEarliestDate = "1970-01-01"
	DefaultLatestDate   = "2099-12-31"
)

// DateBounds are substituted for an empty start or end date
type DateBounds struct {
	Earliest string
	Latest   string
}

// APIParams is the normalized query for a list request. Optional keys are nil
// when absent; a present key never holds an empty string.
type APIParams struct {
	Page       int
	PageSize   int
	Search     *string
	Genres     *string
	Platforms  *string
	Stores     *string
	Tags       *string
	Dates      *string
	Metacritic *string
}

// Builder builds APIParams with configured date bounds
type Builder struct {
	Bounds DateBounds
}

// NewBuilder returns a Builder, falling back to the default bounds for empty values
func NewBuilder(earliest, latest string) Builder {
	if earliest == "" {
		earliest = DefaultEarliestDate
	}
	if latest == "" {
		latest = DefaultLatestDate
	}
	return Builder{Bounds: DateBounds{Earliest: earliest, Latest: latest}}
}

// Build uses the default date bounds
func Build(page int, searchTerm string, filters models.FilterState, pageSize int) APIParams {
	return NewBuilder("", "").Build(page, searchTerm, filters, pageSize)
}

// Build maps a selection to APIParams. It is pure and deterministic.
func (b Builder) Build(page int, searchTerm string, filters models.FilterState, pageSize int) APIParams {
	p := APIParams{
		Page:     page,
		PageSize: pageSize,
	}

	// An explicit name filter wins over the general search term
	if name := strings.TrimSpace(filters.Name); name != "" {
		p.Search = &name
	} else if term := strings.TrimSpace(searchTerm); term != "" {
		p.Search = &term
	}

	p.Genres = joinIDs(filters.Genres)
	p.Platforms = joinIDs(filters.Platforms)
	p.Stores = joinIDs(filters.Stores)
	p.Tags = joinIDs(filters.Tags)

	if filters.DateRange.IsSet() {
		start, end := filters.DateRange.Start, filters.DateRange.End
		if start == "" {
			start = b.Bounds.Earliest
		}
		if end == "" {
			end = b.Bounds.Latest
		}
		dates := start + "," + end
		p.Dates = &dates
	}

	if !filters.MetacriticRange.IsDefault() {
		mc := fmt.Sprintf("%d,%d", filters.MetacriticRange.Min, filters.MetacriticRange.Max)
		p.Metacritic = &mc
	}

	return p
}

// joinIDs returns nil for an empty set, otherwise the sorted unique ids
func joinIDs(ids []int) *string {
	if len(ids) == 0 {
		return nil
	}
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	parts := make([]string, len(sorted))
	for i, id := range sorted {
		parts[i] = strconv.Itoa(id)
	}
	joined := strings.Join(parts, ",")
	return &joined
}

// Values encodes the params as URL query values
func (p APIParams) Values() url.Values {
	v := url.Values{}
	v.Set("page", strconv.Itoa(p.Page))
	v.Set("page_size", strconv.Itoa(p.PageSize))

	optional := []struct {
		key string
		val *string
	}{
		{"search", p.Search},
		{"genres", p.Genres},
		{"platforms", p.Platforms},
		{"stores", p.Stores},
		{"tags", p.Tags},
		{"dates", p.Dates},
		{"metacritic", p.Metacritic},
	}
	for _, o := range optional {
		if o.val != nil {
			v.Set(o.key, *o.val)
		}
	}
	return v
}

// Map flattens the params into the present keys only
func (p APIParams) Map() map[string]string {
	out := make(map[string]string)
	for k, vs := range p.Values() {
		out[k] = vs[0]
	}
	return out
}
