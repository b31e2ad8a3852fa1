package models

// Metacritic bounds of the full default range
const (
	MetacriticMin = 0
	MetacriticMax = 100
)

// FilterState is the user's filter selection. An empty id set means the
// dimension is unrestricted.
type FilterState struct {
	Name            string          `json:"name"`
	Genres          []int           `json:"genres"`
	Platforms       []int           `json:"platforms"`
	Stores          []int           `json:"stores"`
	Tags            []int           `json:"tags"`
	DateRange       DateRange       `json:"date_range"`
	MetacriticRange MetacriticRange `json:"metacritic_range"`
}

// DateRange holds ISO dates; an empty side is unbounded
type DateRange struct {
	Start string `json:"start" validate:"omitempty,datetime=2006-01-02"`
	End   string `json:"end" validate:"omitempty,datetime=2006-01-02"`
}

// IsSet reports whether either side of the range is bounded
func (d DateRange) IsSet() bool {
	return d.Start != "" || d.End != ""
}

// MetacriticRange is an inclusive score range
type MetacriticRange struct {
	Min int `json:"min" validate:"gte=0,lte=100"`
	Max int `json:"max" validate:"gte=0,lte=100,gtefield=Min"`
}

// IsDefault reports whether the range is the full 0-100 range
func (m MetacriticRange) IsDefault() bool {
	return m.Min == MetacriticMin && m.Max == MetacriticMax
}

// DefaultFilterState returns the unrestricted selection. Decoders should start
// from this value so an omitted metacritic range keeps its full default.
func DefaultFilterState() FilterState {
	return FilterState{
		Genres:          []int{},
		Platforms:       []int{},
		Stores:          []int{},
		Tags:            []int{},
		MetacriticRange: MetacriticRange{Min: MetacriticMin, Max: MetacriticMax},
	}
}

// FilterOption is one selectable value of a filter dimension
type FilterOption struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	Slug       string `json:"slug"`
	GamesCount int    `json:"games_count"`
}
