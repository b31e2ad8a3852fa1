// Package sorting orders game collections. All orderings are stable and
// never mutate their input.
package sorting

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/meur/gamedex/internal/models"
)

// Option selects an ordering
type Option string

const (
	ByName     Option = "name"
	ByRating   Option = "rating"
	ByReleased Option = "released"
	ByAdded    Option = "added"
)

// Options lists the supported orderings
var Options = []Option{ByName, ByRating, ByReleased, ByAdded}

// ParseOption maps a wire value to an Option, returning fallback when unknown
func ParseOption(s string, fallback Option) Option {
	opt := Option(strings.ToLower(strings.TrimSpace(s)))
	if slices.Contains(Options, opt) {
		return opt
	}
	return fallback
}

// Sort returns a new slice ordered by opt. Unknown options behave like ByAdded.
func Sort(games []models.Game, opt Option) []models.Game {
	out := slices.Clone(games)
	if out == nil {
		out = []models.Game{}
	}

	switch opt {
	case ByName:
		// Collator carries internal buffers, one per call
		c := collate.New(language.English, collate.IgnoreCase)
		slices.SortStableFunc(out, func(a, b models.Game) int {
			return c.CompareString(a.Name, b.Name)
		})
	case ByRating:
		slices.SortStableFunc(out, func(a, b models.Game) int {
			return cmp.Compare(b.Rating, a.Rating)
		})
	case ByReleased:
		slices.SortStableFunc(out, compareReleased)
	}

	return out
}

// compareReleased orders newest first. Unparseable dates are equal to each
// other and go after every valid date.
func compareReleased(a, b models.Game) int {
	ta, okA := parseDate(a.Released)
	tb, okB := parseDate(b.Released)
	switch {
	case !okA && !okB:
		return 0
	case !okA:
		return 1
	case !okB:
		return -1
	}
	return tb.Compare(ta)
}

func parseDate(s string) (time.Time, bool) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
