package filter

import (
	"strings"

	"github.com/meur/gamedex/internal/models"
)

// MatchesFilterIDs reports whether a game passes one id dimension. An empty
// filter matches everything; otherwise at least one id must be shared.
func MatchesFilterIDs(gameIDs, filterIDs []int) bool {
	if len(filterIDs) == 0 {
		return true
	}
	wanted := make(map[int]struct{}, len(filterIDs))
	for _, id := range filterIDs {
		wanted[id] = struct{}{}
	}
	for _, id := range gameIDs {
		if _, ok := wanted[id]; ok {
			return true
		}
	}
	return false
}

// Matches applies every dimension of the selection to a single game. The
// explicit name filter takes precedence over the general search term.
func Matches(g models.Game, searchTerm string, f models.FilterState) bool {
	term := strings.TrimSpace(f.Name)
	if term == "" {
		term = strings.TrimSpace(searchTerm)
	}
	if term != "" && !strings.Contains(strings.ToLower(g.Name), strings.ToLower(term)) {
		return false
	}

	if !MatchesFilterIDs(GenreIDs(g), f.Genres) ||
		!MatchesFilterIDs(PlatformIDs(g), f.Platforms) ||
		!MatchesFilterIDs(StoreIDs(g), f.Stores) ||
		!MatchesFilterIDs(TagIDs(g), f.Tags) {
		return false
	}

	if f.DateRange.IsSet() {
		// ISO dates order lexicographically
		if g.Released == "" {
			return false
		}
		if f.DateRange.Start != "" && g.Released < f.DateRange.Start {
			return false
		}
		if f.DateRange.End != "" && g.Released > f.DateRange.End {
			return false
		}
	}

	if !f.MetacriticRange.IsDefault() {
		if g.Metacritic == 0 {
			return false
		}
		if g.Metacritic < f.MetacriticRange.Min || g.Metacritic > f.MetacriticRange.Max {
			return false
		}
	}

	return true
}

// Apply returns the games matching the selection, preserving order
func Apply(games []models.Game, searchTerm string, f models.FilterState) []models.Game {
	out := make([]models.Game, 0, len(games))
	for _, g := range games {
		if Matches(g, searchTerm, f) {
			out = append(out, g)
		}
	}
	return out
}
