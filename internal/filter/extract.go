// Package filter derives comparable id sets from games and matches them
// against a FilterState. Every function tolerates partial upstream payloads.
package filter

import "github.com/meur/gamedex/internal/models"

// GenreIDs returns the genre ids of a game
func GenreIDs(g models.Game) []int {
	ids := make([]int, 0, len(g.Genres))
	for _, genre := range g.Genres {
		ids = append(ids, genre.ID)
	}
	return ids
}

// PlatformIDs returns the ids of the wrapped platforms
func PlatformIDs(g models.Game) []int {
	ids := make([]int, 0, len(g.Platforms))
	for _, p := range g.Platforms {
		ids = append(ids, p.Platform.ID)
	}
	return ids
}

// StoreIDs returns the ids of the wrapped stores
func StoreIDs(g models.Game) []int {
	ids := make([]int, 0, len(g.Stores))
	for _, s := range g.Stores {
		ids = append(ids, s.Store.ID)
	}
	return ids
}

// TagIDs returns the tag ids of a game
func TagIDs(g models.Game) []int {
	ids := make([]int, 0, len(g.Tags))
	for _, t := range g.Tags {
		ids = append(ids, t.ID)
	}
	return ids
}
