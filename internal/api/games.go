package api

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/meur/gamedex/internal/catalog"
	"github.com/meur/gamedex/internal/models"
	"github.com/meur/gamedex/internal/sorting"
)

// handleListGames returns one sorted page of the catalog
func (s *Server) handleListGames(w http.ResponseWriter, r *http.Request) {
	q, err := s.parseQuery(r.URL.Query())
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	page, err := s.catalog.ListGames(r.Context(), q)
	if err != nil {
		respondUpstreamError(w, r, err, "failed to fetch games")
		return
	}
	respondJSON(w, http.StatusOK, page)
}

// handleGetGame returns the extended record of a game
func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	id, err := gameIDParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	d, err := s.catalog.GameDetails(r.Context(), id)
	if err != nil {
		respondUpstreamError(w, r, err, "failed to fetch game")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"game":        d,
		"is_favorite": s.favorites.IsFavorite(id),
	})
}

// handleListOptions returns the selectable values of a filter dimension
func (s *Server) handleListOptions(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := s.catalog.Options(r.Context(), kind)
		if err != nil {
			respondUpstreamError(w, r, err, "failed to fetch "+kind)
			return
		}
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"items":       items,
			"total_count": len(items),
		})
	}
}

// parseQuery reads a list selection from the URL. Omitted keys keep their
// defaults; malformed values are rejected rather than ignored.
func (s *Server) parseQuery(v url.Values) (catalog.Query, error) {
	q := catalog.Query{
		Page:    1,
		Filters: models.DefaultFilterState(),
		Sort:    sorting.ParseOption(v.Get("sort"), s.cfg.DefaultSort),
		Search:  strings.TrimSpace(v.Get("search")),
	}

	var err error
	if q.Page, err = intParam(v, "page", 1); err != nil {
		return q, err
	}
	if q.Page < 1 {
		return q, fmt.Errorf("page must be at least 1")
	}
	if q.PageSize, err = intParam(v, "page_size", 0); err != nil {
		return q, err
	}

	f, err := s.parseFilters(v)
	if err != nil {
		return q, err
	}
	q.Filters = f
	return q, nil
}

func (s *Server) parseFilters(v url.Values) (models.FilterState, error) {
	f := models.DefaultFilterState()
	f.Name = strings.TrimSpace(v.Get("name"))

	var err error
	if f.Genres, err = idsParam(v, "genres"); err != nil {
		return f, err
	}
	if f.Platforms, err = idsParam(v, "platforms"); err != nil {
		return f, err
	}
	if f.Stores, err = idsParam(v, "stores"); err != nil {
		return f, err
	}
	if f.Tags, err = idsParam(v, "tags"); err != nil {
		return f, err
	}

	f.DateRange.Start = strings.TrimSpace(v.Get("dates_start"))
	f.DateRange.End = strings.TrimSpace(v.Get("dates_end"))

	if f.MetacriticRange.Min, err = intParam(v, "metacritic_min", models.MetacriticMin); err != nil {
		return f, err
	}
	if f.MetacriticRange.Max, err = intParam(v, "metacritic_max", models.MetacriticMax); err != nil {
		return f, err
	}

	if err := s.validate.Struct(f); err != nil {
		return f, fmt.Errorf("invalid filters: %w", err)
	}
	return f, nil
}

// intParam parses an optional integer query value
func intParam(v url.Values, key string, fallback int) (int, error) {
	raw := strings.TrimSpace(v.Get(key))
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", key)
	}
	return n, nil
}

// idsParam accepts both genres=1,2 and genres=1&genres=2
func idsParam(v url.Values, key string) ([]int, error) {
	ids := []int{}
	for _, raw := range v[key] {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.Atoi(part)
			if err != nil || id <= 0 {
				return nil, fmt.Errorf("%s must be a list of positive ids", key)
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func gameIDParam(r *http.Request) (int, error) {
	id, err := strconv.Atoi(chi.URLParam(r, "gameID"))
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid game id")
	}
	return id, nil
}
