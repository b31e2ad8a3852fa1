package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/meur/gamedex/internal/catalog"
	"github.com/meur/gamedex/internal/models"
	"github.com/meur/gamedex/internal/pagination"
	"github.com/meur/gamedex/internal/session"
	"github.com/meur/gamedex/internal/sorting"
)

type sessionCtxKey struct{}

type searchRequest struct {
	Search string `json:"search" validate:"max=200"`
}

type sortRequest struct {
	Sort string `json:"sort" validate:"required,oneof=name rating released added"`
}

type pageRequest struct {
	Page int `json:"page" validate:"required,min=1"`
}

// withSession resolves {sessionID} or answers 404
func (s *Server) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.sessions.Get(chi.URLParam(r, "sessionID"))
		if !ok {
			respondError(w, http.StatusNotFound, "session not found")
			return
		}
		ctx := context.WithValue(r.Context(), sessionCtxKey{}, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionFrom(r *http.Request) *session.Session {
	return r.Context().Value(sessionCtxKey{}).(*session.Session)
}

// handleCreateSession starts a browsing session
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.Create()
	respondJSON(w, http.StatusCreated, sess.View())
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, sessionFrom(r).View())
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	s.sessions.Delete(sessionFrom(r).ID)
	w.WriteHeader(http.StatusNoContent)
}

// handleSetFilters replaces the filter selection
func (s *Server) handleSetFilters(w http.ResponseWriter, r *http.Request) {
	f := models.DefaultFilterState()
	if err := decodeJSON(r, &f); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.validate.Struct(f); err != nil {
		respondError(w, http.StatusBadRequest, "invalid filters: "+err.Error())
		return
	}
	f = normalizeFilters(f)

	sess := sessionFrom(r)
	sess.SetFilters(f)
	respondJSON(w, http.StatusOK, sess.View())
}

func (s *Server) handleSetSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	sess := sessionFrom(r)
	sess.SetSearch(strings.TrimSpace(req.Search))
	respondJSON(w, http.StatusOK, sess.View())
}

func (s *Server) handleSetSort(w http.ResponseWriter, r *http.Request) {
	var req sortRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	sess := sessionFrom(r)
	sess.SetSort(sorting.Option(req.Sort))
	respondJSON(w, http.StatusOK, sess.View())
}

// handleSetPage navigates; every navigation scrolls the view to the top
func (s *Server) handleSetPage(w http.ResponseWriter, r *http.Request) {
	var req pageRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	sess := sessionFrom(r)
	if err := sess.SetPage(req.Page); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, pagination.ErrInvalidPage) {
			status = http.StatusBadRequest
		}
		respondError(w, status, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, sess.View())
}

// handleSessionGames lists the current page for the session's selection.
// ?source=favorites runs it over the favorites collection instead.
func (s *Server) handleSessionGames(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	fromFavorites := r.URL.Query().Get("source") == "favorites"

	fetch := func() (catalog.Page, error) {
		if fromFavorites {
			return s.catalog.Favorites(sess.Query()), nil
		}
		return s.catalog.ListGames(r.Context(), sess.Query())
	}

	page, err := fetch()
	if err == nil && sess.RecordTotal(page.Count) {
		// the result set shrank under the current page
		if page, err = fetch(); err == nil {
			sess.RecordTotal(page.Count)
		}
	}
	if err != nil {
		respondUpstreamError(w, r, err, "failed to fetch games")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"page":    page,
		"session": sess.View(),
	})
}

// handleOpenDetails selects a game; the extended record loads in the
// background and is polled through GET.
func (s *Server) handleOpenDetails(w http.ResponseWriter, r *http.Request) {
	var g models.Game
	if err := decodeJSON(r, &g); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if g.ID <= 0 {
		respondError(w, http.StatusBadRequest, "game id must be positive")
		return
	}
	if g.Name == "" {
		if stored, ok := s.favorites.Get(g.ID); ok {
			g = stored
		}
	}

	state, err := sessionFrom(r).OpenDetails(g)
	if errors.Is(err, session.ErrClosed) {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}
	respondJSON(w, http.StatusAccepted, state)
}

func (s *Server) handleGetDetails(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, sessionFrom(r).Details())
}

func (s *Server) handleCloseDetails(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	sess.CloseDetails()
	respondJSON(w, http.StatusOK, sess.Details())
}

// normalizeFilters replaces nil id sets so the stored selection encodes as []
func normalizeFilters(f models.FilterState) models.FilterState {
	for _, ids := range []*[]int{&f.Genres, &f.Platforms, &f.Stores, &f.Tags} {
		if *ids == nil {
			*ids = []int{}
		}
	}
	f.Name = strings.TrimSpace(f.Name)
	return f
}
