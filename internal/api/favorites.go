package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/meur/gamedex/internal/favorites"
	"github.com/meur/gamedex/internal/models"
	"github.com/meur/gamedex/internal/storage"
)

type favoriteResponse struct {
	GameID       int          `json:"game_id"`
	IsFavorite   bool         `json:"is_favorite"`
	Game         *models.Game `json:"game,omitempty"`
	Count        int          `json:"count"`
	PersistError string       `json:"persist_error,omitempty"`
}

// handleListFavorites runs the list selection over the favorites collection
func (s *Server) handleListFavorites(w http.ResponseWriter, r *http.Request) {
	q, err := s.parseQuery(r.URL.Query())
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp := map[string]interface{}{
		"page":    s.catalog.Favorites(q),
		"loading": s.favorites.IsLoading(),
	}
	if err := s.favorites.LastError(); err != nil {
		resp["persist_error"] = err.Error()
	}
	if ts, err := s.store.UpdatedAt(r.Context(), storage.KeyFavorites); err == nil {
		resp["updated_at"] = ts
	}
	respondJSON(w, http.StatusOK, resp)
}

// handleGetFavorite returns the stored record of a favorite
func (s *Server) handleGetFavorite(w http.ResponseWriter, r *http.Request) {
	id, err := gameIDParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	g, ok := s.favorites.Get(id)
	if !ok {
		respondError(w, http.StatusNotFound, "game is not a favorite")
		return
	}
	respondJSON(w, http.StatusOK, s.favoriteResponse(id, &g))
}

// handleToggleFavorite flips membership of the posted game
func (s *Server) handleToggleFavorite(w http.ResponseWriter, r *http.Request) {
	var g models.Game
	if err := decodeJSON(r, &g); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	added, err := s.favorites.Toggle(writeContext(r), g)
	if errors.Is(err, favorites.ErrInvalidGame) {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp := s.favoriteResponse(g.ID, nil)
	if stored, ok := s.favorites.Get(g.ID); added && ok {
		resp.Game = &stored
	}
	respondJSON(w, http.StatusOK, resp)
}

// handleAddFavorite adds the game; adding an existing favorite is a no-op
func (s *Server) handleAddFavorite(w http.ResponseWriter, r *http.Request) {
	id, err := gameIDParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var g models.Game
	if err := decodeJSON(r, &g); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if g.ID == 0 {
		g.ID = id
	}
	if g.ID != id {
		respondError(w, http.StatusBadRequest, "game id does not match path")
		return
	}

	if err := s.favorites.Add(writeContext(r), g); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	stored, _ := s.favorites.Get(id)
	respondJSON(w, http.StatusOK, s.favoriteResponse(id, &stored))
}

// handleRemoveFavorite removes the game if present
func (s *Server) handleRemoveFavorite(w http.ResponseWriter, r *http.Request) {
	id, err := gameIDParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if !s.favorites.Remove(writeContext(r), id) {
		respondError(w, http.StatusNotFound, "game is not a favorite")
		return
	}
	respondJSON(w, http.StatusOK, s.favoriteResponse(id, nil))
}

// handleClearFavorites empties the collection
func (s *Server) handleClearFavorites(w http.ResponseWriter, r *http.Request) {
	s.favorites.Clear(writeContext(r))
	respondJSON(w, http.StatusOK, s.favoriteResponse(0, nil))
}

func (s *Server) favoriteResponse(id int, g *models.Game) favoriteResponse {
	resp := favoriteResponse{
		GameID:     id,
		IsFavorite: id > 0 && s.favorites.IsFavorite(id),
		Game:       g,
		Count:      s.favorites.Count(),
	}
	if err := s.favorites.LastError(); err != nil {
		resp.PersistError = err.Error()
	}
	return resp
}

// writeContext keeps request values but not cancellation, so a write-through
// finishes even when the client hangs up
func writeContext(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}
