package api

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/meur/gamedex/internal/logging"
	"github.com/meur/gamedex/internal/models"
	"github.com/meur/gamedex/internal/storage"
)

// handleGetPreferences returns the stored display preferences. A missing or
// unreadable record yields the defaults.
func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	prefs := models.DefaultPreferences()

	data, err := s.store.Get(r.Context(), storage.KeyPreferences)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		logging.Ctx(r.Context()).Warn().Err(err).Msg("failed to read preferences, using defaults")
	default:
		stored := models.DefaultPreferences()
		if err := json.Unmarshal(data, &stored); err != nil || s.validate.Struct(stored) != nil {
			logging.Ctx(r.Context()).Warn().Msg("stored preferences are invalid, using defaults")
		} else {
			prefs = stored
		}
	}

	respondJSON(w, http.StatusOK, prefs)
}

// handlePutPreferences replaces the display preferences
func (s *Server) handlePutPreferences(w http.ResponseWriter, r *http.Request) {
	prefs := models.DefaultPreferences()
	if err := decodeJSON(r, &prefs); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.validate.Struct(prefs); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	data, err := json.Marshal(prefs)
	if err == nil {
		err = s.store.Put(r.Context(), storage.KeyPreferences, data)
	}
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("failed to save preferences")
		respondError(w, http.StatusInternalServerError, "failed to save preferences")
		return
	}

	respondJSON(w, http.StatusOK, prefs)
}

// handleResetPreferences drops the stored record so reads fall back to defaults
func (s *Server) handleResetPreferences(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Delete(r.Context(), storage.KeyPreferences); err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("failed to reset preferences")
		respondError(w, http.StatusInternalServerError, "failed to reset preferences")
		return
	}
	respondJSON(w, http.StatusOK, models.DefaultPreferences())
}
