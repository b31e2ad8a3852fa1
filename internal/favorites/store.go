// Package favorites holds the favorited-games collection and keeps it
// written through to durable storage.
package favorites

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/meur/gamedex/internal/logging"
	"github.com/meur/gamedex/internal/metrics"
	"github.com/meur/gamedex/internal/models"
	"github.com/meur/gamedex/internal/storage"
)

// ErrInvalidGame is returned for games without a positive id
var ErrInvalidGame = errors.New("game id must be positive")

// ErrNotLoaded is reported while stored favorites could not be read; writes
// are held back until a read succeeds so the stored collection survives
var ErrNotLoaded = errors.New("stored favorites not loaded")

// CorruptSuffix is appended to the key when an undecodable record is backed up
const CorruptSuffix = ".corrupt"

// Storage is the durable key/value backend. Get must return
// storage.ErrNotFound for a key that was never written.
type Storage interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
}

// Store owns the favorites collection. Mutations persist the whole
// collection before the write lock is released, so readers never see a
// change that was not handed to storage first.
type Store struct {
	mu      sync.RWMutex
	storage Storage
	key     string
	log     zerolog.Logger

	order   []int
	games   map[int]models.Game
	loading bool
	dirty   bool
	lastErr error

	// unread is set when Load could not read storage; corrupt holds an
	// undecodable record until it is backed up
	unread  bool
	corrupt []byte

	// undo lets a second toggle of the same game restore position and record
	undo *removed
}

type removed struct {
	index int
	game  models.Game
}

// New creates an empty store; call Load to hydrate it
func New(s Storage) *Store {
	return &Store{
		storage: s,
		key:     storage.KeyFavorites,
		log:     logging.Component("favorites"),
		games:   make(map[int]models.Game),
	}
}

// Load hydrates the collection from storage. Missing data yields an empty
// collection; corrupt data also yields an empty collection and is reported
// through LastError.
func (s *Store) Load(ctx context.Context) {
	s.mu.Lock()
	s.loading = true
	s.mu.Unlock()

	data, err := s.storage.Get(ctx, s.key)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	s.order = nil
	s.games = make(map[int]models.Game)
	s.dirty = false
	s.lastErr = nil
	s.unread = false
	s.corrupt = nil
	s.undo = nil

	switch {
	case errors.Is(err, storage.ErrNotFound):
		s.log.Debug().Msg("no stored favorites")
		return
	case err != nil:
		s.unread = true
		s.lastErr = fmt.Errorf("load favorites: %w: %w", ErrNotLoaded, err)
		s.log.Warn().Err(err).Msg("failed to read favorites, starting empty")
		return
	}

	games, err := decode(data)
	if err != nil {
		s.corrupt = data
		s.lastErr = fmt.Errorf("load favorites: %w", err)
		s.log.Warn().Err(err).Msg("stored favorites are corrupt, starting empty")
		return
	}

	s.mergeLocked(games)
	metrics.FavoritesCount.Set(float64(len(s.order)))
	s.log.Info().Int("count", len(s.order)).Msg("favorites loaded")
}

// mergeLocked puts stored games ahead of the in-memory ones. Records already
// in memory win; invalid and duplicate ids are dropped.
func (s *Store) mergeLocked(stored []models.Game) {
	order := make([]int, 0, len(stored)+len(s.order))
	seen := make(map[int]struct{}, cap(order))
	for _, g := range stored {
		if _, dup := seen[g.ID]; g.ID <= 0 || dup {
			continue
		}
		seen[g.ID] = struct{}{}
		order = append(order, g.ID)
		if _, ok := s.games[g.ID]; !ok {
			s.games[g.ID] = g
		}
	}
	for _, id := range s.order {
		if _, dup := seen[id]; !dup {
			order = append(order, id)
		}
	}
	s.order = order
}

// Toggle removes the game when present and adds it otherwise. It reports
// whether the game was added.
func (s *Store) Toggle(ctx context.Context, g models.Game) (bool, error) {
	if g.ID <= 0 {
		return false, ErrInvalidGame
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	added := false
	if _, ok := s.games[g.ID]; ok {
		prev := removed{index: slices.Index(s.order, g.ID), game: s.games[g.ID]}
		s.removeLocked(g.ID)
		s.undo = &prev
	} else if s.undo != nil && s.undo.game.ID == g.ID {
		i := min(s.undo.index, len(s.order))
		s.order = slices.Insert(s.order, i, g.ID)
		s.games[g.ID] = s.undo.game
		s.undo = nil
		added = true
	} else {
		s.addLocked(g)
		added = true
	}
	metrics.FavoritesMutations.WithLabelValues("toggle").Inc()
	s.persistLocked(ctx)
	return added, nil
}

// Add inserts the game if absent. Adding an existing game keeps its
// position and stored record.
func (s *Store) Add(ctx context.Context, g models.Game) error {
	if g.ID <= 0 {
		return ErrInvalidGame
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.games[g.ID]; ok {
		return nil
	}
	s.addLocked(g)
	metrics.FavoritesMutations.WithLabelValues("add").Inc()
	s.persistLocked(ctx)
	return nil
}

// Remove deletes the game if present and reports whether it was
func (s *Store) Remove(ctx context.Context, id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.games[id]; !ok {
		return false
	}
	s.removeLocked(id)
	metrics.FavoritesMutations.WithLabelValues("remove").Inc()
	s.persistLocked(ctx)
	return true
}

// Clear empties the collection
func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.order = nil
	s.games = make(map[int]models.Game)
	s.undo = nil
	metrics.FavoritesMutations.WithLabelValues("clear").Inc()
	s.persistLocked(ctx)
}

// Flush rewrites the collection if an earlier write failed
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.dirty {
		return nil
	}
	s.persistLocked(ctx)
	return s.lastErr
}

// IsFavorite reports whether id is in the collection
func (s *Store) IsFavorite(id int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.games[id]
	return ok
}

// Get returns the stored record for id
func (s *Store) Get(id int) (models.Game, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.games[id]
	return g, ok
}

// Count returns the number of favorites
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// All returns the favorites in insertion order
func (s *Store) All() []models.Game {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Game, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.games[id])
	}
	return out
}

// IDs returns the favorite ids as a set
func (s *Store) IDs() map[int]struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[int]struct{}, len(s.order))
	for _, id := range s.order {
		out[id] = struct{}{}
	}
	return out
}

// IsLoading reports whether Load is in progress
func (s *Store) IsLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// LastError returns the most recent load or persistence error, nil once a
// later write succeeds
func (s *Store) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

func (s *Store) addLocked(g models.Game) {
	s.undo = nil
	s.order = append(s.order, g.ID)
	s.games[g.ID] = g
}

func (s *Store) removeLocked(id int) {
	s.undo = nil
	delete(s.games, id)
	if i := slices.Index(s.order, id); i >= 0 {
		s.order = slices.Delete(s.order, i, i+1)
	}
}

// persistLocked writes the full collection. A failure keeps the in-memory
// state and leaves the store dirty so the next mutation retries.
func (s *Store) persistLocked(ctx context.Context) {
	if err := s.recoverLocked(ctx); err != nil {
		s.dirty = true
		s.lastErr = err
		metrics.PersistFailures.Inc()
		s.log.Error().Err(err).Msg("holding back favorites write")
		return
	}
	metrics.FavoritesCount.Set(float64(len(s.order)))

	games := make([]models.Game, 0, len(s.order))
	for _, id := range s.order {
		games = append(games, s.games[id])
	}

	data, err := encode(games)
	if err == nil {
		err = s.storage.Put(ctx, s.key, data)
	}
	if err != nil {
		s.dirty = true
		s.lastErr = fmt.Errorf("persist favorites: %w", err)
		metrics.PersistFailures.Inc()
		s.log.Error().Err(err).Int("count", len(games)).Msg("failed to persist favorites")
		return
	}

	s.dirty = false
	s.lastErr = nil
}

// recoverLocked makes a write safe: a collection that could not be read is
// read again and merged, and a corrupt record is backed up before it is
// replaced.
func (s *Store) recoverLocked(ctx context.Context) error {
	if s.unread {
		data, err := s.storage.Get(ctx, s.key)
		switch {
		case errors.Is(err, storage.ErrNotFound):
		case err != nil:
			return fmt.Errorf("persist favorites: %w: %w", ErrNotLoaded, err)
		default:
			games, derr := decode(data)
			if derr != nil {
				s.corrupt = data
			} else {
				s.mergeLocked(games)
				s.log.Info().Int("count", len(s.order)).Msg("stored favorites recovered")
			}
		}
		s.unread = false
	}

	if s.corrupt != nil {
		if err := s.storage.Put(ctx, s.key+CorruptSuffix, s.corrupt); err != nil {
			return fmt.Errorf("back up corrupt favorites: %w", err)
		}
		s.log.Warn().Str("key", s.key+CorruptSuffix).Msg("corrupt favorites backed up")
		s.corrupt = nil
	}
	return nil
}

func encode(games []models.Game) ([]byte, error) {
	return json.Marshal(games)
}

func decode(data []byte) ([]models.Game, error) {
	var games []models.Game
	if err := json.Unmarshal(data, &games); err != nil {
		return nil, err
	}
	return games, nil
}
