// Package catalog runs the list pipeline: selection -> query params ->
// upstream fetch -> sort -> favorite annotation, and the same pipeline
// locally over the favorites collection.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/meur/gamedex/internal/filter"
	"github.com/meur/gamedex/internal/models"
	"github.com/meur/gamedex/internal/pagination"
	"github.com/meur/gamedex/internal/params"
	"github.com/meur/gamedex/internal/sorting"
)

// ErrUnknownOptionKind is returned by Options for an unsupported dimension
var ErrUnknownOptionKind = errors.New("unknown filter option kind")

// Source is the upstream games API
type Source interface {
	ListGames(ctx context.Context, p params.APIParams) (models.GamePage, error)
	GetGame(ctx context.Context, id int) (models.GameDetails, error)
	ListGenres(ctx context.Context) ([]models.FilterOption, error)
	ListPlatforms(ctx context.Context) ([]models.FilterOption, error)
	ListStores(ctx context.Context) ([]models.FilterOption, error)
	ListTags(ctx context.Context) ([]models.FilterOption, error)
}

// Favorites is the read side of the favorites store
type Favorites interface {
	IDs() map[int]struct{}
	All() []models.Game
}

// Query is one list request
type Query struct {
	Page     int
	PageSize int
	Search   string
	Filters  models.FilterState
	Sort     sorting.Option
}

// Page is a sorted, annotated page of games
type Page struct {
	Games      []models.CatalogGame `json:"games"`
	Count      int                  `json:"count"`
	Page       int                  `json:"page"`
	PageSize   int                  `json:"page_size"`
	TotalPages int                  `json:"total_pages"`
}

// Config holds page size limits and option caching
type Config struct {
	DefaultPageSize int
	MaxPageSize     int
	OptionsTTL      time.Duration
}

// Service implements the catalog pipeline
type Service struct {
	source    Source
	favorites Favorites
	builder   params.Builder
	cfg       Config

	mu      sync.Mutex
	options map[string]cachedOptions
}

type cachedOptions struct {
	items   []models.FilterOption
	expires time.Time
}

// New creates a Service
func New(source Source, favorites Favorites, builder params.Builder, cfg Config) *Service {
	if cfg.DefaultPageSize <= 0 {
		cfg.DefaultPageSize = 20
	}
	if cfg.MaxPageSize < cfg.DefaultPageSize {
		cfg.MaxPageSize = max(cfg.DefaultPageSize, 40)
	}
	return &Service{
		source:    source,
		favorites: favorites,
		builder:   builder,
		cfg:       cfg,
		options:   make(map[string]cachedOptions),
	}
}

// Normalize clamps page and page size into the supported range
func (s *Service) Normalize(q Query) Query {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize <= 0 {
		q.PageSize = s.cfg.DefaultPageSize
	}
	if q.PageSize > s.cfg.MaxPageSize {
		q.PageSize = s.cfg.MaxPageSize
	}
	return q
}

// ListGames fetches a page from upstream, sorts it and annotates favorites
func (s *Service) ListGames(ctx context.Context, q Query) (Page, error) {
	q = s.Normalize(q)

	result, err := s.source.ListGames(ctx, s.builder.Build(q.Page, q.Search, q.Filters, q.PageSize))
	if err != nil {
		return Page{}, fmt.Errorf("list games: %w", err)
	}

	return Page{
		Games:      s.annotate(sorting.Sort(result.Results, q.Sort)),
		Count:      result.Count,
		Page:       q.Page,
		PageSize:   q.PageSize,
		TotalPages: pagination.TotalPages(result.Count, q.PageSize),
	}, nil
}

// Favorites runs the same selection locally over the favorites collection
func (s *Service) Favorites(q Query) Page {
	q = s.Normalize(q)

	matched := filter.Apply(s.favorites.All(), q.Search, q.Filters)
	sorted := sorting.Sort(matched, q.Sort)
	window := pagination.Window(sorted, q.Page, q.PageSize)

	games := make([]models.CatalogGame, len(window))
	for i, g := range window {
		games[i] = models.CatalogGame{Game: g, IsFavorite: true}
	}

	return Page{
		Games:      games,
		Count:      len(matched),
		Page:       q.Page,
		PageSize:   q.PageSize,
		TotalPages: pagination.TotalPages(len(matched), q.PageSize),
	}
}

// GameDetails fetches the extended record of a game
func (s *Service) GameDetails(ctx context.Context, id int) (models.GameDetails, error) {
	d, err := s.source.GetGame(ctx, id)
	if err != nil {
		return models.GameDetails{}, fmt.Errorf("game %d: %w", id, err)
	}
	return d, nil
}

// GetGame satisfies details.Fetcher
func (s *Service) GetGame(ctx context.Context, id int) (models.GameDetails, error) {
	return s.GameDetails(ctx, id)
}

// Options returns the selectable values of a filter dimension, cached for OptionsTTL
func (s *Service) Options(ctx context.Context, kind string) ([]models.FilterOption, error) {
	var load func(context.Context) ([]models.FilterOption, error)
	switch kind {
	case "genres":
		load = s.source.ListGenres
	case "platforms":
		load = s.source.ListPlatforms
	case "stores":
		load = s.source.ListStores
	case "tags":
		load = s.source.ListTags
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownOptionKind, kind)
	}

	s.mu.Lock()
	cached, ok := s.options[kind]
	s.mu.Unlock()
	if ok && time.Now().Before(cached.expires) {
		return cached.items, nil
	}

	items, err := load(ctx)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}

	if s.cfg.OptionsTTL > 0 {
		s.mu.Lock()
		s.options[kind] = cachedOptions{items: items, expires: time.Now().Add(s.cfg.OptionsTTL)}
		s.mu.Unlock()
	}
	return items, nil
}

func (s *Service) annotate(games []models.Game) []models.CatalogGame {
	favs := s.favorites.IDs()
	out := make([]models.CatalogGame, len(games))
	for i, g := range games {
		_, fav := favs[g.ID]
		out[i] = models.CatalogGame{Game: g, IsFavorite: fav}
	}
	return out
}
