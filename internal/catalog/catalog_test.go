package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/meur/gamedex/internal/models"
	"github.com/meur/gamedex/internal/params"
	"github.com/meur/gamedex/internal/sorting"
)

type fakeSource struct {
	page      models.GamePage
	err       error
	lastQuery params.APIParams
	genreHits int
}

func (f *fakeSource) ListGames(_ context.Context, p params.APIParams) (models.GamePage, error) {
	f.lastQuery = p
	return f.page, f.err
}

func (f *fakeSource) GetGame(_ context.Context, id int) (models.GameDetails, error) {
	if f.err != nil {
		return models.GameDetails{}, f.err
	}
	return models.GameDetails{Game: models.Game{ID: id}}, nil
}

func (f *fakeSource) ListGenres(context.Context) ([]models.FilterOption, error) {
	f.genreHits++
	return []models.FilterOption{{ID: 4, Name: "Action"}}, f.err
}

func (f *fakeSource) ListPlatforms(context.Context) ([]models.FilterOption, error) { return nil, nil }
func (f *fakeSource) ListStores(context.Context) ([]models.FilterOption, error)    { return nil, nil }
func (f *fakeSource) ListTags(context.Context) ([]models.FilterOption, error)      { return nil, nil }

type fakeFavorites []models.Game

func (f fakeFavorites) IDs() map[int]struct{} {
	out := make(map[int]struct{})
	for _, g := range f {
		out[g.ID] = struct{}{}
	}
	return out
}

func (f fakeFavorites) All() []models.Game { return f }

func TestListGames(t *testing.T) {
	src := &fakeSource{page: models.GamePage{Count: 41, Results: []models.Game{
		{ID: 1, Name: "low", Rating: 2},
		{ID: 2, Name: "high", Rating: 5},
		{ID: 3, Name: "mid", Rating: 3},
	}}}
	svc := New(src, fakeFavorites{{ID: 3}}, params.NewBuilder("", ""), Config{DefaultPageSize: 20, MaxPageSize: 40})

	f := models.DefaultFilterState()
	f.Genres = []int{4}
	page, err := svc.ListGames(context.Background(), Query{Page: 0, Search: "x", Filters: f, Sort: sorting.ByRating})
	if err != nil {
		t.Fatalf("ListGames failed: %v", err)
	}

	if src.lastQuery.Page != 1 || src.lastQuery.PageSize != 20 || *src.lastQuery.Genres != "4" || *src.lastQuery.Search != "x" {
		t.Errorf("Unexpected upstream params: %+v", src.lastQuery)
	}
	if page.TotalPages != 3 || page.Count != 41 {
		t.Errorf("Expected 3 pages of 41, got %d of %d", page.TotalPages, page.Count)
	}
	if page.Games[0].ID != 2 || page.Games[1].ID != 3 || page.Games[2].ID != 1 {
		t.Errorf("Expected rating order [2 3 1], got %+v", page.Games)
	}
	if !page.Games[1].IsFavorite || page.Games[0].IsFavorite {
		t.Errorf("Favorite flags wrong: %+v", page.Games)
	}
}

func TestListGamesError(t *testing.T) {
	boom := errors.New("boom")
	svc := New(&fakeSource{err: boom}, fakeFavorites{}, params.NewBuilder("", ""), Config{})
	if _, err := svc.ListGames(context.Background(), Query{}); !errors.Is(err, boom) {
		t.Errorf("Expected wrapped error, got %v", err)
	}
}

func TestNormalize(t *testing.T) {
	svc := New(&fakeSource{}, fakeFavorites{}, params.NewBuilder("", ""), Config{DefaultPageSize: 20, MaxPageSize: 40})
	q := svc.Normalize(Query{Page: -1, PageSize: 500})
	if q.Page != 1 || q.PageSize != 40 {
		t.Errorf("Expected page 1 size 40, got %d/%d", q.Page, q.PageSize)
	}
}

func TestFavoritesPipeline(t *testing.T) {
	favs := fakeFavorites{
		{ID: 1, Name: "Portal", Rating: 4.5, Genres: []models.Genre{{ID: 7}}},
		{ID: 2, Name: "Doom", Rating: 4.1, Genres: []models.Genre{{ID: 4}}},
		{ID: 3, Name: "Portal 2", Rating: 4.6, Genres: []models.Genre{{ID: 7}}},
		{ID: 4, Name: "Celeste", Rating: 4.4, Genres: []models.Genre{{ID: 7}}},
	}
	svc := New(&fakeSource{}, favs, params.NewBuilder("", ""), Config{DefaultPageSize: 2, MaxPageSize: 10})

	f := models.DefaultFilterState()
	f.Genres = []int{7}
	page := svc.Favorites(Query{Page: 2, Filters: f, Sort: sorting.ByRating})

	if page.Count != 3 || page.TotalPages != 2 {
		t.Errorf("Expected 3 matches over 2 pages, got %d/%d", page.Count, page.TotalPages)
	}
	if len(page.Games) != 1 || page.Games[0].ID != 4 || !page.Games[0].IsFavorite {
		t.Errorf("Expected Celeste on page 2, got %+v", page.Games)
	}
}

func TestOptionsCache(t *testing.T) {
	src := &fakeSource{}
	svc := New(src, fakeFavorites{}, params.NewBuilder("", ""), Config{OptionsTTL: time.Minute})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		opts, err := svc.Options(ctx, "genres")
		if err != nil || len(opts) != 1 {
			t.Fatalf("Options failed: %v %v", opts, err)
		}
	}
	if src.genreHits != 1 {
		t.Errorf("Expected a single upstream call, got %d", src.genreHits)
	}

	if _, err := svc.Options(ctx, "developers"); !errors.Is(err, ErrUnknownOptionKind) {
		t.Errorf("Expected ErrUnknownOptionKind, got %v", err)
	}
}
