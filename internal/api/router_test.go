package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/meur/gamedex/internal/catalog"
	"github.com/meur/gamedex/internal/details"
	"github.com/meur/gamedex/internal/favorites"
	"github.com/meur/gamedex/internal/models"
	"github.com/meur/gamedex/internal/params"
	"github.com/meur/gamedex/internal/rawg"
	"github.com/meur/gamedex/internal/session"
	"github.com/meur/gamedex/internal/sorting"
	"github.com/meur/gamedex/internal/storage"
)

type fakeSource struct {
	mu       sync.Mutex
	games    []models.Game
	listErr  error
	gameErr  error
	lastList params.APIParams
}

func (f *fakeSource) ListGames(_ context.Context, p params.APIParams) (models.GamePage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastList = p
	if f.listErr != nil {
		return models.GamePage{}, f.listErr
	}
	return models.GamePage{Count: len(f.games), Results: f.games}, nil
}

func (f *fakeSource) GetGame(_ context.Context, id int) (models.GameDetails, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gameErr != nil {
		return models.GameDetails{}, f.gameErr
	}
	return models.GameDetails{Game: models.Game{ID: id, Name: "Details"}, Description: "<p>long</p>"}, nil
}

func (f *fakeSource) ListGenres(context.Context) ([]models.FilterOption, error) {
	return []models.FilterOption{{ID: 4, Name: "Action", Slug: "action"}}, nil
}
func (f *fakeSource) ListPlatforms(context.Context) ([]models.FilterOption, error) { return nil, nil }
func (f *fakeSource) ListStores(context.Context) ([]models.FilterOption, error)    { return nil, nil }
func (f *fakeSource) ListTags(context.Context) ([]models.FilterOption, error)      { return nil, nil }

func (f *fakeSource) params() params.APIParams {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastList
}

func setupTestServer(t *testing.T, src *fakeSource) (*Server, *favorites.Store) {
	t.Helper()

	store, err := storage.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	favs := favorites.New(store)
	favs.Load(context.Background())

	cat := catalog.New(src, favs, params.NewBuilder("", ""), catalog.Config{DefaultPageSize: 20, MaxPageSize: 40})
	sessions := session.NewRegistry(session.Config{
		Fetcher:        cat,
		PageSize:       20,
		DefaultSort:    sorting.ByAdded,
		DetailsTimeout: time.Second,
	})

	return New(Config{}, store, favs, cat, sessions), favs
}

func doRequest(t *testing.T, srv http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("Failed to decode %q: %v", w.Body.String(), err)
	}
}

func TestHealth(t *testing.T) {
	srv, _ := setupTestServer(t, &fakeSource{})

	w := doRequest(t, srv, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("Expected a request id header")
	}
}

func TestListGames(t *testing.T) {
	src := &fakeSource{games: []models.Game{
		{ID: 1, Name: "Zork"},
		{ID: 2, Name: "apex"},
		{ID: 3, Name: "Braid"},
	}}
	srv, favs := setupTestServer(t, src)
	favs.Add(context.Background(), models.Game{ID: 3, Name: "Braid"})

	w := doRequest(t, srv, http.MethodGet, "/api/games?sort=name&genres=4,2&genres=4&search=%20puzzle%20&dates_start=2010-01-01", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var page catalog.Page
	decodeBody(t, w, &page)

	var names []string
	for _, g := range page.Games {
		names = append(names, g.Name)
	}
	if len(names) != 3 || names[0] != "apex" || names[1] != "Braid" || names[2] != "Zork" {
		t.Errorf("Unexpected order: %v", names)
	}
	if !page.Games[1].IsFavorite || page.Games[0].IsFavorite {
		t.Errorf("Unexpected favorite flags: %+v", page.Games)
	}

	p := src.params()
	if p.Genres == nil || *p.Genres != "2,4" {
		t.Errorf("Expected genres 2,4, got %v", p.Genres)
	}
	if p.Search == nil || *p.Search != "puzzle" {
		t.Errorf("Expected trimmed search, got %v", p.Search)
	}
	if p.Dates == nil || *p.Dates != "2010-01-01,2099-12-31" {
		t.Errorf("Unexpected dates: %v", p.Dates)
	}
	if p.Metacritic != nil {
		t.Errorf("Default metacritic range should be omitted, got %s", *p.Metacritic)
	}
}

func TestListGamesRejectsBadQuery(t *testing.T) {
	srv, _ := setupTestServer(t, &fakeSource{})

	tests := []string{
		"/api/games?page=0",
		"/api/games?page=abc",
		"/api/games?genres=action",
		"/api/games?metacritic_min=120",
		"/api/games?metacritic_min=80&metacritic_max=20",
		"/api/games?dates_start=01/02/2020",
	}
	for _, path := range tests {
		t.Run(path, func(t *testing.T) {
			w := doRequest(t, srv, http.MethodGet, path, nil)
			if w.Code != http.StatusBadRequest {
				t.Errorf("Expected 400, got %d", w.Code)
			}
		})
	}
}

func TestUpstreamErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"not found", &rawg.APIError{Status: http.StatusNotFound}, http.StatusNotFound},
		{"server error", &rawg.APIError{Status: http.StatusInternalServerError}, http.StatusBadGateway},
		{"circuit open", rawg.ErrUnavailable, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := setupTestServer(t, &fakeSource{gameErr: tt.err})
			w := doRequest(t, srv, http.MethodGet, "/api/games/7", nil)
			if w.Code != tt.status {
				t.Errorf("Expected %d, got %d", tt.status, w.Code)
			}
			var body map[string]string
			decodeBody(t, w, &body)
			if body["error"] == "" {
				t.Error("Expected an error message")
			}
		})
	}
}

func TestGetGame(t *testing.T) {
	srv, _ := setupTestServer(t, &fakeSource{})

	w := doRequest(t, srv, http.MethodGet, "/api/games/7", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var body struct {
		Game       models.GameDetails `json:"game"`
		IsFavorite bool               `json:"is_favorite"`
	}
	decodeBody(t, w, &body)
	if body.Game.ID != 7 || body.IsFavorite {
		t.Errorf("Unexpected body: %+v", body)
	}

	if w := doRequest(t, srv, http.MethodGet, "/api/games/abc", nil); w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for a bad id, got %d", w.Code)
	}
}

func TestListOptions(t *testing.T) {
	srv, _ := setupTestServer(t, &fakeSource{})

	w := doRequest(t, srv, http.MethodGet, "/api/genres", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var body struct {
		Items      []models.FilterOption `json:"items"`
		TotalCount int                   `json:"total_count"`
	}
	decodeBody(t, w, &body)
	if body.TotalCount != 1 || body.Items[0].Slug != "action" {
		t.Errorf("Unexpected options: %+v", body)
	}
}

func TestFavoritesLifecycle(t *testing.T) {
	srv, favs := setupTestServer(t, &fakeSource{})
	game := models.Game{ID: 10, Name: "Celeste", Rating: 4.5}

	w := doRequest(t, srv, http.MethodPost, "/api/favorites/toggle", game)
	var resp favoriteResponse
	decodeBody(t, w, &resp)
	if w.Code != http.StatusOK || !resp.IsFavorite || resp.Count != 1 {
		t.Fatalf("Toggle on failed: %d %+v", w.Code, resp)
	}

	// idempotent add keeps a single record
	w = doRequest(t, srv, http.MethodPut, "/api/favorites/10", models.Game{Name: "Renamed"})
	decodeBody(t, w, &resp)
	if resp.Count != 1 || resp.Game == nil || resp.Game.Name != "Celeste" {
		t.Errorf("Expected unchanged record, got %+v", resp)
	}

	w = doRequest(t, srv, http.MethodPut, "/api/favorites/11", models.Game{ID: 12})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for mismatched id, got %d", w.Code)
	}

	w = doRequest(t, srv, http.MethodGet, "/api/favorites?search=cel", nil)
	var list struct {
		Page catalog.Page `json:"page"`
	}
	decodeBody(t, w, &list)
	if list.Page.Count != 1 || !list.Page.Games[0].IsFavorite {
		t.Errorf("Unexpected favorites page: %+v", list.Page)
	}

	w = doRequest(t, srv, http.MethodPost, "/api/favorites/toggle", game)
	decodeBody(t, w, &resp)
	if resp.IsFavorite || resp.Count != 0 {
		t.Errorf("Toggle off failed: %+v", resp)
	}

	if w := doRequest(t, srv, http.MethodDelete, "/api/favorites/10", nil); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 removing a non-favorite, got %d", w.Code)
	}

	doRequest(t, srv, http.MethodPut, "/api/favorites/1", models.Game{Name: "A"})
	doRequest(t, srv, http.MethodPut, "/api/favorites/2", models.Game{Name: "B"})
	if w := doRequest(t, srv, http.MethodDelete, "/api/favorites", nil); w.Code != http.StatusOK {
		t.Errorf("Expected 200 clearing, got %d", w.Code)
	}
	if favs.Count() != 0 {
		t.Errorf("Expected empty collection, got %d", favs.Count())
	}

	if w := doRequest(t, srv, http.MethodPost, "/api/favorites/toggle", models.Game{Name: "no id"}); w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for a game without id, got %d", w.Code)
	}
}

func TestFavoriteWriteSurvivesClientCancel(t *testing.T) {
	srv, _ := setupTestServer(t, &fakeSource{})

	var buf bytes.Buffer
	json.NewEncoder(&buf).Encode(models.Game{ID: 77, Name: "Tunic"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/api/favorites/toggle", &buf).WithContext(ctx)
	srv.ServeHTTP(httptest.NewRecorder(), req)

	reloaded := favorites.New(srv.store)
	reloaded.Load(context.Background())
	if !reloaded.IsFavorite(77) {
		t.Error("Expected the favorite to be persisted despite the cancelled request")
	}
}

func TestSessionFlow(t *testing.T) {
	src := &fakeSource{games: []models.Game{{ID: 1, Name: "B"}, {ID: 2, Name: "A"}}}
	srv, _ := setupTestServer(t, src)

	w := doRequest(t, srv, http.MethodPost, "/api/sessions", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", w.Code)
	}
	var view session.View
	decodeBody(t, w, &view)
	base := "/api/sessions/" + view.ID

	w = doRequest(t, srv, http.MethodPut, base+"/page", pageRequest{Page: 3})
	decodeBody(t, w, &view)
	if view.Page != 3 || view.ScrollEpoch != 1 {
		t.Errorf("Expected page 3 and one scroll, got %+v", view)
	}

	w = doRequest(t, srv, http.MethodPut, base+"/search", searchRequest{Search: "  portal "})
	decodeBody(t, w, &view)
	if view.Page != 1 || view.Search != "portal" || view.ScrollEpoch != 1 {
		t.Errorf("Search should reset to page 1 without scrolling, got %+v", view)
	}

	if w := doRequest(t, srv, http.MethodPut, base+"/sort", sortRequest{Sort: "popularity"}); w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown sort, got %d", w.Code)
	}
	doRequest(t, srv, http.MethodPut, base+"/sort", sortRequest{Sort: "name"})

	w = doRequest(t, srv, http.MethodPut, base+"/filters", map[string]interface{}{"genres": []int{5, 3}})
	decodeBody(t, w, &view)
	if view.Filters.MetacriticRange.Max != 100 || len(view.Filters.Genres) != 2 {
		t.Errorf("Unexpected filters: %+v", view.Filters)
	}

	w = doRequest(t, srv, http.MethodGet, base+"/games", nil)
	var games struct {
		Page    catalog.Page `json:"page"`
		Session session.View `json:"session"`
	}
	decodeBody(t, w, &games)
	if games.Page.Games[0].Name != "A" || games.Session.TotalItems != 2 {
		t.Errorf("Unexpected session games: %+v", games)
	}
	if p := src.params(); p.Search == nil || *p.Search != "portal" || p.Genres == nil || *p.Genres != "3,5" {
		t.Errorf("Unexpected upstream params: %+v", p)
	}

	if w := doRequest(t, srv, http.MethodDelete, base, nil); w.Code != http.StatusNoContent {
		t.Errorf("Expected 204, got %d", w.Code)
	}
	if w := doRequest(t, srv, http.MethodGet, base, nil); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 after delete, got %d", w.Code)
	}
}

func TestSessionDetails(t *testing.T) {
	srv, _ := setupTestServer(t, &fakeSource{})

	var view session.View
	decodeBody(t, doRequest(t, srv, http.MethodPost, "/api/sessions", nil), &view)
	base := "/api/sessions/" + view.ID

	w := doRequest(t, srv, http.MethodPost, base+"/details", models.Game{ID: 42, Name: "Outer Wilds"})
	if w.Code != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d", w.Code)
	}

	var state details.State
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		decodeBody(t, doRequest(t, srv, http.MethodGet, base+"/details", nil), &state)
		if state.Status != details.StatusLoading {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if state.Status != details.StatusReady || state.Details == nil || state.Details.ID != 42 {
		t.Fatalf("Expected ready details for 42, got %+v", state)
	}

	decodeBody(t, doRequest(t, srv, http.MethodGet, base, nil), &view)
	if !view.ScrollLocked {
		t.Error("Expected scroll lock while details are open")
	}

	decodeBody(t, doRequest(t, srv, http.MethodDelete, base+"/details", nil), &state)
	if state.Status != details.StatusClosed {
		t.Errorf("Expected closed, got %s", state.Status)
	}
	decodeBody(t, doRequest(t, srv, http.MethodGet, base, nil), &view)
	if view.ScrollLocked {
		t.Error("Expected scroll lock released after close")
	}
}

func TestUnknownSession(t *testing.T) {
	srv, _ := setupTestServer(t, &fakeSource{})
	if w := doRequest(t, srv, http.MethodGet, "/api/sessions/nope/games", nil); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
}

func TestPreferences(t *testing.T) {
	srv, _ := setupTestServer(t, &fakeSource{})

	var prefs models.Preferences
	decodeBody(t, doRequest(t, srv, http.MethodGet, "/api/preferences", nil), &prefs)
	if prefs != models.DefaultPreferences() {
		t.Errorf("Expected defaults, got %+v", prefs)
	}

	if w := doRequest(t, srv, http.MethodPut, "/api/preferences", map[string]string{"theme": "neon"}); w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown theme, got %d", w.Code)
	}

	w := doRequest(t, srv, http.MethodPut, "/api/preferences", map[string]interface{}{"theme": "dark", "reduced_motion": true})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	decodeBody(t, doRequest(t, srv, http.MethodGet, "/api/preferences", nil), &prefs)
	if prefs.Theme != "dark" || !prefs.ReducedMotion || prefs.FontScale != 1 {
		t.Errorf("Unexpected stored preferences: %+v", prefs)
	}

	if w := doRequest(t, srv, http.MethodDelete, "/api/preferences", nil); w.Code != http.StatusOK {
		t.Errorf("Expected 200 on reset, got %d", w.Code)
	}
	decodeBody(t, doRequest(t, srv, http.MethodGet, "/api/preferences", nil), &prefs)
	if prefs != models.DefaultPreferences() {
		t.Errorf("Expected defaults after reset, got %+v", prefs)
	}
}
