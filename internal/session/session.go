// Package session keeps per-browser view state: the filter, search and sort
// selection, the current page and the details view.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/meur/gamedex/internal/catalog"
	"github.com/meur/gamedex/internal/details"
	"github.com/meur/gamedex/internal/models"
	"github.com/meur/gamedex/internal/pagination"
	"github.com/meur/gamedex/internal/sorting"
)

// ErrClosed is returned when a session was closed while still referenced
var ErrClosed = errors.New("session closed")

// View is a snapshot of a session
type View struct {
	ID           string             `json:"id"`
	Search       string             `json:"search"`
	Filters      models.FilterState `json:"filters"`
	Sort         sorting.Option     `json:"sort"`
	Page         int                `json:"page"`
	PageSize     int                `json:"page_size"`
	TotalItems   int                `json:"total_items"`
	TotalPages   int                `json:"total_pages"`
	ScrollEpoch  uint64             `json:"scroll_epoch"`
	ScrollLocked bool               `json:"scroll_locked"`
	Details      details.State      `json:"details"`
}

// Session is one browser's view state. Every change to the selection puts
// the view back on page 1 so a page number from a larger result set is
// never carried over.
type Session struct {
	ID string

	mu          sync.Mutex
	search      string
	filters     models.FilterState
	sort        sorting.Option
	totalItems  int
	scrollEpoch uint64
	lastAccess  time.Time
	closed      bool

	pager   *pagination.Controller
	lock    *scrollLock
	details *details.Coordinator
}

func newSession(id string, cfg Config, now time.Time) *Session {
	s := &Session{
		ID:         id,
		filters:    models.DefaultFilterState(),
		sort:       cfg.DefaultSort,
		lastAccess: now,
		lock:       &scrollLock{},
	}
	s.pager = pagination.NewController(cfg.PageSize, s.scrollToTop)

	opts := []details.Option{details.WithScrollLock(s.lock)}
	if cfg.DetailsTimeout > 0 {
		opts = append(opts, details.WithTimeout(cfg.DetailsTimeout))
	}
	if cfg.ErrorMessage != nil {
		opts = append(opts, details.WithErrorMessage(cfg.ErrorMessage))
	}
	s.details = details.New(cfg.Fetcher, opts...)
	return s
}

func (s *Session) scrollToTop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scrollEpoch++
}

// SetFilters replaces the filter selection and resets to page 1
func (s *Session) SetFilters(f models.FilterState) {
	s.mu.Lock()
	s.filters = f
	s.mu.Unlock()
	s.pager.Reset()
}

// SetSearch replaces the search term and resets to page 1
func (s *Session) SetSearch(term string) {
	s.mu.Lock()
	s.search = term
	s.mu.Unlock()
	s.pager.Reset()
}

// SetSort changes the ordering and resets to page 1
func (s *Session) SetSort(opt sorting.Option) {
	s.mu.Lock()
	s.sort = opt
	s.mu.Unlock()
	s.pager.Reset()
}

// SetPage navigates and scrolls to the top
func (s *Session) SetPage(n int) error {
	return s.pager.SetPage(n)
}

// Query returns the catalog query for the current selection
func (s *Session) Query() catalog.Query {
	s.mu.Lock()
	defer s.mu.Unlock()
	return catalog.Query{
		Page:     s.pager.Page(),
		PageSize: s.pager.PageSize(),
		Search:   s.search,
		Filters:  s.filters,
		Sort:     s.sort,
	}
}

// RecordTotal stores the size of the latest result set. When the set shrank
// below the current page the view moves to the last page and RecordTotal
// reports true; the caller should fetch again.
func (s *Session) RecordTotal(total int) bool {
	s.mu.Lock()
	s.totalItems = total
	s.mu.Unlock()
	s.pager.SetTotal(total)

	last := s.pager.TotalPages()
	if s.pager.Page() <= last {
		return false
	}
	return s.pager.SetPage(last) == nil
}

// OpenDetails selects g in the details view. A closed session refuses so no
// fetch or scroll lock outlives it.
func (s *Session) OpenDetails(g models.Game) (details.State, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return s.details.State(), ErrClosed
	}
	s.details.Open(g)
	s.mu.Unlock()
	return s.details.State(), nil
}

// CloseDetails closes the details view
func (s *Session) CloseDetails() {
	s.details.Close()
}

// Details returns the details view state
func (s *Session) Details() details.State {
	return s.details.State()
}

// View returns a snapshot of the session
func (s *Session) View() View {
	s.mu.Lock()
	v := View{
		ID:          s.ID,
		Search:      s.search,
		Filters:     s.filters,
		Sort:        s.sort,
		TotalItems:  s.totalItems,
		ScrollEpoch: s.scrollEpoch,
	}
	s.mu.Unlock()

	v.Page = s.pager.Page()
	v.PageSize = s.pager.PageSize()
	v.TotalPages = s.pager.TotalPages()
	v.ScrollLocked = s.lock.Held()
	v.Details = s.details.State()
	return v
}

// Close releases the details view and waits for its fetches to settle
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.details.Close()
	s.details.Wait()
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastAccess = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAccess
}

// scrollLock records whether the page scroll is locked by an open view
type scrollLock struct {
	mu   sync.Mutex
	held bool
}

func (l *scrollLock) Acquire() {
	l.mu.Lock()
	l.held = true
	l.mu.Unlock()
}

func (l *scrollLock) Release() {
	l.mu.Lock()
	l.held = false
	l.mu.Unlock()
}

func (l *scrollLock) Held() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.held
}
