// Package pagination tracks the current page of a result set.
package pagination

import (
	"errors"
	"sync"
)

// ErrInvalidPage is returned for page numbers below 1
var ErrInvalidPage = errors.New("page must be >= 1")

// TotalPages returns ceil(totalItems/pageSize), never less than 1
func TotalPages(totalItems, pageSize int) int {
	if pageSize <= 0 || totalItems <= 0 {
		return 1
	}
	return (totalItems + pageSize - 1) / pageSize
}

// Window returns the items of a 1-based page. Out-of-range pages are empty.
func Window[T any](items []T, page, pageSize int) []T {
	if page < 1 || pageSize <= 0 {
		return []T{}
	}
	start := (page - 1) * pageSize
	if start >= len(items) {
		return []T{}
	}
	end := min(start+pageSize, len(items))
	out := make([]T, end-start)
	copy(out, items[start:end])
	return out
}

// Controller holds the current page. It does not clamp the page when the
// total shrinks; owners call Reset when their selection changes.
type Controller struct {
	mu          sync.Mutex
	page        int
	pageSize    int
	totalItems  int
	scrollToTop func()
}

// NewController creates a controller on page 1. scrollToTop may be nil.
func NewController(pageSize int, scrollToTop func()) *Controller {
	return &Controller{
		page:        1,
		pageSize:    pageSize,
		scrollToTop: scrollToTop,
	}
}

// Page returns the current page
func (c *Controller) Page() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.page
}

// PageSize returns the configured page size
func (c *Controller) PageSize() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pageSize
}

// SetPage moves to page n and fires the scroll-to-top callback once
func (c *Controller) SetPage(n int) error {
	if n < 1 {
		return ErrInvalidPage
	}
	c.mu.Lock()
	c.page = n
	scroll := c.scrollToTop
	c.mu.Unlock()

	if scroll != nil {
		scroll()
	}
	return nil
}

// Reset returns to page 1
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.page = 1
}

// SetTotal records the size of the latest result set
func (c *Controller) SetTotal(totalItems int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalItems = totalItems
}

// TotalPages derives the page count from the recorded total
func (c *Controller) TotalPages() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return TotalPages(c.totalItems, c.pageSize)
}
