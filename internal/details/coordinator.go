// Package details coordinates the on-demand fetch of a selected game's
// extended record. Only the latest request may commit its result.
package details

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/meur/gamedex/internal/logging"
	"github.com/meur/gamedex/internal/metrics"
	"github.com/meur/gamedex/internal/models"
)

// Status of the details view
type Status string

const (
	StatusClosed  Status = "closed"
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusErrored Status = "errored"
)

// Fetcher loads the extended record of a game
type Fetcher interface {
	GetGame(ctx context.Context, id int) (models.GameDetails, error)
}

// ScrollLock is the page-level scroll lock held while the view is open
type ScrollLock interface {
	Acquire()
	Release()
}

// State is a snapshot of the coordinator
type State struct {
	Status  Status              `json:"status"`
	Game    *models.Game        `json:"game,omitempty"`
	Details *models.GameDetails `json:"details,omitempty"`
	Error   string              `json:"error,omitempty"`
	Token   uint64              `json:"token"`
}

// Option configures a Coordinator
type Option func(*Coordinator)

// WithTimeout bounds each fetch
func WithTimeout(d time.Duration) Option {
	return func(c *Coordinator) { c.timeout = d }
}

// WithScrollLock sets the lock acquired on open and released on close
func WithScrollLock(l ScrollLock) Option {
	return func(c *Coordinator) { c.lock = l }
}

// WithErrorMessage sets how fetch errors are rendered for the user
func WithErrorMessage(fn func(game models.Game, err error) string) Option {
	return func(c *Coordinator) { c.message = fn }
}

// WithSettleHook is called after every fetch settles; applied is false for
// superseded results
func WithSettleHook(fn func(token uint64, applied bool)) Option {
	return func(c *Coordinator) { c.onSettle = fn }
}

// Coordinator runs closed -> loading -> ready|errored -> closed
type Coordinator struct {
	mu       sync.Mutex
	fetcher  Fetcher
	lock     ScrollLock
	locked   bool
	timeout  time.Duration
	token    uint64
	state    State
	message  func(models.Game, error) string
	onSettle func(uint64, bool)
	wg       sync.WaitGroup
	log      zerolog.Logger
}

// New creates a closed coordinator
func New(f Fetcher, opts ...Option) *Coordinator {
	c := &Coordinator{
		fetcher: f,
		timeout: 15 * time.Second,
		state:   State{Status: StatusClosed},
		message: defaultMessage,
		log:     logging.Component("details"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Open selects g, moves to loading and starts the fetch. Any earlier
// request in flight is superseded. It returns the request token.
func (c *Coordinator) Open(g models.Game) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.token++
	token := c.token
	selected := g
	c.state = State{Status: StatusLoading, Game: &selected, Token: token}

	if c.lock != nil && !c.locked {
		c.lock.Acquire()
		c.locked = true
	}

	c.wg.Add(1)
	go c.fetch(token, g)

	c.log.Debug().Int("game_id", g.ID).Uint64("token", token).Msg("details requested")
	return token
}

// Close discards the selection and releases the scroll lock. A fetch still
// in flight becomes a no-op.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.token++
	c.state = State{Status: StatusClosed, Token: c.token}

	if c.locked {
		c.locked = false
		c.lock.Release()
	}
}

// State returns a snapshot
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Wait blocks until every started fetch has settled
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

func (c *Coordinator) fetch(token uint64, g models.Game) {
	defer c.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	details, err := c.fetcher.GetGame(ctx, g.ID)

	c.mu.Lock()
	applied := token == c.token && c.state.Status == StatusLoading
	if applied {
		if err != nil {
			c.state.Status = StatusErrored
			c.state.Error = c.message(g, err)
		} else {
			c.state.Status = StatusReady
			c.state.Details = &details
		}
	}
	c.mu.Unlock()

	metrics.DetailsResults.WithLabelValues(strconv.FormatBool(applied)).Inc()
	switch {
	case !applied:
		c.log.Debug().Int("game_id", g.ID).Uint64("token", token).Msg("discarding superseded details")
	case err != nil:
		c.log.Warn().Err(err).Int("game_id", g.ID).Msg("details fetch failed")
	}

	if c.onSettle != nil {
		c.onSettle(token, applied)
	}
}

func defaultMessage(g models.Game, err error) string {
	if g.Name != "" {
		return fmt.Sprintf("Could not load details for %s: %v", g.Name, err)
	}
	return fmt.Sprintf("Could not load game details: %v", err)
}
