// Package rawg is a client for the RAWG games database REST API.
package rawg

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/meur/gamedex/internal/logging"
	"github.com/meur/gamedex/internal/metrics"
	"github.com/meur/gamedex/internal/models"
	"github.com/meur/gamedex/internal/params"
)

// DefaultBaseURL is the public RAWG endpoint
const DefaultBaseURL = "https://api.rawg.io/api"

// ErrUnavailable is returned while the circuit breaker rejects requests
var ErrUnavailable = errors.New("games API temporarily unavailable")

// APIError is a non-2xx response from the API
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("games API returned status %d: %s", e.Status, e.Body)
}

// IsNotFound reports whether err is a 404 from the API
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// UserMessage renders a fetch failure for the named game in words fit for
// display
func UserMessage(name string, err error) string {
	if name == "" {
		name = "this game"
	}
	switch {
	case errors.Is(err, ErrUnavailable):
		return "The games service is temporarily unavailable. Try again shortly."
	case IsNotFound(err):
		return fmt.Sprintf("No details were found for %s.", name)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Sprintf("Loading details for %s took too long.", name)
	default:
		return fmt.Sprintf("Failed to load details for %s.", name)
	}
}

// Config configures a Client
type Config struct {
	BaseURL   string
	APIKey    string
	Timeout   time.Duration
	RateLimit float64 // requests per second, 0 disables
	Burst     int
}

// Client handles communication with the games API
type Client struct {
	BaseURL string
	APIKey  string
	Client  *http.Client

	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[[]byte]
	log     zerolog.Logger
}

// NewClient creates a new API client
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	c := &Client{
		BaseURL: strings.TrimRight(cfg.BaseURL, "/"),
		APIKey:  cfg.APIKey,
		Client:  &http.Client{Timeout: cfg.Timeout},
		log:     logging.Component("rawg"),
	}
	if cfg.RateLimit > 0 {
		burst := max(cfg.Burst, 1)
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	c.breaker = newBreaker("rawg-api", c.log)
	return c
}

// ListGames fetches one page of games matching p
func (c *Client) ListGames(ctx context.Context, p params.APIParams) (models.GamePage, error) {
	body, err := c.get(ctx, "games", "/games", p.Values())
	if err != nil {
		return models.GamePage{}, err
	}

	var page models.GamePage
	if err := json.Unmarshal(body, &page); err != nil {
		return models.GamePage{}, fmt.Errorf("failed to decode games response: %w", err)
	}
	if page.Results == nil {
		page.Results = []models.Game{}
	}
	return page, nil
}

// GetGame fetches the extended record of a single game
func (c *Client) GetGame(ctx context.Context, id int) (models.GameDetails, error) {
	body, err := c.get(ctx, "game", "/games/"+strconv.Itoa(id), nil)
	if err != nil {
		return models.GameDetails{}, err
	}

	var details models.GameDetails
	if err := json.Unmarshal(body, &details); err != nil {
		return models.GameDetails{}, fmt.Errorf("failed to decode game response: %w", err)
	}
	return details, nil
}

// ListGenres fetches all genres
func (c *Client) ListGenres(ctx context.Context) ([]models.FilterOption, error) {
	return c.listOptions(ctx, "genres", 5)
}

// ListPlatforms fetches all platforms
func (c *Client) ListPlatforms(ctx context.Context) ([]models.FilterOption, error) {
	return c.listOptions(ctx, "platforms", 5)
}

// ListStores fetches all stores
func (c *Client) ListStores(ctx context.Context) ([]models.FilterOption, error) {
	return c.listOptions(ctx, "stores", 5)
}

// ListTags fetches the most used tags; the full tag list is tens of thousands long
func (c *Client) ListTags(ctx context.Context) ([]models.FilterOption, error) {
	return c.listOptions(ctx, "tags", 1)
}

// listOptions walks the paginated option endpoint up to maxPages pages
func (c *Client) listOptions(ctx context.Context, resource string, maxPages int) ([]models.FilterOption, error) {
	const pageSize = 40
	var all []models.FilterOption
	seenIDs := make(map[int]bool)

	for page := 1; page <= maxPages; page++ {
		q := url.Values{}
		q.Set("page", strconv.Itoa(page))
		q.Set("page_size", strconv.Itoa(pageSize))

		body, err := c.get(ctx, resource, "/"+resource, q)
		if err != nil {
			return nil, err
		}

		var paginated struct {
			Count   int                   `json:"count"`
			Next    string                `json:"next"`
			Results []models.FilterOption `json:"results"`
		}
		if err := json.Unmarshal(body, &paginated); err != nil {
			return nil, fmt.Errorf("failed to decode %s response: %w", resource, err)
		}

		newItems := false
		for _, o := range paginated.Results {
			if !seenIDs[o.ID] {
				seenIDs[o.ID] = true
				all = append(all, o)
				newItems = true
			}
		}

		if !newItems || paginated.Next == "" || len(paginated.Results) < pageSize {
			break
		}
	}

	if all == nil {
		all = []models.FilterOption{}
	}
	return all, nil
}

// get performs a rate-limited GET through the circuit breaker
func (c *Client) get(ctx context.Context, endpoint, path string, query url.Values) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	start := time.Now()
	body, err := c.breaker.Execute(func() ([]byte, error) {
		return c.do(ctx, path, query)
	})
	metrics.UpstreamDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())

	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.UpstreamRequests.WithLabelValues(endpoint, "rejected").Inc()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	case err != nil:
		metrics.UpstreamRequests.WithLabelValues(endpoint, "error").Inc()
		c.log.Warn().Err(err).Str("endpoint", endpoint).Msg("upstream request failed")
		return nil, err
	}

	metrics.UpstreamRequests.WithLabelValues(endpoint, "success").Inc()
	return body, nil
}

func (c *Client) do(ctx context.Context, path string, query url.Values) ([]byte, error) {
	if query == nil {
		query = url.Values{}
	}
	if c.APIKey != "" {
		query.Set("key", c.APIKey)
	}

	target := c.BaseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to perform request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{Status: resp.StatusCode, Body: truncate(string(body), 512)}
	}
	return body, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
