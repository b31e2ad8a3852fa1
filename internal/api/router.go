package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/meur/gamedex/internal/catalog"
	"github.com/meur/gamedex/internal/favorites"
	"github.com/meur/gamedex/internal/logging"
	"github.com/meur/gamedex/internal/rawg"
	"github.com/meur/gamedex/internal/session"
	"github.com/meur/gamedex/internal/sorting"
	"github.com/meur/gamedex/internal/storage"
)

// Config holds HTTP-level settings
type Config struct {
	CORSOrigins       []string
	RateLimitRequests int // per client IP and window, 0 disables
	RateLimitWindow   time.Duration
	DefaultSort       sorting.Option
}

// Server holds the HTTP server dependencies
type Server struct {
	store     *storage.Store
	favorites *favorites.Store
	catalog   *catalog.Service
	sessions  *session.Registry

	cfg      Config
	validate *validator.Validate
	router   chi.Router
	log      zerolog.Logger
}

// New creates a new API server
func New(cfg Config, store *storage.Store, favs *favorites.Store, cat *catalog.Service, sessions *session.Registry) *Server {
	if cfg.DefaultSort == "" {
		cfg.DefaultSort = sorting.ByAdded
	}
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{"http://localhost:*"}
	}

	s := &Server{
		store:     store,
		favorites: favs,
		catalog:   cat,
		sessions:  sessions,
		cfg:       cfg,
		validate:  validator.New(),
		router:    chi.NewRouter(),
		log:       logging.Component("api"),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Router exposes the router so callers can mount extra handlers such as the UI
func (s *Server) Router() chi.Router {
	return s.router
}

func (s *Server) setupMiddleware() {
	s.router.Use(requestID)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Authorization", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Route("/api", func(r chi.Router) {
		if s.cfg.RateLimitRequests > 0 {
			r.Use(httprate.LimitByIP(s.cfg.RateLimitRequests, s.cfg.RateLimitWindow))
		}

		// Catalog
		r.Get("/games", s.handleListGames)
		r.Get("/games/{gameID}", s.handleGetGame)
		for _, kind := range []string{"genres", "platforms", "stores", "tags"} {
			r.Get("/"+kind, s.handleListOptions(kind))
		}

		// Favorites
		r.Route("/favorites", func(r chi.Router) {
			r.Get("/", s.handleListFavorites)
			r.Delete("/", s.handleClearFavorites)
			r.Post("/toggle", s.handleToggleFavorite)
			r.Get("/{gameID}", s.handleGetFavorite)
			r.Put("/{gameID}", s.handleAddFavorite)
			r.Delete("/{gameID}", s.handleRemoveFavorite)
		})

		// Browsing sessions
		r.Post("/sessions", s.handleCreateSession)
		r.Route("/sessions/{sessionID}", func(r chi.Router) {
			r.Use(s.withSession)
			r.Get("/", s.handleGetSession)
			r.Delete("/", s.handleDeleteSession)
			r.Put("/filters", s.handleSetFilters)
			r.Put("/search", s.handleSetSearch)
			r.Put("/sort", s.handleSetSort)
			r.Put("/page", s.handleSetPage)
			r.Get("/games", s.handleSessionGames)
			r.Post("/details", s.handleOpenDetails)
			r.Get("/details", s.handleGetDetails)
			r.Delete("/details", s.handleCloseDetails)
		})

		// Display preferences
		r.Get("/preferences", s.handleGetPreferences)
		r.Put("/preferences", s.handlePutPreferences)
		r.Delete("/preferences", s.handleResetPreferences)
	})

	s.router.Get("/health", s.handleHealth)
	s.router.Handle("/metrics", promhttp.Handler())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("health check failed")
		respondError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// --- Middleware ---

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(logging.WithRequestID(r.Context(), id)))
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		ev := s.log.Info()
		if status >= 500 {
			ev = s.log.Warn()
		}
		ev.Str("request_id", logging.RequestID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

// --- Response helpers ---

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func decodeJSON(r *http.Request, v interface{}) error {
	return json.NewDecoder(r.Body).Decode(v)
}

// respondUpstreamError maps a games API failure to a status
func respondUpstreamError(w http.ResponseWriter, r *http.Request, err error, message string) {
	status := http.StatusBadGateway
	switch {
	case errors.Is(err, rawg.ErrUnavailable):
		status = http.StatusServiceUnavailable
		message = "games service temporarily unavailable"
	case rawg.IsNotFound(err):
		status = http.StatusNotFound
		message = "game not found"
	case errors.Is(err, context.Canceled):
		// client went away
		return
	}
	logging.Ctx(r.Context()).Warn().Err(err).Int("status", status).Msg(message)
	respondError(w, status, message)
}
