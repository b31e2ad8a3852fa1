package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/meur/gamedex/internal/api"
	"github.com/meur/gamedex/internal/catalog"
	"github.com/meur/gamedex/internal/config"
	"github.com/meur/gamedex/internal/favorites"
	"github.com/meur/gamedex/internal/logging"
	"github.com/meur/gamedex/internal/models"
	"github.com/meur/gamedex/internal/params"
	"github.com/meur/gamedex/internal/rawg"
	"github.com/meur/gamedex/internal/session"
	"github.com/meur/gamedex/internal/sorting"
	"github.com/meur/gamedex/internal/storage"
)

func main() {
	configPath := flag.String("config", "", "Config file path (defaults to $CONFIG_PATH or ./gamedex.yaml)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	if cfg.RAWG.APIKey == "" {
		logging.Warn().Msg("RAWG_API_KEY is not set, upstream requests will likely be rejected")
	}

	// Initialize storage
	store, err := storage.New(cfg.Database.Path)
	if err != nil {
		logging.Fatal().Err(err).Str("path", cfg.Database.Path).Msg("Failed to initialize storage")
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	favs := favorites.New(store)
	favs.Load(ctx)

	client := rawg.NewClient(rawg.Config{
		BaseURL:   cfg.RAWG.BaseURL,
		APIKey:    cfg.RAWG.APIKey,
		Timeout:   cfg.RAWG.Timeout,
		RateLimit: cfg.RAWG.RateLimit,
		Burst:     cfg.RAWG.Burst,
	})

	cat := catalog.New(client, favs,
		params.NewBuilder(cfg.Catalog.EarliestDate, cfg.Catalog.LatestDate),
		catalog.Config{
			DefaultPageSize: cfg.Catalog.DefaultPageSize,
			MaxPageSize:     cfg.Catalog.MaxPageSize,
			OptionsTTL:      cfg.Catalog.OptionsTTL,
		})

	defaultSort := sorting.ParseOption(cfg.Catalog.DefaultSort, sorting.ByAdded)
	sessions := session.NewRegistry(session.Config{
		Fetcher:        cat,
		PageSize:       cfg.Catalog.DefaultPageSize,
		DefaultSort:    defaultSort,
		DetailsTimeout: cfg.Sessions.DetailsTimeout,
		IdleTimeout:    cfg.Sessions.IdleTimeout,
		ErrorMessage: func(g models.Game, err error) string {
			return rawg.UserMessage(g.Name, err)
		},
	})
	go sessions.Run(ctx, cfg.Sessions.SweepInterval)

	// Create router
	srv := api.New(api.Config{
		CORSOrigins:       cfg.Security.CORSOrigins,
		RateLimitRequests: cfg.Security.RateLimitRequests,
		RateLimitWindow:   cfg.Security.RateLimitWindow,
		DefaultSort:       defaultSort,
	}, store, favs, cat, sessions)

	// Serve frontend static files (for production deployment)
	if dir := cfg.Server.StaticDir; dir != "" {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			FileServer(srv.Router(), "/", http.Dir(dir))
			logging.Info().Str("dir", dir).Msg("Serving static UI")
		}
	}

	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logging.Info().
			Str("addr", cfg.Addr()).
			Str("database", cfg.Database.Path).
			Int("favorites", favs.Count()).
			Msg("GameDex API starting")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal().Err(err).Msg("Server failed")
		}
	}()

	<-ctx.Done()
	logging.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("Graceful shutdown failed")
	}
	if err := favs.Flush(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("Failed to flush favorites")
	}
}

// FileServer conveniently sets up a http.FileServer handler to serve
// static files from a http.FileSystem.
func FileServer(r chi.Router, path string, root http.FileSystem) {
	if strings.ContainsAny(path, "{}*") {
		panic("FileServer does not permit URL parameters.")
	}

	if path != "/" && path[len(path)-1] != '/' {
		r.Get(path, http.RedirectHandler(path+"/", 301).ServeHTTP)
		path += "/"
	}
	path += "*"

	r.Get(path, func(w http.ResponseWriter, req *http.Request) {
		rctx := chi.RouteContext(req.Context())
		pathPrefix := strings.TrimSuffix(rctx.RoutePattern(), "/*")
		fs := http.StripPrefix(pathPrefix, http.FileServer(root))
		fs.ServeHTTP(w, req)
	})
}
