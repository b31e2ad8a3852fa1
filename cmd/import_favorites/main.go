package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"

	"github.com/meur/gamedex/internal/favorites"
	"github.com/meur/gamedex/internal/logging"
	"github.com/meur/gamedex/internal/models"
	"github.com/meur/gamedex/internal/storage"
)

func main() {
	dbPath := flag.String("db", "./gamedex.db", "SQLite database path")
	input := flag.String("in", "", "JSON array of games to add (- for stdin)")
	export := flag.String("export", "", "Write the favorites as JSON to this file (- for stdout)")
	replace := flag.Bool("replace", false, "Clear the collection before importing")
	flag.Parse()

	logging.Init(logging.Config{Level: "info", Format: "console"})

	if *input == "" && *export == "" {
		flag.Usage()
		os.Exit(2)
	}

	store, err := storage.New(*dbPath)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open database")
	}
	defer store.Close()

	ctx := context.Background()
	favs := favorites.New(store)
	favs.Load(ctx)
	if err := favs.LastError(); err != nil {
		logging.Fatal().Err(err).Msg("Existing favorites could not be read, refusing to continue")
	}

	if *input != "" {
		added, skipped, err := importGames(ctx, favs, *input, *replace)
		if err != nil {
			logging.Fatal().Err(err).Msg("Import failed")
		}
		if err := favs.LastError(); err != nil {
			logging.Fatal().Err(err).Msg("Favorites were not persisted")
		}
		logging.Info().Int("added", added).Int("skipped", skipped).Int("total", favs.Count()).Msg("Import complete")
	}

	if *export != "" {
		if err := exportGames(favs, *export); err != nil {
			logging.Fatal().Err(err).Msg("Export failed")
		}
		logging.Info().Int("count", favs.Count()).Str("to", *export).Msg("Export complete")
	}
}

func importGames(ctx context.Context, favs *favorites.Store, path string, replace bool) (added, skipped int, err error) {
	data, err := readInput(path)
	if err != nil {
		return 0, 0, err
	}

	var games []models.Game
	if err := json.Unmarshal(data, &games); err != nil {
		return 0, 0, fmt.Errorf("decode %s: %w", path, err)
	}

	if replace {
		favs.Clear(ctx)
	}
	for _, g := range games {
		if g.ID <= 0 || favs.IsFavorite(g.ID) {
			skipped++
			continue
		}
		if err := favs.Add(ctx, g); err != nil {
			return added, skipped, err
		}
		added++
	}
	return added, skipped, nil
}

func exportGames(favs *favorites.Store, path string) error {
	data, err := json.MarshalIndent(favs.All(), "", "  ")
	if err != nil {
		return err
	}
	if path == "-" {
		_, err = os.Stdout.Write(append(data, '\n'))
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}
