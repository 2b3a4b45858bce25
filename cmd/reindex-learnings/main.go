// reindex-learnings enqueues River reindex jobs for learning records that have no vector id.
// Workers in the API process run the jobs; run this after an index outage or a backend switch.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"

	"github.com/chatpanel/learning-hub/internal/jobs"
	"github.com/chatpanel/learning-hub/internal/repository"
	"github.com/chatpanel/learning-hub/pkg/database"
)

const (
	defaultReindexMaxAttempts = 5
	exitSuccess               = 0
	exitFailure               = 1
)

func main() {
	os.Exit(run())
}

func run() int {
	// Load .env for consistency with the API server (config.Load does the same).
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env file", "error", err)
	}

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		slog.Error("DATABASE_URL is required")

		return exitFailure
	}

	maxAttempts := getEnvAsInt("REINDEX_MAX_ATTEMPTS", defaultReindexMaxAttempts)
	if maxAttempts <= 0 {
		maxAttempts = defaultReindexMaxAttempts
	}

	ctx := context.Background()

	db, err := database.NewPostgresPool(ctx, databaseURL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)

		return exitFailure
	}
	defer db.Close()

	// Insert-only client: no queues are worked here.
	riverClient, err := river.NewClient(riverpgxv5.New(db), &river.Config{})
	if err != nil {
		slog.Error("Failed to create River client", "error", err)

		return exitFailure
	}

	reindexer := jobs.NewReindexer(
		repository.NewLearningRecordsRepository(db),
		jobs.NewRiverJobInserter(riverClient, maxAttempts),
		nil,
		slog.Default(),
	)

	stats, err := reindexer.EnqueueMissing(ctx)
	if err != nil {
		slog.Error("Reindex failed", "error", err)

		return exitFailure
	}

	slog.Info("Reindex enqueue complete", "found", stats.Found, "enqueued", stats.Enqueued, "errors", stats.Errors)

	fmt.Printf("Enqueued %d of %d reindex job(s).\n", stats.Enqueued, stats.Found)

	if stats.Errors > 0 {
		return exitFailure
	}

	return exitSuccess
}

func getEnvAsInt(key string, defaultValue int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultValue
	}

	n, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}

	return n
}
