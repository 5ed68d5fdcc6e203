package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"dreambot/internal/adapter/repo"
	"dreambot/internal/domain"
	"dreambot/internal/infra"
)

func main() {
	var (
		userFlag  string
		resetFlag bool
		hoursFlag int
	)

	flag.StringVar(&userFlag, "user", "", "user to inspect")
	flag.BoolVar(&resetFlag, "reset-private", false, "forget the user's recent private usage, lifting the private limit")
	flag.IntVar(&hoursFlag, "hours", 24, "window cleared by -reset-private")
	flag.Parse()

	_ = godotenv.Load()

	user := strings.TrimSpace(userFlag)
	if user == "" {
		exitWithError(errors.New("-user is required"))
	}
	if hoursFlag <= 0 {
		exitWithError(errors.New("-hours must be positive"))
	}

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		exitWithError(errors.New("DATABASE_URL is required"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		exitWithError(fmt.Errorf("failed to connect database: %w", err))
	}
	defer pool.Close()

	logger := infra.NewLogger("cli").With().Str("cmd", "usage").Logger()
	users := repo.NewUserRepository(infra.NewSQLRunner(pool, logger))

	if resetFlag {
		removed, err := users.ResetPrivateUsage(ctx, user, hoursFlag)
		if err != nil {
			exitWithError(err)
		}
		fmt.Printf("removed %d private usage events for %s\n", removed, user)
	}

	stats, err := users.GetStats(ctx, user)
	if errors.Is(err, domain.ErrNotFound) {
		fmt.Printf("no requests recorded for %s\n", user)
		return
	}
	if err != nil {
		exitWithError(err)
	}
	private, err := users.CountPrivateSince(ctx, user, 24)
	if err != nil {
		exitWithError(err)
	}

	fmt.Printf("user=%s\n", stats.User)
	fmt.Printf("batches=%d images=%d private_batches=%d\n", stats.Batches, stats.Images, stats.PrivateBatches)
	fmt.Printf("private_images_last_24h=%d\n", private)
	if stats.LastRequestAt != nil {
		fmt.Printf("last_request_at=%s\n", stats.LastRequestAt.UTC().Format(time.RFC3339))
	}
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
