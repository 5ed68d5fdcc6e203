package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"dreambot/internal/infra"
	"dreambot/internal/sqlinline"
)

func main() {
	var (
		dsnFlag     string
		dryRunFlag  bool
		timeoutFlag time.Duration
	)

	flag.StringVar(&dsnFlag, "dsn", "", "database URL (defaults to DATABASE_URL)")
	flag.BoolVar(&dryRunFlag, "dry-run", false, "print the schema instead of applying it")
	flag.DurationVar(&timeoutFlag, "timeout", 30*time.Second, "overall timeout")
	flag.Parse()

	_ = godotenv.Load()

	if dryRunFlag {
		fmt.Print(sqlinline.Schema)
		return
	}

	dsn := strings.TrimSpace(dsnFlag)
	if dsn == "" {
		dsn = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	}
	if dsn == "" {
		exitWithError(errors.New("DATABASE_URL or -dsn is required"))
	}

	logger := infra.NewLogger("cli").With().Str("cmd", "migrate").Logger()

	ctx, cancel := context.WithTimeout(context.Background(), timeoutFlag)
	defer cancel()

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		exitWithError(fmt.Errorf("open database: %w", err))
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		exitWithError(fmt.Errorf("ping database: %w", err))
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		exitWithError(fmt.Errorf("begin transaction: %w", err))
	}
	if _, err := tx.ExecContext(ctx, sqlinline.Schema); err != nil {
		_ = tx.Rollback()
		exitWithError(fmt.Errorf("apply schema: %w", err))
	}
	if err := tx.Commit(); err != nil {
		exitWithError(fmt.Errorf("commit schema: %w", err))
	}

	logger.Info().Msg("schema applied")
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, "migrate:", err)
	os.Exit(1)
}
