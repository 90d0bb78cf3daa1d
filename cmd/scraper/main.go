package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"resource-jobs/internal/app"
	"resource-jobs/internal/config"
	"resource-jobs/internal/database/migration"
	"resource-jobs/internal/usecase/ingest"
)

func main() {
	source := flag.String("source", "all", "source tag, all, clear or cleanup")
	clearSource := flag.String("clear_source", "", "with -source=clear, limit the clear to one source")
	timeout := flag.Duration("timeout", 30*time.Minute, "overall run timeout")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	c, err := app.NewContainer(cfg)
	if err != nil {
		log.Fatalf("failed to init container: %v", err)
	}
	defer func() {
		_ = c.Close()
	}()

	migCtx, migCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer migCancel()
	r := migration.Runner{Dir: "migrations"}
	if err := r.Run(migCtx, c.DB.SQLDB()); err != nil {
		log.Fatalf("migration failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	summary, err := c.Runner.Run(ctx, *source, *clearSource)
	if err != nil {
		if errors.Is(err, ingest.ErrUnknownSource) {
			log.Printf("%v", err)
			os.Exit(2)
		}
		log.Fatalf("run failed: %v", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		log.Fatalf("encode summary: %v", err)
	}
}
