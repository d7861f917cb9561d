// Package main implements the tributary-backfill binary.
// It fetches enriched analytics events for one publisher over a time window,
// runs the preprocessing pipeline, and persists the cleaned rows locally.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/tributary-data/tributary/internal/app"
	"github.com/tributary-data/tributary/internal/config"
	"github.com/tributary-data/tributary/internal/fetch"
	"github.com/tributary-data/tributary/internal/formpayload"
	"github.com/tributary-data/tributary/internal/publisher"
	"github.com/tributary-data/tributary/internal/store"
	"github.com/tributary-data/tributary/internal/timewindow"
)

var version = "dev"

func main() {
	var (
		startDate   string
		days        int
		batchHours  int
		configPath  string
		spoolDir    string
		showVersion bool
	)

	flag.StringVar(&startDate, "start-date", "", "First day to backfill, YYYY-MM-DD UTC (default: yesterday)")
	flag.IntVar(&days, "days", 1, "Number of whole days to backfill from start-date")
	flag.IntVar(&batchHours, "batch-size", 0, "Hour buckets per batch (overrides config)")
	flag.StringVar(&configPath, "config", "", "Path to YAML or JSON config file")
	flag.StringVar(&spoolDir, "spool-dir", "", "Local download cache directory (overrides config)")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")
	flag.Usage = usage
	flag.Parse()

	if showVersion {
		fmt.Printf("tributary-backfill %s\n", version)
		return
	}

	if flag.NArg() != 1 {
		usage()
		os.Exit(2)
	}
	site := publisher.Name(flag.Arg(0))

	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := loadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if batchHours > 0 {
		cfg.Backfill.BatchSizeHours = batchHours
	}
	if spoolDir != "" {
		cfg.Fetch.SpoolDir = spoolDir
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("Failed to create directories: %v", err)
	}

	window, err := resolveWindow(startDate, days)
	if err != nil {
		log.Fatalf("Invalid time window: %v", err)
	}

	log.Printf("Starting tributary-backfill %s", version)
	log.Printf("Publisher: %s", site)
	log.Printf("Window: %s", window)
	log.Printf("Database: %s", cfg.DBPath)

	ctx := context.Background()

	s3Store, err := fetch.NewS3Store(ctx, fetch.S3Config{
		Region:       cfg.Fetch.Region,
		Endpoint:     cfg.Fetch.Endpoint,
		UsePathStyle: cfg.Fetch.UsePathStyle,
	})
	if err != nil {
		log.Fatalf("Failed to initialize object storage client: %v", err)
	}

	var spool *fetch.Spool
	if cfg.Fetch.SpoolDir != "" {
		spool, err = fetch.NewSpool(cfg.Fetch.SpoolDir)
		if err != nil {
			log.Fatalf("Failed to initialize download spool: %v", err)
		}
		log.Printf("Spooling downloads to %s", cfg.Fetch.SpoolDir)
	}

	eventStore, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open events database: %v", err)
	}
	defer eventStore.Close()

	logger := log.Default()
	fetcher := fetch.NewFetcher(s3Store, spool, cfg.Fetch.Concurrency, logger)
	registry, err := publisher.NewRegistry(formpayload.NewParser())
	if err != nil {
		log.Fatalf("Failed to build publisher registry: %v", err)
	}
	runner := app.NewRunner(registry, fetcher, eventStore, cfg.Backfill.BatchSizeHours, cfg.Fetch.BucketPrefix, logger)

	if err := runner.Run(ctx, site, window); err != nil {
		log.Fatalf("Backfill failed: %v", err)
	}
	log.Printf("Backfill complete")
}

// loadConfig layers file config (if given) under environment overrides.
func loadConfig(path string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if path != "" {
		loaded, err := config.LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	config.LoadFromEnv(cfg)
	cfg.Resolve()
	return cfg, nil
}

// resolveWindow turns the -start-date and -days flags into a window.
// An empty start date means yesterday at midnight UTC.
func resolveWindow(startDate string, days int) (timewindow.Window, error) {
	if days < 1 {
		return timewindow.Window{}, fmt.Errorf("days must be at least 1, got %d", days)
	}

	var start time.Time
	if startDate == "" {
		now := time.Now().UTC()
		start = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
	} else {
		parsed, err := time.Parse("2006-01-02", startDate)
		if err != nil {
			return timewindow.Window{}, fmt.Errorf("start-date must be YYYY-MM-DD: %w", err)
		}
		start = parsed.UTC()
	}
	return timewindow.FromDays(start, days), nil
}

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), "Usage: tributary-backfill [flags] <publisher>\n\n")
	fmt.Fprintf(flag.CommandLine.Output(), "Publishers: %v\n\nFlags:\n", publisher.KnownNames())
	flag.PrintDefaults()
}
