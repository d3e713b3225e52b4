package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/AlFontal/jpinfect/internal/config"
	"github.com/AlFontal/jpinfect/internal/exporter"
	"github.com/AlFontal/jpinfect/internal/fetch"
	"github.com/AlFontal/jpinfect/internal/importer"
	"github.com/AlFontal/jpinfect/internal/manifest"
	"github.com/AlFontal/jpinfect/internal/model"
	"github.com/AlFontal/jpinfect/internal/server"
	"github.com/AlFontal/jpinfect/internal/store"
	"github.com/AlFontal/jpinfect/internal/table"
	"github.com/AlFontal/jpinfect/internal/urlrule"
)

func usage() {
	fmt.Fprintf(os.Stderr, `jpinfect - infectious disease surveillance archive pipeline

Usage:
  jpinfect build [flags]   download the archive and build the unified table
  jpinfect serve [flags]   serve the query API over the unified table

Common flags:
  -config path             config file (default config.toml)
`)
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "build":
		err = runBuild(os.Args[2:])
	case "serve":
		err = runServe(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatal(err)
	}
}

func loadConfig(path string) (*config.AppConfig, error) {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func newCoordinator(cfg *config.AppConfig) (*importer.Coordinator, error) {
	client, err := fetch.NewClient(fetch.Options{
		CacheDir:           cfg.Fetch.CacheDir,
		RateLimitPerMinute: cfg.Fetch.RateLimitPerMinute,
		UserAgent:          cfg.Fetch.UserAgent,
		Timeout:            time.Duration(cfg.Fetch.TimeoutSeconds) * time.Second,
		Retries:            cfg.Fetch.Retries,
	})
	if err != nil {
		return nil, fmt.Errorf("create transport: %w", err)
	}
	policy, err := table.ParseDeltaPolicy(cfg.Import.DeltaPolicy)
	if err != nil {
		return nil, err
	}
	return importer.NewCoordinator(urlrule.NewEngine(), client, cfg.Import.Workers, policy), nil
}

func runBuild(args []string) error {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	configPath := fs.String("config", "", "config file")
	kindsFlag := fs.String("kinds", "", "comma-separated dataset kinds (sex,place,bullet,sentinel)")
	yearsFlag := fs.String("years", "", "comma-separated years or first-last ranges")
	weeksFlag := fs.String("weeks", "", "comma-separated weeks for the weekly CSV kinds")
	version := fs.String("version", "", "release version label")
	xlsx := fs.Bool("xlsx", false, "also export the unified table as a workbook")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	coordinator, err := newCoordinator(cfg)
	if err != nil {
		return err
	}

	opts := importer.Options{}
	for _, k := range splitList(*kindsFlag) {
		opts.Kinds = append(opts.Kinds, model.DatasetKind(k))
	}
	if opts.Years, err = parseYears(*yearsFlag); err != nil {
		return err
	}
	if opts.Weeks, err = parseInts(*weeksFlag); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Printf("starting import")
	var res *importer.Result
	for ev := range coordinator.Import(ctx, opts) {
		switch ev.Type {
		case "unit_done", "unit_skipped", "start":
			log.Printf("%s", ev.Message)
		case "error":
			return fmt.Errorf("import failed: %s", ev.Message)
		case "done":
			res = ev.Data.(*importer.Result)
		}
	}
	if res == nil {
		return fmt.Errorf("import produced no result")
	}
	log.Printf("imported %d files in %s (%d skipped)", len(res.Reports), res.Duration, len(res.Skipped))

	unified, err := coordinator.BuildUnified(res)
	if err != nil {
		return err
	}
	log.Printf("unified table: %d rows, %d warnings", len(unified.Rows), len(unified.Warnings))

	dataDir, err := config.EnsureDataDir(cfg)
	if err != nil {
		return err
	}

	// Persist for the query API.
	db, err := store.New(filepath.Join(dataDir, "jpinfect.db"))
	if err != nil {
		return err
	}
	defer db.Close()
	jobRow, err := db.CreateImportJob(res.JobID)
	if err != nil {
		return err
	}
	if err := db.ReplaceObservations(unified.Rows); err != nil {
		db.FinishImportJob(jobRow, len(res.Reports), 0, len(res.Skipped), "error", err.Error())
		return err
	}
	if err := db.FinishImportJob(jobRow, len(res.Reports), len(unified.Rows), len(res.Skipped), "done", ""); err != nil {
		return err
	}

	// Export the release artifact with its checksum manifest.
	releaseDir := filepath.Join(dataDir, "releases")
	csvPath := filepath.Join(releaseDir, "unified.csv")
	f, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("create release csv: %w", err)
	}
	if err := table.WriteCSV(f, table.FromRows(unified.Rows)); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	releaseFiles := []string{"unified.csv"}
	if *xlsx {
		if err := exporter.ExportFile(filepath.Join(releaseDir, "unified.xlsx"), unified.Rows, exporter.Options{}); err != nil {
			return err
		}
		releaseFiles = append(releaseFiles, "unified.xlsx")
	}

	if *version == "" {
		if year, week, ok := latestWeek(unified.Rows); ok {
			*version = fmt.Sprintf("%d.%02d", year, week)
		}
	}
	m, err := manifest.Build(releaseDir, *version, releaseFiles)
	if err != nil {
		return err
	}
	if err := m.Write(releaseDir); err != nil {
		return err
	}
	log.Printf("release written to %s", releaseDir)
	return nil
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "config file")
	port := fs.Int("port", 0, "listen port (overrides config)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}
	coordinator, err := newCoordinator(cfg)
	if err != nil {
		return err
	}

	srv, err := server.NewServer(cfg, coordinator)
	if err != nil {
		return err
	}
	defer srv.Close()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run(fmt.Sprintf(":%d", cfg.Server.Port))
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
		log.Println("shutting down")
		return nil
	}
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseYears accepts "2005" items and "1999-2023" ranges.
func parseYears(s string) ([]int, error) {
	var years []int
	for _, part := range splitList(s) {
		if first, last, ok := strings.Cut(part, "-"); ok {
			a, err := strconv.Atoi(first)
			if err != nil {
				return nil, fmt.Errorf("bad year range %q", part)
			}
			b, err := strconv.Atoi(last)
			if err != nil || b < a {
				return nil, fmt.Errorf("bad year range %q", part)
			}
			for y := a; y <= b; y++ {
				years = append(years, y)
			}
			continue
		}
		y, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("bad year %q", part)
		}
		years = append(years, y)
	}
	return years, nil
}

func parseInts(s string) ([]int, error) {
	var out []int
	for _, part := range splitList(s) {
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("bad number %q", part)
		}
		out = append(out, n)
	}
	return out, nil
}

func latestWeek(rows []model.NormalizedRow) (int, int, bool) {
	year, week := 0, 0
	for _, r := range rows {
		if r.Year > year || (r.Year == year && r.Week > week) {
			year, week = r.Year, r.Week
		}
	}
	return year, week, year > 0
}
