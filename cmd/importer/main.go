package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/careseek/importer/internal/config"
	"github.com/careseek/importer/internal/database"
	"github.com/careseek/importer/internal/geocode"
	"github.com/careseek/importer/internal/importer"
	"github.com/careseek/importer/internal/migrations"
	"github.com/careseek/importer/internal/models"
	"github.com/careseek/importer/internal/ratelimit"
	"github.com/careseek/importer/internal/repositories"
	"github.com/careseek/importer/internal/sources/openapi"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	source := flag.String("source", config.SourceAPI, "data source: api or file")
	filePath := flag.String("file", "", "batch file path (overrides file.path in config)")
	startUnit := flag.Int("start-unit", 0, "unit to resume from (page or row batch, 1-based)")
	maxUnits := flag.Int("max-units", 0, "cap on units processed this run (0 = no cap)")
	geocodeOn := flag.Bool("geocode", false, "enable coordinate enrichment")
	verbose := flag.Bool("verbose", false, "debug logging")
	flag.Parse()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	if *verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if *filePath != "" {
		cfg.File.Path = *filePath
	}
	if *startUnit > 0 {
		cfg.Import.StartUnit = *startUnit
	}
	if *maxUnits > 0 {
		cfg.Import.MaxUnits = *maxUnits
	}
	if *geocodeOn {
		cfg.Import.Geocode = true
	}
	if err := cfg.Validate(*source); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewDB(cfg.Database.DSN, cfg.Database.Debug)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	if err := migrations.RunMigrations(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	repo := repositories.NewFacilityRepo(db)

	var pages importer.PageSource
	if *source == config.SourceAPI {
		limitCfg, err := cfg.RateLimits.Get("openapi")
		if err != nil {
			limitCfg = ratelimit.DefaultConfig()
		}
		pages = openapi.NewClient(cfg.Source, ratelimit.New(limitCfg))
	}

	var geocoder importer.Geocoder
	if cfg.Import.Geocode {
		if geoCfg, err := cfg.RateLimits.Get("geocode"); err == nil && cfg.Geocode.MinDelay == 0 {
			cfg.Geocode.MinDelay = geoCfg.FixedDelay
		}
		geocoder = geocode.NewClient(cfg.Geocode)
	}

	orch := importer.New(repo, pages, geocoder, importer.Options{
		StartUnit:      cfg.Import.StartUnit,
		MaxUnits:       cfg.Import.MaxUnits,
		PageSize:       cfg.Import.PageSize,
		BatchSize:      cfg.File.BatchSize,
		Geocode:        cfg.Import.Geocode,
		AbortThreshold: cfg.Import.AbortThreshold,
		Encodings:      cfg.File.Encodings,
	})

	var raw []byte
	if *source == config.SourceFile {
		raw, err = os.ReadFile(cfg.File.Path)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.File.Path).Msg("failed to read batch file")
		}
	}

	run := &models.ImportRun{
		RunID:     fmt.Sprintf("%s-%d", *source, time.Now().Unix()),
		Source:    *source,
		StartTime: time.Now(),
		Status:    models.RunStatusRunning,
	}
	if err := repo.SaveRun(ctx, run); err != nil {
		log.Warn().Err(err).Msg("failed to record run start")
	}

	var state *importer.RunState
	var runErr error
	switch *source {
	case config.SourceAPI:
		state, runErr = orch.RunAPI(ctx)
	case config.SourceFile:
		state, runErr = orch.RunFile(ctx, raw)
	}

	finalizeRun(run, state, runErr)
	// Run metadata is best effort; the summary below is authoritative.
	if err := repo.SaveRun(context.Background(), run); err != nil {
		log.Warn().Err(err).Msg("failed to record run outcome")
	}

	if state != nil {
		printSummary(state)
	}
	if runErr != nil {
		log.Error().Err(runErr).Msg("import did not complete")
		os.Exit(1)
	}
}

func finalizeRun(run *models.ImportRun, state *importer.RunState, runErr error) {
	now := time.Now()
	run.EndTime = &now
	run.Status = models.RunStatusDone
	if runErr != nil {
		run.Status = models.RunStatusAborted
	}
	if state != nil {
		run.SavedCount = state.SavedCount
		run.UpdatedCount = state.UpdatedCount
		run.SkippedCount = state.SkippedCount
		run.FailedUnits = state.FailedUnits
	}
}

func printSummary(state *importer.RunState) {
	fmt.Printf("units processed: %d/%d\n", state.UnitsProcessed, state.TotalUnits)
	fmt.Printf("saved:   %d\n", state.SavedCount)
	fmt.Printf("updated: %d\n", state.UpdatedCount)
	fmt.Printf("skipped: %d\n", state.SkippedCount)
	if len(state.FailedUnits) > 0 {
		fmt.Printf("failed units: %v\n", state.FailedUnits)
	}
	if state.ResumeFrom > 0 {
		fmt.Printf("resume with -start-unit=%d\n", state.ResumeFrom)
	}
}
