package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/platinummonkey/sims/pkg/config"
	"github.com/platinummonkey/sims/pkg/importer"
	"github.com/platinummonkey/sims/pkg/objectstore"
	"github.com/platinummonkey/sims/pkg/observability"
	"github.com/platinummonkey/sims/pkg/records"
	"github.com/platinummonkey/sims/pkg/smartsheet"
)

var (
	schedule       = flag.String("schedule", "", "Cron schedule for the import (default: SIMS_IMPORT_SCHEDULE)")
	sheetTypes     = flag.String("sheet-types", "", "Comma-separated sheet types to import (default: SIMS_IMPORT_SHEET_TYPES, else every registered type)")
	skipDuplicates = flag.Bool("skip-duplicates", false, "Leave records that already exist untouched")
	runOnce        = flag.Bool("run-once", false, "Run the import once and exit")
)

func main() {
	flag.Parse()

	cfg := config.Load()
	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	if err := cfg.ValidateImport(); err != nil {
		logger.WithError(err).Error("Invalid import configuration")
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("Import job failed")
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *observability.Logger) error {
	ctx := context.Background()

	providers, err := observability.InitOTel(ctx, cfg.OTel(), logger)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = observability.ShutdownOTel(shutdownCtx, providers, logger)
	}()

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	registry, err := importer.LoadRegistry(cfg.Import.RegistryPath)
	if err != nil {
		return err
	}
	client, err := smartsheet.NewClient(cfg.Smartsheet, logger.Entry())
	if err != nil {
		return err
	}

	icfg := importer.Config{
		Concurrency: cfg.Import.Concurrency,
		Logger:      logger.Entry(),
	}
	if providers != nil {
		otelMetrics, err := observability.NewOTelMetrics(providers.MeterProvider)
		if err != nil {
			return err
		}
		icfg.Metrics = otelMetrics
	}
	if cfg.ObjectsEnabled() {
		objects, err := objectstore.NewS3Store(ctx, cfg.Objects)
		if err != nil {
			return err
		}
		icfg.Objects = objects
	} else {
		logger.Warn("No S3 bucket configured; attachments will not be copied")
	}

	imp := importer.New(
		registry,
		client,
		importer.NewPostgresStagingStore(db, cfg.Database.StagingTable),
		records.NewPostgresStore(db, cfg.Database.RecordsTable),
		icfg,
	)

	types := cfg.Import.SheetTypes
	if *sheetTypes != "" {
		types = splitList(*sheetTypes)
	}
	if len(types) == 0 {
		types = registry.Types()
	}
	cronSchedule := cfg.Import.Schedule
	if *schedule != "" {
		cronSchedule = *schedule
	}
	opts := importer.CopyOptions{SkipDuplicates: cfg.Import.SkipDuplicates || *skipDuplicates}

	scheduler, err := importer.NewScheduler(imp, cronSchedule, types, opts, logger.Entry())
	if err != nil {
		return err
	}

	if *runOnce {
		results, err := scheduler.RunOnce(ctx)
		for _, res := range results {
			logSummary(logger, res)
		}
		return err
	}

	scheduler.Start()
	logger.WithFields(map[string]interface{}{
		"schedule":    cronSchedule,
		"sheet_types": types,
	}).Info("SIMS import scheduler started")

	shutdown := observability.NewShutdownManager(logger, nil, cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc(scheduler.Stop)
	return shutdown.Wait(ctx)
}

func logSummary(logger *observability.Logger, res *importer.RunResult) {
	fields := map[string]interface{}{"sheet_type": res.SheetType}
	if res.Stage != nil {
		fields["staged"] = res.Stage.Copied
		fields["stage_errors"] = res.Stage.Errors
	}
	if res.Copy != nil {
		fields["copied"] = res.Copy.Copied
		fields["skipped"] = res.Copy.Skipped
		fields["copy_errors"] = res.Copy.Errors
		for _, msg := range res.Copy.ErrorMessages {
			logger.WithField("sheet_type", res.SheetType).Warn(msg)
		}
	}
	logger.WithFields(fields).Info("Import summary")
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
