package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/platinummonkey/sims/pkg/api"
	"github.com/platinummonkey/sims/pkg/auth"
	"github.com/platinummonkey/sims/pkg/config"
	"github.com/platinummonkey/sims/pkg/directory"
	"github.com/platinummonkey/sims/pkg/importer"
	"github.com/platinummonkey/sims/pkg/objectstore"
	"github.com/platinummonkey/sims/pkg/observability"
	"github.com/platinummonkey/sims/pkg/rbac"
	"github.com/platinummonkey/sims/pkg/records"
	"github.com/platinummonkey/sims/pkg/smartsheet"
)

var (
	migrate = flag.Bool("migrate", false, "Create missing tables before serving")
	version = "dev"
)

func main() {
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("SIMS server exited with error")
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *observability.Logger) error {
	ctx := context.Background()

	providers, err := observability.InitOTel(ctx, cfg.OTel(), logger)
	if err != nil {
		return err
	}

	db, err := openDB(ctx, cfg.Database)
	if err != nil {
		return err
	}
	if *migrate {
		if err := createTables(ctx, db, cfg.Database); err != nil {
			return err
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
	}

	health := observability.NewHealthChecker(version)
	health.AddDependency("postgres", true, observability.DatabaseCheck(db))

	roles := rbac.NewPostgresStore(db, rbac.Tables{
		Assignments: cfg.Database.AssignmentsTable,
		Permissions: cfg.Database.PermissionsTable,
	})
	resolver := rbac.NewResolver(roles, rbac.ResolverConfig{
		CacheSize: cfg.Cache.AccessSize,
		TTL:       cfg.Cache.AccessTTL,
		Metrics:   metrics,
	})
	store := records.NewPostgresStore(db, cfg.Database.RecordsTable)

	var cache directory.Cache = directory.NewMemoryCache(cfg.Cache.DirectoryTTL)
	var redisClient *redis.Client
	if cfg.Cache.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.Cache.RedisURL)
		if err != nil {
			return fmt.Errorf("invalid redis URL: %w", err)
		}
		redisClient = redis.NewClient(opts)
		cache = directory.NewRedisCache(redisClient, cfg.Cache.RedisKeyPrefix, cfg.Cache.DirectoryTTL)
		health.AddDependency("redis", false, observability.RedisCheck(redisClient))
	}
	dir := directory.New(roles, directory.Options{
		Cache:   cache,
		Metrics: metrics,
		Logger:  logger.Entry(),
	})

	var verifier auth.TokenVerifier
	var login auth.LoginFlow
	if cfg.Auth.OIDC.IssuerURL != "" {
		oidcVerifier, err := auth.NewOIDCVerifier(ctx, cfg.Auth.OIDC)
		if err != nil {
			return err
		}
		verifier = oidcVerifier
		if cfg.Auth.OIDC.RedirectURL != "" {
			login = oidcVerifier
		}
	} else {
		logger.Warn("No OIDC issuer configured; bearer tokens will be rejected")
	}

	deps := api.Deps{
		Records:      store,
		Resolver:     resolver,
		Verifier:     verifier,
		Directory:    dir,
		Login:        login,
		AuthOptional: cfg.Auth.Optional,
		Logger:       logger,
		Metrics:      metrics,
	}

	if cfg.Smartsheet.AccessToken != "" {
		imp, objects, err := newImporter(ctx, cfg, db, store, metrics, logger)
		if err != nil {
			return err
		}
		deps.Import = imp
		if objects != nil {
			health.AddDependency("s3", false, objects.HealthCheck)
		}
	}

	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      api.NewServer(deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	healthServer := &http.Server{
		Addr:              cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler:           api.NewHealthRouter(health, registry),
		ReadHeaderTimeout: 5 * time.Second,
	}

	shutdown := observability.NewShutdownManager(logger, server, cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return observability.ShutdownOTel(ctx, providers, logger)
	})
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return db.Close()
	})
	if redisClient != nil {
		shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
			return redisClient.Close()
		})
	}
	shutdown.RegisterShutdownFunc(healthServer.Shutdown)

	statsCtx, stopStats := context.WithCancel(ctx)
	defer stopStats()
	if metrics != nil {
		go reportDBStats(statsCtx, db, metrics)
	}

	serveErr := make(chan error, 2)
	go func() {
		logger.Infof("Health server listening on %s", healthServer.Addr)
		if err := healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- fmt.Errorf("health server: %w", err)
		}
	}()
	go func() {
		logger.Infof("SIMS API listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- fmt.Errorf("api server: %w", err)
		}
	}()

	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		if err := <-serveErr; err != nil {
			logger.WithError(err).Error("Server failed")
			cancel()
		}
	}()

	return shutdown.Wait(waitCtx)
}

func openDB(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

func createTables(ctx context.Context, db *sql.DB, cfg config.DatabaseConfig) error {
	stmts := rbac.Schema(rbac.Tables{Assignments: cfg.AssignmentsTable, Permissions: cfg.PermissionsTable})
	stmts = append(stmts, records.Schema(cfg.RecordsTable), importer.StagingSchema(cfg.StagingTable))
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create tables: %w", err)
		}
	}
	return nil
}

func newImporter(ctx context.Context, cfg *config.Config, db *sql.DB, store records.Store, metrics *observability.Metrics, logger *observability.Logger) (*importer.Importer, *objectstore.S3Store, error) {
	registry, err := importer.LoadRegistry(cfg.Import.RegistryPath)
	if err != nil {
		return nil, nil, err
	}
	client, err := smartsheet.NewClient(cfg.Smartsheet, logger.Entry())
	if err != nil {
		return nil, nil, err
	}

	icfg := importer.Config{
		Concurrency: cfg.Import.Concurrency,
		Logger:      logger.Entry(),
	}
	if metrics != nil {
		icfg.Metrics = metrics
	}

	var objects *objectstore.S3Store
	if cfg.ObjectsEnabled() {
		objects, err = objectstore.NewS3Store(ctx, cfg.Objects)
		if err != nil {
			return nil, nil, err
		}
		icfg.Objects = objects
	}

	staging := importer.NewPostgresStagingStore(db, cfg.Database.StagingTable)
	return importer.New(registry, client, staging, store, icfg), objects, nil
}

func reportDBStats(ctx context.Context, db *sql.DB, metrics *observability.Metrics) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.UpdateDBStats(db.Stats())
		}
	}
}
