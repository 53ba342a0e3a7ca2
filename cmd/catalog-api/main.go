// Package main is the entry point for the catalog API server.
//
// It loads configuration, selects the catalog definition source, performs the
// initial catalog load, starts the reload consumer when a queue is configured
// and serves the read-only HTTP API until SIGINT or SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"

	"pricebook/internal/api/handlers"
	"pricebook/internal/catalog"
	"pricebook/internal/config"
	"pricebook/internal/core"
	"pricebook/internal/db"
	"pricebook/internal/loader"
	"pricebook/internal/queue"
	"pricebook/internal/service"
	"pricebook/internal/types"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var provider config.SecretProvider
	if os.Getenv("APP_ENV") != "local" {
		provider = config.NewSSMProvider(os.Getenv("AWS_REGION"))
	}
	cfg, err := config.LoadConfig(provider)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := cfg.NewLogger(os.Stdout)
	logger.Info("catalog API starting",
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
		"catalog_source", cfg.Catalog.Source,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := wire(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.close()

	if err := deps.service.Reload(ctx); err != nil {
		return fmt.Errorf("initial catalog load: %w", err)
	}

	if deps.consumer != nil {
		go deps.consumer.Run(ctx)
	}

	srv, err := newServer(cfg, logger, deps)
	if err != nil {
		return err
	}
	return serve(ctx, srv, cfg, logger)
}

// dependencies are the long-lived components shared by the server and the
// reload consumer.
type dependencies struct {
	service  *service.CatalogService
	metrics  service.Metrics
	consumer *queue.ReloadConsumer
	repo     *db.CatalogVersionRepo
	pool     *pgxpool.Pool
}

func (d *dependencies) close() {
	if d.pool != nil {
		d.pool.Close()
	}
}

func wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*dependencies, error) {
	deps := &dependencies{metrics: service.NoopMetrics{}}

	var (
		s3Client  loader.S3API
		sqsClient *sqs.Client
	)
	if cfg.Catalog.Source == config.SourceS3 || cfg.AWS.ReloadQueueURL != "" || cfg.Observability.EnableMetrics {
		awsCfg, err := cfg.AWS.LoadAWS(ctx)
		if err != nil {
			return nil, fmt.Errorf("loading AWS configuration: %w", err)
		}
		s3Client = s3.NewFromConfig(awsCfg)
		sqsClient = sqs.NewFromConfig(awsCfg)
		if cfg.Observability.EnableMetrics {
			deps.metrics = service.NewCloudWatchMetrics(cloudwatch.NewFromConfig(awsCfg),
				cfg.Observability.MetricNamespace, types.NewSlogLogger(logger))
		}
	}

	if url := cfg.Database.URL.Unmask(); url != "" {
		pool, err := db.Connect(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("connecting to database: %w", err)
		}
		deps.pool = pool
		deps.repo = db.NewCatalogVersionRepo(pool, logger)
	}

	source, err := newSource(cfg, s3Client, deps.repo, logger)
	if err != nil {
		deps.close()
		return nil, err
	}

	early := catalog.WithEarlyDates(cfg.Catalog.AllowEarlyDates)
	svc, err := service.NewCatalogService(
		loader.New(source, logger, early),
		cfg.Catalog.CacheSize,
		logger,
		service.WithMetrics(deps.metrics),
		service.WithCatalogOptions(early),
	)
	if err != nil {
		deps.close()
		return nil, fmt.Errorf("creating catalog service: %w", err)
	}
	deps.service = svc

	if cfg.AWS.ReloadQueueURL != "" {
		deps.consumer = queue.NewReloadConsumer(sqsClient, cfg.AWS.ReloadQueueURL, svc, cfg.AWS.ReloadPollWait, logger)
	}
	return deps, nil
}

// newSource selects the definition source named by CATALOG_SOURCE.
func newSource(cfg *config.Config, s3Client loader.S3API, repo *db.CatalogVersionRepo, logger *slog.Logger) (loader.Source, error) {
	switch cfg.Catalog.Source {
	case config.SourceDir:
		return loader.DirSource{Dir: cfg.Catalog.Dir}, nil
	case config.SourceS3:
		if s3Client == nil {
			return nil, fmt.Errorf("catalog source s3 requires an S3 client")
		}
		return loader.NewS3Source(s3Client, cfg.Catalog.Bucket, cfg.Catalog.Prefix, logger), nil
	case config.SourceDB:
		if repo == nil {
			return nil, fmt.Errorf("catalog source db requires DATABASE_URL")
		}
		return loader.StoreSource{Store: repo}, nil
	default:
		return nil, fmt.Errorf("unknown catalog source %q", cfg.Catalog.Source)
	}
}

// pinger is satisfied by *db.CatalogVersionRepo.
type pinger interface {
	Ping(ctx context.Context) error
}

// healthProbes reports the catalog as healthy once a version is loaded, and
// the database when one is configured.
func healthProbes(svc *service.CatalogService, database pinger) []core.HealthProbe {
	probes := []core.HealthProbe{
		core.ProbeFunc{ProbeName: "catalog", Fn: func(context.Context) error {
			if !svc.Ready() {
				return errors.New("catalog not loaded")
			}
			return nil
		}},
	}
	if database != nil {
		probes = append(probes, core.ProbeFunc{ProbeName: "database", Fn: database.Ping})
	}
	return probes
}

func newServer(cfg *config.Config, logger *slog.Logger, deps *dependencies) (*core.Server, error) {
	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("creating server: %w", err)
	}

	srv.Metrics = deps.metrics

	var database pinger
	if deps.repo != nil {
		database = deps.repo
	}
	srv.HealthProbes = healthProbes(deps.service, database)

	catalogHandler := handlers.NewCatalogHandler(deps.service, srv.Validator, logger)
	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars, catalogHandler.RegisterRoutes)

	srv.MountRoutes()
	return srv, nil
}

// serve runs the HTTP server until ctx is cancelled, then drains it.
func serve(ctx context.Context, srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}
