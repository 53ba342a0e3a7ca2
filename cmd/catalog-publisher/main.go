// Package main is the entrypoint for the catalog publisher Lambda function.
//
// The publisher is triggered by S3 ObjectCreated events on the catalog
// bucket. Each uploaded definition is validated against the published
// history, stored in Postgres and announced on the reload queue.
//
// This file handles dependency wiring (cold start) and delegates all
// business logic to the internal/publisher package.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"pricebook/internal/config"
	"pricebook/internal/db"
	"pricebook/internal/loader"
	"pricebook/internal/publisher"
	"pricebook/internal/queue"
	"pricebook/internal/service"
	"pricebook/internal/types"
)

// settings are read from the Lambda environment.
type settings struct {
	bucket          string
	prefix          string
	databaseURL     string
	reloadQueueURL  string
	metricNamespace string
	enableMetrics   bool
	aws             config.AWSConfig
}

func readSettings(getenv func(string) string) (settings, error) {
	s := settings{
		bucket:          getenv("CATALOG_BUCKET"),
		prefix:          getenv("CATALOG_PREFIX"),
		databaseURL:     getenv("DATABASE_URL"),
		reloadQueueURL:  getenv("RELOAD_QUEUE_URL"),
		metricNamespace: getenv("METRIC_NAMESPACE"),
		aws: config.AWSConfig{
			Region:      getenv("AWS_REGION"),
			EndpointURL: getenv("AWS_ENDPOINT_URL"),
		},
	}
	if s.metricNamespace == "" {
		s.metricNamespace = types.MetricNamespace
	}
	if v := getenv("ENABLE_METRICS"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return s, fmt.Errorf("ENABLE_METRICS: %w", err)
		}
		s.enableMetrics = enabled
	}

	required := []struct{ name, value string }{
		{"CATALOG_BUCKET", s.bucket},
		{"DATABASE_URL", s.databaseURL},
		{"RELOAD_QUEUE_URL", s.reloadQueueURL},
	}
	for _, r := range required {
		if r.value == "" {
			return s, fmt.Errorf("%s is required", r.name)
		}
	}
	return s, nil
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: config.ParseLevel(os.Getenv("LOG_LEVEL")),
	}))

	logger.Info("catalog publisher initializing (cold start)")

	if err := config.ResolveSecrets(config.NewSSMProvider(os.Getenv("AWS_REGION"))); err != nil {
		logger.Error("failed to resolve secrets", "error", err)
		os.Exit(1)
	}

	s, err := readSettings(os.Getenv)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	awsCfg, err := s.aws.LoadAWS(ctx)
	if err != nil {
		logger.Error("failed to load AWS SDK config", "error", err)
		os.Exit(1)
	}

	// The pool outlives the invocation; Lambda reuses it across warm starts.
	pool, err := db.Connect(ctx, s.databaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	var metrics publisher.MetricPublisher = service.NoopMetrics{}
	if s.enableMetrics {
		metrics = service.NewCloudWatchMetrics(cloudwatch.NewFromConfig(awsCfg), s.metricNamespace, types.NewSlogLogger(logger))
	}

	p := &publisher.Publisher{
		Config:   publisher.Config{Bucket: s.bucket},
		Log:      logger,
		Source:   loader.NewS3Source(s3.NewFromConfig(awsCfg), s.bucket, s.prefix, logger),
		Store:    db.NewCatalogVersionRepo(pool, logger),
		Notifier: queue.NewReloadPublisher(sqs.NewFromConfig(awsCfg), s.reloadQueueURL, logger),
		Metrics:  metrics,
	}

	logger.Info("catalog publisher initialized",
		"bucket", s.bucket,
		"reload_queue", s.reloadQueueURL,
		"metrics_enabled", s.enableMetrics,
	)

	// Local mode: read an S3 event from stdin instead of starting the Lambda runtime.
	if os.Getenv("APP_ENV") == "local" {
		if err := runLocal(ctx, p, os.Stdin); err != nil {
			logger.Error("handler execution failed", "error", err)
			os.Exit(1)
		}
		logger.Info("handler execution completed successfully")
		return
	}

	lambda.Start(p.Handler)
}

func runLocal(ctx context.Context, p *publisher.Publisher, r io.Reader) error {
	payload, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("reading stdin: %w", err)
	}
	if len(payload) == 0 {
		return fmt.Errorf("no event received on stdin")
	}
	var event events.S3Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("decoding S3 event: %w", err)
	}
	return p.Handler(ctx, event)
}
