package service

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"pricebook/internal/types"
)

// Metrics records catalog activity.
type Metrics interface {
	RecordQuery(ctx context.Context, query, result string)
	RecordReload(ctx context.Context, catalogName string, versions int, err error)
	RecordPublish(ctx context.Context, catalogName string, err error)
	RecordLatency(ctx context.Context, endpoint string, d time.Duration)
}

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// Compile-time assertion that CloudWatchMetrics implements Metrics.
var _ Metrics = (*CloudWatchMetrics)(nil)

// CloudWatchMetrics emits catalog metrics to AWS CloudWatch.
//
// Metrics emitted:
//   - CatalogQuery: Dims {Query, Result} -- on every query outcome
//   - RuleNoMatch: Dims {Query} -- when a rule list has no matching case
//   - CatalogReload: Dims {Catalog, Result} -- on every reload attempt
//   - CatalogVersions: Dims {Catalog} -- version count after a successful reload
//   - CatalogPublished / CatalogRejected: Dims {Catalog} -- publisher outcomes
//   - APILatency: Dims {Endpoint} -- handler latency in milliseconds
type CloudWatchMetrics struct {
	client    CloudWatchClient
	namespace string
	logger    types.Logger
}

// NewCloudWatchMetrics creates a CloudWatchMetrics publishing to namespace.
// An empty namespace uses types.MetricNamespace.
func NewCloudWatchMetrics(client CloudWatchClient, namespace string, logger types.Logger) *CloudWatchMetrics {
	if namespace == "" {
		namespace = types.MetricNamespace
	}
	if logger == nil {
		logger = types.NewSlogLogger(nil)
	}
	return &CloudWatchMetrics{client: client, namespace: namespace, logger: logger}
}

// RecordQuery emits a CatalogQuery count, plus RuleNoMatch for unmatched rules.
func (m *CloudWatchMetrics) RecordQuery(ctx context.Context, query, result string) {
	data := []cwtypes.MetricDatum{
		count(types.MetricCatalogQuery, dim(types.DimQuery, query), dim(types.DimResult, result)),
	}
	if result == types.ResultNoMatch {
		data = append(data, count(types.MetricRuleNoMatch, dim(types.DimQuery, query)))
	}
	m.put(ctx, data, "query", query)
}

// RecordReload emits the reload outcome and, on success, the version count.
func (m *CloudWatchMetrics) RecordReload(ctx context.Context, catalogName string, versions int, err error) {
	result := types.ResultOK
	if err != nil {
		result = types.ResultError
	}
	data := []cwtypes.MetricDatum{
		count(types.MetricCatalogReload, dim(types.DimCatalog, catalogName), dim(types.DimResult, result)),
	}
	if err == nil {
		data = append(data, cwtypes.MetricDatum{
			MetricName: aws.String(types.MetricCatalogVersions),
			Value:      aws.Float64(float64(versions)),
			Unit:       cwtypes.StandardUnitCount,
			Dimensions: []cwtypes.Dimension{dim(types.DimCatalog, catalogName)},
		})
	}
	m.put(ctx, data, "catalog", catalogName)
}

// RecordPublish emits CatalogPublished or CatalogRejected.
func (m *CloudWatchMetrics) RecordPublish(ctx context.Context, catalogName string, err error) {
	name := types.MetricCatalogPublished
	if err != nil {
		name = types.MetricCatalogRejected
	}
	m.put(ctx, []cwtypes.MetricDatum{count(name, dim(types.DimCatalog, catalogName))}, "catalog", catalogName)
}

// RecordLatency emits APILatency in milliseconds.
func (m *CloudWatchMetrics) RecordLatency(ctx context.Context, endpoint string, d time.Duration) {
	m.put(ctx, []cwtypes.MetricDatum{{
		MetricName: aws.String(types.MetricAPILatency),
		Value:      aws.Float64(float64(d.Milliseconds())),
		Unit:       cwtypes.StandardUnitMilliseconds,
		Dimensions: []cwtypes.Dimension{dim(types.DimEndpoint, endpoint)},
	}}, "endpoint", endpoint)
}

func (m *CloudWatchMetrics) put(ctx context.Context, data []cwtypes.MetricDatum, attrs ...any) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(m.namespace),
		MetricData: data,
	}
	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.Error("failed to record metric",
			append([]any{"error", err.Error(), "metric", aws.ToString(data[0].MetricName)}, attrs...)...)
	}
}

func count(name string, dims ...cwtypes.Dimension) cwtypes.MetricDatum {
	return cwtypes.MetricDatum{
		MetricName: aws.String(name),
		Value:      aws.Float64(1),
		Unit:       cwtypes.StandardUnitCount,
		Dimensions: dims,
	}
}

func dim(name, value string) cwtypes.Dimension {
	return cwtypes.Dimension{Name: aws.String(name), Value: aws.String(value)}
}

// NoopMetrics discards everything. Used when metrics are disabled.
type NoopMetrics struct{}

func (NoopMetrics) RecordQuery(context.Context, string, string)          {}
func (NoopMetrics) RecordReload(context.Context, string, int, error)     {}
func (NoopMetrics) RecordPublish(context.Context, string, error)         {}
func (NoopMetrics) RecordLatency(context.Context, string, time.Duration) {}
