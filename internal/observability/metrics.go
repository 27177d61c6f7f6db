package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MeterName is the instrumentation scope for the server's custom instruments.
const MeterName = "graphql-app-example"

// Pool acquisition outcomes recorded on db.pool.acquisitions.total.
const (
	AcquireOutcomeOK        = "ok"
	AcquireOutcomeExhausted = "exhausted"
	AcquireOutcomeError     = "error"
)

// GraphQLMetrics holds custom metrics for GraphQL operations
type GraphQLMetrics struct {
	requestDuration metric.Float64Histogram
	requestCounter  metric.Int64Counter
	errorCounter    metric.Int64Counter
	activeRequests  metric.Int64UpDownCounter
	queryDepth      metric.Int64Histogram

	poolAcquisitions   metric.Int64Counter
	poolAcquireLatency metric.Float64Histogram

	eagerBatches      metric.Int64Counter
	eagerBatchKeys    metric.Int64Histogram
	eagerQueriesSaved metric.Int64Counter

	paginationPages metric.Int64Counter
}

// InitGraphQLMetrics creates the GraphQL instruments on the global meter provider.
func InitGraphQLMetrics() (*GraphQLMetrics, error) {
	return NewGraphQLMetrics(otel.Meter(MeterName))
}

// NewGraphQLMetrics creates the GraphQL instruments on the given meter.
func NewGraphQLMetrics(meter metric.Meter) (*GraphQLMetrics, error) {
	m := &GraphQLMetrics{}
	var err error

	if m.requestDuration, err = meter.Float64Histogram(
		"graphql.request.duration",
		metric.WithDescription("Duration of GraphQL requests in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, fmt.Errorf("failed to create request duration histogram: %w", err)
	}

	if m.requestCounter, err = meter.Int64Counter(
		"graphql.requests.total",
		metric.WithDescription("Total number of GraphQL requests"),
	); err != nil {
		return nil, fmt.Errorf("failed to create request counter: %w", err)
	}

	if m.errorCounter, err = meter.Int64Counter(
		"graphql.errors.total",
		metric.WithDescription("Total number of GraphQL requests that returned errors"),
	); err != nil {
		return nil, fmt.Errorf("failed to create error counter: %w", err)
	}

	if m.activeRequests, err = meter.Int64UpDownCounter(
		"graphql.requests.active",
		metric.WithDescription("Number of active GraphQL requests"),
	); err != nil {
		return nil, fmt.Errorf("failed to create active requests counter: %w", err)
	}

	if m.queryDepth, err = meter.Int64Histogram(
		"graphql.query.depth",
		metric.WithDescription("Selection depth of GraphQL operations"),
	); err != nil {
		return nil, fmt.Errorf("failed to create query depth histogram: %w", err)
	}

	if m.poolAcquisitions, err = meter.Int64Counter(
		"db.pool.acquisitions.total",
		metric.WithDescription("Request connection acquisitions by outcome"),
	); err != nil {
		return nil, fmt.Errorf("failed to create pool acquisition counter: %w", err)
	}

	if m.poolAcquireLatency, err = meter.Float64Histogram(
		"db.pool.acquire.duration",
		metric.WithDescription("Time spent waiting for a pooled connection in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, fmt.Errorf("failed to create pool acquire duration histogram: %w", err)
	}

	if m.eagerBatches, err = meter.Int64Counter(
		"eager.batches.total",
		metric.WithDescription("Number of batched relation queries issued"),
	); err != nil {
		return nil, fmt.Errorf("failed to create eager batch counter: %w", err)
	}

	if m.eagerBatchKeys, err = meter.Int64Histogram(
		"eager.batch.keys",
		metric.WithDescription("Number of distinct keys in a batched relation query"),
	); err != nil {
		return nil, fmt.Errorf("failed to create eager batch keys histogram: %w", err)
	}

	if m.eagerQueriesSaved, err = meter.Int64Counter(
		"eager.queries.saved",
		metric.WithDescription("Number of per-row queries avoided by batching"),
	); err != nil {
		return nil, fmt.Errorf("failed to create eager queries saved counter: %w", err)
	}

	if m.paginationPages, err = meter.Int64Counter(
		"pagination.pages.total",
		metric.WithDescription("Number of connection pages served"),
	); err != nil {
		return nil, fmt.Errorf("failed to create pagination page counter: %w", err)
	}

	return m, nil
}

// RecordRequest records a GraphQL request with its duration and outcome
func (m *GraphQLMetrics) RecordRequest(ctx context.Context, duration time.Duration, hasErrors bool, operationType string) {
	attrs := []attribute.KeyValue{
		attribute.String("operation_type", operationType),
		attribute.Bool("has_errors", hasErrors),
	}
	m.requestDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
	m.requestCounter.Add(ctx, 1, metric.WithAttributes(attrs...))

	if hasErrors {
		m.errorCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("operation_type", operationType),
		))
	}
}

// RecordQueryDepth records the depth of a GraphQL query
func (m *GraphQLMetrics) RecordQueryDepth(ctx context.Context, depth int64, operationType string) {
	m.queryDepth.Record(ctx, depth, metric.WithAttributes(
		attribute.String("operation_type", operationType),
	))
}

// RecordPoolAcquire records one connection acquisition attempt.
func (m *GraphQLMetrics) RecordPoolAcquire(ctx context.Context, wait time.Duration, outcome string) {
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.poolAcquisitions.Add(ctx, 1, attrs)
	m.poolAcquireLatency.Record(ctx, float64(wait.Microseconds())/1000, attrs)
}

// RecordEagerBatch records one batched relation query and the per-row
// queries it replaced.
func (m *GraphQLMetrics) RecordEagerBatch(ctx context.Context, relation string, keys int, saved int64) {
	attrs := metric.WithAttributes(attribute.String("relation", relation))
	m.eagerBatches.Add(ctx, 1, attrs)
	m.eagerBatchKeys.Record(ctx, int64(keys), attrs)
	if saved > 0 {
		m.eagerQueriesSaved.Add(ctx, saved, attrs)
	}
}

// RecordPage records a served connection page.
func (m *GraphQLMetrics) RecordPage(ctx context.Context, connection string, hasNextPage bool) {
	m.paginationPages.Add(ctx, 1, metric.WithAttributes(
		attribute.String("connection", connection),
		attribute.Bool("has_next_page", hasNextPage),
	))
}

// IncrementActiveRequests increments the active requests counter
func (m *GraphQLMetrics) IncrementActiveRequests(ctx context.Context) {
	m.activeRequests.Add(ctx, 1)
}

// DecrementActiveRequests decrements the active requests counter
func (m *GraphQLMetrics) DecrementActiveRequests(ctx context.Context) {
	m.activeRequests.Add(ctx, -1)
}

type graphQLMetricsContextKey struct{}

// ContextWithGraphQLMetrics stores GraphQL metrics in the provided context.
func ContextWithGraphQLMetrics(ctx context.Context, metrics *GraphQLMetrics) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, graphQLMetricsContextKey{}, metrics)
}

// GraphQLMetricsFromContext retrieves GraphQL metrics from the context.
func GraphQLMetricsFromContext(ctx context.Context) *GraphQLMetrics {
	if ctx == nil {
		return nil
	}
	metrics, _ := ctx.Value(graphQLMetricsContextKey{}).(*GraphQLMetrics)
	return metrics
}
