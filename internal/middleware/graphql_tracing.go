package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"graphql-app-example/internal/eager"
	"graphql-app-example/internal/gqlrequest"
	"graphql-app-example/internal/logging"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// TracerName is the instrumentation scope of GraphQL execution spans.
const TracerName = "graphql-app-example/graphql"

// GraphQLTracingMiddleware wraps GraphQL execution in a graphql.execute span
// and reports eager loading totals on it.
func GraphQLTracingMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			analysis := gqlrequest.AnalysisFromContext(r.Context())
			if analysis == nil || strings.TrimSpace(analysis.Envelope.Query) == "" {
				next.ServeHTTP(w, r)
				return
			}

			ctx, span := otel.Tracer(TracerName).Start(r.Context(), "graphql.execute")
			defer span.End()
			if sc := span.SpanContext(); sc.IsValid() {
				ctx = logging.WithLogger(ctx, logging.FromContext(ctx).WithFields(
					slog.String("trace_id", sc.TraceID().String()),
					slog.String("span_id", sc.SpanID().String()),
				))
			}
			if span.IsRecording() {
				span.SetAttributes(operationAttributes(analysis)...)
			}

			ctx = eager.WithStats(ctx)
			next.ServeHTTP(w, r.WithContext(ctx))

			if stats, ok := eager.StatsFromContext(ctx); ok && span.IsRecording() {
				snap := stats.Snapshot()
				span.SetAttributes(
					attribute.Int("graphql.eager.batches", snap.Batches),
					attribute.Int("graphql.eager.keys", snap.Keys),
					attribute.Int("graphql.eager.parents", snap.Parents),
					attribute.Int64("graphql.eager.queries_saved", snap.QueriesSaved),
				)
			}
		})
	}
}

func operationAttributes(a *gqlrequest.Analysis) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.Int("graphql.document.size_bytes", a.Envelope.DocumentSize()),
	}
	if !a.Parsed() {
		return append(attrs, attribute.Bool("graphql.document.parsed", false))
	}
	return append(attrs,
		attribute.Bool("graphql.document.parsed", true),
		attribute.String("graphql.operation.name", a.OperationName),
		attribute.String("graphql.operation.type", a.OperationType),
		attribute.String("graphql.operation.fingerprint", a.Fingerprint),
		attribute.StringSlice("graphql.operation.root_fields", a.RootFields),
		attribute.Int("graphql.operation.field_count", a.FieldCount),
		attribute.Int("graphql.operation.depth", a.SelectionDepth),
		attribute.Int("graphql.operation.variable_count", a.VariableCount),
	)
}
