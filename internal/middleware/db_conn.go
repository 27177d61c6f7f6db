package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"graphql-app-example/internal/dbexec"
	"graphql-app-example/internal/gqlrequest"
	"graphql-app-example/internal/logging"
	"graphql-app-example/internal/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DBConnMiddleware checks one connection out of pool for each GraphQL request
// and installs it as the request's query executor. The connection is released
// after the response is written. When the pool stays busy past its acquire
// timeout the request is answered with 503 before any execution.
//
// Requests that parsed cleanly and whose root fields are all in connectionFree
// run without a connection. Anything the analysis could not parse still gets
// one. metrics may be nil.
func DBConnMiddleware(pool *dbexec.Pool, metrics *observability.GraphQLMetrics, connectionFree ...string) func(http.Handler) http.Handler {
	free := make(map[string]bool, len(connectionFree))
	for _, name := range connectionFree {
		free[name] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if analysis := gqlrequest.AnalysisFromContext(ctx); analysis != nil {
				if analysis.Parsed() && analysis.OnlyTouches(free) {
					next.ServeHTTP(w, r)
					return
				}
			}

			start := time.Now()
			conn, err := pool.Acquire(ctx)
			wait := time.Since(start)
			trace.SpanFromContext(ctx).SetAttributes(attribute.Int64("db.pool.wait_ms", wait.Milliseconds()))

			if err != nil {
				logger := logging.FromContext(ctx)
				if errors.Is(err, dbexec.ErrPoolExhausted) {
					recordAcquire(r, metrics, wait, observability.AcquireOutcomeExhausted)
					logger.Warn("no database connection available",
						slog.Duration("waited", wait),
					)
					w.Header().Set("Retry-After", "1")
					writeGraphQLError(w, http.StatusServiceUnavailable, "database connection pool exhausted", "SERVICE_UNAVAILABLE")
					return
				}
				recordAcquire(r, metrics, wait, observability.AcquireOutcomeError)
				logger.Error("failed to acquire database connection", slog.String("error", err.Error()))
				writeGraphQLError(w, http.StatusServiceUnavailable, "database unavailable", "SERVICE_UNAVAILABLE")
				return
			}
			defer conn.Release()
			recordAcquire(r, metrics, wait, observability.AcquireOutcomeOK)

			next.ServeHTTP(w, r.WithContext(dbexec.WithExecutor(ctx, conn)))
		})
	}
}

func recordAcquire(r *http.Request, metrics *observability.GraphQLMetrics, wait time.Duration, outcome string) {
	if metrics != nil {
		metrics.RecordPoolAcquire(r.Context(), wait, outcome)
	}
}
