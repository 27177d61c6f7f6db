package middleware

import (
	"errors"
	"log/slog"
	"net/http"

	"graphql-app-example/internal/gqlrequest"
	"graphql-app-example/internal/logging"
)

// GraphQLRequestAnalysisMiddleware decodes and analyzes the GraphQL request once
// and stores the result in the request context for the middleware after it.
// Bodies larger than maxBody bytes are rejected; 0 disables the limit.
func GraphQLRequestAnalysisMiddleware(maxBody int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			analysis := gqlrequest.AnalyzeRequest(r, maxBody)
			if errors.Is(analysis.Err, gqlrequest.ErrBodyTooLarge) {
				writeGraphQLError(w, http.StatusRequestEntityTooLarge, "request body too large", "PAYLOAD_TOO_LARGE")
				return
			}

			ctx := gqlrequest.WithAnalysis(r.Context(), analysis)
			if analysis.Parsed() {
				logger := logging.FromContext(ctx).WithFields(
					slog.String("graphql_operation_name", analysis.OperationName),
					slog.String("graphql_operation_type", analysis.OperationType),
					slog.String("graphql_fingerprint", analysis.Fingerprint),
				)
				ctx = logging.WithLogger(ctx, logger)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
