package serverapp

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"graphql-app-example/internal/config"
	"graphql-app-example/internal/dbexec"
	"graphql-app-example/internal/logging"
	"graphql-app-example/internal/middleware"
	"graphql-app-example/internal/observability"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/handler"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Root fields that never touch the database.
var connectionFreeFields = []string{"__typename", "__schema", "__type", "noop"}

// graphqlHandlers holds the API endpoint and, when enabled, the GraphiQL
// endpoint. Both run behind the same middleware chain.
type graphqlHandlers struct {
	api      http.Handler
	graphiql http.Handler
}

func oidcAuthConfig(cfg *config.Config) middleware.OIDCAuthConfig {
	auth := cfg.Server.Auth
	return middleware.OIDCAuthConfig{
		Enabled:       auth.OIDCEnabled,
		IssuerURL:     auth.OIDCIssuerURL,
		Audience:      auth.OIDCAudience,
		ClockSkew:     auth.OIDCClockSkew,
		SkipTLSVerify: auth.OIDCSkipTLSVerify,
		CAFile:        auth.OIDCCAFile,
	}
}

// buildGraphQLHandler assembles the request chain:
//
//	logging -> OIDC auth -> request analysis -> metrics -> tracing -> timeout -> connection -> graphql
func buildGraphQLHandler(cfg *config.Config, logger *logging.Logger, schema graphql.Schema, pool *dbexec.Pool, graphqlMetrics *observability.GraphQLMetrics, securityMetrics *observability.SecurityMetrics) (graphqlHandlers, error) {
	var authMiddleware func(http.Handler) http.Handler
	if cfg.Server.Auth.OIDCEnabled {
		mw, err := middleware.OIDCAuthMiddleware(oidcAuthConfig(cfg), logger, securityMetrics)
		if err != nil {
			return graphqlHandlers{}, err
		}
		authMiddleware = mw
		logger.Info("OIDC auth middleware enabled", slog.String("issuer", cfg.Server.Auth.OIDCIssuerURL))
	}
	if graphqlMetrics != nil {
		logger.Info("GraphQL metrics middleware enabled")
	}

	chain := func(h http.Handler) http.Handler {
		h = middleware.DBConnMiddleware(pool, graphqlMetrics, connectionFreeFields...)(h)
		h = middleware.TimeoutMiddleware(cfg.Server.GraphQLTimeout)(h)
		h = middleware.GraphQLTracingMiddleware()(h)
		if graphqlMetrics != nil {
			h = middleware.GraphQLMetricsMiddleware(graphqlMetrics)(h)
		}
		h = middleware.GraphQLRequestAnalysisMiddleware(maxRequestBodyBytes)(h)
		if authMiddleware != nil {
			h = authMiddleware(h)
		}
		return middleware.LoggingMiddleware(logger)(h)
	}

	handlers := graphqlHandlers{
		api: chain(handler.New(&handler.Config{
			Schema: &schema,
			Pretty: true,
		})),
	}
	if cfg.Server.GraphiQLEnabled {
		handlers.graphiql = chain(handler.New(&handler.Config{
			Schema:   &schema,
			Pretty:   true,
			GraphiQL: true,
		}))
	}
	return handlers, nil
}

func buildRouter(cfg *config.Config, logger *logging.Logger, db *sql.DB, graphqlHandler graphqlHandlers, meterProvider *observability.MeterProvider) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/graphql", graphqlHandler.api)

	landing := "/graphql"
	if graphqlHandler.graphiql != nil {
		mux.Handle("/graphiql", graphqlHandler.graphiql)
		landing = "/graphiql"
		logger.Info("GraphiQL enabled", slog.String("path", "/graphiql"))
	}
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			http.Redirect(w, r, landing, http.StatusFound)
			return
		}
		http.NotFound(w, r)
	})

	mux.HandleFunc("/health", healthHandler(db, cfg.Server.HealthCheckTimeout))

	if cfg.Observability.MetricsEnabled && meterProvider != nil {
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info("metrics endpoint enabled", slog.String("path", "/metrics"))
	}

	return mux
}

// wrapHTTPHandler adds the outer layers shared by every route. Rate limiting
// runs first so rejected requests cost nothing downstream.
func wrapHTTPHandler(cfg *config.Config, logger *logging.Logger, h http.Handler) http.Handler {
	if cfg.Observability.MetricsEnabled || cfg.Observability.TracingEnabled {
		h = otelhttp.NewHandler(h, "http.server",
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return httpRootSpanName(r)
			}),
		)
		logger.Info("HTTP instrumentation enabled")
	}

	if cfg.Server.CORSEnabled {
		h = middleware.CORSMiddleware(middleware.CORSConfig{
			Enabled:          true,
			AllowedOrigins:   cfg.Server.CORSAllowedOrigins,
			AllowedMethods:   cfg.Server.CORSAllowedMethods,
			AllowedHeaders:   cfg.Server.CORSAllowedHeaders,
			ExposeHeaders:    cfg.Server.CORSExposeHeaders,
			AllowCredentials: cfg.Server.CORSAllowCredentials,
			MaxAge:           cfg.Server.CORSMaxAge,
		})(h)
	}

	if cfg.Server.RateLimitEnabled {
		h = middleware.RateLimitMiddleware(middleware.RateLimitConfig{
			Enabled: true,
			RPS:     cfg.Server.RateLimitRPS,
			Burst:   cfg.Server.RateLimitBurst,
		})(h)
	}

	return h
}

func httpRootSpanName(r *http.Request) string {
	if r == nil {
		return "HTTP /*"
	}
	method := strings.TrimSpace(r.Method)
	if method == "" {
		method = "HTTP"
	}
	return method + " " + normalizeHTTPSpanRoute(r.URL.Path)
}

// normalizeHTTPSpanRoute keeps span names low-cardinality.
func normalizeHTTPSpanRoute(rawPath string) string {
	switch rawPath {
	case "/", "/graphql", "/graphiql", "/health", "/metrics":
		return rawPath
	default:
		return "/*"
	}
}

func buildServer(cfg *config.Config, logger *logging.Logger, h http.Handler, serverAddr string) *http.Server {
	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      h,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}
	return srv
}

func startServer(cfg *config.Config, logger *logging.Logger, srv *http.Server) chan error {
	serverErrors := make(chan error, 1)
	tlsEnabled := cfg.Server.TLSEnabled()

	go func() {
		protocol := "http"
		if tlsEnabled {
			protocol = "https"
		}
		logAttrs := []any{
			slog.String("protocol", protocol),
			slog.String("address", srv.Addr),
			slog.String("graphql_endpoint", "/graphql"),
			slog.Bool("graphiql_enabled", cfg.Server.GraphiQLEnabled),
			slog.String("loading_strategy", cfg.Server.LoadingStrategy),
			slog.Int("pool_max_open", cfg.Database.Pool.MaxOpen),
		}
		if cfg.Observability.MetricsEnabled {
			logAttrs = append(logAttrs, slog.String("metrics_endpoint", "/metrics"))
		}
		if cfg.Server.RateLimitEnabled {
			logAttrs = append(logAttrs,
				slog.Float64("rate_limit_rps", cfg.Server.RateLimitRPS),
				slog.Int("rate_limit_burst", cfg.Server.RateLimitBurst),
			)
		}
		logger.Info("server starting", logAttrs...)

		var err error
		if tlsEnabled {
			err = srv.ListenAndServeTLS(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- fmt.Errorf("server failed: %w", err)
		}
	}()
	return serverErrors
}

type healthStatus struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

// checkDatabase runs SELECT 1 on q and reads the row back.
func checkDatabase(ctx context.Context, q dbexec.QueryExecutor) error {
	rows, err := q.QueryContext(ctx, "SELECT 1")
	if err != nil {
		return err
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return err
		}
		return errors.New("health query returned no rows")
	}
	var one int
	if err := rows.Scan(&one); err != nil {
		return err
	}
	return rows.Err()
}

// healthHandler checks the database within timeout and reports 503 when it fails.
func healthHandler(db *sql.DB, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqLogger := logging.FromContext(r.Context())
		w.Header().Set("Content-Type", "application/json")

		ctx := r.Context()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		status, body := http.StatusOK, healthStatus{Status: "healthy", Database: "ok"}
		if db == nil {
			status, body = http.StatusServiceUnavailable, healthStatus{Status: "unhealthy", Database: "unconfigured"}
		} else if err := checkDatabase(ctx, dbexec.NewStandardExecutor(db)); err != nil {
			reqLogger.Error("health check failed",
				slog.String("error", err.Error()),
				slog.String("check", "database"),
			)
			status, body = http.StatusServiceUnavailable, healthStatus{Status: "unhealthy", Database: "failed"}
		}

		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}
