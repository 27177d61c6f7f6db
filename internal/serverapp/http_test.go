package serverapp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"graphql-app-example/internal/config"
	"graphql-app-example/internal/dbexec"
	"graphql-app-example/internal/resolver"
	"graphql-app-example/internal/sqlutil"
	"graphql-app-example/internal/store"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newTestHandlers(t *testing.T, cfg *config.Config) (graphqlHandlers, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	db.SetMaxOpenConns(1)

	res, err := resolver.New(resolver.Config{
		Store:           store.New(sqlutil.MySQL),
		LoadingStrategy: resolver.StrategyEager,
		MaxPageSize:     100,
	})
	require.NoError(t, err)
	schema, err := res.BuildGraphQLSchema()
	require.NoError(t, err)

	handlers, err := buildGraphQLHandler(cfg, testLogger(), schema, dbexec.NewPool(db, 100*time.Millisecond), nil, nil)
	require.NoError(t, err)
	return handlers, mock
}

func postGraphQL(t *testing.T, h http.Handler, path, query string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	body, err := json.Marshal(map[string]string{"query": query})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr, decodeGraphQLResponse(t, rr)
}

func TestGraphQLHandler_ExecutesOnRequestConnection(t *testing.T) {
	handlers, mock := newTestHandlers(t, &config.Config{})
	mock.ExpectQuery(regexp.QuoteMeta("SELECT `id`, `name`, `country_id` FROM `users` ORDER BY `id`")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "country_id"}).
			AddRow(1, "Ada", 1).
			AddRow(2, "Grace", 2))

	rr, payload := postGraphQL(t, handlers.api, "/graphql", `{ users { id name } }`)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
	assert.Nil(t, payload["errors"])
	users := payload["data"].(map[string]any)["users"].([]any)
	require.Len(t, users, 2)
	assert.Equal(t, map[string]any{"id": "2", "name": "Grace"}, users[1])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGraphQLHandler_ConnectionFreeMutation(t *testing.T) {
	handlers, mock := newTestHandlers(t, &config.Config{})

	rr, payload := postGraphQL(t, handlers.api, "/graphql", `mutation { noop }`)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, map[string]any{"noop": true}, payload["data"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func decodeGraphQLResponse(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &payload), rr.Body.String())
	return payload
}

func TestGraphQLHandler_FormEncodedPostGetsConnection(t *testing.T) {
	handlers, mock := newTestHandlers(t, &config.Config{})
	mock.ExpectQuery(regexp.QuoteMeta("SELECT `id`, `name`, `country_id` FROM `users` ORDER BY `id`")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "country_id"}).AddRow(1, "Ada", 1))

	form := url.Values{}
	form.Set("query", `{ users { id name } }`)
	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	handlers.api.ServeHTTP(rr, req)

	payload := decodeGraphQLResponse(t, rr)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Nil(t, payload["errors"], rr.Body.String())
	users := payload["data"].(map[string]any)["users"].([]any)
	require.Len(t, users, 1)
	assert.Equal(t, map[string]any{"id": "1", "name": "Ada"}, users[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGraphQLHandler_URLQueryOverridesBodyForConnection(t *testing.T) {
	handlers, mock := newTestHandlers(t, &config.Config{})
	mock.ExpectQuery(regexp.QuoteMeta("SELECT `id`, `name`, `country_id` FROM `users` ORDER BY `id`")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "country_id"}).AddRow(7, "Lin", 1))

	rr, payload := postGraphQL(t, handlers.api, "/graphql?query="+url.QueryEscape(`{users{id}}`), `mutation { noop }`)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Nil(t, payload["errors"], rr.Body.String())
	users := payload["data"].(map[string]any)["users"].([]any)
	require.Len(t, users, 1)
	assert.Equal(t, map[string]any{"id": "7"}, users[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGraphQLHandler_InvalidPageSizeIsFieldError(t *testing.T) {
	handlers, _ := newTestHandlers(t, &config.Config{})

	_, payload := postGraphQL(t, handlers.api, "/graphql", `{ userConnections(first: 0) { totalCount } }`)

	errs, ok := payload["errors"].([]any)
	require.True(t, ok)
	require.Len(t, errs, 1)
	first := errs[0].(map[string]any)
	assert.Contains(t, first["message"], "first must be a positive integer")
	assert.Equal(t, "BAD_USER_INPUT", first["extensions"].(map[string]any)["code"])
}

func TestGraphQLHandler_OutOfRangeCursorIsFieldError(t *testing.T) {
	handlers, mock := newTestHandlers(t, &config.Config{})

	_, payload := postGraphQL(t, handlers.api, "/graphql",
		`{ userConnections(first: 4, after: "4611686018427387905") { totalCount } }`)

	errs, ok := payload["errors"].([]any)
	require.True(t, ok)
	require.Len(t, errs, 1)
	first := errs[0].(map[string]any)
	assert.Contains(t, first["message"], "invalid cursor")
	assert.Equal(t, "BAD_USER_INPUT", first["extensions"].(map[string]any)["code"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGraphQLHandler_GraphiQLOnlyWhenEnabled(t *testing.T) {
	disabled, _ := newTestHandlers(t, &config.Config{})
	assert.Nil(t, disabled.graphiql)

	enabled, _ := newTestHandlers(t, &config.Config{Server: config.ServerConfig{GraphiQLEnabled: true}})
	require.NotNil(t, enabled.graphiql)

	req := httptest.NewRequest(http.MethodGet, "/graphiql", nil)
	req.Header.Set("Accept", "text/html")
	rr := httptest.NewRecorder()
	enabled.graphiql.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, strings.ToLower(rr.Body.String()), "graphiql")
}

func TestBuildRouter_RedirectsRoot(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })

	tests := []struct {
		name     string
		handlers graphqlHandlers
		location string
	}{
		{name: "graphiql enabled", handlers: graphqlHandlers{api: ok, graphiql: ok}, location: "/graphiql"},
		{name: "graphiql disabled", handlers: graphqlHandlers{api: ok}, location: "/graphql"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := buildRouter(&config.Config{}, testLogger(), nil, tt.handlers, nil)

			rr := httptest.NewRecorder()
			mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
			assert.Equal(t, http.StatusFound, rr.Code)
			assert.Equal(t, tt.location, rr.Header().Get("Location"))

			rr = httptest.NewRecorder()
			mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/nope", nil))
			assert.Equal(t, http.StatusNotFound, rr.Code)
		})
	}
}

func TestBuildRouter_GraphiQLRouteMissingWhenDisabled(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	mux := buildRouter(&config.Config{}, testLogger(), nil, graphqlHandlers{api: ok}, nil)

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/graphiql", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/graphql", nil))
	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestHealthHandler(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	mock.ExpectQuery("SELECT 1").WillReturnError(errors.New("connection reset"))
	mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"1"}))

	h := healthHandler(db, time.Second)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"healthy","database":"ok"}`, rr.Body.String())

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.JSONEq(t, `{"status":"unhealthy","database":"failed"}`, rr.Body.String())
	assert.NotContains(t, rr.Body.String(), "connection reset")

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code, "an empty result is a failed check")
	require.NoError(t, mock.ExpectationsWereMet())

	rr = httptest.NewRecorder()
	healthHandler(nil, time.Second).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.JSONEq(t, `{"status":"unhealthy","database":"unconfigured"}`, rr.Body.String())
}

func TestWrapHTTPHandler_UsesHTTPRootSpanName(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.AlwaysSample()))
	tp.RegisterSpanProcessor(recorder)
	originalTP := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(originalTP)
	})

	cfg := &config.Config{Observability: config.ObservabilityConfig{TracingEnabled: true}}
	handler := wrapHTTPHandler(cfg, testLogger(), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusNoContent, rr.Code)

	var names []string
	for _, span := range recorder.Ended() {
		names = append(names, span.Name())
	}
	assert.Contains(t, names, "GET /health")
}

func TestWrapHTTPHandler_RateLimitIsOutermost(t *testing.T) {
	cfg := &config.Config{Server: config.ServerConfig{
		RateLimitEnabled: true,
		RateLimitRPS:     0.001,
		RateLimitBurst:   1,
	}}
	handler := wrapHTTPHandler(cfg, testLogger(), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/graphql", nil))
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/graphql", nil))
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
}

func TestNormalizeHTTPSpanRoute(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{input: "/graphql", expected: "/graphql"},
		{input: "/graphiql", expected: "/graphiql"},
		{input: "/health", expected: "/health"},
		{input: "/metrics", expected: "/metrics"},
		{input: "/", expected: "/"},
		{input: "/users/123", expected: "/*"},
		{input: "", expected: "/*"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, normalizeHTTPSpanRoute(tt.input), tt.input)
	}
	assert.Equal(t, "HTTP /*", httpRootSpanName(nil))
}
