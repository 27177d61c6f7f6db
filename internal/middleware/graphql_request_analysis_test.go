package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"graphql-app-example/internal/gqlrequest"
	"graphql-app-example/internal/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGraphQLRequestAnalysisMiddleware_PopulatesContextAndRewindsBody(t *testing.T) {
	body := `{"query":"query Page { userConnections(first: 2) { totalCount } }","operationName":"Page"}`

	var (
		seen     *gqlrequest.Analysis
		bodyCopy string
		logs     bytes.Buffer
	)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = gqlrequest.AnalysisFromContext(r.Context())
		raw, _ := io.ReadAll(r.Body)
		bodyCopy = string(raw)
		logging.FromContext(r.Context()).Info("executing")
	})

	logger := logging.NewLogger(logging.Config{Level: "info", Format: "json", Output: &logs})
	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req = req.WithContext(logging.WithLogger(req.Context(), logger))

	GraphQLRequestAnalysisMiddleware(1<<20)(next).ServeHTTP(httptest.NewRecorder(), req)

	require.NotNil(t, seen)
	assert.Equal(t, "Page", seen.OperationName)
	assert.Equal(t, []string{"userConnections"}, seen.RootFields)
	assert.Equal(t, body, bodyCopy)

	var record map[string]any
	require.NoError(t, json.Unmarshal(logs.Bytes(), &record))
	assert.Equal(t, "Page", record["graphql_operation_name"])
	assert.Equal(t, "query", record["graphql_operation_type"])
	assert.Equal(t, seen.Fingerprint, record["graphql_fingerprint"])
}

func TestGraphQLRequestAnalysisMiddleware_RejectsLargeBodies(t *testing.T) {
	handler := GraphQLRequestAnalysisMiddleware(16)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run for oversized bodies")
	}))

	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(`{"query":"{ users { id name country { name } } }"}`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	assert.Contains(t, rr.Body.String(), "PAYLOAD_TOO_LARGE")
}

func TestGraphQLRequestAnalysisMiddleware_ParseErrorsPassThrough(t *testing.T) {
	var seen *gqlrequest.Analysis
	handler := GraphQLRequestAnalysisMiddleware(0)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = gqlrequest.AnalysisFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/graphql?query=%7B+users+%7B", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	require.NotNil(t, seen)
	assert.Error(t, seen.Err)
	assert.False(t, seen.Parsed())
}
