package gqlrequest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
)

// ErrBodyTooLarge is returned when a POST body exceeds the configured limit.
var ErrBodyTooLarge = errors.New("request body too large")

// Envelope is the transport-independent form of a GraphQL request.
type Envelope struct {
	Method      string
	ContentType string

	Query         string
	OperationName string
	Variables     json.RawMessage
}

// DocumentSize is the length of the query document in bytes.
func (e Envelope) DocumentSize() int {
	return len(e.Query)
}

// DecodeEnvelope reads the GraphQL payload from r in the same order the
// GraphQL handler does: a non-empty URL query parameter wins for any method,
// then POST bodies by content type (raw GraphQL, form-encoded, JSON). POST
// bodies are buffered and put back on the request for the GraphQL handler.
// maxBody of 0 disables the size check.
func DecodeEnvelope(r *http.Request, maxBody int64) (Envelope, error) {
	if r == nil {
		return Envelope{}, errors.New("request is nil")
	}
	env := Envelope{Method: r.Method, ContentType: r.Header.Get("Content-Type")}

	if r.URL != nil && fromValues(&env, r.URL.Query()) {
		return env, nil
	}
	if r.Method != http.MethodPost || r.Body == nil {
		return env, nil
	}

	body, err := readBody(r.Body, maxBody)
	if err != nil {
		return env, err
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	mediaType, _, err := mime.ParseMediaType(env.ContentType)
	if err != nil {
		mediaType = strings.TrimSpace(env.ContentType)
	}
	switch mediaType {
	case "application/graphql":
		env.Query = string(body)
		return env, nil
	case "application/x-www-form-urlencoded":
		values, err := url.ParseQuery(string(body))
		if err != nil {
			return env, fmt.Errorf("decode form body: %w", err)
		}
		fromValues(&env, values)
		return env, nil
	}

	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return env, nil
	}
	var payload struct {
		Query         string          `json:"query"`
		OperationName string          `json:"operationName"`
		Variables     json.RawMessage `json:"variables"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return env, fmt.Errorf("decode request body: %w", err)
	}
	env.Query = payload.Query
	env.OperationName = payload.OperationName
	if vars := bytes.TrimSpace(payload.Variables); len(vars) > 0 && !bytes.Equal(vars, []byte("null")) {
		env.Variables = append(json.RawMessage(nil), vars...)
	}
	return env, nil
}

// fromValues fills env from URL or form values. It reports false when no
// query is present so the caller falls through to the next source.
func fromValues(env *Envelope, values url.Values) bool {
	query := values.Get("query")
	if query == "" {
		return false
	}
	env.Query = query
	env.OperationName = values.Get("operationName")
	if raw := strings.TrimSpace(values.Get("variables")); raw != "" && raw != "null" {
		env.Variables = json.RawMessage(raw)
	}
	return true
}

func readBody(body io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		return io.ReadAll(body)
	}
	data, err := io.ReadAll(io.LimitReader(body, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, ErrBodyTooLarge
	}
	return data, nil
}
