package middleware

import (
	"encoding/json"
	"net/http"
)

// writeGraphQLError answers with a GraphQL-shaped error body so clients can
// treat transport rejections like execution errors.
func writeGraphQLError(w http.ResponseWriter, status int, message string, code string) {
	payload := map[string]any{
		"errors": []map[string]any{
			{
				"message":    message,
				"extensions": map[string]any{"code": code},
			},
		},
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
