package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name   string
		cfg    Config
		path   string
		header string
		want   int
	}{
		{"disabled", Config{}, "/api/v1/solve", "", http.StatusNoContent},
		{"missing header", Config{Enabled: true, Token: "s3cret"}, "/api/v1/solve", "", http.StatusUnauthorized},
		{"wrong scheme", Config{Enabled: true, Token: "s3cret"}, "/api/v1/solve", "Basic s3cret", http.StatusUnauthorized},
		{"wrong token", Config{Enabled: true, Token: "s3cret"}, "/api/v1/solve", "Bearer nope", http.StatusUnauthorized},
		{"empty bearer", Config{Enabled: true, Token: "s3cret"}, "/api/v1/solve", "Bearer ", http.StatusUnauthorized},
		{"valid token", Config{Enabled: true, Token: "s3cret"}, "/api/v1/solve", "Bearer s3cret", http.StatusNoContent},
		{"health exempt", Config{Enabled: true, Token: "s3cret"}, "/healthz", "", http.StatusNoContent},
		{"metrics exempt", Config{Enabled: true, Token: "s3cret"}, "/metrics", "", http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			Middleware(tt.cfg)(ok).ServeHTTP(w, req)

			assert.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusUnauthorized {
				assert.JSONEq(t, `{"error":"unauthorized"}`, w.Body.String())
			}
		})
	}
}
