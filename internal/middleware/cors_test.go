package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ashureev/advisor/internal/identity"
)

func TestCORS(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		allowed     []string
		origin      string
		wantOrigin  string
		wantCreds   string
		wantHeaders bool
	}{
		{"explicit origin", []string{"http://localhost:5173"}, "http://localhost:5173", "http://localhost:5173", "true", true},
		{"wildcard no credentials", []string{"*"}, "http://evil.test", "http://evil.test", "", true},
		{"unlisted origin", []string{"http://localhost:5173"}, "http://other.test", "", "", false},
		{"no origin", []string{"*"}, "", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := CORS(tt.allowed)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNoContent)
			}))
			req := httptest.NewRequest(http.MethodGet, "/api/advisor/session", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != http.StatusNoContent {
				t.Fatalf("expected passthrough, got %d", rec.Code)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Fatalf("Allow-Origin = %q, want %q", got, tt.wantOrigin)
			}
			if got := rec.Header().Get("Access-Control-Allow-Credentials"); got != tt.wantCreds {
				t.Fatalf("Allow-Credentials = %q, want %q", got, tt.wantCreds)
			}
			hasSession := strings.Contains(rec.Header().Get("Access-Control-Allow-Headers"), identity.SessionHeaderName)
			if hasSession != tt.wantHeaders {
				t.Fatalf("session header allowed = %v, want %v", hasSession, tt.wantHeaders)
			}
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	t.Parallel()

	called := false
	h := CORS([]string{"*"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	req := httptest.NewRequest(http.MethodOptions, "/api/advisor/chat", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if called {
		t.Fatal("preflight should not reach the handler")
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
