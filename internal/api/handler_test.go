//nolint:revive // "api" package name is intentionally concise for this layer.
package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]string{"foo": "bar"}

	JSON(w, http.StatusOK, data)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected JSON content type, got %q", ct)
	}

	var got map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if got["foo"] != "bar" {
		t.Errorf("Expected foo=bar, got %v", got["foo"])
	}
}

func TestError(t *testing.T) {
	w := httptest.NewRecorder()
	Error(w, http.StatusTeapot, "nope")

	if w.Code != http.StatusTeapot {
		t.Fatalf("Expected status 418, got %d", w.Code)
	}
	var got map[string]string
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if got["error"] != "nope" {
		t.Fatalf("Expected error=nope, got %v", got)
	}
}

func TestChatRequestNormalize(t *testing.T) {
	t.Parallel()

	long := make([]byte, 4001)
	for i := range long {
		long[i] = 'a'
	}
	tests := []struct {
		name    string
		message string
		want    string
		wantErr bool
	}{
		{"trimmed", "  plan my degree \n", "plan my degree", false},
		{"empty", "", "", true},
		{"whitespace", " \t ", "", true},
		{"at limit", string(long[:4000]), string(long[:4000]), false},
		{"over limit", string(long), "", true},
		{"multibyte counts runes", "é" + string(long[:3999]), "é" + string(long[:3999]), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := ChatRequest{Message: tt.message}
			err := req.normalize()
			if (err != nil) != tt.wantErr {
				t.Fatalf("normalize() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && req.Message != tt.want {
				t.Fatalf("normalize() message = %q, want %q", req.Message, tt.want)
			}
		})
	}
}
