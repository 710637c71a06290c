// Package api provides the HTTP and websocket surface of the advisor.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// defaultMaxRequestBodySize is the default maximum allowed request body size (1MB).
const defaultMaxRequestBodySize = 1 << 20

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// ChatRequest is the body of a chat turn, over HTTP or a websocket frame.
type ChatRequest struct {
	Message string `json:"message" validate:"required,max=4000"`
}

var errMessageRequired = errors.New("message is required")

// normalize trims the message and validates it.
func (c *ChatRequest) normalize() error {
	c.Message = strings.TrimSpace(c.Message)
	if c.Message == "" {
		return errMessageRequired
	}
	if err := validatorInstance().Struct(c); err != nil {
		return errors.New("message must be at most 4000 characters")
	}
	return nil
}

// decodeChatRequest reads a ChatRequest, mapping failures onto a status code.
func decodeChatRequest(w http.ResponseWriter, r *http.Request, limit int64) (ChatRequest, int, error) {
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return req, http.StatusRequestEntityTooLarge, errors.New("request body too large")
		}
		return req, http.StatusBadRequest, errors.New("invalid request body")
	}
	if err := req.normalize(); err != nil {
		return req, http.StatusBadRequest, err
	}
	return req, http.StatusOK, nil
}
