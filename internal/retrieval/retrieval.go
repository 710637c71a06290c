// Package retrieval provides the context backends behind the retrieval
// router: a Qdrant knowledge base and Tavily web search.
package retrieval

import (
	"context"
	"errors"
	"fmt"

	"github.com/ashureev/advisor/internal/advisor"
	"github.com/ashureev/advisor/internal/domain"
)

// ErrBackendNotConfigured is returned when a turn asks for a retrieval kind
// that has no backend.
var ErrBackendNotConfigured = errors.New("retrieval backend not configured")

// Backend searches one source of context.
type Backend interface {
	Search(ctx context.Context, query string, limit int) ([]advisor.Snippet, error)
}

// Dispatcher routes retrieval requests to the backend for their kind. It
// implements advisor.Retriever.
type Dispatcher struct {
	internal Backend
	web      Backend
}

// NewDispatcher builds a dispatcher. Either backend may be nil.
func NewDispatcher(internal, web Backend) *Dispatcher {
	return &Dispatcher{internal: internal, web: web}
}

// Retrieve implements advisor.Retriever.
func (d *Dispatcher) Retrieve(ctx context.Context, query string, kind domain.RetrievalKind, limit int) ([]advisor.Snippet, error) {
	var b Backend
	switch kind {
	case domain.RetrievalInternal:
		b = d.internal
	case domain.RetrievalWeb:
		b = d.web
	case domain.RetrievalNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown retrieval kind %q", kind)
	}
	if b == nil {
		return nil, fmt.Errorf("%w: %s", ErrBackendNotConfigured, kind)
	}
	return b.Search(ctx, query, limit)
}
