package advisor

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/ashureev/advisor/internal/domain"
)

// DefaultTopK bounds the retrieval bundle when no limit is configured.
const DefaultTopK = 5

// RetrievalResult is the bounded context bundle for one turn.
type RetrievalResult struct {
	Kind         domain.RetrievalKind
	Query        string
	DefaultQuery bool
	Snippets     []Snippet
}

// RetrievalRouter decides per turn whether to retrieve and, if so, from
// where. It keeps no state between turns.
type RetrievalRouter struct {
	classifier RetrievalClassifier
	queries    QueryGenerator
	retriever  Retriever
	topK       int
	logger     *slog.Logger
}

// NewRetrievalRouter builds a router. A nil classifier routes every turn to
// NONE; a nil retriever yields empty bundles.
func NewRetrievalRouter(classifier RetrievalClassifier, queries QueryGenerator, retriever Retriever, topK int, logger *slog.Logger) *RetrievalRouter {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RetrievalRouter{
		classifier: classifier,
		queries:    queries,
		retriever:  retriever,
		topK:       topK,
		logger:     logger,
	}
}

// Route classifies the turn and retrieves context when needed. Failures are
// logged and degrade to an empty bundle.
func (r *RetrievalRouter) Route(ctx context.Context, input string, history []domain.Message, a *domain.Artifact) RetrievalResult {
	res := RetrievalResult{Kind: domain.RetrievalNone}
	if r.classifier == nil {
		return res
	}

	label, err := r.classifier.ClassifyRetrieval(ctx, input, history, a.Topic)
	if err != nil {
		r.logger.Warn("Retrieval classification failed, skipping retrieval",
			"error", fmt.Errorf("%w: %w", ErrClassification, err))
		return res
	}
	kind, ok := domain.ParseRetrievalKind(label)
	if !ok {
		r.logger.Warn("Unrecognized retrieval label, skipping retrieval", "label", label)
		return res
	}
	res.Kind = kind
	if kind == domain.RetrievalNone {
		return res
	}

	res.Query = r.generateQuery(ctx, input, history, a, kind)
	if res.Query == "" {
		res.Query = DefaultQuery(kind, a)
		res.DefaultQuery = true
	}

	if r.retriever == nil {
		return res
	}
	snippets, err := r.retriever.Retrieve(ctx, res.Query, kind, r.topK)
	if err != nil {
		r.logger.Warn("Retrieval failed, continuing without context",
			"kind", kind,
			"query", res.Query,
			"error", fmt.Errorf("%w: %w", ErrRetrieval, err))
		return res
	}
	res.Snippets = boundSnippets(snippets, r.topK)
	return res
}

func (r *RetrievalRouter) generateQuery(ctx context.Context, input string, history []domain.Message, a *domain.Artifact, kind domain.RetrievalKind) string {
	if r.queries == nil {
		return ""
	}
	q, err := r.queries.GenerateQuery(ctx, QueryRequest{
		Input:    input,
		Artifact: a.Clone(),
		History:  history,
		Kind:     kind,
	})
	if err != nil {
		r.logger.Warn("Query generation failed, using default query", "kind", kind, "error", err)
		return ""
	}
	return strings.Trim(strings.TrimSpace(q), `"`)
}

// DefaultQuery is the canned query used when query generation comes back
// empty.
func DefaultQuery(kind domain.RetrievalKind, a *domain.Artifact) string {
	major := ""
	if a != nil {
		major = strings.TrimSpace(a.Major)
	}
	if kind == domain.RetrievalWeb {
		if major != "" {
			return major + " pre-professional academic requirements"
		}
		return "pre-professional academic requirements"
	}
	if major != "" {
		return major + " academic advising requirements"
	}
	return "UNC academic advising general information"
}

// boundSnippets truncates to limit and assigns citation ids doc1..docN in
// rank order.
func boundSnippets(in []Snippet, limit int) []Snippet {
	if len(in) > limit {
		in = in[:limit]
	}
	out := make([]Snippet, len(in))
	for i, s := range in {
		s.ID = fmt.Sprintf("doc%d", i+1)
		out[i] = s
	}
	return out
}

var citationPattern = regexp.MustCompile(`\[doc\d+\]`)

// CitedSnippets returns the snippets referenced as [docN] in reply, in order
// of first citation.
func CitedSnippets(reply string, snippets []Snippet) []Snippet {
	byID := make(map[string]Snippet, len(snippets))
	for _, s := range snippets {
		byID[s.ID] = s
	}
	var out []Snippet
	seen := make(map[string]bool)
	for _, m := range citationPattern.FindAllString(reply, -1) {
		id := strings.Trim(m, "[]")
		s, ok := byID[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, s)
	}
	return out
}
