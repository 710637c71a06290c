// Package advisor implements the per-turn advising pipeline: topic and
// degree-planning state machines, the artifact merge engine, retrieval
// routing, tool mutators and the turn orchestrator.
package advisor

import (
	"context"

	"github.com/ashureev/advisor/internal/domain"
)

// IntentResult is the intent oracle's verdict for one user message.
type IntentResult struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// IntentClassifier labels a user message with one of the intent labels
// initial, degree_planning, course_question or general_qa.
type IntentClassifier interface {
	ClassifyIntent(ctx context.Context, input string, history []domain.Message) (IntentResult, error)
}

// StageRequest is the context handed to the stage oracle.
type StageRequest struct {
	Input    string
	Artifact *domain.Artifact
	Missing  []string
	History  []domain.Message
}

// StageClassifier proposes the next degree-planning stage label.
type StageClassifier interface {
	ClassifyStage(ctx context.Context, req StageRequest) (string, error)
}

// Extractor returns the raw, possibly malformed, structured profile fields
// found in the transcript.
type Extractor interface {
	Extract(ctx context.Context, transcript []domain.Message) (string, error)
}

// RetrievalClassifier decides whether a turn needs retrieval.
type RetrievalClassifier interface {
	ClassifyRetrieval(ctx context.Context, input string, history []domain.Message, topic domain.Topic) (string, error)
}

// QueryRequest is the context handed to the query-generation oracle.
type QueryRequest struct {
	Input    string
	Artifact *domain.Artifact
	History  []domain.Message
	Kind     domain.RetrievalKind
}

// QueryGenerator writes a search query for the chosen retrieval kind.
type QueryGenerator interface {
	GenerateQuery(ctx context.Context, req QueryRequest) (string, error)
}

// Snippet is one retrieved passage.
type Snippet struct {
	ID      string  `json:"id"`
	Title   string  `json:"title,omitempty"`
	Content string  `json:"content"`
	Source  string  `json:"source"`
	Score   float32 `json:"score,omitempty"`
}

// Retriever fetches at most limit snippets for query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, kind domain.RetrievalKind, limit int) ([]Snippet, error)
}

// ResponseRequest carries everything the response oracle needs for one turn.
type ResponseRequest struct {
	SessionID string
	Mode      ResponseMode
	Topic     domain.Topic
	Stage     domain.Stage
	Input     string
	History   []domain.Message
	Artifact  *domain.Artifact
	Missing   []string
	Percent   int
	Retrieval domain.RetrievalKind
	Context   []Snippet
}

// Responder generates the assistant reply. It may call tools through the
// invoker while generating.
type Responder interface {
	Respond(ctx context.Context, req ResponseRequest, tools ToolInvoker) (string, error)
}

// Oracles bundles the external classification and generation capabilities.
// Intent, Stage, Extractor and Responder are required. Without a Retrieval
// classifier every turn routes to NONE.
type Oracles struct {
	Intent    IntentClassifier
	Stage     StageClassifier
	Extractor Extractor
	Retrieval RetrievalClassifier
	Query     QueryGenerator
	Retriever Retriever
	Responder Responder
}
