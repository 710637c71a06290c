package advisor

import (
	"context"
	"sync"

	"github.com/ashureev/advisor/internal/domain"
)

type fakeIntent struct {
	mu     sync.Mutex
	result IntentResult
	err    error
	calls  int
}

func (f *fakeIntent) ClassifyIntent(ctx context.Context, _ string, _ []domain.Message) (IntentResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err := ctx.Err(); err != nil {
		return IntentResult{}, err
	}
	return f.result, f.err
}

func (f *fakeIntent) set(label string, confidence float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.result = IntentResult{Label: label, Confidence: confidence}
}

type fakeStage struct {
	mu    sync.Mutex
	label string
	err   error
	reqs  []StageRequest
}

func (f *fakeStage) ClassifyStage(_ context.Context, req StageRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	return f.label, f.err
}

// fakeExtractor calls cancel, when set, before returning to simulate a
// client disconnecting mid-turn.
type fakeExtractor struct {
	mu     sync.Mutex
	raw    string
	err    error
	cancel context.CancelFunc
}

func (f *fakeExtractor) Extract(_ context.Context, _ []domain.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancel != nil {
		f.cancel()
	}
	return f.raw, f.err
}

type fakeRetrievalClassifier struct {
	label string
	err   error
	calls int
}

func (f *fakeRetrievalClassifier) ClassifyRetrieval(_ context.Context, _ string, _ []domain.Message, _ domain.Topic) (string, error) {
	f.calls++
	return f.label, f.err
}

type fakeQuery struct {
	query string
	err   error
	calls int
}

func (f *fakeQuery) GenerateQuery(_ context.Context, _ QueryRequest) (string, error) {
	f.calls++
	return f.query, f.err
}

type fakeRetriever struct {
	snippets  []Snippet
	err       error
	gotQuery  string
	gotKind   domain.RetrievalKind
	gotLimit  int
	callCount int
}

func (f *fakeRetriever) Retrieve(_ context.Context, query string, kind domain.RetrievalKind, limit int) ([]Snippet, error) {
	f.callCount++
	f.gotQuery = query
	f.gotKind = kind
	f.gotLimit = limit
	return f.snippets, f.err
}

type plannedCall struct {
	name string
	args map[string]any
}

type fakeResponder struct {
	mu      sync.Mutex
	reply   string
	err     error
	panics  bool
	calls   []plannedCall
	results []ToolResult
	reqs    []ResponseRequest
	cancel  context.CancelFunc
}

func (f *fakeResponder) Respond(ctx context.Context, req ResponseRequest, tools ToolInvoker) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	for _, c := range f.calls {
		f.results = append(f.results, tools.Invoke(ctx, c.name, c.args))
	}
	if f.panics {
		panic("responder exploded")
	}
	if f.cancel != nil {
		f.cancel()
		return "", context.Canceled
	}
	return f.reply, f.err
}

func (f *fakeResponder) lastRequest() ResponseRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reqs[len(f.reqs)-1]
}

type fakeStore struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session
	saves    int
	saveErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{sessions: make(map[string]*domain.Session)}
}

func (s *fakeStore) GetOrCreate(_ context.Context, id string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		sess = domain.NewSession(id)
		s.sessions[id] = sess
	}
	return sess.Clone(), nil
}

func (s *fakeStore) Save(_ context.Context, sess *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saves++
	sess.Version++
	s.sessions[sess.ID] = sess.Clone()
	return nil
}

func (s *fakeStore) get(id string) *domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[id].Clone()
}

func (s *fakeStore) put(sess *domain.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess.Clone()
}

type recordingSink struct {
	mu          sync.Mutex
	transitions []domain.Transition
	tools       []ToolCall
}

func (r *recordingSink) RecordTransition(t domain.Transition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, t)
}

func (r *recordingSink) RecordToolCall(_ string, call ToolCall) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools = append(r.tools, call)
}

func (r *recordingSink) snapshot() []domain.Transition {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Transition(nil), r.transitions...)
}

func ptr[T any](v T) *T { return &v }
