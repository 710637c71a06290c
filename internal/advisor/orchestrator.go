package advisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/ashureev/advisor/internal/domain"
	"github.com/google/uuid"
)

// SessionStore is the persistence the orchestrator needs.
type SessionStore interface {
	GetOrCreate(ctx context.Context, id string) (*domain.Session, error)
	Save(ctx context.Context, s *domain.Session) error
}

// EventSink receives state transitions and tool calls once they are
// committed.
type EventSink interface {
	RecordTransition(t domain.Transition)
	RecordToolCall(sessionID string, call ToolCall)
}

type noopSink struct{}

func (noopSink) RecordTransition(domain.Transition) {}
func (noopSink) RecordToolCall(string, ToolCall)    {}

// TurnResult is what a caller gets back for one user message.
type TurnResult struct {
	SessionID string               `json:"session_id"`
	Reply     string               `json:"reply"`
	Topic     domain.Topic         `json:"topic"`
	Stage     domain.Stage         `json:"stage,omitempty"`
	Retrieval domain.RetrievalKind `json:"retrieval"`
	Sources   []Snippet            `json:"sources,omitempty"`
	ToolCalls []ToolCall           `json:"tool_calls,omitempty"`
	Fallback  bool                 `json:"fallback,omitempty"`
	Completeness
}

// Orchestrator runs the per-turn pipeline.
//
// Artifact changes made by the intent step and by the degree-planning step
// are saved as soon as each step finishes, so a later failure or a
// cancellation leaves them in place. Messages are appended only when a reply
// was produced.
type Orchestrator struct {
	store         SessionStore
	oracles       Oracles
	conversation  *ConversationMachine
	stages        *StageMachine
	router        *RetrievalRouter
	events        EventSink
	locks         *sessionLocks
	logger        *slog.Logger
	historyBudget int
	topK          int
	now           func() time.Time
	newID         func() string
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithEventSink sets the transition and tool-call sink.
func WithEventSink(s EventSink) Option {
	return func(o *Orchestrator) {
		if s != nil {
			o.events = s
		}
	}
}

// WithHistoryBudget bounds the message log handed to oracles, in estimated
// tokens. Zero keeps the full log.
func WithHistoryBudget(tokens int) Option {
	return func(o *Orchestrator) { o.historyBudget = tokens }
}

// WithTopK bounds the number of retrieved snippets per turn.
func WithTopK(k int) Option {
	return func(o *Orchestrator) { o.topK = k }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New builds an orchestrator over store and oracles.
func New(store SessionStore, oracles Oracles, opts ...Option) (*Orchestrator, error) {
	if store == nil {
		return nil, errors.New("session store is required")
	}
	switch {
	case oracles.Intent == nil:
		return nil, fmt.Errorf("%w: intent", ErrMissingOracle)
	case oracles.Stage == nil:
		return nil, fmt.Errorf("%w: stage", ErrMissingOracle)
	case oracles.Extractor == nil:
		return nil, fmt.Errorf("%w: extractor", ErrMissingOracle)
	case oracles.Responder == nil:
		return nil, fmt.Errorf("%w: responder", ErrMissingOracle)
	}

	o := &Orchestrator{
		store:   store,
		oracles: oracles,
		events:  noopSink{},
		locks:   newSessionLocks(),
		logger:  slog.Default(),
		topK:    DefaultTopK,
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.conversation = NewConversationMachine(o.logger)
	o.stages = NewStageMachine(o.logger)
	o.router = NewRetrievalRouter(oracles.Retrieval, oracles.Query, oracles.Retriever, o.topK, o.logger)
	return o, nil
}

// HandleTurn processes one user message for the session. Oracle failures
// never surface as errors: classification and retrieval problems fall back
// to safe defaults and a failed response yields FallbackReply. The error
// return is reserved for cancellation and storage failures.
func (o *Orchestrator) HandleTurn(ctx context.Context, sessionID, input string) (*TurnResult, error) {
	if sessionID == "" {
		return nil, ErrEmptySessionID
	}
	unlock, err := o.locks.acquire(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	sess, err := o.store.GetOrCreate(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	if sess.Artifact == nil {
		sess.Artifact = domain.NewArtifact()
	}

	t := &turn{
		o:      o,
		sess:   sess,
		input:  input,
		logger: o.logger.With("session_id", sessionID),
	}
	return t.run(ctx)
}

type turn struct {
	o       *Orchestrator
	sess    *domain.Session
	input   string
	logger  *slog.Logger
	pending []domain.Transition
}

func (t *turn) run(ctx context.Context) (*TurnResult, error) {
	o := t.o
	a := t.sess.Artifact
	history := TruncateHistory(t.sess.Messages, o.historyBudget)
	userMsg := t.message(domain.RoleUser, t.input)
	transcript := append(slices.Clone(history), userMsg)

	if err := t.applyIntent(ctx, history); err != nil {
		return nil, err
	}

	if a.Topic == domain.TopicDegreePlanning {
		if err := t.planDegree(ctx, history, transcript); err != nil {
			return nil, err
		}
	}

	comp := Evaluate(a.Topic, a)

	retrieval := o.router.Route(ctx, t.input, history, a)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	toolbox := NewToolbox(a, t.logger)
	reply, err := t.respond(ctx, ResponseRequest{
		SessionID: t.sess.ID,
		Mode:      ResponseModeFor(a),
		Topic:     a.Topic,
		Stage:     a.CurrentStage(),
		Input:     t.input,
		History:   history,
		Artifact:  a.Clone(),
		Missing:   comp.Missing,
		Percent:   comp.Percent,
		Retrieval: retrieval.Kind,
		Context:   retrieval.Snippets,
	}, toolbox)

	if cerr := ctx.Err(); cerr != nil {
		t.saveToolChanges(ctx, toolbox)
		return nil, cerr
	}
	if err != nil {
		t.logger.Error("Response generation failed, returning fallback reply",
			"topic", a.Topic,
			"stage", a.CurrentStage(),
			"error", err,
		)
		t.saveToolChanges(ctx, toolbox)
		res := t.result(retrieval, toolbox)
		res.Reply = FallbackReply
		res.Fallback = true
		return res, nil
	}

	t.sess.Messages = append(t.sess.Messages, userMsg, t.message(domain.RoleAssistant, reply))
	if err := t.commit(ctx); err != nil {
		return nil, err
	}
	t.recordTools(toolbox)

	res := t.result(retrieval, toolbox)
	res.Reply = reply
	res.Sources = CitedSnippets(reply, retrieval.Snippets)
	return res, nil
}

// applyIntent is step 1: classify and move the topic.
func (t *turn) applyIntent(ctx context.Context, history []domain.Message) error {
	a := t.sess.Artifact
	intent, err := t.o.oracles.Intent.ClassifyIntent(ctx, t.input, history)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		t.logger.Warn("Intent classification failed, keeping topic",
			"topic", a.Topic,
			"error", fmt.Errorf("%w: %w", ErrClassification, err),
		)
		return nil
	}

	before := a.Clone()
	out := t.o.conversation.Apply(a, intent.Label, intent.Confidence)
	reason := fmt.Sprintf("intent %s (%.2f)", intent.Label, intent.Confidence)
	if out.Changed {
		t.transition(domain.TransitionTopic, string(out.From), string(out.To), reason)
	}
	if out.StageChanged() {
		t.transition(domain.TransitionStage, string(out.StageFrom), string(out.StageTo), "topic change")
	}
	return t.commitIfChanged(ctx, before)
}

// planDegree is step 2: extraction, merge and the stage machine.
func (t *turn) planDegree(ctx context.Context, history, transcript []domain.Message) error {
	o := t.o
	a := t.sess.Artifact
	before := a.Clone()

	raw, err := o.oracles.Extractor.Extract(ctx, transcript)
	switch {
	case err != nil:
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		t.logger.Warn("Extraction failed, no new profile information this turn", "error", err)
	default:
		rec, perr := ParseExtraction(raw)
		if perr != nil {
			t.logger.Warn("Discarding extraction output", "error", perr)
			break
		}
		if changed := Merge(a, rec); len(changed) > 0 {
			t.logger.Info("Merged extracted profile fields", "fields", changed)
		}
	}

	comp := Evaluate(a.Topic, a)
	label, err := o.oracles.Stage.ClassifyStage(ctx, StageRequest{
		Input:    t.input,
		Artifact: a.Clone(),
		Missing:  comp.Missing,
		History:  history,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			// The merge above is still worth keeping.
			if cerr := t.commitIfChanged(ctx, before); cerr != nil {
				t.logger.Warn("Failed to save merged fields after cancellation", "error", cerr)
			}
			return ctxErr
		}
		t.logger.Warn("Stage classification failed, keeping stage",
			"stage", a.CurrentStage(),
			"error", fmt.Errorf("%w: %w", ErrClassification, err),
		)
	} else {
		out := o.stages.Apply(a, label)
		if out.Changed {
			reason := "stage " + label
			if out.Repair != "" {
				reason += " repaired: " + out.Repair
			}
			t.transition(domain.TransitionStage, string(out.From), string(out.To), reason)
		}
	}
	return t.commitIfChanged(ctx, before)
}

// respond calls the response oracle, converting panics into errors.
func (t *turn) respond(ctx context.Context, req ResponseRequest, tools ToolInvoker) (reply string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", ErrResponse, r)
		}
	}()
	reply, err = t.o.oracles.Responder.Respond(ctx, req, tools)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrResponse, err)
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", fmt.Errorf("%w: empty reply", ErrResponse)
	}
	return reply, nil
}

func (t *turn) saveToolChanges(ctx context.Context, toolbox *Toolbox) {
	if !toolbox.Mutated() {
		return
	}
	if err := t.commit(ctx); err != nil {
		t.logger.Warn("Failed to save tool changes", "error", err)
		return
	}
	t.recordTools(toolbox)
}

func (t *turn) commitIfChanged(ctx context.Context, before *domain.Artifact) error {
	if reflect.DeepEqual(before, t.sess.Artifact) && len(t.pending) == 0 {
		return nil
	}
	return t.commit(ctx)
}

// commit saves the session and then publishes the transitions it carries.
// Saving ignores cancellation so a step that finished is not lost.
func (t *turn) commit(ctx context.Context) error {
	if err := t.o.store.Save(context.WithoutCancel(ctx), t.sess); err != nil {
		return fmt.Errorf("save session %s: %w", t.sess.ID, err)
	}
	for _, tr := range t.pending {
		t.o.events.RecordTransition(tr)
	}
	t.pending = t.pending[:0]
	return nil
}

func (t *turn) transition(kind domain.TransitionKind, from, to, reason string) {
	t.logger.Info("State transition", "kind", kind, "from", from, "to", to, "reason", reason)
	t.pending = append(t.pending, domain.Transition{
		SessionID: t.sess.ID,
		Kind:      kind,
		From:      from,
		To:        to,
		Reason:    reason,
		At:        t.o.now(),
	})
}

func (t *turn) recordTools(toolbox *Toolbox) {
	for _, call := range toolbox.Calls() {
		t.o.events.RecordToolCall(t.sess.ID, call)
	}
}

func (t *turn) message(role domain.Role, content string) domain.Message {
	return domain.Message{
		ID:        t.o.newID(),
		Role:      role,
		Content:   content,
		CreatedAt: t.o.now(),
	}
}

func (t *turn) result(retrieval RetrievalResult, toolbox *Toolbox) *TurnResult {
	a := t.sess.Artifact
	return &TurnResult{
		SessionID:    t.sess.ID,
		Topic:        a.Topic,
		Stage:        a.CurrentStage(),
		Retrieval:    retrieval.Kind,
		ToolCalls:    toolbox.Calls(),
		Completeness: Evaluate(a.Topic, a),
	}
}
