package advisor

import (
	"log/slog"

	"github.com/ashureev/advisor/internal/domain"
)

// MinIntentConfidence is the confidence below which an intent never moves
// the topic.
const MinIntentConfidence = 0.6

// TopicOutcome describes what the conversation machine did with one intent.
type TopicOutcome struct {
	From    domain.Topic
	To      domain.Topic
	Changed bool

	// StageFrom and StageTo are set when the topic change also entered,
	// resumed or parked the degree-planning stage.
	StageFrom domain.Stage
	StageTo   domain.Stage

	// Ignored is set when the intent was below MinIntentConfidence.
	Ignored bool
}

// StageChanged reports whether the topic change touched the active stage.
func (o TopicOutcome) StageChanged() bool {
	return o.StageFrom != o.StageTo
}

// ConversationMachine owns the top-level topic.
type ConversationMachine struct {
	logger *slog.Logger
}

// NewConversationMachine returns a conversation machine logging to logger.
func NewConversationMachine(logger *slog.Logger) *ConversationMachine {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConversationMachine{logger: logger}
}

// Apply feeds one classified intent into the machine.
func (m *ConversationMachine) Apply(a *domain.Artifact, label string, confidence float64) TopicOutcome {
	out := TopicOutcome{From: a.Topic, To: a.Topic}

	target, ok := domain.ParseIntent(label)
	if !ok {
		m.logger.Warn("Unrecognized intent label, defaulting to general_qa",
			"label", label,
			"confidence", confidence,
		)
		target = domain.TopicGeneralQA
		confidence = min(confidence, MinIntentConfidence)
	}

	// Written this way so NaN is ignored too.
	if !(confidence >= MinIntentConfidence) {
		out.Ignored = true
		return out
	}

	a.LastIntent = target.Label()
	stageBefore := a.CurrentStage()

	switch {
	case target == a.Topic:
		if target == domain.TopicDegreePlanning && a.Stage == nil {
			a.EnterDegreePlanning()
		}
	case target == domain.TopicDegreePlanning:
		a.EnterDegreePlanning()
		out.Changed = true
	case a.Topic == domain.TopicDegreePlanning:
		a.LeaveDegreePlanning(target)
		out.Changed = true
	default:
		a.Topic = target
		out.Changed = true
	}

	out.To = a.Topic
	out.StageFrom = stageBefore
	out.StageTo = a.CurrentStage()
	return out
}
