package eventlog

import (
	"strings"
	"time"

	"github.com/ashureev/advisor/internal/advisor"
	"github.com/ashureev/advisor/internal/domain"
)

// Sink adapts a Logger to advisor.EventSink.
type Sink struct {
	log     Logger
	channel string
}

// NewSink returns a sink that records events on channel.
func NewSink(l Logger, channel string) *Sink {
	if l == nil {
		l = Nop()
	}
	return &Sink{log: l, channel: channel}
}

// RecordTransition implements advisor.EventSink.
func (s *Sink) RecordTransition(t domain.Transition) {
	user, session := SplitSessionKey(t.SessionID)
	s.log.Log(Event{
		Timestamp: t.At.UTC().Format(time.RFC3339Nano),
		UserID:    user,
		SessionID: session,
		Channel:   s.channel,
		EventType: string(t.Kind) + "_transition",
		Meta: map[string]any{
			"from":   t.From,
			"to":     t.To,
			"reason": t.Reason,
		},
	})
}

// RecordToolCall implements advisor.EventSink.
func (s *Sink) RecordToolCall(sessionID string, call advisor.ToolCall) {
	user, session := SplitSessionKey(sessionID)
	s.log.Log(Event{
		UserID:     user,
		SessionID:  session,
		Channel:    s.channel,
		EventType:  "tool_call",
		ContentRaw: call.Result.Text,
		Meta: map[string]any{
			"tool":    call.Name,
			"args":    call.Args,
			"success": call.Result.Success,
			"changed": call.Result.Changed,
		},
	})
}

// SessionKey joins a user and a client session into the store key.
func SessionKey(userID, sessionID string) string {
	return userID + ":" + sessionID
}

// SplitSessionKey undoes SessionKey. Keys without a separator are treated
// as a bare session under an unknown user.
func SplitSessionKey(key string) (userID, sessionID string) {
	user, session, ok := strings.Cut(key, ":")
	if !ok {
		return "", key
	}
	return user, session
}
