package domain

import (
	"slices"
	"time"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single entry in a session's message log.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Session is one advising conversation: its artifact plus the ordered
// message log. Version is used for optimistic locking by the stores.
type Session struct {
	ID        string    `json:"id"`
	Artifact  *Artifact `json:"artifact"`
	Messages  []Message `json:"messages"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewSession returns an empty session with a fresh artifact.
func NewSession(id string) *Session {
	return &Session{
		ID:       id,
		Artifact: NewArtifact(),
	}
}

// Clone returns a deep copy of the session.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Artifact = s.Artifact.Clone()
	c.Messages = slices.Clone(s.Messages)
	return &c
}

// TransitionKind names which state machine produced a transition.
type TransitionKind string

const (
	TransitionTopic TransitionKind = "topic"
	TransitionStage TransitionKind = "stage"
)

// Transition records a change of topic or degree-planning stage.
type Transition struct {
	SessionID string         `json:"session_id"`
	Kind      TransitionKind `json:"kind"`
	From      string         `json:"from"`
	To        string         `json:"to"`
	Reason    string         `json:"reason,omitempty"`
	At        time.Time      `json:"at"`
}
