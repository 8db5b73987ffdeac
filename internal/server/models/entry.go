// Package models defines the server-side records persisted by the
// repositories and passed between services and transports.
package models

import "time"

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one element of an entry's conversation history. The history is
// stored as a JSON array, hence the tags.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// HintStatus records what the user did with the actionable hint.
type HintStatus string

const (
	HintNone    HintStatus = "none"
	HintTried   HintStatus = "tried"
	HintSkipped HintStatus = "skipped"
)

// Valid reports whether s is one of the known statuses.
func (s HintStatus) Valid() bool {
	switch s {
	case HintNone, HintTried, HintSkipped:
		return true
	}
	return false
}

// Entry is one journaling conversation and, once finalized, its growth record.
//
// Growth is non-nil exactly when IsCompleted is true. TurnCount equals the
// number of user messages in History.
type Entry struct {
	ID          string
	Owner       string
	Text        string
	History     []Message
	TurnCount   int
	Growth      *string
	Hint        *string
	HintStatus  HintStatus
	Category    *string
	IsCompleted bool
	CreatedAt   time.Time
}

// UserMessages counts the user-authored messages in History.
func (e *Entry) UserMessages() int {
	n := 0
	for _, m := range e.History {
		if m.Role == RoleUser {
			n++
		}
	}
	return n
}

// Transcript renders History as "role: content" lines for the finalization prompt.
func (e *Entry) Transcript() string {
	var out []byte
	for i, m := range e.History {
		if i > 0 {
			out = append(out, '\n')
		}
		out = append(out, m.Role...)
		out = append(out, ": "...)
		out = append(out, m.Content...)
	}
	return string(out)
}
