package domain

import (
	"encoding/json"
	"time"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// Message is one transcript entry. Agent messages keep the directive that
// came with them so a transcript can be replayed.
type Message struct {
	ID        string
	Role      Role
	Content   string
	Timestamp time.Time
	Directive Directive
}

type messageJSON struct {
	ID        string          `json:"id"`
	Role      Role            `json:"role"`
	Content   string          `json:"content"`
	Timestamp time.Time       `json:"timestamp"`
	Directive json.RawMessage `json:"uiDirective,omitempty"`
}

func (m Message) MarshalJSON() ([]byte, error) {
	raw, err := EncodeDirective(m.Directive)
	if err != nil {
		return nil, err
	}
	return json.Marshal(messageJSON{
		ID:        m.ID,
		Role:      m.Role,
		Content:   m.Content,
		Timestamp: m.Timestamp,
		Directive: raw,
	})
}

func (m *Message) UnmarshalJSON(b []byte) error {
	var w messageJSON
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*m = Message{ID: w.ID, Role: w.Role, Content: w.Content, Timestamp: w.Timestamp}
	if len(w.Directive) > 0 && string(w.Directive) != "null" {
		d, err := DecodeDirective(w.Directive)
		if err != nil {
			return err
		}
		m.Directive = d
	}
	return nil
}

// CaptureNotification tells the visitor the agent learned something.
type CaptureNotification struct {
	Type  string `json:"type"`
	Label string `json:"label"`
	Value string `json:"value,omitempty"`
}

// AgentResponse is what a backend returns for one turn.
type AgentResponse struct {
	SessionID        string
	Message          string
	Directive        Directive
	SuggestedActions []string
	Confidence       float64
	Captures         []CaptureNotification
}
