package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Vovarama1992/scene-concierge/internal/catalog"
	"github.com/Vovarama1992/scene-concierge/internal/domain"
	"github.com/Vovarama1992/scene-concierge/internal/sessionctx"
)

// mockState travels inside Handle.State so a restored session answers
// follow-ups the same way.
type mockState struct {
	LastShown      []string `json:"lastShownProductIds,omitempty"`
	CurrentProduct string   `json:"currentProductId,omitempty"`
	HasGreeted     bool     `json:"hasGreeted"`
}

// Mock answers from a fixed rule table. Every instance owns its state;
// nothing is shared between sessions.
type Mock struct {
	catalog *catalog.Catalog
	latency time.Duration

	mu        sync.Mutex
	sessionID string
	seq       int64
	sc        *sessionctx.SessionContext
	state     mockState
}

func NewMock(c *catalog.Catalog, latency time.Duration) *Mock {
	return &Mock{catalog: c, latency: latency}
}

func (m *Mock) InitSession(_ context.Context, sc *sessionctx.SessionContext) (Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessionID = "mock-" + uuid.NewString()
	m.seq = 0
	m.sc = sc
	m.state = mockState{}
	return m.snapshotLocked(), nil
}

func (m *Mock) UpdateContext(sc *sessionctx.SessionContext) {
	m.mu.Lock()
	m.sc = sc
	m.mu.Unlock()
}

func (m *Mock) SendMessage(ctx context.Context, text string) (*domain.AgentResponse, error) {
	if m.latency > 0 {
		t := time.NewTimer(m.latency)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-t.C:
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sessionID == "" {
		return nil, ErrNoSession
	}
	m.seq++

	r := m.respond(text)
	if r.confidence == 0 {
		r.confidence = 0.95
	}
	return &domain.AgentResponse{
		SessionID:        m.sessionID,
		Message:          r.message,
		Directive:        r.directive,
		SuggestedActions: append([]string{}, r.actions...),
		Confidence:       r.confidence,
		Captures:         r.captures,
	}, nil
}

func (m *Mock) respond(text string) reply {
	if text == WelcomeTrigger {
		if r, ok := m.welcome(); ok {
			return r
		}
	}
	if r, ok := match(leading, m, text); ok {
		return r
	}
	if t, ok := m.catalog.MatchTopic(text); ok {
		return m.topic(t)
	}
	if r, ok := match(trailing, m, text); ok {
		return r
	}
	r := m.canned("fallback", "I can help you find the right products. What are you working on?")
	r.confidence = 0.80
	return r
}

func (m *Mock) Snapshot() Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Mock) snapshotLocked() Handle {
	state, _ := json.Marshal(m.state)
	return Handle{SessionID: m.sessionID, SequenceID: m.seq, State: state}
}

func (m *Mock) Restore(_ context.Context, h Handle) error {
	if h.SessionID == "" {
		return ErrNoSession
	}
	var st mockState
	if len(h.State) > 0 {
		if err := json.Unmarshal(h.State, &st); err != nil {
			return fmt.Errorf("restore mock state: %w", err)
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessionID = h.SessionID
	m.seq = h.SequenceID
	m.state = st
	return nil
}

func (m *Mock) AccessToken(context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sessionID == "" {
		return "", ErrNoSession
	}
	return "mock-token-" + m.sessionID, nil
}
