package agent

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/Vovarama1992/scene-concierge/internal/domain"
	"github.com/Vovarama1992/scene-concierge/internal/sessionctx"
)

// WelcomeTrigger is sent as the first message of a fresh session.
const WelcomeTrigger = "[WELCOME]"

var (
	ErrNoSession    = errors.New("agent session not initialized")
	ErrBadDirective = errors.New("bad ui directive")
)

// Handle is what a snapshot needs to resume a backend session. State is
// opaque backend-owned data.
type Handle struct {
	SessionID  string          `json:"sessionId"`
	SequenceID int64           `json:"sequenceId"`
	State      json.RawMessage `json:"state,omitempty"`
}

// Backend is the conversational agent. Real and mock implementations are
// interchangeable behind it.
type Backend interface {
	InitSession(ctx context.Context, sc *sessionctx.SessionContext) (Handle, error)
	SendMessage(ctx context.Context, text string) (*domain.AgentResponse, error)
	Snapshot() Handle
	Restore(ctx context.Context, h Handle) error
	AccessToken(ctx context.Context) (string, error)
}

// ContextUpdater is implemented by backends that can take a rebuilt
// context without a new session.
type ContextUpdater interface {
	UpdateContext(sc *sessionctx.SessionContext)
}

// Factory makes one backend per persona session.
type Factory func() Backend

// Products hydrates product references coming back from a backend.
type Products interface {
	Product(id string) (domain.Product, bool)
}
