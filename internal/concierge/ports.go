package concierge

import (
	"context"
	"errors"
	"time"

	"github.com/Vovarama1992/scene-concierge/internal/agent"
	"github.com/Vovarama1992/scene-concierge/internal/catalog"
	"github.com/Vovarama1992/scene-concierge/internal/domain"
	"github.com/Vovarama1992/scene-concierge/internal/identity"
	"github.com/Vovarama1992/scene-concierge/internal/notify"
	"github.com/Vovarama1992/scene-concierge/internal/scene"
	"github.com/Vovarama1992/scene-concierge/internal/tasks"
)

var (
	// ErrSuperseded means a persona switch happened while the call was in
	// flight; its result was discarded.
	ErrSuperseded = errors.New("concierge: superseded by a newer session")
	ErrNoPersona  = errors.New("concierge: no persona selected")
	ErrEmpty      = errors.New("concierge: empty message")
)

const apology = "I'm sorry, I encountered an issue. Could you try again?"

// Identity is the identity resolver as the orchestrator uses it.
type Identity interface {
	Resolve(ctx context.Context, personaKey string) (*identity.Result, error)
	IdentifyByEmail(ctx context.Context, email, name string) (*identity.Result, error)
	WriteChatSummary(ctx context.Context, customerID, sessionID, summary string) error
}

type Personas interface {
	Persona(key string) (catalog.Persona, error)
	Stubs() []catalog.PersonaStub
	BiasCategories(interests []string) []string
}

// TranscriptRow is one persisted message with where it came from.
type TranscriptRow struct {
	ViewerID   string
	PersonaKey string
	SessionID  string
	Message    domain.Message
}

// Transcript is the audit log of every exchanged message.
type Transcript interface {
	SaveMessage(ctx context.Context, row *TranscriptRow) error
	GetHistory(ctx context.Context, viewerID, personaKey string) ([]domain.Message, error)
}

type Submitter interface {
	Submit(name string, fn tasks.Func) bool
}

// Deps is what every viewer session is built from.
type Deps struct {
	Identity    Identity
	Personas    Personas
	Agents      agent.Factory
	Settings    scene.Settings
	Backgrounds scene.BackgroundSource
	Transcript  Transcript
	Tasks       Submitter
	NewToasts   func() *notify.Queue
	Now         func() time.Time
}

// Display holds the data-only directives the presentation layer renders
// next to the scene.
type Display struct {
	OrderStatus    *domain.ShowOrderStatus    `json:"orderStatus,omitempty"`
	AccountSummary *domain.ShowAccountSummary `json:"accountSummary,omitempty"`
}

type CustomerView struct {
	ID      string `json:"id,omitempty"`
	Name    string `json:"name"`
	Company string `json:"company,omitempty"`
	Email   string `json:"email,omitempty"`
}

// State is everything the presentation layer needs for one viewer.
type State struct {
	PersonaKey       string              `json:"personaKey,omitempty"`
	Tier             domain.IdentityTier `json:"identityTier"`
	Customer         *CustomerView       `json:"customer,omitempty"`
	Messages         []domain.Message    `json:"messages"`
	SuggestedActions []string            `json:"suggestedActions"`
	Scene            domain.SceneState   `json:"scene"`
	Display          Display             `json:"display"`
	Toasts           []notify.Toast      `json:"toasts"`
	AgentTyping      bool                `json:"agentTyping"`
	Error            string              `json:"error,omitempty"`
}

// Service is one viewer's concierge session.
type Service interface {
	SelectPersona(ctx context.Context, key string) (State, error)
	SendMessage(ctx context.Context, text string) (State, error)
	Refresh(ctx context.Context) (State, error)
	Remember(ctx context.Context, name, email string) (State, error)
	Invalidate(key string)
	Cached() []string
	State() State

	OpenCheckout() State
	CloseCheckout() State
	ResetScene() State
	Close()
}
