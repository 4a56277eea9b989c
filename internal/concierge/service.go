package concierge

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Vovarama1992/scene-concierge/internal/agent"
	"github.com/Vovarama1992/scene-concierge/internal/domain"
	"github.com/Vovarama1992/scene-concierge/internal/identity"
	"github.com/Vovarama1992/scene-concierge/internal/logging"
	"github.com/Vovarama1992/scene-concierge/internal/notify"
	"github.com/Vovarama1992/scene-concierge/internal/scene"
	"github.com/Vovarama1992/scene-concierge/internal/session"
	"github.com/Vovarama1992/scene-concierge/internal/sessionctx"
)

type service struct {
	deps     Deps
	viewerID string
	logger   *zap.Logger

	cache    *session.Cache
	director *scene.Director
	toasts   *notify.Queue

	mu         sync.Mutex
	epoch      uint64
	personaKey string
	customer   *domain.CustomerProfile
	sc         *sessionctx.SessionContext
	backend    agent.Backend
	messages   []domain.Message
	actions    []string
	display    Display
	typing     int
	errText    string
	// identified holds the email the visitor gave mid-conversation; refresh
	// re-fetches by it instead of by persona.
	identified     string
	identifiedName string
	// closed once the welcome for the current epoch has been applied
	welcome chan struct{}
}

func NewService(deps Deps, viewerID string, logger *zap.Logger) Service {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	s := &service{
		deps:     deps,
		viewerID: viewerID,
		logger:   logger.Named("concierge").With(zap.String("viewer", viewerID)),
		cache:    session.NewCache(),
		director: scene.NewDirector(deps.Settings, deps.Backgrounds, logger),
	}
	if deps.NewToasts != nil {
		s.toasts = deps.NewToasts()
	}
	return s
}

// SelectPersona switches the active persona. A persona visited before is
// restored from its snapshot without a second welcome.
func (s *service) SelectPersona(ctx context.Context, key string) (State, error) {
	if _, err := s.deps.Personas.Persona(key); err != nil {
		return s.State(), err
	}

	s.mu.Lock()
	if key == s.personaKey && s.backend != nil {
		defer s.mu.Unlock()
		return s.stateLocked(), nil
	}
	s.saveOutgoingLocked()
	if s.toasts != nil {
		s.toasts.Clear()
	}

	s.epoch++
	ep := s.epoch
	gate := make(chan struct{})
	defer close(gate)
	s.welcome = gate
	s.personaKey = key
	s.errText = ""
	s.display = Display{}
	s.identified, s.identifiedName = "", ""

	if snap, ok := s.cache.Restore(key); ok {
		s.messages = snap.Messages
		s.actions = snap.SuggestedActions
		s.customer = snap.Customer
		s.sc = snap.Context
		s.identified, s.identifiedName = snap.IdentifiedEmail, snap.IdentifiedName
		s.backend = nil
		s.director.Restore(snap.Scene)
		s.mu.Unlock()
		s.logger.Info("persona restored", zap.String("persona", key), zap.Int("messages", len(snap.Messages)))
		return s.resume(ctx, ep, snap)
	}

	s.messages = nil
	s.actions = nil
	s.customer = nil
	s.sc = nil
	s.backend = nil
	s.director.Reset()
	s.mu.Unlock()

	return s.start(ctx, ep, key)
}

// resume reattaches a fresh backend instance to the snapshotted session.
func (s *service) resume(ctx context.Context, ep uint64, snap session.Snapshot) (State, error) {
	backend := s.deps.Agents()
	if err := backend.Restore(ctx, snap.Agent); err != nil {
		s.logger.Warn("agent session restore failed, starting a new one", zap.Error(err))
		if _, err := backend.InitSession(ctx, snap.Context); err != nil {
			s.logger.Warn("agent session init failed", zap.Error(err))
		}
	}
	if u, ok := backend.(agent.ContextUpdater); ok {
		u.UpdateContext(snap.Context)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if ep != s.epoch {
		return s.stateLocked(), ErrSuperseded
	}
	s.backend = backend
	return s.stateLocked(), nil
}

// start runs identity resolution, context build, agent session and the
// welcome exchange.
func (s *service) start(ctx context.Context, ep uint64, key string) (State, error) {
	res, err := s.deps.Identity.Resolve(ctx, key)
	if err != nil {
		s.logger.Error("identity resolution failed", zap.String("persona", key), zap.Error(err))
		s.mu.Lock()
		defer s.mu.Unlock()
		if ep != s.epoch {
			return s.stateLocked(), ErrSuperseded
		}
		s.errText = "We couldn't recognise this visitor. Showing the default experience."
		return s.stateLocked(), err
	}

	sc := s.build(res.Profile)
	backend := s.deps.Agents()
	if _, err := backend.InitSession(ctx, sc); err != nil {
		s.logger.Warn("agent session init failed", zap.String("persona", key), zap.Error(err))
	}

	s.mu.Lock()
	if ep != s.epoch {
		s.mu.Unlock()
		return s.State(), ErrSuperseded
	}
	s.customer = res.Profile
	s.sc = sc
	s.backend = backend
	s.mu.Unlock()

	// anonymous visitors stay on the default experience until they speak
	if res.Resolution.Tier == domain.TierAnonymous {
		return s.State(), nil
	}

	actx := agent.WithBackend(ctx, backend)
	resp, err := backend.SendMessage(actx, agent.WelcomeTrigger)

	s.mu.Lock()
	if ep != s.epoch {
		s.mu.Unlock()
		return s.State(), ErrSuperseded
	}
	var identify *domain.IdentifyCustomer
	if err != nil {
		s.logger.Warn("welcome failed", zap.String("persona", key), zap.Error(err))
		s.appendLocked(domain.RoleAgent, apology, nil)
	} else {
		identify = s.applyLocked(actx, resp)
	}
	st := s.stateLocked()
	s.mu.Unlock()

	if identify != nil {
		return s.identify(ctx, ep, *identify)
	}
	return st, nil
}

// SendMessage waits for the welcome, then runs one conversational turn.
// A failed backend call becomes an apology in the transcript.
func (s *service) SendMessage(ctx context.Context, text string) (State, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return s.State(), ErrEmpty
	}

	s.mu.Lock()
	gate := s.welcome
	s.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return s.State(), ctx.Err()
		}
	}

	s.mu.Lock()
	if s.backend == nil {
		s.mu.Unlock()
		return s.State(), ErrNoPersona
	}
	ep := s.epoch
	backend := s.backend
	s.appendLocked(domain.RoleUser, text, nil)
	s.director.DismissWelcome()
	s.typing++
	s.mu.Unlock()

	actx := agent.WithBackend(ctx, backend)
	resp, err := backend.SendMessage(actx, text)

	s.mu.Lock()
	s.typing--
	if ep != s.epoch {
		s.mu.Unlock()
		return s.State(), ErrSuperseded
	}
	var identify *domain.IdentifyCustomer
	if err != nil {
		s.logger.Warn("agent call failed", zap.String("text", logging.Short(text)), zap.Error(err))
		s.appendLocked(domain.RoleAgent, apology, nil)
	} else {
		identify = s.applyLocked(actx, resp)
	}
	st := s.stateLocked()
	s.mu.Unlock()

	if identify != nil {
		return s.identify(ctx, ep, *identify)
	}
	return st, nil
}

// applyLocked records an agent reply and interprets its directive. An
// identify-customer directive is returned for the caller to act on
// outside the lock.
func (s *service) applyLocked(ctx context.Context, resp *domain.AgentResponse) *domain.IdentifyCustomer {
	s.appendLocked(domain.RoleAgent, resp.Message, resp.Directive)
	s.actions = append([]string{}, resp.SuggestedActions...)
	if s.toasts != nil && len(resp.Captures) > 0 {
		s.toasts.Push(resp.Captures...)
	}

	out, err := s.director.Apply(ctx, resp.Directive)
	if err != nil {
		s.logger.Warn("directive not applied", zap.Error(err))
		return nil
	}
	switch d := out.Passthrough.(type) {
	case domain.ShowOrderStatus:
		s.display.OrderStatus = &d
	case domain.ShowAccountSummary:
		s.display.AccountSummary = &d
	case domain.IdentifyCustomer:
		return &d
	}
	return nil
}

// identify accepts the visitor's self-reported email and refreshes the
// active session in place.
func (s *service) identify(ctx context.Context, ep uint64, d domain.IdentifyCustomer) (State, error) {
	res, err := s.deps.Identity.IdentifyByEmail(ctx, d.Email, d.Name)
	if err != nil {
		s.logger.Warn("identify by email failed", zap.Error(err))
		return s.State(), nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if ep != s.epoch {
		return s.stateLocked(), ErrSuperseded
	}
	s.identified, s.identifiedName = d.Email, d.Name
	s.applyProfileLocked(res.Profile)
	s.logger.Info("visitor identified", zap.String("customer_id", res.Profile.ID))
	return s.stateLocked(), nil
}

// Refresh re-fetches the active profile without touching the
// conversation or the welcome.
func (s *service) Refresh(ctx context.Context) (State, error) {
	s.mu.Lock()
	key, email, name, ep := s.personaKey, s.identified, s.identifiedName, s.epoch
	s.mu.Unlock()
	if key == "" {
		return s.State(), ErrNoPersona
	}

	var res *identity.Result
	var err error
	if email != "" {
		res, err = s.deps.Identity.IdentifyByEmail(ctx, email, name)
	} else {
		res, err = s.deps.Identity.Resolve(ctx, key)
	}
	if err != nil {
		return s.State(), fmt.Errorf("refresh %s: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if ep != s.epoch {
		return s.stateLocked(), ErrSuperseded
	}
	s.applyProfileLocked(res.Profile)
	return s.stateLocked(), nil
}

// Remember turns the "remember me" form into the sentence the agent
// recognises.
func (s *service) Remember(ctx context.Context, name, email string) (State, error) {
	name, email = strings.TrimSpace(name), strings.TrimSpace(email)
	if name == "" || email == "" {
		return s.State(), ErrEmpty
	}
	return s.SendMessage(ctx, fmt.Sprintf("My name is %s and my email is %s", name, email))
}

func (s *service) Invalidate(key string) {
	s.cache.Invalidate(key)
}

func (s *service) Cached() []string {
	return s.cache.Keys()
}

func (s *service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *service) OpenCheckout() State {
	s.director.OpenCheckout()
	return s.State()
}

func (s *service) CloseCheckout() State {
	s.director.CloseCheckout()
	return s.State()
}

func (s *service) ResetScene() State {
	s.director.Reset()
	return s.State()
}

func (s *service) Close() {
	if s.toasts != nil {
		s.toasts.Close()
	}
}

func (s *service) build(p *domain.CustomerProfile) *sessionctx.SessionContext {
	return sessionctx.Build(p, sessionctx.Options{Now: s.deps.Now(), Biaser: s.deps.Personas})
}

func (s *service) applyProfileLocked(p *domain.CustomerProfile) {
	s.customer = p
	s.sc = s.build(p)
	if u, ok := s.backend.(agent.ContextUpdater); ok {
		u.UpdateContext(s.sc)
	}
}

func (s *service) appendLocked(role domain.Role, content string, d domain.Directive) {
	m := domain.Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: s.deps.Now(),
		Directive: d,
	}
	s.messages = append(s.messages, m)
	s.persist(m)
}

func (s *service) persist(m domain.Message) {
	if s.deps.Transcript == nil || s.deps.Tasks == nil {
		return
	}
	row := &TranscriptRow{ViewerID: s.viewerID, PersonaKey: s.personaKey, Message: m}
	if s.backend != nil {
		row.SessionID = s.backend.Snapshot().SessionID
	}
	s.deps.Tasks.Submit("save-transcript", func(ctx context.Context) error {
		return s.deps.Transcript.SaveMessage(ctx, row)
	})
}

// saveOutgoingLocked snapshots the active persona if anything was said and
// queues a chat summary for known customers.
func (s *service) saveOutgoingLocked() {
	if s.personaKey == "" || len(s.messages) == 0 {
		return
	}
	snap := session.Snapshot{
		Messages:         s.messages,
		SuggestedActions: s.actions,
		Scene:            s.director.State(),
		Customer:         s.customer,
		Context:          s.sc,
		IdentifiedEmail:  s.identified,
		IdentifiedName:   s.identifiedName,
	}
	if s.backend != nil {
		snap.Agent = s.backend.Snapshot()
	}
	s.cache.Save(s.personaKey, snap)

	if s.customer == nil || s.customer.Tier() != domain.TierKnown || s.deps.Tasks == nil {
		return
	}
	customerID, sessionID := s.customer.ID, snap.Agent.SessionID
	summary := summarize(s.messages)
	s.deps.Tasks.Submit("chat-summary", func(ctx context.Context) error {
		return s.deps.Identity.WriteChatSummary(ctx, customerID, sessionID, summary)
	})
}

func (s *service) stateLocked() State {
	st := State{
		PersonaKey:       s.personaKey,
		Tier:             s.customer.Tier(),
		Messages:         append([]domain.Message{}, s.messages...),
		SuggestedActions: append([]string{}, s.actions...),
		Scene:            s.director.State(),
		Display:          s.display,
		Toasts:           []notify.Toast{},
		AgentTyping:      s.typing > 0,
		Error:            s.errText,
	}
	if s.customer != nil && s.customer.Tier() == domain.TierKnown {
		st.Customer = &CustomerView{
			ID:      s.customer.ID,
			Name:    s.customer.Name,
			Company: s.customer.Company,
			Email:   s.customer.Email,
		}
	}
	if s.toasts != nil {
		st.Toasts = s.toasts.Visible()
	}
	return st
}

// summarize condenses what the customer asked about.
func summarize(msgs []domain.Message) string {
	var asked []string
	for _, m := range msgs {
		if m.Role == domain.RoleUser {
			asked = append(asked, m.Content)
		}
	}
	if len(asked) == 0 {
		return fmt.Sprintf("Concierge session with %d agent messages and no customer questions.", len(msgs))
	}
	return logging.Short(fmt.Sprintf("Concierge session, %d messages. Customer asked: %s", len(msgs), strings.Join(asked, "; ")))
}
