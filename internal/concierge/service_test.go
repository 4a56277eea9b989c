package concierge

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Vovarama1992/scene-concierge/internal/agent"
	"github.com/Vovarama1992/scene-concierge/internal/catalog"
	"github.com/Vovarama1992/scene-concierge/internal/domain"
	"github.com/Vovarama1992/scene-concierge/internal/identity"
	"github.com/Vovarama1992/scene-concierge/internal/notify"
	"github.com/Vovarama1992/scene-concierge/internal/tasks"
)

var now = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

type gradients struct{ c *catalog.Catalog }

func (g gradients) Resolve(_ context.Context, req domain.BackgroundRequest) domain.Background {
	return domain.Background{Kind: domain.BackgroundGradient, Value: g.c.Gradient(req.Setting), Setting: req.Setting, Default: true}
}

type inlineTasks struct {
	mu    sync.Mutex
	names []string
}

func (q *inlineTasks) Submit(name string, fn tasks.Func) bool {
	q.mu.Lock()
	q.names = append(q.names, name)
	q.mu.Unlock()
	_ = fn(context.Background())
	return true
}

func (q *inlineTasks) count(name string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, v := range q.names {
		if v == name {
			n++
		}
	}
	return n
}

type failing struct{ *agent.Mock }

func (failing) SendMessage(context.Context, string) (*domain.AgentResponse, error) {
	return nil, errors.New("agent unavailable")
}

// blocking holds every non-welcome turn until released.
type blocking struct {
	*agent.Mock
	release chan struct{}
}

func (b blocking) SendMessage(ctx context.Context, text string) (*domain.AgentResponse, error) {
	if text != agent.WelcomeTrigger {
		<-b.release
	}
	return b.Mock.SendMessage(ctx, text)
}

type fixture struct {
	catalog    *catalog.Catalog
	store      *identity.FixtureStore
	tasks      *inlineTasks
	transcript *MemoryTranscript
	deps       Deps
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	c, err := catalog.Default()
	require.NoError(t, err)

	f := &fixture{
		catalog:    c,
		store:      identity.NewFixtureStore(c),
		tasks:      &inlineTasks{},
		transcript: NewMemoryTranscript(),
	}
	f.deps = Deps{
		Identity:    identity.NewResolver(identity.NewCatalogTags(c, 0), f.store, c, zap.NewNop()),
		Personas:    c,
		Agents:      func() agent.Backend { return agent.NewMock(c, 0) },
		Settings:    c,
		Backgrounds: gradients{c},
		Transcript:  f.transcript,
		Tasks:       f.tasks,
		NewToasts: func() *notify.Queue {
			return notify.NewQueue(time.Millisecond, time.Hour, 16, zap.NewNop())
		},
		Now: func() time.Time { return now },
	}
	return f
}

func (f *fixture) service(t *testing.T) Service {
	s := NewService(f.deps, "viewer-1", zap.NewNop())
	t.Cleanup(s.Close)
	return s
}

func TestKnownPersonaWelcome(t *testing.T) {
	f := newFixture(t)
	s := f.service(t)

	st, err := s.SelectPersona(context.Background(), "maria-santos")
	require.NoError(t, err)

	require.Len(t, st.Messages, 1)
	assert.Equal(t, domain.RoleAgent, st.Messages[0].Role)
	assert.Contains(t, st.Messages[0].Content, "Welcome back, Maria Santos")
	assert.Equal(t, domain.TierKnown, st.Tier)
	require.NotNil(t, st.Customer)
	assert.Equal(t, "Maria Santos", st.Customer.Name)
	assert.True(t, st.Scene.WelcomeActive)
	assert.Equal(t, f.catalog.SuggestedActions.Known, st.SuggestedActions)
}

func TestWhereIsMyOrder(t *testing.T) {
	f := newFixture(t)
	s := f.service(t)
	ctx := context.Background()

	_, err := s.SelectPersona(ctx, "maria-santos")
	require.NoError(t, err)

	st, err := s.SendMessage(ctx, "where is my order")
	require.NoError(t, err)

	require.Len(t, st.Messages, 3)
	require.NotNil(t, st.Display.OrderStatus)
	assert.Equal(t, "RPO-2026-0023", st.Display.OrderStatus.OrderID)
	assert.NotEmpty(t, st.SuggestedActions)
	assert.False(t, st.Scene.WelcomeActive)

	_, ok := st.Messages[2].Directive.(domain.ShowOrderStatus)
	assert.True(t, ok)
}

func TestSwitchAwayAndBackRestoresConversation(t *testing.T) {
	f := newFixture(t)
	s := f.service(t)
	ctx := context.Background()

	_, err := s.SelectPersona(ctx, "maria-santos")
	require.NoError(t, err)
	before, err := s.SendMessage(ctx, "Browse wind turbine components")
	require.NoError(t, err)
	require.Len(t, before.Messages, 3)
	assert.Equal(t, domain.LayoutProductGrid, before.Scene.Layout)

	anon, err := s.SelectPersona(ctx, "anonymous")
	require.NoError(t, err)
	assert.Empty(t, anon.Messages)
	assert.Equal(t, domain.TierAnonymous, anon.Tier)
	assert.Nil(t, anon.Customer)
	assert.Equal(t, domain.LayoutConversation, anon.Scene.Layout)

	after, err := s.SelectPersona(ctx, "maria-santos")
	require.NoError(t, err)
	assert.Equal(t, before.Messages, after.Messages)
	assert.Equal(t, before.SuggestedActions, after.SuggestedActions)
	assert.Equal(t, before.Scene, after.Scene)
	assert.Equal(t, []string{"maria-santos"}, s.Cached())

	summaries := f.store.Summaries()
	require.Len(t, summaries, 1)
	assert.Equal(t, "persona-maria-santos", summaries[0].CustomerID)
	assert.Contains(t, summaries[0].Summary, "Browse wind turbine components")

	// the restored agent session keeps going
	st, err := s.SendMessage(ctx, "what about the lead time")
	require.NoError(t, err)
	assert.Len(t, st.Messages, 5)
}

func TestInvalidateReplaysWelcome(t *testing.T) {
	f := newFixture(t)
	s := f.service(t)
	ctx := context.Background()

	_, err := s.SelectPersona(ctx, "maria-santos")
	require.NoError(t, err)
	_, err = s.SendMessage(ctx, "hello there")
	require.NoError(t, err)
	_, err = s.SelectPersona(ctx, "david-chen")
	require.NoError(t, err)

	s.Invalidate("maria-santos")
	st, err := s.SelectPersona(ctx, "maria-santos")
	require.NoError(t, err)
	require.Len(t, st.Messages, 1)
	assert.True(t, st.Scene.WelcomeActive)
}

func TestAnonymousWaitsForGreeting(t *testing.T) {
	f := newFixture(t)
	s := f.service(t)
	ctx := context.Background()

	st, err := s.SelectPersona(ctx, "anonymous")
	require.NoError(t, err)
	assert.Empty(t, st.Messages)
	assert.False(t, st.Scene.WelcomeActive)

	st, err = s.SendMessage(ctx, "hello")
	require.NoError(t, err)
	require.Len(t, st.Messages, 2)
	assert.Contains(t, st.Messages[1].Content, "Welcome to")
}

func TestRememberIdentifiesInPlace(t *testing.T) {
	f := newFixture(t)
	s := f.service(t)
	ctx := context.Background()

	_, err := s.SelectPersona(ctx, "anonymous")
	require.NoError(t, err)

	st, err := s.Remember(ctx, "Jo Park", "Jo@Example.com")
	require.NoError(t, err)
	require.Len(t, st.Messages, 2)
	assert.Equal(t, "My name is Jo Park and my email is Jo@Example.com", st.Messages[0].Content)
	assert.Equal(t, domain.TierKnown, st.Tier)
	require.NotNil(t, st.Customer)
	assert.Equal(t, "Jo Park", st.Customer.Name)
	assert.Equal(t, "jo@example.com", st.Customer.Email)
	assert.Equal(t, "anonymous", st.PersonaKey)

	require.Eventually(t, func() bool { return len(s.State().Toasts) == 2 }, time.Second, 5*time.Millisecond)

	st, err = s.Refresh(ctx)
	require.NoError(t, err)
	assert.Len(t, st.Messages, 2)
	assert.Equal(t, "Jo Park", st.Customer.Name)

	_, err = s.Remember(ctx, "", "x@y.z")
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestIdentifiedVisitorSurvivesSwitchAndRefresh(t *testing.T) {
	f := newFixture(t)
	s := f.service(t)
	ctx := context.Background()

	_, err := s.SelectPersona(ctx, "anonymous")
	require.NoError(t, err)
	_, err = s.Remember(ctx, "Jo Park", "jo@example.com")
	require.NoError(t, err)

	_, err = s.SelectPersona(ctx, "maria-santos")
	require.NoError(t, err)
	st, err := s.SelectPersona(ctx, "anonymous")
	require.NoError(t, err)
	require.NotNil(t, st.Customer)
	assert.Equal(t, "Jo Park", st.Customer.Name)

	st, err = s.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.TierKnown, st.Tier)
	require.NotNil(t, st.Customer)
	assert.Equal(t, "Jo Park", st.Customer.Name)
	assert.Equal(t, "jo@example.com", st.Customer.Email)
	assert.Len(t, st.Messages, 2)
}

func TestToastsDoNotFollowPersonaSwitch(t *testing.T) {
	f := newFixture(t)
	s := f.service(t)
	ctx := context.Background()

	_, err := s.SelectPersona(ctx, "anonymous")
	require.NoError(t, err)
	_, err = s.Remember(ctx, "Jo Park", "jo@example.com")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(s.State().Toasts) == 2 }, time.Second, 5*time.Millisecond)

	st, err := s.SelectPersona(ctx, "maria-santos")
	require.NoError(t, err)
	assert.Equal(t, "maria-santos", st.PersonaKey)
	leaked := func() bool {
		for _, toast := range s.State().Toasts {
			if toast.Value == "Jo Park" || toast.Value == "jo@example.com" {
				return true
			}
		}
		return false
	}
	assert.False(t, leaked())
	assert.Never(t, leaked, 50*time.Millisecond, 5*time.Millisecond)
}

func TestRefreshKeepsConversation(t *testing.T) {
	f := newFixture(t)
	s := f.service(t)
	ctx := context.Background()

	_, err := s.SelectPersona(ctx, "maria-santos")
	require.NoError(t, err)
	_, err = s.SendMessage(ctx, "Reorder equipment")
	require.NoError(t, err)

	st, err := s.Refresh(ctx)
	require.NoError(t, err)
	assert.Len(t, st.Messages, 3)
	assert.Equal(t, "Maria Santos", st.Customer.Name)

	fresh := f.service(t)
	_, err = fresh.Refresh(ctx)
	assert.ErrorIs(t, err, ErrNoPersona)
}

func TestAgentFailureBecomesApology(t *testing.T) {
	f := newFixture(t)
	f.deps.Agents = func() agent.Backend { return failing{agent.NewMock(f.catalog, 0)} }
	s := f.service(t)
	ctx := context.Background()

	st, err := s.SelectPersona(ctx, "maria-santos")
	require.NoError(t, err)
	require.Len(t, st.Messages, 1)
	assert.Equal(t, apology, st.Messages[0].Content)

	st, err = s.SendMessage(ctx, "hi")
	require.NoError(t, err)
	require.Len(t, st.Messages, 3)
	assert.Equal(t, apology, st.Messages[2].Content)
}

func TestSwitchDropsInFlightReply(t *testing.T) {
	f := newFixture(t)
	release := make(chan struct{})
	f.deps.Agents = func() agent.Backend { return blocking{agent.NewMock(f.catalog, 0), release} }
	s := f.service(t)
	ctx := context.Background()

	_, err := s.SelectPersona(ctx, "maria-santos")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := s.SendMessage(ctx, "Browse wind turbine components")
		done <- err
	}()
	require.Eventually(t, func() bool { return s.State().AgentTyping }, time.Second, 2*time.Millisecond)

	st, err := s.SelectPersona(ctx, "david-chen")
	require.NoError(t, err)
	close(release)
	assert.ErrorIs(t, <-done, ErrSuperseded)

	st = s.State()
	assert.Equal(t, "david-chen", st.PersonaKey)
	require.Len(t, st.Messages, 1)
	assert.Empty(t, st.Scene.Products)

	back, err := s.SelectPersona(ctx, "maria-santos")
	require.NoError(t, err)
	require.Len(t, back.Messages, 2)
	assert.Equal(t, domain.RoleUser, back.Messages[1].Role)
}

func TestSendRules(t *testing.T) {
	f := newFixture(t)
	s := f.service(t)
	ctx := context.Background()

	_, err := s.SendMessage(ctx, "hi")
	assert.ErrorIs(t, err, ErrNoPersona)
	_, err = s.SendMessage(ctx, "   ")
	assert.ErrorIs(t, err, ErrEmpty)
	_, err = s.SelectPersona(ctx, "nobody")
	assert.ErrorIs(t, err, catalog.ErrUnknownPersona)
}

func TestSceneControls(t *testing.T) {
	f := newFixture(t)
	s := f.service(t)
	ctx := context.Background()

	_, err := s.SelectPersona(ctx, "maria-santos")
	require.NoError(t, err)

	st := s.OpenCheckout()
	assert.True(t, st.Scene.CheckoutActive)
	assert.Equal(t, domain.ChatMinimized, st.Scene.ChatPosition)

	st = s.CloseCheckout()
	assert.False(t, st.Scene.CheckoutActive)

	st = s.ResetScene()
	assert.Equal(t, domain.LayoutConversation, st.Scene.Layout)
	assert.False(t, st.Scene.WelcomeActive)
	assert.Len(t, st.Messages, 1)
}

func TestTranscriptIsPersisted(t *testing.T) {
	f := newFixture(t)
	s := f.service(t)
	ctx := context.Background()

	_, err := s.SelectPersona(ctx, "maria-santos")
	require.NoError(t, err)
	_, err = s.SendMessage(ctx, "where is my order")
	require.NoError(t, err)

	msgs, err := f.transcript.GetHistory(ctx, "viewer-1", "maria-santos")
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	_, ok := msgs[2].Directive.(domain.ShowOrderStatus)
	assert.True(t, ok)
	assert.Equal(t, 3, f.tasks.count("save-transcript"))
}

func TestHubSeparatesViewers(t *testing.T) {
	f := newFixture(t)
	h := NewHub(f.deps, HubLimits{}, zap.NewNop())
	defer h.Close()
	ctx := context.Background()

	_, err := h.Get("a").SelectPersona(ctx, "maria-santos")
	require.NoError(t, err)

	assert.Same(t, h.Get("a"), h.Get("a"))
	assert.Empty(t, h.Get("b").State().PersonaKey)
	assert.Equal(t, "maria-santos", h.Get("a").State().PersonaKey)
	assert.Same(t, h.Get(""), h.Get(DefaultViewer))
}

type hubClock struct {
	mu sync.Mutex
	at time.Time
}

func (c *hubClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.at
}

func (c *hubClock) advance(d time.Duration) {
	c.mu.Lock()
	c.at = c.at.Add(d)
	c.mu.Unlock()
}

// hubWithClock records every toast queue the hub's sessions create so a
// test can tell whether a session was closed.
func hubWithClock(t *testing.T, limits HubLimits) (*Hub, *hubClock, *[]*notify.Queue) {
	t.Helper()
	f := newFixture(t)
	clock := &hubClock{at: now}
	var (
		mu     sync.Mutex
		queues []*notify.Queue
	)
	deps := f.deps
	deps.Now = clock.now
	deps.NewToasts = func() *notify.Queue {
		q := notify.NewQueue(time.Millisecond, time.Hour, 16, zap.NewNop())
		mu.Lock()
		queues = append(queues, q)
		mu.Unlock()
		return q
	}
	h := NewHub(deps, limits, zap.NewNop())
	t.Cleanup(h.Close)
	return h, clock, &queues
}

func closed(q *notify.Queue) bool {
	return !q.Push(domain.CaptureNotification{Type: "name", Label: "Name", Value: "x"})
}

func TestHubEvictsLeastRecentlyUsed(t *testing.T) {
	h, clock, queues := hubWithClock(t, HubLimits{MaxViewers: 2})

	a := h.Get("a")
	clock.advance(time.Second)
	h.Get("b")
	clock.advance(time.Second)
	assert.Same(t, a, h.Get("a"))
	clock.advance(time.Second)
	h.Get("c")

	assert.Equal(t, 2, h.Len())
	require.Len(t, *queues, 3)
	assert.False(t, closed((*queues)[0]), "a was used more recently than b")
	assert.True(t, closed((*queues)[1]))
	clock.advance(time.Second)
	assert.Same(t, a, h.Get("a"))

	clock.advance(time.Second)
	h.Get("b")
	assert.Equal(t, 2, h.Len())
	assert.True(t, closed((*queues)[2]), "c became the oldest")
}

func TestHubExpiresIdleSessions(t *testing.T) {
	h, clock, queues := hubWithClock(t, HubLimits{IdleTTL: time.Minute})
	ctx := context.Background()

	a := h.Get("a")
	_, err := a.SelectPersona(ctx, "maria-santos")
	require.NoError(t, err)
	clock.advance(40 * time.Second)
	h.Get("b")
	clock.advance(30 * time.Second)

	fresh := h.Get("a")
	assert.NotSame(t, a, fresh)
	assert.Empty(t, fresh.State().PersonaKey)
	assert.True(t, closed((*queues)[0]))
	assert.False(t, closed((*queues)[1]), "b has been idle under a minute")
	assert.Equal(t, 2, h.Len())
}

func TestHubWithoutLimitsKeepsEverySession(t *testing.T) {
	h, clock, queues := hubWithClock(t, HubLimits{})

	for _, id := range []string{"a", "b", "c", "d"} {
		h.Get(id)
		clock.advance(time.Hour)
	}
	assert.Equal(t, 4, h.Len())
	for _, q := range *queues {
		assert.False(t, closed(q))
	}
}
