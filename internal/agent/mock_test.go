package agent

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vovarama1992/scene-concierge/internal/catalog"
	"github.com/Vovarama1992/scene-concierge/internal/domain"
	"github.com/Vovarama1992/scene-concierge/internal/sessionctx"
)

var now = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.Default()
	require.NoError(t, err)
	return c
}

func mariaContext(t *testing.T, c *catalog.Catalog) *sessionctx.SessionContext {
	t.Helper()
	p, ok := c.FixtureProfile("MRK-MS-001")
	require.True(t, ok)
	p.Identity = &domain.IdentityResolution{VisitorKey: "maria-santos", Tier: domain.TierKnown, ResolvedID: "MRK-MS-001"}
	return sessionctx.Build(p, sessionctx.Options{Now: now, Biaser: c})
}

func appendedContext(t *testing.T, c *catalog.Catalog) *sessionctx.SessionContext {
	t.Helper()
	persona, err := c.Persona("pacific-energy-group")
	require.NoError(t, err)
	p := &domain.CustomerProfile{
		ID:              "MRK-PEG-006",
		Name:            "Guest",
		Identity:        &domain.IdentityResolution{VisitorKey: "pacific-energy-group", Tier: domain.TierAppended, ResolvedID: "MRK-PEG-006"},
		AppendedProfile: persona.Appended,
	}
	return sessionctx.Build(p, sessionctx.Options{Now: now, Biaser: c})
}

func started(t *testing.T, c *catalog.Catalog, sc *sessionctx.SessionContext) *Mock {
	t.Helper()
	m := NewMock(c, 0)
	_, err := m.InitSession(context.Background(), sc)
	require.NoError(t, err)
	return m
}

func send(t *testing.T, m *Mock, text string) *domain.AgentResponse {
	t.Helper()
	resp, err := m.SendMessage(context.Background(), text)
	require.NoError(t, err)
	return resp
}

func TestMockWelcomeKnown(t *testing.T) {
	c := testCatalog(t)
	m := started(t, c, mariaContext(t, c))

	resp := send(t, m, WelcomeTrigger)
	w, ok := resp.Directive.(domain.WelcomeScene)
	require.True(t, ok)
	assert.Equal(t, "Welcome back, Maria Santos.", w.Message)
	assert.Contains(t, resp.Message, "Horizon Wind Partners")
	assert.Contains(t, resp.Message, "Gold")
	assert.Contains(t, w.Subtext, "2 open orders")
	assert.Equal(t, c.SuggestedActions.Known, resp.SuggestedActions)

	again := send(t, m, WelcomeTrigger)
	assert.Nil(t, again.Directive)
}

func TestMockWelcomeAppendedDoesNotEchoSignals(t *testing.T) {
	c := testCatalog(t)
	m := started(t, c, appendedContext(t, c))

	resp := send(t, m, WelcomeTrigger)
	w, ok := resp.Directive.(domain.WelcomeScene)
	require.True(t, ok)

	for _, secret := range []string{"Renewable Energy Development", "West US", "IPP", "$200M", "500-1000", "PPA structuring"} {
		assert.NotContains(t, resp.Message, secret)
		assert.NotContains(t, w.Message, secret)
		assert.NotContains(t, w.Subtext, secret)
	}
	assert.Contains(t, w.Subtext, "energy storage")
	assert.Equal(t, "Browse energy storage", resp.SuggestedActions[0])
}

func TestMockWelcomeAnonymous(t *testing.T) {
	c := testCatalog(t)
	m := started(t, c, nil)

	resp := send(t, m, "hello")
	_, ok := resp.Directive.(domain.WelcomeScene)
	assert.True(t, ok)
	assert.InDelta(t, 0.85, resp.Confidence, 0.001)

	resp = send(t, m, "hello")
	assert.Nil(t, resp.Directive)
	assert.True(t, strings.HasPrefix(resp.Message, "Hello!"))
}

const beautyCatalog = `
brand: Lumen Beauty
defaultGradient: "linear-gradient(135deg, #fce4ec 0%, #f8bbd0 100%)"
suggestedActions:
  discovery: [Browse skincare, Find my shade]
script:
  offering: skincare, makeup, and fragrance
  offeringSubtext: Clean beauty, matched to you.
  topics:
    - pattern: serum|moistur
      category: skincare
      label: skincare picks
      setting: neutral
      actions: [Add to bag]
  replies:
    fallback:
      message: Tell me about your routine and I'll suggest something.
products:
  - id: serum-vitc
    name: Vitamin C Serum
    brand: Lumen
    category: skincare
    price: 48
`

func TestMockCopyComesFromCatalog(t *testing.T) {
	c, err := catalog.Parse([]byte(beautyCatalog))
	require.NoError(t, err)
	m := started(t, c, nil)

	resp := send(t, m, WelcomeTrigger)
	w, ok := resp.Directive.(domain.WelcomeScene)
	require.True(t, ok)
	assert.Contains(t, resp.Message, "Lumen Beauty")
	assert.Contains(t, resp.Message, "skincare, makeup, and fragrance")
	assert.Equal(t, "Clean beauty, matched to you.", w.Subtext)

	resp = send(t, m, "I need a new serum")
	show, ok := resp.Directive.(domain.ShowProducts)
	require.True(t, ok)
	require.Len(t, show.Products, 1)
	assert.Equal(t, "serum-vitc", show.Products[0].ID)
	assert.Contains(t, resp.Message, "Here are our skincare picks")
	assert.Equal(t, []string{"Add to bag"}, resp.SuggestedActions)

	resp = send(t, m, "tell me something surprising")
	assert.Equal(t, "Tell me about your routine and I'll suggest something.", resp.Message)
	assert.Equal(t, []string{"Browse skincare", "Find my shade"}, resp.SuggestedActions)

	for _, word := range []string{"wind", "solar", "turbine"} {
		assert.NotContains(t, strings.ToLower(resp.Message), word)
	}
}

func TestMockWhereIsMyOrder(t *testing.T) {
	c := testCatalog(t)
	m := started(t, c, mariaContext(t, c))

	resp := send(t, m, "where is my order")
	status, ok := resp.Directive.(domain.ShowOrderStatus)
	require.True(t, ok)
	assert.Equal(t, "RPO-2026-0023", status.OrderID)
	assert.Equal(t, "processing", status.Status)
	require.Len(t, status.LineItems, 1)
	assert.Equal(t, 12, status.LineItems[0].Quantity)
	require.NotEmpty(t, resp.SuggestedActions)
	assert.Equal(t, "Track order RPO-2026-0023", resp.SuggestedActions[0])
	assert.Contains(t, resp.Message, "RPO-2025-1112")
}

func TestMockOrderWithoutActivity(t *testing.T) {
	c := testCatalog(t)
	m := started(t, c, nil)

	resp := send(t, m, "where is my order")
	assert.Nil(t, resp.Directive)
	assert.Contains(t, resp.Message, "PO number")
}

func TestMockReorderUsesPurchaseHistory(t *testing.T) {
	c := testCatalog(t)
	m := started(t, c, mariaContext(t, c))

	resp := send(t, m, "Reorder equipment")
	show, ok := resp.Directive.(domain.ShowProducts)
	require.True(t, ok)
	ids := make([]string, 0, len(show.Products))
	for _, p := range show.Products {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"wt-blade-vestas", "wt-gearbox-zf", "wt-tower-section-80m"}, ids)
}

func TestMockAccountSummary(t *testing.T) {
	c := testCatalog(t)
	m := started(t, c, mariaContext(t, c))

	resp := send(t, m, "how is my account standing")
	sum, ok := resp.Directive.(domain.ShowAccountSummary)
	require.True(t, ok)
	assert.Equal(t, 4, sum.TotalOrders)
	assert.Equal(t, 2, sum.OpenOrders)
	assert.Equal(t, "Gold", sum.AccountTier)

	anon := started(t, c, nil)
	resp = send(t, anon, "show my account")
	assert.Nil(t, resp.Directive)
}

func TestMockIdentify(t *testing.T) {
	c := testCatalog(t)
	m := started(t, c, nil)

	resp := send(t, m, "My name is Jo Park and my email is Jo.Park@Example.com")
	id, ok := resp.Directive.(domain.IdentifyCustomer)
	require.True(t, ok)
	assert.Equal(t, "jo.park@example.com", id.Email)
	assert.Equal(t, "Jo Park", id.Name)
	require.Len(t, resp.Captures, 2)
	assert.Equal(t, "name", resp.Captures[0].Type)
	assert.Equal(t, "email", resp.Captures[1].Type)

	resp = send(t, m, "you can reach me at ops@grid.io")
	id, ok = resp.Directive.(domain.IdentifyCustomer)
	require.True(t, ok)
	assert.Equal(t, "ops@grid.io", id.Email)
}

func TestMockCategoriesAndReset(t *testing.T) {
	c := testCatalog(t)
	m := started(t, c, nil)

	resp := send(t, m, "Browse wind turbine components")
	show, ok := resp.Directive.(domain.ShowProducts)
	require.True(t, ok)
	assert.Len(t, show.Products, 3)
	for _, p := range show.Products {
		assert.Equal(t, "wind-turbine", p.Category)
	}

	resp = send(t, m, "thanks, bye")
	assert.Equal(t, domain.ResetScene{}, resp.Directive)
	assert.Empty(t, resp.SuggestedActions)
	assert.NotNil(t, resp.SuggestedActions)
}

func TestMockStateIsPerSession(t *testing.T) {
	c := testCatalog(t)
	a := started(t, c, nil)
	b := started(t, c, nil)

	send(t, a, "show me monitoring")
	resp := send(t, a, "how much is it")
	show, ok := resp.Directive.(domain.ShowProducts)
	require.True(t, ok)
	require.Len(t, show.Products, 1)
	assert.Equal(t, "bos-monitoring-also", show.Products[0].ID)

	resp = send(t, b, "how much is it")
	show, ok = resp.Directive.(domain.ShowProducts)
	require.True(t, ok)
	assert.Len(t, show.Products, 3)
}

func TestMockSnapshotRestore(t *testing.T) {
	c := testCatalog(t)
	a := started(t, c, mariaContext(t, c))
	send(t, a, WelcomeTrigger)
	send(t, a, "show me monitoring")
	h := a.Snapshot()
	assert.Equal(t, int64(2), h.SequenceID)

	b := NewMock(c, 0)
	require.NoError(t, b.Restore(context.Background(), h))
	b.UpdateContext(mariaContext(t, c))

	product, _ := c.Product("bos-monitoring-also")
	resp := send(t, b, "what's the lead time")
	assert.Contains(t, resp.Message, product.Name)
	assert.Equal(t, h.SessionID, resp.SessionID)

	resp = send(t, b, WelcomeTrigger)
	assert.Nil(t, resp.Directive)
	assert.Equal(t, int64(4), b.Snapshot().SequenceID)

	assert.ErrorIs(t, b.Restore(context.Background(), Handle{}), ErrNoSession)
}

func TestMockRequiresSession(t *testing.T) {
	c := testCatalog(t)
	m := NewMock(c, 0)
	_, err := m.SendMessage(context.Background(), "hi")
	assert.ErrorIs(t, err, ErrNoSession)
	_, err = m.AccessToken(context.Background())
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestMockLatencyHonoursContext(t *testing.T) {
	c := testCatalog(t)
	m := NewMock(c, time.Hour)
	_, err := m.InitSession(context.Background(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = m.SendMessage(ctx, "hi")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFormatPrice(t *testing.T) {
	assert.Equal(t, "$185,000", formatPrice(185000))
	assert.Equal(t, "$1,000", formatPrice(1000))
	assert.Equal(t, "$2,220,000", formatPrice(2220000))
	assert.Equal(t, "$999.50", formatPrice(999.5))
}

func TestContextTokens(t *testing.T) {
	c := testCatalog(t)
	m := NewMock(c, 0)
	ctx := context.Background()

	_, err := ContextTokens{}.AccessToken(ctx)
	assert.Error(t, err)

	h, err := m.InitSession(ctx, nil)
	require.NoError(t, err)
	tok, err := ContextTokens{}.AccessToken(WithBackend(ctx, m))
	require.NoError(t, err)
	assert.Equal(t, "mock-token-"+h.SessionID, tok)
}
