package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Vovarama1992/scene-concierge/internal/catalog"
	"github.com/Vovarama1992/scene-concierge/internal/domain"
)

type failingStore struct {
	byIDCalls int
}

func (f *failingStore) GetProfileByID(context.Context, string) (*domain.CustomerProfile, error) {
	f.byIDCalls++
	return nil, errors.New("store down")
}

func (f *failingStore) GetProfileByEmail(context.Context, string) (*domain.CustomerProfile, error) {
	return nil, errors.New("store down")
}

func (f *failingStore) WriteChatSummary(context.Context, string, string, string) error {
	return errors.New("store down")
}

func newResolver(t *testing.T, store ProfileStore) (*Resolver, *catalog.Catalog) {
	t.Helper()
	c, err := catalog.Default()
	require.NoError(t, err)
	if store == nil {
		store = NewFixtureStore(c)
	}
	return NewResolver(NewCatalogTags(c, 0), store, c, zap.NewNop()), c
}

func TestResolveAppendedPersona(t *testing.T) {
	store := &failingStore{}
	r, _ := newResolver(t, store)

	res, err := r.Resolve(context.Background(), "pacific-energy-group")
	require.NoError(t, err)

	require.NotNil(t, res.Profile)
	assert.Equal(t, domain.TierAppended, res.Resolution.Tier)
	assert.Equal(t, domain.TierAppended, res.Profile.Identity.Tier)
	assert.NotNil(t, res.Profile.Orders)
	assert.Empty(t, res.Profile.Orders)
	assert.NotNil(t, res.Profile.PurchaseHistory)
	assert.Empty(t, res.Profile.PurchaseHistory)
	require.NotNil(t, res.Profile.AppendedProfile)
	assert.Equal(t, "Renewable Energy Development", res.Profile.AppendedProfile.IndustryVertical)
	assert.Equal(t, "Guest", res.Profile.Name)
	assert.Equal(t, "MRK-PEG-006", res.Profile.ID)
	assert.Zero(t, store.byIDCalls)
}

func TestResolveAnonymous(t *testing.T) {
	r, _ := newResolver(t, nil)

	res, err := r.Resolve(context.Background(), "anonymous")
	require.NoError(t, err)
	assert.Nil(t, res.Profile)
	assert.Equal(t, domain.TierAnonymous, res.Resolution.Tier)
	assert.Empty(t, res.Resolution.ResolvedID)
}

func TestResolveKnownFallsBackToFixture(t *testing.T) {
	store := &failingStore{}
	r, _ := newResolver(t, store)

	res, err := r.Resolve(context.Background(), "maria-santos")
	require.NoError(t, err)
	assert.Equal(t, 1, store.byIDCalls)
	assert.Equal(t, "Maria Santos", res.Profile.Name)
	assert.Equal(t, domain.TierKnown, res.Profile.Tier())
	assert.Equal(t, "MRK-MS-001", res.Profile.Identity.ResolvedID)
}

func TestResolveErrors(t *testing.T) {
	r, _ := newResolver(t, nil)
	_, err := r.Resolve(context.Background(), "nobody")
	assert.ErrorIs(t, err, catalog.ErrUnknownPersona)

	c, err := catalog.Default()
	require.NoError(t, err)
	slow := NewResolver(NewCatalogTags(c, time.Hour), NewFixtureStore(c), c, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = slow.Resolve(ctx, "maria-santos")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIdentifyByEmail(t *testing.T) {
	r, _ := newResolver(t, &failingStore{})

	res, err := r.IdentifyByEmail(context.Background(), "DAVID.CHEN@sunpeakepc.com", "")
	require.NoError(t, err)
	assert.True(t, res.Refresh)
	assert.Equal(t, "david-chen", res.PersonaKey)
	assert.Equal(t, "David Chen", res.Profile.Name)
	assert.Equal(t, domain.TierKnown, res.Profile.Tier())

	res, err = r.IdentifyByEmail(context.Background(), "jane.doe@example.org", "")
	require.NoError(t, err)
	assert.True(t, res.Refresh)
	assert.Empty(t, res.PersonaKey)
	assert.Equal(t, "Jane Doe", res.Profile.Name)
	assert.Equal(t, "jane.doe@example.org", res.Profile.Email)
	assert.Equal(t, res.Profile.ID, res.Resolution.ResolvedID)
	assert.Empty(t, res.Profile.Orders)

	res, err = r.IdentifyByEmail(context.Background(), "jd@example.org", "Janet Dole")
	require.NoError(t, err)
	assert.Equal(t, "Janet Dole", res.Profile.Name)

	_, err = r.IdentifyByEmail(context.Background(), "not-an-email", "")
	assert.ErrorIs(t, err, ErrInvalidEmail)
}

func TestNameFromEmail(t *testing.T) {
	assert.Equal(t, "Jane Doe", nameFromEmail("jane.doe@x.com"))
	assert.Equal(t, "Bob Smith Jr", nameFromEmail("BOB_smith-jr@x.com"))
	assert.Equal(t, "Customer", nameFromEmail("...@x.com"))
}

func TestFixtureStoreSummaries(t *testing.T) {
	c, err := catalog.Default()
	require.NoError(t, err)
	s := NewFixtureStore(c)

	_, err = s.GetProfileByID(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetProfileByEmail(context.Background(), "nope@x.com")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.WriteChatSummary(context.Background(), "c", "s", "hello"))
	assert.Equal(t, []StoredSummary{{"c", "s", "hello"}}, s.Summaries())
}
