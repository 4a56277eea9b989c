package identity

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Vovarama1992/scene-concierge/internal/catalog"
	"github.com/Vovarama1992/scene-concierge/internal/domain"
)

// CatalogTags resolves persona keys from the catalog after a simulated
// network delay.
type CatalogTags struct {
	catalog *catalog.Catalog
	latency time.Duration
}

func NewCatalogTags(c *catalog.Catalog, latency time.Duration) *CatalogTags {
	return &CatalogTags{catalog: c, latency: latency}
}

func (t *CatalogTags) Resolve(ctx context.Context, visitorKey string) (domain.IdentityResolution, error) {
	if t.latency > 0 {
		timer := time.NewTimer(t.latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return domain.IdentityResolution{}, ctx.Err()
		case <-timer.C:
		}
	}

	p, err := t.catalog.Persona(visitorKey)
	if err != nil {
		return domain.IdentityResolution{}, err
	}
	res := domain.IdentityResolution{
		VisitorKey: visitorKey,
		Tier:       p.Stub.Tier,
		ResolvedID: p.Stub.ResolvedID,
		Confidence: p.Stub.Confidence,
		ResolvedAt: time.Now(),
	}
	if p.Stub.Tier == domain.TierAnonymous {
		res.ResolvedID = ""
		res.Confidence = 0
	}
	if p.Appended != nil {
		a := *p.Appended
		res.AppendedSignals = &a
	}
	return res, nil
}

// FixtureStore is a ProfileStore over catalog fixtures, used when no
// database is configured.
type FixtureStore struct {
	catalog *catalog.Catalog

	mu        sync.Mutex
	summaries []StoredSummary
}

type StoredSummary struct {
	CustomerID string
	SessionID  string
	Summary    string
}

func NewFixtureStore(c *catalog.Catalog) *FixtureStore {
	return &FixtureStore{catalog: c}
}

func (s *FixtureStore) GetProfileByID(_ context.Context, resolvedID string) (*domain.CustomerProfile, error) {
	p, ok := s.catalog.FixtureProfile(resolvedID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, resolvedID)
	}
	return p, nil
}

func (s *FixtureStore) GetProfileByEmail(_ context.Context, email string) (*domain.CustomerProfile, error) {
	p, _, ok := s.catalog.ProfileByEmail(email)
	if !ok {
		return nil, ErrNotFound
	}
	return p, nil
}

func (s *FixtureStore) WriteChatSummary(_ context.Context, customerID, sessionID, summary string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaries = append(s.summaries, StoredSummary{customerID, sessionID, summary})
	return nil
}

func (s *FixtureStore) Summaries() []StoredSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]StoredSummary(nil), s.summaries...)
}
