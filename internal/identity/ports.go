package identity

import (
	"context"
	"errors"

	"github.com/Vovarama1992/scene-concierge/internal/catalog"
	"github.com/Vovarama1992/scene-concierge/internal/domain"
)

var (
	ErrNotFound     = errors.New("identity: profile not found")
	ErrInvalidEmail = errors.New("identity: invalid email")
)

// TagResolver maps an opaque visitor key onto an identity tier.
type TagResolver interface {
	Resolve(ctx context.Context, visitorKey string) (domain.IdentityResolution, error)
}

// ProfileStore is first-party storage. Appended identities are never in it.
type ProfileStore interface {
	GetProfileByID(ctx context.Context, resolvedID string) (*domain.CustomerProfile, error)
	GetProfileByEmail(ctx context.Context, email string) (*domain.CustomerProfile, error)
	WriteChatSummary(ctx context.Context, customerID, sessionID, summary string) error
}

// Fixtures is the local fallback for known profiles.
type Fixtures interface {
	FixtureProfile(resolvedID string) (*domain.CustomerProfile, bool)
	ProfileByEmail(email string) (*domain.CustomerProfile, catalog.PersonaStub, bool)
}

// Result is what the caller applies. Profile is nil for anonymous
// visitors. Refresh asks the caller to update the active session in place
// instead of switching.
type Result struct {
	Resolution domain.IdentityResolution
	Profile    *domain.CustomerProfile
	PersonaKey string
	Refresh    bool
}
