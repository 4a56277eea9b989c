package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Vovarama1992/scene-concierge/internal/domain"
)

type Resolver struct {
	tags     TagResolver
	store    ProfileStore
	fixtures Fixtures
	logger   *zap.Logger
	now      func() time.Time
}

func NewResolver(tags TagResolver, store ProfileStore, fixtures Fixtures, logger *zap.Logger) *Resolver {
	return &Resolver{
		tags:     tags,
		store:    store,
		fixtures: fixtures,
		logger:   logger.Named("identity"),
		now:      time.Now,
	}
}

// Resolve turns a persona key into a tiered profile. It never mutates
// shared state; the caller applies the result.
func (r *Resolver) Resolve(ctx context.Context, personaKey string) (*Result, error) {
	res, err := r.tags.Resolve(ctx, personaKey)
	if err != nil {
		return nil, fmt.Errorf("resolve identity %s: %w", personaKey, err)
	}

	r.logger.Info("identity resolved",
		zap.String("visitor", personaKey),
		zap.String("tier", string(res.Tier)),
		zap.Float64("confidence", res.Confidence),
	)

	switch res.Tier {
	case domain.TierAnonymous:
		return &Result{Resolution: res, PersonaKey: personaKey}, nil

	case domain.TierAppended:
		return &Result{Resolution: res, Profile: appendedProfile(res), PersonaKey: personaKey}, nil

	case domain.TierKnown:
		p, err := r.store.GetProfileByID(ctx, res.ResolvedID)
		if err != nil {
			fixture, ok := r.fixtures.FixtureProfile(res.ResolvedID)
			if !ok {
				return nil, fmt.Errorf("load profile %s: %w", res.ResolvedID, err)
			}
			r.logger.Warn("profile store failed, using fixture",
				zap.String("resolved_id", res.ResolvedID),
				zap.Error(err),
			)
			p = fixture
		}
		stamp(p, res)
		return &Result{Resolution: res, Profile: p, PersonaKey: personaKey}, nil
	}

	return nil, fmt.Errorf("resolve identity %s: unknown tier %q", personaKey, res.Tier)
}

// IdentifyByEmail accepts the customer's self-report: an unknown address
// yields a synthesized known profile rather than an error.
func (r *Resolver) IdentifyByEmail(ctx context.Context, email, name string) (*Result, error) {
	email = strings.TrimSpace(email)
	if !strings.Contains(email, "@") || strings.HasPrefix(email, "@") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidEmail, email)
	}

	res := domain.IdentityResolution{
		VisitorKey: strings.ToLower(email),
		Tier:       domain.TierKnown,
		Confidence: 1,
		ResolvedAt: r.now(),
	}
	out := &Result{Refresh: true}

	p, err := r.store.GetProfileByEmail(ctx, email)
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound):
		p = nil
	default:
		r.logger.Warn("profile lookup by email failed", zap.Error(err))
		p = nil
	}
	if p == nil {
		if fixture, stub, ok := r.fixtures.ProfileByEmail(email); ok {
			p = fixture
			out.PersonaKey = stub.ID
		}
	}
	if p == nil {
		p = synthesize(email, name)
		r.logger.Info("synthesized profile from email", zap.String("customer_id", p.ID))
	}

	res.ResolvedID = p.ID
	stamp(p, res)
	out.Resolution = res
	out.Profile = p
	return out, nil
}

// WriteChatSummary is best effort; callers run it off the main flow.
func (r *Resolver) WriteChatSummary(ctx context.Context, customerID, sessionID, summary string) error {
	return r.store.WriteChatSummary(ctx, customerID, sessionID, summary)
}

func stamp(p *domain.CustomerProfile, res domain.IdentityResolution) {
	id := res
	p.Identity = &id
}

func appendedProfile(res domain.IdentityResolution) *domain.CustomerProfile {
	id := res.ResolvedID
	if id == "" {
		id = "appended-" + res.VisitorKey
	}
	p := &domain.CustomerProfile{
		ID:               id,
		Name:             "Guest",
		Orders:           []domain.OrderRecord{},
		PurchaseHistory:  []string{},
		ChatSummaries:    []domain.ChatSummary{},
		MeaningfulEvents: []domain.MeaningfulEvent{},
		BrowseSessions:   []domain.BrowseSession{},
		PaymentMethods:   []domain.PaymentMethod{},
		Addresses:        []domain.Address{},
	}
	if res.AppendedSignals != nil {
		a := *res.AppendedSignals
		p.AppendedProfile = &a
	}
	stamp(p, res)
	return p
}

func synthesize(email, name string) *domain.CustomerProfile {
	if strings.TrimSpace(name) == "" {
		name = nameFromEmail(email)
	}
	return &domain.CustomerProfile{
		ID:               "cust-" + uuid.NewString(),
		Name:             strings.TrimSpace(name),
		Email:            email,
		Orders:           []domain.OrderRecord{},
		PurchaseHistory:  []string{},
		ChatSummaries:    []domain.ChatSummary{},
		MeaningfulEvents: []domain.MeaningfulEvent{},
		BrowseSessions:   []domain.BrowseSession{},
		PaymentMethods:   []domain.PaymentMethod{},
		Addresses:        []domain.Address{},
	}
}

// nameFromEmail: jane.doe@x -> Jane Doe
func nameFromEmail(email string) string {
	local := email
	if i := strings.Index(email, "@"); i >= 0 {
		local = email[:i]
	}
	parts := strings.FieldsFunc(local, func(r rune) bool {
		return r == '.' || r == '_' || r == '-' || r == '+'
	})
	for i, w := range parts {
		parts[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	if len(parts) == 0 {
		return "Customer"
	}
	return strings.Join(parts, " ")
}
