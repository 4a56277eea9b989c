package sessionctx

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Vovarama1992/scene-concierge/internal/domain"
)

const (
	maxOrders   = 5
	maxChats    = 3
	maxBrowsing = 3
)

// EnrichmentFields is the canonical list of captured profile fields the
// agent tries to fill over time.
var EnrichmentFields = []string{
	"annualVolume",
	"budgetCycle",
	"qualityStandards",
	"sustainabilityGoals",
	"leadTimePreference",
	"primaryApplication",
	"projectPipeline",
	"painPoints",
}

// CategoryBiaser turns free-text interests into catalog categories.
type CategoryBiaser interface {
	BiasCategories(interests []string) []string
}

type Options struct {
	Now    time.Time
	Biaser CategoryBiaser
}

type AccountSummary struct {
	TotalOrders int
	OpenOrders  int
	YTDSpend    float64
	LoyaltyTier string
}

// SessionContext is built once per profile and never mutated afterwards,
// so snapshots may share it.
type SessionContext struct {
	CustomerID string
	Name       string
	Company    string
	Email      string
	Tier       domain.IdentityTier

	Fields []TaggedContextField

	RecentOrders   []string
	RecentChats    []string
	RecentBrowsing []string

	// RecentActivity holds open orders, newest first.
	RecentActivity  []domain.OrderRecord
	RecentPurchases []string
	Account         AccountSummary

	EnrichmentPresent []string
	EnrichmentMissing []string

	// CategoryBias is the only channel influence-only data reaches the
	// agent through.
	CategoryBias []string
}

// Build derives the context bundle. A nil profile yields an anonymous
// context with every enrichment field missing.
func Build(p *domain.CustomerProfile, opts Options) *SessionContext {
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	sc := &SessionContext{Tier: p.Tier()}
	if p == nil {
		sc.EnrichmentMissing = append([]string(nil), EnrichmentFields...)
		return sc
	}

	appendedOnly := sc.Tier == domain.TierAppended
	identity := Declared
	if appendedOnly {
		identity = Appended
	} else {
		sc.CustomerID = p.ID
		sc.Name = p.Name
		sc.Company = p.Company
		sc.Email = p.Email
	}

	add := func(key, value string, prov Provenance) {
		if strings.TrimSpace(value) == "" {
			return
		}
		sc.Fields = append(sc.Fields, TaggedContextField{Key: key, Value: value, Provenance: prov})
	}

	add("name", p.Name, identity)
	add("email", p.Email, identity)
	add("company", p.Company, identity)
	add("jobTitle", p.JobTitle, identity)
	add("industry", p.Preferences.Industry, identity)
	add("primaryApplications", strings.Join(p.Preferences.PrimaryApplications, ", "), identity)
	add("certifications", strings.Join(p.Preferences.Certifications, ", "), identity)
	add("preferredVendors", strings.Join(p.Preferences.PreferredVendors, ", "), identity)
	add("volumeTier", p.Preferences.VolumeTier, identity)

	orders := sortedOrders(p.Orders)
	for i, o := range orders {
		if i < maxOrders {
			line := orderLine(o)
			add("order:"+o.OrderID, line, observedOr(identity))
			if !appendedOnly {
				sc.RecentOrders = append(sc.RecentOrders, line)
			}
		}
		if o.Status.Open() && !appendedOnly {
			sc.RecentActivity = append(sc.RecentActivity, o)
		}
	}
	if !appendedOnly {
		sc.Account = accountSummary(p, orders, opts.Now)
		sc.RecentPurchases = append([]string(nil), p.PurchaseHistory...)
	}

	chats := append([]domain.ChatSummary(nil), p.ChatSummaries...)
	sort.SliceStable(chats, func(i, j int) bool { return chats[i].SessionDate > chats[j].SessionDate })
	for i, c := range chats {
		if i == maxChats {
			break
		}
		line := chatLine(c)
		if !appendedOnly {
			sc.RecentChats = append(sc.RecentChats, line)
		}
		add("chat:"+c.SessionDate, line, statedOr(identity))
	}

	for i, e := range p.MeaningfulEvents {
		add(fmt.Sprintf("event:%d", i), e.EventType+": "+e.Description, statedOr(identity))
	}

	if p.Loyalty != nil {
		add("loyaltyTier", p.Loyalty.Tier, identity)
		if p.Loyalty.PointsBalance > 0 {
			add("pointsBalance", fmt.Sprintf("%d", p.Loyalty.PointsBalance), identity)
		}
	}

	browse := append([]domain.BrowseSession(nil), p.BrowseSessions...)
	sort.SliceStable(browse, func(i, j int) bool { return browse[i].SessionDate > browse[j].SessionDate })
	for i, b := range browse {
		if i == maxBrowsing {
			break
		}
		line := browseLine(b)
		if !appendedOnly {
			sc.RecentBrowsing = append(sc.RecentBrowsing, line)
		}
		add("browse:"+b.SessionDate, line, inferredOr(identity))
	}

	capturedKeys := make([]string, 0, len(p.Captured))
	for k := range p.Captured {
		capturedKeys = append(capturedKeys, k)
	}
	sort.Strings(capturedKeys)
	for _, k := range capturedKeys {
		f := p.Captured[k]
		prov := Stated
		if f.Confidence != domain.CaptureStated {
			prov = AgentInferred
		}
		if appendedOnly {
			prov = Appended
		}
		add("captured:"+k, f.Value, prov)
	}

	for _, k := range EnrichmentFields {
		if f, ok := p.Captured[k]; ok && strings.TrimSpace(f.Value) != "" {
			sc.EnrichmentPresent = append(sc.EnrichmentPresent, k)
		} else {
			sc.EnrichmentMissing = append(sc.EnrichmentMissing, k)
		}
	}

	appended := p.AppendedProfile
	if appended == nil && p.Identity != nil {
		appended = p.Identity.AppendedSignals
	}
	if appended != nil {
		add("appended:companySize", appended.CompanySize, Appended)
		add("appended:industryVertical", appended.IndustryVertical, Appended)
		add("appended:annualRevenue", appended.AnnualRevenue, Appended)
		add("appended:geoRegion", appended.GeoRegion, Appended)
		add("appended:interests", strings.Join(appended.Interests, ", "), Appended)
		add("appended:signals", strings.Join(appended.Signals, ", "), Appended)
		if opts.Biaser != nil {
			sc.CategoryBias = opts.Biaser.BiasCategories(appended.Interests)
		}
	}

	return sc
}

// for appended-only profiles every first-party looking fact is still
// third-party data
func observedOr(identity Provenance) Provenance {
	if identity == Appended {
		return Appended
	}
	return Observed
}

func statedOr(identity Provenance) Provenance {
	if identity == Appended {
		return Appended
	}
	return Stated
}

func inferredOr(identity Provenance) Provenance {
	if identity == Appended {
		return Appended
	}
	return Inferred
}

func sortedOrders(in []domain.OrderRecord) []domain.OrderRecord {
	out := append([]domain.OrderRecord(nil), in...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].OrderDate > out[j].OrderDate })
	return out
}

func accountSummary(p *domain.CustomerProfile, orders []domain.OrderRecord, now time.Time) AccountSummary {
	s := AccountSummary{TotalOrders: len(orders)}
	year := fmt.Sprintf("%04d-", now.Year())
	for _, o := range orders {
		if o.Status.Open() {
			s.OpenOrders++
		}
		if strings.HasPrefix(o.OrderDate, year) {
			s.YTDSpend += o.Total
		}
	}
	if p.Loyalty != nil {
		s.LoyaltyTier = p.Loyalty.Tier
	}
	return s
}

func orderLine(o domain.OrderRecord) string {
	items := make([]string, 0, len(o.LineItems))
	for _, li := range o.LineItems {
		items = append(items, fmt.Sprintf("%dx %s", li.Quantity, li.ProductName))
	}
	line := fmt.Sprintf("%s (%s, %s): %s, total $%.2f", o.OrderID, o.OrderDate, o.Status, strings.Join(items, "; "), o.Total)
	if o.TrackingNumber != "" {
		line += ", tracking " + o.TrackingNumber
	}
	if o.EstimatedDelivery != "" {
		line += ", ETA " + o.EstimatedDelivery
	}
	return line
}

func chatLine(c domain.ChatSummary) string {
	line := c.SessionDate + ": " + c.Summary
	if c.Sentiment != "" {
		line += " (" + c.Sentiment + ")"
	}
	return line
}

func browseLine(b domain.BrowseSession) string {
	return fmt.Sprintf("%s: %s (%d min, %s)", b.SessionDate, strings.Join(b.Categories, ", "), b.DurationMinutes, b.Device)
}
