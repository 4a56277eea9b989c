package domain

import "time"

// IdentityTier is how much we know about a visitor.
type IdentityTier string

const (
	TierKnown     IdentityTier = "known"
	TierAppended  IdentityTier = "appended"
	TierAnonymous IdentityTier = "anonymous"
)

// IdentityResolution is produced once per persona selection and never mutated.
type IdentityResolution struct {
	VisitorKey      string           `json:"visitorKey" yaml:"visitorKey"`
	Tier            IdentityTier     `json:"identityTier" yaml:"identityTier"`
	ResolvedID      string           `json:"resolvedId,omitempty" yaml:"resolvedId,omitempty"`
	Confidence      float64          `json:"confidence" yaml:"confidence"`
	ResolvedAt      time.Time        `json:"resolvedAt" yaml:"-"`
	AppendedSignals *AppendedProfile `json:"appendedSignals,omitempty" yaml:"appendedSignals,omitempty"`
}

// AppendedProfile holds third-party signals. Never shown verbatim.
type AppendedProfile struct {
	CompanySize      string   `json:"companySize,omitempty" yaml:"companySize,omitempty"`
	IndustryVertical string   `json:"industryVertical,omitempty" yaml:"industryVertical,omitempty"`
	AnnualRevenue    string   `json:"annualRevenue,omitempty" yaml:"annualRevenue,omitempty"`
	GeoRegion        string   `json:"geoRegion,omitempty" yaml:"geoRegion,omitempty"`
	Interests        []string `json:"interests,omitempty" yaml:"interests,omitempty"`
	Signals          []string `json:"signals,omitempty" yaml:"signals,omitempty"`
}

type OrderStatus string

const (
	OrderCompleted   OrderStatus = "completed"
	OrderShipped     OrderStatus = "shipped"
	OrderInTransit   OrderStatus = "in-transit"
	OrderProcessing  OrderStatus = "processing"
	OrderReturned    OrderStatus = "returned"
	OrderBackordered OrderStatus = "backordered"
)

// Open reports whether the order is still moving through fulfilment.
func (s OrderStatus) Open() bool {
	switch s {
	case OrderProcessing, OrderShipped, OrderInTransit, OrderBackordered:
		return true
	}
	return false
}

type LineItem struct {
	ProductID   string  `json:"productId" yaml:"productId"`
	ProductName string  `json:"productName" yaml:"productName"`
	Quantity    int     `json:"quantity" yaml:"quantity"`
	UnitPrice   float64 `json:"unitPrice" yaml:"unitPrice"`
}

// OrderRecord is a read-only projection of backend truth.
type OrderRecord struct {
	OrderID           string      `json:"orderId" yaml:"orderId"`
	OrderDate         string      `json:"orderDate" yaml:"orderDate"` // YYYY-MM-DD
	Channel           string      `json:"channel" yaml:"channel"`
	LineItems         []LineItem  `json:"lineItems" yaml:"lineItems"`
	Total             float64     `json:"totalAmount" yaml:"totalAmount"`
	Status            OrderStatus `json:"status" yaml:"status"`
	PONumber          string      `json:"poNumber,omitempty" yaml:"poNumber,omitempty"`
	TrackingNumber    string      `json:"trackingNumber,omitempty" yaml:"trackingNumber,omitempty"`
	EstimatedDelivery string      `json:"estimatedDelivery,omitempty" yaml:"estimatedDelivery,omitempty"`
}

type AccountPreferences struct {
	Industry            string   `json:"industry,omitempty" yaml:"industry,omitempty"`
	PrimaryApplications []string `json:"primaryApplications,omitempty" yaml:"primaryApplications,omitempty"`
	Certifications      []string `json:"certifications,omitempty" yaml:"certifications,omitempty"`
	PreferredVendors    []string `json:"preferredVendors,omitempty" yaml:"preferredVendors,omitempty"`
	VolumeTier          string   `json:"volumeTier,omitempty" yaml:"volumeTier,omitempty"`
}

type ChatSummary struct {
	SessionDate string   `json:"sessionDate" yaml:"sessionDate"`
	Summary     string   `json:"summary" yaml:"summary"`
	Sentiment   string   `json:"sentiment,omitempty" yaml:"sentiment,omitempty"`
	Topics      []string `json:"topicsDiscussed,omitempty" yaml:"topicsDiscussed,omitempty"`
}

type MeaningfulEvent struct {
	EventType   string `json:"eventType" yaml:"eventType"`
	Description string `json:"description" yaml:"description"`
	CapturedAt  string `json:"capturedAt" yaml:"capturedAt"`
	AgentNote   string `json:"agentNote,omitempty" yaml:"agentNote,omitempty"`
}

type BrowseSession struct {
	SessionDate     string   `json:"sessionDate" yaml:"sessionDate"`
	Categories      []string `json:"categoriesBrowsed" yaml:"categoriesBrowsed"`
	ProductsViewed  []string `json:"productsViewed,omitempty" yaml:"productsViewed,omitempty"`
	DurationMinutes int      `json:"durationMinutes" yaml:"durationMinutes"`
	Device          string   `json:"device" yaml:"device"`
}

type Reward struct {
	Name       string `json:"name" yaml:"name"`
	PointsCost int    `json:"pointsCost" yaml:"pointsCost"`
}

type Loyalty struct {
	Tier           string   `json:"tier" yaml:"tier"`
	PointsBalance  int      `json:"pointsBalance" yaml:"pointsBalance"`
	LifetimePoints int      `json:"lifetimePoints" yaml:"lifetimePoints"`
	MemberSince    string   `json:"memberSince" yaml:"memberSince"`
	Rewards        []Reward `json:"rewardsAvailable,omitempty" yaml:"rewardsAvailable,omitempty"`
}

// CaptureConfidence says whether the customer said it or the agent guessed it.
type CaptureConfidence string

const (
	CaptureStated   CaptureConfidence = "stated"
	CaptureInferred CaptureConfidence = "inferred"
)

type CapturedField struct {
	Value        string            `json:"value" yaml:"value"`
	CapturedAt   string            `json:"capturedAt" yaml:"capturedAt"`
	CapturedFrom string            `json:"capturedFrom" yaml:"capturedFrom"`
	Confidence   CaptureConfidence `json:"confidence" yaml:"confidence"`
}

type PaymentMethod struct {
	ID        string `json:"id" yaml:"id"`
	Type      string `json:"type" yaml:"type"`
	Brand     string `json:"brand,omitempty" yaml:"brand,omitempty"`
	Last4     string `json:"last4,omitempty" yaml:"last4,omitempty"`
	Terms     string `json:"terms,omitempty" yaml:"terms,omitempty"`
	IsDefault bool   `json:"isDefault" yaml:"isDefault"`
}

type Address struct {
	ID         string `json:"id" yaml:"id"`
	Name       string `json:"name" yaml:"name"`
	Line1      string `json:"line1" yaml:"line1"`
	Line2      string `json:"line2,omitempty" yaml:"line2,omitempty"`
	City       string `json:"city" yaml:"city"`
	State      string `json:"state" yaml:"state"`
	PostalCode string `json:"postalCode" yaml:"postalCode"`
	Country    string `json:"country" yaml:"country"`
	IsDefault  bool   `json:"isDefault" yaml:"isDefault"`
}

// CustomerProfile is the canonical account record. A session owns it for
// its lifetime and replaces it wholesale on persona switch.
type CustomerProfile struct {
	ID       string `json:"id" yaml:"id"`
	Name     string `json:"name" yaml:"name"`
	Email    string `json:"email" yaml:"email"`
	Company  string `json:"company,omitempty" yaml:"company,omitempty"`
	JobTitle string `json:"jobTitle,omitempty" yaml:"jobTitle,omitempty"`

	Preferences      AccountPreferences       `json:"preferences" yaml:"preferences"`
	Orders           []OrderRecord            `json:"orders" yaml:"orders"`
	PurchaseHistory  []string                 `json:"purchaseHistory" yaml:"purchaseHistory"`
	ChatSummaries    []ChatSummary            `json:"chatSummaries" yaml:"chatSummaries"`
	MeaningfulEvents []MeaningfulEvent        `json:"meaningfulEvents" yaml:"meaningfulEvents"`
	BrowseSessions   []BrowseSession          `json:"browseSessions" yaml:"browseSessions"`
	Loyalty          *Loyalty                 `json:"loyalty,omitempty" yaml:"loyalty,omitempty"`
	Captured         map[string]CapturedField `json:"agentCapturedProfile,omitempty" yaml:"agentCapturedProfile,omitempty"`
	PaymentMethods   []PaymentMethod          `json:"savedPaymentMethods" yaml:"savedPaymentMethods"`
	Addresses        []Address                `json:"shippingAddresses" yaml:"shippingAddresses"`

	Identity        *IdentityResolution `json:"identity,omitempty" yaml:"identity,omitempty"`
	AppendedProfile *AppendedProfile    `json:"appendedProfile,omitempty" yaml:"appendedProfile,omitempty"`
}

// Tier falls back to anonymous when no resolution was stamped.
func (p *CustomerProfile) Tier() IdentityTier {
	if p == nil || p.Identity == nil {
		return TierAnonymous
	}
	return p.Identity.Tier
}

// Clone returns a deep enough copy for snapshotting: slices and maps are
// copied, nested records are values.
func (p *CustomerProfile) Clone() *CustomerProfile {
	if p == nil {
		return nil
	}
	c := *p
	c.Orders = append([]OrderRecord(nil), p.Orders...)
	c.PurchaseHistory = append([]string(nil), p.PurchaseHistory...)
	c.ChatSummaries = append([]ChatSummary(nil), p.ChatSummaries...)
	c.MeaningfulEvents = append([]MeaningfulEvent(nil), p.MeaningfulEvents...)
	c.BrowseSessions = append([]BrowseSession(nil), p.BrowseSessions...)
	c.PaymentMethods = append([]PaymentMethod(nil), p.PaymentMethods...)
	c.Addresses = append([]Address(nil), p.Addresses...)
	if p.Captured != nil {
		c.Captured = make(map[string]CapturedField, len(p.Captured))
		for k, v := range p.Captured {
			c.Captured[k] = v
		}
	}
	if p.Loyalty != nil {
		l := *p.Loyalty
		c.Loyalty = &l
	}
	if p.Identity != nil {
		id := *p.Identity
		c.Identity = &id
	}
	if p.AppendedProfile != nil {
		a := *p.AppendedProfile
		c.AppendedProfile = &a
	}
	return &c
}
