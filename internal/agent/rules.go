package agent

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Vovarama1992/scene-concierge/internal/catalog"
	"github.com/Vovarama1992/scene-concierge/internal/domain"
)

type reply struct {
	message    string
	directive  domain.Directive
	actions    []string
	confidence float64
	captures   []domain.CaptureNotification
}

type rule struct {
	pattern *regexp.Regexp
	respond func(m *Mock, match []string) reply
}

// first match wins; catalog topics are tried between leading and trailing
var (
	leading = []rule{
		{regexp.MustCompile(`(?i)my name is\s+(.+?)\s+and my email is\s+([^\s,;]+@[^\s,;]+?)\.?$`), (*Mock).identify},
		{regexp.MustCompile(`(?i)\b([a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,})\b`), (*Mock).identifyEmail},
		{regexp.MustCompile(`(?i)reorder|restock|buy again|repeat order|last purchase`), (*Mock).reorder},
		{regexp.MustCompile(`(?i)order|track|shipment|delivery|shipping|where.?s my`), (*Mock).orderStatus},
	}
	trailing = []rule{
		{regexp.MustCompile(`(?i)product|equipment|component|catalog|browse`), (*Mock).popular},
		{regexp.MustCompile(`(?i)price|quote|cost|pricing|how much|\brate`), (*Mock).pricing},
		{regexp.MustCompile(`(?i)account|tier|points|loyalty|membership|standing`), (*Mock).account},
		{regexp.MustCompile(`(?i)lead time|availability|in stock|when can|how (soon|fast|long)`), (*Mock).leadTime},
		{regexp.MustCompile(`(?i)certif|complian|standards?\b`), (*Mock).certifications},
		{regexp.MustCompile(`(?i)warranty|maintenance|service|support`), (*Mock).warranty},
		{regexp.MustCompile(`(?i)^(hi|hello|hey|good (morning|afternoon|evening))`), (*Mock).greeting},
		{regexp.MustCompile(`(?i)thank|bye|goodbye`), (*Mock).thanks},
		{regexp.MustCompile(`(?i)help|what can you|what do you`), (*Mock).help},
	}
)

func match(rules []rule, m *Mock, text string) (reply, bool) {
	for _, rl := range rules {
		if found := rl.pattern.FindStringSubmatch(text); found != nil {
			return rl.respond(m, found), true
		}
	}
	return reply{}, false
}

func (m *Mock) welcome() (reply, bool) {
	if m.state.HasGreeted {
		return reply{}, false
	}
	m.state.HasGreeted = true

	sc := m.sc
	brand := m.catalog.Brand
	neutral := &domain.SceneHints{Setting: domain.Known(domain.SettingNeutral)}

	if sc == nil {
		return m.anonymousWelcome(), true
	}
	switch sc.Tier {
	case domain.TierKnown:
		company := ""
		if sc.Company != "" {
			company = " at " + sc.Company
		}
		tier := title(sc.Account.LoyaltyTier)
		if len(sc.RecentOrders) == 0 {
			return reply{
				message: fmt.Sprintf("Welcome to %s, %s%s. Let me help you find what you need.", brand, sc.Name, company),
				directive: domain.WelcomeScene{
					Message: "Welcome, " + sc.Name + ".",
					Subtext: "Your " + brand + " account is set up and ready. Let me help you place your first order.",
					Scene:   &domain.SceneHints{Setting: domain.Known(domain.SettingOffice)},
				},
				actions:    m.catalog.SuggestedActions.Discovery,
				confidence: 0.95,
			}, true
		}
		activity := ""
		if n := len(sc.RecentActivity); n > 0 {
			activity = fmt.Sprintf(" You have %d open order%s in progress.", n, plural(n))
		}
		return reply{
			message: fmt.Sprintf("Welcome back, %s%s. Your %s account is in good standing.%s How can I help you today?", sc.Name, company, tier, activity),
			directive: domain.WelcomeScene{
				Message: "Welcome back, " + sc.Name + ".",
				Subtext: "Your " + tier + " account at " + brand + "." + activity,
				Scene:   neutral,
			},
			actions:    m.catalog.SuggestedActions.Known,
			confidence: 0.97,
		}, true

	case domain.TierAppended:
		// appended signals only steer which categories lead
		subtext := m.catalog.Script.AppendedSubtext
		actions := m.catalog.SuggestedActions.Discovery
		if len(sc.CategoryBias) > 0 {
			subtext = strings.TrimSpace(subtext + " Popular right now: " + humanList(sc.CategoryBias) + ".")
			actions = append([]string{"Browse " + humanCategory(sc.CategoryBias[0])}, actions...)
		}
		greeting := "Welcome to " + brand
		if tagline := m.catalog.Script.Tagline; tagline != "" {
			greeting += ", " + tagline
		}
		return reply{
			message: greeting + ". How can I assist you today?",
			directive: domain.WelcomeScene{
				Message: "Welcome to " + brand + ".",
				Subtext: subtext,
				Scene:   neutral,
			},
			actions:    actions,
			confidence: 0.90,
		}, true
	}
	return m.anonymousWelcome(), true
}

func (m *Mock) anonymousWelcome() reply {
	brand := m.catalog.Brand
	return reply{
		message: "Welcome to " + brand + ". " + m.offering() + " What are you looking for?",
		directive: domain.WelcomeScene{
			Message: "Welcome to " + brand + ".",
			Subtext: m.catalog.Script.OfferingSubtext,
			Scene:   &domain.SceneHints{Setting: domain.Known(domain.SettingNeutral)},
		},
		actions:    m.catalog.SuggestedActions.Discovery,
		confidence: 0.85,
	}
}

func (m *Mock) identify(match []string) reply {
	name := strings.TrimSpace(match[1])
	email := strings.ToLower(strings.TrimSpace(match[2]))
	return reply{
		message:   fmt.Sprintf("Thanks, %s. I've linked this conversation to %s so I can pick up where we left off next time.", name, email),
		directive: domain.IdentifyCustomer{Email: email, Name: name},
		actions:   []string{"Track my orders", "Browse equipment", "Request a quote"},
		captures: []domain.CaptureNotification{
			{Type: "name", Label: "Name saved", Value: name},
			{Type: "email", Label: "Email saved", Value: email},
		},
	}
}

func (m *Mock) identifyEmail(match []string) reply {
	email := strings.ToLower(match[1])
	return reply{
		message:   "Thanks. I've linked this conversation to " + email + ".",
		directive: domain.IdentifyCustomer{Email: email},
		actions:   []string{"Track my orders", "Browse equipment"},
		captures:  []domain.CaptureNotification{{Type: "email", Label: "Email saved", Value: email}},
	}
}

func (m *Mock) reorder([]string) reply {
	if m.sc != nil {
		var products []domain.Product
		seen := map[string]bool{}
		for _, id := range m.sc.RecentPurchases {
			if p, ok := m.catalog.Product(id); ok && !seen[id] {
				seen[id] = true
				products = append(products, p)
			}
		}
		if len(products) > 0 {
			m.show(products)
			lines := make([]string, 0, len(products))
			for _, p := range products {
				lines = append(lines, fmt.Sprintf("- **%s** at %s (%s min)", p.Name, formatPrice(p.Price), p.Attributes.MinOrderQty))
			}
			return reply{
				message:   "Based on your recent orders, here are your most-purchased items. Shall I prepare a reorder at current pricing?\n\n" + strings.Join(lines, "\n"),
				directive: domain.ShowProducts{Products: products, Scene: &domain.SceneHints{Setting: domain.Known(domain.SettingWarehouse)}},
				actions:   []string{"Reorder all at current pricing", "Adjust quantities", "Request updated quote"},
			}
		}
	}
	return m.canned("reorder", "I'd be happy to help you reorder. What do you need to restock?")
}

func (m *Mock) orderStatus([]string) reply {
	if m.sc == nil || len(m.sc.RecentActivity) == 0 {
		return reply{
			message: "I can look up your order status. Could you provide your PO number or order ID?",
			actions: []string{"View all open orders", "Browse equipment", "Request a quote"},
		}
	}

	open := m.sc.RecentActivity
	if len(open) > 3 {
		open = open[:3]
	}
	lines := make([]string, 0, len(open))
	for _, o := range open {
		lines = append(lines, fmt.Sprintf("- %s (%s) placed %s", o.OrderID, o.Status, o.OrderDate))
	}

	first := open[0]
	status := domain.ShowOrderStatus{
		OrderID:           first.OrderID,
		Status:            string(first.Status),
		TrackingNumber:    first.TrackingNumber,
		EstimatedDelivery: first.EstimatedDelivery,
	}
	for _, li := range first.LineItems {
		status.LineItems = append(status.LineItems, domain.OrderStatusLine{ProductName: li.ProductName, Quantity: li.Quantity})
	}
	ref := first.TrackingNumber
	if ref == "" {
		ref = first.OrderID
	}
	return reply{
		message:   "Here's your recent order activity:\n\n" + strings.Join(lines, "\n") + "\n\nWould you like tracking details on a specific order?",
		directive: status,
		actions:   []string{"Track order " + ref, "View all open orders", "Reorder equipment"},
	}
}

func (m *Mock) topic(t catalog.Topic) reply {
	products := m.catalog.TopicProducts(t)
	if len(products) == 0 {
		return reply{message: "We don't have " + t.Label + " listed right now.", actions: m.catalog.SuggestedActions.Discovery}
	}
	m.show(products)
	intro := t.Intro
	if intro == "" {
		intro = "Here are our " + t.Label + ":"
	}
	msg := intro + "\n\n" + productLines(products)
	if t.Note != "" {
		msg += "\n\n" + t.Note
	}
	return reply{
		message:   msg,
		directive: domain.ShowProducts{Products: products, Scene: &domain.SceneHints{Setting: domain.ParseSetting(t.Setting)}},
		actions:   t.Actions,
	}
}

func (m *Mock) popular([]string) reply {
	products := m.catalog.Lookup(m.catalog.Script.Popular...)
	if len(products) == 0 {
		return m.canned("fallback", "What are you looking for today?")
	}
	m.show(products)
	return reply{
		message:   "Here are some of our most popular products across categories:\n\n" + productLines(products),
		directive: domain.ShowProducts{Products: products, Scene: &domain.SceneHints{Setting: domain.Known(domain.SettingWarehouse)}},
		actions:   m.catalog.SuggestedActions.Discovery,
	}
}

func (m *Mock) pricing([]string) reply {
	office := &domain.SceneHints{Setting: domain.Known(domain.SettingOffice)}
	if p, ok := m.current(); ok {
		return reply{
			message:   fmt.Sprintf("**%s** is currently priced at %s with a minimum order of %s.\n\nFor volume or contract pricing I can generate a formal quote.", p.Name, formatPrice(p.Price), p.Attributes.MinOrderQty),
			directive: domain.ShowProducts{Products: []domain.Product{p}, Scene: office},
			actions:   []string{"Request a formal quote", "Check volume discounts", "Show me alternatives"},
		}
	}
	popular := m.catalog.Script.Popular
	if len(popular) > 3 {
		popular = popular[:3]
	}
	products := m.catalog.Lookup(popular...)
	lines := make([]string, 0, len(products))
	for _, p := range products {
		lines = append(lines, fmt.Sprintf("- **%s** at %s (min %s)", p.Name, formatPrice(p.Price), p.Attributes.MinOrderQty))
	}
	return reply{
		message:   "Here are current list prices on some of our most popular equipment:\n\n" + strings.Join(lines, "\n") + "\n\nContract and volume pricing is available.",
		directive: domain.ShowProducts{Products: products, Scene: office},
		actions:   []string{"Request a formal quote", "Show all products with pricing", "Check volume discounts"},
	}
}

func (m *Mock) account([]string) reply {
	if m.sc == nil || m.sc.Tier != domain.TierKnown {
		return reply{
			message: "I can pull up account details once I know who you are. What's your name and email?",
			actions: []string{"Browse equipment", "Request a quote"},
		}
	}
	a := m.sc.Account
	tier := title(a.LoyaltyTier)
	company := m.sc.Company
	if company == "" {
		company = "your company"
	}
	return reply{
		message: fmt.Sprintf("Here's your %s account summary:\n\n- **Company:** %s\n- **Account Tier:** %s\n- **Open Orders:** %d of %d",
			m.catalog.Brand, company, tier, a.OpenOrders, a.TotalOrders),
		directive: domain.ShowAccountSummary{
			TotalOrders: a.TotalOrders,
			OpenOrders:  a.OpenOrders,
			YTDSpend:    a.YTDSpend,
			AccountTier: tier,
		},
		actions: []string{"How do I upgrade my tier?", "View my order history", "Track my orders"},
	}
}

func (m *Mock) leadTime([]string) reply {
	if p, ok := m.current(); ok {
		stock := "currently backordered"
		if p.InStock {
			stock = "in stock"
		}
		return reply{
			message: fmt.Sprintf("**%s** is %s. Standard lead time is %d business days from order confirmation.", p.Name, stock, p.Attributes.LeadTimeDays),
			actions: []string{"Place an order", "Request expedited shipping", "Show me alternatives"},
		}
	}
	return m.canned("leadTime", "Lead times depend on the product. Which one are you interested in?")
}

func (m *Mock) certifications([]string) reply {
	if p, ok := m.current(); ok && len(p.Attributes.Certifications) > 0 {
		return reply{
			message: fmt.Sprintf("**%s** carries the following certifications: %s.", p.Name, strings.Join(p.Attributes.Certifications, ", ")),
			actions: []string{"Send me the TDS", "Connect me with engineering", "Request a sample"},
		}
	}
	return m.canned("certifications", "Which product do you need certification details for?")
}

func (m *Mock) warranty([]string) reply {
	if p, ok := m.current(); ok {
		return reply{
			message: fmt.Sprintf("**%s** comes with the manufacturer's standard warranty. Extended warranty and O&M contracts are available through our service partners.", p.Name),
			actions: []string{"Request warranty details", "Schedule maintenance", "Connect me with support"},
		}
	}
	return m.canned("warranty", "Which product do you need warranty information for?")
}

func (m *Mock) greeting([]string) reply {
	if r, ok := m.welcome(); ok {
		return r
	}
	return reply{
		message: "Hello! " + m.offering() + " What are you looking for?",
		actions: m.catalog.SuggestedActions.Discovery,
	}
}

func (m *Mock) thanks([]string) reply {
	return reply{
		message:   "You're welcome. Reach out whenever you need anything. Have a productive day.",
		directive: domain.ResetScene{},
		actions:   []string{},
	}
}

func (m *Mock) help([]string) reply {
	return reply{
		message: "I can help with finding products, order tracking and reorders, pricing and quotes, certifications and warranty questions, and your account. What would you like to start with?",
		actions: []string{"Browse equipment", "Track my orders", "Request a quote", "Check my account"},
	}
}

// show remembers what is on screen so follow-ups can refer to it.
func (m *Mock) show(products []domain.Product) {
	m.state.LastShown = m.state.LastShown[:0]
	for _, p := range products {
		m.state.LastShown = append(m.state.LastShown, p.ID)
	}
	m.state.CurrentProduct = ""
	if len(products) == 1 {
		m.state.CurrentProduct = products[0].ID
	}
}

func (m *Mock) current() (domain.Product, bool) {
	if m.state.CurrentProduct == "" {
		return domain.Product{}, false
	}
	return m.catalog.Product(m.state.CurrentProduct)
}

// canned is catalog copy for key, or text when the catalog has none.
func (m *Mock) canned(key, text string) reply {
	r, ok := m.catalog.Script.Replies[key]
	if !ok || r.Message == "" {
		return reply{message: text, actions: m.catalog.SuggestedActions.Discovery}
	}
	actions := r.Actions
	if len(actions) == 0 {
		actions = m.catalog.SuggestedActions.Discovery
	}
	return reply{message: r.Message, actions: actions}
}

func (m *Mock) offering() string {
	if o := m.catalog.Script.Offering; o != "" {
		return "I can help you find " + o + "."
	}
	return "I can help you find the right products."
}

func productLines(products []domain.Product) string {
	lines := make([]string, 0, len(products))
	for _, p := range products {
		lines = append(lines, fmt.Sprintf("- **%s** (%s) at %s: %s", p.Name, p.Brand, formatPrice(p.Price), p.ShortDescription))
	}
	return strings.Join(lines, "\n")
}

// formatPrice groups thousands for large amounts and keeps cents below.
func formatPrice(v float64) string {
	if v < 1000 {
		return fmt.Sprintf("$%.2f", v)
	}
	s := strconv.FormatInt(int64(v), 10)
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return "$" + b.String()
}

func title(s string) string {
	if s == "" {
		return "Standard"
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

func humanCategory(c string) string {
	return strings.ReplaceAll(c, "-", " ")
}

func humanList(cats []string) string {
	out := make([]string, 0, len(cats))
	for _, c := range cats {
		out = append(out, humanCategory(c))
	}
	return strings.Join(out, ", ")
}
