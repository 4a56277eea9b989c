package catalog

import (
	"fmt"
	"regexp"

	"github.com/Vovarama1992/scene-concierge/internal/domain"
)

// Topic is a product family the mock agent recognises by keyword. It lists
// either a whole category or a fixed set of products.
type Topic struct {
	Pattern  string   `yaml:"pattern"`
	Category string   `yaml:"category"`
	Products []string `yaml:"products"`
	Label    string   `yaml:"label"`
	Intro    string   `yaml:"intro"`
	Note     string   `yaml:"note"`
	Setting  string   `yaml:"setting"`
	Actions  []string `yaml:"actions"`

	re *regexp.Regexp
}

// Reply is canned copy for a question asked before anything is on screen.
type Reply struct {
	Message string   `yaml:"message"`
	Actions []string `yaml:"actions"`
}

// Script is the mock agent's storefront copy.
type Script struct {
	// Tagline follows the brand in the appended-visitor welcome.
	Tagline string `yaml:"tagline"`
	// Offering completes "I can help you find ...".
	Offering        string           `yaml:"offering"`
	OfferingSubtext string           `yaml:"offeringSubtext"`
	AppendedSubtext string           `yaml:"appendedSubtext"`
	Popular         []string         `yaml:"popular"`
	Topics          []Topic          `yaml:"topics"`
	Replies         map[string]Reply `yaml:"replies"`
}

func (s *Script) compile() error {
	for i := range s.Topics {
		t := &s.Topics[i]
		if t.Pattern == "" {
			return fmt.Errorf("catalog: topic %q has no pattern", t.Label)
		}
		if t.Category == "" && len(t.Products) == 0 {
			return fmt.Errorf("catalog: topic %q lists no category or products", t.Label)
		}
		re, err := regexp.Compile("(?i)" + t.Pattern)
		if err != nil {
			return fmt.Errorf("catalog: topic %q: %w", t.Label, err)
		}
		t.re = re
	}
	return nil
}

// MatchTopic returns the first topic whose pattern occurs in text.
func (c *Catalog) MatchTopic(text string) (Topic, bool) {
	for _, t := range c.Script.Topics {
		if t.re != nil && t.re.MatchString(text) {
			return t, true
		}
	}
	return Topic{}, false
}

// TopicProducts resolves what a topic shows, dropping unknown ids.
func (c *Catalog) TopicProducts(t Topic) []domain.Product {
	if len(t.Products) == 0 {
		return c.ProductsByCategory(t.Category)
	}
	return c.Lookup(t.Products...)
}

// Lookup returns the known products among ids, in order.
func (c *Catalog) Lookup(ids ...string) []domain.Product {
	out := make([]domain.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := c.Product(id); ok {
			out = append(out, p)
		}
	}
	return out
}
