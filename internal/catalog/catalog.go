package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Vovarama1992/scene-concierge/internal/domain"
)

//go:embed fixtures/energy.yaml
var defaultFixture []byte

var ErrUnknownPersona = errors.New("catalog: unknown persona")

type SettingAssets struct {
	Gradient      string `yaml:"gradient"`
	ScenePrompt   string `yaml:"scenePrompt"`
	StagingPrompt string `yaml:"stagingPrompt"`
}

// PreseededAsset is a background that ships with the deployment.
type PreseededAsset struct {
	Setting string   `yaml:"setting"`
	Variant string   `yaml:"variant"`
	Path    string   `yaml:"path"`
	Tags    []string `yaml:"tags"`
}

type PersonaStub struct {
	ID         string              `yaml:"id" json:"id"`
	Label      string              `yaml:"label" json:"label"`
	Subtitle   string              `yaml:"subtitle" json:"subtitle"`
	Tier       domain.IdentityTier `yaml:"tier" json:"identityTier"`
	ResolvedID string              `yaml:"resolvedId" json:"-"`
	Confidence float64             `yaml:"confidence" json:"-"`
}

// Persona is a selectable demo visitor. Known personas carry a profile,
// appended ones carry only third-party signals.
type Persona struct {
	Stub     PersonaStub             `yaml:"stub"`
	Profile  *domain.CustomerProfile `yaml:"profile"`
	Appended *domain.AppendedProfile `yaml:"appended"`
}

type SuggestedActions struct {
	Known     []string `yaml:"known"`
	Discovery []string `yaml:"discovery"`
}

// Catalog is the pluggable domain configuration: everything that would
// change if the storefront sold something else.
type Catalog struct {
	Brand              string                   `yaml:"brand"`
	DefaultGradient    string                   `yaml:"defaultGradient"`
	Settings           map[string]SettingAssets `yaml:"settings"`
	Preseeded          []PreseededAsset         `yaml:"preseeded"`
	CategorySettings   map[string]string        `yaml:"categorySettings"`
	InterestCategories map[string][]string      `yaml:"interestCategories"`
	SuggestedActions   SuggestedActions         `yaml:"suggestedActions"`
	Script             Script                   `yaml:"script"`
	Products           []domain.Product         `yaml:"products"`
	Personas           []Persona                `yaml:"personas"`

	productIdx map[string]int
	personaIdx map[string]int
}

// Default parses the embedded renewable-energy fixture.
func Default() (*Catalog, error) {
	return Parse(defaultFixture)
}

// Load reads a catalog file; an empty path means the embedded default.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return Parse(b)
}

func Parse(b []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := c.index(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) index() error {
	if c.DefaultGradient == "" {
		return errors.New("catalog: defaultGradient is required")
	}
	c.productIdx = make(map[string]int, len(c.Products))
	for i, p := range c.Products {
		if _, dup := c.productIdx[p.ID]; dup {
			return fmt.Errorf("catalog: duplicate product %q", p.ID)
		}
		c.productIdx[p.ID] = i
	}
	c.personaIdx = make(map[string]int, len(c.Personas))
	for i, p := range c.Personas {
		if p.Stub.ID == "" {
			return fmt.Errorf("catalog: persona #%d has no id", i)
		}
		if _, dup := c.personaIdx[p.Stub.ID]; dup {
			return fmt.Errorf("catalog: duplicate persona %q", p.Stub.ID)
		}
		switch p.Stub.Tier {
		case domain.TierKnown, domain.TierAppended, domain.TierAnonymous:
		default:
			return fmt.Errorf("catalog: persona %q has unknown tier %q", p.Stub.ID, p.Stub.Tier)
		}
		c.personaIdx[p.Stub.ID] = i
	}
	return c.Script.compile()
}

func (c *Catalog) Persona(key string) (Persona, error) {
	i, ok := c.personaIdx[key]
	if !ok {
		return Persona{}, fmt.Errorf("%w: %s", ErrUnknownPersona, key)
	}
	return c.Personas[i], nil
}

// Stubs lists selectable personas in file order.
func (c *Catalog) Stubs() []PersonaStub {
	out := make([]PersonaStub, 0, len(c.Personas))
	for _, p := range c.Personas {
		out = append(out, p.Stub)
	}
	return out
}

// FixtureProfile returns a copy of the fixture profile stored for a
// resolved id, searching known personas only.
func (c *Catalog) FixtureProfile(resolvedID string) (*domain.CustomerProfile, bool) {
	for _, p := range c.Personas {
		if p.Profile != nil && p.Stub.ResolvedID == resolvedID {
			return p.Profile.Clone(), true
		}
	}
	return nil, false
}

// ProfileByEmail matches case-insensitively.
func (c *Catalog) ProfileByEmail(email string) (*domain.CustomerProfile, PersonaStub, bool) {
	email = strings.ToLower(strings.TrimSpace(email))
	for _, p := range c.Personas {
		if p.Profile != nil && strings.ToLower(p.Profile.Email) == email {
			return p.Profile.Clone(), p.Stub, true
		}
	}
	return nil, PersonaStub{}, false
}

func (c *Catalog) Product(id string) (domain.Product, bool) {
	i, ok := c.productIdx[id]
	if !ok {
		return domain.Product{}, false
	}
	return c.Products[i], true
}

func (c *Catalog) ProductsByCategory(category string) []domain.Product {
	var out []domain.Product
	for _, p := range c.Products {
		if p.Category == category {
			out = append(out, p)
		}
	}
	return out
}

// Gradient falls back to the default for custom settings.
func (c *Catalog) Gradient(s domain.Setting) string {
	if a, ok := c.Settings[s.String()]; ok && s.IsKnown() && a.Gradient != "" {
		return a.Gradient
	}
	return c.DefaultGradient
}

// SettingFor returns the setting mapped to the first category that has one.
func (c *Catalog) SettingFor(categories []string) (domain.Setting, bool) {
	for _, cat := range categories {
		if name, ok := c.CategorySettings[cat]; ok {
			return domain.ParseSetting(name), true
		}
	}
	return domain.Setting{}, false
}

// SettingForProducts collects categories in product order.
func (c *Catalog) SettingForProducts(products []domain.Product) (domain.Setting, bool) {
	cats := make([]string, 0, len(products))
	for _, p := range products {
		cats = append(cats, p.Category)
	}
	return c.SettingFor(cats)
}

func (c *Catalog) PreseededFor(s domain.Setting) []PreseededAsset {
	if !s.IsKnown() {
		return nil
	}
	var out []PreseededAsset
	for _, a := range c.Preseeded {
		if a.Setting == s.String() {
			out = append(out, a)
		}
	}
	return out
}

// BiasCategories maps free-text interests onto catalog categories. The
// result is sorted and deduplicated.
func (c *Catalog) BiasCategories(interests []string) []string {
	keywords := make([]string, 0, len(c.InterestCategories))
	for k := range c.InterestCategories {
		keywords = append(keywords, k)
	}
	sort.Strings(keywords)

	seen := map[string]bool{}
	var out []string
	for _, in := range interests {
		in = strings.ToLower(in)
		for _, kw := range keywords {
			if !strings.Contains(in, kw) {
				continue
			}
			for _, cat := range c.InterestCategories[kw] {
				if !seen[cat] {
					seen[cat] = true
					out = append(out, cat)
				}
			}
		}
	}
	sort.Strings(out)
	return out
}
