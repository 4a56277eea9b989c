package catalog

import (
	"strings"

	"github.com/Vovarama1992/scene-concierge/internal/domain"
)

const (
	sceneSuffix = "Empty background scene only, no products, no people, no text or labels. " +
		"Professional industrial photography, clean and organized, soft diffused shadows, ultra high quality, photorealistic."
	stagingSuffix = "Product centered on a perfectly pure white background. No other objects, no surface, no scene. " +
		"Professional e-commerce product photography, ultra high quality, photorealistic. No text, no labels, no logos."
)

// ScenePrompt builds the generation prompt for an empty background.
// Custom settings become a short description of the raw setting text.
func (c *Catalog) ScenePrompt(s domain.Setting, mood string) string {
	base := ""
	if a, ok := c.Settings[s.String()]; ok && s.IsKnown() {
		base = a.ScenePrompt
	}
	if base == "" {
		base = "Wide establishing shot of a " + strings.TrimSpace(s.String()) + " setting, natural lighting"
	}
	if mood = strings.TrimSpace(mood); mood != "" {
		base += ", " + mood + " mood"
	}
	return base + ". " + sceneSuffix
}

// StagingPrompt describes a single product shot for the setting.
func (c *Catalog) StagingPrompt(s domain.Setting) string {
	base := ""
	if a, ok := c.Settings[s.String()]; ok && s.IsKnown() {
		base = a.StagingPrompt
	}
	if base == "" {
		base = c.Settings[domain.SettingNeutral.String()].StagingPrompt
	}
	return base + ". " + stagingSuffix
}

// WithProducts appends product-category context so the scene suits what
// is about to be shown on top of it.
func WithProducts(prompt string, products []domain.Product) string {
	if len(products) == 0 {
		return prompt
	}
	seen := map[string]bool{}
	var cats []string
	for _, p := range products {
		if p.Category != "" && !seen[p.Category] {
			seen[p.Category] = true
			cats = append(cats, strings.ReplaceAll(p.Category, "-", " "))
		}
	}
	if len(cats) == 0 {
		return prompt
	}
	return prompt + " Setting suited to presenting " + strings.Join(cats, " and ") + " equipment."
}
