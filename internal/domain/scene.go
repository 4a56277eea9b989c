package domain

import (
	"encoding/json"
	"strings"
)

type Layout string

const (
	LayoutConversation Layout = "conversation-centered"
	LayoutProductHero  Layout = "product-hero"
	LayoutProductGrid  Layout = "product-grid"
	LayoutCheckout     Layout = "checkout"
)

type ChatPosition string

const (
	ChatCenter    ChatPosition = "center"
	ChatBottom    ChatPosition = "bottom"
	ChatMinimized ChatPosition = "minimized"
)

// KnownSetting enumerates the settings that have prompts, gradients and
// pre-seeded assets.
type KnownSetting int

const (
	SettingCustom KnownSetting = iota
	SettingNeutral
	SettingWarehouse
	SettingFactory
	SettingLab
	SettingOffice
	SettingLoadingDock
	SettingCleanroom
	SettingProductionFloor
	SettingConference
)

var knownSettingNames = map[KnownSetting]string{
	SettingNeutral:         "neutral",
	SettingWarehouse:       "warehouse",
	SettingFactory:         "factory",
	SettingLab:             "lab",
	SettingOffice:          "office",
	SettingLoadingDock:     "loading-dock",
	SettingCleanroom:       "cleanroom",
	SettingProductionFloor: "production-floor",
	SettingConference:      "conference",
}

// KnownSettings lists every non-custom setting in declaration order.
func KnownSettings() []KnownSetting {
	return []KnownSetting{
		SettingNeutral, SettingWarehouse, SettingFactory, SettingLab, SettingOffice,
		SettingLoadingDock, SettingCleanroom, SettingProductionFloor, SettingConference,
	}
}

func (k KnownSetting) String() string {
	return knownSettingNames[k]
}

// Setting is either one of the known settings or a custom one carrying the
// raw string the agent sent.
type Setting struct {
	Known  KnownSetting
	Custom string
}

func Known(k KnownSetting) Setting { return Setting{Known: k} }

func CustomSetting(raw string) Setting { return Setting{Known: SettingCustom, Custom: raw} }

// ParseSetting maps a wire value to a Setting. Empty input yields neutral.
func ParseSetting(raw string) Setting {
	v := strings.ToLower(strings.TrimSpace(raw))
	if v == "" {
		return Known(SettingNeutral)
	}
	for k, name := range knownSettingNames {
		if name == v {
			return Known(k)
		}
	}
	return CustomSetting(strings.TrimSpace(raw))
}

func (s Setting) IsKnown() bool { return s.Known != SettingCustom }

func (s Setting) IsZero() bool { return s.Known == SettingCustom && s.Custom == "" }

func (s Setting) String() string {
	if s.IsKnown() {
		return s.Known.String()
	}
	return s.Custom
}

func (s Setting) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Setting) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*s = ParseSetting(raw)
	return nil
}

type BackgroundKind string

const (
	BackgroundGradient   BackgroundKind = "gradient"
	BackgroundImage      BackgroundKind = "image"
	BackgroundGenerating BackgroundKind = "generating"
)

type Background struct {
	Kind    BackgroundKind `json:"type"`
	Value   string         `json:"value"`
	Loading bool           `json:"isLoading,omitempty"`
	// Setting and Prompt record what produced this background so repeated
	// directives can be recognised.
	Setting Setting `json:"setting"`
	Prompt  string  `json:"generationPrompt,omitempty"`
	Default bool    `json:"default,omitempty"`
}

type WelcomeData struct {
	Message string `json:"message"`
	Subtext string `json:"subtext,omitempty"`
}

// SceneState has no hidden fields: everything the presentation layer needs
// is here.
type SceneState struct {
	Layout         Layout       `json:"layout"`
	Setting        Setting      `json:"setting"`
	Background     Background   `json:"background"`
	ChatPosition   ChatPosition `json:"chatPosition"`
	Products       []Product    `json:"products"`
	CheckoutActive bool         `json:"checkoutActive"`
	WelcomeActive  bool         `json:"welcomeActive"`
	WelcomeData    *WelcomeData `json:"welcomeData,omitempty"`
	TransitionKey  string       `json:"transitionKey"`
}

// Clone copies the product slice and welcome pointer.
func (s SceneState) Clone() SceneState {
	c := s
	if s.Products != nil {
		c.Products = make([]Product, len(s.Products))
		copy(c.Products, s.Products)
	}
	if s.WelcomeData != nil {
		w := *s.WelcomeData
		c.WelcomeData = &w
	}
	return c
}
