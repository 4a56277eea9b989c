package scene

import "github.com/Vovarama1992/scene-concierge/internal/domain"

const InitialKey = "initial"

// Initial is the fixed starting state. gradient is the deployment's
// default background.
func Initial(gradient string) domain.SceneState {
	return domain.SceneState{
		Layout:  domain.LayoutConversation,
		Setting: domain.Known(domain.SettingNeutral),
		Background: domain.Background{
			Kind:    domain.BackgroundGradient,
			Value:   gradient,
			Setting: domain.Known(domain.SettingNeutral),
			Default: true,
		},
		ChatPosition:  domain.ChatCenter,
		Products:      []domain.Product{},
		TransitionKey: InitialKey,
	}
}

// Event is a single state transition. The set is closed.
type Event interface {
	apply(s domain.SceneState) domain.SceneState
}

type TransitionLayout struct {
	Layout   domain.Layout
	Products []domain.Product // nil keeps the current products
	Key      string
}

type SetSetting struct{ Setting domain.Setting }

type SetBackground struct{ Background domain.Background }

type OpenCheckout struct{}

type CloseCheckout struct{}

type ShowWelcome struct {
	Data domain.WelcomeData
	Key  string
}

type DismissWelcome struct{}

type Reset struct{ Gradient string }

// Reduce never mutates s.
func Reduce(s domain.SceneState, e Event) domain.SceneState {
	return e.apply(s.Clone())
}

func chatFor(l domain.Layout) domain.ChatPosition {
	switch l {
	case domain.LayoutConversation:
		return domain.ChatCenter
	case domain.LayoutCheckout:
		return domain.ChatMinimized
	}
	return domain.ChatBottom
}

func (e TransitionLayout) apply(s domain.SceneState) domain.SceneState {
	s.Layout = e.Layout
	s.ChatPosition = chatFor(e.Layout)
	if e.Products != nil {
		s.Products = append([]domain.Product{}, e.Products...)
	}
	s.TransitionKey = e.Key
	return s
}

func (e SetSetting) apply(s domain.SceneState) domain.SceneState {
	s.Setting = e.Setting
	return s
}

func (e SetBackground) apply(s domain.SceneState) domain.SceneState {
	s.Background = e.Background
	return s
}

func (OpenCheckout) apply(s domain.SceneState) domain.SceneState {
	s.CheckoutActive = true
	s.ChatPosition = domain.ChatMinimized
	return s
}

func (CloseCheckout) apply(s domain.SceneState) domain.SceneState {
	s.CheckoutActive = false
	s.ChatPosition = domain.ChatBottom
	return s
}

func (e ShowWelcome) apply(s domain.SceneState) domain.SceneState {
	w := e.Data
	s.WelcomeActive = true
	s.WelcomeData = &w
	s.Layout = domain.LayoutConversation
	s.ChatPosition = domain.ChatCenter
	s.TransitionKey = e.Key
	return s
}

func (DismissWelcome) apply(s domain.SceneState) domain.SceneState {
	s.WelcomeActive = false
	s.WelcomeData = nil
	return s
}

func (e Reset) apply(domain.SceneState) domain.SceneState {
	return Initial(e.Gradient)
}
