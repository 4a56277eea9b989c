package scene

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Vovarama1992/scene-concierge/internal/domain"
)

// BackgroundSource resolves backgrounds. It must not fail; every problem
// degrades to some background.
type BackgroundSource interface {
	Resolve(ctx context.Context, req domain.BackgroundRequest) domain.Background
}

// Settings is the part of the catalog the director needs.
type Settings interface {
	Gradient(s domain.Setting) string
	SettingForProducts(products []domain.Product) (domain.Setting, bool)
}

// Outcome reports what a directive did. Passthrough carries directives
// that only the presentation layer or the caller act on.
type Outcome struct {
	State             domain.SceneState
	Passthrough       domain.Directive
	BackgroundPending bool
}

const backgroundTimeout = 90 * time.Second

// Director owns one session's scene. All mutation goes through Reduce.
type Director struct {
	settings    Settings
	backgrounds BackgroundSource
	logger      *zap.Logger

	mu    sync.Mutex
	state domain.SceneState
	seq   uint64 // transition keys
	gen   uint64 // bumped by reset/restore; stale async work is dropped
	bgReq uint64 // latest background request
	wg    sync.WaitGroup
}

func NewDirector(settings Settings, backgrounds BackgroundSource, logger *zap.Logger) *Director {
	d := &Director{
		settings:    settings,
		backgrounds: backgrounds,
		logger:      logger.Named("scene"),
	}
	d.state = Initial(settings.Gradient(domain.Known(domain.SettingNeutral)))
	return d
}

func (d *Director) State() domain.SceneState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state.Clone()
}

// Apply interprets one directive. A nil directive is a no-op.
func (d *Director) Apply(ctx context.Context, dir domain.Directive) (Outcome, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var pending bool
	switch v := dir.(type) {
	case nil:
	case domain.ShowProducts:
		switch n := len(v.Products); {
		case n == 1:
			d.dispatch(TransitionLayout{Layout: domain.LayoutProductHero, Products: v.Products, Key: d.nextKey(domain.LayoutProductHero)})
		case n > 1:
			d.dispatch(TransitionLayout{Layout: domain.LayoutProductGrid, Products: v.Products, Key: d.nextKey(domain.LayoutProductGrid)})
		}
		pending = d.updateScene(ctx, v.Scene, v.Products)
	case domain.ChangeScene:
		hints := v.Scene
		pending = d.updateScene(ctx, &hints, nil)
	case domain.InitiateCheckout:
		d.dispatch(OpenCheckout{})
	case domain.ConfirmOrder:
		d.dispatch(CloseCheckout{})
	case domain.WelcomeScene:
		d.dispatch(ShowWelcome{
			Data: domain.WelcomeData{Message: v.Message, Subtext: v.Subtext},
			Key:  d.nextKey(domain.LayoutConversation),
		})
		pending = d.welcomeBackground(ctx, v.Scene)
	case domain.ResetScene:
		d.resetLocked()
	case domain.ShowOrderStatus, domain.ShowAccountSummary, domain.IdentifyCustomer:
		return Outcome{State: d.state.Clone(), Passthrough: dir}, nil
	default:
		return Outcome{State: d.state.Clone()}, fmt.Errorf("scene: unhandled directive %T", dir)
	}

	return Outcome{State: d.state.Clone(), BackgroundPending: pending}, nil
}

func (d *Director) DismissWelcome() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state.WelcomeActive {
		d.dispatch(DismissWelcome{})
	}
}

func (d *Director) OpenCheckout() domain.SceneState {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dispatch(OpenCheckout{})
	return d.state.Clone()
}

func (d *Director) CloseCheckout() domain.SceneState {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dispatch(CloseCheckout{})
	return d.state.Clone()
}

// Reset returns to the initial state and orphans in-flight backgrounds.
func (d *Director) Reset() domain.SceneState {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resetLocked()
	return d.state.Clone()
}

// Restore replaces the state wholesale, as when switching back to a
// persona. In-flight backgrounds from before are dropped.
func (d *Director) Restore(s domain.SceneState) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gen++
	s = s.Clone()
	if s.Background.Kind == domain.BackgroundGenerating {
		// the work that would have finished it belonged to the old generation
		s.Background = domain.Background{
			Kind:    domain.BackgroundGradient,
			Value:   d.settings.Gradient(s.Setting),
			Setting: s.Setting,
			Default: true,
		}
	}
	d.state = s
}

// Settle blocks until in-flight background work has finished.
func (d *Director) Settle() {
	d.wg.Wait()
}

func (d *Director) resetLocked() {
	d.gen++
	d.dispatch(Reset{Gradient: d.settings.Gradient(domain.Known(domain.SettingNeutral))})
}

func (d *Director) dispatch(e Event) {
	d.state = Reduce(d.state, e)
}

func (d *Director) nextKey(l domain.Layout) string {
	d.seq++
	return fmt.Sprintf("%s-%d", l, d.seq)
}

// updateScene handles setting and background for show-products and
// change-scene. It reports whether background work was started.
func (d *Director) updateScene(ctx context.Context, hints *domain.SceneHints, products []domain.Product) bool {
	current := d.state.Background

	var setting domain.Setting
	var changed bool
	switch {
	case hints != nil && !hints.Setting.IsZero():
		setting, changed = hints.Setting, true
	case len(products) > 0 && !hasImage(current):
		setting, changed = d.settings.SettingForProducts(products)
	}
	optIn := hints != nil && hints.OptsIn()
	if !changed && !optIn {
		return false
	}
	if !changed {
		setting = d.state.Setting
	}
	d.dispatch(SetSetting{Setting: setting})

	if skipBackground(current, setting, hints) {
		return false
	}
	if optIn {
		d.startBackground(ctx, domain.RequestFromHints(setting, hints, products), true)
		return true
	}
	if current.Setting == setting {
		return false
	}
	d.dispatch(SetBackground{Background: d.gradient(setting)})
	return false
}

// welcome backgrounds only generate when explicitly asked to; otherwise
// the pipeline serves a pre-seeded or static default.
func (d *Director) welcomeBackground(ctx context.Context, hints *domain.SceneHints) bool {
	setting := domain.Known(domain.SettingNeutral)
	if hints != nil && !hints.Setting.IsZero() {
		setting = hints.Setting
	}
	d.dispatch(SetSetting{Setting: setting})
	current := d.state.Background
	if skipBackground(current, setting, hints) {
		return false
	}
	req := domain.RequestFromHints(setting, hints, nil)
	if current.Setting != setting || current.Kind != domain.BackgroundGradient {
		d.dispatch(SetBackground{Background: d.gradient(setting)})
	}
	d.startBackground(ctx, req, req.Generate || req.Regenerate)
	return true
}

// skip when the current background already is, or is becoming, the
// requested scene, unless the directive asks for something new
func skipBackground(current domain.Background, setting domain.Setting, hints *domain.SceneHints) bool {
	if hints != nil && (hints.Regenerate || (hints.Prompt != "" && hints.Prompt != current.Prompt)) {
		return false
	}
	if current.Setting != setting {
		return false
	}
	switch current.Kind {
	case domain.BackgroundImage:
		return !current.Default
	case domain.BackgroundGenerating:
		return true
	}
	return false
}

func hasImage(b domain.Background) bool {
	return b.Kind == domain.BackgroundImage && b.Value != ""
}

func (d *Director) gradient(s domain.Setting) domain.Background {
	return domain.Background{
		Kind:    domain.BackgroundGradient,
		Value:   d.settings.Gradient(s),
		Setting: s,
		Default: true,
	}
}

func (d *Director) startBackground(ctx context.Context, req domain.BackgroundRequest, showLoading bool) {
	d.bgReq++
	gen, token := d.gen, d.bgReq
	if showLoading {
		d.dispatch(SetBackground{Background: domain.Background{
			Kind:    domain.BackgroundGenerating,
			Loading: true,
			Setting: req.Setting,
			Prompt:  req.Prompt,
		}})
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), backgroundTimeout)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer cancel()
		bg := d.backgrounds.Resolve(ctx, req)

		d.mu.Lock()
		defer d.mu.Unlock()
		if gen != d.gen || token != d.bgReq {
			d.logger.Debug("dropping stale background",
				zap.String("setting", req.Setting.String()),
				zap.Uint64("generation", gen),
			)
			return
		}
		if !showLoading && bg.Kind != domain.BackgroundImage {
			return
		}
		bg.Setting = req.Setting
		bg.Loading = false
		if bg.Prompt == "" {
			bg.Prompt = req.Prompt
		}
		d.dispatch(SetBackground{Background: bg})
	}()
}
