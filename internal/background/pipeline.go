package background

import (
	"context"
	"math/rand/v2"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/Vovarama1992/scene-concierge/internal/catalog"
	"github.com/Vovarama1992/scene-concierge/internal/domain"
)

const cacheTTL = 24 * time.Hour

var novelPattern = regexp.MustCompile(`(?i)\b(beach|tropical|mountains?|desert|arctic|jungle|space|underwater|island|volcan(o|ic)|aurora|rainforest|glacier|canyon|savanna)\b`)

// IsNovel reports whether a request falls outside the cheap known scenes.
func IsNovel(req domain.BackgroundRequest) bool {
	if !req.Setting.IsKnown() {
		return true
	}
	return novelPattern.MatchString(req.Prompt)
}

// IsRealURL rejects placeholders and anything that is not fetchable.
func IsRealURL(u string) bool {
	u = strings.TrimSpace(u)
	if u == "" || strings.Contains(strings.ToLower(u), "placeholder") {
		return false
	}
	return strings.HasPrefix(u, "https://") || strings.HasPrefix(u, "http://") ||
		strings.HasPrefix(u, "/") || strings.HasPrefix(u, "data:image/")
}

type Options struct {
	GenerationEnabled bool
	// Limiter throttles paid generation calls; nil means unlimited.
	Limiter *rate.Limiter
	// Pick chooses a variant index; defaults to math/rand.
	Pick func(n int) int
}

type Pipeline struct {
	catalog   Catalog
	cache     Cache
	registry  Registry
	cms       CMS
	generator Generator
	probe     Probe
	tokens    TokenSource
	queue     Submitter
	opts      Options
	logger    *zap.Logger

	group singleflight.Group

	mu          sync.Mutex
	lastVariant map[string]string
}

func NewPipeline(
	cat Catalog,
	cache Cache,
	registry Registry,
	cms CMS,
	generator Generator,
	probe Probe,
	tokens TokenSource,
	queue Submitter,
	opts Options,
	logger *zap.Logger,
) *Pipeline {
	if opts.Pick == nil {
		opts.Pick = rand.IntN
	}
	return &Pipeline{
		catalog:     cat,
		cache:       cache,
		registry:    registry,
		cms:         cms,
		generator:   generator,
		probe:       probe,
		tokens:      tokens,
		queue:       queue,
		opts:        opts,
		logger:      logger.Named("background"),
		lastVariant: map[string]string{},
	}
}

// CacheKey is the composite (setting, prompt-or-tag) key.
func CacheKey(req domain.BackgroundRequest) string {
	detail := firstNonEmpty(req.Prompt, req.CMSTag, req.SceneAssetID, req.CMSAssetID)
	if req.EditMode {
		detail = "edit:" + req.ImageURL + ":" + detail
	}
	if req.Mood != "" {
		detail += "|mood:" + strings.ToLower(req.Mood)
	}
	return strings.ToLower(req.Setting.String()) + "|" + detail
}

// Resolve never fails. Identical concurrent requests share one resolution.
func (p *Pipeline) Resolve(ctx context.Context, req domain.BackgroundRequest) domain.Background {
	if req.ImageURL != "" && !req.EditMode && IsRealURL(req.ImageURL) {
		return p.image(req, req.ImageURL, false)
	}

	key := CacheKey(req)
	if !req.Regenerate && p.cache != nil {
		if bg, ok := p.cache.Get(ctx, key); ok {
			p.logger.Debug("background cache hit", zap.String("key", key))
			return bg
		}
	}

	// a regenerate must not join an ordinary resolution already in flight
	flight := key
	if req.Regenerate {
		flight = "regen:" + key
	}
	v, _, _ := p.group.Do(flight, func() (any, error) {
		bg := p.resolve(ctx, req)
		if p.cache != nil && bg.Kind == domain.BackgroundImage && !bg.Default {
			p.cache.Set(ctx, key, bg, cacheTTL)
		}
		return bg, nil
	})
	return v.(domain.Background)
}

func (p *Pipeline) resolve(ctx context.Context, req domain.BackgroundRequest) domain.Background {
	novel := IsNovel(req)
	setting := req.Setting.String()

	if req.SceneAssetID != "" {
		if a := p.find(ctx, "registry", p.registryFind, AssetQuery{ID: req.SceneAssetID}); a != nil {
			p.recordUsage(ctx, a.ID)
			return p.image(req, a.ImageURL, false)
		}
	}

	if !req.Regenerate && !req.EditMode {
		q := AssetQuery{Setting: setting, Mood: req.Mood, Prompt: req.Prompt, Tags: contextTags(req)}
		if a := p.find(ctx, "registry", p.registryFind, q); a != nil {
			p.recordUsage(ctx, a.ID)
			return p.image(req, a.ImageURL, false)
		}
	}

	if !novel && !req.EditMode && !req.Regenerate {
		if path, ok := p.preseeded(ctx, req.Setting); ok {
			return p.image(req, path, true)
		}
	}

	if !p.opts.GenerationEnabled && !novel {
		return p.gradient(req)
	}

	var cmsHit *Asset
	if req.CMSAssetID != "" || req.CMSTag != "" {
		q := AssetQuery{ID: req.CMSAssetID, Setting: setting}
		if req.CMSTag != "" {
			q.Tags = []string{req.CMSTag}
		}
		cmsHit = p.find(ctx, "cms", p.cmsFind, q)
		if cmsHit != nil && !req.Regenerate {
			return p.image(req, cmsHit.ImageURL, false)
		}
	}

	if !wantsGeneration(req) || !(p.opts.GenerationEnabled || novel) || p.generator == nil {
		return p.fallback(req, cmsHit)
	}
	if p.opts.Limiter != nil && !p.opts.Limiter.Allow() {
		p.logger.Warn("generation throttled", zap.String("setting", setting))
		return p.fallback(req, cmsHit)
	}

	prompt, url, err := p.generate(ctx, req)
	if err != nil {
		p.logger.Warn("background generation failed",
			zap.String("setting", setting),
			zap.Bool("novel", novel),
			zap.Error(err),
		)
		return p.fallback(req, cmsHit)
	}

	p.logger.Info("background generated", zap.String("setting", setting), zap.Bool("novel", novel))
	bg := p.image(req, url, false)
	bg.Prompt = prompt
	p.persist(ctx, req, prompt, url)
	return bg
}

func wantsGeneration(req domain.BackgroundRequest) bool {
	return req.Generate || req.Regenerate || req.EditMode || req.Prompt != ""
}

func (p *Pipeline) generate(ctx context.Context, req domain.BackgroundRequest) (string, string, error) {
	switch {
	case req.EditMode && req.ImageURL != "":
		prompt := firstNonEmpty(req.Prompt, p.catalog.ScenePrompt(req.Setting, req.Mood))
		url, err := p.generator.EditImage(ctx, req.ImageURL, prompt)
		return prompt, url, err
	case req.Prompt != "":
		prompt := catalog.WithProducts(req.Prompt, req.Products)
		url, err := p.generator.GenerateFromPrompt(ctx, prompt)
		return prompt, url, err
	default:
		prompt := catalog.WithProducts(p.catalog.ScenePrompt(req.Setting, req.Mood), req.Products)
		url, err := p.generator.GenerateForSetting(ctx, req.Setting, req.Products)
		return prompt, url, err
	}
}

type findFunc func(ctx context.Context, q AssetQuery) (*Asset, error)

func (p *Pipeline) registryFind(ctx context.Context, q AssetQuery) (*Asset, error) {
	if p.registry == nil {
		return nil, nil
	}
	return p.registry.FindAsset(ctx, q)
}

func (p *Pipeline) cmsFind(ctx context.Context, q AssetQuery) (*Asset, error) {
	if p.cms == nil {
		return nil, nil
	}
	return p.cms.FindAsset(ctx, q)
}

// find swallows lookup errors and accepts only real URLs.
func (p *Pipeline) find(ctx context.Context, source string, fn findFunc, q AssetQuery) *Asset {
	a, err := fn(ctx, q)
	if err != nil {
		p.logger.Warn("asset lookup failed", zap.String("source", source), zap.Error(err))
		return nil
	}
	if a == nil || !IsRealURL(a.ImageURL) {
		return nil
	}
	return a
}

// preseeded picks a verified variant, avoiding the one served last time
// for the same setting when there is a choice.
func (p *Pipeline) preseeded(ctx context.Context, s domain.Setting) (string, bool) {
	var paths []string
	for _, a := range p.catalog.PreseededFor(s) {
		if p.probe != nil && p.probe.Exists(ctx, a.Path) {
			paths = append(paths, a.Path)
		}
	}
	if len(paths) == 0 {
		return "", false
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	last := p.lastVariant[s.String()]
	candidates := paths
	if len(paths) > 1 {
		candidates = nil
		for _, path := range paths {
			if path != last {
				candidates = append(candidates, path)
			}
		}
	}
	pick := candidates[p.opts.Pick(len(candidates))]
	p.lastVariant[s.String()] = pick
	return pick, true
}

func (p *Pipeline) fallback(req domain.BackgroundRequest, cmsHit *Asset) domain.Background {
	if cmsHit != nil {
		return p.image(req, cmsHit.ImageURL, false)
	}
	return p.gradient(req)
}

func (p *Pipeline) image(req domain.BackgroundRequest, url string, isDefault bool) domain.Background {
	return domain.Background{
		Kind:    domain.BackgroundImage,
		Value:   url,
		Setting: req.Setting,
		Prompt:  req.Prompt,
		Default: isDefault,
	}
}

func (p *Pipeline) gradient(req domain.BackgroundRequest) domain.Background {
	return domain.Background{
		Kind:    domain.BackgroundGradient,
		Value:   p.catalog.Gradient(req.Setting),
		Setting: req.Setting,
		Default: true,
	}
}

// The token is taken from the request context before the work is queued.
func (p *Pipeline) recordUsage(ctx context.Context, id string) {
	if p.queue == nil || p.registry == nil || id == "" {
		return
	}
	token := p.token(ctx)
	p.queue.Submit("record-usage", func(ctx context.Context) error {
		return p.registry.RecordUsage(ctx, id, token)
	})
}

// persist registers a generated scene so the next identical request is a
// registry hit.
func (p *Pipeline) persist(ctx context.Context, req domain.BackgroundRequest, prompt, url string) {
	if p.queue == nil {
		return
	}
	token := p.token(ctx)
	tags := contextTags(req)
	meta := SceneMetadata{
		Setting:       req.Setting.String(),
		Mood:          req.Mood,
		RequestPrompt: req.Prompt,
		Prompt:        prompt,
		ImageURL:      url,
		Tags:          tags,
	}
	for _, pr := range req.Products {
		meta.Products = append(meta.Products, pr.ID)
	}
	if p.registry != nil {
		p.queue.Submit("register-scene", func(ctx context.Context) error {
			return p.registry.RegisterGeneratedScene(ctx, meta, token)
		})
	}
	if p.cms != nil && !strings.HasPrefix(url, "data:") {
		p.queue.Submit("upload-scene", func(ctx context.Context) error {
			return p.cms.UploadAsset(ctx, url, "scene-"+meta.Setting, tags, token)
		})
	}
}

func (p *Pipeline) token(ctx context.Context) string {
	if p.tokens == nil {
		return ""
	}
	t, err := p.tokens.AccessToken(ctx)
	if err != nil {
		p.logger.Warn("access token unavailable", zap.Error(err))
		return ""
	}
	return t
}

func contextTags(req domain.BackgroundRequest) []string {
	tags := []string{"scene-" + strings.ToLower(strings.ReplaceAll(req.Setting.String(), " ", "-"))}
	if req.Mood != "" {
		tags = append(tags, "mood-"+strings.ToLower(req.Mood))
	}
	if req.CMSTag != "" {
		tags = append(tags, req.CMSTag)
	}
	return tags
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
