package background

import (
	"context"
	"time"

	"github.com/Vovarama1992/scene-concierge/internal/catalog"
	"github.com/Vovarama1992/scene-concierge/internal/domain"
	"github.com/Vovarama1992/scene-concierge/internal/tasks"
)

// Cache holds resolved backgrounds by composite key.
type Cache interface {
	Get(ctx context.Context, key string) (domain.Background, bool)
	Set(ctx context.Context, key string, bg domain.Background, ttl time.Duration)
}

type AssetQuery struct {
	ID      string
	Setting string
	Mood    string
	Prompt  string
	Tags    []string
}

type Asset struct {
	ID       string   `json:"id"`
	ImageURL string   `json:"imageUrl"`
	Setting  string   `json:"setting,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

// SceneMetadata describes a generated scene. RequestPrompt is the prompt
// as the directive sent it; lookups with a prompt match on it, lookups
// without one match on Tags.
type SceneMetadata struct {
	Setting       string
	Mood          string
	RequestPrompt string
	Prompt        string
	ImageURL      string
	Tags          []string
	Products      []string
}

// Registry remembers scenes that were generated before.
type Registry interface {
	FindAsset(ctx context.Context, q AssetQuery) (*Asset, error)
	RecordUsage(ctx context.Context, id, token string) error
	RegisterGeneratedScene(ctx context.Context, meta SceneMetadata, token string) error
}

// CMS is the content-managed image library.
type CMS interface {
	FindAsset(ctx context.Context, q AssetQuery) (*Asset, error)
	UploadAsset(ctx context.Context, imageURL, label string, tags []string, token string) error
}

// Generator is an image generation provider.
type Generator interface {
	GenerateFromPrompt(ctx context.Context, prompt string) (string, error)
	EditImage(ctx context.Context, seedURL, prompt string) (string, error)
	GenerateForSetting(ctx context.Context, setting domain.Setting, products []domain.Product) (string, error)
}

// Probe checks that a static asset exists and is an image.
type Probe interface {
	Exists(ctx context.Context, path string) bool
}

// TokenSource hands out credentials for the persistence calls.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

type Submitter interface {
	Submit(name string, fn tasks.Func) bool
}

// Catalog is the slice of domain configuration the pipeline reads.
type Catalog interface {
	Gradient(s domain.Setting) string
	PreseededFor(s domain.Setting) []catalog.PreseededAsset
	ScenePrompt(s domain.Setting, mood string) string
}
