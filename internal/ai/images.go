package ai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/Vovarama1992/scene-concierge/internal/catalog"
	"github.com/Vovarama1992/scene-concierge/internal/domain"
)

const editSuffix = " Keep the framing and camera angle of the reference scene and change only what the description asks for."

// imageModel is the one call each provider has to make; the three
// Generator operations are built on it.
type imageModel func(ctx context.Context, prompt string) (string, error)

type images struct {
	prompts ScenePrompts
	create  imageModel
}

func (i images) GenerateFromPrompt(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", errors.New("image: empty prompt")
	}
	return i.create(ctx, prompt)
}

// EditImage re-renders the scene from its description. Neither provider
// accepts a remote seed image, so the seed only anchors the prompt.
func (i images) EditImage(ctx context.Context, seedURL, prompt string) (string, error) {
	if seedURL == "" {
		return "", errors.New("image: edit without seed")
	}
	return i.GenerateFromPrompt(ctx, strings.TrimSpace(prompt)+editSuffix)
}

func (i images) GenerateForSetting(ctx context.Context, s domain.Setting, products []domain.Product) (string, error) {
	return i.GenerateFromPrompt(ctx, catalog.WithProducts(i.prompts.ScenePrompt(s, ""), products))
}

// OpenAIImages renders backgrounds with DALL·E.
type OpenAIImages struct {
	images
	client *openai.Client
	model  string
	logger *zap.Logger
}

func NewOpenAIImages(apiKey, baseURL, model string, prompts ScenePrompts, logger *zap.Logger) *OpenAIImages {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = openai.CreateImageModelDallE3
	}
	o := &OpenAIImages{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		logger: logger.Named("openai-images"),
	}
	o.images = images{prompts: prompts, create: o.create}
	return o
}

func (o *OpenAIImages) create(ctx context.Context, prompt string) (string, error) {
	resp, err := o.client.CreateImage(ctx, openai.ImageRequest{
		Prompt:         prompt,
		Model:          o.model,
		N:              1,
		Size:           openai.CreateImageSize1792x1024,
		ResponseFormat: openai.CreateImageResponseFormatURL,
	})
	if err != nil {
		return "", fmt.Errorf("openai create image: %w", err)
	}
	if len(resp.Data) == 0 || resp.Data[0].URL == "" {
		return "", errors.New("openai create image: no image returned")
	}
	o.logger.Info("image generated", zap.String("model", o.model))
	return resp.Data[0].URL, nil
}

type generateImagesFunc func(ctx context.Context, model, prompt string, cfg *genai.GenerateImagesConfig) (*genai.GenerateImagesResponse, error)

// GenAIImages renders backgrounds with Imagen and returns data URLs.
type GenAIImages struct {
	images
	generate generateImagesFunc
	model    string
	logger   *zap.Logger
}

func NewGenAIImages(ctx context.Context, apiKey, model string, prompts ScenePrompts, logger *zap.Logger) (*GenAIImages, error) {
	if apiKey == "" {
		return nil, errors.New("genai: api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return newGenAIImages(client.Models.GenerateImages, model, prompts, logger), nil
}

func newGenAIImages(fn generateImagesFunc, model string, prompts ScenePrompts, logger *zap.Logger) *GenAIImages {
	if model == "" {
		model = "imagen-3.0-generate-002"
	}
	g := &GenAIImages{generate: fn, model: model, logger: logger.Named("genai-images")}
	g.images = images{prompts: prompts, create: g.create}
	return g
}

func (g *GenAIImages) create(ctx context.Context, prompt string) (string, error) {
	resp, err := g.generate(ctx, g.model, prompt, &genai.GenerateImagesConfig{
		NumberOfImages: 1,
		AspectRatio:    "16:9",
	})
	if err != nil {
		return "", fmt.Errorf("genai generate images: %w", err)
	}
	if resp == nil || len(resp.GeneratedImages) == 0 || resp.GeneratedImages[0].Image == nil {
		return "", errors.New("genai generate images: no image returned")
	}
	img := resp.GeneratedImages[0].Image
	if len(img.ImageBytes) == 0 {
		return "", errors.New("genai generate images: empty image")
	}
	mime := img.MIMEType
	if mime == "" {
		mime = "image/png"
	}
	g.logger.Info("image generated", zap.String("model", g.model), zap.Int("bytes", len(img.ImageBytes)))
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(img.ImageBytes), nil
}
