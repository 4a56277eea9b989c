package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type AgentBackend string

const (
	AgentMock   AgentBackend = "mock"
	AgentRemote AgentBackend = "remote"
	AgentOpenAI AgentBackend = "openai"
)

type Config struct {
	Port     string
	LogLevel string

	DatabaseURL string
	RedisURL    string

	CatalogPath string
	UseMockData bool

	Agent            AgentBackend
	AgentBaseURL     string
	AgentID          string
	AgentToken       string
	OpenAIKey        string
	OpenAIModel      string
	OpenAIImageModel string

	ImageProvider         string
	GeminiKey             string
	ImagenModel           string
	GenerativeBackgrounds bool
	GenerationPerMinute   int

	CMSBaseURL   string
	CMSChannel   string
	AssetBaseURL string
	AssetDir     string

	IdentityLatency time.Duration
	ToastStagger    time.Duration
	ToastDismiss    time.Duration

	SessionIdleTTL time.Duration
	MaxViewers     int
}

// Load reads .env when present, then the process environment.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Port:     str("PORT", "8080"),
		LogLevel: str("LOG_LEVEL", "info"),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),

		CatalogPath: os.Getenv("CATALOG_PATH"),
		UseMockData: boolean("USE_MOCK_DATA", true),

		Agent:            AgentBackend(strings.ToLower(str("AGENT_BACKEND", string(AgentMock)))),
		AgentBaseURL:     os.Getenv("AGENT_BASE_URL"),
		AgentID:          os.Getenv("AGENT_ID"),
		AgentToken:       os.Getenv("AGENT_ACCESS_TOKEN"),
		OpenAIKey:        os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:      os.Getenv("OPENAI_MODEL"),
		OpenAIImageModel: os.Getenv("OPENAI_IMAGE_MODEL"),

		ImageProvider:         strings.ToLower(str("IMAGE_PROVIDER", "openai")),
		GeminiKey:             os.Getenv("GEMINI_API_KEY"),
		ImagenModel:           str("IMAGEN_MODEL", "imagen-3.0-generate-002"),
		GenerativeBackgrounds: boolean("ENABLE_GENERATIVE_BACKGROUNDS", false),
		GenerationPerMinute:   integer("GENERATION_RATE_PER_MIN", 6),

		CMSBaseURL:   os.Getenv("CMS_BASE_URL"),
		CMSChannel:   str("CMS_CHANNEL", "scene-backgrounds"),
		AssetBaseURL: os.Getenv("ASSET_BASE_URL"),
		AssetDir:     os.Getenv("ASSET_DIR"),

		IdentityLatency: duration("IDENTITY_LATENCY", 300*time.Millisecond),
		ToastStagger:    duration("TOAST_STAGGER", 600*time.Millisecond),
		ToastDismiss:    duration("TOAST_DISMISS", 4*time.Second),

		SessionIdleTTL: duration("SESSION_IDLE_TTL", 30*time.Minute),
		MaxViewers:     integer("MAX_VIEWERS", 1000),
	}
}

func str(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func boolean(key string, def bool) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return def
	}
	return v
}

func integer(key string, def int) int {
	v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return def
	}
	return v
}

func duration(key string, def time.Duration) time.Duration {
	v, err := time.ParseDuration(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return def
	}
	return v
}
