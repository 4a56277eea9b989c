package main

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Vovarama1992/scene-concierge/internal/agent"
	"github.com/Vovarama1992/scene-concierge/internal/ai"
	"github.com/Vovarama1992/scene-concierge/internal/background"
	"github.com/Vovarama1992/scene-concierge/internal/catalog"
	"github.com/Vovarama1992/scene-concierge/internal/concierge"
	"github.com/Vovarama1992/scene-concierge/internal/config"
	"github.com/Vovarama1992/scene-concierge/internal/identity"
	"github.com/Vovarama1992/scene-concierge/internal/logging"
	"github.com/Vovarama1992/scene-concierge/internal/notify"
	"github.com/Vovarama1992/scene-concierge/internal/tasks"
)

const mockLatency = 400 * time.Millisecond

func main() {
	cfg := config.Load()

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	// --- catalog ---
	cat, err := loadCatalog(cfg.CatalogPath)
	if err != nil {
		logger.Fatal("catalog load error", zap.Error(err))
	}

	// --- DB (optional) ---
	var db *sql.DB
	if cfg.DatabaseURL != "" {
		db, err = sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("db open error", zap.Error(err))
		}
		defer db.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := db.PingContext(ctx); err != nil {
			logger.Fatal("db ping error", zap.Error(err))
		}
		cancel()
	}

	// --- background work ---
	queue := tasks.NewQueue(4, 64, 15*time.Second, logger)
	defer queue.Close()

	// --- identity ---
	var store identity.ProfileStore = identity.NewFixtureStore(cat)
	if db != nil && !cfg.UseMockData {
		store = identity.NewRepo(db)
	}
	resolver := identity.NewResolver(identity.NewCatalogTags(cat, cfg.IdentityLatency), store, cat, logger)

	// --- backgrounds ---
	pipeline := background.NewPipeline(
		cat,
		backgroundCache(cfg, logger),
		backgroundRegistry(db),
		cmsClient(cfg),
		imageGenerator(cfg, cat, logger),
		assetProbe(cfg),
		agent.ContextTokens{},
		queue,
		background.Options{
			GenerationEnabled: cfg.GenerativeBackgrounds,
			Limiter:           generationLimiter(cfg.GenerationPerMinute),
		},
		logger,
	)

	// --- concierge ---
	var transcript concierge.Transcript = concierge.NewMemoryTranscript()
	if db != nil {
		transcript = concierge.NewRepo(db)
	}
	hub := concierge.NewHub(concierge.Deps{
		Identity:    resolver,
		Personas:    cat,
		Agents:      agentFactory(cfg, cat, logger),
		Settings:    cat,
		Backgrounds: pipeline,
		Transcript:  transcript,
		Tasks:       queue,
		NewToasts: func() *notify.Queue {
			return notify.NewQueue(cfg.ToastStagger, cfg.ToastDismiss, 32, logger)
		},
	}, concierge.HubLimits{IdleTTL: cfg.SessionIdleTTL, MaxViewers: cfg.MaxViewers}, logger)
	defer hub.Close()

	// --- Router ---
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", concierge.ViewerHeader},
	}))

	concierge.RegisterRoutes(r, concierge.NewHandler(hub, logger))

	// --- health ---
	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pong"))
	})

	logger.Info("listening",
		zap.String("port", cfg.Port),
		zap.String("agent", string(cfg.Agent)),
		zap.Bool("generative_backgrounds", cfg.GenerativeBackgrounds),
	)
	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Default()
	}
	return catalog.Load(path)
}

func agentFactory(cfg config.Config, cat *catalog.Catalog, logger *zap.Logger) agent.Factory {
	switch cfg.Agent {
	case config.AgentRemote:
		return func() agent.Backend {
			return agent.NewRemote(cfg.AgentBaseURL, cfg.AgentID, cfg.AgentToken, cat, logger)
		}
	case config.AgentOpenAI:
		chat := ai.NewOpenAIClient(cfg.OpenAIKey, "", cfg.OpenAIModel, logger)
		return func() agent.Backend {
			return agent.NewLLM(chat, cat.Products, cat, logger)
		}
	default:
		return func() agent.Backend {
			return agent.NewMock(cat, mockLatency)
		}
	}
}

func backgroundCache(cfg config.Config, logger *zap.Logger) background.Cache {
	if cfg.RedisURL == "" {
		return background.NewMemoryCache()
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Warn("bad REDIS_URL, using memory cache", zap.Error(err))
		return background.NewMemoryCache()
	}
	return background.NewRedisCache(redis.NewClient(opts), logger)
}

func backgroundRegistry(db *sql.DB) background.Registry {
	if db == nil {
		return background.NewMemoryRegistry()
	}
	return background.NewRepo(db)
}

func cmsClient(cfg config.Config) background.CMS {
	if cfg.CMSBaseURL == "" {
		return nil
	}
	return background.NewCMSClient(cfg.CMSBaseURL, cfg.CMSChannel)
}

// imageGenerator is nil when no provider key is configured; the pipeline
// then stops at gradients.
func imageGenerator(cfg config.Config, cat *catalog.Catalog, logger *zap.Logger) background.Generator {
	switch cfg.ImageProvider {
	case "imagen", "gemini":
		if cfg.GeminiKey == "" {
			return nil
		}
		g, err := ai.NewGenAIImages(context.Background(), cfg.GeminiKey, cfg.ImagenModel, cat, logger)
		if err != nil {
			logger.Warn("imagen client init failed", zap.Error(err))
			return nil
		}
		return g
	default:
		if cfg.OpenAIKey == "" {
			return nil
		}
		return ai.NewOpenAIImages(cfg.OpenAIKey, "", cfg.OpenAIImageModel, cat, logger)
	}
}

func assetProbe(cfg config.Config) background.Probe {
	switch {
	case cfg.AssetDir != "":
		return background.NewDirProbe(cfg.AssetDir)
	case cfg.AssetBaseURL != "":
		return background.NewHTTPProbe(cfg.AssetBaseURL)
	}
	return nil
}

func generationLimiter(perMinute int) *rate.Limiter {
	if perMinute <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
}
