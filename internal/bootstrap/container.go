package bootstrap

import (
	"context"
	"log"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"ai-tutor-be/internal/config"
	"ai-tutor-be/internal/constant"
	"ai-tutor-be/internal/controller"
	"ai-tutor-be/internal/pkg/logger"
	"ai-tutor-be/internal/repository/implementation"
	"ai-tutor-be/internal/repository/memory"
	"ai-tutor-be/internal/repository/unitofwork"
	"ai-tutor-be/internal/service"
	"ai-tutor-be/pkg/agents"
	"ai-tutor-be/pkg/classifier"
	"ai-tutor-be/pkg/dispatch"
	"ai-tutor-be/pkg/embedding"
	"ai-tutor-be/pkg/envelope"
	"ai-tutor-be/pkg/events"
	"ai-tutor-be/pkg/fallback"
	"ai-tutor-be/pkg/llm"
	"ai-tutor-be/pkg/llm/factory"
	pktNats "ai-tutor-be/pkg/nats"
	"ai-tutor-be/pkg/quota"
	"ai-tutor-be/pkg/retrieval"
	"ai-tutor-be/pkg/routing/registry"
	"ai-tutor-be/pkg/routing/selector"
	"ai-tutor-be/pkg/websearch"
)

type Container struct {
	// Controllers
	ChatController    controller.IChatController
	StatusController  controller.IStatusController
	UserKeyController controller.IUserKeyController

	// Runtime pieces main.go drives
	Logger         logger.ILogger
	Registry       *registry.Registry
	Prober         *registry.Prober
	RoutingWatcher *config.RoutingWatcher
	PubSub         *gochannel.GoChannel
	NatsPublisher  *pktNats.Publisher

	// Warmup hook, set when PRELOAD_MODELS names subjects
	Preload func(ctx context.Context)
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.LogLevel, cfg.App.Environment == "production")

	var uowFactory unitofwork.RepositoryFactory
	if db != nil {
		uowFactory = unitofwork.NewRepositoryFactory(db)
	}

	// 2. Event bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)
	healthBus := events.NewHealthBus(pubSub, sysLogger)

	// NATS telemetry, warn-and-continue when the broker is absent
	var telemetry dispatch.TelemetrySink
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
		telemetry = pktNats.NopPublisher{}
	} else {
		telemetry = natsPub
	}

	// Redis session context, warn-and-continue
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{Addr: cfg.App.RedisURL}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v", err)
	}
	sessionStore := memory.NewSessionContextStore(rdb, constant.HistoryWindowDefault, sysLogger)

	// 3. Embedding provider
	var embeddingProvider embedding.EmbeddingProvider
	if cfg.Ai.EmbeddingProvider == "ollama" {
		embeddingProvider = embedding.NewOllamaProvider(cfg.Ai.OllamaBaseURL, cfg.Ai.OllamaModel)
		log.Printf("[INFO] Using Embedding Provider: OLLAMA (%s)", cfg.Ai.OllamaModel)
	} else if cfg.Keys.GoogleGemini != "" {
		embeddingProvider = embedding.NewGeminiProvider(cfg.Keys.GoogleGemini)
		log.Printf("[INFO] Using Embedding Provider: GEMINI")
	} else {
		log.Printf("[INFO] No embedding provider configured; classifier runs on keywords and patterns only")
	}

	// 4. Routing configuration (hot-reloadable)
	routingWatcher := config.NewRoutingWatcher(cfg.Routing.Path, sysLogger)
	routing := routingWatcher.Current()

	subjectClassifier := classifier.New(routing.Subjects, routing.Weights, embeddingProvider)

	// 5. Backend registry and health plumbing
	backendRegistry := registry.New(defaultBackends(cfg), sysLogger)
	healthMsgs, err := pubSub.Subscribe(context.Background(), events.TopicBackendHealth)
	if err != nil {
		log.Fatalf("[FATAL] Failed to subscribe to health topic: %v", err)
	}
	go backendRegistry.Consume(context.Background(), healthMsgs)

	// 6. Quota limiter
	var quotaRepo quota.Repository
	if db != nil {
		quotaRepo = service.NewQuotaStore(implementation.NewQuotaRepository(db))
	} else {
		quotaRepo = service.NewQuotaStore(memory.NewQuotaRepository())
	}
	limiter := quota.NewLimiter(routing.Quota, quotaRepo, sysLogger)

	routingWatcher.Subscribe(func(rc *config.RoutingConfig) {
		subjectClassifier.Reconfigure(rc.Subjects, rc.Weights)
		limiter.Reconfigure(rc.Quota)
	})

	// 7. Dispatch stack
	credentialCache := memory.NewCredentialCache()
	credentialService := service.NewCredentialService(uowFactory, credentialCache, cfg, sysLogger)

	var searcher websearch.Searcher
	if cfg.Keys.WebSearchURL != "" {
		searcher = websearch.NewClient(cfg.Keys.WebSearchURL, cfg.Keys.WebSearchKey)
	}

	var index retrieval.Index
	if db != nil && embeddingProvider != nil {
		index = retrieval.NewPgvectorIndex(db, embeddingProvider, retrieval.DefaultConfig())
	}

	agentRegistry := agents.NewRegistry(
		agents.NewResearchHandler(),
		agents.NewCodingHandler(),
		agents.NewAcademicHandler(),
		agents.NewCreativeHandler(),
	)

	newProvider := func(b registry.Backend, secret string) (llm.Provider, error) {
		return factory.NewProvider(b.Vendor, b.Model, secret)
	}

	dispatcher := dispatch.New(
		credentialService,
		searcher,
		index,
		agentRegistry,
		healthBus,
		telemetry,
		dispatch.DefaultConfig(),
		sysLogger,
		newProvider,
	)

	shaper := envelope.NewShaper()
	cascade := fallback.New(
		backendRegistry,
		limiter,
		dispatcher,
		shaper,
		defaultBackendId(cfg),
		sysLogger,
	)

	modeSelector := selector.New(backendRegistry, agentRegistry, 0.3, cfg.Ai.UseEnhancedSearch)

	// 8. Health prober
	prober := registry.NewProber(backendRegistry, func(b registry.Backend) (llm.Provider, error) {
		secret := ""
		if b.Vendor == "ollama" {
			secret = cfg.Ai.OllamaBaseURL
		} else if b.Vendor == "gemini" {
			secret = cfg.Keys.GoogleGemini
		}
		return factory.NewProvider(b.Vendor, b.Model, secret)
	}, 30*time.Second, sysLogger)

	// 9. Services and controllers
	chatService := service.NewChatService(subjectClassifier, modeSelector, cascade, sessionStore, sysLogger)
	statusService := service.NewStatusService(backendRegistry, limiter)
	keyService := service.NewUserKeyService(uowFactory, credentialService, sysLogger)

	c := &Container{
		ChatController:    controller.NewChatController(chatService),
		StatusController:  controller.NewStatusController(statusService),
		UserKeyController: controller.NewUserKeyController(keyService),
		Logger:            sysLogger,
		Registry:          backendRegistry,
		Prober:            prober,
		RoutingWatcher:    routingWatcher,
		PubSub:            pubSub,
		NatsPublisher:     natsPub,
	}

	if len(cfg.Ai.PreloadModels) > 0 {
		subjects := make([]classifier.Subject, 0, len(cfg.Ai.PreloadModels))
		for _, id := range cfg.Ai.PreloadModels {
			subjects = append(subjects, classifier.Subject(id))
		}
		c.Preload = func(ctx context.Context) {
			prober.ProbeSubjects(ctx, subjects)
		}
	}

	return c
}

// defaultBackends is the static fleet; availability is runtime state managed
// by the registry, never configuration.
func defaultBackends(cfg *config.Config) []registry.Backend {
	return []registry.Backend{
		{
			Id:          "ollama-qwen-math",
			Vendor:      "ollama",
			Model:       "qwen2.5",
			Specialties: []classifier.Subject{classifier.SubjectMathematics, classifier.SubjectProgramming},
			Priority:    20,
			MinInterval: time.Second,
			Metered:     false,
			Capabilities: registry.Capabilities{
				Chat: true,
			},
		},
		{
			Id:          "gemini-flash",
			Vendor:      "gemini",
			Model:       "gemini-2.0-flash",
			Priority:    15,
			MinInterval: 2 * time.Second,
			Metered:     true,
			Capabilities: registry.Capabilities{
				Chat:  true,
				Embed: true,
			},
		},
		{
			Id:          "ollama-default",
			Vendor:      "ollama",
			Model:       cfg.Ai.DefaultLLMModel,
			Priority:    10,
			MinInterval: time.Second,
			Metered:     false,
			Capabilities: registry.Capabilities{
				Chat: true,
			},
		},
	}
}

func defaultBackendId(cfg *config.Config) string {
	if cfg.Ai.DefaultLLMProvider == "gemini" {
		return "gemini-flash"
	}
	return "ollama-default"
}
