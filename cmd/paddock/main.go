package main

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	openai "github.com/sashabaranov/go-openai"

	"github.com/smarter-poker/world-hub/internal/analysis"
	"github.com/smarter-poker/world-hub/internal/captions"
	svcconfig "github.com/smarter-poker/world-hub/internal/config"
	"github.com/smarter-poker/world-hub/internal/content"
	"github.com/smarter-poker/world-hub/internal/engine"
	"github.com/smarter-poker/world-hub/internal/feed"
	"github.com/smarter-poker/world-hub/internal/handlers"
	"github.com/smarter-poker/world-hub/internal/ratelimit"
	"github.com/smarter-poker/world-hub/internal/reservation"
	"github.com/smarter-poker/world-hub/internal/schedule"
	"github.com/smarter-poker/world-hub/pkg/config"
	"github.com/smarter-poker/world-hub/pkg/database"
	"github.com/smarter-poker/world-hub/pkg/logging"
	"github.com/smarter-poker/world-hub/pkg/monitoring"
	"github.com/smarter-poker/world-hub/pkg/redis"
	"github.com/smarter-poker/world-hub/pkg/server"
	"github.com/smarter-poker/world-hub/pkg/version"
)

func main() {
	logger := logging.NewLoggerWithService("paddock")
	config.LoadEnv(logger)
	logger.SetLevel(config.GetLogLevel())

	cfg, err := svcconfig.Load()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}
	if cfg.CronSecret == "" {
		logger.Warn("CRON_SECRET is not set, trigger endpoints will reject all requests")
	}

	dbCfg := database.DefaultConfig()
	dbCfg.URL = cfg.DatabaseURL
	db := database.MustConnect(dbCfg, logger)
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := database.Migrate(ctx, db, logger); err != nil {
		cancel()
		logger.WithError(err).Fatal("Failed to run migrations")
	}
	cancel()

	redisClient, err := redis.NewClient(context.Background(), redis.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Redis")
	}
	defer redisClient.Close()

	var openaiClient *openai.Client
	if cfg.OpenAIAPIKey != "" {
		openaiClient = openai.NewClient(cfg.OpenAIAPIKey)
	} else {
		logger.Info("OPENAI_API_KEY is not set, captions and analysis fall back to templates")
	}

	// Monitoring
	healthChecker := monitoring.NewHealthChecker("paddock", version.Version)
	healthChecker.AddCheck("database", monitoring.DatabaseHealthCheck(db))
	healthChecker.AddCheck("redis", monitoring.RedisHealthCheck(redisClient))
	healthChecker.AddCheck("config", monitoring.ConfigurationHealthCheck(map[string]string{
		"DATABASE_URL": cfg.DatabaseURL,
		"REDIS_ADDR":   cfg.RedisAddr,
	}))

	metricsCollector := monitoring.NewMetricsCollector("paddock", version.Version, version.GitCommit)
	handlerMetrics := &handlers.Metrics{
		PostsCreated: metricsCollector.NewCounter(
			"paddock_posts_created_total", "Posts created by persona triggers", []string{"content_type"}),
		ReservationConflicts: metricsCollector.NewCounter(
			"paddock_reservation_conflicts_total", "Reservation attempts lost to another claimant", []string{"content_type"}),
		EngagementActions: metricsCollector.NewCounter(
			"paddock_engagement_actions_total", "Likes and comments produced by engagement triggers", []string{"action"}),
	}
	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "paddock_analysis_cache_hits_total", Help: "Analysis responses served from cache"})
	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "paddock_analysis_cache_misses_total", Help: "Analysis responses computed fresh"})
	rateDenials := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "paddock_ratelimit_denials_total", Help: "Analysis requests denied by the rate limiter"})
	metricsCollector.RegisterCustomMetric("analysis_cache_hits", cacheHits)
	metricsCollector.RegisterCustomMetric("analysis_cache_misses", cacheMisses)
	metricsCollector.RegisterCustomMetric("ratelimit_denials", rateDenials)
	handlerMetrics.AnalysisCacheHits = cacheHits
	handlerMetrics.AnalysisCacheMisses = cacheMisses
	handlerMetrics.RateLimitDenials = rateDenials

	// Domain wiring
	dedup := reservation.NewStore(reservation.Config{
		DB:              db,
		Logger:          logger,
		ClipCooldown:    cfg.ClipCooldown,
		ArticleCooldown: cfg.ArticleCooldown,
	})

	captionChain := captions.NewChain(logger,
		captions.NewOpenAIGenerator(openaiClient),
		captions.NewTemplateGenerator(0),
	)

	eng := engine.New(engine.Config{
		Personas:           engine.NewPersonaStore(db),
		Clips:              content.NewCatalog(content.CatalogConfig{DB: db, Logger: logger}),
		Articles:           content.NewArticleSource(db, 48*time.Hour),
		Dedup:              dedup,
		Feed:               feed.NewStore(db, logger),
		Captions:           captionChain,
		Assigner:           schedule.NewAssigner(cfg.SlotMinutes, cfg.Patterns),
		Rates:              schedule.NewRateModel(),
		Redis:              redisClient,
		Logger:             logger,
		AttemptBudget:      cfg.AttemptBudget,
		SlotTolerance:      cfg.SlotTolerance,
		PersonasPerTrigger: cfg.PersonasPerTrigger,
	})

	advisor := analysis.NewAdvisor(logger,
		analysis.TemplateStrategy{},
		analysis.NewOpenAIStrategy(openaiClient),
		analysis.RuleStrategy{},
	)

	h := handlers.New(handlers.Config{
		Engine: eng,
		Limiter: ratelimit.New(ratelimit.Config{
			Client: redisClient,
			Logger: logger,
			Window: cfg.RateLimitWindow,
			Max:    cfg.RateLimitMax,
		}),
		Cache: analysis.NewCache(analysis.CacheConfig{
			Client:     redisClient,
			Logger:     logger,
			TTL:        cfg.AnalysisCacheTTL,
			MaxEntries: int64(cfg.AnalysisCacheMax),
		}),
		Advisor:    advisor,
		CronSecret: cfg.CronSecret,
		Metrics:    handlerMetrics,
		Logger:     logger,
	})

	router := server.SetupServiceRouter(logger, "paddock", healthChecker, metricsCollector)
	h.Register(router)

	serverCfg := server.DefaultConfig("paddock", cfg.Port)
	if err := server.Start(serverCfg, router, logger); err != nil {
		logger.WithError(err).Fatal("Server error")
	}
}
