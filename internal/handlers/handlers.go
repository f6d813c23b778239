// Package handlers exposes the HTTP surface: the cron trigger endpoints
// that drive the persona engine, and the analysis endpoint sitting behind
// the shared rate limiter and response cache.
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/smarter-poker/world-hub/internal/analysis"
	"github.com/smarter-poker/world-hub/internal/engine"
	"github.com/smarter-poker/world-hub/internal/ratelimit"
)

// Metrics are the handler-level counters, registered by the caller against
// the service collector.
type Metrics struct {
	PostsCreated         *prometheus.CounterVec
	ReservationConflicts *prometheus.CounterVec
	AnalysisCacheHits    prometheus.Counter
	AnalysisCacheMisses  prometheus.Counter
	RateLimitDenials     prometheus.Counter
	EngagementActions    *prometheus.CounterVec
}

type Handlers struct {
	engine     *engine.Engine
	limiter    *ratelimit.Limiter
	cache      *analysis.Cache
	advisor    *analysis.Advisor
	cronSecret string
	metrics    *Metrics
	logger     logrus.FieldLogger
}

type Config struct {
	Engine     *engine.Engine
	Limiter    *ratelimit.Limiter
	Cache      *analysis.Cache
	Advisor    *analysis.Advisor
	CronSecret string
	Metrics    *Metrics
	Logger     logrus.FieldLogger
}

func New(cfg Config) *Handlers {
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	return &Handlers{
		engine:     cfg.Engine,
		limiter:    cfg.Limiter,
		cache:      cfg.Cache,
		advisor:    cfg.Advisor,
		cronSecret: cfg.CronSecret,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger,
	}
}

// Register mounts all routes on the service router.
func (h *Handlers) Register(router *gin.Engine) {
	cron := router.Group("/cron", h.cronAuth())
	cron.POST("/clips", h.TriggerClips)
	cron.POST("/articles", h.TriggerArticles)
	cron.POST("/engagement", h.TriggerEngagement)

	v1 := router.Group("/v1")
	v1.POST("/analysis", h.Analyze)
}

// cronAuth guards the trigger endpoints with a shared bearer secret. An
// empty configured secret rejects everything rather than allowing anonymous
// triggers.
func (h *Handlers) cronAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if h.cronSecret == "" || token != h.cronSecret {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}
		c.Next()
	}
}

func (h *Handlers) TriggerClips(c *gin.Context) {
	res, err := h.engine.RunClips(c.Request.Context())
	if err != nil {
		h.logger.WithError(err).Error("Clip trigger failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "trigger failed"})
		return
	}
	h.countPosts("clip", res)
	c.JSON(http.StatusOK, res)
}

func (h *Handlers) TriggerArticles(c *gin.Context) {
	res, err := h.engine.RunArticles(c.Request.Context())
	if err != nil {
		h.logger.WithError(err).Error("Article trigger failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "trigger failed"})
		return
	}
	h.countPosts("article", res)
	c.JSON(http.StatusOK, res)
}

func (h *Handlers) TriggerEngagement(c *gin.Context) {
	res, err := h.engine.RunEngagement(c.Request.Context())
	if err != nil {
		h.logger.WithError(err).Error("Engagement trigger failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "trigger failed"})
		return
	}
	if h.metrics != nil && h.metrics.EngagementActions != nil {
		h.metrics.EngagementActions.WithLabelValues("like").Add(float64(res.Likes))
		h.metrics.EngagementActions.WithLabelValues("comment").Add(float64(res.Comments))
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handlers) countPosts(contentType string, res engine.Results) {
	if h.metrics == nil {
		return
	}
	if h.metrics.PostsCreated != nil {
		h.metrics.PostsCreated.WithLabelValues(contentType).Add(float64(res.Posted))
	}
	if h.metrics.ReservationConflicts != nil {
		h.metrics.ReservationConflicts.WithLabelValues(contentType).Add(float64(res.Conflicts))
	}
}

// Analyze serves scenario advice: rate limit first, then cache, then the
// strategy chain. The caller identity comes from the X-Caller-ID header;
// absent callers share the anonymous bucket.
func (h *Handlers) Analyze(c *gin.Context) {
	caller := c.GetHeader("X-Caller-ID")
	if caller == "" {
		caller = ratelimit.AnonymousCaller
	}

	decision := h.limiter.Check(c.Request.Context(), caller)
	if !decision.Allowed {
		if h.metrics != nil && h.metrics.RateLimitDenials != nil {
			h.metrics.RateLimitDenials.Inc()
		}
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":      "rate limit exceeded",
			"retryAfter": decision.RetryAfter,
			"remaining":  0,
		})
		return
	}

	var scenario analysis.Scenario
	if err := c.ShouldBindJSON(&scenario); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid scenario: " + err.Error()})
		return
	}

	key := scenario.CacheKey()
	if advice, ok := h.cache.Get(c.Request.Context(), key); ok {
		if h.metrics != nil && h.metrics.AnalysisCacheHits != nil {
			h.metrics.AnalysisCacheHits.Inc()
		}
		c.JSON(http.StatusOK, gin.H{"advice": advice, "cached": true, "remaining": decision.Remaining})
		return
	}
	if h.metrics != nil && h.metrics.AnalysisCacheMisses != nil {
		h.metrics.AnalysisCacheMisses.Inc()
	}

	advice, err := h.advisor.Advise(c.Request.Context(), scenario)
	if err != nil {
		h.logger.WithError(err).Error("Advice chain exhausted")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "analysis unavailable"})
		return
	}
	h.cache.Put(c.Request.Context(), key, advice)
	c.JSON(http.StatusOK, gin.H{"advice": advice, "cached": false, "remaining": decision.Remaining})
}
