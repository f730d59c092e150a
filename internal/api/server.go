package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alisharafiiii/kol-discord-sub002/internal/config"
	"github.com/alisharafiiii/kol-discord-sub002/internal/engagement"
	"github.com/alisharafiiii/kol-discord-sub002/internal/redis"
	"github.com/alisharafiiii/kol-discord-sub002/internal/store"
	"github.com/alisharafiiii/kol-discord-sub002/internal/twitter"
)

type Server struct {
	log       *slog.Logger
	redis     *redis.Client
	cfg       config.Config
	router    *gin.Engine
	tweets    *store.TweetStore
	accounts  *store.AccountStore
	batches   *store.BatchStore
	rules     *store.RuleStore
	ruleCache *engagement.RuleCache
	scheduler *engagement.Scheduler
	bridge    *engagement.Bridge
	twc       *twitter.Client
}

func NewServer(log *slog.Logger, redisClient *redis.Client, cfg config.Config,
	tweets *store.TweetStore, accounts *store.AccountStore, batches *store.BatchStore,
	rules *store.RuleStore, ruleCache *engagement.RuleCache,
	scheduler *engagement.Scheduler, bridge *engagement.Bridge, twc *twitter.Client) *Server {

	s := &Server{
		log:       log,
		redis:     redisClient,
		cfg:       cfg,
		router:    gin.New(),
		tweets:    tweets,
		accounts:  accounts,
		batches:   batches,
		rules:     rules,
		ruleCache: ruleCache,
		scheduler: scheduler,
		bridge:    bridge,
		twc:       twc,
	}

	gin.SetMode(gin.ReleaseMode)
	r := s.router
	r.Use(gin.Recovery())
	r.Use(s.corsMiddleware())
	r.Use(s.loggingMiddleware())
	r.Use(s.rateLimitMiddleware())

	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", s.health)
		v1.GET("/leaderboard", s.leaderboard)
		v1.GET("/engagement/batches", s.listBatches)
		v1.GET("/engagement/batches/:id", s.getBatch)
		v1.POST("/engagement/tweets", s.submitTweet)

		admin := v1.Group("/admin")
		admin.Use(s.adminAuthMiddleware())
		{
			admin.POST("/engagement/run", s.triggerBatch)
			admin.POST("/engagement/rules", s.upsertRule)
			admin.POST("/engagement/award", s.awardOne)
		}
	}

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) ctx(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), 10*time.Second)
}
