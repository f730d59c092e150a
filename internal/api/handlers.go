package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/alisharafiiii/kol-discord-sub002/internal/models"
	"github.com/alisharafiiii/kol-discord-sub002/internal/security"
	"github.com/alisharafiiii/kol-discord-sub002/internal/store"
)

const (
	leaderboardCacheKey = "engagement:leaderboard"
	leaderboardCacheTTL = 5 * time.Minute
	leaderboardMaxLimit = 100
)

func (s *Server) health(c *gin.Context) {
	resp := gin.H{"ok": true}
	if s.twc != nil {
		resp["twitter_breaker"] = s.twc.BreakerState()
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) leaderboard(c *gin.Context) {
	ctx, cancel := s.ctx(c)
	defer cancel()

	limit := 50
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > leaderboardMaxLimit {
		limit = leaderboardMaxLimit
	}

	// only the default page is cached; the batch pipeline invalidates it
	cacheable := limit == 50
	if cacheable {
		if cached, err := s.redis.Get(ctx, leaderboardCacheKey); err == nil && cached != "" {
			c.Header("X-Cache", "HIT")
			c.Data(http.StatusOK, "application/json", []byte(cached))
			return
		}
	}

	entries, err := s.accounts.TopByPoints(ctx, limit)
	if err != nil {
		s.log.Error("leaderboard_query_failed", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{"code": "internal_error", "message": "failed to load leaderboard"},
		})
		return
	}
	if entries == nil {
		entries = []models.LeaderboardEntry{}
	}

	body, err := json.Marshal(gin.H{"leaderboard": entries})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{"code": "internal_error", "message": "failed to encode leaderboard"},
		})
		return
	}
	if cacheable {
		if err := s.redis.Set(ctx, leaderboardCacheKey, string(body), leaderboardCacheTTL); err != nil {
			s.log.Warn("leaderboard_cache_write_failed", "error", err.Error())
		}
	}
	c.Header("X-Cache", "MISS")
	c.Data(http.StatusOK, "application/json", body)
}

func (s *Server) listBatches(c *gin.Context) {
	ctx, cancel := s.ctx(c)
	defer cancel()

	limit := 20
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	jobs, err := s.batches.Recent(ctx, limit)
	if err != nil {
		s.log.Error("batch_list_failed", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{"code": "internal_error", "message": "failed to list batches"},
		})
		return
	}
	if jobs == nil {
		jobs = []models.BatchJob{}
	}
	c.JSON(http.StatusOK, gin.H{"batches": jobs})
}

func (s *Server) getBatch(c *gin.Context) {
	ctx, cancel := s.ctx(c)
	defer cancel()

	job, err := s.batches.Get(ctx, c.Param("id"))
	if err != nil {
		s.log.Error("batch_get_failed", "batch_id", c.Param("id"), "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{"code": "internal_error", "message": "failed to load batch"},
		})
		return
	}
	if job == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": gin.H{"code": "not_found", "message": "batch not found"},
		})
		return
	}
	c.JSON(http.StatusOK, job)
}

type submitTweetRequest struct {
	TweetID   string  `json:"tweet_id" binding:"required"`
	DiscordID string  `json:"discord_id" binding:"required"`
	URL       string  `json:"url"`
	Category  *string `json:"category"`
}

// submitTweet nominates a tweet for engagement tracking. The submitter must
// be linked and within their tier's daily limit; the tier and multiplier in
// force at submission time are captured on the row.
func (s *Server) submitTweet(c *gin.Context) {
	var req submitTweetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{"code": "invalid_request", "message": "tweet_id and discord_id are required"},
		})
		return
	}
	if _, err := security.ParseSnowflake(req.DiscordID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{"code": "invalid_discord_id", "message": "discord_id must be a snowflake"},
		})
		return
	}
	if _, err := security.ParseTweetID(req.TweetID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{"code": "invalid_tweet_id", "message": "tweet_id must be numeric"},
		})
		return
	}

	ctx, cancel := s.ctx(c)
	defer cancel()

	acct, err := s.accounts.ByDiscordID(ctx, req.DiscordID)
	if err != nil {
		s.log.Error("account_lookup_failed", "discord_id", req.DiscordID, "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{"code": "internal_error", "message": "failed to resolve account"},
		})
		return
	}
	if acct == nil {
		c.JSON(http.StatusForbidden, gin.H{
			"error": gin.H{"code": "not_linked", "message": "no twitter account linked"},
		})
		return
	}

	cfg, err := s.rules.Config(ctx, acct.Tier)
	if err != nil {
		s.log.Error("tier_config_failed", "tier", string(acct.Tier), "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{"code": "internal_error", "message": "failed to load tier config"},
		})
		return
	}

	submitted, err := s.tweets.CountSubmittedToday(ctx, req.DiscordID)
	if err != nil {
		s.log.Error("submission_count_failed", "discord_id", req.DiscordID, "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{"code": "internal_error", "message": "failed to check daily limit"},
		})
		return
	}
	if submitted >= cfg.DailyLimit {
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error": gin.H{"code": "daily_limit", "message": "daily submission limit reached"},
		})
		return
	}

	tweet, err := s.tweets.Submit(ctx, models.SubmittedTweet{
		TweetID:            req.TweetID,
		SubmitterDiscordID: req.DiscordID,
		AuthorHandle:       acct.TwitterHandle,
		URL:                req.URL,
		Category:           req.Category,
		Tier:               acct.Tier,
		BonusMultiplier:    cfg.Multiplier,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicateTweet) {
			c.JSON(http.StatusConflict, gin.H{
				"error": gin.H{"code": "duplicate_tweet", "message": "tweet already submitted"},
			})
			return
		}
		s.log.Error("tweet_submit_failed", "tweet_id", req.TweetID, "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{"code": "internal_error", "message": "failed to submit tweet"},
		})
		return
	}

	s.log.Info("tweet_submitted",
		"tweet_id", tweet.TweetID,
		"discord_id", req.DiscordID,
		"tier", string(tweet.Tier),
	)
	c.JSON(http.StatusCreated, tweet)
}

// triggerBatch requests a pipeline run. The scheduler coalesces triggers
// and routes through the same resume logic as scheduled runs.
func (s *Server) triggerBatch(c *gin.Context) {
	s.scheduler.Trigger()
	s.log.Info("batch_trigger_requested", "client_ip", c.ClientIP())
	c.JSON(http.StatusAccepted, gin.H{"triggered": true})
}

type upsertRuleRequest struct {
	Tier        string `json:"tier" binding:"required"`
	Interaction string `json:"interaction_type" binding:"required"`
	Points      int    `json:"points" binding:"required"`
}

func (s *Server) upsertRule(c *gin.Context) {
	var req upsertRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{"code": "invalid_request", "message": "tier, interaction_type and points are required"},
		})
		return
	}

	tier := models.Tier(req.Tier)
	interaction := models.Interaction(req.Interaction)
	if !validTier(tier) || !validInteraction(interaction) || req.Points < 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{"code": "invalid_request", "message": "unknown tier or interaction type"},
		})
		return
	}

	ctx, cancel := s.ctx(c)
	defer cancel()

	rule := models.TierRule{Tier: tier, Interaction: interaction, Points: req.Points}
	if err := s.rules.UpsertRule(ctx, rule); err != nil {
		s.log.Error("rule_upsert_failed", "tier", req.Tier, "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{"code": "internal_error", "message": "failed to save rule"},
		})
		return
	}
	s.ruleCache.Invalidate()

	s.log.Info("rule_updated",
		"tier", req.Tier,
		"interaction", req.Interaction,
		"points", req.Points,
	)
	c.JSON(http.StatusOK, rule)
}

type awardOneRequest struct {
	DiscordID   string `json:"discord_id" binding:"required"`
	TweetID     string `json:"tweet_id" binding:"required"`
	Interaction string `json:"interaction_type" binding:"required"`
}

// awardOne grants points for a single interaction outside batch processing.
// Consumed by the rewards-linking service; shares the batch pipeline's
// idempotency, so the two paths never double-grant.
func (s *Server) awardOne(c *gin.Context) {
	var req awardOneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{"code": "invalid_request", "message": "discord_id, tweet_id and interaction_type are required"},
		})
		return
	}
	interaction := models.Interaction(req.Interaction)
	if !validInteraction(interaction) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{"code": "invalid_request", "message": "unknown interaction type"},
		})
		return
	}

	ctx, cancel := s.ctx(c)
	defer cancel()

	result, err := s.bridge.AwardOne(ctx, req.DiscordID, req.TweetID, interaction)
	if err != nil {
		s.log.Error("bridge_award_failed",
			"discord_id", req.DiscordID, "tweet_id", req.TweetID, "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{"code": "internal_error", "message": "failed to award points"},
		})
		return
	}
	c.JSON(http.StatusOK, result)
}

func validTier(t models.Tier) bool {
	switch t {
	case models.TierMicro, models.TierRising, models.TierStar, models.TierLegend, models.TierHero:
		return true
	}
	return false
}

func validInteraction(i models.Interaction) bool {
	switch i {
	case models.InteractionLike, models.InteractionRetweet, models.InteractionComment:
		return true
	}
	return false
}
