package engagement

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/alisharafiiii/kol-discord-sub002/internal/models"
	"github.com/alisharafiiii/kol-discord-sub002/internal/twitter"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

var errKeyMissing = errors.New("key missing")

type fakeKV struct {
	mu       sync.Mutex
	data     map[string]string
	counters map[string]int64
	hashes   map[string][]interface{}
}

func newFakeKV() *fakeKV {
	return &fakeKV{
		data:     make(map[string]string),
		counters: make(map[string]int64),
		hashes:   make(map[string][]interface{}),
	}
}

func (k *fakeKV) Get(ctx context.Context, key string) (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if v, ok := k.data[key]; ok {
		return v, nil
	}
	return "", errKeyMissing
}

func (k *fakeKV) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.data[key] = fmt.Sprint(value)
	return nil
}

func (k *fakeKV) Del(ctx context.Context, keys ...string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	for _, key := range keys {
		delete(k.data, key)
	}
	return nil
}

func (k *fakeKV) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if _, ok := k.data[key]; ok {
		return false, nil
	}
	k.data[key] = fmt.Sprint(value)
	return true, nil
}

func (k *fakeKV) Increment(ctx context.Context, key string, expiration time.Duration) (int64, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.counters[key]++
	return k.counters[key], nil
}

func (k *fakeKV) GetInt(ctx context.Context, key string) (int64, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.counters[key], nil
}

func (k *fakeKV) HSet(ctx context.Context, key string, values ...interface{}) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.hashes[key] = values
	return nil
}

// fakeRules serves the default rule set without a database.
type fakeRules struct{}

var testBasePoints = map[models.Interaction]int{
	models.InteractionLike:    10,
	models.InteractionRetweet: 35,
	models.InteractionComment: 50,
}

var testConfigs = []models.TierConfig{
	{Tier: models.TierMicro, Multiplier: 1.0, MinPoints: 0, DailyLimit: 5},
	{Tier: models.TierRising, Multiplier: 1.2, MinPoints: 1000, DailyLimit: 10},
	{Tier: models.TierStar, Multiplier: 1.5, MinPoints: 2500, DailyLimit: 20},
	{Tier: models.TierLegend, Multiplier: 1.8, MinPoints: 5000, DailyLimit: 50},
	{Tier: models.TierHero, Multiplier: 2.0, MinPoints: 10000, DailyLimit: 100},
}

func (fakeRules) BasePoints(ctx context.Context, tier models.Tier, interaction models.Interaction) (int, error) {
	return testBasePoints[interaction], nil
}

func (fakeRules) Config(ctx context.Context, tier models.Tier) (models.TierConfig, error) {
	for _, c := range testConfigs {
		if c.Tier == tier {
			return c, nil
		}
	}
	return testConfigs[0], nil
}

func (fakeRules) Configs(ctx context.Context) ([]models.TierConfig, error) {
	return testConfigs, nil
}

type fakeAccounts struct {
	mu        sync.Mutex
	byHandle  map[string]*models.LinkedAccount
	byDiscord map[string]*models.LinkedAccount
}

func newFakeAccounts(accts ...*models.LinkedAccount) *fakeAccounts {
	f := &fakeAccounts{
		byHandle:  make(map[string]*models.LinkedAccount),
		byDiscord: make(map[string]*models.LinkedAccount),
	}
	for _, a := range accts {
		f.byHandle[a.TwitterHandle] = a
		f.byDiscord[a.DiscordID] = a
	}
	return f
}

func (f *fakeAccounts) ByHandle(ctx context.Context, handle string) (*models.LinkedAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byHandle[handle], nil
}

func (f *fakeAccounts) ByDiscordID(ctx context.Context, discordID string) (*models.LinkedAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byDiscord[discordID], nil
}

func (f *fakeAccounts) SetTier(ctx context.Context, discordID string, tier models.Tier) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a, ok := f.byDiscord[discordID]; ok {
		a.Tier = tier
	}
	return nil
}

// fakeAwards mirrors the transactional store: the log insert and the points
// increment succeed or no-op together.
type fakeAwards struct {
	mu       sync.Mutex
	accounts *fakeAccounts
	granted  map[string]models.EngagementLog
}

func newFakeAwards(accounts *fakeAccounts) *fakeAwards {
	return &fakeAwards{accounts: accounts, granted: make(map[string]models.EngagementLog)}
}

func (f *fakeAwards) Award(ctx context.Context, log models.EngagementLog) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := log.TweetID + "|" + log.DiscordID + "|" + string(log.Interaction)
	if _, ok := f.granted[key]; ok {
		return false, nil
	}
	f.granted[key] = log
	if a, ok := f.accounts.byDiscord[log.DiscordID]; ok {
		a.TotalPoints += int64(log.Points)
	}
	return true, nil
}

type fakeBatches struct {
	mu   sync.Mutex
	seq  int
	jobs map[string]*models.BatchJob
}

func newFakeBatches() *fakeBatches {
	return &fakeBatches{jobs: make(map[string]*models.BatchJob)}
}

func (f *fakeBatches) Create(ctx context.Context) (*models.BatchJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	job := &models.BatchJob{
		ID:        fmt.Sprintf("batch-%d", f.seq),
		Status:    models.BatchPending,
		StartedAt: time.Now().UTC(),
	}
	f.jobs[job.ID] = job
	return cloneJob(job), nil
}

func (f *fakeBatches) Get(ctx context.Context, id string) (*models.BatchJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if job, ok := f.jobs[id]; ok {
		return cloneJob(job), nil
	}
	return nil, nil
}

func (f *fakeBatches) FindNonTerminal(ctx context.Context) (*models.BatchJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, job := range f.jobs {
		if !job.Status.Terminal() {
			return cloneJob(job), nil
		}
	}
	return nil, nil
}

func (f *fakeBatches) MarkRunning(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if job, ok := f.jobs[id]; ok && !job.Status.Terminal() {
		job.Status = models.BatchRunning
		job.PausedAt = nil
		job.WillResumeAt = nil
	}
	return nil
}

func (f *fakeBatches) Pause(ctx context.Context, id string, pausedAt, willResumeAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if job, ok := f.jobs[id]; ok {
		job.Status = models.BatchPaused
		job.PausedAt = &pausedAt
		job.WillResumeAt = &willResumeAt
		job.RateLimitPauses++
	}
	return nil
}

func (f *fakeBatches) AddProgress(ctx context.Context, id string, tweets, engagements int, points int64, errs int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if job, ok := f.jobs[id]; ok {
		job.TweetsProcessed += tweets
		job.EngagementsFound += engagements
		job.TotalPointsAwarded += points
		job.ErrorCount += errs
	}
	return nil
}

func (f *fakeBatches) Finalize(ctx context.Context, id string, status models.BatchStatus, errMsg *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if job, ok := f.jobs[id]; ok {
		job.Status = status
		now := time.Now().UTC()
		job.CompletedAt = &now
		if errMsg != nil {
			job.LastError = errMsg
		}
	}
	return nil
}

func cloneJob(job *models.BatchJob) *models.BatchJob {
	copied := *job
	return &copied
}

type fakeTweets struct {
	mu      sync.Mutex
	queue   []models.SubmittedTweet
	metrics map[string]models.TweetMetrics
}

func newFakeTweets(tweets ...models.SubmittedTweet) *fakeTweets {
	return &fakeTweets{queue: tweets, metrics: make(map[string]models.TweetMetrics)}
}

func (f *fakeTweets) RecentTweets(ctx context.Context, window time.Duration, limit int) ([]models.SubmittedTweet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queue) > limit {
		return f.queue[:limit], nil
	}
	return f.queue, nil
}

func (f *fakeTweets) UpdateMetrics(ctx context.Context, id string, m models.TweetMetrics) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.metrics[id] = m
	return nil
}

// fakeFetcher serves canned engagement data and can inject a rate limit for
// a specific tweet.
type fetchResult struct {
	metrics    models.TweetMetrics
	author     string
	retweeters []string
	repliers   []string
}

type fakeFetcher struct {
	mu          sync.Mutex
	results     map[string]fetchResult
	rateLimited map[string]bool
	errOn       map[string]error
	resetAt     time.Time
	calls       int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		results:     make(map[string]fetchResult),
		rateLimited: make(map[string]bool),
		errOn:       make(map[string]error),
	}
}

func (f *fakeFetcher) limitErr(tweetID string) error {
	if err := f.errOn[tweetID]; err != nil {
		return err
	}
	if f.rateLimited[tweetID] {
		resetAt := f.resetAt
		if resetAt.IsZero() {
			resetAt = time.Now().UTC().Add(15 * time.Minute)
		}
		return &twitter.RateLimitError{ResetAt: resetAt}
	}
	return nil
}

func (f *fakeFetcher) GetTweetMetrics(ctx context.Context, tweetID string) (models.TweetMetrics, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err := f.limitErr(tweetID); err != nil {
		return models.TweetMetrics{}, "", err
	}
	r := f.results[tweetID]
	return r.metrics, r.author, nil
}

func (f *fakeFetcher) GetRetweeters(ctx context.Context, tweetID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.limitErr(tweetID); err != nil {
		return nil, err
	}
	return f.results[tweetID].retweeters, nil
}

func (f *fakeFetcher) GetRepliers(ctx context.Context, tweetID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.limitErr(tweetID); err != nil {
		return nil, err
	}
	return f.results[tweetID].repliers, nil
}
