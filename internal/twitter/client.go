package twitter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/alisharafiiii/kol-discord-sub002/internal/models"
)

// Client is a bearer-token client for the X API v2. All callers share one
// limiter so the process stays inside the quota regardless of how many
// goroutines fetch.
type Client struct {
	baseURL    string
	bearer     string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *circuitBreaker
	logger     *slog.Logger

	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

func NewClient(baseURL, bearerToken string, logger *slog.Logger) *Client {
	return &Client{
		baseURL:        baseURL,
		bearer:         bearerToken,
		httpClient:     newHTTPClient(),
		limiter:        rate.NewLimiter(rate.Limit(1), 5),
		breaker:        newCircuitBreaker(),
		logger:         logger,
		maxAttempts:    3,
		initialBackoff: 1 * time.Second,
		maxBackoff:     30 * time.Second,
	}
}

// newHTTPClient builds a pooled transport with keep-alive so repeated API
// calls within a batch reuse connections.
func newHTTPClient() *http.Client {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		MaxConnsPerHost:     50,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   30 * time.Second,
	}
}

// GetTweetMetrics returns the tweet's public engagement counts and the
// author's handle.
func (c *Client) GetTweetMetrics(ctx context.Context, tweetID string) (models.TweetMetrics, string, error) {
	endpoint := fmt.Sprintf("%s/tweets/%s?tweet.fields=public_metrics&expansions=author_id&user.fields=username",
		c.baseURL, url.PathEscape(tweetID))

	var raw struct {
		Data struct {
			AuthorID      string `json:"author_id"`
			PublicMetrics struct {
				LikeCount    int `json:"like_count"`
				RetweetCount int `json:"retweet_count"`
				ReplyCount   int `json:"reply_count"`
			} `json:"public_metrics"`
		} `json:"data"`
		Includes struct {
			Users []struct {
				ID       string `json:"id"`
				Username string `json:"username"`
			} `json:"users"`
		} `json:"includes"`
	}
	if err := c.getJSON(ctx, endpoint, &raw); err != nil {
		return models.TweetMetrics{}, "", err
	}

	metrics := models.TweetMetrics{
		Likes:    raw.Data.PublicMetrics.LikeCount,
		Retweets: raw.Data.PublicMetrics.RetweetCount,
		Replies:  raw.Data.PublicMetrics.ReplyCount,
	}
	var author string
	for _, u := range raw.Includes.Users {
		if u.ID == raw.Data.AuthorID {
			author = u.Username
		}
	}
	return metrics, author, nil
}

// GetRetweeters returns the usernames of users who retweeted the tweet.
func (c *Client) GetRetweeters(ctx context.Context, tweetID string) ([]string, error) {
	endpoint := fmt.Sprintf("%s/tweets/%s/retweeted_by?max_results=100&user.fields=username",
		c.baseURL, url.PathEscape(tweetID))

	var raw struct {
		Data []struct {
			Username string `json:"username"`
		} `json:"data"`
	}
	if err := c.getJSON(ctx, endpoint, &raw); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(raw.Data))
	for _, u := range raw.Data {
		out = append(out, u.Username)
	}
	return out, nil
}

// GetRepliers returns the usernames of users who replied in the tweet's
// conversation. Uses recent search scoped to the conversation id.
func (c *Client) GetRepliers(ctx context.Context, tweetID string) ([]string, error) {
	query := url.QueryEscape(fmt.Sprintf("conversation_id:%s is:reply", tweetID))
	endpoint := fmt.Sprintf("%s/tweets/search/recent?query=%s&max_results=100&expansions=author_id&user.fields=username",
		c.baseURL, query)

	var raw struct {
		Data []struct {
			AuthorID string `json:"author_id"`
		} `json:"data"`
		Includes struct {
			Users []struct {
				ID       string `json:"id"`
				Username string `json:"username"`
			} `json:"users"`
		} `json:"includes"`
	}
	if err := c.getJSON(ctx, endpoint, &raw); err != nil {
		return nil, err
	}

	byID := make(map[string]string, len(raw.Includes.Users))
	for _, u := range raw.Includes.Users {
		byID[u.ID] = u.Username
	}
	seen := make(map[string]bool, len(raw.Data))
	var out []string
	for _, t := range raw.Data {
		name, ok := byID[t.AuthorID]
		if !ok || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out, nil
}

// getJSON performs an authenticated GET and decodes the body. 5xx and
// transport errors retry with exponential backoff; 429 returns a
// RateLimitError immediately so the caller can pause rather than spin.
func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	if !c.breaker.allow() {
		return ErrCircuitOpen
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.bearer)
	req.Header.Set("Accept", "application/json")

	backoff := c.initialBackoff
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		resp, err := c.httpClient.Do(req.Clone(ctx))
		if err != nil {
			lastErr = err
		} else {
			switch {
			case resp.StatusCode == http.StatusTooManyRequests:
				rlErr := newRateLimitError(resp)
				resp.Body.Close()
				c.breaker.recordSuccess() // quota, not an outage
				return rlErr

			case resp.StatusCode >= 500:
				lastErr = &APIError{StatusCode: resp.StatusCode, Endpoint: req.URL.Path}
				resp.Body.Close()

			case resp.StatusCode >= 400:
				apiErr := &APIError{StatusCode: resp.StatusCode, Endpoint: req.URL.Path}
				resp.Body.Close()
				c.breaker.recordSuccess()
				return apiErr

			default:
				err = json.NewDecoder(resp.Body).Decode(out)
				resp.Body.Close()
				if err != nil {
					c.breaker.recordFailure()
					return fmt.Errorf("decode twitter response: %w", err)
				}
				c.breaker.recordSuccess()
				return nil
			}
		}

		if attempt < c.maxAttempts {
			c.logger.Warn("twitter_request_retry",
				"endpoint", req.URL.Path,
				"attempt", attempt,
				"backoff", backoff.String(),
				"error", lastErr.Error(),
			)
			select {
			case <-time.After(withJitter(backoff, attempt)):
			case <-ctx.Done():
				return ctx.Err()
			}
			backoff *= 2
			if backoff > c.maxBackoff {
				backoff = c.maxBackoff
			}
		}
	}

	c.breaker.recordFailure()
	return fmt.Errorf("twitter request failed after %d attempts: %w", c.maxAttempts, lastErr)
}

// withJitter pads the backoff by up to 25% so concurrent retries spread out.
func withJitter(backoff time.Duration, attempt int) time.Duration {
	jitterRange := int64(backoff) / 4
	if jitterRange <= 0 {
		return backoff
	}
	return backoff + time.Duration((int64(attempt)*137)%jitterRange)
}

// BreakerState exposes the breaker state for the health endpoint.
func (c *Client) BreakerState() string {
	return c.breaker.stateString()
}
