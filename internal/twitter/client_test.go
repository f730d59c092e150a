package twitter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func testClient(baseURL string) *Client {
	c := NewClient(baseURL, "test-token", slog.New(slog.NewJSONHandler(io.Discard, nil)))
	c.initialBackoff = time.Millisecond
	c.maxBackoff = 5 * time.Millisecond
	return c
}

func TestGetTweetMetrics_ParsesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("authorization = %q", got)
		}
		fmt.Fprint(w, `{
			"data": {
				"author_id": "u1",
				"public_metrics": {"like_count": 12, "retweet_count": 3, "reply_count": 5}
			},
			"includes": {"users": [{"id": "u1", "username": "Carol"}]}
		}`)
	}))
	defer srv.Close()

	metrics, author, err := testClient(srv.URL).GetTweetMetrics(context.Background(), "123")
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	if metrics.Likes != 12 || metrics.Retweets != 3 || metrics.Replies != 5 {
		t.Errorf("metrics = %+v", metrics)
	}
	if author != "Carol" {
		t.Errorf("author = %q, want Carol", author)
	}
}

func TestGetRetweeters_ParsesUsernames(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data": [{"username": "alice"}, {"username": "bob"}]}`)
	}))
	defer srv.Close()

	users, err := testClient(srv.URL).GetRetweeters(context.Background(), "123")
	if err != nil {
		t.Fatalf("get retweeters: %v", err)
	}
	if len(users) != 2 || users[0] != "alice" || users[1] != "bob" {
		t.Errorf("users = %v", users)
	}
}

func TestGetRepliers_DeduplicatesAuthors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"data": [{"author_id": "u1"}, {"author_id": "u2"}, {"author_id": "u1"}],
			"includes": {"users": [{"id": "u1", "username": "alice"}, {"id": "u2", "username": "bob"}]}
		}`)
	}))
	defer srv.Close()

	users, err := testClient(srv.URL).GetRepliers(context.Background(), "123")
	if err != nil {
		t.Fatalf("get repliers: %v", err)
	}
	if len(users) != 2 {
		t.Errorf("users = %v, want 2 unique", users)
	}
}

func TestRateLimit_UsesResetHeader(t *testing.T) {
	reset := time.Now().Add(7 * time.Minute).Unix()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("x-rate-limit-reset", fmt.Sprintf("%d", reset))
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).GetRetweeters(context.Background(), "123")
	var rl *RateLimitError
	if !errors.As(err, &rl) {
		t.Fatalf("expected RateLimitError, got %v", err)
	}
	if !rl.ResetAt.Equal(time.Unix(reset, 0).UTC()) {
		t.Errorf("reset at = %s, want %s", rl.ResetAt, time.Unix(reset, 0).UTC())
	}
}

func TestRateLimit_FallsBackTo15Minutes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	before := time.Now().UTC()
	_, err := testClient(srv.URL).GetRetweeters(context.Background(), "123")
	var rl *RateLimitError
	if !errors.As(err, &rl) {
		t.Fatalf("expected RateLimitError, got %v", err)
	}

	lower := before.Add(14 * time.Minute)
	upper := time.Now().UTC().Add(16 * time.Minute)
	if rl.ResetAt.Before(lower) || rl.ResetAt.After(upper) {
		t.Errorf("reset at = %s, want roughly now+15m", rl.ResetAt)
	}
}

func TestRetry_RecoversFromServerError(t *testing.T) {
	var hits int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt64(&hits, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, `{"data": [{"username": "alice"}]}`)
	}))
	defer srv.Close()

	users, err := testClient(srv.URL).GetRetweeters(context.Background(), "123")
	if err != nil {
		t.Fatalf("get retweeters: %v", err)
	}
	if len(users) != 1 {
		t.Errorf("users = %v", users)
	}
	if got := atomic.LoadInt64(&hits); got != 2 {
		t.Errorf("server hit %d times, want 2", got)
	}
}

func TestClientError_NotRetried(t *testing.T) {
	var hits int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).GetRetweeters(context.Background(), "123")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", apiErr.StatusCode)
	}
	if got := atomic.LoadInt64(&hits); got != 1 {
		t.Errorf("server hit %d times, want 1", got)
	}
}
