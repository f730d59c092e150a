package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	DBDSN    string
	RedisDSN string
	HTTPAddr string
	LogLevel string

	// twitter api credentials; never log the raw token
	TwitterBearerToken string
	TwitterAPIBaseURL  string

	BatchInterval  time.Duration
	BatchWindow    time.Duration
	BatchMaxTweets int

	AdminSecretKey string
	CORSOrigins    []string
}

func Load() (Config, error) {
	cfg := Config{
		DBDSN:              os.Getenv("DB_DSN"),
		RedisDSN:           getenvDefault("REDIS_DSN", "redis://localhost:6379/0"),
		HTTPAddr:           getenvDefault("HTTP_ADDR", ":8080"),
		LogLevel:           getenvDefault("LOG_LEVEL", "info"),
		TwitterBearerToken: os.Getenv("TWITTER_BEARER_TOKEN"),
		TwitterAPIBaseURL:  getenvDefault("TWITTER_API_BASE_URL", "https://api.twitter.com/2"),
		AdminSecretKey:     getenvDefault("ADMIN_SECRET_KEY", ""),
	}

	if cfg.DBDSN == "" {
		return Config{}, errors.New("missing DB_DSN")
	}

	interval, err := getenvInt("BATCH_INTERVAL_MINUTES", 30)
	if err != nil {
		return Config{}, err
	}
	cfg.BatchInterval = time.Duration(interval) * time.Minute

	window, err := getenvInt("BATCH_WINDOW_HOURS", 24)
	if err != nil {
		return Config{}, err
	}
	cfg.BatchWindow = time.Duration(window) * time.Hour

	maxTweets, err := getenvInt("BATCH_MAX_TWEETS", 60)
	if err != nil {
		return Config{}, err
	}
	cfg.BatchMaxTweets = maxTweets

	// parse CORS origins
	corsOrigins := getenvDefault("CORS_ORIGINS", "")
	if corsOrigins != "" {
		cfg.CORSOrigins = strings.Split(corsOrigins, ",")
		for i := range cfg.CORSOrigins {
			cfg.CORSOrigins[i] = strings.TrimSpace(cfg.CORSOrigins[i])
		}
	} else {
		cfg.CORSOrigins = []string{"http://localhost:3000"} // default
	}

	return cfg, nil
}

func getenvDefault(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func getenvInt(k string, def int) (int, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%s must be a positive integer", k)
	}
	return n, nil
}
