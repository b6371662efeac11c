// Package config collects every setting of a run in one place.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	SourceNewsAPI = "newsapi"
	SourceRSS     = "rss"
)

type Config struct {
	// News settings
	NewsAPIKey      string `yaml:"news_api_key"`
	NewsAPIBaseURL  string `yaml:"news_api_base_url"`
	Language        string `yaml:"language"`
	HeadlineSource  string `yaml:"headline_source"` // newsapi | rss
	FeedsConfigPath string `yaml:"feeds_config_path"`

	// Storage settings
	BucketName         string `yaml:"bucket_name"`
	ServiceAccountPath string `yaml:"service_account_path"`
	HistoryFilePath    string `yaml:"history_file_path"`
	HistoryColumn      string `yaml:"history_column"`
	HistoryBootstrap   bool   `yaml:"history_bootstrap"` // start an empty history when the blob is missing
	DedupWindow        int    `yaml:"dedup_window"`

	// Twitter settings
	TwitterConsumerKey       string `yaml:"twitter_consumer_key"`
	TwitterConsumerSecret    string `yaml:"twitter_consumer_secret"`
	TwitterAccessToken       string `yaml:"twitter_access_token"`
	TwitterAccessTokenSecret string `yaml:"twitter_access_token_secret"`
	TwitterAPIBaseURL        string `yaml:"twitter_api_base_url"`
	RateLimitMaxWaits        int    `yaml:"rate_limit_max_waits"`

	// App settings
	Debug          bool          `yaml:"debug"`
	LogFormat      string        `yaml:"log_format"` // text | json
	DryRun         bool          `yaml:"dry_run"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	RunTimeout     time.Duration `yaml:"run_timeout"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		NewsAPIBaseURL:     "https://newsapi.org",
		Language:           "en",
		HeadlineSource:     SourceNewsAPI,
		FeedsConfigPath:    "configs/feeds.yaml",
		ServiceAccountPath: "service_account_credentials.json",
		HistoryFilePath:    "tweet_history.csv",
		HistoryColumn:      "tweet",
		DedupWindow:        10,
		TwitterAPIBaseURL:  "https://api.twitter.com",
		RateLimitMaxWaits:  3,
		LogFormat:          "text",
		RequestTimeout:     30 * time.Second,
		RunTimeout:         5 * time.Minute,
	}
}

// Load builds the configuration from defaults, the optional YAML file named by
// CONFIG_FILE and the environment, in that order of precedence (last wins).
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	return cfg, cfg.Validate()
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.NewsAPIKey = getEnvOrDefault("NEWS_API_KEY", c.NewsAPIKey)
	c.NewsAPIBaseURL = getEnvOrDefault("NEWS_API_BASE_URL", c.NewsAPIBaseURL)
	c.Language = getEnvOrDefault("NEWS_LANGUAGE", c.Language)
	c.HeadlineSource = strings.ToLower(getEnvOrDefault("HEADLINE_SOURCE", c.HeadlineSource))
	c.FeedsConfigPath = getEnvOrDefault("FEEDS_CONFIG_PATH", c.FeedsConfigPath)

	c.BucketName = getEnvOrDefault("GOOGLE_CLOUD_BUCKET_NAME", c.BucketName)
	c.ServiceAccountPath = getEnvOrDefault("GOOGLE_SERVICE_ACCOUNT_KEY_PATH", c.ServiceAccountPath)
	c.HistoryFilePath = getEnvOrDefault("HISTORY_FILE_PATH", c.HistoryFilePath)
	c.HistoryColumn = getEnvOrDefault("HISTORY_COLUMN", c.HistoryColumn)
	c.HistoryBootstrap = getEnvBoolOrDefault("HISTORY_BOOTSTRAP", c.HistoryBootstrap)
	c.DedupWindow = getEnvIntOrDefault("DEDUP_WINDOW", c.DedupWindow)

	c.TwitterConsumerKey = getEnvOrDefault("TWITTER_CONSUMER_KEY", c.TwitterConsumerKey)
	c.TwitterConsumerSecret = getEnvOrDefault("TWITTER_CONSUMER_SECRET", c.TwitterConsumerSecret)
	c.TwitterAccessToken = getEnvOrDefault("TWITTER_ACCESS_TOKEN", c.TwitterAccessToken)
	c.TwitterAccessTokenSecret = getEnvOrDefault("TWITTER_ACCESS_TOKEN_SECRET", c.TwitterAccessTokenSecret)
	c.TwitterAPIBaseURL = getEnvOrDefault("TWITTER_API_BASE_URL", c.TwitterAPIBaseURL)
	c.RateLimitMaxWaits = getEnvIntOrDefault("RATE_LIMIT_MAX_WAITS", c.RateLimitMaxWaits)

	c.Debug = getEnvBoolOrDefault("DEBUG", c.Debug)
	c.LogFormat = strings.ToLower(getEnvOrDefault("LOG_FORMAT", c.LogFormat))
	c.DryRun = getEnvBoolOrDefault("DRY_RUN", c.DryRun)
	c.RequestTimeout = getEnvDurationOrDefault("REQUEST_TIMEOUT", c.RequestTimeout)
	c.RunTimeout = getEnvDurationOrDefault("RUN_TIMEOUT", c.RunTimeout)
}

// HistoryObjectName is the blob name of the history file: its base name.
func (c *Config) HistoryObjectName() string {
	return filepath.Base(c.HistoryFilePath)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
	}
	return defaultValue
}

func (c *Config) Validate() error {
	switch c.HeadlineSource {
	case SourceNewsAPI:
		if c.NewsAPIKey == "" {
			return fmt.Errorf("NEWS_API_KEY is required")
		}
	case SourceRSS:
		if c.FeedsConfigPath == "" {
			return fmt.Errorf("FEEDS_CONFIG_PATH is required for the rss source")
		}
	default:
		return fmt.Errorf("HEADLINE_SOURCE must be 'newsapi' or 'rss'")
	}
	if c.Language == "" {
		return fmt.Errorf("NEWS_LANGUAGE must not be empty")
	}
	if c.BucketName == "" {
		return fmt.Errorf("GOOGLE_CLOUD_BUCKET_NAME is required")
	}
	if c.HistoryFilePath == "" {
		return fmt.Errorf("HISTORY_FILE_PATH must not be empty")
	}
	if c.HistoryColumn == "" {
		return fmt.Errorf("HISTORY_COLUMN must not be empty")
	}
	if c.DedupWindow < 1 {
		return fmt.Errorf("DEDUP_WINDOW must be positive")
	}
	if c.RateLimitMaxWaits < 0 {
		return fmt.Errorf("RATE_LIMIT_MAX_WAITS must not be negative")
	}
	if !c.DryRun {
		if c.TwitterConsumerKey == "" || c.TwitterConsumerSecret == "" {
			return fmt.Errorf("TWITTER_CONSUMER_KEY and TWITTER_CONSUMER_SECRET are required")
		}
		if c.TwitterAccessToken == "" || c.TwitterAccessTokenSecret == "" {
			return fmt.Errorf("TWITTER_ACCESS_TOKEN and TWITTER_ACCESS_TOKEN_SECRET are required")
		}
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("LOG_FORMAT must be 'text' or 'json'")
	}
	return nil
}
