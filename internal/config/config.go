package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Publisher selection: "x", "telegram" or "nostr"
	Publisher string

	// X (Twitter) credentials, OAuth 1.0a user context
	XAPIKey       string
	XAPISecret    string
	XAccessToken  string
	XAccessSecret string
	XBearerToken  string

	// Telegram settings
	TelegramToken  string
	TelegramChatID string

	// Nostr settings
	NostrPrivateKey string
	NostrRelayURL   string

	// Optional AI rewrite candidate
	RewriteProvider string // rules | gemini | openai
	GeminiAPIKey    string
	OpenAIAPIKey    string
	MaxAIRequests   int // per run, 0 = unlimited

	// Optional gold price source for the fx command
	GoldAPIKey string

	// State
	DatabaseURL string
	StatePath   string // empty: chosen per command
	StateCap    int

	// Inputs
	SourcesPath      string
	RSSSourcesPath   string
	FilterConfigPath string
	QueuePath        string
	FXImagePath      string

	// App settings
	Debug          bool
	DryMode        bool
	RequestTimeout time.Duration
	RetryAttempts  int
	RetryDelay     time.Duration
	MaxPostLen     int
	UserAgent      string

	Filters FilterConfig
}

// Load reads .env (when present) and the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{
		Publisher:        "x",
		RewriteProvider:  "rules",
		MaxAIRequests:    3,
		StateCap:         1000,
		SourcesPath:      "sources.txt",
		RSSSourcesPath:   "rss_sources.txt",
		FilterConfigPath: "configs/filters.yaml",
		QueuePath:        "tweets.txt",
		FXImagePath:      "assets/doviz.jpg",
		RequestTimeout:   12 * time.Second,
		RetryAttempts:    2,
		RetryDelay:       2 * time.Second,
		MaxPostLen:       280,
		UserAgent:        "Mozilla/5.0 (compatible; autopost/1.0)",
		NostrRelayURL:    "wss://relay.damus.io",
	}

	cfg.Publisher = strings.ToLower(getEnvOrDefault("PUBLISHER", cfg.Publisher))

	cfg.XAPIKey = os.Getenv("API_KEY")
	cfg.XAPISecret = os.Getenv("API_SECRET")
	cfg.XAccessToken = os.Getenv("ACCESS_TOKEN")
	cfg.XAccessSecret = getEnvOrDefault("ACCESS_TOKEN_SECRET", os.Getenv("ACCESS_SECRET"))
	cfg.XBearerToken = os.Getenv("BEARER_TOKEN")

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	cfg.TelegramChatID = os.Getenv("TELEGRAM_CHAT_ID")

	cfg.NostrPrivateKey = os.Getenv("NOSTR_PRIVATE_KEY")
	cfg.NostrRelayURL = getEnvOrDefault("NOSTR_RELAY_URL", cfg.NostrRelayURL)

	cfg.RewriteProvider = strings.ToLower(getEnvOrDefault("REWRITE_PROVIDER", cfg.RewriteProvider))
	cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	cfg.MaxAIRequests = getEnvIntOrDefault("MAX_AI_REQUESTS", cfg.MaxAIRequests)

	cfg.GoldAPIKey = os.Getenv("GOLDAPI_KEY")

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.StatePath = os.Getenv("STATE_PATH")
	cfg.StateCap = getEnvIntOrDefault("STATE_CAP", cfg.StateCap)

	cfg.SourcesPath = getEnvOrDefault("SOURCES_PATH", cfg.SourcesPath)
	cfg.RSSSourcesPath = getEnvOrDefault("RSS_SOURCES_PATH", cfg.RSSSourcesPath)
	cfg.FilterConfigPath = getEnvOrDefault("FILTER_CONFIG_PATH", cfg.FilterConfigPath)
	cfg.QueuePath = getEnvOrDefault("QUEUE_PATH", cfg.QueuePath)
	cfg.FXImagePath = getEnvOrDefault("FX_IMAGE_PATH", cfg.FXImagePath)

	cfg.Debug = os.Getenv("DEBUG") == "true"
	cfg.DryMode = getEnvBool("DRY_MODE")
	cfg.RequestTimeout = getEnvDurationOrDefault("REQUEST_TIMEOUT", cfg.RequestTimeout)
	cfg.RetryAttempts = getEnvIntOrDefault("RETRY_ATTEMPTS", cfg.RetryAttempts)
	cfg.RetryDelay = getEnvDurationOrDefault("RETRY_DELAY", cfg.RetryDelay)
	cfg.MaxPostLen = getEnvIntOrDefault("MAX_TWEET_LEN", cfg.MaxPostLen)
	cfg.UserAgent = getEnvOrDefault("USER_AGENT", cfg.UserAgent)

	filters, err := LoadFilters(cfg.FilterConfigPath)
	if err != nil {
		return nil, err
	}
	cfg.Filters = filters

	return cfg, cfg.Validate()
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

// getEnvDurationOrDefault accepts Go durations ("12s") or plain seconds ("12").
func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func getEnvBool(key string) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func (c *Config) Validate() error {
	switch c.Publisher {
	case "x", "twitter", "telegram", "nostr":
	default:
		return fmt.Errorf("PUBLISHER must be one of x, telegram, nostr (got %q)", c.Publisher)
	}
	switch c.RewriteProvider {
	case "rules", "gemini", "openai":
	default:
		return fmt.Errorf("REWRITE_PROVIDER must be one of rules, gemini, openai (got %q)", c.RewriteProvider)
	}
	if c.StateCap < 1 {
		return fmt.Errorf("STATE_CAP must be positive")
	}
	if c.MaxPostLen < 60 {
		return fmt.Errorf("MAX_TWEET_LEN must be at least 60")
	}
	if c.RewriteProvider == "gemini" && c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required for REWRITE_PROVIDER=gemini")
	}
	if c.RewriteProvider == "openai" && c.OpenAIAPIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required for REWRITE_PROVIDER=openai")
	}
	return nil
}

// ValidateFor checks the credentials of the selected publisher. Dry runs need none.
func (c *Config) ValidateFor(publishing bool) error {
	if !publishing {
		return nil
	}
	var missing []string
	require := func(name, value string) {
		if value == "" {
			missing = append(missing, name)
		}
	}
	switch c.Publisher {
	case "x", "twitter":
		require("API_KEY", c.XAPIKey)
		require("API_SECRET", c.XAPISecret)
		require("ACCESS_TOKEN", c.XAccessToken)
		require("ACCESS_TOKEN_SECRET", c.XAccessSecret)
	case "telegram":
		require("TELEGRAM_TOKEN", c.TelegramToken)
		require("TELEGRAM_CHAT_ID", c.TelegramChatID)
	case "nostr":
		require("NOSTR_PRIVATE_KEY", c.NostrPrivateKey)
		require("NOSTR_RELAY_URL", c.NostrRelayURL)
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing credentials for %s: %s", c.Publisher, strings.Join(missing, ", "))
	}
	return nil
}

// StateFile returns the configured state path or the given command default.
func (c *Config) StateFile(def string) string {
	if c.StatePath != "" {
		return c.StatePath
	}
	return def
}
