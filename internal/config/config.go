// Package config loads runtime configuration from the environment,
// optionally seeded from a .env file. Flags in the commands layer on
// top of these values.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds every tunable the pipeline and server read from the
// environment. Zero values fall back to the defaults set in Load.
type Config struct {
	// Storage. Empty DatabaseURL selects the in-memory stores.
	DatabaseURL string

	// AI provider selection and credentials.
	AIProvider    string
	AIModel       string
	GeminiAPIKey  string
	OpenAIAPIKey  string
	ClaudeAPIKey  string
	OllamaBaseURL string
	PromptsDir    string

	// Collectors.
	FinnhubEnabled bool
	FinnhubAPIKey  string
	SECEnabled     bool
	SECUserAgent   string

	// Rate budgets. Zero keeps the limiter's registered defaults.
	FinnhubRatePerMinute int
	SECRatePerSecond     int

	// Output channels, from a comma separated list.
	Outputs          []string
	OutputDir        string
	NotionToken      string
	NotionParentPage string
	TelegramBotToken string
	TelegramChatID   string
	SMTPHost         string
	SMTPPort         int
	SMTPUser         string
	SMTPPassword     string
	EmailTo          string

	// Pipeline shape.
	WatchlistPath   string
	HoursLookback   int
	LimitPerTicker  int
	DedupSimilarity string

	// Control plane.
	ServerAddr string
}

// Load reads the environment into a Config. A .env file in the working
// directory is merged in first without overriding variables already
// set in the process environment.
func Load() (*Config, error) {
	// Missing .env is the normal case in production.
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		AIProvider:    envStr("AI_PROVIDER", "gemini"),
		AIModel:       os.Getenv("AI_MODEL"),
		GeminiAPIKey:  os.Getenv("GEMINI_API_KEY"),
		OpenAIAPIKey:  os.Getenv("OPENAI_API_KEY"),
		ClaudeAPIKey:  os.Getenv("CLAUDE_API_KEY"),
		OllamaBaseURL: os.Getenv("OLLAMA_BASE_URL"),
		PromptsDir:    os.Getenv("PROMPTS_DIR"),

		FinnhubAPIKey: os.Getenv("FINNHUB_API_KEY"),
		SECUserAgent:  os.Getenv("SEC_USER_AGENT"),

		Outputs:          splitCSV(envStr("OUTPUTS", "markdown")),
		OutputDir:        envStr("OUTPUT_DIR", "digests"),
		NotionToken:      os.Getenv("NOTION_TOKEN"),
		NotionParentPage: os.Getenv("NOTION_PARENT_PAGE"),
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID:   os.Getenv("TELEGRAM_CHAT_ID"),
		SMTPHost:         os.Getenv("SMTP_HOST"),
		SMTPUser:         os.Getenv("SMTP_USER"),
		SMTPPassword:     os.Getenv("SMTP_PASSWORD"),
		EmailTo:          os.Getenv("EMAIL_TO"),

		WatchlistPath:   envStr("WATCHLIST_PATH", "watchlist.yaml"),
		DedupSimilarity: envStr("DEDUP_SIMILARITY", "simhash"),
		ServerAddr:      envStr("SERVER_ADDR", ":8080"),
	}

	var err error
	if cfg.FinnhubEnabled, err = envBool("FINNHUB_ENABLED", true); err != nil {
		return nil, err
	}
	if cfg.SECEnabled, err = envBool("SEC_ENABLED", true); err != nil {
		return nil, err
	}
	if cfg.HoursLookback, err = envInt("DIGEST_HOURS_LOOKBACK", 24); err != nil {
		return nil, err
	}
	if cfg.LimitPerTicker, err = envInt("LIMIT_PER_TICKER", 0); err != nil {
		return nil, err
	}
	if cfg.FinnhubRatePerMinute, err = envInt("FINNHUB_RATE_PER_MINUTE", 0); err != nil {
		return nil, err
	}
	if cfg.SECRatePerSecond, err = envInt("SEC_RATE_PER_SECOND", 0); err != nil {
		return nil, err
	}
	if cfg.SMTPPort, err = envInt("SMTP_PORT", 587); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.DedupSimilarity {
	case "simhash", "jaccard":
	default:
		return fmt.Errorf("DEDUP_SIMILARITY must be simhash or jaccard, got %q", c.DedupSimilarity)
	}
	if c.HoursLookback <= 0 {
		return fmt.Errorf("DIGEST_HOURS_LOOKBACK must be positive, got %d", c.HoursLookback)
	}
	if c.LimitPerTicker < 0 {
		return fmt.Errorf("LIMIT_PER_TICKER must not be negative, got %d", c.LimitPerTicker)
	}
	for _, name := range c.Outputs {
		switch name {
		case "markdown", "notion", "telegram", "email":
		default:
			return fmt.Errorf("unknown output channel %q in OUTPUTS", name)
		}
	}
	return nil
}

// ProviderAPIKey returns the credential for the selected AI provider.
// Ollama runs without one.
func (c *Config) ProviderAPIKey() string {
	switch c.AIProvider {
	case "gemini":
		return c.GeminiAPIKey
	case "openai":
		return c.OpenAIAPIKey
	case "claude":
		return c.ClaudeAPIKey
	default:
		return ""
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func envBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean, got %q", key, v)
	}
	return b, nil
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(strings.ToLower(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
