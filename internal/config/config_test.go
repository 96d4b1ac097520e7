package config

import "testing"

// clearEnv blanks every variable Load reads so host environment does
// not leak into assertions.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"DATABASE_URL", "AI_PROVIDER", "AI_MODEL",
		"GEMINI_API_KEY", "OPENAI_API_KEY", "CLAUDE_API_KEY",
		"OLLAMA_BASE_URL", "PROMPTS_DIR",
		"FINNHUB_ENABLED", "FINNHUB_API_KEY", "SEC_ENABLED", "SEC_USER_AGENT",
		"FINNHUB_RATE_PER_MINUTE", "SEC_RATE_PER_SECOND",
		"OUTPUTS", "OUTPUT_DIR", "NOTION_TOKEN", "NOTION_PARENT_PAGE",
		"TELEGRAM_BOT_TOKEN", "TELEGRAM_CHAT_ID",
		"SMTP_HOST", "SMTP_PORT", "SMTP_USER", "SMTP_PASSWORD", "EMAIL_TO",
		"WATCHLIST_PATH", "DIGEST_HOURS_LOOKBACK", "LIMIT_PER_TICKER",
		"DEDUP_SIMILARITY", "SERVER_ADDR",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.AIProvider != "gemini" {
		t.Errorf("default provider = %q", cfg.AIProvider)
	}
	if cfg.HoursLookback != 24 {
		t.Errorf("default lookback = %d", cfg.HoursLookback)
	}
	if !cfg.FinnhubEnabled || !cfg.SECEnabled {
		t.Error("collectors should default to enabled")
	}
	if len(cfg.Outputs) != 1 || cfg.Outputs[0] != "markdown" {
		t.Errorf("default outputs = %v", cfg.Outputs)
	}
	if cfg.DedupSimilarity != "simhash" {
		t.Errorf("default similarity = %q", cfg.DedupSimilarity)
	}
	if cfg.WatchlistPath != "watchlist.yaml" {
		t.Errorf("default watchlist path = %q", cfg.WatchlistPath)
	}
	if cfg.ServerAddr != ":8080" {
		t.Errorf("default server addr = %q", cfg.ServerAddr)
	}
	if cfg.SMTPPort != 587 {
		t.Errorf("default smtp port = %d", cfg.SMTPPort)
	}
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("AI_PROVIDER", "claude")
	t.Setenv("CLAUDE_API_KEY", "sk-test")
	t.Setenv("OUTPUTS", "Markdown, telegram, email")
	t.Setenv("SMTP_HOST", "smtp.example.com")
	t.Setenv("SMTP_PORT", "465")
	t.Setenv("EMAIL_TO", "desk@example.com")
	t.Setenv("DIGEST_HOURS_LOOKBACK", "48")
	t.Setenv("LIMIT_PER_TICKER", "5")
	t.Setenv("FINNHUB_ENABLED", "false")
	t.Setenv("DEDUP_SIMILARITY", "jaccard")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.AIProvider != "claude" || cfg.ProviderAPIKey() != "sk-test" {
		t.Errorf("provider = %q key = %q", cfg.AIProvider, cfg.ProviderAPIKey())
	}
	if len(cfg.Outputs) != 3 || cfg.Outputs[0] != "markdown" || cfg.Outputs[2] != "email" {
		t.Errorf("outputs = %v", cfg.Outputs)
	}
	if cfg.SMTPHost != "smtp.example.com" || cfg.SMTPPort != 465 || cfg.EmailTo != "desk@example.com" {
		t.Errorf("smtp config = %q:%d to %q", cfg.SMTPHost, cfg.SMTPPort, cfg.EmailTo)
	}
	if cfg.HoursLookback != 48 || cfg.LimitPerTicker != 5 {
		t.Errorf("lookback = %d limit = %d", cfg.HoursLookback, cfg.LimitPerTicker)
	}
	if cfg.FinnhubEnabled {
		t.Error("FINNHUB_ENABLED=false should disable the collector")
	}
	if cfg.DedupSimilarity != "jaccard" {
		t.Errorf("similarity = %q", cfg.DedupSimilarity)
	}
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string][2]string{
		"bad lookback":   {"DIGEST_HOURS_LOOKBACK", "soon"},
		"zero lookback":  {"DIGEST_HOURS_LOOKBACK", "0"},
		"bad bool":       {"SEC_ENABLED", "maybe"},
		"bad similarity": {"DEDUP_SIMILARITY", "levenshtein"},
		"bad output":     {"OUTPUTS", "markdown,fax"},
		"negative limit": {"LIMIT_PER_TICKER", "-1"},
		"bad smtp port":  {"SMTP_PORT", "mail"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(kv[0], kv[1])
			if _, err := Load(); err == nil {
				t.Errorf("expected error for %s=%s", kv[0], kv[1])
			}
		})
	}
}

func TestProviderAPIKey(t *testing.T) {
	cfg := &Config{GeminiAPIKey: "g", OpenAIAPIKey: "o", ClaudeAPIKey: "c"}

	for provider, want := range map[string]string{
		"gemini": "g", "openai": "o", "claude": "c", "ollama": "",
	} {
		cfg.AIProvider = provider
		if got := cfg.ProviderAPIKey(); got != want {
			t.Errorf("%s key = %q, want %q", provider, got, want)
		}
	}
}
