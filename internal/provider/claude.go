package provider

import (
	"context"
	"fmt"
	"strings"

	"market-news-lab/internal/ratelimit"
)

const (
	claudeBaseURL      = "https://api.anthropic.com"
	claudeAPIVersion   = "2023-06-01"
	defaultClaudeModel = "claude-3-5-haiku-20241022"
)

// claudeCaller speaks the messages API.
type claudeCaller struct {
	client  *ratelimit.Client
	apiKey  string
	model   string
	baseURL string
}

type claudeRequest struct {
	Model       string          `json:"model"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature float64         `json:"temperature"`
	Messages    []claudeMessage `json:"messages"`
}

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage *struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// NewClaude builds a Claude-backed provider.
func NewClaude(cfg Config) (Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("claude: %w", ErrProviderConfigMissing)
	}
	prompts, err := LoadPrompts(cfg.PromptsDir)
	if err != nil {
		return nil, err
	}
	model := cfg.Model
	if model == "" {
		model = defaultClaudeModel
	}
	base := cfg.BaseURL
	if base == "" {
		base = claudeBaseURL
	}
	c := &claudeCaller{
		client:  cfg.Client,
		apiKey:  cfg.APIKey,
		model:   model,
		baseURL: strings.TrimRight(base, "/"),
	}
	return newAnalyzer("claude", model, c, prompts, claudePricingFor(model), cfg.Logger), nil
}

func (c *claudeCaller) call(ctx context.Context, prompt string) (completion, error) {
	body := claudeRequest{
		Model:       c.model,
		MaxTokens:   1024,
		Temperature: 0.1,
		Messages:    []claudeMessage{{Role: "user", Content: prompt}},
	}
	headers := map[string]string{
		"x-api-key":         c.apiKey,
		"anthropic-version": claudeAPIVersion,
	}

	var resp claudeResponse
	if err := c.client.PostJSON(ctx, "claude", c.baseURL+"/v1/messages", headers, body, &resp); err != nil {
		return completion{}, err
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	out := text.String()
	if out == "" {
		return completion{}, fmt.Errorf("claude returned empty response")
	}

	comp := completion{Text: out}
	if resp.Usage != nil {
		comp.TokensIn = resp.Usage.InputTokens
		comp.TokensOut = resp.Usage.OutputTokens
	} else {
		comp.TokensIn = estimateTokens(prompt)
		comp.TokensOut = estimateTokens(out)
	}
	return comp, nil
}
