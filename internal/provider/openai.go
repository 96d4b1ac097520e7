package provider

import (
	"context"
	"fmt"
	"strings"

	"market-news-lab/internal/ratelimit"
)

const (
	openaiBaseURL      = "https://api.openai.com"
	defaultOpenAIModel = "gpt-4o-mini"

	// openaiSystemPrompt pins the JSON-only contract at the system level.
	openaiSystemPrompt = "You are a senior equity research analyst. Always respond with valid JSON only, no markdown or extra text."
)

// openaiCaller speaks the chat completions API.
type openaiCaller struct {
	client  *ratelimit.Client
	apiKey  string
	model   string
	baseURL string
}

type openaiRequest struct {
	Model          string          `json:"model"`
	Messages       []openaiMessage `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens"`
	ResponseFormat openaiFormat    `json:"response_format"`
}

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiFormat struct {
	Type string `json:"type"`
}

type openaiResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// NewOpenAI builds an OpenAI-backed provider.
func NewOpenAI(cfg Config) (Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: %w", ErrProviderConfigMissing)
	}
	prompts, err := LoadPrompts(cfg.PromptsDir)
	if err != nil {
		return nil, err
	}
	model := cfg.Model
	if model == "" {
		model = defaultOpenAIModel
	}
	base := cfg.BaseURL
	if base == "" {
		base = openaiBaseURL
	}
	c := &openaiCaller{
		client:  cfg.Client,
		apiKey:  cfg.APIKey,
		model:   model,
		baseURL: strings.TrimRight(base, "/"),
	}
	return newAnalyzer("openai", model, c, prompts, openaiPricingFor(model), cfg.Logger), nil
}

func (o *openaiCaller) call(ctx context.Context, prompt string) (completion, error) {
	body := openaiRequest{
		Model: o.model,
		Messages: []openaiMessage{
			{Role: "system", Content: openaiSystemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature:    0.1,
		MaxTokens:      1024,
		ResponseFormat: openaiFormat{Type: "json_object"},
	}
	headers := map[string]string{"Authorization": "Bearer " + o.apiKey}

	var resp openaiResponse
	if err := o.client.PostJSON(ctx, "openai", o.baseURL+"/v1/chat/completions", headers, body, &resp); err != nil {
		return completion{}, err
	}
	if len(resp.Choices) == 0 {
		return completion{}, fmt.Errorf("openai returned no choices")
	}

	out := resp.Choices[0].Message.Content
	comp := completion{Text: out}
	if resp.Usage != nil {
		comp.TokensIn = resp.Usage.PromptTokens
		comp.TokensOut = resp.Usage.CompletionTokens
	} else {
		comp.TokensIn = estimateTokens(prompt)
		comp.TokensOut = estimateTokens(out)
	}
	return comp, nil
}
