package provider

import (
	"context"
	"fmt"
	"strings"

	"market-news-lab/internal/ratelimit"
)

const (
	ollamaBaseURL      = "http://localhost:11434"
	defaultOllamaModel = "llama3"
)

// ollamaCaller speaks the local /api/generate endpoint. No API key and
// no cost.
type ollamaCaller struct {
	client  *ratelimit.Client
	model   string
	baseURL string
}

type ollamaRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	Format  string        `json:"format,omitempty"`
	Options ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
}

type ollamaResponse struct {
	Response        string `json:"response"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}

// NewOllama builds a provider backed by a local Ollama server.
func NewOllama(cfg Config) (Provider, error) {
	prompts, err := LoadPrompts(cfg.PromptsDir)
	if err != nil {
		return nil, err
	}
	model := cfg.Model
	if model == "" {
		model = defaultOllamaModel
	}
	base := cfg.BaseURL
	if base == "" {
		base = ollamaBaseURL
	}
	c := &ollamaCaller{
		client:  cfg.Client,
		model:   model,
		baseURL: strings.TrimRight(base, "/"),
	}
	return newAnalyzer("ollama", model, c, prompts, pricing{}, cfg.Logger), nil
}

func (o *ollamaCaller) call(ctx context.Context, prompt string) (completion, error) {
	body := ollamaRequest{
		Model:   o.model,
		Prompt:  prompt,
		Stream:  false,
		Format:  "json",
		Options: ollamaOptions{Temperature: 0.1},
	}

	var resp ollamaResponse
	if err := o.client.PostJSON(ctx, "ollama", o.baseURL+"/api/generate", nil, body, &resp); err != nil {
		return completion{}, err
	}
	if resp.Response == "" {
		return completion{}, fmt.Errorf("ollama returned empty response")
	}

	comp := completion{Text: resp.Response}
	comp.TokensIn = resp.PromptEvalCount
	comp.TokensOut = resp.EvalCount
	if comp.TokensIn == 0 {
		comp.TokensIn = estimateTokens(prompt)
	}
	if comp.TokensOut == 0 {
		comp.TokensOut = estimateTokens(resp.Response)
	}
	return comp, nil
}
