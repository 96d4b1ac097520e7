package provider

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"market-news-lab/internal/ratelimit"
)

const (
	geminiBaseURL      = "https://generativelanguage.googleapis.com"
	defaultGeminiModel = "gemini-2.0-flash"
)

// geminiCaller speaks the generateContent REST API.
type geminiCaller struct {
	client  *ratelimit.Client
	apiKey  string
	model   string
	baseURL string
}

type geminiRequest struct {
	Contents         []geminiContent  `json:"contents"`
	GenerationConfig geminiGenConfig  `json:"generationConfig"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenConfig struct {
	Temperature      float64 `json:"temperature"`
	TopP             float64 `json:"topP"`
	TopK             int     `json:"topK"`
	MaxOutputTokens  int     `json:"maxOutputTokens"`
	ResponseMimeType string  `json:"responseMimeType"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	UsageMetadata *struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
}

// NewGemini builds a Gemini-backed provider.
func NewGemini(cfg Config) (Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: %w", ErrProviderConfigMissing)
	}
	prompts, err := LoadPrompts(cfg.PromptsDir)
	if err != nil {
		return nil, err
	}
	model := cfg.Model
	if model == "" {
		model = defaultGeminiModel
	}
	base := cfg.BaseURL
	if base == "" {
		base = geminiBaseURL
	}
	c := &geminiCaller{
		client:  cfg.Client,
		apiKey:  cfg.APIKey,
		model:   model,
		baseURL: strings.TrimRight(base, "/"),
	}
	return newAnalyzer("gemini", model, c, prompts, geminiPricing, cfg.Logger), nil
}

func (g *geminiCaller) call(ctx context.Context, prompt string) (completion, error) {
	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		g.baseURL, url.PathEscape(g.model), url.QueryEscape(g.apiKey))

	body := geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
		GenerationConfig: geminiGenConfig{
			Temperature:      0.1,
			TopP:             0.95,
			TopK:             40,
			MaxOutputTokens:  8192,
			ResponseMimeType: "application/json",
		},
	}

	var resp geminiResponse
	if err := g.client.PostJSON(ctx, "gemini", endpoint, nil, body, &resp); err != nil {
		return completion{}, err
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return completion{}, fmt.Errorf("gemini returned empty response")
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
	}
	out := text.String()

	comp := completion{Text: out}
	if resp.UsageMetadata != nil {
		comp.TokensIn = resp.UsageMetadata.PromptTokenCount
		comp.TokensOut = resp.UsageMetadata.CandidatesTokenCount
	} else {
		comp.TokensIn = estimateTokens(prompt)
		comp.TokensOut = estimateTokens(out)
	}
	return comp, nil
}
