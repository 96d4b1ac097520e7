package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"market-news-lab/internal/domain"
	"market-news-lab/internal/runlog"
)

// completion is one raw model response plus its token accounting.
type completion struct {
	Text      string
	TokensIn  int
	TokensOut int
}

// caller issues one prompt to a concrete vendor API.
type caller interface {
	call(ctx context.Context, prompt string) (completion, error)
}

// ValidationError reports why a model response failed the output
// contract. It triggers the one-shot repair attempt; any other error
// from a call propagates.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid analysis output: " + strings.Join(e.Problems, "; ")
}

// Analyzer implements Provider on top of a vendor caller. It owns the
// parse/validate/repair/fallback protocol so the adapters stay thin.
type Analyzer struct {
	name    string
	model   string
	caller  caller
	prompts *Prompts
	pricing pricing
	log     zerolog.Logger
}

func newAnalyzer(name, model string, c caller, prompts *Prompts, price pricing, log zerolog.Logger) *Analyzer {
	return &Analyzer{
		name:    name,
		model:   model,
		caller:  c,
		prompts: prompts,
		pricing: price,
		log:     log.With().Str("provider", name).Str("model", model).Logger(),
	}
}

// Name implements Provider.
func (a *Analyzer) Name() string { return a.name }

func (a *Analyzer) usage(comp completion) Usage {
	return Usage{
		Tokens:  comp.TokensIn + comp.TokensOut,
		CostUSD: a.pricing.cost(comp.TokensIn, comp.TokensOut),
	}
}

// Analyze implements Provider. The first malformed response is retried
// once with a constraint-enumerating prompt; a second failure yields the
// deterministic fallback result. Usage sums every call made.
func (a *Analyzer) Analyze(ctx context.Context, news domain.NewsItem, thesis string) (*domain.AnalysisResult, Usage, error) {
	log := runlog.Ctx(ctx, a.log)
	prompt := a.prompts.Analysis(news, thesis)

	comp, err := a.caller.call(ctx, prompt)
	if err != nil {
		return nil, Usage{}, fmt.Errorf("%s analysis call: %w", a.name, err)
	}
	usage := a.usage(comp)

	result, verr := parseAnalysis(comp.Text)
	if verr == nil {
		return a.finish(result, news, usage), usage, nil
	}

	log.Warn().Str("error", verr.Error()).Str("title", truncate(news.Title, 50)).
		Msg("analysis failed validation, retrying with strict prompt")

	comp2, err := a.caller.call(ctx, strictPrompt(prompt, verr))
	if err != nil {
		return nil, usage, fmt.Errorf("%s repair call: %w", a.name, err)
	}
	usage = usage.add(a.usage(comp2))

	result, verr = parseAnalysis(comp2.Text)
	if verr != nil {
		log.Error().Str("error", verr.Error()).Str("title", truncate(news.Title, 50)).
			Msg("repair attempt also failed, using fallback result")
		return a.finish(fallbackAnalysis(news), news, usage), usage, nil
	}
	return a.finish(result, news, usage), usage, nil
}

// finish stamps provenance and accounting onto a parsed result.
func (a *Analyzer) finish(result *domain.AnalysisResult, news domain.NewsItem, usage Usage) *domain.AnalysisResult {
	result.NewsItemID = news.ID
	result.Provider = a.name
	result.Model = a.model
	result.PromptVersion = PromptVersion
	result.TokensUsed = usage.Tokens
	result.CostUSD = usage.CostUSD
	return result
}

// TickerSummary implements Provider. Call and parse failures degrade to
// the counting fallback rather than erroring, so a bad summary never
// blocks digest delivery.
func (a *Analyzer) TickerSummary(ctx context.Context, ticker, company string, items []AnalyzedItem, thesis string) (*domain.TickerSummary, Usage, error) {
	log := runlog.Ctx(ctx, a.log)
	prompt := a.prompts.Summary(ticker, company, items, thesis)

	comp, err := a.caller.call(ctx, prompt)
	if err != nil {
		log.Warn().Err(err).Str("ticker", ticker).Msg("ticker summary call failed, using fallback")
		return fallbackSummary(ticker, company, items), Usage{}, nil
	}
	usage := a.usage(comp)

	if strings.TrimSpace(comp.Text) == "" {
		log.Warn().Str("ticker", ticker).Msg("empty ticker summary response, using fallback")
		return fallbackSummary(ticker, company, items), usage, nil
	}

	summary := parseSummary(comp.Text)
	summary.Ticker = ticker
	summary.CompanyName = company
	summary.ItemCount = len(items)
	summary.TokensUsed = usage.Tokens
	summary.CostUSD = usage.CostUSD
	return summary, usage, nil
}

// analysisPayload is the wire shape of one analysis response.
type analysisPayload struct {
	EventType        string          `json:"event_type"`
	ImpactDirection  string          `json:"impact_direction"`
	ImpactHorizon    string          `json:"impact_horizon"`
	ThesisRelation   string          `json:"thesis_relation"`
	Confidence       string          `json:"confidence"`
	ConfidenceReason string          `json:"confidence_reason"`
	Summary          string          `json:"summary"`
	KeyFacts         []string        `json:"key_facts"`
	WatchNext        string          `json:"watch_next"`
	Error            json.RawMessage `json:"error"`
}

// parseAnalysis cleans, decodes, and validates one model response.
func parseAnalysis(raw string) (*domain.AnalysisResult, *ValidationError) {
	cleaned, verr := extractJSON(raw)
	if verr != nil {
		return nil, verr
	}

	var payload analysisPayload
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return nil, &ValidationError{Problems: []string{fmt.Sprintf("invalid JSON: %v", err)}}
	}

	// Some APIs answer 200 with an error envelope instead of failing.
	if len(payload.Error) > 0 && payload.Error[0] == '{' {
		var apiErr struct {
			Message string `json:"message"`
		}
		json.Unmarshal(payload.Error, &apiErr)
		return nil, &ValidationError{Problems: []string{"API error: " + apiErr.Message}}
	}

	var problems []string
	if !domain.EventType(payload.EventType).IsValid() {
		problems = append(problems, fmt.Sprintf("event_type %q is not a valid value", payload.EventType))
	}
	if !domain.ImpactDirection(payload.ImpactDirection).IsValid() {
		problems = append(problems, fmt.Sprintf("impact_direction %q is not a valid value", payload.ImpactDirection))
	}
	if !domain.ImpactHorizon(payload.ImpactHorizon).IsValid() {
		problems = append(problems, fmt.Sprintf("impact_horizon %q is not a valid value", payload.ImpactHorizon))
	}
	if !domain.ThesisRelation(payload.ThesisRelation).IsValid() {
		problems = append(problems, fmt.Sprintf("thesis_relation %q is not a valid value", payload.ThesisRelation))
	}
	if !domain.Confidence(payload.Confidence).IsValid() {
		problems = append(problems, fmt.Sprintf("confidence %q is not a valid value", payload.Confidence))
	}
	if len(payload.Summary) > domain.MaxSummaryLen {
		problems = append(problems, fmt.Sprintf("summary exceeds %d characters", domain.MaxSummaryLen))
	}
	if len(payload.ConfidenceReason) > domain.MaxConfidenceReasonLen {
		problems = append(problems, fmt.Sprintf("confidence_reason exceeds %d characters", domain.MaxConfidenceReasonLen))
	}
	if len(payload.KeyFacts) > domain.MaxKeyFacts {
		problems = append(problems, fmt.Sprintf("key_facts has more than %d items", domain.MaxKeyFacts))
	}
	for _, fact := range payload.KeyFacts {
		if len(fact) > domain.MaxKeyFactLen {
			problems = append(problems, fmt.Sprintf("key_facts entry exceeds %d characters", domain.MaxKeyFactLen))
			break
		}
	}
	if len(payload.WatchNext) > domain.MaxWatchNextLen {
		problems = append(problems, fmt.Sprintf("watch_next exceeds %d characters", domain.MaxWatchNextLen))
	}
	if len(problems) > 0 {
		return nil, &ValidationError{Problems: problems}
	}

	return &domain.AnalysisResult{
		EventType:        domain.EventType(payload.EventType),
		ImpactDirection:  domain.ImpactDirection(payload.ImpactDirection),
		ImpactHorizon:    domain.ImpactHorizon(payload.ImpactHorizon),
		ThesisRelation:   domain.ThesisRelation(payload.ThesisRelation),
		Confidence:       domain.Confidence(payload.Confidence),
		ConfidenceReason: payload.ConfidenceReason,
		Summary:          payload.Summary,
		KeyFacts:         payload.KeyFacts,
		WatchNext:        payload.WatchNext,
	}, nil
}

// summaryPayload is the wire shape of one ticker summary response.
type summaryPayload struct {
	Sentiment  string   `json:"sentiment"`
	KeyPoints  []string `json:"key_points"`
	Assessment string   `json:"assessment"`
	Action     string   `json:"action"`
}

// parseSummary decodes a summary response, degrading field by field.
func parseSummary(raw string) *domain.TickerSummary {
	cleaned, verr := extractJSON(raw)
	if verr == nil {
		var payload summaryPayload
		if err := json.Unmarshal([]byte(cleaned), &payload); err == nil {
			sentiment := domain.ImpactDirection(payload.Sentiment)
			if !sentiment.IsValid() {
				sentiment = domain.ImpactNeutral
			}
			if len(payload.KeyPoints) > domain.MaxKeyFacts {
				payload.KeyPoints = payload.KeyPoints[:domain.MaxKeyFacts]
			}
			action := payload.Action
			if action == "" {
				action = "Continue monitoring"
			}
			return &domain.TickerSummary{
				Sentiment:  sentiment,
				KeyPoints:  payload.KeyPoints,
				Assessment: payload.Assessment,
				Action:     action,
			}
		}
	}
	return &domain.TickerSummary{
		Sentiment:  domain.ImpactNeutral,
		Assessment: "Summary generation failed",
		Action:     "Continue monitoring",
	}
}

// extractJSON strips markdown fences and slices the outermost JSON
// object out of a model response.
func extractJSON(raw string) (string, *ValidationError) {
	cleaned := strings.TrimSpace(raw)
	if strings.HasPrefix(cleaned, "```") {
		lines := strings.Split(cleaned, "\n")
		if strings.HasPrefix(lines[0], "```") {
			lines = lines[1:]
		}
		if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "```" {
			lines = lines[:len(lines)-1]
		}
		cleaned = strings.Join(lines, "\n")
	}

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start < 0 || end <= start {
		return "", &ValidationError{Problems: []string{"no JSON object found in response"}}
	}
	return cleaned[start : end+1], nil
}

// strictPrompt appends the violated constraints to the original prompt
// for the repair attempt.
func strictPrompt(original string, verr *ValidationError) string {
	return original + fmt.Sprintf(`

IMPORTANT: Your previous response had validation errors: %s

Please ensure:
1. Output is ONLY valid JSON, no markdown or extra text
2. event_type must be exactly one of: earnings, guidance, regulatory, contract, product, accident, macro, rumor, other
3. impact_direction must be exactly one of: bullish, bearish, neutral
4. impact_horizon must be exactly one of: short, medium, long
5. thesis_relation must be exactly one of: supports, weakens, unrelated
6. confidence must be exactly one of: high, medium, low
7. summary must be 100 characters or less
8. key_facts must be an array with at most 3 items
9. watch_next must be 50 characters or less`, verr.Error())
}

// fallbackAnalysis is the safe default stored when both attempts failed.
func fallbackAnalysis(news domain.NewsItem) *domain.AnalysisResult {
	summary := truncate(news.Title, domain.MaxSummaryLen)
	if summary == "" {
		summary = "No summary"
	}
	return &domain.AnalysisResult{
		EventType:        domain.EventOther,
		ImpactDirection:  domain.ImpactNeutral,
		ImpactHorizon:    domain.HorizonShort,
		ThesisRelation:   domain.ThesisUnrelated,
		Confidence:       domain.ConfidenceLow,
		ConfidenceReason: "Analysis failed, using fallback",
		Summary:          summary,
		KeyFacts:         []string{},
		WatchNext:        "",
	}
}

// fallbackSummary tallies analyzed directions when the model cannot
// produce a summary.
func fallbackSummary(ticker, company string, items []AnalyzedItem) *domain.TickerSummary {
	var bullish, bearish int
	for _, item := range items {
		if item.Analysis == nil {
			continue
		}
		switch item.Analysis.ImpactDirection {
		case domain.ImpactBullish:
			bullish++
		case domain.ImpactBearish:
			bearish++
		}
	}
	sentiment := domain.ImpactNeutral
	if bullish > bearish {
		sentiment = domain.ImpactBullish
	} else if bearish > bullish {
		sentiment = domain.ImpactBearish
	}

	var points []string
	for _, item := range items {
		if len(points) == domain.MaxKeyFacts {
			break
		}
		points = append(points, truncate(item.News.Title, 60))
	}

	return &domain.TickerSummary{
		Ticker:      ticker,
		CompanyName: company,
		Sentiment:   sentiment,
		KeyPoints:   points,
		Assessment:  fmt.Sprintf("Today: %d news items (%d bullish, %d bearish); requires manual assessment", len(items), bullish, bearish),
		Action:      "Continue monitoring",
		ItemCount:   len(items),
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// Verify interface compliance at compile time.
var _ Provider = (*Analyzer)(nil)
