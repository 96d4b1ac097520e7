package provider

// pricing is USD per 1K tokens, split by direction.
type pricing struct {
	InputPer1K  float64
	OutputPer1K float64
}

// cost computes the USD cost of one call.
func (p pricing) cost(tokensIn, tokensOut int) float64 {
	return (float64(tokensIn)*p.InputPer1K + float64(tokensOut)*p.OutputPer1K) / 1000
}

// geminiPricing applies across the Gemini Flash/Pro tiers we use.
var geminiPricing = pricing{InputPer1K: 0.00025, OutputPer1K: 0.0005}

// openaiPricing is keyed by model name.
var openaiPricing = map[string]pricing{
	"gpt-4o":        {InputPer1K: 0.005, OutputPer1K: 0.015},
	"gpt-4o-mini":   {InputPer1K: 0.00015, OutputPer1K: 0.0006},
	"gpt-4-turbo":   {InputPer1K: 0.01, OutputPer1K: 0.03},
	"gpt-4":         {InputPer1K: 0.03, OutputPer1K: 0.06},
	"gpt-3.5-turbo": {InputPer1K: 0.0005, OutputPer1K: 0.0015},
}

// claudePricing is keyed by model family prefix.
var claudePricing = map[string]pricing{
	"claude-3-5-sonnet": {InputPer1K: 0.003, OutputPer1K: 0.015},
	"claude-3-5-haiku":  {InputPer1K: 0.0008, OutputPer1K: 0.004},
	"claude-3-opus":     {InputPer1K: 0.015, OutputPer1K: 0.075},
}

// openaiPricingFor falls back to the cheapest current model when the
// configured model has no table entry.
func openaiPricingFor(model string) pricing {
	if p, ok := openaiPricing[model]; ok {
		return p
	}
	return openaiPricing["gpt-4o-mini"]
}

// claudePricingFor matches on model family prefix so dated snapshots
// like claude-3-5-haiku-20241022 resolve.
func claudePricingFor(model string) pricing {
	for prefix, p := range claudePricing {
		if len(model) >= len(prefix) && model[:len(prefix)] == prefix {
			return p
		}
	}
	return claudePricing["claude-3-5-haiku"]
}

// estimateTokens approximates a token count at four characters per
// token, for APIs that omit usage metadata.
func estimateTokens(s string) int {
	return len(s) / 4
}
