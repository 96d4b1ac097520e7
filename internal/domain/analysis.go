package domain

// EventType classifies what kind of event a news item describes.
type EventType string

const (
	EventEarnings   EventType = "earnings"
	EventGuidance   EventType = "guidance"
	EventRegulatory EventType = "regulatory"
	EventContract   EventType = "contract"
	EventProduct    EventType = "product"
	EventAccident   EventType = "accident"
	EventMacro      EventType = "macro"
	EventRumor      EventType = "rumor"
	EventOther      EventType = "other"
)

// EventTypes lists every accepted event type value.
var EventTypes = []EventType{
	EventEarnings, EventGuidance, EventRegulatory, EventContract,
	EventProduct, EventAccident, EventMacro, EventRumor, EventOther,
}

// IsValid checks if the event type is a valid value.
func (e EventType) IsValid() bool {
	for _, v := range EventTypes {
		if e == v {
			return true
		}
	}
	return false
}

// ImpactDirection is the model's call on expected market direction.
type ImpactDirection string

const (
	ImpactBullish ImpactDirection = "bullish"
	ImpactBearish ImpactDirection = "bearish"
	ImpactNeutral ImpactDirection = "neutral"
)

// IsValid checks if the impact direction is a valid value.
func (d ImpactDirection) IsValid() bool {
	return d == ImpactBullish || d == ImpactBearish || d == ImpactNeutral
}

// ImpactHorizon is the expected time frame of the impact.
type ImpactHorizon string

const (
	HorizonShort  ImpactHorizon = "short"
	HorizonMedium ImpactHorizon = "medium"
	HorizonLong   ImpactHorizon = "long"
)

// IsValid checks if the impact horizon is a valid value.
func (h ImpactHorizon) IsValid() bool {
	return h == HorizonShort || h == HorizonMedium || h == HorizonLong
}

// ThesisRelation states how the item bears on the ticker's thesis.
type ThesisRelation string

const (
	ThesisSupports  ThesisRelation = "supports"
	ThesisWeakens   ThesisRelation = "weakens"
	ThesisUnrelated ThesisRelation = "unrelated"
)

// IsValid checks if the thesis relation is a valid value.
func (r ThesisRelation) IsValid() bool {
	return r == ThesisSupports || r == ThesisWeakens || r == ThesisUnrelated
}

// Confidence is the model's self-reported confidence level.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// IsValid checks if the confidence is a valid value.
func (c Confidence) IsValid() bool {
	return c == ConfidenceHigh || c == ConfidenceMedium || c == ConfidenceLow
}

// Length caps on AnalysisResult string fields.
const (
	MaxSummaryLen          = 100
	MaxConfidenceReasonLen = 100
	MaxKeyFacts            = 3
	MaxKeyFactLen          = 200
	MaxWatchNextLen        = 50
)

// AnalysisResult is one LLM classification of one news item.
// Corresponds to the analysis_results table, one-to-one with news_items.
type AnalysisResult struct {
	ID               int64
	NewsItemID       int64
	Provider         string
	Model            string
	PromptVersion    string
	EventType        EventType
	ImpactDirection  ImpactDirection
	ImpactHorizon    ImpactHorizon
	ThesisRelation   ThesisRelation
	Confidence       Confidence
	ConfidenceReason string // <= 100 chars
	Summary          string // <= 100 chars
	KeyFacts         []string // <= 3 entries, each <= 200 chars
	WatchNext        string   // <= 50 chars
	TokensUsed       int
	CostUSD          float64
}
