package domain

// NewsSource identifies the upstream provider of an item.
type NewsSource string

const (
	SourceFinnhub NewsSource = "finnhub"
	SourceSEC     NewsSource = "sec"
)

// String returns the string representation of NewsSource.
func (s NewsSource) String() string {
	return string(s)
}

// SourceType distinguishes press news from regulatory filings.
type SourceType string

const (
	SourceTypeNews   SourceType = "news"
	SourceTypeFiling SourceType = "filing"
)

// String returns the string representation of SourceType.
func (t SourceType) String() string {
	return string(t)
}

// IsValid checks if the source type is a valid value.
func (t SourceType) IsValid() bool {
	return t == SourceTypeNews || t == SourceTypeFiling
}

// Credibility is a coarse trust label for an item's source.
type Credibility string

const (
	CredibilityHigh   Credibility = "high"
	CredibilityMedium Credibility = "medium"
	CredibilityLow    Credibility = "low"
)

// String returns the string representation of Credibility.
func (c Credibility) String() string {
	return string(c)
}

// IsValid checks if the credibility is a valid value.
func (c Credibility) IsValid() bool {
	return c == CredibilityHigh || c == CredibilityMedium || c == CredibilityLow
}
