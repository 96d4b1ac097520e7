package domain

// WatchlistEntry is one user-curated ticker with its investment thesis.
// Corresponds to the watchlist table in PostgreSQL.
type WatchlistEntry struct {
	Ticker      string // PRIMARY KEY, uppercase
	CompanyName string
	Thesis      string   // free text, injected into analysis prompts
	RiskTags    []string
	Priority    int // 1..5, higher means more attention
	Sector      *string
}

// DefaultPriority is assigned when a watchlist record omits priority.
const DefaultPriority = 3

// ValidPriority reports whether p is inside the accepted 1..5 range.
func ValidPriority(p int) bool {
	return p >= 1 && p <= 5
}
