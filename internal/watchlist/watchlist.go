// Package watchlist loads the user-curated ticker set from a YAML file
// or, when no file is available, from the persistent store.
package watchlist

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"market-news-lab/internal/domain"
	"market-news-lab/internal/storage"
)

// fileEntry is the YAML shape of one watchlist record.
type fileEntry struct {
	Ticker      string   `yaml:"ticker"`
	CompanyName string   `yaml:"company_name"`
	Thesis      string   `yaml:"thesis"`
	RiskTags    []string `yaml:"risk_tags"`
	Priority    *int     `yaml:"priority"`
	Sector      *string  `yaml:"sector"`
}

// watchlistFile is the top-level YAML document.
type watchlistFile struct {
	Watchlist []fileEntry `yaml:"watchlist"`
}

// LoadFile parses a watchlist YAML file. Ticker is required; a missing
// priority defaults, an out-of-range one is an error.
func LoadFile(path string) ([]*domain.WatchlistEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read watchlist file: %w", err)
	}

	var doc watchlistFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse watchlist file: %w", err)
	}
	if len(doc.Watchlist) == 0 {
		return nil, fmt.Errorf("watchlist file %s has no entries under the watchlist key", path)
	}

	seen := make(map[string]struct{}, len(doc.Watchlist))
	entries := make([]*domain.WatchlistEntry, 0, len(doc.Watchlist))
	for i, fe := range doc.Watchlist {
		ticker := strings.ToUpper(strings.TrimSpace(fe.Ticker))
		if ticker == "" {
			return nil, fmt.Errorf("watchlist entry %d is missing a ticker", i)
		}
		if _, dup := seen[ticker]; dup {
			return nil, fmt.Errorf("watchlist entry %d duplicates ticker %s", i, ticker)
		}
		seen[ticker] = struct{}{}

		priority := domain.DefaultPriority
		if fe.Priority != nil {
			if !domain.ValidPriority(*fe.Priority) {
				return nil, fmt.Errorf("watchlist entry %s has priority %d outside 1..5", ticker, *fe.Priority)
			}
			priority = *fe.Priority
		}

		entries = append(entries, &domain.WatchlistEntry{
			Ticker:      ticker,
			CompanyName: fe.CompanyName,
			Thesis:      fe.Thesis,
			RiskTags:    fe.RiskTags,
			Priority:    priority,
			Sector:      fe.Sector,
		})
	}
	return entries, nil
}

// Load returns the watchlist, preferring the file at path when it
// exists and falling back to the store otherwise. An empty path skips
// straight to the store.
func Load(ctx context.Context, path string, store storage.WatchlistStore) ([]*domain.WatchlistEntry, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}
	}
	if store == nil {
		return nil, fmt.Errorf("no watchlist file at %q and no store configured", path)
	}
	entries, err := store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("load watchlist from store: %w", err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("watchlist is empty")
	}
	return entries, nil
}

// Filter keeps only the entries whose ticker appears in tickers. An
// empty ticker list keeps everything.
func Filter(entries []*domain.WatchlistEntry, tickers []string) []*domain.WatchlistEntry {
	if len(tickers) == 0 {
		return entries
	}
	want := make(map[string]struct{}, len(tickers))
	for _, t := range tickers {
		want[strings.ToUpper(strings.TrimSpace(t))] = struct{}{}
	}
	var out []*domain.WatchlistEntry
	for _, e := range entries {
		if _, ok := want[e.Ticker]; ok {
			out = append(out, e)
		}
	}
	return out
}
