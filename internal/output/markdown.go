package output

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"market-news-lab/internal/domain"
)

const defaultOutputDir = "digests"

// Markdown writes the digest to a dated file on disk.
type Markdown struct {
	dir string
}

// NewMarkdown creates the markdown output channel.
func NewMarkdown(cfg Config) (Output, error) {
	dir := cfg.OutputDir
	if dir == "" {
		dir = defaultOutputDir
	}
	return &Markdown{dir: dir}, nil
}

// Name implements Output.
func (m *Markdown) Name() string { return "markdown" }

// Deliver implements Output. The reference is the written file path.
// Writing the same digest twice overwrites the same file, so
// re-delivery is harmless.
func (m *Markdown) Deliver(_ context.Context, digest *domain.Digest) (string, error) {
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	path := filepath.Join(m.dir, fmt.Sprintf("digest-%s-%s.md",
		digest.GeneratedAt.UTC().Format("2006-01-02"), shortRunID(digest.RunID)))
	if err := os.WriteFile(path, []byte(RenderMarkdown(digest)), 0o644); err != nil {
		return "", fmt.Errorf("write digest file: %w", err)
	}
	return path, nil
}

// shortRunID keeps file names readable.
func shortRunID(runID string) string {
	if len(runID) > 8 {
		return runID[:8]
	}
	return runID
}

// RenderMarkdown renders the whole digest document. Shared with the
// telegram channel, which chunks the same text.
func RenderMarkdown(digest *domain.Digest) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Market News Digest %s\n\n", digest.GeneratedAt.UTC().Format("2006-01-02"))
	fmt.Fprintf(&b, "Window: %s to %s (run `%s`)\n\n",
		digest.WindowStart.UTC().Format("2006-01-02 15:04"),
		digest.WindowEnd.UTC().Format("2006-01-02 15:04"),
		digest.RunID)

	if high := digest.HighImpact(); len(high) > 0 {
		b.WriteString("## High Impact\n\n")
		for _, item := range high {
			writeItem(&b, item)
		}
	}

	for _, ticker := range digestTickers(digest) {
		items := digest.ItemsForTicker(ticker)
		if len(items) == 0 {
			continue
		}
		fmt.Fprintf(&b, "## %s\n\n", ticker)
		if summary := summaryFor(digest, ticker); summary != nil {
			fmt.Fprintf(&b, "**Sentiment:** %s | **Action:** %s\n\n", summary.Sentiment, summary.Action)
			if summary.Assessment != "" {
				fmt.Fprintf(&b, "%s\n\n", summary.Assessment)
			}
			for _, point := range summary.KeyPoints {
				fmt.Fprintf(&b, "- %s\n", point)
			}
			if len(summary.KeyPoints) > 0 {
				b.WriteString("\n")
			}
		}
		for _, item := range items {
			writeItem(&b, item)
		}
	}

	c := digest.Counters
	b.WriteString("---\n\n")
	fmt.Fprintf(&b, "Collected %d, kept %d after dedup, analyzed %d (%d failed), delivered to %d channel(s).\n",
		c.RawCollected, c.AfterDedup, c.AnalyzedSuccess, c.AnalyzedFailed, c.Delivered)

	return b.String()
}

func writeItem(b *strings.Builder, item domain.DigestItem) {
	news := item.News
	fmt.Fprintf(b, "### [%s](%s)\n\n", news.Title, news.CanonicalURL)
	fmt.Fprintf(b, "%s | %s | credibility %s | %s\n\n",
		news.PublishedAt.UTC().Format("2006-01-02 15:04"),
		news.Source, news.Credibility, strings.Join(news.Tickers, ", "))

	if a := item.Analysis; a != nil {
		fmt.Fprintf(b, "> %s\n>\n> %s / %s horizon / %s thesis / confidence %s\n\n",
			a.Summary, a.ImpactDirection, a.ImpactHorizon, a.ThesisRelation, a.Confidence)
		for _, fact := range a.KeyFacts {
			fmt.Fprintf(b, "- %s\n", fact)
		}
		if a.WatchNext != "" {
			fmt.Fprintf(b, "- Watch next: %s\n", a.WatchNext)
		}
		if len(a.KeyFacts) > 0 || a.WatchNext != "" {
			b.WriteString("\n")
		}
	} else if news.Summary != "" {
		fmt.Fprintf(b, "%s\n\n", news.Summary)
	}
}

// digestTickers returns the tickers present in the digest, summaries
// first in their given order, then any remaining tickers sorted.
func digestTickers(digest *domain.Digest) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, s := range digest.TickerSummaries {
		if _, ok := seen[s.Ticker]; !ok {
			seen[s.Ticker] = struct{}{}
			out = append(out, s.Ticker)
		}
	}
	var rest []string
	for _, item := range digest.Items {
		for _, t := range item.News.Tickers {
			if _, ok := seen[t]; !ok {
				seen[t] = struct{}{}
				rest = append(rest, t)
			}
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}

func summaryFor(digest *domain.Digest, ticker string) *domain.TickerSummary {
	for i := range digest.TickerSummaries {
		if digest.TickerSummaries[i].Ticker == ticker {
			return &digest.TickerSummaries[i]
		}
	}
	return nil
}

// Verify interface compliance at compile time.
var _ Output = (*Markdown)(nil)
