package provider

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"market-news-lab/internal/domain"
)

//go:embed prompts/news_analysis_v1.txt prompts/ticker_summary_v1.txt
var defaultPrompts embed.FS

// PromptVersion tags analysis rows with the template generation that
// produced them.
const PromptVersion = "v1"

const (
	analysisPromptFile = "news_analysis_v1.txt"
	summaryPromptFile  = "ticker_summary_v1.txt"
)

// Prompts holds the analysis and summary templates. Templates use
// {placeholder} substitution.
type Prompts struct {
	analysis string
	summary  string
}

// LoadPrompts loads templates from dir, falling back to the embedded
// defaults for any file the directory does not provide. An empty dir
// uses the defaults only.
func LoadPrompts(dir string) (*Prompts, error) {
	analysis, err := loadPrompt(dir, analysisPromptFile)
	if err != nil {
		return nil, err
	}
	summary, err := loadPrompt(dir, summaryPromptFile)
	if err != nil {
		return nil, err
	}
	return &Prompts{analysis: analysis, summary: summary}, nil
}

func loadPrompt(dir, name string) (string, error) {
	if dir != "" {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err == nil {
			return string(data), nil
		}
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("read prompt %s: %w", name, err)
		}
	}
	data, err := defaultPrompts.ReadFile("prompts/" + name)
	if err != nil {
		return "", fmt.Errorf("embedded prompt %s: %w", name, err)
	}
	return string(data), nil
}

// Analysis renders the news analysis prompt for one item.
func (p *Prompts) Analysis(news domain.NewsItem, thesis string) string {
	tickers := "N/A"
	if len(news.Tickers) > 0 {
		tickers = strings.Join(news.Tickers, ", ")
	}
	published := "Unknown"
	if !news.PublishedAt.IsZero() {
		published = news.PublishedAt.UTC().Format("2006-01-02 15:04 UTC")
	}
	content := news.Summary
	if content == "" {
		content = "(No summary available)"
	}
	if thesis == "" {
		thesis = "(No specific investment thesis provided)"
	}
	return render(p.analysis, map[string]string{
		"tickers":      tickers,
		"title":        news.Title,
		"source":       string(news.Source),
		"published_at": published,
		"content":      content,
		"thesis":       thesis,
	})
}

// Summary renders the per-ticker daily summary prompt.
func (p *Prompts) Summary(ticker, company string, items []AnalyzedItem, thesis string) string {
	if thesis == "" {
		thesis = "(No specific investment thesis)"
	}
	return render(p.summary, map[string]string{
		"ticker":       ticker,
		"company_name": company,
		"thesis":       thesis,
		"news_list":    newsListText(items),
	})
}

// newsListText formats the numbered item list embedded in the summary
// prompt.
func newsListText(items []AnalyzedItem) string {
	var entries []string
	for i, item := range items {
		var b strings.Builder
		fmt.Fprintf(&b, "%d. [%s] %s", i+1, item.News.PublishedAt.UTC().Format("15:04"), item.News.Title)
		if item.Analysis != nil {
			fmt.Fprintf(&b, "\n   - Impact: %s (%s)", item.Analysis.ImpactDirection, item.Analysis.EventType)
			fmt.Fprintf(&b, "\n   - Summary: %s", item.Analysis.Summary)
		}
		entries = append(entries, b.String())
	}
	return strings.Join(entries, "\n\n")
}

// render substitutes {key} placeholders. Unknown placeholders are left
// as-is so templates can carry literal braces.
func render(template string, values map[string]string) string {
	pairs := make([]string, 0, len(values)*2)
	for k, v := range values {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}
