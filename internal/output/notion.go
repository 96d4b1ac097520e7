package output

import (
	"context"
	"fmt"
	"strings"

	"market-news-lab/internal/domain"
	"market-news-lab/internal/ratelimit"
)

const (
	notionBaseURL    = "https://api.notion.com"
	notionAPIVersion = "2022-06-28"

	// notionBlockLimit is the API cap on children per request.
	notionBlockLimit = 100

	// notionTextLimit is the API cap on one rich text content field.
	notionTextLimit = 2000
)

// Notion creates one digest page under a parent page.
type Notion struct {
	client     *ratelimit.Client
	token      string
	parentPage string
	baseURL    string
}

// NewNotion creates the notion output channel.
func NewNotion(cfg Config) (Output, error) {
	if cfg.NotionToken == "" || cfg.NotionParentPage == "" {
		return nil, fmt.Errorf("notion output requires a token and a parent page id")
	}
	if cfg.Client == nil {
		return nil, fmt.Errorf("notion output requires an http client")
	}
	return &Notion{
		client:     cfg.Client,
		token:      cfg.NotionToken,
		parentPage: cfg.NotionParentPage,
		baseURL:    notionBaseURL,
	}, nil
}

// Name implements Output.
func (n *Notion) Name() string { return "notion" }

// block is a minimal Notion block union; only the populated member is
// serialized.
type block map[string]any

func richText(text string) []map[string]any {
	if len(text) > notionTextLimit {
		text = text[:notionTextLimit]
	}
	return []map[string]any{{"type": "text", "text": map[string]any{"content": text}}}
}

func heading1(text string) block {
	return block{"object": "block", "type": "heading_1", "heading_1": map[string]any{"rich_text": richText(text)}}
}

func heading2(text string) block {
	return block{"object": "block", "type": "heading_2", "heading_2": map[string]any{"rich_text": richText(text)}}
}

func paragraph(text string) block {
	return block{"object": "block", "type": "paragraph", "paragraph": map[string]any{"rich_text": richText(text)}}
}

func bullet(text string) block {
	return block{"object": "block", "type": "bulleted_list_item", "bulleted_list_item": map[string]any{"rich_text": richText(text)}}
}

func divider() block {
	return block{"object": "block", "type": "divider", "divider": map[string]any{}}
}

// digestBlocks flattens the digest into Notion blocks.
func digestBlocks(digest *domain.Digest) []block {
	blocks := []block{
		paragraph(fmt.Sprintf("Window %s to %s, run %s",
			digest.WindowStart.UTC().Format("2006-01-02 15:04"),
			digest.WindowEnd.UTC().Format("2006-01-02 15:04"),
			digest.RunID)),
	}

	if high := digest.HighImpact(); len(high) > 0 {
		blocks = append(blocks, heading1("High Impact"))
		for _, item := range high {
			blocks = append(blocks, itemBlocks(item)...)
		}
	}

	for _, ticker := range digestTickers(digest) {
		items := digest.ItemsForTicker(ticker)
		if len(items) == 0 {
			continue
		}
		blocks = append(blocks, heading1(ticker))
		if summary := summaryFor(digest, ticker); summary != nil {
			blocks = append(blocks, paragraph(fmt.Sprintf("Sentiment %s. Action: %s", summary.Sentiment, summary.Action)))
			if summary.Assessment != "" {
				blocks = append(blocks, paragraph(summary.Assessment))
			}
			for _, point := range summary.KeyPoints {
				blocks = append(blocks, bullet(point))
			}
		}
		for _, item := range items {
			blocks = append(blocks, itemBlocks(item)...)
		}
	}

	c := digest.Counters
	blocks = append(blocks, divider(), paragraph(fmt.Sprintf(
		"Collected %d, kept %d after dedup, analyzed %d (%d failed).",
		c.RawCollected, c.AfterDedup, c.AnalyzedSuccess, c.AnalyzedFailed)))
	return blocks
}

func itemBlocks(item domain.DigestItem) []block {
	news := item.News
	blocks := []block{
		heading2(news.Title),
		paragraph(fmt.Sprintf("%s | %s | credibility %s | %s",
			news.PublishedAt.UTC().Format("2006-01-02 15:04"),
			news.Source, news.Credibility, strings.Join(news.Tickers, ", "))),
		paragraph(news.CanonicalURL),
	}
	if a := item.Analysis; a != nil {
		blocks = append(blocks, paragraph(fmt.Sprintf("%s (%s, %s horizon, %s thesis, confidence %s)",
			a.Summary, a.ImpactDirection, a.ImpactHorizon, a.ThesisRelation, a.Confidence)))
		for _, fact := range a.KeyFacts {
			blocks = append(blocks, bullet(fact))
		}
	} else if news.Summary != "" {
		blocks = append(blocks, paragraph(news.Summary))
	}
	return blocks
}

type notionPageResponse struct {
	ID string `json:"id"`
}

// Deliver implements Output. The first hundred blocks ride on the page
// create; the remainder is appended in chunks. The reference is the
// created page id.
func (n *Notion) Deliver(ctx context.Context, digest *domain.Digest) (string, error) {
	blocks := digestBlocks(digest)

	first := blocks
	if len(first) > notionBlockLimit {
		first = first[:notionBlockLimit]
	}

	body := map[string]any{
		"parent": map[string]any{"page_id": n.parentPage},
		"properties": map[string]any{
			"title": map[string]any{
				"title": richText(fmt.Sprintf("Market News Digest %s", digest.GeneratedAt.UTC().Format("2006-01-02"))),
			},
		},
		"children": first,
	}

	headers := map[string]string{
		"Authorization":  "Bearer " + n.token,
		"Notion-Version": notionAPIVersion,
	}

	var page notionPageResponse
	if err := n.client.PostJSON(ctx, "notion", n.baseURL+"/v1/pages", headers, body, &page); err != nil {
		return "", fmt.Errorf("create notion page: %w", err)
	}

	for start := notionBlockLimit; start < len(blocks); start += notionBlockLimit {
		end := start + notionBlockLimit
		if end > len(blocks) {
			end = len(blocks)
		}
		appendBody := map[string]any{"children": blocks[start:end]}
		url := fmt.Sprintf("%s/v1/blocks/%s/children", n.baseURL, page.ID)
		if err := n.client.PatchJSON(ctx, "notion", url, headers, appendBody, nil); err != nil {
			return page.ID, fmt.Errorf("append notion blocks: %w", err)
		}
	}

	return page.ID, nil
}

// Verify interface compliance at compile time.
var _ Output = (*Notion)(nil)
