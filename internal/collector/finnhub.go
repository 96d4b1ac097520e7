package collector

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"market-news-lab/internal/domain"
	"market-news-lab/internal/ratelimit"
	"market-news-lab/internal/runlog"
)

const finnhubBaseURL = "https://finnhub.io/api/v1"

// maxTickerConcurrency bounds the per-ticker fan-out; the token bucket
// still paces the actual requests.
const maxTickerConcurrency = 4

// Finnhub collects company news from the Finnhub REST API.
type Finnhub struct {
	client  *ratelimit.Client
	apiKey  string
	baseURL string
	log     zerolog.Logger
}

// FinnhubOptions configures a Finnhub collector.
type FinnhubOptions struct {
	Client  *ratelimit.Client
	APIKey  string
	BaseURL string // defaults to the public endpoint
	Logger  zerolog.Logger
}

// NewFinnhub creates a Finnhub collector. The API key is required.
func NewFinnhub(opts FinnhubOptions) (*Finnhub, error) {
	if opts.Client == nil {
		return nil, fmt.Errorf("finnhub collector requires an http client")
	}
	if opts.APIKey == "" {
		return nil, fmt.Errorf("finnhub collector requires an api key")
	}
	if opts.BaseURL == "" {
		opts.BaseURL = finnhubBaseURL
	}
	return &Finnhub{
		client:  opts.Client,
		apiKey:  opts.APIKey,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		log:     opts.Logger,
	}, nil
}

// Source implements Collector.
func (f *Finnhub) Source() domain.NewsSource { return domain.SourceFinnhub }

// SourceType implements Collector.
func (f *Finnhub) SourceType() domain.SourceType { return domain.SourceTypeNews }

// Credibility implements Collector.
func (f *Finnhub) Credibility() domain.Credibility { return domain.CredibilityMedium }

// finnhubArticle is one element of the company-news response.
type finnhubArticle struct {
	ID       int64  `json:"id"`
	Category string `json:"category"`
	Datetime int64  `json:"datetime"` // unix seconds
	Headline string `json:"headline"`
	Related  string `json:"related"` // CSV of tickers
	Source   string `json:"source"`
	Summary  string `json:"summary"`
	URL      string `json:"url"`
}

// Collect fetches company news per ticker concurrently. One bad ticker
// never fails the batch; the batch fails only when every ticker failed.
func (f *Finnhub) Collect(ctx context.Context, tickers []string, since, until time.Time) ([]domain.RawItem, error) {
	if until.IsZero() {
		until = time.Now()
	}
	log := runlog.Ctx(ctx, f.log)

	var mu sync.Mutex
	var items []domain.RawItem
	var failed []string

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxTickerConcurrency)

	for _, ticker := range tickers {
		g.Go(func() error {
			batch, err := f.collectTicker(gctx, ticker, since, until)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Warn().Err(err).Str("ticker", ticker).Msg("finnhub ticker fetch failed")
				failed = append(failed, ticker)
				return nil
			}
			items = append(items, batch...)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if len(tickers) > 0 && len(failed) == len(tickers) {
		return nil, fmt.Errorf("finnhub: all %d tickers failed", len(tickers))
	}

	// Deterministic order across the concurrent fan-out.
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].PublishedAt.Equal(items[j].PublishedAt) {
			return items[i].PublishedAt.After(items[j].PublishedAt)
		}
		return items[i].URL < items[j].URL
	})

	items = dedupByURL(items)
	log.Info().Int("items", len(items)).Int("failed_tickers", len(failed)).Msg("finnhub collection done")
	return items, nil
}

func (f *Finnhub) collectTicker(ctx context.Context, ticker string, since, until time.Time) ([]domain.RawItem, error) {
	endpoint := fmt.Sprintf("%s/company-news?symbol=%s&from=%s&to=%s&token=%s",
		f.baseURL,
		url.QueryEscape(ticker),
		since.Format("2006-01-02"),
		until.Format("2006-01-02"),
		url.QueryEscape(f.apiKey))

	var articles []finnhubArticle
	if err := f.client.GetJSON(ctx, "finnhub", endpoint, nil, &articles); err != nil {
		return nil, fmt.Errorf("fetch company news for %s: %w", ticker, err)
	}

	fetchedAt := time.Now()
	var items []domain.RawItem
	for _, a := range articles {
		if a.URL == "" || a.Headline == "" {
			continue
		}
		published := time.Unix(a.Datetime, 0).UTC()
		if published.Before(since) || published.After(until) {
			continue
		}

		relTickers := splitRelated(a.Related, ticker)
		externalID := fmt.Sprintf("%d", a.ID)
		items = append(items, domain.RawItem{
			Source:      domain.SourceFinnhub,
			SourceType:  domain.SourceTypeNews,
			ExternalID:  &externalID,
			URL:         a.URL,
			Title:       a.Headline,
			Summary:     a.Summary,
			PublishedAt: published,
			Tickers:     relTickers,
			FetchedAt:   fetchedAt,
			RawPayload: map[string]any{
				"id":       a.ID,
				"category": a.Category,
				"source":   a.Source,
				"related":  a.Related,
			},
		})
	}
	return items, nil
}

// splitRelated parses the related CSV, guaranteeing the requested ticker
// is present and first.
func splitRelated(related, primary string) []string {
	tickers := []string{primary}
	for _, t := range strings.Split(related, ",") {
		t = strings.TrimSpace(strings.ToUpper(t))
		if t == "" || t == primary {
			continue
		}
		tickers = append(tickers, t)
	}
	return tickers
}

// Verify interface compliance at compile time.
var _ Collector = (*Finnhub)(nil)
