package collector

import (
	"context"
	"fmt"
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

const secSubmissionsBaseURL = "https://data.sec.gov"

// filingForms are the form types worth surfacing in a digest.
var filingForms = map[string]string{
	"8-K":  "Current Report (Material Event)",
	"10-Q": "Quarterly Report",
	"10-K": "Annual Report",
	"4":    "Insider Trading Report",
}

// cikMap resolves common tickers to their SEC Central Index Key.
// The full list lives in EDGAR's company_tickers.json.
var cikMap = map[string]string{
	"AAPL":  "320193",
	"GOOGL": "1652044",
	"GOOG":  "1652044",
	"MSFT":  "789019",
	"AMZN":  "1018724",
	"NVDA":  "1045810",
	"TSM":   "1046179",
	"AMD":   "2488",
	"INTC":  "50863",
	"MU":    "723125",
	"WDC":   "106040",
	"RKLB":  "1819994",
	"META":  "1326801",
	"TSLA":  "1318605",
	"AVGO":  "1730168",
	"MRVL":  "1058057",
}

// SECEdgar collects regulatory filings from the EDGAR submissions API.
type SECEdgar struct {
	client  *ratelimit.Client
	baseURL string
	log     zerolog.Logger
}

// SECEdgarOptions configures a SECEdgar collector.
type SECEdgarOptions struct {
	Client  *ratelimit.Client
	BaseURL string // defaults to data.sec.gov
	Logger  zerolog.Logger
}

// NewSECEdgar creates a SEC EDGAR collector. The user agent EDGAR
// requires is attached by the rate limiter's "sec" registration.
func NewSECEdgar(opts SECEdgarOptions) (*SECEdgar, error) {
	if opts.Client == nil {
		return nil, fmt.Errorf("sec collector requires an http client")
	}
	if opts.BaseURL == "" {
		opts.BaseURL = secSubmissionsBaseURL
	}
	return &SECEdgar{
		client:  opts.Client,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		log:     opts.Logger,
	}, nil
}

// Source implements Collector.
func (s *SECEdgar) Source() domain.NewsSource { return domain.SourceSEC }

// SourceType implements Collector.
func (s *SECEdgar) SourceType() domain.SourceType { return domain.SourceTypeFiling }

// Credibility implements Collector.
func (s *SECEdgar) Credibility() domain.Credibility { return domain.CredibilityHigh }

// submissions is the shape of /submissions/CIK{n}.json.
type submissions struct {
	Name    string `json:"name"`
	Filings struct {
		Recent struct {
			AccessionNumber       []string `json:"accessionNumber"`
			FilingDate            []string `json:"filingDate"`
			Form                  []string `json:"form"`
			PrimaryDocument       []string `json:"primaryDocument"`
			PrimaryDocDescription []string `json:"primaryDocDescription"`
		} `json:"recent"`
	} `json:"filings"`
}

// Collect fetches recent filings per ticker concurrently, filtered to the
// tracked form types within the window.
func (s *SECEdgar) Collect(ctx context.Context, tickers []string, since, until time.Time) ([]domain.RawItem, error) {
	if until.IsZero() {
		until = time.Now()
	}
	log := runlog.Ctx(ctx, s.log)

	var mu sync.Mutex
	var items []domain.RawItem
	var failed []string

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxTickerConcurrency)

	for _, ticker := range tickers {
		g.Go(func() error {
			batch, err := s.collectTicker(gctx, ticker, since, until)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Warn().Err(err).Str("ticker", ticker).Msg("sec ticker fetch failed")
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
		return nil, fmt.Errorf("sec: all %d tickers failed", len(tickers))
	}

	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].PublishedAt.Equal(items[j].PublishedAt) {
			return items[i].PublishedAt.After(items[j].PublishedAt)
		}
		return items[i].URL < items[j].URL
	})

	items = dedupByURL(items)
	log.Info().Int("items", len(items)).Int("failed_tickers", len(failed)).Msg("sec collection done")
	return items, nil
}

func (s *SECEdgar) collectTicker(ctx context.Context, ticker string, since, until time.Time) ([]domain.RawItem, error) {
	ticker = strings.ToUpper(ticker)
	cik, ok := cikMap[ticker]
	if !ok {
		// Unknown tickers simply have no filings to report.
		s.log.Debug().Str("ticker", ticker).Msg("no CIK mapping for ticker")
		return nil, nil
	}

	// EDGAR wants the CIK zero-padded to 10 digits.
	padded := cik
	if len(padded) < 10 {
		padded = strings.Repeat("0", 10-len(padded)) + padded
	}
	endpoint := fmt.Sprintf("%s/submissions/CIK%s.json", s.baseURL, padded)
	var data submissions
	if err := s.client.GetJSON(ctx, "sec", endpoint, nil, &data); err != nil {
		return nil, fmt.Errorf("fetch submissions for %s: %w", ticker, err)
	}

	recent := data.Filings.Recent
	fetchedAt := time.Now()
	var items []domain.RawItem

	for i, form := range recent.Form {
		desc, tracked := filingForms[form]
		if !tracked {
			continue
		}
		if i >= len(recent.FilingDate) || i >= len(recent.AccessionNumber) || i >= len(recent.PrimaryDocument) {
			continue
		}

		filed, err := time.Parse("2006-01-02", recent.FilingDate[i])
		if err != nil {
			continue
		}
		// Filing dates carry day precision; compare by day.
		if filed.Before(since.Truncate(24*time.Hour)) || filed.After(until) {
			continue
		}

		accession := strings.ReplaceAll(recent.AccessionNumber[i], "-", "")
		filingURL := fmt.Sprintf("https://www.sec.gov/Archives/edgar/data/%s/%s/%s",
			cik, accession, recent.PrimaryDocument[i])

		summary := desc
		if i < len(recent.PrimaryDocDescription) && recent.PrimaryDocDescription[i] != "" {
			summary = recent.PrimaryDocDescription[i]
		}

		externalID := recent.AccessionNumber[i]
		items = append(items, domain.RawItem{
			Source:      domain.SourceSEC,
			SourceType:  domain.SourceTypeFiling,
			ExternalID:  &externalID,
			URL:         filingURL,
			Title:       fmt.Sprintf("%s %s filing", ticker, form),
			Summary:     summary,
			PublishedAt: filed,
			Tickers:     []string{ticker},
			FetchedAt:   fetchedAt,
			RawPayload: map[string]any{
				"form":            form,
				"accessionNumber": recent.AccessionNumber[i],
				"filingDate":      recent.FilingDate[i],
				"companyName":     data.Name,
				"cik":             cik,
			},
		})
	}
	return items, nil
}

// Verify interface compliance at compile time.
var _ Collector = (*SECEdgar)(nil)
