// Package pipeline composes collectors, deduplication, LLM analysis,
// persistence, and delivery into one observable run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"market-news-lab/internal/collector"
	"market-news-lab/internal/domain"
	"market-news-lab/internal/normalize"
	"market-news-lab/internal/observability"
	"market-news-lab/internal/output"
	"market-news-lab/internal/provider"
	"market-news-lab/internal/runlog"
	"market-news-lab/internal/storage"
	"market-news-lab/internal/watchlist"
)

// DefaultHoursLookback is the collection window when none is configured.
const DefaultHoursLookback = 24

// Options wires an Orchestrator. Provider may be nil for no-AI mode;
// Metrics may be nil to disable instrumentation.
type Options struct {
	Collectors []collector.Collector
	Provider   provider.Provider
	Processor  *normalize.Processor
	Outputs    []output.Output

	WatchlistPath  string
	WatchlistStore storage.WatchlistStore
	RawItems       storage.RawItemStore
	News           storage.NewsStore
	Analyses       storage.AnalysisStore
	Clusters       storage.ClusterStore
	Runs           storage.RunStore
	Deliveries     storage.DeliveryStore

	HoursLookback  int
	LimitPerTicker int

	Metrics *observability.Metrics
	Logger  zerolog.Logger
	Clock   func() time.Time
}

// RunOptions narrows one run. Zero values fall back to the
// orchestrator's configuration.
type RunOptions struct {
	RunID          string   // fresh uuid when empty
	Tickers        []string // empty means the whole watchlist
	HoursLookback  int
	LimitPerTicker int
}

// Orchestrator executes pipeline runs.
type Orchestrator struct {
	opts Options
	log  zerolog.Logger
	now  func() time.Time
}

// New creates an Orchestrator.
func New(opts Options) (*Orchestrator, error) {
	if opts.Processor == nil {
		return nil, fmt.Errorf("orchestrator requires a processor")
	}
	if opts.RawItems == nil || opts.News == nil || opts.Runs == nil {
		return nil, fmt.Errorf("orchestrator requires raw item, news, and run stores")
	}
	if opts.Provider != nil && opts.Analyses == nil {
		return nil, fmt.Errorf("orchestrator requires an analysis store when a provider is set")
	}
	if len(opts.Outputs) > 0 && opts.Deliveries == nil {
		return nil, fmt.Errorf("orchestrator requires a delivery store when outputs are set")
	}
	if opts.HoursLookback <= 0 {
		opts.HoursLookback = DefaultHoursLookback
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	return &Orchestrator{opts: opts, log: opts.Logger, now: now}, nil
}

// Run executes one pipeline run end to end and returns the digest.
// Per-unit failures (a ticker, an item's analysis, a channel) degrade
// the run to partial; failures before a digest exists fail the run.
func (o *Orchestrator) Run(ctx context.Context, runOpts RunOptions) (*domain.Digest, error) {
	runID := runOpts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	ctx = runlog.WithRunID(ctx, runID)
	log := runlog.Ctx(ctx, o.log)

	started := o.now()
	run := &domain.PipelineRun{RunID: runID, StartedAt: started, Status: domain.RunRunning}
	if err := o.opts.Runs.Insert(ctx, run); err != nil {
		return nil, fmt.Errorf("create run record: %w", err)
	}
	log.Info().Msg("pipeline run started")

	digest, partial, err := o.execute(ctx, run, runOpts)
	finished := o.now()
	run.FinishedAt = &finished

	switch {
	case err != nil:
		run.Status = domain.RunFailed
		run.ErrorLog = err.Error()
	case partial:
		run.Status = domain.RunPartial
	default:
		run.Status = domain.RunSuccess
	}

	if uerr := o.opts.Runs.Update(ctx, run); uerr != nil {
		log.Error().Err(uerr).Msg("failed to finalize run record")
	}
	o.opts.Metrics.RecordRun(string(run.Status), finished.Sub(started).Seconds(),
		run.Status == domain.RunSuccess, float64(finished.Unix()))
	log.Info().Str("status", string(run.Status)).
		Int("raw_collected", run.Counters.RawCollected).
		Int("after_dedup", run.Counters.AfterDedup).
		Int("analyzed_success", run.Counters.AnalyzedSuccess).
		Int("analyzed_failed", run.Counters.AnalyzedFailed).
		Int("delivered", run.Counters.Delivered).
		Msg("pipeline run finished")

	if err != nil {
		return nil, err
	}
	return digest, nil
}

// execute runs the stages between run creation and finalization.
// The returned bool marks the run partial.
func (o *Orchestrator) execute(ctx context.Context, run *domain.PipelineRun, runOpts RunOptions) (*domain.Digest, bool, error) {
	log := runlog.Ctx(ctx, o.log)
	partial := false

	// Watchlist.
	entries, err := watchlist.Load(ctx, o.opts.WatchlistPath, o.opts.WatchlistStore)
	if err != nil {
		return nil, false, fmt.Errorf("load watchlist: %w", err)
	}
	entries = watchlist.Filter(entries, runOpts.Tickers)
	if len(entries) == 0 {
		return nil, false, fmt.Errorf("no watchlist entries match the requested tickers")
	}

	tickers := make([]string, 0, len(entries))
	thesisByTicker := make(map[string]string, len(entries))
	companyByTicker := make(map[string]string, len(entries))
	for _, e := range entries {
		tickers = append(tickers, e.Ticker)
		thesisByTicker[e.Ticker] = e.Thesis
		companyByTicker[e.Ticker] = e.CompanyName
	}

	// Window.
	hours := runOpts.HoursLookback
	if hours <= 0 {
		hours = o.opts.HoursLookback
	}
	windowEnd := o.now()
	windowStart := windowEnd.Add(-time.Duration(hours) * time.Hour)

	// Collect.
	raw, failedCollectors := o.collect(ctx, tickers, windowStart, windowEnd)
	if len(o.opts.Collectors) > 0 && failedCollectors == len(o.opts.Collectors) {
		return nil, false, fmt.Errorf("all %d collectors failed", failedCollectors)
	}
	if failedCollectors > 0 {
		partial = true
	}
	run.Counters.RawCollected = len(raw)
	o.updateRun(ctx, run)

	// Dedup + normalize.
	processed := o.opts.Processor.Process(raw)
	run.Counters.AfterDedup = len(processed.Items)
	run.Counters.AfterNormalize = len(processed.Items)
	removedByMethod := make(map[string]int)
	for _, cl := range processed.Clusters {
		removedByMethod[string(cl.Method)] += len(cl.MemberURLs)
	}
	o.opts.Metrics.RecordDedup(len(processed.Items), removedByMethod)
	o.recordClusters(ctx, run.RunID, processed.Clusters)
	o.updateRun(ctx, run)

	// Optional per-ticker cap.
	limit := runOpts.LimitPerTicker
	if limit <= 0 {
		limit = o.opts.LimitPerTicker
	}
	kept, items := applyTickerCap(processed.Raw, processed.Items, limit)

	// Analyze and persist, sequential in input order.
	digestItems, analyzedFailed := o.analyzeAndPersist(ctx, run, kept, items, thesisByTicker)
	if analyzedFailed > 0 {
		partial = true
	}

	// Per-ticker summaries.
	digest := &domain.Digest{
		RunID:       run.RunID,
		GeneratedAt: o.now(),
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
		Items:       digestItems,
	}
	if o.opts.Provider != nil {
		digest.TickerSummaries = o.summarize(ctx, digest, tickers, thesisByTicker, companyByTicker)
	}
	digest.Counters = run.Counters

	// Deliver.
	if o.deliver(ctx, run, digest) {
		partial = true
	}
	digest.Counters = run.Counters
	o.updateRun(ctx, run)

	log.Debug().Int("items", len(digest.Items)).Int("summaries", len(digest.TickerSummaries)).Msg("digest assembled")
	return digest, partial, nil
}

// collect fans out across collectors; one collector's failure never
// cancels another.
func (o *Orchestrator) collect(ctx context.Context, tickers []string, since, until time.Time) ([]domain.RawItem, int) {
	log := runlog.Ctx(ctx, o.log)

	var mu sync.Mutex
	var raw []domain.RawItem
	failed := 0

	var wg sync.WaitGroup
	for _, c := range o.opts.Collectors {
		wg.Add(1)
		go func() {
			defer wg.Done()
			batch, err := c.Collect(ctx, tickers, since, until)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Warn().Err(err).Str("source", string(c.Source())).Msg("collector failed")
				o.opts.Metrics.RecordCollectorError(string(c.Source()))
				failed++
				return
			}
			o.opts.Metrics.RecordCollected(string(c.Source()), len(batch))
			raw = append(raw, batch...)
		}()
	}
	wg.Wait()
	return raw, failed
}

// applyTickerCap keeps an item when at least one of its tickers is
// still under the cap, then charges the item to all of its tickers.
func applyTickerCap(raw []domain.RawItem, items []*domain.NewsItem, limit int) ([]domain.RawItem, []*domain.NewsItem) {
	if limit <= 0 {
		return raw, items
	}
	counts := make(map[string]int)
	var keptRaw []domain.RawItem
	var keptItems []*domain.NewsItem
	for i, item := range items {
		keep := false
		for _, t := range item.Tickers {
			if counts[t] < limit {
				keep = true
				break
			}
		}
		if !keep {
			continue
		}
		for _, t := range item.Tickers {
			counts[t]++
		}
		keptRaw = append(keptRaw, raw[i])
		keptItems = append(keptItems, item)
	}
	return keptRaw, keptItems
}

// analyzeAndPersist writes raw and news rows, then analyzes each item
// with the first non-empty thesis over its tickers. Already-persisted
// canonical URLs are skipped for idempotency.
func (o *Orchestrator) analyzeAndPersist(ctx context.Context, run *domain.PipelineRun, raw []domain.RawItem, items []*domain.NewsItem, thesisByTicker map[string]string) ([]domain.DigestItem, int) {
	log := runlog.Ctx(ctx, o.log)

	var digestItems []domain.DigestItem
	for i, item := range items {
		if _, err := o.opts.News.GetByCanonicalURL(ctx, item.CanonicalURL); err == nil {
			log.Debug().Str("url", item.CanonicalURL).Msg("skipping already persisted item")
			continue
		} else if !errors.Is(err, storage.ErrNotFound) {
			log.Warn().Err(err).Str("url", item.CanonicalURL).Msg("existence check failed, skipping item")
			continue
		}

		r := raw[i]
		if err := o.opts.RawItems.Insert(ctx, &r); err != nil {
			log.Warn().Err(err).Str("url", r.URL).Msg("raw item insert failed, skipping item")
			continue
		}
		item.RawItemID = r.ID
		if err := o.opts.News.Insert(ctx, item); err != nil {
			if errors.Is(err, storage.ErrDuplicateKey) {
				log.Debug().Str("url", item.CanonicalURL).Msg("canonical url raced into storage, skipping")
				continue
			}
			log.Warn().Err(err).Str("url", item.CanonicalURL).Msg("news insert failed, skipping item")
			continue
		}

		entry := domain.DigestItem{News: *item}
		if o.opts.Provider != nil {
			thesis := firstThesis(item.Tickers, thesisByTicker)
			analysisStart := o.now()
			result, usage, err := o.opts.Provider.Analyze(ctx, *item, thesis)
			elapsed := o.now().Sub(analysisStart).Seconds()
			if err != nil {
				log.Warn().Err(err).Str("url", item.CanonicalURL).Msg("analysis failed, keeping item unanalyzed")
				o.opts.Metrics.RecordAnalysis(o.opts.Provider.Name(), "failed", elapsed, usage.Tokens, usage.CostUSD)
				run.Counters.AnalyzedFailed++
			} else {
				if err := o.opts.Analyses.Insert(ctx, result); err != nil {
					log.Warn().Err(err).Int64("news_item_id", item.ID).Msg("analysis insert failed")
				}
				o.opts.Metrics.RecordAnalysis(o.opts.Provider.Name(), "success", elapsed, usage.Tokens, usage.CostUSD)
				run.Counters.AnalyzedSuccess++
				entry.Analysis = result
			}
		}
		digestItems = append(digestItems, entry)
	}

	o.updateRun(ctx, run)
	return digestItems, run.Counters.AnalyzedFailed
}

// summarize produces one summary per ticker that has digest items.
func (o *Orchestrator) summarize(ctx context.Context, digest *domain.Digest, tickers []string, thesisByTicker, companyByTicker map[string]string) []domain.TickerSummary {
	log := runlog.Ctx(ctx, o.log)

	var summaries []domain.TickerSummary
	for _, ticker := range tickers {
		items := digest.ItemsForTicker(ticker)
		if len(items) == 0 {
			continue
		}
		analyzed := make([]provider.AnalyzedItem, 0, len(items))
		for _, item := range items {
			analyzed = append(analyzed, provider.AnalyzedItem{News: item.News, Analysis: item.Analysis})
		}
		summary, _, err := o.opts.Provider.TickerSummary(ctx, ticker, companyByTicker[ticker], analyzed, thesisByTicker[ticker])
		if err != nil {
			log.Warn().Err(err).Str("ticker", ticker).Msg("ticker summary failed, skipping")
			continue
		}
		summaries = append(summaries, *summary)
	}
	return summaries
}

// deliver pushes the digest to every channel with an isolated error
// scope, tracking each attempt in the delivery log. Returns true when
// any channel failed.
func (o *Orchestrator) deliver(ctx context.Context, run *domain.PipelineRun, digest *domain.Digest) bool {
	log := runlog.Ctx(ctx, o.log)

	anyFailed := false
	for _, out := range o.opts.Outputs {
		record := &domain.DeliveryLog{
			RunID:     run.RunID,
			Channel:   out.Name(),
			Status:    domain.DeliveryPending,
			CreatedAt: o.now(),
		}
		if err := o.opts.Deliveries.Insert(ctx, record); err != nil {
			log.Error().Err(err).Str("channel", out.Name()).Msg("delivery log create failed, skipping channel")
			anyFailed = true
			continue
		}

		ref, err := out.Deliver(ctx, digest)
		if err != nil {
			log.Warn().Err(err).Str("channel", out.Name()).Msg("delivery failed")
			o.opts.Metrics.RecordDelivery(out.Name(), "failed")
			anyFailed = true
			// Update only a bound log id; the create above succeeded,
			// so the id is always valid here.
			record.Status = domain.DeliveryFailed
			record.ErrorMessage = err.Error()
			if uerr := o.opts.Deliveries.Update(ctx, record); uerr != nil {
				log.Error().Err(uerr).Str("channel", out.Name()).Msg("delivery log update failed")
			}
			continue
		}

		o.opts.Metrics.RecordDelivery(out.Name(), "success")
		run.Counters.Delivered++
		record.Status = domain.DeliverySuccess
		record.ChannelRef = ref
		if uerr := o.opts.Deliveries.Update(ctx, record); uerr != nil {
			log.Error().Err(uerr).Str("channel", out.Name()).Msg("delivery log update failed")
		}
		log.Info().Str("channel", out.Name()).Str("ref", ref).Msg("digest delivered")
	}
	return anyFailed
}

// recordClusters persists dedup clusters; failures are observational
// only and never fail the run.
func (o *Orchestrator) recordClusters(ctx context.Context, runID string, clusters []domain.DedupCluster) {
	if o.opts.Clusters == nil || len(clusters) == 0 {
		return
	}
	rows := make([]*domain.DedupCluster, 0, len(clusters))
	for i := range clusters {
		clusters[i].RunID = runID
		rows = append(rows, &clusters[i])
	}
	if err := o.opts.Clusters.InsertBulk(ctx, rows); err != nil {
		o.log.Warn().Err(err).Str("run_id", runID).Msg("cluster insert failed")
	}
}

// updateRun pushes the current counters; runs are best-effort
// observational state between stages.
func (o *Orchestrator) updateRun(ctx context.Context, run *domain.PipelineRun) {
	if err := o.opts.Runs.Update(ctx, run); err != nil {
		log := runlog.Ctx(ctx, o.log)
		log.Warn().Err(err).Msg("run counter update failed")
	}
}

// firstThesis picks the first non-empty thesis over the item's tickers.
func firstThesis(tickers []string, thesisByTicker map[string]string) string {
	for _, t := range tickers {
		if thesis := thesisByTicker[t]; thesis != "" {
			return thesis
		}
	}
	return ""
}
