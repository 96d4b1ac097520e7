// Package main serves the control plane API and optionally runs the
// pipeline on a schedule.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"market-news-lab/internal/api"
	"market-news-lab/internal/collector"
	"market-news-lab/internal/config"
	"market-news-lab/internal/dedup"
	"market-news-lab/internal/normalize"
	"market-news-lab/internal/observability"
	"market-news-lab/internal/output"
	"market-news-lab/internal/pipeline"
	"market-news-lab/internal/provider"
	"market-news-lab/internal/ratelimit"
	"market-news-lab/internal/runlog"
	"market-news-lab/internal/storage"
	"market-news-lab/internal/storage/memory"
	"market-news-lab/internal/storage/migrations"
	pgstore "market-news-lab/internal/storage/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	addr := flag.String("addr", cfg.ServerAddr, "HTTP listen address")
	runInterval := flag.Duration("run-interval", 0, "Scheduled pipeline interval (0 disables)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	logger := runlog.New(os.Stderr, true, *debug)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	orch, stores, cleanup, err := build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("startup failed")
	}
	defer cleanup()

	server, err := api.New(api.Options{
		Orchestrator: orch,
		Runs:         stores.runs,
		News:         stores.news,
		Analyses:     stores.analyses,
		Watchlist:    stores.watchlist,
		Logger:       logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("build api server")
	}

	httpServer := &http.Server{
		Addr:              *addr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var wg sync.WaitGroup
	if *runInterval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runScheduler(ctx, orch, *runInterval, logger)
		}()
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("http shutdown failed")
		}
	}()

	logger.Info().Str("addr", *addr).Msg("control plane listening")
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("http server failed")
	}

	wg.Wait()
	logger.Info().Msg("shutdown complete")
}

// runScheduler triggers a full pipeline run every interval. Overlapping
// runs are prevented by waiting for the previous one to finish.
func runScheduler(ctx context.Context, orch *pipeline.Orchestrator, interval time.Duration, logger zerolog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := orch.Run(ctx, pipeline.RunOptions{}); err != nil {
				logger.Error().Err(err).Msg("scheduled run failed")
			}
		}
	}
}

// allStores groups the storage interfaces one backend provides.
type allStores struct {
	watchlist  storage.WatchlistStore
	rawItems   storage.RawItemStore
	news       storage.NewsStore
	analyses   storage.AnalysisStore
	clusters   storage.ClusterStore
	runs       storage.RunStore
	deliveries storage.DeliveryStore
}

// build wires stores, collectors, provider, and outputs from config.
func build(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*pipeline.Orchestrator, *allStores, func(), error) {
	limiter := newLimiter(cfg)
	client := ratelimit.NewClient(limiter)

	stores, cleanup, err := newStores(ctx, cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	collectors, err := newCollectors(cfg, client, logger)
	if err != nil {
		cleanup()
		return nil, nil, nil, err
	}

	prov, err := newProvider(cfg, client, logger)
	if err != nil {
		cleanup()
		return nil, nil, nil, err
	}
	if prov == nil {
		logger.Warn().Str("provider", cfg.AIProvider).Msg("no AI credentials, persisting without analysis")
	}

	outputs, err := newOutputs(cfg, client)
	if err != nil {
		cleanup()
		return nil, nil, nil, err
	}

	orch, err := pipeline.New(pipeline.Options{
		Collectors: collectors,
		Provider:   prov,
		Processor: normalize.NewProcessor(
			dedup.New(dedup.Options{Similarity: dedup.NewSimilarity(cfg.DedupSimilarity), Logger: logger}),
			normalize.NewNormalizer(), logger),
		Outputs:        outputs,
		WatchlistPath:  cfg.WatchlistPath,
		WatchlistStore: stores.watchlist,
		RawItems:       stores.rawItems,
		News:           stores.news,
		Analyses:       stores.analyses,
		Clusters:       stores.clusters,
		Runs:           stores.runs,
		Deliveries:     stores.deliveries,
		HoursLookback:  cfg.HoursLookback,
		LimitPerTicker: cfg.LimitPerTicker,
		Metrics:        observability.NewMetrics(""),
		Logger:         logger,
	})
	if err != nil {
		cleanup()
		return nil, nil, nil, err
	}

	return orch, stores, cleanup, nil
}

// newStores selects postgres when DATABASE_URL is set, in-memory
// otherwise. Postgres gets the schema applied on startup.
func newStores(ctx context.Context, cfg *config.Config) (*allStores, func(), error) {
	if cfg.DatabaseURL == "" {
		return &allStores{
			watchlist:  memory.NewWatchlistStore(),
			rawItems:   memory.NewRawItemStore(),
			news:       memory.NewNewsStore(),
			analyses:   memory.NewAnalysisStore(),
			clusters:   memory.NewClusterStore(),
			runs:       memory.NewRunStore(),
			deliveries: memory.NewDeliveryStore(),
		}, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgres(ctx, pool.Pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("apply migrations: %w", err)
	}

	return &allStores{
		watchlist:  pgstore.NewWatchlistStore(pool),
		rawItems:   pgstore.NewRawItemStore(pool),
		news:       pgstore.NewNewsStore(pool),
		analyses:   pgstore.NewAnalysisStore(pool),
		clusters:   pgstore.NewClusterStore(pool),
		runs:       pgstore.NewRunStore(pool),
		deliveries: pgstore.NewDeliveryStore(pool),
	}, pool.Close, nil
}

// newLimiter applies configured budget overrides on top of the
// registered defaults.
func newLimiter(cfg *config.Config) *ratelimit.Limiter {
	limiter := ratelimit.NewLimiter()
	if cfg.FinnhubRatePerMinute > 0 {
		limiter.Register("finnhub", ratelimit.APIConfig{Rate: cfg.FinnhubRatePerMinute, Per: time.Minute})
	}
	if cfg.SECRatePerSecond > 0 || cfg.SECUserAgent != "" {
		ua := cfg.SECUserAgent
		if ua == "" {
			ua = ratelimit.DefaultUserAgent
		}
		perSecond := cfg.SECRatePerSecond
		if perSecond <= 0 {
			perSecond = 10
		}
		limiter.Register("sec", ratelimit.APIConfig{
			Rate: perSecond, Per: time.Second, UserAgent: ua, RequireUserAgent: true,
		})
	}
	return limiter
}

func newCollectors(cfg *config.Config, client *ratelimit.Client, logger zerolog.Logger) ([]collector.Collector, error) {
	var collectors []collector.Collector

	if cfg.FinnhubEnabled {
		if cfg.FinnhubAPIKey == "" {
			logger.Warn().Msg("finnhub enabled but FINNHUB_API_KEY is empty, skipping")
		} else {
			fh, err := collector.NewFinnhub(collector.FinnhubOptions{
				Client: client, APIKey: cfg.FinnhubAPIKey, Logger: logger,
			})
			if err != nil {
				return nil, err
			}
			collectors = append(collectors, fh)
		}
	}

	if cfg.SECEnabled {
		sec, err := collector.NewSECEdgar(collector.SECEdgarOptions{Client: client, Logger: logger})
		if err != nil {
			return nil, err
		}
		collectors = append(collectors, sec)
	}

	if len(collectors) == 0 {
		return nil, fmt.Errorf("no collectors enabled")
	}
	return collectors, nil
}

// newProvider creates the configured AI provider. Missing credentials
// degrade to no-AI mode instead of failing startup.
func newProvider(cfg *config.Config, client *ratelimit.Client, logger zerolog.Logger) (provider.Provider, error) {
	pcfg := provider.Config{
		Provider:   cfg.AIProvider,
		APIKey:     cfg.ProviderAPIKey(),
		Model:      cfg.AIModel,
		PromptsDir: cfg.PromptsDir,
		Client:     client,
		Logger:     logger,
	}
	if cfg.AIProvider == "ollama" {
		pcfg.BaseURL = cfg.OllamaBaseURL
	}

	prov, err := provider.DefaultRegistry().Create(pcfg)
	if errors.Is(err, provider.ErrProviderConfigMissing) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return prov, nil
}

func newOutputs(cfg *config.Config, client *ratelimit.Client) ([]output.Output, error) {
	reg := output.DefaultRegistry()
	ocfg := output.Config{
		OutputDir:        cfg.OutputDir,
		NotionToken:      cfg.NotionToken,
		NotionParentPage: cfg.NotionParentPage,
		TelegramBotToken: cfg.TelegramBotToken,
		TelegramChatID:   cfg.TelegramChatID,
		SMTPHost:         cfg.SMTPHost,
		SMTPPort:         cfg.SMTPPort,
		SMTPUser:         cfg.SMTPUser,
		SMTPPassword:     cfg.SMTPPassword,
		EmailTo:          cfg.EmailTo,
		Client:           client,
	}

	var outputs []output.Output
	for _, name := range cfg.Outputs {
		out, err := reg.Create(name, ocfg)
		if err != nil {
			return nil, fmt.Errorf("configure %s output: %w", name, err)
		}
		outputs = append(outputs, out)
	}
	return outputs, nil
}
