package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"market-news-lab/internal/collector"
	"market-news-lab/internal/dedup"
	"market-news-lab/internal/domain"
	"market-news-lab/internal/normalize"
	"market-news-lab/internal/pipeline"
	"market-news-lab/internal/storage/memory"
)

type stubCollector struct {
	items []domain.RawItem
}

func (s *stubCollector) Source() domain.NewsSource       { return domain.SourceFinnhub }
func (s *stubCollector) SourceType() domain.SourceType   { return domain.SourceTypeNews }
func (s *stubCollector) Credibility() domain.Credibility { return domain.CredibilityMedium }

func (s *stubCollector) Collect(ctx context.Context, tickers []string, since, until time.Time) ([]domain.RawItem, error) {
	return s.items, nil
}

type testEnv struct {
	server    *Server
	router    http.Handler
	runs      *memory.RunStore
	news      *memory.NewsStore
	analyses  *memory.AnalysisStore
	watchlist *memory.WatchlistStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		runs:      memory.NewRunStore(),
		news:      memory.NewNewsStore(),
		analyses:  memory.NewAnalysisStore(),
		watchlist: memory.NewWatchlistStore(),
	}

	if err := env.watchlist.Insert(context.Background(), &domain.WatchlistEntry{
		Ticker: "NVDA", CompanyName: "NVIDIA", Thesis: "AI compute demand", Priority: 5,
	}); err != nil {
		t.Fatalf("seed watchlist: %v", err)
	}

	coll := &stubCollector{items: []domain.RawItem{{
		Source:      domain.SourceFinnhub,
		SourceType:  domain.SourceTypeNews,
		URL:         "https://news.example.com/nvda/run",
		Title:       "NVDA launches a new accelerator",
		PublishedAt: time.Now().Add(-time.Hour),
		Tickers:     []string{"NVDA"},
	}}}

	orch, err := pipeline.New(pipeline.Options{
		Collectors: []collector.Collector{coll},
		Processor: normalize.NewProcessor(
			dedup.New(dedup.Options{Similarity: dedup.NewSimilarity("jaccard")}),
			normalize.NewNormalizer(), zerolog.Nop()),
		WatchlistStore: env.watchlist,
		RawItems:       memory.NewRawItemStore(),
		News:           env.news,
		Clusters:       memory.NewClusterStore(),
		Runs:           env.runs,
		Logger:         zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("build orchestrator: %v", err)
	}

	env.server, err = New(Options{
		Orchestrator: orch,
		Runs:         env.runs,
		News:         env.news,
		Analyses:     env.analyses,
		Watchlist:    env.watchlist,
		Logger:       zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("build server: %v", err)
	}
	env.router = env.server.Router()
	return env
}

func (env *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("health = %d", rec.Code)
	}
}

func TestRunJob(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/jobs/run", `{"tickers": ["NVDA"]}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("run job = %d: %s", rec.Code, rec.Body.String())
	}
	accepted := decode[runAccepted](t, rec)
	if accepted.RunID == "" {
		t.Fatal("expected a run id")
	}
	if accepted.Status != "running" {
		t.Errorf("status = %q", accepted.Status)
	}

	// The run completes in the background; wait for the terminal state.
	deadline := time.After(5 * time.Second)
	for {
		run, err := env.runs.GetByID(context.Background(), accepted.RunID)
		if err == nil && run.Status.IsTerminal() {
			if run.Status != domain.RunSuccess {
				t.Fatalf("run status = %s, error log %q", run.Status, run.ErrorLog)
			}
			if run.Counters.RawCollected != 1 || run.Counters.AfterDedup != 1 {
				t.Errorf("counters = %+v", run.Counters)
			}
			break
		}
		select {
		case <-deadline:
			t.Fatal("run did not finish in time")
		case <-time.After(10 * time.Millisecond):
		}
	}

	rec = env.do(t, http.MethodGet, "/jobs/"+accepted.RunID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get job = %d", rec.Code)
	}
	run := decode[runResponse](t, rec)
	if run.RunID != accepted.RunID || run.Status != "success" {
		t.Errorf("unexpected run body %+v", run)
	}
	if run.FinishedAt == nil {
		t.Error("expected finished_at on a terminal run")
	}
}

func TestRunJob_QueryParams(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/jobs/run?hours_lookback=48&tickers=NVDA", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("run job = %d: %s", rec.Code, rec.Body.String())
	}
	if decode[runAccepted](t, rec).RunID == "" {
		t.Error("expected a run id")
	}

	if rec := env.do(t, http.MethodPost, "/jobs/run?hours_lookback=soon", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad query lookback = %d", rec.Code)
	}
}

func TestRunJob_BadRequest(t *testing.T) {
	env := newTestEnv(t)

	if rec := env.do(t, http.MethodPost, "/jobs/run", `{"hours_lookback": -1}`); rec.Code != http.StatusBadRequest {
		t.Errorf("negative lookback = %d", rec.Code)
	}
	if rec := env.do(t, http.MethodPost, "/jobs/run", `{not json`); rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body = %d", rec.Code)
	}
}

func TestGetJob_NotFound(t *testing.T) {
	env := newTestEnv(t)
	if rec := env.do(t, http.MethodGet, "/jobs/no-such-run", ""); rec.Code != http.StatusNotFound {
		t.Errorf("missing run = %d", rec.Code)
	}
}

func TestListJobs(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now()
	for i, status := range []domain.RunStatus{domain.RunSuccess, domain.RunFailed, domain.RunSuccess} {
		run := &domain.PipelineRun{
			RunID:     string(rune('a'+i)) + "-run",
			StartedAt: now.Add(time.Duration(i) * time.Minute),
			Status:    status,
		}
		if err := env.runs.Insert(context.Background(), run); err != nil {
			t.Fatalf("seed run: %v", err)
		}
	}

	rec := env.do(t, http.MethodGet, "/jobs/?status=success", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list jobs = %d", rec.Code)
	}
	body := decode[map[string][]runResponse](t, rec)
	if len(body["runs"]) != 2 {
		t.Errorf("expected 2 success runs, got %d", len(body["runs"]))
	}

	rec = env.do(t, http.MethodGet, "/jobs/?limit=1", "")
	body = decode[map[string][]runResponse](t, rec)
	if len(body["runs"]) != 1 {
		t.Errorf("limit=1 returned %d runs", len(body["runs"]))
	}

	if rec := env.do(t, http.MethodGet, "/jobs/?status=bogus", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad status filter = %d", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/jobs/?limit=-2", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit = %d", rec.Code)
	}
}

func seedNews(t *testing.T, env *testEnv, withAnalysis bool) *domain.NewsItem {
	t.Helper()
	item := &domain.NewsItem{
		RawItemID:    1,
		CanonicalURL: "https://news.example.com/nvda/1",
		Title:        "NVDA beats estimates",
		Summary:      "Record data center revenue",
		PublishedAt:  time.Now().Add(-2 * time.Hour),
		Source:       domain.SourceFinnhub,
		SourceType:   domain.SourceTypeNews,
		Credibility:  domain.CredibilityMedium,
		Tickers:      []string{"NVDA"},
	}
	if err := env.news.Insert(context.Background(), item); err != nil {
		t.Fatalf("seed news: %v", err)
	}
	if withAnalysis {
		err := env.analyses.Insert(context.Background(), &domain.AnalysisResult{
			NewsItemID:      item.ID,
			Provider:        "gemini",
			Model:           "gemini-2.0-flash",
			PromptVersion:   "v1",
			EventType:       domain.EventEarnings,
			ImpactDirection: domain.ImpactBullish,
			ImpactHorizon:   domain.HorizonShort,
			ThesisRelation:  domain.ThesisSupports,
			Confidence:      domain.ConfidenceHigh,
			Summary:         "Strong quarter",
		})
		if err != nil {
			t.Fatalf("seed analysis: %v", err)
		}
	}
	return item
}

func TestListNews(t *testing.T) {
	env := newTestEnv(t)
	seedNews(t, env, true)

	rec := env.do(t, http.MethodGet, "/news/?ticker=nvda", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list news = %d", rec.Code)
	}
	body := decode[map[string][]newsResponse](t, rec)
	items := body["items"]
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	if items[0].Analysis == nil || items[0].Analysis.ImpactDirection != "bullish" {
		t.Errorf("expected the embedded analysis, got %+v", items[0].Analysis)
	}

	rec = env.do(t, http.MethodGet, "/news/?ticker=RKLB", "")
	body = decode[map[string][]newsResponse](t, rec)
	if len(body["items"]) != 0 {
		t.Errorf("unrelated ticker returned %d items", len(body["items"]))
	}

	if rec := env.do(t, http.MethodGet, "/news/?since=yesterday", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad since = %d", rec.Code)
	}
}

func TestListNews_AnalysisFilters(t *testing.T) {
	env := newTestEnv(t)
	seedNews(t, env, true)

	rec := env.do(t, http.MethodGet, "/news/?event_type=earnings&impact_direction=bullish", "")
	body := decode[map[string][]newsResponse](t, rec)
	if len(body["items"]) != 1 {
		t.Errorf("matching filters returned %d items", len(body["items"]))
	}

	rec = env.do(t, http.MethodGet, "/news/?impact_direction=bearish", "")
	body = decode[map[string][]newsResponse](t, rec)
	if len(body["items"]) != 0 {
		t.Errorf("non-matching direction returned %d items", len(body["items"]))
	}

	if rec := env.do(t, http.MethodGet, "/news/?event_type=ipo", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown event_type = %d", rec.Code)
	}
}

func TestGetNews(t *testing.T) {
	env := newTestEnv(t)
	item := seedNews(t, env, false)

	rec := env.do(t, http.MethodGet, "/news/1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get news = %d", rec.Code)
	}
	got := decode[newsResponse](t, rec)
	if got.ID != item.ID || got.Analysis != nil {
		t.Errorf("unexpected body %+v", got)
	}

	if rec := env.do(t, http.MethodGet, "/news/999", ""); rec.Code != http.StatusNotFound {
		t.Errorf("missing item = %d", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/news/abc", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("non-numeric id = %d", rec.Code)
	}
}

func TestGetAnalysis(t *testing.T) {
	env := newTestEnv(t)
	item := seedNews(t, env, true)

	rec := env.do(t, http.MethodGet, "/news/1/analysis", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get analysis = %d", rec.Code)
	}
	got := decode[analysisResponse](t, rec)
	if got.NewsItemID != item.ID || got.EventType != "earnings" {
		t.Errorf("unexpected body %+v", got)
	}

	if rec := env.do(t, http.MethodGet, "/news/999/analysis", ""); rec.Code != http.StatusNotFound {
		t.Errorf("missing analysis = %d", rec.Code)
	}
}

func TestWatchlistCRUD(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/watchlist/", `{"ticker": "rklb", "company_name": "Rocket Lab", "thesis": "Launch cadence"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create = %d: %s", rec.Code, rec.Body.String())
	}
	created := decode[watchlistEntry](t, rec)
	if created.Ticker != "RKLB" || created.Priority != domain.DefaultPriority {
		t.Errorf("unexpected created entry %+v", created)
	}

	if rec := env.do(t, http.MethodPost, "/watchlist/", `{"ticker": "RKLB"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("duplicate = %d", rec.Code)
	}
	if rec := env.do(t, http.MethodPost, "/watchlist/", `{"company_name": "No Ticker Inc"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("missing ticker = %d", rec.Code)
	}
	if rec := env.do(t, http.MethodPost, "/watchlist/", `{"ticker": "AMD", "priority": 9}`); rec.Code != http.StatusBadRequest {
		t.Errorf("bad priority = %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/watchlist/", "")
	body := decode[map[string][]watchlistEntry](t, rec)
	if len(body["watchlist"]) != 2 {
		t.Errorf("expected NVDA and RKLB, got %+v", body["watchlist"])
	}

	rec = env.do(t, http.MethodPut, "/watchlist/RKLB", `{"thesis": "Neutron timeline", "priority": 4}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("update = %d: %s", rec.Code, rec.Body.String())
	}
	updated := decode[watchlistEntry](t, rec)
	if updated.Thesis != "Neutron timeline" || updated.Priority != 4 {
		t.Errorf("unexpected updated entry %+v", updated)
	}

	if rec := env.do(t, http.MethodPut, "/watchlist/TSLA", `{"priority": 2}`); rec.Code != http.StatusNotFound {
		t.Errorf("update missing = %d", rec.Code)
	}

	if rec := env.do(t, http.MethodDelete, "/watchlist/RKLB", ""); rec.Code != http.StatusNoContent {
		t.Errorf("delete = %d", rec.Code)
	}
	if rec := env.do(t, http.MethodDelete, "/watchlist/RKLB", ""); rec.Code != http.StatusNotFound {
		t.Errorf("delete missing = %d", rec.Code)
	}
}

func TestGetWatchlistEntry(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/watchlist/NVDA", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get = %d: %s", rec.Code, rec.Body.String())
	}
	entry := decode[watchlistEntry](t, rec)
	if entry.Ticker != "NVDA" || entry.CompanyName != "NVIDIA" || entry.Priority != 5 {
		t.Errorf("unexpected entry %+v", entry)
	}

	// Path tickers are case-insensitive.
	if rec := env.do(t, http.MethodGet, "/watchlist/nvda", ""); rec.Code != http.StatusOK {
		t.Errorf("lowercase get = %d", rec.Code)
	}

	if rec := env.do(t, http.MethodGet, "/watchlist/ZZZZ", ""); rec.Code != http.StatusNotFound {
		t.Errorf("missing ticker get = %d", rec.Code)
	}
}
