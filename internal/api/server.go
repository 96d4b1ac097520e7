// Package api exposes the HTTP control plane: triggering runs,
// inspecting run history and stored news, and editing the watchlist.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"market-news-lab/internal/domain"
	"market-news-lab/internal/observability"
	"market-news-lab/internal/pipeline"
	"market-news-lab/internal/runlog"
	"market-news-lab/internal/storage"
)

// maxListLimit caps page sizes on listing endpoints.
const maxListLimit = 200

// Options wires a Server.
type Options struct {
	Orchestrator *pipeline.Orchestrator
	Runs         storage.RunStore
	News         storage.NewsStore
	Analyses     storage.AnalysisStore
	Watchlist    storage.WatchlistStore
	Logger       zerolog.Logger
}

// Server serves the control plane API.
type Server struct {
	orch      *pipeline.Orchestrator
	runs      storage.RunStore
	news      storage.NewsStore
	analyses  storage.AnalysisStore
	watchlist storage.WatchlistStore
	log       zerolog.Logger
}

// New creates a Server.
func New(opts Options) (*Server, error) {
	if opts.Orchestrator == nil {
		return nil, fmt.Errorf("api server requires an orchestrator")
	}
	if opts.Runs == nil || opts.News == nil || opts.Watchlist == nil {
		return nil, fmt.Errorf("api server requires run, news, and watchlist stores")
	}
	return &Server{
		orch:      opts.Orchestrator,
		runs:      opts.Runs,
		news:      opts.News,
		analyses:  opts.Analyses,
		watchlist: opts.Watchlist,
		log:       opts.Logger,
	}, nil
}

// Router builds the chi router with all routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", observability.Handler())

	r.Route("/jobs", func(r chi.Router) {
		r.Post("/run", s.handleRunJob)
		r.Get("/", s.handleListJobs)
		r.Get("/{runID}", s.handleGetJob)
	})

	r.Route("/news", func(r chi.Router) {
		r.Get("/", s.handleListNews)
		r.Get("/{id}", s.handleGetNews)
		r.Get("/{id}/analysis", s.handleGetAnalysis)
	})

	r.Route("/watchlist", func(r chi.Router) {
		r.Get("/", s.handleListWatchlist)
		r.Post("/", s.handleCreateWatchlist)
		r.Get("/{ticker}", s.handleGetWatchlist)
		r.Put("/{ticker}", s.handleUpdateWatchlist)
		r.Delete("/{ticker}", s.handleDeleteWatchlist)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// runRequest is the POST /jobs/run body. All fields are optional.
type runRequest struct {
	Tickers        []string `json:"tickers"`
	HoursLookback  int      `json:"hours_lookback"`
	LimitPerTicker int      `json:"limit_per_ticker"`
}

type runAccepted struct {
	RunID  string `json:"run_id"`
	Status string `json:"status"`
}

// handleRunJob starts a pipeline run in the background and returns the
// run id immediately. The run outlives the request context. Parameters
// come from the query string or a JSON body; the body wins.
func (s *Server) handleRunJob(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	q := r.URL.Query()
	if raw := q.Get("hours_lookback"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "hours_lookback must be an integer")
			return
		}
		req.HoursLookback = n
	}
	if raw := q.Get("tickers"); raw != "" {
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				req.Tickers = append(req.Tickers, t)
			}
		}
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	if req.HoursLookback < 0 || req.LimitPerTicker < 0 {
		writeError(w, http.StatusBadRequest, "hours_lookback and limit_per_ticker must not be negative")
		return
	}

	runID := uuid.NewString()
	go func() {
		ctx := runlog.WithRunID(context.Background(), runID)
		_, err := s.orch.Run(ctx, pipeline.RunOptions{
			RunID:          runID,
			Tickers:        req.Tickers,
			HoursLookback:  req.HoursLookback,
			LimitPerTicker: req.LimitPerTicker,
		})
		if err != nil {
			s.log.Error().Err(err).Str("run_id", runID).Msg("background run failed")
		}
	}()

	writeJSON(w, http.StatusAccepted, runAccepted{RunID: runID, Status: string(domain.RunRunning)})
}

// runResponse is the JSON shape of one pipeline run.
type runResponse struct {
	RunID      string     `json:"run_id"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Status     string     `json:"status"`
	Counters   struct {
		RawCollected    int `json:"raw_collected"`
		AfterDedup      int `json:"after_dedup"`
		AnalyzedSuccess int `json:"analyzed_success"`
		AnalyzedFailed  int `json:"analyzed_failed"`
		Delivered       int `json:"delivered"`
	} `json:"counters"`
	ErrorLog string `json:"error_log,omitempty"`
}

func toRunResponse(run *domain.PipelineRun) runResponse {
	resp := runResponse{
		RunID:      run.RunID,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
		Status:     string(run.Status),
		ErrorLog:   run.ErrorLog,
	}
	resp.Counters.RawCollected = run.Counters.RawCollected
	resp.Counters.AfterDedup = run.Counters.AfterDedup
	resp.Counters.AnalyzedSuccess = run.Counters.AnalyzedSuccess
	resp.Counters.AnalyzedFailed = run.Counters.AnalyzedFailed
	resp.Counters.Delivered = run.Counters.Delivered
	return resp
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	run, err := s.runs.GetByID(r.Context(), runID)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		s.internalError(w, err, "get run")
		return
	}
	writeJSON(w, http.StatusOK, toRunResponse(run))
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	status := domain.RunStatus(r.URL.Query().Get("status"))
	if status != "" && !status.IsValid() {
		writeError(w, http.StatusBadRequest, "invalid status filter")
		return
	}
	limit, offset, err := pagination(r, 20)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	runs, err := s.runs.List(r.Context(), status, limit, offset)
	if err != nil {
		s.internalError(w, err, "list runs")
		return
	}
	out := make([]runResponse, 0, len(runs))
	for _, run := range runs {
		out = append(out, toRunResponse(run))
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": out})
}

// analysisResponse is the JSON shape of one analysis result.
type analysisResponse struct {
	NewsItemID       int64    `json:"news_item_id"`
	Provider         string   `json:"provider"`
	Model            string   `json:"model"`
	PromptVersion    string   `json:"prompt_version"`
	EventType        string   `json:"event_type"`
	ImpactDirection  string   `json:"impact_direction"`
	ImpactHorizon    string   `json:"impact_horizon"`
	ThesisRelation   string   `json:"thesis_relation"`
	Confidence       string   `json:"confidence"`
	ConfidenceReason string   `json:"confidence_reason,omitempty"`
	Summary          string   `json:"summary"`
	KeyFacts         []string `json:"key_facts,omitempty"`
	WatchNext        string   `json:"watch_next,omitempty"`
	TokensUsed       int      `json:"tokens_used"`
	CostUSD          float64  `json:"cost_usd"`
}

func toAnalysisResponse(a *domain.AnalysisResult) *analysisResponse {
	return &analysisResponse{
		NewsItemID:       a.NewsItemID,
		Provider:         a.Provider,
		Model:            a.Model,
		PromptVersion:    a.PromptVersion,
		EventType:        string(a.EventType),
		ImpactDirection:  string(a.ImpactDirection),
		ImpactHorizon:    string(a.ImpactHorizon),
		ThesisRelation:   string(a.ThesisRelation),
		Confidence:       string(a.Confidence),
		ConfidenceReason: a.ConfidenceReason,
		Summary:          a.Summary,
		KeyFacts:         a.KeyFacts,
		WatchNext:        a.WatchNext,
		TokensUsed:       a.TokensUsed,
		CostUSD:          a.CostUSD,
	}
}

// newsResponse is the JSON shape of one news item, with the analysis
// embedded when one exists.
type newsResponse struct {
	ID           int64             `json:"id"`
	CanonicalURL string            `json:"canonical_url"`
	Title        string            `json:"title"`
	Summary      string            `json:"summary,omitempty"`
	PublishedAt  time.Time         `json:"published_at"`
	Source       string            `json:"source"`
	SourceType   string            `json:"source_type"`
	Credibility  string            `json:"credibility"`
	Tickers      []string          `json:"tickers"`
	Analysis     *analysisResponse `json:"analysis,omitempty"`
}

func (s *Server) toNewsResponse(ctx context.Context, item *domain.NewsItem) newsResponse {
	resp := newsResponse{
		ID:           item.ID,
		CanonicalURL: item.CanonicalURL,
		Title:        item.Title,
		Summary:      item.Summary,
		PublishedAt:  item.PublishedAt,
		Source:       string(item.Source),
		SourceType:   string(item.SourceType),
		Credibility:  string(item.Credibility),
		Tickers:      item.Tickers,
	}
	if s.analyses != nil {
		if a, err := s.analyses.GetByNewsItemID(ctx, item.ID); err == nil {
			resp.Analysis = toAnalysisResponse(a)
		}
	}
	return resp
}

func (s *Server) handleListNews(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, offset, err := pagination(r, 50)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	filter := storage.NewsFilter{
		Ticker:     strings.ToUpper(strings.TrimSpace(q.Get("ticker"))),
		Source:     domain.NewsSource(q.Get("source")),
		SourceType: domain.SourceType(q.Get("source_type")),
		Limit:      limit,
		Offset:     offset,
	}
	for param, dst := range map[string]*time.Time{"since": &filter.Since, "until": &filter.Until} {
		if raw := q.Get(param); raw != "" {
			ts, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, fmt.Sprintf("%s must be RFC 3339", param))
				return
			}
			*dst = ts
		}
	}

	eventType := domain.EventType(q.Get("event_type"))
	if eventType != "" && !eventType.IsValid() {
		writeError(w, http.StatusBadRequest, "invalid event_type filter")
		return
	}
	impact := domain.ImpactDirection(q.Get("impact_direction"))
	if impact != "" && !impact.IsValid() {
		writeError(w, http.StatusBadRequest, "invalid impact_direction filter")
		return
	}

	items, err := s.news.List(r.Context(), filter)
	if err != nil {
		s.internalError(w, err, "list news")
		return
	}
	out := make([]newsResponse, 0, len(items))
	for _, item := range items {
		resp := s.toNewsResponse(r.Context(), item)
		// Analysis filters apply after the embed; unanalyzed items
		// cannot match them.
		if eventType != "" && (resp.Analysis == nil || resp.Analysis.EventType != string(eventType)) {
			continue
		}
		if impact != "" && (resp.Analysis == nil || resp.Analysis.ImpactDirection != string(impact)) {
			continue
		}
		out = append(out, resp)
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out})
}

func (s *Server) handleGetNews(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "id must be an integer")
		return
	}
	item, err := s.news.GetByID(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "news item not found")
		return
	}
	if err != nil {
		s.internalError(w, err, "get news")
		return
	}
	writeJSON(w, http.StatusOK, s.toNewsResponse(r.Context(), item))
}

func (s *Server) handleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "id must be an integer")
		return
	}
	if s.analyses == nil {
		writeError(w, http.StatusNotFound, "analysis not found")
		return
	}
	a, err := s.analyses.GetByNewsItemID(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "analysis not found")
		return
	}
	if err != nil {
		s.internalError(w, err, "get analysis")
		return
	}
	writeJSON(w, http.StatusOK, toAnalysisResponse(a))
}

// watchlistEntry is the JSON shape of one watchlist row, shared by
// requests and responses.
type watchlistEntry struct {
	Ticker      string   `json:"ticker"`
	CompanyName string   `json:"company_name,omitempty"`
	Thesis      string   `json:"thesis,omitempty"`
	RiskTags    []string `json:"risk_tags,omitempty"`
	Priority    int      `json:"priority"`
	Sector      *string  `json:"sector,omitempty"`
}

func toWatchlistEntry(e *domain.WatchlistEntry) watchlistEntry {
	return watchlistEntry{
		Ticker:      e.Ticker,
		CompanyName: e.CompanyName,
		Thesis:      e.Thesis,
		RiskTags:    e.RiskTags,
		Priority:    e.Priority,
		Sector:      e.Sector,
	}
}

func (we watchlistEntry) toDomain() (*domain.WatchlistEntry, error) {
	ticker := strings.ToUpper(strings.TrimSpace(we.Ticker))
	if ticker == "" {
		return nil, fmt.Errorf("ticker is required")
	}
	priority := we.Priority
	if priority == 0 {
		priority = domain.DefaultPriority
	}
	if !domain.ValidPriority(priority) {
		return nil, fmt.Errorf("priority must be between 1 and 5")
	}
	return &domain.WatchlistEntry{
		Ticker:      ticker,
		CompanyName: we.CompanyName,
		Thesis:      we.Thesis,
		RiskTags:    we.RiskTags,
		Priority:    priority,
		Sector:      we.Sector,
	}, nil
}

func (s *Server) handleListWatchlist(w http.ResponseWriter, r *http.Request) {
	entries, err := s.watchlist.List(r.Context())
	if err != nil {
		s.internalError(w, err, "list watchlist")
		return
	}
	out := make([]watchlistEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, toWatchlistEntry(e))
	}
	writeJSON(w, http.StatusOK, map[string]any{"watchlist": out})
}

func (s *Server) handleCreateWatchlist(w http.ResponseWriter, r *http.Request) {
	var req watchlistEntry
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	entry, err := req.toDomain()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	err = s.watchlist.Insert(r.Context(), entry)
	if errors.Is(err, storage.ErrDuplicateKey) {
		writeError(w, http.StatusBadRequest, "ticker already on the watchlist")
		return
	}
	if err != nil {
		s.internalError(w, err, "insert watchlist entry")
		return
	}
	writeJSON(w, http.StatusCreated, toWatchlistEntry(entry))
}

func (s *Server) handleGetWatchlist(w http.ResponseWriter, r *http.Request) {
	ticker := strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "ticker")))
	entry, err := s.watchlist.GetByTicker(r.Context(), ticker)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "ticker not on the watchlist")
		return
	}
	if err != nil {
		s.internalError(w, err, "get watchlist entry")
		return
	}
	writeJSON(w, http.StatusOK, toWatchlistEntry(entry))
}

func (s *Server) handleUpdateWatchlist(w http.ResponseWriter, r *http.Request) {
	var req watchlistEntry
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	// The path ticker wins over any ticker in the body.
	req.Ticker = chi.URLParam(r, "ticker")
	entry, err := req.toDomain()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	err = s.watchlist.Update(r.Context(), entry)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "ticker not on the watchlist")
		return
	}
	if err != nil {
		s.internalError(w, err, "update watchlist entry")
		return
	}
	writeJSON(w, http.StatusOK, toWatchlistEntry(entry))
}

func (s *Server) handleDeleteWatchlist(w http.ResponseWriter, r *http.Request) {
	ticker := strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "ticker")))
	err := s.watchlist.Delete(r.Context(), ticker)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "ticker not on the watchlist")
		return
	}
	if err != nil {
		s.internalError(w, err, "delete watchlist entry")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) internalError(w http.ResponseWriter, err error, action string) {
	s.log.Error().Err(err).Msg(action + " failed")
	writeError(w, http.StatusInternalServerError, "internal error")
}

func pagination(r *http.Request, defaultLimit int) (limit, offset int, err error) {
	q := r.URL.Query()
	limit = defaultLimit
	if raw := q.Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return 0, 0, fmt.Errorf("limit must be a positive integer")
		}
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if raw := q.Get("offset"); raw != "" {
		offset, err = strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return 0, 0, fmt.Errorf("offset must not be negative")
		}
	}
	return limit, offset, nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
