package httpadapter

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/contract-analyzer/internal/adapters/export"
	"github.com/kirillkom/contract-analyzer/internal/config"
	"github.com/kirillkom/contract-analyzer/internal/core/domain"
	"github.com/kirillkom/contract-analyzer/internal/core/ports"
	"github.com/kirillkom/contract-analyzer/internal/core/usecase"
	"github.com/kirillkom/contract-analyzer/internal/observability/metrics"
)

const (
	sessionIDHeader   = "X-Session-Id"
	defaultHeartbeat  = 15 * time.Second
	maxMultipartBytes = 32 << 20
)

type Router struct {
	cfg       config.Config
	ingestor  ports.ContractIngestor
	reader    ports.AnalysisReader
	runs      *usecase.RunCoordinator
	metrics   *metrics.HTTPServerMetrics
	limiter   *clientLimiter
	heartbeat time.Duration
}

func NewRouter(
	cfg config.Config,
	ingestor ports.ContractIngestor,
	reader ports.AnalysisReader,
	runs *usecase.RunCoordinator,
	httpMetrics *metrics.HTTPServerMetrics,
) *Router {
	var limiter *clientLimiter
	if cfg.APIRateLimitRPS > 0 {
		limiter = newClientLimiter(cfg.APIRateLimitRPS, cfg.APIRateLimitBurst)
	}
	return &Router{
		cfg:       cfg,
		ingestor:  ingestor,
		reader:    reader,
		runs:      runs,
		metrics:   httpMetrics,
		limiter:   limiter,
		heartbeat: defaultHeartbeat,
	}
}

func (rt *Router) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("POST /v1/contracts", rt.uploadContract)
	api.HandleFunc("GET /v1/contracts/{id}/languages", rt.cachedLanguages)
	api.HandleFunc("GET /v1/contracts/{id}/analysis", rt.cachedAnalysis)
	api.HandleFunc("POST /v1/analyses", rt.analyze)
	api.HandleFunc("DELETE /v1/sessions/{id}/run", rt.cancelSessionRun)

	var onLimited func(string)
	if rt.metrics != nil {
		onLimited = func(path string) { rt.metrics.RecordRateLimited("api", path) }
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}
	mux.Handle("/v1/", rateLimitMiddleware(rt.limiter, onLimited, api))

	var handler http.Handler = mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware("api", handler)
	}
	return requestIDMiddleware(accessLogMiddleware(handler))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) uploadContract(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxMultipartBytes)
	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "upload contract", errors.New("multipart field 'file' is required")))
		return
	}
	defer file.Close()

	info, err := rt.ingestor.Upload(
		r.Context(),
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		file,
	)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

func (rt *Router) cachedLanguages(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	langs, err := rt.reader.Languages(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if langs == nil {
		langs = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"contract_id": id, "languages": langs})
}

func (rt *Router) cachedAnalysis(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	lang := domain.NormalizeLanguage(r.URL.Query().Get("lang"))
	if lang == "" {
		writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "read analysis", errors.New("query parameter 'lang' is required")))
		return
	}

	analysis, err := rt.reader.Resolve(r.Context(), id, lang)
	if err != nil {
		writeError(w, r, err)
		return
	}

	report := export.NewReport(id, lang, analysis)
	switch format := strings.ToLower(r.URL.Query().Get("format")); format {
	case "", "json":
		writeJSON(w, http.StatusOK, analysis)
	case "yaml":
		w.Header().Set("Content-Type", "application/yaml")
		w.WriteHeader(http.StatusOK)
		_ = export.WriteYAML(w, report)
	case "xlsx":
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="analysis-`+lang+`.xlsx"`)
		w.WriteHeader(http.StatusOK)
		_ = export.WriteXLSX(w, report)
	default:
		writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "read analysis", errors.New("format must be json, yaml or xlsx")))
	}
}

type analyzeRequest struct {
	ContractID        string            `json:"contract_id"`
	ContractLanguage  string            `json:"contract_language"`
	PreferredLanguage string            `json:"preferred_language"`
	OutputLanguage    string            `json:"output_language"`
	UserRole          string            `json:"user_role"`
	Parties           *domain.PartyPair `json:"parties"`
}

type runSummary struct {
	domain.RunFinished
	Plan domain.LanguagePlan `json:"plan"`
}

// analyze streams one run as Server-Sent Events. Requests sharing an
// X-Session-Id supersede each other.
func (rt *Router) analyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "analyze", errors.New("invalid json")))
		return
	}
	if strings.TrimSpace(req.ContractID) == "" {
		writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "analyze", errors.New("contract_id is required")))
		return
	}

	contract, err := rt.ingestor.Load(r.Context(), req.ContractID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	sse, err := newSSEWriter(w)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.StreamOpened()
		defer rt.metrics.StreamClosed()
	}

	key := strings.TrimSpace(r.Header.Get(sessionIDHeader))
	if key == "" {
		key = "request:" + requestIDFromContext(r.Context())
	}
	actx := domain.AnalysisContext{
		ContractLanguage:  req.ContractLanguage,
		PreferredLanguage: req.PreferredLanguage,
		OutputLanguage:    req.OutputLanguage,
		UserRole:          req.UserRole,
		Parties:           req.Parties,
	}

	run, err := rt.runs.Start(r.Context(), key, contract, actx, func(ev domain.SectionEvent) {
		_ = sse.send("section", ev)
	})
	if err != nil {
		_ = sse.send("error", domain.NewRunFinished("", domain.RunOutcomeFailed, err))
		return
	}

	ticker := time.NewTicker(rt.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-run.Done():
			_ = sse.send("done", runSummary{
				RunFinished: domain.NewRunFinished(run.RunID(), run.Outcome(), run.Err()),
				Plan:        run.Plan(),
			})
			return
		case <-ticker.C:
			sse.heartbeat()
		case <-r.Context().Done():
			run.Cancel()
			<-run.Done()
			return
		}
	}
}

func (rt *Router) cancelSessionRun(w http.ResponseWriter, r *http.Request) {
	rt.runs.Cancel(r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
