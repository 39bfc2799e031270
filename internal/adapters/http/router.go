package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/knowledge-retrieval-service/internal/core/domain"
	"github.com/kirillkom/knowledge-retrieval-service/internal/core/ports"
	"github.com/kirillkom/knowledge-retrieval-service/internal/observability/metrics"
)

// Router wires the intelligent retrieval endpoints. All three sit under
// /api/v1/intelligent and speak the {success, data, message} envelope.
type Router struct {
	searcher    ports.IntelligentSearcher
	recommender ports.StrategyRecommender
	health      ports.HealthReporter

	keyStore ports.APIKeyStore
	limiters *keyLimiters

	serviceName string
	metrics     *metrics.HTTPServerMetrics
}

func NewRouter(
	searcher ports.IntelligentSearcher,
	recommender ports.StrategyRecommender,
	health ports.HealthReporter,
	keyStore ports.APIKeyStore,
	serviceName string,
	m *metrics.HTTPServerMetrics,
) *Router {
	return &Router{
		searcher:    searcher,
		recommender: recommender,
		health:      health,
		keyStore:    keyStore,
		limiters:    newKeyLimiters(),
		serviceName: serviceName,
		metrics:     m,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/api/v1/intelligent/search", rt.search)
	mux.HandleFunc("/api/v1/intelligent/recommend-strategy", rt.recommendStrategy)
	mux.HandleFunc("/api/v1/intelligent/health", rt.serviceHealth)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	handler = rt.authMiddleware(handler)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(rt.serviceName, handler)
	}
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type userContextRequest struct {
	UserID              string                    `json:"user_id"`
	ConversationHistory []domain.ConversationTurn `json:"conversation_history"`
}

type searchRequest struct {
	Query               string              `json:"query"`
	KnowledgeBaseIDs    []string            `json:"kb_ids"`
	TopK                int                 `json:"top_k"`
	SimilarityThreshold float64             `json:"similarity_threshold"`
	TimeoutMs           int                 `json:"timeout_ms"`
	ForceStrategy       string              `json:"force_strategy"`
	EnableLearning      bool                `json:"enable_learning"`
	Context             *userContextRequest `json:"context"`
	Filter              *domain.FilterSpec  `json:"filter"`
}

type searchResponseData struct {
	Results            []domain.CandidateChunk   `json:"results"`
	StrategyUsed       domain.RetrievalStrategy  `json:"strategy_used"`
	IntentAnalysis     domain.IntentInfo         `json:"intent_analysis"`
	PerformanceMetrics domain.PerformanceMetrics `json:"performance_metrics"`
	Total              int                       `json:"total"`
	QueryTimeMs        float64                   `json:"query_time"`
}

func (rt *Router) search(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	kbIDs, err := rt.authorizeKBs(r, req.KnowledgeBaseIDs)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	query := domain.Query{
		Text:                req.Query,
		KnowledgeBaseIDs:    kbIDs,
		ForceStrategy:       domain.ServiceType(req.ForceStrategy),
		EnableLearning:      req.EnableLearning,
		TopK:                req.TopK,
		SimilarityThreshold: req.SimilarityThreshold,
		Filter:              req.Filter,
	}
	if req.TimeoutMs > 0 {
		query.Timeout = time.Duration(req.TimeoutMs) * time.Millisecond
	}
	if req.Context != nil {
		query.Context = &domain.UserContext{
			UserID:              req.Context.UserID,
			ConversationHistory: req.Context.ConversationHistory,
		}
	}

	result, err := rt.searcher.Search(r.Context(), query)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	rt.recordSearchMetrics(result)

	writeEnvelope(w, http.StatusOK, searchResponseData{
		Results:            result.Chunks,
		StrategyUsed:       result.Strategy,
		IntentAnalysis:     result.Intent,
		PerformanceMetrics: result.Metrics,
		Total:              len(result.Chunks),
		QueryTimeMs:        result.Metrics.TotalMillis,
	}, "")
}

type recommendRequest struct {
	Query   string              `json:"query"`
	Context *userContextRequest `json:"context"`
}

func (rt *Router) recommendStrategy(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req recommendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	var userCtx *domain.UserContext
	if req.Context != nil {
		userCtx = &domain.UserContext{
			UserID:              req.Context.UserID,
			ConversationHistory: req.Context.ConversationHistory,
		}
	}

	recommendations, err := rt.recommender.RecommendStrategies(r.Context(), req.Query, userCtx)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeEnvelope(w, http.StatusOK, map[string]any{
		"recommendations": recommendations,
	}, "")
}

func (rt *Router) serviceHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeEnvelope(w, http.StatusOK, rt.health.Health(r.Context()), "")
}

// authorizeKBs intersects the requested knowledge bases with the caller's
// allow-list. Without an auth layer the request passes through untouched.
func (rt *Router) authorizeKBs(r *http.Request, requested []string) ([]string, error) {
	perms := permissionsFromContext(r.Context())
	if perms == nil {
		return requested, nil
	}

	allowed := make(map[string]struct{}, len(perms.AllowedKBIDs))
	for _, id := range perms.AllowedKBIDs {
		allowed[id] = struct{}{}
	}
	for _, id := range requested {
		if _, ok := allowed[id]; !ok {
			return nil, domain.WrapError(domain.ErrKBAccessDenied, "authorize knowledge bases", errKBNotAllowed(id))
		}
	}
	return perms.AllowedKBSet(requested), nil
}

type errKBNotAllowed string

func (e errKBNotAllowed) Error() string {
	return "knowledge base not allowed: " + string(e)
}

func (rt *Router) recordSearchMetrics(result *domain.RetrievalResult) {
	if rt.metrics == nil {
		return
	}
	rt.metrics.RecordSearch(
		rt.serviceName,
		string(result.Strategy.ServiceType),
		string(result.Intent.QueryType),
		len(result.Chunks),
		result.Metrics.TotalElapsed,
	)
	for _, stage := range result.Metrics.Stages {
		rt.metrics.RecordStage(rt.serviceName, stage.Stage, stage.Elapsed)
	}
	if result.Metrics.DegradedPath != "" {
		rt.metrics.RecordDegraded(rt.serviceName, result.Metrics.DegradedPath)
	} else if result.Metrics.Degraded {
		rt.metrics.RecordDegraded(rt.serviceName, "deadline")
	}
}

type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

func writeEnvelope(w http.ResponseWriter, status int, data any, message string) {
	writeJSON(w, status, envelope{Success: true, Data: data, Message: message})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{Success: false, Message: message})
}

func writeDomainError(w http.ResponseWriter, err error) {
	writeError(w, mapErrorToHTTPStatus(err), err.Error())
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
