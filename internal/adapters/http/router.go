package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/research-search/internal/config"
	"github.com/kirillkom/research-search/internal/core/domain"
	"github.com/kirillkom/research-search/internal/core/ports"
	"github.com/kirillkom/research-search/internal/observability/metrics"
)

const (
	serviceName     = "api"
	maxRequestBytes = 1 << 20
	readyTimeout    = 2 * time.Second
)

// ReadinessChecker reports whether the backing store accepts connections.
// *sql.DB satisfies it.
type ReadinessChecker interface {
	PingContext(ctx context.Context) error
}

type Router struct {
	cfg      config.Config
	search   ports.SearchService
	similar  ports.SimilarService
	feedback ports.FeedbackService
	ready    ReadinessChecker
	metrics  *metrics.HTTPServerMetrics
}

func NewRouter(
	cfg config.Config,
	search ports.SearchService,
	similar ports.SimilarService,
	feedback ports.FeedbackService,
	ready ReadinessChecker,
	httpMetrics *metrics.HTTPServerMetrics,
) *Router {
	return &Router{
		cfg:      cfg,
		search:   search,
		similar:  similar,
		feedback: feedback,
		ready:    ready,
		metrics:  httpMetrics,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("GET /readyz", rt.readyz)
	mux.HandleFunc("GET /openapi.json", rt.openAPI)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}

	api := http.NewServeMux()
	api.HandleFunc("POST /search", rt.handleSearch)
	api.HandleFunc("POST /similar", rt.handleSimilar)
	api.HandleFunc("POST /feedback", rt.handleFeedback)
	api.HandleFunc("GET /feedback/{id}", rt.getFeedback)

	var guarded http.Handler = api
	guarded = backpressureMiddleware(guarded, rt.cfg.APIMaxInFlight, rt.cfg.APIBackpressureWait)
	guarded = rateLimitMiddleware(guarded, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)

	mux.Handle("/search", guarded)
	mux.Handle("/similar", guarded)
	mux.Handle("/feedback", guarded)
	mux.Handle("/feedback/", guarded)
	// Legacy clients call the same routes under /api.
	mux.Handle("/api/", http.StripPrefix("/api", guarded))

	var handler http.Handler = mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) readyz(w http.ResponseWriter, r *http.Request) {
	if rt.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()
		if err := rt.ready.PingContext(ctx); err != nil {
			writeError(w, r, "readyz", domain.WrapError(domain.ErrTemporary, "readyz", err))
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (rt *Router) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req domain.SearchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, "search", err)
		return
	}
	req.UserID = r.Header.Get(userIDHeader)

	start := time.Now()
	resp, err := rt.search.Search(r.Context(), req)
	if err != nil {
		rt.recordSearch("/search", string(req.Mode), 0, start)
		writeError(w, r, "search", err)
		return
	}
	rt.recordSearch("/search", string(resp.Mode), len(resp.Results), start)
	writeJSON(w, http.StatusOK, resp)
}

func (rt *Router) handleSimilar(w http.ResponseWriter, r *http.Request) {
	var req domain.SimilarRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, "similar", err)
		return
	}

	start := time.Now()
	resp, err := rt.similar.Similar(r.Context(), req)
	if err != nil {
		rt.recordSearch("/similar", string(domain.ModeDenseOnly), 0, start)
		writeError(w, r, "similar", err)
		return
	}
	rt.recordSearch("/similar", string(domain.ModeDenseOnly), len(resp.Results), start)
	writeJSON(w, http.StatusOK, resp)
}

type feedbackRequest struct {
	UserID         string                     `json:"user_id"`
	FeedbackID     flexibleString             `json:"feedback_id"`
	GlobalFeedback domain.OptionalLabel       `json:"global_feedback"`
	GlobalReason   domain.OptionalString      `json:"global_reason"`
	Item           *domain.ItemFeedbackUpdate `json:"item"`
	Query          string                     `json:"query"`
	Filters        domain.FilterSpec          `json:"filters"`
	Results        []domain.ResultSnapshot    `json:"results"`
}

func (req feedbackRequest) toUpdate(headerUser string) domain.FeedbackUpdate {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		userID = strings.TrimSpace(headerUser)
	}
	return domain.FeedbackUpdate{
		FeedbackID:     strings.TrimSpace(string(req.FeedbackID)),
		UserID:         userID,
		GlobalFeedback: req.GlobalFeedback,
		GlobalReason:   req.GlobalReason,
		Item:           req.Item,
		Query:          req.Query,
		Filters:        req.Filters,
		Results:        req.Results,
	}
}

func (rt *Router) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, "feedback", err)
		return
	}

	result, err := rt.feedback.Apply(r.Context(), req.toUpdate(r.Header.Get(userIDHeader)))
	if rt.metrics != nil {
		rt.metrics.RecordFeedback(serviceName, err)
	}
	if err != nil {
		writeError(w, r, "feedback", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) getFeedback(w http.ResponseWriter, r *http.Request) {
	record, err := rt.feedback.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, "get feedback", err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (rt *Router) recordSearch(endpoint, mode string, count int, start time.Time) {
	if rt.metrics == nil {
		return
	}
	rt.metrics.RecordSearch(serviceName, endpoint, mode, count, time.Since(start))
}

// flexibleString accepts a JSON string or number.
type flexibleString string

func (s *flexibleString) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		*s = ""
		return nil
	}
	if unquoted, err := strconv.Unquote(raw); err == nil {
		*s = flexibleString(unquoted)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("feedback_id must be a string or number")
	}
	*s = flexibleString(n.String())
	return nil
}

func decodeJSON(r *http.Request, out any) error {
	body := io.LimitReader(r.Body, maxRequestBytes)
	if err := json.NewDecoder(body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.WrapError(domain.ErrInvalidInput, "decode request", domain.NewValidationError("body", "request body is required"))
		}
		return domain.WrapError(domain.ErrInvalidInput, "decode request", domain.NewValidationError("body", "invalid json: "+err.Error()))
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
