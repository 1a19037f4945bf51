// Package chi exposes the retrieval engine over HTTP.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/propdex/internal/domain"
	"github.com/kailas-cloud/propdex/internal/domain/filter"
	"github.com/kailas-cloud/propdex/internal/engine"
	"github.com/kailas-cloud/propdex/internal/metrics"
	"github.com/kailas-cloud/propdex/internal/rerank"
	"github.com/kailas-cloud/propdex/internal/retriever"
)

const maxIndexBatch = 1000

// Error response codes.
const (
	codeBadRequest       = "bad_request"
	codeValidationFailed = "validation_failed"
	codeIndexInProgress  = "index_in_progress"
	codeProviderError    = "embedding_provider_error"
	codeInternalError    = "internal_error"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// HealthChecker reports dependency health, keyed by component name.
type HealthChecker interface {
	Check(ctx context.Context) map[string]error
}

// SearchDefaults carries the operator-configured retrieval defaults applied
// when a search request leaves them unset.
type SearchDefaults struct {
	K               int
	FetchMultiplier int
	MMRLambda       float64
}

func (d *SearchDefaults) applyDefaults() {
	if d.K <= 0 {
		d.K = retriever.DefaultK
	}
	if d.FetchMultiplier <= 0 {
		d.FetchMultiplier = 4
	}
	if d.MMRLambda <= 0 {
		d.MMRLambda = retriever.DefaultLambda
	}
}

// Server exposes the engine over JSON HTTP handlers.
type Server struct {
	engine        *engine.Engine
	health        HealthChecker
	defaults      SearchDefaults
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. health may be nil.
func NewServer(e *engine.Engine, health HealthChecker, defaults SearchDefaults, logger *zap.Logger) *Server {
	defaults.applyDefaults()
	s := &Server{
		engine:   e,
		health:   health,
		defaults: defaults,
		logger:   logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidK, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrInvalidRadius, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrInvalidCoordinates, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrInvalidDocument, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrInvalidStrategy, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrInvalidSortField, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrInvalidLambda, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrIndexInProgress, http.StatusConflict, codeIndexInProgress),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, codeProviderError),
	}
	return s
}

// Register mounts all API routes on the router.
func (s *Server) Register(r chi.Router) {
	r.Route("/v1", func(r chi.Router) {
		r.Post("/index", s.IndexProperties)
		r.Post("/index/async", s.IndexPropertiesAsync)
		r.Post("/search", s.SearchProperties)
		r.Get("/stats", s.GetStats)
		r.Delete("/documents", s.DeleteDocuments)
		r.Delete("/collection", s.ClearCollection)
	})
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

// IndexProperties handles POST /v1/index.
func (s *Server) IndexProperties(w http.ResponseWriter, r *http.Request) {
	props, ok := s.decodeIndexRequest(w, r)
	if !ok {
		return
	}

	result, err := s.engine.Index(r.Context(), props)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	metrics.IndexedDocumentsTotal.WithLabelValues("indexed").Add(float64(result.Indexed))
	metrics.IndexedDocumentsTotal.WithLabelValues("skipped").Add(float64(result.Skipped))

	writeJSON(w, http.StatusOK, indexResponseFrom(result))
}

// IndexPropertiesAsync handles POST /v1/index/async. Returns 202 immediately;
// a second call while a run is in flight returns 409.
func (s *Server) IndexPropertiesAsync(w http.ResponseWriter, r *http.Request) {
	props, ok := s.decodeIndexRequest(w, r)
	if !ok {
		return
	}

	// The request context dies with the response; indexing carries on.
	if err := s.engine.IndexAsync(context.WithoutCancel(r.Context()), props); err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "indexing"})
}

// SearchProperties handles POST /v1/search.
func (s *Server) SearchProperties(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "query is required")
		return
	}

	strategy, err := rerank.ParseStrategy(req.Strategy)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	crit, err := req.criteria()
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
		return
	}

	start := time.Now()
	results, err := s.doSearch(r, req, strategy, crit)
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues(string(strategy), "error").Inc()
		s.handleDomainError(w, err)
		return
	}

	metrics.SearchRequestsTotal.WithLabelValues(string(strategy), "success").Inc()
	metrics.SearchDuration.WithLabelValues(string(strategy)).Observe(time.Since(start).Seconds())
	metrics.SearchResultsReturned.WithLabelValues(string(strategy)).Observe(float64(len(results)))

	items := make([]searchResultItem, len(results))
	for i := range results {
		items[i] = searchResultFrom(&results[i])
	}
	writeJSON(w, http.StatusOK, searchResponse{Items: items, Total: len(items)})
}

// doSearch builds a retriever from the request, falling back to the
// operator-configured defaults for k, candidate pool size, and MMR lambda.
func (s *Server) doSearch(
	r *http.Request,
	req searchRequest,
	strategy rerank.Strategy,
	crit filter.Criteria,
) ([]domain.ScoredDocument, error) {
	k := req.k(s.defaults.K)
	opts := retriever.Options{
		Mode:     retriever.Mode(req.Mode),
		K:        k,
		FetchK:   k * s.defaults.FetchMultiplier,
		Lambda:   req.Lambda,
		Criteria: crit,
		Strategy: strategy,
	}
	if opts.Lambda == nil {
		lambda := s.defaults.MMRLambda
		opts.Lambda = &lambda
	}
	if req.Sort != nil {
		spec, err := req.Sort.spec()
		if err != nil {
			return nil, err
		}
		opts.Sort = &spec
	}

	ret, err := s.engine.AsRetriever(opts)
	if err != nil {
		return nil, err
	}
	return ret.Retrieve(r.Context(), req.Query)
}

// GetStats handles GET /v1/stats.
func (s *Server) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.engine.Stats(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{
		Stats:    stats,
		Indexing: s.engine.Indexing(),
	})
}

// DeleteDocuments handles DELETE /v1/documents?source_url=...
func (s *Server) DeleteDocuments(w http.ResponseWriter, r *http.Request) {
	sourceURL := r.URL.Query().Get("source_url")
	if sourceURL == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "source_url query parameter is required")
		return
	}

	removed, err := s.engine.DeleteBySource(r.Context(), sourceURL)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

// ClearCollection handles DELETE /v1/collection.
func (s *Server) ClearCollection(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Clear(r.Context()); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{}
	healthy := true
	if s.health != nil {
		for name, err := range s.health.Check(r.Context()) {
			if err != nil {
				checks[name] = "unhealthy"
				healthy = false
				continue
			}
			checks[name] = "healthy"
		}
	}

	status, httpStatus := "healthy", http.StatusOK
	if !healthy {
		status, httpStatus = "unhealthy", http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, map[string]any{
		"status": status,
		"checks": checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func (s *Server) decodeIndexRequest(w http.ResponseWriter, r *http.Request) ([]domain.Property, bool) {
	var req indexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return nil, false
	}
	if len(req.Properties) == 0 || len(req.Properties) > maxIndexBatch {
		writeError(w, http.StatusBadRequest, codeValidationFailed,
			fmt.Sprintf("properties count must be between 1 and %d", maxIndexBatch))
		return nil, false
	}
	return propertiesFromRequest(req.Properties), true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidK,
		domain.ErrInvalidRadius,
		domain.ErrInvalidCoordinates,
		domain.ErrInvalidDocument,
		domain.ErrInvalidStrategy,
		domain.ErrInvalidSortField,
		domain.ErrInvalidLambda,
		domain.ErrIndexInProgress,
		domain.ErrEmbeddingProviderError,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
