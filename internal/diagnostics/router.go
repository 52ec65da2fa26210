// Package diagnostics serves registry statistics over HTTP for operators.
package diagnostics

import (
	"encoding/json"
	"math"
	"net/http"
	"net/url"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/zoobzio/monitorz"
	"go.uber.org/zap"
)

// StatisticsResponse is the JSON form of monitorz.Statistics.
// AverageDuration is null until the operation has completed once.
type StatisticsResponse struct {
	Method          string   `json:"method"`
	Entries         int64    `json:"entries"`
	Exits           int64    `json:"exits"`
	Failures        int64    `json:"failures"`
	TotalDuration   float64  `json:"totalDuration"`
	AverageDuration *float64 `json:"averageDuration"`
	MaxDuration     float64  `json:"maxDuration"`
	LastDuration    float64  `json:"lastDuration"`
	WeightedAverage float64  `json:"weightedAverage"`
}

// ErrorResponse is returned with non-2xx statuses.
type ErrorResponse struct {
	Error string `json:"error"`
}

// NewStatisticsResponse converts a snapshot for encoding.
func NewStatisticsResponse(s monitorz.Statistics) StatisticsResponse {
	resp := StatisticsResponse{
		Method:          s.Name,
		Entries:         s.Entries,
		Exits:           s.Exits,
		Failures:        s.Failures,
		TotalDuration:   s.TotalDuration,
		MaxDuration:     s.MaxDuration,
		LastDuration:    s.LastDuration,
		WeightedAverage: s.WeightedAverage,
	}
	if !math.IsNaN(s.AverageDuration) {
		avg := s.AverageDuration
		resp.AverageDuration = &avg
	}
	return resp
}

type handler struct {
	registry *monitorz.Registry
	logger   *zap.Logger
}

// NewRouter returns the diagnostics routes:
//
//	GET /healthz
//	GET /operations
//	GET /operations/{name}
//	GET /metrics
func NewRouter(registry *monitorz.Registry, gatherer prometheus.Gatherer, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &handler{registry: registry, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/operations", h.listOperations)
	r.Get("/operations/{name}", h.getOperation)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return r
}

func (h *handler) listOperations(w http.ResponseWriter, _ *http.Request) {
	names := h.registry.Names()
	sort.Strings(names)
	h.writeJSON(w, http.StatusOK, names)
}

func (h *handler) getOperation(w http.ResponseWriter, r *http.Request) {
	// chi matches on RawPath when it is set, leaving the parameter escaped.
	name := chi.URLParam(r, "name")
	if r.URL.RawPath != "" {
		if unescaped, err := url.PathUnescape(name); err == nil {
			name = unescaped
		}
	}
	stats, ok := h.registry.Snapshot(name)
	if !ok {
		h.writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "operation not found: " + name})
		return
	}
	h.writeJSON(w, http.StatusOK, NewStatisticsResponse(stats))
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("encode diagnostics response", zap.Error(err))
	}
}
