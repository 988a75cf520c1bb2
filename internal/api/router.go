// Package api exposes documents, metrics, valuations and the portfolio over
// HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sells-group/meridian/internal/ingest"
	"github.com/sells-group/meridian/internal/monitoring"
	"github.com/sells-group/meridian/internal/portfolio"
	"github.com/sells-group/meridian/internal/valuation"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps holds the services behind the routes. Gatherer is optional; without
// it /metrics is not mounted.
type Deps struct {
	Store       Pinger
	Documents   *ingest.Service
	Metrics     *monitoring.MetricService
	Valuations  *valuation.Service
	Portfolio   *portfolio.Service
	Gatherer    prometheus.Gatherer
	CORSOrigins []string
}

// Server holds the HTTP handlers.
type Server struct {
	deps Deps
}

// NewRouter builds the HTTP handler for all API routes.
func NewRouter(deps Deps) http.Handler {
	s := &Server{deps: deps}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", s.health)
	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/documents", func(r chi.Router) {
			r.Post("/upload", s.uploadDocument)
			r.Get("/", s.listDocuments)
			r.Patch("/extractions/{id}", s.reviewExtraction)
			r.Get("/{id}", s.getDocument)
			r.Delete("/{id}", s.deleteDocument)
			r.Post("/{id}/extract", s.extractDocument)
			r.Get("/{id}/extractions", s.listExtractions)
		})

		r.Route("/metrics", func(r chi.Router) {
			r.Post("/", s.createMetric)
			r.Get("/", s.listMetrics)
			r.Get("/timeseries", s.metricTimeSeries)
			r.Get("/latest", s.latestMetrics)
		})

		r.Route("/valuation", func(r chi.Router) {
			r.Post("/run", s.runValuation)
			r.Get("/", s.listValuations)
			r.Get("/{id}", s.getValuation)
			r.Post("/{id}/overrides", s.addOverride)
			r.Get("/{id}/overrides", s.listOverrides)
			r.Get("/{id}/effective", s.effectiveValuation)
			r.Get("/{id}/export.xlsx", s.exportValuation)
		})

		r.Route("/scenarios", func(r chi.Router) {
			r.Post("/compute", s.computeScenario)
			r.Post("/", s.saveScenario)
			r.Get("/", s.listScenarios)
		})

		r.Route("/portfolio", func(r chi.Router) {
			r.Get("/summary", s.portfolioSummary)
			r.Route("/funds", func(r chi.Router) {
				r.Post("/", s.createFund)
				r.Get("/", s.listFunds)
				r.Get("/{id}", s.getFund)
				r.Patch("/{id}", s.updateFund)
				r.Delete("/{id}", s.deleteFund)
			})
			r.Route("/companies", func(r chi.Router) {
				r.Post("/", s.createCompany)
				r.Get("/", s.listCompanies)
				r.Get("/{id}", s.getCompany)
				r.Patch("/{id}", s.updateCompany)
			})
		})
	})

	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if s.deps.Store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.Store.Ping(ctx); err != nil {
			zap.L().Warn("api: health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// requestLogger logs one line per request at debug level, or warn for
// server errors.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		}
		if ww.Status() >= http.StatusInternalServerError {
			zap.L().Warn("api: request failed", fields...)
			return
		}
		zap.L().Debug("api: request", fields...)
	})
}
