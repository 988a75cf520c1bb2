package api

import (
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/meridian/internal/model"
	"github.com/sells-group/meridian/internal/monitoring"
	"github.com/sells-group/meridian/internal/store"
)

func (s *Server) createMetric(w http.ResponseWriter, r *http.Request) {
	var req monitoring.MetricRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	m, err := s.deps.Metrics.Create(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (s *Server) listMetrics(w http.ResponseWriter, r *http.Request) {
	offset, limit, err := pagination(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	filter := store.MetricFilter{
		CompanyID:  q.Get("company_id"),
		MetricType: model.MetricType(q.Get("metric_type")),
		Limit:      limit,
		Offset:     offset,
	}
	if filter.Start, err = queryDate(r, "start"); err != nil {
		writeError(w, r, err)
		return
	}
	if filter.End, err = queryDate(r, "end"); err != nil {
		writeError(w, r, err)
		return
	}

	ms, err := s.deps.Metrics.List(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if ms == nil {
		ms = []model.FinancialMetric{}
	}
	writeJSON(w, http.StatusOK, ms)
}

func (s *Server) metricTimeSeries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	companyID := q.Get("company_id")
	if companyID == "" {
		writeError(w, r, eris.Wrap(errBadRequest, "company_id is required"))
		return
	}
	mt := model.MetricType(q.Get("metric_type"))
	points, err := s.deps.Metrics.TimeSeries(r.Context(), companyID, mt)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"company_id":  companyID,
		"metric_type": mt,
		"data":        points,
	})
}

func (s *Server) latestMetrics(w http.ResponseWriter, r *http.Request) {
	companyID := r.URL.Query().Get("company_id")
	if companyID == "" {
		writeError(w, r, eris.Wrap(errBadRequest, "company_id is required"))
		return
	}
	latest, err := s.deps.Metrics.Latest(r.Context(), companyID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, latest)
}

// queryDate parses an optional YYYY-MM-DD query parameter.
func queryDate(r *http.Request, key string) (*time.Time, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return nil, eris.Wrapf(errBadRequest, "%s must be YYYY-MM-DD, got %q", key, v)
	}
	return &t, nil
}
