// Package monitoring records company financial metric time series and
// reports on the health of the document pipeline.
package monitoring

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/meridian/internal/model"
	"github.com/sells-group/meridian/internal/store"
)

// ErrInvalidMetric is returned when a metric request fails validation.
var ErrInvalidMetric = errors.New("invalid metric")

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// MetricRequest is a new metric observation. PeriodDate is YYYY-MM-DD.
type MetricRequest struct {
	CompanyID  string             `json:"company_id"`
	PeriodDate string             `json:"period_date"`
	MetricType model.MetricType   `json:"metric_type"`
	Value      *float64           `json:"value"`
	Currency   string             `json:"currency"`
	Source     model.MetricSource `json:"source"`
	Notes      string             `json:"notes"`
}

// SeriesPoint is one value in a metric time series.
type SeriesPoint struct {
	Date   string             `json:"date"`
	Value  float64            `json:"value"`
	Source model.MetricSource `json:"source"`
}

// MetricService stores and queries financial metrics.
type MetricService struct {
	store store.Store
}

// NewMetricService creates a MetricService.
func NewMetricService(st store.Store) *MetricService {
	return &MetricService{store: st}
}

// Create validates and stores a metric. Source defaults to manual and
// currency to USD.
func (s *MetricService) Create(ctx context.Context, req MetricRequest) (*model.FinancialMetric, error) {
	var problems []string
	if strings.TrimSpace(req.CompanyID) == "" {
		problems = append(problems, "company_id is required")
	}
	if !req.MetricType.Valid() {
		problems = append(problems, fmt.Sprintf("metric_type %q is not recognised", req.MetricType))
	}
	if req.Value == nil {
		problems = append(problems, "value is required")
	} else if math.IsNaN(*req.Value) || math.IsInf(*req.Value, 0) {
		problems = append(problems, "value must be finite")
	}
	period, err := time.Parse("2006-01-02", strings.TrimSpace(req.PeriodDate))
	if err != nil {
		problems = append(problems, fmt.Sprintf("period_date must be YYYY-MM-DD, got %q", req.PeriodDate))
	}
	currency, ok := model.NormalizeCurrency(req.Currency)
	if !ok {
		problems = append(problems, fmt.Sprintf("currency %q is not an ISO 4217 code", req.Currency))
	}
	source := req.Source
	if source == "" {
		source = model.SourceManual
	}
	if !source.Valid() {
		problems = append(problems, fmt.Sprintf("source %q is not recognised", req.Source))
	}
	if len(problems) > 0 {
		return nil, eris.Wrap(ErrInvalidMetric, strings.Join(problems, "; "))
	}

	m := &model.FinancialMetric{
		CompanyID:  req.CompanyID,
		PeriodDate: period,
		MetricType: req.MetricType,
		Value:      *req.Value,
		Currency:   currency,
		Source:     source,
		Notes:      req.Notes,
	}
	if err := s.store.CreateMetric(ctx, m); err != nil {
		return nil, eris.Wrap(err, "monitoring: create metric")
	}
	return m, nil
}

// List returns metrics matching the filter, newest period first unless the
// filter asks for ascending order.
func (s *MetricService) List(ctx context.Context, filter store.MetricFilter) ([]model.FinancialMetric, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	ms, err := s.store.ListMetrics(ctx, filter)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list metrics")
	}
	return ms, nil
}

// TimeSeries returns one metric for a company in ascending period order.
func (s *MetricService) TimeSeries(ctx context.Context, companyID string, mt model.MetricType) ([]SeriesPoint, error) {
	if !mt.Valid() {
		return nil, eris.Wrapf(ErrInvalidMetric, "metric_type %q is not recognised", mt)
	}
	ms, err := s.store.ListMetrics(ctx, store.MetricFilter{
		CompanyID:  companyID,
		MetricType: mt,
		Ascending:  true,
		Limit:      maxListLimit,
	})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: time series")
	}
	out := make([]SeriesPoint, len(ms))
	for i, m := range ms {
		out[i] = SeriesPoint{Date: m.PeriodDate.Format("2006-01-02"), Value: m.Value, Source: m.Source}
	}
	return out, nil
}

// Latest returns the most recent value of every metric type a company has
// reported.
func (s *MetricService) Latest(ctx context.Context, companyID string) (map[model.MetricType]model.FinancialMetric, error) {
	ms, err := s.store.ListMetrics(ctx, store.MetricFilter{CompanyID: companyID, Limit: maxListLimit})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: latest metrics")
	}
	out := make(map[model.MetricType]model.FinancialMetric)
	for _, m := range ms {
		if _, ok := out[m.MetricType]; !ok {
			out[m.MetricType] = m
		}
	}
	return out, nil
}
