package valuation

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/meridian/internal/model"
	"github.com/sells-group/meridian/internal/store"
)

// Headline output fields that overrides can replace in Effective.
const (
	FieldEnterpriseValue = "enterprise_value"
	FieldEquityValue     = "equity_value"
	FieldImpliedMultiple = "implied_multiple"
)

const defaultCreatedBy = "system"

// Observer is notified after every valuation run.
type Observer interface {
	ValuationRun(method string, err error)
}

// CreateRequest asks for a new valuation run. ValuationDate accepts
// YYYY-MM-DD or RFC 3339 and defaults to today.
type CreateRequest struct {
	CompanyID     string                `json:"company_id"`
	ValuationDate string                `json:"valuation_date"`
	Method        model.ValuationMethod `json:"method"`
	Inputs        json.RawMessage       `json:"inputs"`
	Currency      string                `json:"currency"`
	Notes         string                `json:"notes"`
	CreatedBy     string                `json:"created_by"`
}

// OverrideRequest records a manual correction. OriginalValue may be omitted
// for headline fields; the stored value is used.
type OverrideRequest struct {
	FieldName     string   `json:"field_name"`
	OriginalValue *float64 `json:"original_value"`
	OverrideValue *float64 `json:"override_value"`
	Reason        string   `json:"reason"`
	CreatedBy     string   `json:"created_by"`
}

// EffectiveValuation is a valuation with its latest override per field
// applied to the headline values. Storage is not modified.
type EffectiveValuation struct {
	model.Valuation
	AppliedOverrides map[string]float64 `json:"applied_overrides"`
}

// Service runs valuations and persists them with their override trail.
type Service struct {
	store    store.Store
	observer Observer
	now      func() time.Time
}

// NewService creates a Service. observer may be nil.
func NewService(st store.Store, observer Observer) *Service {
	return &Service{store: st, observer: observer, now: time.Now}
}

// run is the computed part of a valuation before persistence.
type run struct {
	inputs  any
	outputs any
	ev      *float64
	equity  *float64
	mult    *float64
}

// Create validates the request, runs the method's calculator and stores the
// result as a draft valuation.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*model.Valuation, error) {
	v, err := s.create(ctx, req)
	if s.observer != nil {
		s.observer.ValuationRun(string(req.Method), err)
	}
	return v, err
}

func (s *Service) create(ctx context.Context, req CreateRequest) (*model.Valuation, error) {
	var fe fieldErrors
	if strings.TrimSpace(req.CompanyID) == "" {
		fe.add("company_id", "is required")
	}
	if !req.Method.Valid() {
		fe.add("method", "must be one of dcf, comparable_companies, comparable_transactions, sensitivity, weighted_blend; got %q", req.Method)
	}
	currency, ok := model.NormalizeCurrency(req.Currency)
	if !ok {
		fe.add("currency", "is not an ISO 4217 code: %q", req.Currency)
	}
	date, err := s.parseDate(req.ValuationDate)
	if err != nil {
		fe.add("valuation_date", "must be YYYY-MM-DD, got %q", req.ValuationDate)
	}
	if err := fe.err(); err != nil {
		return nil, err
	}

	var r *run
	switch req.Method {
	case model.ValuationDCF:
		r, err = s.runDCF(ctx, req.CompanyID, req.Inputs)
	case model.ValuationComparableCompanies, model.ValuationComparableTransactions:
		r, err = runComps(req.Inputs)
	case model.ValuationSensitivity:
		r, err = s.runSensitivity(ctx, req.Inputs)
	case model.ValuationWeightedBlend:
		r, err = s.runBlend(ctx, req.CompanyID, req.Inputs)
	}
	if err != nil {
		return nil, err
	}

	inputs, err := json.Marshal(r.inputs)
	if err != nil {
		return nil, eris.Wrap(err, "valuation: marshal inputs")
	}
	outputs, err := json.Marshal(r.outputs)
	if err != nil {
		return nil, eris.Wrap(err, "valuation: marshal outputs")
	}

	createdBy := req.CreatedBy
	if createdBy == "" {
		createdBy = defaultCreatedBy
	}
	v := &model.Valuation{
		CompanyID:       req.CompanyID,
		ValuationDate:   date,
		Method:          req.Method,
		Inputs:          inputs,
		Outputs:         outputs,
		EnterpriseValue: r.ev,
		EquityValue:     r.equity,
		ImpliedMultiple: r.mult,
		Currency:        currency,
		Status:          model.ValuationDraft,
		Notes:           req.Notes,
		CreatedBy:       createdBy,
	}
	if err := s.store.CreateValuation(ctx, v); err != nil {
		return nil, eris.Wrap(err, "valuation: create")
	}

	zap.L().Info("valuation created",
		zap.String("valuation_id", v.ID),
		zap.String("company_id", v.CompanyID),
		zap.String("method", string(v.Method)),
	)
	return v, nil
}

func (s *Service) parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		y, m, d := s.now().UTC().Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// runDCF fills base revenue and EBITDA from the company's latest reported
// metrics when the inputs leave them unset.
func (s *Service) runDCF(ctx context.Context, companyID string, raw json.RawMessage) (*run, error) {
	in, err := ParseDCFInputs(raw)
	if err != nil {
		return nil, err
	}
	if in.BaseRevenue == nil {
		if in.BaseRevenue, err = s.latestMetric(ctx, companyID, model.MetricRevenue); err != nil {
			return nil, err
		}
	}
	if in.BaseEBITDA == nil {
		if in.BaseEBITDA, err = s.latestMetric(ctx, companyID, model.MetricEBITDA); err != nil {
			return nil, err
		}
	}

	res, err := RunDCF(in)
	if err != nil {
		return nil, err
	}
	return &run{
		inputs:  in,
		outputs: res,
		ev:      ptr(res.EnterpriseValue),
		equity:  ptr(res.EquityValue),
		mult:    res.ImpliedEVEBITDA,
	}, nil
}

// latestMetric returns the value with the most recent period date, or nil
// when the company has none.
func (s *Service) latestMetric(ctx context.Context, companyID string, mt model.MetricType) (*float64, error) {
	ms, err := s.store.ListMetrics(ctx, store.MetricFilter{CompanyID: companyID, MetricType: mt, Limit: 1})
	if err != nil {
		return nil, eris.Wrapf(err, "valuation: latest %s", mt)
	}
	if len(ms) == 0 {
		return nil, nil
	}
	return ptr(ms[0].Value), nil
}

func runComps(raw json.RawMessage) (*run, error) {
	in, err := ParseCompsInputs(raw)
	if err != nil {
		return nil, err
	}
	res := RunComps(in)
	r := &run{inputs: in, outputs: res}
	if res.OK() {
		r.ev = ptr(res.ImpliedEnterpriseValue)
		r.mult = ptr(res.SelectedMultiple)
	}
	return r, nil
}

func (s *Service) runSensitivity(ctx context.Context, raw json.RawMessage) (*run, error) {
	in, err := ParseSensitivityInputs(raw)
	if err != nil {
		return nil, err
	}
	if in.BaseEnterpriseValue == nil && in.BaseValuationID != "" {
		base, err := s.store.GetValuation(ctx, in.BaseValuationID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, invalid("base_valuation_id", "valuation %s not found", in.BaseValuationID)
			}
			return nil, eris.Wrap(err, "valuation: load base valuation")
		}
		if base.EnterpriseValue == nil {
			return nil, invalid("base_valuation_id", "valuation %s has no enterprise value", in.BaseValuationID)
		}
		in.BaseEnterpriseValue = ptr(*base.EnterpriseValue)
	}
	baseEV := 0.0
	if in.BaseEnterpriseValue != nil {
		baseEV = *in.BaseEnterpriseValue
	}
	return &run{inputs: in, outputs: RunSensitivity(baseEV, in)}, nil
}

// runBlend resolves each component to a stored valuation of the same company
// with an enterprise value.
func (s *Service) runBlend(ctx context.Context, companyID string, raw json.RawMessage) (*run, error) {
	in, err := ParseBlendInputs(raw)
	if err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	var fe fieldErrors
	parts := make([]BlendPart, 0, len(in.Components))
	for _, c := range in.Components {
		v, err := s.store.GetValuation(ctx, c.ValuationID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				fe.add("components", "valuation %s not found", c.ValuationID)
				continue
			}
			return nil, eris.Wrap(err, "valuation: load blend component")
		}
		switch {
		case v.CompanyID != companyID:
			fe.add("components", "valuation %s belongs to company %s", c.ValuationID, v.CompanyID)
		case v.EnterpriseValue == nil:
			fe.add("components", "valuation %s has no enterprise value", c.ValuationID)
		default:
			parts = append(parts, BlendPart{
				ValuationID:     v.ID,
				Method:          string(v.Method),
				Weight:          c.Weight,
				EnterpriseValue: *v.EnterpriseValue,
			})
		}
	}
	if err := fe.err(); err != nil {
		return nil, err
	}

	res, err := RunBlend(parts)
	if err != nil {
		return nil, err
	}
	return &run{inputs: in, outputs: res, ev: ptr(res.EnterpriseValue)}, nil
}

// Get returns a valuation by ID.
func (s *Service) Get(ctx context.Context, id string) (*model.Valuation, error) {
	v, err := s.store.GetValuation(ctx, id)
	if err != nil {
		return nil, eris.Wrap(err, "valuation: get")
	}
	return v, nil
}

// List returns valuations, newest first.
func (s *Service) List(ctx context.Context, filter store.ValuationFilter) ([]model.Valuation, error) {
	vs, err := s.store.ListValuations(ctx, filter)
	if err != nil {
		return nil, eris.Wrap(err, "valuation: list")
	}
	return vs, nil
}

// AddOverride appends a manual correction to a valuation's audit trail. The
// valuation itself is left unchanged.
func (s *Service) AddOverride(ctx context.Context, valuationID string, req OverrideRequest) (*model.ValuationOverride, error) {
	v, err := s.store.GetValuation(ctx, valuationID)
	if err != nil {
		return nil, eris.Wrap(err, "valuation: add override")
	}

	var fe fieldErrors
	if strings.TrimSpace(req.FieldName) == "" {
		fe.add("field_name", "is required")
	}
	if req.OverrideValue == nil {
		fe.add("override_value", "is required")
	}
	if strings.TrimSpace(req.Reason) == "" {
		fe.add("reason", "is required")
	}
	original := req.OriginalValue
	if original == nil && req.FieldName != "" {
		original = headline(v, req.FieldName)
		if original == nil {
			fe.add("original_value", "is required for field %q", req.FieldName)
		}
	}
	if err := fe.err(); err != nil {
		return nil, err
	}

	createdBy := req.CreatedBy
	if createdBy == "" {
		createdBy = defaultCreatedBy
	}
	o := &model.ValuationOverride{
		ValuationID:   valuationID,
		FieldName:     req.FieldName,
		OriginalValue: *original,
		OverrideValue: *req.OverrideValue,
		Reason:        req.Reason,
		CreatedBy:     createdBy,
	}
	if err := s.store.CreateOverride(ctx, o); err != nil {
		return nil, eris.Wrap(err, "valuation: create override")
	}

	zap.L().Info("valuation override recorded",
		zap.String("valuation_id", valuationID),
		zap.String("field", o.FieldName),
		zap.Float64("original", o.OriginalValue),
		zap.Float64("override", o.OverrideValue),
	)
	return o, nil
}

// ListOverrides returns a valuation's overrides, oldest first.
func (s *Service) ListOverrides(ctx context.Context, valuationID string) ([]model.ValuationOverride, error) {
	if _, err := s.store.GetValuation(ctx, valuationID); err != nil {
		return nil, eris.Wrap(err, "valuation: list overrides")
	}
	out, err := s.store.ListOverrides(ctx, valuationID)
	if err != nil {
		return nil, eris.Wrap(err, "valuation: list overrides")
	}
	return out, nil
}

// Effective returns the valuation with the most recent override for each
// field applied.
func (s *Service) Effective(ctx context.Context, valuationID string) (*EffectiveValuation, error) {
	v, err := s.store.GetValuation(ctx, valuationID)
	if err != nil {
		return nil, eris.Wrap(err, "valuation: effective")
	}
	overrides, err := s.store.ListOverrides(ctx, valuationID)
	if err != nil {
		return nil, eris.Wrap(err, "valuation: effective")
	}

	eff := &EffectiveValuation{Valuation: *v, AppliedOverrides: make(map[string]float64)}
	for _, o := range overrides {
		eff.AppliedOverrides[o.FieldName] = o.OverrideValue
	}
	for field, val := range eff.AppliedOverrides {
		switch field {
		case FieldEnterpriseValue:
			eff.EnterpriseValue = ptr(val)
		case FieldEquityValue:
			eff.EquityValue = ptr(val)
		case FieldImpliedMultiple:
			eff.ImpliedMultiple = ptr(val)
		}
	}
	return eff, nil
}

func headline(v *model.Valuation, field string) *float64 {
	switch field {
	case FieldEnterpriseValue:
		return v.EnterpriseValue
	case FieldEquityValue:
		return v.EquityValue
	case FieldImpliedMultiple:
		return v.ImpliedMultiple
	}
	return nil
}
