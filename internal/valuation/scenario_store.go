package valuation

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/meridian/internal/model"
	"github.com/sells-group/meridian/internal/store"
)

const methodScenario = "scenario"

// ScenarioRequest saves a named exit case against a portfolio company.
// Assumptions that leave out initial_investment or ownership_pct take them
// from the company record.
type ScenarioRequest struct {
	CompanyID   string          `json:"company_id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Assumptions json.RawMessage `json:"assumptions"`
	CreatedBy   string          `json:"created_by"`
}

// SaveScenario runs the scenario and stores the resolved assumptions with
// the result.
func (s *Service) SaveScenario(ctx context.Context, req ScenarioRequest) (*model.Scenario, error) {
	sc, err := s.saveScenario(ctx, req)
	if s.observer != nil {
		s.observer.ValuationRun(methodScenario, err)
	}
	return sc, err
}

func (s *Service) saveScenario(ctx context.Context, req ScenarioRequest) (*model.Scenario, error) {
	var fe fieldErrors
	if strings.TrimSpace(req.CompanyID) == "" {
		fe.add("company_id", "is required")
	}
	if strings.TrimSpace(req.Name) == "" {
		fe.add("name", "is required")
	}
	if err := fe.err(); err != nil {
		return nil, err
	}

	company, err := s.store.GetCompany(ctx, req.CompanyID)
	if err != nil {
		return nil, eris.Wrap(err, "valuation: save scenario")
	}

	in, err := ParseScenarioInputs(req.Assumptions)
	if err != nil {
		return nil, err
	}
	var given struct {
		InitialInvestment *float64 `json:"initial_investment"`
		OwnershipPct      *float64 `json:"ownership_pct"`
	}
	if err := decodeInputs(req.Assumptions, &given); err != nil {
		return nil, err
	}
	if given.InitialInvestment == nil {
		in.InitialInvestment = company.InitialInvestment
	}
	if given.OwnershipPct == nil {
		in.OwnershipPct = company.OwnershipPct
	}

	res, err := RunScenario(in)
	if err != nil {
		return nil, err
	}

	assumptions, err := json.Marshal(in)
	if err != nil {
		return nil, eris.Wrap(err, "valuation: marshal scenario assumptions")
	}
	results, err := json.Marshal(res)
	if err != nil {
		return nil, eris.Wrap(err, "valuation: marshal scenario results")
	}

	createdBy := req.CreatedBy
	if createdBy == "" {
		createdBy = defaultCreatedBy
	}
	sc := &model.Scenario{
		CompanyID:   company.ID,
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Assumptions: assumptions,
		Results:     results,
		CreatedBy:   createdBy,
	}
	if err := s.store.CreateScenario(ctx, sc); err != nil {
		return nil, eris.Wrap(err, "valuation: save scenario")
	}

	zap.L().Info("scenario saved",
		zap.String("scenario_id", sc.ID),
		zap.String("company_id", sc.CompanyID),
		zap.Float64("moic", res.MOIC),
	)
	return sc, nil
}

// ListScenarios returns a company's saved scenarios, newest first.
func (s *Service) ListScenarios(ctx context.Context, filter store.ScenarioFilter) ([]model.Scenario, error) {
	out, err := s.store.ListScenarios(ctx, filter)
	if err != nil {
		return nil, eris.Wrap(err, "valuation: list scenarios")
	}
	return out, nil
}
