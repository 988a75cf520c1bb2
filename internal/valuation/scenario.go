package valuation

import "math"

// ScenarioInputs describes a hold-period exit case. OwnershipPct is a
// percentage in (0, 100].
type ScenarioInputs struct {
	BaseRevenue       float64 `json:"base_revenue"`
	RevenueGrowth     float64 `json:"revenue_growth"`
	EBITDAMargin      float64 `json:"ebitda_margin"`
	ProjectionYears   int     `json:"projection_years"`
	ExitMultiple      float64 `json:"exit_multiple"`
	InitialInvestment float64 `json:"initial_investment"`
	OwnershipPct      float64 `json:"ownership_pct"`
}

// ParseScenarioInputs decodes a JSON assumptions document over the defaults.
func ParseScenarioInputs(raw []byte) (ScenarioInputs, error) {
	in := ScenarioInputs{
		RevenueGrowth:   defaultGrowthRate,
		EBITDAMargin:    defaultEBITDAMargin,
		ProjectionYears: defaultProjectionYears,
		ExitMultiple:    10,
		OwnershipPct:    100,
	}
	if err := decodeInputs(raw, &in); err != nil {
		return in, err
	}
	return in, nil
}

// Validate checks the scenario bounds.
func (in ScenarioInputs) Validate() error {
	var fe fieldErrors
	if in.ProjectionYears < 1 || in.ProjectionYears > 10 {
		fe.add("projection_years", "must be between 1 and 10, got %d", in.ProjectionYears)
	}
	if !(in.InitialInvestment > 0) || math.IsInf(in.InitialInvestment, 0) {
		fe.add("initial_investment", "must be greater than 0, got %g", in.InitialInvestment)
	}
	if !(in.OwnershipPct > 0 && in.OwnershipPct <= 100) {
		fe.add("ownership_pct", "must be in (0, 100], got %g", in.OwnershipPct)
	}
	if !(in.RevenueGrowth > -1) || math.IsInf(in.RevenueGrowth, 0) {
		fe.add("revenue_growth", "must be a finite rate above -1, got %g", in.RevenueGrowth)
	}
	if !(in.ExitMultiple >= 0) || math.IsInf(in.ExitMultiple, 0) {
		fe.add("exit_multiple", "must be a finite non-negative number, got %g", in.ExitMultiple)
	}
	fe.finite("base_revenue", in.BaseRevenue)
	fe.finite("ebitda_margin", in.EBITDAMargin)
	return fe.err()
}

// ScenarioYear is one projected year of a scenario.
type ScenarioYear struct {
	Year    int     `json:"year"`
	Revenue float64 `json:"revenue"`
	EBITDA  float64 `json:"ebitda"`
}

// ScenarioResult is the output of RunScenario. IRR is nil when the exit
// returns nothing.
type ScenarioResult struct {
	Projections         []ScenarioYear `json:"projections"`
	ExitEBITDA          float64        `json:"exit_ebitda"`
	ExitEnterpriseValue float64        `json:"exit_enterprise_value"`
	EquityProceeds      float64        `json:"equity_proceeds"`
	MOIC                float64        `json:"moic"`
	IRR                 *float64       `json:"irr"`
}

// RunScenario grows revenue at a constant rate, exits at a multiple of final
// year EBITDA and reports MOIC and annualized IRR on the owned stake.
func RunScenario(in ScenarioInputs) (*ScenarioResult, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	res := &ScenarioResult{Projections: make([]ScenarioYear, 0, in.ProjectionYears)}
	revenue := in.BaseRevenue
	var ebitda float64
	for year := 1; year <= in.ProjectionYears; year++ {
		revenue *= 1 + in.RevenueGrowth
		ebitda = revenue * in.EBITDAMargin
		res.Projections = append(res.Projections, ScenarioYear{
			Year:    year,
			Revenue: money(revenue),
			EBITDA:  money(ebitda),
		})
	}

	exitEV := ebitda * in.ExitMultiple
	proceeds := exitEV * in.OwnershipPct / 100
	moic := proceeds / in.InitialInvestment

	res.ExitEBITDA = money(ebitda)
	res.ExitEnterpriseValue = money(exitEV)
	res.EquityProceeds = money(proceeds)
	res.MOIC = roundTo(moic, 2)
	if moic > 0 {
		res.IRR = ptr(ratio(math.Pow(moic, 1/float64(in.ProjectionYears)) - 1))
	}
	return res, nil
}
