package valuation

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func basicDCFInputs() DCFInputs {
	in := DefaultDCFInputs()
	in.BaseRevenue = ptr(100_000_000)
	in.RevenueGrowthRates = []float64{0.10, 0.10, 0.08, 0.08, 0.06}
	in.EBITDAMargins = []float64{0.25, 0.26, 0.27, 0.28, 0.28}
	in.NetDebt = 20_000_000
	return in
}

// --- DCF ---

func TestRunDCF_Basic(t *testing.T) {
	res, err := RunDCF(basicDCFInputs())
	require.NoError(t, err)

	require.Len(t, res.Projections, 5)
	assert.Greater(t, res.EnterpriseValue, 0.0)
	assert.Greater(t, res.EquityValue, 0.0)
	assert.InDelta(t, res.EnterpriseValue-20_000_000, res.EquityValue, 0.01)

	for i := 1; i < len(res.Projections); i++ {
		assert.Greater(t, res.Projections[i].Revenue, res.Projections[i-1].Revenue)
	}
	for _, p := range res.Projections {
		assert.Greater(t, p.PVFCF, 0.0, "year %d", p.Year)
	}

	assert.InDelta(t, 110_000_000, res.Projections[0].Revenue, 0.01)
	assert.InDelta(t, 27_500_000, res.Projections[0].EBITDA, 0.01)
	assert.InDelta(t, 1.1, res.Projections[0].DiscountFactor, 1e-9)
	assert.InDelta(t, res.PVFCFTotal+res.PVTerminalValue, res.EnterpriseValue, 0.02)

	require.NotNil(t, res.ImpliedEVEBITDA)
	assert.InDelta(t, res.EnterpriseValue/27_500_000, *res.ImpliedEVEBITDA, 0.01)
}

func TestRunDCF_FirstYearFreeCashFlow(t *testing.T) {
	in := DefaultDCFInputs()
	in.BaseRevenue = ptr(1000)
	in.ProjectionYears = 1

	res, err := RunDCF(in)
	require.NoError(t, err)

	// revenue 1100, ebitda 275, tax 68.75, capex 55, nwc 11
	p := res.Projections[0]
	assert.InDelta(t, 1100, p.Revenue, 1e-9)
	assert.InDelta(t, 68.75, p.Tax, 1e-9)
	assert.InDelta(t, 55, p.Capex, 1e-9)
	assert.InDelta(t, 11, p.NWCChange, 1e-9)
	assert.InDelta(t, 140.25, p.FCF, 1e-9)
	assert.InDelta(t, 127.5, p.PVFCF, 1e-9)
}

func TestRunDCF_ZeroRevenue(t *testing.T) {
	in := DefaultDCFInputs()
	in.BaseRevenue = ptr(0)
	in.ProjectionYears = 3

	res, err := RunDCF(in)
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.EnterpriseValue)
	assert.Nil(t, res.ImpliedEVEBITDA)
}

func TestRunDCF_MissingBaseRevenue(t *testing.T) {
	res, err := RunDCF(DefaultDCFInputs())
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.EnterpriseValue)
}

func TestRunDCF_PadsShortRateLists(t *testing.T) {
	in := DefaultDCFInputs()
	in.BaseRevenue = ptr(100)
	in.ProjectionYears = 3
	in.RevenueGrowthRates = []float64{0.5}
	in.EBITDAMargins = []float64{0.1, 0.2}

	res, err := RunDCF(in)
	require.NoError(t, err)
	assert.InDelta(t, 150, res.Projections[0].Revenue, 1e-9)
	assert.InDelta(t, 225, res.Projections[1].Revenue, 1e-9)
	assert.InDelta(t, 337.5, res.Projections[2].Revenue, 1e-9)
	assert.Equal(t, 0.2, res.Projections[2].EBITDAMargin)
}

func TestRunDCF_HigherDiscountLowersValue(t *testing.T) {
	low := basicDCFInputs()
	high := basicDCFInputs()
	high.DiscountRate = 0.14

	a, err := RunDCF(low)
	require.NoError(t, err)
	b, err := RunDCF(high)
	require.NoError(t, err)
	assert.Greater(t, a.EnterpriseValue, b.EnterpriseValue)
}

func TestRunDCF_RejectsDiscountNotAboveGrowth(t *testing.T) {
	in := basicDCFInputs()
	in.DiscountRate = 0.05
	in.TerminalGrowthRate = 0.05

	_, err := RunDCF(in)
	require.Error(t, err)
	assert.True(t, IsInvalidInput(err))
	assert.Contains(t, err.Error(), "discount_rate must exceed terminal_growth_rate")
}

func TestDCFInputs_ValidateReportsAllFields(t *testing.T) {
	in := DefaultDCFInputs()
	in.ProjectionYears = 11
	in.TaxRate = 0.9
	in.RevenueGrowthRates = []float64{0.1, -1}

	err := in.Validate()
	require.Error(t, err)

	var ie *InvalidInputError
	require.ErrorAs(t, err, &ie)
	fields := make([]string, len(ie.Fields))
	for i, f := range ie.Fields {
		fields[i] = f.Field
	}
	assert.Equal(t, []string{"projection_years", "tax_rate", "revenue_growth_rates"}, fields)
}

func TestDCFInputs_ValidateRejectsNonFinite(t *testing.T) {
	tests := []struct {
		name  string
		mod   func(*DCFInputs)
		field string
	}{
		{"NaN discount rate", func(in *DCFInputs) { in.DiscountRate = math.NaN() }, "discount_rate"},
		{"NaN terminal growth", func(in *DCFInputs) { in.TerminalGrowthRate = math.NaN() }, "terminal_growth_rate"},
		{"NaN tax rate", func(in *DCFInputs) { in.TaxRate = math.NaN() }, "tax_rate"},
		{"NaN capex", func(in *DCFInputs) { in.CapexPctRevenue = math.NaN() }, "capex_pct_revenue"},
		{"NaN nwc", func(in *DCFInputs) { in.NWCPctRevenue = math.NaN() }, "nwc_pct_revenue"},
		{"infinite discount rate", func(in *DCFInputs) { in.DiscountRate = math.Inf(1) }, "discount_rate"},
		{"NaN net debt", func(in *DCFInputs) { in.NetDebt = math.NaN() }, "net_debt"},
		{"infinite base EBITDA", func(in *DCFInputs) { in.BaseEBITDA = ptr(math.Inf(-1)) }, "base_ebitda"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := DefaultDCFInputs()
			in.BaseRevenue = ptr(100)
			tt.mod(&in)

			res, err := RunDCF(in)
			require.Error(t, err)
			assert.Nil(t, res)

			var ie *InvalidInputError
			require.ErrorAs(t, err, &ie)
			var fields []string
			for _, f := range ie.Fields {
				fields = append(fields, f.Field)
			}
			assert.Contains(t, fields, tt.field)
		})
	}
}

func TestRunDCF_EquityIsEnterpriseValueLessNetDebt(t *testing.T) {
	in, err := ParseDCFInputs([]byte(`{"base_revenue": 100, "net_debt": 0.004}`))
	require.NoError(t, err)
	assert.Equal(t, 0.0, in.NetDebt)

	res, err := RunDCF(in)
	require.NoError(t, err)
	assert.Equal(t, res.EnterpriseValue-in.NetDebt, res.EquityValue)

	in.NetDebt = 12.34
	res, err = RunDCF(in)
	require.NoError(t, err)
	assert.Equal(t, res.EnterpriseValue-12.34, res.EquityValue)
}

func TestParseDCFInputs(t *testing.T) {
	in, err := ParseDCFInputs([]byte(`{"discount_rate": 0.12, "base_revenue": 5e6, "unknown": true}`))
	require.NoError(t, err)
	assert.Equal(t, 0.12, in.DiscountRate)
	assert.Equal(t, 5, in.ProjectionYears)
	require.NotNil(t, in.BaseRevenue)
	assert.Equal(t, 5e6, *in.BaseRevenue)
	assert.Nil(t, in.BaseEBITDA)

	in, err = ParseDCFInputs(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultDCFInputs(), in)

	_, err = ParseDCFInputs([]byte(`{"discount_rate": "high"}`))
	assert.True(t, IsInvalidInput(err))
}

// --- Comparables ---

func TestRunComps(t *testing.T) {
	in, err := ParseCompsInputs([]byte(`{
		"comparable_companies": [
			{"name": "Comp A", "enterprise_value": 500000000, "ebitda": 50000000},
			{"name": "Comp B", "enterprise_value": 800000000, "ebitda": 100000000},
			{"name": "Comp C", "enterprise_value": 600000000, "ebitda": 60000000}
		],
		"metric": "ebitda",
		"target_metric_value": 75000000
	}`))
	require.NoError(t, err)

	res := RunComps(in)
	require.True(t, res.OK())
	require.Len(t, res.Comparables, 3)
	assert.Equal(t, 9.33, res.MeanMultiple)
	assert.Equal(t, 10.0, res.MedianMultiple)
	assert.Equal(t, 8.0, res.MinMultiple)
	assert.Equal(t, 10.0, res.MaxMultiple)
	assert.Equal(t, 10.0, res.SelectedMultiple)
	assert.Equal(t, 750_000_000.0, res.ImpliedEnterpriseValue)
	assert.LessOrEqual(t, res.MinMultiple, res.MedianMultiple)
	assert.LessOrEqual(t, res.MedianMultiple, res.MaxMultiple)
}

func TestRunComps_EvenCountUsesLowerMiddle(t *testing.T) {
	in := CompsInputs{
		Metric: "ebitda",
		ComparableCompanies: []Comparable{
			{Name: "A", EnterpriseValue: 140, Metrics: map[string]float64{"ebitda": 10}},
			{Name: "B", EnterpriseValue: 80, Metrics: map[string]float64{"ebitda": 10}},
			{Name: "C", EnterpriseValue: 120, Metrics: map[string]float64{"ebitda": 10}},
			{Name: "D", EnterpriseValue: 100, Metrics: map[string]float64{"ebitda": 10}},
		},
		TargetMetricValue: ptr(5),
	}

	res := RunComps(in)
	require.True(t, res.OK())
	assert.Equal(t, 10.0, res.MedianMultiple)
	assert.Equal(t, 50.0, res.ImpliedEnterpriseValue)
}

func TestRunComps_SelectedMultipleWins(t *testing.T) {
	in := CompsInputs{
		Metric:              "revenue",
		ComparableCompanies: []Comparable{{Name: "A", EnterpriseValue: 300, Metrics: map[string]float64{"revenue": 100}}},
		TargetMetricValue:   ptr(10),
		SelectedMultiple:    ptr(4.5),
	}

	res := RunComps(in)
	assert.Equal(t, 4.5, res.SelectedMultiple)
	assert.Equal(t, 45.0, res.ImpliedEnterpriseValue)
	assert.Equal(t, "revenue", res.TargetMetric)
}

func TestRunComps_Errors(t *testing.T) {
	res := RunComps(CompsInputs{Metric: "ebitda"})
	assert.False(t, res.OK())
	assert.Equal(t, "No comparable companies provided", res.Error)

	b, err := json.Marshal(res)
	require.NoError(t, err)
	assert.JSONEq(t, `{"error": "No comparable companies provided"}`, string(b))

	res = RunComps(CompsInputs{
		Metric:              "ebitda",
		ComparableCompanies: []Comparable{{Name: "A", EnterpriseValue: 100, Metrics: map[string]float64{"ebitda": 0}}},
	})
	assert.Equal(t, "Could not compute multiples", res.Error)
}

func TestRunComps_FallsBackToTransactions(t *testing.T) {
	in, err := ParseCompsInputs([]byte(`{
		"comparable_transactions": [{"enterprise_value": 90, "ebitda": 10}],
		"target_metric_value": 2
	}`))
	require.NoError(t, err)

	res := RunComps(in)
	require.True(t, res.OK())
	assert.Equal(t, "Unknown", res.Comparables[0].Name)
	assert.Equal(t, 18.0, res.ImpliedEnterpriseValue)
}

func TestComparable_JSONRoundTrip(t *testing.T) {
	var c Comparable
	require.NoError(t, json.Unmarshal([]byte(`{"name":"X","enterprise_value":10,"ebitda":2,"sector":"tech"}`), &c))
	assert.Equal(t, map[string]float64{"ebitda": 2}, c.Metrics)

	b, err := json.Marshal(c)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"X","enterprise_value":10,"ebitda":2}`, string(b))
}

// --- Sensitivity ---

func TestRunSensitivity(t *testing.T) {
	in, err := ParseSensitivityInputs([]byte(`{
		"variable_1_range": [0.08, 0.09, 0.10, 0.11, 0.12],
		"variable_2_range": [0.015, 0.02, 0.025, 0.03, 0.035]
	}`))
	require.NoError(t, err)

	res := RunSensitivity(500_000_000, in)
	require.Len(t, res.Matrix, 5)
	require.Len(t, res.Matrix[0], 5)
	assert.Equal(t, 500_000_000.0, res.BaseEnterpriseValue)
	assert.Greater(t, res.Matrix[0][2], res.Matrix[4][2])
	assert.InDelta(t, 500_000_000, res.Matrix[2][2], 0.01)

	for i := range res.Matrix {
		for j := 1; j < len(res.Matrix[i]); j++ {
			assert.Greater(t, res.Matrix[i][j], res.Matrix[i][j-1])
		}
	}
}

func TestRunSensitivity_Defaults(t *testing.T) {
	res := RunSensitivity(100, SensitivityInputs{Variable1: "discount_rate", Variable2: "terminal_growth_rate"})
	assert.Equal(t, []float64{0.08, 0.09, 0.10, 0.11, 0.12}, res.Variable1Range)
	assert.Equal(t, []float64{0.015, 0.02, 0.025, 0.03, 0.035}, res.Variable2Range)
}

func TestRunSensitivity_OtherSecondVariableIgnoresGrowthFactor(t *testing.T) {
	res := RunSensitivity(100, SensitivityInputs{
		Variable1:      "discount_rate",
		Variable1Range: []float64{0.10, 0},
		Variable2:      "exit_multiple",
		Variable2Range: []float64{8, 12},
	})
	assert.Equal(t, [][]float64{{100, 100}, {100, 100}}, res.Matrix)
}

// --- Scenario ---

func TestRunScenario(t *testing.T) {
	in, err := ParseScenarioInputs([]byte(`{"base_revenue": 100, "initial_investment": 200, "projection_years": 2, "revenue_growth": 0, "ownership_pct": 50}`))
	require.NoError(t, err)

	res, err := RunScenario(in)
	require.NoError(t, err)
	require.Len(t, res.Projections, 2)
	assert.Equal(t, 25.0, res.ExitEBITDA)
	assert.Equal(t, 250.0, res.ExitEnterpriseValue)
	assert.Equal(t, 125.0, res.EquityProceeds)
	assert.Equal(t, 0.63, res.MOIC)
	require.NotNil(t, res.IRR)
	assert.Less(t, *res.IRR, 0.0)
}

func TestRunScenario_ZeroProceedsHasNoIRR(t *testing.T) {
	in, err := ParseScenarioInputs([]byte(`{"base_revenue": 100, "initial_investment": 10, "exit_multiple": 0}`))
	require.NoError(t, err)

	res, err := RunScenario(in)
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.MOIC)
	assert.Nil(t, res.IRR)
}

func TestRunScenario_Validation(t *testing.T) {
	_, err := RunScenario(ScenarioInputs{ProjectionYears: 0, OwnershipPct: 120})
	require.Error(t, err)

	var ie *InvalidInputError
	require.ErrorAs(t, err, &ie)
	assert.Len(t, ie.Fields, 3)
}

func TestRunScenario_RejectsNonFinite(t *testing.T) {
	base := ScenarioInputs{BaseRevenue: 100, ProjectionYears: 3, ExitMultiple: 8, InitialInvestment: 50, OwnershipPct: 40}
	tests := []struct {
		name  string
		mod   func(*ScenarioInputs)
		field string
	}{
		{"NaN investment", func(in *ScenarioInputs) { in.InitialInvestment = math.NaN() }, "initial_investment"},
		{"NaN ownership", func(in *ScenarioInputs) { in.OwnershipPct = math.NaN() }, "ownership_pct"},
		{"NaN growth", func(in *ScenarioInputs) { in.RevenueGrowth = math.NaN() }, "revenue_growth"},
		{"NaN exit multiple", func(in *ScenarioInputs) { in.ExitMultiple = math.NaN() }, "exit_multiple"},
		{"infinite revenue", func(in *ScenarioInputs) { in.BaseRevenue = math.Inf(1) }, "base_revenue"},
		{"NaN margin", func(in *ScenarioInputs) { in.EBITDAMargin = math.NaN() }, "ebitda_margin"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := base
			tt.mod(&in)
			_, err := RunScenario(in)

			var ie *InvalidInputError
			require.ErrorAs(t, err, &ie)
			require.Len(t, ie.Fields, 1)
			assert.Equal(t, tt.field, ie.Fields[0].Field)
		})
	}
}

// --- Blend ---

func TestRunBlend(t *testing.T) {
	res, err := RunBlend([]BlendPart{
		{ValuationID: "a", Weight: 3, EnterpriseValue: 100},
		{ValuationID: "b", Weight: 1, EnterpriseValue: 200},
	})
	require.NoError(t, err)
	assert.Equal(t, 125.0, res.EnterpriseValue)
	assert.Equal(t, 4.0, res.TotalWeight)
	assert.Equal(t, 0.75, res.Components[0].NormalizedWeight)
}

func TestBlendInputs_Validate(t *testing.T) {
	assert.True(t, IsInvalidInput(BlendInputs{}.Validate()))

	err := BlendInputs{Components: []BlendComponent{
		{ValuationID: "a", Weight: 1},
		{ValuationID: "a", Weight: 0},
	}}.Validate()
	var ie *InvalidInputError
	require.ErrorAs(t, err, &ie)
	assert.Len(t, ie.Fields, 2)
}
