package valuation

// Reference point of the sensitivity rescaling.
const (
	referenceDiscountRate = 0.10
	referenceGrowthRate   = 0.025
)

var (
	defaultDiscountRange = []float64{0.08, 0.09, 0.10, 0.11, 0.12}
	defaultGrowthRange   = []float64{0.015, 0.02, 0.025, 0.03, 0.035}
)

// SensitivityInputs configures a two-variable sensitivity grid around a base
// enterprise value, given directly or through an earlier valuation.
type SensitivityInputs struct {
	BaseValuationID     string    `json:"base_valuation_id,omitempty"`
	BaseEnterpriseValue *float64  `json:"base_enterprise_value,omitempty"`
	Variable1           string    `json:"variable_1"`
	Variable1Range      []float64 `json:"variable_1_range"`
	Variable2           string    `json:"variable_2"`
	Variable2Range      []float64 `json:"variable_2_range"`
}

// ParseSensitivityInputs decodes a JSON inputs document over the defaults.
func ParseSensitivityInputs(raw []byte) (SensitivityInputs, error) {
	in := SensitivityInputs{Variable1: "discount_rate", Variable2: "terminal_growth_rate"}
	if err := decodeInputs(raw, &in); err != nil {
		return in, err
	}
	return in, nil
}

// SensitivityResult is the output of RunSensitivity. Matrix[i][j] pairs
// Variable1Range[i] with Variable2Range[j].
type SensitivityResult struct {
	Variable1           string      `json:"variable_1"`
	Variable1Range      []float64   `json:"variable_1_range"`
	Variable2           string      `json:"variable_2"`
	Variable2Range      []float64   `json:"variable_2_range"`
	Matrix              [][]float64 `json:"matrix"`
	BaseEnterpriseValue float64     `json:"base_enterprise_value"`
}

// RunSensitivity rescales baseEV over the grid. This is a linear
// approximation, not a DCF re-run per cell: each value is
// baseEV × (0.10 / v1) × (v2 / 0.025), where the second factor applies only
// when variable 2 is terminal_growth_rate and a non-positive v1 leaves the
// first factor at 1.
func RunSensitivity(baseEV float64, in SensitivityInputs) SensitivityResult {
	r1 := in.Variable1Range
	if len(r1) == 0 {
		r1 = append([]float64(nil), defaultDiscountRange...)
	}
	r2 := in.Variable2Range
	if len(r2) == 0 {
		r2 = append([]float64(nil), defaultGrowthRange...)
	}

	matrix := make([][]float64, len(r1))
	for i, v1 := range r1 {
		f1 := 1.0
		if v1 > 0 {
			f1 = referenceDiscountRate / v1
		}
		row := make([]float64, len(r2))
		for j, v2 := range r2 {
			f2 := 1.0
			if in.Variable2 == "terminal_growth_rate" {
				f2 = v2 / referenceGrowthRate
			}
			row[j] = money(baseEV * f1 * f2)
		}
		matrix[i] = row
	}

	return SensitivityResult{
		Variable1:           in.Variable1,
		Variable1Range:      r1,
		Variable2:           in.Variable2,
		Variable2Range:      r2,
		Matrix:              matrix,
		BaseEnterpriseValue: baseEV,
	}
}
