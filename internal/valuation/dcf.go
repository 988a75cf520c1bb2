package valuation

import (
	"bytes"
	"encoding/json"
	"math"
)

// DCF defaults applied to fields absent from the inputs document.
const (
	defaultProjectionYears = 5
	defaultGrowthRate      = 0.10
	defaultEBITDAMargin    = 0.25
	defaultDiscountRate    = 0.10
	defaultTerminalGrowth  = 0.025
	defaultTaxRate         = 0.25
	defaultCapexPct        = 0.05
	defaultNWCPct          = 0.10
)

// DCFInputs configures a discounted cash flow run. Growth and margin lists
// shorter than ProjectionYears are padded with their last element; empty
// lists use the defaults.
type DCFInputs struct {
	ProjectionYears    int       `json:"projection_years"`
	RevenueGrowthRates []float64 `json:"revenue_growth_rates"`
	EBITDAMargins      []float64 `json:"ebitda_margins"`
	DiscountRate       float64   `json:"discount_rate"`
	TerminalGrowthRate float64   `json:"terminal_growth_rate"`
	TaxRate            float64   `json:"tax_rate"`
	CapexPctRevenue    float64   `json:"capex_pct_revenue"`
	NWCPctRevenue      float64   `json:"nwc_pct_revenue"`
	BaseRevenue        *float64  `json:"base_revenue"`
	BaseEBITDA         *float64  `json:"base_ebitda"`
	NetDebt            float64   `json:"net_debt"`
}

// DefaultDCFInputs returns inputs with every default applied.
func DefaultDCFInputs() DCFInputs {
	return DCFInputs{
		ProjectionYears:    defaultProjectionYears,
		RevenueGrowthRates: []float64{},
		EBITDAMargins:      []float64{},
		DiscountRate:       defaultDiscountRate,
		TerminalGrowthRate: defaultTerminalGrowth,
		TaxRate:            defaultTaxRate,
		CapexPctRevenue:    defaultCapexPct,
		NWCPctRevenue:      defaultNWCPct,
	}
}

// ParseDCFInputs decodes a JSON inputs document over the defaults. Empty
// input yields the defaults. Net debt is kept to the cent.
func ParseDCFInputs(raw []byte) (DCFInputs, error) {
	in := DefaultDCFInputs()
	if err := decodeInputs(raw, &in); err != nil {
		return in, err
	}
	in.NetDebt = money(in.NetDebt)
	return in, nil
}

// Validate checks every bound and reports all violations together.
func (in DCFInputs) Validate() error {
	var fe fieldErrors
	if in.ProjectionYears < 1 || in.ProjectionYears > 10 {
		fe.add("projection_years", "must be between 1 and 10, got %d", in.ProjectionYears)
	}
	fe.between("discount_rate", in.DiscountRate, 0.01, 0.50)
	fe.between("terminal_growth_rate", in.TerminalGrowthRate, 0, 0.10)
	fe.between("tax_rate", in.TaxRate, 0, 0.50)
	fe.between("capex_pct_revenue", in.CapexPctRevenue, 0, 0.50)
	fe.between("nwc_pct_revenue", in.NWCPctRevenue, 0, 0.50)
	if !(in.DiscountRate > in.TerminalGrowthRate) {
		fe.add("discount_rate", "must exceed terminal_growth_rate (%g <= %g)", in.DiscountRate, in.TerminalGrowthRate)
	}
	for i, g := range in.RevenueGrowthRates {
		if g <= -1 || math.IsNaN(g) || math.IsInf(g, 0) {
			fe.add("revenue_growth_rates", "entry %d must be a finite rate above -1, got %g", i, g)
		}
	}
	for i, m := range in.EBITDAMargins {
		if math.IsNaN(m) || math.IsInf(m, 0) {
			fe.add("ebitda_margins", "entry %d must be finite", i)
		}
	}
	if in.BaseRevenue != nil {
		fe.finite("base_revenue", *in.BaseRevenue)
	}
	if in.BaseEBITDA != nil {
		fe.finite("base_ebitda", *in.BaseEBITDA)
	}
	fe.finite("net_debt", in.NetDebt)
	return fe.err()
}

// Projection is one forecast year.
type Projection struct {
	Year           int     `json:"year"`
	Revenue        float64 `json:"revenue"`
	EBITDA         float64 `json:"ebitda"`
	EBITDAMargin   float64 `json:"ebitda_margin"`
	Tax            float64 `json:"tax"`
	Capex          float64 `json:"capex"`
	NWCChange      float64 `json:"nwc_change"`
	FCF            float64 `json:"fcf"`
	PVFCF          float64 `json:"pv_fcf"`
	DiscountFactor float64 `json:"discount_factor"`
}

// DCFResult is the output of RunDCF.
type DCFResult struct {
	Projections     []Projection `json:"projections"`
	TerminalValue   float64      `json:"terminal_value"`
	PVTerminalValue float64      `json:"pv_terminal_value"`
	PVFCFTotal      float64      `json:"pv_fcf_total"`
	EnterpriseValue float64      `json:"enterprise_value"`
	EquityValue     float64      `json:"equity_value"`
	ImpliedEVEBITDA *float64     `json:"implied_ev_ebitda"`
}

// pad extends rates to n entries by repeating the last one, or fills with
// def when rates is empty.
func pad(rates []float64, n int, def float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		switch {
		case i < len(rates):
			out[i] = rates[i]
		case len(rates) > 0:
			out[i] = rates[len(rates)-1]
		default:
			out[i] = def
		}
	}
	return out
}

// RunDCF projects free cash flow, discounts it and adds a Gordon growth
// terminal value. Outputs are rounded once from unrounded intermediates.
// A nil or zero base revenue values the business at zero. Net debt is taken
// to the cent, and equity is the rounded enterprise value less that amount
// with no further rounding.
func RunDCF(in DCFInputs) (*DCFResult, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	n := in.ProjectionYears
	growth := pad(in.RevenueGrowthRates, n, defaultGrowthRate)
	margins := pad(in.EBITDAMargins, n, defaultEBITDAMargin)

	revenue := 0.0
	if in.BaseRevenue != nil {
		revenue = *in.BaseRevenue
	}

	res := &DCFResult{Projections: make([]Projection, 0, n)}
	var (
		totalPV     float64
		lastFCF     float64
		firstEBITDA float64
	)
	for year := 1; year <= n; year++ {
		g := growth[year-1]
		revenue *= 1 + g
		ebitda := revenue * margins[year-1]
		tax := ebitda * in.TaxRate
		capex := revenue * in.CapexPctRevenue
		nwc := revenue * in.NWCPctRevenue * g
		fcf := ebitda - tax - capex - nwc
		df := math.Pow(1+in.DiscountRate, float64(year))
		pv := fcf / df
		totalPV += pv
		lastFCF = fcf
		if year == 1 {
			firstEBITDA = ebitda
		}

		res.Projections = append(res.Projections, Projection{
			Year:           year,
			Revenue:        money(revenue),
			EBITDA:         money(ebitda),
			EBITDAMargin:   ratio(margins[year-1]),
			Tax:            money(tax),
			Capex:          money(capex),
			NWCChange:      money(nwc),
			FCF:            money(fcf),
			PVFCF:          money(pv),
			DiscountFactor: ratio(df),
		})
	}

	terminal := lastFCF * (1 + in.TerminalGrowthRate) / (in.DiscountRate - in.TerminalGrowthRate)
	pvTerminal := terminal / math.Pow(1+in.DiscountRate, float64(n))
	ev := money(totalPV + pvTerminal)

	res.TerminalValue = money(terminal)
	res.PVTerminalValue = money(pvTerminal)
	res.PVFCFTotal = money(totalPV)
	res.EnterpriseValue = ev
	res.EquityValue = ev - money(in.NetDebt)
	if firstEBITDA != 0 {
		res.ImpliedEVEBITDA = ptr(roundTo(ev/firstEBITDA, 2))
	}
	return res, nil
}

// decodeInputs decodes a JSON inputs document over the defaults already in v.
// Unknown keys are ignored.
func decodeInputs(raw []byte, v any) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return invalid("inputs", "is not a valid inputs document: %v", err)
	}
	return nil
}
