package valuation

import (
	"encoding/json"
	"sort"
)

// Comparable is a peer company or precedent transaction. Any numeric key
// other than name and enterprise_value is kept as a metric.
type Comparable struct {
	Name            string
	EnterpriseValue float64
	Metrics         map[string]float64
}

// UnmarshalJSON reads a flat object such as
// {"name": "Comp A", "enterprise_value": 5e8, "ebitda": 5e7}.
func (c *Comparable) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c.Name = "Unknown"
	c.Metrics = make(map[string]float64)
	for k, v := range raw {
		switch k {
		case "name":
			if s, ok := v.(string); ok && s != "" {
				c.Name = s
			}
		case "enterprise_value":
			if f, ok := v.(float64); ok {
				c.EnterpriseValue = f
			}
		default:
			if f, ok := v.(float64); ok {
				c.Metrics[k] = f
			}
		}
	}
	return nil
}

// MarshalJSON writes the flat form read by UnmarshalJSON.
func (c Comparable) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(c.Metrics)+2)
	for k, v := range c.Metrics {
		out[k] = v
	}
	out["name"] = c.Name
	out["enterprise_value"] = c.EnterpriseValue
	return json.Marshal(out)
}

// CompsInputs configures a multiples valuation. Transactions are used when
// no comparable companies are given.
type CompsInputs struct {
	ComparableCompanies    []Comparable `json:"comparable_companies"`
	ComparableTransactions []Comparable `json:"comparable_transactions,omitempty"`
	Metric                 string       `json:"metric"`
	TargetMetricValue      *float64     `json:"target_metric_value"`
	SelectedMultiple       *float64     `json:"selected_multiple"`
}

// ParseCompsInputs decodes a JSON inputs document over the defaults.
func ParseCompsInputs(raw []byte) (CompsInputs, error) {
	in := CompsInputs{Metric: "ebitda"}
	if err := decodeInputs(raw, &in); err != nil {
		return in, err
	}
	if in.Metric == "" {
		in.Metric = "ebitda"
	}
	return in, nil
}

func (in CompsInputs) entries() []Comparable {
	if len(in.ComparableCompanies) > 0 {
		return in.ComparableCompanies
	}
	return in.ComparableTransactions
}

// CompMultiple is the multiple derived from one comparable.
type CompMultiple struct {
	Name            string  `json:"name"`
	Multiple        float64 `json:"multiple"`
	EnterpriseValue float64 `json:"ev"`
	MetricValue     float64 `json:"metric_value"`
}

// CompsResult is the output of RunComps. A non-empty Error means no multiple
// could be computed; it is then the only field serialized.
type CompsResult struct {
	Error                  string         `json:"error,omitempty"`
	Comparables            []CompMultiple `json:"comparables"`
	MeanMultiple           float64        `json:"mean_multiple"`
	MedianMultiple         float64        `json:"median_multiple"`
	MinMultiple            float64        `json:"min_multiple"`
	MaxMultiple            float64        `json:"max_multiple"`
	SelectedMultiple       float64        `json:"selected_multiple"`
	TargetMetric           string         `json:"target_metric"`
	TargetMetricValue      float64        `json:"target_metric_value"`
	ImpliedEnterpriseValue float64        `json:"implied_enterprise_value"`
}

// MarshalJSON writes only the error for a failed result.
func (r CompsResult) MarshalJSON() ([]byte, error) {
	if r.Error != "" {
		return json.Marshal(struct {
			Error string `json:"error"`
		}{r.Error})
	}
	type plain CompsResult
	return json.Marshal(plain(r))
}

// OK reports whether multiples were computed.
func (r CompsResult) OK() bool { return r.Error == "" }

// RunComps derives EV/metric multiples from comparables with a positive
// metric value and applies the selected multiple (median when unset) to the
// target metric. The median of an even-sized set is the lower middle value.
func RunComps(in CompsInputs) CompsResult {
	entries := in.entries()
	if len(entries) == 0 {
		return CompsResult{Error: "No comparable companies provided"}
	}

	var (
		comps []CompMultiple
		mults []float64
	)
	for _, c := range entries {
		mv := c.Metrics[in.Metric]
		if mv <= 0 {
			continue
		}
		m := c.EnterpriseValue / mv
		mults = append(mults, m)
		comps = append(comps, CompMultiple{
			Name:            c.Name,
			Multiple:        roundTo(m, 2),
			EnterpriseValue: c.EnterpriseValue,
			MetricValue:     mv,
		})
	}
	if len(mults) == 0 {
		return CompsResult{Error: "Could not compute multiples"}
	}

	sorted := append([]float64(nil), mults...)
	sort.Float64s(sorted)
	var sum float64
	for _, m := range mults {
		sum += m
	}
	median := sorted[(len(sorted)-1)/2]

	selected := median
	if in.SelectedMultiple != nil && *in.SelectedMultiple != 0 {
		selected = *in.SelectedMultiple
	}
	target := 0.0
	if in.TargetMetricValue != nil {
		target = *in.TargetMetricValue
	}

	return CompsResult{
		Comparables:            comps,
		MeanMultiple:           roundTo(sum/float64(len(mults)), 2),
		MedianMultiple:         roundTo(median, 2),
		MinMultiple:            roundTo(sorted[0], 2),
		MaxMultiple:            roundTo(sorted[len(sorted)-1], 2),
		SelectedMultiple:       roundTo(selected, 2),
		TargetMetric:           in.Metric,
		TargetMetricValue:      target,
		ImpliedEnterpriseValue: money(selected * target),
	}
}
