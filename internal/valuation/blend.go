package valuation

import "fmt"

// BlendComponent weights one earlier valuation in a weighted blend.
type BlendComponent struct {
	ValuationID string  `json:"valuation_id"`
	Weight      float64 `json:"weight"`
}

// BlendInputs configures a weighted_blend valuation.
type BlendInputs struct {
	Components []BlendComponent `json:"components"`
}

// ParseBlendInputs decodes a JSON inputs document.
func ParseBlendInputs(raw []byte) (BlendInputs, error) {
	var in BlendInputs
	if err := decodeInputs(raw, &in); err != nil {
		return in, err
	}
	return in, nil
}

// Validate checks the component list.
func (in BlendInputs) Validate() error {
	var fe fieldErrors
	if len(in.Components) == 0 {
		fe.add("components", "must reference at least one valuation")
	}
	seen := make(map[string]bool, len(in.Components))
	for i, c := range in.Components {
		field := fmt.Sprintf("components[%d]", i)
		if c.ValuationID == "" {
			fe.add(field+".valuation_id", "is required")
		} else if seen[c.ValuationID] {
			fe.add(field+".valuation_id", "duplicates %s", c.ValuationID)
		}
		seen[c.ValuationID] = true
		if c.Weight <= 0 {
			fe.add(field+".weight", "must be greater than 0, got %g", c.Weight)
		}
	}
	return fe.err()
}

// BlendPart is a component resolved to its enterprise value.
type BlendPart struct {
	ValuationID      string  `json:"valuation_id"`
	Method           string  `json:"method"`
	Weight           float64 `json:"weight"`
	NormalizedWeight float64 `json:"normalized_weight"`
	EnterpriseValue  float64 `json:"enterprise_value"`
}

// BlendResult is the output of RunBlend.
type BlendResult struct {
	Components      []BlendPart `json:"components"`
	TotalWeight     float64     `json:"total_weight"`
	EnterpriseValue float64     `json:"enterprise_value"`
}

// RunBlend computes Σ wᵢ·EVᵢ / Σ wᵢ over resolved parts.
func RunBlend(parts []BlendPart) (*BlendResult, error) {
	if len(parts) == 0 {
		return nil, invalid("components", "must reference at least one valuation")
	}
	var total, weighted float64
	for i, p := range parts {
		if p.Weight <= 0 {
			return nil, invalid(fmt.Sprintf("components[%d].weight", i), "must be greater than 0, got %g", p.Weight)
		}
		total += p.Weight
		weighted += p.Weight * p.EnterpriseValue
	}

	res := &BlendResult{
		Components:      make([]BlendPart, len(parts)),
		TotalWeight:     total,
		EnterpriseValue: money(weighted / total),
	}
	for i, p := range parts {
		p.NormalizedWeight = ratio(p.Weight / total)
		res.Components[i] = p
	}
	return res, nil
}
