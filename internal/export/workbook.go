// Package export renders valuations as XLSX workbooks.
package export

import (
	"encoding/json"
	"maps"
	"slices"

	"github.com/rotisserie/eris"
	"github.com/xuri/excelize/v2"

	"github.com/sells-group/meridian/internal/model"
	"github.com/sells-group/meridian/internal/valuation"
)

// Sheet names.
const (
	SheetSummary     = "Summary"
	SheetInputs      = "Inputs"
	SheetProjections = "Projections"
	SheetComparables = "Comparables"
	SheetSensitivity = "Sensitivity"
	SheetComponents  = "Components"
	SheetOverrides   = "Overrides"
)

// sheet writes rows into one worksheet.
type sheet struct {
	f    *excelize.File
	name string
	row  int
}

func (s *sheet) write(values ...any) {
	s.row++
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, s.row)
		_ = s.f.SetCellValue(s.name, cell, v)
	}
}

func newSheet(f *excelize.File, name string) (*sheet, error) {
	if _, err := f.NewSheet(name); err != nil {
		return nil, eris.Wrapf(err, "export: create sheet %s", name)
	}
	return &sheet{f: f, name: name}, nil
}

// ValuationWorkbook renders a valuation, its method-specific detail and its
// override trail as XLSX bytes.
func ValuationWorkbook(v *model.Valuation, overrides []model.ValuationOverride) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return nil, eris.Wrap(err, "export: rename sheet")
	}
	writeSummary(&sheet{f: f, name: SheetSummary}, v)

	in, err := newSheet(f, SheetInputs)
	if err != nil {
		return nil, err
	}
	if err := writeInputs(in, v.Inputs); err != nil {
		return nil, err
	}

	if err := writeDetail(f, v); err != nil {
		return nil, err
	}

	if len(overrides) > 0 {
		s, err := newSheet(f, SheetOverrides)
		if err != nil {
			return nil, err
		}
		s.write("Field", "Original", "Override", "Reason", "By", "At")
		for _, o := range overrides {
			s.write(o.FieldName, o.OriginalValue, o.OverrideValue, o.Reason, o.CreatedBy, o.CreatedAt.Format("2006-01-02 15:04:05"))
		}
		_ = f.SetColWidth(SheetOverrides, "D", "D", 40)
	}

	_ = f.SetColWidth(SheetSummary, "A", "A", 22)
	_ = f.SetColWidth(SheetSummary, "B", "B", 40)
	f.SetActiveSheet(0)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, eris.Wrap(err, "export: write workbook")
	}
	return buf.Bytes(), nil
}

func writeSummary(s *sheet, v *model.Valuation) {
	s.write("Valuation ID", v.ID)
	s.write("Company ID", v.CompanyID)
	s.write("Valuation date", v.ValuationDate.Format("2006-01-02"))
	s.write("Method", string(v.Method))
	s.write("Status", string(v.Status))
	s.write("Currency", v.Currency)
	s.write("Enterprise value", optional(v.EnterpriseValue))
	s.write("Equity value", optional(v.EquityValue))
	s.write("Implied multiple", optional(v.ImpliedMultiple))
	s.write("Created by", v.CreatedBy)
	s.write("Created at", v.CreatedAt.Format("2006-01-02 15:04:05"))
	if v.Notes != "" {
		s.write("Notes", v.Notes)
	}
}

func optional(p *float64) any {
	if p == nil {
		return ""
	}
	return *p
}

// writeInputs lists the top-level input keys in sorted order. Nested values
// are written as JSON.
func writeInputs(s *sheet, raw json.RawMessage) error {
	var in map[string]any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &in); err != nil {
			return eris.Wrap(err, "export: decode inputs")
		}
	}
	s.write("Input", "Value")
	for _, k := range slices.Sorted(maps.Keys(in)) {
		switch val := in[k].(type) {
		case nil:
			s.write(k, "")
		case string, float64, bool:
			s.write(k, val)
		default:
			b, _ := json.Marshal(val)
			s.write(k, string(b))
		}
	}
	return nil
}

func writeDetail(f *excelize.File, v *model.Valuation) error {
	switch v.Method {
	case model.ValuationDCF:
		var res valuation.DCFResult
		if err := json.Unmarshal(v.Outputs, &res); err != nil {
			return eris.Wrap(err, "export: decode dcf outputs")
		}
		s, err := newSheet(f, SheetProjections)
		if err != nil {
			return err
		}
		s.write("Year", "Revenue", "EBITDA", "EBITDA margin", "Tax", "Capex", "NWC change", "FCF", "Discount factor", "PV of FCF")
		for _, p := range res.Projections {
			s.write(p.Year, p.Revenue, p.EBITDA, p.EBITDAMargin, p.Tax, p.Capex, p.NWCChange, p.FCF, p.DiscountFactor, p.PVFCF)
		}
		s.write()
		s.write("PV of FCF", res.PVFCFTotal)
		s.write("Terminal value", res.TerminalValue)
		s.write("PV of terminal value", res.PVTerminalValue)
		s.write("Enterprise value", res.EnterpriseValue)
		s.write("Equity value", res.EquityValue)

	case model.ValuationComparableCompanies, model.ValuationComparableTransactions:
		var res valuation.CompsResult
		if err := json.Unmarshal(v.Outputs, &res); err != nil {
			return eris.Wrap(err, "export: decode comps outputs")
		}
		s, err := newSheet(f, SheetComparables)
		if err != nil {
			return err
		}
		if res.Error != "" {
			s.write("Error", res.Error)
			return nil
		}
		s.write("Name", "Enterprise value", "Metric value", "Multiple")
		for _, c := range res.Comparables {
			s.write(c.Name, c.EnterpriseValue, c.MetricValue, c.Multiple)
		}
		s.write()
		s.write("Mean", res.MeanMultiple)
		s.write("Median", res.MedianMultiple)
		s.write("Min", res.MinMultiple)
		s.write("Max", res.MaxMultiple)
		s.write("Selected", res.SelectedMultiple)
		s.write("Implied EV", res.ImpliedEnterpriseValue)

	case model.ValuationSensitivity:
		var res valuation.SensitivityResult
		if err := json.Unmarshal(v.Outputs, &res); err != nil {
			return eris.Wrap(err, "export: decode sensitivity outputs")
		}
		s, err := newSheet(f, SheetSensitivity)
		if err != nil {
			return err
		}
		header := []any{res.Variable1 + " \\ " + res.Variable2}
		for _, v2 := range res.Variable2Range {
			header = append(header, v2)
		}
		s.write(header...)
		for i, v1 := range res.Variable1Range {
			row := []any{v1}
			for _, cell := range res.Matrix[i] {
				row = append(row, cell)
			}
			s.write(row...)
		}

	case model.ValuationWeightedBlend:
		var res valuation.BlendResult
		if err := json.Unmarshal(v.Outputs, &res); err != nil {
			return eris.Wrap(err, "export: decode blend outputs")
		}
		s, err := newSheet(f, SheetComponents)
		if err != nil {
			return err
		}
		s.write("Valuation ID", "Method", "Weight", "Normalized weight", "Enterprise value")
		for _, p := range res.Components {
			s.write(p.ValuationID, p.Method, p.Weight, p.NormalizedWeight, p.EnterpriseValue)
		}
	}
	return nil
}
