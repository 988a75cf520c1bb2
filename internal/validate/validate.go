// Package validate coerces extracted field maps into the typed shape
// registered for each document type.
package validate

import (
	"fmt"
	"math"
	"strings"

	"github.com/sells-group/meridian/internal/model"
)

// Kind is the value type of a schema field.
type Kind int

const (
	// Number fields hold a float64.
	Number Kind = iota
	// String fields hold a string.
	String
)

func (k Kind) String() string {
	if k == Number {
		return "number"
	}
	return "string"
}

// FieldSpec is one field of a Variant. A nil Default means the field is
// omitted when absent.
type FieldSpec struct {
	Name    string
	Kind    Kind
	Default any
}

// Variant is the typed schema for one document type.
type Variant struct {
	Name   string
	Fields []FieldSpec
}

// FinancialStatement is the schema for income statements, balance sheets and
// cash flow statements.
var FinancialStatement = Variant{
	Name: string(model.DocTypeFinancialStatement),
	Fields: []FieldSpec{
		{Name: "revenue", Kind: Number},
		{Name: "cost_of_goods_sold", Kind: Number},
		{Name: "gross_profit", Kind: Number},
		{Name: "ebitda", Kind: Number},
		{Name: "net_income", Kind: Number},
		{Name: "total_assets", Kind: Number},
		{Name: "total_liabilities", Kind: Number},
		{Name: "total_equity", Kind: Number},
		{Name: "cash_and_equivalents", Kind: Number},
		{Name: "total_debt", Kind: Number},
		{Name: "free_cash_flow", Kind: Number},
		{Name: "period", Kind: String},
		{Name: "currency", Kind: String, Default: model.DefaultCurrency},
	},
}

// InvestorReport is the schema for LP/GP fund reports.
var InvestorReport = Variant{
	Name: string(model.DocTypeInvestorReport),
	Fields: []FieldSpec{
		{Name: "nav", Kind: Number},
		{Name: "distributions", Kind: Number},
		{Name: "contributions", Kind: Number},
		{Name: "irr", Kind: Number},
		{Name: "moic", Kind: Number},
		{Name: "dpi", Kind: Number},
		{Name: "rvpi", Kind: Number},
		{Name: "tvpi", Kind: Number},
		{Name: "reporting_date", Kind: String},
	},
}

var variants = map[string]*Variant{
	FinancialStatement.Name: &FinancialStatement,
	InvestorReport.Name:     &InvestorReport,
}

// Lookup returns the registered variant for a document type.
func Lookup(docType string) (*Variant, bool) {
	v, ok := variants[docType]
	return v, ok
}

// Validate coerces raw against the variant registered for docType. Fields are
// checked independently: a failing field is dropped and reported as
// "<field>: <reason>" while the rest are kept. Keys outside the variant are
// dropped. Unregistered types pass raw through unchanged.
func Validate(docType string, raw map[string]any) (map[string]any, []string) {
	v, ok := Lookup(docType)
	if !ok {
		return raw, nil
	}
	return v.Apply(raw)
}

// Apply validates raw against the variant.
func (v *Variant) Apply(raw map[string]any) (map[string]any, []string) {
	clean := make(map[string]any, len(v.Fields))
	var errs []string

	for _, f := range v.Fields {
		val, present := raw[f.Name]
		if !present || val == nil {
			if f.Default != nil {
				clean[f.Name] = f.Default
			}
			continue
		}

		out, err := f.coerce(val)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %s", f.Name, err))
			if f.Default != nil {
				clean[f.Name] = f.Default
			}
			continue
		}
		clean[f.Name] = out
	}
	return clean, errs
}

func (f FieldSpec) coerce(val any) (any, error) {
	switch f.Kind {
	case Number:
		n, ok := CoerceNumeric(val)
		if !ok {
			return nil, fmt.Errorf("expected a number, got %s", describe(val))
		}
		return n, nil
	default:
		s, ok := coerceString(val)
		if !ok {
			return nil, fmt.Errorf("expected a string, got %s", describe(val))
		}
		if f.Name == "currency" {
			if code, ok := model.NormalizeCurrency(s); ok {
				return code, nil
			}
		}
		return s, nil
	}
}

func coerceString(val any) (string, bool) {
	switch t := val.(type) {
	case string:
		return strings.TrimSpace(t), true
	case bool, map[string]any, []any:
		return "", false
	}
	if n, ok := CoerceNumeric(val); ok {
		if n == math.Trunc(n) && math.Abs(n) < 1e15 {
			return fmt.Sprintf("%.0f", n), true
		}
		return fmt.Sprint(n), true
	}
	return "", false
}

func describe(val any) string {
	switch t := val.(type) {
	case string:
		return fmt.Sprintf("%q", t)
	case bool:
		return "boolean"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	default:
		return fmt.Sprintf("%T", t)
	}
}
