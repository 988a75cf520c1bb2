package model

import "time"

// ExtractionMethod records how a field value was obtained.
type ExtractionMethod string

const (
	MethodLLM        ExtractionMethod = "llm"
	MethodRegex      ExtractionMethod = "regex"
	MethodTableParse ExtractionMethod = "table_parse"
	MethodManual     ExtractionMethod = "manual"
)

// Valid reports whether m is a known extraction method.
func (m ExtractionMethod) Valid() bool {
	switch m {
	case MethodLLM, MethodRegex, MethodTableParse, MethodManual:
		return true
	}
	return false
}

// Extraction is a single field value pulled from a document.
// Uniqueness per (document, field) is not enforced: re-running extraction
// appends a new set of rows.
type Extraction struct {
	ID              string           `json:"id"`
	DocumentID      string           `json:"document_id"`
	FieldName       string           `json:"field_name"`
	FieldValue      string           `json:"field_value"`
	FieldType       string           `json:"field_type"`
	ConfidenceScore float64          `json:"confidence_score"`
	Method          ExtractionMethod `json:"extraction_method"`
	ContextSnippet  string           `json:"context_snippet,omitempty"`
	Validated       bool             `json:"validated"`
	ValidatedBy     string           `json:"validated_by,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
}

// ClampConfidence bounds a confidence score to [0, 1].
func ClampConfidence(c float64) float64 {
	switch {
	case c != c: // NaN
		return 0
	case c < 0:
		return 0
	case c > 1:
		return 1
	}
	return c
}
