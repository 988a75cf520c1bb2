package model

import (
	"encoding/json"
	"time"
)

// ValuationMethod names the model used to produce a valuation.
type ValuationMethod string

const (
	ValuationDCF                    ValuationMethod = "dcf"
	ValuationComparableCompanies    ValuationMethod = "comparable_companies"
	ValuationComparableTransactions ValuationMethod = "comparable_transactions"
	ValuationSensitivity            ValuationMethod = "sensitivity"
	ValuationWeightedBlend          ValuationMethod = "weighted_blend"
)

// Valid reports whether m is a known valuation method.
func (m ValuationMethod) Valid() bool {
	switch m {
	case ValuationDCF, ValuationComparableCompanies, ValuationComparableTransactions,
		ValuationSensitivity, ValuationWeightedBlend:
		return true
	}
	return false
}

// ValuationStatus is the review state of a valuation.
type ValuationStatus string

const (
	ValuationDraft      ValuationStatus = "draft"
	ValuationInReview   ValuationStatus = "in_review"
	ValuationApproved   ValuationStatus = "approved"
	ValuationSuperseded ValuationStatus = "superseded"
)

// Valuation is the persisted result of one valuation run. Inputs and Outputs
// hold the method-specific JSON documents.
type Valuation struct {
	ID              string          `json:"id"`
	CompanyID       string          `json:"company_id"`
	ValuationDate   time.Time       `json:"valuation_date"`
	Method          ValuationMethod `json:"method"`
	Inputs          json.RawMessage `json:"inputs"`
	Outputs         json.RawMessage `json:"outputs"`
	EnterpriseValue *float64        `json:"enterprise_value"`
	EquityValue     *float64        `json:"equity_value"`
	ImpliedMultiple *float64        `json:"implied_multiple"`
	Currency        string          `json:"currency"`
	Status          ValuationStatus `json:"status"`
	Notes           string          `json:"notes,omitempty"`
	CreatedBy       string          `json:"created_by"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// ValuationOverride is an append-only record of a manual correction to a
// valuation output. It never rewrites the parent valuation.
type ValuationOverride struct {
	ID            string    `json:"id"`
	ValuationID   string    `json:"valuation_id"`
	FieldName     string    `json:"field_name"`
	OriginalValue float64   `json:"original_value"`
	OverrideValue float64   `json:"override_value"`
	Reason        string    `json:"reason"`
	CreatedBy     string    `json:"created_by"`
	CreatedAt     time.Time `json:"created_at"`
}
