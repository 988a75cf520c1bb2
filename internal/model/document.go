package model

import "time"

// DocumentType classifies an uploaded document. The empty value means the
// uploader did not say.
type DocumentType string

const (
	DocTypeFinancialStatement DocumentType = "financial_statement"
	DocTypeInvestorReport     DocumentType = "investor_report"
	DocTypeValuationMemo      DocumentType = "valuation_memo"
	DocTypeCapitalCall        DocumentType = "capital_call"
	DocTypeDistributionNotice DocumentType = "distribution_notice"
	DocTypeBoardDeck          DocumentType = "board_deck"
	DocTypeDueDiligence       DocumentType = "due_diligence"
	DocTypeLegal              DocumentType = "legal"
	DocTypeOther              DocumentType = "other"
)

var documentTypes = map[DocumentType]bool{
	DocTypeFinancialStatement: true,
	DocTypeInvestorReport:     true,
	DocTypeValuationMemo:      true,
	DocTypeCapitalCall:        true,
	DocTypeDistributionNotice: true,
	DocTypeBoardDeck:          true,
	DocTypeDueDiligence:       true,
	DocTypeLegal:              true,
	DocTypeOther:              true,
}

// Valid reports whether t is a known document type. The unset type is valid.
func (t DocumentType) Valid() bool {
	return t == "" || documentTypes[t]
}

// ProcessingStatus is the extraction state of a document.
type ProcessingStatus string

const (
	StatusPending    ProcessingStatus = "pending"
	StatusParsing    ProcessingStatus = "parsing"
	StatusExtracting ProcessingStatus = "extracting"
	StatusValidating ProcessingStatus = "validating"
	StatusCompleted  ProcessingStatus = "completed"
	StatusFailed     ProcessingStatus = "failed"
)

// Valid reports whether s is a known processing status.
func (s ProcessingStatus) Valid() bool {
	switch s {
	case StatusPending, StatusParsing, StatusExtracting, StatusValidating, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// InFlight reports whether a document in this status is mid-pipeline.
func (s ProcessingStatus) InFlight() bool {
	return s == StatusParsing || s == StatusExtracting || s == StatusValidating
}

// Terminal reports whether the pipeline has finished with the document.
func (s ProcessingStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Document is an uploaded source file and its extraction state.
type Document struct {
	ID            string           `json:"id"`
	CompanyID     string           `json:"company_id,omitempty"`
	Filename      string           `json:"filename"`
	FileType      string           `json:"file_type"`
	StoredPath    string           `json:"-"`
	Size          int64            `json:"file_size"`
	DocumentType  DocumentType     `json:"document_type,omitempty"`
	Status        ProcessingStatus `json:"processing_status"`
	ExtractedData map[string]any   `json:"extracted_data,omitempty"`
	RawText       string           `json:"-"`
	PageCount     int              `json:"page_count,omitempty"`
	ErrorMessage  string           `json:"error_message,omitempty"`
	UploadedAt    time.Time        `json:"upload_date"`
	UpdatedAt     time.Time        `json:"updated_at"`
}
