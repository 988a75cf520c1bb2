package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/sells-group/meridian/internal/model"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("store: not found")
	// ErrConflict is returned when a compare-and-set update loses a race.
	ErrConflict = errors.New("store: conflict")
)

const defaultLimit = 100

// DocumentFilter specifies criteria for listing documents.
type DocumentFilter struct {
	CompanyID    string                 `json:"company_id,omitempty"`
	Status       model.ProcessingStatus `json:"status,omitempty"`
	DocumentType model.DocumentType     `json:"document_type,omitempty"`
	Limit        int                    `json:"limit,omitempty"`
	Offset       int                    `json:"offset,omitempty"`
}

// MetricFilter specifies criteria for listing financial metrics. Results are
// ordered by period date, newest first unless Ascending is set.
type MetricFilter struct {
	CompanyID  string           `json:"company_id,omitempty"`
	MetricType model.MetricType `json:"metric_type,omitempty"`
	Start      *time.Time       `json:"start,omitempty"`
	End        *time.Time       `json:"end,omitempty"`
	Ascending  bool             `json:"ascending,omitempty"`
	Limit      int              `json:"limit,omitempty"`
	Offset     int              `json:"offset,omitempty"`
}

// ValuationFilter specifies criteria for listing valuations.
type ValuationFilter struct {
	CompanyID string                `json:"company_id,omitempty"`
	Method    model.ValuationMethod `json:"method,omitempty"`
	Limit     int                   `json:"limit,omitempty"`
	Offset    int                   `json:"offset,omitempty"`
}

// FundFilter specifies criteria for listing funds.
type FundFilter struct {
	Status model.FundStatus `json:"status,omitempty"`
	Limit  int              `json:"limit,omitempty"`
	Offset int              `json:"offset,omitempty"`
}

// CompanyFilter specifies criteria for listing portfolio companies.
type CompanyFilter struct {
	FundID string              `json:"fund_id,omitempty"`
	Status model.CompanyStatus `json:"status,omitempty"`
	Limit  int                 `json:"limit,omitempty"`
	Offset int                 `json:"offset,omitempty"`
}

// ScenarioFilter specifies criteria for listing saved scenarios.
type ScenarioFilter struct {
	CompanyID string `json:"company_id,omitempty"`
	Limit     int    `json:"limit,omitempty"`
	Offset    int    `json:"offset,omitempty"`
}

// Store defines the persistence interface for funds, companies, documents,
// extractions, metrics, valuations and scenarios.
type Store interface {
	// Funds
	CreateFund(ctx context.Context, f *model.Fund) error
	GetFund(ctx context.Context, id string) (*model.Fund, error)
	ListFunds(ctx context.Context, filter FundFilter) ([]model.Fund, error)
	UpdateFund(ctx context.Context, f *model.Fund) error
	DeleteFund(ctx context.Context, id string) error

	// Portfolio companies
	CreateCompany(ctx context.Context, c *model.Company) error
	GetCompany(ctx context.Context, id string) (*model.Company, error)
	ListCompanies(ctx context.Context, filter CompanyFilter) ([]model.Company, error)
	UpdateCompany(ctx context.Context, c *model.Company) error

	// Documents
	CreateDocument(ctx context.Context, doc *model.Document) error
	GetDocument(ctx context.Context, id string) (*model.Document, error)
	ListDocuments(ctx context.Context, filter DocumentFilter) ([]model.Document, error)
	// UpdateDocument writes doc only if the stored status still equals
	// expected. A lost race returns ErrConflict.
	UpdateDocument(ctx context.Context, doc *model.Document, expected model.ProcessingStatus) error
	DeleteDocument(ctx context.Context, id string) error

	// Extractions
	CreateExtractions(ctx context.Context, extractions []model.Extraction) error
	GetExtraction(ctx context.Context, id string) (*model.Extraction, error)
	ListExtractions(ctx context.Context, documentID string) ([]model.Extraction, error)
	UpdateExtraction(ctx context.Context, e *model.Extraction) error

	// Financial metrics
	CreateMetric(ctx context.Context, m *model.FinancialMetric) error
	ListMetrics(ctx context.Context, filter MetricFilter) ([]model.FinancialMetric, error)

	// Valuations
	CreateValuation(ctx context.Context, v *model.Valuation) error
	GetValuation(ctx context.Context, id string) (*model.Valuation, error)
	ListValuations(ctx context.Context, filter ValuationFilter) ([]model.Valuation, error)
	CreateOverride(ctx context.Context, o *model.ValuationOverride) error
	ListOverrides(ctx context.Context, valuationID string) ([]model.ValuationOverride, error)

	// Scenarios
	CreateScenario(ctx context.Context, sc *model.Scenario) error
	ListScenarios(ctx context.Context, filter ScenarioFilter) ([]model.Scenario, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

func limitOrDefault(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	return limit
}

func newID(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}

func marshalMap(m map[string]any) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

func unmarshalMap(b []byte) (map[string]any, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}
