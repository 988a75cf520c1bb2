package model

import (
	"encoding/json"
	"math"
	"time"
)

// FundStatus is the lifecycle state of a fund.
type FundStatus string

const (
	FundActive      FundStatus = "active"
	FundClosed      FundStatus = "closed"
	FundFundraising FundStatus = "fundraising"
)

// Valid reports whether s is a known fund status.
func (s FundStatus) Valid() bool {
	switch s {
	case FundActive, FundClosed, FundFundraising:
		return true
	}
	return false
}

// FundStrategy is a fund's investment strategy.
type FundStrategy string

const (
	StrategyBuyout         FundStrategy = "buyout"
	StrategyGrowthEquity   FundStrategy = "growth_equity"
	StrategyVentureCapital FundStrategy = "venture_capital"
	StrategyCredit         FundStrategy = "credit"
	StrategyRealAssets     FundStrategy = "real_assets"
	StrategySecondaries    FundStrategy = "secondaries"
)

// Valid reports whether s is a known strategy.
func (s FundStrategy) Valid() bool {
	switch s {
	case StrategyBuyout, StrategyGrowthEquity, StrategyVentureCapital,
		StrategyCredit, StrategyRealAssets, StrategySecondaries:
		return true
	}
	return false
}

// Fund is an investment vehicle holding portfolio companies.
type Fund struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	VintageYear int          `json:"vintage_year"`
	Strategy    FundStrategy `json:"strategy"`
	AUM         *float64     `json:"aum"`
	Currency    string       `json:"currency"`
	Status      FundStatus   `json:"status"`
	Description string       `json:"description,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// CompanyStatus is the holding state of a portfolio company.
type CompanyStatus string

const (
	CompanyActive     CompanyStatus = "active"
	CompanyExited     CompanyStatus = "exited"
	CompanyWrittenOff CompanyStatus = "written_off"
	CompanyMarkedUp   CompanyStatus = "marked_up"
)

// Valid reports whether s is a known company status.
func (s CompanyStatus) Valid() bool {
	switch s {
	case CompanyActive, CompanyExited, CompanyWrittenOff, CompanyMarkedUp:
		return true
	}
	return false
}

// Sector classifies a portfolio company.
type Sector string

const (
	SectorTechnology  Sector = "technology"
	SectorHealthcare  Sector = "healthcare"
	SectorFinancials  Sector = "financials"
	SectorIndustrials Sector = "industrials"
	SectorConsumer    Sector = "consumer"
	SectorEnergy      Sector = "energy"
	SectorRealEstate  Sector = "real_estate"
	SectorMaterials   Sector = "materials"
	SectorTelecom     Sector = "telecom"
	SectorUtilities   Sector = "utilities"
)

// Valid reports whether s is a known sector.
func (s Sector) Valid() bool {
	switch s {
	case SectorTechnology, SectorHealthcare, SectorFinancials, SectorIndustrials, SectorConsumer,
		SectorEnergy, SectorRealEstate, SectorMaterials, SectorTelecom, SectorUtilities:
		return true
	}
	return false
}

// Company is a fund's investment in one portfolio company. OwnershipPct is a
// percentage in (0, 100].
type Company struct {
	ID                string        `json:"id"`
	FundID            string        `json:"fund_id"`
	Name              string        `json:"name"`
	Sector            Sector        `json:"sector"`
	Geography         string        `json:"geography"`
	InvestmentDate    time.Time     `json:"investment_date"`
	ExitDate          *time.Time    `json:"exit_date"`
	InitialInvestment float64       `json:"initial_investment"`
	CurrentValuation  float64       `json:"current_valuation"`
	OwnershipPct      float64       `json:"ownership_pct"`
	Currency          string        `json:"currency"`
	Status            CompanyStatus `json:"status"`
	Description       string        `json:"description,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

// MOIC is current valuation over initial investment, to two places. It is
// zero when nothing was invested.
func (c *Company) MOIC() float64 {
	if c.InitialInvestment <= 0 {
		return 0
	}
	return math.Round(c.CurrentValuation/c.InitialInvestment*100) / 100
}

// Scenario is a saved exit case for a company: the assumptions it was run
// with and the computed results.
type Scenario struct {
	ID          string          `json:"id"`
	CompanyID   string          `json:"company_id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Assumptions json.RawMessage `json:"assumptions"`
	Results     json.RawMessage `json:"results"`
	CreatedBy   string          `json:"created_by"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}
