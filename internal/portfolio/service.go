// Package portfolio manages funds and their portfolio companies and rolls
// them up into a portfolio summary.
package portfolio

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sells-group/meridian/internal/model"
	"github.com/sells-group/meridian/internal/store"
)

var (
	// ErrInvalidInput is returned when a fund or company request fails validation.
	ErrInvalidInput = errors.New("invalid portfolio input")
	// ErrFundHasCompanies is returned when deleting a fund that still holds companies.
	ErrFundHasCompanies = errors.New("fund has companies")
)

const (
	minVintageYear = 1990
	maxVintageYear = 2100
	pageSize       = 500
)

// FundRequest creates a fund. Status defaults to active and currency to USD.
type FundRequest struct {
	Name        string             `json:"name"`
	VintageYear int                `json:"vintage_year"`
	Strategy    model.FundStrategy `json:"strategy"`
	AUM         *float64           `json:"aum"`
	Currency    string             `json:"currency"`
	Status      model.FundStatus   `json:"status"`
	Description string             `json:"description"`
}

// FundPatch updates the mutable fields of a fund. Nil fields are left as is.
type FundPatch struct {
	Name        *string           `json:"name"`
	AUM         *float64          `json:"aum"`
	Status      *model.FundStatus `json:"status"`
	Description *string           `json:"description"`
}

// FundDetail is a fund with totals over its companies.
type FundDetail struct {
	model.Fund
	CompanyCount  int     `json:"company_count"`
	TotalInvested float64 `json:"total_invested"`
	TotalValue    float64 `json:"total_value"`
}

// CompanyRequest creates a portfolio company. InvestmentDate is YYYY-MM-DD.
type CompanyRequest struct {
	FundID            string              `json:"fund_id"`
	Name              string              `json:"name"`
	Sector            model.Sector        `json:"sector"`
	Geography         string              `json:"geography"`
	InvestmentDate    string              `json:"investment_date"`
	InitialInvestment *float64            `json:"initial_investment"`
	CurrentValuation  *float64            `json:"current_valuation"`
	OwnershipPct      *float64            `json:"ownership_pct"`
	Currency          string              `json:"currency"`
	Status            model.CompanyStatus `json:"status"`
	Description       string              `json:"description"`
}

// CompanyPatch updates the mutable fields of a company. ExitDate is
// YYYY-MM-DD; an empty string clears it.
type CompanyPatch struct {
	Name             *string              `json:"name"`
	CurrentValuation *float64             `json:"current_valuation"`
	OwnershipPct     *float64             `json:"ownership_pct"`
	Status           *model.CompanyStatus `json:"status"`
	ExitDate         *string              `json:"exit_date"`
	Description      *string              `json:"description"`
}

// CompanyView is a company with its gross multiple.
type CompanyView struct {
	model.Company
	MOIC float64 `json:"moic"`
}

// Breakdown is one bucket of the portfolio by sector or geography.
type Breakdown struct {
	Key   string  `json:"key"`
	Count int     `json:"count"`
	Value float64 `json:"value"`
}

// Summary rolls the whole portfolio up. NAV counts active companies only;
// invested capital counts every company.
type Summary struct {
	TotalNAV           float64       `json:"total_nav"`
	TotalInvested      float64       `json:"total_invested"`
	TotalRealized      float64       `json:"total_realized"`
	UnrealizedGain     float64       `json:"unrealized_gain"`
	GrossMOIC          float64       `json:"gross_moic"`
	FundCount          int           `json:"fund_count"`
	CompanyCount       int           `json:"company_count"`
	ActiveCompanies    int           `json:"active_companies"`
	SectorBreakdown    []Breakdown   `json:"sector_breakdown"`
	GeographyBreakdown []Breakdown   `json:"geography_breakdown"`
	Companies          []CompanyMOIC `json:"companies"`
}

// CompanyMOIC is a single company's line in the summary.
type CompanyMOIC struct {
	ID     string              `json:"id"`
	Name   string              `json:"name"`
	Status model.CompanyStatus `json:"status"`
	MOIC   float64             `json:"moic"`
}

// Service manages funds and companies.
type Service struct {
	store store.Store
}

// NewService creates a Service.
func NewService(st store.Store) *Service {
	return &Service{store: st}
}

// CreateFund validates and stores a fund.
func (s *Service) CreateFund(ctx context.Context, req FundRequest) (*model.Fund, error) {
	var problems []string
	if strings.TrimSpace(req.Name) == "" {
		problems = append(problems, "name is required")
	}
	if req.VintageYear < minVintageYear || req.VintageYear > maxVintageYear {
		problems = append(problems, fmt.Sprintf("vintage_year must be between %d and %d, got %d", minVintageYear, maxVintageYear, req.VintageYear))
	}
	if !req.Strategy.Valid() {
		problems = append(problems, fmt.Sprintf("strategy %q is not recognised", req.Strategy))
	}
	if req.AUM != nil && !nonNegative(*req.AUM) {
		problems = append(problems, "aum must be a finite non-negative amount")
	}
	currency, ok := model.NormalizeCurrency(req.Currency)
	if !ok {
		problems = append(problems, fmt.Sprintf("currency %q is not an ISO 4217 code", req.Currency))
	}
	status := req.Status
	if status == "" {
		status = model.FundActive
	}
	if !status.Valid() {
		problems = append(problems, fmt.Sprintf("status %q is not recognised", req.Status))
	}
	if len(problems) > 0 {
		return nil, eris.Wrap(ErrInvalidInput, strings.Join(problems, "; "))
	}

	f := &model.Fund{
		Name:        strings.TrimSpace(req.Name),
		VintageYear: req.VintageYear,
		Strategy:    req.Strategy,
		AUM:         req.AUM,
		Currency:    currency,
		Status:      status,
		Description: req.Description,
	}
	if err := s.store.CreateFund(ctx, f); err != nil {
		return nil, eris.Wrap(err, "portfolio: create fund")
	}
	zap.L().Info("fund created", zap.String("fund_id", f.ID), zap.String("name", f.Name))
	return f, nil
}

// GetFund returns a fund with totals over its companies.
func (s *Service) GetFund(ctx context.Context, id string) (*FundDetail, error) {
	f, err := s.store.GetFund(ctx, id)
	if err != nil {
		return nil, eris.Wrap(err, "portfolio: get fund")
	}
	companies, err := s.allCompanies(ctx, id)
	if err != nil {
		return nil, err
	}
	invested, value := decimal.Zero, decimal.Zero
	for _, c := range companies {
		invested = invested.Add(decimal.NewFromFloat(c.InitialInvestment))
		value = value.Add(decimal.NewFromFloat(c.CurrentValuation))
	}
	return &FundDetail{
		Fund:          *f,
		CompanyCount:  len(companies),
		TotalInvested: cents(invested),
		TotalValue:    cents(value),
	}, nil
}

// ListFunds returns funds, newest first.
func (s *Service) ListFunds(ctx context.Context, filter store.FundFilter) ([]model.Fund, error) {
	fs, err := s.store.ListFunds(ctx, filter)
	if err != nil {
		return nil, eris.Wrap(err, "portfolio: list funds")
	}
	return fs, nil
}

// UpdateFund applies a patch to a fund.
func (s *Service) UpdateFund(ctx context.Context, id string, p FundPatch) (*model.Fund, error) {
	f, err := s.store.GetFund(ctx, id)
	if err != nil {
		return nil, eris.Wrap(err, "portfolio: update fund")
	}

	var problems []string
	if p.Name != nil {
		if strings.TrimSpace(*p.Name) == "" {
			problems = append(problems, "name must not be empty")
		}
		f.Name = strings.TrimSpace(*p.Name)
	}
	if p.AUM != nil {
		if !nonNegative(*p.AUM) {
			problems = append(problems, "aum must be a finite non-negative amount")
		}
		f.AUM = p.AUM
	}
	if p.Status != nil {
		if !p.Status.Valid() {
			problems = append(problems, fmt.Sprintf("status %q is not recognised", *p.Status))
		}
		f.Status = *p.Status
	}
	if p.Description != nil {
		f.Description = *p.Description
	}
	if len(problems) > 0 {
		return nil, eris.Wrap(ErrInvalidInput, strings.Join(problems, "; "))
	}

	if err := s.store.UpdateFund(ctx, f); err != nil {
		return nil, eris.Wrap(err, "portfolio: update fund")
	}
	return f, nil
}

// DeleteFund removes a fund that holds no companies.
func (s *Service) DeleteFund(ctx context.Context, id string) error {
	if _, err := s.store.GetFund(ctx, id); err != nil {
		return eris.Wrap(err, "portfolio: delete fund")
	}
	held, err := s.store.ListCompanies(ctx, store.CompanyFilter{FundID: id, Limit: 1})
	if err != nil {
		return eris.Wrap(err, "portfolio: delete fund")
	}
	if len(held) > 0 {
		return eris.Wrapf(ErrFundHasCompanies, "portfolio: delete fund %s", id)
	}
	if err := s.store.DeleteFund(ctx, id); err != nil {
		return eris.Wrap(err, "portfolio: delete fund")
	}
	zap.L().Info("fund deleted", zap.String("fund_id", id))
	return nil
}

// CreateCompany validates and stores a company under an existing fund.
func (s *Service) CreateCompany(ctx context.Context, req CompanyRequest) (*CompanyView, error) {
	var problems []string
	if strings.TrimSpace(req.FundID) == "" {
		problems = append(problems, "fund_id is required")
	}
	if strings.TrimSpace(req.Name) == "" {
		problems = append(problems, "name is required")
	}
	if !req.Sector.Valid() {
		problems = append(problems, fmt.Sprintf("sector %q is not recognised", req.Sector))
	}
	if strings.TrimSpace(req.Geography) == "" {
		problems = append(problems, "geography is required")
	}
	invested, err := parseDate(req.InvestmentDate)
	if err != nil {
		problems = append(problems, fmt.Sprintf("investment_date must be YYYY-MM-DD, got %q", req.InvestmentDate))
	}
	if req.InitialInvestment == nil || !positive(*req.InitialInvestment) {
		problems = append(problems, "initial_investment must be greater than 0")
	}
	if req.CurrentValuation == nil || !nonNegative(*req.CurrentValuation) {
		problems = append(problems, "current_valuation must be a finite non-negative amount")
	}
	if req.OwnershipPct == nil || !validOwnership(*req.OwnershipPct) {
		problems = append(problems, "ownership_pct must be in (0, 100]")
	}
	currency, ok := model.NormalizeCurrency(req.Currency)
	if !ok {
		problems = append(problems, fmt.Sprintf("currency %q is not an ISO 4217 code", req.Currency))
	}
	status := req.Status
	if status == "" {
		status = model.CompanyActive
	}
	if !status.Valid() {
		problems = append(problems, fmt.Sprintf("status %q is not recognised", req.Status))
	}
	if len(problems) > 0 {
		return nil, eris.Wrap(ErrInvalidInput, strings.Join(problems, "; "))
	}

	if _, err := s.store.GetFund(ctx, req.FundID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, eris.Wrapf(ErrInvalidInput, "fund %s not found", req.FundID)
		}
		return nil, eris.Wrap(err, "portfolio: create company")
	}

	c := &model.Company{
		FundID:            req.FundID,
		Name:              strings.TrimSpace(req.Name),
		Sector:            req.Sector,
		Geography:         strings.TrimSpace(req.Geography),
		InvestmentDate:    invested,
		InitialInvestment: *req.InitialInvestment,
		CurrentValuation:  *req.CurrentValuation,
		OwnershipPct:      *req.OwnershipPct,
		Currency:          currency,
		Status:            status,
		Description:       req.Description,
	}
	if err := s.store.CreateCompany(ctx, c); err != nil {
		return nil, eris.Wrap(err, "portfolio: create company")
	}
	zap.L().Info("company created",
		zap.String("company_id", c.ID),
		zap.String("fund_id", c.FundID),
		zap.String("name", c.Name),
	)
	return view(c), nil
}

// GetCompany returns a company with its MOIC.
func (s *Service) GetCompany(ctx context.Context, id string) (*CompanyView, error) {
	c, err := s.store.GetCompany(ctx, id)
	if err != nil {
		return nil, eris.Wrap(err, "portfolio: get company")
	}
	return view(c), nil
}

// ListCompanies returns companies matching the filter, newest first.
func (s *Service) ListCompanies(ctx context.Context, filter store.CompanyFilter) ([]CompanyView, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, eris.Wrapf(ErrInvalidInput, "status %q is not recognised", filter.Status)
	}
	cs, err := s.store.ListCompanies(ctx, filter)
	if err != nil {
		return nil, eris.Wrap(err, "portfolio: list companies")
	}
	out := make([]CompanyView, len(cs))
	for i := range cs {
		out[i] = *view(&cs[i])
	}
	return out, nil
}

// UpdateCompany applies a patch to a company.
func (s *Service) UpdateCompany(ctx context.Context, id string, p CompanyPatch) (*CompanyView, error) {
	c, err := s.store.GetCompany(ctx, id)
	if err != nil {
		return nil, eris.Wrap(err, "portfolio: update company")
	}

	var problems []string
	if p.Name != nil {
		if strings.TrimSpace(*p.Name) == "" {
			problems = append(problems, "name must not be empty")
		}
		c.Name = strings.TrimSpace(*p.Name)
	}
	if p.CurrentValuation != nil {
		if !nonNegative(*p.CurrentValuation) {
			problems = append(problems, "current_valuation must be a finite non-negative amount")
		}
		c.CurrentValuation = *p.CurrentValuation
	}
	if p.OwnershipPct != nil {
		if !validOwnership(*p.OwnershipPct) {
			problems = append(problems, "ownership_pct must be in (0, 100]")
		}
		c.OwnershipPct = *p.OwnershipPct
	}
	if p.Status != nil {
		if !p.Status.Valid() {
			problems = append(problems, fmt.Sprintf("status %q is not recognised", *p.Status))
		}
		c.Status = *p.Status
	}
	if p.ExitDate != nil {
		if strings.TrimSpace(*p.ExitDate) == "" {
			c.ExitDate = nil
		} else if exit, err := parseDate(*p.ExitDate); err != nil {
			problems = append(problems, fmt.Sprintf("exit_date must be YYYY-MM-DD, got %q", *p.ExitDate))
		} else if exit.Before(c.InvestmentDate) {
			problems = append(problems, "exit_date must not precede investment_date")
		} else {
			c.ExitDate = &exit
		}
	}
	if p.Description != nil {
		c.Description = *p.Description
	}
	if len(problems) > 0 {
		return nil, eris.Wrap(ErrInvalidInput, strings.Join(problems, "; "))
	}

	if err := s.store.UpdateCompany(ctx, c); err != nil {
		return nil, eris.Wrap(err, "portfolio: update company")
	}
	return view(c), nil
}

// Summary computes NAV, invested capital, gross MOIC and the sector and
// geography breakdowns across every fund.
func (s *Service) Summary(ctx context.Context) (*Summary, error) {
	funds, err := s.allFunds(ctx)
	if err != nil {
		return nil, err
	}
	companies, err := s.allCompanies(ctx, "")
	if err != nil {
		return nil, err
	}

	nav, invested := decimal.Zero, decimal.Zero
	sectors := map[string]*bucket{}
	regions := map[string]*bucket{}
	sum := &Summary{
		FundCount:    len(funds),
		CompanyCount: len(companies),
		Companies:    make([]CompanyMOIC, 0, len(companies)),
	}
	for i := range companies {
		c := &companies[i]
		invested = invested.Add(decimal.NewFromFloat(c.InitialInvestment))
		sum.Companies = append(sum.Companies, CompanyMOIC{ID: c.ID, Name: c.Name, Status: c.Status, MOIC: c.MOIC()})
		if c.Status != model.CompanyActive {
			continue
		}
		value := decimal.NewFromFloat(c.CurrentValuation)
		nav = nav.Add(value)
		sum.ActiveCompanies++
		addTo(sectors, string(c.Sector), value)
		addTo(regions, c.Geography, value)
	}

	sum.TotalNAV = cents(nav)
	sum.TotalInvested = cents(invested)
	sum.UnrealizedGain = cents(nav.Sub(invested))
	if invested.IsPositive() {
		sum.GrossMOIC, _ = nav.Div(invested).Round(2).Float64()
	}
	sum.SectorBreakdown = breakdown(sectors)
	sum.GeographyBreakdown = breakdown(regions)
	return sum, nil
}

func (s *Service) allFunds(ctx context.Context) ([]model.Fund, error) {
	var out []model.Fund
	for offset := 0; ; offset += pageSize {
		page, err := s.store.ListFunds(ctx, store.FundFilter{Limit: pageSize, Offset: offset})
		if err != nil {
			return nil, eris.Wrap(err, "portfolio: list funds")
		}
		out = append(out, page...)
		if len(page) < pageSize {
			return out, nil
		}
	}
}

func (s *Service) allCompanies(ctx context.Context, fundID string) ([]model.Company, error) {
	var out []model.Company
	for offset := 0; ; offset += pageSize {
		page, err := s.store.ListCompanies(ctx, store.CompanyFilter{FundID: fundID, Limit: pageSize, Offset: offset})
		if err != nil {
			return nil, eris.Wrap(err, "portfolio: list companies")
		}
		out = append(out, page...)
		if len(page) < pageSize {
			return out, nil
		}
	}
}

type bucket struct {
	count int
	value decimal.Decimal
}

func addTo(m map[string]*bucket, key string, value decimal.Decimal) {
	b, ok := m[key]
	if !ok {
		b = &bucket{}
		m[key] = b
	}
	b.count++
	b.value = b.value.Add(value)
}

// breakdown orders buckets by value, largest first, then by key.
func breakdown(m map[string]*bucket) []Breakdown {
	out := make([]Breakdown, 0, len(m))
	for k, b := range m {
		out = append(out, Breakdown{Key: k, Count: b.count, Value: cents(b.value)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Value != out[j].Value {
			return out[i].Value > out[j].Value
		}
		return out[i].Key < out[j].Key
	})
	return out
}

func view(c *model.Company) *CompanyView {
	return &CompanyView{Company: *c, MOIC: c.MOIC()}
}

func cents(d decimal.Decimal) float64 {
	f, _ := d.Round(2).Float64()
	return f
}

func parseDate(raw string) (time.Time, error) {
	return time.Parse("2006-01-02", strings.TrimSpace(raw))
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}

func nonNegative(v float64) bool {
	return v >= 0 && !math.IsInf(v, 0)
}

func validOwnership(v float64) bool {
	return v > 0 && v <= 100
}
