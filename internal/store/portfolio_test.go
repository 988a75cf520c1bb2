package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/meridian/internal/model"
)

func createTestFund(t *testing.T, st Store, name string) *model.Fund {
	t.Helper()
	f := &model.Fund{Name: name, VintageYear: 2021, Strategy: model.StrategyBuyout, Currency: "USD"}
	require.NoError(t, st.CreateFund(context.Background(), f))
	return f
}

func createTestCompany(t *testing.T, st Store, fundID, name string, status model.CompanyStatus) *model.Company {
	t.Helper()
	c := &model.Company{
		FundID:            fundID,
		Name:              name,
		Sector:            model.SectorTechnology,
		Geography:         "US",
		InvestmentDate:    time.Date(2022, 3, 1, 0, 0, 0, 0, time.UTC),
		InitialInvestment: 10_000_000,
		CurrentValuation:  25_000_000,
		OwnershipPct:      40,
		Currency:          "USD",
		Status:            status,
	}
	require.NoError(t, st.CreateCompany(context.Background(), c))
	return c
}

// --- Funds ---

func TestSQLite_Fund_CRUD(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	f := createTestFund(t, st, "Growth I")
	assert.NotEmpty(t, f.ID)
	assert.Equal(t, model.FundActive, f.Status)

	got, err := st.GetFund(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, "Growth I", got.Name)
	assert.Equal(t, 2021, got.VintageYear)
	assert.Nil(t, got.AUM)

	aum := 500_000_000.0
	got.AUM = &aum
	got.Status = model.FundClosed
	require.NoError(t, st.UpdateFund(ctx, got))

	got, err = st.GetFund(ctx, f.ID)
	require.NoError(t, err)
	require.NotNil(t, got.AUM)
	assert.Equal(t, aum, *got.AUM)
	assert.Equal(t, model.FundClosed, got.Status)

	active, err := st.ListFunds(ctx, FundFilter{Status: model.FundActive})
	require.NoError(t, err)
	assert.Empty(t, active)

	require.NoError(t, st.DeleteFund(ctx, f.ID))
	_, err = st.GetFund(ctx, f.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, errors.Is(st.DeleteFund(ctx, f.ID), ErrNotFound))
	assert.True(t, errors.Is(st.UpdateFund(ctx, &model.Fund{ID: "missing"}), ErrNotFound))
}

func TestSQLite_Fund_DeleteBlockedByCompanies(t *testing.T) {
	st := newTestSQLiteStore(t)
	f := createTestFund(t, st, "Buyout II")
	createTestCompany(t, st, f.ID, "Acme", model.CompanyActive)

	assert.Error(t, st.DeleteFund(context.Background(), f.ID))
}

// --- Companies ---

func TestSQLite_Company_ListFiltersAndUpdate(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	f1 := createTestFund(t, st, "Fund A")
	f2 := createTestFund(t, st, "Fund B")

	a := createTestCompany(t, st, f1.ID, "Acme", "")
	createTestCompany(t, st, f1.ID, "Beta", model.CompanyExited)
	createTestCompany(t, st, f2.ID, "Gamma", model.CompanyActive)
	assert.Equal(t, model.CompanyActive, a.Status)

	inFund, err := st.ListCompanies(ctx, CompanyFilter{FundID: f1.ID})
	require.NoError(t, err)
	assert.Len(t, inFund, 2)

	active, err := st.ListCompanies(ctx, CompanyFilter{FundID: f1.ID, Status: model.CompanyActive})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "Acme", active[0].Name)
	assert.True(t, active[0].InvestmentDate.Equal(a.InvestmentDate))
	assert.Nil(t, active[0].ExitDate)

	exit := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	a.Status = model.CompanyExited
	a.ExitDate = &exit
	a.CurrentValuation = 31_000_000
	require.NoError(t, st.UpdateCompany(ctx, a))

	got, err := st.GetCompany(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CompanyExited, got.Status)
	assert.Equal(t, 31_000_000.0, got.CurrentValuation)
	require.NotNil(t, got.ExitDate)
	assert.True(t, got.ExitDate.Equal(exit))

	_, err = st.GetCompany(ctx, "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSQLite_Company_RejectsInvalidAmounts(t *testing.T) {
	st := newTestSQLiteStore(t)
	f := createTestFund(t, st, "Fund A")

	tests := []struct {
		name string
		mut  func(c *model.Company)
	}{
		{"zero investment", func(c *model.Company) { c.InitialInvestment = 0 }},
		{"negative valuation", func(c *model.Company) { c.CurrentValuation = -1 }},
		{"ownership over 100", func(c *model.Company) { c.OwnershipPct = 101 }},
		{"unknown fund", func(c *model.Company) { c.FundID = "missing" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &model.Company{
				FundID: f.ID, Name: "Bad", Sector: model.SectorEnergy, Geography: "EU",
				InvestmentDate: time.Now().UTC(), InitialInvestment: 1, CurrentValuation: 1, OwnershipPct: 10, Currency: "EUR",
			}
			tt.mut(c)
			assert.Error(t, st.CreateCompany(context.Background(), c))
		})
	}
}

// --- Scenarios ---

func TestSQLite_Scenario_CreateAndList(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	for _, name := range []string{"base", "upside"} {
		sc := &model.Scenario{
			CompanyID:   "co-1",
			Name:        name,
			Assumptions: json.RawMessage(`{"exit_multiple":8}`),
			Results:     json.RawMessage(`{"moic":2.5}`),
			CreatedBy:   "analyst",
		}
		require.NoError(t, st.CreateScenario(ctx, sc))
		assert.NotEmpty(t, sc.ID)
	}
	require.NoError(t, st.CreateScenario(ctx, &model.Scenario{
		CompanyID: "co-2", Name: "other", Assumptions: json.RawMessage(`{}`), Results: json.RawMessage(`{}`),
	}))

	got, err := st.ListScenarios(ctx, ScenarioFilter{CompanyID: "co-1"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.JSONEq(t, `{"exit_multiple":8}`, string(got[0].Assumptions))
	assert.JSONEq(t, `{"moic":2.5}`, string(got[0].Results))

	limited, err := st.ListScenarios(ctx, ScenarioFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

// --- Postgres ---

func TestPostgresStore_GetFund_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM funds WHERE id = \$1`).
		WithArgs("nope").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetFund(context.Background(), "nope")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteFund_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM funds WHERE id = \$1`).
		WithArgs("nope").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	assert.True(t, errors.Is(s.DeleteFund(context.Background(), "nope"), ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateCompany_DefaultsStatus(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	invested := time.Date(2022, 3, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec(`INSERT INTO companies`).
		WithArgs(pgxmock.AnyArg(), "fund-1", "Acme", "technology", "US", invested, pgxmock.AnyArg(),
			10.0, 20.0, 50.0, "USD", "active", "", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	c := &model.Company{
		FundID: "fund-1", Name: "Acme", Sector: model.SectorTechnology, Geography: "US",
		InvestmentDate: invested, InitialInvestment: 10, CurrentValuation: 20, OwnershipPct: 50, Currency: "USD",
	}
	require.NoError(t, s.CreateCompany(context.Background(), c))
	assert.Equal(t, model.CompanyActive, c.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListCompanies_Filters(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM companies WHERE true AND fund_id = \$1 AND status = \$2 ORDER BY created_at DESC LIMIT \$3 OFFSET \$4`).
		WithArgs("fund-1", "active", 100, 0).
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	got, err := s.ListCompanies(context.Background(), CompanyFilter{FundID: "fund-1", Status: model.CompanyActive})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListScenarios(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`FROM scenarios WHERE true AND company_id = \$1`).
		WithArgs("co-1", 100, 0).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "company_id", "name", "description", "assumptions", "results", "created_by", "created_at", "updated_at",
		}).AddRow("sc-1", "co-1", "base", "", []byte(`{"exit_multiple":8}`), []byte(`{"moic":2}`), "analyst", now, now))

	got, err := s.ListScenarios(context.Background(), ScenarioFilter{CompanyID: "co-1"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "base", got[0].Name)
	assert.JSONEq(t, `{"moic":2}`, string(got[0].Results))
	assert.NoError(t, mock.ExpectationsWereMet())
}
