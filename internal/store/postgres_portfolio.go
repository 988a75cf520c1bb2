package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/meridian/internal/model"
)

const (
	fundColumns     = `id, name, vintage_year, strategy, aum, currency, status, description, created_at, updated_at`
	companyColumns  = `id, fund_id, name, sector, geography, investment_date, exit_date, initial_investment, current_valuation, ownership_pct, currency, status, description, created_at, updated_at`
	scenarioColumns = `id, company_id, name, description, assumptions, results, created_by, created_at, updated_at`
)

func (s *PostgresStore) CreateFund(ctx context.Context, f *model.Fund) error {
	f.ID = newID(f.ID)
	now := time.Now().UTC()
	f.CreatedAt, f.UpdatedAt = now, now
	if f.Status == "" {
		f.Status = model.FundActive
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO funds (`+fundColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		f.ID, f.Name, f.VintageYear, string(f.Strategy), f.AUM, f.Currency, string(f.Status),
		f.Description, f.CreatedAt, f.UpdatedAt,
	)
	return eris.Wrap(err, "postgres: insert fund")
}

func (s *PostgresStore) GetFund(ctx context.Context, id string) (*model.Fund, error) {
	f, err := scanFund(s.pool.QueryRow(ctx, `SELECT `+fundColumns+` FROM funds WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "postgres: get fund %s", id)
		}
		return nil, eris.Wrapf(err, "postgres: get fund %s", id)
	}
	return f, nil
}

func (s *PostgresStore) ListFunds(ctx context.Context, filter FundFilter) ([]model.Fund, error) {
	query := `SELECT ` + fundColumns + ` FROM funds WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, argIdx, argIdx+1)
	args = append(args, limitOrDefault(filter.Limit), filter.Offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list funds")
	}
	defer rows.Close()

	var out []model.Fund
	for rows.Next() {
		f, err := scanFund(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan fund")
		}
		out = append(out, *f)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list funds iterate")
}

func (s *PostgresStore) UpdateFund(ctx context.Context, f *model.Fund) error {
	now := time.Now().UTC()
	tag, err := s.pool.Exec(ctx,
		`UPDATE funds SET name = $1, aum = $2, status = $3, description = $4, updated_at = $5 WHERE id = $6`,
		f.Name, f.AUM, string(f.Status), f.Description, now, f.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update fund %s", f.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: update fund %s", f.ID)
	}
	f.UpdatedAt = now
	return nil
}

func (s *PostgresStore) DeleteFund(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM funds WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete fund %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: delete fund %s", id)
	}
	return nil
}

func (s *PostgresStore) CreateCompany(ctx context.Context, c *model.Company) error {
	c.ID = newID(c.ID)
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	if c.Status == "" {
		c.Status = model.CompanyActive
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO companies (`+companyColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		c.ID, c.FundID, c.Name, string(c.Sector), c.Geography, c.InvestmentDate, c.ExitDate,
		c.InitialInvestment, c.CurrentValuation, c.OwnershipPct, c.Currency, string(c.Status),
		c.Description, c.CreatedAt, c.UpdatedAt,
	)
	return eris.Wrap(err, "postgres: insert company")
}

func (s *PostgresStore) GetCompany(ctx context.Context, id string) (*model.Company, error) {
	c, err := scanCompany(s.pool.QueryRow(ctx, `SELECT `+companyColumns+` FROM companies WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "postgres: get company %s", id)
		}
		return nil, eris.Wrapf(err, "postgres: get company %s", id)
	}
	return c, nil
}

func (s *PostgresStore) ListCompanies(ctx context.Context, filter CompanyFilter) ([]model.Company, error) {
	query := `SELECT ` + companyColumns + ` FROM companies WHERE true`
	args := []any{}
	argIdx := 1

	if filter.FundID != "" {
		query += fmt.Sprintf(` AND fund_id = $%d`, argIdx)
		args = append(args, filter.FundID)
		argIdx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, argIdx, argIdx+1)
	args = append(args, limitOrDefault(filter.Limit), filter.Offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list companies")
	}
	defer rows.Close()

	var out []model.Company
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan company")
		}
		out = append(out, *c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list companies iterate")
}

func (s *PostgresStore) UpdateCompany(ctx context.Context, c *model.Company) error {
	now := time.Now().UTC()
	tag, err := s.pool.Exec(ctx,
		`UPDATE companies SET name = $1, current_valuation = $2, ownership_pct = $3, status = $4, exit_date = $5,
		 description = $6, updated_at = $7 WHERE id = $8`,
		c.Name, c.CurrentValuation, c.OwnershipPct, string(c.Status), c.ExitDate, c.Description, now, c.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update company %s", c.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: update company %s", c.ID)
	}
	c.UpdatedAt = now
	return nil
}

func (s *PostgresStore) CreateScenario(ctx context.Context, sc *model.Scenario) error {
	sc.ID = newID(sc.ID)
	now := time.Now().UTC()
	sc.CreatedAt, sc.UpdatedAt = now, now

	_, err := s.pool.Exec(ctx,
		`INSERT INTO scenarios (`+scenarioColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		sc.ID, sc.CompanyID, sc.Name, sc.Description, []byte(sc.Assumptions), []byte(sc.Results),
		sc.CreatedBy, sc.CreatedAt, sc.UpdatedAt,
	)
	return eris.Wrap(err, "postgres: insert scenario")
}

func (s *PostgresStore) ListScenarios(ctx context.Context, filter ScenarioFilter) ([]model.Scenario, error) {
	query := `SELECT ` + scenarioColumns + ` FROM scenarios WHERE true`
	args := []any{}
	argIdx := 1

	if filter.CompanyID != "" {
		query += fmt.Sprintf(` AND company_id = $%d`, argIdx)
		args = append(args, filter.CompanyID)
		argIdx++
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, argIdx, argIdx+1)
	args = append(args, limitOrDefault(filter.Limit), filter.Offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list scenarios")
	}
	defer rows.Close()

	var out []model.Scenario
	for rows.Next() {
		sc, err := scanScenario(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan scenario")
		}
		out = append(out, *sc)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list scenarios iterate")
}

func scanFund(row scannable) (*model.Fund, error) {
	var f model.Fund
	if err := row.Scan(&f.ID, &f.Name, &f.VintageYear, &f.Strategy, &f.AUM, &f.Currency, &f.Status,
		&f.Description, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return nil, err
	}
	return &f, nil
}

func scanCompany(row scannable) (*model.Company, error) {
	var c model.Company
	if err := row.Scan(&c.ID, &c.FundID, &c.Name, &c.Sector, &c.Geography, &c.InvestmentDate, &c.ExitDate,
		&c.InitialInvestment, &c.CurrentValuation, &c.OwnershipPct, &c.Currency, &c.Status,
		&c.Description, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func scanScenario(row scannable) (*model.Scenario, error) {
	var sc model.Scenario
	var assumptions, results []byte
	if err := row.Scan(&sc.ID, &sc.CompanyID, &sc.Name, &sc.Description, &assumptions, &results,
		&sc.CreatedBy, &sc.CreatedAt, &sc.UpdatedAt); err != nil {
		return nil, err
	}
	sc.Assumptions = assumptions
	sc.Results = results
	return &sc, nil
}
