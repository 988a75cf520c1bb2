package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/meridian/internal/model"
)

func (s *SQLiteStore) CreateFund(ctx context.Context, f *model.Fund) error {
	f.ID = newID(f.ID)
	now := time.Now().UTC()
	f.CreatedAt, f.UpdatedAt = now, now
	if f.Status == "" {
		f.Status = model.FundActive
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO funds (`+fundColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.Name, f.VintageYear, string(f.Strategy), f.AUM, f.Currency, string(f.Status),
		f.Description, f.CreatedAt, f.UpdatedAt,
	)
	return eris.Wrap(err, "sqlite: insert fund")
}

func (s *SQLiteStore) GetFund(ctx context.Context, id string) (*model.Fund, error) {
	f, err := scanFund(s.db.QueryRowContext(ctx, `SELECT `+fundColumns+` FROM funds WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "sqlite: get fund %s", id)
		}
		return nil, eris.Wrapf(err, "sqlite: get fund %s", id)
	}
	return f, nil
}

func (s *SQLiteStore) ListFunds(ctx context.Context, filter FundFilter) ([]model.Fund, error) {
	query := `SELECT ` + fundColumns + ` FROM funds WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, limitOrDefault(filter.Limit), filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list funds")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Fund
	for rows.Next() {
		f, err := scanFund(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan fund")
		}
		out = append(out, *f)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list funds iterate")
}

func (s *SQLiteStore) UpdateFund(ctx context.Context, f *model.Fund) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE funds SET name = ?, aum = ?, status = ?, description = ?, updated_at = ? WHERE id = ?`,
		f.Name, f.AUM, string(f.Status), f.Description, now, f.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update fund %s", f.ID)
	}
	if err := checkRowsAffected(res, "fund", f.ID); err != nil {
		return err
	}
	f.UpdatedAt = now
	return nil
}

func (s *SQLiteStore) DeleteFund(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM funds WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete fund %s", id)
	}
	return checkRowsAffected(res, "fund", id)
}

func (s *SQLiteStore) CreateCompany(ctx context.Context, c *model.Company) error {
	c.ID = newID(c.ID)
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	if c.Status == "" {
		c.Status = model.CompanyActive
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO companies (`+companyColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.FundID, c.Name, string(c.Sector), c.Geography, c.InvestmentDate.UTC(), utcOrNil(c.ExitDate),
		c.InitialInvestment, c.CurrentValuation, c.OwnershipPct, c.Currency, string(c.Status),
		c.Description, c.CreatedAt, c.UpdatedAt,
	)
	return eris.Wrap(err, "sqlite: insert company")
}

func (s *SQLiteStore) GetCompany(ctx context.Context, id string) (*model.Company, error) {
	c, err := scanCompany(s.db.QueryRowContext(ctx, `SELECT `+companyColumns+` FROM companies WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "sqlite: get company %s", id)
		}
		return nil, eris.Wrapf(err, "sqlite: get company %s", id)
	}
	return c, nil
}

func (s *SQLiteStore) ListCompanies(ctx context.Context, filter CompanyFilter) ([]model.Company, error) {
	query := `SELECT ` + companyColumns + ` FROM companies WHERE 1=1`
	var args []any

	if filter.FundID != "" {
		query += ` AND fund_id = ?`
		args = append(args, filter.FundID)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, limitOrDefault(filter.Limit), filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list companies")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Company
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan company")
		}
		out = append(out, *c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list companies iterate")
}

func (s *SQLiteStore) UpdateCompany(ctx context.Context, c *model.Company) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE companies SET name = ?, current_valuation = ?, ownership_pct = ?, status = ?, exit_date = ?,
		 description = ?, updated_at = ? WHERE id = ?`,
		c.Name, c.CurrentValuation, c.OwnershipPct, string(c.Status), utcOrNil(c.ExitDate),
		c.Description, now, c.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update company %s", c.ID)
	}
	if err := checkRowsAffected(res, "company", c.ID); err != nil {
		return err
	}
	c.UpdatedAt = now
	return nil
}

func (s *SQLiteStore) CreateScenario(ctx context.Context, sc *model.Scenario) error {
	sc.ID = newID(sc.ID)
	now := time.Now().UTC()
	sc.CreatedAt, sc.UpdatedAt = now, now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scenarios (`+scenarioColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sc.ID, sc.CompanyID, sc.Name, sc.Description, string(sc.Assumptions), string(sc.Results),
		sc.CreatedBy, sc.CreatedAt, sc.UpdatedAt,
	)
	return eris.Wrap(err, "sqlite: insert scenario")
}

func (s *SQLiteStore) ListScenarios(ctx context.Context, filter ScenarioFilter) ([]model.Scenario, error) {
	query := `SELECT ` + scenarioColumns + ` FROM scenarios WHERE 1=1`
	var args []any

	if filter.CompanyID != "" {
		query += ` AND company_id = ?`
		args = append(args, filter.CompanyID)
	}
	query += ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, limitOrDefault(filter.Limit), filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list scenarios")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Scenario
	for rows.Next() {
		sc, err := scanScenario(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan scenario")
		}
		out = append(out, *sc)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list scenarios iterate")
}

func utcOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
