package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/meridian/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// Per-connection pragmas (foreign_keys, busy_timeout) only hold with a single connection.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS funds (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	vintage_year INTEGER NOT NULL,
	strategy     TEXT NOT NULL,
	aum          REAL,
	currency     TEXT NOT NULL DEFAULT 'USD',
	status       TEXT NOT NULL DEFAULT 'active',
	description  TEXT NOT NULL DEFAULT '',
	created_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_funds_name ON funds(name);

CREATE TABLE IF NOT EXISTS companies (
	id                 TEXT PRIMARY KEY,
	fund_id            TEXT NOT NULL REFERENCES funds(id),
	name               TEXT NOT NULL,
	sector             TEXT NOT NULL,
	geography          TEXT NOT NULL,
	investment_date    DATETIME NOT NULL,
	exit_date          DATETIME,
	initial_investment REAL NOT NULL CHECK (initial_investment > 0),
	current_valuation  REAL NOT NULL CHECK (current_valuation >= 0),
	ownership_pct      REAL NOT NULL CHECK (ownership_pct > 0 AND ownership_pct <= 100),
	currency           TEXT NOT NULL DEFAULT 'USD',
	status             TEXT NOT NULL DEFAULT 'active',
	description        TEXT NOT NULL DEFAULT '',
	created_at         DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at         DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_companies_fund ON companies(fund_id);

CREATE TABLE IF NOT EXISTS documents (
	id                TEXT PRIMARY KEY,
	company_id        TEXT NOT NULL DEFAULT '',
	filename          TEXT NOT NULL,
	file_type         TEXT NOT NULL,
	stored_path       TEXT NOT NULL,
	file_size         INTEGER NOT NULL DEFAULT 0,
	document_type     TEXT NOT NULL DEFAULT '',
	processing_status TEXT NOT NULL DEFAULT 'pending',
	extracted_data    TEXT,
	raw_text          TEXT NOT NULL DEFAULT '',
	page_count        INTEGER NOT NULL DEFAULT 0,
	error_message     TEXT NOT NULL DEFAULT '',
	uploaded_at       DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at        DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_documents_company ON documents(company_id);
CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(processing_status);

CREATE TABLE IF NOT EXISTS extractions (
	id                TEXT PRIMARY KEY,
	document_id       TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	field_name        TEXT NOT NULL,
	field_value       TEXT NOT NULL DEFAULT '',
	field_type        TEXT NOT NULL DEFAULT 'string',
	confidence_score  REAL NOT NULL CHECK (confidence_score >= 0 AND confidence_score <= 1),
	extraction_method TEXT NOT NULL,
	context_snippet   TEXT NOT NULL DEFAULT '',
	validated         BOOLEAN NOT NULL DEFAULT 0,
	validated_by      TEXT NOT NULL DEFAULT '',
	created_at        DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_extractions_document ON extractions(document_id);

CREATE TABLE IF NOT EXISTS financial_metrics (
	id          TEXT PRIMARY KEY,
	company_id  TEXT NOT NULL,
	period_date DATETIME NOT NULL,
	metric_type TEXT NOT NULL,
	value       REAL NOT NULL,
	currency    TEXT NOT NULL DEFAULT 'USD',
	source      TEXT NOT NULL DEFAULT 'reported',
	notes       TEXT NOT NULL DEFAULT '',
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_metrics_company_type_period ON financial_metrics(company_id, metric_type, period_date);

CREATE TABLE IF NOT EXISTS valuations (
	id               TEXT PRIMARY KEY,
	company_id       TEXT NOT NULL,
	valuation_date   DATETIME NOT NULL,
	method           TEXT NOT NULL,
	inputs           TEXT NOT NULL,
	outputs          TEXT NOT NULL,
	enterprise_value REAL,
	equity_value     REAL,
	implied_multiple REAL,
	currency         TEXT NOT NULL DEFAULT 'USD',
	status           TEXT NOT NULL DEFAULT 'draft',
	notes            TEXT NOT NULL DEFAULT '',
	created_by       TEXT NOT NULL DEFAULT '',
	created_at       DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at       DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_valuations_company ON valuations(company_id);

CREATE TABLE IF NOT EXISTS valuation_overrides (
	id             TEXT PRIMARY KEY,
	valuation_id   TEXT NOT NULL REFERENCES valuations(id) ON DELETE CASCADE,
	field_name     TEXT NOT NULL,
	original_value REAL NOT NULL,
	override_value REAL NOT NULL,
	reason         TEXT NOT NULL,
	created_by     TEXT NOT NULL DEFAULT '',
	created_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_overrides_valuation ON valuation_overrides(valuation_id);

CREATE TABLE IF NOT EXISTS scenarios (
	id          TEXT PRIMARY KEY,
	company_id  TEXT NOT NULL,
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	assumptions TEXT NOT NULL,
	results     TEXT NOT NULL,
	created_by  TEXT NOT NULL DEFAULT '',
	created_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_scenarios_company ON scenarios(company_id);
`

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateDocument(ctx context.Context, doc *model.Document) error {
	doc.ID = newID(doc.ID)
	now := time.Now().UTC()
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = now
	}
	doc.UpdatedAt = now
	if doc.Status == "" {
		doc.Status = model.StatusPending
	}

	data, err := marshalMap(doc.ExtractedData)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal extracted data")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (`+documentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.CompanyID, doc.Filename, doc.FileType, doc.StoredPath, doc.Size, string(doc.DocumentType),
		string(doc.Status), nullableText(data), doc.RawText, doc.PageCount, doc.ErrorMessage, doc.UploadedAt, doc.UpdatedAt,
	)
	return eris.Wrap(err, "sqlite: insert document")
}

func (s *SQLiteStore) GetDocument(ctx context.Context, id string) (*model.Document, error) {
	doc, err := scanDocument(s.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "sqlite: get document %s", id)
		}
		return nil, eris.Wrapf(err, "sqlite: get document %s", id)
	}
	return doc, nil
}

func (s *SQLiteStore) ListDocuments(ctx context.Context, filter DocumentFilter) ([]model.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE 1=1`
	var args []any

	if filter.CompanyID != "" {
		query += ` AND company_id = ?`
		args = append(args, filter.CompanyID)
	}
	if filter.Status != "" {
		query += ` AND processing_status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.DocumentType != "" {
		query += ` AND document_type = ?`
		args = append(args, string(filter.DocumentType))
	}
	query += ` ORDER BY uploaded_at DESC LIMIT ? OFFSET ?`
	args = append(args, limitOrDefault(filter.Limit), filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list documents")
	}
	defer rows.Close() //nolint:errcheck

	var docs []model.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan document")
		}
		docs = append(docs, *doc)
	}
	return docs, eris.Wrap(rows.Err(), "sqlite: list documents iterate")
}

func (s *SQLiteStore) UpdateDocument(ctx context.Context, doc *model.Document, expected model.ProcessingStatus) error {
	data, err := marshalMap(doc.ExtractedData)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal extracted data")
	}
	now := time.Now().UTC()

	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET company_id = ?, document_type = ?, processing_status = ?, extracted_data = ?,
		 raw_text = ?, page_count = ?, error_message = ?, updated_at = ?
		 WHERE id = ? AND processing_status = ?`,
		doc.CompanyID, string(doc.DocumentType), string(doc.Status), nullableText(data),
		doc.RawText, doc.PageCount, doc.ErrorMessage, now, doc.ID, string(expected),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update document %s", doc.ID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n > 0 {
		doc.UpdatedAt = now
		return nil
	}

	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM documents WHERE id = ?)`, doc.ID).Scan(&exists); err != nil {
		return eris.Wrapf(err, "sqlite: check document %s", doc.ID)
	}
	if !exists {
		return eris.Wrapf(ErrNotFound, "sqlite: update document %s", doc.ID)
	}
	return eris.Wrapf(ErrConflict, "sqlite: update document %s from %s", doc.ID, expected)
}

func (s *SQLiteStore) DeleteDocument(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete document %s", id)
	}
	return checkRowsAffected(res, "document", id)
}

// CreateExtractions inserts a batch of extractions in one transaction.
func (s *SQLiteStore) CreateExtractions(ctx context.Context, extractions []model.Extraction) error {
	if len(extractions) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin extractions")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO extractions (id, document_id, field_name, field_value, field_type, confidence_score,
		 extraction_method, context_snippet, validated, validated_by, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare extraction insert")
	}
	defer stmt.Close() //nolint:errcheck

	now := time.Now().UTC()
	for i := range extractions {
		e := &extractions[i]
		e.ID = newID(e.ID)
		if e.CreatedAt.IsZero() {
			e.CreatedAt = now
		}
		if _, err := stmt.ExecContext(ctx, e.ID, e.DocumentID, e.FieldName, e.FieldValue, e.FieldType,
			e.ConfidenceScore, string(e.Method), e.ContextSnippet, e.Validated, e.ValidatedBy, e.CreatedAt); err != nil {
			return eris.Wrapf(err, "sqlite: insert extraction %s", e.FieldName)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit extractions")
}

func (s *SQLiteStore) GetExtraction(ctx context.Context, id string) (*model.Extraction, error) {
	e, err := scanExtraction(s.db.QueryRowContext(ctx, extractionSelect+` WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "sqlite: get extraction %s", id)
		}
		return nil, eris.Wrapf(err, "sqlite: get extraction %s", id)
	}
	return e, nil
}

func (s *SQLiteStore) ListExtractions(ctx context.Context, documentID string) ([]model.Extraction, error) {
	rows, err := s.db.QueryContext(ctx, extractionSelect+` WHERE document_id = ? ORDER BY created_at, field_name`, documentID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list extractions")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Extraction
	for rows.Next() {
		e, err := scanExtraction(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan extraction")
		}
		out = append(out, *e)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list extractions iterate")
}

func (s *SQLiteStore) UpdateExtraction(ctx context.Context, e *model.Extraction) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE extractions SET field_value = ?, confidence_score = ?, extraction_method = ?, validated = ?, validated_by = ? WHERE id = ?`,
		e.FieldValue, e.ConfidenceScore, string(e.Method), e.Validated, e.ValidatedBy, e.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update extraction %s", e.ID)
	}
	return checkRowsAffected(res, "extraction", e.ID)
}

func (s *SQLiteStore) CreateMetric(ctx context.Context, m *model.FinancialMetric) error {
	m.ID = newID(m.ID)
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO financial_metrics (id, company_id, period_date, metric_type, value, currency, source, notes, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.CompanyID, m.PeriodDate.UTC(), string(m.MetricType), m.Value, m.Currency, string(m.Source), m.Notes, m.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert metric")
}

func (s *SQLiteStore) ListMetrics(ctx context.Context, filter MetricFilter) ([]model.FinancialMetric, error) {
	query := `SELECT id, company_id, period_date, metric_type, value, currency, source, notes, created_at FROM financial_metrics WHERE 1=1`
	var args []any

	if filter.CompanyID != "" {
		query += ` AND company_id = ?`
		args = append(args, filter.CompanyID)
	}
	if filter.MetricType != "" {
		query += ` AND metric_type = ?`
		args = append(args, string(filter.MetricType))
	}
	if filter.Start != nil {
		query += ` AND period_date >= ?`
		args = append(args, filter.Start.UTC())
	}
	if filter.End != nil {
		query += ` AND period_date <= ?`
		args = append(args, filter.End.UTC())
	}
	if filter.Ascending {
		query += ` ORDER BY period_date ASC, created_at ASC`
	} else {
		query += ` ORDER BY period_date DESC, created_at DESC`
	}
	query += ` LIMIT ? OFFSET ?`
	args = append(args, limitOrDefault(filter.Limit), filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list metrics")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.FinancialMetric
	for rows.Next() {
		var m model.FinancialMetric
		if err := rows.Scan(&m.ID, &m.CompanyID, &m.PeriodDate, &m.MetricType, &m.Value, &m.Currency, &m.Source, &m.Notes, &m.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan metric")
		}
		out = append(out, m)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list metrics iterate")
}

func (s *SQLiteStore) CreateValuation(ctx context.Context, v *model.Valuation) error {
	v.ID = newID(v.ID)
	now := time.Now().UTC()
	v.CreatedAt, v.UpdatedAt = now, now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO valuations (id, company_id, valuation_date, method, inputs, outputs, enterprise_value, equity_value,
		 implied_multiple, currency, status, notes, created_by, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.CompanyID, v.ValuationDate.UTC(), string(v.Method), string(v.Inputs), string(v.Outputs),
		v.EnterpriseValue, v.EquityValue, v.ImpliedMultiple, v.Currency, string(v.Status), v.Notes,
		v.CreatedBy, v.CreatedAt, v.UpdatedAt,
	)
	return eris.Wrap(err, "sqlite: insert valuation")
}

func (s *SQLiteStore) GetValuation(ctx context.Context, id string) (*model.Valuation, error) {
	v, err := scanValuation(s.db.QueryRowContext(ctx, valuationSelect+` WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "sqlite: get valuation %s", id)
		}
		return nil, eris.Wrapf(err, "sqlite: get valuation %s", id)
	}
	return v, nil
}

func (s *SQLiteStore) ListValuations(ctx context.Context, filter ValuationFilter) ([]model.Valuation, error) {
	query := valuationSelect + ` WHERE 1=1`
	var args []any

	if filter.CompanyID != "" {
		query += ` AND company_id = ?`
		args = append(args, filter.CompanyID)
	}
	if filter.Method != "" {
		query += ` AND method = ?`
		args = append(args, string(filter.Method))
	}
	query += ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, limitOrDefault(filter.Limit), filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list valuations")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Valuation
	for rows.Next() {
		v, err := scanValuation(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan valuation")
		}
		out = append(out, *v)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list valuations iterate")
}

func (s *SQLiteStore) CreateOverride(ctx context.Context, o *model.ValuationOverride) error {
	o.ID = newID(o.ID)
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO valuation_overrides (id, valuation_id, field_name, original_value, override_value, reason, created_by, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.ValuationID, o.FieldName, o.OriginalValue, o.OverrideValue, o.Reason, o.CreatedBy, o.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert override")
}

func (s *SQLiteStore) ListOverrides(ctx context.Context, valuationID string) ([]model.ValuationOverride, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, valuation_id, field_name, original_value, override_value, reason, created_by, created_at
		 FROM valuation_overrides WHERE valuation_id = ? ORDER BY created_at`,
		valuationID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list overrides")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.ValuationOverride
	for rows.Next() {
		var o model.ValuationOverride
		if err := rows.Scan(&o.ID, &o.ValuationID, &o.FieldName, &o.OriginalValue, &o.OverrideValue, &o.Reason, &o.CreatedBy, &o.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan override")
		}
		out = append(out, o)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list overrides iterate")
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

func nullableText(b []byte) any {
	if b == nil {
		return nil
	}
	return string(b)
}
