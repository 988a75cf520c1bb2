package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/meridian/internal/db"
	"github.com/sells-group/meridian/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS funds (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	vintage_year INTEGER NOT NULL,
	strategy     TEXT NOT NULL,
	aum          DOUBLE PRECISION,
	currency     TEXT NOT NULL DEFAULT 'USD',
	status       TEXT NOT NULL DEFAULT 'active',
	description  TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_funds_name ON funds(name);

CREATE TABLE IF NOT EXISTS companies (
	id                 TEXT PRIMARY KEY,
	fund_id            TEXT NOT NULL REFERENCES funds(id),
	name               TEXT NOT NULL,
	sector             TEXT NOT NULL,
	geography          TEXT NOT NULL,
	investment_date    DATE NOT NULL,
	exit_date          DATE,
	initial_investment DOUBLE PRECISION NOT NULL CHECK (initial_investment > 0),
	current_valuation  DOUBLE PRECISION NOT NULL CHECK (current_valuation >= 0),
	ownership_pct      DOUBLE PRECISION NOT NULL CHECK (ownership_pct > 0 AND ownership_pct <= 100),
	currency           TEXT NOT NULL DEFAULT 'USD',
	status             TEXT NOT NULL DEFAULT 'active',
	description        TEXT NOT NULL DEFAULT '',
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_companies_fund ON companies(fund_id);

CREATE TABLE IF NOT EXISTS documents (
	id                TEXT PRIMARY KEY,
	company_id        TEXT NOT NULL DEFAULT '',
	filename          TEXT NOT NULL,
	file_type         TEXT NOT NULL,
	stored_path       TEXT NOT NULL,
	file_size         BIGINT NOT NULL DEFAULT 0,
	document_type     TEXT NOT NULL DEFAULT '',
	processing_status TEXT NOT NULL DEFAULT 'pending',
	extracted_data    JSONB,
	raw_text          TEXT NOT NULL DEFAULT '',
	page_count        INTEGER NOT NULL DEFAULT 0,
	error_message     TEXT NOT NULL DEFAULT '',
	uploaded_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_documents_company ON documents(company_id);
CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(processing_status);

CREATE TABLE IF NOT EXISTS extractions (
	id                TEXT PRIMARY KEY,
	document_id       TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	field_name        TEXT NOT NULL,
	field_value       TEXT NOT NULL DEFAULT '',
	field_type        TEXT NOT NULL DEFAULT 'string',
	confidence_score  DOUBLE PRECISION NOT NULL CHECK (confidence_score >= 0 AND confidence_score <= 1),
	extraction_method TEXT NOT NULL,
	context_snippet   TEXT NOT NULL DEFAULT '',
	validated         BOOLEAN NOT NULL DEFAULT false,
	validated_by      TEXT NOT NULL DEFAULT '',
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_extractions_document ON extractions(document_id);

CREATE TABLE IF NOT EXISTS financial_metrics (
	id          TEXT PRIMARY KEY,
	company_id  TEXT NOT NULL,
	period_date DATE NOT NULL,
	metric_type TEXT NOT NULL,
	value       DOUBLE PRECISION NOT NULL,
	currency    TEXT NOT NULL DEFAULT 'USD',
	source      TEXT NOT NULL DEFAULT 'reported',
	notes       TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_metrics_company_type_period ON financial_metrics(company_id, metric_type, period_date);

CREATE TABLE IF NOT EXISTS valuations (
	id               TEXT PRIMARY KEY,
	company_id       TEXT NOT NULL,
	valuation_date   DATE NOT NULL,
	method           TEXT NOT NULL,
	inputs           JSONB NOT NULL,
	outputs          JSONB NOT NULL,
	enterprise_value DOUBLE PRECISION,
	equity_value     DOUBLE PRECISION,
	implied_multiple DOUBLE PRECISION,
	currency         TEXT NOT NULL DEFAULT 'USD',
	status           TEXT NOT NULL DEFAULT 'draft',
	notes            TEXT NOT NULL DEFAULT '',
	created_by       TEXT NOT NULL DEFAULT '',
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_valuations_company ON valuations(company_id);

CREATE TABLE IF NOT EXISTS valuation_overrides (
	id             TEXT PRIMARY KEY,
	valuation_id   TEXT NOT NULL REFERENCES valuations(id) ON DELETE CASCADE,
	field_name     TEXT NOT NULL,
	original_value DOUBLE PRECISION NOT NULL,
	override_value DOUBLE PRECISION NOT NULL,
	reason         TEXT NOT NULL,
	created_by     TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_overrides_valuation ON valuation_overrides(valuation_id);

CREATE TABLE IF NOT EXISTS scenarios (
	id          TEXT PRIMARY KEY,
	company_id  TEXT NOT NULL,
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	assumptions JSONB NOT NULL,
	results     JSONB NOT NULL,
	created_by  TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_scenarios_company ON scenarios(company_id);
`

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

// Migrate creates the schema if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

const documentColumns = `id, company_id, filename, file_type, stored_path, file_size, document_type, processing_status, extracted_data, raw_text, page_count, error_message, uploaded_at, updated_at`

func (s *PostgresStore) CreateDocument(ctx context.Context, doc *model.Document) error {
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
		return eris.Wrap(err, "postgres: marshal extracted data")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO documents (`+documentColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		doc.ID, doc.CompanyID, doc.Filename, doc.FileType, doc.StoredPath, doc.Size, string(doc.DocumentType),
		string(doc.Status), data, doc.RawText, doc.PageCount, doc.ErrorMessage, doc.UploadedAt, doc.UpdatedAt,
	)
	return eris.Wrap(err, "postgres: insert document")
}

func (s *PostgresStore) GetDocument(ctx context.Context, id string) (*model.Document, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id)
	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "postgres: get document %s", id)
		}
		return nil, eris.Wrapf(err, "postgres: get document %s", id)
	}
	return doc, nil
}

func (s *PostgresStore) ListDocuments(ctx context.Context, filter DocumentFilter) ([]model.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE true`
	args := []any{}
	argIdx := 1

	if filter.CompanyID != "" {
		query += fmt.Sprintf(` AND company_id = $%d`, argIdx)
		args = append(args, filter.CompanyID)
		argIdx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(` AND processing_status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.DocumentType != "" {
		query += fmt.Sprintf(` AND document_type = $%d`, argIdx)
		args = append(args, string(filter.DocumentType))
		argIdx++
	}
	query += fmt.Sprintf(` ORDER BY uploaded_at DESC LIMIT $%d OFFSET $%d`, argIdx, argIdx+1)
	args = append(args, limitOrDefault(filter.Limit), filter.Offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list documents")
	}
	defer rows.Close()

	var docs []model.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan document")
		}
		docs = append(docs, *doc)
	}
	return docs, eris.Wrap(rows.Err(), "postgres: list documents iterate")
}

func (s *PostgresStore) UpdateDocument(ctx context.Context, doc *model.Document, expected model.ProcessingStatus) error {
	data, err := marshalMap(doc.ExtractedData)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal extracted data")
	}
	now := time.Now().UTC()

	tag, err := s.pool.Exec(ctx,
		`UPDATE documents SET company_id = $1, document_type = $2, processing_status = $3, extracted_data = $4,
		 raw_text = $5, page_count = $6, error_message = $7, updated_at = $8
		 WHERE id = $9 AND processing_status = $10`,
		doc.CompanyID, string(doc.DocumentType), string(doc.Status), data,
		doc.RawText, doc.PageCount, doc.ErrorMessage, now, doc.ID, string(expected),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update document %s", doc.ID)
	}
	if tag.RowsAffected() > 0 {
		doc.UpdatedAt = now
		return nil
	}

	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM documents WHERE id = $1)`, doc.ID).Scan(&exists); err != nil {
		return eris.Wrapf(err, "postgres: check document %s", doc.ID)
	}
	if !exists {
		return eris.Wrapf(ErrNotFound, "postgres: update document %s", doc.ID)
	}
	return eris.Wrapf(ErrConflict, "postgres: update document %s from %s", doc.ID, expected)
}

func (s *PostgresStore) DeleteDocument(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete document %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: delete document %s", id)
	}
	return nil
}

var extractionColumns = []string{
	"id", "document_id", "field_name", "field_value", "field_type", "confidence_score",
	"extraction_method", "context_snippet", "validated", "validated_by", "created_at",
}

const extractionSelect = `SELECT id, document_id, field_name, field_value, field_type, confidence_score, extraction_method, context_snippet, validated, validated_by, created_at FROM extractions`

// CreateExtractions bulk-inserts a batch of extractions with COPY.
func (s *PostgresStore) CreateExtractions(ctx context.Context, extractions []model.Extraction) error {
	now := time.Now().UTC()
	rows := make([][]any, 0, len(extractions))
	for i := range extractions {
		e := &extractions[i]
		e.ID = newID(e.ID)
		if e.CreatedAt.IsZero() {
			e.CreatedAt = now
		}
		rows = append(rows, []any{
			e.ID, e.DocumentID, e.FieldName, e.FieldValue, e.FieldType, e.ConfidenceScore,
			string(e.Method), e.ContextSnippet, e.Validated, e.ValidatedBy, e.CreatedAt,
		})
	}
	_, err := db.CopyFrom(ctx, s.pool, "extractions", extractionColumns, rows)
	return eris.Wrap(err, "postgres: insert extractions")
}

func (s *PostgresStore) GetExtraction(ctx context.Context, id string) (*model.Extraction, error) {
	e, err := scanExtraction(s.pool.QueryRow(ctx, extractionSelect+` WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "postgres: get extraction %s", id)
		}
		return nil, eris.Wrapf(err, "postgres: get extraction %s", id)
	}
	return e, nil
}

func (s *PostgresStore) ListExtractions(ctx context.Context, documentID string) ([]model.Extraction, error) {
	rows, err := s.pool.Query(ctx, extractionSelect+` WHERE document_id = $1 ORDER BY created_at, field_name`, documentID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list extractions")
	}
	defer rows.Close()

	var out []model.Extraction
	for rows.Next() {
		e, err := scanExtraction(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan extraction")
		}
		out = append(out, *e)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list extractions iterate")
}

func (s *PostgresStore) UpdateExtraction(ctx context.Context, e *model.Extraction) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE extractions SET field_value = $1, confidence_score = $2, extraction_method = $3, validated = $4, validated_by = $5 WHERE id = $6`,
		e.FieldValue, e.ConfidenceScore, string(e.Method), e.Validated, e.ValidatedBy, e.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update extraction %s", e.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: update extraction %s", e.ID)
	}
	return nil
}

func (s *PostgresStore) CreateMetric(ctx context.Context, m *model.FinancialMetric) error {
	m.ID = newID(m.ID)
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO financial_metrics (id, company_id, period_date, metric_type, value, currency, source, notes, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		m.ID, m.CompanyID, m.PeriodDate, string(m.MetricType), m.Value, m.Currency, string(m.Source), m.Notes, m.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert metric")
}

func (s *PostgresStore) ListMetrics(ctx context.Context, filter MetricFilter) ([]model.FinancialMetric, error) {
	query := `SELECT id, company_id, period_date, metric_type, value, currency, source, notes, created_at FROM financial_metrics WHERE true`
	args := []any{}
	argIdx := 1

	if filter.CompanyID != "" {
		query += fmt.Sprintf(` AND company_id = $%d`, argIdx)
		args = append(args, filter.CompanyID)
		argIdx++
	}
	if filter.MetricType != "" {
		query += fmt.Sprintf(` AND metric_type = $%d`, argIdx)
		args = append(args, string(filter.MetricType))
		argIdx++
	}
	if filter.Start != nil {
		query += fmt.Sprintf(` AND period_date >= $%d`, argIdx)
		args = append(args, *filter.Start)
		argIdx++
	}
	if filter.End != nil {
		query += fmt.Sprintf(` AND period_date <= $%d`, argIdx)
		args = append(args, *filter.End)
		argIdx++
	}
	if filter.Ascending {
		query += ` ORDER BY period_date ASC, created_at ASC`
	} else {
		query += ` ORDER BY period_date DESC, created_at DESC`
	}
	query += fmt.Sprintf(` LIMIT $%d OFFSET $%d`, argIdx, argIdx+1)
	args = append(args, limitOrDefault(filter.Limit), filter.Offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list metrics")
	}
	defer rows.Close()

	var out []model.FinancialMetric
	for rows.Next() {
		var m model.FinancialMetric
		if err := rows.Scan(&m.ID, &m.CompanyID, &m.PeriodDate, &m.MetricType, &m.Value, &m.Currency, &m.Source, &m.Notes, &m.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan metric")
		}
		out = append(out, m)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list metrics iterate")
}

const valuationSelect = `SELECT id, company_id, valuation_date, method, inputs, outputs, enterprise_value, equity_value, implied_multiple, currency, status, notes, created_by, created_at, updated_at FROM valuations`

func (s *PostgresStore) CreateValuation(ctx context.Context, v *model.Valuation) error {
	v.ID = newID(v.ID)
	now := time.Now().UTC()
	v.CreatedAt, v.UpdatedAt = now, now

	_, err := s.pool.Exec(ctx,
		`INSERT INTO valuations (id, company_id, valuation_date, method, inputs, outputs, enterprise_value, equity_value,
		 implied_multiple, currency, status, notes, created_by, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		v.ID, v.CompanyID, v.ValuationDate, string(v.Method), []byte(v.Inputs), []byte(v.Outputs),
		v.EnterpriseValue, v.EquityValue, v.ImpliedMultiple, v.Currency, string(v.Status), v.Notes,
		v.CreatedBy, v.CreatedAt, v.UpdatedAt,
	)
	return eris.Wrap(err, "postgres: insert valuation")
}

func (s *PostgresStore) GetValuation(ctx context.Context, id string) (*model.Valuation, error) {
	v, err := scanValuation(s.pool.QueryRow(ctx, valuationSelect+` WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "postgres: get valuation %s", id)
		}
		return nil, eris.Wrapf(err, "postgres: get valuation %s", id)
	}
	return v, nil
}

func (s *PostgresStore) ListValuations(ctx context.Context, filter ValuationFilter) ([]model.Valuation, error) {
	query := valuationSelect + ` WHERE true`
	args := []any{}
	argIdx := 1

	if filter.CompanyID != "" {
		query += fmt.Sprintf(` AND company_id = $%d`, argIdx)
		args = append(args, filter.CompanyID)
		argIdx++
	}
	if filter.Method != "" {
		query += fmt.Sprintf(` AND method = $%d`, argIdx)
		args = append(args, string(filter.Method))
		argIdx++
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, argIdx, argIdx+1)
	args = append(args, limitOrDefault(filter.Limit), filter.Offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list valuations")
	}
	defer rows.Close()

	var out []model.Valuation
	for rows.Next() {
		v, err := scanValuation(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan valuation")
		}
		out = append(out, *v)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list valuations iterate")
}

func (s *PostgresStore) CreateOverride(ctx context.Context, o *model.ValuationOverride) error {
	o.ID = newID(o.ID)
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO valuation_overrides (id, valuation_id, field_name, original_value, override_value, reason, created_by, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		o.ID, o.ValuationID, o.FieldName, o.OriginalValue, o.OverrideValue, o.Reason, o.CreatedBy, o.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert override")
}

func (s *PostgresStore) ListOverrides(ctx context.Context, valuationID string) ([]model.ValuationOverride, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, valuation_id, field_name, original_value, override_value, reason, created_by, created_at
		 FROM valuation_overrides WHERE valuation_id = $1 ORDER BY created_at`,
		valuationID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list overrides")
	}
	defer rows.Close()

	var out []model.ValuationOverride
	for rows.Next() {
		var o model.ValuationOverride
		if err := rows.Scan(&o.ID, &o.ValuationID, &o.FieldName, &o.OriginalValue, &o.OverrideValue, &o.Reason, &o.CreatedBy, &o.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan override")
		}
		out = append(out, o)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list overrides iterate")
}

type scannable interface {
	Scan(dest ...any) error
}

func scanDocument(row scannable) (*model.Document, error) {
	var d model.Document
	var data []byte
	if err := row.Scan(&d.ID, &d.CompanyID, &d.Filename, &d.FileType, &d.StoredPath, &d.Size, &d.DocumentType,
		&d.Status, &data, &d.RawText, &d.PageCount, &d.ErrorMessage, &d.UploadedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	m, err := unmarshalMap(data)
	if err != nil {
		return nil, eris.Wrap(err, "unmarshal extracted data")
	}
	d.ExtractedData = m
	return &d, nil
}

func scanExtraction(row scannable) (*model.Extraction, error) {
	var e model.Extraction
	if err := row.Scan(&e.ID, &e.DocumentID, &e.FieldName, &e.FieldValue, &e.FieldType, &e.ConfidenceScore,
		&e.Method, &e.ContextSnippet, &e.Validated, &e.ValidatedBy, &e.CreatedAt); err != nil {
		return nil, err
	}
	return &e, nil
}

func scanValuation(row scannable) (*model.Valuation, error) {
	var v model.Valuation
	var inputs, outputs []byte
	if err := row.Scan(&v.ID, &v.CompanyID, &v.ValuationDate, &v.Method, &inputs, &outputs,
		&v.EnterpriseValue, &v.EquityValue, &v.ImpliedMultiple, &v.Currency, &v.Status, &v.Notes,
		&v.CreatedBy, &v.CreatedAt, &v.UpdatedAt); err != nil {
		return nil, err
	}
	v.Inputs = inputs
	v.Outputs = outputs
	return &v, nil
}
