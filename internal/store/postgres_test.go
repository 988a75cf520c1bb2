package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/meridian/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS documents`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateDocument_DefaultsStatus(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO documents`).
		WithArgs(pgxmock.AnyArg(), "co-1", "q3.pdf", "pdf", "/up/x.pdf", int64(10), "financial_statement",
			"pending", pgxmock.AnyArg(), "", 0, "", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	doc := &model.Document{
		CompanyID:    "co-1",
		Filename:     "q3.pdf",
		FileType:     "pdf",
		StoredPath:   "/up/x.pdf",
		Size:         10,
		DocumentType: model.DocTypeFinancialStatement,
	}
	require.NoError(t, s.CreateDocument(context.Background(), doc))
	assert.NotEmpty(t, doc.ID)
	assert.Equal(t, model.StatusPending, doc.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetDocument_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, company_id, filename .* FROM documents WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetDocument(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetDocument(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	rows := pgxmock.NewRows([]string{"id", "company_id", "filename", "file_type", "stored_path", "file_size",
		"document_type", "processing_status", "extracted_data", "raw_text", "page_count", "error_message",
		"uploaded_at", "updated_at"}).
		AddRow("doc-1", "co-1", "q3.pdf", "pdf", "/up/x.pdf", int64(10), model.DocTypeFinancialStatement,
			model.StatusCompleted, []byte(`{"revenue":150}`), "Revenue: 150", 1, "", now, now)

	mock.ExpectQuery(`FROM documents WHERE id = \$1`).WithArgs("doc-1").WillReturnRows(rows)

	doc, err := s.GetDocument(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, doc.Status)
	assert.Equal(t, 150.0, doc.ExtractedData["revenue"])
	assert.Equal(t, "Revenue: 150", doc.RawText)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateDocument_Conflict(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE documents SET .* WHERE id = \$9 AND processing_status = \$10`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "parsing", pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), "doc-1", "pending").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("doc-1").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	doc := &model.Document{ID: "doc-1", Status: model.StatusParsing}
	err := s.UpdateDocument(context.Background(), doc, model.StatusPending)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConflict))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateDocument_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE documents`).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("gone").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))

	err := s.UpdateDocument(context.Background(), &model.Document{ID: "gone", Status: model.StatusParsing}, model.StatusPending)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateDocument_Success(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE documents`).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	doc := &model.Document{ID: "doc-1", Status: model.StatusParsing}
	require.NoError(t, s.UpdateDocument(context.Background(), doc, model.StatusPending))
	assert.False(t, doc.UpdatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateExtractions_UsesCopy(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectCopyFrom(pgx.Identifier{"extractions"}, extractionColumns).WillReturnResult(2)

	ex := []model.Extraction{
		{DocumentID: "doc-1", FieldName: "revenue", FieldValue: "150", FieldType: "number", ConfidenceScore: 0.6, Method: model.MethodRegex},
		{DocumentID: "doc-1", FieldName: "ebitda", FieldValue: "37.5", FieldType: "number", ConfidenceScore: 0.6, Method: model.MethodRegex},
	}
	require.NoError(t, s.CreateExtractions(context.Background(), ex))
	assert.NotEmpty(t, ex[0].ID)
	assert.NotEqual(t, ex[0].ID, ex[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateExtractions_Empty(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	require.NoError(t, s.CreateExtractions(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateExtraction_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE extractions SET`).
		WithArgs("1", 1.0, "manual", true, "analyst", "ex-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateExtraction(context.Background(), &model.Extraction{
		ID: "ex-1", FieldValue: "1", ConfidenceScore: 1, Method: model.MethodManual, Validated: true, ValidatedBy: "analyst",
	})
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListMetrics_Filters(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	period := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)

	rows := pgxmock.NewRows([]string{"id", "company_id", "period_date", "metric_type", "value", "currency", "source", "notes", "created_at"}).
		AddRow("m-1", "co-1", period, model.MetricRevenue, 1000.0, "USD", model.SourceReported, "", period)

	mock.ExpectQuery(`FROM financial_metrics WHERE true AND company_id = \$1 AND metric_type = \$2 AND period_date >= \$3 ORDER BY period_date ASC, created_at ASC LIMIT \$4 OFFSET \$5`).
		WithArgs("co-1", "revenue", start, 100, 0).
		WillReturnRows(rows)

	out, err := s.ListMetrics(context.Background(), MetricFilter{
		CompanyID:  "co-1",
		MetricType: model.MetricRevenue,
		Start:      &start,
		Ascending:  true,
	})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, 1000.0, out[0].Value)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetValuation_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM valuations WHERE id = \$1`).
		WithArgs("nope").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetValuation(context.Background(), "nope")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateOverride(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO valuation_overrides`).
		WithArgs(pgxmock.AnyArg(), "val-1", "enterprise_value", 100.0, 120.0, "board view", "cfo", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	o := &model.ValuationOverride{
		ValuationID: "val-1", FieldName: "enterprise_value", OriginalValue: 100, OverrideValue: 120,
		Reason: "board view", CreatedBy: "cfo",
	}
	require.NoError(t, s.CreateOverride(context.Background(), o))
	assert.NotEmpty(t, o.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
