package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/sells-group/meridian/internal/model"
	"github.com/sells-group/meridian/internal/valuation"
)

func TestReadInputs(t *testing.T) {
	raw, err := readInputs("")
	require.NoError(t, err)
	assert.Nil(t, raw)

	path := writeFile(t, "inputs.json", `{"base_revenue": 100}`)
	raw, err = readInputs(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"base_revenue": 100}`, string(raw))

	path = writeFile(t, "bad.json", `{"base_revenue":`)
	_, err = readInputs(path)
	assert.Error(t, err)

	_, err = readInputs(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestExportValuation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	v, err := env.Valuations.Create(ctx, valuation.CreateRequest{
		CompanyID: "co-1",
		Method:    model.ValuationDCF,
		Inputs:    []byte(`{"base_revenue": 100000000}`),
	})
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "v.xlsx")
	require.NoError(t, exportValuation(ctx, env.Valuations, v.ID, out))

	f, err := excelize.OpenFile(out)
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck
	assert.Contains(t, f.GetSheetList(), "Summary")

	err = exportValuation(ctx, env.Valuations, "missing", out)
	assert.Error(t, err)
}

func TestFormatValuationList(t *testing.T) {
	ev, mult := 1250000.0, 8.5
	vs := []model.Valuation{
		{
			ID:              "abc12345-6789-0000-0000-000000000000",
			CompanyID:       "co-1",
			Method:          model.ValuationDCF,
			ValuationDate:   time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC),
			EnterpriseValue: &ev,
			ImpliedMultiple: &mult,
			Currency:        "USD",
			Status:          model.ValuationDraft,
		},
	}

	var buf bytes.Buffer
	formatValuationList(&buf, vs)

	output := buf.String()
	assert.Contains(t, output, "METHOD")
	assert.Contains(t, output, "abc12345")
	assert.NotContains(t, output, "abc12345-6789")
	assert.Contains(t, output, "2024-06-30")
	assert.Contains(t, output, "$1,250,000.00")
	assert.Contains(t, output, "8.50x")
	assert.Contains(t, output, "draft")
}

func TestComputeScenario(t *testing.T) {
	res, err := computeScenario([]byte(`{"base_revenue": 100, "initial_investment": 100, "projection_years": 3}`))
	require.NoError(t, err)
	assert.Len(t, res.Projections, 3)

	_, err = computeScenario([]byte(`{"initial_investment": 0}`))
	require.Error(t, err)
	assert.True(t, valuation.IsInvalidInput(err))
}
