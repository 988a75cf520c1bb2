package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/meridian/internal/export"
	"github.com/sells-group/meridian/internal/model"
	"github.com/sells-group/meridian/internal/store"
	"github.com/sells-group/meridian/internal/valuation"
)

var valuationCmd = &cobra.Command{
	Use:   "valuation",
	Short: "Run, list and export valuations",
}

// -- valuation run --

var valuationRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a valuation and store the result",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "valuation")
		if err != nil {
			return err
		}
		defer env.Close()

		company, _ := cmd.Flags().GetString("company")
		method, _ := cmd.Flags().GetString("method")
		inputsPath, _ := cmd.Flags().GetString("inputs")
		date, _ := cmd.Flags().GetString("date")
		currency, _ := cmd.Flags().GetString("currency")
		notes, _ := cmd.Flags().GetString("notes")

		inputs, err := readInputs(inputsPath)
		if err != nil {
			return err
		}

		v, err := env.Valuations.Create(ctx, valuation.CreateRequest{
			CompanyID:     company,
			ValuationDate: date,
			Method:        model.ValuationMethod(method),
			Inputs:        inputs,
			Currency:      currency,
			Notes:         notes,
			CreatedBy:     "cli",
		})
		if err != nil {
			return eris.Wrap(err, "valuation run")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	},
}

// -- valuation list --

var valuationListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored valuations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "valuation")
		if err != nil {
			return err
		}
		defer env.Close()

		company, _ := cmd.Flags().GetString("company")
		method, _ := cmd.Flags().GetString("method")
		limit, _ := cmd.Flags().GetInt("limit")

		vs, err := env.Valuations.List(ctx, store.ValuationFilter{
			CompanyID: company,
			Method:    model.ValuationMethod(method),
			Limit:     limit,
		})
		if err != nil {
			return eris.Wrap(err, "valuation list")
		}
		if len(vs) == 0 {
			fmt.Fprintln(os.Stderr, "No valuations found.")
			return nil
		}

		formatValuationList(os.Stdout, vs)
		return nil
	},
}

// -- valuation export --

var valuationExportCmd = &cobra.Command{
	Use:   "export <valuation-id>",
	Short: "Write a valuation and its overrides to an Excel workbook",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "valuation")
		if err != nil {
			return err
		}
		defer env.Close()

		out, _ := cmd.Flags().GetString("out")
		if out == "" {
			out = "valuation-" + args[0] + ".xlsx"
		}
		if err := exportValuation(ctx, env.Valuations, args[0], out); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Wrote %s\n", out)
		return nil
	},
}

func init() {
	valuationRunCmd.Flags().String("company", "", "company ID")
	valuationRunCmd.Flags().String("method", "dcf", "dcf, comparable_companies, comparable_transactions, sensitivity or weighted_blend")
	valuationRunCmd.Flags().String("inputs", "", "path to a JSON inputs file (- for stdin)")
	valuationRunCmd.Flags().String("date", "", "valuation date, YYYY-MM-DD (default today)")
	valuationRunCmd.Flags().String("currency", "", "ISO currency code (default USD)")
	valuationRunCmd.Flags().String("notes", "", "free-text notes")
	_ = valuationRunCmd.MarkFlagRequired("company")

	valuationListCmd.Flags().String("company", "", "filter by company ID")
	valuationListCmd.Flags().String("method", "", "filter by method")
	valuationListCmd.Flags().Int("limit", 50, "max number of valuations to display")

	valuationExportCmd.Flags().String("out", "", "output path (default valuation-<id>.xlsx)")

	valuationCmd.AddCommand(valuationRunCmd)
	valuationCmd.AddCommand(valuationListCmd)
	valuationCmd.AddCommand(valuationExportCmd)
	rootCmd.AddCommand(valuationCmd)
}

// readInputs loads a JSON inputs document from path, or stdin for "-". An
// empty path means no inputs, so every default applies.
func readInputs(path string) (json.RawMessage, error) {
	var (
		data []byte
		err  error
	)
	switch path {
	case "":
		return nil, nil
	case "-":
		data, err = io.ReadAll(os.Stdin)
	default:
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "read inputs %s", path)
	}
	if !json.Valid(data) {
		return nil, eris.Errorf("inputs %s is not valid JSON", path)
	}
	return json.RawMessage(data), nil
}

// exportValuation writes the workbook for a stored valuation to path.
func exportValuation(ctx context.Context, svc *valuation.Service, id, path string) error {
	v, err := svc.Get(ctx, id)
	if err != nil {
		return eris.Wrap(err, "valuation export")
	}
	overrides, err := svc.ListOverrides(ctx, id)
	if err != nil {
		return eris.Wrap(err, "valuation export")
	}
	data, err := export.ValuationWorkbook(v, overrides)
	if err != nil {
		return eris.Wrap(err, "valuation export")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "valuation export: write %s", path)
	}
	return nil
}

// formatValuationList writes a tabular list of valuations to w.
func formatValuationList(out io.Writer, vs []model.Valuation) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tCOMPANY\tMETHOD\tDATE\tEV\tEQUITY\tMULTIPLE\tSTATUS")
	for _, v := range vs {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			truncateID(v.ID),
			v.CompanyID,
			v.Method,
			v.ValuationDate.Format("2006-01-02"),
			formatAmount(v.EnterpriseValue, v.Currency),
			formatAmount(v.EquityValue, v.Currency),
			formatMultiple(v.ImpliedMultiple),
			v.Status,
		)
	}
	_ = w.Flush()
}

func formatAmount(v *float64, currency string) string {
	if v == nil {
		return "-"
	}
	return model.FormatAmount(*v, currency)
}

func formatMultiple(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2fx", *v)
}
