package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/meridian/internal/valuation"
)

var scenarioInputs string

var scenarioCmd = &cobra.Command{
	Use:   "scenario",
	Short: "Compute an exit scenario (MOIC and IRR), optionally saving it against a company",
	RunE: func(cmd *cobra.Command, _ []string) error {
		raw, err := readInputs(scenarioInputs)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		company, _ := cmd.Flags().GetString("company")
		if company == "" {
			res, err := computeScenario(raw)
			if err != nil {
				return err
			}
			return enc.Encode(res)
		}

		ctx := cmd.Context()
		env, err := initEnv(ctx, "valuation")
		if err != nil {
			return err
		}
		defer env.Close()

		name, _ := cmd.Flags().GetString("name")
		description, _ := cmd.Flags().GetString("description")
		sc, err := env.Valuations.SaveScenario(ctx, valuation.ScenarioRequest{
			CompanyID:   company,
			Name:        name,
			Description: description,
			Assumptions: raw,
			CreatedBy:   "cli",
		})
		if err != nil {
			return eris.Wrap(err, "scenario save")
		}
		return enc.Encode(sc)
	},
}

func init() {
	scenarioCmd.Flags().StringVar(&scenarioInputs, "inputs", "", "path to a JSON scenario file (- for stdin)")
	scenarioCmd.Flags().String("company", "", "portfolio company ID; when set the scenario is saved")
	scenarioCmd.Flags().String("name", "", "scenario name, required with --company")
	scenarioCmd.Flags().String("description", "", "free-text description")
	_ = scenarioCmd.MarkFlagRequired("inputs")
	rootCmd.AddCommand(scenarioCmd)
}

func computeScenario(raw json.RawMessage) (*valuation.ScenarioResult, error) {
	in, err := valuation.ParseScenarioInputs(raw)
	if err != nil {
		return nil, eris.Wrap(err, "scenario")
	}
	res, err := valuation.RunScenario(in)
	if err != nil {
		return nil, eris.Wrap(err, "scenario")
	}
	return res, nil
}
