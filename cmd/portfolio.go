package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/meridian/internal/model"
	"github.com/sells-group/meridian/internal/portfolio"
	"github.com/sells-group/meridian/internal/store"
)

var portfolioCmd = &cobra.Command{
	Use:   "portfolio",
	Short: "Inspect funds and portfolio companies",
}

// -- portfolio summary --

var portfolioSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Print NAV, invested capital, MOIC and breakdowns across all funds",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "portfolio")
		if err != nil {
			return err
		}
		defer env.Close()

		sum, err := env.Portfolio.Summary(ctx)
		if err != nil {
			return eris.Wrap(err, "portfolio summary")
		}
		currency, _ := cmd.Flags().GetString("currency")
		formatSummary(os.Stdout, sum, currency)
		return nil
	},
}

// -- portfolio companies --

var portfolioCompaniesCmd = &cobra.Command{
	Use:   "companies",
	Short: "List portfolio companies with their MOIC",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "portfolio")
		if err != nil {
			return err
		}
		defer env.Close()

		fund, _ := cmd.Flags().GetString("fund")
		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")

		cs, err := env.Portfolio.ListCompanies(ctx, store.CompanyFilter{
			FundID: fund,
			Status: model.CompanyStatus(status),
			Limit:  limit,
		})
		if err != nil {
			return eris.Wrap(err, "portfolio companies")
		}
		if len(cs) == 0 {
			fmt.Fprintln(os.Stderr, "No companies found.")
			return nil
		}

		formatCompanyList(os.Stdout, cs)
		return nil
	},
}

func init() {
	portfolioSummaryCmd.Flags().String("currency", "USD", "currency used to display amounts")

	portfolioCompaniesCmd.Flags().String("fund", "", "filter by fund ID")
	portfolioCompaniesCmd.Flags().String("status", "", "filter by status")
	portfolioCompaniesCmd.Flags().Int("limit", 50, "max number of companies to display")

	portfolioCmd.AddCommand(portfolioSummaryCmd)
	portfolioCmd.AddCommand(portfolioCompaniesCmd)
	rootCmd.AddCommand(portfolioCmd)
}

// formatSummary writes the headline figures followed by the sector and
// geography breakdowns.
func formatSummary(out io.Writer, sum *portfolio.Summary, currency string) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Funds\t%d\n", sum.FundCount)
	_, _ = fmt.Fprintf(w, "Companies\t%d (%d active)\n", sum.CompanyCount, sum.ActiveCompanies)
	_, _ = fmt.Fprintf(w, "NAV\t%s\n", model.FormatAmount(sum.TotalNAV, currency))
	_, _ = fmt.Fprintf(w, "Invested\t%s\n", model.FormatAmount(sum.TotalInvested, currency))
	_, _ = fmt.Fprintf(w, "Unrealized gain\t%s\n", model.FormatAmount(sum.UnrealizedGain, currency))
	_, _ = fmt.Fprintf(w, "Gross MOIC\t%.2fx\n", sum.GrossMOIC)

	for _, section := range []struct {
		title string
		rows  []portfolio.Breakdown
	}{
		{"SECTOR", sum.SectorBreakdown},
		{"GEOGRAPHY", sum.GeographyBreakdown},
	} {
		if len(section.rows) == 0 {
			continue
		}
		_, _ = fmt.Fprintf(w, "\n%s\tCOMPANIES\tVALUE\n", section.title)
		for _, b := range section.rows {
			_, _ = fmt.Fprintf(w, "%s\t%d\t%s\n", b.Key, b.Count, model.FormatAmount(b.Value, currency))
		}
	}
	_ = w.Flush()
}

// formatCompanyList writes a tabular list of companies to w.
func formatCompanyList(out io.Writer, cs []portfolio.CompanyView) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tSECTOR\tGEOGRAPHY\tINVESTED\tVALUE\tMOIC\tSTATUS")
	for _, c := range cs {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%.2fx\t%s\n",
			truncateID(c.ID),
			c.Name,
			c.Sector,
			c.Geography,
			model.FormatAmount(c.InitialInvestment, c.Currency),
			model.FormatAmount(c.CurrentValuation, c.Currency),
			c.MOIC,
			c.Status,
		)
	}
	_ = w.Flush()
}
