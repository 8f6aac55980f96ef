package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/college-map/internal/model"
	"github.com/sells-group/college-map/internal/store"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show bucket distributions, ZIP coverage and table summaries",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		return writeStats(ctx, os.Stdout, st)
	},
}

func writeStats(ctx context.Context, out io.Writer, st store.Store) error {
	income, err := st.IncomeDistribution(ctx)
	if err != nil {
		return eris.Wrap(err, "stats: income distribution")
	}
	population, err := st.PopulationDistribution(ctx)
	if err != nil {
		return eris.Wrap(err, "stats: population distribution")
	}
	coverage, err := st.Coverage(ctx)
	if err != nil {
		return eris.Wrap(err, "stats: coverage")
	}
	tables, err := st.Summary(ctx)
	if err != nil {
		return eris.Wrap(err, "stats: summary")
	}

	p := message.NewPrinter(language.English)
	formatDistribution(out, p, "INCOME BUCKET", income)
	_, _ = fmt.Fprintln(out)
	formatDistribution(out, p, "POPULATION BUCKET", population)
	_, _ = fmt.Fprintln(out)
	formatCoverage(out, p, coverage)
	_, _ = fmt.Fprintln(out)
	formatTables(out, p, tables)
	return nil
}

// formatDistribution writes bucket counts with their share of the total.
func formatDistribution(out io.Writer, p *message.Printer, title string, counts []model.BucketCount) {
	var total int64
	for _, c := range counts {
		total += c.Count
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "%s\tZIPS\tPERCENT\n", title)
	for _, c := range counts {
		var pct float64
		if total > 0 {
			pct = float64(c.Count) / float64(total) * 100
		}
		_, _ = p.Fprintf(w, "%s\t%d\t%.1f%%\n", c.Bucket, c.Count, pct)
	}
	_, _ = p.Fprintf(w, "TOTAL\t%d\t\n", total)
	_ = w.Flush()
}

func formatCoverage(out io.Writer, p *message.Printer, c *model.ZIPCoverage) {
	var pct float64
	if c.TotalZIPs > 0 {
		pct = float64(c.WithDemographics) / float64(c.TotalZIPs) * 100
	}
	_, _ = p.Fprintf(out, "ZIP coverage: %d of %d ZIPs have demographics (%.1f%%)\n",
		c.WithDemographics, c.TotalZIPs, pct)
}

func formatTables(out io.Writer, p *message.Printer, tables []model.TableSummary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "TABLE\tROWS\tCOLUMNS")
	for _, t := range tables {
		_, _ = p.Fprintf(w, "%s\t%d\t%s\n", t.Name, t.Rows, strings.Join(t.Columns, ", "))
	}
	_ = w.Flush()
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
