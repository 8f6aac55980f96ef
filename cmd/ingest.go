package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/college-map/internal/census"
	"github.com/sells-group/college-map/internal/fetcher"
	"github.com/sells-group/college-map/internal/ingest"
	"github.com/sells-group/college-map/internal/store"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Load source data into the store",
	Long: `Loads colleges, ZIP coordinates, ACS demographics and ZCTA boundaries.

Boundaries are limited to ZIPs that already have coordinates and demographics,
so run "ingest all" or load zips and demographics first.`,
}

// newIngester wires the fetcher, the Census client and the store.
func newIngester(st store.Store) *ingest.Ingester {
	f := fetcher.New(
		fetcher.HTTPOptions{Limiters: fetcher.DefaultLimiters()},
		fetcher.FTPOptions{Timeout: 5 * time.Minute},
	)
	return ingest.New(st, f, census.NewClient(f, cfg.Census), cfg.Ingest, cfg.Tiger)
}

func ingestStepCmd(step, short string, fileFlag *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   step,
		Short: short,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if fileFlag != nil && *fileFlag != "" {
				switch step {
				case ingest.StepColleges:
					cfg.Ingest.CollegesPath = *fileFlag
				case ingest.StepZIPs:
					cfg.Ingest.ZIPCoordinatesPath = *fileFlag
				}
			}
			if err := cfg.Validate("ingest"); err != nil {
				return err
			}

			st, err := initStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck

			sr, err := newIngester(st).Run(ctx, step)
			if err != nil {
				return err
			}
			formatStepResults(os.Stdout, []ingest.StepResult{sr})
			return nil
		},
	}
	if fileFlag != nil {
		cmd.Flags().StringVar(fileFlag, "file", "", "input file (default from config)")
	}
	return cmd
}

var (
	collegesFile string
	zipsFile     string
)

var ingestAllCmd = &cobra.Command{
	Use:   "all",
	Short: "Run every ingest step in dependency order",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("ingest"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		res, err := newIngester(st).All(ctx)
		if res != nil && len(res.Steps) > 0 {
			formatStepResults(os.Stdout, res.Steps)
		}
		if err != nil {
			return err
		}
		zap.L().Info("ingest complete", zap.String("run_id", res.RunID))
		return nil
	},
}

// formatStepResults writes a table of step results to w.
func formatStepResults(out io.Writer, steps []ingest.StepResult) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "STEP\tROWS\tDURATION")
	_, _ = fmt.Fprintln(w, "----\t----\t--------")
	for _, s := range steps {
		_, _ = fmt.Fprintf(w, "%s\t%d\t%s\n", s.Step, s.Rows, s.Duration.Round(time.Millisecond))
	}
	_ = w.Flush()
}

func init() {
	ingestCmd.AddCommand(
		ingestStepCmd(ingest.StepColleges, "Replace colleges from a CSV or XLSX file", &collegesFile),
		ingestStepCmd(ingest.StepZIPs, "Replace ZIP coordinates from a CSV file", &zipsFile),
		ingestStepCmd(ingest.StepDemographics, "Replace ZIP demographics from the Census ACS API", nil),
		ingestStepCmd(ingest.StepBoundaries, "Upsert ZCTA boundaries for eligible ZIPs", nil),
		ingestAllCmd,
	)
	rootCmd.AddCommand(ingestCmd)
}
