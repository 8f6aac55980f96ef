package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/college-map/internal/fetcher"
	"github.com/sells-group/college-map/internal/mapview"
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render a filtered map scene from a running backend",
	Long: `Fetches /get_colleges and /get_boundaries from view.base_url, applies the
income and population filters, and writes the resulting scene (viewport,
GeoJSON overlays and table rows) as JSON. --xlsx also writes the table.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if base, _ := cmd.Flags().GetString("base-url"); base != "" {
			cfg.View.BaseURL = base
		}
		if err := cfg.Validate("render"); err != nil {
			return err
		}

		income, _ := cmd.Flags().GetStringSlice("income")
		population, _ := cmd.Flags().GetStringSlice("population")
		showColleges, _ := cmd.Flags().GetBool("colleges")
		outPath, _ := cmd.Flags().GetString("out")
		xlsxPath, _ := cmd.Flags().GetString("xlsx")

		f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{MaxRetries: 1, Timeout: 2 * time.Minute})
		scene := mapview.NewScene()
		v := mapview.New(scene, scene, mapview.NewDatasets(mapview.NewHTTPSource(cfg.View.BaseURL, f)))
		if err := v.Init(); err != nil {
			return err
		}

		filter := mapview.NewFilter(income, population, showColleges)
		if _, err := v.Update(ctx, filter); err != nil {
			return eris.Wrap(err, "render: update view")
		}

		b, err := json.MarshalIndent(scene, "", "  ")
		if err != nil {
			return eris.Wrap(err, "render: encode scene")
		}
		if err := os.WriteFile(outPath, b, 0o644); err != nil {
			return eris.Wrapf(err, "render: write %s", outPath)
		}

		if xlsxPath != "" {
			if err := writeTableXLSX(xlsxPath, scene.Rows()); err != nil {
				return err
			}
		}

		polygons, markers := v.Canvas().Counts()
		zap.L().Info("scene rendered",
			zap.String("out", outPath),
			zap.Int("rows", len(scene.Rows())),
			zap.Int("polygons", polygons),
			zap.Int("markers", markers),
		)
		return nil
	},
}

func writeTableXLSX(path string, rows []mapview.Row) error {
	cells := make([][]string, len(rows))
	for i, r := range rows {
		cells[i] = r.Cells()
	}

	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "render: create %s", path)
	}
	if err := fetcher.WriteXLSX(f, "Colleges", mapview.Columns, cells); err != nil {
		_ = f.Close()
		return err
	}
	return eris.Wrapf(f.Close(), "render: close %s", path)
}

func init() {
	renderCmd.Flags().String("base-url", "", "backend base URL (default from config)")
	renderCmd.Flags().StringSlice("income", nil, "income buckets to show (repeatable)")
	renderCmd.Flags().StringSlice("population", nil, "population buckets to show (repeatable)")
	renderCmd.Flags().Bool("colleges", true, "draw college markers")
	renderCmd.Flags().String("out", "scene.json", "scene output path")
	renderCmd.Flags().String("xlsx", "", "also write the table to this XLSX path")
	rootCmd.AddCommand(renderCmd)
}
