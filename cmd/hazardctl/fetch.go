package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/hazard-proximity-service/internal/adapter/socrata"
	"github.com/couchcryptid/hazard-proximity-service/internal/adapter/tabular"
	"github.com/couchcryptid/hazard-proximity-service/internal/app"
	"github.com/couchcryptid/hazard-proximity-service/internal/domain"
)

var (
	fetchOutDir string
	fetchFormat string
	fetchStart  string
	fetchEnd    string
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download the hazard datasets from NYC Open Data",
	Long: "Fetches every page of the school construction, demolition and pothole datasets " +
		"and writes one <category> table per dataset, ready for --data-dir.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		start, end := cfg.SocrataStartDate, cfg.SocrataEndDate
		if fetchStart != "" {
			start = fetchStart
		}
		if fetchEnd != "" {
			end = fetchEnd
		}
		window, err := socrata.NewWindow(start, end, cfg.SocrataLookback)
		if err != nil {
			return err
		}

		registry := domain.DefaultRegistry()
		client := app.NewSocrataClient(cfg, registry, metrics, logger)
		collections, err := client.FetchAll(ctx, socrata.DefaultDatasets(), window)
		if err != nil {
			return err
		}
		if err := tabular.SaveDir(fetchOutDir, collections, registry, fetchFormat); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Window: %s to %s\n", window.Start.Format("2006-01-02"), window.End.Format("2006-01-02"))
		for _, c := range collections {
			fmt.Fprintf(out, "%-12s %7d records (%d located)\n", c.Category, len(c.Points), c.Located())
		}
		fmt.Fprintf(out, "Saved to %s\n", fetchOutDir)
		return nil
	},
}

func init() {
	fetchCmd.Flags().StringVar(&fetchOutDir, "out-dir", "data", "directory to write the tables to")
	fetchCmd.Flags().StringVar(&fetchFormat, "format", tabular.FormatCSV, "table format: csv or xlsx")
	fetchCmd.Flags().StringVar(&fetchStart, "start", "", "first creation date, YYYY-MM-DD (default SOCRATA_START_DATE or lookback)")
	fetchCmd.Flags().StringVar(&fetchEnd, "end", "", "last creation date, YYYY-MM-DD (default SOCRATA_END_DATE or today)")
	rootCmd.AddCommand(fetchCmd)
}
