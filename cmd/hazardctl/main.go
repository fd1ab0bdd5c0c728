// Command hazardctl resolves the nearest hazard to a point from the terminal
// and downloads the hazard datasets for offline use.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/couchcryptid/hazard-proximity-service/internal/app"
	"github.com/couchcryptid/hazard-proximity-service/internal/catalog"
	"github.com/couchcryptid/hazard-proximity-service/internal/config"
	"github.com/couchcryptid/hazard-proximity-service/internal/observability"
	"github.com/couchcryptid/hazard-proximity-service/internal/warning"
)

var (
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observability.Metrics

	verbose    bool
	dataDir    string
	dataSource string
)

var rootCmd = &cobra.Command{
	Use:          "hazardctl",
	Short:        "Nearest-hazard lookups for delivery drivers",
	Long:         "Loads school construction, demolition and pothole data, finds the hazard nearest to a location and composes a driver warning.",
	SilenceUsage: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		_ = godotenv.Load() // optional .env

		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if dataDir != "" {
			c.DataDir = dataDir
			c.DataSource = config.SourceCSV
		}
		if dataSource != "" {
			c.DataSource = dataSource
		}
		cfg = c
		logger = newLogger(verbose)
		metrics = observability.NewUnregisteredMetrics()
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log progress to stderr")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "directory of <category>.csv or .xlsx tables (implies --source csv)")
	rootCmd.PersistentFlags().StringVar(&dataSource, "source", "", "hazard source: csv or socrata (default DATA_SOURCE)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newLogger writes to stderr so stdout carries only command output.
func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// loadWarnings loads the configured hazard data and wires the warning service.
func loadWarnings(ctx context.Context) (*warning.Service, *catalog.Catalog, error) {
	cat, err := app.NewCatalog(cfg, metrics, logger)
	if err != nil {
		return nil, nil, err
	}
	if err := cat.Load(ctx); err != nil {
		return nil, nil, err
	}
	return app.NewWarningService(cfg, cat, metrics, logger), cat, nil
}
