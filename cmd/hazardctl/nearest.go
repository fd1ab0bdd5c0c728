package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/hazard-proximity-service/internal/domain"
	"github.com/couchcryptid/hazard-proximity-service/internal/warning"
)

var (
	nearestLat   float64
	nearestLon   float64
	nearestWarn  bool
	nearestAudio string
	nearestJSON  bool
)

var nearestCmd = &cobra.Command{
	Use:   "nearest",
	Short: "Find the hazard nearest to a location",
	Long:  "Resolves the nearest located hazard across all categories. With --warn, composes the driver warning for it.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if nearestAudio != "" {
			cfg.SpeechEnabled = true
		}
		if !nearestWarn && nearestAudio == "" {
			// The message is not printed, so skip the LLM round trip.
			cfg.AnthropicEnabled = false
		}
		svc, _, err := loadWarnings(ctx)
		if err != nil {
			return err
		}

		point := domain.Geo{Lat: nearestLat, Lon: nearestLon}
		opts := warning.Options{Audio: nearestAudio != "", AudioPath: nearestAudio}
		w, _, err := svc.Evaluate(ctx, domain.Session{}, point, opts)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if nearestJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(w)
		}
		printWarning(out, w, nearestWarn || nearestAudio != "")
		return nil
	},
}

func init() {
	nearestCmd.Flags().Float64Var(&nearestLat, "lat", 0, "latitude in degrees (required)")
	nearestCmd.Flags().Float64Var(&nearestLon, "lon", 0, "longitude in degrees (required)")
	nearestCmd.Flags().BoolVar(&nearestWarn, "warn", false, "print the driver warning for an actionable hazard")
	nearestCmd.Flags().StringVar(&nearestAudio, "audio", "", "write the spoken warning to this MP3 file")
	nearestCmd.Flags().BoolVar(&nearestJSON, "json", false, "print the full result as JSON")
	_ = nearestCmd.MarkFlagRequired("lat")
	_ = nearestCmd.MarkFlagRequired("lon")
	rootCmd.AddCommand(nearestCmd)
}

// printWarning renders w for a terminal. Message and links are included only
// when withMessage is set.
func printWarning(out io.Writer, w domain.Warning, withMessage bool) {
	fmt.Fprintf(out, "Location: %s\n", w.Point)
	if w.Nearest == nil {
		fmt.Fprintln(out, w.Notice)
		return
	}

	n := w.Nearest
	if w.Actionable {
		fmt.Fprintln(out, "HAZARD ALERT")
	} else {
		fmt.Fprintln(out, w.Notice)
		fmt.Fprintln(out, "Nearest hazard:")
	}
	fmt.Fprintf(out, "  Type:     %s\n", titleCase(n.Category))
	fmt.Fprintf(out, "  Name:     %s\n", n.Name)
	fmt.Fprintf(out, "  Address:  %s\n", n.Address)
	fmt.Fprintf(out, "  Distance: %.2fm\n", n.DistanceMeters)

	if !w.Actionable || !withMessage {
		return
	}
	fmt.Fprintf(out, "  Warning:  %s\n", w.Message)
	fmt.Fprintf(out, "  Navigate: %s\n", w.DeepLink)
	if w.AudioPath != "" {
		fmt.Fprintf(out, "  Audio:    %s\n", w.AudioPath)
	}
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
