package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/hazard-proximity-service/internal/domain"
	"github.com/couchcryptid/hazard-proximity-service/internal/warning"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Evaluate a stream of locations read from stdin",
	Long: "Reads one \"lat,lon\" pair per line and prints a warning for each. " +
		"Repeating the previous location reuses its warning instead of composing a new one.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		svc, _, err := loadWarnings(ctx)
		if err != nil {
			return err
		}
		return watch(ctx, svc, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

// Evaluator composes the warning for a point within a session.
type Evaluator interface {
	Evaluate(ctx context.Context, session domain.Session, point domain.Geo, opts warning.Options) (domain.Warning, domain.Session, error)
}

// watch evaluates every location line from in, carrying one session across
// lines. Malformed lines are reported on errOut and skipped.
func watch(ctx context.Context, svc Evaluator, in io.Reader, out, errOut io.Writer) error {
	var session domain.Session
	scanner := bufio.NewScanner(in)
	line := 0
	for scanner.Scan() {
		line++
		if ctx.Err() != nil {
			return nil
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		point, err := parsePoint(text)
		if err != nil {
			fmt.Fprintf(errOut, "line %d: %v\n", line, err)
			continue
		}
		var w domain.Warning
		w, session, err = svc.Evaluate(ctx, session, point, warning.Options{})
		if err != nil {
			fmt.Fprintf(errOut, "line %d: %v\n", line, err)
			continue
		}
		printWarning(out, w, true)
		fmt.Fprintln(out)
	}
	return scanner.Err()
}

// parsePoint accepts "lat,lon" or "lat lon".
func parsePoint(s string) (domain.Geo, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' })
	if len(fields) != 2 {
		return domain.Geo{}, fmt.Errorf("%w: expected \"lat,lon\", got %q", domain.ErrInvalidInput, s)
	}
	lat, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return domain.Geo{}, fmt.Errorf("%w: latitude %q", domain.ErrInvalidInput, fields[0])
	}
	lon, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return domain.Geo{}, fmt.Errorf("%w: longitude %q", domain.ErrInvalidInput, fields[1])
	}
	p := domain.Geo{Lat: lat, Lon: lon}
	return p, p.Validate()
}
