package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/hazard-proximity-service/internal/catalog"
	"github.com/couchcryptid/hazard-proximity-service/internal/domain"
	"github.com/couchcryptid/hazard-proximity-service/internal/observability"
	"github.com/couchcryptid/hazard-proximity-service/internal/warning"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"nearest", "watch", "fetch"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_MetricsNotRegistered(t *testing.T) {
	require.NoError(t, rootCmd.PersistentPreRunE(rootCmd, nil))
	require.NotNil(t, metrics)

	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	for _, f := range families {
		assert.False(t, strings.HasPrefix(f.GetName(), "hazard_proximity_"), "unexpected default-registry metric %s", f.GetName())
	}
}

func TestNearestCommand_Flags(t *testing.T) {
	for _, name := range []string{"lat", "lon", "warn", "audio", "json"} {
		require.NotNil(t, nearestCmd.Flags().Lookup(name), "nearest should have --%s", name)
	}
	assert.Equal(t, "data", fetchCmd.Flags().Lookup("out-dir").DefValue)
	assert.Equal(t, "csv", fetchCmd.Flags().Lookup("format").DefValue)
}

func TestParsePoint(t *testing.T) {
	tests := []struct {
		in      string
		want    domain.Geo
		wantErr bool
	}{
		{in: "40.7128,-74.0060", want: domain.Geo{Lat: 40.7128, Lon: -74.0060}},
		{in: "40.7128, -74.0060", want: domain.Geo{Lat: 40.7128, Lon: -74.0060}},
		{in: "40.7128 -74.0060", want: domain.Geo{Lat: 40.7128, Lon: -74.0060}},
		{in: "40.7128", wantErr: true},
		{in: "north,-74", wantErr: true},
		{in: "40.7,west", wantErr: true},
		{in: "95,-74", wantErr: true},
		{in: "1,2,3", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parsePoint(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, domain.ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// countingGenerator counts how often a warning text is composed.
type countingGenerator struct{ calls int }

func (g *countingGenerator) GenerateWarning(_ context.Context, category, address, _ string) (string, error) {
	g.calls++
	return "Slow down near the " + category + " at " + address + ".", nil
}

func testService(t *testing.T, gen domain.MessageGenerator) *warning.Service {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := observability.NewMetricsForTesting()
	cat := catalog.New(catalog.StaticSource{
		{Category: domain.CategorySchool, Points: []domain.HazardPoint{
			domain.NewHazardPoint("PS 1", "8 Henry St", 40.7128, -74.0060),
		}},
	}, nil, false, m, logger)
	require.NoError(t, cat.Load(context.Background()))
	return warning.NewService(cat, domain.NewGate(500), gen, nil, t.TempDir(), m, logger)
}

func TestWatch(t *testing.T) {
	gen := &countingGenerator{}
	svc := testService(t, gen)

	in := strings.NewReader(strings.Join([]string{
		"# driver trace",
		"40.7129,-74.0061",
		"40.7129,-74.0061",
		"",
		"not a point",
		"40.80,-73.95",
	}, "\n"))
	var out, errOut bytes.Buffer

	require.NoError(t, watch(context.Background(), svc, in, &out, &errOut))

	assert.Equal(t, 1, gen.calls, "repeated location replays the previous warning")
	assert.Equal(t, 2, strings.Count(out.String(), "HAZARD ALERT"))
	assert.Contains(t, out.String(), "Slow down near the school at 8 Henry St.")
	assert.Contains(t, out.String(), "No hazards within 500 meters.")
	assert.Contains(t, errOut.String(), "line 5:")
}

func TestPrintWarning(t *testing.T) {
	nearest := &domain.NearestResult{
		Name: "PS 1", Address: "8 Henry St", Category: domain.CategorySchool,
		DistanceMeters: 13.456, Location: domain.Geo{Lat: 40.7128, Lon: -74.006},
	}

	t.Run("actionable with message", func(t *testing.T) {
		var buf bytes.Buffer
		printWarning(&buf, domain.Warning{
			Point:      domain.Geo{Lat: 40.7129, Lon: -74.0061},
			Found:      true,
			Actionable: true,
			Nearest:    nearest,
			Message:    "Careful.",
			DeepLink:   "https://waze.com/ul?ll=40.7128,-74.006&navigate=yes",
		}, true)
		assert.Equal(t, strings.Join([]string{
			"Location: 40.712900,-74.006100",
			"HAZARD ALERT",
			"  Type:     School",
			"  Name:     PS 1",
			"  Address:  8 Henry St",
			"  Distance: 13.46m",
			"  Warning:  Careful.",
			"  Navigate: https://waze.com/ul?ll=40.7128,-74.006&navigate=yes",
			"",
		}, "\n"), buf.String())
	})

	t.Run("no data", func(t *testing.T) {
		var buf bytes.Buffer
		printWarning(&buf, domain.Warning{Notice: "No hazard data available."}, true)
		assert.Equal(t, "Location: 0.000000,0.000000\nNo hazard data available.\n", buf.String())
	})

	t.Run("distant hides message", func(t *testing.T) {
		var buf bytes.Buffer
		printWarning(&buf, domain.Warning{Found: true, Nearest: nearest, Notice: "No hazards within 500 meters."}, true)
		assert.Contains(t, buf.String(), "No hazards within 500 meters.\nNearest hazard:\n")
		assert.NotContains(t, buf.String(), "Warning:")
	})
}
