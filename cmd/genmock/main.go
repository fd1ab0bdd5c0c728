// Command genmock reads the hazard tables in a data directory and generates a
// mock driver trace fixture. Reports are placed a short distance from sampled
// hazards, plus a distant and an out-of-range report, and each carries the
// outcome the resolver gives it so cmd/validate can replay the trace.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -data-dir data \
//	  -out data/mock/driver_trace_generated.json \
//	  -per-category 3
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/couchcryptid/hazard-proximity-service/internal/adapter/tabular"
	"github.com/couchcryptid/hazard-proximity-service/internal/domain"
)

var baseTime = time.Date(2026, time.October, 15, 12, 0, 0, 0, time.UTC)

const (
	expectNone    = "none"
	expectInvalid = "invalid"

	metersPerDegreeLat = 111_320.0
)

// report is one fixture entry. Expect holds the actionable category, "none"
// or "invalid".
type report struct {
	DriverID  string    `json:"driver_id"`
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	Timestamp time.Time `json:"timestamp"`
	Expect    string    `json:"expect"`
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	dataDir := flag.String("data-dir", "data", "directory containing <category>.csv hazard tables")
	out := flag.String("out", "", "output path for the driver trace fixture")
	perCategory := flag.Int("per-category", 2, "reports placed near hazards of each category")
	maxOffset := flag.Float64("max-offset", 150, "largest distance in meters between a report and its hazard")
	threshold := flag.Float64("threshold", 500, "proximity threshold in meters")
	seed := flag.Uint64("seed", 42, "random seed")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return errors.New("missing required flag: -out")
	}

	registry := domain.DefaultRegistry()
	collections, err := tabular.LoadDir(*dataDir, registry)
	if err != nil {
		return fmt.Errorf("loading hazard tables: %w", err)
	}

	rng := rand.New(rand.NewPCG(*seed, *seed))
	resolver := domain.NewResolver(domain.Ellipsoidal, registry)
	gate := domain.NewGate(*threshold)

	var points []domain.Geo //nolint:prealloc // depends on located records
	for _, c := range collections {
		sampled := sample(rng, c, *perCategory)
		for _, loc := range sampled {
			points = append(points, offset(rng, loc, *maxOffset))
		}
		log.Printf("%s: %d located, %d sampled", c.Category, c.Located(), len(sampled))
	}
	points = append(points,
		domain.Geo{Lat: 41.5, Lon: -74.5}, // upstate, far from the city tables
		domain.Geo{Lat: 95, Lon: -73.98},  // rejected by validation
	)

	reports := make([]report, 0, len(points))
	for i, p := range points {
		r := report{
			DriverID:  fmt.Sprintf("driver-%02d", i%5+1),
			Lat:       p.Lat,
			Lon:       p.Lon,
			Timestamp: baseTime.Add(time.Duration(i) * 2 * time.Minute),
		}
		r.Expect, err = expectation(resolver, gate, p, collections)
		if err != nil {
			return err
		}
		reports = append(reports, r)
	}

	if err := writeJSON(*out, reports); err != nil {
		return fmt.Errorf("writing trace fixture: %w", err)
	}
	log.Printf("wrote %d reports: %s", len(reports), *out)

	printStats(reports)
	return nil
}

// sample returns up to n located points of c in random order.
func sample(rng *rand.Rand, c domain.Collection, n int) []domain.Geo {
	var located []domain.Geo
	for _, p := range c.Points {
		if p.Location != nil {
			located = append(located, *p.Location)
		}
	}
	rng.Shuffle(len(located), func(i, j int) { located[i], located[j] = located[j], located[i] })
	if len(located) > n {
		located = located[:n]
	}
	return located
}

// offset moves loc up to maxMeters in a random direction.
func offset(rng *rand.Rand, loc domain.Geo, maxMeters float64) domain.Geo {
	dist := rng.Float64() * maxMeters
	bearing := rng.Float64() * 2 * math.Pi
	dLat := dist * math.Cos(bearing) / metersPerDegreeLat
	dLon := dist * math.Sin(bearing) / (metersPerDegreeLat * math.Cos(loc.Lat*math.Pi/180))
	return domain.Geo{
		Lat: math.Round((loc.Lat+dLat)*1e6) / 1e6,
		Lon: math.Round((loc.Lon+dLon)*1e6) / 1e6,
	}
}

func expectation(resolver *domain.Resolver, gate domain.Gate, p domain.Geo, collections []domain.Collection) (string, error) {
	res, ok, err := resolver.Resolve(p, collections)
	if errors.Is(err, domain.ErrInvalidInput) {
		return expectInvalid, nil
	}
	if err != nil {
		return "", err
	}
	if !gate.Actionable(res, ok) {
		return expectNone, nil
	}
	return res.Category, nil
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o600)
}

func printStats(reports []report) {
	counts := map[string]int{}
	for _, r := range reports {
		counts[r.Expect]++
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Println("\n=== Expected outcomes ===")
	for _, k := range keys {
		fmt.Printf("  %-12s %d\n", k, counts[k])
	}
}
