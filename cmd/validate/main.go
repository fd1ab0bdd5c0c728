// Command validate performs integrity checks on a hazard data directory and a
// driver trace fixture: table schema and coordinate sanity, duplicate
// records, replay of every trace report against its recorded outcome, and
// agreement between the linear and indexed resolvers.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -data-dir data \
//	  -trace data/mock/driver_trace.json
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"math"
	"os"

	"github.com/couchcryptid/hazard-proximity-service/internal/adapter/tabular"
	"github.com/couchcryptid/hazard-proximity-service/internal/domain"
)

const (
	expectNone    = "none"
	expectInvalid = "invalid"

	// parityTolerance absorbs float noise between the two resolvers.
	parityTolerance = 1e-6
)

// bbox is the area every located hazard is expected to fall in.
type bbox struct {
	minLat, maxLat, minLon, maxLon float64
}

func (b bbox) contains(g domain.Geo) bool {
	return g.Lat >= b.minLat && g.Lat <= b.maxLat && g.Lon >= b.minLon && g.Lon <= b.maxLon
}

// traceReport is one entry of the driver trace fixture.
type traceReport struct {
	DriverID string          `json:"driver_id"`
	Expect   string          `json:"expect"`
	Raw      json.RawMessage `json:"-"`
}

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

type options struct {
	dataDir   string
	tracePath string
	threshold float64
	bounds    bbox
}

func main() {
	var opts options
	flag.StringVar(&opts.dataDir, "data-dir", "data", "directory containing <category>.csv hazard tables")
	flag.StringVar(&opts.tracePath, "trace", "", "path to a driver trace fixture")
	flag.Float64Var(&opts.threshold, "threshold", domain.DefaultThresholdMeters, "proximity threshold in meters")
	flag.Float64Var(&opts.bounds.minLat, "min-lat", 40.4, "southern edge of the expected area")
	flag.Float64Var(&opts.bounds.maxLat, "max-lat", 41.0, "northern edge of the expected area")
	flag.Float64Var(&opts.bounds.minLon, "min-lon", -74.3, "western edge of the expected area")
	flag.Float64Var(&opts.bounds.maxLon, "max-lon", -73.6, "eastern edge of the expected area")
	flag.Parse()

	if opts.tracePath == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(opts); code != 0 {
		os.Exit(code)
	}
}

func run(opts options) int {
	fmt.Println("=== Hazard Data Integrity Validation ===")
	fmt.Println()

	registry := domain.DefaultRegistry()
	collections, err := tabular.LoadDir(opts.dataDir, registry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load hazard tables: %v\n", err)
		return 1
	}

	reports, err := loadTrace(opts.tracePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load trace: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateTables(collections, registry),
		validateBounds(collections, opts.bounds),
		validateDuplicates(collections),
		validateTrace(reports, collections, registry, opts.threshold),
		validateParity(reports, collections, registry),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	for _, c := range collections {
		fmt.Printf("%-12s %5d records, %5d located, %5d null coordinates\n",
			c.Category, len(c.Points), c.Located(), len(c.Points)-c.Located())
	}
	fmt.Printf("Trace: %d reports\n", len(reports))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Data loading ──

func loadTrace(path string) ([]traceReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	reports := make([]traceReport, 0, len(raws))
	for i, raw := range raws {
		var r traceReport
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, fmt.Errorf("report %d: %w", i, err)
		}
		r.Raw = raw
		reports = append(reports, r)
	}
	return reports, nil
}

// ── Phase 1: Tables ──

func validateTables(collections []domain.Collection, registry *domain.Registry) *phase {
	p := &phase{name: "Phase 1: Hazard tables"}

	seen := make(map[string]bool, len(collections))
	for _, c := range collections {
		seen[c.Category] = true
		if _, ok := registry.Lookup(c.Category); !ok {
			p.errorf("%s: category is not registered", c.Category)
		}
		if len(c.Points) == 0 {
			p.errorf("%s: table has no records", c.Category)
			continue
		}
		if c.Located() == 0 {
			p.errorf("%s: no record has usable coordinates", c.Category)
		}
		for i, pt := range c.Points {
			if pt.Location == nil {
				continue
			}
			if err := pt.Location.Validate(); err != nil {
				p.errorf("%s[%d]: %v", c.Category, i, err)
			}
		}
	}
	for _, cat := range registry.Categories() {
		if !seen[cat] {
			p.errorf("%s: table missing", cat)
		}
	}

	printPhaseResult(p)
	return p
}

// ── Phase 2: Bounds ──

func validateBounds(collections []domain.Collection, b bbox) *phase {
	p := &phase{name: "Phase 2: Coordinate bounds"}

	for _, c := range collections {
		for i, pt := range c.Points {
			if pt.Location == nil {
				continue
			}
			if !b.contains(*pt.Location) {
				p.errorf("%s[%d] %q: %s outside expected area", c.Category, i, pt.Name, pt.Location)
			}
		}
	}

	printPhaseResult(p)
	return p
}

// ── Phase 3: Duplicates ──

func validateDuplicates(collections []domain.Collection) *phase {
	p := &phase{name: "Phase 3: Duplicate records"}

	for _, c := range collections {
		first := make(map[string]int)
		for i, pt := range c.Points {
			if pt.Location == nil {
				continue
			}
			key := fmt.Sprintf("%s|%s|%s", pt.Name, pt.Address, pt.Location)
			if j, ok := first[key]; ok {
				p.errorf("%s[%d]: duplicates record %d (%q at %s)", c.Category, i, j, pt.Name, pt.Location)
				continue
			}
			first[key] = i
		}
	}

	printPhaseResult(p)
	return p
}

// ── Phase 4: Trace replay ──

func validateTrace(reports []traceReport, collections []domain.Collection, registry *domain.Registry, threshold float64) *phase {
	p := &phase{name: "Phase 4: Trace replay"}

	resolver := domain.NewResolver(domain.Ellipsoidal, registry)
	gate := domain.NewGate(threshold)

	for i, r := range reports {
		got, err := outcome(resolver, gate, r, collections)
		if err != nil {
			p.errorf("report %d (%s): %v", i, r.DriverID, err)
			continue
		}
		if got != r.Expect {
			p.errorf("report %d (%s): outcome %q, fixture expects %q", i, r.DriverID, got, r.Expect)
		}
	}

	printPhaseResult(p)
	return p
}

// outcome parses r the way the stream consumer does and returns the
// actionable category, "none" or "invalid".
func outcome(resolver *domain.Resolver, gate domain.Gate, r traceReport, collections []domain.Collection) (string, error) {
	loc, err := domain.ParseDriverLocation(domain.RawEvent{Value: r.Raw})
	if errors.Is(err, domain.ErrInvalidInput) {
		return expectInvalid, nil
	}
	if err != nil {
		return "", err
	}
	res, ok, err := resolver.Resolve(loc.Point(), collections)
	if err != nil {
		return "", err
	}
	if !gate.Actionable(res, ok) {
		return expectNone, nil
	}
	return res.Category, nil
}

// ── Phase 5: Resolver parity ──

func validateParity(reports []traceReport, collections []domain.Collection, registry *domain.Registry) *phase {
	p := &phase{name: "Phase 5: Linear and indexed resolver parity"}

	var points []domain.Geo
	for _, r := range reports {
		loc, err := domain.ParseDriverLocation(domain.RawEvent{Value: r.Raw})
		if err == nil {
			points = append(points, loc.Point())
		}
	}
	// Every located hazard is also probed directly, where ties are likeliest.
	for _, c := range collections {
		for _, pt := range c.Points {
			if pt.Location != nil {
				points = append(points, *pt.Location)
			}
		}
	}

	for _, formula := range []struct {
		name string
		fn   domain.DistanceFunc
	}{
		{name: "ellipsoidal", fn: domain.Ellipsoidal},
		{name: "great_circle", fn: domain.GreatCircle},
	} {
		resolver := domain.NewResolver(formula.fn, registry)
		index := domain.NewIndexedResolver(resolver, collections)
		for _, pt := range points {
			want, wantOK, err := resolver.Resolve(pt, collections)
			if err != nil {
				p.errorf("%s %s: linear: %v", formula.name, pt, err)
				continue
			}
			got, gotOK, err := index.Nearest(pt)
			if err != nil {
				p.errorf("%s %s: indexed: %v", formula.name, pt, err)
				continue
			}
			if wantOK != gotOK || !sameResult(want, got) {
				p.errorf("%s %s: linear %s %q at %.3fm, indexed %s %q at %.3fm",
					formula.name, pt, want.Category, want.Name, want.DistanceMeters,
					got.Category, got.Name, got.DistanceMeters)
			}
		}
	}

	printPhaseResult(p)
	return p
}

func sameResult(a, b domain.NearestResult) bool {
	return a.Category == b.Category &&
		a.Name == b.Name &&
		a.Address == b.Address &&
		a.Location == b.Location &&
		math.Abs(a.DistanceMeters-b.DistanceMeters) <= parityTolerance
}

func printPhaseResult(p *phase) {
	if p.passed() {
		fmt.Printf("  %s ... ok\n", p.name)
	} else {
		fmt.Printf("  %s ... %d errors\n", p.name, len(p.errors))
	}
}
