package main

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/hazard-proximity-service/internal/adapter/tabular"
	"github.com/couchcryptid/hazard-proximity-service/internal/domain"
)

var nyc = bbox{minLat: 40.4, maxLat: 41.0, minLon: -74.3, maxLon: -73.6}

func TestRun_SampleData(t *testing.T) {
	code := run(options{
		dataDir:   "../../data",
		tracePath: "../../data/mock/driver_trace.json",
		threshold: domain.DefaultThresholdMeters,
		bounds:    nyc,
	})
	assert.Equal(t, 0, code)
}

func TestRun_MissingTrace(t *testing.T) {
	code := run(options{dataDir: "../../data", tracePath: "does-not-exist.json", bounds: nyc})
	assert.Equal(t, 1, code)
}

func TestValidateBounds(t *testing.T) {
	p := validateBounds([]domain.Collection{{Category: domain.CategorySchool, Points: []domain.HazardPoint{
		domain.NewHazardPoint("in", "", 40.7, -73.9),
		domain.NewHazardPoint("out", "", 34.05, -118.24),
		{Name: "null"},
	}}}, nyc)

	require.Len(t, p.errors, 1)
	assert.Contains(t, p.errors[0], `"out"`)
}

func TestValidateDuplicates(t *testing.T) {
	p := validateDuplicates([]domain.Collection{{Category: domain.CategoryPothole, Points: []domain.HazardPoint{
		domain.NewHazardPoint("Pothole", "1 Main St", 40.7, -73.9),
		domain.NewHazardPoint("Pothole", "1 Main St", 40.7, -73.9),
		domain.NewHazardPoint("Pothole", "2 Main St", 40.7, -73.9),
	}}})

	require.Len(t, p.errors, 1)
	assert.Contains(t, p.errors[0], "pothole[1]: duplicates record 0")
}

func TestValidateTrace_Mismatch(t *testing.T) {
	registry := domain.DefaultRegistry()
	collections, err := tabular.LoadDir("../../data", registry)
	require.NoError(t, err)

	raw := json.RawMessage(`{"driver_id":"d1","lat":40.7225,"lon":-73.979}`)
	p := validateTrace([]traceReport{
		{DriverID: "d1", Expect: domain.CategorySchool, Raw: raw},
		{DriverID: "d1", Expect: expectNone, Raw: raw},
		{DriverID: "d2", Expect: expectInvalid, Raw: json.RawMessage(`{"driver_id":"d2","lat":95,"lon":0}`)},
	}, collections, registry, domain.DefaultThresholdMeters)

	require.Len(t, p.errors, 1)
	assert.Contains(t, p.errors[0], `report 1 (d1): outcome "school", fixture expects "none"`)
}
