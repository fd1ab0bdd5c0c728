package main

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/hazard-proximity-service/internal/adapter/tabular"
	"github.com/couchcryptid/hazard-proximity-service/internal/domain"
)

func TestOffset_StaysWithinMaxDistance(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 1))
	origin := domain.Geo{Lat: 40.7128, Lon: -74.006}
	for range 200 {
		p := offset(rng, origin, 150)
		// Rounding to six decimals moves a point by at most ~0.15m.
		assert.LessOrEqual(t, domain.Ellipsoidal(origin, p), 152.0)
	}
}

func TestSample_SkipsNullCoordinates(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 1))
	c := domain.Collection{Category: domain.CategoryPothole, Points: []domain.HazardPoint{
		{Name: "no coordinates"},
		domain.NewHazardPoint("a", "", 40.7, -73.9),
		domain.NewHazardPoint("b", "", 40.8, -73.9),
	}}

	assert.Len(t, sample(rng, c, 5), 2)
	assert.Len(t, sample(rng, c, 1), 1)
}

func TestExpectation_SampleData(t *testing.T) {
	registry := domain.DefaultRegistry()
	collections, err := tabular.LoadDir("../../data", registry)
	require.NoError(t, err)
	resolver := domain.NewResolver(domain.Ellipsoidal, registry)
	gate := domain.NewGate(domain.DefaultThresholdMeters)

	tests := []struct {
		name  string
		point domain.Geo
		want  string
	}{
		{name: "near school", point: domain.Geo{Lat: 40.7225, Lon: -73.979}, want: domain.CategorySchool},
		{name: "upstate", point: domain.Geo{Lat: 41.5, Lon: -74.5}, want: expectNone},
		{name: "out of range", point: domain.Geo{Lat: 95, Lon: -73.98}, want: expectInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := expectation(resolver, gate, tt.point, collections)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
