package mapbox

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/hazard-proximity-service/internal/domain"
)

// --- mock for cache tests ---

type countingGeocoder struct {
	forwardCalls int
	reverseCalls int
	result       domain.GeocodingResult
	err          error
}

func (m *countingGeocoder) ForwardGeocode(_ context.Context, _ string) (domain.GeocodingResult, error) {
	m.forwardCalls++
	return m.result, m.err
}

func (m *countingGeocoder) ReverseGeocode(_ context.Context, _, _ float64) (domain.GeocodingResult, error) {
	m.reverseCalls++
	return m.result, m.err
}

// --- CachedGeocoder tests ---

func TestCachedGeocoder_ForwardCacheHit(t *testing.T) {
	inner := &countingGeocoder{
		result: domain.GeocodingResult{Lat: 40.7128, Lon: -74.006, PlaceName: "8 Henry St", FormattedAddress: "8 Henry St, New York, NY"},
	}
	metrics := testMetrics()
	cached := NewCachedGeocoder(inner, 10, metrics)

	r1, err := cached.ForwardGeocode(context.Background(), "8 Henry St, New York")
	require.NoError(t, err)
	assert.Equal(t, "8 Henry St", r1.PlaceName)

	r2, err := cached.ForwardGeocode(context.Background(), "  8 HENRY st,   new york ")
	require.NoError(t, err)
	assert.Equal(t, "8 Henry St", r2.PlaceName)

	assert.Equal(t, 1, inner.forwardCalls, "should only call inner once")
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.GeocodeCache.WithLabelValues("forward", "hit")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.GeocodeCache.WithLabelValues("forward", "miss")), 0)
}

func TestCachedGeocoder_ReverseCacheHit(t *testing.T) {
	inner := &countingGeocoder{
		result: eastFour,
	}
	cached := NewCachedGeocoder(inner, 10, testMetrics())

	// Positions equal to six decimals share one entry.
	_, err := cached.ReverseGeocode(context.Background(), 40.7225, -73.979)
	require.NoError(t, err)

	r, err := cached.ReverseGeocode(context.Background(), 40.72250004, -73.97899996)
	require.NoError(t, err)
	assert.Equal(t, eastFour.FormattedAddress, r.FormattedAddress)

	assert.Equal(t, 1, inner.reverseCalls, "nearby driver positions should share a cache entry")
}

func TestCachedGeocoder_DifferentKeysMiss(t *testing.T) {
	inner := &countingGeocoder{
		result: fultonSt,
	}
	cached := NewCachedGeocoder(inner, 10, testMetrics())

	_, _ = cached.ForwardGeocode(context.Background(), "1200 Fulton Street")
	_, _ = cached.ForwardGeocode(context.Background(), "1200 Fulton Street, Brooklyn")

	assert.Equal(t, 2, inner.forwardCalls)
}

func TestCachedGeocoder_EmptyAndErrorsNotCached(t *testing.T) {
	inner := &countingGeocoder{}
	cached := NewCachedGeocoder(inner, 10, testMetrics())

	_, _ = cached.ForwardGeocode(context.Background(), "88-12 Queens Blvd")
	_, _ = cached.ForwardGeocode(context.Background(), "88-12 Queens Blvd")
	assert.Equal(t, 2, inner.forwardCalls)

	inner.err = errors.New("mapbox: 503 Service Unavailable")
	_, err := cached.ForwardGeocode(context.Background(), "88-12 Queens Blvd")
	require.Error(t, err)
	assert.Equal(t, 3, inner.forwardCalls)
}

// --- LRU cache unit tests ---

var (
	fultonSt = domain.GeocodingResult{Lat: 40.6782, Lon: -73.9442, FormattedAddress: "1200 Fulton St, Brooklyn, NY"}
	eastFour = domain.GeocodingResult{Lat: 40.7225, Lon: -73.9790, FormattedAddress: "333 E 4th St, New York, NY"}
	times44  = domain.GeocodingResult{Lat: 40.7580, Lon: -73.9855, FormattedAddress: "7th Ave & W 44th St, New York, NY"}
)

func TestLRUCache(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		ops      func(c *lruCache)
		present  map[string]domain.GeocodingResult
		absent   []string
	}{
		{
			name:     "stores and returns results",
			capacity: 3,
			ops: func(c *lruCache) {
				c.put("fwd:1200 fulton street", fultonSt)
				c.put("fwd:333 east 4 street", eastFour)
			},
			present: map[string]domain.GeocodingResult{"fwd:1200 fulton street": fultonSt, "fwd:333 east 4 street": eastFour},
			absent:  []string{"fwd:7 avenue & west 44 street"},
		},
		{
			name:     "evicts least recently stored",
			capacity: 2,
			ops: func(c *lruCache) {
				c.put("fwd:1200 fulton street", fultonSt)
				c.put("fwd:333 east 4 street", eastFour)
				c.put("fwd:7 avenue & west 44 street", times44)
			},
			present: map[string]domain.GeocodingResult{"fwd:7 avenue & west 44 street": times44},
			absent:  []string{"fwd:1200 fulton street"},
		},
		{
			name:     "lookup protects entry from eviction",
			capacity: 2,
			ops: func(c *lruCache) {
				c.put("fwd:1200 fulton street", fultonSt)
				c.put("rev:40.722500,-73.979000", eastFour)
				c.get("fwd:1200 fulton street")
				c.put("fwd:7 avenue & west 44 street", times44)
			},
			present: map[string]domain.GeocodingResult{"fwd:1200 fulton street": fultonSt},
			absent:  []string{"rev:40.722500,-73.979000"},
		},
		{
			name:     "overwrite keeps one entry",
			capacity: 2,
			ops: func(c *lruCache) {
				c.put("fwd:1200 fulton street", eastFour)
				c.put("fwd:1200 fulton street", fultonSt)
			},
			present: map[string]domain.GeocodingResult{"fwd:1200 fulton street": fultonSt},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newLRUCache(tt.capacity)
			tt.ops(c)

			assert.LessOrEqual(t, c.len(), tt.capacity)
			for key, want := range tt.present {
				got, ok := c.get(key)
				require.True(t, ok, "expected %q cached", key)
				assert.Equal(t, want, got)
			}
			for _, key := range tt.absent {
				_, ok := c.get(key)
				assert.False(t, ok, "expected %q not cached", key)
			}
		})
	}
}

func TestLRUCache_OverwriteDoesNotGrow(t *testing.T) {
	c := newLRUCache(2)
	c.put("fwd:1200 fulton street", fultonSt)
	c.put("fwd:1200 fulton street", fultonSt)
	assert.Equal(t, 1, c.len())
}
