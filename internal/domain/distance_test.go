package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEllipsoidal_KnownArcs(t *testing.T) {
	// One degree of longitude on the equator is a/180*pi on WGS-84.
	assert.InDelta(t, 111319.49079327357, Ellipsoidal(Geo{0, 0}, Geo{0, 1}), 1e-6)
	// One degree of latitude from the equator follows the meridian.
	assert.InDelta(t, 110574.39, Ellipsoidal(Geo{0, 0}, Geo{1, 0}), 0.5)
}

func TestEllipsoidal_SamePointIsZero(t *testing.T) {
	p := Geo{Lat: 40.7, Lon: -73.9}
	assert.Less(t, Ellipsoidal(p, p), 1e-6)
}

func TestEllipsoidal_Symmetric(t *testing.T) {
	a := Geo{Lat: 40.6413, Lon: -73.7781}
	b := Geo{Lat: 40.7769, Lon: -73.8740}
	assert.InDelta(t, Ellipsoidal(a, b), Ellipsoidal(b, a), 1e-6)
}

func TestGreatCircle_OneDegreeOnEquator(t *testing.T) {
	assert.InDelta(t, meanEarthRadius*math.Pi/180, GreatCircle(Geo{0, 0}, Geo{0, 1}), 1e-6)
	assert.Equal(t, 0.0, GreatCircle(Geo{40.7, -73.9}, Geo{40.7, -73.9}))
}

func TestFormulasAgreeWithinHalfPercent(t *testing.T) {
	a := Geo{Lat: 40.7000, Lon: -73.9000}
	b := Geo{Lat: 40.7480, Lon: -73.9860}
	e := Ellipsoidal(a, b)
	g := GreatCircle(a, b)
	assert.InEpsilon(t, e, g, 0.005)
}

func TestParseFormula(t *testing.T) {
	for _, name := range []string{"", "ellipsoidal", "Geodesic", " ELLIPSOIDAL "} {
		f, err := ParseFormula(name)
		require.NoError(t, err, name)
		assert.Equal(t, Ellipsoidal(Geo{0, 0}, Geo{0, 1}), f(Geo{0, 0}, Geo{0, 1}))
	}
	for _, name := range []string{"great_circle", "haversine"} {
		f, err := ParseFormula(name)
		require.NoError(t, err, name)
		assert.Equal(t, GreatCircle(Geo{0, 0}, Geo{0, 1}), f(Geo{0, 0}, Geo{0, 1}))
	}

	_, err := ParseFormula("manhattan")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "manhattan")
}
