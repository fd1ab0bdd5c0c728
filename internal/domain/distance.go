package domain

import (
	"fmt"
	"math"
	"strings"

	"github.com/tidwall/geodesic"
)

// DistanceFunc returns the surface distance in meters between two points.
type DistanceFunc func(a, b Geo) float64

// Formula names accepted by ParseFormula.
const (
	FormulaEllipsoidal = "ellipsoidal"
	FormulaGreatCircle = "great_circle"
)

// meanEarthRadius is the IUGG mean radius in meters.
const meanEarthRadius = 6371008.8

// Ellipsoidal is the WGS-84 geodesic distance (Karney's inverse solution).
func Ellipsoidal(a, b Geo) float64 {
	var s12 float64
	geodesic.WGS84.Inverse(a.Lat, a.Lon, b.Lat, b.Lon, &s12, nil, nil)
	return math.Abs(s12)
}

// GreatCircle is the haversine distance on a sphere of the mean Earth radius.
func GreatCircle(a, b Geo) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * meanEarthRadius * math.Asin(math.Min(1, math.Sqrt(h)))
}

// ParseFormula maps a configured formula name to its DistanceFunc.
func ParseFormula(name string) (DistanceFunc, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", FormulaEllipsoidal, "geodesic":
		return Ellipsoidal, nil
	case FormulaGreatCircle, "haversine":
		return GreatCircle, nil
	default:
		return nil, fmt.Errorf("unknown distance formula %q", name)
	}
}
