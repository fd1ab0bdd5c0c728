package domain

import (
	"fmt"
	"math"
)

// Geo represents a WGS-84 latitude/longitude coordinate pair.
type Geo struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Validate returns ErrInvalidInput when either coordinate is non-finite or out of range.
func (g Geo) Validate() error {
	if math.IsNaN(g.Lat) || math.IsInf(g.Lat, 0) || math.IsNaN(g.Lon) || math.IsInf(g.Lon, 0) {
		return fmt.Errorf("%w: non-finite coordinate (%v, %v)", ErrInvalidInput, g.Lat, g.Lon)
	}
	if g.Lat < -90 || g.Lat > 90 {
		return fmt.Errorf("%w: latitude %v outside [-90, 90]", ErrInvalidInput, g.Lat)
	}
	if g.Lon < -180 || g.Lon > 180 {
		return fmt.Errorf("%w: longitude %v outside [-180, 180]", ErrInvalidInput, g.Lon)
	}
	return nil
}

func (g Geo) String() string {
	return fmt.Sprintf("%.6f,%.6f", g.Lat, g.Lon)
}

// HazardPoint is one record of a hazard table. Location is nil when the source
// row had no usable coordinates.
type HazardPoint struct {
	Name     string `json:"name,omitempty"`
	Address  string `json:"address,omitempty"`
	Location *Geo   `json:"location,omitempty"`
}

// NewHazardPoint builds a point, treating non-finite or out-of-range coordinates as null.
func NewHazardPoint(name, address string, lat, lon float64) HazardPoint {
	p := HazardPoint{Name: name, Address: address}
	g := Geo{Lat: lat, Lon: lon}
	if g.Validate() == nil {
		p.Location = &g
	}
	return p
}

// Collection is an ordered hazard table sharing one category.
type Collection struct {
	Category string        `json:"category"`
	Points   []HazardPoint `json:"points"`
}

// Located returns the number of points with usable coordinates.
func (c Collection) Located() int {
	n := 0
	for i := range c.Points {
		if c.Points[i].Location != nil {
			n++
		}
	}
	return n
}

// DropNullCoordinates returns a copy of the collection without null-coordinate points.
func (c Collection) DropNullCoordinates() Collection {
	out := Collection{Category: c.Category, Points: make([]HazardPoint, 0, len(c.Points))}
	for _, p := range c.Points {
		if p.Location != nil {
			out.Points = append(out.Points, p)
		}
	}
	return out
}

// NearestResult is the hazard closest to a query point.
type NearestResult struct {
	Name           string  `json:"name"`
	Address        string  `json:"address"`
	DistanceMeters float64 `json:"distance_meters"`
	Category       string  `json:"category"`
	Location       Geo     `json:"location"`
}
