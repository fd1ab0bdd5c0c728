package domain

import "math"

// Resolver finds the hazard nearest to a query point across labelled collections.
// A Resolver holds no mutable state and is safe for concurrent use.
type Resolver struct {
	distance DistanceFunc
	registry *Registry
}

// NewResolver creates a Resolver. A nil distance uses Ellipsoidal; a nil
// registry uses DefaultRegistry.
func NewResolver(distance DistanceFunc, registry *Registry) *Resolver {
	if distance == nil {
		distance = Ellipsoidal
	}
	if registry == nil {
		registry = DefaultRegistry()
	}
	return &Resolver{distance: distance, registry: registry}
}

// Registry returns the category descriptors used for display attributes.
func (r *Resolver) Registry() *Registry {
	return r.registry
}

// Distance returns the resolver's distance between two points.
func (r *Resolver) Distance(a, b Geo) float64 {
	return r.distance(a, b)
}

// Resolve returns the globally nearest located point. ok is false when no
// collection holds a located point. Equal distances keep the earlier record
// within a collection and the earlier collection across collections.
func (r *Resolver) Resolve(point Geo, collections []Collection) (NearestResult, bool, error) {
	if err := point.Validate(); err != nil {
		return NearestResult{}, false, err
	}

	bestColl, bestIdx := -1, -1
	bestDist := math.Inf(1)
	for ci := range collections {
		idx, d := r.nearestIn(point, collections[ci].Points)
		if idx >= 0 && d < bestDist {
			bestColl, bestIdx, bestDist = ci, idx, d
		}
	}
	if bestColl < 0 {
		return NearestResult{}, false, nil
	}
	return r.result(collections[bestColl], bestIdx, bestDist), true, nil
}

// nearestIn returns the index and distance of the first nearest located
// point, or -1 and +Inf when there is none.
func (r *Resolver) nearestIn(point Geo, points []HazardPoint) (int, float64) {
	best := -1
	bestDist := math.Inf(1)
	for i := range points {
		loc := points[i].Location
		if loc == nil {
			continue
		}
		if d := r.distance(point, *loc); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best, bestDist
}

func (r *Resolver) result(c Collection, idx int, dist float64) NearestResult {
	p := c.Points[idx]
	desc, _ := r.registry.Lookup(c.Category)
	return NearestResult{
		Name:           desc.DisplayName(p),
		Address:        desc.DisplayAddress(p),
		DistanceMeters: dist,
		Category:       c.Category,
		Location:       *p.Location,
	}
}
