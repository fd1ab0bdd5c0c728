package domain

import (
	"math"
	"sort"

	"github.com/dhconnelly/rtreego"
)

const (
	// minMetersPerDegree is below both the WGS-84 meridional arc per degree
	// (110 574 m at the equator) and the parallel arc per degree of longitude
	// divided by cos(lat) (111 319 m), so boxes built from it never exclude a
	// point within the searched distance.
	minMetersPerDegree = 110_000.0

	boxMargin      = 1.01
	boxPadding     = 1e-9
	pointTolerance = 1e-9

	// maxIndexedSearch bounds the box search; larger distances scan everything.
	maxIndexedSearch = 1_000_000.0
	polarCutoff      = 89.0
)

// IndexedResolver answers the same queries as Resolver.Resolve over a fixed
// set of collections, using an R-tree to narrow the candidates. Results,
// including tie-breaks, are identical to the linear scan.
type IndexedResolver struct {
	resolver    *Resolver
	collections []Collection
	tree        *rtreego.Rtree
	size        int
}

type indexedPoint struct {
	rect rtreego.Rect
	coll int
	idx  int
}

func (p *indexedPoint) Bounds() rtreego.Rect { return p.rect }

// NewIndexedResolver indexes every located point of collections. The
// collections must not be modified while the index is in use.
func NewIndexedResolver(resolver *Resolver, collections []Collection) *IndexedResolver {
	if resolver == nil {
		resolver = NewResolver(nil, nil)
	}
	var objs []rtreego.Spatial
	for ci := range collections {
		for i, p := range collections[ci].Points {
			if p.Location == nil {
				continue
			}
			objs = append(objs, &indexedPoint{
				rect: rtreego.Point{p.Location.Lon, p.Location.Lat}.ToRect(pointTolerance),
				coll: ci,
				idx:  i,
			})
		}
	}
	return &IndexedResolver{
		resolver:    resolver,
		collections: collections,
		tree:        rtreego.NewTree(2, 25, 50, objs...),
		size:        len(objs),
	}
}

// Len returns the number of indexed points.
func (x *IndexedResolver) Len() int { return x.size }

// Nearest returns what x's Resolver would return for Resolve(point, collections).
func (x *IndexedResolver) Nearest(point Geo) (NearestResult, bool, error) {
	if err := point.Validate(); err != nil {
		return NearestResult{}, false, err
	}
	if x.size == 0 {
		return NearestResult{}, false, nil
	}

	seed, ok := x.tree.NearestNeighbor(rtreego.Point{point.Lon, point.Lat}).(*indexedPoint)
	if !ok {
		return x.resolver.Resolve(point, x.collections)
	}
	bound := x.resolver.distance(point, *x.locationOf(seed))

	box, ok := searchBox(point, bound)
	if !ok {
		return x.resolver.Resolve(point, x.collections)
	}

	found := x.tree.SearchIntersect(box)
	candidates := make([]*indexedPoint, 0, len(found))
	for _, s := range found {
		if ip, ok := s.(*indexedPoint); ok {
			candidates = append(candidates, ip)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].coll != candidates[j].coll {
			return candidates[i].coll < candidates[j].coll
		}
		return candidates[i].idx < candidates[j].idx
	})

	var best *indexedPoint
	bestDist := math.Inf(1)
	for _, c := range candidates {
		if d := x.resolver.distance(point, *x.locationOf(c)); d < bestDist {
			best, bestDist = c, d
		}
	}
	if best == nil {
		return x.resolver.Resolve(point, x.collections)
	}
	return x.resolver.result(x.collections[best.coll], best.idx, bestDist), true, nil
}

func (x *IndexedResolver) locationOf(p *indexedPoint) *Geo {
	return x.collections[p.coll].Points[p.idx].Location
}

// searchBox returns a lon/lat rectangle containing every point within dist
// meters of center. ok is false when the box would reach a pole, cross the
// antimeridian or grow beyond maxIndexedSearch.
func searchBox(center Geo, dist float64) (rtreego.Rect, bool) {
	if math.IsNaN(dist) || dist > maxIndexedSearch {
		return rtreego.Rect{}, false
	}
	dLat := dist*boxMargin/minMetersPerDegree + boxPadding
	minLat, maxLat := center.Lat-dLat, center.Lat+dLat
	if minLat <= -polarCutoff || maxLat >= polarCutoff {
		return rtreego.Rect{}, false
	}

	poleward := math.Max(math.Abs(minLat), math.Abs(maxLat))
	dLon := dist*boxMargin/(minMetersPerDegree*math.Cos(poleward*math.Pi/180)) + boxPadding
	minLon, maxLon := center.Lon-dLon, center.Lon+dLon
	if minLon < -180 || maxLon > 180 {
		return rtreego.Rect{}, false
	}

	rect, err := rtreego.NewRectFromPoints(rtreego.Point{minLon, minLat}, rtreego.Point{maxLon, maxLat})
	if err != nil {
		return rtreego.Rect{}, false
	}
	return rect, true
}
