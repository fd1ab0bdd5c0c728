package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/couchcryptid/hazard-proximity-service/internal/domain"
)

// handleHazards serves the located hazards as a GeoJSON FeatureCollection,
// optionally limited to one category.
func (s *Server) handleHazards(w http.ResponseWriter, r *http.Request) {
	snap, err := s.deps.Catalog.Snapshot()
	if err != nil {
		s.writeError(w, err)
		return
	}

	category := r.URL.Query().Get("category")
	collections := snap.Collections
	if category != "" {
		collections = nil
		for _, c := range snap.Collections {
			if c.Category == category {
				collections = append(collections, c)
			}
		}
		if len(collections) == 0 {
			sharedobs.WriteJSON(w, http.StatusNotFound, errorResponse{Error: fmt.Sprintf("unknown category %q", category)})
			return
		}
	}

	fc := HazardFeatures(collections, s.deps.Catalog.Resolver().Registry())
	data, err := json.Marshal(fc)
	if err != nil {
		s.writeError(w, fmt.Errorf("encode hazards: %w", err))
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	w.Write(data) //nolint:errcheck // client went away
}

// HazardFeatures converts located hazard points to GeoJSON point features.
// Records without coordinates are left out.
func HazardFeatures(collections []domain.Collection, registry *domain.Registry) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{Features: []*geojson.Feature{}}
	for _, c := range collections {
		desc, _ := registry.Lookup(c.Category)
		for i, p := range c.Points {
			if p.Location == nil {
				continue
			}
			fc.Features = append(fc.Features, &geojson.Feature{
				ID:       c.Category + "-" + strconv.Itoa(i),
				Geometry: geom.NewPointFlat(geom.XY, []float64{p.Location.Lon, p.Location.Lat}),
				Properties: map[string]interface{}{
					"category": c.Category,
					"label":    desc.Label,
					"name":     desc.DisplayName(p),
					"address":  desc.DisplayAddress(p),
				},
			})
		}
	}
	return fc
}
