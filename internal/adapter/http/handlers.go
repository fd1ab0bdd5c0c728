package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"

	"github.com/couchcryptid/hazard-proximity-service/internal/domain"
	"github.com/couchcryptid/hazard-proximity-service/internal/warning"
)

const maxBodyBytes = 1 << 20

var (
	errNoGeocoder      = errors.New("address lookup is not enabled")
	errAddressNotFound = errors.New("address not found")
	errGeocode         = errors.New("geocode failed")
)

// pointRequest locates a query either by coordinates or by a free-text address.
type pointRequest struct {
	Lat     *float64 `json:"lat"`
	Lon     *float64 `json:"lon"`
	Address string   `json:"address"`
	Audio   bool     `json:"audio"`
}

type nearestResponse struct {
	Found      bool                  `json:"found"`
	Actionable bool                  `json:"actionable"`
	Point      domain.Geo            `json:"point"`
	Place      string                `json:"place,omitempty"`
	Result     *domain.NearestResult `json:"result,omitempty"`
}

type reloadResponse struct {
	Status   string         `json:"status"`
	Source   string         `json:"source"`
	Located  map[string]int `json:"located"`
	LoadedAt time.Time      `json:"loaded_at"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleNearest(w http.ResponseWriter, r *http.Request) {
	_, point, place, err := s.decodePoint(w, r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	res, found, actionable, err := s.deps.Warnings.Nearest(point)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if place == "" {
		place = s.placeName(r.Context(), point)
	}
	resp := nearestResponse{
		Found:      found,
		Actionable: actionable,
		Point:      point,
		Place:      place,
	}
	if found {
		resp.Result = &res
	}
	sharedobs.WriteJSON(w, http.StatusOK, resp)
}

func (s *Server) handleWarning(w http.ResponseWriter, r *http.Request) {
	req, point, _, err := s.decodePoint(w, r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	// HTTP callers are stateless; replay only applies within one session.
	warn, _, err := s.deps.Warnings.Evaluate(r.Context(), domain.Session{}, point, warning.Options{Audio: req.Audio})
	if err != nil {
		s.writeError(w, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, warn)
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Catalog.Load(r.Context()); err != nil {
		s.logger.Error("catalog reload failed", "error", err)
		sharedobs.WriteJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
		return
	}
	snap, err := s.deps.Catalog.Snapshot()
	if err != nil {
		s.writeError(w, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, reloadResponse{
		Status:   "reloaded",
		Source:   snap.Source,
		Located:  snap.Located(),
		LoadedAt: snap.LoadedAt,
	})
}

// decodePoint reads a pointRequest and resolves it to a query point. When the
// request carries an address, the geocoded place name is returned as well.
func (s *Server) decodePoint(w http.ResponseWriter, r *http.Request) (pointRequest, domain.Geo, string, error) {
	var req pointRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return req, domain.Geo{}, "", fmt.Errorf("%w: decode request body: %w", domain.ErrInvalidInput, err)
	}

	switch {
	case req.Lat != nil && req.Lon != nil:
		point := domain.Geo{Lat: *req.Lat, Lon: *req.Lon}
		return req, point, "", point.Validate()
	case strings.TrimSpace(req.Address) != "":
		point, place, err := s.geocode(r.Context(), req.Address)
		return req, point, place, err
	default:
		return req, domain.Geo{}, "", fmt.Errorf("%w: lat and lon, or address, are required", domain.ErrInvalidInput)
	}
}

func (s *Server) geocode(ctx context.Context, address string) (domain.Geo, string, error) {
	if s.deps.Geocoder == nil {
		return domain.Geo{}, "", errNoGeocoder
	}
	res, err := s.deps.Geocoder.ForwardGeocode(ctx, address)
	if err != nil {
		return domain.Geo{}, "", fmt.Errorf("%w for %q: %w", errGeocode, address, err)
	}
	if res.FormattedAddress == "" {
		return domain.Geo{}, "", errAddressNotFound
	}
	point := domain.Geo{Lat: res.Lat, Lon: res.Lon}
	return point, res.FormattedAddress, point.Validate()
}

// placeName labels point by reverse geocoding. Failures leave it unlabelled.
func (s *Server) placeName(ctx context.Context, point domain.Geo) string {
	if s.deps.Geocoder == nil {
		return ""
	}
	res, err := s.deps.Geocoder.ReverseGeocode(ctx, point.Lat, point.Lon)
	if err != nil {
		s.logger.Debug("reverse geocode failed", "point", point.String(), "error", err)
		return ""
	}
	return res.FormattedAddress
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, errNoGeocoder):
		status = http.StatusBadRequest
	case errors.Is(err, errAddressNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrNotLoaded):
		status = http.StatusServiceUnavailable
	case errors.Is(err, errGeocode):
		status = http.StatusBadGateway
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "status", status, "error", err)
	}
	sharedobs.WriteJSON(w, status, errorResponse{Error: err.Error()})
}
