package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RawEvent represents an unprocessed message from the source topic.
type RawEvent struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// OutputEvent is the serialized form destined for the sink topic.
type OutputEvent struct {
	Key     []byte
	Value   []byte
	Headers map[string]string
}

// DriverLocation is a position report published by a driver's device.
type DriverLocation struct {
	DriverID  string    `json:"driver_id"`
	Lat       *float64  `json:"lat"`
	Lon       *float64  `json:"lon"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// Point returns the reported position.
func (d DriverLocation) Point() Geo {
	return Geo{Lat: *d.Lat, Lon: *d.Lon}
}

// ParseDriverLocation decodes a location report. The message key stands in for
// a missing driver_id and the message time for a missing timestamp.
func ParseDriverLocation(raw RawEvent) (DriverLocation, error) {
	var loc DriverLocation
	if err := json.Unmarshal(raw.Value, &loc); err != nil {
		return DriverLocation{}, fmt.Errorf("parse driver location: %w", err)
	}
	if loc.Lat == nil || loc.Lon == nil {
		return DriverLocation{}, fmt.Errorf("parse driver location: %w: lat and lon are required", ErrInvalidInput)
	}
	if err := loc.Point().Validate(); err != nil {
		return DriverLocation{}, fmt.Errorf("parse driver location: %w", err)
	}
	if loc.DriverID == "" {
		loc.DriverID = string(raw.Key)
	}
	if loc.Timestamp.IsZero() {
		loc.Timestamp = raw.Timestamp
	}
	return loc, nil
}

// Alert is an actionable warning addressed to one driver.
type Alert struct {
	ID         string        `json:"id"`
	DriverID   string        `json:"driver_id"`
	Point      Geo           `json:"point"`
	Hazard     NearestResult `json:"hazard"`
	Message    string        `json:"message"`
	DeepLink   string        `json:"deep_link"`
	ReportedAt time.Time     `json:"reported_at,omitempty"`
	IssuedAt   time.Time     `json:"issued_at"`
}

// NewAlert builds an alert from an actionable warning.
func NewAlert(loc DriverLocation, w Warning) (Alert, error) {
	if !w.Actionable || w.Nearest == nil {
		return Alert{}, fmt.Errorf("new alert: warning for %s is not actionable", w.Point)
	}
	return Alert{
		ID:         uuid.NewString(),
		DriverID:   loc.DriverID,
		Point:      w.Point,
		Hazard:     *w.Nearest,
		Message:    w.Message,
		DeepLink:   w.DeepLink,
		ReportedAt: loc.Timestamp,
		IssuedAt:   w.IssuedAt,
	}, nil
}

// SerializeAlert marshals an alert keyed by driver so a driver's alerts stay ordered.
func SerializeAlert(a Alert) (OutputEvent, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return OutputEvent{}, fmt.Errorf("serialize alert: %w", err)
	}
	return OutputEvent{
		Key:   []byte(a.DriverID),
		Value: data,
		Headers: map[string]string{
			"category":  a.Hazard.Category,
			"issued_at": a.IssuedAt.Format(time.RFC3339),
		},
	}, nil
}
