package socrata

import (
	"fmt"
	"strings"
	"time"

	"github.com/couchcryptid/hazard-proximity-service/internal/domain"
)

// Dataset is one NYC Open Data table and the SoQL query that projects it onto
// a hazard category's columns.
type Dataset struct {
	Category string
	ID       string
	// Query may reference the date window as {start} and {end}.
	Query string
}

// Windowed reports whether the query is filtered by creation date.
func (d Dataset) Windowed() bool {
	return strings.Contains(d.Query, "{start}")
}

// DefaultDatasets returns the school construction, demolition and pothole
// datasets in registry order.
func DefaultDatasets() []Dataset {
	return []Dataset{
		{
			Category: domain.CategorySchool,
			ID:       "8586-3zfm",
			Query: "SELECT name AS school_name, latitude, longitude, building_address " +
				"WHERE latitude IS NOT NULL AND longitude IS NOT NULL " +
				"ORDER BY school_name ASC",
		},
		{
			Category: domain.CategoryDemolition,
			ID:       "cspg-yi7g",
			Query: "SELECT created, account_name, address, latitude, longitude " +
				"WHERE created >= '{start}' AND created <= '{end}' " +
				"ORDER BY created DESC NULL FIRST",
		},
		{
			Category: domain.CategoryPothole,
			ID:       "fed5-ydvq",
			Query: "SELECT created_date, complaint_type, descriptor, incident_address, longitude, latitude " +
				"WHERE created_date BETWEEN '{start}' AND '{end}' " +
				"ORDER BY created_date DESC",
		},
	}
}

// Window is the inclusive creation-date range for windowed datasets.
type Window struct {
	Start time.Time
	End   time.Time
}

// NewWindow parses YYYY-MM-DD bounds. A missing end defaults to today and a
// missing start to end minus lookback.
func NewWindow(start, end string, lookback time.Duration) (Window, error) {
	var w Window
	if end == "" {
		w.End = domain.Now().UTC().Truncate(24 * time.Hour)
	} else {
		t, err := time.Parse(time.DateOnly, end)
		if err != nil {
			return Window{}, fmt.Errorf("parse end date %q: %w", end, err)
		}
		w.End = t
	}
	if start == "" {
		w.Start = w.End.Add(-lookback)
	} else {
		t, err := time.Parse(time.DateOnly, start)
		if err != nil {
			return Window{}, fmt.Errorf("parse start date %q: %w", start, err)
		}
		w.Start = t
	}
	if w.Start.After(w.End) {
		return Window{}, fmt.Errorf("start date %s is after end date %s", w.Start.Format(time.DateOnly), w.End.Format(time.DateOnly))
	}
	return w, nil
}

func (d Dataset) soql(w Window, limit, offset int) string {
	q := strings.NewReplacer(
		"{start}", w.Start.Format(time.DateOnly)+"T00:00:00",
		"{end}", w.End.Format(time.DateOnly)+"T23:59:59",
	).Replace(d.Query)
	return fmt.Sprintf("%s LIMIT %d OFFSET %d", q, limit, offset)
}
