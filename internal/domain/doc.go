// Package domain models municipal hazard datasets and resolves the hazard
// nearest to a point.
//
// # Data Sources
//
// Hazard tables come from NYC Open Data (Socrata) resources or from CSV/XLSX
// snapshots of them. Each table belongs to one category:
//
//	school      8586-3zfm  school_name, building_address
//	demolition  cspg-yi7g  account_name, address
//	pothole     fed5-ydvq  incident_address (every record is labelled "Pothole")
//
// All tables carry "latitude" and "longitude" in WGS-84 degrees. Either may be
// empty in the source data; such records are kept with a nil [HazardPoint.Location]
// and never take part in a resolution.
//
// # Resolution
//
// [Resolver.Resolve] is a linear scan over every collection using a single
// distance formula, so distances from different categories are comparable.
// Ties keep the first record in collection order, then the first collection in
// slice order. The scan is arbitrary but reproducible; [IndexedResolver] must
// return the same record for the same inputs.
//
// Distances:
//
//	Ellipsoidal  WGS-84 geodesic (Karney), default
//	GreatCircle  haversine on the mean Earth sphere
//
// # Alerting
//
// A result is actionable when its distance is at most the gate threshold
// (500 m by default, inclusive). Only actionable results produce a [Warning]
// with a generated message, optional audio and a Waze deep link.
package domain
