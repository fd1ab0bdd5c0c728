// Package tabular reads and writes hazard tables as CSV or XLSX files.
package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/jszwec/csvutil"

	"github.com/couchcryptid/hazard-proximity-service/internal/domain"
)

const (
	latitudeColumn  = "latitude"
	longitudeColumn = "longitude"
)

// coordinates is the fixed part of every hazard row. Name and address columns
// vary per category and are read positionally from the raw record.
type coordinates struct {
	Latitude  string `csv:"latitude"`
	Longitude string `csv:"longitude"`
}

// outputRow is written positionally under a descriptor-specific header.
type outputRow struct {
	Name      string
	Address   string
	Latitude  string
	Longitude string
}

// ReadCSV decodes a hazard table for the descriptor's category. Rows without
// usable coordinates are kept with a nil location.
func ReadCSV(r io.Reader, desc domain.CategoryDescriptor) (domain.Collection, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	return decode(cr, desc)
}

// NormalizeColumn strips a byte-order mark and surrounding whitespace and lower-cases the name.
func NormalizeColumn(name string) string {
	name = strings.TrimPrefix(name, "\ufeff")
	return strings.ToLower(strings.TrimSpace(name))
}

func decode(src csvutil.Reader, desc domain.CategoryDescriptor) (domain.Collection, error) {
	out := domain.Collection{Category: desc.Category}

	raw, err := src.Read()
	if errors.Is(err, io.EOF) {
		return out, fmt.Errorf("%s table is empty: %w: %s", desc.Category, domain.ErrMissingColumns, strings.Join(desc.Required(), ", "))
	}
	if err != nil {
		return out, fmt.Errorf("read %s header: %w", desc.Category, err)
	}

	header := make([]string, len(raw))
	index := make(map[string]int, len(raw))
	for i, col := range raw {
		header[i] = NormalizeColumn(col)
		if _, dup := index[header[i]]; !dup {
			index[header[i]] = i
		}
	}

	var missing []string
	for _, col := range desc.Required() {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return out, fmt.Errorf("%s table: %w: %s", desc.Category, domain.ErrMissingColumns, strings.Join(missing, ", "))
	}

	dec, err := csvutil.NewDecoder(&paddedReader{src: src, width: len(header)}, dedupe(header)...)
	if err != nil {
		return out, fmt.Errorf("decode %s header: %w", desc.Category, err)
	}

	nameIdx := columnIndex(index, desc.NameField)
	addrIdx := columnIndex(index, desc.AddressField)

	for {
		var row coordinates
		if err := dec.Decode(&row); errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return out, fmt.Errorf("decode %s row %d: %w", desc.Category, len(out.Points)+1, err)
		}
		rec := dec.Record()
		out.Points = append(out.Points, newPoint(field(rec, nameIdx), field(rec, addrIdx), row))
	}
	return out, nil
}

func newPoint(name, address string, row coordinates) domain.HazardPoint {
	lat, latErr := parseCoordinate(row.Latitude)
	lon, lonErr := parseCoordinate(row.Longitude)
	if latErr != nil || lonErr != nil {
		return domain.HazardPoint{Name: name, Address: address}
	}
	return domain.NewHazardPoint(name, address, lat, lon)
}

func parseCoordinate(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty coordinate")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("non-finite coordinate %q", s)
	}
	return f, nil
}

func columnIndex(index map[string]int, col string) int {
	if col == "" {
		return -1
	}
	if i, ok := index[col]; ok {
		return i
	}
	return -1
}

func field(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

// dedupe renames repeated columns so the decoder accepts the header; the
// first occurrence keeps its name and wins.
func dedupe(header []string) []string {
	seen := make(map[string]int, len(header))
	out := make([]string, len(header))
	for i, col := range header {
		seen[col]++
		if n := seen[col]; n > 1 {
			col = fmt.Sprintf("%s__%d", col, n)
		}
		out[i] = col
	}
	return out
}

// paddedReader widens or truncates ragged rows to the header width.
type paddedReader struct {
	src   csvutil.Reader
	width int
}

func (p *paddedReader) Read() ([]string, error) {
	rec, err := p.src.Read()
	if err != nil {
		return nil, err
	}
	switch {
	case len(rec) < p.width:
		padded := make([]string, p.width)
		copy(padded, rec)
		return padded, nil
	case len(rec) > p.width:
		return rec[:p.width], nil
	}
	return rec, nil
}

// WriteCSV writes the collection under the descriptor's column names so that
// ReadCSV can load it back. Null-coordinate rows are written with empty coordinates.
func WriteCSV(w io.Writer, c domain.Collection, desc domain.CategoryDescriptor) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(outputHeader(desc)); err != nil {
		return fmt.Errorf("write %s header: %w", c.Category, err)
	}

	enc := csvutil.NewEncoder(cw)
	enc.AutoHeader = false
	for _, p := range c.Points {
		if err := enc.Encode(toOutputRow(p)); err != nil {
			return fmt.Errorf("write %s row: %w", c.Category, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func outputHeader(desc domain.CategoryDescriptor) []string {
	name := desc.NameField
	if name == "" {
		name = "name"
	}
	addr := desc.AddressField
	if addr == "" {
		addr = "address"
	}
	return []string{name, addr, latitudeColumn, longitudeColumn}
}

func toOutputRow(p domain.HazardPoint) outputRow {
	row := outputRow{Name: p.Name, Address: p.Address}
	if p.Location != nil {
		row.Latitude = strconv.FormatFloat(p.Location.Lat, 'f', -1, 64)
		row.Longitude = strconv.FormatFloat(p.Location.Lon, 'f', -1, 64)
	}
	return row
}
