package tabular

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/couchcryptid/hazard-proximity-service/internal/domain"
)

// ReadXLSX decodes the first worksheet of an Excel workbook.
func ReadXLSX(path string, desc domain.CategoryDescriptor) (domain.Collection, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return domain.Collection{Category: desc.Category}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck // read-only workbook

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return domain.Collection{Category: desc.Category}, fmt.Errorf("%s has no worksheets", path)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return domain.Collection{Category: desc.Category}, fmt.Errorf("read %s: %w", path, err)
	}
	return decode(&rowsReader{rows: rows}, desc)
}

// WriteXLSX writes the collection to a single-sheet workbook with the same
// columns as WriteCSV.
func WriteXLSX(w io.Writer, c domain.Collection, desc domain.CategoryDescriptor) error {
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck // in-memory workbook

	sheet := f.GetSheetName(0)
	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return fmt.Errorf("create %s sheet: %w", c.Category, err)
	}

	header := outputHeader(desc)
	cells := make([]any, len(header))
	for i, h := range header {
		cells[i] = h
	}
	if err := sw.SetRow("A1", cells); err != nil {
		return fmt.Errorf("write %s header: %w", c.Category, err)
	}

	for i, p := range c.Points {
		row := toOutputRow(p)
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, []any{row.Name, row.Address, row.Latitude, row.Longitude}); err != nil {
			return fmt.Errorf("write %s row %d: %w", c.Category, i+1, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flush %s sheet: %w", c.Category, err)
	}
	return f.Write(w)
}

// rowsReader adapts worksheet rows to the CSV decoder.
type rowsReader struct {
	rows [][]string
	next int
}

func (r *rowsReader) Read() ([]string, error) {
	if r.next >= len(r.rows) {
		return nil, io.EOF
	}
	row := r.rows[r.next]
	r.next++
	return row, nil
}
