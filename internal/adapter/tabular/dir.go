package tabular

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/couchcryptid/hazard-proximity-service/internal/domain"
)

// LoadDir loads <category>.csv, or <category>.xlsx when no CSV exists, for
// every registered category. Collections are returned in registry order.
func LoadDir(dir string, registry *domain.Registry) ([]domain.Collection, error) {
	descriptors := registry.Descriptors()
	out := make([]domain.Collection, 0, len(descriptors))
	for _, desc := range descriptors {
		c, err := loadCategory(dir, desc)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func loadCategory(dir string, desc domain.CategoryDescriptor) (domain.Collection, error) {
	csvPath := filepath.Join(dir, desc.Category+".csv")
	f, err := os.Open(csvPath)
	if err == nil {
		defer f.Close() //nolint:errcheck // read-only file
		c, err := ReadCSV(f, desc)
		if err != nil {
			return c, fmt.Errorf("%s: %w", csvPath, err)
		}
		return c, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return domain.Collection{}, fmt.Errorf("open %s: %w", csvPath, err)
	}

	xlsxPath := filepath.Join(dir, desc.Category+".xlsx")
	if _, statErr := os.Stat(xlsxPath); statErr != nil {
		return domain.Collection{}, fmt.Errorf("no hazard table for %s: %s not found", desc.Category, csvPath)
	}
	return ReadXLSX(xlsxPath, desc)
}

// Table file formats accepted by SaveDir.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// SaveDir writes each collection to <category>.<format> under dir, creating
// dir if needed. LoadDir reads either format back.
func SaveDir(dir string, collections []domain.Collection, registry *domain.Registry, format string) error {
	write := WriteCSV
	switch format {
	case FormatCSV, "":
		format = FormatCSV
	case FormatXLSX:
		write = WriteXLSX
	default:
		return fmt.Errorf("unsupported table format %q", format)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	for _, c := range collections {
		desc, _ := registry.Lookup(c.Category)
		path := filepath.Join(dir, c.Category+"."+format)
		if err := writeFile(path, c, desc, write); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(path string, c domain.Collection, desc domain.CategoryDescriptor, write func(io.Writer, domain.Collection, domain.CategoryDescriptor) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()
	if err := write(f, c, desc); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}
