package population

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/MikeSquared-Agency/RiskScore/internal/scoring"
)

// Sheet is a parsed CSV file with a header row.
type Sheet struct {
	Header []string
	Rows   [][]string
}

// ReadSheet parses CSV content. Header names are trimmed; cells are kept raw.
func ReadSheet(r io.Reader) (*Sheet, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty sheet")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i, h := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}

	sheet := &Sheet{Header: header}
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", len(sheet.Rows)+2, err)
		}
		sheet.Rows = append(sheet.Rows, row)
	}
	return sheet, nil
}

// Column returns the index of the named column, or -1.
func (s *Sheet) Column(name string) int {
	for i, h := range s.Header {
		if h == name {
			return i
		}
	}
	return -1
}

// Record converts one row into a scoring record. Only contract fields
// present in the header are carried; short rows yield nulls.
func (s *Sheet) Record(i int) (scoring.Record, error) {
	row := s.Rows[i]
	rec := scoring.Record{}
	for j, name := range s.Header {
		if !scoring.IsKnownField(name) {
			continue
		}
		if j >= len(row) {
			rec.SetNull(name)
			continue
		}
		v, err := scoring.ParseValue(row[j])
		if err != nil {
			return nil, fmt.Errorf("row %d column %q: %w", i+2, name, err)
		}
		rec[name] = v
	}
	return rec, nil
}

// Records converts every row.
func (s *Sheet) Records() ([]scoring.Record, error) {
	out := make([]scoring.Record, 0, len(s.Rows))
	for i := range s.Rows {
		rec, err := s.Record(i)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// CSVSource loads the reference population from a CSV file on every call.
type CSVSource struct {
	path string
}

// NewCSVSource creates a source reading the file at path.
func NewCSVSource(path string) *CSVSource {
	return &CSVSource{path: path}
}

// Load reads and parses the file. Any failure is reported as
// scoring.ErrDataUnavailable naming the file.
func (s *CSVSource) Load(_ context.Context) (scoring.Population, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return scoring.Population{}, fmt.Errorf("%w: %s not found", scoring.ErrDataUnavailable, s.path)
		}
		return scoring.Population{}, fmt.Errorf("%w: open %s: %w", scoring.ErrDataUnavailable, s.path, err)
	}
	defer f.Close()

	sheet, err := ReadSheet(f)
	if err != nil {
		return scoring.Population{}, fmt.Errorf("%w: %s: %w", scoring.ErrDataUnavailable, s.path, err)
	}
	records, err := sheet.Records()
	if err != nil {
		return scoring.Population{}, fmt.Errorf("%w: %s: %w", scoring.ErrDataUnavailable, s.path, err)
	}
	return scoring.Population{Records: records, Source: s.path}, nil
}

// Describe names the source for logs.
func (s *CSVSource) Describe() string { return "csv:" + s.path }
