package ratios

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/MikeSquared-Agency/RiskScore/internal/population"
	"github.com/MikeSquared-Agency/RiskScore/internal/scoring"
)

// CompanyColumn is the spreadsheet column holding the ticker of each row.
const CompanyColumn = "Company"

// SpreadsheetFetcher looks the company up in a CSV export with one row per
// company. The file is re-read on every call so edits are picked up.
type SpreadsheetFetcher struct {
	path string
}

func NewSpreadsheetFetcher(path string) *SpreadsheetFetcher {
	return &SpreadsheetFetcher{path: path}
}

func (f *SpreadsheetFetcher) Name() string { return "spreadsheet" }

// FetchRatios matches the ticker against the Company column, falling back
// to the company name when no ticker is given.
func (f *SpreadsheetFetcher) FetchRatios(_ context.Context, c Company) (scoring.Record, error) {
	key := c.Ticker
	if key == "" {
		key = c.Name
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, fmt.Errorf("%w: empty company key", ErrCompanyNotFound)
	}

	file, err := os.Open(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s not found", ErrSourceUnavailable, f.path)
		}
		return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}
	defer file.Close()

	sheet, err := population.ReadSheet(file)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrSourceUnavailable, f.path, err)
	}
	col := sheet.Column(CompanyColumn)
	if col < 0 {
		return nil, fmt.Errorf("%w: %s has no %q column", scoring.ErrSchemaMismatch, f.path, CompanyColumn)
	}

	for i, row := range sheet.Rows {
		if col >= len(row) || !strings.EqualFold(strings.TrimSpace(row[col]), key) {
			continue
		}
		acc := newCollector()
		for j, label := range sheet.Header {
			cell := ""
			if j < len(row) {
				cell = row[j]
			}
			if err := acc.add(label, cell, true); err != nil {
				return nil, fmt.Errorf("%w: %s row %d: %w", scoring.ErrSchemaMismatch, f.path, i+2, err)
			}
		}
		return acc.rec, nil
	}
	return nil, fmt.Errorf("%w: %q in %s", ErrCompanyNotFound, key, f.path)
}
