// Package audit persists the transformed working table of an evaluation so
// a score can be traced back to the normalized population it was computed
// against.
package audit

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/RiskScore/internal/scoring"
)

// Sink stores one evaluation's working table.
type Sink interface {
	Write(ctx context.Context, evaluationID uuid.UUID, t *scoring.Table) error
}

// CSVSink writes each table to <dir>/<evaluation id>.csv.
type CSVSink struct {
	dir string
}

func NewCSVSink(dir string) *CSVSink {
	return &CSVSink{dir: dir}
}

// Path returns the file the table for id is written to.
func (s *CSVSink) Path(id uuid.UUID) string {
	return filepath.Join(s.dir, id.String()+".csv")
}

func (s *CSVSink) Write(_ context.Context, id uuid.UUID, t *scoring.Table) error {
	if t == nil {
		return errors.New("audit: nil table")
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("audit: create dir: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".audit-*.csv")
	if err != nil {
		return fmt.Errorf("audit: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := WriteCSV(tmp, t); err != nil {
		tmp.Close()
		return fmt.Errorf("audit: write %s: %w", id, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("audit: %w", err)
	}
	return os.Rename(tmp.Name(), s.Path(id))
}

// WriteCSV renders t with a header row. The subject is the last data row.
func WriteCSV(w io.Writer, t *scoring.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return err
	}
	rec := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for i, v := range row {
			rec[i] = strconv.FormatFloat(v, 'f', -1, 64)
		}
		if err := cw.Write(rec[:len(row)]); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// TableSaver is the slice of the store a StoreSink needs.
type TableSaver interface {
	SaveAuditTable(ctx context.Context, evaluationID uuid.UUID, t *scoring.Table) error
}

// StoreSink writes tables to the database.
type StoreSink struct {
	store TableSaver
}

func NewStoreSink(s TableSaver) *StoreSink {
	return &StoreSink{store: s}
}

func (s *StoreSink) Write(ctx context.Context, id uuid.UUID, t *scoring.Table) error {
	if err := s.store.SaveAuditTable(ctx, id, t); err != nil {
		return fmt.Errorf("audit: store: %w", err)
	}
	return nil
}

// Multi writes to every sink and joins their errors. One failing sink does
// not stop the others.
type Multi []Sink

func (m Multi) Write(ctx context.Context, id uuid.UUID, t *scoring.Table) error {
	var errs []error
	for _, s := range m {
		if err := s.Write(ctx, id, t); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard drops every table.
type Discard struct{}

func (Discard) Write(context.Context, uuid.UUID, *scoring.Table) error { return nil }
