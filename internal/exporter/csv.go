// Package exporter writes analyzed sensor data back out: table CSV downloads
// for the dashboard and aggregate summaries for reporting.
package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"iotpulse/pkg/contracts/domain"
)

// DefaultTimeLayout formats timestamps in exported files.
const DefaultTimeLayout = "2006-01-02 15:04:05"

// utf8BOM makes exported files open cleanly in Excel.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Options controls CSV output.
type Options struct {
	// IncludeBOM prepends a UTF-8 byte order mark.
	IncludeBOM bool
	// TimeLayout overrides DefaultTimeLayout.
	TimeLayout string
	// Delimiter overrides the comma.
	Delimiter rune
}

func (o Options) timeLayout() string {
	if o.TimeLayout == "" {
		return DefaultTimeLayout
	}
	return o.TimeLayout
}

// WriteTableCSV writes the table as CSV with the Time column first. Rows
// whose timestamp never parsed keep their original text; missing cells
// export as empty fields.
func WriteTableCSV(w io.Writer, t *domain.SensorTable, opts Options) error {
	if t == nil {
		return fmt.Errorf("nil table")
	}
	if opts.IncludeBOM {
		if _, err := w.Write(utf8BOM); err != nil {
			return fmt.Errorf("write BOM: %w", err)
		}
	}

	cw := csv.NewWriter(w)
	if opts.Delimiter != 0 {
		cw.Comma = opts.Delimiter
	}

	header := append([]string{domain.CanonicalTimeColumn}, t.Columns...)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	layout := opts.timeLayout()
	record := make([]string, len(header))
	for _, row := range t.Rows {
		record[0] = formatTime(row, layout)
		for i, col := range t.Columns {
			record[i+1] = formatCell(row.Values[col])
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteTableFile writes the table CSV to a file, creating parent directories.
func WriteTableFile(path string, t *domain.SensorTable, opts Options) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer f.Close()
	return WriteTableCSV(f, t, opts)
}

func formatTime(row domain.Row, layout string) string {
	if row.TimeValid {
		return row.Time.Format(layout)
	}
	return row.TimeRaw
}

func formatCell(v domain.Value) string {
	switch v.Kind {
	case domain.ValueNumber:
		return strconv.FormatFloat(v.Float, 'f', -1, 64)
	case domain.ValueBool:
		return strconv.FormatBool(v.Bool)
	default:
		return ""
	}
}

// StreamWriter exports rows one at a time without buffering the whole table,
// for exports larger than memory comfort allows.
type StreamWriter struct {
	cw      *csv.Writer
	columns []string
	layout  string
	record  []string
	closer  io.Closer
}

// NewStreamWriter writes the header immediately and returns a writer for the
// rows. Close flushes; it also closes w when w is a Closer.
func NewStreamWriter(w io.Writer, columns []string, opts Options) (*StreamWriter, error) {
	if opts.IncludeBOM {
		if _, err := w.Write(utf8BOM); err != nil {
			return nil, fmt.Errorf("write BOM: %w", err)
		}
	}
	cw := csv.NewWriter(w)
	if opts.Delimiter != 0 {
		cw.Comma = opts.Delimiter
	}
	header := append([]string{domain.CanonicalTimeColumn}, columns...)
	if err := cw.Write(header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	sw := &StreamWriter{
		cw:      cw,
		columns: columns,
		layout:  opts.timeLayout(),
		record:  make([]string, len(header)),
	}
	if c, ok := w.(io.Closer); ok {
		sw.closer = c
	}
	return sw, nil
}

// WriteRow appends one reading.
func (s *StreamWriter) WriteRow(row domain.Row) error {
	s.record[0] = formatTime(row, s.layout)
	for i, col := range s.columns {
		s.record[i+1] = formatCell(row.Values[col])
	}
	return s.cw.Write(s.record)
}

// Close flushes pending rows.
func (s *StreamWriter) Close() error {
	s.cw.Flush()
	err := s.cw.Error()
	if s.closer != nil {
		if cerr := s.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
