package dataprocessing

import (
	"bytes"
	"encoding/csv"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"iotpulse/internal/errors"
	"iotpulse/pkg/contracts/domain"
)

// vendorMarker opens the optional metadata preamble some OWIPEX logger
// exports carry in front of the tabular data.
const vendorMarker = "OWIPEX"

// preambleLines is the fixed size of the vendor metadata block.
const preambleLines = 5

// DefaultDateFormat is the timestamp layout tried first when the caller does
// not supply one.
const DefaultDateFormat = "2006-01-02 15:04:05"

// timestampCandidates are the header names checked, in order and
// case-sensitively, when resolving the timestamp column.
var timestampCandidates = []string{"Time", "Zeit", "Timestamp", "Zeitstempel", "Date", "Datum"}

// flexibleLayouts are the fallback layouts tried when the expected format
// fails. Mixed European and ISO styles because the field exports are not
// consistent about it.
var flexibleLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02 15:04",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"02.01.2006 15:04:05",
	"02.01.2006 15:04",
	"2006/01/02 15:04:05",
	"2006-01-02",
	"02/01/2006",
	"02.01.2006",
}

// timeStrategy is one entry in the ordered parse chain: expected format
// first, then flexible layouts, then pass-through-unparsed. Making the chain
// explicit keeps the fallback behavior visible instead of burying it in
// nested error handling.
type timeStrategy struct {
	name  string
	parse func(string) (time.Time, error)
}

func timeStrategies(dateFormat string) []timeStrategy {
	strategies := make([]timeStrategy, 0, 2)
	if dateFormat != "" {
		strategies = append(strategies, timeStrategy{
			name: "expected_format",
			parse: func(s string) (time.Time, error) {
				return time.Parse(dateFormat, s)
			},
		})
	}
	strategies = append(strategies, timeStrategy{
		name: "flexible",
		parse: func(s string) (time.Time, error) {
			var lastErr error
			for _, layout := range flexibleLayouts {
				ts, err := time.Parse(layout, s)
				if err == nil {
					return ts, nil
				}
				lastErr = err
			}
			return time.Time{}, lastErr
		},
	})
	return strategies
}

// ParseCSV parses a raw CSV export into a normalized SensorTable. The
// timestamp column is resolved against the candidate list, parsed with the
// expected format first and flexible layouts second, and renamed to the
// canonical Time column. Every other column is coerced to numeric or boolean;
// cells that resist coercion become missing values rather than errors. Only
// structurally unreadable input returns an error.
func ParseCSV(raw []byte, dateFormat string) (*domain.SensorTable, error) {
	text := strings.TrimPrefix(string(raw), "\uFEFF")
	if strings.TrimSpace(text) == "" {
		return nil, errors.NewIngestError("uploaded file is empty", nil)
	}

	meta, tabular := splitVendorPreamble(text)

	reader := csv.NewReader(strings.NewReader(tabular))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.NewIngestError("could not parse input as CSV", err)
	}
	if len(records) == 0 || len(records[0]) == 0 {
		return nil, errors.NewIngestError("CSV contains no columns", nil)
	}

	table, err := buildTable(records[0], records[1:], dateFormat)
	if err != nil {
		return nil, err
	}
	table.Meta = meta
	return table, nil
}

// ParseCSVReader buffers the reader fully and parses it. The pipeline never
// streams; inputs are expected to fit in memory.
func ParseCSVReader(r io.Reader, dateFormat string) (*domain.SensorTable, error) {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return nil, errors.NewIngestError("could not read upload", err)
	}
	return ParseCSV(buf.Bytes(), dateFormat)
}

// splitVendorPreamble detects the fixed five-line vendor metadata block. The
// block is present when the input has more than five lines, the first line
// contains a comma, and the first line starts with the vendor marker. The
// pairs are captured but nothing downstream requires them.
func splitVendorPreamble(text string) (map[string]string, string) {
	lines := strings.Split(text, "\n")
	if len(lines) <= preambleLines {
		return nil, text
	}
	first := strings.TrimRight(lines[0], "\r")
	if !strings.Contains(first, ",") || !strings.HasPrefix(first, vendorMarker) {
		return nil, text
	}

	meta := make(map[string]string, preambleLines)
	for _, line := range lines[:preambleLines] {
		line = strings.TrimRight(line, "\r")
		key, value, found := strings.Cut(line, ",")
		if !found {
			continue
		}
		meta[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	slog.Debug("vendor metadata preamble detected", slog.Int("pairs", len(meta)))
	return meta, strings.Join(lines[preambleLines:], "\n")
}

// resolveTimeColumn picks the timestamp column index from the header. When no
// candidate matches, the first column is used and a warning is logged; the
// export then gets best-effort treatment instead of a rejection.
func resolveTimeColumn(header []string) int {
	for _, candidate := range timestampCandidates {
		for i, col := range header {
			if col == candidate {
				return i
			}
		}
	}
	slog.Warn("no timestamp column recognized, falling back to first column",
		slog.String("column", header[0]))
	return 0
}

// buildTable normalizes raw CSV records into a SensorTable.
func buildTable(header []string, records [][]string, dateFormat string) (*domain.SensorTable, error) {
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	timeIdx := resolveTimeColumn(header)
	if header[timeIdx] != domain.CanonicalTimeColumn {
		slog.Debug("renaming timestamp column",
			slog.String("from", header[timeIdx]),
			slog.String("to", domain.CanonicalTimeColumn))
	}

	columns := make([]string, 0, len(header)-1)
	for i, col := range header {
		if i == timeIdx {
			continue
		}
		columns = append(columns, col)
	}

	strategies := timeStrategies(dateFormat)
	parseFailures := 0

	rows := make([]domain.Row, 0, len(records))
	for _, record := range records {
		if len(record) == 1 && strings.TrimSpace(record[0]) == "" {
			continue
		}
		row := domain.Row{Values: make(map[string]domain.Value, len(columns))}
		if timeIdx < len(record) {
			raw := strings.TrimSpace(record[timeIdx])
			row.TimeRaw = raw
			for _, s := range strategies {
				if ts, err := s.parse(raw); err == nil {
					row.Time = ts
					row.TimeValid = true
					break
				}
			}
			if !row.TimeValid {
				parseFailures++
			}
		}
		for i, col := range header {
			if i == timeIdx {
				continue
			}
			raw := ""
			if i < len(record) {
				raw = strings.TrimSpace(record[i])
			}
			row.Values[col] = coerceCell(raw)
		}
		rows = append(rows, row)
	}

	if parseFailures > 0 {
		// Non-fatal: the filter stage re-attempts parsing and degrades
		// gracefully when the column never becomes temporal.
		slog.Warn("timestamp parsing failed for some rows, keeping original text",
			slog.Int("failed_rows", parseFailures),
			slog.Int("total_rows", len(rows)))
	}

	table := &domain.SensorTable{Columns: columns, Rows: rows}
	table.Classes = classifyColumns(table)
	return table, nil
}

// coerceCell converts one cell to a numeric or boolean value. Unparseable
// cells become missing, never an error.
func coerceCell(raw string) domain.Value {
	if raw == "" {
		return domain.MissingValue(raw)
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return domain.NumberValue(f, raw)
	}
	switch strings.ToLower(raw) {
	case "true":
		return domain.BoolValue(true, raw)
	case "false":
		return domain.BoolValue(false, raw)
	}
	return domain.MissingValue(raw)
}

// classifyColumns assigns each measurement column its class once, at ingest.
// Consumers branch on the tag instead of re-sniffing cell types.
func classifyColumns(t *domain.SensorTable) map[string]domain.ColumnClass {
	classes := make(map[string]domain.ColumnClass, len(t.Columns)+1)
	classes[domain.CanonicalTimeColumn] = domain.ClassTemporal

	for _, col := range t.Columns {
		var numbers, bools, present int
		zeroOne := true
		for _, r := range t.Rows {
			v := r.Values[col]
			switch v.Kind {
			case domain.ValueNumber:
				numbers++
				present++
				if v.Float != 0 && v.Float != 1 {
					zeroOne = false
				}
			case domain.ValueBool:
				bools++
				present++
			}
		}

		switch {
		case present == 0:
			classes[col] = domain.ClassUnrecognized
		case strings.Contains(col, "Pump") && (bools > 0 || zeroOne):
			classes[col] = domain.ClassPumpStatus
		case bools > 0 && numbers == 0:
			classes[col] = domain.ClassBoolean
		default:
			classes[col] = domain.ClassNumeric
		}
	}
	return classes
}
