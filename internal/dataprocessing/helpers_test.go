package dataprocessing

import (
	"testing"
	"time"

	"iotpulse/pkg/contracts/domain"
)

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse("2006-01-02 15:04:05", s)
	if err != nil {
		t.Fatalf("bad test timestamp %q: %v", s, err)
	}
	return ts
}

// newTestTable builds a classified table directly, bypassing CSV parsing, for
// tests that exercise a single pipeline stage.
func newTestTable(columns []string, rows []domain.Row) *domain.SensorTable {
	table := &domain.SensorTable{Columns: columns, Rows: rows}
	table.Classes = classifyColumns(table)
	return table
}

func numericRow(t *testing.T, ts string, values map[string]float64) domain.Row {
	t.Helper()
	row := domain.Row{Values: make(map[string]domain.Value, len(values))}
	if ts != "" {
		row.Time = mustTime(t, ts)
		row.TimeValid = true
		row.TimeRaw = ts
	}
	for col, v := range values {
		row.Values[col] = domain.NumberValue(v, "")
	}
	return row
}
