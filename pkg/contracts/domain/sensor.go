package domain

import (
	"sort"
	"time"
)

// CanonicalTimeColumn is the name every resolved timestamp column is renamed to.
const CanonicalTimeColumn = "Time"

// ColumnClass tags how a column was classified during ingestion.
// Classification happens exactly once; downstream consumers read the tag
// instead of re-sniffing cell types.
type ColumnClass string

const (
	ClassTemporal     ColumnClass = "temporal"
	ClassNumeric      ColumnClass = "numeric"
	ClassBoolean      ColumnClass = "boolean"
	ClassPumpStatus   ColumnClass = "pump_status"
	ClassUnrecognized ColumnClass = "unrecognized"
)

// ValueKind discriminates the nullable measurement cell.
type ValueKind string

const (
	ValueMissing ValueKind = "missing"
	ValueNumber  ValueKind = "number"
	ValueBool    ValueKind = "bool"
)

// Value is a single measurement cell. Raw always keeps the original text so
// forgiving consumers (pump-status coercion) can re-interpret garbled cells.
type Value struct {
	Float float64   `json:"float,omitempty"`
	Bool  bool      `json:"bool,omitempty"`
	Raw   string    `json:"raw,omitempty"`
	Kind  ValueKind `json:"kind"`
}

// Missing reports whether the cell holds no usable value.
func (v Value) Missing() bool {
	return v.Kind == ValueMissing || v.Kind == ""
}

// AsFloat returns the cell as a float64. Booleans coerce to 0/1, matching the
// numeric view the aggregation layer expects.
func (v Value) AsFloat() (float64, bool) {
	switch v.Kind {
	case ValueNumber:
		return v.Float, true
	case ValueBool:
		if v.Bool {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// NumberValue builds a numeric cell.
func NumberValue(f float64, raw string) Value {
	return Value{Float: f, Raw: raw, Kind: ValueNumber}
}

// BoolValue builds a boolean cell.
func BoolValue(b bool, raw string) Value {
	return Value{Bool: b, Raw: raw, Kind: ValueBool}
}

// MissingValue builds an empty cell preserving the unparseable original text.
func MissingValue(raw string) Value {
	return Value{Raw: raw, Kind: ValueMissing}
}

// Row is one reading: a timestamp plus the measurement cells keyed by column
// name. TimeValid is false when every parse strategy failed; TimeRaw then
// still carries the original text.
type Row struct {
	Time      time.Time        `json:"time"`
	TimeValid bool             `json:"time_valid"`
	TimeRaw   string           `json:"time_raw,omitempty"`
	Values    map[string]Value `json:"values"`
}

// SensorTable is the normalized tabular structure every pipeline stage
// consumes and produces. Stages never mutate a table in place; they return a
// fresh copy so the caller can keep earlier stages inspectable.
type SensorTable struct {
	// Columns preserves the measurement column order from the source file,
	// excluding the canonical Time column.
	Columns []string               `json:"columns"`
	Rows    []Row                  `json:"rows"`
	Classes map[string]ColumnClass `json:"classes,omitempty"`
	// Meta holds the vendor preamble key/value pairs when present.
	Meta map[string]string `json:"meta,omitempty"`
}

// Empty reports whether the table has no rows.
func (t *SensorTable) Empty() bool {
	return t == nil || len(t.Rows) == 0
}

// HasColumn reports whether a measurement column exists.
func (t *SensorTable) HasColumn(name string) bool {
	if t == nil {
		return false
	}
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Class returns the ingest-time classification for a column.
func (t *SensorTable) Class(name string) ColumnClass {
	if t == nil || t.Classes == nil {
		return ClassUnrecognized
	}
	if c, ok := t.Classes[name]; ok {
		return c
	}
	return ClassUnrecognized
}

// NumericColumns returns the columns that carry numeric values, in source
// order. Boolean and pump-status columns count as numeric (0/1), mirroring
// how the cells coerce in AsFloat.
func (t *SensorTable) NumericColumns() []string {
	if t == nil {
		return nil
	}
	cols := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		switch t.Class(c) {
		case ClassNumeric, ClassBoolean, ClassPumpStatus:
			cols = append(cols, c)
		}
	}
	return cols
}

// ColumnValues returns every cell of a column in row order.
func (t *SensorTable) ColumnValues(name string) []Value {
	if t == nil {
		return nil
	}
	vals := make([]Value, len(t.Rows))
	for i, r := range t.Rows {
		vals[i] = r.Values[name]
	}
	return vals
}

// ColumnFloats returns the non-missing numeric values of a column in row
// order, dropping missing cells.
func (t *SensorTable) ColumnFloats(name string) []float64 {
	if t == nil {
		return nil
	}
	out := make([]float64, 0, len(t.Rows))
	for _, r := range t.Rows {
		if f, ok := r.Values[name].AsFloat(); ok {
			out = append(out, f)
		}
	}
	return out
}

// TimeParsed reports whether at least one row carries a parsed timestamp.
func (t *SensorTable) TimeParsed() bool {
	if t == nil {
		return false
	}
	for _, r := range t.Rows {
		if r.TimeValid {
			return true
		}
	}
	return false
}

// MaxTime returns the latest parsed timestamp in the table.
func (t *SensorTable) MaxTime() (time.Time, bool) {
	var max time.Time
	found := false
	if t == nil {
		return max, false
	}
	for _, r := range t.Rows {
		if r.TimeValid && (!found || r.Time.After(max)) {
			max = r.Time
			found = true
		}
	}
	return max, found
}

// MinTime returns the earliest parsed timestamp in the table.
func (t *SensorTable) MinTime() (time.Time, bool) {
	var min time.Time
	found := false
	if t == nil {
		return min, false
	}
	for _, r := range t.Rows {
		if r.TimeValid && (!found || r.Time.Before(min)) {
			min = r.Time
			found = true
		}
	}
	return min, found
}

// Clone returns a deep copy of the table. Every correcting or cleaning stage
// works on a clone so the original stays untouched.
func (t *SensorTable) Clone() *SensorTable {
	if t == nil {
		return nil
	}
	out := &SensorTable{
		Columns: append([]string(nil), t.Columns...),
		Rows:    make([]Row, len(t.Rows)),
	}
	if t.Classes != nil {
		out.Classes = make(map[string]ColumnClass, len(t.Classes))
		for k, v := range t.Classes {
			out.Classes[k] = v
		}
	}
	if t.Meta != nil {
		out.Meta = make(map[string]string, len(t.Meta))
		for k, v := range t.Meta {
			out.Meta[k] = v
		}
	}
	for i, r := range t.Rows {
		nr := Row{Time: r.Time, TimeValid: r.TimeValid, TimeRaw: r.TimeRaw}
		nr.Values = make(map[string]Value, len(r.Values))
		for k, v := range r.Values {
			nr.Values[k] = v
		}
		out.Rows[i] = nr
	}
	return out
}

// SortedByTime returns a copy of the table with rows ordered by timestamp
// ascending. Rows without a parsed timestamp sort before all others, keeping
// their relative order. Sortedness is a precondition for time-delta
// computations, not a table invariant, so callers sort explicitly.
func (t *SensorTable) SortedByTime() *SensorTable {
	out := t.Clone()
	if out == nil {
		return nil
	}
	sort.SliceStable(out.Rows, func(i, j int) bool {
		ri, rj := out.Rows[i], out.Rows[j]
		if ri.TimeValid != rj.TimeValid {
			return !ri.TimeValid
		}
		if !ri.TimeValid {
			return false
		}
		return ri.Time.Before(rj.Time)
	})
	return out
}

// TimeRange selects the window the dashboard filters to.
type TimeRange string

const (
	RangeLastDay  TimeRange = "day"
	RangeLastWeek TimeRange = "week"
	RangeCustom   TimeRange = "custom"
)

// Stats is the per-column daily aggregate bundle.
type Stats struct {
	Mean float64 `json:"mean"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Sum  float64 `json:"sum"`
}

// AggregateResult bundles the daily and weekly summaries. It is recomputed
// wholesale after every filter, clean, or correction step.
type AggregateResult struct {
	// DailyAggregates maps calendar date (YYYY-MM-DD) to per-column stats.
	DailyAggregates map[string]map[string]Stats `json:"dailyAggregates"`
	// WeeklyAggregates maps fixed KPI names to scalar totals.
	WeeklyAggregates map[string]float64 `json:"weeklyAggregates"`
}

// NewAggregateResult returns an empty result with both maps allocated.
func NewAggregateResult() *AggregateResult {
	return &AggregateResult{
		DailyAggregates:  make(map[string]map[string]Stats),
		WeeklyAggregates: make(map[string]float64),
	}
}
