package dataprocessing

import (
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"iotpulse/pkg/contracts/domain"
)

// TotalRuntimeKey is the aggregate key PumpRuntime adds next to the
// per-variable runtimes.
const TotalRuntimeKey = "total_runtime"

// fallbackDeltaHours is the assumed sampling interval (15 minutes) used when
// the mean interval cannot be derived from the data. It is part of the
// integration model; totals depend on it.
const fallbackDeltaHours = 0.25

// IntegrateFlow converts instantaneous rate samples of one column into a
// time-weighted total: the sum of rate × elapsed hours over the
// timestamp-ordered readings. Rows whose value is missing, infinite, or
// negative are dropped first; negative readings are invalid sensor output,
// not real decreases. The first surviving row has no predecessor, so its
// interval is assumed to be the mean of all other intervals, or 15 minutes
// when that mean is undefined or zero.
func IntegrateFlow(t *domain.SensorTable, column string) float64 {
	if t.Empty() || !t.HasColumn(column) {
		return 0
	}

	sorted := t.SortedByTime()
	var times []time.Time
	var values []float64
	for _, r := range sorted.Rows {
		if !r.TimeValid {
			continue
		}
		f, ok := r.Values[column].AsFloat()
		if !ok || math.IsInf(f, 0) || math.IsNaN(f) || f < 0 {
			continue
		}
		times = append(times, r.Time)
		values = append(values, f)
	}
	if len(values) == 0 {
		return 0
	}

	deltas := intervalHours(times)
	total := 0.0
	for i, v := range values {
		total += v * deltas[i]
	}
	return total
}

// intervalHours computes the per-row elapsed hours against the previous row.
// The first row's interval is the mean of the remaining intervals, with the
// fixed 15-minute fallback when that mean is undefined or zero.
func intervalHours(times []time.Time) []float64 {
	if len(times) == 0 {
		return nil
	}
	deltas := make([]float64, len(times))
	sum := 0.0
	for i := 1; i < len(times); i++ {
		deltas[i] = times[i].Sub(times[i-1]).Hours()
		sum += deltas[i]
	}

	first := fallbackDeltaHours
	if len(times) > 1 {
		if mean := sum / float64(len(times)-1); mean > 0 {
			first = mean
		}
	}
	deltas[0] = first
	return deltas
}

// PumpRuntime converts pump status samples into cumulative runtime hours per
// pump variable, plus a combined total under TotalRuntimeKey. A pump counts
// as running for a row when its coerced status is positive; the row then
// contributes its full sampling interval. Overlapping pumps are counted
// independently, not deduplicated. Variables absent from the table are
// skipped with a diagnostic.
//
// The intervals are computed once against the full timestamp-ordered table
// and shared across all pump variables; the result is identical to
// recomputing them per variable.
func PumpRuntime(t *domain.SensorTable, pumpVariables []string) map[string]float64 {
	result := make(map[string]float64, len(pumpVariables)+1)
	result[TotalRuntimeKey] = 0
	if t.Empty() {
		return result
	}

	sorted := t.SortedByTime()
	var times []time.Time
	var rows []domain.Row
	for _, r := range sorted.Rows {
		if r.TimeValid {
			times = append(times, r.Time)
			rows = append(rows, r)
		}
	}
	if len(rows) == 0 {
		return result
	}
	deltas := intervalHours(times)

	total := 0.0
	for _, variable := range pumpVariables {
		if !t.HasColumn(variable) {
			slog.Warn("pump variable not present in data, skipping",
				slog.String("variable", variable))
			continue
		}
		runtime := 0.0
		for i, r := range rows {
			if coercePumpStatus(r.Values[variable]) > 0 {
				runtime += deltas[i]
			}
		}
		result[variable] = runtime
		total += runtime
	}
	result[TotalRuntimeKey] = total
	return result
}

// coercePumpStatus maps a garbled status cell onto a numeric on/off signal.
// Missing values mean "off". Booleans map to 0/1. Cells that failed numeric
// coercion at ingest are re-scanned for the literal substrings "true" and
// "false" (logger firmware emits variants like "True "), then retried as
// numbers; anything else is off.
func coercePumpStatus(v domain.Value) float64 {
	switch v.Kind {
	case domain.ValueNumber:
		return v.Float
	case domain.ValueBool:
		if v.Bool {
			return 1
		}
		return 0
	default:
		raw := strings.ToLower(v.Raw)
		if raw == "" {
			return 0
		}
		if strings.Contains(raw, "true") {
			return 1
		}
		if strings.Contains(raw, "false") {
			return 0
		}
		if f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil {
			return f
		}
		return 0
	}
}
