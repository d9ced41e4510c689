package dataprocessing

import (
	"log/slog"
	"strings"

	"github.com/montanaflynn/stats"

	"iotpulse/pkg/contracts/domain"
)

// flowColumnPatterns are the substring patterns (case-sensitive) that mark a
// column as flow-like.
var flowColumnPatterns = []string{"flow", "Flow", "Rate"}

// knownFlowColumns is the explicit allow-list of device columns treated as
// flow regardless of naming.
var knownFlowColumns = []string{"Flow_Rate_1", "Flow_Rate_2", "ARA_Flow", "Galgenkanal_Flow"}

// noiseFloorMedian: a positive-value median at or below this is noise, not a
// real signal, and the column is left alone by the outlier clamp.
const noiseFloorMedian = 0.1

// rollingWindow is the fixed centered window for the rolling-median
// replacement. It spans rows, not time, so it covers different real-time
// durations on irregular sampling. Inherited behavior.
const rollingWindow = 5

// DefaultMaxOutlierFactor caps flow readings at this multiple of the column's
// positive median unless the caller overrides it.
const DefaultMaxOutlierFactor = 10.0

// CleanFlowData runs the domain sanitation pass over all flow-like columns
// and returns a new table:
//
//  1. negative readings are forced to exactly 0,
//  2. with a positive minThreshold, readings in [0, minThreshold) are raised
//     to minThreshold,
//  3. readings above maxOutlierFactor × the column's positive median are
//     replaced by a centered rolling median (plain median at the edges),
//  4. a final re-scan forces any remaining negative back to 0 — negative
//     flow never leaves this component.
func CleanFlowData(t *domain.SensorTable, minThreshold, maxOutlierFactor float64) *domain.SensorTable {
	if t.Empty() {
		return t
	}
	if maxOutlierFactor <= 0 {
		maxOutlierFactor = DefaultMaxOutlierFactor
	}

	columns := FlowColumns(t)
	if len(columns) == 0 {
		return t
	}

	out := t.Clone()
	for _, col := range columns {
		zeroNegatives(out, col)
		if minThreshold > 0 {
			raiseToMinimum(out, col, minThreshold)
		}
		clampOutliers(out, col, maxOutlierFactor)
	}
	for _, col := range columns {
		zeroNegatives(out, col)
	}
	return out
}

// FlowColumns returns the columns the cleaner treats as flow measurements:
// pattern matches unioned with the explicit device allow-list.
func FlowColumns(t *domain.SensorTable) []string {
	var columns []string
	for _, col := range t.Columns {
		if isFlowColumn(col) {
			columns = append(columns, col)
		}
	}
	return columns
}

func isFlowColumn(name string) bool {
	for _, known := range knownFlowColumns {
		if name == known {
			return true
		}
	}
	for _, pattern := range flowColumnPatterns {
		if strings.Contains(name, pattern) {
			return true
		}
	}
	return false
}

func zeroNegatives(t *domain.SensorTable, col string) {
	for i := range t.Rows {
		if f, ok := t.Rows[i].Values[col].AsFloat(); ok && f < 0 {
			t.Rows[i].Values[col] = domain.NumberValue(0, "")
		}
	}
}

func raiseToMinimum(t *domain.SensorTable, col string, min float64) {
	for i := range t.Rows {
		if f, ok := t.Rows[i].Values[col].AsFloat(); ok && f >= 0 && f < min {
			t.Rows[i].Values[col] = domain.NumberValue(min, "")
		}
	}
}

// clampOutliers replaces readings above the median-relative ceiling with a
// smoothed estimate. The rolling medians are computed once against the
// column state before any replacement, so earlier replacements do not feed
// later windows.
func clampOutliers(t *domain.SensorTable, col string, factor float64) {
	positives := make([]float64, 0, len(t.Rows))
	for _, r := range t.Rows {
		if f, ok := r.Values[col].AsFloat(); ok && f > 0 {
			positives = append(positives, f)
		}
	}
	median, err := stats.Median(positives)
	if err != nil || median <= noiseFloorMedian {
		// All-zero or near-zero columns are noise floor; clamping them
		// against a tiny median would shred real data.
		return
	}
	upper := median * factor

	smoothed := rollingMedian(t, col, median)
	replaced := 0
	for i := range t.Rows {
		if f, ok := t.Rows[i].Values[col].AsFloat(); ok && f > upper {
			t.Rows[i].Values[col] = domain.NumberValue(smoothed[i], "")
			replaced++
		}
	}
	if replaced > 0 {
		slog.Info("clamped flow outliers",
			slog.String("column", col),
			slog.Int("replaced", replaced),
			slog.Float64("upper_limit", upper))
	}
}

// rollingMedian computes the centered window-5 median per row. Rows without a
// full window on both sides, or whose window holds no usable values, fall
// back to the plain column median.
func rollingMedian(t *domain.SensorTable, col string, plainMedian float64) []float64 {
	half := rollingWindow / 2
	out := make([]float64, len(t.Rows))
	for i := range t.Rows {
		if i < half || i >= len(t.Rows)-half {
			out[i] = plainMedian
			continue
		}
		window := make([]float64, 0, rollingWindow)
		for j := i - half; j <= i+half; j++ {
			if f, ok := t.Rows[j].Values[col].AsFloat(); ok {
				window = append(window, f)
			}
		}
		if m, err := stats.Median(window); err == nil {
			out[i] = m
		} else {
			out[i] = plainMedian
		}
	}
	return out
}
