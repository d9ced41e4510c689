package dataprocessing

import (
	"log/slog"
	"math"
	"sort"

	"github.com/montanaflynn/stats"

	"iotpulse/pkg/contracts/domain"
)

// OutlierMethod selects the detection statistic.
type OutlierMethod string

const (
	OutlierIQR        OutlierMethod = "iqr"
	OutlierZScore     OutlierMethod = "zscore"
	OutlierPercentile OutlierMethod = "percentile"
)

// CorrectionMethod selects how flagged values are repaired in the
// single-variable flow.
type CorrectionMethod string

const (
	CorrectMean    CorrectionMethod = "mean"
	CorrectMedian  CorrectionMethod = "median"
	CorrectNearest CorrectionMethod = "nearest"
	CorrectRemove  CorrectionMethod = "remove"
)

// Replacement selects the bulk-removal substitution.
type Replacement string

const (
	ReplaceNull        Replacement = "null"
	ReplaceMean        Replacement = "mean"
	ReplaceMedian      Replacement = "median"
	ReplaceZero        Replacement = "zero"
	ReplaceInterpolate Replacement = "interpolate"
)

// DefaultOutlierThreshold is the single-variable detection default (IQR k and
// z-score cutoff alike).
const DefaultOutlierThreshold = 1.5

// DefaultBulkZScoreThreshold is the bulk-removal z-score default. It differs
// from the single-variable default on purpose; both entry points keep their
// historical values.
const DefaultBulkZScoreThreshold = 3.0

// IdentifyOutliers flags anomalous rows of one variable and returns their
// positions. Missing cells are never flagged. Unknown methods fall back to
// IQR with the default threshold.
func IdentifyOutliers(t *domain.SensorTable, variable string, method OutlierMethod, threshold float64) []int {
	if t.Empty() || !t.HasColumn(variable) {
		return nil
	}
	if threshold <= 0 {
		threshold = DefaultOutlierThreshold
	}

	switch method {
	case OutlierIQR:
		return flagIQR(t, variable, threshold)
	case OutlierZScore:
		return flagZScore(t, variable, threshold)
	default:
		slog.Warn("unknown outlier method, using IQR",
			slog.String("method", string(method)))
		return flagIQR(t, variable, DefaultOutlierThreshold)
	}
}

func flagIQR(t *domain.SensorTable, variable string, k float64) []int {
	values := t.ColumnFloats(variable)
	if len(values) == 0 {
		return nil
	}
	q1, err1 := stats.Percentile(values, 25)
	q3, err2 := stats.Percentile(values, 75)
	if err1 != nil || err2 != nil {
		return nil
	}
	iqr := q3 - q1
	lower := q1 - k*iqr
	upper := q3 + k*iqr

	var flagged []int
	for i, r := range t.Rows {
		if f, ok := r.Values[variable].AsFloat(); ok && (f < lower || f > upper) {
			flagged = append(flagged, i)
		}
	}
	return flagged
}

func flagZScore(t *domain.SensorTable, variable string, threshold float64) []int {
	values := t.ColumnFloats(variable)
	if len(values) < 2 {
		return nil
	}
	mean, err1 := stats.Mean(values)
	std, err2 := stats.StandardDeviationSample(values)
	if err1 != nil || err2 != nil || std == 0 {
		return nil
	}

	var flagged []int
	for i, r := range t.Rows {
		if f, ok := r.Values[variable].AsFloat(); ok && math.Abs(f-mean)/std > threshold {
			flagged = append(flagged, i)
		}
	}
	return flagged
}

func flagPercentile(t *domain.SensorTable, variable string) []int {
	values := t.ColumnFloats(variable)
	if len(values) == 0 {
		return nil
	}
	low, err1 := stats.Percentile(values, 1)
	high, err2 := stats.Percentile(values, 99)
	if err1 != nil || err2 != nil {
		return nil
	}

	var flagged []int
	for i, r := range t.Rows {
		if f, ok := r.Values[variable].AsFloat(); ok && (f < low || f > high) {
			flagged = append(flagged, i)
		}
	}
	return flagged
}

// CorrectOutliers repairs the flagged rows of one variable and returns a new
// table; the input is never touched. An empty flag set is a no-op. Mean and
// median replacements are computed over the full column, flagged values
// included, matching the interactive correction behavior users expect after
// a detect step.
func CorrectOutliers(t *domain.SensorTable, variable string, flagged []int, method CorrectionMethod) *domain.SensorTable {
	if t.Empty() || !t.HasColumn(variable) || len(flagged) == 0 {
		return t
	}

	out := t.Clone()
	switch method {
	case CorrectMean:
		if mean, err := stats.Mean(t.ColumnFloats(variable)); err == nil {
			for _, idx := range flagged {
				if idx >= 0 && idx < len(out.Rows) {
					out.Rows[idx].Values[variable] = domain.NumberValue(mean, "")
				}
			}
		}

	case CorrectMedian:
		if median, err := stats.Median(t.ColumnFloats(variable)); err == nil {
			for _, idx := range flagged {
				if idx >= 0 && idx < len(out.Rows) {
					out.Rows[idx].Values[variable] = domain.NumberValue(median, "")
				}
			}
		}

	case CorrectNearest:
		correctNearest(out, t, variable, flagged)

	case CorrectRemove:
		out.Rows = dropRows(out.Rows, flagged)

	default:
		slog.Warn("unknown correction method, leaving data unchanged",
			slog.String("method", string(method)))
	}
	return out
}

// correctNearest replaces each flagged value with the value of the nearest
// non-flagged row that holds a usable value. Distance is index distance, not
// time distance; on a tie the lower index wins. When no valid neighbor
// exists at all, the column median is used instead.
func correctNearest(out, original *domain.SensorTable, variable string, flagged []int) {
	isFlagged := make(map[int]bool, len(flagged))
	for _, idx := range flagged {
		isFlagged[idx] = true
	}

	valid := func(i int) bool {
		if i < 0 || i >= len(original.Rows) || isFlagged[i] {
			return false
		}
		_, ok := original.Rows[i].Values[variable].AsFloat()
		return ok
	}

	anyValid := false
	for i := range original.Rows {
		if valid(i) {
			anyValid = true
			break
		}
	}

	for _, idx := range flagged {
		if idx < 0 || idx >= len(out.Rows) {
			continue
		}
		if !anyValid {
			if median, err := stats.Median(original.ColumnFloats(variable)); err == nil {
				out.Rows[idx].Values[variable] = domain.NumberValue(median, "")
			}
			continue
		}
		for d := 1; d < len(original.Rows); d++ {
			if valid(idx - d) {
				f, _ := original.Rows[idx-d].Values[variable].AsFloat()
				out.Rows[idx].Values[variable] = domain.NumberValue(f, "")
				break
			}
			if valid(idx + d) {
				f, _ := original.Rows[idx+d].Values[variable].AsFloat()
				out.Rows[idx].Values[variable] = domain.NumberValue(f, "")
				break
			}
		}
	}
}

func dropRows(rows []domain.Row, flagged []int) []domain.Row {
	drop := make(map[int]bool, len(flagged))
	for _, idx := range flagged {
		drop[idx] = true
	}
	kept := rows[:0]
	for i, r := range rows {
		if !drop[i] {
			kept = append(kept, r)
		}
	}
	return kept
}

// RemoveOutliers is the bulk pass: every requested variable (all numeric
// columns when none are given) is flagged with the same method in one sweep,
// then the replacement is applied. The z-score default here is 3.0, distinct
// from the single-variable default. The percentile method always uses the
// [1st, 99th] band.
func RemoveOutliers(t *domain.SensorTable, method OutlierMethod, variables []string, threshold float64, replacement Replacement) *domain.SensorTable {
	if t.Empty() {
		return t
	}
	if len(variables) == 0 {
		variables = t.NumericColumns()
	}
	if threshold <= 0 {
		if method == OutlierZScore {
			threshold = DefaultBulkZScoreThreshold
		} else {
			threshold = DefaultOutlierThreshold
		}
	}

	flaggedByVar := make(map[string][]int, len(variables))
	total := 0
	for _, variable := range variables {
		if !t.HasColumn(variable) {
			slog.Warn("skipping unknown variable in bulk outlier removal",
				slog.String("variable", variable))
			continue
		}
		var flagged []int
		switch method {
		case OutlierPercentile:
			flagged = flagPercentile(t, variable)
		case OutlierZScore:
			flagged = flagZScore(t, variable, threshold)
		default:
			flagged = flagIQR(t, variable, threshold)
		}
		if len(flagged) > 0 {
			flaggedByVar[variable] = flagged
			total += len(flagged)
		}
	}
	if total == 0 {
		return t
	}
	slog.Info("bulk outlier removal",
		slog.String("method", string(method)),
		slog.String("replacement", string(replacement)),
		slog.Int("flagged", total))

	out := t.Clone()
	for variable, flagged := range flaggedByVar {
		applyReplacement(out, t, variable, flagged, replacement)
	}
	if replacement == ReplaceInterpolate {
		// Interpolation runs once per column after all variables were
		// flagged, over the full row span.
		for variable := range flaggedByVar {
			interpolateColumn(out, variable)
		}
	}
	return out
}

func applyReplacement(out, original *domain.SensorTable, variable string, flagged []int, replacement Replacement) {
	var fill domain.Value
	switch replacement {
	case ReplaceMean:
		mean, err := stats.Mean(original.ColumnFloats(variable))
		if err != nil {
			return
		}
		fill = domain.NumberValue(mean, "")
	case ReplaceMedian:
		median, err := stats.Median(original.ColumnFloats(variable))
		if err != nil {
			return
		}
		fill = domain.NumberValue(median, "")
	case ReplaceZero:
		fill = domain.NumberValue(0, "")
	default:
		// null and interpolate both blank the cell first; interpolation
		// fills afterwards.
		fill = domain.MissingValue("")
	}
	for _, idx := range flagged {
		if idx >= 0 && idx < len(out.Rows) {
			out.Rows[idx].Values[variable] = fill
		}
	}
}

// interpolateColumn linearly fills missing cells between the surrounding
// valid values by row position. Leading gaps stay missing; trailing gaps
// carry the last valid value forward.
func interpolateColumn(t *domain.SensorTable, variable string) {
	var validIdx []int
	for i, r := range t.Rows {
		if _, ok := r.Values[variable].AsFloat(); ok {
			validIdx = append(validIdx, i)
		}
	}
	if len(validIdx) == 0 {
		return
	}

	for i := range t.Rows {
		if _, ok := t.Rows[i].Values[variable].AsFloat(); ok {
			continue
		}
		pos := sort.SearchInts(validIdx, i)
		switch {
		case pos == 0:
			// Before the first valid value: nothing to anchor on.
		case pos == len(validIdx):
			last, _ := t.Rows[validIdx[len(validIdx)-1]].Values[variable].AsFloat()
			t.Rows[i].Values[variable] = domain.NumberValue(last, "")
		default:
			lo, hi := validIdx[pos-1], validIdx[pos]
			vLo, _ := t.Rows[lo].Values[variable].AsFloat()
			vHi, _ := t.Rows[hi].Values[variable].AsFloat()
			frac := float64(i-lo) / float64(hi-lo)
			t.Rows[i].Values[variable] = domain.NumberValue(vLo+(vHi-vLo)*frac, "")
		}
	}
}
