package dataprocessing

import (
	"log/slog"
	"time"

	"iotpulse/pkg/contracts/domain"
)

// FilterByTimeRange slices the table to the requested window. Filtering is
// deliberately lenient: an empty table, an untemporal Time column that cannot
// be repaired, or unusable custom bounds all return the input unchanged
// rather than failing, because the dashboard must keep working on messy
// exports.
func FilterByTimeRange(t *domain.SensorTable, timeRange domain.TimeRange, startDate, endDate string) *domain.SensorTable {
	if t.Empty() {
		return t
	}

	if !t.TimeParsed() {
		t = reparseTimes(t)
		if !t.TimeParsed() {
			slog.Warn("timestamp column is not temporal, returning data unfiltered")
			return t
		}
	}

	switch timeRange {
	case domain.RangeLastDay:
		latest, _ := t.MaxTime()
		return keepSince(t, latest.Add(-24*time.Hour))

	case domain.RangeLastWeek:
		latest, _ := t.MaxTime()
		return keepSince(t, latest.Add(-7*24*time.Hour))

	case domain.RangeCustom:
		if startDate == "" || endDate == "" {
			return t
		}
		start, err1 := parseBound(startDate)
		end, err2 := parseBound(endDate)
		if err1 != nil || err2 != nil {
			slog.Warn("could not parse custom date range, returning data unfiltered",
				slog.String("start", startDate),
				slog.String("end", endDate))
			return t
		}
		// The end date is inclusive, so advance one day and use a
		// half-open interval.
		end = end.AddDate(0, 0, 1)
		return keepBetween(t, start, end)
	}

	return t
}

// parseBound parses a custom range bound. Bounds are dates, optionally with a
// time component.
func parseBound(s string) (time.Time, error) {
	layouts := []string{"2006-01-02", "2006-01-02 15:04:05", "02.01.2006", "02/01/2006"}
	var lastErr error
	for _, layout := range layouts {
		ts, err := time.Parse(layout, s)
		if err == nil {
			return ts, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// reparseTimes retries timestamp parsing with the flexible layouts, for
// tables whose Time column survived ingestion unparsed.
func reparseTimes(t *domain.SensorTable) *domain.SensorTable {
	out := t.Clone()
	strategies := timeStrategies("")
	repaired := 0
	for i := range out.Rows {
		row := &out.Rows[i]
		if row.TimeValid || row.TimeRaw == "" {
			continue
		}
		for _, s := range strategies {
			if ts, err := s.parse(row.TimeRaw); err == nil {
				row.Time = ts
				row.TimeValid = true
				repaired++
				break
			}
		}
	}
	if repaired > 0 {
		slog.Info("reparsed timestamps before filtering", slog.Int("rows", repaired))
	}
	return out
}

// keepSince keeps rows with a parsed timestamp at or after the cutoff.
func keepSince(t *domain.SensorTable, cutoff time.Time) *domain.SensorTable {
	out := t.Clone()
	kept := out.Rows[:0]
	for _, r := range out.Rows {
		if r.TimeValid && !r.Time.Before(cutoff) {
			kept = append(kept, r)
		}
	}
	out.Rows = kept
	return out
}

// keepBetween keeps rows with start <= Time < end.
func keepBetween(t *domain.SensorTable, start, end time.Time) *domain.SensorTable {
	out := t.Clone()
	kept := out.Rows[:0]
	for _, r := range out.Rows {
		if r.TimeValid && !r.Time.Before(start) && r.Time.Before(end) {
			kept = append(kept, r)
		}
	}
	out.Rows = kept
	return out
}
