package exporter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"

	"iotpulse/pkg/contracts/domain"
)

// WriteAggregatesJSON writes the full aggregate result as indented JSON.
func WriteAggregatesJSON(w io.Writer, result *domain.AggregateResult) error {
	if result == nil {
		return fmt.Errorf("nil aggregate result")
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// WriteWeeklyCSV writes the weekly KPI map as a two-column CSV, sorted by
// KPI name so output is stable.
func WriteWeeklyCSV(w io.Writer, result *domain.AggregateResult, opts Options) error {
	if result == nil {
		return fmt.Errorf("nil aggregate result")
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
	if err := cw.Write([]string{"kpi", "value"}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	keys := make([]string, 0, len(result.WeeklyAggregates))
	for k := range result.WeeklyAggregates {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v := strconv.FormatFloat(result.WeeklyAggregates[k], 'f', -1, 64)
		if err := cw.Write([]string{k, v}); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}
