package dataprocessing

import (
	"log/slog"
	"strings"

	"github.com/montanaflynn/stats"

	"iotpulse/pkg/contracts/domain"
)

// Weekly KPI keys. The names are fixed contract with the dashboard frontend.
const (
	KPIAvgPH           = "avgPH_58"
	KPIMaxTurbidity    = "maxTrübung_Zulauf"
	KPIPumpDuration    = "pumpDuration"
	KPITotalFlowARA    = "totalFlowARA"
	KPITotalFlowGalgen = "totalFlowGalgenkanal"
	KPITotalFlowRate2  = "totalFlowRate2"
	KPITotalFlowAll    = "totalFlowCombined"
)

// phColumn is the designated pH sensor column.
const phColumn = "PH_58"

// combinedFlowColumns is the fixed device subset summed into the combined
// flow total.
var combinedFlowColumns = []string{"Flow_Rate_2", "ARA_Flow"}

// legacyPumpInterval is the coarse per-row duration assumed by the historical
// pump-duration fallback. It deliberately stays a separate, less accurate
// path next to the interval-based PumpRuntime; the two can disagree on
// non-uniform sampling and are not reconciled.
const legacyPumpInterval = 0.25

// CalculateAggregates computes the per-day summary statistics and the fixed
// weekly KPI set. The result is rebuilt from scratch on every call; nothing
// is updated incrementally. pumpRuntimes is the output of PumpRuntime and may
// be nil, in which case the pump duration falls back to an explicit duration
// column and finally to the legacy row-count heuristic.
func CalculateAggregates(t *domain.SensorTable, pumpRuntimes map[string]float64) *domain.AggregateResult {
	result := domain.NewAggregateResult()
	if t.Empty() {
		return result
	}
	if !t.TimeParsed() {
		slog.Warn("cannot aggregate: timestamp column is not temporal")
		return result
	}

	numericCols := t.NumericColumns()
	result.DailyAggregates = dailyAggregates(t, numericCols)

	weekly := result.WeeklyAggregates
	weekly[KPIAvgPH] = columnMean(t, phColumn)
	weekly[KPIMaxTurbidity] = columnMax(t, turbidityColumn(numericCols))
	weekly[KPIPumpDuration] = pumpDuration(t, numericCols, pumpRuntimes)

	flowCols := weeklyFlowColumns(numericCols)
	weekly[KPITotalFlowARA] = integrateNamed(t, firstMatch(flowCols, "ARA"))
	weekly[KPITotalFlowGalgen] = integrateNamed(t, firstMatch(flowCols, "Galgen"))
	weekly[KPITotalFlowRate2] = integrateNamed(t, firstExact(flowCols, "Flow_Rate_2"))

	combined := 0.0
	for _, col := range combinedFlowColumns {
		if t.HasColumn(col) {
			combined += IntegrateFlow(t, col)
		}
	}
	weekly[KPITotalFlowAll] = combined

	return result
}

// dailyAggregates groups rows by calendar date and computes mean/min/max/sum
// for every numeric column.
func dailyAggregates(t *domain.SensorTable, numericCols []string) map[string]map[string]domain.Stats {
	byDate := make(map[string]map[string][]float64)
	for _, r := range t.Rows {
		if !r.TimeValid {
			continue
		}
		date := r.Time.Format("2006-01-02")
		if byDate[date] == nil {
			byDate[date] = make(map[string][]float64, len(numericCols))
		}
		for _, col := range numericCols {
			if f, ok := r.Values[col].AsFloat(); ok {
				byDate[date][col] = append(byDate[date][col], f)
			}
		}
	}

	daily := make(map[string]map[string]domain.Stats, len(byDate))
	for date, cols := range byDate {
		daily[date] = make(map[string]domain.Stats, len(cols))
		for col, values := range cols {
			if len(values) == 0 {
				continue
			}
			mean, _ := stats.Mean(values)
			min, _ := stats.Min(values)
			max, _ := stats.Max(values)
			sum, _ := stats.Sum(values)
			daily[date][col] = domain.Stats{Mean: mean, Min: min, Max: max, Sum: sum}
		}
	}
	return daily
}

// pumpDuration resolves the pump duration KPI through its three paths, most
// precise first: externally supplied interval-based runtime, an explicit
// duration column, then the legacy row-count heuristic.
func pumpDuration(t *domain.SensorTable, numericCols []string, pumpRuntimes map[string]float64) float64 {
	if pumpRuntimes != nil {
		if total, ok := pumpRuntimes[TotalRuntimeKey]; ok {
			return total
		}
	}

	for _, col := range numericCols {
		if strings.Contains(col, "Pump") && strings.Contains(col, "dauer") {
			return columnSum(t, col)
		}
	}

	return legacyPumpDuration(t, numericCols)
}

// legacyPumpDuration is the historical approximation: every positive reading
// of a pump column counts for a fixed quarter hour, regardless of the real
// sampling interval.
func legacyPumpDuration(t *domain.SensorTable, numericCols []string) float64 {
	total := 0.0
	for _, col := range numericCols {
		if !strings.Contains(col, "Pump") {
			continue
		}
		for _, r := range t.Rows {
			if f, ok := r.Values[col].AsFloat(); ok && f > 0 {
				total += legacyPumpInterval
			}
		}
	}
	return total
}

// turbidityColumn matches the turbidity sensor by substring so the umlaut's
// encoding in "Trübung" never matters.
func turbidityColumn(numericCols []string) string {
	for _, col := range numericCols {
		if strings.Contains(col, "Tr") && strings.Contains(col, "bung") {
			return col
		}
	}
	return ""
}

func weeklyFlowColumns(numericCols []string) []string {
	var cols []string
	for _, col := range numericCols {
		if strings.Contains(col, "Flow") || strings.Contains(col, "Durchfluss") {
			cols = append(cols, col)
		}
	}
	return cols
}

func firstMatch(cols []string, substr string) string {
	for _, col := range cols {
		if strings.Contains(col, substr) {
			return col
		}
	}
	return ""
}

func firstExact(cols []string, name string) string {
	for _, col := range cols {
		if col == name {
			return col
		}
	}
	return ""
}

func integrateNamed(t *domain.SensorTable, col string) float64 {
	if col == "" {
		return 0
	}
	return IntegrateFlow(t, col)
}

func columnMean(t *domain.SensorTable, col string) float64 {
	if col == "" || !t.HasColumn(col) {
		return 0
	}
	mean, err := stats.Mean(t.ColumnFloats(col))
	if err != nil {
		return 0
	}
	return mean
}

func columnMax(t *domain.SensorTable, col string) float64 {
	if col == "" || !t.HasColumn(col) {
		return 0
	}
	max, err := stats.Max(t.ColumnFloats(col))
	if err != nil {
		return 0
	}
	return max
}

func columnSum(t *domain.SensorTable, col string) float64 {
	sum, err := stats.Sum(t.ColumnFloats(col))
	if err != nil {
		return 0
	}
	return sum
}
