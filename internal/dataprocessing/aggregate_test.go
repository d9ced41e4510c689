package dataprocessing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iotpulse/pkg/contracts/domain"
)

func weeklyTable(t *testing.T) *domain.SensorTable {
	t.Helper()
	type sample struct {
		ts      string
		ph      float64
		turb    float64
		araFlow float64
		rate2   float64
		galgen  float64
		pumpOn  float64
	}
	samples := []sample{
		{"2024-03-04 08:00:00", 7.0, 1.2, 10, 5, 2, 1},
		{"2024-03-04 09:00:00", 7.2, 3.4, 10, 5, 2, 1},
		{"2024-03-05 08:00:00", 7.4, 2.0, 10, 5, 2, 0},
		{"2024-03-05 09:00:00", 7.4, 1.0, 10, 5, 2, 0},
	}
	rows := make([]domain.Row, 0, len(samples))
	for _, s := range samples {
		rows = append(rows, numericRow(t, s.ts, map[string]float64{
			"PH_58":            s.ph,
			"Trübung_Zulauf":   s.turb,
			"ARA_Flow":         s.araFlow,
			"Flow_Rate_2":      s.rate2,
			"Galgenkanal_Flow": s.galgen,
			"Pump_1":           s.pumpOn,
		}))
	}
	return newTestTable(
		[]string{"PH_58", "Trübung_Zulauf", "ARA_Flow", "Flow_Rate_2", "Galgenkanal_Flow", "Pump_1"},
		rows)
}

func TestCalculateAggregates_Daily(t *testing.T) {
	result := CalculateAggregates(weeklyTable(t), nil)

	require.Len(t, result.DailyAggregates, 2)
	day := result.DailyAggregates["2024-03-04"]
	require.NotNil(t, day)

	ph := day["PH_58"]
	assert.InDelta(t, 7.1, ph.Mean, 1e-9)
	assert.InDelta(t, 7.0, ph.Min, 1e-9)
	assert.InDelta(t, 7.2, ph.Max, 1e-9)
	assert.InDelta(t, 14.2, ph.Sum, 1e-9)
}

func TestCalculateAggregates_WeeklyKPIs(t *testing.T) {
	table := weeklyTable(t)
	result := CalculateAggregates(table, nil)
	weekly := result.WeeklyAggregates

	assert.InDelta(t, 7.25, weekly[KPIAvgPH], 1e-9)
	assert.InDelta(t, 3.4, weekly[KPIMaxTurbidity], 1e-9)

	// Flow totals are time-weighted integrals of the respective columns.
	assert.InDelta(t, IntegrateFlow(table, "ARA_Flow"), weekly[KPITotalFlowARA], 1e-9)
	assert.InDelta(t, IntegrateFlow(table, "Galgenkanal_Flow"), weekly[KPITotalFlowGalgen], 1e-9)
	assert.InDelta(t, IntegrateFlow(table, "Flow_Rate_2"), weekly[KPITotalFlowRate2], 1e-9)
	assert.InDelta(t,
		IntegrateFlow(table, "Flow_Rate_2")+IntegrateFlow(table, "ARA_Flow"),
		weekly[KPITotalFlowAll], 1e-9)
}

func TestCalculateAggregates_PumpDurationPrefersSuppliedRuntime(t *testing.T) {
	table := weeklyTable(t)
	runtimes := map[string]float64{TotalRuntimeKey: 3.25, "Pump_1": 3.25}

	result := CalculateAggregates(table, runtimes)
	assert.InDelta(t, 3.25, result.WeeklyAggregates[KPIPumpDuration], 1e-9)
}

func TestCalculateAggregates_PumpDurationFromDurationColumn(t *testing.T) {
	rows := []domain.Row{
		numericRow(t, "2024-03-04 08:00:00", map[string]float64{"Pumpdauer_1": 0.5, "Pump_1": 1}),
		numericRow(t, "2024-03-04 09:00:00", map[string]float64{"Pumpdauer_1": 0.25, "Pump_1": 1}),
	}
	table := newTestTable([]string{"Pumpdauer_1", "Pump_1"}, rows)

	result := CalculateAggregates(table, nil)
	assert.InDelta(t, 0.75, result.WeeklyAggregates[KPIPumpDuration], 1e-9)
}

func TestCalculateAggregates_LegacyPumpDurationHeuristic(t *testing.T) {
	// No supplied runtimes and no duration column: every positive pump
	// reading counts a fixed quarter hour.
	result := CalculateAggregates(weeklyTable(t), nil)
	assert.InDelta(t, 0.5, result.WeeklyAggregates[KPIPumpDuration], 1e-9)
}

func TestCalculateAggregates_TurbidityMatchedBySubstring(t *testing.T) {
	// Encoding damage turns the umlaut into a question mark; the KPI still
	// finds the column.
	rows := []domain.Row{
		numericRow(t, "2024-03-04 08:00:00", map[string]float64{"Tr?bung_Zulauf": 5.5}),
	}
	table := newTestTable([]string{"Tr?bung_Zulauf"}, rows)

	result := CalculateAggregates(table, nil)
	assert.InDelta(t, 5.5, result.WeeklyAggregates[KPIMaxTurbidity], 1e-9)
}

func TestCalculateAggregates_MissingColumnsYieldZeroKPIs(t *testing.T) {
	rows := []domain.Row{
		numericRow(t, "2024-03-04 08:00:00", map[string]float64{"Temperature": 21}),
	}
	table := newTestTable([]string{"Temperature"}, rows)

	result := CalculateAggregates(table, nil)
	weekly := result.WeeklyAggregates
	assert.Equal(t, 0.0, weekly[KPIAvgPH])
	assert.Equal(t, 0.0, weekly[KPIMaxTurbidity])
	assert.Equal(t, 0.0, weekly[KPITotalFlowARA])
	assert.Equal(t, 0.0, weekly[KPITotalFlowAll])
}

func TestCalculateAggregates_EmptyTable(t *testing.T) {
	result := CalculateAggregates(&domain.SensorTable{}, nil)
	assert.Empty(t, result.DailyAggregates)
	assert.Empty(t, result.WeeklyAggregates)
}

func TestCalculateAggregates_UntemporalTable(t *testing.T) {
	rows := []domain.Row{
		{TimeRaw: "garbage", Values: map[string]domain.Value{"PH_58": domain.NumberValue(7, "")}},
	}
	table := newTestTable([]string{"PH_58"}, rows)

	result := CalculateAggregates(table, nil)
	assert.Empty(t, result.DailyAggregates)
}

func TestCalculateAggregates_BooleanColumnsAggregateAsZeroOne(t *testing.T) {
	rows := []domain.Row{
		{Time: mustTime(t, "2024-03-04 08:00:00"), TimeValid: true,
			Values: map[string]domain.Value{"Valve_Open": domain.BoolValue(true, "true")}},
		{Time: mustTime(t, "2024-03-04 09:00:00"), TimeValid: true,
			Values: map[string]domain.Value{"Valve_Open": domain.BoolValue(false, "false")}},
	}
	table := newTestTable([]string{"Valve_Open"}, rows)

	result := CalculateAggregates(table, nil)
	day := result.DailyAggregates["2024-03-04"]
	require.NotNil(t, day)
	assert.InDelta(t, 0.5, day["Valve_Open"].Mean, 1e-9)
	assert.InDelta(t, 1.0, day["Valve_Open"].Sum, 1e-9)
}
