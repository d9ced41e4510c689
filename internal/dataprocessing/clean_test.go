package dataprocessing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iotpulse/pkg/contracts/domain"
)

func TestFlowColumns(t *testing.T) {
	table := newTestTable([]string{"Temperature", "Flow_Rate_1", "Durchfluss_Rate", "ARA_Flow", "inflow_sensor"}, nil)

	assert.Equal(t,
		[]string{"Flow_Rate_1", "Durchfluss_Rate", "ARA_Flow", "inflow_sensor"},
		FlowColumns(table))
}

func TestCleanFlowData_NegativesForcedToZero(t *testing.T) {
	table := valueTable(t, "Flow_Rate_1", []float64{10, -3, 12, -0.5, 11})

	got := CleanFlowData(table, 0, 10)
	assert.Equal(t, []float64{10, 0, 12, 0, 11}, got.ColumnFloats("Flow_Rate_1"))

	// Input untouched.
	orig, _ := table.Rows[1].Values["Flow_Rate_1"].AsFloat()
	assert.Equal(t, -3.0, orig)
}

func TestCleanFlowData_MinimumThresholdRaisesSmallValues(t *testing.T) {
	table := valueTable(t, "Flow_Rate_1", []float64{10, 0.2, 0, 12})

	got := CleanFlowData(table, 0.5, 10)
	assert.Equal(t, []float64{10, 0.5, 0.5, 12}, got.ColumnFloats("Flow_Rate_1"))
}

func TestCleanFlowData_ZeroThresholdLeavesSmallValues(t *testing.T) {
	table := valueTable(t, "Flow_Rate_1", []float64{10, 0.2, 0, 12})

	got := CleanFlowData(table, 0, 10)
	assert.Equal(t, []float64{10, 0.2, 0, 12}, got.ColumnFloats("Flow_Rate_1"))
}

func TestCleanFlowData_ClampsMedianRelativeOutliers(t *testing.T) {
	// Median of positives is 10; anything above 10×10 gets replaced with the
	// rolling median of its window.
	table := valueTable(t, "Flow_Rate_1", []float64{10, 10, 10, 500, 10, 10, 10})

	got := CleanFlowData(table, 0, 10)
	v, ok := got.Rows[3].Values["Flow_Rate_1"].AsFloat()
	require.True(t, ok)
	assert.InDelta(t, 10.0, v, 1e-9)
}

func TestCleanFlowData_EdgeOutlierUsesPlainMedian(t *testing.T) {
	// The first two rows have no full centered window, so the plain median
	// stands in for the rolling one.
	table := valueTable(t, "Flow_Rate_1", []float64{900, 10, 12, 10, 12, 10})

	got := CleanFlowData(table, 0, 10)
	v, ok := got.Rows[0].Values["Flow_Rate_1"].AsFloat()
	require.True(t, ok)
	// Plain median of the positive values, 900 included: (10+12)/2.
	assert.InDelta(t, 11.0, v, 1e-9)
}

func TestCleanFlowData_NoiseFloorColumnsLeftAlone(t *testing.T) {
	// Positive median 0.05 is at the noise floor; the clamp must not run.
	table := valueTable(t, "Flow_Rate_1", []float64{0.05, 0.05, 0.04, 0.06, 5})

	got := CleanFlowData(table, 0, 10)
	v, _ := got.Rows[4].Values["Flow_Rate_1"].AsFloat()
	assert.Equal(t, 5.0, v)
}

func TestCleanFlowData_RepeatedCleaningIsStable(t *testing.T) {
	// A negative glitch, a sub-threshold reading, and a spike in one column:
	// cleaning the cleaned output must change nothing.
	table := valueTable(t, "Flow_Rate_1", []float64{10, -3, 12, 600, 11, 0.2, 13})

	once := CleanFlowData(table, 0.5, 10)
	assert.Equal(t, []float64{10, 0.5, 12, 11, 11, 0.5, 13}, once.ColumnFloats("Flow_Rate_1"))

	twice := CleanFlowData(once, 0.5, 10)
	assert.Equal(t, once.ColumnFloats("Flow_Rate_1"), twice.ColumnFloats("Flow_Rate_1"))
}

func TestCleanFlowData_NonFlowColumnsUntouched(t *testing.T) {
	rows := []domain.Row{
		{Values: map[string]domain.Value{
			"Temperature": domain.NumberValue(-7, ""),
			"Flow_Rate_1": domain.NumberValue(-7, ""),
		}},
	}
	table := newTestTable([]string{"Temperature", "Flow_Rate_1"}, rows)

	got := CleanFlowData(table, 0, 10)
	temp, _ := got.Rows[0].Values["Temperature"].AsFloat()
	flow, _ := got.Rows[0].Values["Flow_Rate_1"].AsFloat()
	assert.Equal(t, -7.0, temp)
	assert.Equal(t, 0.0, flow)
}

func TestCleanFlowData_NoFlowColumnsReturnsInput(t *testing.T) {
	table := valueTable(t, "Temperature", []float64{1, 2, 3})
	got := CleanFlowData(table, 0, 10)
	assert.Same(t, table, got)
}

func TestRollingMedian_WindowSkipsMissingValues(t *testing.T) {
	rows := []domain.Row{
		{Values: map[string]domain.Value{"F": domain.NumberValue(10, "")}},
		{Values: map[string]domain.Value{"F": domain.NumberValue(12, "")}},
		{Values: map[string]domain.Value{"F": domain.MissingValue("")}},
		{Values: map[string]domain.Value{"F": domain.NumberValue(14, "")}},
		{Values: map[string]domain.Value{"F": domain.NumberValue(16, "")}},
	}
	table := newTestTable([]string{"F"}, rows)

	smoothed := rollingMedian(table, "F", 99)
	// Row 2 is the only one with a full window; its window holds
	// {10, 12, 14, 16}.
	assert.InDelta(t, 13.0, smoothed[2], 1e-9)
	assert.Equal(t, 99.0, smoothed[0])
	assert.Equal(t, 99.0, smoothed[4])
}
