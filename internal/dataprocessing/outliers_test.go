package dataprocessing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iotpulse/pkg/contracts/domain"
)

func valueTable(t *testing.T, column string, values []float64) *domain.SensorTable {
	t.Helper()
	rows := make([]domain.Row, 0, len(values))
	for _, v := range values {
		rows = append(rows, domain.Row{Values: map[string]domain.Value{
			column: domain.NumberValue(v, ""),
		}})
	}
	return newTestTable([]string{column}, rows)
}

func TestIdentifyOutliers_IQR(t *testing.T) {
	table := valueTable(t, "Temperature", []float64{20, 21, 22, 21, 20, 22, 21, 100})

	flagged := IdentifyOutliers(table, "Temperature", OutlierIQR, 1.5)
	assert.Equal(t, []int{7}, flagged)
}

func TestIdentifyOutliers_ZScore(t *testing.T) {
	table := valueTable(t, "Temperature", []float64{20, 21, 22, 21, 20, 22, 21, 100})

	flagged := IdentifyOutliers(table, "Temperature", OutlierZScore, 1.5)
	assert.Equal(t, []int{7}, flagged)
}

func TestIdentifyOutliers_ZScoreConstantColumn(t *testing.T) {
	table := valueTable(t, "Temperature", []float64{5, 5, 5, 5})

	flagged := IdentifyOutliers(table, "Temperature", OutlierZScore, 1.5)
	assert.Empty(t, flagged)
}

func TestIdentifyOutliers_UnknownMethodFallsBackToIQR(t *testing.T) {
	table := valueTable(t, "Temperature", []float64{20, 21, 22, 21, 20, 22, 21, 100})

	flagged := IdentifyOutliers(table, "Temperature", OutlierMethod("mad"), 1.5)
	assert.Equal(t, []int{7}, flagged)
}

func TestIdentifyOutliers_MissingCellsNeverFlagged(t *testing.T) {
	rows := []domain.Row{
		{Values: map[string]domain.Value{"Temperature": domain.NumberValue(20, "")}},
		{Values: map[string]domain.Value{"Temperature": domain.MissingValue("ERR")}},
		{Values: map[string]domain.Value{"Temperature": domain.NumberValue(21, "")}},
		{Values: map[string]domain.Value{"Temperature": domain.NumberValue(20, "")}},
		{Values: map[string]domain.Value{"Temperature": domain.NumberValue(21, "")}},
		{Values: map[string]domain.Value{"Temperature": domain.NumberValue(20, "")}},
		{Values: map[string]domain.Value{"Temperature": domain.NumberValue(21, "")}},
		{Values: map[string]domain.Value{"Temperature": domain.NumberValue(1000, "")}},
	}
	table := newTestTable([]string{"Temperature"}, rows)

	flagged := IdentifyOutliers(table, "Temperature", OutlierIQR, 1.5)
	assert.Equal(t, []int{7}, flagged)
}

func TestIdentifyOutliers_UnknownColumn(t *testing.T) {
	table := valueTable(t, "Temperature", []float64{20, 21})
	assert.Nil(t, IdentifyOutliers(table, "Pressure", OutlierIQR, 1.5))
}

func TestCorrectOutliers_MeanUsesFullColumn(t *testing.T) {
	table := valueTable(t, "Temperature", []float64{10, 20, 90})

	got := CorrectOutliers(table, "Temperature", []int{2}, CorrectMean)
	v, ok := got.Rows[2].Values["Temperature"].AsFloat()
	require.True(t, ok)
	// Mean includes the flagged value itself: (10+20+90)/3.
	assert.InDelta(t, 40.0, v, 1e-9)

	// The input table is untouched.
	orig, _ := table.Rows[2].Values["Temperature"].AsFloat()
	assert.Equal(t, 90.0, orig)
}

func TestCorrectOutliers_Median(t *testing.T) {
	table := valueTable(t, "Temperature", []float64{10, 20, 30, 900})

	got := CorrectOutliers(table, "Temperature", []int{3}, CorrectMedian)
	v, _ := got.Rows[3].Values["Temperature"].AsFloat()
	assert.InDelta(t, 25.0, v, 1e-9)
}

func TestCorrectOutliers_CorrectedValuesNotReflagged(t *testing.T) {
	table := valueTable(t, "Temperature", []float64{20, 21, 22, 21, 20, 22, 21, 100})

	flagged := IdentifyOutliers(table, "Temperature", OutlierIQR, 1.5)
	require.Equal(t, []int{7}, flagged)

	got := CorrectOutliers(table, "Temperature", flagged, CorrectMedian)
	v, _ := got.Rows[7].Values["Temperature"].AsFloat()
	assert.InDelta(t, 21.0, v, 1e-9)

	// A second detection pass over the repaired column finds nothing.
	assert.Empty(t, IdentifyOutliers(got, "Temperature", OutlierIQR, 1.5))
}

func TestCorrectOutliers_NearestLowerIndexWinsTies(t *testing.T) {
	table := valueTable(t, "Temperature", []float64{10, 999, 30})

	got := CorrectOutliers(table, "Temperature", []int{1}, CorrectNearest)
	v, _ := got.Rows[1].Values["Temperature"].AsFloat()
	assert.Equal(t, 10.0, v)
}

func TestCorrectOutliers_NearestSkipsFlaggedNeighbors(t *testing.T) {
	table := valueTable(t, "Temperature", []float64{10, 900, 901, 30})

	got := CorrectOutliers(table, "Temperature", []int{1, 2}, CorrectNearest)
	v1, _ := got.Rows[1].Values["Temperature"].AsFloat()
	v2, _ := got.Rows[2].Values["Temperature"].AsFloat()
	assert.Equal(t, 10.0, v1)
	assert.Equal(t, 30.0, v2)
}

func TestCorrectOutliers_NearestMedianFallback(t *testing.T) {
	// Every row is flagged, so no valid neighbor exists anywhere.
	table := valueTable(t, "Temperature", []float64{10, 20, 30})

	got := CorrectOutliers(table, "Temperature", []int{0, 1, 2}, CorrectNearest)
	for i := range got.Rows {
		v, _ := got.Rows[i].Values["Temperature"].AsFloat()
		assert.InDelta(t, 20.0, v, 1e-9, "row %d", i)
	}
}

func TestCorrectOutliers_Remove(t *testing.T) {
	table := valueTable(t, "Temperature", []float64{10, 999, 30})

	got := CorrectOutliers(table, "Temperature", []int{1}, CorrectRemove)
	require.Len(t, got.Rows, 2)
	assert.Equal(t, []float64{10, 30}, got.ColumnFloats("Temperature"))
	assert.Len(t, table.Rows, 3)
}

func TestCorrectOutliers_NoFlagsIsNoOp(t *testing.T) {
	table := valueTable(t, "Temperature", []float64{10, 20})
	got := CorrectOutliers(table, "Temperature", nil, CorrectMean)
	assert.Same(t, table, got)
}

func TestRemoveOutliers_DefaultsToAllNumericColumns(t *testing.T) {
	rows := []domain.Row{
		{Values: map[string]domain.Value{"A": domain.NumberValue(1, ""), "B": domain.NumberValue(10, "")}},
		{Values: map[string]domain.Value{"A": domain.NumberValue(1, ""), "B": domain.NumberValue(11, "")}},
		{Values: map[string]domain.Value{"A": domain.NumberValue(1, ""), "B": domain.NumberValue(10, "")}},
		{Values: map[string]domain.Value{"A": domain.NumberValue(1, ""), "B": domain.NumberValue(11, "")}},
		{Values: map[string]domain.Value{"A": domain.NumberValue(500, ""), "B": domain.NumberValue(9000, "")}},
	}
	table := newTestTable([]string{"A", "B"}, rows)

	got := RemoveOutliers(table, OutlierIQR, nil, 1.5, ReplaceZero)
	a, _ := got.Rows[4].Values["A"].AsFloat()
	b, _ := got.Rows[4].Values["B"].AsFloat()
	assert.Equal(t, 0.0, a)
	assert.Equal(t, 0.0, b)
}

func TestRemoveOutliers_NullReplacement(t *testing.T) {
	table := valueTable(t, "Temperature", []float64{20, 21, 20, 21, 500})

	got := RemoveOutliers(table, OutlierIQR, []string{"Temperature"}, 1.5, ReplaceNull)
	assert.True(t, got.Rows[4].Values["Temperature"].Missing())
}

func TestRemoveOutliers_Interpolate(t *testing.T) {
	table := valueTable(t, "Temperature", []float64{10, 10, 10, 900, 10, 10, 20})

	got := RemoveOutliers(table, OutlierIQR, []string{"Temperature"}, 1.5, ReplaceInterpolate)
	v, ok := got.Rows[3].Values["Temperature"].AsFloat()
	require.True(t, ok)
	// Linear between row 2 (10) and row 4 (10).
	assert.InDelta(t, 10.0, v, 1e-9)
}

func TestRemoveOutliers_InterpolateEdgeGaps(t *testing.T) {
	rows := []domain.Row{
		{Values: map[string]domain.Value{"A": domain.MissingValue("")}},
		{Values: map[string]domain.Value{"A": domain.NumberValue(10, "")}},
		{Values: map[string]domain.Value{"A": domain.MissingValue("")}},
		{Values: map[string]domain.Value{"A": domain.NumberValue(30, "")}},
		{Values: map[string]domain.Value{"A": domain.MissingValue("")}},
	}
	table := newTestTable([]string{"A"}, rows)

	interpolateColumn(table, "A")

	// Leading gap stays missing.
	assert.True(t, table.Rows[0].Values["A"].Missing())
	// Interior gap is the linear midpoint.
	mid, _ := table.Rows[2].Values["A"].AsFloat()
	assert.InDelta(t, 20.0, mid, 1e-9)
	// Trailing gap carries the last valid value forward.
	last, _ := table.Rows[4].Values["A"].AsFloat()
	assert.InDelta(t, 30.0, last, 1e-9)
}

func TestRemoveOutliers_PercentileBand(t *testing.T) {
	values := make([]float64, 0, 101)
	for i := 0; i <= 100; i++ {
		values = append(values, float64(i))
	}
	table := valueTable(t, "A", values)

	got := RemoveOutliers(table, OutlierPercentile, []string{"A"}, 0, ReplaceNull)
	assert.True(t, got.Rows[0].Values["A"].Missing())
	assert.True(t, got.Rows[100].Values["A"].Missing())
	mid, ok := got.Rows[50].Values["A"].AsFloat()
	require.True(t, ok)
	assert.Equal(t, 50.0, mid)
}

func TestRemoveOutliers_NothingFlaggedReturnsInput(t *testing.T) {
	table := valueTable(t, "A", []float64{1, 2, 3, 2, 1})
	got := RemoveOutliers(table, OutlierIQR, []string{"A"}, 1.5, ReplaceMean)
	assert.Same(t, table, got)
}
