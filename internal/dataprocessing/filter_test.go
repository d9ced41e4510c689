package dataprocessing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iotpulse/pkg/contracts/domain"
)

func hourlyTable(t *testing.T, timestamps []string) *domain.SensorTable {
	t.Helper()
	rows := make([]domain.Row, 0, len(timestamps))
	for i, ts := range timestamps {
		rows = append(rows, numericRow(t, ts, map[string]float64{"Temperature": 20 + float64(i)}))
	}
	return newTestTable([]string{"Temperature"}, rows)
}

func TestFilterByTimeRange_LastDay(t *testing.T) {
	table := hourlyTable(t, []string{
		"2024-03-01 08:00:00",
		"2024-03-03 07:59:00", // just outside the 24h window
		"2024-03-03 08:00:00", // exactly on the cutoff, kept
		"2024-03-04 08:00:00", // latest
	})

	got := FilterByTimeRange(table, domain.RangeLastDay, "", "")
	require.Len(t, got.Rows, 2)
	assert.Equal(t, mustTime(t, "2024-03-03 08:00:00"), got.Rows[0].Time)
	assert.Equal(t, mustTime(t, "2024-03-04 08:00:00"), got.Rows[1].Time)
}

func TestFilterByTimeRange_LastWeek(t *testing.T) {
	table := hourlyTable(t, []string{
		"2024-02-20 12:00:00",
		"2024-02-26 12:00:00",
		"2024-03-04 12:00:00",
	})

	got := FilterByTimeRange(table, domain.RangeLastWeek, "", "")
	require.Len(t, got.Rows, 2)
	assert.Equal(t, mustTime(t, "2024-02-26 12:00:00"), got.Rows[0].Time)
}

func TestFilterByTimeRange_CustomEndDateInclusive(t *testing.T) {
	table := hourlyTable(t, []string{
		"2023-12-31 23:00:00",
		"2024-01-01 00:00:00",
		"2024-01-02 12:00:00",
		"2024-01-03 23:59:00", // still on the inclusive end date
		"2024-01-04 00:00:00", // first moment past it
	})

	got := FilterByTimeRange(table, domain.RangeCustom, "2024-01-01", "2024-01-03")
	require.Len(t, got.Rows, 3)
	assert.Equal(t, mustTime(t, "2024-01-01 00:00:00"), got.Rows[0].Time)
	assert.Equal(t, mustTime(t, "2024-01-03 23:59:00"), got.Rows[2].Time)
}

func TestFilterByTimeRange_CustomMissingBounds(t *testing.T) {
	table := hourlyTable(t, []string{"2024-01-01 00:00:00", "2024-01-02 00:00:00"})

	got := FilterByTimeRange(table, domain.RangeCustom, "2024-01-01", "")
	assert.Len(t, got.Rows, 2)
}

func TestFilterByTimeRange_CustomUnparseableBounds(t *testing.T) {
	table := hourlyTable(t, []string{"2024-01-01 00:00:00", "2024-01-02 00:00:00"})

	got := FilterByTimeRange(table, domain.RangeCustom, "yesterday", "tomorrow")
	assert.Len(t, got.Rows, 2)
}

func TestFilterByTimeRange_EuropeanBoundLayouts(t *testing.T) {
	table := hourlyTable(t, []string{
		"2024-01-01 06:00:00",
		"2024-01-05 06:00:00",
	})

	got := FilterByTimeRange(table, domain.RangeCustom, "01.01.2024", "02.01.2024")
	require.Len(t, got.Rows, 1)
	assert.Equal(t, mustTime(t, "2024-01-01 06:00:00"), got.Rows[0].Time)
}

func TestFilterByTimeRange_RepairsUnparsedTimestamps(t *testing.T) {
	// Rows whose timestamps survived ingestion unparsed get a second parse
	// attempt before filtering.
	rows := []domain.Row{
		{TimeRaw: "2024-03-03T08:00:00Z", Values: map[string]domain.Value{"Temperature": domain.NumberValue(20, "")}},
		{TimeRaw: "2024-03-04T08:00:00Z", Values: map[string]domain.Value{"Temperature": domain.NumberValue(21, "")}},
	}
	table := newTestTable([]string{"Temperature"}, rows)
	require.False(t, table.TimeParsed())

	got := FilterByTimeRange(table, domain.RangeLastDay, "", "")
	require.Len(t, got.Rows, 2)
	assert.True(t, got.TimeParsed())
}

func TestFilterByTimeRange_UnrepairableTimestampsPassThrough(t *testing.T) {
	rows := []domain.Row{
		{TimeRaw: "garbage", Values: map[string]domain.Value{"Temperature": domain.NumberValue(20, "")}},
	}
	table := newTestTable([]string{"Temperature"}, rows)

	got := FilterByTimeRange(table, domain.RangeLastDay, "", "")
	assert.Len(t, got.Rows, 1)
}

func TestFilterByTimeRange_EmptyTable(t *testing.T) {
	table := newTestTable([]string{"Temperature"}, nil)
	got := FilterByTimeRange(table, domain.RangeLastDay, "", "")
	assert.True(t, got.Empty())
}
