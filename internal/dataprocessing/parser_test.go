package dataprocessing

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iotpulse/internal/errors"
	"iotpulse/pkg/contracts/domain"
)

func TestParseCSV_BasicIngestion(t *testing.T) {
	csv := `Time,Temperature,PH_58,Pump_1
2024-03-04 08:00:00,21.5,7.1,true
2024-03-04 08:15:00,21.7,7.2,false
2024-03-04 08:30:00,22.0,7.0,true
`
	table, err := ParseCSV([]byte(csv), DefaultDateFormat)
	require.NoError(t, err)
	require.Len(t, table.Rows, 3)

	assert.Equal(t, []string{"Temperature", "PH_58", "Pump_1"}, table.Columns)
	assert.True(t, table.Rows[0].TimeValid)
	assert.Equal(t, mustTime(t, "2024-03-04 08:00:00"), table.Rows[0].Time)

	v, ok := table.Rows[0].Values["Temperature"].AsFloat()
	require.True(t, ok)
	assert.Equal(t, 21.5, v)

	pump := table.Rows[0].Values["Pump_1"]
	assert.Equal(t, domain.ValueBool, pump.Kind)
	assert.True(t, pump.Bool)
}

func TestParseCSV_EmptyInput(t *testing.T) {
	_, err := ParseCSV([]byte("   \n  "), DefaultDateFormat)
	require.Error(t, err)
	assert.True(t, errors.IsIngestError(err))
}

func TestParseCSV_TimestampCandidatePriority(t *testing.T) {
	// "Zeit" outranks "Datum" in the candidate order even though Datum
	// appears first in the file.
	csv := `Datum,Zeit,Temperature
ignored,2024-03-04 08:00:00,21.5
`
	table, err := ParseCSV([]byte(csv), DefaultDateFormat)
	require.NoError(t, err)

	assert.True(t, table.Rows[0].TimeValid)
	assert.Equal(t, mustTime(t, "2024-03-04 08:00:00"), table.Rows[0].Time)
	assert.Contains(t, table.Columns, "Datum")
	assert.NotContains(t, table.Columns, "Zeit")
}

func TestParseCSV_NoTimestampCandidateFallsBackToFirstColumn(t *testing.T) {
	csv := `Messzeitpunkt,Temperature
2024-03-04 08:00:00,21.5
`
	table, err := ParseCSV([]byte(csv), DefaultDateFormat)
	require.NoError(t, err)

	assert.True(t, table.Rows[0].TimeValid)
	assert.Equal(t, []string{"Temperature"}, table.Columns)
}

func TestParseCSV_UnparseableCellsBecomeMissing(t *testing.T) {
	csv := `Time,Temperature
2024-03-04 08:00:00,ERROR
2024-03-04 08:15:00,21.5
`
	table, err := ParseCSV([]byte(csv), DefaultDateFormat)
	require.NoError(t, err)

	assert.True(t, table.Rows[0].Values["Temperature"].Missing())
	assert.Equal(t, "ERROR", table.Rows[0].Values["Temperature"].Raw)
	assert.Equal(t, []float64{21.5}, table.ColumnFloats("Temperature"))
}

func TestParseCSV_UnparseableTimestampsKeepRawText(t *testing.T) {
	csv := `Time,Temperature
not-a-date,21.5
2024-03-04 08:15:00,21.7
`
	table, err := ParseCSV([]byte(csv), DefaultDateFormat)
	require.NoError(t, err)
	require.Len(t, table.Rows, 2)

	assert.False(t, table.Rows[0].TimeValid)
	assert.Equal(t, "not-a-date", table.Rows[0].TimeRaw)
	assert.True(t, table.Rows[1].TimeValid)
}

func TestParseCSV_FlexibleLayoutFallback(t *testing.T) {
	// Expected format is ISO but the file carries European dd.mm.yyyy; the
	// flexible chain still parses every row.
	csv := `Time,Temperature
04.03.2024 08:00,21.5
04.03.2024 08:15,21.7
`
	table, err := ParseCSV([]byte(csv), DefaultDateFormat)
	require.NoError(t, err)

	assert.True(t, table.Rows[0].TimeValid)
	assert.Equal(t, 4, table.Rows[0].Time.Day())
	assert.Equal(t, 3, int(table.Rows[0].Time.Month()))
}

func TestSplitVendorPreamble(t *testing.T) {
	t.Run("detected and stripped", func(t *testing.T) {
		input := strings.Join([]string{
			"OWIPEX,Logger",
			"Site,ARA Nord",
			"Firmware,2.4.1",
			"Serial,X-100",
			"Export,weekly",
			"Time,Flow_Rate_1",
			"2024-03-04 08:00:00,12.5",
		}, "\n")

		table, err := ParseCSV([]byte(input), DefaultDateFormat)
		require.NoError(t, err)
		require.Len(t, table.Rows, 1)
		assert.Equal(t, "ARA Nord", table.Meta["Site"])
		assert.Equal(t, []string{"Flow_Rate_1"}, table.Columns)
	})

	t.Run("marker missing, nothing stripped", func(t *testing.T) {
		input := strings.Join([]string{
			"Time,Flow_Rate_1",
			"2024-03-04 08:00:00,12.5",
			"2024-03-04 08:15:00,13.0",
			"2024-03-04 08:30:00,12.8",
			"2024-03-04 08:45:00,12.9",
			"2024-03-04 09:00:00,13.1",
			"2024-03-04 09:15:00,13.2",
		}, "\n")

		table, err := ParseCSV([]byte(input), DefaultDateFormat)
		require.NoError(t, err)
		assert.Len(t, table.Rows, 6)
		assert.Empty(t, table.Meta)
	})

	t.Run("too few lines is never a preamble", func(t *testing.T) {
		input := "OWIPEX,Logger\nTime,Flow_Rate_1\n2024-03-04 08:00:00,12.5\n"
		table, err := ParseCSV([]byte(input), DefaultDateFormat)
		require.NoError(t, err)
		// First line is treated as the header here.
		assert.Empty(t, table.Meta)
	})
}

func TestClassifyColumns(t *testing.T) {
	csv := `Time,Temperature,Pump_1,Valve_Open,Status
2024-03-04 08:00:00,21.5,1,true,running
2024-03-04 08:15:00,21.7,0,false,stopped
`
	table, err := ParseCSV([]byte(csv), DefaultDateFormat)
	require.NoError(t, err)

	assert.Equal(t, domain.ClassTemporal, table.Class(domain.CanonicalTimeColumn))
	assert.Equal(t, domain.ClassNumeric, table.Class("Temperature"))
	assert.Equal(t, domain.ClassPumpStatus, table.Class("Pump_1"))
	assert.Equal(t, domain.ClassBoolean, table.Class("Valve_Open"))
	assert.Equal(t, domain.ClassUnrecognized, table.Class("Status"))

	assert.Equal(t, []string{"Temperature", "Pump_1", "Valve_Open"}, table.NumericColumns())
}

func TestParseCSV_ByteOrderMarkStripped(t *testing.T) {
	csv := "\uFEFFTime,Temperature\n2024-03-04 08:00:00,21.5\n"
	table, err := ParseCSV([]byte(csv), DefaultDateFormat)
	require.NoError(t, err)
	assert.Equal(t, []string{"Temperature"}, table.Columns)
}
