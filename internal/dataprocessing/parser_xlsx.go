package dataprocessing

import (
	"log/slog"
	"strings"

	"github.com/xuri/excelize/v2"

	"iotpulse/internal/errors"
	"iotpulse/pkg/contracts/domain"
)

// ParseWorkbook reads an xlsx sensor export and feeds the first sheet that
// looks like logger data through the same normalization path as CSV input.
// Some vendors hand out workbook exports instead of plain CSV; the tabular
// content is identical.
func ParseWorkbook(path string, dateFormat string) (*domain.SensorTable, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, errors.NewIngestError("failed to open workbook", err)
	}
	defer f.Close()

	rows, sheetName, ok := findSensorSheet(f)
	if !ok {
		return nil, errors.NewIngestError("could not find sensor data sheet in workbook", nil)
	}
	slog.Info("found sensor data sheet",
		slog.String("sheet", sheetName),
		slog.Int("rows", len(rows)))

	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, errors.NewIngestError("sensor data sheet is empty", nil)
	}

	table, err := buildTable(rows[0], rows[1:], dateFormat)
	if err != nil {
		return nil, err
	}
	return table, nil
}

// findSensorSheet locates the sheet carrying logger readings. Preferred sheet
// names are tried first; otherwise every sheet is inspected for a header row
// containing one of the timestamp candidates.
func findSensorSheet(f *excelize.File) ([][]string, string, bool) {
	preferred := []string{"Data", "Daten", "Messwerte", "Sensor Data", "Export"}
	for _, name := range preferred {
		if rows, err := f.GetRows(name); err == nil && len(rows) > 1 {
			return rows, name, true
		}
	}

	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil || len(rows) < 2 {
			continue
		}
		header := strings.Join(rows[0], " ")
		for _, candidate := range timestampCandidates {
			if strings.Contains(header, candidate) {
				return rows, name, true
			}
		}
	}
	return nil, "", false
}
