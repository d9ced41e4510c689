// Command sensorcsv processes a sensor export offline: it ingests a CSV or
// Excel file, runs the cleaning pipeline, and writes the cleaned table plus
// the daily and weekly aggregates next to it.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"iotpulse/internal/archive"
	"iotpulse/internal/config"
	"iotpulse/internal/dataprocessing"
	"iotpulse/internal/exporter"
	"iotpulse/internal/files"
	"iotpulse/internal/validation"
	"iotpulse/pkg/contracts/domain"
)

func main() {
	inFile := flag.String("in", "", "input sensor export (.csv or .xlsx)")
	outDir := flag.String("out", "", "output directory (defaults next to the input file)")
	dateFormat := flag.String("format", dataprocessing.DefaultDateFormat, "expected timestamp format")
	timeRange := flag.String("range", "", "time filter: day, week, or custom")
	startDate := flag.String("start", "", "custom range start date")
	endDate := flag.String("end", "", "custom range end date")
	minThreshold := flag.Float64("min-threshold", 0, "minimum flow value; smaller positive readings are raised")
	maxFactor := flag.Float64("max-factor", dataprocessing.DefaultMaxOutlierFactor, "flow clamp factor relative to the rolling median")
	skipClean := flag.Bool("no-clean", false, "skip the flow cleaning pass")
	archiveFile := flag.String("archive", "", "optional archive database to store the weekly aggregates in")
	flag.Parse()

	if *inFile == "" {
		slog.Error("No input file given, use -in")
		os.Exit(1)
	}

	// A directory means "process the newest export in it".
	if info, err := os.Stat(*inFile); err == nil && info.IsDir() {
		export, err := files.NewDiscovery(slog.Default()).LatestExport(*inFile)
		if err != nil {
			slog.Error("No export found", "dir", *inFile, "error", err)
			os.Exit(1)
		}
		slog.Info("Using newest export", "file", export.Path)
		*inFile = export.Path
	}

	if err := validation.NewUploadValidator(0, slog.Default()).ValidateInputFile(*inFile); err != nil {
		slog.Error("Input rejected", "file", *inFile, "error", err)
		os.Exit(1)
	}

	if *outDir == "" {
		*outDir = filepath.Dir(*inFile)
	}

	table, err := parseInput(*inFile, *dateFormat)
	if err != nil {
		slog.Error("Failed to ingest input", "file", *inFile, "error", err)
		os.Exit(1)
	}
	slog.Info("Input ingested",
		"file", *inFile,
		"rows", len(table.Rows),
		"columns", len(table.Columns))

	if *timeRange != "" {
		table = dataprocessing.FilterByTimeRange(table, domain.TimeRange(*timeRange), *startDate, *endDate)
		slog.Info("Time filter applied", "range", *timeRange, "rows", len(table.Rows))
	}

	if !*skipClean {
		table = dataprocessing.CleanFlowData(table, *minThreshold, *maxFactor)
		slog.Info("Flow data cleaned",
			"flow_columns", strings.Join(dataprocessing.FlowColumns(table), ","))
	}

	pumpVars := config.Default().Pipeline.PumpVariables
	runtimes := dataprocessing.PumpRuntime(table, pumpVars)
	result := dataprocessing.CalculateAggregates(table, runtimes)

	base := strings.TrimSuffix(filepath.Base(*inFile), filepath.Ext(*inFile))
	if err := writeOutputs(*outDir, base, table, result); err != nil {
		slog.Error("Failed to write outputs", "error", err)
		os.Exit(1)
	}

	if *archiveFile != "" {
		if err := archiveWeekly(*archiveFile, table, result); err != nil {
			slog.Error("Failed to archive weekly aggregates", "error", err)
			os.Exit(1)
		}
	}

	slog.Info("Done", "output_dir", *outDir)
}

func parseInput(path, dateFormat string) (*domain.SensorTable, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return dataprocessing.ParseWorkbook(path, dateFormat)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return dataprocessing.ParseCSV(data, dateFormat)
}

func writeOutputs(dir, base string, table *domain.SensorTable, result *domain.AggregateResult) error {
	cleanedPath := filepath.Join(dir, base+"_cleaned.csv")
	if err := exporter.WriteTableFile(cleanedPath, table, exporter.Options{IncludeBOM: true}); err != nil {
		return err
	}
	slog.Info("Cleaned table written", "path", cleanedPath)

	aggPath := filepath.Join(dir, base+"_aggregates.json")
	f, err := os.Create(aggPath)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := exporter.WriteAggregatesJSON(f, result); err != nil {
		return err
	}
	slog.Info("Aggregates written", "path", aggPath)

	weeklyPath := filepath.Join(dir, base+"_weekly.csv")
	wf, err := os.Create(weeklyPath)
	if err != nil {
		return err
	}
	defer wf.Close()
	if err := exporter.WriteWeeklyCSV(wf, result, exporter.Options{}); err != nil {
		return err
	}
	slog.Info("Weekly KPIs written", "path", weeklyPath)
	return nil
}

func archiveWeekly(path string, table *domain.SensorTable, result *domain.AggregateResult) error {
	latest, ok := table.MaxTime()
	if !ok {
		slog.Warn("No parsed timestamps, skipping archive")
		return nil
	}

	store, err := archive.Open(path, slog.Default())
	if err != nil {
		return err
	}
	defer store.Close()

	week := archive.WeekKey(latest)
	if err := store.SaveWeekly(context.Background(), week, result); err != nil {
		return err
	}
	slog.Info("Weekly aggregates archived", "week", week, "archive", path)
	return nil
}
