// Package dataprocessing implements the sensor data pipeline: CSV/workbook
// ingestion and normalization, time-range filtering, outlier detection and
// correction, time-weighted flow integration and pump runtime, flow-specific
// cleaning, and daily/weekly aggregation.
//
// Every stage consumes and returns *domain.SensorTable and never mutates its
// input. The pipeline is forgiving by design: malformed cells become missing
// values and unusable filters pass data through unchanged; only structurally
// unreadable uploads fail.
package dataprocessing
