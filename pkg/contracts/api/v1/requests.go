// Package api contains the API contract definitions for the sensor dashboard.
// Version v1 represents the current stable API version.
package api

// Analysis API Requests

// FilterRequest narrows a session to a time window. Range "custom" requires
// at least a start date; "day" and "week" are relative to the latest reading.
type FilterRequest struct {
	Range     string `json:"range" validate:"required,oneof=day week custom"`
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
}

// CleanFlowRequest runs the flow sanitation pass. Zero values fall back to
// the server defaults.
type CleanFlowRequest struct {
	MinThreshold     float64 `json:"min_threshold" validate:"min=0"`
	MaxOutlierFactor float64 `json:"max_outlier_factor" validate:"min=0"`
}

// OutlierDetectRequest flags anomalous readings of one variable.
type OutlierDetectRequest struct {
	Variable  string  `json:"variable" validate:"required"`
	Method    string  `json:"method" validate:"omitempty,oneof=iqr zscore percentile"`
	Threshold float64 `json:"threshold" validate:"min=0"`
}

// OutlierCorrectRequest repairs previously flagged readings.
type OutlierCorrectRequest struct {
	Variable string `json:"variable" validate:"required"`
	Indices  []int  `json:"indices" validate:"required,min=1,dive,min=0"`
	Method   string `json:"method" validate:"required,oneof=mean median nearest remove"`
}

// OutlierRemoveRequest runs the bulk detect-and-replace pass. An empty
// variable list means every numeric column.
type OutlierRemoveRequest struct {
	Method      string   `json:"method" validate:"omitempty,oneof=iqr zscore percentile"`
	Variables   []string `json:"variables,omitempty"`
	Threshold   float64  `json:"threshold" validate:"min=0"`
	Replacement string   `json:"replacement" validate:"omitempty,oneof=null mean median zero interpolate"`
}

// PumpRuntimeRequest selects which pump status columns to integrate. Empty
// means the configured defaults.
type PumpRuntimeRequest struct {
	Variables []string `json:"variables,omitempty"`
}
