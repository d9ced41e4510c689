package http

import (
	"context"

	"iotpulse/internal/archive"
	"iotpulse/internal/dataprocessing"
	"iotpulse/internal/services"
	"iotpulse/pkg/contracts/domain"
)

// AnalysisServiceInterface defines the session operations the analysis
// handler needs.
type AnalysisServiceInterface interface {
	Upload(ctx context.Context, filename string, data []byte) (*services.Session, error)
	Get(ctx context.Context, id string) (*services.Session, error)
	Delete(ctx context.Context, id string) error
	Reset(ctx context.Context, id string) (*services.Session, error)
	Filter(ctx context.Context, id string, timeRange domain.TimeRange, startDate, endDate string) (*services.Session, error)
	CleanFlow(ctx context.Context, id string, minThreshold, maxOutlierFactor float64) (*services.Session, error)
	DetectOutliers(ctx context.Context, id, variable string, method dataprocessing.OutlierMethod, threshold float64) ([]int, error)
	CorrectOutliers(ctx context.Context, id, variable string, flagged []int, method dataprocessing.CorrectionMethod) (*services.Session, error)
	RemoveOutliers(ctx context.Context, id string, method dataprocessing.OutlierMethod, variables []string, threshold float64, replacement dataprocessing.Replacement) (*services.Session, error)
	Aggregates(ctx context.Context, id string) (*domain.AggregateResult, error)
	PumpRuntimes(ctx context.Context, id string, variables []string) (map[string]float64, error)
}

// ArchiveReaderInterface defines the read side of the weekly archive.
type ArchiveReaderInterface interface {
	ListWeeks(ctx context.Context) ([]archive.WeekSummary, error)
	LoadWeekly(ctx context.Context, week string) (*domain.AggregateResult, error)
}
