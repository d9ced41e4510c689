package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"iotpulse/internal/config"
	"iotpulse/internal/dataprocessing"
	apperrors "iotpulse/internal/errors"
	"iotpulse/internal/infrastructure"
	"iotpulse/internal/validation"
	"iotpulse/pkg/contracts/domain"
)

// WeeklyArchiver persists weekly aggregate snapshots. Implemented by the
// archive package; kept as an interface so the service can run without an
// archive (batch CLI, tests).
type WeeklyArchiver interface {
	SaveWeekly(ctx context.Context, week string, result *domain.AggregateResult) error
}

// Session is one uploaded dataset under analysis. Original always holds the
// table as ingested; Current reflects the filter, clean, and correction steps
// applied since. Reset restores Current from Original.
type Session struct {
	ID        string              `json:"id"`
	Filename  string              `json:"filename"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
	Original  *domain.SensorTable `json:"-"`
	Current   *domain.SensorTable `json:"-"`
}

// AnalysisService owns the upload sessions and runs the data pipeline
// operations against them. All methods are safe for concurrent use.
type AnalysisService struct {
	cfg       config.PipelineConfig
	archiver  WeeklyArchiver
	validator *validation.UploadValidator
	logger    *slog.Logger
	metrics   *infrastructure.BusinessMetrics

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewAnalysisService creates the analysis service. archiver may be nil.
func NewAnalysisService(cfg config.PipelineConfig, archiver WeeklyArchiver, logger *slog.Logger) *AnalysisService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalysisService{
		cfg:       cfg,
		archiver:  archiver,
		validator: validation.NewUploadValidator(cfg.MaxUploadBytes, logger),
		logger:    logger,
		sessions:  make(map[string]*Session),
	}
}

// SetMetrics attaches the shared business metrics. Without it the service
// runs unmetered, which is how the batch CLI and the tests use it.
func (s *AnalysisService) SetMetrics(metrics *infrastructure.BusinessMetrics) {
	s.metrics = metrics
}

// Upload ingests a raw CSV payload into a new session.
func (s *AnalysisService) Upload(ctx context.Context, filename string, data []byte) (*Session, error) {
	if err := s.validator.ValidateUpload(filename, int64(len(data))); err != nil {
		infrastructure.RecordUpload(ctx, s.metrics, int64(len(data)), 0, err)
		return nil, err
	}

	table, err := dataprocessing.ParseCSV(data, s.cfg.DateFormat)
	if err != nil {
		s.logger.WarnContext(ctx, "upload rejected",
			slog.String("filename", filename),
			slog.String("error", err.Error()))
		infrastructure.RecordUpload(ctx, s.metrics, int64(len(data)), 0, err)
		return nil, err
	}
	infrastructure.RecordUpload(ctx, s.metrics, int64(len(data)), len(table.Rows), nil)

	session := &Session{
		ID:        uuid.New().String(),
		Filename:  filename,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
		Original:  table,
		Current:   table,
	}

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "session created",
		slog.String("session_id", session.ID),
		slog.String("filename", filename),
		slog.Int("rows", len(table.Rows)),
		slog.Int("columns", len(table.Columns)))
	return session, nil
}

// Get returns a session by ID.
func (s *AnalysisService) Get(ctx context.Context, id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("session %s", id))
	}
	return session, nil
}

// Delete removes a session.
func (s *AnalysisService) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return apperrors.NewNotFoundError(fmt.Sprintf("session %s", id))
	}
	delete(s.sessions, id)
	return nil
}

// Reset restores the session to its as-ingested state.
func (s *AnalysisService) Reset(ctx context.Context, id string) (*Session, error) {
	session, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.update(session, session.Original)
	s.logger.InfoContext(ctx, "session reset", slog.String("session_id", id))
	return session, nil
}

// Filter slices the session's current table to a time range.
func (s *AnalysisService) Filter(ctx context.Context, id string, timeRange domain.TimeRange, startDate, endDate string) (*Session, error) {
	session, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	filtered := dataprocessing.FilterByTimeRange(session.Current, timeRange, startDate, endDate)
	s.update(session, filtered)
	infrastructure.RecordPipelineStage(ctx, s.metrics, "filter", len(filtered.Rows), time.Since(start))

	s.logger.InfoContext(ctx, "time filter applied",
		slog.String("session_id", id),
		slog.String("range", string(timeRange)),
		slog.Int("rows", len(filtered.Rows)))
	return session, nil
}

// CleanFlow runs the flow sanitation pass over the session's current table.
// Zero arguments fall back to the configured defaults.
func (s *AnalysisService) CleanFlow(ctx context.Context, id string, minThreshold, maxOutlierFactor float64) (*Session, error) {
	session, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if minThreshold <= 0 {
		minThreshold = s.cfg.FlowMinThreshold
	}
	if maxOutlierFactor <= 0 {
		maxOutlierFactor = s.cfg.FlowMaxOutlierFactor
	}

	start := time.Now()
	cleaned := dataprocessing.CleanFlowData(session.Current, minThreshold, maxOutlierFactor)
	s.update(session, cleaned)
	infrastructure.RecordPipelineStage(ctx, s.metrics, "clean_flow", len(cleaned.Rows), time.Since(start))

	s.logger.InfoContext(ctx, "flow data cleaned",
		slog.String("session_id", id),
		slog.Float64("min_threshold", minThreshold),
		slog.Float64("max_outlier_factor", maxOutlierFactor))
	return session, nil
}

// DetectOutliers flags anomalous rows of one variable without modifying data.
func (s *AnalysisService) DetectOutliers(ctx context.Context, id, variable string, method dataprocessing.OutlierMethod, threshold float64) ([]int, error) {
	session, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !session.Current.HasColumn(variable) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("variable %s", variable))
	}
	if threshold <= 0 {
		threshold = s.cfg.OutlierThreshold
	}

	start := time.Now()
	flagged := dataprocessing.IdentifyOutliers(session.Current, variable, method, threshold)
	infrastructure.RecordPipelineStage(ctx, s.metrics, "detect_outliers", len(session.Current.Rows), time.Since(start))
	infrastructure.RecordOutliersFlagged(ctx, s.metrics, variable, len(flagged))
	s.logger.InfoContext(ctx, "outliers detected",
		slog.String("session_id", id),
		slog.String("variable", variable),
		slog.String("method", string(method)),
		slog.Int("flagged", len(flagged)))
	return flagged, nil
}

// CorrectOutliers repairs previously flagged rows of one variable.
func (s *AnalysisService) CorrectOutliers(ctx context.Context, id, variable string, flagged []int, method dataprocessing.CorrectionMethod) (*Session, error) {
	session, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !session.Current.HasColumn(variable) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("variable %s", variable))
	}

	start := time.Now()
	corrected := dataprocessing.CorrectOutliers(session.Current, variable, flagged, method)
	s.update(session, corrected)
	infrastructure.RecordPipelineStage(ctx, s.metrics, "correct_outliers", len(corrected.Rows), time.Since(start))

	s.logger.InfoContext(ctx, "outliers corrected",
		slog.String("session_id", id),
		slog.String("variable", variable),
		slog.String("method", string(method)),
		slog.Int("corrected", len(flagged)))
	return session, nil
}

// RemoveOutliers runs the bulk detect-and-replace pass.
func (s *AnalysisService) RemoveOutliers(ctx context.Context, id string, method dataprocessing.OutlierMethod, variables []string, threshold float64, replacement dataprocessing.Replacement) (*Session, error) {
	session, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if threshold <= 0 {
		if method == dataprocessing.OutlierZScore {
			threshold = s.cfg.BulkZScoreThreshold
		} else {
			threshold = s.cfg.OutlierThreshold
		}
	}

	start := time.Now()
	result := dataprocessing.RemoveOutliers(session.Current, method, variables, threshold, replacement)
	s.update(session, result)
	infrastructure.RecordPipelineStage(ctx, s.metrics, "remove_outliers", len(result.Rows), time.Since(start))

	s.logger.InfoContext(ctx, "bulk outlier removal applied",
		slog.String("session_id", id),
		slog.String("method", string(method)),
		slog.String("replacement", string(replacement)))
	return session, nil
}

// Aggregates computes daily and weekly summaries over the session's current
// table and, when an archiver is wired, stores the weekly snapshot under the
// table's latest ISO week.
func (s *AnalysisService) Aggregates(ctx context.Context, id string) (*domain.AggregateResult, error) {
	session, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	runtimes := dataprocessing.PumpRuntime(session.Current, s.cfg.PumpVariables)
	result := dataprocessing.CalculateAggregates(session.Current, runtimes)
	infrastructure.RecordPipelineStage(ctx, s.metrics, "aggregate", len(session.Current.Rows), time.Since(start))

	if s.archiver != nil {
		if latest, ok := session.Current.MaxTime(); ok {
			week := weekKey(latest)
			if err := s.archiver.SaveWeekly(ctx, week, result); err != nil {
				// Archiving is best effort; the caller still gets the result.
				s.logger.ErrorContext(ctx, "could not archive weekly aggregates",
					slog.String("session_id", id),
					slog.String("week", week),
					slog.String("error", err.Error()))
			}
		}
	}

	return result, nil
}

// PumpRuntimes exposes the per-pump runtime map for the session.
func (s *AnalysisService) PumpRuntimes(ctx context.Context, id string, variables []string) (map[string]float64, error) {
	session, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(variables) == 0 {
		variables = s.cfg.PumpVariables
	}
	return dataprocessing.PumpRuntime(session.Current, variables), nil
}

// Cleanup drops sessions idle for longer than the configured TTL and returns
// how many were removed.
func (s *AnalysisService) Cleanup(ctx context.Context) int {
	if s.cfg.SessionTTL <= 0 {
		return 0
	}
	cutoff := time.Now().Add(-s.cfg.SessionTTL)

	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, session := range s.sessions {
		if session.UpdatedAt.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		s.logger.InfoContext(ctx, "expired sessions removed", slog.Int("count", removed))
	}
	return removed
}

// RunJanitor periodically evicts expired sessions until ctx is canceled.
func (s *AnalysisService) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Cleanup(ctx)
		}
	}
}

// SessionCount returns the number of live sessions.
func (s *AnalysisService) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *AnalysisService) update(session *Session, table *domain.SensorTable) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session.Current = table
	session.UpdatedAt = time.Now()
}

func weekKey(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}
