package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	apperrors "iotpulse/internal/errors"
	"iotpulse/internal/infrastructure"
	"iotpulse/pkg/contracts/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS weekly_aggregates (
	week     TEXT PRIMARY KEY,
	saved_at TIMESTAMP NOT NULL,
	payload  TEXT NOT NULL
);
`

// Store persists weekly aggregate snapshots in a local SQLite database, one
// JSON payload per ISO week. Saving the same week again overwrites the
// previous snapshot; the archive keeps the latest state, not a history.
type Store struct {
	db      *sqlx.DB
	logger  *slog.Logger
	metrics *infrastructure.BusinessMetrics
}

// SetMetrics attaches the shared business metrics; without it the store
// simply does not count its operations.
func (s *Store) SetMetrics(metrics *infrastructure.BusinessMetrics) {
	s.metrics = metrics
}

// WeekSummary is one row of the archive listing.
type WeekSummary struct {
	Week    string    `db:"week" json:"week"`
	SavedAt time.Time `db:"saved_at" json:"saved_at"`
}

// Open opens (and if needed creates) the archive database at path.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sqlx.Connect("sqlite", path)
	if err != nil {
		return nil, apperrors.NewStorageError("could not open archive database", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, apperrors.NewStorageError("could not initialize archive schema", err)
	}

	logger.Info("archive opened", slog.String("path", path))
	return &Store{db: db, logger: logger}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// WeekKey formats a timestamp as the ISO week archive key, e.g. "2024-W10".
func WeekKey(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

// SaveWeekly stores the aggregate snapshot for one ISO week, replacing any
// existing snapshot for that week.
func (s *Store) SaveWeekly(ctx context.Context, week string, result *domain.AggregateResult) error {
	if week == "" {
		return apperrors.NewAppValidationError("archive week must not be empty")
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return apperrors.NewStorageError("could not encode weekly aggregates", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO weekly_aggregates (week, saved_at, payload) VALUES (?, ?, ?)
		 ON CONFLICT(week) DO UPDATE SET saved_at = excluded.saved_at, payload = excluded.payload`,
		week, time.Now().UTC(), string(payload))
	if err != nil {
		return apperrors.NewStorageError("could not save weekly aggregates", err)
	}

	infrastructure.RecordArchiveWrite(ctx, s.metrics)
	s.logger.InfoContext(ctx, "weekly aggregates archived", slog.String("week", week))
	return nil
}

// LoadWeekly returns the stored snapshot for one ISO week.
func (s *Store) LoadWeekly(ctx context.Context, week string) (*domain.AggregateResult, error) {
	var payload string
	err := s.db.GetContext(ctx, &payload,
		`SELECT payload FROM weekly_aggregates WHERE week = ?`, week)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("archive week %s", week))
	}
	if err != nil {
		return nil, apperrors.NewStorageError("could not load weekly aggregates", err)
	}

	result := domain.NewAggregateResult()
	if err := json.Unmarshal([]byte(payload), result); err != nil {
		return nil, apperrors.NewStorageError("could not decode weekly aggregates", err)
	}
	infrastructure.RecordArchiveRead(ctx, s.metrics)
	return result, nil
}

// ListWeeks returns all archived weeks, newest first.
func (s *Store) ListWeeks(ctx context.Context) ([]WeekSummary, error) {
	var weeks []WeekSummary
	err := s.db.SelectContext(ctx, &weeks,
		`SELECT week, saved_at FROM weekly_aggregates ORDER BY week DESC`)
	if err != nil {
		return nil, apperrors.NewStorageError("could not list archive weeks", err)
	}
	return weeks, nil
}
