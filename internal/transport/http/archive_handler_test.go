package http

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"iotpulse/internal/archive"
	apierrors "iotpulse/internal/errors"
	"iotpulse/pkg/contracts/domain"
)

// MockArchiveReader is a mock implementation of ArchiveReaderInterface.
type MockArchiveReader struct {
	mock.Mock
}

func (m *MockArchiveReader) ListWeeks(ctx context.Context) ([]archive.WeekSummary, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]archive.WeekSummary), args.Error(1)
}

func (m *MockArchiveReader) LoadWeekly(ctx context.Context, week string) (*domain.AggregateResult, error) {
	args := m.Called(week)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AggregateResult), args.Error(1)
}

func newTestArchiveHandler(store ArchiveReaderInterface) *ArchiveHandler {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	return NewArchiveHandler(store, logger, apierrors.NewErrorHandler(logger))
}

func TestArchiveHandler_ListWeeks(t *testing.T) {
	mockStore := new(MockArchiveReader)
	mockStore.On("ListWeeks").Return([]archive.WeekSummary{
		{Week: "2024-W11", SavedAt: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)},
		{Week: "2024-W10", SavedAt: time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC)},
	}, nil)

	handler := newTestArchiveHandler(mockStore)
	req := httptest.NewRequest("GET", "/weeks", nil)
	rec := httptest.NewRecorder()

	handler.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":2`)
	assert.Contains(t, rec.Body.String(), "2024-W10")
	mockStore.AssertExpectations(t)
}

func TestArchiveHandler_GetWeek(t *testing.T) {
	result := domain.NewAggregateResult()
	result.WeeklyAggregates["avgPH_58"] = 7.2

	mockStore := new(MockArchiveReader)
	mockStore.On("LoadWeekly", "2024-W10").Return(result, nil)

	handler := newTestArchiveHandler(mockStore)
	req := httptest.NewRequest("GET", "/weeks/2024-W10", nil)
	rec := httptest.NewRecorder()

	handler.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"avgPH_58":7.2`)
	mockStore.AssertExpectations(t)
}

func TestArchiveHandler_GetWeek_NotFound(t *testing.T) {
	mockStore := new(MockArchiveReader)
	mockStore.On("LoadWeekly", "2030-W01").
		Return(nil, apierrors.NewNotFoundError("weekly aggregates for 2030-W01"))

	handler := newTestArchiveHandler(mockStore)
	req := httptest.NewRequest("GET", "/weeks/2030-W01", nil)
	rec := httptest.NewRecorder()

	handler.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	mockStore.AssertExpectations(t)
}
