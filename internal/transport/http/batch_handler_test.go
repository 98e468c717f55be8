package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"pbrpulse/internal/batch"
	apierrors "pbrpulse/internal/errors"
	"pbrpulse/internal/services"
)

// MockBatchService is a mock implementation of BatchServiceInterface
type MockBatchService struct {
	mock.Mock
}

func (m *MockBatchService) Merge(ctx context.Context, prefix, startDate, endDate string) (*batch.MergeResult, error) {
	args := m.Called(prefix, startDate, endDate)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*batch.MergeResult), args.Error(1)
}

func (m *MockBatchService) Preview(ctx context.Context, startDate, endDate string) ([]string, error) {
	args := m.Called(startDate, endDate)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockBatchService) Prefixes(ctx context.Context) ([]string, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockBatchService) MergeActive() bool {
	args := m.Called()
	return args.Bool(0)
}

func newBatchHandler(service BatchServiceInterface) *BatchHandler {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	errorHandler := apierrors.NewErrorHandler(logger, false)
	return NewBatchHandler(service, logger, errorHandler)
}

func TestBatchHandler_ListBatches(t *testing.T) {
	tests := []struct {
		name           string
		setupMock      func(*MockBatchService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "successful list",
			setupMock: func(m *MockBatchService) {
				m.On("Prefixes").Return([]string{"RS-FV", "RS2"}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `{"count":2,"data":["RS-FV","RS2"],"status":"success"}`,
		},
		{
			name: "internal error",
			setupMock: func(m *MockBatchService) {
				m.On("Prefixes").Return(nil, errors.New("bucket unreachable"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `"Internal Server Error"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockBatchService)
			tt.setupMock(mockService)
			handler := newBatchHandler(mockService)

			req := httptest.NewRequest("GET", "/api/batches", nil)
			rec := httptest.NewRecorder()

			handler.ListBatches(rec, req)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.expectedBody)
			mockService.AssertExpectations(t)
		})
	}
}

func TestBatchHandler_StartMerge(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		setupMock      func(*MockBatchService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "successful merge",
			body: `{"name":"RS-FV","start_date":"2024-01-10","end_date":"2024-01-12"}`,
			setupMock: func(m *MockBatchService) {
				m.On("Merge", "RS-FV", "2024-01-10", "2024-01-12").Return(&batch.MergeResult{
					Prefix:       "RS-FV",
					FilesIndexed: 3,
					RowsWritten:  42,
				}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"status":"success"`,
		},
		{
			name:           "missing name",
			body:           `{"start_date":"2024-01-10","end_date":"2024-01-12"}`,
			setupMock:      func(m *MockBatchService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `name is required`,
		},
		{
			name:           "missing dates",
			body:           `{"name":"RS-FV"}`,
			setupMock:      func(m *MockBatchService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `start_date is required`,
		},
		{
			name: "invalid prefix",
			body: `{"name":"bad/name","start_date":"2024-01-10","end_date":"2024-01-12"}`,
			setupMock: func(m *MockBatchService) {
				m.On("Merge", "bad/name", "2024-01-10", "2024-01-12").
					Return(nil, services.ErrInvalidPrefix)
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "reversed date range",
			body: `{"name":"RS-FV","start_date":"2024-01-12","end_date":"2024-01-10"}`,
			setupMock: func(m *MockBatchService) {
				m.On("Merge", "RS-FV", "2024-01-12", "2024-01-10").
					Return(nil, services.ErrInvalidDateRange)
			},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `start date must not be after end date`,
		},
		{
			name: "merge already running",
			body: `{"name":"RS-FV","start_date":"2024-01-10","end_date":"2024-01-12"}`,
			setupMock: func(m *MockBatchService) {
				m.On("Merge", "RS-FV", "2024-01-10", "2024-01-12").
					Return(nil, services.ErrMergeInProgress)
			},
			expectedStatus: http.StatusConflict,
			expectedBody:   `"MERGE_IN_PROGRESS"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockBatchService)
			tt.setupMock(mockService)
			handler := newBatchHandler(mockService)

			req := httptest.NewRequest("POST", "/api/batches", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()

			handler.StartMerge(rec, req)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			if tt.expectedBody != "" {
				assert.Contains(t, rec.Body.String(), tt.expectedBody)
			}
			mockService.AssertExpectations(t)
		})
	}
}

func TestBatchHandler_PreviewMerge(t *testing.T) {
	tests := []struct {
		name           string
		query          string
		setupMock      func(*MockBatchService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:  "successful preview",
			query: "?start=2024-01-10&end=2024-01-12",
			setupMock: func(m *MockBatchService) {
				m.On("Preview", "2024-01-10", "2024-01-12").
					Return([]string{"RS-FV_Export_20240111.csv"}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `{"count":1,"data":["RS-FV_Export_20240111.csv"],"status":"success"}`,
		},
		{
			name:           "missing params",
			query:          "?start=2024-01-10",
			setupMock:      func(m *MockBatchService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `start and end query parameters are required`,
		},
		{
			name:  "bad dates",
			query: "?start=nonsense&end=2024-01-12",
			setupMock: func(m *MockBatchService) {
				m.On("Preview", "nonsense", "2024-01-12").
					Return(nil, services.ErrInvalidInput)
			},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockBatchService)
			tt.setupMock(mockService)
			handler := newBatchHandler(mockService)

			req := httptest.NewRequest("GET", "/api/batches/preview"+tt.query, nil)
			rec := httptest.NewRecorder()

			handler.PreviewMerge(rec, req)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			if tt.expectedBody != "" {
				assert.Contains(t, rec.Body.String(), tt.expectedBody)
			}
			mockService.AssertExpectations(t)
		})
	}
}
