package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	apierrors "pbrpulse/internal/errors"
	"pbrpulse/internal/exporter"
	"pbrpulse/internal/plot"
	"pbrpulse/internal/services"
	"pbrpulse/internal/storage"
)

// MockDashboardService is a mock implementation of DashboardServiceInterface
type MockDashboardService struct {
	mock.Mock
}

func (m *MockDashboardService) Plot(ctx context.Context, req plot.Request) (*plot.Payload, error) {
	args := m.Called(req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*plot.Payload), args.Error(1)
}

func (m *MockDashboardService) Gantt(ctx context.Context, variables []string) (*plot.GanttPayload, error) {
	args := m.Called(variables)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*plot.GanttPayload), args.Error(1)
}

func (m *MockDashboardService) Export(ctx context.Context, req plot.Request, format exporter.Format) (string, string, []byte, error) {
	args := m.Called(req, format)
	if args.Get(2) == nil {
		return args.String(0), args.String(1), nil, args.Error(3)
	}
	return args.String(0), args.String(1), args.Get(2).([]byte), args.Error(3)
}

func (m *MockDashboardService) ProcessVariableOptions(prefixes []string) []services.Option {
	args := m.Called(prefixes)
	return args.Get(0).([]services.Option)
}

func (m *MockDashboardService) AnalyticsVariableOptions(ctx context.Context) ([]services.Option, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]services.Option), args.Error(1)
}

func newDashboardRouter(service DashboardServiceInterface, batches BatchServiceInterface, manualSvc ManualServiceInterface) http.Handler {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	errorHandler := apierrors.NewErrorHandler(logger, false)
	return NewDashboardHandler(service, batches, manualSvc, logger, errorHandler).Routes()
}

func TestDashboardHandler_GetPlot(t *testing.T) {
	tests := []struct {
		name           string
		target         string
		setupMock      func(*MockDashboardService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:   "successful plot",
			target: "/plot?series=RS-FV_Temp,RS-FV_pH&time_mode=elapsed",
			setupMock: func(m *MockDashboardService) {
				m.On("Plot", plot.Request{
					Variables: []string{"RS-FV_Temp", "RS-FV_pH"},
					TimeMode:  "elapsed",
				}).Return(&plot.Payload{
					Traces:   []plot.Trace{{Variable: "Temp"}},
					TimeMode: plot.TimeModeElapsed,
				}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"count":1`,
		},
		{
			name:   "unknown time mode",
			target: "/plot?series=RS-FV_Temp&time_mode=sideways",
			setupMock: func(m *MockDashboardService) {
				m.On("Plot", plot.Request{
					Variables: []string{"RS-FV_Temp"},
					TimeMode:  "sideways",
				}).Return(nil, services.ErrInvalidInput)
			},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `"INVALID_REQUEST"`,
		},
		{
			name:   "missing series",
			target: "/plot?series=RS-FV_Nope",
			setupMock: func(m *MockDashboardService) {
				m.On("Plot", plot.Request{
					Variables: []string{"RS-FV_Nope"},
				}).Return(nil, storage.ErrObjectNotFound)
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   `"SERIES_NOT_FOUND"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockDashboardService)
			tt.setupMock(mockService)
			router := newDashboardRouter(mockService, new(MockBatchService), new(MockManualService))

			req := httptest.NewRequest("GET", tt.target, nil)
			rec := httptest.NewRecorder()

			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.expectedBody)
			mockService.AssertExpectations(t)
		})
	}
}

func TestDashboardHandler_GetGantt(t *testing.T) {
	mockService := new(MockDashboardService)
	mockService.On("Gantt", []string{"Contamination"}).Return(&plot.GanttPayload{
		Entries: []plot.GanttEntry{{Task: "Contamination: yes"}},
	}, nil)
	router := newDashboardRouter(mockService, new(MockBatchService), new(MockManualService))

	req := httptest.NewRequest("GET", "/gantt?variables=Contamination", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"Contamination: yes"`)
	mockService.AssertExpectations(t)
}

func TestDashboardHandler_ExportData(t *testing.T) {
	mockService := new(MockDashboardService)
	mockService.On("Export", plot.Request{Variables: []string{"RS-FV_Temp"}}, exporter.FormatCSV).
		Return("exported_graph_data_20240110_080000.csv", "text/csv",
			[]byte("Time,Variable,VarValue\n"), nil)
	router := newDashboardRouter(mockService, new(MockBatchService), new(MockManualService))

	req := httptest.NewRequest("GET", "/export?series=RS-FV_Temp", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Equal(t,
		`attachment; filename="exported_graph_data_20240110_080000.csv"`,
		rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "Time,Variable,VarValue\n", rec.Body.String())
	mockService.AssertExpectations(t)
}

func TestDashboardHandler_ExportData_BadFormat(t *testing.T) {
	mockService := new(MockDashboardService)
	mockService.On("Export", plot.Request{Variables: []string{"RS-FV_Temp"}}, exporter.Format("pdf")).
		Return("", "", nil, services.ErrInvalidInput)
	router := newDashboardRouter(mockService, new(MockBatchService), new(MockManualService))

	req := httptest.NewRequest("GET", "/export?series=RS-FV_Temp&format=pdf", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	mockService.AssertExpectations(t)
}

func TestDashboardHandler_GetProcessVariables(t *testing.T) {
	mockBatches := new(MockBatchService)
	mockBatches.On("Prefixes").Return([]string{"RS-FV"}, nil)

	mockService := new(MockDashboardService)
	mockService.On("ProcessVariableOptions", []string{"RS-FV"}).Return([]services.Option{
		{Value: "RS-FV_Temp", Label: "RS-FV: Temperature"},
	})
	router := newDashboardRouter(mockService, mockBatches, new(MockManualService))

	req := httptest.NewRequest("GET", "/variables/process", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"label":"RS-FV: Temperature"`)
	mockService.AssertExpectations(t)
	mockBatches.AssertExpectations(t)
}

func TestDashboardHandler_GetAnalyticsVariables_Unavailable(t *testing.T) {
	mockService := new(MockDashboardService)
	mockService.On("AnalyticsVariableOptions").Return(nil, errors.New("no lab results uploaded"))
	router := newDashboardRouter(mockService, new(MockBatchService), new(MockManualService))

	req := httptest.NewRequest("GET", "/variables/analytics", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ANALYTICS_UNAVAILABLE"`)
	mockService.AssertExpectations(t)
}

func TestDashboardHandler_GetManualVariables(t *testing.T) {
	mockManual := new(MockManualService)
	mockManual.On("PlotVariables").Return([]string{"Biomass_float"}, nil)
	router := newDashboardRouter(new(MockDashboardService), new(MockBatchService), mockManual)

	req := httptest.NewRequest("GET", "/variables/manual", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `{"count":1,"data":["Biomass_float"],"status":"success"}`)
	mockManual.AssertExpectations(t)
}

func TestDashboardHandler_GetGanttVariables(t *testing.T) {
	mockManual := new(MockManualService)
	mockManual.On("GanttVariables").Return([]string{"Contamination"}, nil)
	router := newDashboardRouter(new(MockDashboardService), new(MockBatchService), mockManual)

	req := httptest.NewRequest("GET", "/variables/gantt", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"Contamination"`)
	mockManual.AssertExpectations(t)
}
