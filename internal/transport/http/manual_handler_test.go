package http

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	apierrors "pbrpulse/internal/errors"
	"pbrpulse/internal/manual"
)

// MockManualService is a mock implementation of ManualServiceInterface
type MockManualService struct {
	mock.Mock
}

func (m *MockManualService) CreateVariable(ctx context.Context, name string, kind manual.Kind) (string, error) {
	args := m.Called(name, kind)
	return args.String(0), args.Error(1)
}

func (m *MockManualService) AddValue(ctx context.Context, kind manual.Kind, e manual.ValueEntry) error {
	args := m.Called(kind, e)
	return args.Error(0)
}

func (m *MockManualService) AddSpan(ctx context.Context, kind manual.Kind, e manual.SpanEntry) error {
	args := m.Called(kind, e)
	return args.Error(0)
}

func (m *MockManualService) PlotVariables(ctx context.Context) ([]string, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockManualService) GanttVariables(ctx context.Context) ([]string, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockManualService) EntryOptions() map[string][]string {
	args := m.Called()
	return args.Get(0).(map[string][]string)
}

func newManualRouter(service ManualServiceInterface) http.Handler {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	errorHandler := apierrors.NewErrorHandler(logger, false)
	return NewManualHandler(service, logger, errorHandler).Routes()
}

func TestManualHandler_CreateVariable(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		setupMock      func(*MockManualService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "successful create",
			body: `{"name":"Biomass","kind":"float"}`,
			setupMock: func(m *MockManualService) {
				m.On("CreateVariable", "Biomass", manual.KindFloat).
					Return("Biomass_float.csv", nil)
			},
			expectedStatus: http.StatusCreated,
			expectedBody:   `"object":"Biomass_float.csv"`,
		},
		{
			name:           "missing name",
			body:           `{"kind":"float"}`,
			setupMock:      func(m *MockManualService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `"INVALID_REQUEST"`,
		},
		{
			name:           "unknown kind",
			body:           `{"name":"Biomass","kind":"sideways"}`,
			setupMock:      func(m *MockManualService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "variable already exists",
			body: `{"name":"Biomass","kind":"float"}`,
			setupMock: func(m *MockManualService) {
				m.On("CreateVariable", "Biomass", manual.KindFloat).
					Return("", manual.ErrTemplateExists)
			},
			expectedStatus: http.StatusConflict,
			expectedBody:   `"VARIABLE_EXISTS"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockManualService)
			tt.setupMock(mockService)
			router := newManualRouter(mockService)

			req := httptest.NewRequest("POST", "/variables", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()

			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			if tt.expectedBody != "" {
				assert.Contains(t, rec.Body.String(), tt.expectedBody)
			}
			mockService.AssertExpectations(t)
		})
	}
}

func TestManualHandler_AddEntry_Value(t *testing.T) {
	tests := []struct {
		name           string
		kind           string
		body           string
		setupMock      func(*MockManualService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "float entry recorded",
			kind: "float",
			body: `{"variable_name":"Biomass","value":1.25,"units":"g·L-1","days_since_inoculation":3}`,
			setupMock: func(m *MockManualService) {
				m.On("AddValue", manual.KindFloat, manual.ValueEntry{
					Variable: "Biomass", Value: 1.25, Units: "g·L-1", Days: 3,
				}).Return(nil)
			},
			expectedStatus: http.StatusCreated,
			expectedBody:   `"status":"success"`,
		},
		{
			name:           "negative days rejected by validation",
			kind:           "percentage",
			body:           `{"variable_name":"Viability","value":90,"days_since_inoculation":-1}`,
			setupMock:      func(m *MockManualService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `"INVALID_REQUEST"`,
		},
		{
			name:           "missing variable name",
			kind:           "float",
			body:           `{"value":1.25,"units":"L"}`,
			setupMock:      func(m *MockManualService) {},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockManualService)
			tt.setupMock(mockService)
			router := newManualRouter(mockService)

			req := httptest.NewRequest("POST", "/entries/"+tt.kind, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()

			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			if tt.expectedBody != "" {
				assert.Contains(t, rec.Body.String(), tt.expectedBody)
			}
			mockService.AssertExpectations(t)
		})
	}
}

func TestManualHandler_AddEntry_Span(t *testing.T) {
	mockService := new(MockManualService)
	mockService.On("AddSpan", manual.KindBinary, manual.SpanEntry{
		Variable: "Contamination",
		StartDay: "2024-01-10",
		EndDay:   "2024-01-12",
		Category: "yes",
	}).Return(nil)
	router := newManualRouter(mockService)

	body := `{"variable_name":"Contamination","start_day":"2024-01-10","end_day":"2024-01-12","category":"yes"}`
	req := httptest.NewRequest("POST", "/entries/binary", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"success"`)
	mockService.AssertExpectations(t)
}

func TestManualHandler_AddEntry_UnknownKind(t *testing.T) {
	mockService := new(MockManualService)
	router := newManualRouter(mockService)

	req := httptest.NewRequest("POST", "/entries/sideways", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"VALIDATION_FAILED"`)
	mockService.AssertExpectations(t)
}

func TestManualHandler_GetEntryOptions(t *testing.T) {
	mockService := new(MockManualService)
	mockService.On("EntryOptions").Return(map[string][]string{
		"float_units":       {"g·L-1", "L"},
		"string_categories": {"green"},
		"binary_categories": {"yes", "no"},
	})
	router := newManualRouter(mockService)

	req := httptest.NewRequest("GET", "/options", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"binary_categories":["yes","no"]`)
	mockService.AssertExpectations(t)
}
