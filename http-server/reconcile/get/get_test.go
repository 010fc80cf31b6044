package get

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/render"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"fab-recon/internal/service/reconcile"
)

// MockReconciler реализует интерфейс Reconciler для тестов
type MockReconciler struct {
	mock.Mock
}

func (m *MockReconciler) Reconcile(ctx context.Context, cfg reconcile.Config) (*reconcile.ReportRowSet, error) {
	args := m.Called(ctx, cfg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reconcile.ReportRowSet), args.Error(1)
}

func f64(v float64) *float64 {
	return &v
}

// Тест: успешный отчёт на гранулярности изделий
func TestGetReport_Success(t *testing.T) {
	mockRec := new(MockReconciler)

	report := &reconcile.ReportRowSet{
		Rows: []reconcile.ReportRow{
			{
				Granularity:    reconcile.GranularityItem,
				ProjectID:      10,
				JobNumber:      "J1",
				MainMark:       "b-1",
				PieceMark:      "p1",
				ActualHours:    35,
				EstimatedHours: f64(30),
				EstimateMethod: "weight",
				Variance:       f64(5),
			},
		},
		Summary: reconcile.Summary{TotalActualHours: 35},
	}

	mockRec.On("Reconcile", mock.Anything, mock.MatchedBy(func(cfg reconcile.Config) bool {
		return cfg.Granularity == reconcile.GranularityItem &&
			cfg.From.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)) &&
			!cfg.IncludeUnestimated
	})).Return(report, nil)

	logger := slog.Default()
	handler := GetReport(logger, mockRec)

	req := httptest.NewRequest(http.MethodGet,
		"/api/report?granularity=item&from=2026-03-01&to=2026-03-31&include_unestimated=false", nil)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var resp reconcile.ReportRowSet
	err := render.DecodeJSON(strings.NewReader(rr.Body.String()), &resp)
	assert.NoError(t, err)

	assert.Len(t, resp.Rows, 1)
	assert.Equal(t, "J1", resp.Rows[0].JobNumber)
	assert.InDelta(t, 35, resp.Rows[0].ActualHours, 1e-9)
	if assert.NotNil(t, resp.Rows[0].Variance) {
		assert.InDelta(t, 5, *resp.Rows[0].Variance, 1e-9)
	}

	mockRec.AssertExpectations(t)
}

// Тест: неизвестная гранулярность — 400, движок не вызывается
func TestGetReport_BadGranularity(t *testing.T) {
	mockRec := new(MockReconciler)
	logger := slog.Default()
	handler := GetReport(logger, mockRec)

	req := httptest.NewRequest(http.MethodGet, "/api/report?granularity=banana", nil)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "granularity")

	mockRec.AssertNotCalled(t, "Reconcile")
}

// Тест: кривая дата — 400
func TestGetReport_BadDate(t *testing.T) {
	mockRec := new(MockReconciler)
	handler := GetReport(slog.Default(), mockRec)

	req := httptest.NewRequest(http.MethodGet, "/api/report?from=31-03-2026", nil)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	mockRec.AssertNotCalled(t, "Reconcile")
}

// Тест: неизвестная сортировка — 400, как и у гранулярности
func TestGetReport_BadSort(t *testing.T) {
	mockRec := new(MockReconciler)
	handler := GetReport(slog.Default(), mockRec)

	req := httptest.NewRequest(http.MethodGet, "/api/report?sort=actual", nil)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "sort")
	mockRec.AssertNotCalled(t, "Reconcile")
}

// Тест: ошибка движка — 500
func TestGetReport_ServiceError(t *testing.T) {
	mockRec := new(MockReconciler)

	mockRec.On("Reconcile", mock.Anything, mock.Anything).
		Return(nil, errors.New("connection timeout"))

	handler := GetReport(slog.Default(), mockRec)

	req := httptest.NewRequest(http.MethodGet, "/api/report", nil)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), "Внутренняя ошибка сервера")

	mockRec.AssertExpectations(t)
}

// Тест: сводка принудительно считается по заказам и с неоценёнными строками
func TestGetSummary_ForcesJobGranularity(t *testing.T) {
	mockRec := new(MockReconciler)

	report := &reconcile.ReportRowSet{
		Summary: reconcile.Summary{
			TotalActualHours:    100,
			OrphanedTimeRecords: 2,
		},
	}
	mockRec.On("Reconcile", mock.Anything, mock.MatchedBy(func(cfg reconcile.Config) bool {
		return cfg.Granularity == reconcile.GranularityJob && cfg.IncludeUnestimated
	})).Return(report, nil)

	handler := GetSummary(slog.Default(), mockRec)

	// Гранулярность из запроса игнорируется
	req := httptest.NewRequest(http.MethodGet, "/api/report/summary?granularity=item&include_unestimated=false", nil)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var resp reconcile.Summary
	err := render.DecodeJSON(strings.NewReader(rr.Body.String()), &resp)
	assert.NoError(t, err)
	assert.InDelta(t, 100, resp.TotalActualHours, 1e-9)
	assert.Equal(t, 2, resp.OrphanedTimeRecords)

	mockRec.AssertExpectations(t)
}

// Тест: разбор фильтров по заказам и группам
func TestParseConfig_Filters(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet,
		"/api/report?job=10&job=20&labor_group=7&sort=variance_pct", nil)

	cfg, err := ParseConfig(req)
	assert.NoError(t, err)
	assert.Equal(t, []int64{10, 20}, cfg.JobIDs)
	assert.Equal(t, []int64{7}, cfg.LaborGroupIDs)
	assert.Equal(t, reconcile.SortByVariancePct, cfg.SortBy)
}

// Тест: день из параметра to входит в выборку, несмотря на строгую правую
// границу в SQL
func TestParseConfig_ToInclusive(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/report?from=2026-03-01&to=2026-03-31", nil)

	cfg, err := ParseConfig(req)
	assert.NoError(t, err)
	assert.True(t, cfg.From.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, cfg.To.Equal(time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)))
}

func TestParseConfig_BadJobID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/report?job=abc", nil)

	_, err := ParseConfig(req)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "job")
}
