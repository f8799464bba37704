package closing

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alkholigroup2020/stock-management-system-sub008/internal/periods"
	"github.com/alkholigroup2020/stock-management-system-sub008/internal/shared"
	"github.com/alkholigroup2020/stock-management-system-sub008/internal/stock"
)

func newTestRouter(svc *Service, actor shared.Actor) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandler(logger, svc)
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(shared.ContextWithActor(req.Context(), actor)))
		})
	})
	r.Route("/periods/{periodID}", h.MountPeriodRoutes)
	return r
}

func TestRequestEndpointReportsBlockingLocations(t *testing.T) {
	repo := newMemoryRepo(periods.Period{ID: 1, Status: periods.PeriodOpen})
	repo.addLocation(1, periods.LocationReady)
	repo.addLocation(2, periods.LocationOpen)
	router := newTestRouter(testService(repo), admin())

	req := httptest.NewRequest(http.MethodPost, "/periods/1/close", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusConflict, rec.Code)

	var body struct {
		Code    string `json:"code"`
		Details struct {
			Locations []NotReadyLocation `json:"locations"`
		} `json:"details"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "LOCATIONS_NOT_READY", body.Code)
	assert.Equal(t, []NotReadyLocation{{LocationID: 2, Name: "Store 2", Status: periods.LocationOpen}}, body.Details.Locations)
}

func TestRequestEndpointAccepted(t *testing.T) {
	repo := newMemoryRepo(periods.Period{ID: 1, Status: periods.PeriodOpen})
	repo.addLocation(1, periods.LocationReady)
	router := newTestRouter(testService(repo), admin())

	req := httptest.NewRequest(http.MethodPost, "/periods/1/close", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var body struct {
		Status   string `json:"status"`
		Approval struct {
			Status string `json:"status"`
		} `json:"approval"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, periods.PeriodPendingClose, body.Status)
	assert.Equal(t, "PENDING", body.Approval.Status)
}

func TestPreviewEndpoint(t *testing.T) {
	repo := newMemoryRepo(periods.Period{ID: 1, Status: periods.PeriodOpen})
	repo.addLocation(1, periods.LocationReady)
	repo.stockRows = []stock.OnHandRow{
		{LocationID: 1, ItemID: 10, Quantity: dec("10"), UnitCost: dec("2.50")},
	}
	router := newTestRouter(testService(repo), admin())

	req := httptest.NewRequest(http.MethodGet, "/periods/1/close/preview", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var preview Preview
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &preview))
	assert.True(t, preview.AllReady)
	assert.True(t, preview.TotalValue.Equal(dec("25.00")), "got %s", preview.TotalValue)
}

func TestCloseRoutesRequireAdmin(t *testing.T) {
	repo := newMemoryRepo(periods.Period{ID: 1, Status: periods.PeriodOpen})
	router := newTestRouter(testService(repo), shared.Actor{ID: 4, Role: shared.RoleSupervisor})

	req := httptest.NewRequest(http.MethodPost, "/periods/1/close", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
