package periods

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alkholigroup2020/stock-management-system-sub008/internal/shared"
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
	h.MountRoutes(r)
	return r
}

func doRequest(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestReadinessEndpoint(t *testing.T) {
	repo := newMemoryRepo()
	p := seedOpenPeriod(repo, 1, 2)
	router := newTestRouter(testService(repo), shared.Actor{ID: 9, Role: shared.RoleSupervisor})

	rec := doRequest(t, router, http.MethodGet, "/periods/1/readiness", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var report Readiness
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, p.ID, report.PeriodID)
	assert.False(t, report.AllReady)
	assert.Len(t, report.Locations, 2)
}

func TestMarkReadyEndpointErrors(t *testing.T) {
	repo := newMemoryRepo()
	seedOpenPeriod(repo, 1)
	router := newTestRouter(testService(repo), shared.Actor{ID: 9, Role: shared.RoleSupervisor})

	rec := doRequest(t, router, http.MethodPatch, "/periods/1/locations/1/ready", "")
	require.Equal(t, http.StatusConflict, rec.Code)

	var body struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "RECONCILIATION_NOT_COMPLETED", body.Code)

	rec = doRequest(t, router, http.MethodPatch, "/periods/1/locations/99/ready", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRoleEnforcement(t *testing.T) {
	repo := newMemoryRepo()
	seedOpenPeriod(repo, 1)
	svc := testService(repo)

	// No actor headers upstream: zero actor, 401.
	rec := doRequest(t, newTestRouter(svc, shared.Actor{}), http.MethodGet, "/periods/1/readiness", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Staff cannot read readiness.
	rec = doRequest(t, newTestRouter(svc, shared.Actor{ID: 3, Role: shared.RoleStaff}), http.MethodGet, "/periods/1/readiness", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Supervisor cannot create periods.
	rec = doRequest(t, newTestRouter(svc, shared.Actor{ID: 3, Role: shared.RoleSupervisor}), http.MethodPost, "/periods",
		`{"start_date":"2026-05-01","end_date":"2026-05-31"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCreatePeriodEndpoint(t *testing.T) {
	repo := newMemoryRepo()
	router := newTestRouter(testService(repo), shared.Actor{ID: 1, Role: shared.RoleAdmin})

	rec := doRequest(t, router, http.MethodPost, "/periods", `{"start_date":"2026-05-01","end_date":"2026-05-31"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var p Period
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.Equal(t, "May 2026", p.Name)
	assert.Equal(t, PeriodDraft, p.Status)

	rec = doRequest(t, router, http.MethodPost, "/periods", `{"start_date":"2026-05-15","end_date":"2026-06-14"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}
