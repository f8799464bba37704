package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alkholigroup2020/stock-management-system-sub008/internal/approvals"
	"github.com/alkholigroup2020/stock-management-system-sub008/internal/closing"
	"github.com/alkholigroup2020/stock-management-system-sub008/internal/locations"
	"github.com/alkholigroup2020/stock-management-system-sub008/internal/periods"
	"github.com/alkholigroup2020/stock-management-system-sub008/internal/reconciliation"
	"github.com/alkholigroup2020/stock-management-system-sub008/internal/stock"
	"github.com/alkholigroup2020/stock-management-system-sub008/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger                *slog.Logger
	Config                *Config
	Pool                  *pgxpool.Pool
	LocationsHandler      *locations.Handler
	StockHandler          *stock.Handler
	PeriodsHandler        *periods.Handler
	ReconciliationHandler *reconciliation.Handler
	ApprovalsHandler      *approvals.Handler
	CloseHandler          *closing.Handler
	JobsHandler           *jobs.Handler
}

// NewRouter constructs the chi.Router with service defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if params.Pool != nil {
			if err := params.Pool.Ping(req.Context()); err != nil {
				http.Error(w, "database unreachable", http.StatusServiceUnavailable)
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	params.LocationsHandler.MountRoutes(r)
	params.StockHandler.MountRoutes(r)
	params.PeriodsHandler.MountRoutes(r,
		params.ReconciliationHandler.MountPeriodRoutes,
		params.CloseHandler.MountPeriodRoutes,
	)
	params.ApprovalsHandler.MountRoutes(r)
	if params.JobsHandler != nil {
		r.Route("/jobs", params.JobsHandler.MountRoutes)
	}

	return r
}
