package closing

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/alkholigroup2020/stock-management-system-sub008/internal/periods"
	"github.com/alkholigroup2020/stock-management-system-sub008/internal/platform/httpx"
	"github.com/alkholigroup2020/stock-management-system-sub008/internal/shared"
)

type Handler struct {
	logger  *slog.Logger
	service *Service
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountPeriodRoutes registers the close workflow routes inside the
// periods handler's /{periodID} scope. Approve/reject go through the
// approvals routes.
func (h *Handler) MountPeriodRoutes(r chi.Router) {
	admin := shared.RequireRole(shared.RoleAdmin)
	r.With(admin).Post("/close", h.request)
	r.With(admin).Get("/close/preview", h.preview)
}

func (h *Handler) request(w http.ResponseWriter, r *http.Request) {
	periodID, ok := pathPeriodID(w, r)
	if !ok {
		return
	}
	approval, err := h.service.Request(r.Context(), periodID, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusAccepted, map[string]any{
		"period_id": periodID,
		"status":    periods.PeriodPendingClose,
		"approval":  approval,
	})
}

func (h *Handler) preview(w http.ResponseWriter, r *http.Request) {
	periodID, ok := pathPeriodID(w, r)
	if !ok {
		return
	}
	preview, err := h.service.Preview(r.Context(), periodID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, preview)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	if RespondError(w, err) {
		return
	}
	switch {
	case errors.Is(err, periods.ErrNotFound):
		httpx.Error(w, http.StatusNotFound, "NOT_FOUND", "period not found")
	default:
		h.logger.Error("period close", slog.Any("error", err))
		httpx.Internal(w)
	}
}

// RespondError translates close workflow errors into HTTP responses.
// It is also plugged into the approvals handler so decisions on
// PERIOD_CLOSE approvals surface the same error codes. Reports whether
// the error was handled.
func RespondError(w http.ResponseWriter, err error) bool {
	var notReady *NotReadyError
	switch {
	case errors.As(err, &notReady):
		httpx.ErrorWithDetails(w, http.StatusConflict, "LOCATIONS_NOT_READY",
			"all locations must be ready before the period can close",
			map[string]any{"locations": notReady.Locations})
	case errors.Is(err, ErrPeriodNotOpen):
		httpx.Error(w, http.StatusConflict, "PERIOD_NOT_OPEN", err.Error())
	case errors.Is(err, ErrPeriodNotPendingClose):
		httpx.Error(w, http.StatusConflict, "PERIOD_NOT_PENDING_CLOSE", err.Error())
	case errors.Is(err, ErrPeriodLocked):
		httpx.Error(w, http.StatusConflict, "CLOSE_IN_PROGRESS", err.Error())
	default:
		return false
	}
	return true
}

func pathPeriodID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "periodID"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Error(w, http.StatusBadRequest, "INVALID_ID", "invalid period id")
		return 0, false
	}
	return id, true
}
