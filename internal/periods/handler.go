package periods

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/alkholigroup2020/stock-management-system-sub008/internal/platform/httpx"
	"github.com/alkholigroup2020/stock-management-system-sub008/internal/shared"
)

const dateLayout = "2006-01-02"

type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers period lifecycle routes. Sub-resources owned
// by other packages (reconciliation, close) pass mount functions that
// run inside the /{periodID} scope.
func (h *Handler) MountRoutes(r chi.Router, nested ...func(chi.Router)) {
	r.Route("/periods", func(r chi.Router) {
		r.With(shared.RequireRole(shared.RoleSupervisor)).Get("/", h.list)
		r.With(shared.RequireRole(shared.RoleAdmin)).Post("/", h.create)

		r.Route("/{periodID}", func(r chi.Router) {
			r.With(shared.RequireRole(shared.RoleSupervisor)).Get("/", h.get)
			r.With(shared.RequireRole(shared.RoleAdmin)).Post("/open", h.open)
			r.With(shared.RequireRole(shared.RoleSupervisor)).Get("/readiness", h.readiness)
			r.With(shared.RequireRole(shared.RoleAdmin)).Post("/roll-forward", h.rollForward)
			r.With(shared.RequireRole(shared.RoleAdmin)).Put("/prices/{itemID}", h.setPrice)
			r.With(shared.RequireRole(shared.RoleSupervisor)).Patch("/locations/{locationID}/ready", h.markReady)
			r.With(shared.RequireRole(shared.RoleSupervisor)).Patch("/locations/{locationID}/unready", h.unmarkReady)

			for _, mount := range nested {
				mount(r)
			}
		})
	})
}

type createPeriodRequest struct {
	Name      string `json:"name" validate:"max=120"`
	StartDate string `json:"start_date" validate:"required"`
	EndDate   string `json:"end_date" validate:"required"`
}

type rollForwardRequest struct {
	Name       string `json:"name" validate:"max=120"`
	EndDate    string `json:"end_date"`
	CopyPrices bool   `json:"copy_prices"`
}

type setPriceRequest struct {
	UnitPrice string `json:"unit_price" validate:"required"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"periods": list})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := periodID(w, r)
	if !ok {
		return
	}
	p, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createPeriodRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "INVALID_BODY", "request body is not valid JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "VALIDATION_FAILED", err.Error())
		return
	}
	start, err := time.Parse(dateLayout, req.StartDate)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "VALIDATION_FAILED", "start_date must be YYYY-MM-DD")
		return
	}
	end, err := time.Parse(dateLayout, req.EndDate)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "VALIDATION_FAILED", "end_date must be YYYY-MM-DD")
		return
	}

	p, err := h.service.Create(r.Context(), CreateInput{
		Name:      req.Name,
		StartDate: start,
		EndDate:   end,
		ActorID:   shared.ActorFromContext(r.Context()).ID,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, p)
}

func (h *Handler) open(w http.ResponseWriter, r *http.Request) {
	id, ok := periodID(w, r)
	if !ok {
		return
	}
	p, err := h.service.Open(r.Context(), id, shared.ActorFromContext(r.Context()).ID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) readiness(w http.ResponseWriter, r *http.Request) {
	id, ok := periodID(w, r)
	if !ok {
		return
	}
	report, err := h.service.Readiness(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) markReady(w http.ResponseWriter, r *http.Request) {
	h.setReadiness(w, r, h.service.MarkReady)
}

func (h *Handler) unmarkReady(w http.ResponseWriter, r *http.Request) {
	h.setReadiness(w, r, h.service.UnmarkReady)
}

func (h *Handler) setReadiness(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, periodID, locationID, actorID int64) error) {
	pid, ok := periodID(w, r)
	if !ok {
		return
	}
	locationID, err := strconv.ParseInt(chi.URLParam(r, "locationID"), 10, 64)
	if err != nil || locationID <= 0 {
		httpx.Error(w, http.StatusBadRequest, "INVALID_ID", "invalid location id")
		return
	}
	if err := fn(r.Context(), pid, locationID, shared.ActorFromContext(r.Context()).ID); err != nil {
		h.respondError(w, err)
		return
	}
	report, err := h.service.Readiness(r.Context(), pid)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) rollForward(w http.ResponseWriter, r *http.Request) {
	id, ok := periodID(w, r)
	if !ok {
		return
	}
	var req rollForwardRequest
	if err := httpx.DecodeJSON(r, &req); err != nil && !errors.Is(err, httpx.ErrEmptyBody) {
		httpx.Error(w, http.StatusBadRequest, "INVALID_BODY", "request body is not valid JSON")
		return
	}
	var end time.Time
	if req.EndDate != "" {
		var err error
		end, err = time.Parse(dateLayout, req.EndDate)
		if err != nil {
			httpx.Error(w, http.StatusBadRequest, "VALIDATION_FAILED", "end_date must be YYYY-MM-DD")
			return
		}
	}

	result, err := h.service.RollForward(r.Context(), id, RollForwardInput{
		Name:       req.Name,
		EndDate:    end,
		CopyPrices: req.CopyPrices,
		ActorID:    shared.ActorFromContext(r.Context()).ID,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, result)
}

func (h *Handler) setPrice(w http.ResponseWriter, r *http.Request) {
	pid, ok := periodID(w, r)
	if !ok {
		return
	}
	itemID, err := strconv.ParseInt(chi.URLParam(r, "itemID"), 10, 64)
	if err != nil || itemID <= 0 {
		httpx.Error(w, http.StatusBadRequest, "INVALID_ID", "invalid item id")
		return
	}
	var req setPriceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "INVALID_BODY", "request body is not valid JSON")
		return
	}
	price, err := decimal.NewFromString(req.UnitPrice)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "VALIDATION_FAILED", "unit_price must be a decimal number")
		return
	}
	if err := h.service.SetItemPrice(r.Context(), pid, itemID, price, shared.ActorFromContext(r.Context()).ID); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"period_id": pid, "item_id": itemID, "unit_price": price})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Error(w, http.StatusNotFound, "NOT_FOUND", "period not found")
	case errors.Is(err, ErrLocationNotInPeriod):
		httpx.Error(w, http.StatusNotFound, "NOT_FOUND", "location not part of period")
	case errors.Is(err, ErrPeriodNotDraft):
		httpx.Error(w, http.StatusConflict, "PERIOD_NOT_DRAFT", err.Error())
	case errors.Is(err, ErrPeriodNotOpen):
		httpx.Error(w, http.StatusConflict, "PERIOD_NOT_OPEN", err.Error())
	case errors.Is(err, ErrAnotherPeriodOpen):
		httpx.Error(w, http.StatusConflict, "ANOTHER_PERIOD_OPEN", err.Error())
	case errors.Is(err, ErrReconciliationMissing):
		httpx.Error(w, http.StatusConflict, "RECONCILIATION_NOT_COMPLETED", err.Error())
	case errors.Is(err, ErrLocationClosed):
		httpx.Error(w, http.StatusConflict, "LOCATION_CLOSED", err.Error())
	case errors.Is(err, ErrNotReady):
		httpx.Error(w, http.StatusConflict, "LOCATION_NOT_READY", err.Error())
	case errors.Is(err, ErrSourceNotClosed):
		httpx.Error(w, http.StatusConflict, "PERIOD_NOT_CLOSED", err.Error())
	case errors.Is(err, ErrPeriodOverlap):
		httpx.Error(w, http.StatusConflict, "OVERLAPPING_PERIOD", err.Error())
	case errors.Is(err, ErrInvalidDateRange):
		httpx.Error(w, http.StatusBadRequest, "VALIDATION_FAILED", err.Error())
	case errors.Is(err, ErrPricesLocked):
		httpx.Error(w, http.StatusConflict, "PRICES_LOCKED", err.Error())
	default:
		h.logger.Error("periods", slog.Any("error", err))
		httpx.Internal(w)
	}
}

func periodID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "periodID"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Error(w, http.StatusBadRequest, "INVALID_ID", "invalid period id")
		return 0, false
	}
	return id, true
}
