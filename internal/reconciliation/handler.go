package reconciliation

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/alkholigroup2020/stock-management-system-sub008/internal/platform/httpx"
	"github.com/alkholigroup2020/stock-management-system-sub008/internal/shared"
)

type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountPeriodRoutes registers reconciliation routes inside the periods
// handler's /{periodID} scope.
func (h *Handler) MountPeriodRoutes(r chi.Router) {
	supervisor := shared.RequireRole(shared.RoleSupervisor)
	r.With(supervisor).Get("/locations/{locationID}/reconciliation", h.get)
	r.With(supervisor).Put("/locations/{locationID}/reconciliation", h.save)
}

type saveRequest struct {
	OpeningValue  string `json:"opening_value" validate:"required"`
	Receipts      string `json:"receipts" validate:"required"`
	TransfersIn   string `json:"transfers_in" validate:"required"`
	TransfersOut  string `json:"transfers_out" validate:"required"`
	Issues        string `json:"issues" validate:"required"`
	Adjustments   string `json:"adjustments" validate:"required"`
	BackCharges   string `json:"back_charges" validate:"required"`
	Credits       string `json:"credits" validate:"required"`
	Condemnations string `json:"condemnations" validate:"required"`
	ActualClosing string `json:"actual_closing" validate:"required"`
}

type reconciliationResponse struct {
	Reconciliation
	CalculatedClosing decimal.Decimal `json:"calculated_closing"`
	Variance          decimal.Decimal `json:"variance"`
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	periodID, locationID, ok := pathIDs(w, r)
	if !ok {
		return
	}
	rec, err := h.service.Get(r.Context(), periodID, locationID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, reconciliationResponse{
		Reconciliation:    rec,
		CalculatedClosing: rec.CalculatedClosing(),
		Variance:          rec.Variance(),
	})
}

func (h *Handler) save(w http.ResponseWriter, r *http.Request) {
	periodID, locationID, ok := pathIDs(w, r)
	if !ok {
		return
	}
	var req saveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "INVALID_BODY", "request body is not valid JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "VALIDATION_FAILED", err.Error())
		return
	}

	in := SaveInput{PeriodID: periodID, LocationID: locationID, ActorID: shared.ActorFromContext(r.Context()).ID}
	fields := []struct {
		name string
		src  string
		dst  *decimal.Decimal
	}{
		{"opening_value", req.OpeningValue, &in.OpeningValue},
		{"receipts", req.Receipts, &in.Receipts},
		{"transfers_in", req.TransfersIn, &in.TransfersIn},
		{"transfers_out", req.TransfersOut, &in.TransfersOut},
		{"issues", req.Issues, &in.Issues},
		{"adjustments", req.Adjustments, &in.Adjustments},
		{"back_charges", req.BackCharges, &in.BackCharges},
		{"credits", req.Credits, &in.Credits},
		{"condemnations", req.Condemnations, &in.Condemnations},
		{"actual_closing", req.ActualClosing, &in.ActualClosing},
	}
	for _, f := range fields {
		v, err := decimal.NewFromString(f.src)
		if err != nil {
			httpx.Error(w, http.StatusBadRequest, "VALIDATION_FAILED", f.name+" must be a decimal number")
			return
		}
		*f.dst = v
	}

	rec, err := h.service.Save(r.Context(), in)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, reconciliationResponse{
		Reconciliation:    rec,
		CalculatedClosing: rec.CalculatedClosing(),
		Variance:          rec.Variance(),
	})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Error(w, http.StatusNotFound, "NOT_FOUND", "reconciliation not found")
	case errors.Is(err, ErrLocationClosed):
		httpx.Error(w, http.StatusConflict, "LOCATION_CLOSED", "location is closed for this period")
	case errors.Is(err, ErrNegativeValue):
		httpx.Error(w, http.StatusBadRequest, "VALIDATION_FAILED", err.Error())
	default:
		h.logger.Error("reconciliation", slog.Any("error", err))
		httpx.Internal(w)
	}
}

func pathIDs(w http.ResponseWriter, r *http.Request) (int64, int64, bool) {
	periodID, err := strconv.ParseInt(chi.URLParam(r, "periodID"), 10, 64)
	if err != nil || periodID <= 0 {
		httpx.Error(w, http.StatusBadRequest, "INVALID_ID", "invalid period id")
		return 0, 0, false
	}
	locationID, err := strconv.ParseInt(chi.URLParam(r, "locationID"), 10, 64)
	if err != nil || locationID <= 0 {
		httpx.Error(w, http.StatusBadRequest, "INVALID_ID", "invalid location id")
		return 0, 0, false
	}
	return periodID, locationID, true
}
