package stock

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/alkholigroup2020/stock-management-system-sub008/internal/periods"
	"github.com/alkholigroup2020/stock-management-system-sub008/internal/platform/httpx"
	"github.com/alkholigroup2020/stock-management-system-sub008/internal/shared"
)

// Handler wires HTTP endpoints for stock queries and movement posting.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a stock handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers stock routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/stock", func(r chi.Router) {
		r.Use(shared.RequireRole(shared.RoleSupervisor))
		r.Get("/on-hand", h.onHand)
		r.Get("/movements", h.movements)
		r.Post("/movements", h.postMovement)
	})
}

type movementRequest struct {
	Kind           string `json:"kind" validate:"required,oneof=DELIVERY ISSUE TRANSFER ADJUSTMENT"`
	LocationID     int64  `json:"location_id" validate:"required_unless=Kind TRANSFER"`
	FromLocationID int64  `json:"from_location_id"`
	ToLocationID   int64  `json:"to_location_id"`
	ItemID         int64  `json:"item_id" validate:"required"`
	Quantity       string `json:"quantity" validate:"required"`
	UnitCost       string `json:"unit_cost"`
	Note           string `json:"note" validate:"max=500"`
}

func (h *Handler) onHand(w http.ResponseWriter, r *http.Request) {
	locationID, err := strconv.ParseInt(r.URL.Query().Get("location_id"), 10, 64)
	if err != nil || locationID <= 0 {
		httpx.Error(w, http.StatusBadRequest, "INVALID_ID", "location_id query parameter required")
		return
	}
	rows, err := h.service.OnHand(r.Context(), []int64{locationID})
	if err != nil {
		h.logger.Error("stock on hand", slog.Any("error", err))
		httpx.Internal(w)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"location_id": locationID, "items": rows})
}

func (h *Handler) movements(w http.ResponseWriter, r *http.Request) {
	locationID, err := strconv.ParseInt(r.URL.Query().Get("location_id"), 10, 64)
	if err != nil || locationID <= 0 {
		httpx.Error(w, http.StatusBadRequest, "INVALID_ID", "location_id query parameter required")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	list, err := h.service.Movements(r.Context(), locationID, limit)
	if err != nil {
		h.logger.Error("stock movements", slog.Any("error", err))
		httpx.Internal(w)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"location_id": locationID, "movements": list})
}

func (h *Handler) postMovement(w http.ResponseWriter, r *http.Request) {
	var req movementRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "INVALID_BODY", "request body is not valid JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "VALIDATION_FAILED", err.Error())
		return
	}
	qty, err := decimal.NewFromString(req.Quantity)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "VALIDATION_FAILED", "quantity must be a decimal number")
		return
	}
	var cost decimal.Decimal
	if req.UnitCost != "" {
		cost, err = decimal.NewFromString(req.UnitCost)
		if err != nil {
			httpx.Error(w, http.StatusBadRequest, "VALIDATION_FAILED", "unit_cost must be a decimal number")
			return
		}
	}
	actor := shared.ActorFromContext(r.Context())

	switch req.Kind {
	case "DELIVERY":
		level, err := h.service.PostDelivery(r.Context(), DeliveryInput{
			LocationID: req.LocationID, ItemID: req.ItemID, Quantity: qty, UnitCost: cost, Note: req.Note, ActorID: actor.ID,
		})
		h.respondLevel(w, level, err)
	case "ISSUE":
		level, err := h.service.PostIssue(r.Context(), IssueInput{
			LocationID: req.LocationID, ItemID: req.ItemID, Quantity: qty, Note: req.Note, ActorID: actor.ID,
		})
		h.respondLevel(w, level, err)
	case "ADJUSTMENT":
		level, err := h.service.PostAdjustment(r.Context(), AdjustmentInput{
			LocationID: req.LocationID, ItemID: req.ItemID, Quantity: qty, UnitCost: cost, Note: req.Note, ActorID: actor.ID,
		})
		h.respondLevel(w, level, err)
	case "TRANSFER":
		if req.FromLocationID == 0 || req.ToLocationID == 0 {
			httpx.Error(w, http.StatusBadRequest, "VALIDATION_FAILED", "from_location_id and to_location_id required for transfers")
			return
		}
		out, in, err := h.service.PostTransfer(r.Context(), TransferInput{
			FromLocationID: req.FromLocationID, ToLocationID: req.ToLocationID, ItemID: req.ItemID, Quantity: qty, Note: req.Note, ActorID: actor.ID,
		})
		if err != nil {
			h.respondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusCreated, map[string]any{"out": out, "in": in})
	}
}

func (h *Handler) respondLevel(w http.ResponseWriter, level Level, err error) {
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, level)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidQuantity), errors.Is(err, ErrInvalidUnitCost):
		httpx.Error(w, http.StatusBadRequest, "VALIDATION_FAILED", err.Error())
	case errors.Is(err, ErrNegativeStock):
		httpx.Error(w, http.StatusConflict, "INSUFFICIENT_STOCK", err.Error())
	case errors.Is(err, periods.ErrNoOpenPeriod):
		httpx.Error(w, http.StatusConflict, "NO_OPEN_PERIOD", err.Error())
	default:
		h.logger.Error("post movement", slog.Any("error", err))
		httpx.Internal(w)
	}
}
