package locations

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/alkholigroup2020/stock-management-system-sub008/internal/platform/httpx"
	"github.com/alkholigroup2020/stock-management-system-sub008/internal/shared"
)

// Handler wires HTTP endpoints for location master data.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a locations handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers location routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/locations", func(r chi.Router) {
		r.Get("/", h.list)
		r.Group(func(r chi.Router) {
			r.Use(shared.RequireRole(shared.RoleAdmin))
			r.Post("/", h.create)
			r.Patch("/{id}/deactivate", h.deactivate)
		})
	})
}

type createLocationRequest struct {
	Code string `json:"code" validate:"required,max=32"`
	Name string `json:"name" validate:"required,max=128"`
	Kind string `json:"kind" validate:"required,oneof=KITCHEN STORE WAREHOUSE"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") != "false"
	list, err := h.service.List(r.Context(), activeOnly)
	if err != nil {
		h.logger.Error("list locations", slog.Any("error", err))
		httpx.Internal(w)
		return
	}
	if list == nil {
		list = []Location{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"locations": list})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createLocationRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "INVALID_BODY", "request body is not valid JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "VALIDATION_FAILED", err.Error())
		return
	}
	loc, err := h.service.Create(r.Context(), CreateInput{Code: req.Code, Name: req.Name, Kind: Kind(req.Kind)})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, loc)
}

func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Error(w, http.StatusBadRequest, "INVALID_ID", "location id must be a positive integer")
		return
	}
	if err := h.service.Deactivate(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"id": id, "active": false})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Error(w, http.StatusNotFound, "LOCATION_NOT_FOUND", err.Error())
	case errors.Is(err, ErrDuplicateCode):
		httpx.Error(w, http.StatusConflict, "DUPLICATE_CODE", err.Error())
	case errors.Is(err, ErrInvalidKind):
		httpx.Error(w, http.StatusBadRequest, "VALIDATION_FAILED", err.Error())
	default:
		h.logger.Error("locations request", slog.Any("error", err))
		httpx.Internal(w)
	}
}
