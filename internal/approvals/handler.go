package approvals

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/alkholigroup2020/stock-management-system-sub008/internal/platform/httpx"
	"github.com/alkholigroup2020/stock-management-system-sub008/internal/shared"
)

// ErrorResponder lets entity packages translate their own domain
// errors into HTTP responses. It reports whether it handled the error.
type ErrorResponder func(w http.ResponseWriter, err error) bool

type Handler struct {
	logger     *slog.Logger
	service    *Service
	responders []ErrorResponder
}

func NewHandler(logger *slog.Logger, service *Service, responders ...ErrorResponder) *Handler {
	return &Handler{logger: logger, service: service, responders: responders}
}

// MountRoutes registers the approval inbox routes. Decisions require
// the admin role.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/approvals", func(r chi.Router) {
		r.With(shared.RequireRole(shared.RoleSupervisor)).Get("/", h.list)
		r.With(shared.RequireRole(shared.RoleSupervisor)).Get("/{approvalID}", h.get)
		r.With(shared.RequireRole(shared.RoleAdmin)).Patch("/{approvalID}/approve", h.approve)
		r.With(shared.RequireRole(shared.RoleAdmin)).Patch("/{approvalID}/reject", h.reject)
	})
}

type decisionRequest struct {
	Comments string `json:"comments"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	list, err := h.service.List(r.Context(), r.URL.Query().Get("status"), limit)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"approvals": list})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := approvalID(w, r)
	if !ok {
		return
	}
	a, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, a)
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	id, ok := approvalID(w, r)
	if !ok {
		return
	}
	var req decisionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil && !errors.Is(err, httpx.ErrEmptyBody) {
		httpx.Error(w, http.StatusBadRequest, "INVALID_BODY", "request body is not valid JSON")
		return
	}
	result, err := h.service.Approve(r.Context(), id, shared.ActorFromContext(r.Context()), req.Comments)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"approval_id": id, "status": StatusApproved, "result": result})
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	id, ok := approvalID(w, r)
	if !ok {
		return
	}
	var req decisionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil && !errors.Is(err, httpx.ErrEmptyBody) {
		httpx.Error(w, http.StatusBadRequest, "INVALID_BODY", "request body is not valid JSON")
		return
	}
	if err := h.service.Reject(r.Context(), id, shared.ActorFromContext(r.Context()), req.Comments); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"approval_id": id, "status": StatusRejected})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Error(w, http.StatusNotFound, "NOT_FOUND", "approval not found")
	case errors.Is(err, ErrAlreadyProcessed):
		httpx.Error(w, http.StatusConflict, "APPROVAL_ALREADY_PROCESSED", err.Error())
	case errors.Is(err, ErrUnsupportedEntityType):
		httpx.Error(w, http.StatusUnprocessableEntity, "UNSUPPORTED_ENTITY_TYPE", err.Error())
	default:
		for _, respond := range h.responders {
			if respond(w, err) {
				return
			}
		}
		h.logger.Error("approvals", slog.Any("error", err))
		httpx.Internal(w)
	}
}

func approvalID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "approvalID"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Error(w, http.StatusBadRequest, "INVALID_ID", "invalid approval id")
		return 0, false
	}
	return id, true
}
