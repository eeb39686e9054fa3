package inventory

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/maanisingh/Accounting-software-sub001/internal/platform/httpx"
	"github.com/maanisingh/Accounting-software-sub001/internal/shared"
)

// ReconcileEnqueuer schedules an asynchronous reconciliation run.
type ReconcileEnqueuer interface {
	EnqueueStockReconcile(ctx context.Context, companyID int64) (string, error)
}

// Handler wires HTTP endpoints for inventory module.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	enqueuer ReconcileEnqueuer
}

// NewHandler constructs inventory handler. enqueuer may be nil.
func NewHandler(logger *slog.Logger, service *Service, enqueuer ReconcileEnqueuer) *Handler {
	return &Handler{logger: logger, service: service, enqueuer: enqueuer}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/stock", h.listStock)
	r.Get("/stock/{productID}/{warehouseID}", h.getStock)
	r.Get("/stock-card", h.stockCard)
	r.Post("/adjustments", h.adjust)
	r.Post("/transfers", h.transfer)
	r.Get("/reconcile", h.reconcile)
	r.Post("/reconcile", h.enqueueReconcile)
}

func (h *Handler) listStock(w http.ResponseWriter, r *http.Request) {
	actor, ok := httpx.Actor(w, r)
	if !ok {
		return
	}
	productID, _ := strconv.ParseInt(r.URL.Query().Get("product_id"), 10, 64)
	stock, err := h.service.ListStock(r.Context(), actor.CompanyID, productID)
	if err != nil {
		h.logger.Error("list stock", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, stock)
}

func (h *Handler) getStock(w http.ResponseWriter, r *http.Request) {
	actor, ok := httpx.Actor(w, r)
	if !ok {
		return
	}
	productID, err := httpx.IDParam(r, "productID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	warehouseID, err := httpx.IDParam(r, "warehouseID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	stock, err := h.service.GetStock(r.Context(), actor.CompanyID, productID, warehouseID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, stock)
}

func parseDate(field, raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, shared.NewValidationError("invalid date", field, "format 2006-01-02")
	}
	return t, nil
}

func (h *Handler) stockCard(w http.ResponseWriter, r *http.Request) {
	actor, ok := httpx.Actor(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	filter := StockCardFilter{CompanyID: actor.CompanyID}
	filter.ProductID, _ = strconv.ParseInt(q.Get("product_id"), 10, 64)
	filter.WarehouseID, _ = strconv.ParseInt(q.Get("warehouse_id"), 10, 64)
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))
	var err error
	if filter.From, err = parseDate("from", q.Get("from")); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if filter.To, err = parseDate("to", q.Get("to")); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if !filter.To.IsZero() {
		filter.To = filter.To.Add(24*time.Hour - time.Nanosecond)
	}
	entries, err := h.service.StockCard(r.Context(), filter)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entries)
}

func (h *Handler) adjust(w http.ResponseWriter, r *http.Request) {
	actor, ok := httpx.Actor(w, r)
	if !ok {
		return
	}
	var input AdjustmentInput
	if err := httpx.Decode(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	movement, err := h.service.Adjust(r.Context(), actor, input)
	if err != nil {
		h.logger.Warn("adjustment rejected", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, movement)
}

func (h *Handler) transfer(w http.ResponseWriter, r *http.Request) {
	actor, ok := httpx.Actor(w, r)
	if !ok {
		return
	}
	var input TransferInput
	if err := httpx.Decode(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	out, in, err := h.service.Transfer(r.Context(), actor, input)
	if err != nil {
		h.logger.Warn("transfer rejected", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]Movement{"out": out, "in": in})
}

func (h *Handler) reconcile(w http.ResponseWriter, r *http.Request) {
	actor, ok := httpx.Actor(w, r)
	if !ok {
		return
	}
	drifts, err := h.service.Reconcile(r.Context(), actor.CompanyID)
	if err != nil {
		h.logger.Error("reconcile", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if drifts == nil {
		drifts = []Drift{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"company_id": actor.CompanyID, "drift": drifts})
}

func (h *Handler) enqueueReconcile(w http.ResponseWriter, r *http.Request) {
	actor, ok := httpx.Actor(w, r)
	if !ok {
		return
	}
	if h.enqueuer == nil {
		httpx.Problem(w, http.StatusServiceUnavailable, "Service Unavailable", "background worker not configured")
		return
	}
	taskID, err := h.enqueuer.EnqueueStockReconcile(r.Context(), actor.CompanyID)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		h.logger.Error("enqueue reconcile", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusAccepted, map[string]string{"task_id": taskID})
}
