package documents

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/maanisingh/Accounting-software-sub001/internal/guard"
	"github.com/maanisingh/Accounting-software-sub001/internal/lifecycle"
	"github.com/maanisingh/Accounting-software-sub001/internal/platform/httpx"
	"github.com/maanisingh/Accounting-software-sub001/internal/shared"
)

// Handler exposes document endpoints for both flows.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds the handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountSales registers the sales flow under the caller's prefix.
func (h *Handler) MountSales(r chi.Router) {
	r.Post("/quotations", h.createQuotation)
	r.Post("/quotations/{id}/convert", h.convertQuotation)
	r.Post("/orders", h.createOrder(guard.FlowSales))
	r.Post("/orders/{id}/deliveries", h.fulfil(guard.FlowSales))
	r.Post("/orders/{id}/invoice", h.bill(guard.FlowSales))
	r.Post("/invoices", h.createBilling(guard.FlowSales))
	r.Post("/returns", h.createReturn(guard.FlowSales))
}

// MountPurchases registers the purchase flow under the caller's prefix.
func (h *Handler) MountPurchases(r chi.Router) {
	r.Post("/orders", h.createOrder(guard.FlowPurchase))
	r.Post("/orders/{id}/receipts", h.fulfil(guard.FlowPurchase))
	r.Post("/orders/{id}/bill", h.bill(guard.FlowPurchase))
	r.Post("/bills", h.createBilling(guard.FlowPurchase))
	r.Post("/returns", h.createReturn(guard.FlowPurchase))
}

// MountDocuments registers the kind independent endpoints.
func (h *Handler) MountDocuments(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
	r.Post("/{id}/status", h.transition)
	r.Delete("/{id}", h.delete)
}

func (h *Handler) createQuotation(w http.ResponseWriter, r *http.Request) {
	actor, ok := httpx.Actor(w, r)
	if !ok {
		return
	}
	var req DocumentRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	doc, err := h.service.CreateQuotation(r.Context(), actor, req)
	h.respond(w, http.StatusCreated, doc, err)
}

func (h *Handler) createOrder(flow guard.Flow) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := httpx.Actor(w, r)
		if !ok {
			return
		}
		var req DocumentRequest
		if err := httpx.Decode(r, &req); err != nil {
			httpx.RespondError(w, err)
			return
		}
		doc, err := h.service.CreateOrder(r.Context(), actor, flow, req)
		h.respond(w, http.StatusCreated, doc, err)
	}
}

func (h *Handler) createBilling(flow guard.Flow) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := httpx.Actor(w, r)
		if !ok {
			return
		}
		var req DocumentRequest
		if err := httpx.Decode(r, &req); err != nil {
			httpx.RespondError(w, err)
			return
		}
		doc, err := h.service.CreateBilling(r.Context(), actor, flow, req)
		h.respond(w, http.StatusCreated, doc, err)
	}
}

func (h *Handler) createReturn(flow guard.Flow) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := httpx.Actor(w, r)
		if !ok {
			return
		}
		var req ReturnRequest
		if err := httpx.Decode(r, &req); err != nil {
			httpx.RespondError(w, err)
			return
		}
		doc, err := h.service.CreateReturn(r.Context(), actor, flow, req)
		h.respond(w, http.StatusCreated, doc, err)
	}
}

func (h *Handler) convertQuotation(w http.ResponseWriter, r *http.Request) {
	actor, ok := httpx.Actor(w, r)
	if !ok {
		return
	}
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	doc, err := h.service.ConvertQuotationToOrder(r.Context(), actor, id)
	h.respond(w, http.StatusCreated, doc, err)
}

// fulfil serves both deliveries and receipts; the order kind decides which.
func (h *Handler) fulfil(flow guard.Flow) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := httpx.Actor(w, r)
		if !ok {
			return
		}
		id, err := h.orderOnFlow(r, actor.CompanyID, flow)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		var req FulfilmentRequest
		if r.ContentLength != 0 {
			if err := httpx.Decode(r, &req); err != nil {
				httpx.RespondError(w, err)
				return
			}
		}
		doc, err := h.service.CreateFulfillment(r.Context(), actor, id, req)
		h.respond(w, http.StatusCreated, doc, err)
	}
}

func (h *Handler) bill(flow guard.Flow) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := httpx.Actor(w, r)
		if !ok {
			return
		}
		id, err := h.orderOnFlow(r, actor.CompanyID, flow)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		var req BillingRequest
		if r.ContentLength != 0 {
			if err := httpx.Decode(r, &req); err != nil {
				httpx.RespondError(w, err)
				return
			}
		}
		doc, err := h.service.ConvertOrderToBilling(r.Context(), actor, id, req)
		h.respond(w, http.StatusCreated, doc, err)
	}
}

// orderOnFlow resolves the {id} parameter and rejects documents of the other flow.
func (h *Handler) orderOnFlow(r *http.Request, companyID int64, flow guard.Flow) (int64, error) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		return 0, err
	}
	doc, err := h.service.Get(r.Context(), companyID, id)
	if err != nil {
		return 0, err
	}
	if doc.Kind.Flow() != flow {
		return 0, shared.NewValidationError(fmt.Sprintf("document %s is not a %s document", doc.Number, flow), "id", "flow")
	}
	return id, nil
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor, ok := httpx.Actor(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	filters := ListFilters{CompanyID: actor.CompanyID}
	if raw := q.Get("kind"); raw != "" {
		kind, err := ParseKind(strings.ToUpper(raw))
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		filters.Kind = kind
	}
	if raw := q.Get("status"); raw != "" {
		status, err := lifecycle.ParseStatus(strings.ToUpper(raw))
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		filters.Status = status
	}
	filters.PartyID, _ = strconv.ParseInt(q.Get("party_id"), 10, 64)
	filters.SourceID, _ = strconv.ParseInt(q.Get("source_id"), 10, 64)
	filters.Limit, _ = strconv.Atoi(q.Get("limit"))
	filters.Offset, _ = strconv.Atoi(q.Get("offset"))
	docs, err := h.service.List(r.Context(), filters)
	if err != nil {
		h.logger.Error("list documents", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if docs == nil {
		docs = []Document{}
	}
	httpx.JSON(w, http.StatusOK, docs)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	actor, ok := httpx.Actor(w, r)
	if !ok {
		return
	}
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	doc, err := h.service.Get(r.Context(), actor.CompanyID, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, doc)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	actor, ok := httpx.Actor(w, r)
	if !ok {
		return
	}
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req DocumentRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	doc, err := h.service.UpdateDocument(r.Context(), actor, id, req)
	h.respond(w, http.StatusOK, doc, err)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request) {
	actor, ok := httpx.Actor(w, r)
	if !ok {
		return
	}
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req TransitionRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	doc, err := h.service.Transition(r.Context(), actor, id, req.Status)
	h.respond(w, http.StatusOK, doc, err)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := httpx.Actor(w, r)
	if !ok {
		return
	}
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteDocument(r.Context(), actor, id); err != nil {
		h.logger.Warn("delete rejected", slog.Int64("id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respond(w http.ResponseWriter, status int, doc Document, err error) {
	if err != nil {
		h.logger.Warn("document rejected", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, status, doc)
}
