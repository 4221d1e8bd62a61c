package invoice

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ahmedwadee/fbrflow/internal/invoice"
	"github.com/ahmedwadee/fbrflow/internal/payload"
	"github.com/ahmedwadee/fbrflow/internal/queue"
)

type Handler struct {
	svc      *invoice.Service
	queueSvc *queue.Service
	builder  *payload.Builder
	seller   invoice.Party
}

func NewHandler(svc *invoice.Service, queueSvc *queue.Service, builder *payload.Builder, seller invoice.Party) *Handler {
	return &Handler{
		svc:      svc,
		queueSvc: queueSvc,
		builder:  builder,
		seller:   seller,
	}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Patch("/{id}", h.update)
	r.Delete("/{id}", h.delete)
	r.Post("/{id}/submit", h.submit)
}

type createInvoiceRequest struct {
	InvoiceNumber string            `json:"invoice_number"`
	Type          invoice.Type      `json:"type"`
	PostingDate   time.Time         `json:"posting_date"`
	Seller        *partyRequest     `json:"seller,omitempty"`
	Buyer         partyRequest      `json:"buyer"`
	Items         []lineItemRequest `json:"items"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if req.Type == "" {
		req.Type = invoice.TypeSaleInvoice
	}

	// The configured seller applies unless the request overrides it.
	seller := h.seller
	if req.Seller != nil {
		seller = req.Seller.toParty()
	}

	inv, err := h.svc.Create(r.Context(), invoice.CreateParams{
		InvoiceNumber: req.InvoiceNumber,
		Type:          req.Type,
		PostingDate:   req.PostingDate,
		Seller:        seller,
		Buyer:         req.Buyer.toParty(),
		Items:         toItemParams(req.Items),
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)

	if err := json.NewEncoder(w).Encode(toResponse(inv)); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filter := invoice.ListFilter{}

	if s := r.URL.Query().Get("status"); s != "" {
		status := invoice.Status(s)
		filter.Status = &status
	}

	if s := r.URL.Query().Get("start_date"); s != "" {
		if t, err := time.Parse(time.DateOnly, s); err == nil {
			filter.StartDate = &t
		}
	}

	if s := r.URL.Query().Get("end_date"); s != "" {
		if t, err := time.Parse(time.DateOnly, s); err == nil {
			filter.EndDate = &t
		}
	}

	invs, err := h.svc.List(r.Context(), filter)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(toResponseList(invs)); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	inv, err := h.svc.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, invoice.ErrNotFound) {
			http.Error(w, "invoice not found", http.StatusNotFound)
			return
		}

		http.Error(w, "internal error", http.StatusInternalServerError)

		return
	}

	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(toResponse(inv)); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

type updateInvoiceRequest struct {
	InvoiceNumber *string           `json:"invoice_number,omitempty"`
	Type          *invoice.Type     `json:"type,omitempty"`
	PostingDate   *time.Time        `json:"posting_date,omitempty"`
	Seller        *partyRequest     `json:"seller,omitempty"`
	Buyer         *partyRequest     `json:"buyer,omitempty"`
	Items         []lineItemRequest `json:"items,omitempty"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	var req updateInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	params := invoice.UpdateParams{
		InvoiceNumber: req.InvoiceNumber,
		Type:          req.Type,
		PostingDate:   req.PostingDate,
	}

	if req.Seller != nil {
		seller := req.Seller.toParty()
		params.Seller = &seller
	}

	if req.Buyer != nil {
		buyer := req.Buyer.toParty()
		params.Buyer = &buyer
	}

	if req.Items != nil {
		params.Items = toItemParams(req.Items)
	}

	inv, err := h.svc.Update(r.Context(), id, params)
	if err != nil {
		switch {
		case errors.Is(err, invoice.ErrNotFound):
			http.Error(w, "invoice not found", http.StatusNotFound)
		case errors.Is(err, invoice.ErrImmutable):
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			http.Error(w, "internal error", http.StatusInternalServerError)
		}

		return
	}

	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(toResponse(inv)); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, invoice.ErrNotFound):
			http.Error(w, "invoice not found", http.StatusNotFound)
		case errors.Is(err, invoice.ErrImmutable):
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			http.Error(w, "internal error", http.StatusInternalServerError)
		}

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type submitResponse struct {
	EntryID   uuid.UUID    `json:"entry_id"`
	InvoiceID uuid.UUID    `json:"invoice_id"`
	Status    queue.Status `json:"status"`
}

type validationErrorResponse struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// submit validates the invoice and puts it on the submission queue. The
// actual authority call happens asynchronously in the worker.
func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	inv, err := h.svc.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, invoice.ErrNotFound) {
			http.Error(w, "invoice not found", http.StatusNotFound)
			return
		}

		http.Error(w, "internal error", http.StatusInternalServerError)

		return
	}

	// Reject structurally invalid invoices up front instead of letting
	// them fail in the worker.
	if _, err := h.builder.Build(r.Context(), inv); err != nil {
		var verr *payload.ValidationError
		if errors.As(err, &verr) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnprocessableEntity)

			if err := json.NewEncoder(w).Encode(validationErrorResponse{
				Field:  verr.Field,
				Reason: verr.Reason,
			}); err != nil {
				slog.Error("failed to encode response", "error", err)
			}

			return
		}

		http.Error(w, "internal error", http.StatusInternalServerError)

		return
	}

	entry, err := h.queueSvc.Enqueue(r.Context(), id)
	if err != nil {
		if errors.Is(err, queue.ErrDuplicate) {
			http.Error(w, "invoice already has an active queue entry", http.StatusConflict)
			return
		}

		http.Error(w, "internal error", http.StatusInternalServerError)

		return
	}

	if err := h.svc.MarkQueued(r.Context(), id); err != nil {
		slog.Error("marking invoice queued", "invoice_id", id, "error", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)

	if err := json.NewEncoder(w).Encode(submitResponse{
		EntryID:   entry.ID,
		InvoiceID: id,
		Status:    entry.Status,
	}); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
