package queue

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ahmedwadee/fbrflow/internal/queue"
)

type Handler struct {
	svc *queue.Service
}

func NewHandler(svc *queue.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Delete("/{id}", h.cancel)
	r.Post("/{id}/retry", h.retry)
}

type entryResponse struct {
	ID          uuid.UUID    `json:"id"`
	InvoiceID   uuid.UUID    `json:"invoice_id"`
	Status      queue.Status `json:"status"`
	Attempts    int          `json:"attempts"`
	LastError   string       `json:"last_error,omitempty"`
	Terminal    bool         `json:"terminal"`
	NextRetryAt time.Time    `json:"next_retry_at"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   *time.Time   `json:"updated_at,omitempty"`
}

func toResponse(e *queue.Entry) entryResponse {
	return entryResponse{
		ID:          e.ID,
		InvoiceID:   e.InvoiceID,
		Status:      e.Status,
		Attempts:    e.Attempts,
		LastError:   e.LastError,
		Terminal:    e.Terminal,
		NextRetryAt: e.NextRetryAt,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filter := queue.ListFilter{}

	if s := r.URL.Query().Get("status"); s != "" {
		status := queue.Status(s)
		filter.Status = &status
	}

	if s := r.URL.Query().Get("terminal"); s != "" {
		terminal := s == "true"
		filter.Terminal = &terminal
	}

	entries, err := h.svc.List(r.Context(), filter)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	resp := make([]entryResponse, len(entries))
	for i, e := range entries {
		resp[i] = toResponse(e)
	}

	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	e, err := h.svc.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, queue.ErrNotFound) {
			http.Error(w, "queue entry not found", http.StatusNotFound)
			return
		}

		http.Error(w, "internal error", http.StatusInternalServerError)

		return
	}

	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(toResponse(e)); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	if err := h.svc.Cancel(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, queue.ErrNotFound):
			http.Error(w, "queue entry not found", http.StatusNotFound)
		case errors.Is(err, queue.ErrInFlight):
			http.Error(w, "entry is in flight and cannot be cancelled", http.StatusConflict)
		case errors.Is(err, queue.ErrConflict):
			http.Error(w, "entry is no longer cancellable", http.StatusConflict)
		default:
			http.Error(w, "internal error", http.StatusInternalServerError)
		}

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// retry re-arms a terminally failed entry after the operator fixed the
// underlying problem.
func (h *Handler) retry(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	e, err := h.svc.Retry(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, queue.ErrNotFound):
			http.Error(w, "queue entry not found", http.StatusNotFound)
		case errors.Is(err, queue.ErrConflict):
			http.Error(w, "only terminally failed entries can be retried", http.StatusConflict)
		default:
			http.Error(w, "internal error", http.StatusInternalServerError)
		}

		return
	}

	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(toResponse(e)); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
