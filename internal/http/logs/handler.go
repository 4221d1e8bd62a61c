package logs

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ahmedwadee/fbrflow/internal/sublog"
)

const defaultLimit = 50

type Handler struct {
	svc *sublog.Service
}

func NewHandler(svc *sublog.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.recent)
	r.Get("/invoice/{id}", h.byInvoice)
}

type recordResponse struct {
	ID               int64           `json:"id"`
	InvoiceID        uuid.UUID       `json:"invoice_id"`
	EntryID          uuid.UUID       `json:"entry_id"`
	FBRInvoiceNumber string          `json:"fbr_invoice_number,omitempty"`
	Outcome          sublog.Outcome  `json:"outcome"`
	Detail           string          `json:"detail,omitempty"`
	RequestPayload   json.RawMessage `json:"request_payload,omitempty"`
	ResponseBody     json.RawMessage `json:"response_body,omitempty"`
	DurationMs       int64           `json:"duration_ms"`
	SubmittedAt      time.Time       `json:"submitted_at"`
}

func toResponseList(recs []*sublog.Record) []recordResponse {
	resp := make([]recordResponse, len(recs))
	for i, rec := range recs {
		resp[i] = recordResponse{
			ID:               rec.ID,
			InvoiceID:        rec.InvoiceID,
			EntryID:          rec.EntryID,
			FBRInvoiceNumber: rec.FBRInvoiceNumber,
			Outcome:          rec.Outcome,
			Detail:           rec.Detail,
			RequestPayload:   rec.RequestPayload,
			ResponseBody:     rec.ResponseBody,
			DurationMs:       rec.Duration.Milliseconds(),
			SubmittedAt:      rec.SubmittedAt,
		}
	}

	return resp
}

func (h *Handler) recent(w http.ResponseWriter, r *http.Request) {
	limit := defaultLimit

	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			limit = n
		}
	}

	recs, err := h.svc.Recent(r.Context(), limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(toResponseList(recs)); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) byInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	recs, err := h.svc.ByInvoice(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(toResponseList(recs)); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
