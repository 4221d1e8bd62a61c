package importcsv

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ahmedwadee/fbrflow/internal/importer"
	"github.com/ahmedwadee/fbrflow/internal/invoice"
)

type Handler struct {
	importSvc *importer.Service
}

func NewHandler(importSvc *importer.Service) *Handler {
	return &Handler{importSvc: importSvc}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/csv", h.importCSV)
}

type importedInvoiceDTO struct {
	ID            uuid.UUID      `json:"id"`
	InvoiceNumber string         `json:"invoice_number"`
	PostingDate   time.Time      `json:"posting_date"`
	Buyer         string         `json:"buyer"`
	Items         int            `json:"items"`
	GrandTotal    int64          `json:"grand_total"`
	Status        invoice.Status `json:"status"`
}

type rowErrorDTO struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

type importResponse struct {
	Imported int                  `json:"imported"`
	Invoices []importedInvoiceDTO `json:"invoices"`
	Errors   []rowErrorDTO        `json:"errors,omitempty"`
}

func (h *Handler) importCSV(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		http.Error(w, "failed to parse form: "+err.Error(), http.StatusBadRequest)
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "file field is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	invs, rowErrs, err := h.importSvc.Import(r.Context(), file)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp := importResponse{
		Imported: len(invs),
		Invoices: make([]importedInvoiceDTO, 0, len(invs)),
		Errors:   make([]rowErrorDTO, 0, len(rowErrs)),
	}

	for _, inv := range invs {
		resp.Invoices = append(resp.Invoices, importedInvoiceDTO{
			ID:            inv.ID,
			InvoiceNumber: inv.InvoiceNumber,
			PostingDate:   inv.PostingDate,
			Buyer:         inv.Buyer.BusinessName,
			Items:         len(inv.Items),
			GrandTotal:    inv.GrandTotal,
			Status:        inv.Status,
		})
	}

	for _, re := range rowErrs {
		resp.Errors = append(resp.Errors, rowErrorDTO{Row: re.Row, Reason: re.Reason})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
