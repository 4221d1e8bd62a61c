// Package reference proxies the authority's PDI reference-data endpoints
// so the frontend never needs the authority token.
package reference

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ahmedwadee/fbrflow/internal/fbr"
)

type Handler struct {
	client *fbr.Client
}

func NewHandler(client *fbr.Client) *Handler {
	return &Handler{client: client}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/provinces", h.provinces)
	r.Get("/hs-codes", h.hsCodes)
	r.Get("/uom", h.unitsOfMeasure)
	r.Get("/transaction-types", h.transactionTypes)
	r.Get("/hs-codes/{code}/uom", h.hsUoM)
}

func (h *Handler) provinces(w http.ResponseWriter, r *http.Request) {
	list, err := h.client.Provinces(r.Context())
	writeList(w, list, err)
}

func (h *Handler) hsCodes(w http.ResponseWriter, r *http.Request) {
	list, err := h.client.HSCodes(r.Context())
	writeList(w, list, err)
}

func (h *Handler) unitsOfMeasure(w http.ResponseWriter, r *http.Request) {
	list, err := h.client.UnitsOfMeasure(r.Context())
	writeList(w, list, err)
}

func (h *Handler) transactionTypes(w http.ResponseWriter, r *http.Request) {
	list, err := h.client.TransactionTypes(r.Context())
	writeList(w, list, err)
}

func (h *Handler) hsUoM(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if code == "" {
		http.Error(w, "missing hs code", http.StatusBadRequest)
		return
	}

	list, err := h.client.HSUoM(r.Context(), code)
	writeList(w, list, err)
}

func writeList[T any](w http.ResponseWriter, list []T, err error) {
	if err != nil {
		var terr *fbr.TransportError
		if errors.As(err, &terr) {
			http.Error(w, "authority unreachable: "+terr.Error(), http.StatusBadGateway)
			return
		}

		http.Error(w, "internal error", http.StatusInternalServerError)

		return
	}

	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(list); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
