package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type customerResponse struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Phone   string          `json:"phone,omitempty"`
	Balance decimal.Decimal `json:"balance"`
}

func (h *Handler) getCustomer(w http.ResponseWriter, r *http.Request) {
	c, err := h.customers.GetByID(r.Context(), chi.URLParam(r, "customerID"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, customerResponse{
		ID:      c.ID,
		Name:    c.Name,
		Phone:   c.Phone,
		Balance: c.Balance,
	})
}
