package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/xenking/pos-backoffice/internal/domain/order"
)

type orderItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type createOrderRequest struct {
	CustomerID    string             `json:"customer_id,omitempty"`
	CashierID     string             `json:"user_id"`
	PaymentMethod string             `json:"payment_method"`
	Discount      decimal.Decimal    `json:"discount"`
	Items         []orderItemRequest `json:"items"`
}

type updateOrderRequest struct {
	CustomerID    *string            `json:"customer_id,omitempty"`
	PaymentMethod *string            `json:"payment_method,omitempty"`
	Status        *string            `json:"status,omitempty"`
	Discount      *decimal.Decimal   `json:"discount,omitempty"`
	Items         []orderItemRequest `json:"items,omitempty"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

type orderLineResponse struct {
	ID        string          `json:"id"`
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type orderResponse struct {
	ID            string              `json:"id"`
	CustomerID    string              `json:"customer_id,omitempty"`
	UserID        string              `json:"user_id"`
	OrderDate     time.Time           `json:"order_date"`
	Status        string              `json:"status"`
	PaymentMethod string              `json:"payment_method"`
	Total         decimal.Decimal     `json:"total"`
	Discount      decimal.Decimal     `json:"discount"`
	TaxAmount     decimal.Decimal     `json:"tax_amount"`
	GrandTotal    decimal.Decimal     `json:"grand_total"`
	ReceiptNumber string              `json:"receipt_number"`
	Details       []orderLineResponse `json:"details"`
}

func toOrderResponse(o *order.Order) orderResponse {
	details := make([]orderLineResponse, len(o.Lines))
	for i, ln := range o.Lines {
		details[i] = orderLineResponse{
			ID:        ln.ID,
			ProductID: ln.ProductID,
			Quantity:  ln.Quantity,
			Price:     ln.Price,
			Subtotal:  ln.Subtotal,
		}
	}

	return orderResponse{
		ID:            o.ID,
		CustomerID:    o.CustomerID,
		UserID:        o.CashierID,
		OrderDate:     o.OrderDate,
		Status:        string(o.Status),
		PaymentMethod: o.PaymentMethod,
		Total:         o.Total,
		Discount:      o.Discount,
		TaxAmount:     o.TaxAmount,
		GrandTotal:    o.GrandTotal,
		ReceiptNumber: o.ReceiptNumber,
		Details:       details,
	}
}

func toOrderListResponse(orders []order.Order) []orderResponse {
	out := make([]orderResponse, len(orders))
	for i := range orders {
		out[i] = toOrderResponse(&orders[i])
	}

	return out
}

func toItemRequests(items []orderItemRequest) []order.ItemRequest {
	out := make([]order.ItemRequest, len(items))
	for i, it := range items {
		out[i] = order.ItemRequest{ProductID: it.ProductID, Quantity: it.Quantity}
	}

	return out
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	o, err := h.orders.CreateOrder(r.Context(), order.CreateOrderRequest{
		CustomerID:    req.CustomerID,
		CashierID:     req.CashierID,
		PaymentMethod: req.PaymentMethod,
		Discount:      req.Discount,
		Items:         toItemRequests(req.Items),
	})
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toOrderResponse(o))
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.List(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderListResponse(orders))
}

func (h *Handler) searchOrders(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		writeError(w, http.StatusBadRequest, "name query parameter is required")
		return
	}

	orders, err := h.orders.SearchByCustomerName(r.Context(), name)
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderListResponse(orders))
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Get(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) updateOrder(w http.ResponseWriter, r *http.Request) {
	var req updateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	upd := order.UpdateOrderRequest{
		CustomerID:    req.CustomerID,
		PaymentMethod: req.PaymentMethod,
		Discount:      req.Discount,
	}
	if req.Status != nil {
		s := order.Status(*req.Status)
		upd.Status = &s
	}
	if req.Items != nil {
		upd.Items = toItemRequests(req.Items)
	}

	o, err := h.orders.UpdateOrder(r.Context(), chi.URLParam(r, "orderID"), upd)
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	if err := h.orders.DeleteOrder(r.Context(), chi.URLParam(r, "orderID")); err != nil {
		respondError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	o, err := h.orders.UpdateStatus(r.Context(), chi.URLParam(r, "orderID"), order.Status(req.Status))
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) addOrderDetail(w http.ResponseWriter, r *http.Request) {
	var req orderItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	o, err := h.orders.AddLine(r.Context(), chi.URLParam(r, "orderID"), order.ItemRequest{
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) removeOrderDetail(w http.ResponseWriter, r *http.Request) {
	err := h.orders.RemoveLine(r.Context(), chi.URLParam(r, "orderID"), chi.URLParam(r, "detailID"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
