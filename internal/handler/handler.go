// Package handler exposes the order engine and catalog reads over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/pos-backoffice/internal/domain/customer"
	"github.com/xenking/pos-backoffice/internal/domain/order"
	"github.com/xenking/pos-backoffice/internal/domain/product"
	"github.com/xenking/pos-backoffice/internal/domain/reward"
	"github.com/xenking/pos-backoffice/internal/repository"
)

// OrderService is the order transaction coordinator surface the handler
// delegates to.
type OrderService interface {
	CreateOrder(ctx context.Context, req order.CreateOrderRequest) (*order.Order, error)
	UpdateOrder(ctx context.Context, id string, req order.UpdateOrderRequest) (*order.Order, error)
	DeleteOrder(ctx context.Context, id string) error
	AddLine(ctx context.Context, orderID string, item order.ItemRequest) (*order.Order, error)
	RemoveLine(ctx context.Context, orderID, lineID string) error
	UpdateStatus(ctx context.Context, orderID string, status order.Status) (*order.Order, error)
	Get(ctx context.Context, id string) (*order.Order, error)
	List(ctx context.Context) ([]order.Order, error)
	SearchByCustomerName(ctx context.Context, name string) ([]order.Order, error)
}

// Handler routes API requests to the order service and the read-only
// catalog repositories.
type Handler struct {
	orders    OrderService
	products  product.Repository
	customers customer.Repository
	rewards   reward.Table
}

// New constructs a Handler with the required domain dependencies.
func New(
	orders OrderService,
	products product.Repository,
	customers customer.Repository,
	rewards reward.Table,
) *Handler {
	return &Handler{
		orders:    orders,
		products:  products,
		customers: customers,
		rewards:   rewards,
	}
}

// Routes returns the API route tree.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Route("/orders", func(r chi.Router) {
		r.Post("/", h.createOrder)
		r.Get("/", h.listOrders)
		r.Get("/search", h.searchOrders)
		r.Route("/{orderID}", func(r chi.Router) {
			r.Get("/", h.getOrder)
			r.Patch("/", h.updateOrder)
			r.Delete("/", h.deleteOrder)
			r.Patch("/status", h.updateStatus)
			r.Post("/details", h.addOrderDetail)
			r.Delete("/details/{detailID}", h.removeOrderDetail)
		})
	})

	r.Get("/products", h.listProducts)
	r.Get("/products/{productID}", h.getProduct)
	r.Get("/customers/{customerID}", h.getCustomer)
	r.Get("/config/rewards", h.getRewardTiers)

	return r
}

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Code: status, Message: message})
}

// respondError maps domain errors onto HTTP statuses: missing entities to
// 404, invalid input to 400, business-rule violations to 422, concurrent
// conflicts to 409, and anything else to a generic 500.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		qtyErr   *order.InvalidQuantityError
		stockErr *order.InsufficientStockError
		balErr   *order.InsufficientBalanceError
	)

	switch {
	case errors.Is(err, order.ErrNotFound),
		errors.Is(err, order.ErrLineNotFound),
		errors.Is(err, product.ErrNotFound),
		errors.Is(err, customer.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())

	case errors.Is(err, order.ErrEmptyItems),
		errors.Is(err, order.ErrCashierRequired),
		errors.Is(err, order.ErrNegativeDiscount),
		errors.Is(err, order.ErrInvalidStatus),
		errors.As(err, &qtyErr):
		writeError(w, http.StatusBadRequest, err.Error())

	case errors.Is(err, order.ErrDiscountRequiresCustomer),
		errors.Is(err, order.ErrLastLine),
		errors.As(err, &stockErr),
		errors.As(err, &balErr):
		writeError(w, http.StatusUnprocessableEntity, err.Error())

	case errors.Is(err, repository.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())

	default:
		zctx.From(r.Context()).Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
