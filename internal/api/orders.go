package api

import (
	"errors"
	"net/http"

	"github.com/freshmart/grocery-store/internal/models"
	"github.com/freshmart/grocery-store/internal/services"
)

// CreateOrderHandler handles POST /api/orders
func (a *App) CreateOrderHandler(w http.ResponseWriter, r *http.Request) {
	req, err := decodePlaceOrder(w, r)
	if err != nil {
		fail(w, "Failed to create order", err)
		return
	}

	order, err := a.orders.PlaceOrder(r.Context(), req)
	if err != nil {
		fail(w, "Failed to create order", err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Order created successfully",
		"order":   toOrder(*order),
	})
}

// ListOrdersHandler handles GET /api/orders
func (a *App) ListOrdersHandler(w http.ResponseWriter, r *http.Request) {
	orders, err := a.orders.ListOrders(r.Context())
	if err != nil {
		fail(w, "Failed to fetch orders", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrders(orders))
}

// SellerOrdersHandler handles GET /api/orders/seller
func (a *App) SellerOrdersHandler(w http.ResponseWriter, r *http.Request) {
	orders, err := a.orders.SellerOrders(r.Context())
	if err != nil {
		fail(w, "Failed to fetch orders", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrders(orders))
}

// GetOrderHandler handles GET /api/orders/{id}
func (a *App) GetOrderHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid order ID", nil)
		return
	}

	order, err := a.orders.GetOrder(r.Context(), id)
	if errors.Is(err, services.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Order not found", nil)
		return
	}
	if err != nil {
		fail(w, "Failed to fetch order", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrder(*order))
}

// UpdateOrderStatusHandler handles PUT/PATCH /api/orders/{id}. Only the
// status field is read.
func (a *App) UpdateOrderStatusHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid order ID", nil)
		return
	}

	var req models.UpdateOrderStatusRequest
	if isForm(r) {
		if err := parseForm(r); err != nil {
			fail(w, "Invalid request body", err)
			return
		}
		req.Status = r.PostFormValue("status")
	} else if err := decodeJSON(w, r, &req); err != nil {
		fail(w, "Invalid request body", err)
		return
	}

	order, err := a.orders.UpdateStatus(r.Context(), id, req.Status)
	if errors.Is(err, services.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Order not found", nil)
		return
	}
	if err != nil {
		fail(w, "Failed to update order", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrder(*order))
}
