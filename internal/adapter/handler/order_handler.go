package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shopworks/fulfillment/internal/core/service"
	"github.com/shopworks/fulfillment/internal/event"
)

type OrderHandler struct {
	orderService *service.OrderService
}

type OrderHTTPRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	UserID    string `json:"userId"`
}

type OrderHTTPResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func NewOrderHandler(orderService *service.OrderService) *OrderHandler {
	return &OrderHandler{orderService: orderService}
}

func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req OrderHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, OrderHTTPResponse{
			Success: false,
			Message: "invalid request body",
		})
		return
	}

	err := h.orderService.Submit(r.Context(), event.OrderCreated{
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
		UserID:    req.UserID,
	})
	if err != nil {
		if errors.Is(err, service.ErrInvalidOrder) {
			writeJSON(w, http.StatusBadRequest, OrderHTTPResponse{
				Success: false,
				Message: err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusServiceUnavailable, OrderHTTPResponse{
			Success: false,
			Message: "could not accept order",
		})
		return
	}

	writeJSON(w, http.StatusAccepted, OrderHTTPResponse{
		Success: true,
		Message: "order accepted",
	})
}

func (h *OrderHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
