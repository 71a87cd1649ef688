package orders

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/campuseats/canteen/internal/domain"
	"github.com/campuseats/canteen/internal/fulfillment"
)

type Handler struct {
	engine *fulfillment.Engine
	logger *slog.Logger
}

func NewHandler(engine *fulfillment.Engine, logger *slog.Logger) *Handler {
	return &Handler{
		engine: engine,
		logger: logger,
	}
}

type placeOrderItem struct {
	MenuItemID string `json:"menu_item_id"`
	Quantity   int    `json:"quantity"`
}

type placeOrderRequest struct {
	VendorID  string           `json:"vendor_id"`
	StudentID *string          `json:"student_id,omitempty"`
	Items     []placeOrderItem `json:"items"`
}

func (h *Handler) HandlePlace(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	items := make([]fulfillment.PlaceOrderItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, fulfillment.PlaceOrderItem{MenuItemID: item.MenuItemID, Quantity: item.Quantity})
	}

	order, err := h.engine.PlaceOrder(r.Context(), fulfillment.PlaceOrderRequest{
		VendorID:  req.VendorID,
		StudentID: req.StudentID,
		Items:     items,
	})
	if err != nil {
		h.writeEngineError(w, err, "failed to place order")
		return
	}

	h.writeJSON(w, http.StatusCreated, order)
}

type updateStatusRequest struct {
	Status domain.OrderStatus `json:"status"`
}

func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.engine.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		h.writeEngineError(w, err, "failed to update order status")
		return
	}

	h.writeJSON(w, http.StatusOK, order)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	order, err := h.engine.LookupByID(r.Context(), id)
	if err != nil {
		h.writeEngineError(w, err, "failed to get order")
		return
	}

	h.writeJSON(w, http.StatusOK, order)
}

func (h *Handler) HandleLookupToken(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")
	if token == "" {
		h.writeError(w, http.StatusBadRequest, "missing token")
		return
	}

	order, err := h.engine.LookupByToken(r.Context(), token)
	if err != nil {
		h.writeEngineError(w, err, "failed to look up token")
		return
	}

	h.writeJSON(w, http.StatusOK, order)
}

func (h *Handler) HandleVendorOrders(w http.ResponseWriter, r *http.Request) {
	vendorID := r.PathValue("vendorId")
	if vendorID == "" {
		h.writeError(w, http.StatusBadRequest, "missing vendor id")
		return
	}

	orders, err := h.engine.ActiveOrders(r.Context(), vendorID)
	if err != nil {
		h.writeEngineError(w, err, "failed to list vendor orders")
		return
	}

	h.writeJSON(w, http.StatusOK, orders)
}

func (h *Handler) HandleStudentOrders(w http.ResponseWriter, r *http.Request) {
	studentID := r.PathValue("studentId")
	if studentID == "" {
		h.writeError(w, http.StatusBadRequest, "missing student id")
		return
	}

	orders, err := h.engine.StudentOrders(r.Context(), studentID)
	if err != nil {
		h.writeEngineError(w, err, "failed to list student orders")
		return
	}

	h.writeJSON(w, http.StatusOK, orders)
}

func (h *Handler) writeEngineError(w http.ResponseWriter, err error, logMsg string) {
	switch {
	case errors.Is(err, fulfillment.ErrInvalidOrder):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, fulfillment.ErrInvalidTransition):
		h.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, fulfillment.ErrOrderNotFound):
		h.writeError(w, http.StatusNotFound, "order not found")
	case errors.Is(err, fulfillment.ErrUpstream):
		h.logger.Error(logMsg, "error", err)
		h.writeError(w, http.StatusBadGateway, "upstream unavailable")
	default:
		h.logger.Error(logMsg, "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
