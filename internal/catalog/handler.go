package catalog

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/campuseats/canteen/internal/domain"
)

const (
	defaultPrepTimeMinutes = 5
	defaultCategory        = "General"
)

type Handler struct {
	repo   *CatalogRepository
	logger *slog.Logger
}

func NewHandler(repo *CatalogRepository, logger *slog.Logger) *Handler {
	return &Handler{
		repo:   repo,
		logger: logger,
	}
}

func (h *Handler) HandleListVendors(w http.ResponseWriter, r *http.Request) {
	vendors, err := h.repo.ListVendors(r.Context())
	if err != nil {
		h.logger.Error("failed to list vendors", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, vendors)
}

type updateVendorStatusRequest struct {
	Status domain.VendorStatus `json:"status"`
}

func (h *Handler) HandleUpdateVendorStatus(w http.ResponseWriter, r *http.Request) {
	vendorID := r.PathValue("vendorId")
	if vendorID == "" {
		h.writeError(w, http.StatusBadRequest, "missing vendor id")
		return
	}

	var req updateVendorStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !req.Status.Valid() {
		h.writeError(w, http.StatusBadRequest, "status must be open, closed or busy")
		return
	}

	vendor, err := h.repo.UpdateVendorStatus(r.Context(), vendorID, req.Status)
	if err != nil {
		h.logger.Error("failed to update vendor status", "error", err, "vendor_id", vendorID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if vendor == nil {
		h.writeError(w, http.StatusNotFound, "vendor not found")
		return
	}

	h.logger.Info("vendor status updated", "vendor_id", vendorID, "status", vendor.Status)
	h.writeJSON(w, http.StatusOK, vendor)
}

func (h *Handler) HandleVendorMenu(w http.ResponseWriter, r *http.Request) {
	vendorID := r.PathValue("vendorId")
	if vendorID == "" {
		h.writeError(w, http.StatusBadRequest, "missing vendor id")
		return
	}

	items, err := h.repo.MenuForVendor(r.Context(), vendorID)
	if err != nil {
		h.logger.Error("failed to list menu", "error", err, "vendor_id", vendorID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, items)
}

type createMenuItemRequest struct {
	Name            string `json:"name"`
	Price           int64  `json:"price"`
	Category        string `json:"category"`
	PrepTimeMinutes int    `json:"prep_time_minutes"`
	Available       *bool  `json:"available,omitempty"`
}

func (h *Handler) HandleCreateMenuItem(w http.ResponseWriter, r *http.Request) {
	vendorID := r.PathValue("vendorId")
	if vendorID == "" {
		h.writeError(w, http.StatusBadRequest, "missing vendor id")
		return
	}

	var req createMenuItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" || req.Price <= 0 {
		h.writeError(w, http.StatusBadRequest, "name and a positive price are required")
		return
	}
	if req.PrepTimeMinutes < 0 {
		h.writeError(w, http.StatusBadRequest, "prep time must not be negative")
		return
	}

	vendor, err := h.repo.GetVendor(r.Context(), vendorID)
	if err != nil {
		h.logger.Error("failed to load vendor", "error", err, "vendor_id", vendorID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if vendor == nil {
		h.writeError(w, http.StatusNotFound, "vendor not found")
		return
	}

	item := &domain.MenuItem{
		VendorID:        vendorID,
		Name:            req.Name,
		Price:           req.Price,
		Category:        req.Category,
		PrepTimeMinutes: req.PrepTimeMinutes,
		Available:       true,
	}
	if item.Category == "" {
		item.Category = defaultCategory
	}
	if item.PrepTimeMinutes == 0 {
		item.PrepTimeMinutes = defaultPrepTimeMinutes
	}
	if req.Available != nil {
		item.Available = *req.Available
	}

	if err := h.repo.CreateMenuItem(r.Context(), item); err != nil {
		h.logger.Error("failed to create menu item", "error", err, "vendor_id", vendorID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("menu item created", "item_id", item.ID, "vendor_id", vendorID)
	h.writeJSON(w, http.StatusCreated, item)
}

func (h *Handler) HandleGetMenuItem(w http.ResponseWriter, r *http.Request) {
	itemID := r.PathValue("itemId")
	if itemID == "" {
		h.writeError(w, http.StatusBadRequest, "missing item id")
		return
	}

	item, err := h.repo.GetMenuItem(r.Context(), itemID)
	if err != nil {
		h.logger.Error("failed to get menu item", "error", err, "item_id", itemID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if item == nil {
		h.writeError(w, http.StatusNotFound, "menu item not found")
		return
	}

	h.writeJSON(w, http.StatusOK, item)
}

type updateMenuItemRequest struct {
	Price     *int64 `json:"price,omitempty"`
	Available *bool  `json:"available,omitempty"`
}

func (h *Handler) HandleUpdateMenuItem(w http.ResponseWriter, r *http.Request) {
	itemID := r.PathValue("itemId")
	if itemID == "" {
		h.writeError(w, http.StatusBadRequest, "missing item id")
		return
	}

	var req updateMenuItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Price == nil && req.Available == nil {
		h.writeError(w, http.StatusBadRequest, "nothing to update")
		return
	}
	if req.Price != nil && *req.Price <= 0 {
		h.writeError(w, http.StatusBadRequest, "price must be positive")
		return
	}

	item, err := h.repo.UpdateMenuItem(r.Context(), itemID, req.Price, req.Available)
	if err != nil {
		h.logger.Error("failed to update menu item", "error", err, "item_id", itemID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if item == nil {
		h.writeError(w, http.StatusNotFound, "menu item not found")
		return
	}

	h.logger.Info("menu item updated", "item_id", itemID)
	h.writeJSON(w, http.StatusOK, item)
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
