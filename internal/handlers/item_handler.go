package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/kamenolom/transport-service/internal/auth"
	"github.com/kamenolom/transport-service/internal/services"
	"github.com/kamenolom/transport-service/internal/utils"
)

// ItemHandler handles HTTP requests for delivery evidence.
type ItemHandler struct {
	Service *services.FulfillmentService
	Logger  *log.Logger
	Timeout time.Duration
}

// NewItemHandler creates a new ItemHandler instance.
func NewItemHandler(service *services.FulfillmentService, logger *log.Logger, timeout time.Duration) *ItemHandler {
	return &ItemHandler{
		Service: service,
		Logger:  logger,
		Timeout: timeout,
	}
}

// GetItem returns one delivery item with its link state.
func (h *ItemHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		utils.SendErrorResponse(w, http.StatusBadRequest, "invalid method, only GET is allowed")
		return
	}
	actor, ok := auth.CurrentUser(r.Context())
	if !ok {
		utils.SendErrorResponse(w, http.StatusUnauthorized, "authentication required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	itemID := r.PathValue("itemId")
	item, err := h.Service.GetItem(ctx, actor, itemID)
	if err != nil {
		h.Logger.Println(err)
		utils.SendDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err = json.NewEncoder(w).Encode(item); err != nil {
		h.Logger.Println(err)
	}
}

// ApproveItem approves a weighbridge document and links it to the matching
// claim when the registration identifies exactly one.
func (h *ItemHandler) ApproveItem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		utils.SendErrorResponse(w, http.StatusBadRequest, "invalid method, only POST is allowed")
		return
	}
	actor, ok := auth.CurrentUser(r.Context())
	if !ok {
		utils.SendErrorResponse(w, http.StatusUnauthorized, "authentication required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	itemID := r.PathValue("itemId")
	item, err := h.Service.ApproveItem(ctx, actor, itemID)
	if err != nil {
		h.Logger.Println(err)
		utils.SendDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err = json.NewEncoder(w).Encode(item); err != nil {
		h.Logger.Println(err)
	}
}
