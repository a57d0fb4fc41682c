package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/kamenolom/transport-service/internal/auth"
	"github.com/kamenolom/transport-service/internal/models"
	"github.com/kamenolom/transport-service/internal/services"
	"github.com/kamenolom/transport-service/internal/utils"
)

// RequestHandler handles HTTP requests for transport requests.
type RequestHandler struct {
	Service *services.RequestService
	Logger  *log.Logger
	Timeout time.Duration
}

// NewRequestHandler creates a new RequestHandler instance.
func NewRequestHandler(service *services.RequestService, logger *log.Logger, timeout time.Duration) *RequestHandler {
	return &RequestHandler{
		Service: service,
		Logger:  logger,
		Timeout: timeout,
	}
}

func (h *RequestHandler) actor(w http.ResponseWriter, r *http.Request) (models.User, bool) {
	user, ok := auth.CurrentUser(r.Context())
	if !ok {
		utils.SendErrorResponse(w, http.StatusUnauthorized, "authentication required")
	}
	return user, ok
}

// CreateRequest handles requests to create a transport request.
func (h *RequestHandler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		utils.SendErrorResponse(w, http.StatusBadRequest, "invalid method, only POST is allowed")
		return
	}
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	var input models.TransportRequestInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	request, err := h.Service.CreateRequest(ctx, actor, input)
	if err != nil {
		h.Logger.Println(err)
		utils.SendDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err = json.NewEncoder(w).Encode(request); err != nil {
		h.Logger.Println(err)
	}
}

// GetRequests handles requests to list transport requests visible to the caller.
func (h *RequestHandler) GetRequests(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		utils.SendErrorResponse(w, http.StatusBadRequest, "invalid method, only GET is allowed")
		return
	}
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	limitStr := r.URL.Query().Get("limit")
	offsetStr := r.URL.Query().Get("offset")

	requests, err := h.Service.ListRequests(ctx, actor, limitStr, offsetStr)
	if err != nil {
		h.Logger.Println(err)
		utils.SendDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err = json.NewEncoder(w).Encode(requests); err != nil {
		h.Logger.Println(err)
	}
}

// GetRequest handles requests for one transport request with availability.
func (h *RequestHandler) GetRequest(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	requestID := r.PathValue("requestId")
	detail, err := h.Service.GetRequest(ctx, actor, requestID)
	if err != nil {
		h.Logger.Println(err)
		utils.SendDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err = json.NewEncoder(w).Encode(detail); err != nil {
		h.Logger.Println(err)
	}
}

// editResponse carries the updated request plus the advisory warning.
type editResponse struct {
	Request         *models.TransportRequest `json:"request"`
	CapacityWarning *models.CapacityWarning  `json:"capacityWarning,omitempty"`
}

// EditRequest handles admin edits of a transport request.
func (h *RequestHandler) EditRequest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		utils.SendErrorResponse(w, http.StatusBadRequest, "invalid method, only PUT is allowed")
		return
	}
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	requestID := r.PathValue("requestId")

	var updateFields map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&updateFields); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	request, warning, err := h.Service.EditRequest(ctx, actor, requestID, updateFields)
	if err != nil {
		h.Logger.Println(err)
		utils.SendDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err = json.NewEncoder(w).Encode(editResponse{Request: request, CapacityWarning: warning}); err != nil {
		h.Logger.Println(err)
	}
}

// UpdateRequestStatus handles admin status transitions.
func (h *RequestHandler) UpdateRequestStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	requestID := r.PathValue("requestId")
	status := r.URL.Query().Get("status")

	request, err := h.Service.UpdateRequestStatus(ctx, actor, requestID, status)
	if err != nil {
		h.Logger.Println(err)
		utils.SendDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err = json.NewEncoder(w).Encode(request); err != nil {
		h.Logger.Println(err)
	}
}

// DeleteRequest handles admin deletion of a request without acceptances.
func (h *RequestHandler) DeleteRequest(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	requestID := r.PathValue("requestId")
	if err := h.Service.DeleteRequest(ctx, actor, requestID); err != nil {
		h.Logger.Println(err)
		utils.SendDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
