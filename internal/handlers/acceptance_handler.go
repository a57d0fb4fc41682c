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

// AcceptanceHandler handles HTTP requests for driver claims.
type AcceptanceHandler struct {
	Service *services.AcceptanceService
	Logger  *log.Logger
	Timeout time.Duration
}

// NewAcceptanceHandler creates a new AcceptanceHandler instance.
func NewAcceptanceHandler(service *services.AcceptanceService, logger *log.Logger, timeout time.Duration) *AcceptanceHandler {
	return &AcceptanceHandler{
		Service: service,
		Logger:  logger,
		Timeout: timeout,
	}
}

func (h *AcceptanceHandler) actor(w http.ResponseWriter, r *http.Request) (models.User, bool) {
	user, ok := auth.CurrentUser(r.Context())
	if !ok {
		utils.SendErrorResponse(w, http.StatusUnauthorized, "authentication required")
	}
	return user, ok
}

// CreateAcceptance handles a driver claiming slots on a request.
func (h *AcceptanceHandler) CreateAcceptance(w http.ResponseWriter, r *http.Request) {
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

	requestID := r.PathValue("requestId")

	var input models.AcceptanceInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	acceptance, err := h.Service.Reserve(ctx, actor, requestID, input)
	if err != nil {
		h.Logger.Println(err)
		utils.SendDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err = json.NewEncoder(w).Encode(acceptance); err != nil {
		h.Logger.Println(err)
	}
}

// GetMyAcceptances handles a driver listing their own claims.
func (h *AcceptanceHandler) GetMyAcceptances(w http.ResponseWriter, r *http.Request) {
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

	summaries, err := h.Service.ListMine(ctx, actor, limitStr, offsetStr)
	if err != nil {
		h.Logger.Println(err)
		utils.SendDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err = json.NewEncoder(w).Encode(summaries); err != nil {
		h.Logger.Println(err)
	}
}

// GetRequestAcceptances handles an admin listing all claims on a request.
func (h *AcceptanceHandler) GetRequestAcceptances(w http.ResponseWriter, r *http.Request) {
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

	requestID := r.PathValue("requestId")
	summaries, err := h.Service.ListForRequest(ctx, actor, requestID)
	if err != nil {
		h.Logger.Println(err)
		utils.SendDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err = json.NewEncoder(w).Encode(summaries); err != nil {
		h.Logger.Println(err)
	}
}

// ReviewAcceptance handles the admin decision on a pending claim.
func (h *AcceptanceHandler) ReviewAcceptance(w http.ResponseWriter, r *http.Request) {
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

	acceptanceID := r.PathValue("acceptanceId")
	decision := r.URL.Query().Get("decision")

	acceptance, err := h.Service.Review(ctx, actor, acceptanceID, decision)
	if err != nil {
		h.Logger.Println(err)
		utils.SendDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err = json.NewEncoder(w).Encode(acceptance); err != nil {
		h.Logger.Println(err)
	}
}

// MarkPaid handles an admin marking a claim's payout as settled.
func (h *AcceptanceHandler) MarkPaid(w http.ResponseWriter, r *http.Request) {
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

	acceptanceID := r.PathValue("acceptanceId")
	acceptance, err := h.Service.MarkPaid(ctx, actor, acceptanceID)
	if err != nil {
		h.Logger.Println(err)
		utils.SendDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err = json.NewEncoder(w).Encode(acceptance); err != nil {
		h.Logger.Println(err)
	}
}
