package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/kamenolom/transport-service/internal/models"
)

// SendErrorResponse sends an error as JSON.
func SendErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	errorResponse := models.ErrorResponse{
		StatusCode: statusCode,
		Message:    message,
	}
	if err := json.NewEncoder(w).Encode(errorResponse); err != nil {
		log.Println(err)
	}
}

// SendDomainError maps a service error to its HTTP status. Unknown errors
// are infrastructure failures and come back as an opaque 500.
func SendDomainError(w http.ResponseWriter, err error) {
	var errorResponse *models.ErrorResponse
	if errors.As(err, &errorResponse) {
		SendErrorResponse(w, errorResponse.StatusCode, errorResponse.Message)
		return
	}

	switch {
	case errors.Is(err, models.ErrNotFound):
		SendErrorResponse(w, http.StatusNotFound, err.Error())
	case errors.Is(err, models.ErrForbidden):
		SendErrorResponse(w, http.StatusForbidden, err.Error())
	case errors.Is(err, models.ErrInvalidCount):
		SendErrorResponse(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrCapacityExceeded),
		errors.Is(err, models.ErrRequestClosed),
		errors.Is(err, models.ErrAlreadyReviewed),
		errors.Is(err, models.ErrAmbiguousLink),
		errors.Is(err, models.ErrConflict):
		SendErrorResponse(w, http.StatusConflict, err.Error())
	default:
		SendErrorResponse(w, http.StatusInternalServerError, "internal server error")
	}
}

// ParseLimitOffset handles limit and offset query parameters.
func ParseLimitOffset(limitStr, offsetStr string) (int, int, error) {
	var limit, offset int
	var err error

	if limitStr != "" {
		limit, err = strconv.Atoi(limitStr)
		if err != nil || limit <= 0 || limit > 50 {
			return 0, 0, fmt.Errorf("invalid limit parameter, must be a positive integer [0:50]")
		}
	} else {
		limit = 5
	}

	if offsetStr != "" {
		offset, err = strconv.Atoi(offsetStr)
		if err != nil || offset < 0 {
			return 0, 0, fmt.Errorf("invalid offset parameter, must be a non-negative integer")
		}
	} else {
		offset = 0
	}

	return limit, offset, nil
}

// ContainsRequestStatus checks a request status transition.
func ContainsRequestStatus(validTransitions []models.RequestStatus, newStatus models.RequestStatus) bool {
	for _, validStatus := range validTransitions {
		if validStatus == newStatus {
			return true
		}
	}
	return false
}
