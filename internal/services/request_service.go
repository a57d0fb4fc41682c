package services

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/kamenolom/transport-service/internal/assignment"
	"github.com/kamenolom/transport-service/internal/events"
	"github.com/kamenolom/transport-service/internal/models"
	"github.com/kamenolom/transport-service/internal/repository"
	"github.com/kamenolom/transport-service/internal/utils"
)

const transportDateLayout = "2006-01-02"

// RequestService owns the transport-request lifecycle.
type RequestService struct {
	Repo        repository.RequestRepository
	Acceptances repository.AcceptanceRepository
	Resolver    *assignment.Resolver
	Dispatcher  events.Dispatcher
}

// NewRequestService creates a new RequestService instance.
func NewRequestService(repo repository.RequestRepository, acceptances repository.AcceptanceRepository, resolver *assignment.Resolver, dispatcher events.Dispatcher) *RequestService {
	return &RequestService{
		Repo:        repo,
		Acceptances: acceptances,
		Resolver:    resolver,
		Dispatcher:  dispatcher,
	}
}

// CreateRequest validates and persists a new standing offer of capacity.
func (s *RequestService) CreateRequest(ctx context.Context, actor models.User, input models.TransportRequestInput) (*models.TransportRequest, error) {
	if !actor.IsAdmin() {
		return nil, models.ErrForbidden
	}
	if !models.ValidQuarry(input.Origin) {
		return nil, models.NewErrorResponse(http.StatusBadRequest, fmt.Sprintf("unknown quarry %q", input.Origin))
	}
	if input.Destination == "" {
		return nil, models.NewErrorResponse(http.StatusBadRequest, "destination is required")
	}
	if input.TruckCapacity < models.MinTruckCapacity || input.TruckCapacity > models.MaxTruckCapacity {
		return nil, fmt.Errorf("%w: truckCapacity must be between %d and %d",
			models.ErrInvalidCount, models.MinTruckCapacity, models.MaxTruckCapacity)
	}
	if input.PayoutPerTon < 0 {
		return nil, models.NewErrorResponse(http.StatusBadRequest, "payoutPerTon must not be negative")
	}
	date, err := time.Parse(transportDateLayout, input.TransportDate)
	if err != nil {
		return nil, models.NewErrorResponse(http.StatusBadRequest, "transportDate must be formatted as YYYY-MM-DD")
	}
	assignedAll, assignedIDs, err := parseAssignedTo(input.AssignedTo)
	if err != nil {
		return nil, err
	}

	request, err := s.Repo.CreateRequest(ctx, models.TransportRequest{
		Origin:        input.Origin,
		Destination:   input.Destination,
		TruckCapacity: input.TruckCapacity,
		TransportDate: date,
		PayoutPerTon:  input.PayoutPerTon,
		AssignedAll:   assignedAll,
		AssignedIDs:   assignedIDs,
		CreatedBy:     actor.ID,
	})
	if err != nil {
		return nil, err
	}

	s.Dispatcher.Publish(ctx, models.EventTransportCreated, models.TransportEvent{
		RequestID: request.ID,
		Status:    request.Status,
	})
	return request, nil
}

// parseAssignedTo splits the payload form (sentinel "All" or explicit ids)
// into the stored representation.
func parseAssignedTo(assignedTo []string) (bool, []string, error) {
	if len(assignedTo) == 1 && assignedTo[0] == models.AssignedToAll {
		return true, nil, nil
	}
	if len(assignedTo) == 0 {
		return false, nil, models.NewErrorResponse(http.StatusBadRequest,
			"assignedTo must be [\"All\"] or a non-empty list of driver or group ids")
	}
	for _, id := range assignedTo {
		if id == models.AssignedToAll {
			return false, nil, models.NewErrorResponse(http.StatusBadRequest,
				"\"All\" cannot be combined with explicit ids")
		}
	}
	return false, assignedTo, nil
}

// ListRequests returns requests visible to the actor: everything for
// admins, only eligible requests for drivers.
func (s *RequestService) ListRequests(ctx context.Context, actor models.User, limitStr, offsetStr string) ([]models.RequestDetail, error) {
	limit, offset, err := utils.ParseLimitOffset(limitStr, offsetStr)
	if err != nil {
		return nil, models.NewErrorResponse(http.StatusBadRequest, err.Error())
	}
	requests, err := s.Repo.ListRequests(ctx, limit, offset)
	if err != nil {
		return nil, err
	}

	details := make([]models.RequestDetail, 0, len(requests))
	for i := range requests {
		request := &requests[i]
		if !actor.IsAdmin() {
			eligible, err := s.Resolver.IsEligible(ctx, request, actor.ID)
			if err != nil {
				return nil, err
			}
			if !eligible {
				continue
			}
		}
		detail, err := s.detail(ctx, request)
		if err != nil {
			return nil, err
		}
		details = append(details, *detail)
	}
	return details, nil
}

// GetRequest returns one request with its slot availability.
func (s *RequestService) GetRequest(ctx context.Context, actor models.User, requestID string) (*models.RequestDetail, error) {
	request, err := s.Repo.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() {
		eligible, err := s.Resolver.IsEligible(ctx, request, actor.ID)
		if err != nil {
			return nil, err
		}
		if !eligible {
			return nil, fmt.Errorf("%w: request is not assigned to this driver", models.ErrForbidden)
		}
	}
	return s.detail(ctx, request)
}

func (s *RequestService) detail(ctx context.Context, request *models.TransportRequest) (*models.RequestDetail, error) {
	claimed, err := s.Acceptances.ClaimedCount(ctx, request.ID)
	if err != nil {
		return nil, err
	}
	return &models.RequestDetail{
		TransportRequest: *request,
		AvailableSlots:   request.TruckCapacity - claimed,
	}, nil
}

// EditRequest applies admin edits. Reducing capacity below the approved
// total is permitted: approvals are never auto-revoked, the caller gets a
// CapacityWarning instead.
func (s *RequestService) EditRequest(ctx context.Context, actor models.User, requestID string, updateFields map[string]interface{}) (*models.TransportRequest, *models.CapacityWarning, error) {
	if !actor.IsAdmin() {
		return nil, nil, models.ErrForbidden
	}

	typed := make(map[string]interface{})
	if raw, ok := updateFields["truckCapacity"]; ok {
		capacity, ok := raw.(float64) // JSON numbers decode as float64
		if !ok || capacity != float64(int(capacity)) ||
			int(capacity) < models.MinTruckCapacity || int(capacity) > models.MaxTruckCapacity {
			return nil, nil, fmt.Errorf("%w: truckCapacity must be an integer between %d and %d",
				models.ErrInvalidCount, models.MinTruckCapacity, models.MaxTruckCapacity)
		}
		typed["truckCapacity"] = int(capacity)
	}
	if raw, ok := updateFields["transportDate"]; ok {
		str, ok := raw.(string)
		if !ok {
			return nil, nil, models.NewErrorResponse(http.StatusBadRequest, "transportDate must be a string")
		}
		date, err := time.Parse(transportDateLayout, str)
		if err != nil {
			return nil, nil, models.NewErrorResponse(http.StatusBadRequest, "transportDate must be formatted as YYYY-MM-DD")
		}
		typed["transportDate"] = date
	}
	if raw, ok := updateFields["payoutPerTon"]; ok {
		payout, ok := raw.(float64)
		if !ok || payout < 0 {
			return nil, nil, models.NewErrorResponse(http.StatusBadRequest, "payoutPerTon must not be negative")
		}
		typed["payoutPerTon"] = payout
	}
	if raw, ok := updateFields["destination"]; ok {
		destination, ok := raw.(string)
		if !ok || destination == "" {
			return nil, nil, models.NewErrorResponse(http.StatusBadRequest, "destination must be a non-empty string")
		}
		typed["destination"] = destination
	}
	if raw, ok := updateFields["assignedTo"]; ok {
		list, ok := raw.([]interface{})
		if !ok {
			return nil, nil, models.NewErrorResponse(http.StatusBadRequest, "assignedTo must be a list")
		}
		ids := make([]string, 0, len(list))
		for _, entry := range list {
			id, ok := entry.(string)
			if !ok {
				return nil, nil, models.NewErrorResponse(http.StatusBadRequest, "assignedTo entries must be strings")
			}
			ids = append(ids, id)
		}
		assignedAll, assignedIDs, err := parseAssignedTo(ids)
		if err != nil {
			return nil, nil, err
		}
		typed["assignedAll"] = assignedAll
		typed["assignedIds"] = assignedIDs
		if assignedIDs == nil {
			typed["assignedIds"] = []string{}
		}
	}

	request, err := s.Repo.EditRequest(ctx, requestID, typed)
	if err != nil {
		return nil, nil, err
	}

	var warning *models.CapacityWarning
	if _, changed := typed["truckCapacity"]; changed {
		approved, err := s.Acceptances.ApprovedCount(ctx, requestID)
		if err != nil {
			return nil, nil, err
		}
		if approved > request.TruckCapacity {
			warning = &models.CapacityWarning{
				TruckCapacity: request.TruckCapacity,
				ApprovedCount: approved,
			}
		}
	}

	s.Dispatcher.Publish(ctx, models.EventTransportUpdated, models.TransportEvent{
		RequestID: request.ID,
		Status:    request.Status,
	})
	return request, warning, nil
}

// UpdateRequestStatus moves the request through its administrative states.
func (s *RequestService) UpdateRequestStatus(ctx context.Context, actor models.User, requestID, status string) (*models.TransportRequest, error) {
	if !actor.IsAdmin() {
		return nil, models.ErrForbidden
	}
	if status == "" {
		return nil, models.NewErrorResponse(http.StatusBadRequest, "missing required query parameter: status")
	}

	current, err := s.Repo.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}

	allowedStatusTransition := map[models.RequestStatus][]models.RequestStatus{
		models.PendingRequest:   {models.ApprovedRequest, models.RejectedRequest},
		models.ApprovedRequest:  {models.CompletedRequest, models.RejectedRequest},
		models.RejectedRequest:  {},
		models.CompletedRequest: {},
	}

	validTransition := allowedStatusTransition[current.Status]
	if !utils.ContainsRequestStatus(validTransition, models.RequestStatus(status)) {
		return nil, models.NewErrorResponse(http.StatusBadRequest, "invalid request status transition")
	}

	request, err := s.Repo.UpdateRequestStatus(ctx, requestID, models.RequestStatus(status))
	if err != nil {
		return nil, err
	}

	s.Dispatcher.Publish(ctx, models.EventTransportUpdated, models.TransportEvent{
		RequestID: request.ID,
		Status:    request.Status,
	})
	return request, nil
}

// DeleteRequest removes a request that no acceptance references.
func (s *RequestService) DeleteRequest(ctx context.Context, actor models.User, requestID string) error {
	if !actor.IsAdmin() {
		return models.ErrForbidden
	}
	if err := s.Repo.DeleteRequest(ctx, requestID); err != nil {
		return err
	}
	s.Dispatcher.Publish(ctx, models.EventTransportDeleted, models.TransportEvent{RequestID: requestID})
	return nil
}
