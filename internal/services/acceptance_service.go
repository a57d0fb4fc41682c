package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/kamenolom/transport-service/internal/assignment"
	"github.com/kamenolom/transport-service/internal/events"
	"github.com/kamenolom/transport-service/internal/models"
	"github.com/kamenolom/transport-service/internal/plates"
	"github.com/kamenolom/transport-service/internal/repository"
	"github.com/kamenolom/transport-service/internal/utils"
)

// reserveAttempts bounds the internal retry on a lost reservation race.
const reserveAttempts = 3

// AcceptanceService owns the capacity ledger and the claim state machine.
type AcceptanceService struct {
	Requests    repository.RequestRepository
	Repo        repository.AcceptanceRepository
	Resolver    *assignment.Resolver
	Fulfillment *FulfillmentService
	Dispatcher  events.Dispatcher
}

// NewAcceptanceService creates a new AcceptanceService instance.
func NewAcceptanceService(requests repository.RequestRepository, repo repository.AcceptanceRepository, resolver *assignment.Resolver, fulfillment *FulfillmentService, dispatcher events.Dispatcher) *AcceptanceService {
	return &AcceptanceService{
		Requests:    requests,
		Repo:        repo,
		Resolver:    resolver,
		Fulfillment: fulfillment,
		Dispatcher:  dispatcher,
	}
}

// AvailableSlots computes truckCapacity minus slots held by non-declined
// acceptances. The value is advisory outside Reserve; only the atomic
// check inside Reserve enforces the invariant.
func (s *AcceptanceService) AvailableSlots(ctx context.Context, requestID string) (int, error) {
	request, err := s.Requests.GetRequest(ctx, requestID)
	if err != nil {
		return 0, err
	}
	claimed, err := s.Repo.ClaimedCount(ctx, requestID)
	if err != nil {
		return 0, err
	}
	return request.TruckCapacity - claimed, nil
}

// Reserve claims count slots on a request for the acting driver.
func (s *AcceptanceService) Reserve(ctx context.Context, actor models.User, requestID string, input models.AcceptanceInput) (*models.TransportAcceptance, error) {
	if input.AcceptedCount < 1 {
		return nil, fmt.Errorf("%w: acceptedCount must be at least 1", models.ErrInvalidCount)
	}

	registrations := plates.NormalizeSet(input.Registrations)
	if len(registrations) == 0 {
		return nil, models.NewErrorResponse(http.StatusBadRequest, "at least one vehicle registration is required")
	}

	request, err := s.Requests.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !request.IsOpen() {
		return nil, models.ErrRequestClosed
	}

	if !actor.TransportAccess {
		return nil, fmt.Errorf("%w: no transport access", models.ErrForbidden)
	}
	eligible, err := s.Resolver.IsEligible(ctx, request, actor.ID)
	if err != nil {
		return nil, err
	}
	if !eligible {
		return nil, fmt.Errorf("%w: request is not assigned to this driver", models.ErrForbidden)
	}

	// An approved claim on this request that is not fully delivered blocks
	// further claims by the same driver on this request only.
	approved, err := s.Repo.ListApprovedByUser(ctx, requestID, actor.ID)
	if err != nil {
		return nil, err
	}
	for i := range approved {
		blocking, err := s.Fulfillment.IsRequestBlocking(ctx, &approved[i])
		if err != nil {
			return nil, err
		}
		if blocking {
			return nil, fmt.Errorf("%w: previous claim on this request is not yet fulfilled", models.ErrConflict)
		}
	}

	var acceptance *models.TransportAcceptance
	for attempt := 0; attempt < reserveAttempts; attempt++ {
		acceptance, err = s.Repo.Reserve(ctx, requestID, actor.ID, registrations, input.AcceptedCount)
		if err == nil || !errors.Is(err, models.ErrConflict) {
			break
		}
	}
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			// A race that never resolved: report it the same way as a full
			// request so the driver re-reads availability.
			return nil, fmt.Errorf("%w: reservation kept losing to concurrent claims", models.ErrCapacityExceeded)
		}
		return nil, err
	}

	s.Dispatcher.Publish(ctx, models.EventClaimCreated, models.AcceptanceEvent{
		AcceptanceID: acceptance.ID,
		RequestID:    acceptance.RequestID,
		UserID:       acceptance.UserID,
		Status:       acceptance.Status,
	})
	return acceptance, nil
}

// Review applies an admin decision to a pending claim, exactly once.
func (s *AcceptanceService) Review(ctx context.Context, actor models.User, acceptanceID, decision string) (*models.TransportAcceptance, error) {
	if !actor.IsAdmin() {
		return nil, models.ErrForbidden
	}

	allowedDecision := map[models.AcceptanceStatus]bool{
		models.ApprovedAcceptance: true,
		models.DeclinedAcceptance: true,
	}
	status := models.AcceptanceStatus(decision)
	if !allowedDecision[status] {
		return nil, models.NewErrorResponse(http.StatusBadRequest, "invalid decision, must be either 'approved' or 'declined'")
	}

	acceptance, err := s.Repo.Review(ctx, acceptanceID, status, actor.ID)
	if err != nil {
		return nil, err
	}

	// A decline needs no separate slot release: availability is always
	// recomputed from non-declined acceptances.
	s.Dispatcher.Publish(ctx, models.EventAcceptanceUpdated, models.AcceptanceEvent{
		AcceptanceID: acceptance.ID,
		RequestID:    acceptance.RequestID,
		UserID:       acceptance.UserID,
		Status:       acceptance.Status,
	})
	return acceptance, nil
}

// MarkPaid sets the payout state of an acceptance. Marking an already
// paid acceptance is a no-op, not an error.
func (s *AcceptanceService) MarkPaid(ctx context.Context, actor models.User, acceptanceID string) (*models.TransportAcceptance, error) {
	if !actor.IsAdmin() {
		return nil, models.ErrForbidden
	}
	return s.Repo.MarkPaid(ctx, acceptanceID)
}

// ListMine returns the acting driver's claims with fulfillment aggregates.
func (s *AcceptanceService) ListMine(ctx context.Context, actor models.User, limitStr, offsetStr string) ([]models.AcceptanceSummary, error) {
	limit, offset, err := utils.ParseLimitOffset(limitStr, offsetStr)
	if err != nil {
		return nil, models.NewErrorResponse(http.StatusBadRequest, err.Error())
	}
	acceptances, err := s.Repo.ListByUser(ctx, actor.ID, limit, offset)
	if err != nil {
		return nil, err
	}
	return s.summarizeAll(ctx, acceptances)
}

// ListForRequest returns all claims on a request, admin only.
func (s *AcceptanceService) ListForRequest(ctx context.Context, actor models.User, requestID string) ([]models.AcceptanceSummary, error) {
	if !actor.IsAdmin() {
		return nil, models.ErrForbidden
	}
	if _, err := s.Requests.GetRequest(ctx, requestID); err != nil {
		return nil, err
	}
	acceptances, err := s.Repo.ListByRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	return s.summarizeAll(ctx, acceptances)
}

func (s *AcceptanceService) summarizeAll(ctx context.Context, acceptances []models.TransportAcceptance) ([]models.AcceptanceSummary, error) {
	summaries := make([]models.AcceptanceSummary, 0, len(acceptances))
	for _, acceptance := range acceptances {
		summary, err := s.Fulfillment.Summarize(ctx, acceptance)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, *summary)
	}
	return summaries, nil
}
