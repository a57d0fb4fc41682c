package services

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/kamenolom/transport-service/internal/events"
	"github.com/kamenolom/transport-service/internal/models"
	"github.com/kamenolom/transport-service/internal/plates"
	"github.com/kamenolom/transport-service/internal/repository"
)

// FulfillmentService links delivery evidence back to the claims it
// fulfills and computes delivery and payout aggregates.
type FulfillmentService struct {
	Requests    repository.RequestRepository
	Acceptances repository.AcceptanceRepository
	Items       repository.ItemRepository
	Dispatcher  events.Dispatcher
	Logger      *log.Logger
}

// NewFulfillmentService creates a new FulfillmentService instance.
func NewFulfillmentService(requests repository.RequestRepository, acceptances repository.AcceptanceRepository, items repository.ItemRepository, dispatcher events.Dispatcher, logger *log.Logger) *FulfillmentService {
	return &FulfillmentService{
		Requests:    requests,
		Acceptances: acceptances,
		Items:       items,
		Dispatcher:  dispatcher,
		Logger:      logger,
	}
}

// GetItem returns one delivery item with its current link state. Admin
// only: items can carry plates of drivers other than the caller.
func (s *FulfillmentService) GetItem(ctx context.Context, actor models.User, itemID string) (*models.DeliveryItem, error) {
	if !actor.IsAdmin() {
		return nil, models.ErrForbidden
	}
	return s.Items.GetItem(ctx, itemID)
}

// ApproveItem stamps a delivery item approved and runs the link step.
// An ambiguous plate match leaves the item unlinked and is logged; it
// never fails the approval itself.
func (s *FulfillmentService) ApproveItem(ctx context.Context, actor models.User, itemID string) (*models.DeliveryItem, error) {
	if !actor.IsAdmin() {
		return nil, models.ErrForbidden
	}

	item, err := s.Items.ApproveItem(ctx, itemID, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	linked, err := s.LinkItem(ctx, item)
	if err != nil {
		if !errors.Is(err, models.ErrAmbiguousLink) {
			return nil, err
		}
		s.Logger.Printf("item %s: plate %s matches multiple acceptances, left unlinked", item.ID, item.Registration)
	}
	if linked != nil {
		if item, err = s.Items.LinkItem(ctx, item.ID, linked.ID, linked.RequestID); err != nil {
			return nil, err
		}
	}

	s.Dispatcher.Publish(ctx, models.EventItemApproved, models.ItemEvent{
		ItemID:       item.ID,
		Registration: item.Registration,
		AcceptanceID: item.AcceptanceID,
	})
	return item, nil
}

// LinkItem finds the unique approved acceptance whose registration set
// contains the item's plate within the request's date scope. Zero matches
// is normal (item not tied to a transport claim); more than one is
// models.ErrAmbiguousLink and the caller must not guess.
func (s *FulfillmentService) LinkItem(ctx context.Context, item *models.DeliveryItem) (*models.TransportAcceptance, error) {
	if item.Status != models.ApprovedItem || item.ApprovedAt == nil {
		return nil, nil
	}
	plate := plates.Normalize(item.Registration)
	if plate == "" {
		return nil, nil
	}

	candidates, err := s.Acceptances.FindLinkCandidates(ctx, plate, *item.ApprovedAt)
	if err != nil {
		return nil, err
	}
	return matchAcceptance(plate, candidates)
}

// matchAcceptance applies the exclusivity rule over pre-filtered candidates.
func matchAcceptance(plate string, candidates []models.TransportAcceptance) (*models.TransportAcceptance, error) {
	var match *models.TransportAcceptance
	for i := range candidates {
		a := &candidates[i]
		if a.Status != models.ApprovedAcceptance {
			continue
		}
		for _, reg := range a.Registrations {
			if plates.Match(reg, plate) {
				if match != nil && match.ID != a.ID {
					return nil, models.ErrAmbiguousLink
				}
				match = a
				break
			}
		}
	}
	return match, nil
}

// DeliveredCount counts linked approved items for an acceptance.
func (s *FulfillmentService) DeliveredCount(ctx context.Context, acceptanceID string) (int, error) {
	return s.Items.CountLinkedApproved(ctx, acceptanceID)
}

// ComputePayout returns payoutPerTon times the net tonnage of all linked
// approved items. Items without a weight contribute zero.
func (s *FulfillmentService) ComputePayout(ctx context.Context, acceptance *models.TransportAcceptance) (float64, error) {
	request, err := s.Requests.GetRequest(ctx, acceptance.RequestID)
	if err != nil {
		return 0, err
	}
	items, err := s.Items.ListLinkedApproved(ctx, acceptance.ID)
	if err != nil {
		return 0, err
	}
	var tons float64
	for i := range items {
		tons += items[i].NetWeightTons()
	}
	return request.PayoutPerTon * tons, nil
}

// IsRequestBlocking reports whether the acceptance prevents its driver
// from claiming further slots on the same request: approved but not yet
// fully delivered.
func (s *FulfillmentService) IsRequestBlocking(ctx context.Context, acceptance *models.TransportAcceptance) (bool, error) {
	if acceptance.Status != models.ApprovedAcceptance {
		return false, nil
	}
	delivered, err := s.DeliveredCount(ctx, acceptance.ID)
	if err != nil {
		return false, err
	}
	return delivered < acceptance.AcceptedCount, nil
}

// Summarize attaches delivery and payout aggregates to an acceptance.
func (s *FulfillmentService) Summarize(ctx context.Context, acceptance models.TransportAcceptance) (*models.AcceptanceSummary, error) {
	delivered, err := s.DeliveredCount(ctx, acceptance.ID)
	if err != nil {
		return nil, err
	}
	payout, err := s.ComputePayout(ctx, &acceptance)
	if err != nil {
		return nil, err
	}
	return &models.AcceptanceSummary{
		TransportAcceptance: acceptance,
		DeliveredCount:      delivered,
		IsComplete:          delivered >= acceptance.AcceptedCount,
		TotalPayout:         payout,
	}, nil
}

// reportPageSize is the batch size for walking all requests in the export.
const reportPageSize = 200

// PayoutReport builds the rows for the fulfillment/payout export, walking
// every request page by page.
func (s *FulfillmentService) PayoutReport(ctx context.Context, users repository.UserRepository) ([]models.PayoutReportRow, error) {
	var requests []models.TransportRequest
	for offset := 0; ; offset += reportPageSize {
		page, err := s.Requests.ListRequests(ctx, reportPageSize, offset)
		if err != nil {
			return nil, err
		}
		requests = append(requests, page...)
		if len(page) < reportPageSize {
			break
		}
	}

	var report []models.PayoutReportRow
	for i := range requests {
		request := &requests[i]
		acceptances, err := s.Acceptances.ListByRequest(ctx, request.ID)
		if err != nil {
			return nil, err
		}
		for _, acceptance := range acceptances {
			summary, err := s.Summarize(ctx, acceptance)
			if err != nil {
				return nil, err
			}
			driver := acceptance.UserID
			if user, err := users.GetUser(ctx, acceptance.UserID); err == nil {
				driver = user.Username
			}
			report = append(report, models.PayoutReportRow{
				RequestID:      request.ID,
				Origin:         request.Origin,
				Destination:    request.Destination,
				TransportDate:  request.TransportDate,
				Driver:         driver,
				Registrations:  acceptance.Registrations,
				AcceptedCount:  acceptance.AcceptedCount,
				DeliveredCount: summary.DeliveredCount,
				Status:         acceptance.Status,
				PaymentStatus:  acceptance.PaymentStatus,
				TotalPayout:    summary.TotalPayout,
			})
		}
	}
	return report, nil
}
