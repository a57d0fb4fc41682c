package services_test

// In-memory repository implementations backing the service tests. They
// honor the same contracts as the Postgres repositories, including the
// per-store serialization of Reserve.

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/kamenolom/transport-service/internal/assignment"
	"github.com/kamenolom/transport-service/internal/events"
	"github.com/kamenolom/transport-service/internal/models"
	"github.com/kamenolom/transport-service/internal/plates"
	"github.com/kamenolom/transport-service/internal/services"

	"github.com/google/uuid"
)

type memStore struct {
	mu          sync.Mutex
	requests    map[string]*models.TransportRequest
	acceptances map[string]*models.TransportAcceptance
	items       map[string]*models.DeliveryItem
}

func newMemStore() *memStore {
	return &memStore{
		requests:    make(map[string]*models.TransportRequest),
		acceptances: make(map[string]*models.TransportAcceptance),
		items:       make(map[string]*models.DeliveryItem),
	}
}

func copyAcceptance(a *models.TransportAcceptance) *models.TransportAcceptance {
	out := *a
	out.Registrations = append([]string(nil), a.Registrations...)
	return &out
}

type memRequestRepo struct{ store *memStore }

func (r *memRequestRepo) CreateRequest(ctx context.Context, req models.TransportRequest) (*models.TransportRequest, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	req.ID = uuid.New().String()
	req.Status = models.PendingRequest
	req.CreatedAt = time.Now().UTC()
	stored := req
	r.store.requests[req.ID] = &stored
	return &req, nil
}

func (r *memRequestRepo) GetRequest(ctx context.Context, requestID string) (*models.TransportRequest, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	req, ok := r.store.requests[requestID]
	if !ok {
		return nil, fmt.Errorf("%w: transport request", models.ErrNotFound)
	}
	out := *req
	return &out, nil
}

func (r *memRequestRepo) ListRequests(ctx context.Context, limit, offset int) ([]models.TransportRequest, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []models.TransportRequest
	for _, req := range r.store.requests {
		out = append(out, *req)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *memRequestRepo) EditRequest(ctx context.Context, requestID string, updateFields map[string]interface{}) (*models.TransportRequest, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	req, ok := r.store.requests[requestID]
	if !ok {
		return nil, fmt.Errorf("%w: transport request", models.ErrNotFound)
	}
	if capacity, ok := updateFields["truckCapacity"].(int); ok {
		req.TruckCapacity = capacity
	}
	if date, ok := updateFields["transportDate"].(time.Time); ok {
		req.TransportDate = date
	}
	if payout, ok := updateFields["payoutPerTon"].(float64); ok {
		req.PayoutPerTon = payout
	}
	if destination, ok := updateFields["destination"].(string); ok {
		req.Destination = destination
	}
	if assignedAll, ok := updateFields["assignedAll"].(bool); ok {
		req.AssignedAll = assignedAll
	}
	if assignedIDs, ok := updateFields["assignedIds"].([]string); ok {
		req.AssignedIDs = assignedIDs
	}
	out := *req
	return &out, nil
}

func (r *memRequestRepo) UpdateRequestStatus(ctx context.Context, requestID string, status models.RequestStatus) (*models.TransportRequest, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	req, ok := r.store.requests[requestID]
	if !ok {
		return nil, fmt.Errorf("%w: transport request", models.ErrNotFound)
	}
	req.Status = status
	out := *req
	return &out, nil
}

func (r *memRequestRepo) DeleteRequest(ctx context.Context, requestID string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.requests[requestID]; !ok {
		return fmt.Errorf("%w: transport request", models.ErrNotFound)
	}
	for _, a := range r.store.acceptances {
		if a.RequestID == requestID {
			return fmt.Errorf("%w: request has acceptances", models.ErrConflict)
		}
	}
	delete(r.store.requests, requestID)
	return nil
}

type memAcceptanceRepo struct{ store *memStore }

func (r *memAcceptanceRepo) claimedLocked(requestID string) int {
	var claimed int
	for _, a := range r.store.acceptances {
		if a.RequestID == requestID && a.Status != models.DeclinedAcceptance {
			claimed += a.AcceptedCount
		}
	}
	return claimed
}

func (r *memAcceptanceRepo) Reserve(ctx context.Context, requestID, userID string, registrations []string, count int) (*models.TransportAcceptance, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	req, ok := r.store.requests[requestID]
	if !ok {
		return nil, fmt.Errorf("%w: transport request", models.ErrNotFound)
	}
	if !req.IsOpen() {
		return nil, models.ErrRequestClosed
	}
	available := req.TruckCapacity - r.claimedLocked(requestID)
	if count > available {
		return nil, fmt.Errorf("%w: %d slots requested, %d available", models.ErrCapacityExceeded, count, available)
	}
	a := &models.TransportAcceptance{
		ID:            uuid.New().String(),
		RequestID:     requestID,
		UserID:        userID,
		Registrations: append([]string(nil), registrations...),
		AcceptedCount: count,
		Status:        models.PendingAcceptance,
		PaymentStatus: models.Unpaid,
		CreatedAt:     time.Now().UTC(),
	}
	r.store.acceptances[a.ID] = a
	return copyAcceptance(a), nil
}

func (r *memAcceptanceRepo) GetAcceptance(ctx context.Context, acceptanceID string) (*models.TransportAcceptance, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	a, ok := r.store.acceptances[acceptanceID]
	if !ok {
		return nil, fmt.Errorf("%w: transport acceptance", models.ErrNotFound)
	}
	return copyAcceptance(a), nil
}

func (r *memAcceptanceRepo) ListByRequest(ctx context.Context, requestID string) ([]models.TransportAcceptance, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []models.TransportAcceptance
	for _, a := range r.store.acceptances {
		if a.RequestID == requestID {
			out = append(out, *copyAcceptance(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *memAcceptanceRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.TransportAcceptance, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []models.TransportAcceptance
	for _, a := range r.store.acceptances {
		if a.UserID == userID {
			out = append(out, *copyAcceptance(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *memAcceptanceRepo) ListApprovedByUser(ctx context.Context, requestID, userID string) ([]models.TransportAcceptance, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []models.TransportAcceptance
	for _, a := range r.store.acceptances {
		if a.RequestID == requestID && a.UserID == userID && a.Status == models.ApprovedAcceptance {
			out = append(out, *copyAcceptance(a))
		}
	}
	return out, nil
}

func (r *memAcceptanceRepo) ClaimedCount(ctx context.Context, requestID string) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return r.claimedLocked(requestID), nil
}

func (r *memAcceptanceRepo) ApprovedCount(ctx context.Context, requestID string) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var approved int
	for _, a := range r.store.acceptances {
		if a.RequestID == requestID && a.Status == models.ApprovedAcceptance {
			approved += a.AcceptedCount
		}
	}
	return approved, nil
}

func (r *memAcceptanceRepo) Review(ctx context.Context, acceptanceID string, status models.AcceptanceStatus, reviewerID string) (*models.TransportAcceptance, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	a, ok := r.store.acceptances[acceptanceID]
	if !ok {
		return nil, fmt.Errorf("%w: transport acceptance", models.ErrNotFound)
	}
	if a.Status != models.PendingAcceptance {
		return nil, models.ErrAlreadyReviewed
	}
	now := time.Now().UTC()
	a.Status = status
	a.ReviewedBy = reviewerID
	a.ReviewedAt = &now
	return copyAcceptance(a), nil
}

func (r *memAcceptanceRepo) MarkPaid(ctx context.Context, acceptanceID string) (*models.TransportAcceptance, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	a, ok := r.store.acceptances[acceptanceID]
	if !ok {
		return nil, fmt.Errorf("%w: transport acceptance", models.ErrNotFound)
	}
	a.PaymentStatus = models.Paid
	return copyAcceptance(a), nil
}

func (r *memAcceptanceRepo) FindLinkCandidates(ctx context.Context, plate string, approvedAt time.Time) ([]models.TransportAcceptance, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []models.TransportAcceptance
	for _, a := range r.store.acceptances {
		if a.Status != models.ApprovedAcceptance {
			continue
		}
		req, ok := r.store.requests[a.RequestID]
		if !ok || req.TransportDate.After(approvedAt) {
			continue
		}
		for _, reg := range a.Registrations {
			if plates.Match(reg, plate) {
				out = append(out, *copyAcceptance(a))
				break
			}
		}
	}
	return out, nil
}

type memItemRepo struct{ store *memStore }

func (r *memItemRepo) GetItem(ctx context.Context, itemID string) (*models.DeliveryItem, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	item, ok := r.store.items[itemID]
	if !ok {
		return nil, fmt.Errorf("%w: delivery item", models.ErrNotFound)
	}
	out := *item
	return &out, nil
}

func (r *memItemRepo) ApproveItem(ctx context.Context, itemID string, approvedAt time.Time) (*models.DeliveryItem, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	item, ok := r.store.items[itemID]
	if !ok {
		return nil, fmt.Errorf("%w: delivery item", models.ErrNotFound)
	}
	item.Status = models.ApprovedItem
	item.ApprovedAt = &approvedAt
	out := *item
	return &out, nil
}

func (r *memItemRepo) LinkItem(ctx context.Context, itemID, acceptanceID, requestID string) (*models.DeliveryItem, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	item, ok := r.store.items[itemID]
	if !ok {
		return nil, fmt.Errorf("%w: delivery item", models.ErrNotFound)
	}
	item.AcceptanceID = &acceptanceID
	item.RequestID = &requestID
	out := *item
	return &out, nil
}

func (r *memItemRepo) CountLinkedApproved(ctx context.Context, acceptanceID string) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var count int
	for _, item := range r.store.items {
		if item.AcceptanceID != nil && *item.AcceptanceID == acceptanceID && item.Status == models.ApprovedItem {
			count++
		}
	}
	return count, nil
}

func (r *memItemRepo) ListLinkedApproved(ctx context.Context, acceptanceID string) ([]models.DeliveryItem, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []models.DeliveryItem
	for _, item := range r.store.items {
		if item.AcceptanceID != nil && *item.AcceptanceID == acceptanceID && item.Status == models.ApprovedItem {
			out = append(out, *item)
		}
	}
	return out, nil
}

type fakeDirectory struct {
	drivers []string
	groups  map[string]*models.DriverGroup
}

func (d *fakeDirectory) ListTransportDrivers(ctx context.Context) ([]string, error) {
	return d.drivers, nil
}

func (d *fakeDirectory) GetGroup(ctx context.Context, groupID string) (*models.DriverGroup, error) {
	g, ok := d.groups[groupID]
	if !ok {
		return nil, models.ErrNotFound
	}
	return g, nil
}

type memUserRepo struct {
	users map[string]*models.User
}

func (r *memUserRepo) GetUser(ctx context.Context, userID string) (*models.User, error) {
	u, ok := r.users[userID]
	if !ok {
		return nil, models.ErrNotFound
	}
	return u, nil
}

func (r *memUserRepo) ListTransportDrivers(ctx context.Context) ([]string, error) {
	var ids []string
	for id, u := range r.users {
		if u.TransportAccess {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r *memUserRepo) GetGroup(ctx context.Context, groupID string) (*models.DriverGroup, error) {
	return nil, models.ErrNotFound
}

type recordedEvent struct {
	Event   models.EventType
	Payload interface{}
}

type recordingDispatcher struct {
	mu     sync.Mutex
	events []recordedEvent
}

var _ events.Dispatcher = (*recordingDispatcher)(nil)

func (d *recordingDispatcher) Publish(ctx context.Context, event models.EventType, payload interface{}) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, recordedEvent{Event: event, Payload: payload})
}

func (d *recordingDispatcher) byType(event models.EventType) []recordedEvent {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []recordedEvent
	for _, e := range d.events {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

type fixture struct {
	store       *memStore
	requests    *memRequestRepo
	acceptances *memAcceptanceRepo
	items       *memItemRepo
	dir         *fakeDirectory
	dispatcher  *recordingDispatcher

	fulfillment *services.FulfillmentService
	acceptance  *services.AcceptanceService
	request     *services.RequestService
}

func newFixture() *fixture {
	store := newMemStore()
	f := &fixture{
		store:       store,
		requests:    &memRequestRepo{store: store},
		acceptances: &memAcceptanceRepo{store: store},
		items:       &memItemRepo{store: store},
		dir:         &fakeDirectory{groups: make(map[string]*models.DriverGroup)},
		dispatcher:  &recordingDispatcher{},
	}
	resolver := assignment.NewResolver(f.dir)
	logger := log.New(os.Stdout, "TEST: ", log.LstdFlags)
	f.fulfillment = services.NewFulfillmentService(f.requests, f.acceptances, f.items, f.dispatcher, logger)
	f.acceptance = services.NewAcceptanceService(f.requests, f.acceptances, resolver, f.fulfillment, f.dispatcher)
	f.request = services.NewRequestService(f.requests, f.acceptances, resolver, f.dispatcher)
	return f
}

var (
	admin  = models.User{ID: "admin-1", Username: "uprava", Role: models.RoleAdmin}
	driver = models.User{ID: "driver-1", Username: "ivan", Role: models.RoleDriver, TransportAccess: true}
)

func (f *fixture) addOpenRequest(capacity int, payoutPerTon float64) *models.TransportRequest {
	req := &models.TransportRequest{
		ID:            uuid.New().String(),
		Origin:        models.QuarryOcura,
		Destination:   "GRAD-14",
		TruckCapacity: capacity,
		TransportDate: time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		PayoutPerTon:  payoutPerTon,
		Status:        models.ApprovedRequest,
		AssignedAll:   true,
		CreatedBy:     admin.ID,
		CreatedAt:     time.Now().UTC(),
	}
	f.store.requests[req.ID] = req
	return req
}

func (f *fixture) addApprovedAcceptance(requestID, userID string, count int, registrations ...string) *models.TransportAcceptance {
	a := &models.TransportAcceptance{
		ID:            uuid.New().String(),
		RequestID:     requestID,
		UserID:        userID,
		Registrations: plates.NormalizeSet(registrations),
		AcceptedCount: count,
		Status:        models.ApprovedAcceptance,
		PaymentStatus: models.Unpaid,
		CreatedAt:     time.Now().UTC(),
	}
	f.store.acceptances[a.ID] = a
	return a
}

func (f *fixture) addPendingItem(plate string, weightKg float64) *models.DeliveryItem {
	item := &models.DeliveryItem{
		ID:           uuid.New().String(),
		Registration: plate,
		Status:       models.PendingItem,
		NetWeightKg:  &weightKg,
		CreatedAt:    time.Now().UTC(),
	}
	f.store.items[item.ID] = item
	return item
}
