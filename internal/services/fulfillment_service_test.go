package services_test

import (
	"context"
	"testing"

	"github.com/kamenolom/transport-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApproveItemLinksByRegistration(t *testing.T) {
	f := newFixture()
	req := f.addOpenRequest(5, 2.0)
	a := f.addApprovedAcceptance(req.ID, driver.ID, 2, "ZG 1234 AB")
	other := models.User{ID: "driver-2", Role: models.RoleDriver, TransportAccess: true}
	b := f.addApprovedAcceptance(req.ID, other.ID, 2, "OS 5678 CD")

	item := f.addPendingItem("zg-1234-ab", 1000)
	approved, err := f.fulfillment.ApproveItem(context.Background(), admin, item.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ApprovedItem, approved.Status)
	require.NotNil(t, approved.AcceptanceID)
	assert.Equal(t, a.ID, *approved.AcceptanceID)
	require.NotNil(t, approved.RequestID)
	assert.Equal(t, req.ID, *approved.RequestID)

	// disjoint plate sets keep the count per acceptance exclusive
	countA, err := f.items.CountLinkedApproved(context.Background(), a.ID)
	require.NoError(t, err)
	countB, err := f.items.CountLinkedApproved(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, countA)
	assert.Equal(t, 0, countB)

	events := f.dispatcher.byType(models.EventItemApproved)
	require.Len(t, events, 1)
	payload := events[0].Payload.(models.ItemEvent)
	assert.Equal(t, item.ID, payload.ItemID)
}

func TestGetItemReflectsLinkState(t *testing.T) {
	f := newFixture()
	req := f.addOpenRequest(5, 2.0)
	a := f.addApprovedAcceptance(req.ID, driver.ID, 1, "ZG 1234 AB")
	item := f.addPendingItem("ZG 1234 AB", 1000)

	before, err := f.fulfillment.GetItem(context.Background(), admin, item.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PendingItem, before.Status)
	assert.Nil(t, before.AcceptanceID)

	_, err = f.fulfillment.ApproveItem(context.Background(), admin, item.ID)
	require.NoError(t, err)

	after, err := f.fulfillment.GetItem(context.Background(), admin, item.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ApprovedItem, after.Status)
	require.NotNil(t, after.AcceptanceID)
	assert.Equal(t, a.ID, *after.AcceptanceID)

	_, err = f.fulfillment.GetItem(context.Background(), driver, item.ID)
	assert.ErrorIs(t, err, models.ErrForbidden)
}

func TestApproveItemRequiresAdmin(t *testing.T) {
	f := newFixture()
	item := f.addPendingItem("ZG 1234 AB", 1000)

	_, err := f.fulfillment.ApproveItem(context.Background(), driver, item.ID)
	assert.ErrorIs(t, err, models.ErrForbidden)
}

func TestApproveItemWithoutMatchStaysUnlinked(t *testing.T) {
	f := newFixture()
	req := f.addOpenRequest(5, 2.0)
	f.addApprovedAcceptance(req.ID, driver.ID, 2, "ZG 1234 AB")

	item := f.addPendingItem("KA 999 ZZ", 1000)
	approved, err := f.fulfillment.ApproveItem(context.Background(), admin, item.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ApprovedItem, approved.Status)
	assert.Nil(t, approved.AcceptanceID, "no candidate claims this plate")
}

func TestApproveItemAmbiguousMatchStaysUnlinked(t *testing.T) {
	f := newFixture()
	req := f.addOpenRequest(5, 2.0)
	other := models.User{ID: "driver-2", Role: models.RoleDriver, TransportAccess: true}
	f.addApprovedAcceptance(req.ID, driver.ID, 2, "ZG 1234 AB")
	f.addApprovedAcceptance(req.ID, other.ID, 2, "ZG 1234 AB")

	item := f.addPendingItem("ZG 1234 AB", 1000)
	approved, err := f.fulfillment.ApproveItem(context.Background(), admin, item.ID)
	require.NoError(t, err, "ambiguity does not fail the approval itself")
	assert.Equal(t, models.ApprovedItem, approved.Status)
	assert.Nil(t, approved.AcceptanceID, "ambiguous plates are left for manual linking")
}

func TestApproveItemLinksAfterRequestCompleted(t *testing.T) {
	f := newFixture()
	req := f.addOpenRequest(5, 2.0)
	a := f.addApprovedAcceptance(req.ID, driver.ID, 2, "ZG 1234 AB")

	first := f.addPendingItem("ZG 1234 AB", 1000)
	_, err := f.fulfillment.ApproveItem(context.Background(), admin, first.ID)
	require.NoError(t, err)

	// deliveries keep arriving after the admin closes the request
	req.Status = models.CompletedRequest

	second := f.addPendingItem("ZG 1234 AB", 1000)
	approved, err := f.fulfillment.ApproveItem(context.Background(), admin, second.ID)
	require.NoError(t, err)
	require.NotNil(t, approved.AcceptanceID)
	assert.Equal(t, a.ID, *approved.AcceptanceID)

	delivered, err := f.fulfillment.DeliveredCount(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, delivered)

	payout, err := f.fulfillment.ComputePayout(context.Background(), a)
	require.NoError(t, err)
	assert.InDelta(t, 4.0, payout, 1e-9)
}

func TestComputePayout(t *testing.T) {
	f := newFixture()
	req := f.addOpenRequest(5, 2.0)
	a := f.addApprovedAcceptance(req.ID, driver.ID, 2, "ZG 1234 AB")

	for _, weightKg := range []float64{1000, 500} {
		item := f.addPendingItem("ZG 1234 AB", weightKg)
		_, err := f.fulfillment.ApproveItem(context.Background(), admin, item.ID)
		require.NoError(t, err)
	}

	payout, err := f.fulfillment.ComputePayout(context.Background(), a)
	require.NoError(t, err)
	assert.InDelta(t, 3.0, payout, 1e-9, "1.5 t at 2.0 per ton")
}

func TestSummarize(t *testing.T) {
	f := newFixture()
	req := f.addOpenRequest(5, 4.0)
	a := f.addApprovedAcceptance(req.ID, driver.ID, 1, "ZG 1234 AB")

	summary, err := f.fulfillment.Summarize(context.Background(), *a)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.DeliveredCount)
	assert.False(t, summary.IsComplete)
	assert.Zero(t, summary.TotalPayout)

	item := f.addPendingItem("ZG 1234 AB", 2000)
	_, err = f.fulfillment.ApproveItem(context.Background(), admin, item.ID)
	require.NoError(t, err)

	summary, err = f.fulfillment.Summarize(context.Background(), *a)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.DeliveredCount)
	assert.True(t, summary.IsComplete)
	assert.InDelta(t, 8.0, summary.TotalPayout, 1e-9)
}

func TestPayoutReport(t *testing.T) {
	f := newFixture()
	req := f.addOpenRequest(5, 2.0)
	f.addApprovedAcceptance(req.ID, driver.ID, 1, "ZG 1234 AB")
	item := f.addPendingItem("ZG 1234 AB", 1000)
	_, err := f.fulfillment.ApproveItem(context.Background(), admin, item.ID)
	require.NoError(t, err)

	users := &memUserRepo{users: map[string]*models.User{driver.ID: &driver}}
	rows, err := f.fulfillment.PayoutReport(context.Background(), users)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, driver.Username, rows[0].Driver)
	assert.Equal(t, req.ID, rows[0].RequestID)
	assert.Equal(t, 1, rows[0].DeliveredCount)
	assert.InDelta(t, 2.0, rows[0].TotalPayout, 1e-9)
}

func TestPayoutReportWalksAllRequests(t *testing.T) {
	f := newFixture()

	const total = 201 // more than one listing page
	for i := 0; i < total; i++ {
		req := f.addOpenRequest(2, 1.0)
		f.addApprovedAcceptance(req.ID, driver.ID, 1, "ZG 1234 AB")
	}

	users := &memUserRepo{users: map[string]*models.User{driver.ID: &driver}}
	rows, err := f.fulfillment.PayoutReport(context.Background(), users)
	require.NoError(t, err)
	assert.Len(t, rows, total)
}
