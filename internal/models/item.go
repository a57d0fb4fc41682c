package models

import "time"

type ItemStatus string // Approval state of a delivery document

const (
	PendingItem  ItemStatus = "pending"
	ApprovedItem ItemStatus = "approved"
	RejectedItem ItemStatus = "rejected"
)

// DeliveryItem is one weighbridge document produced by a single trip.
// An approved item carrying a registration is linked post-hoc to the
// acceptance whose plate set contains it; the link back-references are
// nullable because most items never belong to a transport claim.
type DeliveryItem struct {
	ID           string     `json:"id"`
	Registration string     `json:"registration"`
	Status       ItemStatus `json:"status"`
	NetWeightKg  *float64   `json:"netWeightKg,omitempty"`
	ApprovedAt   *time.Time `json:"approvedAt,omitempty"`
	AcceptanceID *string    `json:"transportAcceptanceId,omitempty"`
	RequestID    *string    `json:"linkedRequestId,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// NetWeightTons converts the item's net weight to tons; a missing weight
// contributes zero to payout instead of failing the computation.
func (i *DeliveryItem) NetWeightTons() float64 {
	if i.NetWeightKg == nil {
		return 0
	}
	return *i.NetWeightKg / 1000.0
}
