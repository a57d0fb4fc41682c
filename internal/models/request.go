package models

import "time"

type (
	RequestStatus string // Administrative state of a transport request
	Quarry        string // Origin quarry
)

const (
	PendingRequest   RequestStatus = "pending"
	ApprovedRequest  RequestStatus = "approved"
	RejectedRequest  RequestStatus = "rejected"
	CompletedRequest RequestStatus = "completed"
)

const (
	QuarryOcura     Quarry = "Ocura"
	QuarryHruskovec Quarry = "Hruskovec"
	QuarryJesenje   Quarry = "Jesenje"
	QuarryBelaj     Quarry = "Belaj"
)

// AssignedToAll is the sentinel accepted in request payloads meaning
// "every driver with transport access".
const AssignedToAll = "All"

const (
	MinTruckCapacity = 1
	MaxTruckCapacity = 999
)

// TransportRequest is a standing offer of truck capacity from a quarry
// to a job site on a given date.
type TransportRequest struct {
	ID            string        `json:"id"`
	Origin        Quarry        `json:"origin"`
	Destination   string        `json:"destination"`
	TruckCapacity int           `json:"truckCapacity"`
	TransportDate time.Time     `json:"transportDate"`
	PayoutPerTon  float64       `json:"payoutPerTon"`
	Status        RequestStatus `json:"status"`
	AssignedAll   bool          `json:"assignedAll"`
	AssignedIDs   []string      `json:"assignedIds,omitempty"`
	CreatedBy     string        `json:"createdBy"`
	CreatedAt     time.Time     `json:"createdAt"`
}

// IsOpen is the single place that decides whether a request still accepts
// new claims: pending and approved requests are open, rejected and
// completed ones are closed.
func (r *TransportRequest) IsOpen() bool {
	return r.Status == PendingRequest || r.Status == ApprovedRequest
}

// ValidQuarry reports whether the origin is one of the known quarries.
func ValidQuarry(q Quarry) bool {
	switch q {
	case QuarryOcura, QuarryHruskovec, QuarryJesenje, QuarryBelaj:
		return true
	}
	return false
}

// TransportRequestInput is the request body for creating a transport request.
// AssignedTo is either the single sentinel "All" or a list of driver/group ids.
type TransportRequestInput struct {
	Origin        Quarry   `json:"origin"`
	Destination   string   `json:"destination"`
	TruckCapacity int      `json:"truckCapacity"`
	TransportDate string   `json:"transportDate"` // "2006-01-02"
	PayoutPerTon  float64  `json:"payoutPerTon"`
	AssignedTo    []string `json:"assignedTo"`
}

// RequestDetail is a request together with its derived slot availability.
type RequestDetail struct {
	TransportRequest
	AvailableSlots int `json:"availableSlots"`
}

// CapacityWarning is the advisory attached to an edit that left already
// approved claims above the new capacity. It never blocks the edit.
type CapacityWarning struct {
	TruckCapacity int `json:"truckCapacity"`
	ApprovedCount int `json:"approvedCount"`
}
