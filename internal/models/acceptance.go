package models

import "time"

type (
	AcceptanceStatus string // Status of a driver's claim
	PaymentStatus    string // Payout state of an approved claim
)

const (
	PendingAcceptance  AcceptanceStatus = "pending"
	ApprovedAcceptance AcceptanceStatus = "approved"
	DeclinedAcceptance AcceptanceStatus = "declined"

	Unpaid PaymentStatus = "unpaid"
	Paid   PaymentStatus = "paid"
)

// TransportAcceptance is one driver's claim of accepted_count slots
// against a request's truck capacity. Status moves pending -> approved
// or pending -> declined exactly once; only paymentStatus and the
// derived delivery bookkeeping change afterwards.
type TransportAcceptance struct {
	ID            string           `json:"id"`
	RequestID     string           `json:"requestId"`
	UserID        string           `json:"userId"`
	Registrations []string         `json:"registrations"`
	AcceptedCount int              `json:"acceptedCount"`
	Status        AcceptanceStatus `json:"status"`
	ReviewedBy    string           `json:"reviewedBy,omitempty"`
	ReviewedAt    *time.Time       `json:"reviewedAt,omitempty"`
	PaymentStatus PaymentStatus    `json:"paymentStatus"`
	CreatedAt     time.Time        `json:"createdAt"`
}

// AcceptanceInput is the request body for claiming slots on a request.
type AcceptanceInput struct {
	Registrations []string `json:"registrations"`
	AcceptedCount int      `json:"acceptedCount"`
}

// AcceptanceSummary is a claim together with its derived fulfillment state.
type AcceptanceSummary struct {
	TransportAcceptance
	DeliveredCount int     `json:"deliveredCount"`
	IsComplete     bool    `json:"isComplete"`
	TotalPayout    float64 `json:"totalPayout"`
}
