package models

import "time"

// PayoutReportRow is one line of the fulfillment/payout export. It is a
// read-only projection of reconciler output; nothing writes it back.
type PayoutReportRow struct {
	RequestID      string
	Origin         Quarry
	Destination    string
	TransportDate  time.Time
	Driver         string
	Registrations  []string
	AcceptedCount  int
	DeliveredCount int
	Status         AcceptanceStatus
	PaymentStatus  PaymentStatus
	TotalPayout    float64
}
