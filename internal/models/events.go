package models

type EventType string

const (
	EventTransportCreated  EventType = "transport:created"
	EventTransportUpdated  EventType = "transport:updated"
	EventTransportDeleted  EventType = "transport:deleted"
	EventClaimCreated      EventType = "claim:created"
	EventAcceptanceUpdated EventType = "acceptance:updated"
	EventItemApproved      EventType = "item:approved"
)

// TransportEvent is the payload for transport:* events.
type TransportEvent struct {
	RequestID string        `json:"requestId"`
	Status    RequestStatus `json:"status,omitempty"`
}

// AcceptanceEvent is the payload for claim:created and acceptance:updated.
// UserID identifies the addressed driver; subscribers compare it against
// the current viewer, the dispatcher itself does no targeting.
type AcceptanceEvent struct {
	AcceptanceID string           `json:"acceptanceId"`
	RequestID    string           `json:"requestId"`
	UserID       string           `json:"userId"`
	Status       AcceptanceStatus `json:"status"`
}

// ItemEvent is the payload for item:approved.
type ItemEvent struct {
	ItemID       string  `json:"itemId"`
	Registration string  `json:"registration"`
	AcceptanceID *string `json:"acceptanceId,omitempty"`
}
